package resources

import (
	"context"
	"slices"

	"github.com/jrsteele09/dropzone-client/api"
	"github.com/jrsteele09/dropzone-client/querycache"
)

func (r *Resources) Logbook(ctx context.Context) Result[[]api.LogbookEntry] {
	return userQuery(ctx, r, LogbookKey, LogbookStaleTime, r.api.ListLogbook)
}

// AddLogbookEntry logs a jump. The cached jump count is raised before the
// request and lowered again if the request fails.
func (r *Resources) AddLogbookEntry() *querycache.Mutation[api.NewLogbookEntry, api.LogbookEntry] {
	return r.addLogbook
}

// DeleteLogbookEntry removes a jump. The entry and one jump are taken off
// the cache before the request and restored if it fails.
func (r *Resources) DeleteLogbookEntry() *querycache.Mutation[string, struct{}] {
	return r.deleteLogbook
}

func (r *Resources) invalidateLogbook() {
	r.cache.InvalidateQueries(querycache.NewKey(logbookResource))
	r.cache.InvalidateQueries(querycache.NewKey(profileResource))
}

func (r *Resources) addLogbookOptions() querycache.MutationOptions[api.NewLogbookEntry, api.LogbookEntry] {
	return querycache.MutationOptions[api.NewLogbookEntry, api.LogbookEntry]{
		MutationFn: authed2(r, r.api.CreateLogbookEntry),
		OnMutate: func(context.Context, api.NewLogbookEntry) ([]querycache.Snapshot, error) {
			r.cache.CancelQueries(querycache.NewKey(profileResource))
			r.adjustJumpCount(r.session.UserID(), 1)
			return nil, nil
		},
		OnSuccess: func(context.Context, api.LogbookEntry, api.NewLogbookEntry) {
			r.invalidateLogbook()
		},
		OnError: func(_ context.Context, err error, _ api.NewLogbookEntry) {
			r.adjustJumpCount(r.session.UserID(), -1)
			r.logger.Warn().Err(err).Msg("logbook entry not saved, jump count reverted")
		},
	}
}

func (r *Resources) deleteLogbookOptions() querycache.MutationOptions[string, struct{}] {
	return querycache.MutationOptions[string, struct{}]{
		MutationFn: authed2(r, discard(r.api.DeleteLogbookEntry)),
		OnMutate: func(_ context.Context, id string) ([]querycache.Snapshot, error) {
			uid := r.session.UserID()
			r.cache.CancelQueries(querycache.NewKey(logbookResource))
			r.cache.CancelQueries(querycache.NewKey(profileResource))
			snaps := append(r.cache.SnapshotQueries(LogbookKey(uid)), r.cache.SnapshotQueries(ProfileKey(uid))...)

			querycache.SetQueriesData(r.cache, LogbookKey(uid), func(old []api.LogbookEntry) []api.LogbookEntry {
				return slices.DeleteFunc(slices.Clone(old), func(e api.LogbookEntry) bool { return e.ID == id })
			})
			r.adjustJumpCount(uid, -1)
			return snaps, nil
		},
		OnSuccess: func(context.Context, struct{}, string) {
			r.invalidateLogbook()
		},
		OnError: func(_ context.Context, err error, id string) {
			r.logger.Warn().Err(err).Str("entry", id).Msg("logbook delete rolled back")
		},
	}
}
