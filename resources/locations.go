package resources

import (
	"context"
	"slices"

	"github.com/jrsteele09/dropzone-client/api"
	"github.com/jrsteele09/dropzone-client/querycache"
)

// Locations lists dropzones matching filter. The list carries the saved
// flag of the signed-in user, so it needs a session like the other reads.
func (r *Resources) Locations(ctx context.Context, filter api.LocationFilter) Result[[]api.Location] {
	uid, err := r.userID(ctx)
	if err != nil {
		return Result[[]api.Location]{Err: err}
	}
	return read(ctx, r, querycache.QueryOptions[[]api.Location]{
		Key: LocationsKey(filter),
		Fetch: authed(r, func(ctx context.Context) ([]api.Location, error) {
			return r.api.ListLocations(ctx, filter)
		}),
		StaleTime: LocationsStaleTime,
		Disabled:  uid == "",
	})
}

func (r *Resources) SavedLocations(ctx context.Context) Result[[]api.Location] {
	return userQuery(ctx, r, SavedLocationsKey, SavedLocationsStaleTime, r.api.ListSavedLocations)
}

func (r *Resources) Submissions(ctx context.Context) Result[[]api.LocationSubmission] {
	return userQuery(ctx, r, SubmissionsKey, SubmissionsStaleTime, r.api.ListSubmissions)
}

func (r *Resources) SaveLocation() *querycache.Mutation[string, struct{}] {
	return r.saveLocation
}

func (r *Resources) UnsaveLocation() *querycache.Mutation[string, struct{}] {
	return r.unsaveLocation
}

// SubmitLocation proposes a new location. It needs a pro entitlement.
func (r *Resources) SubmitLocation() *querycache.Mutation[api.NewLocationSubmission, api.LocationSubmission] {
	return r.submitLocation
}

// toggleSavedOptions flips the saved state of a location in the saved list
// and in every cached location list, restoring both if the server refuses.
func (r *Resources) toggleSavedOptions(save bool) querycache.MutationOptions[string, struct{}] {
	call := r.api.UnsaveLocation
	if save {
		call = r.api.SaveLocation
	}
	allLocations := querycache.NewKey(locationsResource)
	allSaved := querycache.NewKey(savedLocationsResource)

	return querycache.MutationOptions[string, struct{}]{
		MutationFn: authed2(r, discard(call)),
		OnMutate: func(_ context.Context, id string) ([]querycache.Snapshot, error) {
			savedKey := SavedLocationsKey(r.session.UserID())
			r.cache.CancelQueries(allSaved)
			r.cache.CancelQueries(allLocations)
			snaps := append(r.cache.SnapshotQueries(savedKey), r.cache.SnapshotQueries(allLocations)...)

			loc, found := r.findLocation(id)
			querycache.SetQueriesData(r.cache, savedKey, func(old []api.Location) []api.Location {
				if !save {
					return slices.DeleteFunc(slices.Clone(old), func(l api.Location) bool { return l.ID == id })
				}
				if !found || slices.ContainsFunc(old, func(l api.Location) bool { return l.ID == id }) {
					return old
				}
				loc.IsSaved = true
				return append(slices.Clone(old), loc)
			})
			querycache.SetQueriesData(r.cache, allLocations, func(old []api.Location) []api.Location {
				out := slices.Clone(old)
				for i := range out {
					if out[i].ID == id {
						out[i].IsSaved = save
					}
				}
				return out
			})
			return snaps, nil
		},
		OnSuccess: func(context.Context, struct{}, string) {
			r.cache.InvalidateQueries(allSaved)
			r.cache.InvalidateQueries(allLocations)
		},
		OnError: func(_ context.Context, err error, id string) {
			r.logger.Warn().Err(err).Str("location", id).Bool("save", save).Msg("saved location change rolled back")
		},
	}
}

func (r *Resources) findLocation(id string) (api.Location, bool) {
	for _, list := range querycache.GetQueriesData[[]api.Location](r.cache, querycache.NewKey(locationsResource)) {
		for _, l := range list {
			if l.ID == id {
				return l, true
			}
		}
	}
	return api.Location{}, false
}

func (r *Resources) submitLocationOptions() querycache.MutationOptions[api.NewLocationSubmission, api.LocationSubmission] {
	return querycache.MutationOptions[api.NewLocationSubmission, api.LocationSubmission]{
		MutationFn: authed2(r, r.api.SubmitLocation),
		OnMutate: func(context.Context, api.NewLocationSubmission) ([]querycache.Snapshot, error) {
			return nil, r.requirePro()
		},
		OnSuccess: func(context.Context, api.LocationSubmission, api.NewLocationSubmission) {
			r.cache.InvalidateQueries(querycache.NewKey(submissionsResource))
		},
	}
}
