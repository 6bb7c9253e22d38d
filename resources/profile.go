package resources

import (
	"context"

	"github.com/jrsteele09/dropzone-client/api"
	"github.com/jrsteele09/dropzone-client/querycache"
)

func (r *Resources) Profile(ctx context.Context) Result[api.Profile] {
	return userQuery(ctx, r, ProfileKey, ProfileStaleTime, r.api.GetProfile)
}

func (r *Resources) UpdateProfile() *querycache.Mutation[api.ProfileUpdate, api.Profile] {
	return r.updateProfile
}

func (r *Resources) updateProfileOptions() querycache.MutationOptions[api.ProfileUpdate, api.Profile] {
	return querycache.MutationOptions[api.ProfileUpdate, api.Profile]{
		MutationFn: authed2(r, r.api.UpdateProfile),
		OnSuccess: func(_ context.Context, p api.Profile, _ api.ProfileUpdate) {
			querycache.SetQueriesData(r.cache, ProfileKey(p.UserID), func(api.Profile) api.Profile { return p })
			r.cache.InvalidateQueries(querycache.NewKey(profileResource))
		},
	}
}

// adjustJumpCount shifts the cached profile jump count by delta, never
// below zero.
func (r *Resources) adjustJumpCount(userID string, delta int) {
	querycache.SetQueriesData(r.cache, ProfileKey(userID), func(old api.Profile) api.Profile {
		old.JumpCount = max(old.JumpCount+delta, 0)
		return old
	})
}

// authed2 is authed for calls that take an argument.
func authed2[V, R any](r *Resources, fn func(ctx context.Context, v V) (R, error)) func(ctx context.Context, v V) (R, error) {
	return func(ctx context.Context, v V) (R, error) {
		return authed(r, func(ctx context.Context) (R, error) { return fn(ctx, v) })(ctx)
	}
}
