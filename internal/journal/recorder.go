package journal

import (
	"context"

	"github.com/roach88/normware/internal/action"
	"github.com/roach88/normware/internal/dispatch"
)

// Recorder returns a dispatch.Factory whose interceptor appends every
// action it sees and then forwards it unchanged. An append failure stops
// the action.
func (j *Journal) Recorder() dispatch.Factory {
	return j.RecorderContext(context.Background())
}

// RecorderContext is like Recorder but appends under ctx.
func (j *Journal) RecorderContext(ctx context.Context) dispatch.Factory {
	return func(dispatch.API) dispatch.Interceptor {
		return dispatch.InterceptorFunc(func(a action.Action, next dispatch.Next) error {
			if _, err := j.Append(ctx, a); err != nil {
				return err
			}
			return next(a)
		})
	}
}
