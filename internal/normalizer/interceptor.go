package normalizer

import (
	"fmt"
	"log/slog"

	"github.com/roach88/normware/internal/action"
	"github.com/roach88/normware/internal/dispatch"
	"github.com/roach88/normware/internal/ir"
	"github.com/roach88/normware/internal/schema"
)

// NormalizeFunc flattens data according to s.
type NormalizeFunc func(data ir.Value, s schema.Schema) (*schema.Result, error)

// Interceptor normalizes the payload of actions that carry a schema.
// It holds only configuration and is safe for concurrent use.
type Interceptor struct {
	normalize NormalizeFunc
	logger    *slog.Logger
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithNormalizeFunc replaces the normalization step.
// The default is a schema.Normalizer sharing the interceptor's logger.
func WithNormalizeFunc(fn NormalizeFunc) Option {
	return func(i *Interceptor) {
		i.normalize = fn
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(i *Interceptor) {
		i.logger = l
	}
}

// Factory returns a dispatch.Factory installing the interceptor.
func Factory(opts ...Option) dispatch.Factory {
	return func(api dispatch.API) dispatch.Interceptor {
		return New(api, opts...)
	}
}

// New creates the interceptor. The store API is accepted for the factory
// contract; the interceptor never dispatches or reads state.
func New(_ dispatch.API, opts ...Option) *Interceptor {
	i := &Interceptor{}
	for _, opt := range opts {
		opt(i)
	}
	if i.logger == nil {
		i.logger = slog.Default()
	}
	if i.normalize == nil {
		i.normalize = schema.NewNormalizer(schema.WithLogger(i.logger)).Normalize
	}
	return i
}

// Applies reports whether a would be normalized: it has meta, a valid
// schema in that meta, a payload, and is not an error action.
func Applies(a action.Action) bool {
	return skipReason(a) == ""
}

// Applies reports whether i would normalize a.
func (i *Interceptor) Applies(a action.Action) bool {
	return Applies(a)
}

// Handle forwards a normalized copy of a, or a itself when Applies is false.
// A normalization error is returned and nothing is forwarded.
func (i *Interceptor) Handle(a action.Action, next dispatch.Next) error {
	if reason := skipReason(a); reason != "" {
		i.logger.Debug("action passed through",
			"type", a.Type,
			"reason", reason,
		)
		return next(a)
	}

	result, err := i.normalize(a.Payload, a.Meta.Schema)
	if err != nil {
		return fmt.Errorf("normalize %s: %w", a.Type, err)
	}

	i.logger.Debug("action normalized",
		"type", a.Type,
		"schema", schema.Describe(a.Meta.Schema),
		"entities", result.Count(),
	)
	return next(a.WithoutSchema().WithPayload(result.Value()))
}

func skipReason(a action.Action) string {
	switch {
	case a.Meta == nil:
		return "no meta"
	case !schema.Valid(a.Meta.Schema):
		return "no schema"
	case !a.HasPayload():
		return "no payload"
	case a.Error:
		return "error action"
	default:
		return ""
	}
}

// Compile-time check that Interceptor implements dispatch.Interceptor.
var _ dispatch.Interceptor = (*Interceptor)(nil)
