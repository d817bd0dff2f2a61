// Package api is the handle-based surface over volume contexts. No
// operation returns an error or lets a panic escape: failures are reported
// once through the library's ErrorSink and the operation returns a zero
// value.
package api

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"sparsevol/internal/models"
	"sparsevol/pkg/march"
	"sparsevol/pkg/metrics"
	"sparsevol/pkg/volume"
)

// Handle identifies a context created by a Library.
type Handle uuid.UUID

// NilHandle never names a live context.
var NilHandle = Handle(uuid.Nil)

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

// Option configures a Library.
type Option func(*Library)

// WithErrorSink sets the sink that receives failures.
func WithErrorSink(sink ErrorSink) Option {
	return func(l *Library) {
		l.sink = sink
	}
}

// WithLogger sets the logger shared by the library and its contexts.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Library) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithContextOptions adds options applied to every context created.
func WithContextOptions(opts ...volume.Option) Option {
	return func(l *Library) {
		l.contextOpts = append(l.contextOpts, opts...)
	}
}

// Library owns a set of volume contexts addressed by handle. The handle
// table is safe for concurrent use; a single context follows the
// concurrency rules of volume.Context.
type Library struct {
	mu          sync.RWMutex
	contexts    map[Handle]*volume.Context
	sink        ErrorSink
	logger      *zap.Logger
	contextOpts []volume.Option
}

// New creates a Library with no contexts.
func New(opts ...Option) *Library {
	l := &Library{
		contexts: make(map[Handle]*volume.Context),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SetErrorSink replaces the error sink. A nil sink drops reports.
func (l *Library) SetErrorSink(sink ErrorSink) {
	l.mu.Lock()
	l.sink = sink
	l.mu.Unlock()
}

// SetErrorFunc replaces the error sink with fn. A nil fn drops reports.
func (l *Library) SetErrorFunc(fn func(code ErrorCode, message string)) {
	if fn == nil {
		l.SetErrorSink(nil)
		return
	}
	l.SetErrorSink(ErrorFunc(fn))
}

// Len returns the number of live contexts.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.contexts)
}

func (l *Library) report(code ErrorCode, message string) {
	metrics.InstrumentAPIError(code.String())
	l.logger.Debug("volume api error", zap.Stringer("code", code), zap.String("message", message))

	l.mu.RLock()
	sink := l.sink
	l.mu.RUnlock()
	if sink != nil {
		sink.ReportError(code, message)
	}
}

// recoverPanic turns a panic in op into one Unknown report. It must be
// deferred directly.
func (l *Library) recoverPanic(op string) {
	if r := recover(); r != nil {
		l.logger.Error("recovered panic", zap.String("op", op), zap.Any("panic", r), zap.Stack("stack"))
		l.report(Unknown, fmt.Sprintf("%s: %v", op, r))
	}
}

func (l *Library) lookup(h Handle) (*volume.Context, bool) {
	l.mu.RLock()
	ctx, ok := l.contexts[h]
	l.mu.RUnlock()
	if !ok {
		l.report(InvalidContext, fmt.Sprintf("invalid context handle %s", h))
	}
	return ctx, ok
}

// CreateContext creates an empty context and returns its handle.
func (l *Library) CreateContext() (h Handle) {
	defer l.recoverPanic("createContext")

	opts := append([]volume.Option{volume.WithLogger(l.logger)}, l.contextOpts...)
	ctx := volume.NewContext(opts...)
	id := Handle(uuid.New())

	l.mu.Lock()
	l.contexts[id] = ctx
	l.mu.Unlock()
	return id
}

// ReleaseContext drops the context and the volume it owns.
func (l *Library) ReleaseContext(h Handle) {
	defer l.recoverPanic("releaseContext")

	l.mu.Lock()
	_, ok := l.contexts[h]
	delete(l.contexts, h)
	l.mu.Unlock()
	if !ok {
		l.report(InvalidContext, fmt.Sprintf("invalid context handle %s", h))
	}
}

// LoadVolume loads the first scalar grid of the file at path into the
// context. It returns true iff a scalar grid was found and loaded. Read
// failures are reported as Unknown; a file without a scalar grid is not an
// error.
func (l *Library) LoadVolume(h Handle, path string) (ok bool) {
	defer l.recoverPanic("loadVolume")

	ctx, found := l.lookup(h)
	if !found {
		return false
	}
	ok, err := ctx.Load(path)
	if err != nil {
		l.report(Unknown, err.Error())
		return false
	}
	return ok
}

// GetBound returns the world-space bound of the loaded volume, or the zero
// Bound.
func (l *Library) GetBound(h Handle) (b models.Bound) {
	defer l.recoverPanic("getBound")

	ctx, found := l.lookup(h)
	if !found {
		return models.Bound{}
	}
	return ctx.Bound()
}

// GetMaxValue returns the largest active value of the loaded volume.
func (l *Library) GetMaxValue(h Handle) (v float64) {
	defer l.recoverPanic("getMaxValue")

	ctx, found := l.lookup(h)
	if !found {
		return 0
	}
	return ctx.MaxValue()
}

// EvalScalar samples the loaded volume at a world-space point.
func (l *Library) EvalScalar(h Handle, p mgl64.Vec3) (v float64) {
	defer l.recoverPanic("evalScalar")

	ctx, found := l.lookup(h)
	if !found {
		return 0
	}
	return ctx.Sample(p)
}

// MarchVolume marches the ray origin + t*dir over [tmin, tmax] through the
// loaded volume, calling fn at every sample time until fn returns false.
func (l *Library) MarchVolume(h Handle, origin, dir mgl64.Vec3, tmin, tmax, step float64, fn func(t float64) bool) {
	defer l.recoverPanic("marchVolume")

	ctx, found := l.lookup(h)
	if !found {
		return
	}
	if fn == nil {
		l.report(InvalidArgument, "march callback is nil")
		return
	}

	ray := models.Ray{Origin: origin, Direction: dir, TMin: tmin, TMax: tmax}
	if _, err := ctx.March(ray, step, fn); err != nil {
		if errors.Is(err, march.ErrInvalidArgument) {
			l.report(InvalidArgument, err.Error())
			return
		}
		l.report(Unknown, err.Error())
	}
}
