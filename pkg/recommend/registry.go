package recommend

import (
	"context"
	"errors"
	"sync"
)

// Loader builds an Engine from artifacts.
type Loader func(ctx context.Context) (*Engine, error)

// Registry holds the process-wide Engine. The loader runs until one attempt
// completes; its result, including a failure, is cached for the life of the
// process. An attempt cut short by the caller's context cancellation or
// deadline is not cached.
type Registry struct {
	load Loader

	mu     sync.Mutex
	engine *Engine
	err    error
	done   bool
}

func NewRegistry(load Loader) *Registry {
	return &Registry{load: load}
}

// Get returns the Engine, loading it on first use. Concurrent first callers
// block until the single load finishes.
func (r *Registry) Get(ctx context.Context) (*Engine, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.done {
		return r.engine, r.err
	}

	e, err := r.load(ctx)
	if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		return nil, newError(KindInternal, "load engine", err)
	}

	r.done = true
	if err != nil {
		var typed *Error
		if !errors.As(err, &typed) || typed.Kind != KindLoad {
			err = newError(KindLoad, "load engine", err)
		}
		r.err = err
		return nil, err
	}

	r.engine = e
	return e, nil
}

// Loaded reports whether a load has been attempted.
func (r *Registry) Loaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

// Close releases the Engine if one was built.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.engine == nil {
		return nil
	}
	err := r.engine.Close()
	r.engine = nil
	if r.err == nil {
		r.err = newError(KindInternal, "get engine", errors.New("registry closed"))
	}
	return err
}
