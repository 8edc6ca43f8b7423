package llm

import (
	"context"
	"fmt"
	"sync"
)

var _ Client = (*Router)(nil)

// Router sends each call to the backend registered for its format. Calls
// carrying images go to the vision backend when one is registered.
type Router struct {
	mu       sync.RWMutex
	backends map[Format]Client
	vision   Client
}

func NewRouter() *Router {
	return &Router{backends: make(map[Format]Client)}
}

func (r *Router) Register(format Format, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[format] = c
}

func (r *Router) RegisterVision(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.vision = c
}

func (r *Router) Backend(format Format) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.backends[format]
	return c, ok
}

func (r *Router) Invoke(ctx context.Context, call *Call) (*Reply, error) {
	if call.HasImage() {
		r.mu.RLock()
		vision := r.vision
		r.mu.RUnlock()
		if vision != nil {
			return vision.Invoke(ctx, call)
		}
	}

	c, ok := r.Backend(call.Format)
	if !ok {
		return nil, fmt.Errorf("route call: %w: no backend for format %q", ErrUnavailable, call.Format)
	}
	return c.Invoke(ctx, call)
}
