package registry

import "sync"

// Handle is a live connection endpoint. Enqueue hands a marshaled event to
// the connection without blocking; it reports false when the connection can
// no longer accept messages. Implementations must be comparable (pointers),
// since handles key the reverse index.
type Handle interface {
	Enqueue(msg []byte) bool
}

// Registry is the bidirectional mapping between identity tokens and live
// connection handles. A token may own several handles at once (multiple
// tabs or devices resolving to the same address); each handle belongs to
// exactly one token. Both indices mutate atomically under one lock, and
// tokens with zero handles are pruned eagerly.
type Registry struct {
	mu       sync.RWMutex
	byToken  map[string]map[Handle]struct{}
	byHandle map[Handle]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byToken:  make(map[string]map[Handle]struct{}),
		byHandle: make(map[Handle]string),
	}
}

// Register records a token/handle pair. Registering the same handle twice is
// a no-op; re-registering under a different token moves it.
func (r *Registry) Register(token string, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.byHandle[h]; ok {
		if prev == token {
			return
		}
		r.removeLocked(prev, h)
	}

	handles, ok := r.byToken[token]
	if !ok {
		handles = make(map[Handle]struct{})
		r.byToken[token] = handles
	}
	handles[h] = struct{}{}
	r.byHandle[h] = token
}

// Unregister removes a handle from both indices. No-op on unknown handles.
func (r *Registry) Unregister(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	token, ok := r.byHandle[h]
	if !ok {
		return
	}
	r.removeLocked(token, h)
}

func (r *Registry) removeLocked(token string, h Handle) {
	delete(r.byHandle, h)
	if handles, ok := r.byToken[token]; ok {
		delete(handles, h)
		if len(handles) == 0 {
			delete(r.byToken, token)
		}
	}
}

// HandlesFor returns the live handles currently registered under a token.
func (r *Registry) HandlesFor(token string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	handles := r.byToken[token]
	out := make([]Handle, 0, len(handles))
	for h := range handles {
		out = append(out, h)
	}
	return out
}

// TokenFor returns the token a handle is registered under.
func (r *Registry) TokenFor(h Handle) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.byHandle[h]
	return token, ok
}

// All returns a snapshot of every registered handle, for full broadcasts.
func (r *Registry) All() []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Handle, 0, len(r.byHandle))
	for h := range r.byHandle {
		out = append(out, h)
	}
	return out
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.byHandle)
}
