package watcher

// Registry holds the configured watchers. It is built once during
// setup and read-only afterwards, so lookups need no locking. All
// routing (frames, teach targets, API lookups) goes through the
// registry instead of package-level state.
type Registry struct {
	watchers []*Watcher
	byID     map[string]*Watcher
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: map[string]*Watcher{}}
}

// Add registers w for lookup by its id.
func (r *Registry) Add(w *Watcher) {
	r.watchers = append(r.watchers, w)
	r.byID[w.ID()] = w
}

// All returns the watchers in registration order.
func (r *Registry) All() []*Watcher {
	out := make([]*Watcher, len(r.watchers))
	copy(out, r.watchers)
	return out
}

// Get returns the watcher with the given id.
func (r *Registry) Get(id string) (*Watcher, bool) {
	w, ok := r.byID[id]
	return w, ok
}

// Select returns the watchers matching the given ids, in
// registration order. An empty id list selects every watcher;
// unknown ids select nothing.
func (r *Registry) Select(ids []string) []*Watcher {
	if len(ids) == 0 {
		return r.All()
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	out := []*Watcher{}
	for _, w := range r.watchers {
		if want[w.id] {
			out = append(out, w)
		}
	}
	return out
}
