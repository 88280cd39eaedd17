package tokenstore

import "net/http"

// Bound is a Store tied to one request/response pair. It satisfies the
// token sink/source interfaces consumed by the callback orchestrator and
// the refresh scheduler without threading HTTP plumbing through them.
type Bound struct {
	store *Store
	w     http.ResponseWriter
	r     *http.Request
}

// Bind ties the store to a single request/response pair.
func (s *Store) Bind(w http.ResponseWriter, r *http.Request) *Bound {
	return &Bound{store: s, w: w, r: r}
}

func (b *Bound) SetAccess(value string, maxAgeSeconds int) {
	b.store.SetAccess(b.w, b.r, value, maxAgeSeconds)
}

func (b *Bound) Access() (string, bool) {
	return b.store.Access(b.r)
}

func (b *Bound) SetRefresh(value string, maxAgeSeconds int) {
	b.store.SetRefresh(b.w, b.r, value, maxAgeSeconds)
}

func (b *Bound) Refresh() (string, bool) {
	return b.store.Refresh(b.r)
}

func (b *Bound) ClearAccess() {
	b.store.ClearAccess(b.w, b.r)
}

func (b *Bound) ClearRefresh() {
	b.store.ClearRefresh(b.w, b.r)
}

func (b *Bound) Clear() {
	b.store.Clear(b.w, b.r)
}
