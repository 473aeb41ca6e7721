package recycler

import "github.com/dolthub/swiss"

// Registry tracks every page currently available as a recycle target,
// keyed by its buffer's base address. It collapses the generation-age
// target arrays of the original driver
// (_examples/original_source/zPageRecycler.hpp's `_targets`/`_ntargets`
// per ZPageAge) into a single flat map, since this package does not
// model generation age — that bookkeeping belongs to the GC, not the
// allocator family.
type Registry struct {
	pages *swiss.Map[uintptr, *Page]
}

// NewRegistry creates an empty Registry sized for an expected number of
// concurrently-tracked pages.
func NewRegistry(expectedPages int) *Registry {
	return &Registry{pages: swiss.NewMap[uintptr, *Page](uint32(expectedPages))}
}

// Add registers page as a recycle target.
func (r *Registry) Add(page *Page) {
	r.pages.Put(page.base, page)
}

// Remove drops page from the registry, e.g. once it has been exhausted
// and the caller has moved on to another target.
func (r *Registry) Remove(page *Page) {
	r.pages.Delete(page.base)
}

// Get looks up a registered page by its buffer's base address.
func (r *Registry) Get(base uintptr) (*Page, bool) {
	return r.pages.Get(base)
}

// Count returns the number of pages currently registered.
func (r *Registry) Count() int {
	return r.pages.Count()
}

// Exhausted returns every registered page whose allocator has reported
// exhaustion, so the caller can retire them in bulk.
func (r *Registry) Exhausted() []*Page {
	var out []*Page
	r.pages.Iter(func(_ uintptr, p *Page) bool {
		if p.Exhausted() {
			out = append(out, p)
		}
		return false
	})
	return out
}
