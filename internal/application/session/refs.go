package session

import "github.com/bryanwahyu/agroscan/internal/domain/diagnosis"

// refCounter tracks how many holders (pending list, history records, the
// active view, an in-flight analysis) keep a displayable reference alive.
// Not safe for concurrent use; the controller mutex guards it.
type refCounter struct {
	counts map[diagnosis.ImageRef]int
}

func newRefCounter() *refCounter {
	return &refCounter{counts: make(map[diagnosis.ImageRef]int)}
}

func (r *refCounter) retain(ref diagnosis.ImageRef) {
	if ref == "" {
		return
	}
	r.counts[ref]++
}

// release drops one hold and reports whether the blob is now unreferenced.
func (r *refCounter) release(ref diagnosis.ImageRef) bool {
	n, ok := r.counts[ref]
	if !ok {
		return false
	}
	if n <= 1 {
		delete(r.counts, ref)
		return true
	}
	r.counts[ref] = n - 1
	return false
}

func (r *refCounter) held(ref diagnosis.ImageRef) bool {
	_, ok := r.counts[ref]
	return ok
}

func (r *refCounter) len() int { return len(r.counts) }

// drain forgets every reference and returns them for release.
func (r *refCounter) drain() []diagnosis.ImageRef {
	out := make([]diagnosis.ImageRef, 0, len(r.counts))
	for ref := range r.counts {
		out = append(out, ref)
	}
	r.counts = make(map[diagnosis.ImageRef]int)
	return out
}
