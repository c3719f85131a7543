package ptr

// New returns a pointer to a copy of v.
func New[T any](v T) *T { return &v }

// ValueOr returns *p, or fallback when p is nil.
func ValueOr[T any](p *T, fallback T) T {
	if p == nil {
		return fallback
	}
	return *p
}
