package analytics

// Ring is a fixed-capacity FIFO buffer. Once full, each Push evicts the
// oldest element. It is not safe for concurrent use; owners serialize access.
type Ring[T any] struct {
	buf   []T
	start int
	size  int
}

func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{buf: make([]T, capacity)}
}

func (r *Ring[T]) Push(v T) {
	if r.size < len(r.buf) {
		r.buf[(r.start+r.size)%len(r.buf)] = v
		r.size++
		return
	}
	r.buf[r.start] = v
	r.start = (r.start + 1) % len(r.buf)
}

func (r *Ring[T]) Len() int { return r.size }

func (r *Ring[T]) Cap() int { return len(r.buf) }

// At returns the i-th element, 0 being the oldest.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("analytics: ring index out of range")
	}
	return r.buf[(r.start+i)%len(r.buf)]
}

// Last copies up to n of the newest elements, oldest first.
func (r *Ring[T]) Last(n int) []T {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return nil
	}
	out := make([]T, n)
	offset := r.size - n
	for i := range out {
		out[i] = r.At(offset + i)
	}
	return out
}

// Slice copies every element, oldest first.
func (r *Ring[T]) Slice() []T {
	return r.Last(r.size)
}
