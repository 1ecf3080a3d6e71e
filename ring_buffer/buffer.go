package ring_buffer

// Buffer is a fixed-capacity ring of int16 samples. It retains the most recent
// audio while speech is still being confirmed, so the frames that armed the
// detector can be written to the front of a capture instead of being lost.
type Buffer struct {
	buffer []int16
	head   int
	count  int
}

func New(capacity int) *Buffer {
	return &Buffer{
		buffer: make([]int16, capacity),
		head:   0,
	}
}

func (r *Buffer) Add(samples []int16) {
	for _, s := range samples {
		r.buffer[r.head] = s
		r.head = (r.head + 1) % len(r.buffer)

		if r.count < len(r.buffer) {
			r.count++
		}
	}
}

// Samples returns the retained samples in arrival order, oldest first.
func (r *Buffer) Samples() []int16 {
	samples := make([]int16, r.count)

	start := (r.head - r.count + len(r.buffer)) % len(r.buffer)
	for i := 0; i < r.count; i++ {
		samples[i] = r.buffer[(start+i)%len(r.buffer)]
	}

	return samples
}

func (r *Buffer) Len() int {
	return r.count
}

func (r *Buffer) Cap() int {
	return len(r.buffer)
}

func (r *Buffer) Clear() {
	r.head = 0
	r.count = 0
}
