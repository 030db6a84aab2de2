package system

// Chunk is a contiguous slot range handed to one invocation of an update function.
type Chunk struct {
	Start uint32
	Count uint32
}

// Chunks splits [0, n) into contiguous ranges of at most granularity slots.
// A zero granularity yields a single chunk. n == 0 yields none.
func Chunks(n, granularity uint32) []Chunk {
	if n == 0 {
		return nil
	}
	if granularity == 0 || granularity >= n {
		return []Chunk{{Start: 0, Count: n}}
	}
	out := make([]Chunk, 0, (n+granularity-1)/granularity)
	for start := uint32(0); start < n; start += granularity {
		count := granularity
		if n-start < count {
			count = n - start
		}
		out = append(out, Chunk{Start: start, Count: count})
	}
	return out
}
