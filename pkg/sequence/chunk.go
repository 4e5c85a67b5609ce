package sequence

// chunk is a reserved, in-process, half-open range of counter values
// [next, end), drawn by stepping delta. next is the value handed out on
// the following draw.
type chunk struct {
	next  int64
	end   int64
	delta int64

	// capacity is the value count this chunk was reserved with, used to
	// compute the prefetch watermark.
	capacity int64
}

// remaining returns how many values are still drawable.
func (c *chunk) remaining() int64 {
	if c.delta <= 0 || c.next >= c.end {
		return 0
	}
	return (c.end - c.next) / c.delta
}

// draw takes up to n values from the chunk.
func (c *chunk) draw(n int64) []int64 {
	avail := c.remaining()
	if avail < n {
		n = avail
	}
	values := make([]int64, 0, n)
	for i := int64(0); i < n; i++ {
		values = append(values, c.next)
		c.next += c.delta
	}
	return values
}

// fillFraction returns the remaining share of the chunk's capacity.
func (c *chunk) fillFraction() float64 {
	if c.capacity <= 0 {
		return 0
	}
	return float64(c.remaining()) / float64(c.capacity)
}

// clip drops every value above max. Returns false if nothing remains.
func (c *chunk) clip(max int64) bool {
	if c.next > max {
		c.next = c.end
		return false
	}
	// Highest drawable value <= max, stepped from next.
	last := c.next + ((max-c.next)/c.delta)*c.delta
	if last+c.delta < c.end {
		c.end = last + c.delta
	}
	return c.remaining() > 0
}
