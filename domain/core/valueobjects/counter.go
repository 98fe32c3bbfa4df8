package valueobjects

// Counter is a commutative numeric aggregate. The only mutation is a signed
// increment, so concurrent and reordered deltas converge on the same total.
type Counter struct {
	value int64
}

// CounterOf wraps a value read back from storage.
func CounterOf(v int64) Counter {
	return Counter{value: v}
}

// Add returns the counter after applying delta.
func (c Counter) Add(delta int64) Counter {
	return Counter{value: c.value + delta}
}

// Value returns the current total.
func (c Counter) Value() int64 {
	return c.value
}
