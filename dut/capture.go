package dut

// Capture accumulates the outputs of a run.
type Capture struct {
	Data   []uint64
	Ms     []uint64
	Extra  map[string][]uint64
	Errors int

	// Positions says where every captured word was seen: the clock cycle
	// for clocked benches, the out_nd line for traces and the word index
	// for message streams.
	Positions []int
}

// NewCapture creates an empty capture for the given extra signals.
func NewCapture(extraSignals ...string) *Capture {
	c := &Capture{Extra: make(map[string][]uint64)}
	for _, s := range extraSignals {
		c.Extra[s] = nil
	}

	return c
}

// Record appends one output seen at the given cycle.
func (c *Capture) Record(pos int, out *Output) {
	if out == nil {
		return
	}

	if out.Error {
		c.Errors++
	}

	if !out.Valid {
		return
	}

	c.Data = append(c.Data, out.Data)
	c.Ms = append(c.Ms, out.M)
	c.Positions = append(c.Positions, pos)

	if c.Extra == nil {
		c.Extra = make(map[string][]uint64)
	}

	for name, v := range out.Extra {
		c.Extra[name] = append(c.Extra[name], v)
	}
}

// Len returns the number of captured words.
func (c *Capture) Len() int {
	return len(c.Data)
}

// Reset drops everything captured so far.
func (c *Capture) Reset() {
	c.Data = nil
	c.Ms = nil
	c.Positions = nil
	c.Errors = 0
	for name := range c.Extra {
		c.Extra[name] = nil
	}
}
