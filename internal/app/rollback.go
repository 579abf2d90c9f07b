package app

// cleanups is a reverse-order cleanup stack for multi-step resource
// acquisition. Register an undo per created resource; run() unwinds whatever
// was acquired when a later step fails, disarm() commits on overall success.
//
// Typical shape:
//
//	var cu cleanups
//	defer cu.run()
//	... acquire, cu.add(undo), acquire, cu.add(undo) ...
//	cu.disarm()
type cleanups struct {
	fns []func()
}

func (c *cleanups) add(fn func()) {
	c.fns = append(c.fns, fn)
}

func (c *cleanups) disarm() {
	c.fns = nil
}

func (c *cleanups) run() {
	for i := len(c.fns) - 1; i >= 0; i-- {
		c.fns[i]()
	}
	c.fns = nil
}
