package gpio

// Controller hands out at most one handle per pin of a register block. Like
// the handles, it has no lock.
type Controller struct {
	regs    *Registers
	claimed uint64 // bit n set while a handle for pin n exists
}

// NewController wraps regs. There should be only one Controller per register
// block; two would each happily hand out the same pin.
func NewController(regs *Registers) *Controller {
	return &Controller{regs: regs}
}

// Registers returns the block the controller was created with.
func (c *Controller) Registers() *Registers { return c.regs }

// Pin returns an uninitialized handle for pin n. It fails with ErrPinRange
// for n outside 0..NumPins-1 and with ErrPinInUse if a handle for n hasn't
// been released yet.
func (c *Controller) Pin(n int) (*UninitializedPin, error) {
	if err := checkPin(n); err != nil {
		return nil, err
	}
	if c.InUse(n) {
		return nil, &PinError{Pin: n, Op: "open", Err: ErrPinInUse}
	}
	c.claimed |= 1 << uint(n)
	return &UninitializedPin{pin{n: uint8(n), regs: c.regs, ctrl: c}}, nil
}

// InUse reports whether a handle for pin n is currently out.
func (c *Controller) InUse(n int) bool {
	if n < 0 || n >= NumPins {
		return false
	}
	return c.claimed&(1<<uint(n)) != 0
}

func (c *Controller) unclaim(n uint8) {
	c.claimed &^= 1 << n
}
