package gpio

import (
	"fmt"
)

// A pin moves through its configurations as a series of handles, one type per
// configuration:
//
//	UninitializedPin -> InputPin
//	UninitializedPin -> OutputPin
//	InputPin/OutputPin/AltPin -> AltPin
//
// Each type only has the methods that make sense for it, so there is no way to
// call Set on an input or IsHigh on an output. A transition consumes its
// receiver: the old handle is dead afterwards and using it panics.
//
// None of the handles are safe for concurrent use. The registers have no lock
// and two goroutines doing read-modify-write on the same GPFSEL register will
// lose updates; callers must serialise.

type pin struct {
	n    uint8
	regs *Registers
	ctrl *Controller // nil if not obtained from a Controller
}

// Number returns the BCM pin number of the handle.
func (p *pin) Number() int { return int(p.n) }

// Release gives the pin back to its Controller so that a new handle can be
// obtained for it. The pin's registers are left as they are. The handle is
// dead afterwards.
func (p *pin) Release() {
	q := p.take()
	if q.ctrl != nil {
		q.ctrl.unclaim(q.n)
	}
}

func (p *pin) live() {
	if p.regs == nil {
		panic(fmt.Sprintf("gpio: pin %d handle used after transition or release", p.n))
	}
}

// take returns a copy of p and kills p.
func (p *pin) take() pin {
	p.live()
	q := *p
	p.regs = nil
	return q
}

// selectFunction clears the pin's 3-bit field in its GPFSEL register, then ORs
// in f. These are two separate writes, as on the hardware there's no atomic
// replace.
func (p *pin) selectFunction(f Function) {
	reg, shift := fselPos(p.n)
	r := &p.regs.GPFSEL[reg]
	r.Write(r.Read() &^ (FselMask << shift))
	r.Write(r.Read() | uint32(f)<<shift)
}

// intoAlternate is shared by every state that can move to AltPin.
func (p *pin) intoAlternate(f Function) (*AltPin, error) {
	p.live()
	if !f.IsAlternate() {
		return nil, &PinError{Pin: int(p.n), Op: "select " + f.String(), Err: ErrNotAlternate}
	}
	q := p.take()
	q.selectFunction(f)
	return &AltPin{pin: q, fn: f}, nil
}

// UninitializedPin is a pin whose function hasn't been chosen yet.
type UninitializedPin struct {
	pin
}

// NewPin returns a handle for pin n on regs. Unlike Controller.Pin it does not
// track ownership; the caller must make sure no other handle for n exists.
func NewPin(regs *Registers, n int) (*UninitializedPin, error) {
	if err := checkPin(n); err != nil {
		return nil, err
	}
	return &UninitializedPin{pin{n: uint8(n), regs: regs}}, nil
}

// IntoInput selects the input function for the pin.
func (p *UninitializedPin) IntoInput() *InputPin {
	q := p.take()
	q.selectFunction(Input)
	return &InputPin{q}
}

// IntoOutput selects the output function for the pin.
func (p *UninitializedPin) IntoOutput() *OutputPin {
	q := p.take()
	q.selectFunction(Output)
	return &OutputPin{q}
}

// IntoAlternate isn't supported: an alternate function has to be entered from
// InputPin or OutputPin. It always returns ErrUnsupported, touches no
// registers and leaves p usable.
func (p *UninitializedPin) IntoAlternate(f Function) (*AltPin, error) {
	p.live()
	return nil, &PinError{Pin: int(p.n), Op: "select " + f.String() + " from uninitialized", Err: ErrUnsupported}
}

// InputPin is a pin configured as an input.
type InputPin struct {
	pin
}

// IsHigh reports whether the pin's bit in its GPLEV register is set.
func (p *InputPin) IsHigh() bool {
	p.live()
	bank, bit := bankPos(p.n)
	return p.regs.GPLEV[bank].Read()&(1<<bit) != 0
}

// IsLow is !IsHigh.
func (p *InputPin) IsLow() bool { return !p.IsHigh() }

// IntoAlternate selects alternate function f. If f isn't an alternate
// function, ErrNotAlternate is returned and p stays usable.
func (p *InputPin) IntoAlternate(f Function) (*AltPin, error) {
	return p.intoAlternate(f)
}

// OutputPin is a pin configured as an output. There's deliberately no way to
// read it: what was last written with Set or Clear is what the pin is driving.
type OutputPin struct {
	pin
}

// Set drives the pin high with a single write to its GPSET register.
func (p *OutputPin) Set() {
	p.live()
	bank, bit := bankPos(p.n)
	p.regs.GPSET[bank].Write(1 << bit)
}

// Clear drives the pin low with a single write to its GPCLR register.
func (p *OutputPin) Clear() {
	p.live()
	bank, bit := bankPos(p.n)
	p.regs.GPCLR[bank].Write(1 << bit)
}

// IntoAlternate selects alternate function f. If f isn't an alternate
// function, ErrNotAlternate is returned and p stays usable.
func (p *OutputPin) IntoAlternate(f Function) (*AltPin, error) {
	return p.intoAlternate(f)
}

// AltPin is a pin routed to one of its six alternate hardware functions.
type AltPin struct {
	pin
	fn Function
}

// Function returns the alternate function last selected.
func (p *AltPin) Function() Function { return p.fn }

// IntoAlternate re-selects the pin's alternate function.
func (p *AltPin) IntoAlternate(f Function) (*AltPin, error) {
	return p.intoAlternate(f)
}

// SetFunctionSelect would write a raw function select value for the pin. It
// isn't implemented and always returns ErrUnsupported; use IntoAlternate.
func (p *AltPin) SetFunctionSelect(v uint32) error {
	p.live()
	return &PinError{Pin: int(p.n), Op: fmt.Sprintf("set function select %03b", v&FselMask), Err: ErrUnsupported}
}
