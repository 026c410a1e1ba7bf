package gpio

import (
	"errors"
	"testing"
)

func TestControllerExclusive(t *testing.T) {
	c := NewController(&Registers{})
	p, err := c.Pin(17)
	if err != nil {
		t.Fatalf("Pin(17): %v", err)
	}
	if !c.InUse(17) {
		t.Errorf("InUse(17), got: false, want: true")
	}
	if _, err := c.Pin(17); !errors.Is(err, ErrPinInUse) {
		t.Errorf("second Pin(17), got: %v, want: ErrPinInUse", err)
	}

	// The claim follows the pin through transitions.
	in := p.IntoInput()
	if _, err := c.Pin(17); !errors.Is(err, ErrPinInUse) {
		t.Errorf("Pin(17) after transition, got: %v, want: ErrPinInUse", err)
	}

	in.Release()
	if c.InUse(17) {
		t.Errorf("InUse(17) after Release, got: true, want: false")
	}
	if _, err := c.Pin(17); err != nil {
		t.Errorf("Pin(17) after Release: %v", err)
	}
}

func TestControllerRange(t *testing.T) {
	c := NewController(&Registers{})
	for _, n := range []int{-1, 54, 64} {
		if _, err := c.Pin(n); !errors.Is(err, ErrPinRange) {
			t.Errorf("Pin(%d), got: %v, want: ErrPinRange", n, err)
		}
		if c.InUse(n) {
			t.Errorf("InUse(%d), got: true", n)
		}
	}
	if _, err := c.Pin(53); err != nil {
		t.Errorf("Pin(53): %v", err)
	}
}

func TestControllerSharesRegisters(t *testing.T) {
	regs := &Registers{}
	c := NewController(regs)
	if c.Registers() != regs {
		t.Fatalf("Registers returned a different block")
	}
	p, _ := c.Pin(40)
	p.IntoOutput().Set()
	if regs.GPSET[1].v != 1<<8 {
		t.Errorf("GPSET[1], got: %08X, want: %08X", regs.GPSET[1].v, 1<<8)
	}
}
