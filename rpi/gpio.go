package rpi

import (
	"fmt"

	"github.com/womat/debug"

	"github.com/Jon-Bright/gpioctl/gpio"
)

// InitGPIO maps the GPIO registers. dev is GPIOMEM_FILE, which maps just the
// GPIO block, or MEM_FILE, which needs root and the right peripheral base.
// Simulated boards ignore dev. Calling InitGPIO again is a no-op.
func (rp *RPi) InitGPIO(dev string) error {
	if rp.ctrl != nil {
		return nil
	}
	if rp.sim {
		rp.gpio = &gpio.Registers{}
		rp.ctrl = gpio.NewController(rp.gpio)
		debug.InfoLog.Printf("using simulated GPIO registers")
		return nil
	}

	var addr uintptr
	switch dev {
	case GPIOMEM_FILE:
	case MEM_FILE:
		addr = rp.hw.periphBase + gpio.Offset
	default:
		return fmt.Errorf("don't know how to map GPIO registers from %s", dev)
	}

	if err := claimMapping(); err != nil {
		return err
	}
	buf, offs, err := mapMem(dev, addr, gpio.RegistersSize)
	if err != nil {
		releaseMapping()
		return fmt.Errorf("couldn't map GPIO registers at %08X: %w", addr, err)
	}
	debug.DebugLog.Printf("Got gpioBuf[%d], offset %d", len(buf), offs)
	rp.gpioBuf = buf
	rp.gpio = registersAt(buf, offs)
	rp.ctrl = gpio.NewController(rp.gpio)
	return nil
}

// Controller returns the pin controller for the board's registers, or nil if
// InitGPIO hasn't succeeded.
func (rp *RPi) Controller() *gpio.Controller {
	return rp.ctrl
}

// Registers returns the board's GPIO registers, or nil if InitGPIO hasn't
// succeeded. Only for read-only diagnostics and simulation; pins should be
// driven through Controller.
func (rp *RPi) Registers() *gpio.Registers {
	return rp.gpio
}

// Close unmaps the GPIO registers. Any pin handles still around point at
// unmapped memory afterwards. Pin functions and levels are left as they are.
func (rp *RPi) Close() error {
	rp.ctrl = nil
	rp.gpio = nil
	if rp.gpioBuf == nil {
		return nil
	}
	err := rp.gpioBuf.Unmap()
	rp.gpioBuf = nil
	releaseMapping()
	if err != nil {
		return fmt.Errorf("couldn't unmap GPIO registers: %w", err)
	}
	return nil
}
