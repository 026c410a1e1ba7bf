// Package gpio models the BCM2835/BCM2837 GPIO controller.
//
// Details are from the BCM2835 reference at
// https://www.raspberrypi.org/app/uploads/2012/02/BCM2835-ARM-Peripherals.pdf
// Page numbers are noted below.
//
// The package does no I/O of its own: Registers is an overlay for memory that
// someone else has mapped (see package rpi), and pin handles only read and write
// through it.
package gpio

import (
	"sync/atomic"
)

const (
	NumPins        = 54 // p89
	FselPinsPerReg = 10 // Pins per GPFSEL register, 3 bits each
	PinsPerBank    = 32 // Pins per GPSET/GPCLR/GPLEV register
	FselMask       = 0x7

	// Offset of the GPIO block from the peripheral base, p90.
	Offset = uintptr(0x00200000)
	// Size of Registers in bytes.
	RegistersSize = 0xa4
)

// RO is a read-only 32-bit register.
type RO struct{ v uint32 }

func (r *RO) Read() uint32 { return atomic.LoadUint32(&r.v) }

func (r *RO) cas(old, v uint32) bool { return atomic.CompareAndSwapUint32(&r.v, old, v) }

// WO is a write-only 32-bit register. Reading these returns nothing useful on
// the hardware, so there is no Read.
type WO struct{ v uint32 }

func (r *WO) Write(v uint32) { atomic.StoreUint32(&r.v, v) }

// RW is a read/write 32-bit register.
type RW struct{ v uint32 }

func (r *RW) Read() uint32   { return atomic.LoadUint32(&r.v) }
func (r *RW) Write(v uint32) { atomic.StoreUint32(&r.v, v) }

// Registers is the GPIO register block, p90. Field offsets are fixed by the
// hardware and checked by TestRegisterLayout.
type Registers struct {
	GPFSEL   [6]RW // 0x00 GPIO Function Select 0-5
	_        uint32
	GPSET    [2]WO // 0x1c GPIO Pin Output Set 0-1
	_        uint32
	GPCLR    [2]WO // 0x28 GPIO Pin Output Clear 0-1
	_        uint32
	GPLEV    [2]RO // 0x34 GPIO Pin Level 0-1
	_        uint32
	GPEDS    [2]RW // 0x40 GPIO Pin Event Detect Status 0-1
	_        uint32
	GPREN    [2]RW // 0x4c GPIO Pin Rising Edge Detect Enable 0-1
	_        uint32
	GPFEN    [2]RW // 0x58 GPIO Pin Falling Edge Detect Enable 0-1
	_        uint32
	GPHEN    [2]RW // 0x64 GPIO Pin High Detect Enable 0-1
	_        uint32
	GPLEN    [2]RW // 0x70 GPIO Pin Low Detect Enable 0-1
	_        uint32
	GPAREN   [2]RW // 0x7c GPIO Pin Async Rising Edge Detect 0-1
	_        uint32
	GPAFEN   [2]RW // 0x88 GPIO Pin Async Falling Edge Detect 0-1
	_        uint32
	GPPUD    RW    // 0x94 GPIO Pin Pull-up/down Enable
	GPPUDCLK [2]RW // 0x98 GPIO Pin Pull-up/down Enable Clock 0-1
	_        uint32
}

// fselPos returns the GPFSEL register index and bit shift for pin.
func fselPos(pin uint8) (reg int, shift uint) {
	return int(pin / FselPinsPerReg), uint(pin%FselPinsPerReg) * 3
}

// bankPos returns the GPSET/GPCLR/GPLEV register index and bit for pin.
func bankPos(pin uint8) (bank int, bit uint) {
	return int(pin / PinsPerBank), uint(pin % PinsPerBank)
}

// FunctionOf reads back the function currently selected for pin. It doesn't
// need a handle and changes nothing, so it's safe to use for diagnostics on
// pins owned by someone else.
func FunctionOf(regs *Registers, pin int) (Function, error) {
	if err := checkPin(pin); err != nil {
		return 0, err
	}
	reg, shift := fselPos(uint8(pin))
	return Function((regs.GPFSEL[reg].Read() >> shift) & FselMask), nil
}

// LevelOf samples the level register bit for pin, regardless of its function.
func LevelOf(regs *Registers, pin int) (bool, error) {
	if err := checkPin(pin); err != nil {
		return false, err
	}
	bank, bit := bankPos(uint8(pin))
	return regs.GPLEV[bank].Read()&(1<<bit) != 0, nil
}
