package rpi

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/womat/debug"

	"github.com/Jon-Bright/gpioctl/gpio"
)

// RPi is a Raspberry Pi board: which SoC it has, where its peripherals are and,
// once InitGPIO has been called, its GPIO registers.
type RPi struct {
	hw      *hw
	sim     bool
	gpioBuf mmap.MMap
	gpio    *gpio.Registers
	ctrl    *gpio.Controller
}

// NewRPi detects which board we're running on. If the device tree has no
// revision, it asks the firmware instead.
func NewRPi() (*RPi, error) {
	rp, err := newRPi(REVISION_FILE)
	if err == nil || !errors.Is(err, os.ErrNotExist) {
		return rp, err
	}
	ver, ferr := FirmwareRevision()
	if ferr != nil {
		debug.DebugLog.Printf("firmware revision: %v", ferr)
		return nil, err
	}
	hw, err := lookupRevision(ver)
	if err != nil {
		return nil, fmt.Errorf("couldn't detect RPi hardware: %w", err)
	}
	return &RPi{hw: hw}, nil
}

func newRPi(revFile string) (*RPi, error) {
	hw, err := detectHardware(revFile)
	if err != nil {
		return nil, fmt.Errorf("couldn't detect RPi hardware: %w", err)
	}
	return &RPi{hw: hw}, nil
}

// NewRPiAt skips detection and uses the given peripheral base address.
func NewRPiAt(periphBase uintptr) *RPi {
	return &RPi{
		hw: &hw{
			hwType:     RPI_HWVER_TYPE_UNKNOWN,
			periphBase: periphBase,
			name:       fmt.Sprintf("peripherals at %08X", periphBase),
		},
	}
}

// NewSimulated returns a board whose GPIO registers are plain memory. Nothing
// is driven, levels only change when something writes GPLEV.
func NewSimulated() *RPi {
	return &RPi{
		hw: &hw{
			hwType:     RPI_HWVER_TYPE_UNKNOWN,
			periphBase: PERIPHERAL_BASE,
			name:       "simulated",
		},
		sim: true,
	}
}

// Name returns a human-readable board name.
func (rp *RPi) Name() string { return rp.hw.name }

// PeriphBase returns the physical address of the peripheral block.
func (rp *RPi) PeriphBase() uintptr { return rp.hw.periphBase }

// Simulated reports whether this board was created by NewSimulated.
func (rp *RPi) Simulated() bool { return rp.sim }

type hw struct {
	hwType     int
	periphBase uintptr
	name       string
}

const (
	RPI_HWVER_TYPE_UNKNOWN = iota
	RPI_HWVER_TYPE_PI1
	RPI_HWVER_TYPE_PI2
	RPI_HWVER_TYPE_PI4

	PERIPH_BASE_RPI  = 0x20000000
	PERIPH_BASE_RPI2 = 0x3f000000
	PERIPH_BASE_RPI4 = 0xfe000000

	// Physical addresses range from 0x3F000000 to 0x3FFFFFFF for peripherals on the BCM2836/7.
	// The bus addresses in the datasheet start at 0x7E000000, so a peripheral documented at bus
	// address 0x7Ennnnnn is at physical address 0x3Fnnnnnn.
	PERIPHERAL_BASE = PERIPH_BASE_RPI2
	GPIO_BASE       = PERIPHERAL_BASE + gpio.Offset // 0x7E200000 on the bus

	REVISION_FILE = "/proc/device-tree/system/linux,revision"
)

// Detect which version of a Raspberry Pi we're running on, from the big-endian
// revision code the firmware puts in the device tree.
func detectHardware(revFile string) (*hw, error) {
	f, err := os.Open(revFile)
	if err != nil {
		return nil, fmt.Errorf("couldn't open linux revision file: %w", err)
	}
	b := make([]byte, 4)
	n, err := f.Read(b)
	f.Close() // Ignore error
	if err != nil {
		return nil, fmt.Errorf("couldn't read revision: %w", err)
	}
	if n != 4 {
		return nil, fmt.Errorf("revision file got %d instead of 4 bytes", n)
	}
	r := bytes.NewReader(b)
	var ver uint32
	err = binary.Read(r, binary.BigEndian, &ver)
	if err != nil {
		return nil, fmt.Errorf("somehow couldn't convert 4 bytes to a uint32: %w", err)
	}
	return lookupRevision(ver)
}

func lookupRevision(ver uint32) (*hw, error) {
	if rp, ok := rasPiVariants[ver]; ok {
		return &rp, nil
	}
	return nil, fmt.Errorf("couldn't identify hardware revision %X", ver)
}

var rasPiVariants = map[uint32]hw{
	//
	// Raspberry Pi 400
	//
	0xC03130: {
		hwType:     RPI_HWVER_TYPE_PI4,
		periphBase: PERIPH_BASE_RPI4,
		name:       "Pi 400 - 4GB v1.0",
	},
	//
	// Raspberry Pi 4
	//
	0xA03111: {
		hwType:     RPI_HWVER_TYPE_PI4,
		periphBase: PERIPH_BASE_RPI4,
		name:       "Pi 4 Model B - 1GB v1.1",
	},
	0xB03111: {
		hwType:     RPI_HWVER_TYPE_PI4,
		periphBase: PERIPH_BASE_RPI4,
		name:       "Pi 4 Model B - 2GB v.1.1",
	},
	0xC03111: {
		hwType:     RPI_HWVER_TYPE_PI4,
		periphBase: PERIPH_BASE_RPI4,
		name:       "Pi 4 Model B - 4GB v1.1",
	},
	0xA03112: {
		hwType:     RPI_HWVER_TYPE_PI4,
		periphBase: PERIPH_BASE_RPI4,
		name:       "Pi 4 Model B - 1GB v1.2",
	},
	0xB03112: {
		hwType:     RPI_HWVER_TYPE_PI4,
		periphBase: PERIPH_BASE_RPI4,
		name:       "Pi 4 Model B - 2GB v.1.2",
	},
	0xC03112: {
		hwType:     RPI_HWVER_TYPE_PI4,
		periphBase: PERIPH_BASE_RPI4,
		name:       "Pi 4 Model B - 4GB v1.2",
	},
	0xD03114: {
		hwType:     RPI_HWVER_TYPE_PI4,
		periphBase: PERIPH_BASE_RPI4,
		name:       "Pi 4 Model B - 8GB v1.2",
	},
	0xB03114: {
		hwType:     RPI_HWVER_TYPE_PI4,
		periphBase: PERIPH_BASE_RPI4,
		name:       "Pi 4 Model B - 2GB v1.4",
	},
	//
	// Model B Rev 1.0
	//
	0x02: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model B",
	},
	0x03: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model B",
	},

	//
	// Model B Rev 2.0
	//
	0x04: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model B",
	},
	0x05: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model B",
	},
	0x06: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model B",
	},

	//
	// Model A
	//
	0x07: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model A",
	},
	0x08: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model A",
	},
	0x09: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model A",
	},

	//
	// Model B
	//
	0x0d: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model B",
	},
	0x0e: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model B",
	},
	0x0f: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model B",
	},

	//
	// Model B+
	//
	0x10: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model B+",
	},
	0x13: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model B+",
	},
	0x900032: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model B+",
	},

	//
	// Compute Module
	//
	0x11: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Compute Module 1",
	},
	0x14: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Compute Module 1",
	},

	//
	// Pi Zero
	//
	0x900092: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Pi Zero v1.2",
	},
	0x900093: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Pi Zero v1.3",
	},
	0x920093: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Pi Zero v1.3",
	},
	0x9200c1: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Pi Zero W v1.1",
	},
	0x9000c1: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Pi Zero W v1.1",
	},

	//
	// Model A+
	//
	0x12: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model A+",
	},
	0x15: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model A+",
	},
	0x900021: {
		hwType:     RPI_HWVER_TYPE_PI1,
		periphBase: PERIPH_BASE_RPI,
		name:       "Model A+",
	},

	//
	// Pi 2 Model B
	//
	0xA01041: {
		hwType:     RPI_HWVER_TYPE_PI2,
		periphBase: PERIPH_BASE_RPI2,
		name:       "Pi 2",
	},
	0xA01040: {
		hwType:     RPI_HWVER_TYPE_PI2,
		periphBase: PERIPH_BASE_RPI2,
		name:       "Pi 2",
	},
	0xA21041: {
		hwType:     RPI_HWVER_TYPE_PI2,
		periphBase: PERIPH_BASE_RPI2,
		name:       "Pi 2",
	},
	//
	// Pi 2 with BCM2837
	//
	0xA22042: {
		hwType:     RPI_HWVER_TYPE_PI2,
		periphBase: PERIPH_BASE_RPI2,
		name:       "Pi 2",
	},
	//
	// Pi 3 Model B
	//
	0xA020D3: {
		hwType:     RPI_HWVER_TYPE_PI2,
		periphBase: PERIPH_BASE_RPI2,
		name:       "Pi 3 B+",
	},
	0xA02082: {
		hwType:     RPI_HWVER_TYPE_PI2,
		periphBase: PERIPH_BASE_RPI2,
		name:       "Pi 3",
	},
	0xA02083: {
		hwType:     RPI_HWVER_TYPE_PI2,
		periphBase: PERIPH_BASE_RPI2,
		name:       "Pi 3",
	},
	0xA22082: {
		hwType:     RPI_HWVER_TYPE_PI2,
		periphBase: PERIPH_BASE_RPI2,
		name:       "Pi 3",
	},
	0xA22083: {
		hwType:     RPI_HWVER_TYPE_PI2,
		periphBase: PERIPH_BASE_RPI2,
		name:       "Pi 3",
	},
	0x9020e0: {
		hwType:     RPI_HWVER_TYPE_PI2,
		periphBase: PERIPH_BASE_RPI2,
		name:       "Model 3 A+",
	},

	//
	// Pi Compute Module 3
	//
	0xA020A0: {
		hwType:     RPI_HWVER_TYPE_PI2,
		periphBase: PERIPH_BASE_RPI2,
		name:       "Compute Module 3/L3",
	},
	//
	// Pi Compute Module 3+
	//
	0xA02100: {
		hwType:     RPI_HWVER_TYPE_PI2,
		periphBase: PERIPH_BASE_RPI2,
		name:       "Compute Module 3+",
	},
	//
	// Pi Zero 2 W
	//
	0x902120: {
		hwType:     RPI_HWVER_TYPE_PI2,
		periphBase: PERIPH_BASE_RPI2,
		name:       "Pi Zero 2 W v1.0",
	},
	//
	// Pi 3 Model B+ (second revision code)
	//
	0xA020D4: {
		hwType:     RPI_HWVER_TYPE_PI2,
		periphBase: PERIPH_BASE_RPI2,
		name:       "Pi 3 B+",
	},
}
