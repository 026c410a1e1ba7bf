package rpi

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	mmap "github.com/edsrzf/mmap-go"
	"github.com/womat/debug"
	"golang.org/x/sys/unix"

	"github.com/Jon-Bright/gpioctl/gpio"
)

const (
	MEM_FILE     = "/dev/mem"
	GPIOMEM_FILE = "/dev/gpiomem" // Maps just the GPIO block, at offset 0. Doesn't need root.
)

// ErrAlreadyMapped is returned when the GPIO block is mapped a second time in
// the same process.
var ErrAlreadyMapped = errors.New("GPIO registers already mapped")

// gpioMapped is 1 while some RPi in this process holds a mapping of the GPIO
// block. Two *gpio.Registers over the same hardware would defeat gpio.Controller.
var gpioMapped int32

// mapMem opens file and uses mmap to map a given physical address into our address space.
// Since the mapping has to start at a page boundary, the physical address is rounded down to the
// nearest page boundary. mapMem returns the mapped memory and the offset that should be used to
// access it (=physAddr%pagesize).
func mapMem(file string, physAddr uintptr, size int) (mmap.MMap, uintptr, error) {
	f, err := os.OpenFile(file, os.O_RDWR|unix.O_SYNC, 0)
	if err != nil {
		return nil, 0, fmt.Errorf("couldn't open %s: %w", file, err)
	}
	defer f.Close() // The mapping outlives the file

	mapAddr, offs := pageAlign(physAddr, uintptr(unix.Getpagesize()))
	size += int(offs)
	debug.DebugLog.Printf("MapRegion(%s, %d, RDWR, 0, %08X), physAddr %08X", file, size, mapAddr, physAddr)
	mm, err := mmap.MapRegion(f, size, mmap.RDWR, 0, int64(mapAddr))
	if err != nil {
		return nil, 0, fmt.Errorf("couldn't map region (%08X, %v): %w", physAddr, size, err)
	}
	return mm, offs, nil
}

// pageAlign splits addr into the page it's in and its offset within that page.
func pageAlign(addr, pageSize uintptr) (page, offs uintptr) {
	mask := ^(pageSize - 1)
	return addr & mask, addr &^ mask
}

// registersAt is the one place where mapped memory becomes a *gpio.Registers.
// Nothing is checked: buf[offs:] must be the GPIO block of the running SoC,
// mapped as device memory, at least gpio.RegistersSize long, and not
// referenced through any other *gpio.Registers. Get any of that wrong and
// writes land in whatever happens to be there.
func registersAt(buf mmap.MMap, offs uintptr) *gpio.Registers {
	return (*gpio.Registers)(unsafe.Pointer(&buf[offs]))
}

func claimMapping() error {
	if !atomic.CompareAndSwapInt32(&gpioMapped, 0, 1) {
		return ErrAlreadyMapped
	}
	return nil
}

func releaseMapping() {
	atomic.StoreInt32(&gpioMapped, 0)
}
