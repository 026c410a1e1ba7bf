package rpi

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// ioctl request numbers, after
// https://github.com/raspberrypi/linux/blob/rpi-5.4.y/include/uapi/asm-generic/ioctl.h

const (
	_IOC_NRBITS   uint32 = 8
	_IOC_TYPEBITS uint32 = 8
	_IOC_SIZEBITS uint32 = 14

	_IOC_NRSHIFT   = 0
	_IOC_TYPESHIFT = (_IOC_NRSHIFT + _IOC_NRBITS)
	_IOC_SIZESHIFT = (_IOC_TYPESHIFT + _IOC_TYPEBITS)
	_IOC_DIRSHIFT  = (_IOC_SIZESHIFT + _IOC_SIZEBITS)

	_IOC_WRITE = 1
	_IOC_READ  = 2
)

func ioc(dir, typ, nr, size uint32) uint32 {
	return (dir << _IOC_DIRSHIFT) |
		(typ << _IOC_TYPESHIFT) |
		(nr << _IOC_NRSHIFT) |
		(size << _IOC_SIZESHIFT)
}

// iowr is _IOWR for an argument of size bytes.
func iowr(typ, nr uint32, size uintptr) uint32 {
	return ioc(_IOC_READ|_IOC_WRITE, typ, nr, uint32(size))
}

// ioctlArrUint32 passes val to the driver by reference. The driver may write
// its reply into val.
func ioctlArrUint32(fd uintptr, req uint32, val []uint32) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, uintptr(req), uintptr(unsafe.Pointer(&val[0])))
	if errno != 0 {
		return errno
	}
	return nil
}
