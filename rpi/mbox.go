package rpi

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/womat/debug"
	"golang.org/x/sys/unix"
)

// The mailbox is documented at
// https://github.com/raspberrypi/firmware/wiki/Mailbox-property-interface
// It's only used to ask the firmware for the board revision when the device
// tree doesn't have it.

const (
	VIDEOCORE_MAJOR_NUM = 100
	VCIO_FILE           = "/dev/vcio"
	MBOX_DEV            = VIDEOCORE_MAJOR_NUM << 20 // Assumes devices have 12-bit major, 20-bit minor numbers
	MBOX_MODE           = 0600

	tagGetBoardRevision = 0x00010002
	mboxResponseOK      = 0x80000000
)

// mboxPropertyReq is IOCTL_MBOX_PROPERTY, _IOWR(100, 0, char *).
var mboxPropertyReq = iowr(VIDEOCORE_MAJOR_NUM, 0, unsafe.Sizeof(uintptr(0)))

type mailbox struct {
	f *os.File
}

// mboxOpenTemp creates a temporary device node for the mailbox, opens it and
// removes the node once it's open.
func mboxOpenTemp() (*mailbox, error) {
	tf := filepath.Join(os.TempDir(), fmt.Sprintf("mailbox-%d", os.Getpid()))
	if err := os.Remove(tf); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("couldn't remove temp mbox: %w", err)
	}
	if err := unix.Mknod(tf, unix.S_IFCHR|MBOX_MODE, MBOX_DEV); err != nil {
		return nil, fmt.Errorf("couldn't make device node: %w", err)
	}
	f, err := os.OpenFile(tf, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("couldn't open temp mbox: %w", err)
	}
	if err := os.Remove(tf); err != nil {
		f.Close() // Ignore error
		return nil, fmt.Errorf("couldn't remove temp mbox: %w", err)
	}
	return &mailbox{f: f}, nil
}

// mboxOpen opens /dev/vcio, or a temporary node if that doesn't exist.
func mboxOpen() (*mailbox, error) {
	f, err := os.OpenFile(VCIO_FILE, os.O_RDONLY, 0)
	if errors.Is(err, os.ErrNotExist) {
		return mboxOpenTemp()
	}
	if err != nil {
		return nil, fmt.Errorf("couldn't open mbox: %w", err)
	}
	return &mailbox{f: f}, nil
}

func (m *mailbox) Close() error {
	return m.f.Close()
}

// property sends a property message and leaves the reply in buf.
func (m *mailbox) property(buf []uint32) error {
	if err := ioctlArrUint32(m.f.Fd(), mboxPropertyReq, buf); err != nil {
		return fmt.Errorf("failed ioctl mbox property: %w", err)
	}
	return nil
}

// propertyRequest builds a message with a single tag whose value buffer is
// valueSize bytes.
func propertyRequest(tag uint32, valueSize uint32) []uint32 {
	words := valueSize / 4
	p := make([]uint32, 0, 6+words)
	p = append(p,
		0,          // size, filled in below
		0x00000000, // process request
		tag,
		valueSize,
		0, // bit 31 cleared, rest is reserved
	)
	p = append(p, make([]uint32, words)...)
	p = append(p, 0) // no more tags
	p[0] = uint32(len(p) * 4)
	return p
}

// propertyValue checks the reply to a propertyRequest and returns the tag's
// value words.
func propertyValue(p []uint32) ([]uint32, error) {
	if len(p) < 6 {
		return nil, fmt.Errorf("short mailbox reply, %d words", len(p))
	}
	if p[1] != mboxResponseOK {
		return nil, fmt.Errorf("mailbox request failed: %08X", p[1])
	}
	if p[4]&mboxResponseOK == 0 {
		return nil, fmt.Errorf("response tag unset: %08X", p[4])
	}
	n := (p[4] &^ mboxResponseOK) / 4
	if int(n) > len(p)-6 {
		return nil, fmt.Errorf("response length %d doesn't fit reply", n*4)
	}
	return p[5 : 5+n], nil
}

// FirmwareRevision asks the VideoCore firmware for the board revision code.
func FirmwareRevision() (uint32, error) {
	m, err := mboxOpen()
	if err != nil {
		return 0, err
	}
	defer m.Close()
	p := propertyRequest(tagGetBoardRevision, 4)
	if err := m.property(p); err != nil {
		return 0, err
	}
	v, err := propertyValue(p)
	if err != nil {
		return 0, err
	}
	if len(v) < 1 {
		return 0, errors.New("empty board revision reply")
	}
	debug.DebugLog.Printf("firmware board revision %X", v[0])
	return v[0], nil
}
