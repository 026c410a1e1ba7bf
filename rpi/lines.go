package rpi

import (
	"fmt"

	"github.com/warthog618/gpiod"
)

// LineUser describes a GPIO line the kernel has handed to someone.
type LineUser struct {
	Pin      int
	Name     string
	Consumer string
}

// LinesInUse asks the kernel's GPIO character device which of pins are
// currently requested, e.g. by a driver or another process using gpiod.
func LinesInUse(chip string, pins []int) ([]LineUser, error) {
	c, err := gpiod.NewChip(chip)
	if err != nil {
		return nil, fmt.Errorf("couldn't open %s: %w", chip, err)
	}
	defer c.Close()

	var users []LineUser
	for _, p := range pins {
		if p < 0 || p >= c.Lines() {
			return nil, fmt.Errorf("%s has no line %d", chip, p)
		}
		li, err := c.LineInfo(p)
		if err != nil {
			return nil, fmt.Errorf("couldn't get info for line %d: %w", p, err)
		}
		if li.Used {
			users = append(users, LineUser{Pin: p, Name: li.Name, Consumer: li.Consumer})
		}
	}
	return users, nil
}
