package pinctl

import (
	"fmt"
	"strconv"
	"strings"

	wgpio "github.com/warthog618/gpio"

	"github.com/Jon-Bright/gpioctl/gpio"
)

// Header pins of the 40-pin J8 connector that carry a GPIO, keyed by lower
// case name.
var j8Pins = map[string]int{
	"j8p3":  wgpio.J8p3,
	"j8p5":  wgpio.J8p5,
	"j8p7":  wgpio.J8p7,
	"j8p8":  wgpio.J8p8,
	"j8p10": wgpio.J8p10,
	"j8p11": wgpio.J8p11,
	"j8p12": wgpio.J8p12,
	"j8p13": wgpio.J8p13,
	"j8p15": wgpio.J8p15,
	"j8p16": wgpio.J8p16,
	"j8p18": wgpio.J8p18,
	"j8p19": wgpio.J8p19,
	"j8p21": wgpio.J8p21,
	"j8p22": wgpio.J8p22,
	"j8p23": wgpio.J8p23,
	"j8p24": wgpio.J8p24,
	"j8p26": wgpio.J8p26,
	"j8p27": wgpio.J8p27,
	"j8p28": wgpio.J8p28,
	"j8p29": wgpio.J8p29,
	"j8p31": wgpio.J8p31,
	"j8p32": wgpio.J8p32,
	"j8p33": wgpio.J8p33,
	"j8p35": wgpio.J8p35,
	"j8p36": wgpio.J8p36,
	"j8p37": wgpio.J8p37,
	"j8p38": wgpio.J8p38,
	"j8p40": wgpio.J8p40,
}

// ParsePin turns a pin name into a BCM pin number. It accepts BCM numbers
// ("17"), GPIO names ("GPIO17") and J8 header pins ("J8p11").
func ParsePin(s string) (int, error) {
	l := strings.ToLower(strings.TrimSpace(s))
	if n, ok := j8Pins[l]; ok {
		return n, nil
	}
	if strings.HasPrefix(l, "j8p") {
		return 0, fmt.Errorf("J8 pin %q isn't a GPIO", s)
	}
	n, err := strconv.Atoi(strings.TrimPrefix(l, "gpio"))
	if err != nil {
		return 0, fmt.Errorf("can't parse pin %q", s)
	}
	if n < 0 || n >= gpio.NumPins {
		return 0, &gpio.PinError{Pin: n, Op: "parse", Err: gpio.ErrPinRange}
	}
	return n, nil
}
