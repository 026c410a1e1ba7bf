package gpio

import (
	"fmt"
	"strings"
)

// Function is the 3-bit function select code of a pin, p92.
type Function uint32

const (
	Input  Function = 0x0 // 000
	Output Function = 0x1 // 001
	Alt0   Function = 0x4 // 100
	Alt1   Function = 0x5 // 101
	Alt2   Function = 0x6 // 110
	Alt3   Function = 0x7 // 111
	Alt4   Function = 0x3 // 011
	Alt5   Function = 0x2 // 010
)

// The codes aren't in alt order, see p92.
var altFuncs = [...]Function{Alt0, Alt1, Alt2, Alt3, Alt4, Alt5}

// AltFunction returns the function code for alternate function n (0-5).
func AltFunction(n int) (Function, error) {
	if n < 0 || n >= len(altFuncs) {
		return 0, fmt.Errorf("%d is an invalid alt function: %w", n, ErrNotAlternate)
	}
	return altFuncs[n], nil
}

// IsAlternate reports whether f is one of the six alternate functions.
func (f Function) IsAlternate() bool {
	return f != Input && f != Output && f <= FselMask
}

func (f Function) String() string {
	switch f {
	case Input:
		return "input"
	case Output:
		return "output"
	}
	for i, a := range altFuncs {
		if a == f {
			return fmt.Sprintf("alt%d", i)
		}
	}
	return fmt.Sprintf("Function(%d)", uint32(f))
}

// ParseFunction parses the names produced by String, case-insensitively.
func ParseFunction(s string) (Function, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "input", "in":
		return Input, nil
	case "output", "out":
		return Output, nil
	}
	var n int
	if _, err := fmt.Sscanf(s, "alt%d", &n); err == nil && s == fmt.Sprintf("alt%d", n) {
		return AltFunction(n)
	}
	return 0, fmt.Errorf("unknown function %q", s)
}
