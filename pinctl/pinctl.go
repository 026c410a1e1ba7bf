// Package pinctl keeps the typed pin handles of package gpio for callers that
// only know at runtime what they want to do with a pin, like the TCP and HTTP
// servers. It also provides the locking that gpio leaves to its callers.
package pinctl

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Jon-Bright/gpioctl/gpio"
)

var (
	ErrNotHeld   = errors.New("pin not configured")
	ErrNotInput  = errors.New("pin not configured as input")
	ErrNotOutput = errors.New("pin not configured as output")
)

// PinState is a snapshot of one configured pin. Level is the sampled level for
// inputs and alternate functions, and the last driven level for outputs.
type PinState struct {
	Pin      int    `json:"pin"`
	Function string `json:"function"`
	Level    bool   `json:"level"`
}

// Manager holds at most one handle per pin, each an *gpio.InputPin,
// *gpio.OutputPin or *gpio.AltPin.
type Manager struct {
	mu     sync.Mutex
	ctrl   *gpio.Controller
	pins   map[int]interface{}
	driven map[int]bool
}

func New(ctrl *gpio.Controller) *Manager {
	return &Manager{
		ctrl:   ctrl,
		pins:   map[int]interface{}{},
		driven: map[int]bool{},
	}
}

// fresh returns a new uninitialized handle for n, releasing whatever handle
// the manager held for it before.
func (m *Manager) fresh(n int) (*gpio.UninitializedPin, error) {
	if h, ok := m.pins[n]; ok {
		release(h)
		delete(m.pins, n)
		delete(m.driven, n)
	}
	return m.ctrl.Pin(n)
}

func release(h interface{}) {
	switch p := h.(type) {
	case *gpio.InputPin:
		p.Release()
	case *gpio.OutputPin:
		p.Release()
	case *gpio.AltPin:
		p.Release()
	}
}

// Input configures n as an input. It is a no-op if n already is one.
func (m *Manager) Input(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pins[n].(*gpio.InputPin); ok {
		return nil
	}
	u, err := m.fresh(n)
	if err != nil {
		return err
	}
	m.pins[n] = u.IntoInput()
	return nil
}

// Output configures n as an output. It is a no-op if n already is one.
func (m *Manager) Output(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pins[n].(*gpio.OutputPin); ok {
		return nil
	}
	u, err := m.fresh(n)
	if err != nil {
		return err
	}
	m.pins[n] = u.IntoOutput()
	return nil
}

// Alternate routes n to alternate function f. An unconfigured pin can't go
// straight to an alternate function, so it is made an input first, which is
// also what every pin is after reset.
func (m *Manager) Alternate(n int, f gpio.Function) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var (
		a   *gpio.AltPin
		err error
	)
	switch p := m.pins[n].(type) {
	case *gpio.InputPin:
		a, err = p.IntoAlternate(f)
	case *gpio.OutputPin:
		a, err = p.IntoAlternate(f)
	case *gpio.AltPin:
		a, err = p.IntoAlternate(f)
	default:
		if !f.IsAlternate() {
			return &gpio.PinError{Pin: n, Op: "select " + f.String(), Err: gpio.ErrNotAlternate}
		}
		var u *gpio.UninitializedPin
		if u, err = m.ctrl.Pin(n); err != nil {
			return err
		}
		a, err = u.IntoInput().IntoAlternate(f)
	}
	if err != nil {
		return err
	}
	m.pins[n] = a
	delete(m.driven, n)
	return nil
}

// Write drives output n high or low.
func (m *Manager) Write(n int, high bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pins[n].(*gpio.OutputPin)
	if !ok {
		return m.wrongState(n, ErrNotOutput)
	}
	if high {
		p.Set()
	} else {
		p.Clear()
	}
	m.driven[n] = high
	return nil
}

// Read samples input n.
func (m *Manager) Read(n int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pins[n].(*gpio.InputPin)
	if !ok {
		return false, m.wrongState(n, ErrNotInput)
	}
	return p.IsHigh(), nil
}

func (m *Manager) wrongState(n int, err error) error {
	if _, held := m.pins[n]; !held {
		err = ErrNotHeld
	}
	return &gpio.PinError{Pin: n, Op: "access", Err: err}
}

// Release gives up the handle for n. The pin keeps its function and level.
func (m *Manager) Release(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.pins[n]
	if !ok {
		return &gpio.PinError{Pin: n, Op: "release", Err: ErrNotHeld}
	}
	release(h)
	delete(m.pins, n)
	delete(m.driven, n)
	return nil
}

// State returns the state of n, and false if the manager doesn't hold it.
func (m *Manager) State(n int) (PinState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state(n)
}

func (m *Manager) state(n int) (PinState, bool) {
	s := PinState{Pin: n}
	switch p := m.pins[n].(type) {
	case *gpio.InputPin:
		s.Function = gpio.Input.String()
		s.Level = p.IsHigh()
	case *gpio.OutputPin:
		s.Function = gpio.Output.String()
		s.Level = m.driven[n]
	case *gpio.AltPin:
		s.Function = p.Function().String()
		s.Level, _ = gpio.LevelOf(m.ctrl.Registers(), n)
	default:
		return s, false
	}
	return s, true
}

// States returns the state of every held pin, ordered by pin number.
func (m *Manager) States() []PinState {
	m.mu.Lock()
	defer m.mu.Unlock()
	ns := make([]int, 0, len(m.pins))
	for n := range m.pins {
		ns = append(ns, n)
	}
	sort.Ints(ns)
	ss := make([]PinState, 0, len(ns))
	for _, n := range ns {
		s, _ := m.state(n)
		ss = append(ss, s)
	}
	return ss
}

// Inputs returns the numbers of all pins configured as inputs, in order.
func (m *Manager) Inputs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ns []int
	for n, h := range m.pins {
		if _, ok := h.(*gpio.InputPin); ok {
			ns = append(ns, n)
		}
	}
	sort.Ints(ns)
	return ns
}

// Configure applies a function by name, as in a config file: input, output or
// alt0-alt5. initial sets the level of outputs and may be nil.
func (m *Manager) Configure(n int, mode string, initial *bool) error {
	f, err := gpio.ParseFunction(mode)
	if err != nil {
		return fmt.Errorf("pin %d: %w", n, err)
	}
	switch f {
	case gpio.Input:
		return m.Input(n)
	case gpio.Output:
		if err := m.Output(n); err != nil {
			return err
		}
		if initial != nil {
			return m.Write(n, *initial)
		}
		return nil
	}
	return m.Alternate(n, f)
}

// Close releases every held pin.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for n, h := range m.pins {
		release(h)
		delete(m.pins, n)
	}
	m.driven = map[int]bool{}
}
