package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/womat/debug"

	"github.com/Jon-Bright/gpioctl/config"
	"github.com/Jon-Bright/gpioctl/pinctl"
)

var errNoPower = errors.New("no power control pin configured")

// power switches a supply via a control pin and optionally waits for a status
// pin to report that it's healthy. ctrl is -1 if there is no control pin, and
// status is -1 if there is no status pin.
type power struct {
	mgr    *pinctl.Manager
	ctrl   int
	status int
	wait   time.Duration
	poll   time.Duration
}

func newPower(mgr *pinctl.Manager, cfg config.PowerConfig) (*power, error) {
	p := &power{mgr: mgr, ctrl: -1, status: -1, wait: cfg.StatusWait, poll: 50 * time.Millisecond}
	if cfg.CtrlPin == "" {
		return p, nil
	}
	n, err := pinctl.ParsePin(cfg.CtrlPin)
	if err != nil {
		return nil, fmt.Errorf("power control pin: %w", err)
	}
	if err := mgr.Output(n); err != nil {
		return nil, fmt.Errorf("couldn't set power control to output: %w", err)
	}
	p.ctrl = n
	if cfg.StatusPin == "" {
		return p, nil
	}
	if n, err = pinctl.ParsePin(cfg.StatusPin); err != nil {
		return nil, fmt.Errorf("power status pin: %w", err)
	}
	if err := mgr.Input(n); err != nil {
		return nil, fmt.Errorf("couldn't set power status to input: %w", err)
	}
	p.status = n
	return p, nil
}

func (p *power) on() error {
	if p.ctrl < 0 {
		return errNoPower
	}
	debug.InfoLog.Printf("Power on")
	if err := p.mgr.Write(p.ctrl, true); err != nil {
		return fmt.Errorf("couldn't set power control high: %w", err)
	}
	if p.status < 0 {
		return nil
	}
	start := time.Now()
	for {
		val, err := p.mgr.Read(p.status)
		if err != nil {
			return fmt.Errorf("couldn't query power status: %w", err)
		}
		t := time.Now()
		if val {
			debug.InfoLog.Printf("Power stabilized after %v", t.Sub(start))
			return nil
		}
		if t.Sub(start) > p.wait {
			return fmt.Errorf("timed out waiting for power to be healthy, started %v, now %v", start, t)
		}
		time.Sleep(p.poll)
	}
}

func (p *power) off() error {
	if p.ctrl < 0 {
		return errNoPower
	}
	debug.InfoLog.Printf("Power off")
	if err := p.mgr.Write(p.ctrl, false); err != nil {
		return fmt.Errorf("couldn't set power control low: %w", err)
	}
	return nil
}
