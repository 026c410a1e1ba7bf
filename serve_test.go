package main

import (
	"bufio"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/Jon-Bright/gpioctl/config"
	"github.com/Jon-Bright/gpioctl/gpio"
)

type testConn struct {
	c net.Conn
	r *bufio.Reader
}

func newTestConn(t *testing.T, s *Server) *testConn {
	t.Helper()
	client, server := net.Pipe()
	go s.handleConnection(server)
	t.Cleanup(func() { client.Close() })
	client.SetDeadline(time.Now().Add(5 * time.Second))
	return &testConn{c: client, r: bufio.NewReader(client)}
}

func (tc *testConn) send(t *testing.T, line string) string {
	t.Helper()
	if _, err := tc.c.Write([]byte(line + "\n")); err != nil {
		t.Fatalf("write %q: %v", line, err)
	}
	reply, err := tc.r.ReadString('\n')
	if err != nil {
		t.Fatalf("reply to %q: %v", line, err)
	}
	return strings.TrimSuffix(reply, "\n")
}

func TestServeCommands(t *testing.T) {
	rp, mgr := newSimBoard(t)
	tc := newTestConn(t, &Server{mgr: mgr})

	tests := []struct {
		line string
		want string
	}{
		{"OUTPUT 5", "OK"},
		{"SET 5", "OK"},
		{"STATUS 5", "5 output 1"},
		{"clear GPIO5", "OK"},
		{"STATUS 5", "5 output 0"},
		{"OUTPUT 6 HIGH", "OK"},
		{"INPUT J8p11", "OK"},
		{"READ 17", "0"},
		{"ALT 18 5", "OK"},
		{"STATUS 18", "18 alt5 0"},
		{"RELEASE 18", "OK"},
	}
	for _, test := range tests {
		if got := tc.send(t, test.line); got != test.want {
			t.Errorf("%q, got: %q, want: %q", test.line, got, test.want)
		}
	}

	regs := rp.Registers()
	if f, _ := gpio.FunctionOf(regs, 18); f != gpio.Alt5 {
		t.Errorf("pin 18 after release, got: %v, want: alt5", f)
	}
	gpio.SimulateLevel(regs, 17, true)
	if got := tc.send(t, "READ 17"); got != "1" {
		t.Errorf("READ 17 after simulated high, got: %q, want: 1", got)
	}
}

func TestServeStatusAll(t *testing.T) {
	_, mgr := newSimBoard(t)
	tc := newTestConn(t, &Server{mgr: mgr})
	tc.send(t, "OUTPUT 9 1")
	tc.send(t, "INPUT 2")

	want := []string{"2 input 0", "9 output 1", "OK"}
	if _, err := tc.c.Write([]byte("STATUS\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	for _, w := range want {
		l, err := tc.r.ReadString('\n')
		if err != nil {
			t.Fatalf("STATUS reply: %v", err)
		}
		if got := strings.TrimSuffix(l, "\n"); got != w {
			t.Errorf("STATUS line, got: %q, want: %q", got, w)
		}
	}
}

func TestServeErrorsKeepConnection(t *testing.T) {
	_, mgr := newSimBoard(t)
	tc := newTestConn(t, &Server{mgr: mgr})

	tests := []struct {
		line string
		want string
	}{
		{"SET 5", "ERR: gpio: pin 5: access: pin not configured"},
		{"INPUT 54", "ERR: "},
		{"ALT 4 6", "ERR: "},
		{"ALT 4", "ERR: ALT needs a pin and a function number"},
		{"READ", "ERR: READ needs a pin"},
		{"FLASH 4", "ERR: unknown command: FLASH"},
		{"POWER ON", "ERR: no power control pin configured"},
		{`INPUT "4`, "ERR: can't parse line"},
		{"OUTPUT 4 maybe", "ERR: invalid level \"maybe\""},
	}
	for _, test := range tests {
		if got := tc.send(t, test.line); !strings.HasPrefix(got, test.want) {
			t.Errorf("%q, got: %q, want prefix: %q", test.line, got, test.want)
		}
	}
	// Still usable after errors.
	if got := tc.send(t, "INPUT 4"); got != "OK" {
		t.Errorf("INPUT 4 after errors, got: %q", got)
	}
}

func TestServeQuit(t *testing.T) {
	_, mgr := newSimBoard(t)
	tc := newTestConn(t, &Server{mgr: mgr})
	if _, err := tc.c.Write([]byte("quit\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := tc.r.ReadString('\n'); err == nil {
		t.Errorf("read after QUIT, got: nil error")
	}
}

func TestServePower(t *testing.T) {
	rp, mgr := newSimBoard(t)
	cfg := config.NewConfig()
	cfg.Power.CtrlPin = "23"
	pw, err := newPower(mgr, cfg.Power)
	if err != nil {
		t.Fatalf("newPower: %v", err)
	}
	tc := newTestConn(t, &Server{mgr: mgr, pw: pw})
	if got := tc.send(t, "POWER ON"); got != "OK" {
		t.Errorf("POWER ON, got: %q", got)
	}
	if got := tc.send(t, "STATUS 23"); got != "23 output 1" {
		t.Errorf("STATUS 23, got: %q", got)
	}
	if got := tc.send(t, "POWER OFF"); got != "OK" {
		t.Errorf("POWER OFF, got: %q", got)
	}
	if f, _ := gpio.FunctionOf(rp.Registers(), 23); f != gpio.Output {
		t.Errorf("pin 23, got: %v, want: output", f)
	}
}
