package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"

	"github.com/google/shlex"
	"github.com/womat/debug"

	"github.com/Jon-Bright/gpioctl/gpio"
	"github.com/Jon-Bright/gpioctl/pinctl"
)

var errQuit = errors.New("quit")

// Server speaks a line protocol on TCP. Each line is a command and its
// arguments, and each command gets one reply: OK, a level (1 or 0), a list of
// pin states ending in OK, or ERR: and a message.
type Server struct {
	mgr *pinctl.Manager
	pw  *power
	l   net.Listener
}

func NewServer(port int, mgr *pinctl.Manager, pw *power) (*Server, error) {
	l, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, err
	}
	debug.InfoLog.Printf("Listening on port %d", port)
	return &Server{mgr: mgr, pw: pw, l: l}, nil
}

func (s *Server) Close() error {
	return s.l.Close()
}

func parsePinArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s needs a pin", args[0])
	}
	return pinctl.ParsePin(args[1])
}

func parseLevel(s string) (bool, error) {
	switch strings.ToUpper(s) {
	case "1", "HIGH", "ON":
		return true, nil
	case "0", "LOW", "OFF":
		return false, nil
	}
	return false, fmt.Errorf("invalid level %q", s)
}

func formatState(st pinctl.PinState) string {
	return fmt.Sprintf("%d %s %s", st.Pin, st.Function, levelString(st.Level))
}

// execute runs one tokenised command and returns its reply, without the
// trailing newline.
func (s *Server) execute(args []string) (string, error) {
	cmd := strings.ToUpper(args[0])
	switch cmd {
	case "QUIT":
		return "", errQuit
	case "STATUS":
		if len(args) > 1 {
			n, err := pinctl.ParsePin(args[1])
			if err != nil {
				return "", err
			}
			st, ok := s.mgr.State(n)
			if !ok {
				return "", &gpio.PinError{Pin: n, Op: "status", Err: pinctl.ErrNotHeld}
			}
			return formatState(st), nil
		}
		var b strings.Builder
		for _, st := range s.mgr.States() {
			b.WriteString(formatState(st) + "\n")
		}
		b.WriteString("OK")
		return b.String(), nil
	case "POWER":
		if s.pw == nil {
			return "", errNoPower
		}
		if len(args) < 2 {
			return "", fmt.Errorf("POWER needs ON or OFF")
		}
		on, err := parseLevel(args[1])
		if err != nil {
			return "", err
		}
		if on {
			err = s.pw.on()
		} else {
			err = s.pw.off()
		}
		if err != nil {
			return "", err
		}
		return "OK", nil
	}

	n, err := parsePinArg(args)
	if err != nil {
		return "", err
	}
	switch cmd {
	case "INPUT":
		if err := s.mgr.Input(n); err != nil {
			return "", err
		}
	case "OUTPUT":
		if err := s.mgr.Output(n); err != nil {
			return "", err
		}
		if len(args) > 2 {
			high, err := parseLevel(args[2])
			if err != nil {
				return "", err
			}
			if err := s.mgr.Write(n, high); err != nil {
				return "", err
			}
		}
	case "SET", "CLEAR":
		if err := s.mgr.Write(n, cmd == "SET"); err != nil {
			return "", err
		}
	case "READ":
		high, err := s.mgr.Read(n)
		if err != nil {
			return "", err
		}
		return levelString(high), nil
	case "ALT":
		if len(args) < 3 {
			return "", fmt.Errorf("ALT needs a pin and a function number")
		}
		a, err := strconv.Atoi(args[2])
		if err != nil {
			return "", fmt.Errorf("invalid alternate function %q", args[2])
		}
		f, err := gpio.AltFunction(a)
		if err != nil {
			return "", err
		}
		if err := s.mgr.Alternate(n, f); err != nil {
			return "", err
		}
	case "RELEASE":
		if err := s.mgr.Release(n); err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown command: %s", cmd)
	}
	return "OK", nil
}

func (s *Server) handleConnection(c net.Conn) {
	debug.InfoLog.Printf("Handling connection from %v", c.RemoteAddr())
	defer c.Close()
	r := bufio.NewReader(c)
	w := bufio.NewWriter(c)
	for {
		l, err := r.ReadString('\n')
		if err == io.EOF {
			debug.DebugLog.Printf("EOF for connection %v", c.RemoteAddr())
			return
		}
		if err != nil {
			debug.ErrorLog.Printf("Error reading string for connection %v: %v", c.RemoteAddr(), err)
			return
		}
		debug.TraceLog.Printf("Got line '%s'", strings.TrimSpace(l))
		args, err := shlex.Split(l)
		if err != nil {
			err = fmt.Errorf("can't parse line: %w", err)
		} else if len(args) == 0 {
			continue
		}
		var reply string
		if err == nil {
			reply, err = s.execute(args)
		}
		if errors.Is(err, errQuit) {
			return
		}
		if err != nil {
			debug.ErrorLog.Printf("Command %q failed: %v", args, err)
			reply = "ERR: " + err.Error()
		}
		w.WriteString(reply + "\n")
		if err := w.Flush(); err != nil {
			debug.ErrorLog.Printf("error writing reply: %v", err)
			return
		}
	}
}

func (s *Server) handleConnections() {
	for {
		conn, err := s.l.Accept()
		if errors.Is(err, net.ErrClosed) {
			return
		}
		if err != nil {
			debug.ErrorLog.Printf("Error accepting connection: %v", err)
			continue
		}
		go s.handleConnection(conn)
	}
}
