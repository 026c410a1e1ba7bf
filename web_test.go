package main

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Jon-Bright/gpioctl/config"
	"github.com/Jon-Bright/gpioctl/gpio"
	"github.com/Jon-Bright/gpioctl/pinctl"
)

func newTestWebServer(t *testing.T) (*webServer, *pinctl.Manager) {
	t.Helper()
	rp, mgr := newSimBoard(t)
	s, err := newWebServer(config.NewConfig(), rp, mgr)
	if err != nil {
		t.Fatalf("newWebServer: %v", err)
	}
	return s, mgr
}

func doRequest(t *testing.T, s *webServer, method, target string) (int, []byte) {
	t.Helper()
	resp, err := s.web.Test(httptest.NewRequest(method, target, nil))
	if err != nil {
		t.Fatalf("%s %s: %v", method, target, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("%s %s body: %v", method, target, err)
	}
	return resp.StatusCode, body
}

func TestWebPins(t *testing.T) {
	s, _ := newTestWebServer(t)

	tests := []struct {
		method string
		target string
		status int
		want   pinctl.PinState
	}{
		{http.MethodPut, "/pins/17/output?level=1", http.StatusOK, pinctl.PinState{Pin: 17, Function: "output", Level: true}},
		{http.MethodPost, "/pins/17/clear", http.StatusOK, pinctl.PinState{Pin: 17, Function: "output"}},
		{http.MethodPost, "/pins/GPIO17/set", http.StatusOK, pinctl.PinState{Pin: 17, Function: "output", Level: true}},
		{http.MethodPut, "/pins/J8p12/alt5", http.StatusOK, pinctl.PinState{Pin: 18, Function: "alt5"}},
		{http.MethodPut, "/pins/4/in", http.StatusOK, pinctl.PinState{Pin: 4, Function: "input"}},
		{http.MethodGet, "/pins/4", http.StatusOK, pinctl.PinState{Pin: 4, Function: "input"}},
	}
	for _, test := range tests {
		status, body := doRequest(t, s, test.method, test.target)
		if status != test.status {
			t.Errorf("%s %s, got: %d, want: %d (%s)", test.method, test.target, status, test.status, body)
			continue
		}
		var got pinctl.PinState
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("%s %s: %v", test.method, test.target, err)
		}
		if got != test.want {
			t.Errorf("%s %s, got: %+v, want: %+v", test.method, test.target, got, test.want)
		}
	}

	status, body := doRequest(t, s, http.MethodGet, "/pins")
	var all []pinctl.PinState
	if err := json.Unmarshal(body, &all); status != http.StatusOK || err != nil {
		t.Fatalf("GET /pins, got: %d, %v", status, err)
	}
	if len(all) != 3 || all[0].Pin != 4 || all[1].Pin != 17 || all[2].Pin != 18 {
		t.Errorf("GET /pins, got: %+v", all)
	}
}

func TestWebErrors(t *testing.T) {
	s, _ := newTestWebServer(t)
	doRequest(t, s, http.MethodPut, "/pins/4/input")

	tests := []struct {
		method string
		target string
		status int
	}{
		{http.MethodGet, "/pins/5", http.StatusNotFound},
		{http.MethodDelete, "/pins/5", http.StatusNotFound},
		{http.MethodPost, "/pins/4/set", http.StatusConflict},
		{http.MethodPost, "/pins/5/set", http.StatusNotFound},
		{http.MethodGet, "/pins/99", http.StatusBadRequest},
		{http.MethodPut, "/pins/4/alt9", http.StatusBadRequest},
		{http.MethodPut, "/pins/4/output?level=maybe", http.StatusBadRequest},
		{http.MethodDelete, "/pins/4", http.StatusNoContent},
		{http.MethodGet, "/pins/4", http.StatusNotFound},
	}
	for _, test := range tests {
		if status, body := doRequest(t, s, test.method, test.target); status != test.status {
			t.Errorf("%s %s, got: %d, want: %d (%s)", test.method, test.target, status, test.status, body)
		}
	}
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&gpio.PinError{Pin: 1, Op: "x", Err: pinctl.ErrNotHeld}, http.StatusNotFound},
		{&gpio.PinError{Pin: 1, Op: "x", Err: pinctl.ErrNotInput}, http.StatusConflict},
		{&gpio.PinError{Pin: 1, Op: "x", Err: gpio.ErrPinInUse}, http.StatusConflict},
		{&gpio.PinError{Pin: 1, Op: "x", Err: gpio.ErrUnsupported}, http.StatusNotImplemented},
		{&gpio.PinError{Pin: 1, Op: "x", Err: gpio.ErrPinRange}, http.StatusBadRequest},
	}
	for _, test := range tests {
		if got := statusOf(test.err); got != test.want {
			t.Errorf("statusOf(%v), got: %d, want: %d", test.err, got, test.want)
		}
	}
}

func TestWebSimulate(t *testing.T) {
	s, mgr := newTestWebServer(t)
	doRequest(t, s, http.MethodPut, "/pins/21/input")
	if status, _ := doRequest(t, s, http.MethodPut, "/sim/21/high"); status != http.StatusNoContent {
		t.Fatalf("PUT /sim/21/high, got: %d", status)
	}
	if high, err := mgr.Read(21); err != nil || !high {
		t.Errorf("Read(21), got: %v, %v, want: true, nil", high, err)
	}
	if status, _ := doRequest(t, s, http.MethodPut, "/sim/21/sideways"); status != http.StatusBadRequest {
		t.Errorf("PUT /sim/21/sideways, got: %d, want: 400", status)
	}
}

func TestWebVersionAndHealth(t *testing.T) {
	s, _ := newTestWebServer(t)
	status, body := doRequest(t, s, http.MethodGet, "/version")
	var v map[string]string
	if err := json.Unmarshal(body, &v); status != http.StatusOK || err != nil || v["version"] != VERSION {
		t.Errorf("GET /version, got: %d %s", status, body)
	}
	status, body = doRequest(t, s, http.MethodGet, "/health")
	var h struct {
		Board     string
		Simulated bool
	}
	if err := json.Unmarshal(body, &h); status != http.StatusOK || err != nil || !h.Simulated || h.Board != "simulated" {
		t.Errorf("GET /health, got: %d %s", status, body)
	}
}

func TestWebservicesDisabled(t *testing.T) {
	rp, mgr := newSimBoard(t)
	cfg := config.NewConfig()
	cfg.Webserver.Webservices = map[string]bool{"version": true}
	s, err := newWebServer(cfg, rp, mgr)
	if err != nil {
		t.Fatalf("newWebServer: %v", err)
	}
	if status, _ := doRequest(t, s, http.MethodGet, "/pins"); status != http.StatusNotFound {
		t.Errorf("GET /pins with pins disabled, got: %d, want: 404", status)
	}
}
