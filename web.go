package main

import (
	"errors"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"

	"github.com/Jon-Bright/gpioctl/config"
	"github.com/Jon-Bright/gpioctl/gpio"
	"github.com/Jon-Bright/gpioctl/pinctl"
	"github.com/Jon-Bright/gpioctl/rpi"
)

// webServer exposes the pin manager over HTTP.
type webServer struct {
	web *fiber.App
	cfg *config.Config
	// urlParsed contains the parsed Webserver.URL, e.g.
	// http://0.0.0.0:4000
	urlParsed *url.URL
	rp        *rpi.RPi
	mgr       *pinctl.Manager
}

func newWebServer(cfg *config.Config, rp *rpi.RPi, mgr *pinctl.Manager) (*webServer, error) {
	u, err := url.Parse(cfg.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", cfg.Webserver.URL, err.Error())
		return nil, err
	}
	s := &webServer{
		web:       fiber.New(fiber.Config{DisableStartupMessage: true}),
		cfg:       cfg,
		urlParsed: u,
		rp:        rp,
		mgr:       mgr,
	}
	s.initRoutes()
	return s, nil
}

// run listens for web requests until close is called.
//  e.g.: go run()
func (s *webServer) run() {
	if err := s.web.Listen(s.urlParsed.Host); err != nil {
		debug.ErrorLog.Print(err)
	}
}

func (s *webServer) close() {
	_ = s.web.Shutdown()
}

func (s *webServer) initRoutes() {
	api := s.web.Group("/")
	if s.cfg.Webserver.Webservices["version"] {
		api.Get("/version", s.handleVersion())
	}
	if s.cfg.Webserver.Webservices["health"] {
		api.Get("/health", s.handleHealth())
	}
	if s.cfg.Webserver.Webservices["pins"] {
		api.Get("/pins", s.handlePins())
		api.Get("/pins/:pin", s.handlePin())
		api.Put("/pins/:pin/:function", s.handleConfigure())
		api.Post("/pins/:pin/set", s.handleWrite(true))
		api.Post("/pins/:pin/clear", s.handleWrite(false))
		api.Delete("/pins/:pin", s.handleRelease())
		if s.rp.Simulated() {
			api.Put("/sim/:pin/:level", s.handleSimulate())
		}
	}
}

// statusOf maps pin errors to HTTP status codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, pinctl.ErrNotHeld):
		return http.StatusNotFound
	case errors.Is(err, pinctl.ErrNotInput), errors.Is(err, pinctl.ErrNotOutput), errors.Is(err, gpio.ErrPinInUse):
		return http.StatusConflict
	case errors.Is(err, gpio.ErrUnsupported):
		return http.StatusNotImplemented
	}
	return http.StatusBadRequest
}

func replyError(ctx *fiber.Ctx, err error) error {
	debug.ErrorLog.Printf("web request %s %s: %v", ctx.Method(), ctx.Path(), err)
	return ctx.Status(statusOf(err)).JSON(fiber.Map{"error": err.Error()})
}

func (s *webServer) replyState(ctx *fiber.Ctx, n int) error {
	st, ok := s.mgr.State(n)
	if !ok {
		return replyError(ctx, &gpio.PinError{Pin: n, Op: "status", Err: pinctl.ErrNotHeld})
	}
	return ctx.JSON(st)
}

func (s *webServer) handleVersion() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request version")

		return ctx.JSON(fiber.Map{
			"version":     VERSION,
			"description": MODULE,
			"about":       Version(),
		})
	}
}

// handleHealth returns data about the health of the service and the board.
func (s *webServer) handleHealth() fiber.Handler {
	bToMb := func(b uint64) uint64 {
		return b / 1024 / 1024
	}

	host, _ := os.Hostname()

	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request health")

		var m runtime.MemStats
		runtime.ReadMemStats(&m)

		healthData := struct {
			NumGoroutines   int
			HeapAllocatedMB uint64
			SysMemoryMB     uint64
			Version         string
			ProgLang        string
			HostName        string
			Board           string
			PeriphBase      uint64
			Simulated       bool
			PinsHeld        int
			Time            string
		}{
			NumGoroutines:   runtime.NumGoroutine(),
			HeapAllocatedMB: bToMb(m.Alloc),
			SysMemoryMB:     bToMb(m.Sys),
			Version:         VERSION,
			ProgLang:        runtime.Version(),
			HostName:        host,
			Board:           s.rp.Name(),
			PeriphBase:      uint64(s.rp.PeriphBase()),
			Simulated:       s.rp.Simulated(),
			PinsHeld:        len(s.mgr.States()),
			Time:            time.Now().Format(time.RFC3339),
		}
		ctx.Status(http.StatusOK)
		return ctx.JSON(healthData)
	}
}

func (s *webServer) handlePins() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request pins")
		return ctx.JSON(s.mgr.States())
	}
}

func (s *webServer) handlePin() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		n, err := pinctl.ParsePin(ctx.Params("pin"))
		if err != nil {
			return replyError(ctx, err)
		}
		return s.replyState(ctx, n)
	}
}

// handleConfigure sets the function of a pin, e.g. PUT /pins/17/output?level=1
func (s *webServer) handleConfigure() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		n, err := pinctl.ParsePin(ctx.Params("pin"))
		if err != nil {
			return replyError(ctx, err)
		}
		var initial *bool
		if l := ctx.Query("level"); l != "" {
			high, err := parseLevel(l)
			if err != nil {
				return replyError(ctx, err)
			}
			initial = &high
		}
		debug.InfoLog.Printf("web request configure pin %d as %s", n, ctx.Params("function"))
		if err := s.mgr.Configure(n, ctx.Params("function"), initial); err != nil {
			return replyError(ctx, err)
		}
		return s.replyState(ctx, n)
	}
}

func (s *webServer) handleWrite(high bool) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		n, err := pinctl.ParsePin(ctx.Params("pin"))
		if err != nil {
			return replyError(ctx, err)
		}
		if err := s.mgr.Write(n, high); err != nil {
			return replyError(ctx, err)
		}
		return s.replyState(ctx, n)
	}
}

func (s *webServer) handleRelease() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		n, err := pinctl.ParsePin(ctx.Params("pin"))
		if err != nil {
			return replyError(ctx, err)
		}
		if err := s.mgr.Release(n); err != nil {
			return replyError(ctx, err)
		}
		return ctx.SendStatus(http.StatusNoContent)
	}
}

// handleSimulate drives the level of a pin in the simulated register block.
func (s *webServer) handleSimulate() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		n, err := pinctl.ParsePin(ctx.Params("pin"))
		if err != nil {
			return replyError(ctx, err)
		}
		high, err := parseLevel(ctx.Params("level"))
		if err != nil {
			return replyError(ctx, err)
		}
		if err := gpio.SimulateLevel(s.rp.Registers(), n, high); err != nil {
			return replyError(ctx, err)
		}
		return ctx.SendStatus(http.StatusNoContent)
	}
}
