package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/urfave/cli/v2"
	"github.com/womat/debug"

	"github.com/Jon-Bright/gpioctl/config"
	"github.com/Jon-Bright/gpioctl/gpio"
	"github.com/Jon-Bright/gpioctl/pinctl"
	"github.com/Jon-Bright/gpioctl/rpi"
)

func main() {
	exitCode := 1
	defer func() {
		os.Exit(exitCode)
	}()

	// cfg holds the application configuration
	cfg := config.NewConfig()
	debug.SetDebug(os.Stderr, debug.Standard)

	cliApp := &cli.App{
		Name:    MODULE,
		Usage:   "Configure and drive BCM2835/BCM2837 GPIO pins through their registers",
		Version: VERSION,
		UsageText: "gpioctl [--config <file>] [--log standard|debug|trace] [--backend gpiomem|mem|sim] <command> [args]" +
			"\n\nPins are BCM numbers (17), GPIO names (GPIO17) or J8 header pins (J8p11)." +
			"\n\nEXAMPLE:" +
			"\n\tdrive GPIO17 high" +
			"\n\t\tgpioctl set 17" +
			"\n\tserve the pins over TCP, HTTP and MQTT" +
			"\n\t\tgpioctl --config /etc/gpioctl/gpioctl.yaml serve",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Destination: &cfg.Flag.ConfigFile, Value: config.DefaultConfigFile, Usage: "load configuration from `FILE`"},
			&cli.StringFlag{Name: "log", Aliases: []string{"l"}, Destination: &cfg.Flag.LogLevel, Usage: "`LEVEL` defines the log level (standard|debug|trace)"},
			&cli.StringFlag{Name: "backend", Aliases: []string{"b"}, Destination: &cfg.Flag.Backend, Usage: "`BACKEND` maps the registers from gpiomem, mem or sim"},
		},
		Before: func(ctx *cli.Context) error {
			if err := cfg.LoadConfig(); err != nil {
				return err
			}
			debug.SetDebug(cfg.Log.File, cfg.Log.Flag)
			return nil
		},
		After: func(ctx *cli.Context) error {
			if cfg.Log.File != nil && cfg.Log.File != os.Stderr && cfg.Log.File != os.Stdout {
				_ = cfg.Log.File.Close()
			}
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:   "info",
				Usage:  "show the board and the function and level of every pin",
				Action: func(ctx *cli.Context) error { return runInfo(cfg, ctx.App.Writer) },
			},
			{
				Name:      "input",
				Usage:     "configure a pin as input and print its level",
				ArgsUsage: "PIN",
				Action: func(ctx *cli.Context) error {
					return withPin(cfg, ctx, func(p *gpio.UninitializedPin) error {
						in := p.IntoInput()
						fmt.Fprintln(ctx.App.Writer, levelString(in.IsHigh()))
						return nil
					})
				},
			},
			{
				Name:      "set",
				Usage:     "configure a pin as output and drive it high",
				ArgsUsage: "PIN",
				Action: func(ctx *cli.Context) error {
					return withPin(cfg, ctx, func(p *gpio.UninitializedPin) error {
						p.IntoOutput().Set()
						return nil
					})
				},
			},
			{
				Name:      "clear",
				Usage:     "configure a pin as output and drive it low",
				ArgsUsage: "PIN",
				Action: func(ctx *cli.Context) error {
					return withPin(cfg, ctx, func(p *gpio.UninitializedPin) error {
						p.IntoOutput().Clear()
						return nil
					})
				},
			},
			{
				Name:      "alt",
				Usage:     "route a pin to alternate function N (0-5), via input",
				ArgsUsage: "PIN N",
				Action: func(ctx *cli.Context) error {
					n, err := strconv.Atoi(ctx.Args().Get(1))
					if err != nil {
						return fmt.Errorf("can't parse alternate function %q", ctx.Args().Get(1))
					}
					f, err := gpio.AltFunction(n)
					if err != nil {
						return err
					}
					return withPin(cfg, ctx, func(p *gpio.UninitializedPin) error {
						_, err := p.IntoInput().IntoAlternate(f)
						return err
					})
				},
			},
			{
				Name:   "serve",
				Usage:  "serve the pins over TCP, HTTP and MQTT until interrupted",
				Action: func(ctx *cli.Context) error { return runServe(cfg) },
			},
		},
	}

	sort.Sort(cli.FlagsByName(cliApp.Flags))
	sort.Sort(cli.CommandsByName(cliApp.Commands))

	if err := cliApp.Run(os.Args); err != nil {
		debug.FatalLog.Print(err)
		exitCode = 1
		return
	}

	exitCode = 0
}

// openBoard creates the board the config asks for and maps its registers.
func openBoard(cfg *config.Config) (*rpi.RPi, error) {
	var (
		rp  *rpi.RPi
		err error
	)
	dev := rpi.GPIOMEM_FILE
	switch {
	case cfg.Backend == config.BackendSim:
		rp = rpi.NewSimulated()
	case cfg.PeriphBase != 0:
		rp = rpi.NewRPiAt(uintptr(cfg.PeriphBase))
	default:
		rp, err = rpi.NewRPi()
		if err != nil && cfg.Backend == config.BackendMem {
			return nil, err
		}
		if err != nil {
			// gpiomem doesn't need to know where the peripherals are.
			debug.InfoLog.Printf("%v, assuming peripherals at %08X", err, rpi.PERIPHERAL_BASE)
			rp = rpi.NewRPiAt(rpi.PERIPHERAL_BASE)
		}
	}
	if cfg.Backend == config.BackendMem {
		dev = rpi.MEM_FILE
	}
	if err := rp.InitGPIO(dev); err != nil {
		return nil, err
	}
	debug.InfoLog.Printf("opened GPIO on %s (peripherals at %08X)", rp.Name(), rp.PeriphBase())
	return rp, nil
}

// checkLines refuses pins that the kernel has handed to a driver or another
// process, if the config asks for that.
func checkLines(cfg *config.Config, rp *rpi.RPi, pins []int) error {
	if !cfg.CheckKernelLines || rp.Simulated() || len(pins) == 0 {
		return nil
	}
	users, err := rpi.LinesInUse(cfg.Chip, pins)
	if err != nil {
		return fmt.Errorf("couldn't check kernel GPIO lines: %w", err)
	}
	if len(users) > 0 {
		u := users[0]
		return fmt.Errorf("pin %d (%s) is in use by %q", u.Pin, u.Name, u.Consumer)
	}
	return nil
}

// withPin runs f on a fresh handle for the pin named by the first argument.
func withPin(cfg *config.Config, ctx *cli.Context, f func(*gpio.UninitializedPin) error) error {
	if ctx.Args().Len() < 1 {
		return fmt.Errorf("%s needs a pin", ctx.Command.Name)
	}
	n, err := pinctl.ParsePin(ctx.Args().First())
	if err != nil {
		return err
	}
	rp, err := openBoard(cfg)
	if err != nil {
		return err
	}
	defer rp.Close()
	if err := checkLines(cfg, rp, []int{n}); err != nil {
		return err
	}
	p, err := rp.Controller().Pin(n)
	if err != nil {
		return err
	}
	return f(p)
}

func runInfo(cfg *config.Config, w io.Writer) error {
	rp, err := openBoard(cfg)
	if err != nil {
		return err
	}
	defer rp.Close()
	return writeInfo(w, rp)
}

func writeInfo(w io.Writer, rp *rpi.RPi) error {
	fmt.Fprintf(w, "board:       %s\n", rp.Name())
	fmt.Fprintf(w, "peripherals: %08X\n", rp.PeriphBase())
	fmt.Fprintf(w, "core clock:  %d Hz\n", rp.CoreClock())
	fmt.Fprintf(w, "oscillator:  %d Hz\n", rp.OscFreq())
	regs := rp.Registers()
	for n := 0; n < gpio.NumPins; n++ {
		f, err := gpio.FunctionOf(regs, n)
		if err != nil {
			return err
		}
		l, err := gpio.LevelOf(regs, n)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "GPIO%-2d %-6s %s\n", n, f, levelString(l))
	}
	return nil
}

func levelString(high bool) string {
	if high {
		return "1"
	}
	return "0"
}

// applyPins configures the pins listed in the config.
func applyPins(cfg *config.Config, mgr *pinctl.Manager) error {
	for _, pc := range cfg.Pins {
		n, err := pinctl.ParsePin(pc.Pin)
		if err != nil {
			return err
		}
		var initial *bool
		if pc.Initial != "" {
			high := pc.Initial == "high"
			initial = &high
		}
		if err := mgr.Configure(n, pc.Mode, initial); err != nil {
			return err
		}
		debug.DebugLog.Printf("configured pin %d as %s", n, pc.Mode)
	}
	return nil
}

func configuredPins(cfg *config.Config) []int {
	var pins []int
	for _, pc := range cfg.Pins {
		if n, err := pinctl.ParsePin(pc.Pin); err == nil {
			pins = append(pins, n)
		}
	}
	for _, s := range []string{cfg.Power.CtrlPin, cfg.Power.StatusPin} {
		if n, err := pinctl.ParsePin(s); err == nil && s != "" {
			pins = append(pins, n)
		}
	}
	return pins
}

func runServe(cfg *config.Config) error {
	rp, err := openBoard(cfg)
	if err != nil {
		return err
	}
	defer func() {
		debug.InfoLog.Printf("closing GPIO")
		_ = rp.Close()
	}()
	if err := checkLines(cfg, rp, configuredPins(cfg)); err != nil {
		return err
	}

	mgr := pinctl.New(rp.Controller())
	defer mgr.Close()
	if err := applyPins(cfg, mgr); err != nil {
		return err
	}
	pw, err := newPower(mgr, cfg.Power)
	if err != nil {
		return err
	}

	s, err := NewServer(cfg.Port, mgr, pw)
	if err != nil {
		return fmt.Errorf("failed creating server: %w", err)
	}
	defer s.Close()
	go s.handleConnections()

	web, err := newWebServer(cfg, rp, mgr)
	if err != nil {
		return err
	}
	go web.run()
	defer web.close()

	stop := make(chan struct{})
	defer close(stop)
	if cfg.MQTT.Connection != "" {
		client, err := connectMQTT(cfg.MQTT.Connection)
		if err != nil {
			return fmt.Errorf("can't connect to mqtt broker %s: %w", cfg.MQTT.Connection, err)
		}
		defer client.Disconnect(quiesce)
		pub := newPublisher(client, mgr, cfg.MQTT.Topic, cfg.MQTT.Interval)
		go pub.run(stop)
	}

	debug.InfoLog.Printf("starting %s", Version())

	// capture exit signals to ensure resources are released on exit.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(quit)

	sig := <-quit
	debug.InfoLog.Printf("Got %s signal. Aborting...", sig)
	return nil
}
