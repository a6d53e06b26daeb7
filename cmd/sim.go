package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"rcarelay/internal/app"
	"rcarelay/internal/client"
	"rcarelay/internal/config"
	"rcarelay/internal/scene"
	"rcarelay/internal/tui"
	"rcarelay/pkg/logging"
)

func newSimCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sim",
		Short: "Run an interactive stand-in for the planner, a unit or the scene",
		Long: `Runs a terminal simulator for one of the processes around the relay.
Addresses default to the relay configuration, so a simulator started next to
'rcarelay serve' finds it without flags.`,
	}
	cmd.AddCommand(newSimPlannerCmd())
	cmd.AddCommand(newSimUnitCmd())
	cmd.AddCommand(newSimSceneCmd())
	return cmd
}

func newSimPlannerCmd() *cobra.Command {
	var relayAddr string
	cmd := &cobra.Command{
		Use:   "planner",
		Short: "Connect as the planner and send command batches",
		Example: `  rcarelay sim planner
  rcarelay sim planner --relay 10.0.0.5:5555`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSimConfig()
			if err != nil {
				return err
			}
			addr := relayAddrOr(relayAddr, cfg)
			return runSimulator(cmd.Context(), cfg, tui.Options{
				Role: tui.RolePlanner,
				Name: "p",
				Addr: addr,
				Dial: dialRelay(addr, "p", client.Options{}),
			})
		},
	}
	cmd.Flags().StringVar(&relayAddr, "relay", "", "Relay address (host:port)")
	return cmd
}

func newSimUnitCmd() *cobra.Command {
	var (
		relayAddr      string
		exitOnShutdown bool
	)
	cmd := &cobra.Command{
		Use:   "unit <name>",
		Short: "Connect as a control unit and show the commands it receives",
		Long: `Connects to the relay as the unit <name>, a single byte other than "p"
and "e", and shows every command delivered to it. Typed input is sent as a
unit command and forwarded to the scene.`,
		Example: `  rcarelay sim unit t
  rcarelay sim unit f --exit-on-shutdown`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if err := client.ValidateName(name); err != nil {
				return err
			}
			if name == "p" {
				return fmt.Errorf("%w: %q is the planner handshake, use 'rcarelay sim planner'", client.ErrInvalidName, name)
			}
			cfg, err := loadSimConfig()
			if err != nil {
				return err
			}
			addr := relayAddrOr(relayAddr, cfg)
			return runSimulator(cmd.Context(), cfg, tui.Options{
				Role: tui.RoleUnit,
				Name: name,
				Addr: addr,
				Dial: dialRelay(addr, name, client.Options{CloseOnShutdown: exitOnShutdown}),
			})
		},
	}
	cmd.Flags().StringVar(&relayAddr, "relay", "", "Relay address (host:port)")
	cmd.Flags().BoolVar(&exitOnShutdown, "exit-on-shutdown", false, "Hang up when the planner sends the shutdown command")
	return cmd
}

func newSimSceneCmd() *cobra.Command {
	var listenAddr string
	cmd := &cobra.Command{
		Use:   "scene",
		Short: "Listen where the relay forwards unit commands and show each frame",
		Example: `  rcarelay sim scene
  rcarelay sim scene --listen :6666`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadSimConfig()
			if err != nil {
				return err
			}
			addr := listenAddr
			if addr == "" {
				addr = net.JoinHostPort("", strconv.Itoa(cfg.Scene.Port))
			}

			frames := make(chan string, 256)
			stub, err := scene.Listen(addr, func(_ string, frame string) {
				select {
				case frames <- frame:
				default:
				}
			})
			if err != nil {
				return err
			}
			defer stub.Close()

			ctx, cancel := context.WithCancel(contextOrBackground(cmd.Context()))
			defer cancel()
			go stub.Serve(ctx)

			return runSimulator(ctx, cfg, tui.Options{
				Role:   tui.RoleScene,
				Addr:   stub.Addr().String(),
				Frames: frames,
			})
		},
	}
	cmd.Flags().StringVar(&listenAddr, "listen", "", "Listen address (default: the configured scene port)")
	return cmd
}

func loadSimConfig() (config.RelayConfig, error) {
	// Loading logs before the TUI owns the terminal.
	logging.InitForCLI(logging.LevelWarn, os.Stderr)
	return app.LoadRelayConfig(app.NewConfig(configPath, debug))
}

func relayAddrOr(flag string, cfg config.RelayConfig) string {
	if flag != "" {
		return flag
	}
	host := cfg.Listen.Host
	if host == "" {
		host = "localhost"
	}
	return net.JoinHostPort(host, strconv.Itoa(cfg.Listen.Port))
}

func dialRelay(addr, name string, opts client.Options) tui.DialFunc {
	return func(ctx context.Context) (tui.Conn, error) {
		c, err := client.Dial(ctx, addr, name, opts)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// runSimulator switches logging to the TUI channel for the lifetime of the
// simulator.
func runSimulator(ctx context.Context, cfg config.RelayConfig, opts tui.Options) error {
	level := logging.LevelInfo
	if debug {
		level = logging.LevelDebug
	} else if l, err := logging.ParseLevel(cfg.Logging.Level); err == nil {
		level = l
	}
	logging.EnableFileSink(logging.FileOptions{
		Path:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
		Compress:   cfg.Logging.Compress,
	})
	opts.LogChannel = logging.InitForTUI(level)
	defer func() {
		logging.CloseTUIChannel()
		_ = logging.CloseFileSink()
	}()

	return tui.Run(contextOrBackground(ctx), opts)
}

func contextOrBackground(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
