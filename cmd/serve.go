package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"rcarelay/internal/app"
)

// serveFlags holds the values of the serve command's override flags.
type serveFlags struct {
	host      string
	port      int
	sceneHost string
	scenePort int
	adminOn   bool
	adminPort int
}

// overrides returns the overrides for the flags set on cmd. Unset flags
// leave the loaded configuration alone.
func (f *serveFlags) overrides(cmd *cobra.Command) app.Overrides {
	var o app.Overrides
	flags := cmd.Flags()
	if flags.Changed("host") {
		o.ListenHost = &f.host
	}
	if flags.Changed("port") {
		o.ListenPort = &f.port
	}
	if flags.Changed("scene-host") {
		o.SceneHost = &f.sceneHost
	}
	if flags.Changed("scene-port") {
		o.ScenePort = &f.scenePort
	}
	if flags.Changed("admin") {
		o.AdminEnabled = &f.adminOn
	}
	if flags.Changed("admin-port") {
		o.AdminPort = &f.adminPort
	}
	return o
}

func newServeCmd() *cobra.Command {
	f := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay",
		Long: `Starts the relay listener and the scene forwarder, and optionally the MCP
admin endpoint, then runs until interrupted.

Configuration is loaded from ~/.config/rcarelay/config.yaml and then
./.rcarelay/config.yaml, or from the file given with --config. Flags
override the loaded configuration.`,
		Example: `  rcarelay serve
  rcarelay serve --host 127.0.0.1 --port 5555 --scene-host localhost --scene-port 6666
  rcarelay serve --admin --admin-port 8095 --debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.NewConfig(configPath, debug)
			cfg.Version = rootCmd.Version
			cfg.Overrides = f.overrides(cmd)

			application, err := app.NewApplication(cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application: %w", err)
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return application.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&f.host, "host", "", "Relay listen host (empty for all interfaces)")
	cmd.Flags().IntVar(&f.port, "port", 0, "Relay listen port")
	cmd.Flags().StringVar(&f.sceneHost, "scene-host", "", "Scene host")
	cmd.Flags().IntVar(&f.scenePort, "scene-port", 0, "Scene port")
	cmd.Flags().BoolVar(&f.adminOn, "admin", false, "Enable the MCP admin endpoint")
	cmd.Flags().IntVar(&f.adminPort, "admin-port", 0, "MCP admin endpoint port")
	return cmd
}
