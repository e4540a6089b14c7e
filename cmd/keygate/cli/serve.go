package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/keygate/keygate/internal/config"
	"github.com/keygate/keygate/internal/server"
)

const banner = `
 _  _________   ______    _  _____ _____
| |/ / ____\ \ / / ___|  / \|_   _| ____|
| ' /|  _|  \ V / |  _  / _ \ | | |  _|
| . \| |___  | || |_| |/ ___ \| | | |___
|_|\_\_____| |_| \____/_/   \_\_| |_____|
`

func newServeCmd() *cobra.Command {
	var (
		port int
		host string
		dev  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the keygate API server",
		Long:  "Start the HTTP server that exposes the authentication and API key management endpoints.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(host, port, dev)
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 8080, "HTTP listen port")
	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (verbose logging)")

	viper.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func runServe(host string, port int, dev bool) error {
	fmt.Print(banner)
	fmt.Println()

	level := viper.GetString("logging.level")
	if dev {
		level = "debug"
	}
	logger := newLogger(level, viper.GetString("logging.format"))

	app, err := buildApp(logger)
	if err != nil {
		return err
	}
	// The server owns the store from here; it closes it on shutdown.

	// First-run detection: an empty user table means nobody can log in yet.
	hasUser, err := app.store.HasAnyUser(context.Background())
	if err != nil {
		logger.Warn("failed to check for existing users", "error", err)
	}
	if !hasUser {
		logger.Warn("no user accounts found - run: keygate user create --admin")
	}

	srvCfg := server.Config{
		Host:               host,
		Port:               port,
		ShutdownTimeout:    config.Duration(app.cfg.Server.ShutdownTimeout, server.DefaultConfig().ShutdownTimeout),
		CORSOrigins:        app.cfg.Server.CORS.Origins,
		APIKeyHeader:       app.cfg.Auth.APIKeyHeader,
		LoginRatePerMinute: app.cfg.Server.LoginRatePerMinute,
	}

	srv := server.New(srvCfg, app.store, app.auth, app.keys, app.resolver, logger)

	fmt.Printf("→ Listening on http://%s:%d\n", host, port)
	fmt.Printf("→ API base:   http://%s:%d/api/v1\n", host, port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", host, port)
	fmt.Println()

	return srv.ListenAndServe()
}
