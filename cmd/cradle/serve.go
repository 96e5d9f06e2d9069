// ABOUTME: CLI commands for running the sync server and issuing bearer tokens.
// ABOUTME: serve runs the HTTP API and the notification scheduler until interrupted.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/harperreed/cradle/internal/config"
	"github.com/harperreed/cradle/internal/logger"
	"github.com/harperreed/cradle/internal/scheduler"
	"github.com/harperreed/cradle/internal/server"
	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveLogFile string
	serveNoCron  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sync server",
	Long: `Run the HTTP API and the notification scheduler.

Configuration is read from ~/.config/cradle/config.json and the environment:

  CRADLE_JWT_SECRET        HMAC secret for bearer tokens (required)
  CRADLE_DATA_DIR          directory for cradle.db
  CRADLE_LISTEN_ADDR       listen address (default :8080)
  CRADLE_ALLOWED_ORIGINS   comma-separated CORS origins

EXAMPLES:

  cradle serve
  cradle serve --addr 127.0.0.1:9000 --log-file /var/log/cradle.log`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if serveAddr != "" {
			cfg.ListenAddr = serveAddr
		}
		if serveLogFile != "" {
			cfg.LogFile = serveLogFile
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		timeout, err := cfg.GetRequestTimeout()
		if err != nil {
			return err
		}
		interval, err := cfg.GetSchedulerInterval()
		if err != nil {
			return err
		}

		l, err := logger.NewWithFile(cfg.GetLogMode(), cfg.GetLogFile(), logger.FileOptions{MaxBackups: 5, MaxAgeDays: 28})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		log = l

		db, err := cfg.OpenStorage()
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		srv, err := server.New(db, log, server.Config{
			JWTSecret:      []byte(cfg.JWTSecret),
			AllowedOrigins: cfg.AllowedOrigins,
			RequestTimeout: timeout,
		})
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if !serveNoCron {
			runner := scheduler.New(db, scheduler.LogNotifier{Log: log}, log, scheduler.WithInterval(interval))
			if err := runner.Start(ctx); err != nil {
				return err
			}
			defer runner.Stop()
		}

		log.Info("starting cradle server", "version", version, "db", cfg.GetDBPath())
		return srv.Run(ctx, cfg.GetListenAddr())
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token <owner>",
	Short: "Issue a bearer token for an owner",
	Long: `Issue a bearer token signed with the server's JWT secret.

Hand the token to the owner's devices for 'cradle sync login'.

EXAMPLE:

  cradle token 1`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || owner <= 0 {
			return fmt.Errorf("invalid owner id: %s", args[0])
		}
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		ttl, err := cfg.GetTokenTTL()
		if err != nil {
			return err
		}
		token, err := server.IssueToken([]byte(cfg.JWTSecret), owner, ttl, time.Now())
		if err != nil {
			return fmt.Errorf("failed to issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		color.New(color.Faint).Fprintf(os.Stderr, "expires %s\n", time.Now().Add(ttl).Format("2006-01-02"))
		return nil
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "also write JSON logs to this file, rotated")
	serveCmd.Flags().BoolVar(&serveNoCron, "no-scheduler", false, "do not fire notification schedules")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(tokenCmd)
}
