package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/facebookgo/clock"
	"github.com/facebookgo/httpdown"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
)

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "pingchat: %v\n", err)
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "pingchat",
		Usage:   "Relay chat messages to every connected listener",
		Version: fmt.Sprintf("%s (%s)", version, commit),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to a YAML config file",
				Sources: cli.EnvVars("PINGCHAT_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "http service address",
				Sources: cli.EnvVars("PINGCHAT_ADDR"),
			},
			&cli.StringFlag{
				Name:    "topic",
				Usage:   "topic that /send publishes to and /listen reads from",
				Sources: cli.EnvVars("PINGCHAT_TOPIC"),
			},
			&cli.DurationFlag{
				Name:    "keepalive",
				Usage:   "interval between keepalive records on a listen stream",
				Sources: cli.EnvVars("PINGCHAT_KEEPALIVE"),
			},
			&cli.DurationFlag{
				Name:    "rate-limit",
				Usage:   "minimum interval between publishes from one client",
				Sources: cli.EnvVars("PINGCHAT_RATE_LIMIT"),
			},
			&cli.IntFlag{
				Name:    "subscriber-buffer",
				Usage:   "messages queued per listener before new ones are dropped",
				Sources: cli.EnvVars("PINGCHAT_SUBSCRIBER_BUFFER"),
			},
			&cli.StringFlag{
				Name:    "cookie-name",
				Usage:   "name of the identity cookie",
				Sources: cli.EnvVars("PINGCHAT_COOKIE_NAME"),
			},
			&cli.StringFlag{
				Name:    "origin",
				Usage:   "websocket server checks Origin headers against this scheme://host[:port]",
				Sources: cli.EnvVars("PINGCHAT_ORIGIN"),
			},
			&cli.StringFlag{
				Name:    "cookie-secret",
				Usage:   "sign identity cookies with this secret",
				Sources: cli.EnvVars("PINGCHAT_COOKIE_SECRET"),
			},
			&cli.DurationFlag{
				Name:    "stop-timeout",
				Usage:   "stop timeout",
				Sources: cli.EnvVars("PINGCHAT_STOP_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "kill-timeout",
				Usage:   "kill timeout",
				Sources: cli.EnvVars("PINGCHAT_KILL_TIMEOUT"),
			},
			&cli.DurationFlag{
				Name:    "metrics.tick",
				Usage:   "metrics: duration between reports (0 disables)",
				Sources: cli.EnvVars("PINGCHAT_METRICS_TICK"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (trace, debug, info, warn, error)",
				Sources: cli.EnvVars("PINGCHAT_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "path to log file (optional)",
				Sources: cli.EnvVars("PINGCHAT_LOG_FILE"),
			},
		},
		Action: serve,
	}
}

// loadConfig reads the config file and lets explicitly set flags win.
func loadConfig(cmd *cli.Command) (Config, error) {
	cfg, err := LoadConfig(cmd.String("config"))
	if err != nil {
		return cfg, err
	}

	if cmd.IsSet("addr") {
		cfg.Addr = cmd.String("addr")
	}
	if cmd.IsSet("topic") {
		cfg.Topic = cmd.String("topic")
	}
	if cmd.IsSet("keepalive") {
		cfg.Keepalive = cmd.Duration("keepalive")
	}
	if cmd.IsSet("rate-limit") {
		cfg.RateLimit = cmd.Duration("rate-limit")
	}
	if cmd.IsSet("subscriber-buffer") {
		cfg.SubscriberBuffer = cmd.Int("subscriber-buffer")
	}
	if cmd.IsSet("cookie-name") {
		cfg.Cookie.Name = cmd.String("cookie-name")
	}
	if cmd.IsSet("origin") {
		cfg.Origin = cmd.String("origin")
	}
	if cmd.IsSet("cookie-secret") {
		cfg.Cookie.Secret = cmd.String("cookie-secret")
	}
	if cmd.IsSet("stop-timeout") {
		cfg.StopTimeout = cmd.Duration("stop-timeout")
	}
	if cmd.IsSet("kill-timeout") {
		cfg.KillTimeout = cmd.Duration("kill-timeout")
	}
	if cmd.IsSet("metrics.tick") {
		cfg.MetricsInterval = cmd.Duration("metrics.tick")
	}
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("log-file") {
		cfg.LogFile = cmd.String("log-file")
	}

	return cfg, cfg.Validate()
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logFile, err := setupLogger(cfg.LogLevel, cfg.LogFile)
	if err != nil {
		return err
	}
	if logFile != nil {
		defer logFile.Close()
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.New()
	m := newMetrics(log.With().Str("component", "metrics").Logger(), cfg.MetricsInterval)
	a := newApp(cfg, clk, log.Logger, m)

	metricsDone := make(chan struct{})
	go func() {
		defer close(metricsDone)
		m.run(ctx)
	}()

	// Prepare the stoppable HTTP server
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           a.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	hd := &httpdown.HTTP{
		StopTimeout: cfg.StopTimeout,
		KillTimeout: cfg.KillTimeout,
		Clock:       clk,
	}

	s, err := hd.ListenAndServe(server)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	}
	log.Info().Str("addr", cfg.Addr).Str("topic", cfg.Topic).Msg("pingchat listening")

	waitErr := make(chan error, 1)
	go func() { waitErr <- s.Wait() }()

	select {
	case err = <-waitErr:
		stop()
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		a.hub.close()
		err = s.Stop()
	}
	<-metricsDone
	return err
}

// setupLogger points the global logger at stderr and, when logFile is set,
// also at that file. The caller closes the returned file.
func setupLogger(level string, logFile string) (*os.File, error) {
	parsedLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level: %w", err)
	}

	var output io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	var file *os.File

	if logFile != "" {
		if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}

		file, err = os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}

		// Write to both console and file
		output = io.MultiWriter(
			zerolog.ConsoleWriter{Out: os.Stderr},
			file,
		)
	}

	log.Logger = log.Output(output).Level(parsedLevel).With().Timestamp().Logger()

	return file, nil
}
