// Command intake is a local operator CLI over the customer intake core.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"customerIntake/internal/app"
	"customerIntake/internal/apperr"
	"customerIntake/internal/config"
	"customerIntake/internal/logger"

	"go.uber.org/zap"
)

const usage = `usage: intake <command> [flags]

commands:
  init                              create the store and the default admin
  login     -u USER -p PASS         print a session token
  whoami                            show the current session
  stats                             system-wide counts (admin only)
  user      create|list
  customer  submit|list|show|document|approve|pending|delete
  dashboard show|set|clear-image
  db        versions|rollback       (sqlite backend only; a rolled back
                                    migration is reapplied on the next start)

Every command except init and "dashboard show" authenticates with -u/-p or -token.

exit status: 0 ok, 1 rejected request, 2 invalid usage, 3 unexpected failure.
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		fmt.Fprint(stderr, usage)
		return 2
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return 1
	}
	log, err := logger.New(&logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		fmt.Fprintf(stderr, "init logger: %v\n", err)
		return 1
	}
	defer func() { _ = log.Sync() }()
	log.Debug("configuration loaded", zap.Stringer("config", cfg))

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		fmt.Fprintf(stderr, "start: %v\n", err)
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("close", zap.Error(err))
		}
	}()

	c := &cli{app: a, out: stdout}
	if err := c.dispatch(ctx, args); err != nil {
		fmt.Fprintf(stderr, "error: %s\n", describe(err))
		return exitStatus(err, log)
	}
	return 0
}

// exitStatus maps a failed command to its exit code. Failures the operator
// cannot fix by changing the request are logged with their full cause.
func exitStatus(err error, log *zap.Logger) int {
	switch {
	case errors.Is(err, errUsage):
		return 2
	case apperr.Recoverable(err):
		return 1
	}
	log.Error("command failed", zap.Error(err))
	return 3
}

// loadConfig uses the strict loader in production and development
// defaults elsewhere.
func loadConfig() (*config.Config, error) {
	if os.Getenv("INTAKE_ENV") == "production" {
		return config.Load()
	}
	return config.LoadWithDefaults()
}
