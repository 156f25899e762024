package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/ethereum/go-ethereum/log"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"
)

var Version = "v0.1.0"

func main() {
	// .env first, then .env.local overrides it
	_ = godotenv.Load()
	_ = godotenv.Overload(".env.local")

	app := cli.NewApp()
	app.Name = "multibuy"
	app.Usage = "buy into multi-token baskets proportionally through Bancor"
	app.Version = Version
	app.Flags = GlobalFlags
	app.Before = setupLogging
	app.Commands = []*cli.Command{
		basketsCommand,
		tokensCommand,
		pricesCommand,
		planCommand,
		buyCommand,
		watchCommand,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Crit("Application failed", "message", err)
	}
}

func setupLogging(c *cli.Context) error {
	st, err := settings(c)
	if err != nil {
		return err
	}
	lvl, err := parseLevel(st.LogLevel)
	if err != nil {
		return err
	}
	color := term.IsTerminal(int(os.Stderr.Fd()))
	log.SetDefault(log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, color)))
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return log.LevelTrace, nil
	case "debug":
		return log.LevelDebug, nil
	case "", "info":
		return log.LevelInfo, nil
	case "warn", "warning":
		return log.LevelWarn, nil
	case "error":
		return log.LevelError, nil
	case "crit":
		return log.LevelCrit, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}
