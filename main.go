package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/dmorgan81/fluxgen/internal/config"
	"github.com/dmorgan81/fluxgen/internal/handler"
	"github.com/dmorgan81/fluxgen/internal/inject"
	"github.com/dmorgan81/fluxgen/internal/log"
	"github.com/dmorgan81/fluxgen/internal/prompt"
	"github.com/joho/godotenv"
	"github.com/samber/do"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return fmt.Errorf("%w: .env: %w", config.ErrConfig, err)
		}
	}

	settings, err := config.LoadSettings()
	if err != nil {
		return err
	}
	level, err := log.ParseLevel(settings.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: FLUX_LOG_LEVEL: %w", config.ErrConfig, err)
	}

	ctx := log.NewContext(context.Background(), log.New(os.Stderr, level))
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	base, err := baseDir(settings.Home)
	if err != nil {
		return err
	}

	injector := inject.Setup(ctx, inject.Options{
		Settings: settings,
		BaseDir:  base,
		Stdin:    os.Stdin,
		Stdout:   os.Stdout,
	})
	defer func() {
		_ = injector.Shutdown()
	}()

	h, err := do.Invoke[*handler.Handler](injector)
	if err != nil {
		return err
	}

	fmt.Println("FLUX.1-DEV IMAGE GENERATOR")
	fmt.Println("--------------------------")

	text, err := do.MustInvoke[*prompt.Reader](injector).Read(ctx)
	if err != nil {
		return err
	}

	_, err = h.Handle(ctx, handler.Input{Prompt: text})
	return err
}

// baseDir is where config.json and output/ live: FLUX_HOME if set, otherwise
// the directory of the executable.
func baseDir(home string) (string, error) {
	if home != "" {
		return filepath.Abs(home)
	}
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}
