package main

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"lessonshop/internal/config"
	"lessonshop/internal/logging"
	"lessonshop/internal/storeclient"
	"lessonshop/internal/storefront"
	"lessonshop/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.StorefrontFromEnv()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var logOut io.Writer = io.Discard
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger, err := logging.New("storefront", cfg.LogLevel, false, logOut)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	policy, err := storefront.PolicyByName(cfg.ValidationPolicy)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	client, err := storeclient.New(storeclient.Config{
		BaseURL:         cfg.BaseURL,
		RequestTimeout:  cfg.RequestTimeout,
		BreakerFailures: cfg.BreakerFailures,
		BreakerCooldown: cfg.BreakerCooldown,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("store client: %w", err)
	}

	session := storefront.NewSession(client, storefront.Options{
		Policy:               policy,
		DecrementConcurrency: cfg.DecrementConcurrency,
		OptimisticInventory:  cfg.OptimisticInventory,
		Logger:               logger,
	})
	logger.Info().Str("store", client.BaseURL()).Str("policy", policy.Name).Msg("storefront starting")

	p := tea.NewProgram(tui.New(session, client.ImageURL))
	if _, err := p.Run(); err != nil {
		logger.Error().Err(err).Msg("storefront stopped")
		return err
	}
	return nil
}
