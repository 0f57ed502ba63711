package bootstrap

import (
	"context"
	"fmt"

	"callrelay/internal/broker"
	"callrelay/internal/config"
	"callrelay/internal/logger"
)

// Base carries the pieces every service shares: configuration, logging, and
// the broker session. Services embed it and add their own dependencies.
type Base struct {
	Config  *config.Config
	Logger  logger.Logger
	Session broker.Session
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

func (b *Base) InitSession(opts broker.SessionOptions) error {
	session, err := broker.NewSession(b.Config.Broker, opts, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create broker session: %w", err)
	}

	b.Session = session
	return nil
}

func (b *Base) ShutdownSession(ctx context.Context) []error {
	var errs []error

	if b.Session != nil {
		if err := b.Session.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("session disconnect error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down application...")

	var errs []error

	errs = append(errs, b.ShutdownSession(ctx)...)

	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Application exited successfully")
	return nil
}
