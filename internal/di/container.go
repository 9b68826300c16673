package di

import (
	"context"
	"time"

	"go.uber.org/dig"
	"go.uber.org/zap"

	"github.com/mikey/gmail-sweeper/internal/config"
	"github.com/mikey/gmail-sweeper/internal/core"
	"github.com/mikey/gmail-sweeper/internal/factory"
	"github.com/mikey/gmail-sweeper/internal/logging"
)

// BuildContainer creates and configures a dependency injection container
func BuildContainer() (*dig.Container, error) {
	container := dig.New()

	// Register configuration
	if err := container.Provide(config.New); err != nil {
		return nil, err
	}

	// Register logger
	if err := container.Provide(logging.InitLogger); err != nil {
		return nil, err
	}

	// Register the credentials record
	if err := container.Provide(func(cfg *config.Config) (*config.CredentialsConfig, error) {
		return cfg.GetCredentials()
	}); err != nil {
		return nil, err
	}

	// Register the sweep configuration
	if err := container.Provide(func(cfg *config.Config) (*config.SweepConfig, error) {
		return cfg.GetSweep()
	}); err != nil {
		return nil, err
	}

	// Register factories
	if err := container.Provide(factory.NewMailFactory); err != nil {
		return nil, err
	}
	if err := container.Provide(factory.NewAuditFactory); err != nil {
		return nil, err
	}

	// Register mail client
	if err := container.Provide(func(f *factory.MailFactory) (core.MailClient, error) {
		return f.CreateMailClient(context.Background())
	}); err != nil {
		return nil, err
	}

	// Register audit repository and retention
	if err := container.Provide(func(f *factory.AuditFactory) (core.AuditRepository, error) {
		return f.CreateAuditRepository()
	}); err != nil {
		return nil, err
	}
	if err := container.Provide(func(f *factory.AuditFactory) (time.Duration, error) {
		return f.GetRetention()
	}); err != nil {
		return nil, err
	}

	// Register sweep service
	if err := container.Provide(func(
		mail core.MailClient,
		audit core.AuditRepository,
		logger *zap.Logger,
		creds *config.CredentialsConfig,
		sweepCfg *config.SweepConfig,
		retention time.Duration,
	) *core.SweepService {
		return core.NewSweepService(
			mail,
			audit,
			logger,
			creds.Domain,
			core.Action(sweepCfg.Action),
			sweepCfg.PolicyPath,
			sweepCfg.AdvanceWatermark,
			retention,
		)
	}); err != nil {
		return nil, err
	}

	return container, nil
}
