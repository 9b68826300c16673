package factory

import (
	"context"

	"github.com/mikey/gmail-sweeper/internal/adapters/gmailapi"
	"github.com/mikey/gmail-sweeper/internal/config"
	"github.com/mikey/gmail-sweeper/internal/core"
	"go.uber.org/zap"
)

// MailFactory creates mail clients from the credentials record
type MailFactory struct {
	creds  *config.CredentialsConfig
	logger *zap.Logger
}

// NewMailFactory creates a new mail factory
func NewMailFactory(creds *config.CredentialsConfig, logger *zap.Logger) *MailFactory {
	return &MailFactory{
		creds:  creds,
		logger: logger,
	}
}

// CreateMailClient authenticates once and returns the mail client. Fails when
// the credential material is missing or the grant flow cannot complete.
func (f *MailFactory) CreateMailClient(ctx context.Context) (core.MailClient, error) {
	return gmailapi.NewClient(ctx, f.creds.GoogleCredentialsPath, f.creds.TokenCachePath, f.logger)
}
