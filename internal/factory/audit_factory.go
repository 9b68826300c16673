package factory

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mikey/gmail-sweeper/internal/adapters/audit"
	"github.com/mikey/gmail-sweeper/internal/config"
	"github.com/mikey/gmail-sweeper/internal/core"
	"go.uber.org/zap"
)

// AuditFactory creates audit repositories based on configuration
type AuditFactory struct {
	cfg    *config.Config
	logger *zap.Logger
}

// NewAuditFactory creates a new audit factory
func NewAuditFactory(cfg *config.Config, logger *zap.Logger) *AuditFactory {
	return &AuditFactory{
		cfg:    cfg,
		logger: logger,
	}
}

// CreateAuditRepository creates an audit repository based on the configuration.
// Returns nil when auditing is disabled; the sweep pipeline treats a nil
// repository as "no audit trail".
func (f *AuditFactory) CreateAuditRepository() (core.AuditRepository, error) {
	if !f.cfg.GetBool("audit.enabled") {
		return nil, nil
	}

	auditCfg := f.cfg.GetAudit()
	cleanupFreq, err := f.cfg.GetDuration("audit.cleanup_frequency")
	if err != nil {
		return nil, fmt.Errorf("invalid audit cleanup frequency: %w", err)
	}

	switch auditCfg.Type {
	case "memory":
		return audit.NewMemoryAudit(f.logger, cleanupFreq), nil
	case "sqlite":
		// Ensure directory exists
		if err := os.MkdirAll(filepath.Dir(auditCfg.SQLitePath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create SQLite directory: %w", err)
		}
		return audit.NewSQLiteAudit(auditCfg.SQLitePath, f.logger, cleanupFreq)
	case "mysql":
		return audit.NewMySQLAudit(auditCfg.MySQLDSN, f.logger, cleanupFreq)
	default:
		return nil, fmt.Errorf("unsupported audit type: %s", auditCfg.Type)
	}
}

// GetRetention returns the configured audit retention window
func (f *AuditFactory) GetRetention() (time.Duration, error) {
	return f.cfg.GetDuration("audit.retention")
}
