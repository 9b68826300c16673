package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/mikey/gmail-sweeper/internal/core"
	"go.uber.org/zap"
)

// MySQLAudit is a MySQL implementation of the AuditRepository interface
type MySQLAudit struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewMySQLAudit creates a new MySQL audit store
func NewMySQLAudit(dsn string, logger *zap.Logger, cleanupFreq time.Duration) (*MySQLAudit, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to MySQL database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sweep_audit (
			id BIGINT AUTO_INCREMENT PRIMARY KEY,
			message_ref VARCHAR(255) NOT NULL,
			recipients TEXT,
			action VARCHAR(16),
			swept_at TIMESTAMP,
			expires_at TIMESTAMP,
			INDEX idx_audit_expires_at (expires_at)
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	store := &MySQLAudit{
		db:          db,
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	// Start background cleanup
	go store.startCleanupTask()

	return store, nil
}

// Record stores an audit entry
func (a *MySQLAudit) Record(ctx context.Context, entry *core.AuditEntry) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO sweep_audit (message_ref, recipients, action, swept_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.MessageRef,
		strings.Join(entry.Recipients, ","),
		string(entry.Action),
		entry.SweptAt.Format("2006-01-02 15:04:05"),
		entry.ExpiresAt.Format("2006-01-02 15:04:05"))

	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Cleanup removes entries past their retention window
func (a *MySQLAudit) Cleanup(ctx context.Context) error {
	result, err := a.db.ExecContext(ctx, `
		DELETE FROM sweep_audit
		WHERE expires_at <= NOW()
	`)

	if err != nil {
		return fmt.Errorf("failed to clean up expired entries: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		a.logger.Warn("Failed to get rows affected during cleanup", zap.Error(err))
	} else {
		a.logger.Debug("Cleaned up expired audit entries", zap.Int64("expired_count", rowsAffected))
	}

	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (a *MySQLAudit) startCleanupTask() {
	ticker := time.NewTicker(a.cleanupFreq)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := a.Cleanup(context.Background()); err != nil {
				a.logger.Error("Failed to clean up audit store", zap.Error(err))
			}
		case <-a.stopCh:
			return
		}
	}
}

// Stop stops the background cleanup task and closes the database connection
func (a *MySQLAudit) Stop() {
	close(a.stopCh)
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close MySQL database", zap.Error(err))
	}
}
