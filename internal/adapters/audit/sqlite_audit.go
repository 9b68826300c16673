package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikey/gmail-sweeper/internal/core"
	"go.uber.org/zap"
)

// SQLiteAudit is a SQLite implementation of the AuditRepository interface
type SQLiteAudit struct {
	db          *sql.DB
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewSQLiteAudit creates a new SQLite audit store
func NewSQLiteAudit(dbPath string, logger *zap.Logger, cleanupFreq time.Duration) (*SQLiteAudit, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Create table if it doesn't exist
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sweep_audit (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			message_ref TEXT NOT NULL,
			recipients TEXT,
			action TEXT,
			swept_at TIMESTAMP,
			expires_at TIMESTAMP
		)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create table: %w", err)
	}

	// Create index on expires_at for faster cleanup
	_, err = db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_audit_expires_at ON sweep_audit(expires_at)
	`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create index: %w", err)
	}

	store := &SQLiteAudit{
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
func (a *SQLiteAudit) Record(ctx context.Context, entry *core.AuditEntry) error {
	_, err := a.db.ExecContext(ctx, `
		INSERT INTO sweep_audit (message_ref, recipients, action, swept_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.MessageRef,
		strings.Join(entry.Recipients, ","),
		string(entry.Action),
		entry.SweptAt.Format(time.RFC3339),
		entry.ExpiresAt.Format(time.RFC3339))

	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// Cleanup removes entries past their retention window
func (a *SQLiteAudit) Cleanup(ctx context.Context) error {
	result, err := a.db.ExecContext(ctx, `
		DELETE FROM sweep_audit
		WHERE expires_at <= ?
	`, time.Now().Format(time.RFC3339))

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
func (a *SQLiteAudit) startCleanupTask() {
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
func (a *SQLiteAudit) Stop() {
	close(a.stopCh)
	if err := a.db.Close(); err != nil {
		a.logger.Error("Failed to close SQLite database", zap.Error(err))
	}
}
