package audit

import (
	"context"
	"sync"
	"time"

	"github.com/mikey/gmail-sweeper/internal/core"
	"go.uber.org/zap"
)

// MemoryAudit is an in-memory implementation of the AuditRepository interface.
// Entries are lost on restart; useful for trial runs.
type MemoryAudit struct {
	entries     []*core.AuditEntry
	mu          sync.Mutex
	logger      *zap.Logger
	cleanupFreq time.Duration
	stopCh      chan struct{}
}

// NewMemoryAudit creates a new in-memory audit store
func NewMemoryAudit(logger *zap.Logger, cleanupFreq time.Duration) *MemoryAudit {
	store := &MemoryAudit{
		logger:      logger,
		cleanupFreq: cleanupFreq,
		stopCh:      make(chan struct{}),
	}

	// Start background cleanup
	go store.startCleanupTask()

	return store
}

// Record stores an audit entry
func (a *MemoryAudit) Record(ctx context.Context, entry *core.AuditEntry) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.entries = append(a.entries, entry)
	return nil
}

// Entries returns a copy of the stored entries
func (a *MemoryAudit) Entries() []*core.AuditEntry {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]*core.AuditEntry, len(a.entries))
	copy(out, a.entries)
	return out
}

// Cleanup removes entries past their retention window
func (a *MemoryAudit) Cleanup(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := time.Now()
	kept := a.entries[:0]
	expired := 0
	for _, entry := range a.entries {
		if now.After(entry.ExpiresAt) {
			expired++
			continue
		}
		kept = append(kept, entry)
	}
	a.entries = kept

	a.logger.Debug("Cleaned up expired audit entries", zap.Int("expired_count", expired))
	return nil
}

// startCleanupTask starts a background task to clean up expired entries
func (a *MemoryAudit) startCleanupTask() {
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

// Stop stops the background cleanup task
func (a *MemoryAudit) Stop() {
	close(a.stopCh)
}
