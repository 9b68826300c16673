package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/mikey/gmail-sweeper/internal/policy"
	"go.uber.org/zap"
)

// SweepService drives the scan-and-classify pipeline: paginated listing since
// the watermark, per-message recipient extraction and policy evaluation, and
// the resulting mutation. Cycles are strictly sequential; the policy record is
// loaded fresh at the start of each owning operation and saved at its end.
type SweepService struct {
	mail             MailClient
	audit            AuditRepository
	logger           *zap.Logger
	domain           string
	action           Action
	policyPath       string
	advanceWatermark bool
	retention        time.Duration
}

// NewSweepService creates a new sweep service
func NewSweepService(
	mail MailClient,
	audit AuditRepository,
	logger *zap.Logger,
	domain string,
	action Action,
	policyPath string,
	advanceWatermark bool,
	retention time.Duration,
) *SweepService {
	return &SweepService{
		mail:             mail,
		audit:            audit,
		logger:           logger,
		domain:           domain,
		action:           action,
		policyPath:       policyPath,
		advanceWatermark: advanceWatermark,
		retention:        retention,
	}
}

// EnsurePolicy guarantees a policy record exists before the steady-state loop
// starts. When the file is missing it bootstraps one from all mail since
// startDate; when it exists, discovery is re-run from the stored watermark and
// merged add-only, so manual blocks survive. Either way the watermark advances
// and the record is persisted.
func (s *SweepService) EnsurePolicy(ctx context.Context, startDate time.Time) error {
	record, err := policy.Load(s.policyPath)
	since := startDate
	switch {
	case err == nil:
		since = record.Watermark()
		s.logger.Info("Refreshing existing policy record",
			zap.String("path", s.policyPath),
			zap.Int("addresses", record.Len()),
			zap.Time("watermark", since))
	case errors.Is(err, os.ErrNotExist):
		s.logger.Info("Policy record not found, bootstrapping",
			zap.String("path", s.policyPath),
			zap.Time("start_date", startDate))
		record = policy.NewRecord()
	default:
		return fmt.Errorf("failed to load policy record: %w", err)
	}

	addresses, err := s.DiscoverAddresses(ctx, since)
	if err != nil {
		return err
	}
	s.logger.Info("Address discovery complete", zap.Int("unique_addresses", len(addresses)))

	for _, addr := range addresses {
		record.AddAddress(addr)
	}
	record.AdvanceWatermark(time.Now().UTC())

	if err := record.Save(s.policyPath); err != nil {
		return err
	}

	s.logger.Info("Policy record written",
		zap.String("path", s.policyPath),
		zap.Int("addresses", record.Len()))
	s.logger.Info("Review the policy file and set addresses to false to block them")
	return nil
}

// DiscoverAddresses scans all messages since the given date and returns the
// union of their in-domain recipient local-parts, sorted. A failure on one
// message is logged and skipped; it never aborts the scan.
func (s *SweepService) DiscoverAddresses(ctx context.Context, since time.Time) ([]string, error) {
	refs, err := s.mail.ListMessageRefs(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}
	s.logger.Info("Scanning messages for addresses", zap.Int("count", len(refs)))

	seen := make(map[string]struct{})
	for idx, ref := range refs {
		if idx > 0 && idx%100 == 0 {
			s.logger.Debug("Discovery progress",
				zap.Int("scanned", idx),
				zap.Int("total", len(refs)))
		}

		msg, err := s.mail.FetchMessage(ctx, ref)
		if err != nil {
			s.logger.Warn("Failed to fetch message during discovery",
				zap.String("ref", ref),
				zap.Error(err))
			continue
		}

		recipients, err := ExtractRecipients(msg, s.domain)
		if err != nil {
			s.logger.Warn("Failed to extract recipients during discovery",
				zap.String("ref", ref),
				zap.Error(err))
			continue
		}

		for _, localPart := range recipients {
			seen[localPart] = struct{}{}
		}
	}

	addresses := make([]string, 0, len(seen))
	for addr := range seen {
		addresses = append(addresses, addr)
	}
	sort.Strings(addresses)
	return addresses, nil
}

// RunCycle executes one steady-state sweep: load the policy record, list all
// messages since its watermark, classify each message independently, and sweep
// the ones addressed to a blocked local-part. Per-message failures are logged
// and skipped without affecting the rest of the cycle.
func (s *SweepService) RunCycle(ctx context.Context) (*CycleStats, error) {
	cycleStart := time.Now().UTC()

	record, err := policy.Load(s.policyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load policy record: %w", err)
	}

	refs, err := s.mail.ListMessageRefs(ctx, record.Watermark())
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	stats := &CycleStats{Found: len(refs)}
	s.logger.Info("Found messages to process", zap.Int("count", len(refs)))

	for idx, ref := range refs {
		if idx > 0 && idx%50 == 0 {
			s.logger.Info("Progress",
				zap.Int("processed", idx),
				zap.Int("total", len(refs)))
		}

		swept, err := s.processMessage(ctx, ref, record)
		if err != nil {
			s.logger.Warn("Failed to process message",
				zap.String("ref", ref),
				zap.Error(err))
			stats.Skipped++
			continue
		}

		stats.Processed++
		if swept {
			stats.Swept++
		}
	}

	if s.advanceWatermark {
		record.AdvanceWatermark(cycleStart)
		if err := record.Save(s.policyPath); err != nil {
			return stats, fmt.Errorf("failed to persist watermark: %w", err)
		}
	}

	return stats, nil
}

// processMessage classifies a single message and applies the configured
// mutation when any recipient is blocked. Returns whether the message was swept.
func (s *SweepService) processMessage(ctx context.Context, ref string, record *policy.Record) (bool, error) {
	msg, err := s.mail.FetchMessage(ctx, ref)
	if err != nil {
		return false, err
	}

	recipients, err := ExtractRecipients(msg, s.domain)
	if err != nil {
		return false, err
	}

	// No in-domain recipients: nothing to evaluate
	if len(recipients) == 0 {
		return false, nil
	}

	if !shouldSweep(recipients, record) {
		return false, nil
	}

	s.logger.Info("Sweeping message",
		zap.String("ref", ref),
		zap.Strings("recipients", recipients),
		zap.String("action", string(s.action)))

	switch s.action {
	case ActionSpam:
		err = s.mail.MarkAsSpam(ctx, ref)
	default:
		err = s.mail.DeleteMessage(ctx, ref)
	}
	if err != nil {
		return false, err
	}

	s.recordAudit(ctx, ref, recipients)
	return true, nil
}

// recordAudit writes an audit entry for an applied mutation. Audit failures are
// logged and never fail the sweep.
func (s *SweepService) recordAudit(ctx context.Context, ref string, recipients []string) {
	if s.audit == nil {
		return
	}

	now := time.Now().UTC()
	entry := &AuditEntry{
		MessageRef: ref,
		Recipients: recipients,
		Action:     s.action,
		SweptAt:    now,
		ExpiresAt:  now.Add(s.retention),
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Error("Failed to record audit entry",
			zap.String("ref", ref),
			zap.Error(err))
	}
}

// shouldSweep reports whether any recipient's local-part is blocked by policy
func shouldSweep(recipients []string, record *policy.Record) bool {
	for _, localPart := range recipients {
		if !record.IsAllowed(localPart) {
			return true
		}
	}
	return false
}
