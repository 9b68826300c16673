package core

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mikey/gmail-sweeper/internal/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type fakeMailClient struct {
	refs     []string
	messages map[string]*Message
	fetchErr map[string]error
	listErr  error
	deleted  []string
	spammed  []string
}

func (f *fakeMailClient) ListMessageRefs(ctx context.Context, since time.Time) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.refs, nil
}

func (f *fakeMailClient) FetchMessage(ctx context.Context, ref string) (*Message, error) {
	if err, ok := f.fetchErr[ref]; ok {
		return nil, err
	}
	msg, ok := f.messages[ref]
	if !ok {
		return nil, errors.New("message not found")
	}
	return msg, nil
}

func (f *fakeMailClient) DeleteMessage(ctx context.Context, ref string) error {
	f.deleted = append(f.deleted, ref)
	return nil
}

func (f *fakeMailClient) MarkAsSpam(ctx context.Context, ref string) error {
	f.spammed = append(f.spammed, ref)
	return nil
}

type fakeAudit struct {
	entries []*AuditEntry
	err     error
}

func (f *fakeAudit) Record(ctx context.Context, entry *AuditEntry) error {
	if f.err != nil {
		return f.err
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAudit) Cleanup(ctx context.Context) error { return nil }

func toMessage(ref, to string) *Message {
	return &Message{
		Ref: ref,
		Headers: []Header{
			{Name: "Subject", Value: "hello"},
			{Name: "To", Value: to},
		},
	}
}

func writePolicy(t *testing.T, addresses map[string]bool, watermark time.Time) string {
	t.Helper()
	data, err := yaml.Marshal(map[string]interface{}{
		"addresses":    addresses,
		"updated_date": watermark,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, data, 0600))
	return path
}

func newTestService(mail MailClient, audit AuditRepository, path string, action Action) *SweepService {
	return NewSweepService(mail, audit, zap.NewNop(), "example.com", action, path, true, time.Hour)
}

func TestRunCycleSweepsBlockedRecipient(t *testing.T) {
	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	path := writePolicy(t, map[string]bool{"alice": true, "bob": false}, watermark)

	mail := &fakeMailClient{
		refs: []string{"m1"},
		messages: map[string]*Message{
			"m1": toMessage("m1", "Bob <bob@example.com>, Alice <alice@example.com>"),
		},
	}
	svc := newTestService(mail, nil, path, ActionDelete)

	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"m1"}, mail.deleted)
	assert.Equal(t, 1, stats.Found)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Swept)
	assert.Equal(t, 0, stats.Skipped)
}

func TestRunCycleKeepsDefaultAllowedRecipient(t *testing.T) {
	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	path := writePolicy(t, map[string]bool{"alice": true, "bob": false}, watermark)

	mail := &fakeMailClient{
		refs: []string{"m1"},
		messages: map[string]*Message{
			"m1": toMessage("m1", "carol@example.com"),
		},
	}
	svc := newTestService(mail, nil, path, ActionDelete)

	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Empty(t, mail.deleted)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Swept)
}

func TestRunCycleKeepsMessageWithNoInDomainRecipients(t *testing.T) {
	path := writePolicy(t, map[string]bool{"bob": false}, time.Now().UTC())

	mail := &fakeMailClient{
		refs: []string{"m1"},
		messages: map[string]*Message{
			"m1": toMessage("m1", "someone@other.com"),
		},
	}
	svc := newTestService(mail, nil, path, ActionDelete)

	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Empty(t, mail.deleted)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 0, stats.Swept)
}

func TestRunCycleIsolatesPerMessageFailures(t *testing.T) {
	path := writePolicy(t, map[string]bool{"bob": false}, time.Now().UTC())

	mail := &fakeMailClient{
		refs: []string{"m1", "m2", "m3"},
		messages: map[string]*Message{
			"m2": {Ref: "m2"}, // no header collection at all
			"m3": toMessage("m3", "bob@example.com"),
		},
		fetchErr: map[string]error{"m1": errors.New("transient api failure")},
	}
	svc := newTestService(mail, nil, path, ActionDelete)

	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"m3"}, mail.deleted)
	assert.Equal(t, 3, stats.Found)
	assert.Equal(t, 1, stats.Processed)
	assert.Equal(t, 1, stats.Swept)
	assert.Equal(t, 2, stats.Skipped)
}

func TestRunCycleSpamActionUsesLabelMutation(t *testing.T) {
	path := writePolicy(t, map[string]bool{"bob": false}, time.Now().UTC())

	mail := &fakeMailClient{
		refs: []string{"m1"},
		messages: map[string]*Message{
			"m1": toMessage("m1", "bob@example.com"),
		},
	}
	svc := newTestService(mail, nil, path, ActionSpam)

	_, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Empty(t, mail.deleted)
	assert.Equal(t, []string{"m1"}, mail.spammed)
}

func TestRunCycleAdvancesWatermark(t *testing.T) {
	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	path := writePolicy(t, map[string]bool{}, watermark)

	svc := newTestService(&fakeMailClient{}, nil, path, ActionDelete)

	before := time.Now().UTC()
	_, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	record, err := policy.Load(path)
	require.NoError(t, err)
	assert.False(t, record.Watermark().Before(before))
}

func TestRunCycleKeepsWatermarkWhenDisabled(t *testing.T) {
	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	path := writePolicy(t, map[string]bool{}, watermark)

	svc := NewSweepService(&fakeMailClient{}, nil, zap.NewNop(),
		"example.com", ActionDelete, path, false, time.Hour)

	_, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	record, err := policy.Load(path)
	require.NoError(t, err)
	assert.True(t, record.Watermark().Equal(watermark))
}

func TestRunCycleListFailureAbortsCycle(t *testing.T) {
	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	path := writePolicy(t, map[string]bool{}, watermark)

	mail := &fakeMailClient{listErr: errors.New("listing unavailable")}
	svc := newTestService(mail, nil, path, ActionDelete)

	_, err := svc.RunCycle(context.Background())
	require.Error(t, err)

	// An aborted cycle must not move the watermark
	record, err := policy.Load(path)
	require.NoError(t, err)
	assert.True(t, record.Watermark().Equal(watermark))
}

func TestRunCycleMissingPolicyFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.yaml")
	svc := newTestService(&fakeMailClient{}, nil, path, ActionDelete)

	_, err := svc.RunCycle(context.Background())
	assert.Error(t, err)
}

func TestRunCycleRecordsAudit(t *testing.T) {
	path := writePolicy(t, map[string]bool{"bob": false}, time.Now().UTC())

	mail := &fakeMailClient{
		refs: []string{"m1"},
		messages: map[string]*Message{
			"m1": toMessage("m1", "bob@example.com"),
		},
	}
	audit := &fakeAudit{}
	svc := newTestService(mail, audit, path, ActionDelete)

	_, err := svc.RunCycle(context.Background())
	require.NoError(t, err)

	require.Len(t, audit.entries, 1)
	assert.Equal(t, "m1", audit.entries[0].MessageRef)
	assert.Equal(t, []string{"bob"}, audit.entries[0].Recipients)
	assert.Equal(t, ActionDelete, audit.entries[0].Action)
}

func TestRunCycleAuditFailureDoesNotFailSweep(t *testing.T) {
	path := writePolicy(t, map[string]bool{"bob": false}, time.Now().UTC())

	mail := &fakeMailClient{
		refs: []string{"m1"},
		messages: map[string]*Message{
			"m1": toMessage("m1", "bob@example.com"),
		},
	}
	svc := newTestService(mail, &fakeAudit{err: errors.New("audit store down")}, path, ActionDelete)

	stats, err := svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Swept)
	assert.Equal(t, []string{"m1"}, mail.deleted)
}

func TestEnsurePolicyBootstrapCreatesRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")

	mail := &fakeMailClient{
		refs: []string{"m1", "m2"},
		messages: map[string]*Message{
			"m1": toMessage("m1", "info@example.com"),
			"m2": toMessage("m2", "Sales <sales@example.com>, outsider@other.com"),
		},
	}
	svc := newTestService(mail, nil, path, ActionDelete)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.EnsurePolicy(context.Background(), start))

	record, err := policy.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, record.Len())
	assert.True(t, record.IsAllowed("info"))
	assert.True(t, record.IsAllowed("sales"))
	assert.False(t, record.Watermark().IsZero())
}

func TestEnsurePolicyRefreshNeverReallowsBlocked(t *testing.T) {
	watermark := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	path := writePolicy(t, map[string]bool{"alice": false}, watermark)

	mail := &fakeMailClient{
		refs: []string{"m1"},
		messages: map[string]*Message{
			"m1": toMessage("m1", "alice@example.com, carol@example.com"),
		},
	}
	svc := newTestService(mail, nil, path, ActionDelete)

	require.NoError(t, svc.EnsurePolicy(context.Background(), watermark))

	record, err := policy.Load(path)
	require.NoError(t, err)
	assert.False(t, record.IsAllowed("alice"))
	assert.True(t, record.IsAllowed("carol"))
}

func TestEnsurePolicyIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")

	mail := &fakeMailClient{
		refs: []string{"m1"},
		messages: map[string]*Message{
			"m1": toMessage("m1", "info@example.com"),
		},
	}
	svc := newTestService(mail, nil, path, ActionDelete)

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.EnsurePolicy(context.Background(), start))
	first, err := policy.Load(path)
	require.NoError(t, err)

	require.NoError(t, svc.EnsurePolicy(context.Background(), start))
	second, err := policy.Load(path)
	require.NoError(t, err)

	assert.Equal(t, first.Len(), second.Len())
	assert.True(t, second.IsAllowed("info"))
}

func TestDiscoverAddressesContinuesPastFailures(t *testing.T) {
	mail := &fakeMailClient{
		refs: []string{"m1", "m2", "m3"},
		messages: map[string]*Message{
			"m2": {Ref: "m2"}, // malformed fetch, no headers
			"m3": toMessage("m3", "ops@example.com"),
		},
		fetchErr: map[string]error{"m1": errors.New("boom")},
	}
	svc := newTestService(mail, nil, "", ActionDelete)

	addresses, err := svc.DiscoverAddresses(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, []string{"ops"}, addresses)
}

func TestShouldSweep(t *testing.T) {
	path := writePolicy(t, map[string]bool{"allowed": true, "blocked": false}, time.Now().UTC())
	record, err := policy.Load(path)
	require.NoError(t, err)

	assert.False(t, shouldSweep([]string{"allowed"}, record))
	assert.False(t, shouldSweep([]string{"unknown"}, record))
	assert.True(t, shouldSweep([]string{"blocked"}, record))
	assert.True(t, shouldSweep([]string{"allowed", "blocked"}, record))
	assert.False(t, shouldSweep(nil, record))
}
