package config

import (
	"fmt"
	"time"
)

// CredentialsConfig is the operator-supplied record needed to reach the mailbox.
// It is loaded once at startup and immutable for the process lifetime.
type CredentialsConfig struct {
	GoogleCredentialsPath string
	TokenCachePath        string
	Domain                string
	CheckInterval         time.Duration
	StartDate             time.Time
}

// SweepConfig controls what the sweep pipeline does with a matched message
type SweepConfig struct {
	Action           string
	PolicyPath       string
	AdvanceWatermark bool
}

// AuditConfig controls the optional mutation audit trail
type AuditConfig struct {
	Enabled    bool
	Type       string
	SQLitePath string
	MySQLDSN   string
}

// GetCredentials returns the validated credentials record
func (c *Config) GetCredentials() (*CredentialsConfig, error) {
	credsPath := c.GetString("google_credentials_path")
	if credsPath == "" {
		return nil, fmt.Errorf("google_credentials_path is required")
	}

	domain := c.GetString("domain")
	if domain == "" {
		return nil, fmt.Errorf("domain is required")
	}

	intervalSeconds := c.GetInt("check_interval_seconds")
	if intervalSeconds < 1 {
		return nil, fmt.Errorf("check_interval_seconds must be at least 1, got %d", intervalSeconds)
	}

	rawStart := c.GetString("start_date")
	startDate, err := time.Parse(time.RFC3339, rawStart)
	if err != nil {
		return nil, fmt.Errorf("invalid start_date %q: %w", rawStart, err)
	}

	return &CredentialsConfig{
		GoogleCredentialsPath: credsPath,
		TokenCachePath:        c.GetString("gmail.token_cache_path"),
		Domain:                domain,
		CheckInterval:         time.Duration(intervalSeconds) * time.Second,
		StartDate:             startDate,
	}, nil
}

// GetSweep returns the sweep configuration
func (c *Config) GetSweep() (*SweepConfig, error) {
	action := c.GetString("sweep.action")
	if action != "delete" && action != "spam" {
		return nil, fmt.Errorf("unsupported sweep action: %s", action)
	}

	policyPath := c.GetString("sweep.policy_path")
	if policyPath == "" {
		return nil, fmt.Errorf("sweep.policy_path is required")
	}

	return &SweepConfig{
		Action:           action,
		PolicyPath:       policyPath,
		AdvanceWatermark: c.GetBool("sweep.advance_watermark"),
	}, nil
}

// GetAudit returns the audit configuration
func (c *Config) GetAudit() AuditConfig {
	return AuditConfig{
		Enabled:    c.GetBool("audit.enabled"),
		Type:       c.GetString("audit.type"),
		SQLitePath: c.GetString("audit.sqlite_path"),
		MySQLDSN:   c.GetString("audit.mysql_dsn"),
	}
}
