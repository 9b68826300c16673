// Package policy maintains the local-part allow/block record and its watermark.
//
// The address map is deliberately unexported: every lookup goes through IsAllowed
// so the default-allow rule for unknown addresses cannot be bypassed.
package policy

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"
)

// Record maps mailbox local-parts to an allowed flag, plus the watermark date
// marking how far mail has been accounted for.
type Record struct {
	addresses   map[string]bool
	updatedDate time.Time
}

// recordFile is the on-disk shape of a Record
type recordFile struct {
	Addresses   map[string]bool `yaml:"addresses"`
	UpdatedDate time.Time       `yaml:"updated_date"`
}

// NewRecord creates an empty policy record
func NewRecord() *Record {
	return &Record{addresses: make(map[string]bool)}
}

// Load reads a policy record from path. A missing file is reported with an error
// wrapping os.ErrNotExist so callers can distinguish "bootstrap needed" from a
// corrupt file.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var file recordFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse policy file: %w", err)
	}

	if file.Addresses == nil {
		file.Addresses = make(map[string]bool)
	}

	return &Record{
		addresses:   file.Addresses,
		updatedDate: file.UpdatedDate,
	}, nil
}

// Save overwrites the policy file at path. Safe to call every cycle.
func (r *Record) Save(path string) error {
	data, err := yaml.Marshal(recordFile{
		Addresses:   r.addresses,
		UpdatedDate: r.updatedDate,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize policy record: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write policy file: %w", err)
	}

	return nil
}

// IsAllowed returns the stored flag for a local-part, or true when the address
// has never been recorded. Blocking an address always requires an explicit edit.
func (r *Record) IsAllowed(localPart string) bool {
	allowed, ok := r.addresses[localPart]
	if !ok {
		return true
	}
	return allowed
}

// AddAddress records a newly discovered local-part as allowed. An existing entry
// is never overwritten, so re-running discovery cannot re-allow a blocked address.
func (r *Record) AddAddress(localPart string) {
	if _, ok := r.addresses[localPart]; !ok {
		r.addresses[localPart] = true
	}
}

// AdvanceWatermark sets the updated date. Callers must persist afterwards.
func (r *Record) AdvanceWatermark(date time.Time) {
	r.updatedDate = date
}

// Watermark returns the updated date
func (r *Record) Watermark() time.Time {
	return r.updatedDate
}

// Len returns the number of recorded addresses
func (r *Record) Len() int {
	return len(r.addresses)
}

// Counts returns how many recorded addresses are allowed and blocked
func (r *Record) Counts() (allowed, blocked int) {
	for _, ok := range r.addresses {
		if ok {
			allowed++
		} else {
			blocked++
		}
	}
	return allowed, blocked
}

// BlockedAddresses returns the blocked local-parts in sorted order
func (r *Record) BlockedAddresses() []string {
	var blocked []string
	for addr, ok := range r.addresses {
		if !ok {
			blocked = append(blocked, addr)
		}
	}
	sort.Strings(blocked)
	return blocked
}
