package core

import (
	"errors"
	"sort"
	"strings"
)

// ErrNoHeaders is returned when a fetched message carries no header collection
var ErrNoHeaders = errors.New("message has no headers")

// ExtractRecipients returns the deduplicated, lowercased local-parts addressed
// in the message's "To" headers whose domain exactly matches the owned domain.
// Multiple To headers contribute cumulatively. A message with headers but no
// in-domain recipients yields an empty set; a message with no header collection
// at all is a malformed fetch and yields ErrNoHeaders.
func ExtractRecipients(msg *Message, domain string) ([]string, error) {
	if msg.Headers == nil {
		return nil, ErrNoHeaders
	}

	seen := make(map[string]struct{})
	for _, header := range msg.Headers {
		if !strings.EqualFold(header.Name, "To") {
			continue
		}
		for _, localPart := range parseAddressList(header.Value, domain) {
			seen[localPart] = struct{}{}
		}
	}

	recipients := make([]string, 0, len(seen))
	for localPart := range seen {
		recipients = append(recipients, localPart)
	}
	sort.Strings(recipients)
	return recipients, nil
}

// parseAddressList extracts in-domain local-parts from a single To header value.
// Supported formats: "email@domain.com", "Name <email@domain.com>", "email1, email2".
func parseAddressList(value, domain string) []string {
	suffix := "@" + domain
	var localParts []string

	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)

		email := part
		if start := strings.Index(part, "<"); start >= 0 {
			// An unclosed bracket falls back to the raw token
			if end := strings.Index(part, ">"); end > start {
				email = part[start+1 : end]
			}
		}

		email = strings.TrimSpace(email)
		if !strings.Contains(email, "@") || !strings.HasSuffix(email, suffix) {
			continue
		}

		localPart := strings.SplitN(email, "@", 2)[0]
		localParts = append(localParts, strings.ToLower(localPart))
	}

	return localParts
}
