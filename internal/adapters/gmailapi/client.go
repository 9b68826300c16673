// Package gmailapi adapts the Gmail REST API to the core MailClient port.
package gmailapi

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mikey/gmail-sweeper/internal/core"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// Client is a Gmail implementation of the MailClient interface
type Client struct {
	svc    *gmail.Service
	logger *zap.Logger
}

// NewClient authenticates against the Gmail API using an OAuth2 installed-flow
// client secret and an on-disk token cache. When no cached token exists the
// interactive grant flow runs once and the resulting token is persisted.
func NewClient(ctx context.Context, credentialsPath, tokenCachePath string, logger *zap.Logger) (*Client, error) {
	secret, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read OAuth2 credentials: %w", err)
	}

	oauthCfg, err := google.ConfigFromJSON(secret, gmail.MailGoogleComScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse OAuth2 credentials: %w", err)
	}

	token, err := tokenFromFile(tokenCachePath)
	if err != nil {
		logger.Info("No cached token, starting interactive grant flow",
			zap.String("token_cache", tokenCachePath))
		token, err = tokenFromWeb(ctx, oauthCfg)
		if err != nil {
			return nil, err
		}
		if err := saveToken(tokenCachePath, token); err != nil {
			return nil, err
		}
	}

	httpClient := oauthCfg.Client(ctx, token)
	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	logger.Info("Gmail client initialized")
	return &Client{svc: svc, logger: logger}, nil
}

// NewClientWithService wraps an already-constructed Gmail service. Used by tests.
func NewClientWithService(svc *gmail.Service, logger *zap.Logger) *Client {
	return &Client{svc: svc, logger: logger}
}

// ListMessageRefs returns the IDs of all inbox messages received since the
// given date, following continuation tokens until every page is retrieved.
func (c *Client) ListMessageRefs(ctx context.Context, since time.Time) ([]string, error) {
	query := fmt.Sprintf("in:inbox after:%s", since.Format("2006/01/02"))
	c.logger.Debug("Listing messages", zap.String("query", query))

	var refs []string
	pageToken := ""
	for {
		call := c.svc.Users.Messages.List("me").Q(query).Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}

		resp, err := call.Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list messages: %w", err)
		}

		for _, msg := range resp.Messages {
			refs = append(refs, msg.Id)
		}

		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}

	c.logger.Debug("Listed messages", zap.Int("count", len(refs)))
	return refs, nil
}

// FetchMessage retrieves the full message for a reference
func (c *Client) FetchMessage(ctx context.Context, ref string) (*core.Message, error) {
	msg, err := c.svc.Users.Messages.Get("me", ref).Format("full").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	out := &core.Message{Ref: ref}
	if msg.Payload != nil && msg.Payload.Headers != nil {
		out.Headers = make([]core.Header, 0, len(msg.Payload.Headers))
		for _, h := range msg.Payload.Headers {
			out.Headers = append(out.Headers, core.Header{Name: h.Name, Value: h.Value})
		}
	}
	return out, nil
}

// DeleteMessage permanently deletes a message
func (c *Client) DeleteMessage(ctx context.Context, ref string) error {
	if err := c.svc.Users.Messages.Delete("me", ref).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	c.logger.Debug("Deleted message", zap.String("ref", ref))
	return nil
}

// MarkAsSpam removes the inbox label and applies the spam label instead of
// permanently deleting the message
func (c *Client) MarkAsSpam(ctx context.Context, ref string) error {
	req := &gmail.ModifyMessageRequest{
		AddLabelIds:    []string{"SPAM"},
		RemoveLabelIds: []string{"INBOX"},
	}
	if _, err := c.svc.Users.Messages.Modify("me", ref, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to move message to spam: %w", err)
	}
	c.logger.Debug("Moved message to spam", zap.String("ref", ref))
	return nil
}

// tokenFromFile reads a cached OAuth2 token
func tokenFromFile(path string) (*oauth2.Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	token := &oauth2.Token{}
	if err := json.NewDecoder(f).Decode(token); err != nil {
		return nil, err
	}
	return token, nil
}

// tokenFromWeb runs the interactive grant flow once
func tokenFromWeb(ctx context.Context, cfg *oauth2.Config) (*oauth2.Token, error) {
	authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
	fmt.Printf("Open the following link in your browser, then paste the authorization code:\n%v\n", authURL)

	var code string
	if _, err := fmt.Scan(&code); err != nil {
		return nil, fmt.Errorf("failed to read authorization code: %w", err)
	}

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}

// saveToken persists a token to the cache path
func saveToken(path string, token *oauth2.Token) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create token cache directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create token cache file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(token); err != nil {
		return fmt.Errorf("failed to write token cache: %w", err)
	}
	return nil
}
