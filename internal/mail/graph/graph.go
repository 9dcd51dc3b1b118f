// Package graph implements C11: a hand-rolled Microsoft Graph mail client.
// A generated SDK (e.g. microsoftgraph/msgraph-sdk-go) was deliberately
// not used here — see DESIGN.md — because this client needs the literal
// bearer-token-plus-$top/$orderby wire shape spec.md §4.11 specifies, not
// the SDK's fluent builder abstraction.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/jeffreasy/mailgate/internal/apierr"
	"github.com/jeffreasy/mailgate/internal/proxydial"
)

const baseURL = "https://graph.microsoft.com/v1.0"

// Message is a projected Graph mail message.
type Message struct {
	ID      string    `json:"id"`
	From    string    `json:"from"`
	Subject string    `json:"subject"`
	Text    string    `json:"text"`
	HTML    string    `json:"html"`
	Date    time.Time `json:"date"`
}

// Client talks to the Graph API for a single bearer token.
type Client struct {
	http    *http.Client
	baseURL string
}

// New builds a Client dialing through the given proxy options (C19).
func New(opts proxydial.Options) (*Client, error) {
	dialFn, transport, err := proxydial.Resolve(opts)
	if err != nil {
		return nil, err
	}
	c := &Client{baseURL: baseURL}
	switch {
	case transport != nil:
		c.http = &http.Client{Transport: transport, Timeout: 30 * time.Second}
	case dialFn != nil:
		c.http = &http.Client{Transport: &http.Transport{DialContext: dialFn}, Timeout: 30 * time.Second}
	default:
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	return c, nil
}

// WithBaseURL overrides the Graph API base URL, for tests that stand up a
// local httptest.Server in place of graph.microsoft.com.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}

// folderAlias maps the gateway's folder names to Graph's mailFolders
// well-known names, per spec.md §4.11.
func folderAlias(folder string) string {
	if folder == "junk" {
		return "junkemail"
	}
	return folder
}

type graphMessage struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	From    struct {
		EmailAddress struct {
			Address string `json:"address"`
		} `json:"emailAddress"`
	} `json:"from"`
	BodyPreview string `json:"bodyPreview"`
	Body        struct {
		Content string `json:"content"`
	} `json:"body"`
	ReceivedDateTime time.Time `json:"receivedDateTime"`
}

type listResponse struct {
	Value []graphMessage `json:"value"`
}

// List fetches up to limit messages from folder, newest first.
func (c *Client) List(ctx context.Context, accessToken, folder string, limit int) ([]Message, error) {
	endpoint := fmt.Sprintf("%s/me/mailFolders/%s/messages", c.baseURL, folderAlias(folder))
	q := url.Values{
		"$top":     {fmt.Sprintf("%d", limit)},
		"$orderby": {"receivedDateTime desc"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("graph: build list request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph: list request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("graph: read list response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apierr.New(apierr.CodeGraphApiFailed, fmt.Sprintf("graph list failed: status %d: %s", resp.StatusCode, string(body)))
	}

	var parsed listResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("graph: decode list response: %w", err)
	}

	out := make([]Message, 0, len(parsed.Value))
	for _, m := range parsed.Value {
		out = append(out, Message{
			ID:      m.ID,
			From:    m.From.EmailAddress.Address,
			Subject: m.Subject,
			Text:    m.BodyPreview,
			HTML:    m.Body.Content,
			Date:    m.ReceivedDateTime,
		})
	}
	return out, nil
}

// Delete removes a single message by id. Per-message failures are
// swallowed by the caller (C14's bulk deleter) — Delete itself still
// reports the error so the caller can count it.
func (c *Client) Delete(ctx context.Context, accessToken, messageID string) error {
	endpoint := fmt.Sprintf("%s/me/messages/%s", c.baseURL, messageID)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("graph: build delete request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("graph: delete request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return apierr.New(apierr.CodeGraphApiFailed, fmt.Sprintf("graph delete failed: status %d: %s", resp.StatusCode, string(body)))
	}
	return nil
}
