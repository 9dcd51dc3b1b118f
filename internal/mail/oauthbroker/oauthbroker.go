// Package oauthbroker implements C10: exchanging a mailbox's refresh
// token for a Microsoft consumer-tenant access token, with a dual cache
// keyed by whether the exchange carried the Graph Mail.Read scope
// (spec.md §4.10).
package oauthbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/jeffreasy/mailgate/internal/cache"
	"github.com/jeffreasy/mailgate/internal/proxydial"
)

// TokenEndpoint is the consumer-tenant OAuth2 v2 token endpoint every
// mailbox's refresh token is redeemed against.
const TokenEndpoint = "https://login.microsoftonline.com/consumers/oauth2/v2.0/token"

// GraphMailReadScope is the scope string C13 looks for in the token
// response to decide whether Graph can be used.
const GraphMailReadScope = "https://graph.microsoft.com/Mail.Read"

// expiryLeeway is subtracted from expires_in before caching, so a token
// never gets handed out with less than this much life left.
const expiryLeeway = 60 * time.Second

// Broker exchanges refresh tokens and caches the result. clientID is
// supplied per call rather than fixed at construction, since spec.md §3
// carries oauth_client_id on the Mailbox entity itself — different
// mailboxes may be registered under different Azure app registrations.
type Broker struct {
	store    cache.SharedStore
	endpoint string
}

func New(store cache.SharedStore) *Broker {
	return &Broker{store: store, endpoint: TokenEndpoint}
}

// WithEndpoint overrides the token endpoint, for tests that stand up a
// local httptest.Server in place of login.microsoftonline.com.
func (b *Broker) WithEndpoint(endpoint string) *Broker {
	b.endpoint = endpoint
	return b
}

// GraphToken returns a cached or freshly-exchanged access token scoped
// for Graph Mail.Read. It returns ("", false, nil) — not an error — when
// the exchange doesn't yield a Mail.Read-scoped token, per spec.md
// §4.10/§4.13's "caller degrades" contract.
func (b *Broker) GraphToken(ctx context.Context, address, refreshToken, clientID string, opts proxydial.Options) (string, bool, error) {
	cacheKey := "graph_token:" + address
	if cached, ok, err := b.store.Get(ctx, cacheKey); err == nil && ok {
		return cached, true, nil
	}

	token, scope, err := b.exchange(ctx, refreshToken, GraphMailReadScope, clientID, opts)
	if err != nil {
		return "", false, err
	}
	if token == nil {
		return "", false, nil
	}
	if !strings.Contains(scope, GraphMailReadScope) {
		return "", false, nil
	}

	ttl := time.Until(token.Expiry) - expiryLeeway
	if ttl > 0 {
		_ = b.store.Set(ctx, cacheKey, token.AccessToken, ttl)
	}
	return token.AccessToken, true, nil
}

// ImapToken returns a cached or freshly-exchanged scopeless access token,
// suitable for IMAP XOAUTH2. It returns ("", false, nil) when the token
// endpoint answers non-2xx or without an access_token; a failed request
// is returned as an error.
func (b *Broker) ImapToken(ctx context.Context, address, refreshToken, clientID string, opts proxydial.Options) (string, bool, error) {
	cacheKey := "imap_token:" + address
	if cached, ok, err := b.store.Get(ctx, cacheKey); err == nil && ok {
		return cached, true, nil
	}

	token, _, err := b.exchange(ctx, refreshToken, "", clientID, opts)
	if err != nil {
		return "", false, err
	}
	if token == nil {
		return "", false, nil
	}

	ttl := time.Until(token.Expiry) - expiryLeeway
	if ttl > 0 {
		_ = b.store.Set(ctx, cacheKey, token.AccessToken, ttl)
	}
	return token.AccessToken, true, nil
}

// tokenResponse mirrors the token endpoint's JSON body. oauth2.Token
// doesn't expose the raw scope string the dual-cache-key rule needs, so
// this is decoded by hand rather than through oauth2's TokenSource.
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	Scope       string `json:"scope"`
}

// exchange performs the refresh_token grant. A non-2xx or missing
// access_token returns (nil, "", nil) — a soft failure the caller
// degrades from, not a Go error — per spec.md §4.10.
func (b *Broker) exchange(ctx context.Context, refreshToken, scope, clientID string, opts proxydial.Options) (*oauth2.Token, string, error) {
	form := url.Values{
		"client_id":     {clientID},
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	if scope != "" {
		form.Set("scope", scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, "", fmt.Errorf("oauthbroker: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	client, err := httpClient(opts)
	if err != nil {
		return nil, "", err
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("oauthbroker: exchange request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("oauthbroker: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", nil
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, "", nil
	}
	if parsed.AccessToken == "" {
		return nil, "", nil
	}

	return &oauth2.Token{
		AccessToken: parsed.AccessToken,
		Expiry:      time.Now().Add(time.Duration(parsed.ExpiresIn) * time.Second),
	}, parsed.Scope, nil
}

func httpClient(opts proxydial.Options) (*http.Client, error) {
	dialFn, transport, err := proxydial.Resolve(opts)
	if err != nil {
		return nil, err
	}
	if transport != nil {
		return &http.Client{Transport: transport, Timeout: 30 * time.Second}, nil
	}
	if dialFn != nil {
		return &http.Client{
			Transport: &http.Transport{DialContext: dialFn},
			Timeout:   30 * time.Second,
		}, nil
	}
	return &http.Client{Timeout: 30 * time.Second}, nil
}
