// Package orchestrator implements C13: Graph-first/IMAP-fallback message
// fetching and Graph-based bulk clearing, per spec.md §4.13.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/jeffreasy/mailgate/internal/apierr"
	"github.com/jeffreasy/mailgate/internal/mail/bulkdelete"
	"github.com/jeffreasy/mailgate/internal/mail/graph"
	"github.com/jeffreasy/mailgate/internal/mail/imapclient"
	"github.com/jeffreasy/mailgate/internal/mail/oauthbroker"
	"github.com/jeffreasy/mailgate/internal/model"
	"github.com/jeffreasy/mailgate/internal/proxydial"
)

// FetchOptions parameterizes a single fetch call.
type FetchOptions struct {
	Folder string
	Limit  int
	Proxy  proxydial.Options
}

// FetchResult is what a fetch returns to the external API layer.
type FetchResult struct {
	Messages []Message
	Method   string // "graph_api" or "imap"
}

// Message is the fetch-agnostic message shape returned to callers.
type Message struct {
	ID      string
	From    string
	Subject string
	Text    string
	HTML    string
	Date    time.Time
}

// ClearResult is what clear() returns.
type ClearResult struct {
	DeletedCount int
	Status       string // "success" or "error"
}

const (
	graphPagesLimit = 10
	graphPageSize   = 500
)

// Orchestrator wires C10/C11/C12/C14 together against a mailbox's
// decrypted refresh token and OAuth client id.
type Orchestrator struct {
	broker *oauthbroker.Broker
}

func New(broker *oauthbroker.Broker) *Orchestrator {
	return &Orchestrator{broker: broker}
}

// attemptOrder turns a group's fetch_strategy into the sequence of
// "useGraph" attempts Fetch should make, per spec.md §4.13's closing
// paragraph: GraphFirst/ImapFirst try both with one preferred, while
// GraphOnly/ImapOnly disable fallback entirely.
func attemptOrder(strategy model.FetchStrategy) []bool {
	switch strategy {
	case model.StrategyGraphOnly:
		return []bool{true}
	case model.StrategyImapOnly:
		return []bool{false}
	case model.StrategyImapFirst:
		return []bool{false, true}
	default: // StrategyGraphFirst and unset
		return []bool{true, false}
	}
}

// Fetch implements spec.md §4.13's fetch() state machine, honoring the
// group's fetch strategy as an ordering/fallback hint.
func (o *Orchestrator) Fetch(ctx context.Context, address, refreshToken, clientID string, strategy model.FetchStrategy, opts FetchOptions) (FetchResult, error) {
	var result FetchResult
	var err error

	attempt := func(useGraph bool) (FetchResult, error) {
		if useGraph {
			return o.fetchGraph(ctx, address, refreshToken, clientID, opts)
		}
		return o.fetchImap(ctx, address, refreshToken, clientID, opts)
	}

	order := attemptOrder(strategy)
	for i, useGraph := range order {
		result, err = attempt(useGraph)
		if err == nil {
			return result, nil
		}
		if i == len(order)-1 {
			return FetchResult{}, err
		}
	}
	return FetchResult{}, err
}

func (o *Orchestrator) fetchGraph(ctx context.Context, address, refreshToken, clientID string, opts FetchOptions) (FetchResult, error) {
	token, ok, err := o.broker.GraphToken(ctx, address, refreshToken, clientID, opts.Proxy)
	if err != nil {
		return FetchResult{}, fmt.Errorf("orchestrator: graph token: %w", err)
	}
	if !ok {
		return FetchResult{}, apierr.New(apierr.CodeGraphApiFailed, "no graph-scoped token available")
	}

	client, err := graph.New(opts.Proxy)
	if err != nil {
		return FetchResult{}, err
	}

	messages, err := client.List(ctx, token, opts.Folder, opts.Limit)
	if err != nil {
		return FetchResult{}, err
	}

	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = Message{ID: m.ID, From: m.From, Subject: m.Subject, Text: m.Text, HTML: m.HTML, Date: m.Date}
	}
	return FetchResult{Messages: out, Method: "graph_api"}, nil
}

func (o *Orchestrator) fetchImap(ctx context.Context, address, refreshToken, clientID string, opts FetchOptions) (FetchResult, error) {
	token, ok, err := o.broker.ImapToken(ctx, address, refreshToken, clientID, opts.Proxy)
	if err != nil {
		return FetchResult{}, fmt.Errorf("orchestrator: imap token: %w", err)
	}
	if !ok {
		return FetchResult{}, apierr.New(apierr.CodeImapTokenFailed, "could not obtain an imap-scoped token")
	}

	messages, err := imapclient.List(ctx, address, token, opts.Folder, opts.Limit)
	if err != nil {
		return FetchResult{}, err
	}

	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = Message{ID: m.ID, From: m.From, Subject: m.Subject, Text: m.Text, HTML: m.HTML, Date: m.Date}
	}
	return FetchResult{Messages: out, Method: "imap"}, nil
}

// Clear pages through Graph up to graphPagesLimit pages of graphPageSize
// messages, deleting each page in parallel chunks via C14.
func (o *Orchestrator) Clear(ctx context.Context, address, refreshToken, clientID string, opts FetchOptions) (ClearResult, error) {
	token, ok, err := o.broker.GraphToken(ctx, address, refreshToken, clientID, opts.Proxy)
	if err != nil || !ok {
		return ClearResult{Status: "error"}, apierr.New(apierr.CodeGraphApiFailed, "no graph-scoped token available to clear mail")
	}

	client, err := graph.New(opts.Proxy)
	if err != nil {
		return ClearResult{Status: "error"}, err
	}

	total := 0
	for page := 0; page < graphPagesLimit; page++ {
		messages, err := client.List(ctx, token, opts.Folder, graphPageSize)
		if err != nil {
			return ClearResult{DeletedCount: total, Status: "error"}, err
		}
		if len(messages) == 0 {
			break
		}

		ids := make([]string, len(messages))
		for i, m := range messages {
			ids[i] = m.ID
		}

		result := bulkdelete.Run(ctx, ids, func(ctx context.Context, id string) error {
			return client.Delete(ctx, token, id)
		})
		total += result.Deleted

		if len(messages) < graphPageSize {
			break
		}
	}

	return ClearResult{DeletedCount: total, Status: "success"}, nil
}
