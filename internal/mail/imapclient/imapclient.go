// Package imapclient implements C12: fetching recent messages from a
// Microsoft consumer mailbox over IMAP with XOAUTH2, as the fallback path
// when Graph access isn't available. The go-imap/go-sasl/go-message trio
// is grounded on themadorg-madmail's go.mod (that repo uses them
// server-side; this package is the client-side counterpart of the same
// wire protocol).
package imapclient

import (
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/emersion/go-imap"
	"github.com/emersion/go-imap/client"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-sasl"

	"github.com/jeffreasy/mailgate/internal/apierr"
)

// Host is the consumer IMAP endpoint for Microsoft mailboxes.
const Host = "outlook.office365.com:993"

// Message is a projected IMAP message, shaped to match graph.Message.
type Message struct {
	ID      string
	From    string
	Subject string
	Text    string
	HTML    string
	Date    time.Time
}

// folderAlias maps the gateway's folder names to IMAP mailbox names.
// Unlike Graph, Microsoft's IMAP server expects "Junk" verbatim
// (case-sensitively), per spec.md §9's open question — this is kept as
// an explicit, separate mapping from graph.folderAlias rather than
// shared, since the two protocols disagree on casing.
func folderAlias(folder string) string {
	if folder == "junk" {
		return "Junk"
	}
	return "INBOX"
}

// List connects, authenticates with accessToken via XOAUTH2, selects
// folder read-only, and returns the most recent limit messages sorted by
// date descending. The connection is always closed before returning.
func List(ctx context.Context, address, accessToken, folder string, limit int) ([]Message, error) {
	c, err := client.DialTLS(Host, nil)
	if err != nil {
		return nil, apierr.New(apierr.CodeImapTokenFailed, fmt.Sprintf("imap: dial: %v", err))
	}
	defer c.Logout()

	authClient := sasl.NewXoauth2Client(address, accessToken)
	if err := c.Authenticate(authClient); err != nil {
		return nil, apierr.New(apierr.CodeImapTokenFailed, fmt.Sprintf("imap: xoauth2 auth: %v", err))
	}

	mbox, err := c.Select(folderAlias(folder), true)
	if err != nil {
		return nil, fmt.Errorf("imapclient: select %s: %w", folder, err)
	}
	if mbox.Messages == 0 {
		return nil, nil
	}

	criteria := imap.NewSearchCriteria()
	uids, err := c.UidSearch(criteria)
	if err != nil {
		return nil, fmt.Errorf("imapclient: search: %w", err)
	}
	if len(uids) == 0 {
		return nil, nil
	}

	sort.Slice(uids, func(i, j int) bool { return uids[i] > uids[j] })
	if len(uids) > limit {
		uids = uids[:limit]
	}

	seqset := new(imap.SeqSet)
	seqset.AddNum(uids...)

	section := &imap.BodySectionName{}
	items := []imap.FetchItem{imap.FetchUid, imap.FetchInternalDate, section.FetchItem()}

	messages := make(chan *imap.Message, len(uids))
	done := make(chan error, 1)
	go func() {
		done <- c.UidFetch(seqset, items, messages)
	}()

	out := make([]Message, 0, len(uids))
	for rawMsg := range messages {
		parsed, err := parseMessage(rawMsg, section)
		if err != nil {
			continue
		}
		out = append(out, parsed)
	}
	if err := <-done; err != nil {
		return nil, fmt.Errorf("imapclient: fetch: %w", err)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out, nil
}

func parseMessage(rawMsg *imap.Message, section *imap.BodySectionName) (Message, error) {
	literal := rawMsg.GetBody(section)
	if literal == nil {
		return Message{}, fmt.Errorf("imapclient: message has no body section")
	}

	reader, err := mail.CreateReader(literal)
	if err != nil {
		return Message{}, fmt.Errorf("imapclient: parse rfc5322: %w", err)
	}

	header := reader.Header
	subject, _ := header.Subject()
	date, _ := header.Date()
	from := ""
	if addrs, err := header.AddressList("From"); err == nil && len(addrs) > 0 {
		from = addrs[0].Address
	}

	msg := Message{
		ID:      fmt.Sprintf("imap_%d_%d", rawMsg.InternalDate.UnixMilli(), rawMsg.SeqNum),
		From:    from,
		Subject: subject,
		Date:    date,
	}

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			break
		}

		switch h := part.Header.(type) {
		case *mail.InlineHeader:
			contentType, _, _ := h.ContentType()
			body, readErr := io.ReadAll(part.Body)
			if readErr != nil {
				continue
			}
			switch contentType {
			case "text/html":
				msg.HTML = string(body)
			default:
				if msg.Text == "" {
					msg.Text = string(body)
				}
			}
		}
	}

	return msg, nil
}
