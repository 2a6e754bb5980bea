// Package jmap speaks the slice of JMAP (RFC 8620/8621) the blog needs:
// authenticate against a session, find one mailbox, and pull the newest
// messages with their plain-text bodies. Email/query and Email/get run
// as a single chained request, so a fetch costs one session GET plus
// one API POST.
package jmap

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	coreCapability = "urn:ietf:params:jmap:core"
	mailCapability = "urn:ietf:params:jmap:mail"
)

// Client talks to one JMAP server. SessionURL and Token are required;
// the session document is fetched lazily and cached for the lifetime of
// the Client.
type Client struct {
	SessionURL string
	Token      string

	// HTTPClient is used when set, http.DefaultClient otherwise.
	HTTPClient *http.Client

	session *session
}

// Mailbox is the subset of an RFC 8621 Mailbox the client reads.
type Mailbox struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// Email is one fetched message with its assembled plain-text body.
type Email struct {
	ID         string
	Subject    string
	ReceivedAt time.Time
	Body       string
}

// MethodError is a method-level error response (RFC 8620 §3.6.2).
type MethodError struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

func (e *MethodError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("jmap: method error %q", e.Type)
	}
	return fmt.Sprintf("jmap: method error %q: %s", e.Type, e.Description)
}

type session struct {
	APIURL          string            `json:"apiUrl"`
	PrimaryAccounts map[string]string `json:"primaryAccounts"`
}

type request struct {
	Using       []string     `json:"using"`
	MethodCalls []Invocation `json:"methodCalls"`
}

type response struct {
	MethodResponses []Invocation `json:"methodResponses"`
}

// MailboxByName resolves a mailbox by display name, case-insensitive.
func (c *Client) MailboxByName(ctx context.Context, name string) (Mailbox, error) {
	s, accountID, err := c.account(ctx)
	if err != nil {
		return Mailbox{}, err
	}
	call, err := invoke("Mailbox/get", struct {
		AccountID string  `json:"accountId"`
		IDs       *string `json:"ids"`
	}{AccountID: accountID}, "m")
	if err != nil {
		return Mailbox{}, err
	}
	responses, err := c.call(ctx, s, call)
	if err != nil {
		return Mailbox{}, err
	}
	var result struct {
		List []Mailbox `json:"list"`
	}
	if err := json.Unmarshal(responses["m"].Args, &result); err != nil {
		return Mailbox{}, fmt.Errorf("decoding Mailbox/get: %w", err)
	}
	for _, mb := range result.List {
		if strings.EqualFold(mb.Name, name) {
			return mb, nil
		}
	}
	return Mailbox{}, fmt.Errorf("jmap: no mailbox named %q", name)
}

// Emails pulls the newest limit messages in mailboxID. The Email/get
// half of the chain references the query result by "#ids", so ordering
// follows the query's receivedAt sort.
func (c *Client) Emails(ctx context.Context, mailboxID string, limit int) ([]Email, error) {
	s, accountID, err := c.account(ctx)
	if err != nil {
		return nil, err
	}

	type sortComparator struct {
		Property    string `json:"property"`
		IsAscending bool   `json:"isAscending"`
	}
	query, err := invoke("Email/query", struct {
		AccountID string `json:"accountId"`
		Filter    struct {
			InMailbox string `json:"inMailbox"`
		} `json:"filter"`
		Sort  []sortComparator `json:"sort"`
		Limit int              `json:"limit,omitempty"`
	}{
		AccountID: accountID,
		Filter: struct {
			InMailbox string `json:"inMailbox"`
		}{InMailbox: mailboxID},
		Sort:  []sortComparator{{Property: "receivedAt", IsAscending: false}},
		Limit: limit,
	}, "q")
	if err != nil {
		return nil, err
	}

	type resultReference struct {
		ResultOf string `json:"resultOf"`
		Name     string `json:"name"`
		Path     string `json:"path"`
	}
	get, err := invoke("Email/get", struct {
		AccountID           string          `json:"accountId"`
		IDs                 resultReference `json:"#ids"`
		Properties          []string        `json:"properties"`
		FetchTextBodyValues bool            `json:"fetchTextBodyValues"`
	}{
		AccountID:           accountID,
		IDs:                 resultReference{ResultOf: "q", Name: "Email/query", Path: "/ids"},
		Properties:          []string{"id", "subject", "receivedAt", "textBody", "bodyValues"},
		FetchTextBodyValues: true,
	}, "g")
	if err != nil {
		return nil, err
	}

	responses, err := c.call(ctx, s, query, get)
	if err != nil {
		return nil, err
	}

	var result struct {
		List []struct {
			ID         string    `json:"id"`
			Subject    string    `json:"subject"`
			ReceivedAt time.Time `json:"receivedAt"`
			TextBody   []struct {
				PartID string `json:"partId"`
			} `json:"textBody"`
			BodyValues map[string]struct {
				Value string `json:"value"`
			} `json:"bodyValues"`
		} `json:"list"`
	}
	if err := json.Unmarshal(responses["g"].Args, &result); err != nil {
		return nil, fmt.Errorf("decoding Email/get: %w", err)
	}

	emails := make([]Email, 0, len(result.List))
	for _, w := range result.List {
		var parts []string
		for _, part := range w.TextBody {
			if bv, ok := w.BodyValues[part.PartID]; ok && bv.Value != "" {
				parts = append(parts, bv.Value)
			}
		}
		emails = append(emails, Email{
			ID:         w.ID,
			Subject:    w.Subject,
			ReceivedAt: w.ReceivedAt,
			Body:       strings.Join(parts, "\n"),
		})
	}
	return emails, nil
}

// account loads the cached session and picks the primary mail account.
func (c *Client) account(ctx context.Context) (*session, string, error) {
	s, err := c.loadSession(ctx)
	if err != nil {
		return nil, "", err
	}
	id := s.PrimaryAccounts[mailCapability]
	if id == "" {
		return nil, "", errors.New("jmap: session has no primary mail account")
	}
	return s, id, nil
}

func (c *Client) loadSession(ctx context.Context) (*session, error) {
	if c.session != nil {
		return c.session, nil
	}
	if c.SessionURL == "" {
		return nil, errors.New("jmap: session url not set")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.SessionURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching session: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jmap: session fetch: %s", resp.Status)
	}
	var s session
	if err := json.NewDecoder(resp.Body).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}
	if s.APIURL == "" {
		return nil, errors.New("jmap: session has no apiUrl")
	}
	c.session = &s
	return c.session, nil
}

// call POSTs one batch of method calls and maps the responses back by
// call id. A method-level "error" response fails the whole batch.
func (c *Client) call(ctx context.Context, s *session, calls ...Invocation) (map[string]Invocation, error) {
	body, err := json.Marshal(request{
		Using:       []string{coreCapability, mailCapability},
		MethodCalls: calls,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.APIURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.Token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jmap: api call: %s", resp.Status)
	}
	var r response
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	out := make(map[string]Invocation, len(r.MethodResponses))
	for _, inv := range r.MethodResponses {
		if inv.Name == "error" {
			merr := &MethodError{}
			if err := json.Unmarshal(inv.Args, merr); err != nil {
				return nil, fmt.Errorf("decoding method error for call %q: %w", inv.CallID, err)
			}
			return nil, fmt.Errorf("call %q: %w", inv.CallID, merr)
		}
		out[inv.CallID] = inv
	}
	return out, nil
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}
