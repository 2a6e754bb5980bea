package site

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YohannParis/jmap-blog/jmap"
	"github.com/YohannParis/jmap-blog/post"
)

// fakeMailbox serves just enough JMAP for Fetch: a session document,
// one mailbox named Blog, and a chained Email/query + Email/get
// answering with msgs.
func fakeMailbox(t *testing.T, msgs []map[string]any) *jmap.Client {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/session", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"apiUrl":          srv.URL + "/api",
			"primaryAccounts": map[string]string{"urn:ietf:params:jmap:mail": "acc1"},
		})
	})
	mux.HandleFunc("/api", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			MethodCalls []jmap.Invocation `json:"methodCalls"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		var out []jmap.Invocation
		for _, call := range req.MethodCalls {
			switch call.Name {
			case "Mailbox/get":
				args, _ := json.Marshal(map[string]any{
					"list": []map[string]string{{"id": "mb1", "name": "Blog"}},
				})
				out = append(out, jmap.Invocation{Name: call.Name, Args: args, CallID: call.CallID})
			case "Email/query":
				ids := make([]string, len(msgs))
				for i := range msgs {
					ids[i] = msgs[i]["id"].(string)
				}
				args, _ := json.Marshal(map[string]any{"ids": ids})
				out = append(out, jmap.Invocation{Name: call.Name, Args: args, CallID: call.CallID})
			case "Email/get":
				args, _ := json.Marshal(map[string]any{"list": msgs})
				out = append(out, jmap.Invocation{Name: call.Name, Args: args, CallID: call.CallID})
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"methodResponses": out})
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &jmap.Client{SessionURL: srv.URL + "/session", Token: "secret"}
}

func message(id, subject, received, body string) map[string]any {
	return map[string]any{
		"id": id, "subject": subject, "receivedAt": received,
		"textBody":   []map[string]string{{"partId": "1"}},
		"bodyValues": map[string]map[string]string{"1": {"value": body}},
	}
}

func TestFetch(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)

	client := fakeMailbox(t, []map[string]any{
		message("e1", "Hello World", "2026-01-10T09:00:00Z", "Hi **there**."),
		message("e2", "[draft] Secret Plan", "2026-01-11T09:00:00Z", "Not yet."),
	})

	f := &Fetcher{Config: cfg, Client: client}
	n, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	data, err := os.ReadFile(filepath.Join(cfg.PostsDir, "hello-world.md"))
	require.NoError(t, err)
	p, err := post.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "Hello World", p.Title)
	assert.False(t, p.Draft)
	assert.Equal(t, "Hi **there**.\n", p.Body)

	data, err = os.ReadFile(filepath.Join(cfg.PostsDir, "secret-plan.md"))
	require.NoError(t, err)
	p, err = post.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "Secret Plan", p.Title)
	assert.True(t, p.Draft)
}

func TestFetchSkipsStoredSlugs(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)

	client := fakeMailbox(t, []map[string]any{
		message("e1", "Hello World", "2026-01-10T09:00:00Z", "Hi."),
	})

	f := &Fetcher{Config: cfg, Client: client}
	n, err := f.Fetch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, n)

	// The stored file is not rewritten on the next run.
	stored := filepath.Join(cfg.PostsDir, "hello-world.md")
	require.NoError(t, os.WriteFile(stored, []byte("---\ntitle: Edited\n---\n\nKept.\n"), 0o644))

	n, err = f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Edited")
}

func TestFetchDryRun(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadConfig(filepath.Join(dir, "config.toml"))
	require.NoError(t, err)

	client := fakeMailbox(t, []map[string]any{
		message("e1", "Hello World", "2026-01-10T09:00:00Z", "Hi."),
	})

	f := &Fetcher{Config: cfg, Client: client, DryRun: true}
	n, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoFileExists(t, filepath.Join(cfg.PostsDir, "hello-world.md"))
}

func TestSplitDraft(t *testing.T) {
	for _, tc := range []struct {
		subject string
		title   string
		draft   bool
	}{
		{"Hello World", "Hello World", false},
		{"[draft] Hello", "Hello", true},
		{"[DRAFT]   Spaced", "Spaced", true},
		{"  padded subject ", "padded subject", false},
		{"[draft]", "", true},
	} {
		title, draft := splitDraft(tc.subject)
		assert.Equal(t, tc.title, title, "subject %q", tc.subject)
		assert.Equal(t, tc.draft, draft, "subject %q", tc.subject)
	}
}
