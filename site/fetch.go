package site

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/YohannParis/jmap-blog/jmap"
	"github.com/YohannParis/jmap-blog/post"
)

// draftPrefix marks an email subject as a draft post.
const draftPrefix = "[draft]"

// Fetcher pulls new posts out of the configured mailbox.
type Fetcher struct {
	Config Config
	Client *jmap.Client

	// DryRun reports what would be stored without touching disk.
	DryRun bool

	// Logger receives fetch progress. Nil discards it.
	Logger *log.Logger
}

// Fetch stores one post file per new message and returns how many were
// written (or would be, under DryRun). A message whose slug is already
// in the posts directory is skipped, so re-running is cheap and edits
// to stored posts survive.
func (f *Fetcher) Fetch(ctx context.Context) (int, error) {
	cfg := f.Config
	mb, err := f.Client.MailboxByName(ctx, cfg.Mailbox)
	if err != nil {
		return 0, err
	}
	emails, err := f.Client.Emails(ctx, mb.ID, cfg.FetchLimit)
	if err != nil {
		return 0, err
	}
	if !f.DryRun {
		if err := os.MkdirAll(cfg.PostsDir, 0o755); err != nil {
			return 0, err
		}
	}

	written := 0
	for _, m := range emails {
		title, draft := splitDraft(m.Subject)
		slug := post.Slugify(title)
		if slug == "" {
			f.logger().Warn("skipping message without usable subject", "id", m.ID)
			continue
		}
		name := filepath.Join(cfg.PostsDir, slug+".md")
		if _, err := os.Stat(name); err == nil {
			f.logger().Debug("already stored", "slug", slug)
			continue
		}
		p := post.Post{
			Slug:  slug,
			Title: title,
			Date:  m.ReceivedAt,
			Draft: draft,
			Body:  m.Body,
		}
		if f.DryRun {
			f.logger().Info("would store", "slug", slug, "draft", draft)
			written++
			continue
		}
		if _, err := post.Write(cfg.PostsDir, p); err != nil {
			return written, err
		}
		f.logger().Info("stored", "slug", slug, "draft", draft)
		written++
	}
	return written, nil
}

// splitDraft strips a leading [draft] marker off a subject.
func splitDraft(subject string) (title string, draft bool) {
	title = strings.TrimSpace(subject)
	if len(title) >= len(draftPrefix) && strings.EqualFold(title[:len(draftPrefix)], draftPrefix) {
		return strings.TrimSpace(title[len(draftPrefix):]), true
	}
	return title, false
}

func (f *Fetcher) logger() *log.Logger {
	if f.Logger != nil {
		return f.Logger
	}
	return log.New(io.Discard)
}
