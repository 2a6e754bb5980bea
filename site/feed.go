package site

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/feeds"

	"github.com/YohannParis/jmap-blog/post"
)

// feedItems caps how many posts the feed carries.
const feedItems = 20

// excerptLength is the target size of a generated feed summary.
const excerptLength = 280

// writeFeed emits the RSS document for the newest posts under the
// configured feed path.
func (b *Builder) writeFeed(posts []rendered, now time.Time) error {
	cfg := b.Config
	if len(posts) > feedItems {
		posts = posts[:feedItems]
	}

	feed := &feeds.Feed{
		Title:       cfg.Title,
		Link:        &feeds.Link{Href: cfg.URL},
		Description: cfg.Description,
		Created:     now,
	}
	if cfg.Author != "" {
		feed.Author = &feeds.Author{Name: cfg.Author}
	}
	for _, p := range posts {
		summary := p.Summary
		if summary == "" {
			summary = post.Excerpt(p.HTML, excerptLength)
		}
		feed.Items = append(feed.Items, &feeds.Item{
			Id:          b.postURL(p.Slug),
			Title:       p.Title,
			Link:        &feeds.Link{Href: b.postURL(p.Slug)},
			Description: summary,
			Content:     p.HTML,
			Created:     p.Date,
		})
	}

	rss, err := feed.ToRss()
	if err != nil {
		return fmt.Errorf("building feed: %w", err)
	}
	out := filepath.Join(cfg.OutputDir, cfg.FeedPath)
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return err
	}
	return os.WriteFile(out, []byte(rss), 0o644)
}
