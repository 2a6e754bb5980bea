// Package site turns Markdown posts and Kit templates into a static
// blog. A build renders every post to an HTML fragment, compiles each
// page template with the site variables assigned, writes one page per
// post, emits an RSS feed, and copies static files into the output
// directory.
package site

import (
	"context"
	"fmt"
	"html"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/YohannParis/jmap-blog/kit"
	"github.com/YohannParis/jmap-blog/post"
)

// Builder runs one full site build.
type Builder struct {
	Config Config

	// Drafts includes draft posts in the build.
	Drafts bool

	// Jobs caps concurrent page compiles. Zero means no cap.
	Jobs int

	// Logger receives build progress. Nil discards it.
	Logger *log.Logger
}

// rendered pairs a post with its compiled HTML body so the feed does
// not render twice.
type rendered struct {
	post.Post
	HTML string
}

// pageJob is one template compile: a synthesized entry source, the
// virtual path anchoring its imports, and the output file.
type pageJob struct {
	name  string
	src   string
	entry string
	out   string
}

// Build rebuilds the whole site. Pages compile concurrently with
// unshared compiler state; one failing page is logged and skipped, and
// the build reports an error at the end if any page failed. Nothing is
// written for a page whose compile failed.
func (b *Builder) Build(ctx context.Context) error {
	cfg := b.Config
	start := time.Now()

	posts, err := post.Load(cfg.PostsDir, b.Drafts)
	if err != nil {
		return err
	}
	fragments, err := b.renderFragments(posts)
	if err != nil {
		return err
	}

	if err := os.RemoveAll(cfg.OutputDir); err != nil {
		return fmt.Errorf("clearing %s: %w", cfg.OutputDir, err)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return err
	}

	jobs, err := b.pageJobs(fragments)
	if err != nil {
		return err
	}

	group, groupctx := errgroup.WithContext(ctx)
	if b.Jobs > 0 {
		group.SetLimit(b.Jobs)
	}
	var (
		mu     sync.Mutex
		failed int
	)
	for _, job := range jobs {
		group.Go(func() error {
			if err := groupctx.Err(); err != nil {
				return err
			}
			if err := b.compilePage(job); err != nil {
				b.logger().Error("page failed", "page", job.name, "err", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			b.logger().Debug("compiled", "page", job.name)
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	if err := b.writeFeed(fragments.posts, start); err != nil {
		return err
	}
	if err := b.copyStatic(); err != nil {
		return err
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d pages failed", failed, len(jobs))
	}
	b.logger().Info("build complete",
		"pages", len(jobs), "posts", len(posts), "took", time.Since(start).Round(time.Millisecond))
	return nil
}

// fragmentSet is the output of the render phase: the work directory the
// compiler imports partials from, the posts with their HTML, and the
// post-list markup.
type fragmentSet struct {
	dir      string
	posts    []rendered
	postList string
}

// renderFragments converts every post to HTML under <cache>/fragments:
// one <slug>.html per post plus postlist.html. The directory is wiped
// first so removed posts do not linger.
func (b *Builder) renderFragments(posts []post.Post) (fragmentSet, error) {
	dir := filepath.Join(b.Config.CacheDir, "fragments")
	if err := os.RemoveAll(dir); err != nil {
		return fragmentSet{}, fmt.Errorf("clearing %s: %w", dir, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fragmentSet{}, err
	}

	set := fragmentSet{dir: dir, posts: make([]rendered, 0, len(posts))}
	for _, p := range posts {
		body, err := p.Render()
		if err != nil {
			return fragmentSet{}, fmt.Errorf("rendering %s: %w", p.Slug, err)
		}
		name := filepath.Join(dir, p.Slug+".html")
		if err := os.WriteFile(name, []byte(body), 0o644); err != nil {
			return fragmentSet{}, err
		}
		set.posts = append(set.posts, rendered{Post: p, HTML: body})
	}

	set.postList = b.postList(set.posts)
	name := filepath.Join(dir, "postlist.html")
	if err := os.WriteFile(name, []byte(set.postList), 0o644); err != nil {
		return fragmentSet{}, err
	}
	return set, nil
}

// postList builds the markup behind the $postlist variable and the
// postlist.html fragment.
func (b *Builder) postList(posts []rendered) string {
	if len(posts) == 0 {
		return `<p class="postlist-empty">Nothing here yet.</p>`
	}
	var sb strings.Builder
	sb.WriteString("<ul class=\"postlist\">\n")
	for _, p := range posts {
		fmt.Fprintf(&sb, "  <li><a href=%q>%s</a> <time datetime=%q>%s</time></li>\n",
			b.postPath(p.Slug), html.EscapeString(p.Title),
			p.Date.Format("2006-01-02"), p.Date.Format(b.Config.DateFormat))
	}
	sb.WriteString("</ul>")
	return sb.String()
}

// pageJobs lists every compile the build runs: one per non-underscore
// page template, then one per post.
func (b *Builder) pageJobs(fragments fragmentSet) ([]pageJob, error) {
	cfg := b.Config

	var jobs []pageJob
	entries, err := os.ReadDir(cfg.PagesDir)
	if err != nil {
		if os.IsNotExist(err) {
			entries = nil
		} else {
			return nil, fmt.Errorf("reading %s: %w", cfg.PagesDir, err)
		}
	}
	prelude := b.sitePrelude(fragments.postList)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != kit.DefaultExtension || strings.HasPrefix(name, "_") {
			continue
		}
		jobs = append(jobs, pageJob{
			name:  name,
			src:   prelude + "<!--@import " + name + "-->",
			entry: filepath.Join(cfg.PagesDir, name+".entry"),
			out:   filepath.Join(cfg.OutputDir, strings.TrimSuffix(name, kit.DefaultExtension)+".html"),
		})
	}

	for _, p := range fragments.posts {
		var sb strings.Builder
		sb.WriteString(prelude)
		assign(&sb, "title", html.EscapeString(p.Title))
		assign(&sb, "date", p.Date.Format(cfg.DateFormat))
		assign(&sb, "iso-date", p.Date.Format("2006-01-02"))
		assign(&sb, "slug", p.Slug)
		assign(&sb, "url", b.postURL(p.Slug))
		assign(&sb, "postfile", p.Slug+".html")
		sb.WriteString("<!--@import post.kit-->")
		jobs = append(jobs, pageJob{
			name:  path.Join(cfg.PostPrefix, p.Slug),
			src:   sb.String(),
			entry: filepath.Join(cfg.TemplatesDir, p.Slug+".entry"),
			out:   filepath.Join(cfg.OutputDir, cfg.PostPrefix, p.Slug, "index.html"),
		})
	}
	return jobs, nil
}

// sitePrelude assigns the builder-provided variables every page sees.
// Empty values stay unassigned; a page that uses one fails its compile
// with the usual undefined-variable position.
func (b *Builder) sitePrelude(postList string) string {
	cfg := b.Config
	var sb strings.Builder
	assign(&sb, "site-title", cfg.Title)
	assign(&sb, "site-url", cfg.URL)
	assign(&sb, "site-description", cfg.Description)
	assign(&sb, "site-author", cfg.Author)
	assign(&sb, "site-language", cfg.Language)
	assign(&sb, "year", strconv.Itoa(time.Now().Year()))
	assign(&sb, "postlist", postList)
	return sb.String()
}

// assign appends one assignment directive. The directive grammar cannot
// express an empty value, so empty values are skipped.
func assign(sb *strings.Builder, name, value string) {
	if value == "" {
		return
	}
	fmt.Fprintf(sb, "<!--$%s %s-->", name, value)
}

// compilePage runs one job with its own compiler. The compiled text is
// written only after the whole compile succeeded.
func (b *Builder) compilePage(j pageJob) error {
	comp := &kit.Compiler{
		Folders:  []string{b.Config.TemplatesDir, b.fragmentsDir()},
		PostsDir: b.fragmentsDir(),
	}
	text, err := comp.CompileSource(j.src, j.entry)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(j.out), 0o755); err != nil {
		return err
	}
	return os.WriteFile(j.out, []byte(text), 0o644)
}

func (b *Builder) fragmentsDir() string {
	return filepath.Join(b.Config.CacheDir, "fragments")
}

// postPath is the site-relative URL of a post page.
func (b *Builder) postPath(slug string) string {
	return "/" + path.Join(b.Config.PostPrefix, slug) + "/"
}

// postURL is the absolute URL of a post page.
func (b *Builder) postURL(slug string) string {
	return strings.TrimRight(b.Config.URL, "/") + b.postPath(slug)
}

// copyStatic mirrors the static directory into the output. A missing
// static directory is fine.
func (b *Builder) copyStatic() error {
	src := b.Config.StaticDir
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(b.Config.OutputDir, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return err
		}
		return os.WriteFile(target, data, 0o644)
	})
}

func (b *Builder) logger() *log.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return log.New(io.Discard)
}
