// Package post stores blog posts as Markdown files with a YAML front
// matter block and renders them to HTML fragments.
package post

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// ErrNoFrontMatter reports a post file that does not open with a
// delimited front matter block.
var ErrNoFrontMatter = errors.New("missing front matter")

// Post is one blog entry backed by a Markdown file.
type Post struct {
	Slug    string
	Title   string
	Date    time.Time
	Draft   bool
	Summary string
	Body    string // Markdown source below the front matter
}

type frontMatter struct {
	Title   string    `yaml:"title"`
	Date    time.Time `yaml:"date"`
	Draft   bool      `yaml:"draft,omitempty"`
	Summary string    `yaml:"summary,omitempty"`
}

// Load reads every "*.md" post in dir, newest first. Drafts are dropped
// unless withDrafts is set. A missing directory is an empty site, not
// an error.
func Load(dir string, withDrafts bool) ([]Post, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading posts dir: %w", err)
	}
	var posts []Post
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		p, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		p.Slug = strings.TrimSuffix(entry.Name(), ".md")
		if p.Draft && !withDrafts {
			continue
		}
		posts = append(posts, p)
	}
	sort.Slice(posts, func(i, j int) bool { return posts[i].Date.After(posts[j].Date) })
	return posts, nil
}

// Parse splits a post file into front matter and Markdown body. The
// file must open with a "---" line and close the block with another.
func Parse(data []byte) (Post, error) {
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	if !strings.HasPrefix(text, delimiter+"\n") {
		return Post{}, ErrNoFrontMatter
	}
	rest := text[len(delimiter)+1:]
	head, body, found := strings.Cut(rest, "\n"+delimiter+"\n")
	if !found {
		// The closing delimiter may end the file without a newline.
		if !strings.HasSuffix(rest, "\n"+delimiter) {
			return Post{}, ErrNoFrontMatter
		}
		head, body = strings.TrimSuffix(rest, "\n"+delimiter), ""
	}
	var fm frontMatter
	if err := yaml.Unmarshal([]byte(head), &fm); err != nil {
		return Post{}, fmt.Errorf("front matter: %w", err)
	}
	if fm.Title == "" {
		return Post{}, errors.New("front matter: missing title")
	}
	return Post{
		Title:   fm.Title,
		Date:    fm.Date,
		Draft:   fm.Draft,
		Summary: fm.Summary,
		Body:    strings.TrimPrefix(body, "\n"),
	}, nil
}

// Write stores p under dir as <slug>.md and returns the path.
func Write(dir string, p Post) (string, error) {
	fm, err := yaml.Marshal(frontMatter{Title: p.Title, Date: p.Date, Draft: p.Draft, Summary: p.Summary})
	if err != nil {
		return "", fmt.Errorf("front matter: %w", err)
	}
	var b strings.Builder
	b.WriteString(delimiter + "\n")
	b.Write(fm)
	b.WriteString(delimiter + "\n\n")
	b.WriteString(strings.TrimRight(p.Body, "\n"))
	b.WriteString("\n")
	path := filepath.Join(dir, p.Slug+".md")
	if err := os.WriteFile(path, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// markdown is the shared converter: GFM for tables and autolinks,
// Typographer for punctuation, Unsafe because post bodies are our own
// HTML-bearing Markdown.
var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM, extension.Typographer),
	goldmark.WithRendererOptions(goldmarkhtml.WithUnsafe()),
)

// Render converts the post body to an HTML fragment.
func (p Post) Render() (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(p.Body), &buf); err != nil {
		return "", fmt.Errorf("rendering %s: %w", p.Slug, err)
	}
	return buf.String(), nil
}

// Slugify derives a URL slug from a post title.
func Slugify(title string) string {
	return slug.Make(title)
}
