package site

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// Config describes one site: its metadata, its directory layout, and
// the mailbox new posts arrive in. Directory fields are resolved
// against the config file's directory, so a site can be built from
// anywhere.
type Config struct {
	Title       string `toml:"title"`
	URL         string `toml:"url"`
	Description string `toml:"description"`
	Author      string `toml:"author"`
	Language    string `toml:"language"`

	PagesDir     string `toml:"pages_dir"`
	TemplatesDir string `toml:"templates_dir"`
	PostsDir     string `toml:"posts_dir"`
	StaticDir    string `toml:"static_dir"`
	OutputDir    string `toml:"output_dir"`
	CacheDir     string `toml:"cache_dir"`

	// PostPrefix is the URL path segment post pages live under, both on
	// disk (<output>/<prefix>/<slug>/index.html) and in links.
	PostPrefix string `toml:"post_prefix"`

	// DateFormat is the Go reference layout used for human-readable
	// post dates.
	DateFormat string `toml:"date_format"`

	// FeedPath is where the RSS feed lands, relative to the output
	// directory.
	FeedPath string `toml:"feed_path"`

	Mailbox    string `toml:"mailbox"`
	FetchLimit int    `toml:"fetch_limit"`
}

// LoadConfig reads a config.toml. A missing file is not an error: the
// defaults describe a usable site rooted at the path's directory.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("reading %s: %w", path, err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	cfg.applyDefaults()
	cfg.anchor(filepath.Dir(path))
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Title == "" {
		c.Title = "Blog"
	}
	if c.URL == "" {
		c.URL = "https://example.com"
	}
	if c.Language == "" {
		c.Language = "en"
	}
	if c.PagesDir == "" {
		c.PagesDir = "pages"
	}
	if c.TemplatesDir == "" {
		c.TemplatesDir = "templates"
	}
	if c.PostsDir == "" {
		c.PostsDir = "posts"
	}
	if c.StaticDir == "" {
		c.StaticDir = "static"
	}
	if c.OutputDir == "" {
		c.OutputDir = "public"
	}
	if c.CacheDir == "" {
		c.CacheDir = ".cache"
	}
	if c.PostPrefix == "" {
		c.PostPrefix = "posts"
	}
	if c.DateFormat == "" {
		c.DateFormat = "January 2, 2006"
	}
	if c.FeedPath == "" {
		c.FeedPath = "feed.xml"
	}
	if c.Mailbox == "" {
		c.Mailbox = "Blog"
	}
	if c.FetchLimit == 0 {
		c.FetchLimit = 50
	}
}

// anchor resolves the directory fields against dir.
func (c *Config) anchor(dir string) {
	for _, p := range []*string{
		&c.PagesDir, &c.TemplatesDir, &c.PostsDir,
		&c.StaticDir, &c.OutputDir, &c.CacheDir,
	} {
		if !filepath.IsAbs(*p) {
			*p = filepath.Join(dir, *p)
		}
	}
}
