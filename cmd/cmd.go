package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/YohannParis/jmap-blog/jmap"
	"github.com/YohannParis/jmap-blog/kit"
	"github.com/YohannParis/jmap-blog/post"
	"github.com/YohannParis/jmap-blog/site"
)

// Execute runs the jmap-blog CLI with the given version string.
func Execute(version string) {
	// .env supplies JMAP credentials in development. Flags read their
	// environment sources during parsing, so load it first.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
		}
	}

	cmd := &cli.Command{
		Name:                   "jmap-blog",
		Usage:                  "A blog you post to by email",
		Version:                version,
		UseShortOptionHandling: true,
		// Allow `jmap-blog page.kit` as shorthand for `jmap-blog compile page.kit`
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() > 0 && strings.HasSuffix(cmd.Args().First(), kit.DefaultExtension) {
				return compileTo(os.Stdout, "config.toml", cmd.Args().First(), "")
			}
			return cli.DefaultShowRootCommandHelp(cmd)
		},
		Commands: []*cli.Command{
			{
				Name:  "build",
				Usage: "Build the site into the output directory",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:    "drafts",
						Aliases: []string{"D"},
						Usage:   "Include draft posts",
					},
					&cli.IntFlag{
						Name:    "jobs",
						Aliases: []string{"j"},
						Usage:   "Parallel page compiles",
						Value:   4,
					},
					verboseFlag(),
				},
				Action: buildAction,
			},
			{
				Name:  "fetch",
				Usage: "Pull new posts from the JMAP mailbox",
				Flags: []cli.Flag{
					configFlag(),
					&cli.BoolFlag{
						Name:    "dry-run",
						Aliases: []string{"n"},
						Usage:   "Report without writing post files",
					},
					&cli.StringFlag{
						Name:    "token",
						Usage:   "JMAP bearer token",
						Sources: cli.EnvVars("JMAP_TOKEN"),
					},
					&cli.StringFlag{
						Name:    "session-url",
						Usage:   "JMAP session endpoint",
						Sources: cli.EnvVars("JMAP_SESSION_URL"),
					},
					verboseFlag(),
				},
				Action: fetchAction,
			},
			{
				Name:      "compile",
				Usage:     "Compile one Kit template",
				ArgsUsage: "<file.kit>",
				Flags: []cli.Flag{
					configFlag(),
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file (stdout when empty)",
					},
				},
				Action: compileAction,
			},
			{
				Name:      "new",
				Usage:     "Scaffold a draft post file",
				ArgsUsage: "<title...>",
				Flags:     []cli.Flag{configFlag()},
				Action:    newAction,
			},
			{
				Name:      "preview",
				Usage:     "Render a post's Markdown in the terminal",
				ArgsUsage: "<post.md>",
				Action:    previewAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to config.toml",
		Value:   "config.toml",
	}
}

func verboseFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "verbose",
		Aliases: []string{"v"},
		Usage:   "Log at debug level",
	}
}

// newLogger builds the CLI logger. Piped stderr gets NO_COLOR so logs
// stay clean in scripts and cron.
func newLogger(verbose bool) *log.Logger {
	if os.Getenv("NO_COLOR") == "" && !term.IsTerminal(int(os.Stderr.Fd())) {
		os.Setenv("NO_COLOR", "1")
	}
	logger := log.NewWithOptions(os.Stderr, log.Options{
		Prefix: "jmap-blog",
	})
	if verbose {
		logger.SetLevel(log.DebugLevel)
	}
	return logger
}

func buildAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := site.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	b := &site.Builder{
		Config: cfg,
		Drafts: cmd.Bool("drafts"),
		Jobs:   int(cmd.Int("jobs")),
		Logger: newLogger(cmd.Bool("verbose")),
	}
	return b.Build(ctx)
}

func fetchAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := site.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	token := cmd.String("token")
	if token == "" {
		return fmt.Errorf("no JMAP token: set JMAP_TOKEN or pass --token")
	}
	sessionURL := cmd.String("session-url")
	if sessionURL == "" {
		return fmt.Errorf("no JMAP session url: set JMAP_SESSION_URL or pass --session-url")
	}

	logger := newLogger(cmd.Bool("verbose"))
	f := &site.Fetcher{
		Config: cfg,
		Client: &jmap.Client{SessionURL: sessionURL, Token: token},
		DryRun: cmd.Bool("dry-run"),
		Logger: logger,
	}
	n, err := f.Fetch(ctx)
	if err != nil {
		return err
	}
	logger.Info("fetch complete", "new", n)
	return nil
}

func compileAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: jmap-blog compile [-o output] <file.kit>")
	}
	return compileTo(os.Stdout, cmd.String("config"), cmd.Args().First(), cmd.String("output"))
}

// compileTo expands one template and writes it to output, or w when
// output is empty. The config's template and fragment folders serve as
// search folders so files compile the same way the build compiles them.
func compileTo(w io.Writer, config, path, output string) error {
	cfg, err := site.LoadConfig(config)
	if err != nil {
		return err
	}
	comp := &kit.Compiler{
		Folders: []string{cfg.TemplatesDir, filepath.Join(cfg.CacheDir, "fragments")},
	}
	text, err := comp.CompileFile(path)
	if err != nil {
		return err
	}
	if output == "" {
		_, err = io.WriteString(w, text)
		return err
	}
	return os.WriteFile(output, []byte(text), 0o644)
}

func newAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: jmap-blog new <title>")
	}
	cfg, err := site.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	title := strings.Join(cmd.Args().Slice(), " ")
	slug := post.Slugify(title)
	if slug == "" {
		return fmt.Errorf("cannot make a slug out of %q", title)
	}
	name := filepath.Join(cfg.PostsDir, slug+".md")
	if _, err := os.Stat(name); err == nil {
		return fmt.Errorf("%s already exists", name)
	}
	if err := os.MkdirAll(cfg.PostsDir, 0o755); err != nil {
		return err
	}
	path, err := post.Write(cfg.PostsDir, post.Post{
		Slug:  slug,
		Title: title,
		Date:  time.Now().UTC().Truncate(time.Second),
		Draft: true,
		Body:  "Write me.",
	})
	if err != nil {
		return err
	}
	fmt.Println(path)
	return nil
}

func previewAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.NArg() < 1 {
		return fmt.Errorf("usage: jmap-blog preview <post.md>")
	}
	name := cmd.Args().First()
	data, err := os.ReadFile(name)
	if err != nil {
		return err
	}
	p, err := post.Parse(data)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	width := 80
	if term.IsTerminal(int(os.Stdout.Fd())) {
		if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w < width {
			width = w
		}
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return err
	}
	out, err := r.Render("# " + p.Title + "\n\n" + p.Body)
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
