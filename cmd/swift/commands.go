package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"go.uber.org/zap"

	"github.com/swift-fca/swift/internal/config"
	"github.com/swift-fca/swift/internal/fcaerr"
	"github.com/swift-fca/swift/internal/logger"
	"github.com/swift-fca/swift/internal/manager"
)

type command struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	fs        *flag.FlagSet
	overrides map[string]func(cfg *config.Config, value string)
	values    map[string]*string
	bools     map[string]*bool

	configPath string
	progress   bool
}

func (c *command) newFlags(name string) {
	c.fs = flag.NewFlagSet(name, flag.ContinueOnError)
	c.fs.SetOutput(c.stderr)
	c.overrides = make(map[string]func(*config.Config, string))
	c.values = make(map[string]*string)
	c.bools = make(map[string]*bool)

	c.fs.StringVar(&c.configPath, "config", "", "path to a swift.yaml profile")
	c.str("format", "source format, required for standard input", func(cfg *config.Config, v string) { cfg.Source.Format = v })
	c.str("separator", "source separator", func(cfg *config.Config, v string) { cfg.Source.Separator = v })
	c.str("attributes", "formula selecting and scaling attributes", func(cfg *config.Config, v string) { cfg.Source.Attributes = v })
	c.str("classes", "sequence of class attribute keys", func(cfg *config.Config, v string) { cfg.Source.Classes = v })
	c.str("skip", "data lines to skip, e.g. 2,5-7,10-", func(cfg *config.Config, v string) { cfg.Source.SkippedLines = v })
	c.str("none", "literal for a missing value", func(cfg *config.Config, v string) { cfg.Source.NoneValue = v })
	c.str("class-separator", "separator of DTL class values", func(cfg *config.Config, v string) { cfg.Options.ClassSeparator = v })
	c.str("true", "token written for true", func(cfg *config.Config, v string) { cfg.Bival.True = v })
	c.str("false", "token written for false", func(cfg *config.Config, v string) { cfg.Bival.False = v })
	c.str("cross", "CXT symbol for true", func(cfg *config.Config, v string) { cfg.CXT.Cross = v })
	c.str("dot", "CXT symbol for false", func(cfg *config.Config, v string) { cfg.CXT.Dot = v })
	c.str("log-level", "debug, info, warn or error", func(cfg *config.Config, v string) { cfg.Logging.Level = v })
	c.boolean("no-header", "source has no attribute names on its first line", func(cfg *config.Config, v bool) { cfg.Source.AttrsFirstLine = !v })
	c.boolean("skip-errors", "drop malformed data lines instead of failing", func(cfg *config.Config, v bool) { cfg.Source.SkipErrors = v })
}

// str registers a string flag that overrides the profile only when set
func (c *command) str(name, help string, apply func(*config.Config, string)) {
	c.values[name] = c.fs.String(name, "", help)
	c.overrides[name] = apply
}

func (c *command) boolean(name, help string, apply func(*config.Config, bool)) {
	c.bools[name] = c.fs.Bool(name, false, help)
	c.overrides[name] = func(cfg *config.Config, _ string) { apply(cfg, *c.bools[name]) }
}

// parse reads flags, loads the profile and applies the flags that were set
func (c *command) parse(args []string, positional int) (*config.Config, []string, error) {
	if err := c.fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil, nil, errHelp
		}
		return nil, nil, fcaerr.NewArgError("%v", err)
	}
	rest := c.fs.Args()
	if len(rest) < 1 || len(rest) > positional {
		c.fs.Usage()
		return nil, nil, fcaerr.NewArgError("%s expects between 1 and %d paths, got %d", c.fs.Name(), positional, len(rest))
	}

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return nil, nil, fcaerr.NewArgError("failed to load configuration: %v", err)
	}
	c.fs.Visit(func(f *flag.Flag) {
		if apply, ok := c.overrides[f.Name]; ok {
			apply(cfg, f.Value.String())
		}
	})
	if err := config.Validate(cfg); err != nil {
		return nil, nil, fcaerr.NewArgError("%v", err)
	}
	return cfg, rest, nil
}

var errHelp = errors.New("help requested")

func (c *command) newLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.FromConfig(cfg.Logging, c.stderr)
}

// job builds a manager job, wiring "-" to the standard streams
func (c *command) job(cfg *config.Config, source, target string) manager.Job {
	job := manager.JobFromConfig(cfg)
	job.Source.Path = source
	if source == "-" {
		job.Input = c.stdin
	}
	job.Target.Path = target
	if target == "" || target == "-" {
		job.Target.Path = ""
		job.Output = c.stdout
	}
	return job
}

func (c *command) convert(ctx context.Context, args []string) error {
	c.newFlags("convert")
	c.str("target-format", "target format, required for standard output", func(cfg *config.Config, v string) { cfg.Target.Format = v })
	c.str("target-separator", "target separator", func(cfg *config.Config, v string) { cfg.Target.Separator = v })
	c.str("objects", "comma separated CXT object names", func(cfg *config.Config, v string) { cfg.Target.Objects = splitList(v) })
	c.str("relation", "target relation name", func(cfg *config.Config, v string) { cfg.Target.RelationName = v })
	c.str("target-classes", "comma separated class value of every written row", func(cfg *config.Config, v string) { cfg.Target.Classes = splitList(v) })
	c.boolean("target-no-header", "do not write attribute names to a CSV target", func(cfg *config.Config, v bool) { cfg.Target.AttrsFirstLine = !v })
	c.fs.BoolVar(&c.progress, "progress", false, "report progress on standard error")

	cfg, paths, err := c.parse(args, 2)
	if err != nil {
		return c.helpOK(err)
	}
	log, err := c.newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	target := ""
	if len(paths) > 1 {
		target = paths[1]
	}
	opts := []manager.Option{manager.WithLogger(log.WithComponent("manager").Logger)}
	if c.progress {
		opts = append(opts, manager.WithProgress(func(p int) { fmt.Fprintf(c.stderr, "\r%3d%%", p) }))
	}

	conv, err := manager.NewConverter(c.job(cfg, paths[0], target), opts...)
	if err != nil {
		return err
	}
	result, err := conv.Convert(ctx)
	if c.progress {
		fmt.Fprintln(c.stderr)
	}
	if err != nil {
		return err
	}

	for _, r := range result.Errors {
		fmt.Fprintf(c.stderr, "skipped %s\n", r)
	}
	if result.Cancelled {
		log.Warn("Conversion interrupted", zap.Int("written", result.Written))
		return fcaerr.ErrInterrupted
	}
	return nil
}

func (c *command) browse(ctx context.Context, args []string) error {
	c.newFlags("browse")
	count := c.fs.Int("count", -1, "number of rows, 0 for all; defaults to the profile's browse_count")

	cfg, paths, err := c.parse(args, 1)
	if err != nil {
		return c.helpOK(err)
	}
	log, err := c.newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	n := cfg.Options.BrowseCount
	if *count >= 0 {
		n = *count
	}

	b, err := manager.NewBrowser(c.job(cfg, paths[0], ""), manager.WithLogger(log.WithComponent("manager").Logger))
	if err != nil {
		return err
	}
	defer b.Close()
	if err := b.ReadInfo(ctx); err != nil {
		return err
	}
	rows, err := b.Next(ctx, n)
	if err != nil {
		if errors.Is(err, fcaerr.ErrCancelled) {
			return fcaerr.ErrInterrupted
		}
		return err
	}

	w := tabwriter.NewWriter(c.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(b.Header(), "\t"))
	for _, row := range rows {
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to write rows: %w", err)
	}
	return nil
}

func (c *command) export(ctx context.Context, args []string) error {
	c.newFlags("export")

	cfg, paths, err := c.parse(args, 1)
	if err != nil {
		return c.helpOK(err)
	}
	log, err := c.newLogger(cfg)
	if err != nil {
		return err
	}
	defer log.Sync()

	e, err := manager.NewExporter(c.job(cfg, paths[0], ""), manager.WithLogger(log.WithComponent("manager").Logger))
	if err != nil {
		return err
	}
	return e.Export(ctx, c.stdout)
}

func (c *command) helpOK(err error) error {
	if errors.Is(err, errHelp) {
		return nil
	}
	return err
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
