package compiler

import (
	"bufio"
	"bytes"
	"context"
	"regexp"
	"sort"

	"github.com/deixis/runasm/internal/runner"
)

// ArgumentParser discovers the options a toolchain accepts.
type ArgumentParser interface {
	Parse(ctx context.Context, c *Compiler) error
}

// NopParser leaves Info.Options empty.
type NopParser struct{}

func (NopParser) Parse(context.Context, *Compiler) error { return nil }

// HelpParser runs "<exe> --help" and records every flag that starts a line
// of its output. A toolchain without usable help yields no options.
type HelpParser struct{}

var helpFlagRe = regexp.MustCompile(`^\s*(--?[A-Za-z0-9][A-Za-z0-9_-]*)`)

func (HelpParser) Parse(ctx context.Context, c *Compiler) error {
	if c.Info.Exe == "" {
		return nil
	}
	res, err := c.Runner.Run(ctx, []string{c.Info.Exe, "--help"}, runner.ExecOptions{})
	if err != nil {
		c.logger().Debug("Toolchain help unavailable", "exe", c.Info.Exe, "error", err)
		return nil
	}

	seen := make(map[string]bool)
	for _, stream := range [][]byte{res.Stdout, res.Stderr} {
		sc := bufio.NewScanner(bytes.NewReader(stream))
		for sc.Scan() {
			if m := helpFlagRe.FindStringSubmatch(sc.Text()); m != nil {
				seen[m[1]] = true
			}
		}
	}

	opts := make([]string, 0, len(seen))
	for o := range seen {
		opts = append(opts, o)
	}
	sort.Strings(opts)
	c.Info.Options = opts
	return nil
}
