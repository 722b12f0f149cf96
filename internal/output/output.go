// Package output turns raw tool output into lines addressable against the
// compiled source.
package output

import (
	"regexp"
	"strconv"
	"strings"
)

// SourceName replaces the input path in annotated output.
const SourceName = "<source>"

// Line is a single line of tool output, optionally tagged with the source
// location it refers to.
type Line struct {
	Text string `json:"text"`
	Tag  *Tag   `json:"tag,omitempty"`
}

// Tag points a Line at a location in the source.
type Tag struct {
	Line   int    `json:"line"`
	Column int    `json:"column"`
	Text   string `json:"text"`
}

// Matches "<source>:12:3: msg", "<source>:12: msg" and "<source>(12,3): msg".
var sourceRe = regexp.MustCompile(`^\s*<source>[(:](\d+)(:?,?(\d+):?)?[):]*\s*(.*)`)

// Parse splits raw output into lines, replaces occurrences of inputPath and
// <stdin> with SourceName and tags lines that carry a source location.
// Empty lines and "fixme:" runtime chatter are dropped.
func Parse(raw []byte, inputPath string) []Line {
	text := strings.ReplaceAll(string(raw), "\r\n", "\n")
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return []Line{}
	}

	lines := strings.Split(text, "\n")
	out := make([]Line, 0, len(lines))
	for _, l := range lines {
		if inputPath != "" {
			l = strings.ReplaceAll(l, inputPath, SourceName)
		}
		l = strings.ReplaceAll(l, "<stdin>", SourceName)
		if l == "" || strings.HasPrefix(l, "fixme:") {
			continue
		}
		out = append(out, Line{Text: l, Tag: parseTag(l)})
	}
	return out
}

func parseTag(line string) *Tag {
	m := sourceRe.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	lineNo, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	col := 0
	if m[3] != "" {
		col, _ = strconv.Atoi(m[3])
	}
	return &Tag{Line: lineNo, Column: col, Text: strings.TrimSpace(m[4])}
}

// String joins the line texts back together.
func String(lines []Line) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}
