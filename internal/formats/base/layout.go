package base

import "strings"

// Segment is one unit of layout-only text: a paragraph, or a page break
// between two pages.
type Segment struct {
	Text      string
	PageBreak bool
	Page      int
}

// SegmentText splits positioned text into paragraphs at blank lines. Lines of a
// paragraph are joined with one space and whitespace runs are collapsed.
// Form feeds start a new page and produce a PageBreak segment between the
// paragraphs of adjacent pages. Pages are numbered from 1.
func SegmentText(input string) []Segment {
	var out []Segment
	pages := strings.Split(input, "\f")
	for i, page := range pages {
		if i > 0 {
			out = append(out, Segment{PageBreak: true, Page: i + 1})
		}
		for _, lines := range Paragraphs(page, IsBlankLine) {
			out = append(out, Segment{Text: CollapseSpace(strings.Join(lines, " ")), Page: i + 1})
		}
	}
	return out
}

// Paragraphs groups the lines of input into runs of non-blank lines as
// judged by blank. Line endings may be LF or CRLF.
func Paragraphs(input string, blank func(string) bool) [][]string {
	var (
		out     [][]string
		current []string
	)
	for _, line := range Lines(input) {
		if blank(line) {
			if len(current) > 0 {
				out = append(out, current)
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		out = append(out, current)
	}
	return out
}

// Lines splits input into lines without their terminators.
func Lines(input string) []string {
	if input == "" {
		return nil
	}
	lines := strings.Split(input, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// IsBlankLine reports whether line holds only whitespace.
func IsBlankLine(line string) bool {
	return strings.TrimSpace(line) == ""
}

// CollapseSpace replaces each whitespace run with one space and trims the
// ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
