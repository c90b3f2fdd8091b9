package ansi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

// style is the current SGR state.
type style struct {
	bold      bool
	italic    bool
	underline bool
	strike    bool
	color     string
}

// wrap nests text in the style's wrappers. The order is fixed, innermost
// first: strikeout, underline, emphasis, strong, then a colored span, so
// equal styles always produce equal trees.
func (s style) wrap(text string) ir.Node {
	n := ir.Text(text)
	if s.strike {
		n = ir.NewNode(ir.KindStrikeout).Child(n)
	}
	if s.underline {
		n = ir.NewNode(ir.KindUnderline).Child(n)
	}
	if s.italic {
		n = ir.NewNode(ir.KindEmphasis).Child(n)
	}
	if s.bold {
		n = ir.NewNode(ir.KindStrong).Child(n)
	}
	if s.color != "" {
		n = ir.NewNode(ir.KindSpan).Prop(ir.PropStyleColor, ir.String(s.color)).Child(n)
	}
	return n
}

var colorNames = [8]string{"black", "red", "green", "yellow", "blue", "magenta", "cyan", "white"}

// scanner turns escape-annotated text into inline nodes. Style state
// persists across paragraphs, as it does on a terminal; hyperlinks are
// closed at the end of each paragraph.
type scanner struct {
	ws   *ir.Warnings
	st   style
	buf  strings.Builder
	out  []ir.Node
	link *ir.Node
}

func (sc *scanner) flush() {
	if sc.buf.Len() == 0 {
		return
	}
	n := sc.st.wrap(sc.buf.String())
	sc.buf.Reset()
	if sc.link != nil {
		*sc.link = sc.link.Child(n)
		return
	}
	sc.out = append(sc.out, n)
}

func (sc *scanner) closeLink() {
	if sc.link == nil {
		return
	}
	sc.flush()
	link := *sc.link
	sc.link = nil
	sc.out = append(sc.out, link)
}

// inline scans one paragraph of text.
func (sc *scanner) inline(text string) []ir.Node {
	sc.out = nil
	for i := 0; i < len(text); {
		if text[i] != esc {
			next := strings.IndexByte(text[i:], esc)
			if next < 0 {
				next = len(text) - i
			}
			sc.buf.WriteString(text[i : i+next])
			i += next
			continue
		}

		seq, end := scanEscape(text, i)
		i = end
		sc.escape(seq)
	}
	sc.closeLink()
	sc.flush()
	return sc.out
}

// skip applies the escapes of a line outside any paragraph and drops its
// text, so style set on a blank line carries into the next paragraph.
func (sc *scanner) skip(line string) {
	for i := 0; i < len(line); {
		if line[i] != esc {
			i++
			continue
		}
		seq, end := scanEscape(line, i)
		i = end
		sc.escape(seq)
	}
}

func (sc *scanner) escape(seq sequence) {
	switch {
	case seq.kind == seqCSI && seq.final == 'm':
		next := sc.apply(sc.st, seq.params)
		if next != sc.st {
			sc.flush()
			sc.st = next
		}
	case seq.kind == seqOSC && strings.HasPrefix(seq.params, "8;"):
		sc.hyperlink(seq.params)
	default:
		sc.ws.Once("control", ir.NewWarning(ir.SeverityMinor, ir.FeatureLost{Feature: "terminal control"},
			"cursor, screen and other control sequences dropped"))
	}
}

// hyperlink handles OSC 8: "8;params;uri" opens a link, an empty uri
// closes it.
func (sc *scanner) hyperlink(params string) {
	parts := strings.SplitN(params, ";", 3)
	uri := ""
	if len(parts) == 3 {
		uri = parts[2]
	}
	sc.closeLink()
	sc.flush()
	if uri != "" {
		link := ir.NewNode(ir.KindLink).Prop(ir.PropURL, ir.String(uri))
		sc.link = &link
	}
}

// apply returns st updated by the SGR parameter list params.
func (sc *scanner) apply(st style, params string) style {
	codes := strings.Split(params, ";")
	for k := 0; k < len(codes); k++ {
		code := strings.TrimSpace(codes[k])
		switch code {
		case "", "0":
			st = style{}
			continue
		case "1":
			st.bold = true
			continue
		case "3":
			st.italic = true
			continue
		case "4":
			st.underline = true
			continue
		case "9":
			st.strike = true
			continue
		case "22":
			st.bold = false
			continue
		case "23":
			st.italic = false
			continue
		case "24":
			st.underline = false
			continue
		case "29":
			st.strike = false
			continue
		case "39":
			st.color = ""
			continue
		case "38", "48":
			k += sc.extendedColor(&st, code, codes[k+1:])
			continue
		}

		n, err := strconv.Atoi(code)
		switch {
		case err == nil && n >= 30 && n <= 37:
			st.color = colorNames[n-30]
		case err == nil && n >= 90 && n <= 97:
			st.color = "bright-" + colorNames[n-90]
		case err == nil && (n >= 40 && n <= 49 || n >= 100 && n <= 107):
			sc.lost("background", "background colors dropped")
		default:
			sc.lost("sgr "+code, fmt.Sprintf("SGR code %s has no document equivalent", code))
		}
	}
	return st
}

// extendedColor handles 38 and 48 with their sub-parameters and returns
// how many of rest it consumed.
func (sc *scanner) extendedColor(st *style, code string, rest []string) int {
	if len(rest) == 0 {
		return 0
	}
	switch rest[0] {
	case "2":
		if len(rest) < 4 {
			return len(rest)
		}
		if code == "38" {
			st.color = fmt.Sprintf("#%02x%02x%02x", channel(rest[1]), channel(rest[2]), channel(rest[3]))
		} else {
			sc.lost("background", "background colors dropped")
		}
		return 4
	case "5":
		if len(rest) < 2 {
			return len(rest)
		}
		idx, err := strconv.Atoi(rest[1])
		switch {
		case code == "48":
			sc.lost("background", "background colors dropped")
		case err == nil && idx >= 0 && idx < 8:
			st.color = colorNames[idx]
		case err == nil && idx >= 8 && idx < 16:
			st.color = "bright-" + colorNames[idx-8]
		default:
			sc.lost("palette", "256-color palette entries dropped")
		}
		return 2
	}
	return 0
}

func (sc *scanner) lost(key, msg string) {
	sc.ws.Once(key, ir.NewWarning(ir.SeverityMinor, ir.FeatureLost{Feature: key}, msg))
}

func channel(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return min(max(n, 0), 255)
}

// Parse implements plugins.Reader. Paragraphs are separated by lines that
// are blank once escapes are stripped; the lines of a paragraph are joined
// with one space. Escapes on blank lines still change the style.
func (h *Handler) Parse(input []byte, opts plugins.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
	var ws ir.Warnings
	text, replaced, err := base.DecodeText(FormatName, input, opts.Option("charset", ""))
	if err != nil {
		return nil, err
	}
	if replaced {
		ws.Lost(ir.SeverityMinor, "encoding", "invalid UTF-8 sequences replaced")
	}

	doc := opts.NewDocument(FormatName)
	sc := &scanner{ws: &ws}
	var (
		lines      []string
		paragraphs int
	)
	emit := func() {
		if len(lines) == 0 {
			return
		}
		paragraphs++
		children := sc.inline(strings.Join(lines, " "))
		lines = nil
		if len(children) > 0 {
			doc.Content = doc.Content.Child(ir.NewNode(ir.KindParagraph).WithChildren(children...))
		}
	}
	for _, line := range base.Lines(text) {
		if base.IsBlankLine(StripEscapes(line)) {
			emit()
			sc.skip(line)
			continue
		}
		lines = append(lines, line)
	}
	emit()

	if opts.PreserveSourceInfo {
		doc.Source.Metadata.Set(SourceParagraphs, ir.Int(int64(paragraphs)))
	}
	return ir.WithWarnings(doc, ws.List()), nil
}
