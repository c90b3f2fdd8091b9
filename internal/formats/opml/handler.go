// Package opml provides the embedded handler for OPML outlines.
//
// Outlines read as nested bullet lists: each outline becomes a list item
// holding its text (a link when the outline carries a URL), an optional
// note paragraph and a nested list of its children. Attributes without a
// counterpart are kept on the item under the "opml:" prefix so they
// survive a round trip.
package opml

import (
	"fmt"
	"strings"

	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/core/xml"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

// FormatName is the registered format name.
const FormatName = "opml"

// SourceVersion records the opml version attribute when
// ParseOptions.PreserveSourceInfo is set.
const SourceVersion = "opml:version"

// AttrPrefix prefixes outline attributes kept as list item properties.
const AttrPrefix = "opml:"

const maxDepth = 256

// head elements mapped to document metadata.
var headFields = []struct{ element, key string }{
	{"title", ir.MetaTitle},
	{"ownerName", ir.MetaAuthor},
	{"dateCreated", ir.MetaDate},
	{"ownerEmail", "email"},
	{"dateModified", "modified"},
}

// Handler implements the OPML reader and writer.
type Handler struct{}

// Manifest returns the format description for registration.
func Manifest() *plugins.Format {
	return &plugins.Format{
		Name:        FormatName,
		Description: "Outline Processor Markup Language",
		Extensions:  []string{"opml"},
		MIMETypes:   []string{"text/x-opml", "application/xml"},
		Version:     "1.0.0",
		Reader:      &Handler{},
		Writer:      &Handler{},
		Sniff: base.Sniffer(base.SniffConfig{
			ContentMarkers: []string{"<opml"},
		}),
	}
}

// Register registers this format with the default registry.
func Register() {
	plugins.RegisterFormat(Manifest())
}

func init() {
	Register()
}

// Parse implements plugins.Reader.
func (h *Handler) Parse(input []byte, opts plugins.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
	parsed, err := xml.Parse(input)
	if err != nil {
		pe := apperrors.NewParse(apperrors.ParseInvalid, FormatName, err.Error())
		pe.Err = err
		return nil, pe
	}
	root := parsed.Root()
	if root.Name() != "opml" {
		return nil, apperrors.NewParse(apperrors.ParseInvalid, FormatName,
			fmt.Sprintf("root element is <%s>, not <opml>", root.Name()))
	}

	var ws ir.Warnings
	doc := opts.NewDocument(FormatName)
	if head, _ := root.FindOne("head"); head != nil {
		for _, f := range headFields {
			if n, _ := head.FindOne(f.element); n != nil {
				if v := strings.TrimSpace(n.Text()); v != "" {
					doc.Metadata.Set(f.key, ir.String(v))
				}
			}
		}
	}

	body, _ := root.FindOne("body")
	if body == nil {
		ws.Lost(ir.SeverityMinor, "body", "document has no <body>; no outlines read")
	} else if list, ok := outlines(&ws, body.Children("outline"), 1); ok {
		doc.Content = doc.Content.Child(list)
	}

	if opts.PreserveSourceInfo {
		doc.Source.Metadata.Set(SourceVersion, ir.String(root.Attr("version")))
	}
	return ir.WithWarnings(doc, ws.List()), nil
}

func outlines(ws *ir.Warnings, nodes []*xml.Node, depth int) (ir.Node, bool) {
	if len(nodes) == 0 {
		return ir.Node{}, false
	}
	list := ir.NewNode(ir.KindList)
	for _, n := range nodes {
		list = list.Child(outline(ws, n, depth))
	}
	return list, true
}

func outline(ws *ir.Warnings, n *xml.Node, depth int) ir.Node {
	item := ir.NewNode(ir.KindListItem)
	var text, title, url, note string
	for _, a := range n.Attrs() {
		name, value := a[0], a[1]
		switch name {
		case "text":
			text = value
		case "_note":
			note = value
			continue
		case "title":
			title = value
		case "url", "htmlUrl", "xmlUrl":
			if url == "" {
				url = value
			}
		}
		if name != "text" {
			item = item.Prop(AttrPrefix+name, ir.String(value))
		}
	}
	if text == "" {
		text = title
	}

	var content ir.Node = ir.Text(text)
	if url != "" {
		content = ir.NewNode(ir.KindLink).Prop(ir.PropURL, ir.String(url)).Child(content)
	}
	item = item.Child(ir.NewNode(ir.KindParagraph).Child(content))
	if note != "" {
		item = item.Child(ir.NewNode(ir.KindParagraph).Child(ir.Text(note)))
	}

	children := n.Children("outline")
	if depth >= maxDepth && len(children) > 0 {
		ws.Once("depth", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "nesting"},
			fmt.Sprintf("outlines nested deeper than %d flattened to text", maxDepth)))
		var parts []string
		deeper, _ := n.Find("descendant::outline")
		for _, c := range deeper {
			if t := base.CollapseSpace(c.Attr("text")); t != "" {
				parts = append(parts, t)
			}
		}
		return item.Child(ir.NewNode(ir.KindParagraph).Child(ir.Text(strings.Join(parts, " "))))
	}
	if nested, ok := outlines(ws, children, depth+1); ok {
		item = item.Child(nested)
	}
	return item
}
