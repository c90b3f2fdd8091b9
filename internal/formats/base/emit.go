package base

import (
	"fmt"

	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/math"
)

// Fallback records that a writer for format has no rendering for n and
// returns the concatenated text of the subtree. One warning is recorded per
// call, whatever the size of the subtree.
func Fallback(ws *ir.Warnings, format string, n ir.Node) string {
	w := ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: string(n.Kind)},
		fmt.Sprintf("%s cannot represent %s; emitted as plain text", format, n.Kind))
	w.Span = n.Span
	ws.Add(w)
	return ir.TextContent(n)
}

// Row is a table row flattened to cell text.
type Row struct {
	Cells  []string
	Header bool
	// Nested is set when a cell contained block structure that was
	// flattened to text.
	Nested bool
}

// TableRows flattens a table node into rows. Rows inside table_head, rows
// whose cells are all table_header nodes, and rows whose cells all carry
// header=true are header rows.
func TableRows(table ir.Node) []Row {
	var rows []Row
	collectRows(table.Children, false, &rows)
	return rows
}

func collectRows(nodes []ir.Node, inHead bool, rows *[]Row) {
	for _, n := range nodes {
		switch n.Kind {
		case ir.KindTableHead:
			collectRows(n.Children, true, rows)
		case ir.KindTableBody, ir.KindTableFoot:
			collectRows(n.Children, false, rows)
		case ir.KindTableRow:
			row := Row{Header: inHead || len(n.Children) > 0}
			for _, cell := range n.Children {
				if !HeaderCell(cell) {
					row.Header = inHead
				}
				for _, c := range cell.Children {
					if !c.Kind.IsInline() {
						row.Nested = true
					}
				}
				row.Cells = append(row.Cells, ir.TextContent(cell))
			}
			*rows = append(*rows, row)
		}
	}
}

// HeaderCell reports whether n is a header cell.
func HeaderCell(n ir.Node) bool {
	if n.Kind == ir.KindTableHeader {
		return true
	}
	h, _ := n.Props.GetBool(ir.PropHeader)
	return h
}

// IsInline reports whether kind flows inside a paragraph. Inline math and
// the parts of structured math are inline; display math is a block.
func IsInline(kind ir.Kind) bool {
	if kind == math.KindDisplay {
		return false
	}
	return kind.IsInline() || math.IsMath(kind)
}

// Blocks returns children with every run of consecutive inline nodes
// wrapped in a paragraph, so block writers never see bare inlines.
func Blocks(children []ir.Node) []ir.Node {
	var (
		out []ir.Node
		run []ir.Node
	)
	flush := func() {
		if len(run) > 0 {
			out = append(out, ir.NewNode(ir.KindParagraph).WithChildren(run...))
			run = nil
		}
	}
	for _, c := range children {
		if IsInline(c.Kind) {
			run = append(run, c)
			continue
		}
		flush()
		out = append(out, c)
	}
	flush()
	return out
}
