package sqlite

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/core/sqlite"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

// column affinities chosen by inferType
const (
	affText    = "TEXT"
	affInteger = "INTEGER"
	affReal    = "REAL"
)

// sqlTable is a document table prepared for insertion.
type sqlTable struct {
	name    string
	columns []string
	types   []string
	rows    [][]string
}

// Emit implements plugins.Writer.
func (h *Handler) Emit(doc *ir.Document, opts plugins.EmitOptions) (*ir.ConversionResult[[]byte], error) {
	var (
		ws     ir.Warnings
		tables []ir.Node
		loose  []ir.Node
	)
	for _, n := range doc.Content.Children {
		collect(n, &tables, &loose)
	}

	var prepared []sqlTable
	names := make(map[string]bool)
	if len(tables) == 0 {
		if len(loose) > 0 {
			t := sqlTable{name: "content", columns: []string{"text"}, types: []string{affText}}
			for _, n := range loose {
				t.rows = append(t.rows, []string{base.CollapseSpace(ir.TextContent(n))})
			}
			prepared = append(prepared, t)
			ws.Simplify(ir.SeverityMajor, "document", "document has no tables; blocks written to table \"content\"")
		}
	} else {
		if len(loose) > 0 {
			ws.Lost(ir.SeverityMajor, "content", fmt.Sprintf("%d blocks outside tables dropped", len(loose)))
		}
		for i, t := range tables {
			prepared = append(prepared, prepare(&ws, t, unique(names, tableName(t, i))))
		}
	}
	if doc.Metadata.Len() > 0 {
		ws.Lost(ir.SeverityInfo, "metadata", "document metadata is not stored")
	}

	data, err := sqlite.Build(func(db *sql.DB) error {
		for _, t := range prepared {
			if err := insert(db, t); err != nil {
				return fmt.Errorf("table %q: %w", t.name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, &apperrors.EmitError{Kind: apperrors.EmitIO, Format: FormatName, Reason: "building database failed", Err: err}
	}
	return ir.WithWarnings(data, ws.List()), nil
}

// collect splits a block into tables and the remaining blocks.
func collect(n ir.Node, tables, loose *[]ir.Node) {
	if n.Kind == ir.KindTable {
		*tables = append(*tables, n)
		return
	}
	if !ir.Contains(n, ir.KindTable) {
		*loose = append(*loose, n)
		return
	}
	for _, c := range n.Children {
		collect(c, tables, loose)
	}
}

func tableName(t ir.Node, i int) string {
	for _, c := range t.Children {
		if c.Kind == ir.KindCaption {
			if name := base.CollapseSpace(ir.TextContent(c)); name != "" {
				return name
			}
		}
	}
	return "table_" + strconv.Itoa(i+1)
}

// unique returns name, or name with a numeric suffix when it is taken.
// SQLite identifiers compare case-insensitively.
func unique(taken map[string]bool, name string) string {
	if strings.HasPrefix(strings.ToLower(name), "sqlite_") {
		name = "t_" + name
	}
	out := name
	for n := 2; taken[strings.ToLower(out)]; n++ {
		out = name + "_" + strconv.Itoa(n)
	}
	taken[strings.ToLower(out)] = true
	return out
}

func prepare(ws *ir.Warnings, t ir.Node, name string) sqlTable {
	rows := base.TableRows(t)
	out := sqlTable{name: name}

	width := 0
	for _, r := range rows {
		width = max(width, len(r.Cells))
	}
	body := rows
	if len(rows) > 0 && rows[0].Header {
		body = rows[1:]
	}

	taken := make(map[string]bool)
	for i := 0; i < width; i++ {
		col := ""
		if len(rows) > 0 && rows[0].Header && i < len(rows[0].Cells) {
			col = base.CollapseSpace(rows[0].Cells[i])
		}
		if col == "" {
			col = "column_" + strconv.Itoa(i+1)
		}
		out.columns = append(out.columns, unique(taken, col))
	}

	for _, r := range body {
		if r.Header {
			ws.Once("header rows", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "header rows"},
				"only the first header row names columns; later ones stored as data"))
		}
		if r.Nested {
			ws.Once("nested", ir.NewWarning(ir.SeverityMinor, ir.Simplified{Feature: "table cell structure"},
				"block content in cells flattened to text"))
		}
		cells := make([]string, width)
		copy(cells, r.Cells)
		out.rows = append(out.rows, cells)
	}

	out.types = make([]string, width)
	for i := range out.types {
		out.types[i] = inferType(out.rows, i)
	}
	return out
}

// inferType picks INTEGER or REAL when every non-empty value in column i
// reads back unchanged from that type, TEXT otherwise.
func inferType(rows [][]string, i int) string {
	aff, seen := affInteger, false
	for _, r := range rows {
		s := r[i]
		if s == "" {
			continue
		}
		seen = true
		if aff == affInteger {
			if v, err := strconv.ParseInt(s, 10, 64); err == nil && strconv.FormatInt(v, 10) == s {
				continue
			}
			aff = affReal
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil && strconv.FormatFloat(v, 'g', -1, 64) == s {
			continue
		}
		return affText
	}
	if !seen {
		return affText
	}
	return aff
}

func insert(db *sql.DB, t sqlTable) error {
	defs := make([]string, len(t.columns))
	marks := make([]string, len(t.columns))
	for i, c := range t.columns {
		defs[i] = sqlite.QuoteIdent(c) + " " + t.types[i]
		marks[i] = "?"
	}
	if len(defs) == 0 {
		// SQLite rejects tables without columns.
		defs = []string{`"column_1" TEXT`}
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after Commit

	if _, err := tx.Exec(`CREATE TABLE ` + sqlite.QuoteIdent(t.name) + ` (` + strings.Join(defs, ", ") + `)`); err != nil {
		return err
	}
	if len(t.columns) > 0 && len(t.rows) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO ` + sqlite.QuoteIdent(t.name) + ` VALUES (` + strings.Join(marks, ", ") + `)`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		args := make([]any, len(t.columns))
		for _, r := range t.rows {
			for i, s := range r {
				args[i] = value(s, t.types[i])
			}
			if _, err := stmt.Exec(args...); err != nil {
				return err
			}
		}
	}
	return tx.Commit()
}

func value(s, aff string) any {
	if s == "" && aff != affText {
		return nil
	}
	switch aff {
	case affInteger:
		v, _ := strconv.ParseInt(s, 10, 64)
		return v
	case affReal:
		v, _ := strconv.ParseFloat(s, 64)
		return v
	}
	return s
}
