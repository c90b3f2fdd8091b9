// Package sqlite provides the embedded handler for SQLite databases.
//
// Every user table reads as one document table: a caption naming it, a
// header row of column names and one row per record. The writer does the
// reverse, creating one SQL table per document table with column types
// inferred from the cell text.
package sqlite

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/core/sqlite"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

// FormatName is the registered format name.
const FormatName = "sqlite"

// Source metadata keys recorded when ParseOptions.PreserveSourceInfo is set.
const (
	SourceSchema = "sqlite:schema"
	SourceDriver = "sqlite:driver"
)

// Handler implements the SQLite reader and writer.
type Handler struct{}

// Manifest returns the format description for registration.
func Manifest() *plugins.Format {
	return &plugins.Format{
		Name:        FormatName,
		Description: "SQLite 3 database (tables)",
		Aliases:     []string{"sqlite3"},
		Extensions:  []string{"sqlite", "sqlite3", "db"},
		MIMETypes:   []string{"application/vnd.sqlite3", "application/x-sqlite3"},
		Binary:      true,
		Version:     "1.0.0",
		Reader:      &Handler{},
		Writer:      &Handler{},
		Sniff: base.Sniffer(base.SniffConfig{
			Prefixes: [][]byte{sqlite.Magic},
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

func invalid(reason string, err error) error {
	pe := apperrors.NewParse(apperrors.ParseInvalid, FormatName, reason)
	pe.Err = err
	return pe
}

// Parse implements plugins.Reader.
//
// Option "max_rows" limits the records read per table.
func (h *Handler) Parse(input []byte, opts plugins.ParseOptions) (*ir.ConversionResult[*ir.Document], error) {
	if !sqlite.IsDatabase(input) {
		return nil, apperrors.NewParse(apperrors.ParseInvalid, FormatName, "missing SQLite 3 header")
	}
	maxRows := 0
	if v := opts.Option("max_rows", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return nil, apperrors.NewParse(apperrors.ParseInvalid, FormatName, fmt.Sprintf("max_rows: not a row count: %q", v))
		}
		maxRows = n
	}

	db, err := sqlite.OpenBytes(input)
	if err != nil {
		return nil, invalid("cannot open database", err)
	}
	defer db.Close()

	tables, err := listTables(db.DB)
	if err != nil {
		return nil, invalid("cannot read schema", err)
	}

	var ws ir.Warnings
	r := &reader{db: db.DB, ws: &ws, opts: opts, maxRows: maxRows}
	doc := opts.NewDocument(FormatName)
	r.doc = doc
	schema := make(map[string]ir.Value, len(tables))
	for _, t := range tables {
		table, err := r.table(t.name)
		if err != nil {
			return nil, invalid(fmt.Sprintf("cannot read table %q", t.name), err)
		}
		doc.Content = doc.Content.Child(table)
		schema[t.name] = ir.String(t.sql)
	}

	var others int
	if err := db.QueryRow(`SELECT count(*) FROM sqlite_master WHERE type IN ('view', 'trigger')`).Scan(&others); err == nil && others > 0 {
		ws.Lost(ir.SeverityInfo, "schema objects", fmt.Sprintf("%d views and triggers not read", others))
	}

	if opts.PreserveSourceInfo {
		doc.Source.Metadata.Set(SourceSchema, ir.Map(schema))
		doc.Source.Metadata.Set(SourceDriver, ir.String(sqlite.DriverType()))
	}
	return ir.WithWarnings(doc, ws.List()), nil
}

type tableInfo struct {
	name string
	sql  string
}

func listTables(db *sql.DB) ([]tableInfo, error) {
	rows, err := db.Query(`SELECT name, coalesce(sql, '') FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tableInfo
	for rows.Next() {
		var t tableInfo
		if err := rows.Scan(&t.name, &t.sql); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

type reader struct {
	db      *sql.DB
	doc     *ir.Document
	ws      *ir.Warnings
	opts    plugins.ParseOptions
	maxRows int
}

func (r *reader) table(name string) (ir.Node, error) {
	rows, err := r.db.Query(`SELECT * FROM ` + sqlite.QuoteIdent(name))
	if err != nil {
		return ir.Node{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return ir.Node{}, err
	}

	table := ir.NewNode(ir.KindTable).
		Child(ir.NewNode(ir.KindCaption).Child(ir.Text(name)))
	head := ir.NewNode(ir.KindTableRow)
	for _, c := range cols {
		head = head.Child(ir.NewNode(ir.KindTableCell).Prop(ir.PropHeader, ir.Bool(true)).Child(ir.Text(c)))
	}
	table = table.Child(head)

	vals := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}
	n := 0
	for rows.Next() {
		if r.maxRows > 0 && n == r.maxRows {
			r.ws.Lost(ir.SeverityMajor, "rows", fmt.Sprintf("table %q truncated to %d rows", name, r.maxRows))
			break
		}
		if err := rows.Scan(ptrs...); err != nil {
			return ir.Node{}, err
		}
		row := ir.NewNode(ir.KindTableRow)
		for i, v := range vals {
			row = row.Child(r.cell(name, cols[i], n, v))
		}
		table = table.Child(row)
		n++
	}
	return table, rows.Err()
}

func (r *reader) cell(table, col string, row int, v any) ir.Node {
	cell := ir.NewNode(ir.KindTableCell)
	switch x := v.(type) {
	case nil:
		return cell
	case []byte:
		return cell.Child(r.blob(table, col, row, x))
	case string:
		return cell.Child(ir.Text(x))
	case int64:
		return cell.Child(ir.Text(strconv.FormatInt(x, 10)))
	case float64:
		return cell.Child(ir.Text(strconv.FormatFloat(x, 'g', -1, 64)))
	case bool:
		return cell.Child(ir.Text(strconv.FormatBool(x)))
	case time.Time:
		return cell.Child(ir.Text(x.Format(time.RFC3339Nano)))
	}
	return cell.Child(ir.Text(fmt.Sprint(v)))
}

// blob embeds binary cell data as a resource when EmbedResources is set.
// Image payloads become image nodes; anything else a span referencing the
// resource.
func (r *reader) blob(table, col string, row int, data []byte) ir.Node {
	label := fmt.Sprintf("[%d-byte blob]", len(data))
	if !r.opts.EmbedResources {
		r.ws.Once("blob:"+table, ir.NewWarning(ir.SeverityMinor, ir.FeatureLost{Feature: "blob"},
			fmt.Sprintf("binary values in table %q replaced by placeholders", table)))
		return ir.Text(label)
	}
	mime := http.DetectContentType(data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	res := ir.NewResource(mime, append([]byte(nil), data...)).
		WithName(fmt.Sprintf("%s-%s-%d", table, col, row+1))
	id := r.doc.Embed(res)
	if res.IsImage() {
		return ir.NewNode(ir.KindImage).Prop(ir.PropResource, ir.String(string(id))).Prop(ir.PropAlt, ir.String(col))
	}
	return ir.NewNode(ir.KindSpan).Prop(ir.PropResource, ir.String(string(id))).Child(ir.Text(label))
}
