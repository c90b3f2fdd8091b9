package ir

import "strings"

// Kind names the type of a node. The set is open: plugins may introduce
// their own kinds, conventionally namespaced as "ns:name".
type Kind string

// Namespace returns the prefix before the first ':' or "" for standard kinds.
func (k Kind) Namespace() string {
	if i := strings.IndexByte(string(k), ':'); i > 0 {
		return string(k[:i])
	}
	return ""
}

// Local returns the kind without its namespace.
func (k Kind) Local() string {
	if i := strings.IndexByte(string(k), ':'); i > 0 {
		return string(k[i+1:])
	}
	return string(k)
}

// IsStandard reports whether k belongs to the standard vocabulary.
func (k Kind) IsStandard() bool {
	_, ok := standardKinds[k]
	return ok
}

// IsInline reports whether k is a standard inline kind.
func (k Kind) IsInline() bool {
	return standardKinds[k]
}

// Standard block kinds.
const (
	KindDocument       Kind = "document"
	KindParagraph      Kind = "paragraph"
	KindHeading        Kind = "heading"
	KindCodeBlock      Kind = "code_block"
	KindBlockquote     Kind = "blockquote"
	KindList           Kind = "list"
	KindListItem       Kind = "list_item"
	KindTable          Kind = "table"
	KindTableHead      Kind = "table_head"
	KindTableBody      Kind = "table_body"
	KindTableFoot      Kind = "table_foot"
	KindTableRow       Kind = "table_row"
	KindTableCell      Kind = "table_cell"
	KindTableHeader    Kind = "table_header"
	KindFigure         Kind = "figure"
	KindCaption        Kind = "caption"
	KindHorizontalRule Kind = "horizontal_rule"
	KindDiv            Kind = "div"
	KindRawBlock       Kind = "raw_block"
	KindDefinitionList Kind = "definition_list"
	KindDefinitionTerm Kind = "definition_term"
	KindDefinitionDesc Kind = "definition_desc"
	KindFootnoteDef    Kind = "footnote_def"
)

// Standard inline kinds.
const (
	KindText        Kind = "text"
	KindEmphasis    Kind = "emphasis"
	KindStrong      Kind = "strong"
	KindStrikeout   Kind = "strikeout"
	KindUnderline   Kind = "underline"
	KindSubscript   Kind = "subscript"
	KindSuperscript Kind = "superscript"
	KindSmallCaps   Kind = "small_caps"
	KindCode        Kind = "code"
	KindLink        Kind = "link"
	KindImage       Kind = "image"
	KindLineBreak   Kind = "line_break"
	KindSoftBreak   Kind = "soft_break"
	KindSpan        Kind = "span"
	KindRawInline   Kind = "raw_inline"
	KindFootnoteRef Kind = "footnote_ref"
	KindQuoted      Kind = "quoted"
	KindCite        Kind = "cite"
)

// standardKinds maps each standard kind to whether it is inline.
var standardKinds = map[Kind]bool{
	KindDocument: false, KindParagraph: false, KindHeading: false,
	KindCodeBlock: false, KindBlockquote: false, KindList: false,
	KindListItem: false, KindTable: false, KindTableHead: false,
	KindTableBody: false, KindTableFoot: false, KindTableRow: false,
	KindTableCell: false, KindTableHeader: false, KindFigure: false,
	KindCaption: false, KindHorizontalRule: false, KindDiv: false,
	KindRawBlock: false, KindDefinitionList: false, KindDefinitionTerm: false,
	KindDefinitionDesc: false, KindFootnoteDef: false,

	KindText: true, KindEmphasis: true, KindStrong: true, KindStrikeout: true,
	KindUnderline: true, KindSubscript: true, KindSuperscript: true,
	KindSmallCaps: true, KindCode: true, KindLink: true, KindImage: true,
	KindLineBreak: true, KindSoftBreak: true, KindSpan: true,
	KindRawInline: true, KindFootnoteRef: true, KindQuoted: true, KindCite: true,
}

// Standard property keys.
const (
	PropContent  = "content"
	PropLevel    = "level"
	PropOrdered  = "ordered"
	PropStart    = "start"
	PropLanguage = "language"
	PropURL      = "url"
	PropTitle    = "title"
	PropAlt      = "alt"
	PropResource = "resource"
	PropID       = "id"
	PropClasses  = "classes"
	PropHeader   = "header"
	PropFormat   = "format"
	PropLabel    = "label"
	PropAlign    = "align"
	PropColspan  = "colspan"
	PropRowspan  = "rowspan"
)

// Style and layout hints. Writers may ignore them.
const (
	PropStyleBold       = "style:bold"
	PropStyleItalic     = "style:italic"
	PropStyleUnderline  = "style:underline"
	PropStyleColor      = "style:color"
	PropLayoutPageBreak = "layout:page_break"
	PropLayoutPage      = "layout:page"
)

// Document metadata keys.
const (
	MetaTitle    = "title"
	MetaAuthor   = "author"
	MetaDate     = "date"
	MetaLanguage = "language"
)
