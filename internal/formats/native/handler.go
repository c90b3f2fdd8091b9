// Package native provides the embedded handler for the native IR dump.
//
// The native format is a lossless, human-readable rendering of a document:
// every node with its kind, properties, span and children, the document
// metadata, the recorded source and every resource with its payload. It is
// the debugging view of the model and the one format that round trips any
// document unchanged.
//
//	Document {
//	  metadata: {
//	    title: "Example"
//	  }
//	  content:
//	    document() [
//	      paragraph() [
//	        text({ content: "Hello" })
//	      ]
//	    ]
//	  resources: [
//	    Resource { id: "res_0", mime: "image/png", size: 3, data: "AQID" }
//	  ]
//	}
package native

import (
	"regexp"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/FocuswithJustin/Rescribe/core/plugins"
	"github.com/FocuswithJustin/Rescribe/internal/formats/base"
)

// FormatName is the registered format name.
const FormatName = "native"

// MaxDepth bounds bracket nesting in the input.
const MaxDepth = 512

// Handler implements the native reader and writer.
type Handler struct{}

// Manifest returns the format description for registration.
func Manifest() *plugins.Format {
	return &plugins.Format{
		Name:        FormatName,
		Description: "Native IR dump (lossless)",
		Aliases:     []string{"ir"},
		Extensions:  []string{"rsir"},
		MIMETypes:   []string{"text/x-rescribe-native"},
		Version:     "1.0.0",
		Reader:      &Handler{},
		Writer:      &Handler{},
		Sniff: base.Sniffer(base.SniffConfig{
			CustomValidator: func(data []byte) bool {
				return strings.HasPrefix(strings.TrimLeft(string(data), " \t\r\n"), "Document {")
			},
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

// Grammar

//nolint:govet // participle grammar tags are not standard struct tags
type nativeDocument struct {
	Metadata  []*entry    `"Document" "{" ( "metadata" ":" "{" ( @@ ","? )* "}" )?`
	Source    *source     `( "source" ":" @@ )?`
	Content   *node       `"content" ":" @@`
	Resources []*resource `( "resources" ":" "[" ( @@ ","? )* "]" )? "}"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type source struct {
	Format   string   `@String`
	Metadata []*entry `( "{" ( @@ ","? )* "}" )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type node struct {
	Pos      lexer.Position
	Kind     string   `( @Ident | @String ) "("`
	Props    []*entry `( "{" ( @@ ","? )* "}" )? ")"`
	Span     *span    `( "@" @@ )?`
	Children []*node  `( "[" ( @@ ","? )* "]" )?`
}

//nolint:govet // participle grammar tags are not standard struct tags
type span struct {
	Start string `"(" @Int ","`
	End   string `@Int ")"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type entry struct {
	Pos   lexer.Position
	Key   string `( @Ident | @String ) ":"`
	Value *value `@@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type value struct {
	String *string    `  @String`
	Float  *string    `| @Float`
	Int    *string    `| @Int`
	Bool   *string    `| @( "true" | "false" )`
	List   *listValue `| @@`
	Map    *mapValue  `| @@`
}

//nolint:govet // participle grammar tags are not standard struct tags
type listValue struct {
	Items []*value `"[" ( @@ ","? )* "]"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type mapValue struct {
	Entries []*entry `"{" ( @@ ","? )* "}"`
}

//nolint:govet // participle grammar tags are not standard struct tags
type resource struct {
	Pos    lexer.Position
	Fields []*entry `"Resource" "{" ( @@ ","? )* "}"`
}

// nativeLexer tokenizes the dump. Identifiers may contain single colons
// between segments ("math:fraction") but never end in one, so "content:"
// lexes as an identifier followed by punctuation.
var nativeLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Comment", Pattern: `#[^\n]*`},
	{Name: "String", Pattern: `"(?:\\.|[^"\\\n])*"`},
	{Name: "Float", Pattern: `[-+]?(?:\d+\.\d*(?:[eE][-+]?\d+)?|\d+[eE][-+]?\d+|(?:Inf|NaN)\b)`},
	{Name: "Int", Pattern: `[-+]?\d+`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_.\-]*(?::[A-Za-z0-9_.\-]+)*`},
	{Name: "Punct", Pattern: `[{}()\[\],:@]`},
	{Name: "Whitespace", Pattern: `\s+`},
})

var nativeParser = participle.MustBuild[nativeDocument](
	participle.Lexer(nativeLexer),
	participle.Unquote("String"),
	participle.Elide("Comment", "Whitespace"),
)

var bareName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*(?::[A-Za-z0-9_.\-]+)*$`)

// name renders a kind or key, quoting it when it would not lex back as a
// single identifier.
func name(s string) string {
	if bareName.MatchString(s) && !strings.HasPrefix(s, "Inf") && !strings.HasPrefix(s, "NaN") {
		return s
	}
	return quote(s)
}
