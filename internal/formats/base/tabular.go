package base

import (
	"strings"
	"unicode"
)

// Tokenizer splits delimiter-separated text into records of fields.
//
// A quote character toggles literal mode, in which the delimiter and line
// breaks are ordinary characters. Inside literal mode a doubled quote
// stands for one quote character. Fields are trimmed of surrounding
// whitespace. Records whose raw text is blank are skipped.
type Tokenizer struct {
	Delimiter rune
	Quote     rune
}

// NewTokenizer returns a tokenizer for delim using '"' as the quote.
func NewTokenizer(delim rune) Tokenizer {
	return Tokenizer{Delimiter: delim, Quote: '"'}
}

// SplitFields tokenizes a single record. Line breaks are kept as field
// content.
func (t Tokenizer) SplitFields(line string) []string {
	records, _ := t.scan(line, false)
	if len(records) == 0 {
		return []string{""}
	}
	return records[0]
}

// Records tokenizes input into records. The boolean result reports a quote
// left open at end of input; the open field runs to the end.
func (t Tokenizer) Records(input string) ([][]string, bool) {
	return t.scan(input, true)
}

// SplitFields tokenizes line with delim and the default quote.
func SplitFields(line string, delim rune) []string {
	return NewTokenizer(delim).SplitFields(line)
}

func (t Tokenizer) scan(input string, multiRecord bool) ([][]string, bool) {
	var (
		records [][]string
		fields  []string
		field   strings.Builder
		inQuote bool
		blank   = true
	)
	quote := t.Quote
	if quote == 0 {
		quote = '"'
	}

	endField := func() {
		fields = append(fields, strings.TrimSpace(field.String()))
		field.Reset()
	}
	endRecord := func() {
		endField()
		if !blank {
			records = append(records, fields)
		}
		fields = nil
		blank = true
	}

	runes := []rune(input)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch {
		case c == quote && inQuote:
			if i+1 < len(runes) && runes[i+1] == quote {
				field.WriteRune(quote)
				i++
				continue
			}
			inQuote = false
		case c == quote:
			inQuote = true
			blank = false
		case c == t.Delimiter && !inQuote:
			endField()
			if !unicode.IsSpace(c) {
				blank = false
			}
		case multiRecord && !inQuote && (c == '\n' || c == '\r'):
			if c == '\r' && i+1 < len(runes) && runes[i+1] == '\n' {
				i++
			}
			endRecord()
		default:
			if blank && !unicode.IsSpace(c) {
				blank = false
			}
			field.WriteRune(c)
		}
	}
	endRecord()
	return records, inQuote
}
