package transforms

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"

	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/ir"
)

// NormalizeText applies a Unicode normalization form to text and code
// content and to string metadata.
type NormalizeText struct {
	// Form is one of NFC, NFD, NFKC, NFKD. Empty means NFC.
	Form string
}

// Name implements plugins.Transformer.
func (t NormalizeText) Name() string { return "normalize_text" }

func (t NormalizeText) form() (norm.Form, error) {
	switch strings.ToUpper(t.Form) {
	case "", "NFC":
		return norm.NFC, nil
	case "NFD":
		return norm.NFD, nil
	case "NFKC":
		return norm.NFKC, nil
	case "NFKD":
		return norm.NFKD, nil
	}
	return 0, fmt.Errorf("unknown normalization form %q", t.Form)
}

// Transform implements plugins.Transformer.
func (t NormalizeText) Transform(doc *ir.Document) (*ir.Document, error) {
	f, err := t.form()
	if err != nil {
		return nil, &apperrors.TransformError{Transform: t.Name(), Reason: "invalid form", Err: err}
	}
	out := doc.Clone()
	ir.WalkMut(&out.Content, func(n *ir.Node) {
		if s, ok := n.Props.GetString(ir.PropContent); ok && !f.IsNormalString(s) {
			n.Props.Set(ir.PropContent, ir.String(f.String(s)))
		}
	})
	for _, k := range out.Metadata.Keys() {
		if s, ok := out.Metadata.GetString(k); ok && !f.IsNormalString(s) {
			out.Metadata.Set(k, ir.String(f.String(s)))
		}
	}
	return out, nil
}
