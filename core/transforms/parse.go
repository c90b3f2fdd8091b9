package transforms

import (
	"fmt"
	"strconv"
	"strings"

	apperrors "github.com/FocuswithJustin/Rescribe/core/errors"
	"github.com/FocuswithJustin/Rescribe/core/plugins"
)

// Names lists the transform specs accepted by Parse.
var Names = []string{
	"shift-headings=N",
	"strip-empty",
	"merge-text",
	"unwrap-single-child",
	"normalize[=NFC|NFD|NFKC|NFKD]",
	"dedupe-resources",
	"image-info",
}

// Parse builds a transform from a command-line spec such as
// "shift-headings=1" or "strip-empty". Underscores and dashes are
// interchangeable.
func Parse(spec string) (plugins.Transformer, error) {
	name, arg, hasArg := strings.Cut(strings.TrimSpace(spec), "=")
	name = strings.ReplaceAll(strings.ToLower(name), "_", "-")

	switch name {
	case "shift-headings":
		if !hasArg {
			return NewShiftHeadings(1), nil
		}
		delta, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, apperrors.NewValidation("transform", fmt.Sprintf("shift-headings needs an integer, got %q", arg))
		}
		return NewShiftHeadings(delta), nil
	case "strip-empty":
		return StripEmpty{}, nil
	case "merge-text":
		return MergeText{}, nil
	case "unwrap-single-child":
		return UnwrapSingleChild{}, nil
	case "normalize", "normalize-text":
		t := NormalizeText{Form: arg}
		if _, err := t.form(); err != nil {
			return nil, apperrors.NewValidation("transform", err.Error())
		}
		return t, nil
	case "dedupe-resources":
		return DedupeResources{}, nil
	case "image-info":
		return ImageInfo{}, nil
	}
	return nil, apperrors.NewNotFound("transform", spec)
}

// ParseAll builds a pipeline from a list of specs.
func ParseAll(specs []string) (*Pipeline, error) {
	p := NewPipeline()
	for _, s := range specs {
		t, err := Parse(s)
		if err != nil {
			return nil, err
		}
		p.Then(t)
	}
	return p, nil
}
