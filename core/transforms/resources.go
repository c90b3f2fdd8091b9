package transforms

import (
	"bytes"
	"image"
	_ "image/gif"  // register decoder
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder

	_ "golang.org/x/image/bmp"  // register decoder
	_ "golang.org/x/image/tiff" // register decoder
	_ "golang.org/x/image/webp" // register decoder

	"github.com/FocuswithJustin/Rescribe/core/ir"
)

// Resource metadata keys written by ImageInfo.
const (
	MetaImageWidth  = "image:width"
	MetaImageHeight = "image:height"
	MetaImageFormat = "image:format"
	MetaDigest      = "digest:blake3"
)

// DedupeResources collapses byte-identical resources with the same MIME type
// into the first one embedded and repoints node references to it.
type DedupeResources struct{}

// Name implements plugins.Transformer.
func (DedupeResources) Name() string { return "dedupe_resources" }

// Transform implements plugins.Transformer.
func (DedupeResources) Transform(doc *ir.Document) (*ir.Document, error) {
	out := doc.Clone()
	canonical := make(map[string]ir.ResourceID)
	alias := make(map[ir.ResourceID]ir.ResourceID)

	for _, id := range out.ResourceIDs() {
		r := out.Resources[id]
		key := r.MimeType + "\x00" + ir.ResourceDigest(r)
		if first, ok := canonical[key]; ok {
			alias[id] = first
			continue
		}
		canonical[key] = id
	}
	if len(alias) == 0 {
		return out, nil
	}

	ir.WalkMut(&out.Content, func(n *ir.Node) {
		ref, ok := n.Props.GetString(ir.PropResource)
		if !ok {
			return
		}
		if target, dup := alias[ir.ResourceID(ref)]; dup {
			n.Props.Set(ir.PropResource, ir.String(string(target)))
		}
	})
	for id := range alias {
		out.RemoveResource(id)
	}
	return out, nil
}

// ImageInfo records width, height and decoder name in the metadata of every
// image resource the registered decoders understand, along with the BLAKE3
// digest of each resource. Undecodable images are left without dimensions.
type ImageInfo struct{}

// Name implements plugins.Transformer.
func (ImageInfo) Name() string { return "image_info" }

// Transform implements plugins.Transformer.
func (ImageInfo) Transform(doc *ir.Document) (*ir.Document, error) {
	out := doc.Clone()
	for _, id := range out.ResourceIDs() {
		r := out.Resources[id]
		r.Metadata.Set(MetaDigest, ir.String(ir.ResourceDigest(r)))
		if r.IsImage() {
			if cfg, format, err := image.DecodeConfig(bytes.NewReader(r.Data)); err == nil {
				r.Metadata.Set(MetaImageWidth, ir.Int(int64(cfg.Width)))
				r.Metadata.Set(MetaImageHeight, ir.Int(int64(cfg.Height)))
				r.Metadata.Set(MetaImageFormat, ir.String(format))
			}
		}
		out.Resources[id] = r
	}
	return out, nil
}
