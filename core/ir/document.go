package ir

import (
	"maps"
	"path"
	"strings"
)

// SourceInfo records where a document came from. Metadata is
// format-specific and only meaningful to the format named in Format.
type SourceInfo struct {
	Format   string
	Metadata Properties
}

// Document is the top-level aggregate: a content tree, the resources it
// references, and document-level metadata.
//
// Content normally has kind "document". Resource references in the tree are
// not checked; a reference to a missing resource is a normal lookup miss.
type Document struct {
	Content   Node
	Resources map[ResourceID]Resource
	Metadata  Properties
	Source    *SourceInfo

	order []ResourceID
	ids   IDGenerator
	// claimed holds every identifier ever stored, including removed ones.
	claimed map[ResourceID]struct{}
}

// NewDocument returns an empty document drawing identifiers from DefaultIDs.
func NewDocument() *Document {
	return NewDocumentWithIDs(nil)
}

// NewDocumentWithIDs returns an empty document drawing identifiers from gen.
// A nil gen means DefaultIDs.
func NewDocumentWithIDs(gen IDGenerator) *Document {
	return &Document{
		Content:   NewNode(KindDocument),
		Resources: make(map[ResourceID]Resource),
		ids:       gen,
	}
}

// WithContent sets the content tree and returns d.
func (d *Document) WithContent(n Node) *Document {
	d.Content = n
	return d
}

// IDs returns the generator used by Embed.
func (d *Document) IDs() IDGenerator {
	if d.ids == nil {
		return DefaultIDs
	}
	return d.ids
}

// Embed stores r under a freshly generated identifier and returns it.
// Identifiers already used in d, whether stored through Put, assigned to
// Resources directly or since removed, are skipped.
func (d *Document) Embed(r Resource) ResourceID {
	gen := d.IDs()
	id := gen.Next()
	for d.taken(id) {
		id = gen.Next()
	}
	d.put(id, r)
	return id
}

// Put stores r under an existing identifier, replacing any resource stored
// there. Readers of formats that carry identifiers use it to preserve them.
// Later calls to Embed never return id.
func (d *Document) Put(id ResourceID, r Resource) {
	d.put(id, r)
}

func (d *Document) taken(id ResourceID) bool {
	if _, ok := d.Resources[id]; ok {
		return true
	}
	_, ok := d.claimed[id]
	return ok
}

func (d *Document) put(id ResourceID, r Resource) {
	if d.Resources == nil {
		d.Resources = make(map[ResourceID]Resource)
	}
	if d.claimed == nil {
		d.claimed = make(map[ResourceID]struct{})
	}
	if _, exists := d.Resources[id]; !exists {
		d.order = append(d.order, id)
	}
	d.Resources[id] = r
	d.claimed[id] = struct{}{}
}

// Resource looks up a resource. A miss is not an error.
func (d *Document) Resource(id ResourceID) (Resource, bool) {
	r, ok := d.Resources[id]
	return r, ok
}

// RemoveResource deletes a resource. Its identifier is never reissued.
func (d *Document) RemoveResource(id ResourceID) {
	if _, ok := d.Resources[id]; !ok {
		return
	}
	delete(d.Resources, id)
	for i, o := range d.order {
		if o == id {
			d.order = append(d.order[:i:i], d.order[i+1:]...)
			break
		}
	}
}

// Reembed copies the resource stored under id to a fresh identifier.
func (d *Document) Reembed(id ResourceID) (ResourceID, bool) {
	r, ok := d.Resources[id]
	if !ok {
		return "", false
	}
	return d.Embed(r.Clone()), true
}

// ResourceIDs lists identifiers in embedding order. Resources added by
// assigning to the map directly follow, in no particular order.
func (d *Document) ResourceIDs() []ResourceID {
	out := make([]ResourceID, 0, len(d.Resources))
	seen := make(map[ResourceID]bool, len(d.order))
	for _, id := range d.order {
		if _, ok := d.Resources[id]; ok && !seen[id] {
			out = append(out, id)
			seen[id] = true
		}
	}
	for id := range d.Resources {
		if !seen[id] {
			out = append(out, id)
		}
	}
	return out
}

// ExportedResource is a resource handed to a host for external storage.
type ExportedResource struct {
	ID       ResourceID
	Name     string
	MimeType string
	Data     []byte
}

// FileName returns the base of Name if set, otherwise the identifier plus
// an extension derived from the MIME type. The result never contains a
// directory component.
func (e ExportedResource) FileName() string {
	if name := path.Base(strings.ReplaceAll(e.Name, "\\", "/")); e.Name != "" && name != "." && name != "/" && name != ".." {
		return name
	}
	return string(e.ID) + Resource{MimeType: e.MimeType}.Extension()
}

// ExportResources returns every resource in embedding order.
func (d *Document) ExportResources() []ExportedResource {
	ids := d.ResourceIDs()
	out := make([]ExportedResource, 0, len(ids))
	for _, id := range ids {
		r := d.Resources[id]
		out = append(out, ExportedResource{ID: id, Name: r.Name, MimeType: r.MimeType, Data: r.Data})
	}
	return out
}

// ResourceRefs returns the identifiers referenced from the content tree in
// document order, without duplicates.
func (d *Document) ResourceRefs() []ResourceID {
	var out []ResourceID
	seen := make(map[ResourceID]bool)
	Walk(d.Content, func(n Node) bool {
		if s, ok := n.Props.GetString(PropResource); ok && !seen[ResourceID(s)] {
			seen[ResourceID(s)] = true
			out = append(out, ResourceID(s))
		}
		return true
	})
	return out
}

// Clone returns a deep copy of d sharing its identifier generator.
func (d *Document) Clone() *Document {
	out := &Document{
		Content:  d.Content.Clone(),
		Metadata: d.Metadata.Clone(),
		order:    append([]ResourceID(nil), d.order...),
		ids:      d.ids,
	}
	out.Resources = make(map[ResourceID]Resource, len(d.Resources))
	for id, r := range d.Resources {
		out.Resources[id] = r.Clone()
	}
	if d.Source != nil {
		out.Source = &SourceInfo{Format: d.Source.Format, Metadata: d.Source.Metadata.Clone()}
	}
	if d.claimed != nil {
		out.claimed = maps.Clone(d.claimed)
	}
	return out
}

// Title returns the "title" metadata entry.
func (d *Document) Title() string {
	return d.Metadata.StringOr(MetaTitle, "")
}
