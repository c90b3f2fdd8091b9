package cas

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/FocuswithJustin/Rescribe/core/ir"
)

// Entry describes a stored resource. It is also the content of the BLAKE3
// pointer file, so a resource can be found again by the digest the
// dedupe and image-info transforms record.
type Entry struct {
	SHA256   string `json:"sha256"`
	BLAKE3   string `json:"blake3"`
	MimeType string `json:"mime_type,omitempty"`
	Name     string `json:"name,omitempty"`
	Size     int    `json:"size"`
}

// PutResource stores an exported resource and indexes it by BLAKE3 digest.
func (s *Store) PutResource(r ir.ExportedResource) (Entry, error) {
	sha, err := s.Put(r.Data)
	if err != nil {
		return Entry{}, err
	}
	e := Entry{
		SHA256:   sha,
		BLAKE3:   ir.ResourceDigest(ir.Resource{Data: r.Data}),
		MimeType: r.MimeType,
		Name:     r.FileName(),
		Size:     len(r.Data),
	}
	data, err := json.Marshal(e)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal pointer: %w", err)
	}
	if err := writeAtomic(s.pointerPath(e.BLAKE3), data); err != nil {
		return Entry{}, fmt.Errorf("failed to write pointer: %w", err)
	}
	return e, nil
}

// PutResources stores every resource of doc in embedding order.
func (s *Store) PutResources(doc *ir.Document) ([]Entry, error) {
	var out []Entry
	for _, r := range doc.ExportResources() {
		e, err := s.PutResource(r)
		if err != nil {
			return out, fmt.Errorf("resource %s: %w", r.ID, err)
		}
		out = append(out, e)
	}
	return out, nil
}

// Lookup returns the entry indexed under a BLAKE3 digest.
func (s *Store) Lookup(blake3Hash string) (Entry, error) {
	if !validHash(blake3Hash) {
		return Entry{}, ErrInvalidHash
	}
	data, err := os.ReadFile(s.pointerPath(blake3Hash))
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, ErrBlobNotFound
		}
		return Entry{}, fmt.Errorf("failed to read pointer: %w", err)
	}
	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return Entry{}, fmt.Errorf("failed to parse pointer: %w", err)
	}
	return e, nil
}

// Resource loads the resource indexed under a BLAKE3 digest.
func (s *Store) Resource(blake3Hash string) (ir.Resource, error) {
	e, err := s.Lookup(blake3Hash)
	if err != nil {
		return ir.Resource{}, err
	}
	data, err := s.Get(e.SHA256)
	if err != nil {
		return ir.Resource{}, err
	}
	return ir.NewResource(e.MimeType, data).WithName(e.Name), nil
}
