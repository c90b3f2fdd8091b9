// Package ir provides the format-agnostic Intermediate Representation shared
// by every reader, writer, and transform.
//
// # Core Types
//
// The IR is organized as a tree inside a document aggregate:
//
//   - Value: immutable property value (text, int, float, bool, list, map)
//   - Properties: unordered bag of named values with soft typed getters
//   - Node: open Kind, Properties, ordered children, optional source Span
//   - Resource: binary payload referenced by id from the "resource" property
//   - Document: content tree, resources, metadata, optional SourceInfo
//
// Node kinds are open. The standard vocabulary lives here; domain
// vocabularies use namespaced kinds such as "math:fraction".
//
// # Fidelity
//
// Readers and writers return a ConversionResult carrying FidelityWarnings.
// Loss never aborts a conversion. Warnings are summarized as a loss class:
//
//   - L0: no warnings
//   - L1: informational notices only
//   - L2: minor loss
//   - L3: significant loss
//   - L4: content failed to convert
//
// # Resource Identity
//
// Resource identifiers come from an IDGenerator. DefaultIDs is a process-wide
// atomic counter, so identifiers never collide across documents produced in
// the same process. Tests inject their own generator for deterministic ids.
//
// # Example
//
//	doc := ir.NewDocument()
//	id := doc.Embed(ir.NewResource("image/png", data))
//	doc.Content = doc.Content.Child(
//	    ir.NewNode(ir.KindParagraph).Child(
//	        ir.NewNode(ir.KindImage).
//	            Prop(ir.PropResource, ir.String(string(id))).
//	            Prop(ir.PropAlt, ir.String("logo"))))
package ir
