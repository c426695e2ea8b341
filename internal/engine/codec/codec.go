// Package codec exports a document version as JSON and rebuilds a version
// from that export.
//
// The export is the full node mapping plus the root key, which is enough to
// reconstruct an equivalent tree:
//
//	{
//	  "format": "inkwell",
//	  "schema": 1,
//	  "id": 12,
//	  "root": "root",
//	  "selection": {"anchor": {"key": "7", "offset": 2, "kind": "text"}, ...},
//	  "nodes": [
//	    {"key": "root", "type": "root", "first": "3", "last": "3", "size": 1},
//	    {"key": "3", "type": "paragraph", "parent": "root", ...},
//	    ...
//	  ]
//	}
//
// Documents are written with sjson and read with gjson, so neither side
// needs intermediate structs. Custom variants round-trip the fields of the
// built-in record they embed.
package codec

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/dshills/inkwell/internal/engine"
	"github.com/dshills/inkwell/internal/engine/node"
	"github.com/dshills/inkwell/internal/engine/selection"
	"github.com/dshills/inkwell/internal/engine/version"
)

// Format identifies an inkwell export.
const Format = "inkwell"

// Schema is the export layout version.
const Schema = 1

// Errors returned by Decode.
var (
	// ErrMalformed indicates input that is not a valid export.
	ErrMalformed = errors.New("malformed export")

	// ErrUnsupportedSchema indicates an export written by a newer layout.
	ErrUnsupportedSchema = errors.New("unsupported export schema")
)

// Meta is optional provenance written alongside the nodes.
type Meta struct {
	Editor    string
	Namespace string
}

// Options configures Encode.
type Options struct {
	Meta Meta
	// Indent pretty-prints the output.
	Indent bool
}

// Encode writes s as JSON.
func Encode(s *version.State, opts Options) ([]byte, error) {
	doc := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			doc, err = sjson.SetBytes(doc, path, v)
		}
	}

	set("format", Format)
	set("schema", Schema)
	set("id", uint64(s.ID()))
	set("root", string(node.RootKey))
	if opts.Meta.Editor != "" {
		set("meta.editor", opts.Meta.Editor)
	}
	if opts.Meta.Namespace != "" {
		set("meta.namespace", opts.Meta.Namespace)
	}
	if sel := s.Selection(); sel != nil {
		set("selection.anchor", encodePoint(sel.Anchor))
		set("selection.focus", encodePoint(sel.Focus))
		if sel.Format != 0 {
			set("selection.format", uint16(sel.Format))
		}
		if sel.Style != "" {
			set("selection.style", sel.Style)
		}
	}
	if err == nil {
		doc, err = sjson.SetRawBytes(doc, "nodes", []byte(`[]`))
	}

	for _, k := range s.Keys() {
		if err != nil {
			break
		}
		n, _ := s.Get(k)
		var raw []byte
		if raw, err = encodeNode(n); err == nil {
			doc, err = sjson.SetRawBytes(doc, "nodes.-1", raw)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("encoding version %d: %w", s.ID(), err)
	}
	if opts.Indent {
		doc = pretty.Pretty(doc)
	}
	return doc, nil
}

func encodePoint(p selection.Point) map[string]any {
	return map[string]any{
		"key":    string(p.Key),
		"offset": p.Offset,
		"kind":   p.Kind.String(),
	}
}

func encodeNode(n node.Node) ([]byte, error) {
	raw := []byte(`{}`)
	var err error
	set := func(path string, v any) {
		if err == nil {
			raw, err = sjson.SetBytes(raw, path, v)
		}
	}
	setKey := func(path string, k node.Key) {
		if k != node.NoKey {
			set(path, string(k))
		}
	}

	set("key", string(n.Key()))
	set("type", string(n.Type()))
	setKey("parent", n.Parent())
	setKey("prev", n.Prev())
	setKey("next", n.Next())

	switch v := n.(type) {
	case node.ElementNode:
		e := v.ElementBase()
		setKey("first", e.First())
		setKey("last", e.Last())
		set("size", e.Size())
		if e.Format() != node.AlignNone {
			set("format", e.Format().String())
		}
		if e.Indent() != 0 {
			set("indent", e.Indent())
		}
		if e.Direction() != node.DirectionNone {
			set("direction", string(e.Direction()))
		}
	case node.TextNode:
		t := v.TextBase()
		set("text", t.Content())
		if t.Format() != 0 {
			set("format", uint16(t.Format()))
		}
		if t.Style() != "" {
			set("style", t.Style())
		}
		if t.Mode() != node.ModeNormal {
			set("mode", t.Mode().String())
		}
		if t.Unmergeable() {
			set("unmergeable", true)
		}
	case node.DecoratorNode:
		d := v.DecoratorBase()
		set("payload", d.Payload())
		set("inline", d.IsInline())
	}
	return raw, err
}

// Decode rebuilds a version from an export. Node types are resolved through
// reg, so custom variants must be registered before decoding. The result is
// checked for child-list integrity; a damaged export fails with an error
// matching engine.ErrStructuralInvariant.
func Decode(data []byte, reg *node.Registry) (*version.State, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	doc := gjson.ParseBytes(data)
	if f := doc.Get("format").String(); f != Format {
		return nil, fmt.Errorf("%w: format %q", ErrMalformed, f)
	}
	if v := doc.Get("schema").Int(); v < 1 || v > Schema {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchema, v)
	}
	if root := doc.Get("root").String(); root != string(node.RootKey) {
		return nil, fmt.Errorf("%w: root key %q", ErrMalformed, root)
	}
	list := doc.Get("nodes")
	if !list.IsArray() {
		return nil, fmt.Errorf("%w: nodes is not an array", ErrMalformed)
	}

	var (
		nodes []node.Node
		seen  = make(map[node.Key]struct{})
		err   error
	)
	list.ForEach(func(_, v gjson.Result) bool {
		var n node.Node
		if n, err = decodeNode(v, reg); err != nil {
			return false
		}
		if _, dup := seen[n.Key()]; dup {
			err = fmt.Errorf("%w: key %s appears twice", ErrMalformed, n.Key())
			return false
		}
		seen[n.Key()] = struct{}{}
		nodes = append(nodes, n)
		return true
	})
	if err != nil {
		return nil, err
	}
	if _, ok := seen[node.RootKey]; !ok {
		return nil, fmt.Errorf("%w: no root node", ErrMalformed)
	}

	sel, err := decodeSelection(doc.Get("selection"))
	if err != nil {
		return nil, err
	}
	s := version.FromNodes(version.ID(doc.Get("id").Uint()), nodes, sel)
	if s.Root() == nil {
		return nil, fmt.Errorf("%w: root has type %s", ErrMalformed, mustType(s, node.RootKey))
	}
	if err := engine.NewReader(s).VerifyTree(); err != nil {
		return nil, err
	}
	if sel != nil {
		for _, p := range []selection.Point{sel.Anchor, sel.Focus} {
			if !s.Has(p.Key) {
				return nil, fmt.Errorf("%w: selection names missing key %s", ErrMalformed, p.Key)
			}
		}
	}
	// Only an accepted export claims its keys.
	for _, n := range nodes {
		node.Reserve(n.Key())
	}
	return s, nil
}

func mustType(s *version.State, k node.Key) node.Type {
	n, _ := s.Get(k)
	return n.Type()
}

func decodeNode(v gjson.Result, reg *node.Registry) (node.Node, error) {
	key := node.Key(v.Get("key").String())
	if key == node.NoKey {
		return nil, fmt.Errorf("%w: node without key", ErrMalformed)
	}
	tag := node.Type(v.Get("type").String())
	variant, ok := reg.Lookup(tag)
	if !ok {
		return nil, fmt.Errorf("%w: node %s: %w", ErrMalformed, key, fmt.Errorf("%w: %q", node.ErrUnknownType, tag))
	}

	n := variant.New()
	h := node.Links(n)
	h.SetKey(key)
	h.SetParent(node.Key(v.Get("parent").String()))
	h.SetPrev(node.Key(v.Get("prev").String()))
	h.SetNext(node.Key(v.Get("next").String()))

	switch r := n.(type) {
	case node.ElementNode:
		e := r.ElementBase()
		e.SetFirst(node.Key(v.Get("first").String()))
		e.SetLast(node.Key(v.Get("last").String()))
		e.SetSize(int(v.Get("size").Int()))
		e.SetFormat(node.ParseAlignment(v.Get("format").String()))
		e.SetIndent(int(v.Get("indent").Int()))
		e.SetDirection(node.Direction(v.Get("direction").String()))
	case node.TextNode:
		t := r.TextBase()
		t.SetContent(v.Get("text").String())
		t.SetFormat(node.TextFormat(v.Get("format").Uint()))
		t.SetStyle(v.Get("style").String())
		t.SetMode(node.ParseTextMode(v.Get("mode").String()))
		t.SetUnmergeable(v.Get("unmergeable").Bool())
	case node.DecoratorNode:
		d := r.DecoratorBase()
		d.SetPayload(v.Get("payload").String())
		d.SetInline(v.Get("inline").Bool())
	}
	return n, nil
}

func decodeSelection(v gjson.Result) (*selection.Range, error) {
	if !v.Exists() {
		return nil, nil
	}
	anchor, err := decodePoint(v.Get("anchor"))
	if err != nil {
		return nil, err
	}
	focus, err := decodePoint(v.Get("focus"))
	if err != nil {
		return nil, err
	}
	sel := selection.NewRange(anchor, focus)
	sel.Format = node.TextFormat(v.Get("format").Uint())
	sel.Style = v.Get("style").String()
	return sel, nil
}

func decodePoint(v gjson.Result) (selection.Point, error) {
	k := v.Get("key").String()
	if k == "" {
		return selection.Point{}, fmt.Errorf("%w: selection point without key", ErrMalformed)
	}
	return selection.Point{
		Key:    node.Key(k),
		Offset: int(v.Get("offset").Int()),
		Kind:   selection.ParseKind(v.Get("kind").String()),
	}, nil
}
