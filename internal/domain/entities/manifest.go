package entities

// BinaryManifestMagic is the two-byte prefix of Android's binary XML
// encoding (AXML chunk type RES_XML_TYPE, little endian).
var BinaryManifestMagic = [2]byte{0x03, 0x00}

// IsBinaryManifest checks the magic prefix at offset 0
func IsBinaryManifest(data []byte) bool {
	return len(data) >= 2 && data[0] == BinaryManifestMagic[0] && data[1] == BinaryManifestMagic[1]
}

// ManifestKind tags the variant held by a ManifestDocument
type ManifestKind int

const (
	// ManifestBinary holds undecoded binary XML bytes
	ManifestBinary ManifestKind = iota

	// ManifestText holds a parsed element tree
	ManifestText
)

// ManifestDocument is the tagged manifest variant produced by the
// resolver. Binary documents keep the original bytes and a format tag;
// text documents own an element tree.
type ManifestDocument struct {
	Kind      ManifestKind
	Raw       []byte
	FormatTag string
	Root      *Element
}

// Attr is a single ordered XML attribute
type Attr struct {
	Key   string
	Value string
}

// Node is either an *Element or a Text child
type Node interface {
	node()
}

// Text is character data inside an element
type Text struct {
	Value string
}

func (Text) node() {}

// Element is an XML element with ordered attributes (keys unique) and
// ordered children.
type Element struct {
	Name     string
	Attrs    []Attr
	Children []Node
}

func (*Element) node() {}

// Attr returns the value of the named attribute and whether it exists
func (e *Element) Attr(key string) (string, bool) {
	for _, a := range e.Attrs {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr overwrites the named attribute or appends it, preserving order
func (e *Element) SetAttr(key, value string) {
	for i, a := range e.Attrs {
		if a.Key == key {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, Attr{Key: key, Value: value})
}

// Child returns the first child element with the given name, or nil
func (e *Element) Child(name string) *Element {
	for _, n := range e.Children {
		if el, ok := n.(*Element); ok && el.Name == name {
			return el
		}
	}
	return nil
}

// ChildrenNamed returns every child element with the given name
func (e *Element) ChildrenNamed(name string) []*Element {
	var out []*Element
	for _, n := range e.Children {
		if el, ok := n.(*Element); ok && el.Name == name {
			out = append(out, el)
		}
	}
	return out
}

// Clone performs a deep copy of the element tree
func (e *Element) Clone() *Element {
	out := &Element{Name: e.Name}
	out.Attrs = append([]Attr(nil), e.Attrs...)
	for _, n := range e.Children {
		switch c := n.(type) {
		case *Element:
			out.Children = append(out.Children, c.Clone())
		case Text:
			out.Children = append(out.Children, c)
		}
	}
	return out
}
