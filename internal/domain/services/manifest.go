package services

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/halcyonlabs/apkforge/internal/domain/entities"
)

const (
	// AndroidNamespace is the URI behind the android: attribute prefix
	AndroidNamespace = "http://schemas.android.com/apk/res/android"

	toolsNamespace = "http://schemas.android.com/tools"
)

// ParseManifest decodes text XML into an element tree, preserving
// attribute and child ordering.
func ParseManifest(data []byte) (*entities.Element, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Strict = true

	var root *entities.Element
	var stack []*entities.Element

	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("manifest parse failed: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &entities.Element{Name: t.Name.Local}
			for _, a := range t.Attr {
				el.Attrs = append(el.Attrs, entities.Attr{
					Key:   attrKey(a.Name),
					Value: a.Value,
				})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("manifest parse failed: multiple root elements")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 {
				return nil, fmt.Errorf("manifest parse failed: unbalanced end element")
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			text := string(t)
			if strings.TrimSpace(text) == "" {
				continue
			}
			parent := stack[len(stack)-1]
			parent.Children = append(parent.Children, entities.Text{Value: text})
		}
	}

	if root == nil {
		return nil, fmt.Errorf("manifest parse failed: no root element")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("manifest parse failed: unterminated element")
	}
	if root.Name != "manifest" {
		return nil, fmt.Errorf("manifest parse failed: root element is %q, want manifest", root.Name)
	}
	return root, nil
}

// attrKey reconstructs the prefixed attribute key the decoder expanded.
// Unknown namespaces collapse to the local name; manifests in the wild
// only carry android:, tools: and xmlns declarations.
func attrKey(name xml.Name) string {
	switch name.Space {
	case "":
		return name.Local
	case "xmlns":
		return "xmlns:" + name.Local
	case AndroidNamespace, "android":
		return "android:" + name.Local
	case toolsNamespace, "tools":
		return "tools:" + name.Local
	default:
		return name.Local
	}
}

// SanitizeManifest runs the one-shot repair pass applied before a parse
// retry: control characters are stripped and bare ampersands escaped.
func SanitizeManifest(data []byte) []byte {
	var out bytes.Buffer
	out.Grow(len(data))
	for i := 0; i < len(data); i++ {
		c := data[i]
		if c < 0x20 && c != '\t' && c != '\n' && c != '\r' {
			continue
		}
		if c == '&' && !validEntityAt(data, i) {
			out.WriteString("&amp;")
			continue
		}
		out.WriteByte(c)
	}
	return out.Bytes()
}

// validEntityAt reports whether data[i:] begins a well-formed entity
// reference such as &amp; or &#38;.
func validEntityAt(data []byte, i int) bool {
	const maxEntity = 12
	end := i + maxEntity
	if end > len(data) {
		end = len(data)
	}
	for j := i + 1; j < end; j++ {
		c := data[j]
		if c == ';' {
			return j > i+1
		}
		isName := c == '#' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !isName {
			return false
		}
	}
	return false
}

// SerializeManifest renders an element tree as indented text XML with
// the standard declaration. The output of the pipeline is always text
// XML, even when the input manifest was binary.
func SerializeManifest(root *entities.Element) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	writeElement(&buf, root, 0)
	return buf.Bytes()
}

func writeElement(buf *bytes.Buffer, el *entities.Element, depth int) {
	indent := strings.Repeat("    ", depth)
	buf.WriteString(indent)
	buf.WriteByte('<')
	buf.WriteString(el.Name)
	for _, a := range el.Attrs {
		buf.WriteByte(' ')
		buf.WriteString(a.Key)
		buf.WriteString(`="`)
		buf.WriteString(escapeAttr(a.Value))
		buf.WriteByte('"')
	}
	if len(el.Children) == 0 {
		buf.WriteString(" />\n")
		return
	}
	buf.WriteString(">\n")
	for _, n := range el.Children {
		switch c := n.(type) {
		case *entities.Element:
			writeElement(buf, c, depth+1)
		case entities.Text:
			buf.WriteString(strings.Repeat("    ", depth+1))
			buf.WriteString(escapeText(c.Value))
			buf.WriteByte('\n')
		}
	}
	buf.WriteString(indent)
	buf.WriteString("</")
	buf.WriteString(el.Name)
	buf.WriteString(">\n")
}

func escapeAttr(s string) string {
	var buf bytes.Buffer
	//nolint:errcheck // bytes.Buffer writes cannot fail
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

func escapeText(s string) string {
	var buf bytes.Buffer
	//nolint:errcheck // bytes.Buffer writes cannot fail
	xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// EnsureNamespace guarantees the android namespace declaration on the
// manifest root so serialized attributes resolve.
func EnsureNamespace(root *entities.Element) {
	if _, ok := root.Attr("xmlns:android"); !ok {
		root.Attrs = append([]entities.Attr{{Key: "xmlns:android", Value: AndroidNamespace}}, root.Attrs...)
	}
}
