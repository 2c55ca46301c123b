package plist

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"
)

// IsXML reports whether data looks like an XML property list.
func IsXML(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n\ufeff")
	return bytes.HasPrefix(trimmed, []byte("<?xml")) ||
		bytes.HasPrefix(trimmed, []byte("<!DOCTYPE plist")) ||
		bytes.HasPrefix(trimmed, []byte("<plist"))
}

// ParseXML decodes an XML property list.
func ParseXML(data []byte) (Value, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("plist: XML is not well-formed: %w", err)
	}
	root := doc.SelectElement("plist")
	if root == nil {
		return nil, &SyntaxError{Msg: "missing <plist> element"}
	}
	elems := root.ChildElements()
	if len(elems) != 1 {
		return nil, &SyntaxError{Msg: fmt.Sprintf("<plist> must hold one value, found %d", len(elems))}
	}
	return xmlValue(elems[0])
}

func xmlValue(el *etree.Element) (Value, error) {
	switch el.Tag {
	case "string":
		return String(el.Text()), nil
	case "data":
		b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(el.Text()), ""))
		if err != nil {
			return nil, &SyntaxError{Msg: "invalid base64 in <data>"}
		}
		return Data(b), nil
	case "integer", "real", "date":
		return Raw{Tag: el.Tag, Text: el.Text()}, nil
	case "true", "false":
		return Raw{Tag: el.Tag}, nil
	case "array":
		arr := Array{}
		for _, c := range el.ChildElements() {
			v, err := xmlValue(c)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case "dict":
		d := NewDict()
		children := el.ChildElements()
		for i := 0; i < len(children); i += 2 {
			k := children[i]
			if k.Tag != "key" {
				return nil, &SyntaxError{Msg: fmt.Sprintf("expected <key> in <dict>, found <%s>", k.Tag)}
			}
			if i+1 >= len(children) {
				return nil, &SyntaxError{Msg: fmt.Sprintf("key %q has no value", k.Text())}
			}
			v, err := xmlValue(children[i+1])
			if err != nil {
				return nil, err
			}
			d.Set(k.Text(), v)
		}
		return d, nil
	default:
		return nil, &SyntaxError{Msg: fmt.Sprintf("unsupported element <%s>", el.Tag)}
	}
}

// EncodeXML renders v as an XML property list with tab indentation.
func EncodeXML(v Value) ([]byte, error) {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.CreateDirective(`DOCTYPE plist PUBLIC "-//Apple//DTD PLIST 1.0//EN" "http://www.apple.com/DTDs/PropertyList-1.0.dtd"`)
	root := doc.CreateElement("plist")
	root.CreateAttr("version", "1.0")
	appendXML(root, v)
	doc.IndentTabs()

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("plist: failed to write XML: %w", err)
	}
	return buf.Bytes(), nil
}

func appendXML(parent *etree.Element, v Value) {
	switch t := v.(type) {
	case String:
		parent.CreateElement("string").SetText(string(t))
	case Data:
		parent.CreateElement("data").SetText(base64.StdEncoding.EncodeToString(t))
	case Raw:
		el := parent.CreateElement(t.Tag)
		if t.Text != "" {
			el.SetText(t.Text)
		}
	case Array:
		el := parent.CreateElement("array")
		for _, item := range t {
			appendXML(el, item)
		}
	case *Dict:
		el := parent.CreateElement("dict")
		for _, k := range t.keys {
			el.CreateElement("key").SetText(k)
			appendXML(el, t.m[k])
		}
	}
}
