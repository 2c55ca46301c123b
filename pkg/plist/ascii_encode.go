package plist

import (
	"encoding/hex"
	"io"
	"strings"
)

// Encoder writes OpenStep property lists in Xcode's layout.
type Encoder struct {
	w   io.Writer
	err error

	// Annotate returns the comment to print after a string value stored under key, or "".
	Annotate func(key, value string) string
	// Inline reports whether a dictionary is written on a single line.
	Inline func(d *Dict) bool
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Err returns the first write error.
func (e *Encoder) Err() error { return e.err }

// WriteString writes s verbatim.
func (e *Encoder) WriteString(s string) {
	if e.err != nil {
		return
	}
	_, e.err = io.WriteString(e.w, s)
}

// Indent writes depth tabs.
func (e *Encoder) Indent(depth int) {
	e.WriteString(strings.Repeat("\t", depth))
}

// WriteEntry writes `key = value;` at depth, followed by a newline unless inline is set.
func (e *Encoder) WriteEntry(key string, v Value, depth int, inline bool) {
	e.WriteString(Quote(key))
	e.writeRest(key, v, depth, inline)
}

// WriteObject writes an entry of the objects table. Unlike WriteEntry, the
// key is an object ID and gets annotated.
func (e *Encoder) WriteObject(id string, v Value, depth int) {
	e.WriteString(e.Term("", id))
	e.writeRest(id, v, depth, false)
}

func (e *Encoder) writeRest(key string, v Value, depth int, inline bool) {
	e.WriteString(" = ")
	e.WriteValue(key, v, depth, inline)
	e.WriteString(";")
	if inline {
		e.WriteString(" ")
	} else {
		e.WriteString("\n")
	}
}

// Term renders a string with its annotation comment.
func (e *Encoder) Term(key, s string) string {
	out := Quote(s)
	if e.Annotate != nil {
		if c := e.Annotate(key, s); c != "" {
			out += " /* " + c + " */"
		}
	}
	return out
}

// WriteValue writes v. depth is the indentation of the line holding v.
func (e *Encoder) WriteValue(key string, v Value, depth int, inline bool) {
	switch t := v.(type) {
	case String:
		e.WriteString(e.Term(key, string(t)))
	case Raw:
		if t.Text == "" {
			e.WriteString(Quote(t.Tag))
		} else {
			e.WriteString(Quote(t.Text))
		}
	case Data:
		e.WriteString("<" + hex.EncodeToString(t) + ">")
	case Array:
		e.writeArray(key, t, depth, inline)
	case *Dict:
		e.WriteDict(t, depth, inline)
	}
}

func (e *Encoder) writeArray(key string, arr Array, depth int, inline bool) {
	e.WriteString("(")
	for _, item := range arr {
		if inline {
			e.WriteValue(key, item, depth, true)
			e.WriteString(", ")
			continue
		}
		e.WriteString("\n")
		e.Indent(depth + 1)
		e.WriteValue(key, item, depth+1, false)
		e.WriteString(",")
	}
	if !inline {
		e.WriteString("\n")
		e.Indent(depth)
	}
	e.WriteString(")")
}

// WriteDict writes a dictionary; nested dictionaries decide their own layout via Inline.
func (e *Encoder) WriteDict(d *Dict, depth int, inline bool) {
	if !inline && e.Inline != nil && e.Inline(d) {
		inline = true
	}
	e.WriteString("{")
	if !inline {
		e.WriteString("\n")
	}
	for _, k := range d.keys {
		if !inline {
			e.Indent(depth + 1)
		}
		e.WriteEntry(k, d.m[k], depth+1, inline)
	}
	if !inline {
		e.Indent(depth)
	}
	e.WriteString("}")
}
