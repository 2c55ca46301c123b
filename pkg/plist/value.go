// Package plist reads and writes property lists in the OpenStep (ASCII) and
// XML encodings used by Xcode project files. Dictionaries keep their key
// order so that a decode/encode cycle does not reshuffle the document.
package plist

// Value is one of String, Data, Raw, Array or *Dict.
type Value interface {
	isValue()
}

// String is a plist string.
type String string

// Data is a plist data blob.
type Data []byte

// Raw is a scalar from an XML plist that is not a string (integer, real,
// date, true, false). Tag is the XML element name and Text its content.
type Raw struct {
	Tag  string
	Text string
}

// Array is an ordered plist array.
type Array []Value

func (String) isValue() {}
func (Data) isValue()   {}
func (Raw) isValue()    {}
func (Array) isValue()  {}
func (*Dict) isValue()  {}

// Dict is an insertion-ordered plist dictionary.
type Dict struct {
	keys []string
	m    map[string]Value
}

// NewDict returns an empty dictionary.
func NewDict() *Dict {
	return &Dict{m: make(map[string]Value)}
}

// Len returns the number of entries.
func (d *Dict) Len() int { return len(d.keys) }

// Keys returns the keys in order.
func (d *Dict) Keys() []string {
	out := make([]string, len(d.keys))
	copy(out, d.keys)
	return out
}

// Get returns the value for key.
func (d *Dict) Get(key string) (Value, bool) {
	v, ok := d.m[key]
	return v, ok
}

// Set stores value under key. New keys are appended; existing keys keep their position.
func (d *Dict) Set(key string, value Value) {
	if _, ok := d.m[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.m[key] = value
}

// String returns the string stored under key, or "" when it is absent or not a string.
func (d *Dict) String(key string) string {
	if s, ok := d.m[key].(String); ok {
		return string(s)
	}
	return ""
}

// Dict returns the dictionary stored under key.
func (d *Dict) Dict(key string) (*Dict, bool) {
	v, ok := d.m[key].(*Dict)
	return v, ok
}

// Strings returns the string elements of the array stored under key.
// Non-string elements are skipped.
func (d *Dict) Strings(key string) []string {
	arr, _ := d.m[key].(Array)
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if s, ok := v.(String); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// StringArray converts strings to an Array value.
func StringArray(items []string) Array {
	out := make(Array, len(items))
	for i, s := range items {
		out[i] = String(s)
	}
	return out
}
