// Package requests loads the ordered request lists pbxmend applies to a
// manifest. Lists are configuration data in YAML, TOML or JSON and are
// checked against the embedded request-list schema before use.
package requests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/fulmenhq/pbxmend/pkg/exitcode"
	"github.com/fulmenhq/pbxmend/pkg/schema"
)

// Op is the operation a request asks for.
type Op string

const (
	OpAdd Op = "add"
	OpFix Op = "fix"
)

// Request is one entry of a list.
type Request struct {
	Op   Op     `yaml:"op" toml:"op" json:"op"`
	Name string `yaml:"name" toml:"name" json:"name"`
	// Path is the stored path for add requests. Empty means the bare name.
	Path string `yaml:"path,omitempty" toml:"path,omitempty" json:"path,omitempty"`
	// Group is a slash-separated subgroup path below the list's top-level group.
	Group string `yaml:"group,omitempty" toml:"group,omitempty" json:"group,omitempty"`
}

// StoredPath is the path an add request writes.
func (r Request) StoredPath() string {
	if r.Path != "" {
		return r.Path
	}
	return r.Name
}

func (r Request) String() string {
	if r.Group == "" {
		return fmt.Sprintf("%s %s", r.Op, r.Name)
	}
	return fmt.Sprintf("%s %s/%s", r.Op, r.Group, r.Name)
}

// List is an ordered request list. Group and Target, when set, override the
// configured top-level group and target for this list only.
type List struct {
	Source   string    `yaml:"-" toml:"-" json:"-"`
	Group    string    `yaml:"group,omitempty" toml:"group,omitempty" json:"group,omitempty"`
	Target   string    `yaml:"target,omitempty" toml:"target,omitempty" json:"target,omitempty"`
	Requests []Request `yaml:"requests" toml:"requests" json:"requests"`
}

// GroupOr returns the list's group override, or def.
func (l *List) GroupOr(def string) string {
	if l.Group != "" {
		return l.Group
	}
	return def
}

// TargetOr returns the list's target override, or def.
func (l *List) TargetOr(def string) string {
	if l.Target != "" {
		return l.Target
	}
	return def
}

// Error reports an unusable request list. It maps to exitcode.ConfigError.
type Error struct {
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("request list %s: %v", e.Source, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode implements exitcode.Coder.
func (e *Error) ExitCode() int { return exitcode.ConfigError }

// Format is the encoding of a request list file.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatOf picks the format from the file extension; unknown extensions are read as YAML.
func FormatOf(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Load reads and validates the request list at name on fs.
func Load(fs billy.Filesystem, name string) (*List, error) {
	data, err := util.ReadFile(fs, filepath.ToSlash(name))
	if err != nil {
		return nil, &Error{Source: name, Err: err}
	}
	return Parse(name, FormatOf(name), data)
}

// LoadAll loads lists in order, stopping at the first error.
func LoadAll(fs billy.Filesystem, names []string) ([]*List, error) {
	lists := make([]*List, 0, len(names))
	for _, n := range names {
		l, err := Load(fs, n)
		if err != nil {
			return nil, err
		}
		lists = append(lists, l)
	}
	return lists, nil
}

// Parse decodes and validates a request list. source names it in errors.
func Parse(source string, format Format, data []byte) (*List, error) {
	var generic any
	if err := decode(format, data, &generic); err != nil {
		return nil, &Error{Source: source, Err: fmt.Errorf("decode %s: %w", format, err)}
	}
	res, err := schema.Validate(generic, schema.RequestList)
	if err != nil {
		return nil, &Error{Source: source, Err: err}
	}
	if !res.Valid {
		return nil, &Error{Source: source, Err: fmt.Errorf("invalid: %s", res.Summary())}
	}

	var list List
	if err := decode(format, data, &list); err != nil {
		return nil, &Error{Source: source, Err: fmt.Errorf("decode %s: %w", format, err)}
	}
	list.Source = source
	for i, r := range list.Requests {
		list.Requests[i].Group = cleanGroup(r.Group)
	}
	return &list, nil
}

func decode(format Format, data []byte, v any) error {
	switch format {
	case FormatTOML:
		return toml.Unmarshal(data, v)
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		return dec.Decode(v)
	default:
		return yaml.Unmarshal(data, v)
	}
}

// cleanGroup normalizes a subgroup path: "/a//b/./c/" becomes "a/b/c".
func cleanGroup(g string) string {
	if g == "" {
		return ""
	}
	c := strings.Trim(path.Clean(g), "/")
	if c == "." {
		return ""
	}
	return c
}

// AddList builds an ad-hoc list adding names to group. A non-empty dir is
// joined in front of each name to form the stored path.
func AddList(names []string, group, dir string) *List {
	l := &List{Source: "command line"}
	for _, n := range names {
		r := Request{Op: OpAdd, Name: n, Group: cleanGroup(group)}
		if dir != "" {
			r.Path = path.Join(dir, n)
		}
		l.Requests = append(l.Requests, r)
	}
	return l
}

// FixList builds an ad-hoc list of fix requests.
func FixList(names []string, group string) *List {
	l := &List{Source: "command line"}
	for _, n := range names {
		l.Requests = append(l.Requests, Request{Op: OpFix, Name: n, Group: cleanGroup(group)})
	}
	return l
}

// Validate checks an in-memory list, such as one built by AddList, against
// the request-list schema.
func (l *List) Validate() error {
	raw, err := json.Marshal(l)
	if err != nil {
		return &Error{Source: l.Source, Err: err}
	}
	_, err = Parse(l.Source, FormatJSON, raw)
	return err
}
