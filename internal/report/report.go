// Package report presents the outcome of a driver run: one console line per
// request outcome, a summary line, a JSON document for scripts and an
// optional handlebars-rendered markdown report.
package report

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aymerick/raymond"
	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
	"github.com/mattn/go-runewidth"

	"github.com/fulmenhq/pbxmend/internal/driver"
	"github.com/fulmenhq/pbxmend/pkg/buildinfo"
	"github.com/fulmenhq/pbxmend/pkg/safeio"
)

//go:embed templates/report.md.hbs
var defaultTemplate string

// Count is the number of records carrying one tag.
type Count struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Line is one record flattened for templates and JSON.
type Line struct {
	List    string `json:"list,omitempty"`
	Tag     string `json:"tag"`
	Group   string `json:"group"`
	Name    string `json:"name"`
	OldPath string `json:"old_path,omitempty"`
	NewPath string `json:"new_path,omitempty"`
}

// Data is the view of a run handed to report templates.
type Data struct {
	Manifest  string  `json:"manifest"`
	Generated string  `json:"generated"`
	Version   string  `json:"version"`
	State     string  `json:"state"`
	Saved     bool    `json:"saved"`
	DryRun    bool    `json:"dry_run"`
	Changed   int     `json:"changed"`
	Counts    []Count `json:"counts"`
	Records   []Line  `json:"records"`
}

// NewData builds the template view of res.
func NewData(manifest string, res *driver.Result, dryRun bool) Data {
	d := Data{
		Manifest:  manifest,
		Generated: time.Now().UTC().Format(time.RFC3339),
		Version:   buildinfo.Version(),
		DryRun:    dryRun,
		Records:   []Line{},
	}
	if res == nil {
		return d
	}
	d.State = res.State.String()
	d.Saved = res.Saved
	for _, tag := range driver.Tags {
		n := res.Count(tag)
		d.Counts = append(d.Counts, Count{Tag: string(tag), Count: n})
		if changes(tag) {
			d.Changed += n
		}
	}
	for _, r := range res.Records {
		d.Records = append(d.Records, Line{
			List:    r.List,
			Tag:     string(r.Tag),
			Group:   r.Group,
			Name:    r.Name,
			OldPath: r.OldPath,
			NewPath: r.NewPath,
		})
	}
	return d
}

func changes(tag driver.Tag) bool {
	switch tag {
	case driver.TagAddedToSources, driver.TagAddedToProject, driver.TagFixed:
		return true
	}
	return false
}

// Console writes human-readable outcome lines.
type Console struct {
	w     io.Writer
	color bool
}

// NewConsole returns a console writer. Color is also disabled by NO_COLOR.
func NewConsole(w io.Writer, color bool) *Console {
	return &Console{w: w, color: color && os.Getenv("NO_COLOR") == ""}
}

func (c *Console) paint(code, s string) string {
	if !c.color {
		return s
	}
	return "\x1b[" + code + "m" + s + "\x1b[0m"
}

func tagColor(tag driver.Tag) string {
	switch tag {
	case driver.TagAddedToSources, driver.TagAddedToProject:
		return "32"
	case driver.TagFixed:
		return "36"
	case driver.TagNotFound:
		return "31"
	default:
		return "33"
	}
}

// Records writes one aligned line per record. A glob fix request has one
// record per matched file reference, so it prints one line per match.
func (c *Console) Records(recs []driver.Record) error {
	tagWidth, groupWidth, nameWidth := 0, 0, 0
	for _, r := range recs {
		tagWidth = max(tagWidth, runewidth.StringWidth(string(r.Tag)))
		groupWidth = max(groupWidth, runewidth.StringWidth(r.Group))
		nameWidth = max(nameWidth, runewidth.StringWidth(r.Name))
	}
	for _, r := range recs {
		tag := c.paint(tagColor(r.Tag), runewidth.FillRight(string(r.Tag), tagWidth))
		var line string
		if r.Tag == driver.TagFixed {
			line = fmt.Sprintf("%s  %s  %s  %s -> %s", tag,
				runewidth.FillRight(r.Group, groupWidth),
				runewidth.FillRight(r.Name, nameWidth),
				r.OldPath, r.NewPath)
		} else {
			line = fmt.Sprintf("%s  %s  %s", tag, runewidth.FillRight(r.Group, groupWidth), r.Name)
		}
		if _, err := fmt.Fprintln(c.w, strings.TrimRight(line, " ")); err != nil {
			return err
		}
	}
	return nil
}

// Summary writes the per-tag counts and whether the manifest was written.
func (c *Console) Summary(d Data) error {
	parts := make([]string, 0, len(d.Counts))
	for _, n := range d.Counts {
		parts = append(parts, n.Tag+"="+strconv.Itoa(n.Count))
	}
	status := "not saved"
	switch {
	case d.Saved:
		status = "saved"
	case d.DryRun:
		status = "dry run, not saved"
	}
	_, err := fmt.Fprintf(c.w, "%s %s (%s)\n", c.paint("1", "Summary:"), strings.Join(parts, " "), status)
	return err
}

// WriteJSON writes d as indented JSON.
func WriteJSON(w io.Writer, d Data) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(d)
}

// Render renders d with tpl, or with the built-in markdown template when tpl
// is empty.
func Render(tpl string, d Data) (string, error) {
	if tpl == "" {
		tpl = defaultTemplate
	}
	t, err := raymond.Parse(tpl)
	if err != nil {
		return "", fmt.Errorf("parse report template: %w", err)
	}
	t.RegisterHelper("gt", func(a, b interface{}) bool {
		aVal, _ := strconv.Atoi(fmt.Sprintf("%v", a))
		bVal, _ := strconv.Atoi(fmt.Sprintf("%v", b))
		return aVal > bVal
	})
	out, err := t.Exec(d)
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	return out, nil
}

// WriteFile renders d and writes it atomically to output on fs. templateFile,
// when set, is read from fs and replaces the built-in template.
func WriteFile(fs billy.Filesystem, output, templateFile string, d Data) error {
	var tpl string
	if templateFile != "" {
		b, err := util.ReadFile(fs, templateFile)
		if err != nil {
			return fmt.Errorf("read report template: %w", err)
		}
		tpl = string(b)
	}
	out, err := Render(tpl, d)
	if err != nil {
		return err
	}
	return safeio.WriteFileAtomic(fs, output, []byte(out))
}
