// Package driver runs request lists against a manifest: one load, every
// request applied in order in memory, one save.
package driver

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fulmenhq/pbxmend/pkg/exitcode"
	"github.com/fulmenhq/pbxmend/pkg/logger"
	"github.com/fulmenhq/pbxmend/pkg/manifest"
	"github.com/fulmenhq/pbxmend/pkg/pbxproj"
	"github.com/fulmenhq/pbxmend/pkg/requests"
)

// Store loads and persists manifests. *pbxproj.Store implements it.
type Store interface {
	Load(location string) (*manifest.Manifest, error)
	Save(m *manifest.Manifest) error
}

// Renderer is implemented by stores that can encode a manifest without
// writing it. Dry runs use it to surface serialization errors.
type Renderer interface {
	Render(m *manifest.Manifest) ([]byte, error)
}

// State is the driver's position in a run.
type State int

const (
	StateStart State = iota
	StateLoaded
	StateResolved
	StateMutating
	StateSaved
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateLoaded:
		return "loaded"
	case StateResolved:
		return "resolved"
	case StateMutating:
		return "mutating"
	case StateSaved:
		return "saved"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Kind classifies a fatal run error.
type Kind int

const (
	// KindLookup: the top-level group, target or phase does not exist.
	KindLookup Kind = iota
	KindParse
	KindSerialization
	KindIO
)

func (k Kind) String() string {
	switch k {
	case KindLookup:
		return "lookup"
	case KindParse:
		return "parse"
	case KindSerialization:
		return "serialization"
	default:
		return "io"
	}
}

// Error is a fatal run error. Stage is the state the run was in when it
// aborted; nothing is persisted once an Error is returned.
type Error struct {
	Kind  Kind
	Stage State
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error while %s: %v", e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ExitCode implements exitcode.Coder.
func (e *Error) ExitCode() int { return exitcode.GeneralError }

// Tag is the console label of a per-request outcome.
type Tag string

const (
	TagAddedToSources Tag = "Added-to-sources"
	TagAddedToProject Tag = "Added-to-project"
	TagAlreadyExists  Tag = "Already-exists"
	TagFixed          Tag = "Fixed"
	TagNotFound       Tag = "Not-found"
)

// Tags lists every tag in summary order.
var Tags = []Tag{TagAddedToSources, TagAddedToProject, TagAlreadyExists, TagFixed, TagNotFound}

// Record is the outcome of one request. Glob fix requests produce one record
// per matching file reference.
type Record struct {
	List    string
	Request requests.Request
	// Group is the slash-joined display path of the group the request ran in.
	Group string
	// Name is the display name the outcome refers to.
	Name    string
	Tag     Tag
	OldPath string
	NewPath string
}

// Options configure a run.
type Options struct {
	// Location is passed to Store.Load.
	Location string
	// Group and Target are the defaults for lists that do not override them.
	Group  string
	Target string
	// Phase is the build phase compilable sources are registered in.
	Phase string
	// DryRun applies every request in memory and skips the save.
	DryRun bool
}

// Result is what a run did.
type Result struct {
	State   State
	Records []Record
	// Saved is false for dry runs and aborted runs.
	Saved bool
}

// Count returns how many records carry tag.
func (r *Result) Count(tag Tag) int {
	n := 0
	for _, rec := range r.Records {
		if rec.Tag == tag {
			n++
		}
	}
	return n
}

// Driver owns the manifest for the duration of one run.
type Driver struct {
	store Store
	opts  Options
	state State
	m     *manifest.Manifest
}

// New returns a driver in StateStart.
func New(store Store, opts Options) *Driver {
	if opts.Phase == "" {
		opts.Phase = "Sources"
	}
	return &Driver{store: store, opts: opts}
}

// State returns the current state.
func (d *Driver) State() State { return d.state }

// Manifest returns the loaded manifest, nil before a successful load.
func (d *Driver) Manifest() *manifest.Manifest { return d.m }

// binding is a list resolved against the loaded manifest.
type binding struct {
	list  *requests.List
	top   *manifest.Group
	phase *manifest.BuildPhase
}

// Run executes lists in order. Every list is resolved before the first
// request is applied, so a lookup failure leaves the manifest untouched.
func (d *Driver) Run(lists []*requests.List) (*Result, error) {
	res := &Result{}
	if d.state != StateStart {
		return res, fmt.Errorf("driver already ran (state %s)", d.state)
	}

	m, err := d.store.Load(d.opts.Location)
	if err != nil {
		return d.abort(res, storeKind(err), err)
	}
	d.m = m
	d.state = StateLoaded
	logger.Debug("Manifest loaded", logger.String("location", d.opts.Location))

	bindings := make([]binding, 0, len(lists))
	pl := newPlan()
	for _, l := range lists {
		b, err := d.resolve(l, pl)
		if err != nil {
			var rerr *requests.Error
			if errors.As(err, &rerr) {
				d.state = StateAborted
				res.State = d.state
				return res, err
			}
			return d.abort(res, KindLookup, err)
		}
		bindings = append(bindings, b)
	}
	d.state = StateResolved
	logger.Debug("Request lists resolved", logger.Int("lists", len(bindings)))

	d.state = StateMutating
	for _, b := range bindings {
		for _, r := range b.list.Requests {
			recs, err := d.apply(b, r)
			if err != nil {
				return d.abort(res, KindLookup, err)
			}
			res.Records = append(res.Records, recs...)
		}
	}

	if d.opts.DryRun {
		if r, ok := d.store.(Renderer); ok {
			if _, err := r.Render(m); err != nil {
				return d.abort(res, storeKind(err), err)
			}
		}
		logger.Info("Dry run, manifest not saved", logger.Int("requests", len(res.Records)))
		res.State = d.state
		return res, nil
	}
	if err := d.store.Save(m); err != nil {
		return d.abort(res, storeKind(err), err)
	}
	d.state = StateSaved
	res.State = d.state
	res.Saved = true
	logger.Debug("Manifest saved", logger.String("location", d.opts.Location))
	return res, nil
}

func (d *Driver) abort(res *Result, kind Kind, err error) (*Result, error) {
	stage := d.state
	d.state = StateAborted
	res.State = d.state
	res.Saved = false
	logger.Debug("Run aborted", logger.String("stage", stage.String()), logger.String("kind", kind.String()), logger.Err(err))
	return res, &Error{Kind: kind, Stage: stage, Err: err}
}

// storeKind tells typed store errors apart from filesystem failures.
func storeKind(err error) Kind {
	var perr *pbxproj.ParseError
	var serr *pbxproj.SerializationError
	switch {
	case errors.As(err, &perr):
		return KindParse
	case errors.As(err, &serr):
		return KindSerialization
	default:
		return KindIO
	}
}

func (d *Driver) resolve(l *requests.List, pl *plan) (binding, error) {
	groupName := l.GroupOr(d.opts.Group)
	targetName := l.TargetOr(d.opts.Target)

	top, ok := d.m.TopLevelGroup(groupName)
	if !ok {
		return binding{}, fmt.Errorf("could not find group %q", groupName)
	}
	target, ok := d.m.Target(targetName)
	if !ok {
		return binding{}, fmt.Errorf("could not find target %q", targetName)
	}

	b := binding{list: l, top: top}
	for _, r := range l.Requests {
		switch r.Op {
		case requests.OpAdd:
			if b.phase == nil {
				phase, ok := target.Phase(d.opts.Phase)
				if !ok {
					return binding{}, fmt.Errorf("target %q has no %s phase", targetName, d.opts.Phase)
				}
				b.phase = phase
			}
		case requests.OpFix:
			if manifest.IsPattern(r.Name) && !doublestar.ValidatePattern(r.Name) && !pl.holds(top, r.Group, r.Name) {
				return binding{}, &requests.Error{Source: l.Source, Err: fmt.Errorf("invalid pattern %q", r.Name)}
			}
		default:
			return binding{}, &requests.Error{Source: l.Source, Err: fmt.Errorf("unknown op %q", r.Op)}
		}
		if err := pl.check(top, r.Group); err != nil {
			return binding{}, err
		}
		if r.Op == requests.OpAdd {
			pl.add(top, r.Group, r.Name)
		}
	}
	return b, nil
}

// plan records the names add requests will create, so group paths are
// checked against the tree as earlier requests will leave it.
type plan struct {
	files  map[planKey]bool
	groups map[planKey]bool
}

type planKey struct {
	top  *manifest.Group
	path string
}

func newPlan() *plan {
	return &plan{files: make(map[planKey]bool), groups: make(map[planKey]bool)}
}

// check fails when a segment of sub names a child that is, or will be, a
// file. Missing segments are fine; add requests create them.
func (p *plan) check(top *manifest.Group, sub string) error {
	g := top
	prefix := ""
	for _, seg := range splitGroup(sub) {
		key := path.Join(prefix, seg)
		if g != nil {
			if n, ok := manifest.FindChild(g, seg); ok {
				next, isGroup := n.(*manifest.Group)
				if !isGroup {
					return fmt.Errorf("%q in group %q is not a group", seg, g.DisplayName())
				}
				g, prefix = next, key
				continue
			}
			g = nil
		}
		if p.files[planKey{top, key}] {
			return fmt.Errorf("%q in group %q is added as a file by an earlier request", seg, path.Join(top.DisplayName(), prefix))
		}
		prefix = key
	}
	return nil
}

// add records the groups and file an add request of name under sub creates.
// A name already held in the loaded tree or by a planned group creates nothing.
func (p *plan) add(top *manifest.Group, sub, name string) {
	g := top
	prefix := ""
	for _, seg := range splitGroup(sub) {
		prefix = path.Join(prefix, seg)
		if g != nil {
			if n, ok := manifest.FindChild(g, seg); ok {
				g, _ = n.(*manifest.Group)
				continue
			}
			g = nil
		}
		p.groups[planKey{top, prefix}] = true
	}
	if g != nil {
		if _, ok := manifest.FindChild(g, name); ok {
			return
		}
	}
	key := planKey{top, path.Join(prefix, name)}
	if !p.groups[key] {
		p.files[key] = true
	}
}

// holds reports whether name under sub exists in the loaded tree or will be
// added by an earlier request.
func (p *plan) holds(top *manifest.Group, sub, name string) bool {
	if g, ok := lookupGroupPath(top, sub); ok {
		if _, ok := manifest.FindChild(g, name); ok {
			return true
		}
	}
	key := planKey{top, path.Join(append(splitGroup(sub), name)...)}
	return p.files[key] || p.groups[key]
}

func lookupGroupPath(top *manifest.Group, sub string) (*manifest.Group, bool) {
	g := top
	for _, seg := range splitGroup(sub) {
		n, ok := manifest.FindChild(g, seg)
		if !ok {
			return nil, false
		}
		next, isGroup := n.(*manifest.Group)
		if !isGroup {
			return nil, false
		}
		g = next
	}
	return g, true
}

func splitGroup(sub string) []string {
	var out []string
	for _, seg := range strings.Split(sub, "/") {
		if seg != "" && seg != "." {
			out = append(out, seg)
		}
	}
	return out
}

func groupLabel(b binding, sub string) string {
	segs := append([]string{b.top.DisplayName()}, splitGroup(sub)...)
	return strings.Join(segs, "/")
}

func (d *Driver) apply(b binding, r requests.Request) ([]Record, error) {
	base := Record{List: b.list.Source, Request: r, Group: groupLabel(b, r.Group), Name: r.Name}
	switch r.Op {
	case requests.OpAdd:
		rec, err := d.add(b, r, base)
		if err != nil {
			return nil, err
		}
		return []Record{rec}, nil
	default:
		return d.fix(b, r, base)
	}
}

func (d *Driver) add(b binding, r requests.Request, rec Record) (Record, error) {
	g, err := manifest.EnsureGroupPath(b.top, r.Group)
	if err != nil {
		return rec, err
	}
	res := manifest.AddFile(g, r.Name, r.StoredPath())
	switch res.Outcome {
	case manifest.Created:
		if manifest.Register(res.Ref, b.phase) == manifest.Registered {
			rec.Tag = TagAddedToSources
		} else {
			rec.Tag = TagAddedToProject
		}
	default:
		rec.Tag = TagAlreadyExists
		// an existing reference may still be missing from the phase
		if res.Ref != nil && manifest.Register(res.Ref, b.phase) == manifest.Registered {
			rec.Tag = TagAddedToSources
		}
	}
	logger.Debug("Applied add request",
		logger.String("group", rec.Group),
		logger.String("name", r.Name),
		logger.String("path", r.StoredPath()),
		logger.String("outcome", string(rec.Tag)))
	return rec, nil
}

func (d *Driver) fix(b binding, r requests.Request, base Record) ([]Record, error) {
	g, ok := lookupGroupPath(b.top, r.Group)
	if !ok {
		base.Tag = TagNotFound
		return []Record{base}, nil
	}
	results, err := manifest.FixPaths(g, r.Name)
	if err != nil {
		return nil, err
	}
	recs := make([]Record, 0, len(results))
	for _, fr := range results {
		rec := base
		if fr.Outcome == manifest.NotFound {
			rec.Tag = TagNotFound
		} else {
			rec.Tag = TagFixed
			rec.Name = fr.Ref.DisplayName()
			rec.OldPath = fr.OldPath
			rec.NewPath = fr.NewPath
		}
		logger.Debug("Applied fix request",
			logger.String("group", rec.Group),
			logger.String("name", rec.Name),
			logger.String("outcome", string(rec.Tag)))
		recs = append(recs, rec)
	}
	return recs, nil
}
