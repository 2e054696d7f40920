// Package source locates raw extracts, resolves their schema drift through
// per-source descriptors and conforms them to canonical typed tables.
package source

import (
	_ "embed"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/leapstack-labs/mktwh/pkg/core"
)

//go:embed sources.yaml
var defaultRegistry []byte

// OpKind names a drift operation.
type OpKind string

// Drift operations.
const (
	OpRename   OpKind = "rename"
	OpDrop     OpKind = "drop"
	OpFillNull OpKind = "fill_null"
)

// Op is one drift operation applied to a normalized header.
type Op struct {
	Op     OpKind `yaml:"op"`
	From   string `yaml:"from,omitempty"`
	To     string `yaml:"to,omitempty"`
	Column string `yaml:"column,omitempty"`
}

func (o Op) String() string {
	switch o.Op {
	case OpRename:
		return fmt.Sprintf("rename %s -> %s", o.From, o.To)
	default:
		return fmt.Sprintf("%s %s", o.Op, o.Column)
	}
}

func (o Op) validate() error {
	switch o.Op {
	case OpRename:
		if o.From == "" || o.To == "" {
			return fmt.Errorf("rename requires from and to")
		}
	case OpDrop, OpFillNull:
		if o.Column == "" {
			return fmt.Errorf("%s requires column", o.Op)
		}
	default:
		return fmt.Errorf("unknown op %q", o.Op)
	}
	return nil
}

// Exclusion drops rows whose date column falls inside Window.
type Exclusion struct {
	Column string
	Window core.Window
}

func (e Exclusion) String() string {
	return fmt.Sprintf("exclude %s in %s", e.Column, e.Window)
}

// Descriptor describes one raw extract.
type Descriptor struct {
	ID          string
	Stream      core.Stream
	File        string
	Description string
	Ops         []Op
	Exclude     []Exclusion
	// Registered is false for files matched by a stream glob but absent from
	// the registry.
	Registered bool
}

// Registry maps streams to file globs and file names to descriptors.
type Registry struct {
	globs   map[core.Stream]string
	sources []Descriptor
	byFile  map[string]int
}

type registryDoc struct {
	Streams []struct {
		Stream string `yaml:"stream"`
		Glob   string `yaml:"glob"`
	} `yaml:"streams"`
	Sources []struct {
		ID          string `yaml:"id"`
		Stream      string `yaml:"stream"`
		File        string `yaml:"file"`
		Description string `yaml:"description"`
		Ops         []Op   `yaml:"ops"`
		Exclude     []struct {
			Column string `yaml:"column"`
			From   string `yaml:"from"`
			To     string `yaml:"to"`
		} `yaml:"exclude"`
	} `yaml:"sources"`
}

// Load parses a registry document.
func Load(r io.Reader) (*Registry, error) {
	var doc registryDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("parse source registry: %w", err)
	}

	reg := &Registry{globs: make(map[core.Stream]string), byFile: make(map[string]int)}
	for _, s := range doc.Streams {
		st := core.Stream(s.Stream)
		if !st.Valid() {
			return nil, fmt.Errorf("source registry: unknown stream %q", s.Stream)
		}
		if _, err := filepath.Match(s.Glob, ""); err != nil {
			return nil, fmt.Errorf("source registry: stream %s: bad glob %q: %w", st, s.Glob, err)
		}
		reg.globs[st] = s.Glob
	}

	ids := make(map[string]bool)
	for _, s := range doc.Sources {
		st := core.Stream(s.Stream)
		if _, ok := reg.globs[st]; !ok {
			return nil, fmt.Errorf("source registry: source %s: stream %q has no glob", s.ID, s.Stream)
		}
		if s.ID == "" || s.File == "" {
			return nil, fmt.Errorf("source registry: source entries need id and file")
		}
		if ids[s.ID] {
			return nil, fmt.Errorf("source registry: duplicate source id %s", s.ID)
		}
		if _, dup := reg.byFile[s.File]; dup {
			return nil, fmt.Errorf("source registry: file %s registered twice", s.File)
		}
		ids[s.ID] = true

		d := Descriptor{
			ID:          s.ID,
			Stream:      st,
			File:        s.File,
			Description: s.Description,
			Ops:         s.Ops,
			Registered:  true,
		}
		for _, op := range s.Ops {
			if err := op.validate(); err != nil {
				return nil, fmt.Errorf("source registry: source %s: %w", s.ID, err)
			}
		}
		for _, ex := range s.Exclude {
			w, err := core.ParseWindow(ex.From, ex.To)
			if err != nil {
				return nil, fmt.Errorf("source registry: source %s exclusion: %w", s.ID, err)
			}
			d.Exclude = append(d.Exclude, Exclusion{Column: ex.Column, Window: w})
		}
		reg.byFile[s.File] = len(reg.sources)
		reg.sources = append(reg.sources, d)
	}
	return reg, nil
}

// Default returns the registry embedded in the binary.
func Default() *Registry {
	reg, err := Load(strings.NewReader(string(defaultRegistry)))
	if err != nil {
		panic(err)
	}
	return reg
}

// Glob returns the file glob of a stream.
func (r *Registry) Glob(s core.Stream) string {
	return r.globs[s]
}

// Sources returns the registered descriptors of a stream in registry order.
func (r *Registry) Sources(s core.Stream) []Descriptor {
	var out []Descriptor
	for _, d := range r.sources {
		if d.Stream == s {
			out = append(out, d)
		}
	}
	return out
}

// Describe returns the descriptor for a file name. Unknown files get an
// unregistered descriptor with no ops.
func (r *Registry) Describe(s core.Stream, file string) Descriptor {
	if i, ok := r.byFile[file]; ok && r.sources[i].Stream == s {
		return r.sources[i]
	}
	return Descriptor{
		ID:     strings.ToLower(strings.TrimSuffix(file, filepath.Ext(file))),
		Stream: s,
		File:   file,
	}
}

// File is a raw extract found on disk.
type File struct {
	Path       string
	Descriptor Descriptor
}

// Discover lists the stream's files in dir, sorted by name.
func (r *Registry) Discover(dir string, s core.Stream) ([]File, error) {
	glob, ok := r.globs[s]
	if !ok {
		return nil, fmt.Errorf("stream %s has no registered glob", s)
	}
	matches, err := filepath.Glob(filepath.Join(dir, glob))
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", glob, err)
	}
	sort.Strings(matches)
	files := make([]File, 0, len(matches))
	for _, m := range matches {
		files = append(files, File{Path: m, Descriptor: r.Describe(s, filepath.Base(m))})
	}
	return files, nil
}

// Missing returns registered files of the stream that are absent from found.
func (r *Registry) Missing(s core.Stream, found []File) []string {
	var missing []string
	for _, d := range r.Sources(s) {
		if !slices.ContainsFunc(found, func(f File) bool { return f.Descriptor.ID == d.ID }) {
			missing = append(missing, d.File)
		}
	}
	return missing
}
