package boards

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidType is returned when a board type is not registered for a family.
var ErrInvalidType = errors.New("invalid type")

// Family is a group of boards sharing one schema and one router.
type Family struct {
	Name       string   `yaml:"name" json:"name"`
	Types      []string `yaml:"types" json:"types"`
	Singleton  bool     `yaml:"singleton" json:"singleton"`
	WriteRole  string   `yaml:"write_role" json:"write_role"`
	Comments   bool     `yaml:"comments" json:"comments"`
	RequireURL bool     `yaml:"require_url" json:"require_url"`
}

// Has reports whether boardType belongs to the family.
func (f *Family) Has(boardType string) bool {
	for _, t := range f.Types {
		if t == boardType {
			return true
		}
	}
	return false
}

// Ref names a board type inside a family, as supplied by a route.
type Ref struct {
	Family string
	Type   string
}

func (r Ref) String() string { return r.Family + "/" + r.Type }

// Registry is the fixed set of families known to the server.
type Registry struct {
	families []*Family
	byName   map[string]*Family
	byType   map[string]*Family
}

// DefaultFamilies mirrors the sections of the site.
func DefaultFamilies() []Family {
	return []Family{
		{Name: "introduction", Types: []string{"hello", "intro", "organization"}, Singleton: true, WriteRole: "superadmin"},
		{Name: "mainbusiness", Types: []string{"forum", "assist", "stemtraining", "steducation", "essay"}, WriteRole: "admin", Comments: true},
		{Name: "notice", Types: []string{"news", "notice"}, WriteRole: "admin", Comments: true},
		{Name: "media", Types: []string{"media"}, WriteRole: "admin", RequireURL: true},
	}
}

// Default returns the registry built from DefaultFamilies.
func Default() *Registry {
	r, err := NewRegistry(DefaultFamilies())
	if err != nil {
		panic(err)
	}
	return r
}

// NewRegistry validates families and indexes them. Type keys select storage
// collections, so a key may only belong to one family.
func NewRegistry(families []Family) (*Registry, error) {
	r := &Registry{
		byName: make(map[string]*Family, len(families)),
		byType: make(map[string]*Family),
	}
	for i := range families {
		f := families[i]
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			return nil, fmt.Errorf("family %d: missing name", i)
		}
		if _, dup := r.byName[f.Name]; dup {
			return nil, fmt.Errorf("family %q declared twice", f.Name)
		}
		if len(f.Types) == 0 {
			return nil, fmt.Errorf("family %q: no types", f.Name)
		}
		switch f.WriteRole {
		case "":
			f.WriteRole = "admin"
		case "admin", "superadmin":
		default:
			return nil, fmt.Errorf("family %q: unknown write_role %q", f.Name, f.WriteRole)
		}
		fam := &f
		for _, t := range f.Types {
			if t == "" {
				return nil, fmt.Errorf("family %q: empty type key", f.Name)
			}
			if other, dup := r.byType[t]; dup {
				return nil, fmt.Errorf("type %q registered by both %q and %q", t, other.Name, f.Name)
			}
			r.byType[t] = fam
		}
		r.byName[f.Name] = fam
		r.families = append(r.families, fam)
	}
	return r, nil
}

// Load reads families from a YAML file. An empty path or a missing file
// yields the default registry.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var doc struct {
		Families []Family `yaml:"families"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return NewRegistry(doc.Families)
}

// Families returns the families in declaration order.
func (r *Registry) Families() []*Family {
	return r.families
}

// Family looks a family up by name.
func (r *Registry) Family(name string) (*Family, bool) {
	f, ok := r.byName[name]
	return f, ok
}

// Lookup returns the family owning boardType.
func (r *Registry) Lookup(boardType string) (*Family, bool) {
	f, ok := r.byType[boardType]
	return f, ok
}

// Validate checks that ref.Type is a member of ref.Family.
func (r *Registry) Validate(ref Ref) (*Family, error) {
	f, ok := r.byName[ref.Family]
	if !ok || !f.Has(ref.Type) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, ref.Type)
	}
	return f, nil
}

// Types lists every registered type key, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
