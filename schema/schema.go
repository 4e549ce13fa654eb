// Package schema provides the thin schema-accessor surface (component C9)
// that the filter compiler, value marshaller and with-defaults filter use
// to resolve element names to YANG types. It wraps goyang's yang.Entry
// tree rather than parsing YANG itself; a real deployment would plug in
// an accessor backed by an actual YANG compiler behind the same Schema
// interface.
package schema

import (
	"strings"

	"github.com/openconfig/goyang/pkg/yang"
)

// Module is one YANG module's schema tree, identified by the namespace
// and prefix a NETCONF client uses to address its top-level data nodes.
type Module interface {
	Name() string
	Prefix() string
	Namespace() string
	Root() *yang.Entry
}

// Schema resolves unqualified element names (spec §4.2 step 1) and XML
// namespace URIs to the modules that define them.
type Schema interface {
	// ModulesForName returns the schema modules that define a top-level
	// data node with the given unqualified name.
	ModulesForName(name string) []Module
	// ModuleByNamespace resolves an XML namespace URI to its module.
	ModuleByNamespace(ns string) (Module, bool)
	// Modules returns every module known to this schema.
	Modules() []Module
}

type module struct {
	name      string
	prefix    string
	namespace string
	root      *yang.Entry
}

func (m *module) Name() string      { return m.name }
func (m *module) Prefix() string    { return m.prefix }
func (m *module) Namespace() string { return m.namespace }
func (m *module) Root() *yang.Entry { return m.root }

// Static is a fixed, in-memory Schema built from Go-constructed yang.Entry
// trees. It exists to drive the marshaller/filter/with-defaults logic
// against bundled fixtures and is not a YANG compiler.
type Static struct {
	modules    []Module
	byName     map[string][]Module
	byNS       map[string]Module
}

// NewStatic builds a Static schema from the given modules.
func NewStatic(modules ...Module) *Static {
	s := &Static{
		modules: modules,
		byName:  map[string][]Module{},
		byNS:    map[string]Module{},
	}
	for _, m := range modules {
		s.byNS[m.Namespace()] = m
		for name := range m.Root().Dir {
			s.byName[name] = append(s.byName[name], m)
		}
	}
	return s
}

func (s *Static) ModulesForName(name string) []Module {
	return s.byName[name]
}

func (s *Static) ModuleByNamespace(ns string) (Module, bool) {
	m, ok := s.byNS[ns]
	return m, ok
}

func (s *Static) Modules() []Module {
	return s.modules
}

// NewModule constructs a Module whose root entry is the supplied
// top-level container/list entries indexed by name.
func NewModule(name, prefix, namespace string, top ...*yang.Entry) Module {
	root := &yang.Entry{
		Name: name,
		Dir:  map[string]*yang.Entry{},
	}
	for _, e := range top {
		e.Parent = root
		root.Dir[e.Name] = e
	}
	return &module{name: name, prefix: prefix, namespace: namespace, root: root}
}

// IsList reports whether entry represents a YANG list node.
func IsList(entry *yang.Entry) bool {
	return entry != nil && entry.ListAttr != nil
}

// KeyLeafNames returns the ordered key leaf names of a list entry, or nil
// if entry is not a keyed list.
func KeyLeafNames(entry *yang.Entry) []string {
	if entry == nil || entry.Key == "" {
		return nil
	}
	return strings.Fields(entry.Key)
}

// IsPresenceContainer reports whether entry is a YANG presence container,
// i.e. one whose existence itself carries information distinct from its
// children's existence. Static fixtures built in Go have no parsed YANG
// "presence" substatement to inspect, so presence is recorded explicitly
// via MarkPresence and tracked through entry.Annotation.
func IsPresenceContainer(entry *yang.Entry) bool {
	if entry == nil || IsList(entry) || entry.Annotation == nil {
		return false
	}
	b, _ := entry.Annotation["presence"].(bool)
	return b
}

// MarkPresence flags entry as a YANG presence container, for use when
// building Static fixtures in Go.
func MarkPresence(entry *yang.Entry) *yang.Entry {
	if entry.Annotation == nil {
		entry.Annotation = map[string]interface{}{}
	}
	entry.Annotation["presence"] = true
	return entry
}

// DefaultValue returns the YANG "default" statement value for a leaf
// entry, if any.
func DefaultValue(entry *yang.Entry) (string, bool) {
	if entry == nil || entry.Default == "" {
		return "", false
	}
	return entry.Default, true
}

// ResolvePath walks path (a sequence of element names; any "[k=v]" key
// predicates on a segment are ignored) from a module's root down through
// Dir, returning the schema entry for the final segment, or nil if the
// path does not exist in the schema.
func ResolvePath(sch Schema, path []string) *yang.Entry {
	if len(path) == 0 {
		return nil
	}
	names := make([]string, len(path))
	for i, seg := range path {
		if j := strings.IndexByte(seg, '['); j >= 0 {
			seg = seg[:j]
		}
		names[i] = seg
	}
	mods := sch.ModulesForName(names[0])
	if len(mods) == 0 {
		return nil
	}
	entry := mods[0].Root().Dir[names[0]]
	for _, seg := range names[1:] {
		if entry == nil {
			return nil
		}
		entry = entry.Dir[seg]
	}
	return entry
}

// Walk calls fn for entry and every descendant, depth first.
func Walk(entry *yang.Entry, fn func(*yang.Entry)) {
	if entry == nil {
		return
	}
	fn(entry)
	for _, name := range sortedKeys(entry.Dir) {
		Walk(entry.Dir[name], fn)
	}
}

func sortedKeys(m map[string]*yang.Entry) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Go map iteration order is randomized, so sort the names
	// alphabetically to give Walk a deterministic traversal order.
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
