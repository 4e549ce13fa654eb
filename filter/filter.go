// Package filter implements the Subtree Filter Compiler (component C2):
// it turns the XML subtree inside a <get>/<get-config> request into the
// sequence of datastore paths needed to satisfy it, per RFC 6241 §6 and
// spec §4.2. XPath filters (select="...") are rejected with
// operation-not-supported, matching the design note in spec §9 that only
// subtree filtering is implemented end to end.
package filter

import (
	"encoding/xml"
	"strings"

	"github.com/finlaygreen/netconfd/mgmterror"
	"github.com/finlaygreen/netconfd/schema"
)

// Selector is one compiled selection: a datastore path, optionally
// constrained by sibling content-match leaves captured alongside it
// (RFC 6241 §6.2.5), and whether it is a "stop" node with no element
// children of its own (§6.2.4), in which case the whole subtree at Path
// should be returned.
type Selector struct {
	// Path is the sequence of element names from the datastore root to
	// the selected node (container, list entry, or leaf).
	Path []string
	// ContentMatch holds "leaf=value" constraints gathered from sibling
	// leaves of a list-entry selector.
	ContentMatch map[string]string
	// Stop is true when the filter named this node but none of its
	// children, meaning the whole subtree under Path is wanted.
	Stop bool
}

// Filter is a compiled subtree filter: the union of every selector found
// in the filter document.
type Filter struct {
	Selectors []Selector
}

// Empty reports whether the filter selects everything (no filter, or an
// empty <filter/> element), per RFC 6241 §6.4.1.
func (f *Filter) Empty() bool {
	return f == nil || len(f.Selectors) == 0
}

// node is a fully materialized filter subtree, used as an intermediate
// form so the compiler can reason about a node's children without
// fighting encoding/xml's single-pass token stream.
type node struct {
	name     string
	space    string
	elems    []*node
	charData string
}

// Compile parses the raw inner XML of a <filter type="subtree"> element
// (or the unfiltered content of <get>/<get-config> when no type attribute
// is present) into a Filter, resolving top-level element names against
// sch. raw must be the XML content of the filter's children, i.e.
// everything between <filter ...> and </filter>.
func Compile(sch schema.Schema, filterType string, raw string) (*Filter, error) {
	if strings.TrimSpace(raw) == "" {
		return &Filter{}, nil
	}
	if filterType == "xpath" {
		return nil, mgmterror.NewOperationNotSupported("xpath filtering")
	}

	roots, err := parseNodes(raw)
	if err != nil {
		return nil, mgmterror.NewMalformedMessage(err.Error())
	}

	f := &Filter{}
	for _, n := range roots {
		if _, ok := resolveTopLevel(sch, n); !ok {
			return nil, mgmterror.NewUnknownElement(n.name)
		}
		f.Selectors = append(f.Selectors, compileNode(n, nil)...)
	}
	return f, nil
}

// parseNodes decodes raw into a forest of top-level nodes.
func parseNodes(raw string) ([]*node, error) {
	dec := xml.NewDecoder(strings.NewReader(raw))
	var roots []*node
	var stack []*node
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &node{name: t.Name.Local, space: t.Name.Space}
			if len(stack) > 0 {
				top := stack[len(stack)-1]
				top.elems = append(top.elems, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				roots = append(roots, n)
			}
		case xml.CharData:
			if len(stack) == 0 {
				continue
			}
			if s := strings.TrimSpace(string(t)); s != "" {
				stack[len(stack)-1].charData = s
			}
		}
	}
	return roots, nil
}

func resolveTopLevel(sch schema.Schema, n *node) (schema.Module, bool) {
	if n.space != "" {
		return sch.ModuleByNamespace(n.space)
	}
	mods := sch.ModulesForName(n.name)
	if len(mods) == 0 {
		return nil, false
	}
	return mods[0], true
}

// compileNode produces the Selector(s) rooted at n, which is reached via
// parentPath (not including n itself).
func compileNode(n *node, parentPath []string) []Selector {
	path := append(append([]string{}, parentPath...), n.name)

	if len(n.elems) == 0 {
		if n.charData != "" {
			// A content-match leaf folds into the parent's selector
			// instead of standing alone.
			return []Selector{{Path: parentPath, ContentMatch: map[string]string{n.name: n.charData}}}
		}
		return []Selector{{Path: path, Stop: true}}
	}

	var childSelectors []Selector
	for _, c := range n.elems {
		childSelectors = append(childSelectors, compileNode(c, path)...)
	}
	return mergeContentMatches(path, childSelectors)
}

// mergeContentMatches folds every content-match selector whose Path
// equals path into a single selector describing the constraints on that
// list entry, leaving true descendant selectors (those that name a node
// below path) untouched.
func mergeContentMatches(path []string, in []Selector) []Selector {
	merged := map[string]string{}
	haveMatch := false
	var out []Selector
	for _, s := range in {
		if samePath(s.Path, path) && s.ContentMatch != nil {
			for k, v := range s.ContentMatch {
				merged[k] = v
			}
			haveMatch = true
			continue
		}
		out = append(out, s)
	}
	if haveMatch {
		out = append(out, Selector{Path: path, ContentMatch: merged})
	}
	if len(out) == 0 {
		// Every child was a content-match leaf belonging to this entry;
		// merged already captured them above, but guard against a filter
		// whose only children are non-matching siblings by falling back
		// to a stop selector on path.
		out = append(out, Selector{Path: path, Stop: true})
	}
	return out
}

func samePath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
