package datanode

import (
	"fmt"
	"sort"
	"strings"
)

// PathValue is one leaf value located at an absolute datastore path. Path
// segments name containers and lists by their YANG name; a list-entry
// segment additionally carries its key values, encoded as
// "name[key1=v1][key2=v2]" (a convention of this package: unquoted values
// and no module prefix, unlike RFC 7951 instance-identifiers).
type PathValue struct {
	Path  []string
	Value Value
}

// Node is one element of an assembled reply tree: either a leaf (Value
// non-nil) or a container/list entry with children.
type Node struct {
	Name     string
	KeyPreds []KeyPred
	Children []*Node
	Value    *Value
	// Default records whether this leaf's value equals its schema
	// default, set by the With-Defaults Filter so callers downstream can
	// decide whether/how to render it.
	Default bool
}

// KeyPred is one "leaf=value" key predicate on a list-entry path segment.
type KeyPred struct {
	Leaf  string
	Value string
}

// ParseSegment splits a path segment of the form "name[k=v][k2=v2]" into
// its bare element name and key predicates.
func ParseSegment(seg string) (string, []KeyPred) {
	idx := strings.IndexByte(seg, '[')
	if idx < 0 {
		return seg, nil
	}
	name := seg[:idx]
	var preds []KeyPred
	for _, part := range strings.Split(seg[idx:], "][") {
		part = strings.Trim(part, "[]")
		if part == "" {
			continue
		}
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		preds = append(preds, KeyPred{Leaf: kv[0], Value: kv[1]})
	}
	return name, preds
}

// FormatSegment is the inverse of ParseSegment.
func FormatSegment(name string, preds []KeyPred) string {
	var b strings.Builder
	b.WriteString(name)
	for _, p := range preds {
		fmt.Fprintf(&b, "[%s=%s]", p.Leaf, p.Value)
	}
	return b.String()
}

// Assemble builds a forest of Nodes from a flat set of leaf path/value
// pairs, grouping on shared path prefixes (spec §4.3's Tree Assembler).
// Values are attached only at the exact leaf path; intermediate segments
// become childless-value container/list-entry nodes.
func Assemble(pvs []PathValue) []*Node {
	root := &Node{}
	for _, pv := range pvs {
		cur := root
		for _, seg := range pv.Path {
			cur = childFor(cur, seg)
		}
		v := pv.Value
		cur.Value = &v
	}
	return root.Children
}

func childFor(parent *Node, seg string) *Node {
	name, preds := ParseSegment(seg)
	for _, c := range parent.Children {
		if c.Name == name && keyPredsEqual(c.KeyPreds, preds) {
			return c
		}
	}
	c := &Node{Name: name, KeyPreds: preds}
	parent.Children = append(parent.Children, c)
	return c
}

func keyPredsEqual(a, b []KeyPred) bool {
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

// SortChildren orders a node's children deterministically, recursively:
// by element name, then, for list entries of the same name, by their
// key-predicate string, so reply output is stable across runs.
func SortChildren(n *Node) {
	sort.SliceStable(n.Children, func(i, j int) bool {
		a, b := n.Children[i], n.Children[j]
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return keyString(a.KeyPreds) < keyString(b.KeyPreds)
	})
	for _, c := range n.Children {
		SortChildren(c)
	}
}

func keyString(preds []KeyPred) string {
	parts := make([]string, len(preds))
	for i, p := range preds {
		parts[i] = p.Leaf + "=" + p.Value
	}
	return strings.Join(parts, ",")
}

// Prune removes from nodes every node whose path (relative to the forest
// root) is not selected by keep. keep returns true for paths that must be
// retained in full (subtree and all descendants), matching the "stop
// node" semantics of a compiled filter.Selector.
func Prune(nodes []*Node, keep func(path []string) (selected bool, descend bool)) []*Node {
	return pruneLevel(nodes, nil, keep)
}

func pruneLevel(nodes []*Node, parentPath []string, keep func([]string) (bool, bool)) []*Node {
	var out []*Node
	for _, n := range nodes {
		path := append(append([]string{}, parentPath...), FormatSegment(n.Name, n.KeyPreds))
		selected, descend := keep(path)
		if !selected && !descend {
			continue
		}
		kept := *n
		if descend {
			kept.Children = pruneLevel(n.Children, path, keep)
		}
		out = append(out, &kept)
	}
	return out
}
