// Package editapply implements the Edit Applier (component C5): it walks
// the XML content of an <edit-config> request and issues the ordered
// set_item/delete_item calls a back end needs to realize it, honoring the
// default-operation, test-option and error-option RPC parameters. The
// option vocabulary mirrors the danos-configd edit-config session
// handling this package is grounded on.
package editapply

import (
	"encoding/xml"
	"strings"

	"github.com/finlaygreen/netconfd/datanode"
	"github.com/finlaygreen/netconfd/datastore"
	"github.com/finlaygreen/netconfd/mgmterror"
	"github.com/finlaygreen/netconfd/schema"
)

// Operation is one of RFC 6241's per-node edit operations.
type Operation string

const (
	OpMerge   Operation = "merge"
	OpReplace Operation = "replace"
	OpCreate  Operation = "create"
	OpDelete  Operation = "delete"
	OpRemove  Operation = "remove"
	OpNone    Operation = "none"
)

// SetDefault parses a default-operation value, rejecting anything other than
// merge/replace/none (RFC 6241 §7.2).
func (o *Operation) SetDefault(s string) error {
	switch Operation(s) {
	case OpMerge, OpReplace, OpNone:
		*o = Operation(s)
		return nil
	default:
		return mgmterror.NewInvalidValue("invalid default-operation: " + s)
	}
}

func (o *Operation) setPerNode(s string) error {
	switch Operation(s) {
	case OpMerge, OpReplace, OpCreate, OpDelete, OpRemove:
		*o = Operation(s)
		return nil
	default:
		return mgmterror.NewUnknownElement("operation=" + s)
	}
}

// TestOption is the RFC 6241 test-option RPC parameter.
type TestOption string

const (
	TestThenSet TestOption = "test-then-set"
	Set         TestOption = "set"
	TestOnly    TestOption = "test-only"
)

func (o *TestOption) Set(s string) error {
	switch TestOption(s) {
	case TestThenSet, Set, TestOnly:
		*o = TestOption(s)
		return nil
	default:
		return mgmterror.NewInvalidValue("invalid test-option: " + s)
	}
}

// ErrorOption is the RFC 6241 error-option RPC parameter.
type ErrorOption string

const (
	StopOnError     ErrorOption = "stop-on-error"
	ContinueOnError ErrorOption = "continue-on-error"
	RollbackOnError ErrorOption = "rollback-on-error"
)

func (o *ErrorOption) Set(s string) error {
	switch ErrorOption(s) {
	case StopOnError, ContinueOnError, RollbackOnError:
		*o = ErrorOption(s)
		return nil
	default:
		return mgmterror.NewInvalidValue("invalid error-option: " + s)
	}
}

const netconfNS = "urn:ietf:params:xml:ns:netconf:base:1.0"

// EditNode is one element of the parsed <config> content, still carrying
// its per-node nc:operation attribute (if any) before that attribute is
// resolved against the ambient default-operation.
type EditNode struct {
	Name      string
	KeyPreds  []datanode.KeyPred
	Operation Operation // "" if not specified on this element
	Value     *datanode.Value
	Children  []*EditNode
}

// Parse decodes the inner XML of an <edit-config> request's <config>
// element into a forest of EditNodes, resolving each top-level name
// against sch.
func Parse(sch schema.Schema, raw string) ([]*EditNode, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	dec := xml.NewDecoder(strings.NewReader(raw))
	var roots []*EditNode
	var stack []*EditNode
	var charData strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &EditNode{Name: t.Name.Local}
			for _, a := range t.Attr {
				if a.Name.Space == netconfNS && a.Name.Local == "operation" {
					var op Operation
					if err := op.setPerNode(a.Value); err != nil {
						return nil, err
					}
					n.Operation = op
				}
			}
			if len(stack) == 0 {
				if t.Name.Space != "" {
					if _, ok := sch.ModuleByNamespace(t.Name.Space); !ok {
						return nil, mgmterror.NewUnknownNamespace(t.Name.Space)
					}
				} else if len(sch.ModulesForName(t.Name.Local)) == 0 {
					return nil, mgmterror.NewUnknownElement(t.Name.Local)
				}
			}
			if len(stack) > 0 {
				stack[len(stack)-1].Children = append(stack[len(stack)-1].Children, n)
			}
			stack = append(stack, n)
			charData.Reset()
		case xml.CharData:
			charData.Write(t)
		case xml.EndElement:
			if len(stack) == 0 {
				continue
			}
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if len(n.Children) == 0 {
				if s := strings.TrimSpace(charData.String()); s != "" {
					v := datanode.String(s)
					n.Value = &v
				}
			}
			charData.Reset()
			if len(stack) == 0 {
				roots = append(roots, n)
			}
		}
	}
	return roots, nil
}

// Apply walks nodes and issues set_item/delete_item calls against sess,
// honoring testOption and errorOption. A parent is applied before its
// children; among siblings, leaves are applied before containers and list
// entries, and otherwise document order is kept. Key leaves are not moved
// ahead of a list entry's other leaves: a key leaf that follows another
// leaf in the document is set after it.
func Apply(sess datastore.Session, sch schema.Schema, nodes []*EditNode, defaultOp Operation, testOption TestOption, errorOption ErrorOption) error {
	if testOption == TestOnly {
		return applyTree(sess, sch, nodes, nil, defaultOp, true)
	}
	err := applyTree(sess, sch, nodes, nil, defaultOp, false)
	if err != nil && errorOption == RollbackOnError {
		_ = sess.Discard()
	}
	return err
}

func applyTree(sess datastore.Session, sch schema.Schema, nodes []*EditNode, parentPath []string, defaultOp Operation, dryRun bool) error {
	ordered := orderKeysFirst(sch, nodes)
	for _, n := range ordered {
		op := n.Operation
		if op == "" {
			op = defaultOp
			if op == "" {
				op = OpMerge
			}
		}
		n.KeyPreds = keyPredsFor(sch, parentPath, n)
		path := append(append([]string{}, parentPath...), datanode.FormatSegment(n.Name, n.KeyPreds))

		switch op {
		case OpDelete:
			if dryRun {
				continue
			}
			if err := sess.DeleteItem(path); err != nil {
				return mgmterror.Wrap(err, "delete-config operation")
			}
		case OpRemove:
			if dryRun {
				continue
			}
			_ = sess.DeleteItem(path)
		case OpNone:
			// No mutation and no existence check at this node; its children
			// are still applied, so an nc:operation further down takes effect.
			if err := applyTree(sess, sch, n.Children, path, passThroughOp(op, defaultOp), dryRun); err != nil {
				return err
			}
		default: // merge, replace, create
			if n.Value != nil {
				if dryRun {
					continue
				}
				if err := sess.SetItem(path, *n.Value, op == OpCreate); err != nil {
					return mgmterror.Wrap(err, "edit-config operation")
				}
				continue
			}
			if op == OpReplace && !dryRun {
				_ = sess.DeleteItem(path)
			}
			// A container or list entry is itself a node in the
			// datastore tree and needs its own set_item(P, —), not just
			// the set_item calls its descendant leaves make below: a
			// presence container or a childless list entry would
			// otherwise never be created (spec §4.4, scenario S2).
			if !dryRun {
				marker := entryMarker(sch, parentPath, n)
				if err := sess.SetItem(path, marker, op == OpCreate); err != nil {
					return mgmterror.Wrap(err, "edit-config operation")
				}
			}
			if err := applyTree(sess, sch, n.Children, path, passThroughOp(op, defaultOp), dryRun); err != nil {
				return err
			}
		}
	}
	return nil
}

// keyPredsFor derives the key predicates for a list-entry node by
// resolving its schema entry and reading the named key leaves' values
// out of its already-parsed children. Returns nil for non-list nodes.
func keyPredsFor(sch schema.Schema, parentPath []string, n *EditNode) []datanode.KeyPred {
	entry := schema.ResolvePath(sch, append(append([]string{}, parentPath...), n.Name))
	if !schema.IsList(entry) {
		return nil
	}
	var preds []datanode.KeyPred
	for _, key := range schema.KeyLeafNames(entry) {
		for _, c := range n.Children {
			if c.Name == key && c.Value != nil {
				preds = append(preds, datanode.KeyPred{Leaf: key, Value: c.Value.Lexical()})
			}
		}
	}
	return preds
}

// entryMarker reports which marker Value a container/list-entry node's
// own set_item call should carry, by resolving its schema entry.
func entryMarker(sch schema.Schema, parentPath []string, n *EditNode) datanode.Value {
	entry := schema.ResolvePath(sch, append(append([]string{}, parentPath...), n.Name))
	if schema.IsList(entry) {
		return datanode.ListEntryMarker()
	}
	return datanode.ContainerMarker()
}

// passThroughOp determines the operation inherited by a node's children
// when the node itself carried no explicit nc:operation: merge/replace
// propagate so descendants without their own attribute behave the same
// way, per RFC 6241 §7.2.
func passThroughOp(parentOp, defaultOp Operation) Operation {
	if parentOp == "" {
		return defaultOp
	}
	return parentOp
}

// orderKeysFirst reorders a node's children so leaves (which is where a
// list entry's key leaves necessarily live) are applied before
// containers/list entries, a conservative approximation of "key leaves
// first" that needs no schema lookup of which leaves are actually keys.
// Document order is preserved within each group (sort.SliceStable).
func orderKeysFirst(_ schema.Schema, nodes []*EditNode) []*EditNode {
	out := make([]*EditNode, len(nodes))
	copy(out, nodes)
	sortStableLeavesFirst(out)
	return out
}

func sortStableLeavesFirst(nodes []*EditNode) {
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && isLeaf(nodes[j]) && !isLeaf(nodes[j-1]); j-- {
			nodes[j-1], nodes[j] = nodes[j], nodes[j-1]
		}
	}
}

func isLeaf(n *EditNode) bool {
	return n.Value != nil
}
