package datanode

import "github.com/finlaygreen/netconfd/schema"

// MarkDefaults sets Node.Default across an assembled tree by comparing
// each leaf's lexical value against its schema "default" statement
// (spec §4.3). It walks down to the leaves first, then propagates back
// up: a non-presence, non-list container whose every child is itself
// marked Default is considered fully defaulted too, but that rollup
// stops at presence containers and keyed list entries, since their own
// existence is significant regardless of what their children hold (RFC
// 6243 §3.3).
func MarkDefaults(nodes []*Node, sch schema.Schema) {
	markDefaults(nodes, sch, nil)
}

func markDefaults(nodes []*Node, sch schema.Schema, parentPath []string) bool {
	allDefault := true
	for _, n := range nodes {
		path := append(append([]string{}, parentPath...), n.Name)
		entry := schema.ResolvePath(sch, path)

		if n.Value != nil && !isMarker(n.Value.Kind) {
			dv, ok := schema.DefaultValue(entry)
			n.Default = ok && n.Value.Lexical() == dv
			if !n.Default {
				allDefault = false
			}
			continue
		}

		childrenDefault := markDefaults(n.Children, sch, path)
		if schema.IsPresenceContainer(entry) || schema.IsList(entry) {
			n.Default = false
			allDefault = false
			continue
		}
		n.Default = childrenDefault && len(n.Children) > 0
		if !n.Default {
			allDefault = false
		}
	}
	return allDefault
}
