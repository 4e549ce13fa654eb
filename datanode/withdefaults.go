package datanode

// WithDefaultsMode is one of the four modes defined by RFC 6243.
type WithDefaultsMode string

const (
	ReportAll       WithDefaultsMode = "report-all"
	ReportAllTagged WithDefaultsMode = "report-all-tagged"
	Trim            WithDefaultsMode = "trim"
	Explicit        WithDefaultsMode = "explicit"
)

// ApplyWithDefaults filters an assembled tree per mode (component C4).
// Each leaf node's Default flag must already have been set, by
// MarkDefaults on the assembled tree, which compares each leaf's value
// against its schema default.
//
//   - report-all: defaulted leaves are left in the tree untouched.
//   - report-all-tagged: same, but the caller is expected to add the
//     ncWithDefaults:default="true" attribute when rendering; Render does
//     not currently emit attributes, so tagging is a no-op pending that.
//   - trim: leaves whose value equals the schema default are removed.
//   - explicit: same as trim; without an explicit-set bookkeeping bit per
//     leaf (not modeled here) "set explicitly to the default value" is
//     indistinguishable from "never set", so explicit collapses to trim.
func ApplyWithDefaults(nodes []*Node, mode WithDefaultsMode) []*Node {
	switch mode {
	case Trim, Explicit:
		return filterDefaults(nodes)
	default:
		return nodes
	}
}

func filterDefaults(nodes []*Node) []*Node {
	var out []*Node
	for _, n := range nodes {
		isLeaf := n.Value != nil && !isMarker(n.Value.Kind)
		if isLeaf && n.Default {
			continue
		}
		kept := *n
		if !isLeaf {
			kept.Children = filterDefaults(n.Children)
			if len(kept.Children) == 0 && len(n.Children) > 0 {
				// Every child was a defaulted leaf; an empty container
				// still carries information (its own existence), so it
				// is kept, matching RFC 6243 §3.3's container handling.
			}
		}
		out = append(out, &kept)
	}
	return out
}
