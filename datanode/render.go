package datanode

import (
	"strings"

	"github.com/beevik/etree"
)

// Render serializes nodes as the child content of a NETCONF <data>
// element, producing the exact inner XML the transport adapter places
// inside an rpc-reply's <data> (spec §4.3). etree gives us an XML tree we
// can build programmatically without hand-rolling escaping rules, which
// encoding/xml's stream-only Encoder does not offer for this
// assemble-then-serialize use case.
func Render(nodes []*Node) string {
	doc := etree.NewDocument()
	appendChildren(&doc.Element, nodes)
	s, _ := doc.WriteToString()
	return strings.TrimSpace(s)
}

func appendChildren(parent *etree.Element, nodes []*Node) {
	for _, n := range nodes {
		el := parent.CreateElement(n.Name)
		// n.KeyPreds is a path-addressing aid (see ParseSegment); the key
		// leaf's value is rendered as an ordinary child below, so it is
		// not repeated here.
		if n.Value != nil && !isMarker(n.Value.Kind) {
			el.SetText(n.Value.Lexical())
			continue
		}
		appendChildren(el, n.Children)
	}
}
