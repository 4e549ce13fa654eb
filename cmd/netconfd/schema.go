package main

import (
	"github.com/openconfig/goyang/pkg/yang"

	"github.com/finlaygreen/netconfd/schema"
)

// demoSchema builds the bundled ietf-interfaces-shaped module netconfd
// serves out of the box. netconfd's schema accessor (component C9) wraps
// whatever yang.Entry tree it is given rather than compiling YANG itself,
// so a deployment wanting its own data model supplies its own schema.Schema
// here instead of loading one from flags.
func demoSchema() schema.Schema {
	name := &yang.Entry{Name: "name", Type: &yang.YangType{Kind: yang.Ystring}}
	typ := &yang.Entry{Name: "type", Type: &yang.YangType{Kind: yang.Yidentityref}}
	enabled := &yang.Entry{Name: "enabled", Type: &yang.YangType{Kind: yang.Ybool}, Default: "true"}
	description := &yang.Entry{Name: "description", Type: &yang.YangType{Kind: yang.Ystring}}

	iface := &yang.Entry{
		Name:     "interface",
		Key:      "name",
		ListAttr: &yang.ListAttr{},
		Dir: map[string]*yang.Entry{
			"name":        name,
			"type":        typ,
			"enabled":     enabled,
			"description": description,
		},
	}
	interfaces := &yang.Entry{Name: "interfaces", Dir: map[string]*yang.Entry{"interface": iface}}

	m := schema.NewModule("ietf-interfaces", "if", "urn:ietf:params:xml:ns:yang:ietf-interfaces", interfaces)
	return schema.NewStatic(m)
}
