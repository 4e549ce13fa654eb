package schema

import (
	"testing"

	"github.com/openconfig/goyang/pkg/yang"
	"github.com/stretchr/testify/assert"
)

func ifaceListEntry() *yang.Entry {
	name := &yang.Entry{Name: "name", Type: &yang.YangType{Kind: yang.Ystring}}
	enabled := &yang.Entry{Name: "enabled", Type: &yang.YangType{Kind: yang.Ybool}, Default: "true"}
	list := &yang.Entry{
		Name:     "interface",
		Key:      "name",
		ListAttr: &yang.ListAttr{},
		Dir:      map[string]*yang.Entry{"name": name, "enabled": enabled},
	}
	name.Parent = list
	enabled.Parent = list
	return &yang.Entry{Name: "interfaces", Dir: map[string]*yang.Entry{"interface": list}}
}

func TestStaticModuleLookup(t *testing.T) {
	m := NewModule("ietf-interfaces", "if", "urn:ietf:params:xml:ns:yang:ietf-interfaces", ifaceListEntry())
	s := NewStatic(m)

	mods := s.ModulesForName("interfaces")
	assert.Len(t, mods, 1)
	assert.Equal(t, "ietf-interfaces", mods[0].Name())

	got, ok := s.ModuleByNamespace("urn:ietf:params:xml:ns:yang:ietf-interfaces")
	assert.True(t, ok)
	assert.Same(t, m, got)

	_, ok = s.ModuleByNamespace("urn:unknown")
	assert.False(t, ok)
}

func TestIsListAndKeyLeafNames(t *testing.T) {
	root := ifaceListEntry()
	list := root.Dir["interface"]

	assert.True(t, IsList(list))
	assert.False(t, IsList(root))
	assert.Equal(t, []string{"name"}, KeyLeafNames(list))
}

func TestDefaultValue(t *testing.T) {
	root := ifaceListEntry()
	enabled := root.Dir["interface"].Dir["enabled"]

	v, ok := DefaultValue(enabled)
	assert.True(t, ok)
	assert.Equal(t, "true", v)

	_, ok = DefaultValue(root.Dir["interface"].Dir["name"])
	assert.False(t, ok)
}

func TestMarkPresence(t *testing.T) {
	c := &yang.Entry{Name: "debug"}
	MarkPresence(c)
	assert.True(t, IsPresenceContainer(c))

	other := &yang.Entry{Name: "plain", Node: nil}
	assert.False(t, IsPresenceContainer(other))
}
