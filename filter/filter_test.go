package filter

import (
	"testing"

	"github.com/openconfig/goyang/pkg/yang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlaygreen/netconfd/schema"
)

func testSchema() schema.Schema {
	name := &yang.Entry{Name: "name", Type: &yang.YangType{Kind: yang.Ystring}}
	enabled := &yang.Entry{Name: "enabled", Type: &yang.YangType{Kind: yang.Ybool}}
	list := &yang.Entry{Name: "interface", Key: "name", ListAttr: &yang.ListAttr{},
		Dir: map[string]*yang.Entry{"name": name, "enabled": enabled}}
	interfaces := &yang.Entry{Name: "interfaces", Dir: map[string]*yang.Entry{"interface": list}}
	m := schema.NewModule("ietf-interfaces", "if", "urn:ietf:params:xml:ns:yang:ietf-interfaces", interfaces)
	return schema.NewStatic(m)
}

func TestCompileEmptyFilter(t *testing.T) {
	f, err := Compile(testSchema(), "subtree", "")
	require.NoError(t, err)
	assert.True(t, f.Empty())
}

func TestCompileXPathRejected(t *testing.T) {
	_, err := Compile(testSchema(), "xpath", "/interfaces")
	assert.Error(t, err)
}

func TestCompileUnknownTopLevelElement(t *testing.T) {
	_, err := Compile(testSchema(), "subtree", "<bogus/>")
	assert.Error(t, err)
}

func TestCompileStopNode(t *testing.T) {
	f, err := Compile(testSchema(), "subtree", "<interfaces/>")
	require.NoError(t, err)
	require.Len(t, f.Selectors, 1)
	assert.Equal(t, []string{"interfaces"}, f.Selectors[0].Path)
	assert.True(t, f.Selectors[0].Stop)
}

func TestCompileContentMatchSelector(t *testing.T) {
	raw := `<interfaces><interface><name>eth0</name></interface></interfaces>`
	f, err := Compile(testSchema(), "subtree", raw)
	require.NoError(t, err)
	require.Len(t, f.Selectors, 1)
	sel := f.Selectors[0]
	assert.Equal(t, []string{"interfaces", "interface"}, sel.Path)
	assert.Equal(t, map[string]string{"name": "eth0"}, sel.ContentMatch)
}

func TestCompileLeafSelector(t *testing.T) {
	raw := `<interfaces><interface><enabled/></interface></interfaces>`
	f, err := Compile(testSchema(), "subtree", raw)
	require.NoError(t, err)
	require.Len(t, f.Selectors, 1)
	assert.Equal(t, []string{"interfaces", "interface", "enabled"}, f.Selectors[0].Path)
	assert.True(t, f.Selectors[0].Stop)
}
