package stateproviders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openconfig/goyang/pkg/yang"

	"github.com/finlaygreen/netconfd/schema"
)

func TestYangLibraryProvider(t *testing.T) {
	m := schema.NewModule("ietf-interfaces", "if", "urn:ietf:params:xml:ns:yang:ietf-interfaces",
		&yang.Entry{Name: "interfaces", Dir: map[string]*yang.Entry{}})
	sch := schema.NewStatic(m)

	items := YangLibraryProvider(sch)()
	require.NotEmpty(t, items)

	var sawName bool
	for _, pv := range items {
		if pv.Value.Lexical() == "ietf-interfaces" {
			sawName = true
		}
	}
	assert.True(t, sawName)
}

func TestNetconfMonitoringProvider(t *testing.T) {
	fn := NetconfMonitoringProvider(func() []uint64 { return []uint64{1, 2} })
	items := fn()
	require.Len(t, items, 2)
}

func TestRegistryCollect(t *testing.T) {
	r := NewRegistry()
	r.Register("a", NetconfMonitoringProvider(func() []uint64 { return []uint64{7} }))
	r.Register("b", NetconfMonitoringProvider(func() []uint64 { return []uint64{8} }))

	items := r.Collect()
	assert.Len(t, items, 2)
}
