package editapply

import (
	"strings"
	"testing"

	"github.com/openconfig/goyang/pkg/yang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlaygreen/netconfd/datanode"
	"github.com/finlaygreen/netconfd/datastore"
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

func TestOperationSetDefaultRejectsCreate(t *testing.T) {
	var op Operation
	assert.Error(t, op.SetDefault("create"))
	assert.NoError(t, op.SetDefault("merge"))
	assert.Equal(t, OpMerge, op)
}

func TestTestOptionSet(t *testing.T) {
	var to TestOption
	require.NoError(t, to.Set("test-then-set"))
	assert.Equal(t, TestThenSet, to)
	assert.Error(t, to.Set("bogus"))
}

func TestParseRejectsUnknownTopLevelElement(t *testing.T) {
	_, err := Parse(testSchema(), "<bogus/>")
	assert.Error(t, err)
}

func TestParseAndApplyMerge(t *testing.T) {
	raw := `<interfaces><interface><name>eth0</name><enabled>true</enabled></interface></interfaces>`
	nodes, err := Parse(testSchema(), raw)
	require.NoError(t, err)
	require.Len(t, nodes, 1)

	b := datastore.NewInMemory()
	sess, _ := b.NewSession()
	require.NoError(t, sess.SwitchDatastore(datastore.Candidate))

	err = Apply(sess, testSchema(), nodes, OpMerge, Set, StopOnError)
	require.NoError(t, err)

	items, err := sess.GetItems(datastore.Candidate, []string{"interfaces"})
	require.NoError(t, err)
	// "interfaces" itself, the "interface[name=eth0]" list entry, and its
	// two leaves each get their own set_item call (spec §4.4).
	assert.Len(t, items, 4)
}

// TestMergeListEntryMarkerIssuedBeforeLeaves is literal scenario S2: the
// list entry's own set_item(P, —) call precedes the set_item calls for
// its descendant leaves, so a reader watching the call sequence (or a
// childless presence container) never misses the entry's creation.
func TestMergeListEntryMarkerIssuedBeforeLeaves(t *testing.T) {
	raw := `<interfaces><interface><name>iface1/1</name><enabled>true</enabled></interface></interfaces>`
	nodes, err := Parse(testSchema(), raw)
	require.NoError(t, err)

	b := datastore.NewInMemory()
	sess, _ := b.NewSession()
	require.NoError(t, sess.SwitchDatastore(datastore.Candidate))
	recorder := &recordingSession{Session: sess}

	require.NoError(t, Apply(recorder, testSchema(), nodes, OpMerge, Set, StopOnError))

	require.GreaterOrEqual(t, len(recorder.setPaths), 2)
	entryIdx, leafIdx := -1, -1
	for i, p := range recorder.setPaths {
		if p == "interfaces/interface[name=iface1/1]" {
			entryIdx = i
		}
		if p == "interfaces/interface[name=iface1/1]/name" {
			leafIdx = i
		}
	}
	require.NotEqual(t, -1, entryIdx, "list entry marker must be set")
	require.NotEqual(t, -1, leafIdx, "leaf must be set")
	assert.Less(t, entryIdx, leafIdx, "entry marker must be issued before its descendant leaves")
}

// recordingSession wraps a datastore.Session to capture the order of
// SetItem calls without reimplementing the rest of the interface.
type recordingSession struct {
	datastore.Session
	setPaths []string
}

func (r *recordingSession) SetItem(path []string, value datanode.Value, strict bool) error {
	r.setPaths = append(r.setPaths, strings.Join(path, "/"))
	return r.Session.SetItem(path, value, strict)
}

func TestApplyTestOnlyDoesNotMutate(t *testing.T) {
	raw := `<interfaces><interface><name>eth0</name></interface></interfaces>`
	nodes, err := Parse(testSchema(), raw)
	require.NoError(t, err)

	b := datastore.NewInMemory()
	sess, _ := b.NewSession()
	require.NoError(t, sess.SwitchDatastore(datastore.Candidate))

	require.NoError(t, Apply(sess, testSchema(), nodes, OpMerge, TestOnly, StopOnError))

	items, err := sess.GetItems(datastore.Candidate, []string{"interfaces"})
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestApplyDeleteOperation(t *testing.T) {
	raw := `<interfaces><interface><name>eth0</name></interface></interfaces>`
	nodes, err := Parse(testSchema(), raw)
	require.NoError(t, err)

	b := datastore.NewInMemory()
	sess, _ := b.NewSession()
	require.NoError(t, sess.SwitchDatastore(datastore.Candidate))
	require.NoError(t, Apply(sess, testSchema(), nodes, OpMerge, Set, StopOnError))

	delRaw := `<interfaces xmlns:nc="urn:ietf:params:xml:ns:netconf:base:1.0"><interface nc:operation="delete"><name>eth0</name></interface></interfaces>`
	delNodes, err := Parse(testSchema(), delRaw)
	require.NoError(t, err)

	require.NoError(t, Apply(sess, testSchema(), delNodes, OpMerge, Set, StopOnError))

	items, err := sess.GetItems(datastore.Candidate, []string{"interfaces"})
	require.NoError(t, err)
	// Only the marker the merge left on the "interfaces" container remains;
	// the deleted list entry and its leaf are gone.
	require.Len(t, items, 1)
	assert.Equal(t, []string{"interfaces"}, items[0].Path)
}
