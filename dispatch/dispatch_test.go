package dispatch

import (
	"testing"

	"github.com/openconfig/goyang/pkg/yang"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finlaygreen/netconfd/datanode"
	"github.com/finlaygreen/netconfd/datastore"
	"github.com/finlaygreen/netconfd/editapply"
	"github.com/finlaygreen/netconfd/schema"
	"github.com/finlaygreen/netconfd/session"
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

func testSchemaWithMTUDefault() schema.Schema {
	name := &yang.Entry{Name: "name", Type: &yang.YangType{Kind: yang.Ystring}}
	mtu := &yang.Entry{Name: "mtu", Type: &yang.YangType{Kind: yang.Yuint32}, Default: "1500"}
	list := &yang.Entry{Name: "interface", Key: "name", ListAttr: &yang.ListAttr{},
		Dir: map[string]*yang.Entry{"name": name, "mtu": mtu}}
	interfaces := &yang.Entry{Name: "interfaces", Dir: map[string]*yang.Entry{"interface": list}}
	m := schema.NewModule("ietf-interfaces", "if", "urn:ietf:params:xml:ns:yang:ietf-interfaces", interfaces)
	return schema.NewStatic(m)
}

func newDispatcherWithSession(t *testing.T) (*Dispatcher, *session.State) {
	t.Helper()
	d := New(testSchema(), datastore.NewInMemory())
	sess, err := d.NewSession(1, nil)
	require.NoError(t, err)
	return d, sess
}

func TestNewSessionAssignsUniqueCorrelationID(t *testing.T) {
	d, sess1 := newDispatcherWithSession(t)
	sess2, err := d.NewSession(2, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, sess1.CorrelationID)
	assert.NotEmpty(t, sess2.CorrelationID)
	assert.NotEqual(t, sess1.CorrelationID, sess2.CorrelationID)
}

func TestEditConfigThenGetConfigRoundTrip(t *testing.T) {
	d, sess := newDispatcherWithSession(t)

	config := `<interfaces><interface><name>eth0</name><enabled>true</enabled></interface></interfaces>`
	err := d.EditConfig(sess, EditConfigRequest{
		Target:      datastore.Candidate,
		Config:      config,
		DefaultOp:   editapply.OpMerge,
		TestOption:  editapply.Set,
		ErrorOption: editapply.StopOnError,
	})
	require.Nil(t, err)

	out, gerr := d.GetConfig(sess, GetRequest{Source: datastore.Candidate})
	require.Nil(t, gerr)
	assert.Contains(t, out, "<name>eth0</name>")
	assert.Contains(t, out, "<enabled>true</enabled>")
}

func TestEditConfigOnRunningRejected(t *testing.T) {
	d, sess := newDispatcherWithSession(t)
	err := d.EditConfig(sess, EditConfigRequest{Target: datastore.Running, Config: "<interfaces/>"})
	require.NotNil(t, err)
	assert.Equal(t, "operation-not-supported", string(err.Tag))
}

func TestLockPreventsOtherSessionEdit(t *testing.T) {
	d, sess1 := newDispatcherWithSession(t)
	sess2, err := d.NewSession(2, nil)
	require.NoError(t, err)

	require.Nil(t, d.Lock(sess1, datastore.Candidate))

	editErr := d.EditConfig(sess2, EditConfigRequest{
		Target: datastore.Candidate,
		Config: "<interfaces/>",
	})
	require.NotNil(t, editErr)
	assert.Equal(t, "lock-denied", string(editErr.Tag))
}

func TestCommitCopiesToRunning(t *testing.T) {
	d, sess := newDispatcherWithSession(t)

	config := `<interfaces><interface><name>eth0</name></interface></interfaces>`
	require.Nil(t, d.EditConfig(sess, EditConfigRequest{
		Target: datastore.Candidate, Config: config, DefaultOp: editapply.OpMerge, TestOption: editapply.Set,
	}))
	require.Nil(t, d.Commit(sess))

	out, gerr := d.GetConfig(sess, GetRequest{Source: datastore.Running})
	require.Nil(t, gerr)
	assert.Contains(t, out, "<name>eth0</name>")
	assert.False(t, sess.CandidateDirty())
}

// TestLockCandidateWhenDirtyRejected is literal scenario S4: session A
// edits candidate, session B's lock request is rejected even though B
// itself made no edits, because the rule is global (spec §4.5).
func TestLockCandidateWhenDirtyRejected(t *testing.T) {
	d, sessA := newDispatcherWithSession(t)
	sessB, err := d.NewSession(2, nil)
	require.NoError(t, err)

	require.Nil(t, d.EditConfig(sessA, EditConfigRequest{
		Target: datastore.Candidate, Config: "<interfaces/>", DefaultOp: editapply.OpMerge, TestOption: editapply.Set,
	}))
	assert.True(t, sessA.CandidateDirty())

	lockErr := d.Lock(sessB, datastore.Candidate)
	require.NotNil(t, lockErr)
	assert.Equal(t, "lock-denied", string(lockErr.Tag))
}

func TestLockCandidateClean(t *testing.T) {
	d, sess := newDispatcherWithSession(t)
	require.Nil(t, d.Lock(sess, datastore.Candidate))
}

// TestUnlockCandidateDiscardsPendingEdits is spec §4.5's "unlock candidate
// with uncommitted edits by the lock holder discards those edits" rule.
// The lock is acquired first, while candidate is still clean (spec §4.5's
// "any session dirty" rule would otherwise deny the lock to everyone,
// including the session about to make the edit).
func TestUnlockCandidateDiscardsPendingEdits(t *testing.T) {
	d, sess := newDispatcherWithSession(t)
	require.Nil(t, d.Lock(sess, datastore.Candidate))

	config := `<interfaces><interface><name>eth0</name></interface></interfaces>`
	require.Nil(t, d.EditConfig(sess, EditConfigRequest{
		Target: datastore.Candidate, Config: config, DefaultOp: editapply.OpMerge, TestOption: editapply.Set,
	}))
	assert.True(t, sess.CandidateDirty())

	require.Nil(t, d.Unlock(sess, datastore.Candidate))
	assert.False(t, sess.CandidateDirty())

	out, gerr := d.GetConfig(sess, GetRequest{Source: datastore.Candidate})
	require.Nil(t, gerr)
	assert.NotContains(t, out, "eth0")

	// Now that candidate is clean, another session can lock it.
	other, err := d.NewSession(2, nil)
	require.NoError(t, err)
	require.Nil(t, d.Lock(other, datastore.Candidate))
}

func TestCheckExecDeniesListedRPC(t *testing.T) {
	d := New(testSchema(), datastore.NewInMemory("kill-session"))
	sess, err := d.NewSession(1, nil)
	require.NoError(t, err)

	gerr := d.CheckExec(sess, "kill-session")
	require.NotNil(t, gerr)
	assert.Equal(t, "access-denied", string(gerr.Tag))

	assert.Nil(t, d.CheckExec(sess, "get"))
}

func TestFilteredGetConfigOnlyReturnsMatchedContentMatch(t *testing.T) {
	d, sess := newDispatcherWithSession(t)

	config := `<interfaces>` +
		`<interface><name>eth0</name><enabled>true</enabled></interface>` +
		`<interface><name>eth1</name><enabled>false</enabled></interface>` +
		`</interfaces>`
	require.Nil(t, d.EditConfig(sess, EditConfigRequest{
		Target: datastore.Candidate, Config: config, DefaultOp: editapply.OpMerge, TestOption: editapply.Set,
	}))

	filterRaw := `<interfaces><interface><name>eth0</name></interface></interfaces>`
	out, gerr := d.GetConfig(sess, GetRequest{
		Source: datastore.Candidate, FilterType: "subtree", FilterContent: filterRaw,
	})
	require.Nil(t, gerr)
	assert.Contains(t, out, "eth0")
	assert.NotContains(t, out, "eth1")
}

// TestGetConfigWithDefaultsTrimOmitsDefaultedLeaf is literal scenario S6:
// the reply omits mtu because its configured value equals the schema
// default and with-defaults=trim was requested.
func TestGetConfigWithDefaultsTrimOmitsDefaultedLeaf(t *testing.T) {
	d := New(testSchemaWithMTUDefault(), datastore.NewInMemory())
	sess, err := d.NewSession(1, nil)
	require.NoError(t, err)

	config := `<interfaces><interface><name>eth0</name><mtu>1500</mtu></interface></interfaces>`
	require.Nil(t, d.EditConfig(sess, EditConfigRequest{
		Target: datastore.Candidate, Config: config, DefaultOp: editapply.OpMerge, TestOption: editapply.Set,
	}))

	out, gerr := d.GetConfig(sess, GetRequest{Source: datastore.Candidate, WithDefaultsMode: datanode.Trim})
	require.Nil(t, gerr)
	assert.Contains(t, out, "eth0")
	assert.NotContains(t, out, "mtu")
}
