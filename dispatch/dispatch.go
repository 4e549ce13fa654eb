// Package dispatch implements the Operation Dispatcher (component C6):
// one entry point per RPC, orchestrating the Filter Compiler, Value
// Marshaller/Tree Assembler/With-Defaults Filter, Edit Applier, Lock
// Manager and the datastore back end (spec §4.1).
package dispatch

import (
	"github.com/google/uuid"

	"github.com/finlaygreen/netconfd/datanode"
	"github.com/finlaygreen/netconfd/datastore"
	"github.com/finlaygreen/netconfd/editapply"
	"github.com/finlaygreen/netconfd/filter"
	"github.com/finlaygreen/netconfd/mgmterror"
	"github.com/finlaygreen/netconfd/schema"
	"github.com/finlaygreen/netconfd/session"
)

// Dispatcher is shared across every session; it is stateless aside from
// the shared lock table and the backend connection, matching spec §5.
type Dispatcher struct {
	Schema  schema.Schema
	Backend datastore.Backend
	Locks   *session.LockManager
}

// New constructs a Dispatcher bound to sch and backend.
func New(sch schema.Schema, backend datastore.Backend) *Dispatcher {
	return &Dispatcher{Schema: sch, Backend: backend, Locks: session.NewLockManager()}
}

// NewSession opens a backend session for a freshly connected NETCONF
// session, producing its Session State (component C7).
func (d *Dispatcher) NewSession(id uint64, capabilities []string) (*session.State, error) {
	be, err := d.Backend.NewSession()
	if err != nil {
		return nil, mgmterror.Wrap(err, "connect")
	}
	return &session.State{
		ID:            id,
		Capabilities:  capabilities,
		Backend:       be,
		Locks:         d.Locks,
		CorrelationID: uuid.New().String(),
	}, nil
}

// GetRequest carries the parameters of a <get>/<get-config> RPC.
type GetRequest struct {
	Source           datastore.Datastore // ignored for <get>, which always reads running+state
	FilterType       string              // "subtree", "xpath", or "" for no filter
	FilterContent    string
	WithDefaultsMode datanode.WithDefaultsMode
}

// Get serves a <get> RPC: a snapshot of running configuration. Any
// state-only roots a stateproviders.Registry contributes (spec §4.2's
// special-case routing) are spliced in by the transport adapter
// alongside this call, not by Dispatcher itself, since C12 is a
// transport-level concern with no datastore-backed equivalent.
func (d *Dispatcher) Get(sess *session.State, req GetRequest) (string, *mgmterror.Error) {
	return d.get(sess, datastore.Running, req)
}

// GetConfig serves a <get-config> RPC against req.Source.
func (d *Dispatcher) GetConfig(sess *session.State, req GetRequest) (string, *mgmterror.Error) {
	return d.get(sess, req.Source, req)
}

func (d *Dispatcher) get(sess *session.State, ds datastore.Datastore, req GetRequest) (string, *mgmterror.Error) {
	// Refresh policy (spec §4.1): always refresh before reading
	// running/startup; for candidate, only when this session has no
	// pending edits of its own, so a refresh never drops local changes.
	if ds != datastore.Candidate || !sess.CandidateDirty() {
		if err := sess.Backend.Refresh(ds); err != nil {
			return "", mgmterror.ToRPCError(err)
		}
	}

	f, err := filter.Compile(d.Schema, req.FilterType, req.FilterContent)
	if err != nil {
		return "", mgmterror.ToRPCError(err)
	}

	items, err := sess.Backend.GetItems(ds, nil)
	if err != nil {
		return "", mgmterror.ToRPCError(err)
	}

	tree := datanode.Assemble(items)
	datanode.MarkDefaults(tree, d.Schema)
	if !f.Empty() {
		tree = pruneToFilter(tree, f)
	}
	tree = datanode.ApplyWithDefaults(tree, withDefaultsOrDefault(req.WithDefaultsMode))
	root := &datanode.Node{Children: tree}
	datanode.SortChildren(root)
	return datanode.Render(root.Children), nil
}

func withDefaultsOrDefault(mode datanode.WithDefaultsMode) datanode.WithDefaultsMode {
	if mode == "" {
		return datanode.ReportAll
	}
	return mode
}

// pruneToFilter keeps only the subtrees named by f's selectors, applying
// content-match constraints to decide which list entries survive.
func pruneToFilter(tree []*datanode.Node, f *filter.Filter) []*datanode.Node {
	return datanode.Prune(tree, func(path []string) (selected bool, descend bool) {
		return classify(path, f.Selectors)
	})
}

// classify decides, for one path in the assembled reply tree, whether it
// is selected (kept, possibly as a leaf) and/or should be descended into
// to evaluate its children against the filter, aggregating over every
// selector rather than stopping at the first match: a filter can name
// both a list entry's key (a content-match selector with no Stop) and a
// sibling leaf beneath the same entry, and both must be honored together.
func classify(path []string, selectors []filter.Selector) (selected bool, descend bool) {
	for _, sel := range selectors {
		switch {
		case len(sel.Path) > len(path) && samePrefix(path, sel.Path[:len(path)]):
			descend = true
		case len(sel.Path) == len(path) && samePrefix(path, sel.Path):
			if sel.Stop {
				selected = true
				if !anySelectorExtendsBelow(path, selectors) {
					return true, false
				}
			} else if contentMatches(path, sel) {
				selected = true
				if anySelectorExtendsBelow(path, selectors) {
					descend = true
				} else {
					return true, false
				}
			}
		case len(sel.Path) < len(path) && samePrefix(sel.Path, path[:len(sel.Path)]) && sel.Stop:
			// path descends from a Stop selector: the whole subtree is
			// already wanted, so return it unfiltered.
			return true, false
		}
	}
	if isKeyLeafPath(path) {
		selected = true
	}
	return selected, descend
}

func anySelectorExtendsBelow(path []string, selectors []filter.Selector) bool {
	for _, sel := range selectors {
		if len(sel.Path) > len(path) && samePrefix(path, sel.Path[:len(path)]) {
			return true
		}
	}
	return false
}

// isKeyLeafPath reports whether the last segment of path is itself named
// as a key leaf in the preceding list-entry segment's predicates (RFC
// 6241 §6.2.5: key leaves are always returned regardless of filter).
func isKeyLeafPath(path []string) bool {
	if len(path) < 2 {
		return false
	}
	leaf, _ := datanode.ParseSegment(path[len(path)-1])
	_, preds := datanode.ParseSegment(path[len(path)-2])
	for _, p := range preds {
		if p.Leaf == leaf {
			return true
		}
	}
	return false
}

func contentMatches(path []string, sel filter.Selector) bool {
	if len(sel.ContentMatch) == 0 {
		return true
	}
	if len(path) == 0 {
		return false
	}
	_, preds := datanode.ParseSegment(path[len(path)-1])
	for leaf, want := range sel.ContentMatch {
		found := false
		for _, p := range preds {
			if p.Leaf == leaf && p.Value == want {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func samePrefix(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		n1, _ := datanode.ParseSegment(a[i])
		n2, _ := datanode.ParseSegment(b[i])
		if n1 != n2 {
			return false
		}
	}
	return true
}

// EditConfigRequest carries the parameters of an <edit-config> RPC.
type EditConfigRequest struct {
	Target        datastore.Datastore
	Config        string
	DefaultOp     editapply.Operation
	TestOption    editapply.TestOption
	ErrorOption   editapply.ErrorOption
}

// EditConfig serves an <edit-config> RPC.
func (d *Dispatcher) EditConfig(sess *session.State, req EditConfigRequest) *mgmterror.Error {
	if req.Target == datastore.Running {
		return mgmterror.NewOperationNotSupported("edit-config on running requires :writable-running")
	}
	if holder, locked := d.Locks.IsLockedByOther(req.Target, sess.ID); locked {
		return mgmterror.NewLockDenied(holder)
	}

	nodes, err := editapply.Parse(d.Schema, req.Config)
	if err != nil {
		return mgmterror.ToRPCError(err)
	}

	if err := sess.Backend.SwitchDatastore(req.Target); err != nil {
		return mgmterror.ToRPCError(err)
	}
	if err := editapply.Apply(sess.Backend, d.Schema, nodes, req.DefaultOp, req.TestOption, req.ErrorOption); err != nil {
		return mgmterror.ToRPCError(err)
	}
	if req.TestOption != editapply.TestOnly && req.Target == datastore.Candidate {
		sess.MarkCandidateDirty()
	}
	return nil
}

// DeleteConfig serves a <delete-config> RPC. Deleting running is
// forbidden by RFC 6241 §7.3.
func (d *Dispatcher) DeleteConfig(sess *session.State, target datastore.Datastore) *mgmterror.Error {
	if target == datastore.Running {
		return mgmterror.NewOperationNotSupported("delete-config may not target running")
	}
	if holder, locked := d.Locks.IsLockedByOther(target, sess.ID); locked {
		return mgmterror.NewLockDenied(holder)
	}
	if err := sess.Backend.SwitchDatastore(target); err != nil {
		return mgmterror.ToRPCError(err)
	}
	items, err := sess.Backend.GetItems(target, nil)
	if err != nil {
		return mgmterror.ToRPCError(err)
	}
	for _, pv := range items {
		_ = sess.Backend.DeleteItem(pv.Path)
	}
	return nil
}

// CheckExec serves as a guard in front of every RPC dispatch: it asks the
// backend session whether rpcName may be invoked at all and returns
// access-denied (RFC 6241 §8.7/spec §7's error taxonomy) if not.
func (d *Dispatcher) CheckExec(sess *session.State, rpcName string) *mgmterror.Error {
	ok, err := sess.Backend.CheckExecPermission(rpcName)
	if err != nil {
		return mgmterror.ToRPCError(err)
	}
	if !ok {
		return mgmterror.NewAccessDenied(rpcName)
	}
	return nil
}

// Lock serves a <lock> RPC. Locking candidate is additionally refused,
// per RFC 6241 §8.3.5.2/spec §4.5, if candidate differs from running —
// i.e. any session (not just the caller) has uncommitted candidate edits.
func (d *Dispatcher) Lock(sess *session.State, target datastore.Datastore) *mgmterror.Error {
	if dirtyID, any := d.Locks.AnyCandidateDirty(); target == datastore.Candidate && any {
		return mgmterror.NewLockDenied(dirtyID)
	}
	if err := d.Locks.Lock(target, sess.ID); err != nil {
		return mgmterror.ToRPCError(err)
	}
	return nil
}

// Unlock serves an <unlock> RPC. Unlocking candidate while holding
// pending edits discards them first (spec §4.5).
func (d *Dispatcher) Unlock(sess *session.State, target datastore.Datastore) *mgmterror.Error {
	if target == datastore.Candidate && d.Locks.Holds(target, sess.ID) && d.Locks.IsCandidateDirty(sess.ID) {
		if err := sess.Backend.Discard(); err != nil {
			return mgmterror.ToRPCError(err)
		}
		d.Locks.ClearCandidateDirty(sess.ID)
	}
	if err := d.Locks.Unlock(target, sess.ID); err != nil {
		return mgmterror.ToRPCError(err)
	}
	return nil
}

// Validate serves a <validate> RPC.
func (d *Dispatcher) Validate(sess *session.State, source datastore.Datastore) *mgmterror.Error {
	if err := sess.Backend.SwitchDatastore(source); err != nil {
		return mgmterror.ToRPCError(err)
	}
	if err := sess.Backend.Validate(); err != nil {
		return mgmterror.ToRPCError(err)
	}
	return nil
}

// Commit serves a <commit> RPC, copying candidate into running.
func (d *Dispatcher) Commit(sess *session.State) *mgmterror.Error {
	if holder, locked := d.Locks.IsLockedByOther(datastore.Candidate, sess.ID); locked {
		return mgmterror.NewLockDenied(holder)
	}
	if err := sess.Backend.Commit(); err != nil {
		return mgmterror.ToRPCError(err)
	}
	d.Locks.ClearAllCandidateDirty()
	return nil
}

// DiscardChanges serves a <discard-changes> RPC.
func (d *Dispatcher) DiscardChanges(sess *session.State) *mgmterror.Error {
	if err := sess.Backend.Discard(); err != nil {
		return mgmterror.ToRPCError(err)
	}
	sess.ClearCandidateDirty()
	return nil
}

// CloseSession serves a <close-session> RPC, releasing this session's
// locks and closing its backend connection.
func (d *Dispatcher) CloseSession(sess *session.State) *mgmterror.Error {
	d.Locks.ReleaseAll(sess.ID)
	if err := sess.Backend.Close(); err != nil {
		return mgmterror.ToRPCError(err)
	}
	return nil
}
