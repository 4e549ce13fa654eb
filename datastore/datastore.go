// Package datastore implements the back-end interface of spec §6 and a
// reference in-memory implementation of it (component C10). It is
// intentionally not a faithful simulation of any real NETCONF device's
// persistence layer (spec §1 explicitly excludes that); it exists so
// C1–C8 have something concrete to drive end to end.
package datastore

import (
	"sort"
	"strings"
	"sync"

	"github.com/finlaygreen/netconfd/datanode"
	"github.com/finlaygreen/netconfd/mgmterror"
)

// Datastore identifies one of the three configuration datastores a
// NETCONF server exposes.
type Datastore string

const (
	Running   Datastore = "running"
	Candidate Datastore = "candidate"
	Startup   Datastore = "startup"
)

// Session is a backend connection bound to one NETCONF session, per
// spec §6's session_start/session_stop lifecycle.
type Session interface {
	// SetItem stores value at path. If strict is true the operation
	// fails with data-exists if an entry is already present at path
	// (RFC 6241 create semantics); otherwise it overwrites silently
	// (merge/replace semantics).
	SetItem(path []string, value datanode.Value, strict bool) error
	// DeleteItem removes the subtree rooted at path. It fails with
	// data-missing if nothing exists there.
	DeleteItem(path []string) error
	// GetItems returns every leaf value at or below path in ds,
	// sorted by path for deterministic iteration order
	// (get_items_iter/get_item_next in spec §6 are modeled here as a
	// single bulk call since the in-memory store has no cursor cost to
	// amortize).
	GetItems(ds Datastore, path []string) ([]datanode.PathValue, error)
	// SwitchDatastore rebinds this session to operate against ds for
	// subsequent Set/Delete/GetItems calls targeting "the active
	// datastore" (running or candidate).
	SwitchDatastore(ds Datastore) error
	// Refresh re-syncs this session's view of ds with the backend
	// (session_refresh in spec §6). The dispatcher calls this before
	// any read of running/startup, and before a read of candidate only
	// when this session has no pending candidate edits (spec §4.1) —
	// Refresh itself does not know or enforce that rule.
	Refresh(ds Datastore) error
	// Validate checks the candidate datastore's pending changes for
	// consistency without committing them.
	Validate() error
	// Commit copies the candidate datastore into running.
	Commit() error
	// Discard clears any pending candidate changes made by this session,
	// reverting candidate to match running.
	Discard() error
	// CheckExecPermission reports whether this session may invoke the
	// named RPC operation.
	CheckExecPermission(rpcName string) (bool, error)
	// Close ends the backend session (session_stop in spec §6).
	Close() error
}

// Backend is the connection-level entry point (connect/disconnect in
// spec §6), producing one Session per NETCONF session.
type Backend interface {
	NewSession() (Session, error)
}

// store is a flat path -> value map; paths are joined with "/" using the
// same segment encoding datanode.FormatSegment produces, so a simple
// string-prefix scan serves get_items_iter without a real tree index.
type store struct {
	mu     sync.RWMutex
	values map[string]datanode.Value
}

func newStore() *store {
	return &store{values: map[string]datanode.Value{}}
}

func (s *store) clone() *store {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c := newStore()
	for k, v := range s.values {
		c.values[k] = v
	}
	return c
}

func joinPath(path []string) string {
	return strings.Join(path, "/")
}

func (s *store) set(path []string, v datanode.Value, strict bool) error {
	key := joinPath(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if strict {
		if _, exists := s.values[key]; exists {
			return mgmterror.NewDataExists(key)
		}
	}
	s.values[key] = v
	return nil
}

func (s *store) delete(path []string) error {
	prefix := joinPath(path)
	s.mu.Lock()
	defer s.mu.Unlock()
	found := false
	for k := range s.values {
		if k == prefix || strings.HasPrefix(k, prefix+"/") {
			delete(s.values, k)
			found = true
		}
	}
	if !found {
		return mgmterror.NewDataMissing(prefix)
	}
	return nil
}

func (s *store) get(path []string) []datanode.PathValue {
	prefix := joinPath(path)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []datanode.PathValue
	for k, v := range s.values {
		if prefix == "" || k == prefix || strings.HasPrefix(k, prefix+"/") {
			out = append(out, datanode.PathValue{Path: strings.Split(k, "/"), Value: v})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return joinPath(out[i].Path) < joinPath(out[j].Path)
	})
	return out
}

// InMemory is the reference Backend implementation (component C10).
type InMemory struct {
	mu       sync.Mutex
	running  *store
	startup  *store
	denyExec map[string]bool
}

// NewInMemory constructs an empty in-memory backend. denyExec, if
// non-nil, names RPC operations CheckExecPermission should refuse
// (used to exercise the access-denied error path).
func NewInMemory(denyExec ...string) *InMemory {
	deny := map[string]bool{}
	for _, d := range denyExec {
		deny[d] = true
	}
	return &InMemory{running: newStore(), startup: newStore(), denyExec: deny}
}

func (b *InMemory) NewSession() (Session, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return &inMemorySession{
		backend:   b,
		candidate: b.running.clone(),
		active:    Running,
	}, nil
}

type inMemorySession struct {
	backend   *InMemory
	candidate *store
	active    Datastore
}

func (s *inMemorySession) storeFor(ds Datastore) *store {
	switch ds {
	case Candidate:
		return s.candidate
	case Startup:
		return s.backend.startup
	default:
		return s.backend.running
	}
}

func (s *inMemorySession) activeStore() *store {
	return s.storeFor(s.active)
}

func (s *inMemorySession) SwitchDatastore(ds Datastore) error {
	s.active = ds
	return nil
}

// Refresh re-syncs this session's view of ds with the backend. Running
// and startup reads already go straight to the backend's shared stores,
// so there is nothing to resync there; candidate is this session's own
// clone, so refreshing it re-clones from running. Callers must not do
// that once this session has pending candidate edits of its own — this
// method does not check that, per the Session.Refresh contract.
func (s *inMemorySession) Refresh(ds Datastore) error {
	if ds == Candidate {
		s.backend.mu.Lock()
		defer s.backend.mu.Unlock()
		s.candidate = s.backend.running.clone()
	}
	return nil
}

func (s *inMemorySession) SetItem(path []string, value datanode.Value, strict bool) error {
	return s.activeStore().set(path, value, strict)
}

func (s *inMemorySession) DeleteItem(path []string) error {
	return s.activeStore().delete(path)
}

func (s *inMemorySession) GetItems(ds Datastore, path []string) ([]datanode.PathValue, error) {
	return s.storeFor(ds).get(path), nil
}

func (s *inMemorySession) Validate() error {
	// The in-memory store has no schema-level consistency constraints of
	// its own to check beyond what SetItem already enforces.
	return nil
}

func (s *inMemorySession) Commit() error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.backend.running = s.candidate.clone()
	return nil
}

func (s *inMemorySession) Discard() error {
	s.backend.mu.Lock()
	defer s.backend.mu.Unlock()
	s.candidate = s.backend.running.clone()
	return nil
}

func (s *inMemorySession) CheckExecPermission(rpcName string) (bool, error) {
	return !s.backend.denyExec[rpcName], nil
}

func (s *inMemorySession) Close() error {
	return nil
}
