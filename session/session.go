// Package session implements Session State (component C7) and the Lock
// Manager (component C8): per-session bookkeeping (session id,
// capabilities, candidate dirty tracking) plus a single shared,
// mutex-guarded lock table, matching spec §5's guidance that locking
// needs no finer-grained concurrency control than one mutex.
package session

import (
	"sync"

	"github.com/finlaygreen/netconfd/datastore"
	"github.com/finlaygreen/netconfd/mgmterror"
)

// State is the server-side state of one active NETCONF session.
type State struct {
	ID           uint64
	Capabilities []string
	Backend      datastore.Session

	// CorrelationID is a process-unique token stamped on this session at
	// creation, independent of the transport-assigned ID (which a client
	// can observe and a future session could reuse after a restart); it
	// is what log lines and diagnostics key on.
	CorrelationID string

	// Locks is the Dispatcher's shared lock table, which also owns the
	// candidate-changed flag: spec §4.5's "lock candidate" rule depends
	// on whether *any* session has pending candidate edits, not just
	// this one, so the flag itself must live centrally rather than on
	// each session's own State.
	Locks *LockManager
}

// MarkCandidateDirty records that this session has made an uncommitted
// change to the candidate datastore.
func (s *State) MarkCandidateDirty() {
	s.Locks.MarkCandidateDirty(s.ID)
}

// ClearCandidateDirty resets this session's dirty flag, e.g. after discard.
func (s *State) ClearCandidateDirty() {
	s.Locks.ClearCandidateDirty(s.ID)
}

// CandidateDirty reports whether this session has pending, uncommitted
// candidate changes.
func (s *State) CandidateDirty() bool {
	return s.Locks.IsCandidateDirty(s.ID)
}

// LockManager is a single shared table mapping datastore name to the
// session currently holding its global lock (RFC 6241 §7.5/§7.6), plus
// the set of sessions with uncommitted candidate edits (spec §4.5).
type LockManager struct {
	mu      sync.Mutex
	holders map[datastore.Datastore]uint64
	dirty   map[uint64]bool
}

// NewLockManager returns an empty LockManager.
func NewLockManager() *LockManager {
	return &LockManager{holders: map[datastore.Datastore]uint64{}, dirty: map[uint64]bool{}}
}

// Lock attempts to acquire ds's lock on behalf of sessionID, returning
// lock-denied (carrying the current holder's session id) if it is
// already held by a different session.
func (lm *LockManager) Lock(ds datastore.Datastore, sessionID uint64) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	if holder, held := lm.holders[ds]; held && holder != sessionID {
		return mgmterror.NewLockDenied(holder)
	}
	lm.holders[ds] = sessionID
	return nil
}

// Unlock releases ds's lock. It fails with operation-failed if no session
// holds the lock (RFC 6241 §7.6's "lock not held" case, for which no
// dedicated tag exists), and with lock-denied if another session holds it.
func (lm *LockManager) Unlock(ds datastore.Datastore, sessionID uint64) error {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	holder, held := lm.holders[ds]
	if !held {
		return mgmterror.NewOperationFailed("lock not held")
	}
	if holder != sessionID {
		return mgmterror.NewLockDenied(holder)
	}
	delete(lm.holders, ds)
	return nil
}

// ReleaseAll drops every lock held by sessionID, called when a session
// terminates (RFC 6241 §7.6, final paragraph).
func (lm *LockManager) ReleaseAll(sessionID uint64) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for ds, holder := range lm.holders {
		if holder == sessionID {
			delete(lm.holders, ds)
		}
	}
}

// IsLockedByOther reports whether ds is locked by a session other than
// sessionID, used to guard edit-config/delete-config/commit operations
// against a lock held elsewhere.
func (lm *LockManager) IsLockedByOther(ds datastore.Datastore, sessionID uint64) (uint64, bool) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	holder, held := lm.holders[ds]
	return holder, held && holder != sessionID
}

// Holds reports whether ds is currently locked by sessionID.
func (lm *LockManager) Holds(ds datastore.Datastore, sessionID uint64) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	holder, held := lm.holders[ds]
	return held && holder == sessionID
}

// MarkCandidateDirty records that sessionID has made an uncommitted
// change to the candidate datastore.
func (lm *LockManager) MarkCandidateDirty(sessionID uint64) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.dirty[sessionID] = true
}

// ClearCandidateDirty clears sessionID's dirty flag alone, used by
// discard-changes (spec §4.5: "clear flag for the invoking session").
func (lm *LockManager) ClearCandidateDirty(sessionID uint64) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	delete(lm.dirty, sessionID)
}

// ClearAllCandidateDirty clears every session's dirty flag, used by
// commit (spec §4.5: "clear all candidate-changed flags").
func (lm *LockManager) ClearAllCandidateDirty() {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	lm.dirty = map[uint64]bool{}
}

// IsCandidateDirty reports whether sessionID has pending, uncommitted
// candidate changes.
func (lm *LockManager) IsCandidateDirty(sessionID uint64) bool {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.dirty[sessionID]
}

// AnyCandidateDirty reports whether any session has pending, uncommitted
// candidate changes (spec §4.5: "lock candidate" is rejected if candidate
// differs from running, i.e. any session's candidate-changed flag is
// true), along with one such session's id for error reporting.
func (lm *LockManager) AnyCandidateDirty() (uint64, bool) {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	for id := range lm.dirty {
		return id, true
	}
	return 0, false
}
