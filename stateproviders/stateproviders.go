// Package stateproviders implements component C12: read-only subtrees
// served from in-process Go data rather than the datastore back end,
// per spec §4.2's special-case routing for schema/monitoring state and
// §6's note that these roots are served in-process.
package stateproviders

import (
	"github.com/finlaygreen/netconfd/datanode"
	"github.com/finlaygreen/netconfd/schema"
)

// Registry holds the providers consulted by a <get> RPC for state-only
// data, keyed by the top-level element name they serve.
type Registry struct {
	providers map[string]func() []datanode.PathValue
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{providers: map[string]func() []datanode.PathValue{}}
}

// Register binds topLevelName (e.g. "yang-library") to fn, which
// produces that root's current state on every call.
func (r *Registry) Register(topLevelName string, fn func() []datanode.PathValue) {
	r.providers[topLevelName] = fn
}

// Collect returns the state contributed by every registered provider.
func (r *Registry) Collect() []datanode.PathValue {
	var out []datanode.PathValue
	for _, fn := range r.providers {
		out = append(out, fn()...)
	}
	return out
}

// YangLibraryProvider serves ietf-yang-library content describing the
// modules sch exposes (RFC 7895's yang-library container).
func YangLibraryProvider(sch schema.Schema) func() []datanode.PathValue {
	return func() []datanode.PathValue {
		var out []datanode.PathValue
		for _, m := range sch.Modules() {
			entry := datanode.FormatSegment("module", []datanode.KeyPred{{Leaf: "name", Value: m.Name()}})
			out = append(out,
				datanode.PathValue{Path: []string{"yang-library", "module-set", entry, "name"}, Value: datanode.String(m.Name())},
				datanode.PathValue{Path: []string{"yang-library", "module-set", entry, "namespace"}, Value: datanode.String(m.Namespace())},
			)
		}
		return out
	}
}

// NetconfMonitoringProvider serves a minimal ietf-netconf-monitoring
// sessions list, describing every currently connected session.
func NetconfMonitoringProvider(sessionIDs func() []uint64) func() []datanode.PathValue {
	return func() []datanode.PathValue {
		var out []datanode.PathValue
		for _, id := range sessionIDs() {
			entry := datanode.FormatSegment("session", []datanode.KeyPred{{Leaf: "session-id", Value: datanode.Uint(id).Lexical()}})
			out = append(out, datanode.PathValue{
				Path:  []string{"netconf-state", "sessions", entry, "session-id"},
				Value: datanode.Uint(id),
			})
		}
		return out
	}
}
