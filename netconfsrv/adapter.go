// Package netconfsrv is the NETCONF Transport Adapter (component C11):
// it implements the teacher-derived netconf.SessionCallback interface by
// decoding each RpcRequestMessage's operation element and routing it to
// a dispatch.Dispatcher, then encoding the result back as an
// RpcReplyMessage. It is the one place that still speaks the transport
// package's ad hoc request/reply types; everything behind it speaks
// dispatch's typed request/reply shapes.
package netconfsrv

import (
	"encoding/xml"
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/finlaygreen/netconfd/datanode"
	"github.com/finlaygreen/netconfd/datastore"
	"github.com/finlaygreen/netconfd/dispatch"
	"github.com/finlaygreen/netconfd/editapply"
	"github.com/finlaygreen/netconfd/mgmterror"
	"github.com/finlaygreen/netconfd/netconf/common"
	ncsrv "github.com/finlaygreen/netconfd/netconf/server/netconf"
	"github.com/finlaygreen/netconfd/session"
	"github.com/finlaygreen/netconfd/stateproviders"
)

var log = logrus.WithField("component", "netconfsrv")

// Handler adapts one NETCONF session's RPC traffic onto a Dispatcher. It
// implements ncsrv.SessionCallback.
type Handler struct {
	d         *dispatch.Dispatcher
	liveIDs   *SessionRegistry
	providers *stateproviders.Registry
	sh        *ncsrv.SessionHandler
	sess      *session.State
}

// Factory returns a ncsrv.SessionFactory that binds every new session to
// d, tracking live session ids via liveIDs for the monitoring state
// provider and routing <get> state-only roots through providers
// (component C12, spec §4.2/§4.10).
func Factory(d *dispatch.Dispatcher, liveIDs *SessionRegistry, providers *stateproviders.Registry) ncsrv.SessionFactory {
	return func(sh *ncsrv.SessionHandler) ncsrv.SessionCallback {
		return &Handler{d: d, liveIDs: liveIDs, providers: providers, sh: sh}
	}
}

// SessionRegistry tracks connected session ids for component C12's
// ietf-netconf-monitoring provider.
type SessionRegistry struct {
	mu  sync.Mutex
	ids map[uint64]bool
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{ids: map[uint64]bool{}}
}

func (r *SessionRegistry) add(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids[id] = true
}

func (r *SessionRegistry) remove(id uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ids, id)
}

// Snapshot returns the currently connected session ids.
func (r *SessionRegistry) Snapshot() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]uint64, 0, len(r.ids))
	for id := range r.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (r *Handler) Capabilities() []string {
	return nil // use the transport's default capability set
}

func (r *Handler) HandleRequest(req *ncsrv.RpcRequestMessage) *ncsrv.RpcReplyMessage {
	if r.sess == nil {
		sess, err := r.d.NewSession(r.sh.ID(), nil)
		if err != nil {
			return errorReply(req.MessageID, mgmterror.ToRPCError(err))
		}
		r.sess = sess
		if r.liveIDs != nil {
			r.liveIDs.add(sess.ID)
		}
		log.WithFields(logrus.Fields{
			"session-id":     sess.ID,
			"correlation-id": sess.CorrelationID,
		}).Info("session started")
	}

	if gerr := r.d.CheckExec(r.sess, req.Request.XMLName.Local); gerr != nil {
		return errorReply(req.MessageID, gerr)
	}

	switch req.Request.XMLName.Local {
	case "get":
		return r.handleGet(req)
	case "get-config":
		return r.handleGetConfig(req)
	case "edit-config":
		return r.handleEditConfig(req)
	case "delete-config":
		return r.handleDeleteConfig(req)
	case "lock":
		return r.handleLock(req)
	case "unlock":
		return r.handleUnlock(req)
	case "validate":
		return r.handleValidate(req)
	case "commit":
		return r.handleSimple(req, r.d.Commit)
	case "discard-changes":
		return r.handleSimple(req, r.d.DiscardChanges)
	case "close-session":
		return r.handleCloseSession(req)
	default:
		return errorReply(req.MessageID, mgmterror.NewOperationNotSupported(req.Request.XMLName.Local))
	}
}

func (r *Handler) handleCloseSession(req *ncsrv.RpcRequestMessage) *ncsrv.RpcReplyMessage {
	if r.liveIDs != nil {
		r.liveIDs.remove(r.sess.ID)
	}
	log.WithFields(logrus.Fields{
		"session-id":     r.sess.ID,
		"correlation-id": r.sess.CorrelationID,
	}).Info("session closed")
	return r.handleSimple(req, r.d.CloseSession)
}

func (r *Handler) handleSimple(req *ncsrv.RpcRequestMessage, op func(*session.State) *mgmterror.Error) *ncsrv.RpcReplyMessage {
	if err := op(r.sess); err != nil {
		return errorReply(req.MessageID, err)
	}
	return okReply(req.MessageID)
}

type sourceOrTarget struct {
	Running   *struct{} `xml:"running"`
	Candidate *struct{} `xml:"candidate"`
	Startup   *struct{} `xml:"startup"`
}

func (s sourceOrTarget) datastore() datastore.Datastore {
	switch {
	case s.Candidate != nil:
		return datastore.Candidate
	case s.Startup != nil:
		return datastore.Startup
	default:
		return datastore.Running
	}
}

type filterElem struct {
	Type  string `xml:"type,attr"`
	Inner string `xml:",innerxml"`
}

func unmarshalParams(body string, v interface{}) error {
	wrapped := "<params>" + body + "</params>"
	return xml.Unmarshal([]byte(wrapped), v)
}

func (r *Handler) handleGet(req *ncsrv.RpcRequestMessage) *ncsrv.RpcReplyMessage {
	var params struct {
		Filter       filterElem `xml:"filter"`
		WithDefaults string     `xml:"with-defaults"`
	}
	if err := unmarshalParams(req.Request.Body, &params); err != nil {
		return errorReply(req.MessageID, mgmterror.NewMalformedMessage(err.Error()))
	}
	out, gerr := r.d.Get(r.sess, dispatch.GetRequest{
		FilterType:       params.Filter.Type,
		FilterContent:    params.Filter.Inner,
		WithDefaultsMode: withDefaultsMode(params.WithDefaults),
	})
	if gerr != nil {
		return errorReply(req.MessageID, gerr)
	}
	out += r.stateProviderXML()
	return dataReply(req.MessageID, out)
}

// stateProviderXML renders every state-only root r.providers contributes,
// for splicing alongside the datastore-backed content of a <get> reply
// (component C12's routing, spec §4.2/§4.10 — <get-config> never consults
// providers, since it only ever reads configuration).
func (r *Handler) stateProviderXML() string {
	if r.providers == nil {
		return ""
	}
	items := r.providers.Collect()
	if len(items) == 0 {
		return ""
	}
	tree := datanode.Assemble(items)
	root := &datanode.Node{Children: tree}
	datanode.SortChildren(root)
	return datanode.Render(root.Children)
}

func (r *Handler) handleGetConfig(req *ncsrv.RpcRequestMessage) *ncsrv.RpcReplyMessage {
	var params struct {
		Source       sourceOrTarget `xml:"source"`
		Filter       filterElem     `xml:"filter"`
		WithDefaults string         `xml:"with-defaults"`
	}
	if err := unmarshalParams(req.Request.Body, &params); err != nil {
		return errorReply(req.MessageID, mgmterror.NewMalformedMessage(err.Error()))
	}
	out, gerr := r.d.GetConfig(r.sess, dispatch.GetRequest{
		Source:           params.Source.datastore(),
		FilterType:       params.Filter.Type,
		FilterContent:    params.Filter.Inner,
		WithDefaultsMode: withDefaultsMode(params.WithDefaults),
	})
	if gerr != nil {
		return errorReply(req.MessageID, gerr)
	}
	return dataReply(req.MessageID, out)
}

func (r *Handler) handleEditConfig(req *ncsrv.RpcRequestMessage) *ncsrv.RpcReplyMessage {
	var params struct {
		Target           sourceOrTarget `xml:"target"`
		Config           filterElem     `xml:"config"`
		DefaultOperation string         `xml:"default-operation"`
		TestOption       string         `xml:"test-option"`
		ErrorOption      string         `xml:"error-option"`
	}
	if err := unmarshalParams(req.Request.Body, &params); err != nil {
		return errorReply(req.MessageID, mgmterror.NewMalformedMessage(err.Error()))
	}

	var defOp editapply.Operation
	if params.DefaultOperation != "" {
		if err := defOp.SetDefault(params.DefaultOperation); err != nil {
			return errorReply(req.MessageID, mgmterror.ToRPCError(err))
		}
	} else {
		defOp = editapply.OpMerge
	}
	testOpt := editapply.Set
	if params.TestOption != "" {
		if err := testOpt.Set(params.TestOption); err != nil {
			return errorReply(req.MessageID, mgmterror.ToRPCError(err))
		}
	}
	errOpt := editapply.StopOnError
	if params.ErrorOption != "" {
		if err := errOpt.Set(params.ErrorOption); err != nil {
			return errorReply(req.MessageID, mgmterror.ToRPCError(err))
		}
	}

	if gerr := r.d.EditConfig(r.sess, dispatch.EditConfigRequest{
		Target:      params.Target.datastore(),
		Config:      params.Config.Inner,
		DefaultOp:   defOp,
		TestOption:  testOpt,
		ErrorOption: errOpt,
	}); gerr != nil {
		return errorReply(req.MessageID, gerr)
	}
	return okReply(req.MessageID)
}

func (r *Handler) handleDeleteConfig(req *ncsrv.RpcRequestMessage) *ncsrv.RpcReplyMessage {
	var params struct {
		Target sourceOrTarget `xml:"target"`
	}
	if err := unmarshalParams(req.Request.Body, &params); err != nil {
		return errorReply(req.MessageID, mgmterror.NewMalformedMessage(err.Error()))
	}
	if gerr := r.d.DeleteConfig(r.sess, params.Target.datastore()); gerr != nil {
		return errorReply(req.MessageID, gerr)
	}
	return okReply(req.MessageID)
}

func (r *Handler) handleLock(req *ncsrv.RpcRequestMessage) *ncsrv.RpcReplyMessage {
	var params struct {
		Target sourceOrTarget `xml:"target"`
	}
	if err := unmarshalParams(req.Request.Body, &params); err != nil {
		return errorReply(req.MessageID, mgmterror.NewMalformedMessage(err.Error()))
	}
	if gerr := r.d.Lock(r.sess, params.Target.datastore()); gerr != nil {
		return errorReply(req.MessageID, gerr)
	}
	return okReply(req.MessageID)
}

func (r *Handler) handleUnlock(req *ncsrv.RpcRequestMessage) *ncsrv.RpcReplyMessage {
	var params struct {
		Target sourceOrTarget `xml:"target"`
	}
	if err := unmarshalParams(req.Request.Body, &params); err != nil {
		return errorReply(req.MessageID, mgmterror.NewMalformedMessage(err.Error()))
	}
	if gerr := r.d.Unlock(r.sess, params.Target.datastore()); gerr != nil {
		return errorReply(req.MessageID, gerr)
	}
	return okReply(req.MessageID)
}

func (r *Handler) handleValidate(req *ncsrv.RpcRequestMessage) *ncsrv.RpcReplyMessage {
	var params struct {
		Source sourceOrTarget `xml:"source"`
	}
	if err := unmarshalParams(req.Request.Body, &params); err != nil {
		return errorReply(req.MessageID, mgmterror.NewMalformedMessage(err.Error()))
	}
	if gerr := r.d.Validate(r.sess, params.Source.datastore()); gerr != nil {
		return errorReply(req.MessageID, gerr)
	}
	return okReply(req.MessageID)
}

func withDefaultsMode(s string) datanode.WithDefaultsMode {
	return datanode.WithDefaultsMode(s)
}

func okReply(messageID string) *ncsrv.RpcReplyMessage {
	return &ncsrv.RpcReplyMessage{Ok: true, MessageID: messageID}
}

func dataReply(messageID, innerXML string) *ncsrv.RpcReplyMessage {
	return &ncsrv.RpcReplyMessage{
		MessageID: messageID,
		Data:      ncsrv.ReplyData{Data: innerXML},
	}
}

func errorReply(messageID string, e *mgmterror.Error) *ncsrv.RpcReplyMessage {
	return &ncsrv.RpcReplyMessage{
		MessageID: messageID,
		Errors: []common.RPCError{{
			Type:     string(e.Type),
			Tag:      string(e.Tag),
			Severity: string(e.Severity),
			Path:     e.Path,
			Message:  e.Message,
			Info:     infoXML(e),
		}},
	}
}

func infoXML(e *mgmterror.Error) string {
	if len(e.Info) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("<error-info>")
	for _, info := range e.Info {
		b.WriteString("<")
		b.WriteString(info.Name)
		b.WriteString(">")
		b.WriteString(info.Value)
		b.WriteString("</")
		b.WriteString(info.Name)
		b.WriteString(">")
	}
	b.WriteString("</error-info>")
	return b.String()
}
