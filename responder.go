package snmpengine

// responder.go implements the Command Responder application (RFC 3413
// Section 3.2): it answers Get/GetNext/GetBulk/Set requests a
// PduDispatcher hands it against a MibStore, directly adapted from
// original_source/pysnmp/entity/rfc3413/cmdrsp.py's CommandResponderBase
// and its four PduType-specific subclasses, reworked from Python
// exceptions onto the typed SMIError variants in errors.go.

// MibStore is the external MIB instrumentation surface a Command
// Responder calls through, mirroring cmdrsp.py's readVars/readNextVars/
// writeVars. Each method receives the request's VarBinds and an
// AccessChecker the implementation must call once per candidate VarBind
// before including or rejecting it.
//
// ReadVars answers a GetRequest: an OID with no accessible instance is
// answered in its own VarBind with a NoSuchObject or NoSuchInstance value
// (RFC 1905 Section 4.2.1), not silently skipped.
//
// ReadNextVars answers a GetNextRequest/GetBulkRequest: unlike ReadVars,
// an AccessChecker denial for a candidate instance must not abort the
// walk -- the implementation is expected to catch it internally and
// advance to the next OID in tree order, exactly as cmdrsp.py documents
// ("This will cause MibTree to skip this OID-value"). Reaching the end of
// the tree is reported as an EndOfMibView value, never an error.
//
// WriteVars answers a SetRequest and must implement the RFC 1905 Section
// 4.2.5 two-phase procedure itself (validate every VarBind, then commit
// all of them, rolling every already-committed VarBind back via
// UndoFailedError/CommitFailedError if a later one in the same PDU
// fails) -- a Command Responder only ever calls it once per PDU and
// trusts the result to already reflect that atomicity.
type MibStore interface {
	ReadVars(vbs VarBinds, ac *AccessChecker) (VarBinds, error)
	ReadNextVars(vbs VarBinds, ac *AccessChecker) (VarBinds, error)
	WriteVars(vbs VarBinds, ac *AccessChecker) (VarBinds, error)
}

// AccessChecker closes over one request's VACM coordinates, the Go
// equivalent of the `(acFun, acCtx)` pair cmdrsp.py's __verifyAccess
// closure carries, so a MibStore can ask "may this principal see/set
// this OID" without itself depending on VACM, securityModel, or the v1
// Counter64-skip rule.
type AccessChecker struct {
	vacm          *VACM
	metrics       *metrics
	model         securityModel
	securityName  string
	securityLevel SecurityLevel
	contextName   string
	version       SNMPVersion
	reqType       PduType
}

// NewAccessChecker builds the AccessChecker a CommandResponder would have
// built for one request, so a MibStore implementation (mibtree.Tree and
// others) can be exercised against VACM decisions without going through a
// full PduDispatcher round trip.
func NewAccessChecker(e *Engine, model securityModel, securityName string, level SecurityLevel,
	contextName string, version SNMPVersion, reqType PduType) *AccessChecker {

	return &AccessChecker{
		vacm: e.VACM, metrics: e.Metrics,
		model: model, securityName: securityName,
		securityLevel: level, contextName: contextName,
		version: version, reqType: reqType,
	}
}

// Check verifies oid against VACM for viewType, translating the decision
// into the typed SMIError vocabulary a MibStore raises (RFC 3415 Section
// 4.2's isAccessAllowed mapped onto Design Notes Section 9's tagged error
// variants, the same remap __verifyAccess does from
// error.StatusInformation onto pysnmp.smi.error). For v1 GetNext/GetBulk,
// a Counter64-valued candidate is always rejected so the walk skips it
// instead of terminating on a type it cannot represent (RFC 2576 Section
// 4.1.2.1).
func (c *AccessChecker) Check(idx int, oid Oid, v Variable, viewType ViewType) error {
	if skipForV1GetNext(c.version, c.reqType, v) {
		return NoAccessError(idx)
	}

	err := c.vacm.IsAccessAllowed(c.model, c.securityName, c.securityLevel, viewType, c.contextName, oid)
	if err == nil {
		return nil
	}
	if ve, ok := err.(vacmError); ok {
		switch ve {
		case vacmNoSuchContext:
			c.metrics.snmpUnknownContexts.Inc()
			return GenError(idx)
		case vacmNotInView:
			return NoAccessError(idx)
		}
	}
	return AuthorizationError(idx)
}

// CommandResponder registers itself with a PduDispatcher for
// GetRequest/GetNextRequest/GetBulkRequest/SetRequest and answers each
// against a MibStore.
type CommandResponder struct {
	dispatcher      *PduDispatcher
	vacm            *VACM
	metrics         *metrics
	mibStoreFor     func(contextName string) MibStore
	contextEngineId []byte
}

// commandResponderPduTypes is the set cmdrsp.py's four subclasses
// register across (GetCommandResponder, NextCommandResponder,
// BulkCommandResponder, SetCommandResponder), collapsed into one handler
// and a single switch rather than one goroutine/closure per PduType.
var commandResponderPduTypes = []PduType{GetRequest, GetNextRequest, GetBulkRequest, SetRequest}

// NewCommandResponder registers handlers for the four request PduTypes
// under contextEngineId (nil selects the engine's own id), answering
// against whatever MibStore mibStoreFor returns for a request's
// contextName. cmdrsp.py's CommandResponderBase binds to exactly one
// snmpContext; generalizing to a per-contextName lookup matches RFC 3413's
// vacmContextTable model instead of hard-coding a single backend.
func NewCommandResponder(d *PduDispatcher, e *Engine, contextEngineId []byte,
	mibStoreFor func(contextName string) MibStore) *CommandResponder {

	r := &CommandResponder{
		dispatcher:      d,
		vacm:            e.VACM,
		metrics:         e.Metrics,
		mibStoreFor:     mibStoreFor,
		contextEngineId: contextEngineId,
	}
	d.RegisterContextEngineId(contextEngineId, commandResponderPduTypes, r.processPdu)
	return r
}

// Close unregisters this responder's handlers (CommandResponderBase.close).
func (r *CommandResponder) Close() {
	r.dispatcher.UnregisterContextEngineId(r.contextEngineId, commandResponderPduTypes)
}

// processPdu is the registered ApplicationHandler (cmdrsp.py's
// processPdu): it builds this request's AccessChecker, dispatches to the
// PduType-specific handling, and folds the MibStore result (or typed
// SMIError) down into a single sendRsp call.
func (r *CommandResponder) processPdu(ctx HandlerContext, pdu Pdu) {
	if !readClassType(pdu.PduType()) && !writeClassType(pdu.PduType()) {
		return
	}

	mibStore := r.mibStoreFor(ctx.ContextName)
	ac := &AccessChecker{
		vacm: r.vacm, metrics: r.metrics,
		model: ctx.SecurityModel, securityName: ctx.SecurityName,
		securityLevel: ctx.SecurityLevel, contextName: ctx.ContextName,
		version: ctx.Version, reqType: pdu.PduType(),
	}

	var (
		rspVarBinds VarBinds
		err         error
	)
	switch pdu.PduType() {
	case GetRequest:
		rspVarBinds, err = mibStore.ReadVars(pdu.VarBinds(), ac)
	case GetNextRequest:
		rspVarBinds, err = mibStore.ReadNextVars(pdu.VarBinds(), ac)
	case GetBulkRequest:
		rspVarBinds, err = r.handleBulk(pdu, mibStore, ac)
	case SetRequest:
		rspVarBinds, err = mibStore.WriteVars(pdu.VarBinds(), ac)
	}

	errStatus, errIndex := ErrNoError, 0
	if err != nil {
		if se, ok := err.(*SMIError); ok {
			errStatus, errIndex = errorStatusFor(se.Kind), se.Idx+1
		} else {
			errStatus = ErrGenErr
			if len(pdu.VarBinds()) > 0 {
				errIndex = 1
			}
		}
		rspVarBinds = pdu.VarBinds()
	}

	r.sendRsp(ctx, pdu, errStatus, errIndex, rspVarBinds)
}

// handleBulk implements the RFC 1905 Section 4.2.3 GetBulk N/M/R formula
// (BulkCommandResponder.handleMgmtOperation): the first N requested
// VarBinds are answered non-repeating, the remaining R are walked
// forward up to M times each, with M clamped so the M*R repeating part
// never exceeds maxVarBindsBulk (the N non-repeaters come on top of
// that). Per Design Notes Section 9's decided Open
// Question, the clamp uses truncating integer division, same as the
// Python reference's maxVarBinds/R.
func (r *CommandResponder) handleBulk(pdu Pdu, store MibStore, ac *AccessChecker) (VarBinds, error) {
	reqVarBinds := pdu.VarBinds()

	n := pdu.NonRepeaters()
	if n < 0 {
		n = 0
	}
	if n > len(reqVarBinds) {
		n = len(reqVarBinds)
	}
	m := pdu.MaxRepetitions()
	if m < 0 {
		m = 0
	}
	rCount := len(reqVarBinds) - n
	if rCount < 0 {
		rCount = 0
	}
	if rCount > 0 && m > maxVarBindsBulk/rCount {
		m = maxVarBindsBulk / rCount
	}

	var rspVarBinds VarBinds
	if n > 0 {
		vbs, err := store.ReadNextVars(reqVarBinds[:n], ac)
		if err != nil {
			return nil, err
		}
		rspVarBinds = vbs
	}

	varBinds := reqVarBinds[len(reqVarBinds)-rCount:]
	for m > 0 && rCount > 0 {
		vbs, err := store.ReadNextVars(varBinds, ac)
		if err != nil {
			return nil, err
		}
		rspVarBinds = append(rspVarBinds, vbs...)
		varBinds = rspVarBinds[len(rspVarBinds)-rCount:]
		m--
	}

	if len(rspVarBinds) == 0 {
		return nil, GenError(0)
	}
	return rspVarBinds, nil
}

// sendRsp builds the GetResponse envelope (errorStatus/errorIndex/
// varBinds, ScopedPDU context carried over from the request) and hands it
// to the dispatcher, which applies the SNMPv2->v1 response translation
// when the original request came in as v1 (cmdrsp.py's sendRsp +
// rfc2576.v2ToV1).
func (r *CommandResponder) sendRsp(ctx HandlerContext, reqPdu Pdu, errStatus, errIndex int, varBinds VarBinds) {
	resp := NewPdu(ctx.Version, GetResponse)
	resp.SetVarBinds(varBinds)
	resp.SetErrorStatus(errStatus)
	resp.SetErrorIndex(errIndex)
	if sp, ok := resp.(*ScopedPdu); ok {
		if rp, ok := reqPdu.(*ScopedPdu); ok {
			sp.ContextEngineId = rp.ContextEngineId
			sp.ContextName = rp.ContextName
		}
	}

	// A failure here means stateReference already expired (duplicate
	// send, or the requester timed out and moved on) -- nothing further
	// to report to, since the reply had nowhere left to go.
	_ = r.dispatcher.ReturnResponsePdu(ctx.StateReference, resp)
}
