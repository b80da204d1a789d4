package snmpengine

import (
	"net"
	"sync"
	"time"
)

// HandlerContext carries the per-message context an ApplicationHandler
// needs to act on a Pdu and, eventually, hand a response back to
// ReturnResponsePdu: the stateReference ties the two calls together (RFC
// 3412 Section 3.2's Data Model), everything else is what a Command
// Responder needs to run VACM and build its reply envelope.
type HandlerContext struct {
	StateReference int32
	Domain         TransportDomain
	Addr           net.Addr
	Version        SNMPVersion
	SecurityModel  securityModel
	SecurityName   string
	SecurityLevel  SecurityLevel
	ContextName    string
}

// ApplicationHandler is a registered application (Command Responder,
// Notification Receiver, ...): the PduDispatcher hands it a validated,
// access-checked Pdu, and it eventually calls ReturnResponsePdu with the
// same StateReference to send a reply, if any is owed.
type ApplicationHandler func(ctx HandlerContext, pdu Pdu)

// responderState is what processPdu stashes under a stateReference so
// that a later ReturnResponsePdu call can rebuild the reply envelope: the
// inbound message's own framing and the security principal that
// validated it. version is what ReturnResponsePdu checks to decide
// whether the reply needs translating back down to SNMPv1 (RFC 2576
// Section 4.1.1).
type responderState struct {
	domain  TransportDomain
	addr    net.Addr
	version SNMPVersion
	mp      messageProcessing
	sec     security
	recvMsg message
	created time.Time
}

// generatorState is what SendPdu stashes under a sendPduHandle while a
// confirmed request is outstanding: enough to resend on timeout (new
// msgID, same requestID, per RFC 3412 Section 7.1) and enough to hand the
// eventual response, or a TimeoutError, back to the caller.
type generatorState struct {
	mu sync.Mutex

	domain  TransportDomain
	addr    net.Addr
	version SNMPVersion
	mp      messageProcessing
	sec     security
	args    RequestArgs
	pdu     Pdu
	sendMsg message

	retries int
	timeout time.Duration
	timer   *time.Timer
	cb      func(Pdu, error)
	done    bool
}

// handlerKey selects the registered ApplicationHandler for an inbound
// Pdu: the context it was addressed to, plus its PduType. Per-context
// registration is what lets a responder run several named contexts (RFC
// 3411 Section 3.3.1's contextEngineID/contextName pair) from one engine.
type handlerKey struct {
	contextEngineId string
	pduType         PduType
}

// PduDispatcher is the Message & PDU Dispatcher (RFC 3412 Section 4):
// it turns inbound octets into validated Pdus routed to
// the right ApplicationHandler, turns a Pdu a handler (or a command
// generator) hands it into outbound octets, and generates Report PDUs
// when a Security Model rejects a reportable message.
type PduDispatcher struct {
	engine    *Engine
	transport *Dispatcher

	handlersLock sync.RWMutex
	handlers     map[handlerKey]ApplicationHandler

	pending   sync.Map // int32 stateReference -> *responderState
	callbacks sync.Map // int32 sendPduHandle   -> *generatorState
}

// NewPduDispatcher wires a PduDispatcher to its Engine (for VACM-free
// bookkeeping: engineID, metrics, logging) and the Transport Dispatcher
// it reads inbound octets from and writes outbound ones to. The caller
// must still call transport.RunDispatcher to start the read loops, after
// passing d.HandleMessage as the RecvFunc.
func NewPduDispatcher(engine *Engine, transport *Dispatcher) *PduDispatcher {
	return &PduDispatcher{
		engine:    engine,
		transport: transport,
		handlers:  make(map[handlerKey]ApplicationHandler),
	}
}

// RegisterContextEngineId installs handler for every PduType in types,
// scoped to contextEngineId (empty means "this engine's own id"). A
// second registration for the same (contextEngineId, PduType) replaces
// the first.
func (d *PduDispatcher) RegisterContextEngineId(contextEngineId []byte, types []PduType, handler ApplicationHandler) {
	if len(contextEngineId) == 0 {
		contextEngineId = d.engine.EngineId()
	}
	key := string(contextEngineId)

	d.handlersLock.Lock()
	defer d.handlersLock.Unlock()
	for _, t := range types {
		d.handlers[handlerKey{key, t}] = handler
	}
}

// UnregisterContextEngineId removes any handler registered for
// (contextEngineId, PduType) pairs in types.
func (d *PduDispatcher) UnregisterContextEngineId(contextEngineId []byte, types []PduType) {
	if len(contextEngineId) == 0 {
		contextEngineId = d.engine.EngineId()
	}
	key := string(contextEngineId)

	d.handlersLock.Lock()
	defer d.handlersLock.Unlock()
	for _, t := range types {
		delete(d.handlers, handlerKey{key, t})
	}
}

func (d *PduDispatcher) lookupHandler(contextEngineId []byte, t PduType) (ApplicationHandler, bool) {
	d.handlersLock.RLock()
	defer d.handlersLock.RUnlock()
	h, ok := d.handlers[handlerKey{string(contextEngineId), t}]
	return h, ok
}

// SendPdu frames pdu through the version-appropriate messageProcessing
// model and sec, then writes it to domain/addr. When expectResponse is
// true, the dispatcher keeps pdu's requestID alive for up to retries
// retransmissions (each with a fresh msgID, RFC 3412 Section 7.1 step 5)
// until either a matching response/Report arrives via processResponsePdu
// or timeout*1 (first attempt) .. timeout*(retries+1) elapses, at which
// point cb is called once with a TimeoutError. When expectResponse is
// false (traps, and responses the caller does not want acked), cb may be
// nil and is never invoked.
func (d *PduDispatcher) SendPdu(domain TransportDomain, addr net.Addr, version SNMPVersion,
	sec security, args RequestArgs, pdu Pdu, expectResponse bool,
	timeout time.Duration, retries int, cb func(Pdu, error)) (int32, error) {

	mp := newMessageProcessing(version)
	msg, err := mp.PrepareOutgoingMessage(sec, pdu, &args)
	if err != nil {
		return 0, err
	}

	handle := genSendPduHandle()
	var gs *generatorState
	if expectResponse {
		gs = &generatorState{
			domain: domain, addr: addr, version: version,
			mp: mp, sec: sec, args: args, pdu: pdu, sendMsg: msg,
			retries: retries, timeout: timeout, cb: cb,
		}
		d.callbacks.Store(handle, gs)
	}

	if err := d.transmit(domain, addr, msg); err != nil {
		if gs != nil {
			d.callbacks.Delete(handle)
		}
		return 0, err
	}

	if gs != nil {
		gs.timer = time.AfterFunc(timeout, func() { d.handleTimeout(handle) })
	}
	return handle, nil
}

func (d *PduDispatcher) transmit(domain TransportDomain, addr net.Addr, msg message) error {
	data, err := msg.Marshal()
	if err != nil {
		return err
	}
	if err := d.transport.SendMessage(domain, addr, data); err != nil {
		return err
	}
	d.engine.Metrics.messagesSent.Inc()
	return nil
}

// handleTimeout fires from a generatorState's timer. It either resends
// (same requestID, new msgID, new security framing since USM auth covers
// the msgID) or, once retries are exhausted, delivers TimeoutError.
func (d *PduDispatcher) handleTimeout(handle int32) {
	v, ok := d.callbacks.Load(handle)
	if !ok {
		return
	}
	gs := v.(*generatorState)

	gs.mu.Lock()
	if gs.done {
		gs.mu.Unlock()
		return
	}
	if gs.retries <= 0 {
		gs.done = true
		gs.mu.Unlock()
		d.callbacks.Delete(handle)
		if gs.cb != nil {
			gs.cb(nil, TimeoutError)
		}
		return
	}
	gs.retries--
	gs.mu.Unlock()

	msg, err := gs.mp.PrepareOutgoingMessage(gs.sec, gs.pdu, &gs.args)
	if err != nil {
		d.finishGenerator(handle, gs, nil, err)
		return
	}
	gs.mu.Lock()
	gs.sendMsg = msg
	gs.mu.Unlock()

	if err := d.transmit(gs.domain, gs.addr, msg); err != nil {
		d.finishGenerator(handle, gs, nil, err)
		return
	}
	gs.timer = time.AfterFunc(gs.timeout, func() { d.handleTimeout(handle) })
}

func (d *PduDispatcher) finishGenerator(handle int32, gs *generatorState, pdu Pdu, err error) {
	gs.mu.Lock()
	if gs.done {
		gs.mu.Unlock()
		return
	}
	gs.done = true
	if gs.timer != nil {
		gs.timer.Stop()
	}
	gs.mu.Unlock()

	d.callbacks.Delete(handle)
	if gs.cb != nil {
		gs.cb(pdu, err)
	}
}

// ReturnResponsePdu is how an ApplicationHandler replies to a request it
// received with the given stateReference. Calling it twice, or with an
// unknown/expired stateReference, sends nothing and returns an
// ArgumentError: the responder-side state machine only accepts one
// RESPONDING transition per request (RFC 3412 Section 3.2).
func (d *PduDispatcher) ReturnResponsePdu(stateReference int32, pdu Pdu) error {
	v, ok := d.pending.LoadAndDelete(stateReference)
	if !ok {
		return &ArgumentError{Value: stateReference, Message: "Unknown or expired stateReference"}
	}
	rs := v.(*responderState)

	if rs.version == V1 && pdu.PduType() == GetResponse {
		if p, ok := pdu.(*PduV1); ok {
			translateResponseV2ToV1(p)
		}
	}

	msg, err := rs.mp.PrepareResponseMessage(rs.sec, pdu, rs.recvMsg)
	if err != nil {
		return err
	}
	return d.transmit(rs.domain, rs.addr, msg)
}

// HandleMessage is the Dispatcher.RecvFunc a PduDispatcher hands to the
// Transport Dispatcher: it decodes the envelope, routes it as a response
// (processResponsePdu) or a new request/notification (processPdu), and
// never lets a malformed or unauthenticated datagram reach an
// ApplicationHandler — the dispatcher's core invariant.
func (d *PduDispatcher) HandleMessage(domain TransportDomain, addr net.Addr, data []byte) {
	d.engine.Metrics.messagesReceived.Inc()

	version, err := peekVersion(data)
	if err != nil {
		d.engine.Log.Printf("snmpengine: dropping undecodable message from %s: %v", addr, err)
		return
	}

	mp := newMessageProcessing(version)
	recvMsg := newMessageWithPdu(version, NewPdu(version, GetResponse))
	if _, err := recvMsg.Unmarshal(data); err != nil {
		d.engine.Log.Printf("snmpengine: dropping unparseable message from %s: %v", addr, err)
		return
	}

	d.route(domain, addr, version, mp, recvMsg)
}

// route decides whether an inbound message is a reply to an outstanding
// SendPdu or a fresh request/notification, before running any security
// check. Correlation has to happen on whatever is visible without
// decrypting the Pdu: for v3 that is the header's MessageId (never
// privacy-protected, RFC 3412 Section 6.3); for v1/v2c, which never
// encrypts, the Pdu itself is already plaintext so its requestID can be
// read directly.
func (d *PduDispatcher) route(domain TransportDomain, addr net.Addr, version SNMPVersion,
	mp messageProcessing, recvMsg message) {

	if m3, ok := recvMsg.(*messageV3); ok {
		sec := d.lookupSecurity(recvMsg)
		if sec == nil {
			d.engine.Metrics.snmpSilentDrops.Inc()
			return
		}
		if handle, gs, ok := d.findGeneratorByMessageId(m3.MessageId); ok {
			d.processResponsePdu(handle, gs, mp, sec, recvMsg)
			return
		}
		d.processPdu(domain, addr, version, mp, sec, recvMsg)
		return
	}

	if _, err := recvMsg.Pdu().Unmarshal(recvMsg.PduBytes()); err != nil {
		d.engine.Log.Printf("snmpengine: dropping unparseable Pdu from %s: %v", addr, err)
		return
	}

	sec := d.lookupSecurity(recvMsg)
	if sec == nil {
		d.engine.Metrics.snmpSilentDrops.Inc()
		return
	}

	innerType := recvMsg.Pdu().PduType()
	if innerType == GetResponse || innerType == Report {
		if handle, gs, ok := d.findGeneratorByRequestId(recvMsg.Pdu().RequestId()); ok {
			d.processResponsePdu(handle, gs, mp, sec, recvMsg)
		}
		return
	}
	d.processPdu(domain, addr, version, mp, sec, recvMsg)
}

// processResponsePdu validates an inbound GetResponse/Report against the
// generatorState a prior SendPdu left outstanding and delivers it to the
// waiting callback. A usmStatsNotInTimeWindows Report triggers one-shot
// resynchronization and is not itself delivered as an error to the
// caller's own retries budget; RFC 3414 Section 3.2 step 7b leaves that
// resync to the sender, which here is this dispatcher.
func (d *PduDispatcher) processResponsePdu(handle int32, gs *generatorState,
	mp messageProcessing, sec security, recvMsg message) {

	pdu, err := mp.PrepareDataElements(sec, recvMsg, gs.sendMsg)
	if err != nil {
		var rerr *UsmReportError
		if asUsmReportError(err, &rerr) && rerr.Kind == usmStatsNotInTimeWindow {
			// The agent told us it resynchronized; handleTimeout's own
			// retry path will pick up the corrected boots/time next pass.
			return
		}
		d.finishGenerator(handle, gs, nil, &ResponseError{Cause: err, Message: "Failed to process response"})
		return
	}

	if pdu.PduType() == Report {
		d.finishGenerator(handle, gs, nil, &ResponseError{
			Message: "Received Report", Detail: pdu.String()})
		return
	}

	d.finishGenerator(handle, gs, pdu, nil)
}

func asUsmReportError(err error, target **UsmReportError) bool {
	for err != nil {
		if ue, ok := err.(*UsmReportError); ok {
			*target = ue
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// findGeneratorByMessageId locates the v3 generatorState a SendPdu call
// (or one of its retries) registered under the given msgID.
func (d *PduDispatcher) findGeneratorByMessageId(msgId int32) (int32, *generatorState, bool) {
	var found int32
	var state *generatorState
	d.callbacks.Range(func(k, v interface{}) bool {
		gs := v.(*generatorState)
		if sm, ok := gs.sendMsg.(*messageV3); ok && sm.MessageId == msgId {
			found, state = k.(int32), gs
			return false
		}
		return true
	})
	return found, state, state != nil
}

// findGeneratorByRequestId locates the v1/v2c generatorState a SendPdu
// call registered under the given requestID; there is no msgID to key
// on, so this scans the (normally tiny) set of outstanding generators.
func (d *PduDispatcher) findGeneratorByRequestId(reqId int32) (int32, *generatorState, bool) {
	var found int32
	var state *generatorState
	d.callbacks.Range(func(k, v interface{}) bool {
		gs := v.(*generatorState)
		if _, ok := gs.sendMsg.(*messageV3); ok {
			return true
		}
		if gs.sendMsg.Pdu().RequestId() == reqId {
			found, state = k.(int32), gs
			return false
		}
		return true
	})
	return found, state, state != nil
}

// peekVersion reads just the leading INTEGER of the outer message
// SEQUENCE to learn which messageProcessing model should parse the rest,
// without committing to a full decode (RFC 3412 Section 6's msgVersion
// is the one field every SNMP version agrees on the framing of).
func peekVersion(data []byte) (SNMPVersion, error) {
	content, _, err := berDecodeSequence(data, classUniversal, tagSequence)
	if err != nil {
		return 0, err
	}
	v, _, err := berDecodeInt(content, tagInteger)
	if err != nil {
		return 0, err
	}
	return SNMPVersion(v), nil
}

// processPdu validates an inbound request/notification through its
// Security Model, stashes a responderState under a fresh stateReference
// (so the eventual ApplicationHandler can reply via ReturnResponsePdu),
// and routes the decoded Pdu to whichever handler is registered for its
// contextEngineID. A security failure that requested a Report (the
// inbound message's reportable flag was set) gets one built and sent
// back; one that didn't is silently dropped, per RFC 3412 Section 7.2.
func (d *PduDispatcher) processPdu(domain TransportDomain, addr net.Addr, version SNMPVersion,
	mp messageProcessing, sec security, recvMsg message) {

	pdu, err := mp.PrepareDataElements(sec, recvMsg, nil)
	if err != nil {
		d.maybeReport(domain, addr, version, mp, sec, recvMsg, err)
		return
	}

	contextEngineId := d.engine.EngineId()
	var contextName string
	if sp, ok := pdu.(*ScopedPdu); ok {
		if len(sp.ContextEngineId) > 0 {
			contextEngineId = sp.ContextEngineId
		}
		contextName = string(sp.ContextName)
	}

	handler, ok := d.lookupHandler(contextEngineId, pdu.PduType())
	if !ok {
		d.engine.Metrics.snmpUnknownContexts.Inc()
		if confirmedType(pdu.PduType()) {
			d.sendErrorResponse(domain, addr, version, mp, sec, recvMsg, pdu, ErrGenErr)
		}
		return
	}

	// Only confirmed requests ever get a reply, so only they get a
	// pending entry: stashing one for every unconfirmed trap/notify
	// would leak a responderState per datagram forever.
	var stateRef int32
	if confirmedType(pdu.PduType()) {
		stateRef = genStateReference()
		d.pending.Store(stateRef, &responderState{
			domain: domain, addr: addr, version: version,
			mp: mp, sec: sec, recvMsg: recvMsg, created: time.Now(),
		})
	}

	ctx := HandlerContext{
		StateReference: stateRef,
		Domain:         domain,
		Addr:           addr,
		Version:        version,
		ContextName:    contextName,
	}
	if m3, ok := recvMsg.(*messageV3); ok {
		ctx.SecurityModel = securityUsm
		ctx.SecurityName = sec.Identifier()
		if m3.Privacy() {
			ctx.SecurityLevel = AuthPriv
		} else if m3.Authentication() {
			ctx.SecurityLevel = AuthNoPriv
		}
	} else {
		ctx.SecurityModel = securityCommunity
		ctx.SecurityName = sec.Identifier()
	}

	handler(ctx, pdu)
}

// sendErrorResponse builds and sends a plain GetResponse carrying the
// given errorStatus (genErr from the no-handler path) and errorIndex 0
// when no handler is registered for a confirmed request's context, the same "no such context" failure RFC 3413
// Section 3.2 expects a Command Responder application to report on the
// dispatcher's behalf.
func (d *PduDispatcher) sendErrorResponse(domain TransportDomain, addr net.Addr, version SNMPVersion,
	mp messageProcessing, sec security, recvMsg message, reqPdu Pdu, errStatus int) {

	resp := NewPdu(version, GetResponse)
	resp.SetVarBinds(reqPdu.VarBinds())
	resp.SetErrorStatus(errStatus)
	resp.SetErrorIndex(0)
	if sp, ok := reqPdu.(*ScopedPdu); ok {
		resp.(*ScopedPdu).ContextEngineId = sp.ContextEngineId
		resp.(*ScopedPdu).ContextName = sp.ContextName
	}

	msg, err := mp.PrepareResponseMessage(sec, resp, recvMsg)
	if err != nil {
		d.engine.Log.Printf("snmpengine: failed to build error response for %s: %v", addr, err)
		return
	}
	if err := d.transmit(domain, addr, msg); err != nil {
		d.engine.Log.Printf("snmpengine: failed to send error response to %s: %v", addr, err)
	}
}

// maybeReport turns a ProcessIncomingMessage/PrepareDataElements failure
// into a Report PDU when the inbound message asked for one (v3's
// reportable flag), per RFC 3412 Section 7.2's usmStats* Report
// generation rule. Anything else (malformed message, community
// mismatch, v1/v2c has no Report mechanism at all) is silently dropped.
func (d *PduDispatcher) maybeReport(domain TransportDomain, addr net.Addr, version SNMPVersion,
	mp messageProcessing, sec security, recvMsg message, cause error) {

	m3, ok := recvMsg.(*messageV3)
	if !ok || !m3.Reportable() {
		d.engine.Metrics.snmpSilentDrops.Inc()
		return
	}

	var rerr *UsmReportError
	if !asUsmReportError(cause, &rerr) {
		d.engine.Metrics.snmpSilentDrops.Inc()
		return
	}

	counter := d.engine.Metrics.bumpUsmStat(rerr.Kind)
	vb := VarBind{Oid: rerr.Kind.CounterOid(), Variable: NewCounter32(counter)}

	reportPdu := &ScopedPdu{
		pduCore:         pduCore{pduType: Report, varBinds: VarBinds{vb}},
		ContextEngineId: d.engine.EngineId(),
	}

	msg, err := mp.PrepareResponseMessage(sec, reportPdu, recvMsg)
	if err != nil {
		d.engine.Log.Printf("snmpengine: failed to build Report for %s: %v", addr, err)
		return
	}
	if err := d.transmit(domain, addr, msg); err != nil {
		d.engine.Log.Printf("snmpengine: failed to send Report to %s: %v", addr, err)
	}
}

// lookupSecurity resolves the security principal an inbound message
// claims: for community-based messages this means finding (or
// synthesizing) a community entry by name; for USM it means the engine's
// registered user matching engineID+userName, so boots/time state
// persists across requests from the same principal.
func (d *PduDispatcher) lookupSecurity(recvMsg message) security {
	if sec := d.engine.Security.Lookup(recvMsg); sec != nil {
		return sec
	}

	switch m := recvMsg.(type) {
	case *messageV1:
		// No registered entry named by this exact community/auth
		// combination (securityMap.Lookup's key includes ":auth" for
		// USM only, so this branch only ever runs for community). We
		// still accept any known community name from the LCD so a
		// responder configured via SecurityEntry rows need not be
		// pre-registered into the live securityMap by hand.
		for _, name := range d.knownCommunities() {
			if name == string(m.Community) {
				sec := &community{Community: m.Community}
				d.engine.Security.Set(sec)
				return sec
			}
		}
		return nil
	case *messageV3:
		if len(m.UserName) == 0 {
			// msgUserName empty: discovery probe, let a zero-value usm
			// principal through so ProcessIncomingMessage can report
			// usmStatsUnknownEngineIDs/usmStatsUnknownUserNames as
			// appropriate instead of being silently dropped here.
			return &usm{AuthEngineId: d.engine.EngineId()}
		}
		for _, entry := range d.knownUsmUsers() {
			if entry.UserName == string(m.UserName) {
				sec := newSecurityFromEntry(&entry)
				if u, ok := sec.(*usm); ok {
					if len(u.AuthEngineId) == 0 {
						u.SetAuthEngineId(d.engine.EngineId())
					}
				}
				d.engine.Security.Set(sec)
				return sec
			}
		}
		return nil
	default:
		return nil
	}
}

// knownCommunities lists the community strings this engine is configured
// to accept as an agent, from the LCD's security entries.
func (d *PduDispatcher) knownCommunities() []string {
	var out []string
	for _, e := range d.engine.LCD.ListSecurityEntries() {
		if e.Version == V1 || e.Version == V2c {
			out = append(out, e.Community)
		}
	}
	return out
}

// knownUsmUsers lists the USM principals this engine is configured to
// accept as an agent, from the LCD's security entries.
func (d *PduDispatcher) knownUsmUsers() []SecurityEntry {
	var out []SecurityEntry
	for _, e := range d.engine.LCD.ListSecurityEntries() {
		if e.Version == V3 {
			out = append(out, e)
		}
	}
	return out
}
