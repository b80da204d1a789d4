package snmpengine

// notify.go implements the Notification Originator and Notification
// Receiver applications (RFC 3413 Sections 3.3 and 3.4). The Receiver is
// adapted from the vendored snmpgo TrapServer's handle/informResponse,
// generalized to run every inbound trap/inform through the full
// dispatch/VACM pipeline instead of a per-version security-entry lookup.
// The Originator plays the matching client role, resolving the target
// named in each call through the LCD rather than a single fixed peer;
// each call sends to that one target only.

import (
	"net"
	"sync"
	"time"
)

// NotificationListener is the callback a Notification Receiver invokes
// once per accepted trap or inform, the generalized form of
// TrapListener.OnTRAP: Enterprise/GenericTrap/SpecificTrap/
// Uptime are always populated (synthesized via translateTrapV2ToV1 from
// the leading sysUpTime/snmpTrapOID VarBinds this engine represents
// every notification with internally, regardless of wire version), so a
// listener never has to special-case SNMPv1 itself.
type NotificationListener interface {
	OnNotification(req NotificationRequest)
}

// NotificationRequest is what a NotificationListener receives for one
// accepted Trap/SNMPTrapV2/InformRequest.
type NotificationRequest struct {
	Domain       TransportDomain
	Addr         net.Addr
	Version      SNMPVersion
	SecurityName string
	ContextName  string
	PduType      PduType
	Enterprise   Oid
	GenericTrap  int
	SpecificTrap int
	Uptime       uint32
	VarBinds     VarBinds
}

// NotificationReceiver registers with a PduDispatcher for
// Trap/SNMPTrapV2/InformRequest and hands each accepted notification to
// a NotificationListener, acknowledging Informs (RFC 3413 Section
// 3.4's two-step "authenticate, then confirm" procedure, the Go
// equivalent of the vendored snmpgo handle/informResponse pair).
type NotificationReceiver struct {
	dispatcher      *PduDispatcher
	vacm            *VACM
	metrics         *metrics
	listener        NotificationListener
	contextEngineId []byte
}

var notificationReceiverPduTypes = []PduType{Trap, SNMPTrapV2, InformRequest}

// NewNotificationReceiver registers listener under contextEngineId (nil
// selects the engine's own id).
func NewNotificationReceiver(d *PduDispatcher, e *Engine, contextEngineId []byte,
	listener NotificationListener) *NotificationReceiver {

	r := &NotificationReceiver{
		dispatcher:      d,
		vacm:            e.VACM,
		metrics:         e.Metrics,
		listener:        listener,
		contextEngineId: contextEngineId,
	}
	d.RegisterContextEngineId(contextEngineId, notificationReceiverPduTypes, r.processPdu)
	return r
}

// Close unregisters this receiver's handlers.
func (r *NotificationReceiver) Close() {
	r.dispatcher.UnregisterContextEngineId(r.contextEngineId, notificationReceiverPduTypes)
}

// processPdu is the registered ApplicationHandler. Access is checked
// once, against the notification identifier (the value of the PDU's
// snmpTrapOID.0 VarBind) under the notify view (RFC 3413 Section 3.4,
// vacmNotifyViewType): unlike a Command Responder's per-VarBind
// checking, a single notification either fires or it doesn't.
func (r *NotificationReceiver) processPdu(ctx HandlerContext, pdu Pdu) {
	vbs := pdu.VarBinds()
	enterprise, genericTrap, specificTrap, uptime, payload := translateTrapV2ToV1(vbs)

	var notifyOid Oid
	if len(vbs) >= 2 {
		if oidVal, ok := vbs[1].Variable.(*ObjectIdentifier); ok {
			notifyOid = oidVal.Oid
		}
	}

	if err := r.vacm.IsAccessAllowed(ctx.SecurityModel, ctx.SecurityName, ctx.SecurityLevel,
		ViewNotify, ctx.ContextName, notifyOid); err != nil {

		if ve, ok := err.(vacmError); ok && ve == vacmNoSuchContext {
			r.metrics.snmpUnknownContexts.Inc()
		}
		// An unauthorized Inform still gets a Report rather than being
		// dropped silently, so its sender's retry/ack machinery stops
		// retrying instead of timing out (cmdrsp.py's equivalent
		// statusInformation['oid'] path triggers the same Report rather
		// than a bare discard). v1/v2c have no Report PDU to send back,
		// so those are just dropped, same as a silent VACM denial
		// anywhere else in this engine.
		if pdu.PduType() == InformRequest && ctx.Version == V3 {
			r.sendDenialReport(ctx, pdu)
		}
		return
	}

	if r.listener != nil {
		r.listener.OnNotification(NotificationRequest{
			Domain:       ctx.Domain,
			Addr:         ctx.Addr,
			Version:      ctx.Version,
			SecurityName: ctx.SecurityName,
			ContextName:  ctx.ContextName,
			PduType:      pdu.PduType(),
			Enterprise:   enterprise,
			GenericTrap:  genericTrap,
			SpecificTrap: specificTrap,
			Uptime:       uptime,
			VarBinds:     payload,
		})
	}

	if pdu.PduType() == InformRequest {
		r.ack(ctx, pdu)
	}
}

// ack answers an Inform with a GetResponse carrying the request's own
// VarBinds back, exactly as RFC 3416 Section 4.2.7
// requires and the vendored snmpgo informResponse builds it.
func (r *NotificationReceiver) ack(ctx HandlerContext, reqPdu Pdu) {
	resp := NewPduWithVarBinds(ctx.Version, GetResponse, reqPdu.VarBinds())
	if sp, ok := resp.(*ScopedPdu); ok {
		if rp, ok := reqPdu.(*ScopedPdu); ok {
			sp.ContextEngineId = rp.ContextEngineId
			sp.ContextName = rp.ContextName
		}
	}
	_ = r.dispatcher.ReturnResponsePdu(ctx.StateReference, resp)
}

// sendDenialReport answers a VACM-denied v3 Inform with an empty Report
// rather than the usual GetResponse, so the originator's retry budget
// stops immediately instead of running out the clock on a request that
// will never succeed.
func (r *NotificationReceiver) sendDenialReport(ctx HandlerContext, reqPdu Pdu) {
	resp := NewPdu(ctx.Version, Report)
	if sp, ok := resp.(*ScopedPdu); ok {
		if rp, ok := reqPdu.(*ScopedPdu); ok {
			sp.ContextEngineId = rp.ContextEngineId
			sp.ContextName = rp.ContextName
		}
	}
	_ = r.dispatcher.ReturnResponsePdu(ctx.StateReference, resp)
}

// NotificationOriginator sends each trap or inform to the one target
// named in the call, resolved through an LCD's snmpTargetAddrTable,
// caching one Generator per target and reusing it across calls rather than dialing a fresh
// connection per send.
type NotificationOriginator struct {
	dispatcher *PduDispatcher
	engine     *Engine
	lcd        *LCD

	mu         sync.Mutex
	generators map[string]*Generator
}

// NewNotificationOriginator builds an Originator that resolves target
// names against lcd.
func NewNotificationOriginator(d *PduDispatcher, e *Engine, lcd *LCD) *NotificationOriginator {
	return &NotificationOriginator{
		dispatcher: d,
		engine:     e,
		lcd:        lcd,
		generators: make(map[string]*Generator),
	}
}

// domainForNetwork maps an LCD TargetAddr's administrative "domain"
// string onto the TransportDomain a Dispatcher is actually registered
// under, the Go equivalent of the network-string switch
// Arguments.Network feeds into net.Dial.
func domainForNetwork(network string) (TransportDomain, error) {
	switch network {
	case "", "udp", "udp4":
		return DomainUDP, nil
	case "udp6":
		return DomainUDP6, nil
	case "unixgram", "unix":
		return DomainUnix, nil
	default:
		return "", &ArgumentError{Value: network, Message: "Unknown transport domain"}
	}
}

// generatorFor resolves targetName against the LCD on first use and
// caches the resulting Generator for subsequent sends.
func (o *NotificationOriginator) generatorFor(targetName string) (*Generator, error) {
	o.mu.Lock()
	if g, ok := o.generators[targetName]; ok {
		o.mu.Unlock()
		return g, nil
	}
	o.mu.Unlock()

	addr, params, sec, err := o.lcd.Resolve(targetName)
	if err != nil {
		return nil, err
	}
	domain, err := domainForNetwork(addr.Domain)
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(addr.Timeout) * time.Millisecond
	args := GeneratorArguments{
		Version:          params.Version,
		Domain:           domain,
		Address:          addr.Address,
		Timeout:          timeout,
		Retries:          uint(addr.RetryCount),
		Community:        sec.Community,
		UserName:         sec.UserName,
		SecurityLevel:    params.SecurityLevel,
		AuthPassword:     sec.AuthPassword,
		AuthProtocol:     sec.AuthProtocol,
		PrivPassword:     sec.PrivPassword,
		PrivProtocol:     sec.PrivProtocol,
		SecurityEngineId: sec.SecurityEngineId,
	}
	g, err := NewGenerator(o.dispatcher, args)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.generators[targetName] = g
	o.mu.Unlock()
	return g, nil
}

// uptimeTicks is the engine's running time in TimeTicks (hundredths of a
// second, RFC 1213's sysUpTime unit) for stamping an outgoing
// notification's leading sysUpTime.0 VarBind.
func (o *NotificationOriginator) uptimeTicks() uint32 {
	return uint32(o.engine.Time() * 100)
}

// SendTrap sends an unconfirmed notification identified by trapOid to
// targetName, RFC 2576-translating it down to a legacy v1 Trap-PDU when
// the resolved target turns out to be SNMPv1.
func (o *NotificationOriginator) SendTrap(targetName string, trapOid Oid, varBinds VarBinds) error {
	gen, err := o.generatorFor(targetName)
	if err != nil {
		return err
	}

	vbs := make(VarBinds, 0, len(varBinds)+2)
	vbs = append(vbs,
		VarBind{Oid: oidSysUpTime, Variable: NewTimeTicks(o.uptimeTicks())},
		VarBind{Oid: oidSnmpTrapOID, Variable: NewObjectIdentifier(trapOid)},
	)
	vbs = append(vbs, varBinds...)

	if gen.args.Version == V1 {
		enterprise, genericTrap, specificTrap, uptime, rest := translateTrapV2ToV1(vbs)
		return o.sendV1Trap(gen, enterprise, genericTrap, specificTrap, uptime, rest)
	}
	return gen.V2Trap(vbs)
}

// SendV1Trap sends a legacy RFC 1157 Trap-PDU (enterprise OID plus
// generic/specific trap codes) to targetName, which must resolve to an
// SNMPv1 target.
func (o *NotificationOriginator) SendV1Trap(targetName string, enterprise Oid,
	genericTrap, specificTrap int, varBinds VarBinds) error {

	gen, err := o.generatorFor(targetName)
	if err != nil {
		return err
	}
	if gen.args.Version != V1 {
		return &ArgumentError{Value: gen.args.Version, Message: "SendV1Trap requires a v1 target"}
	}
	return o.sendV1Trap(gen, enterprise, genericTrap, specificTrap, o.uptimeTicks(), varBinds)
}

func (o *NotificationOriginator) sendV1Trap(gen *Generator, enterprise Oid,
	genericTrap, specificTrap int, uptime uint32, varBinds VarBinds) error {

	vbs := translateTrapV1ToV2(enterprise, genericTrap, specificTrap, uptime, varBinds)
	_, err := gen.sendPdu(NewPduWithVarBinds(V1, Trap, vbs))
	return err
}

// SendInform sends a confirmed notification identified by trapOid to
// targetName and blocks for its acknowledgement (or a TimeoutError,
// driven by the same dispatcher retry machinery a Command Generator
// uses), per RFC 3413 Section 3.3's InformRequest path. v1 has no
// Inform PDU.
func (o *NotificationOriginator) SendInform(targetName string, trapOid Oid, varBinds VarBinds) error {
	gen, err := o.generatorFor(targetName)
	if err != nil {
		return err
	}
	if gen.args.Version < V2c {
		return &ArgumentError{Value: gen.args.Version, Message: "InformRequest requires v2c or v3"}
	}

	vbs := make(VarBinds, 0, len(varBinds)+2)
	vbs = append(vbs,
		VarBind{Oid: oidSysUpTime, Variable: NewTimeTicks(o.uptimeTicks())},
		VarBind{Oid: oidSnmpTrapOID, Variable: NewObjectIdentifier(trapOid)},
	)
	vbs = append(vbs, varBinds...)
	return gen.InformRequest(vbs)
}
