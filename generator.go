package snmpengine

// generator.go implements the Command Generator application (RFC 3413
// Section 3.1): a synchronous SNMP client API adapted from snmpgo.go's
// SNMP/Arguments, rebuilt on top of PduDispatcher.SendPdu's callback
// mechanism instead of a blocking net.Conn per request -- the
// PduDispatcher, not each Generator, owns the shared read loop a Command
// Responder running in the same process also needs to receive on.

import (
	"fmt"
	"math"
	"net"
	"time"
)

// GeneratorArguments is the per-target configuration snmpgo.go's
// Arguments carried for a whole connection, minus the dialing
// parameters a shared PduDispatcher transport makes unnecessary.
type GeneratorArguments struct {
	Version          SNMPVersion
	Domain           TransportDomain // default DomainUDP
	Address          string          // resolved against the domain's transport
	Timeout          time.Duration   // default 5s
	Retries          uint            // retransmissions per confirmed request
	MessageMaxSize   int             // default 1400
	Community        string          // V1/V2c
	UserName         string          // V3
	SecurityLevel    SecurityLevel   // V3
	AuthPassword     string
	AuthProtocol     AuthProtocol
	PrivPassword     string
	PrivProtocol     PrivProtocol
	SecurityEngineId string
	ContextEngineId  string
	ContextName      string
}

func (a *GeneratorArguments) setDefault() {
	if a.Domain == "" {
		a.Domain = DomainUDP
	}
	if a.Timeout <= 0 {
		a.Timeout = timeoutDefault
	}
	if a.MessageMaxSize == 0 {
		a.MessageMaxSize = msgSizeDefault
	}
}

func (a *GeneratorArguments) validate() error {
	if v := a.Version; v != V1 && v != V2c && v != V3 {
		return &ArgumentError{Value: v, Message: "Unknown SNMP Version"}
	}
	// RFC 3412 Section 6
	if m := a.MessageMaxSize; (m != 0 && m < msgSizeMinimum) || m > math.MaxInt32 {
		return &ArgumentError{Value: m, Message: fmt.Sprintf(
			"MessageMaxSize is range %d..%d", msgSizeMinimum, math.MaxInt32)}
	}
	if a.Version == V3 {
		// RFC 3414 Section 5
		if l := len(a.UserName); l < 1 || l > 32 {
			return &ArgumentError{Value: a.UserName, Message: "UserName length is range 1..32"}
		}
		if a.SecurityLevel > NoAuthNoPriv {
			// RFC 3414 Section 11.2
			if len(a.AuthPassword) < 8 {
				return &ArgumentError{Value: a.AuthPassword, Message: "AuthPassword is at least 8 characters in length"}
			}
			if p := a.AuthProtocol; p != Md5 && p != Sha {
				return &ArgumentError{Value: a.AuthProtocol, Message: "Illegal AuthProtocol"}
			}
		}
		if a.SecurityLevel > AuthNoPriv {
			if len(a.PrivPassword) < 8 {
				return &ArgumentError{Value: a.PrivPassword, Message: "PrivPassword is at least 8 characters in length"}
			}
			if p := a.PrivProtocol; p != Des && p != Aes {
				return &ArgumentError{Value: a.PrivProtocol, Message: "Illegal PrivProtocol"}
			}
		}
		if a.SecurityEngineId != "" {
			if _, err := engineIdToBytes(stripHexPrefix(a.SecurityEngineId)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (a *GeneratorArguments) String() string { return escape(a) }

// Generator is a Command Generator bound to one target (RFC 3413's
// sendPdu application, RFC 3412 Section 7.1's "applications" actor),
// sending through a shared PduDispatcher rather than owning a socket.
type Generator struct {
	dispatcher *PduDispatcher
	args       GeneratorArguments
	addr       net.Addr
	sec        security
}

// NewGenerator resolves args.Address against the Transport registered for
// args.Domain and builds the security principal args describes, the
// equivalent of snmpgo.go's NewSNMP plus the dialing half of Open.
func NewGenerator(d *PduDispatcher, args GeneratorArguments) (*Generator, error) {
	if err := args.validate(); err != nil {
		return nil, err
	}
	args.setDefault()

	addr, err := d.transport.ResolveAddr(args.Domain, args.Address)
	if err != nil {
		return nil, err
	}

	sec := newSecurityFromArgs(args.Version, args.Community, args.SecurityLevel,
		args.UserName, args.AuthPassword, args.AuthProtocol,
		args.PrivPassword, args.PrivProtocol)
	if u, ok := sec.(*usm); ok && args.SecurityEngineId != "" {
		engineId, err := engineIdToBytes(stripHexPrefix(args.SecurityEngineId))
		if err != nil {
			return nil, err
		}
		u.SetAuthEngineId(engineId)
		u.DiscoveryStatus = remoteReference
	}

	return &Generator{dispatcher: d, args: args, addr: addr, sec: sec}, nil
}

// Open runs the USM discovery handshake (security.go's usm.Discover) if
// this Generator's principal hasn't already learned the target's
// authoritative engine ID and boots/time; a no-op for community-based
// targets, which have no handshake.
func (g *Generator) Open() error {
	return retry(int(g.args.Retries), func() error {
		return g.sec.Discover(g)
	})
}

// sendProbePdu implements pduSender for security.go's usm.Discover: an
// unconfirmed-looking but actually confirmed GetRequest sent at the
// requested level with no VarBinds, used only to provoke the agent's
// discovery Report. A Report response is this probe's successful
// outcome, not a failure to surface to the caller.
func (g *Generator) sendProbePdu(version SNMPVersion, level SecurityLevel) error {
	pdu := NewPduWithOids(version, GetRequest, nil)
	args := RequestArgs{
		ContextEngineId: g.args.ContextEngineId,
		ContextName:     g.args.ContextName,
		MessageMaxSize:  g.args.MessageMaxSize,
		SecurityLevel:   level,
	}

	type outcome struct {
		pdu Pdu
		err error
	}
	done := make(chan outcome, 1)
	_, err := g.dispatcher.SendPdu(g.args.Domain, g.addr, version, g.sec, args, pdu, true,
		g.args.Timeout, 0, func(p Pdu, e error) { done <- outcome{p, e} })
	if err != nil {
		return err
	}

	o := <-done
	if o.err == nil || o.err == TimeoutError {
		return o.err
	}
	if _, ok := o.err.(*ResponseError); ok {
		return nil
	}
	return o.err
}

// GetRequest issues a confirmed Get for oids (RFC 1905 Section 4.2.1).
func (g *Generator) GetRequest(oids Oids) (Pdu, error) {
	return g.sendPdu(NewPduWithOids(g.args.Version, GetRequest, oids))
}

// GetNextRequest issues a confirmed GetNext for oids (RFC 1905 Section 4.2.2).
func (g *Generator) GetNextRequest(oids Oids) (Pdu, error) {
	return g.sendPdu(NewPduWithOids(g.args.Version, GetNextRequest, oids))
}

// SetRequest issues a confirmed Set (RFC 1905 Section 4.2.5), the one
// request kind snmpgo.go's SNMP client never implemented.
func (g *Generator) SetRequest(varBinds VarBinds) (Pdu, error) {
	return g.sendPdu(NewPduWithVarBinds(g.args.Version, SetRequest, varBinds))
}

// GetBulkRequest issues a GetBulk (RFC 1905 Section 4.2.3, V2c/V3 only).
func (g *Generator) GetBulkRequest(oids Oids, nonRepeaters, maxRepetitions int) (Pdu, error) {
	if g.args.Version < V2c {
		return nil, &ArgumentError{Value: g.args.Version, Message: "Unsupported SNMP Version"}
	}
	if nonRepeaters < 0 || nonRepeaters > math.MaxInt32 {
		return nil, &ArgumentError{Value: nonRepeaters, Message: fmt.Sprintf(
			"NonRepeaters is range %d..%d", 0, math.MaxInt32)}
	}
	if maxRepetitions < 0 || maxRepetitions > math.MaxInt32 {
		return nil, &ArgumentError{Value: maxRepetitions, Message: fmt.Sprintf(
			"MaxRepetitions is range %d..%d", 0, math.MaxInt32)}
	}

	pdu := NewPduWithOids(g.args.Version, GetBulkRequest, oids)
	pdu.SetNonrepeaters(nonRepeaters)
	pdu.SetMaxRepetitions(maxRepetitions)
	return g.sendPdu(pdu)
}

// GetBulkWalk repeatedly issues GetBulkRequest to enumerate every OID
// subtree rooted at oids[nonRepeaters:], returning one synthetic
// GetResponse carrying every VarBind collected. If a GetBulkRequest along
// the way comes back with an ErrorStatus other than NoError (and not a
// NoSuchName past the non-repeating prefix, the V1-style end-of-subtree
// signal GetBulk itself cannot produce but a V1 peer might), only that
// last query's result is returned -- directly adapted from snmpgo.go's
// GetBulkWalk.
func (g *Generator) GetBulkWalk(oids Oids, nonRepeaters, maxRepetitions int) (Pdu, error) {
	var nonRepBinds, resBinds VarBinds

	oids = append(oids[:nonRepeaters], oids[nonRepeaters:].Sort().UniqBase()...)
	reqOids := make(Oids, len(oids))
	copy(reqOids, oids)

	for len(reqOids) > 0 {
		pdu, err := g.GetBulkRequest(reqOids, nonRepeaters, maxRepetitions)
		if err != nil {
			return nil, err
		}
		if s := pdu.ErrorStatus(); s != ErrNoError &&
			(s != ErrNoSuchName || pdu.ErrorIndex() <= nonRepeaters) {
			return pdu, nil
		}

		varBinds := pdu.VarBinds()

		if nonRepeaters > 0 {
			nonRepBinds = append(nonRepBinds, varBinds[:nonRepeaters]...)
			varBinds = varBinds[nonRepeaters:]
			oids = oids[nonRepeaters:]
			reqOids = reqOids[nonRepeaters:]
			nonRepeaters = 0
		}

		filled := len(varBinds) == len(reqOids)*maxRepetitions
		varBinds = varBinds.Sort().Uniq()

		for i := range reqOids {
			matched := varBinds.MatchBaseOids(oids[i])
			mLength := len(matched)

			if mLength == 0 || resBinds.MatchOid(matched[mLength-1].Oid) != nil {
				reqOids[i] = nil
				continue
			}

			hasError := false
			for _, val := range matched {
				switch val.Variable.(type) {
				case *NoSuchObject, *NoSuchInstance, *EndOfMibView:
					hasError = true
				default:
					resBinds = append(resBinds, val)
					reqOids[i] = val.Oid
				}
			}

			if hasError || (filled && mLength < maxRepetitions) {
				reqOids[i] = nil
			}
		}

		for i := len(reqOids) - 1; i >= 0; i-- {
			if reqOids[i] == nil {
				reqOids = append(reqOids[:i], reqOids[i+1:]...)
				oids = append(oids[:i], oids[i+1:]...)
			}
		}
	}

	resBinds = append(nonRepBinds, resBinds.Sort().Uniq()...)
	return NewPduWithVarBinds(g.args.Version, GetResponse, resBinds), nil
}

// V2Trap sends an unconfirmed SNMPv2-Trap (RFC 3416 Section 4.2.6, V2c/V3 only).
func (g *Generator) V2Trap(varBinds VarBinds) error {
	return g.v2trap(SNMPTrapV2, varBinds)
}

// InformRequest sends a confirmed Inform (RFC 3416 Section 4.2.7, V2c/V3 only).
func (g *Generator) InformRequest(varBinds VarBinds) error {
	return g.v2trap(InformRequest, varBinds)
}

func (g *Generator) v2trap(pduType PduType, varBinds VarBinds) error {
	if g.args.Version < V2c {
		return &ArgumentError{Value: g.args.Version, Message: "Unsupported SNMP Version"}
	}
	_, err := g.sendPdu(NewPduWithVarBinds(g.args.Version, pduType, varBinds))
	return err
}

func (g *Generator) sendPdu(pdu Pdu) (Pdu, error) {
	if err := g.Open(); err != nil {
		return nil, err
	}

	args := RequestArgs{
		ContextEngineId: g.args.ContextEngineId,
		ContextName:     g.args.ContextName,
		MessageMaxSize:  g.args.MessageMaxSize,
		SecurityLevel:   g.args.SecurityLevel,
	}

	expectResponse := confirmedType(pdu.PduType())
	type outcome struct {
		pdu Pdu
		err error
	}
	done := make(chan outcome, 1)
	cb := func(p Pdu, e error) { done <- outcome{p, e} }
	if !expectResponse {
		cb = nil
	}

	_, err := g.dispatcher.SendPdu(g.args.Domain, g.addr, g.args.Version, g.sec, args, pdu,
		expectResponse, g.args.Timeout, int(g.args.Retries), cb)
	if err != nil {
		return nil, err
	}
	if !expectResponse {
		return nil, nil
	}

	o := <-done
	return o.pdu, o.err
}

func (g *Generator) String() string {
	return fmt.Sprintf(`{"args": %s, "security": %s}`, g.args.String(), g.sec.String())
}
