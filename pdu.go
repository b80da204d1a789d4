package snmpengine

import (
	"fmt"
	"math/rand"
	"sync/atomic"
)

// PduType identifies the operation a Pdu carries, RFC 3416 Section 3 plus
// the RFC 3412 Report type and the RFC 1157 Trap-PDU.
type PduType int

const (
	GetRequest PduType = iota
	GetNextRequest
	GetResponse
	SetRequest
	Trap // SNMPv1 only
	GetBulkRequest
	InformRequest
	SNMPTrapV2
	Report
)

func (t PduType) String() string {
	switch t {
	case GetRequest:
		return "GetRequest"
	case GetNextRequest:
		return "GetNextRequest"
	case GetResponse:
		return "GetResponse"
	case SetRequest:
		return "SetRequest"
	case Trap:
		return "Trap"
	case GetBulkRequest:
		return "GetBulkRequest"
	case InformRequest:
		return "InformRequest"
	case SNMPTrapV2:
		return "SNMPv2-Trap"
	case Report:
		return "Report"
	default:
		return "Unknown"
	}
}

// confirmedType reports whether a PduType expects a GetResponse back,
// per RFC 3413's rfc3411.confirmedClassPDUs.
func confirmedType(t PduType) bool {
	switch t {
	case GetRequest, GetNextRequest, GetBulkRequest, SetRequest, InformRequest:
		return true
	default:
		return false
	}
}

// readClassType / writeClassType classify PDUs the command responder
// accepts (RFC 3413 Sec 3.2.1's rfc3411.readClassPDUs/writeClassPDUs).
func readClassType(t PduType) bool {
	switch t {
	case GetRequest, GetNextRequest, GetBulkRequest:
		return true
	default:
		return false
	}
}

func writeClassType(t PduType) bool { return t == SetRequest }

// Pdu is implemented by PduV1 (v1/v2c) and ScopedPdu (v3's PDU plus its
// ScopedPDU envelope fields).
type Pdu interface {
	fmt.Stringer
	PduType() PduType
	RequestId() int32
	SetRequestId(int32)
	ErrorStatus() int
	SetErrorStatus(int)
	ErrorIndex() int
	SetErrorIndex(int)
	VarBinds() VarBinds
	SetVarBinds(VarBinds)
	NonRepeaters() int
	SetNonrepeaters(int)
	MaxRepetitions() int
	SetMaxRepetitions(int)
	Marshal() ([]byte, error)
	Unmarshal([]byte) ([]byte, error)
}

var requestIdSeq int32 = int32(rand.Int31())

func genRequestId() int32 {
	return atomic.AddInt32(&requestIdSeq, 1)
}

// pduCore holds the fields common to every Pdu implementation.
type pduCore struct {
	pduType        PduType
	requestId      int32
	errorStatus    int
	errorIndex     int
	varBinds       VarBinds
	nonRepeaters   int
	maxRepetitions int
}

func (p *pduCore) PduType() PduType        { return p.pduType }
func (p *pduCore) RequestId() int32        { return p.requestId }
func (p *pduCore) SetRequestId(id int32)   { p.requestId = id }
func (p *pduCore) ErrorStatus() int        { return p.errorStatus }
func (p *pduCore) SetErrorStatus(s int)    { p.errorStatus = s }
func (p *pduCore) ErrorIndex() int         { return p.errorIndex }
func (p *pduCore) SetErrorIndex(i int)     { p.errorIndex = i }
func (p *pduCore) VarBinds() VarBinds      { return p.varBinds }
func (p *pduCore) SetVarBinds(v VarBinds)  { p.varBinds = v }
func (p *pduCore) NonRepeaters() int       { return p.nonRepeaters }
func (p *pduCore) SetNonrepeaters(n int)   { p.nonRepeaters = n }
func (p *pduCore) MaxRepetitions() int     { return p.maxRepetitions }
func (p *pduCore) SetMaxRepetitions(n int) { p.maxRepetitions = n }

// PduV1 is the v1/v2c PDU: no ScopedPDU envelope, community carried at the
// message level instead.
type PduV1 struct {
	pduCore
	version SNMPVersion
}

func (p *PduV1) String() string {
	return fmt.Sprintf(`{"Type": "%s", "RequestId": %d, "ErrorStatus": %d, "ErrorIndex": %d, "VarBinds": %v}`,
		p.pduType, p.requestId, p.errorStatus, p.errorIndex, p.varBinds)
}

func (p *PduV1) Marshal() ([]byte, error) { return marshalPduV1(p) }
func (p *PduV1) Unmarshal(b []byte) ([]byte, error) {
	return unmarshalPduV1(p, b)
}

// ScopedPdu is the v3 PDU: the inner PDU fields plus the ScopedPDU
// envelope (contextEngineId, contextName), RFC 3412 Section 6.1.
type ScopedPdu struct {
	pduCore
	ContextEngineId []byte
	ContextName     []byte
}

func (p *ScopedPdu) String() string {
	return fmt.Sprintf(`{"Type": "%s", "RequestId": %d, "ContextEngineId": "%s", "ContextName": "%s", "ErrorStatus": %d, "ErrorIndex": %d, "VarBinds": %v}`,
		p.pduType, p.requestId, toHexStr(p.ContextEngineId, ""), p.ContextName, p.errorStatus, p.errorIndex, p.varBinds)
}

func (p *ScopedPdu) Marshal() ([]byte, error) { return marshalScopedPdu(p) }
func (p *ScopedPdu) Unmarshal(b []byte) ([]byte, error) {
	return unmarshalScopedPdu(p, b)
}

// NewPdu creates an empty Pdu of the version-appropriate concrete type.
func NewPdu(version SNMPVersion, t PduType) Pdu {
	core := pduCore{pduType: t}
	if version == V3 {
		return &ScopedPdu{pduCore: core}
	}
	return &PduV1{pduCore: core, version: version}
}

// NewPduWithOids builds a request Pdu whose VarBinds are (oid, Null) pairs,
// the shape a GetRequest/GetNextRequest/GetBulkRequest is sent with.
func NewPduWithOids(version SNMPVersion, t PduType, oids Oids) Pdu {
	vbs := make(VarBinds, len(oids))
	for i, o := range oids {
		vbs[i] = VarBind{Oid: o, Variable: &Null{}}
	}
	p := NewPdu(version, t)
	p.SetVarBinds(vbs)
	return p
}

// NewPduWithVarBinds builds a Pdu (typically a trap, inform or response)
// carrying the supplied VarBinds verbatim.
func NewPduWithVarBinds(version SNMPVersion, t PduType, vbs VarBinds) Pdu {
	p := NewPdu(version, t)
	p.SetVarBinds(vbs)
	return p
}
