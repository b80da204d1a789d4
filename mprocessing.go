package snmpengine

import (
	"bytes"
	"fmt"
)

// RequestArgs carries per-request knobs a Message-Processing Model needs
// when framing an outgoing message: the v3 context selectors, the
// negotiated max message size, and the requested security level.
type RequestArgs struct {
	ContextEngineId string
	ContextName     string
	MessageMaxSize  int
	SecurityLevel   SecurityLevel

	authEngineBoots int64
	authEngineTime  int64
}

// messageProcessing is a Message Processing Model (RFC 3411 Section 3.2):
// it frames a Pdu into a message for the wire and, symmetrically, recovers
// a Pdu from an incoming message once the security model has validated it.
type messageProcessing interface {
	Version() SNMPVersion
	PrepareOutgoingMessage(security, Pdu, *RequestArgs) (message, error)
	PrepareResponseMessage(security, Pdu, message) (message, error)
	PrepareDataElements(security, recvMsg, sendMsg message) (Pdu, error)
}

type messageProcessingV1 struct {
	version SNMPVersion
}

func (mp *messageProcessingV1) Version() SNMPVersion { return mp.version }

func (mp *messageProcessingV1) PrepareOutgoingMessage(
	sec security, pdu Pdu, args *RequestArgs) (message, error) {

	if _, ok := pdu.(*PduV1); !ok {
		return nil, &ArgumentError{Value: pdu, Message: "Type of Pdu is not PduV1"}
	}
	if pdu.RequestId() == 0 {
		pdu.SetRequestId(genRequestId())
	}
	msg := newMessageWithPdu(mp.Version(), pdu)

	if err := sec.GenerateRequestMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (mp *messageProcessingV1) PrepareResponseMessage(
	sec security, pdu Pdu, recvMsg message) (message, error) {

	if _, ok := pdu.(*PduV1); !ok {
		return nil, &ArgumentError{Value: pdu, Message: "Type of Pdu is not PduV1"}
	}
	pdu.SetRequestId(recvMsg.Pdu().RequestId())
	msg := newMessageWithPdu(mp.Version(), pdu)

	if err := sec.GenerateResponseMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (mp *messageProcessingV1) PrepareDataElements(
	sec security, recvMsg, sendMsg message) (Pdu, error) {

	if sendMsg != nil && sendMsg.Version() != recvMsg.Version() {
		return nil, &MessageError{
			Message: fmt.Sprintf("SNMPVersion mismatch - expected [%v], actual [%v]",
				sendMsg.Version(), recvMsg.Version()),
			Detail: fmt.Sprintf("%s vs %s", sendMsg, recvMsg),
		}
	}

	if err := sec.ProcessIncomingMessage(recvMsg); err != nil {
		return nil, err
	}

	pdu := recvMsg.Pdu()
	if sendMsg != nil {
		if pdu.PduType() != GetResponse {
			return nil, &MessageError{Message: fmt.Sprintf(
				"Illegal PduType - expected [%s], actual [%v]", GetResponse, pdu.PduType())}
		}
		if sendMsg.Pdu().RequestId() != pdu.RequestId() {
			return nil, &MessageError{
				Message: fmt.Sprintf("RequestId mismatch - expected [%d], actual [%d]",
					sendMsg.Pdu().RequestId(), pdu.RequestId()),
				Detail: fmt.Sprintf("%s vs %s", sendMsg, recvMsg),
			}
		}
	} else if t := pdu.PduType(); !confirmedType(t) && t != SNMPTrapV2 && t != Trap {
		return nil, &MessageError{Message: fmt.Sprintf("Illegal PduType - received [%v]", t)}
	}

	return pdu, nil
}

type messageProcessingV3 struct {
	version SNMPVersion
}

func (mp *messageProcessingV3) Version() SNMPVersion { return mp.version }

func (mp *messageProcessingV3) PrepareOutgoingMessage(
	sec security, pdu Pdu, args *RequestArgs) (message, error) {

	p, ok := pdu.(*ScopedPdu)
	if !ok {
		return nil, &ArgumentError{Value: pdu, Message: "Type of Pdu is not ScopedPdu"}
	}
	if p.RequestId() == 0 {
		p.SetRequestId(genRequestId())
	}
	if args.ContextEngineId != "" {
		p.ContextEngineId, _ = engineIdToBytes(args.ContextEngineId)
	} else if u, ok := sec.(*usm); ok {
		p.ContextEngineId = u.AuthEngineId
	}
	if args.ContextName != "" {
		p.ContextName = []byte(args.ContextName)
	}

	msg := newMessageWithPdu(mp.Version(), pdu)
	m := msg.(*messageV3)
	m.MessageId = genMessageId()
	m.MessageMaxSize = args.MessageMaxSize
	m.SecurityModel = securityUsm
	m.SetReportable(confirmedType(pdu.PduType()))
	if args.SecurityLevel >= AuthNoPriv {
		m.SetAuthentication(true)
		if args.SecurityLevel >= AuthPriv {
			m.SetPrivacy(true)
		}
	}
	// Seed boots/time from the caller; GenerateRequestMessage overwrites
	// these from the usm principal once it is past discovery.
	m.AuthEngineBoots = args.authEngineBoots
	m.AuthEngineTime = args.authEngineTime

	if err := sec.GenerateRequestMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// PrepareResponseMessage builds the response envelope a Command Responder
// sends back: same msgID and security principal as the request, security
// flags mirrored from what the request carried, Reportable always false
// (RFC 3412 Section 7.1 step 7).
func (mp *messageProcessingV3) PrepareResponseMessage(
	sec security, pdu Pdu, recvMsg message) (message, error) {

	p, ok := pdu.(*ScopedPdu)
	if !ok {
		return nil, &ArgumentError{Value: pdu, Message: "Type of Pdu is not ScopedPdu"}
	}
	rm, ok := recvMsg.(*messageV3)
	if !ok {
		return nil, &ArgumentError{Value: recvMsg, Message: "Type of recvMsg is not messageV3"}
	}

	p.SetRequestId(rm.Pdu().RequestId())
	p.ContextEngineId = rm.pdu.(*ScopedPdu).ContextEngineId
	p.ContextName = rm.pdu.(*ScopedPdu).ContextName

	msg := newMessageWithPdu(mp.Version(), pdu)
	m := msg.(*messageV3)
	m.MessageId = rm.MessageId
	m.MessageMaxSize = rm.MessageMaxSize
	m.SecurityModel = securityUsm
	m.SetAuthentication(rm.Authentication())
	m.SetPrivacy(rm.Privacy())
	m.SetReportable(false)
	m.UserName = rm.UserName
	m.AuthEngineId = rm.AuthEngineId

	if err := sec.GenerateResponseMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

func (mp *messageProcessingV3) PrepareDataElements(
	sec security, recvMsg, sendMsg message) (Pdu, error) {

	sm, _ := sendMsg.(*messageV3)
	rm := recvMsg.(*messageV3)
	if sm != nil {
		if sm.Version() != rm.Version() {
			return nil, &MessageError{
				Message: fmt.Sprintf("SNMPVersion mismatch - expected [%v], actual [%v]",
					sm.Version(), rm.Version()),
				Detail: fmt.Sprintf("%s vs %s", sm, rm),
			}
		}
		if sm.MessageId != rm.MessageId {
			return nil, &MessageError{
				Message: fmt.Sprintf("MessageId mismatch - expected [%d], actual [%d]",
					sm.MessageId, rm.MessageId),
				Detail: fmt.Sprintf("%s vs %s", sm, rm),
			}
		}
	}
	if rm.SecurityModel != securityUsm {
		return nil, &MessageError{Message: fmt.Sprintf("Unknown SecurityModel, value [%d]", rm.SecurityModel)}
	}

	if err := sec.ProcessIncomingMessage(recvMsg); err != nil {
		return nil, err
	}

	pdu, _ := recvMsg.Pdu().(*ScopedPdu)
	if sm != nil {
		switch t := pdu.PduType(); t {
		case GetResponse:
			if sm.Pdu().RequestId() != pdu.RequestId() {
				return nil, &MessageError{
					Message: fmt.Sprintf("RequestId mismatch - expected [%d], actual [%d]",
						sm.Pdu().RequestId(), pdu.RequestId()),
					Detail: fmt.Sprintf("%s vs %s", sm, rm),
				}
			}

			sPdu := sm.Pdu().(*ScopedPdu)
			if !bytes.Equal(sPdu.ContextEngineId, pdu.ContextEngineId) {
				return nil, &MessageError{Message: fmt.Sprintf(
					"ContextEngineId mismatch - expected [%s], actual [%s]",
					toHexStr(sPdu.ContextEngineId, ""), toHexStr(pdu.ContextEngineId, ""))}
			}
			if !bytes.Equal(sPdu.ContextName, pdu.ContextName) {
				return nil, &MessageError{Message: fmt.Sprintf(
					"ContextName mismatch - expected [%s], actual [%s]",
					toHexStr(sPdu.ContextName, ""), toHexStr(pdu.ContextName, ""))}
			}
			if sm.Authentication() && !rm.Authentication() {
				return nil, &MessageError{Message: "Response message is not authenticated"}
			}
		case Report:
			if !sm.Reportable() {
				return nil, &MessageError{Message: fmt.Sprintf(
					"Illegal PduType - expected [%s], actual [%v]", GetResponse, t)}
			}
		default:
			return nil, &MessageError{Message: fmt.Sprintf(
				"Illegal PduType - expected [%s], actual [%v]", GetResponse, t)}
		}
	} else if t := pdu.PduType(); !confirmedType(t) && t != SNMPTrapV2 {
		return nil, &MessageError{Message: fmt.Sprintf("Illegal PduType - received [%v]", t)}
	}

	return pdu, nil
}

func newMessageProcessing(ver SNMPVersion) messageProcessing {
	if ver == V3 {
		return &messageProcessingV3{version: ver}
	}
	return &messageProcessingV1{version: ver}
}
