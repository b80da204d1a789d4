package snmpengine

import (
	"bytes"
	"testing"
)

func TestMessageProcessingV1Request(t *testing.T) {
	sec := newSecurityFromArgs(V2c, "public", NoAuthNoPriv, "", "", AuthNone, "", PrivNone)
	mp := newMessageProcessing(V2c)
	pdu := NewPdu(V2c, GetRequest)

	msg, err := mp.PrepareOutgoingMessage(sec, pdu, &RequestArgs{})
	if err != nil {
		t.Errorf("PrepareOutgoingMessage() - has error %v", err)
	}
	if len(msg.PduBytes()) == 0 {
		t.Error("PrepareOutgoingMessage() - pdu bytes")
	}
	if pdu.RequestId() == 0 {
		t.Error("PrepareOutgoingMessage() - request id")
	}
	requestId := pdu.RequestId()

	if _, err = mp.PrepareDataElements(sec, msg, msg); err == nil {
		t.Error("PrepareDataElements() - pdu type check")
	}

	pdu = NewPdu(V2c, GetResponse)
	rmsg := &messageV1{version: V1, pdu: pdu}
	if _, err = mp.PrepareDataElements(sec, rmsg, msg); err == nil {
		t.Error("PrepareDataElements() - version check")
	}

	pdu.SetRequestId(requestId)
	pduBytes, _ := pdu.Marshal()
	rmsg = &messageV1{version: V2c, pdu: pdu, Community: []byte("public")}
	rmsg.SetPduBytes(pduBytes)
	if _, err = mp.PrepareDataElements(sec, rmsg, msg); err != nil {
		t.Errorf("PrepareDataElements() - has error %v", err)
	}
}

func TestMessageProcessingV1Receive(t *testing.T) {
	sec := newSecurityFromArgs(V2c, "public", NoAuthNoPriv, "", "", AuthNone, "", PrivNone)
	mp := newMessageProcessing(V2c)

	pdu := NewPdu(V2c, GetResponse)
	pduBytes, _ := pdu.Marshal()
	rmsg := &messageV1{version: V2c, pdu: pdu, Community: []byte("public")}
	rmsg.SetPduBytes(pduBytes)
	if _, err := mp.PrepareDataElements(sec, rmsg, nil); err == nil {
		t.Error("PrepareDataElements() - pdu type check")
	}

	pdu = NewPdu(V2c, SNMPTrapV2)
	pduBytes, _ = pdu.Marshal()
	rmsg = &messageV1{version: V2c, pdu: pdu, Community: []byte("public")}
	rmsg.SetPduBytes(pduBytes)
	if _, err := mp.PrepareDataElements(sec, rmsg, nil); err != nil {
		t.Errorf("PrepareDataElements() - has error %v", err)
	}

	pdu = NewPdu(V2c, GetResponse)
	pdu.SetRequestId(-1)
	smsg, err := mp.PrepareResponseMessage(sec, pdu, rmsg)
	if err != nil {
		t.Errorf("PrepareResponseMessage() - has error %v", err)
	}
	if len(smsg.PduBytes()) == 0 {
		t.Error("PrepareResponseMessage() - pdu bytes")
	}
	if pdu.RequestId() != rmsg.Pdu().RequestId() {
		t.Error("PrepareResponseMessage() - request id")
	}
}

func TestMessageProcessingV3Request(t *testing.T) {
	expEngId := []byte{0x80, 0x00, 0x00, 0x00, 0x01}
	expCtxId := []byte{0x80, 0x00, 0x00, 0x00, 0x05}
	expCtxName := "myName"

	sec := newSecurityFromArgs(V3, "", AuthPriv, "myName", "aaaaaaaa", Md5, "bbbbbbbb", Des)
	usm := sec.(*usm)
	usm.AuthEngineId = expEngId
	usm.AuthKey = make([]byte, 16)
	usm.PrivKey = make([]byte, 16)
	usm.DiscoveryStatus = discovered

	mp := newMessageProcessing(V3)
	pdu := NewPdu(V3, GetRequest)

	msg, err := mp.PrepareOutgoingMessage(sec, pdu, &RequestArgs{
		ContextEngineId: toHexStr(expCtxId, ""),
		ContextName:     expCtxName,
		SecurityLevel:   AuthPriv,
	})
	if err != nil {
		t.Errorf("PrepareOutgoingMessage() - has error %v", err)
	}
	if len(msg.PduBytes()) == 0 {
		t.Error("PrepareOutgoingMessage() - pdu bytes")
	}
	p := pdu.(*ScopedPdu)
	if p.RequestId() == 0 {
		t.Error("PrepareOutgoingMessage() - request id")
	}
	if !bytes.Equal(p.ContextEngineId, expCtxId) {
		t.Errorf("PrepareOutgoingMessage() - expected [%s], actual [%s]",
			toHexStr(expCtxId, ""), toHexStr(p.ContextEngineId, ""))
	}
	if string(p.ContextName) != expCtxName {
		t.Errorf("PrepareOutgoingMessage() - expected [%s], actual [%s]", expCtxName, p.ContextName)
	}
	msgv3 := msg.(*messageV3)
	if msgv3.MessageId == 0 {
		t.Error("PrepareOutgoingMessage() - message id")
	}
	if !msgv3.Reportable() || !msgv3.Authentication() || !msgv3.Privacy() {
		t.Error("PrepareOutgoingMessage() - security flag")
	}
	requestId := pdu.RequestId()
	messageId := msgv3.MessageId

	if _, err = mp.PrepareDataElements(sec, msg, msg); err == nil {
		t.Error("PrepareDataElements() - pdu type check")
	}

	pdu = NewPdu(V3, GetResponse)
	rmsg := &messageV3{pdu: pdu, AuthEngineId: expEngId, UserName: []byte("myName")}
	if _, err = mp.PrepareDataElements(sec, rmsg, msg); err == nil {
		t.Error("PrepareDataElements() - message id check")
	}

	rmsg.MessageId = messageId
	if _, err = mp.PrepareDataElements(sec, rmsg, msg); err == nil {
		t.Error("PrepareDataElements() - security model check")
	}

	pduBytes, _ := pdu.Marshal()
	rmsg.SetPduBytes(pduBytes)
	rmsg.SecurityModel = securityUsm
	if _, err = mp.PrepareDataElements(sec, rmsg, msg); err == nil {
		t.Error("PrepareDataElements() - request id check")
	}

	pdu.SetRequestId(requestId)
	pduBytes, _ = pdu.Marshal()
	rmsg.SetPduBytes(pduBytes)
	if _, err = mp.PrepareDataElements(sec, rmsg, msg); err == nil {
		t.Error("PrepareDataElements() - contextEngineId check")
	}

	pdu.(*ScopedPdu).ContextEngineId = expCtxId
	pduBytes, _ = pdu.Marshal()
	rmsg.SetPduBytes(pduBytes)
	if _, err = mp.PrepareDataElements(sec, rmsg, msg); err == nil {
		t.Error("PrepareDataElements() - contextName check")
	}

	pdu.(*ScopedPdu).ContextName = []byte(expCtxName)
	pduBytes, _ = pdu.Marshal()
	rmsg.SetPduBytes(pduBytes)

	msgv3.SetAuthentication(true)
	if _, err = mp.PrepareDataElements(sec, rmsg, msg); err == nil {
		t.Error("PrepareDataElements() - response authenticate check")
	}

	msgv3.SetAuthentication(false)
	if _, err = mp.PrepareDataElements(sec, rmsg, msg); err != nil {
		t.Errorf("PrepareDataElements() - has error %v", err)
	}
}

func TestMessageProcessingV3Receive(t *testing.T) {
	secEngId := []byte{0x80, 0x00, 0x00, 0x00, 0x01}
	sec := newSecurityFromArgs(V3, "", NoAuthNoPriv, "myName", "", AuthNone, "", PrivNone)
	usm := sec.(*usm)
	usm.SetAuthEngineId(secEngId)
	usm.DiscoveryStatus = remoteReference

	mp := newMessageProcessing(V3)

	pdu := NewPdu(V3, GetResponse)
	pduBytes, _ := pdu.Marshal()
	rmsg := &messageV3{pdu: pdu, AuthEngineId: secEngId, UserName: []byte("myName"), SecurityModel: securityUsm}
	rmsg.SetPduBytes(pduBytes)
	if _, err := mp.PrepareDataElements(sec, rmsg, nil); err == nil {
		t.Error("PrepareDataElements() - pdu type check")
	}

	pdu = NewPdu(V3, SNMPTrapV2)
	pduBytes, _ = pdu.Marshal()
	rmsg = &messageV3{pdu: pdu, AuthEngineId: secEngId, UserName: []byte("myName"), SecurityModel: securityUsm}
	rmsg.SetPduBytes(pduBytes)
	if _, err := mp.PrepareDataElements(sec, rmsg, nil); err != nil {
		t.Errorf("PrepareDataElements() - has error %v", err)
	}
}
