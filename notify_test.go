package snmpengine

import (
	"net"
	"testing"
)

type recordingListener struct {
	requests []NotificationRequest
}

func (l *recordingListener) OnNotification(req NotificationRequest) {
	l.requests = append(l.requests, req)
}

func newTestNotificationReceiver(t *testing.T) (*NotificationReceiver, *recordingListener, *Engine) {
	t.Helper()
	pd, _, engine := newTestDispatcher(t)
	engine.VACM.SetGroup(securityCommunity, "public", "notifiers")
	engine.VACM.SetView("all", ViewTreeEntry{Subtree: MustNewOid("1.3.6.1.6.3.1.1.5"), Include: true})
	engine.VACM.SetAccess("notifiers", "", true, securityCommunity, NoAuthNoPriv, AccessEntry{NotifyView: "all"})

	listener := &recordingListener{}
	r := NewNotificationReceiver(pd, engine, nil, listener)
	return r, listener, engine
}

func v2TrapPdu(enterprise Oid, genericTrap, specificTrap int, uptime uint32, vbs VarBinds) Pdu {
	return NewPduWithVarBinds(V2c, SNMPTrapV2, translateTrapV1ToV2(enterprise, genericTrap, specificTrap, uptime, vbs))
}

func TestNotificationReceiverAllowed(t *testing.T) {
	r, listener, _ := newTestNotificationReceiver(t)

	pdu := v2TrapPdu(MustNewOid("1.3.6.1.4.1.8072"), 1, 0, 12345, VarBinds{
		{Oid: MustNewOid("1.3.6.1.2.1.1.1.0"), Variable: NewOctetString([]byte("payload"))},
	})
	ctx := HandlerContext{
		Domain: DomainUDP, Addr: &net.UDPAddr{}, Version: V2c,
		SecurityModel: securityCommunity, SecurityName: "public",
	}

	r.processPdu(ctx, pdu)

	if len(listener.requests) != 1 {
		t.Fatalf("OnNotification() called %d times, want 1", len(listener.requests))
	}
	req := listener.requests[0]
	if req.GenericTrap != 1 || req.Uptime != 12345 {
		t.Errorf("NotificationRequest = %+v, want genericTrap=1 uptime=12345", req)
	}
	if len(req.VarBinds) != 1 || req.VarBinds[0].Variable.String() != "payload" {
		t.Errorf("NotificationRequest.VarBinds = %v", req.VarBinds)
	}
}

func TestNotificationReceiverDeniedByVacm(t *testing.T) {
	r, listener, _ := newTestNotificationReceiver(t)

	pdu := v2TrapPdu(MustNewOid("1.3.6.1.4.1.8072"), 1, 0, 1, nil)
	ctx := HandlerContext{
		Domain: DomainUDP, Addr: &net.UDPAddr{}, Version: V2c,
		SecurityModel: securityCommunity, SecurityName: "unknown-principal",
	}

	r.processPdu(ctx, pdu)

	if len(listener.requests) != 0 {
		t.Errorf("OnNotification() called for a denied principal, requests = %v", listener.requests)
	}
}

func TestNotificationOriginatorSendTrapV1Translation(t *testing.T) {
	pd, transport, engine := newTestDispatcher(t)
	transport.notify = make(chan fakeSend, 4)
	engine.Security.Set(&community{Community: []byte("public")})

	lcd := NewLCD()
	lcd.SetTargetAddr(TargetAddr{Name: "nms1", Domain: "udp", Address: "127.0.0.1:162", ParamsName: "p1"})
	lcd.SetTargetParams(TargetParams{Name: "p1", Version: V1, SecurityModel: securityCommunity, SecurityName: "pub", SecurityLevel: NoAuthNoPriv})
	lcd.SetSecurityEntry(SecurityEntry{Name: "pub", Version: V1, Community: "public"})

	orig := NewNotificationOriginator(pd, engine, lcd)

	enterprise := MustNewOid("1.3.6.1.4.1.8072")
	if err := orig.SendV1Trap("nms1", enterprise, 6, 42, VarBinds{
		{Oid: MustNewOid("1.3.6.1.4.1.8072.1.1.0"), Variable: NewInteger(7)},
	}); err != nil {
		t.Fatalf("SendV1Trap() error = %v", err)
	}

	var sent fakeSend
	select {
	case sent = <-transport.notify:
	default:
		t.Fatal("SendV1Trap() - nothing was transmitted")
	}

	recvMsg := newMessageWithPdu(V1, NewPdu(V1, Trap))
	if _, err := recvMsg.Unmarshal(sent.data); err != nil {
		t.Fatalf("Unmarshal(trap) error = %v", err)
	}
	if _, err := recvMsg.Pdu().Unmarshal(recvMsg.PduBytes()); err != nil {
		t.Fatalf("Unmarshal(trap pdu) error = %v", err)
	}
	if recvMsg.Pdu().PduType() != Trap {
		t.Fatalf("sent PduType = %v, want Trap", recvMsg.Pdu().PduType())
	}

	gotEnterprise, genericTrap, specificTrap, _, rest := translateTrapV2ToV1(recvMsg.Pdu().VarBinds())
	if !gotEnterprise.Equal(enterprise) {
		t.Errorf("enterprise = %v, want %v", gotEnterprise, enterprise)
	}
	if genericTrap != 6 || specificTrap != 42 {
		t.Errorf("genericTrap=%d specificTrap=%d, want 6/42", genericTrap, specificTrap)
	}
	if len(rest) != 1 || rest[0].Variable.String() != "7" {
		t.Errorf("trailing varbinds = %v", rest)
	}
}
