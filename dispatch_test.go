package snmpengine

import (
	"net"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeTransport is an in-memory Transport: Send appends to sent instead of
// touching the network, so HandleMessage/ReturnResponsePdu round trips can
// be driven without a real socket.
type fakeTransport struct {
	domain TransportDomain
	local  net.Addr
	sent   []fakeSend
	notify chan fakeSend // optional: Send also pushes here when non-nil
}

type fakeSend struct {
	addr net.Addr
	data []byte
}

func (f *fakeTransport) Domain() TransportDomain { return f.domain }
func (f *fakeTransport) LocalAddr() net.Addr     { return f.local }
func (f *fakeTransport) Close() error            { return nil }
func (f *fakeTransport) ResolveAddr(address string) (net.Addr, error) {
	return net.ResolveUDPAddr("udp", address)
}
func (f *fakeTransport) Send(addr net.Addr, data []byte) error {
	s := fakeSend{addr, data}
	f.sent = append(f.sent, s)
	if f.notify != nil {
		f.notify <- s
	}
	return nil
}
func (f *fakeTransport) readLoop(recv RecvFunc, bufSize int) error {
	<-make(chan struct{})
	return nil
}

func newTestDispatcher(t *testing.T) (*PduDispatcher, *fakeTransport, *Engine) {
	t.Helper()
	engine, err := NewEngine(EngineArguments{})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}

	transport := &fakeTransport{domain: DomainUDP, local: &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 161}}
	td := NewDispatcher(nil, 0)
	td.RegisterTransport(transport)

	pd := NewPduDispatcher(engine, td)
	td.recv = pd.HandleMessage
	return pd, transport, engine
}

func TestPduDispatcherRegisterUnregister(t *testing.T) {
	pd, _, engine := newTestDispatcher(t)

	called := false
	pd.RegisterContextEngineId(nil, []PduType{GetRequest}, func(ctx HandlerContext, pdu Pdu) { called = true })

	if _, ok := pd.lookupHandler(engine.EngineId(), GetRequest); !ok {
		t.Fatal("lookupHandler() - expected a registered handler")
	}
	if _, ok := pd.lookupHandler(engine.EngineId(), GetNextRequest); ok {
		t.Error("lookupHandler() - GetNextRequest should not be registered")
	}

	pd.UnregisterContextEngineId(nil, []PduType{GetRequest})
	if _, ok := pd.lookupHandler(engine.EngineId(), GetRequest); ok {
		t.Error("lookupHandler() after Unregister - expected no handler")
	}
	_ = called
}

func TestPduDispatcherHandleMessageRoutesToHandler(t *testing.T) {
	pd, transport, engine := newTestDispatcher(t)
	engine.Security.Set(&community{Community: []byte("public")})

	var gotCtx HandlerContext
	var gotPdu Pdu
	pd.RegisterContextEngineId(nil, commandResponderPduTypes, func(ctx HandlerContext, pdu Pdu) {
		gotCtx, gotPdu = ctx, pdu
		resp := NewPdu(ctx.Version, GetResponse)
		resp.SetVarBinds(pdu.VarBinds())
		if err := pd.ReturnResponsePdu(ctx.StateReference, resp); err != nil {
			t.Errorf("ReturnResponsePdu() error = %v", err)
		}
	})

	reqPdu := NewPduWithVarBinds(V2c, GetRequest, VarBinds{
		{Oid: MustNewOid("1.3.6.1.2.1.1.1.0"), Variable: &Null{}},
	})
	sec := &community{Community: []byte("public")}
	mp := newMessageProcessing(V2c)
	msg, err := mp.PrepareOutgoingMessage(sec, reqPdu, &RequestArgs{})
	if err != nil {
		t.Fatalf("PrepareOutgoingMessage() error = %v", err)
	}
	data, err := msg.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	src := &net.UDPAddr{IP: net.ParseIP("10.0.0.5"), Port: 12345}
	pd.HandleMessage(DomainUDP, src, data)

	if gotPdu == nil {
		t.Fatal("HandleMessage() - handler was never invoked")
	}
	if gotCtx.SecurityModel != securityCommunity || gotCtx.SecurityName != "public" {
		t.Errorf("HandleMessage() ctx = %+v, want community/public", gotCtx)
	}
	if len(transport.sent) != 1 {
		t.Fatalf("HandleMessage() - expected one response sent, got %d", len(transport.sent))
	}
	if transport.sent[0].addr != net.Addr(src) {
		t.Errorf("HandleMessage() - response sent to %v, want %v", transport.sent[0].addr, src)
	}
}

func TestPduDispatcherHandleMessageUnknownCommunityDropped(t *testing.T) {
	pd, transport, _ := newTestDispatcher(t)
	before := testutil.ToFloat64(pd.engine.Metrics.snmpSilentDrops)

	reqPdu := NewPdu(V2c, GetRequest)
	sec := &community{Community: []byte("nope")}
	mp := newMessageProcessing(V2c)
	msg, err := mp.PrepareOutgoingMessage(sec, reqPdu, &RequestArgs{})
	if err != nil {
		t.Fatalf("PrepareOutgoingMessage() error = %v", err)
	}
	data, _ := msg.Marshal()

	pd.HandleMessage(DomainUDP, &net.UDPAddr{}, data)

	after := testutil.ToFloat64(pd.engine.Metrics.snmpSilentDrops)
	if after != before+1 {
		t.Errorf("snmpSilentDrops = %v, want %v", after, before+1)
	}
	if len(transport.sent) != 0 {
		t.Errorf("HandleMessage() - expected no response sent for an unknown community, got %d", len(transport.sent))
	}
}

func TestPduDispatcherSendPduTimeout(t *testing.T) {
	pd, _, _ := newTestDispatcher(t)
	sec := &community{Community: []byte("public")}
	pdu := NewPdu(V2c, GetRequest)

	done := make(chan error, 1)
	_, err := pd.SendPdu(DomainUDP, &net.UDPAddr{IP: net.ParseIP("10.0.0.1"), Port: 161}, V2c, sec,
		RequestArgs{}, pdu, true, 20*time.Millisecond, 0, func(rp Pdu, err error) {
			done <- err
		})
	if err != nil {
		t.Fatalf("SendPdu() error = %v", err)
	}

	select {
	case err := <-done:
		if err != TimeoutError {
			t.Errorf("SendPdu() callback error = %v, want TimeoutError", err)
		}
	case <-time.After(time.Second):
		t.Fatal("SendPdu() - timeout callback never fired")
	}
}
