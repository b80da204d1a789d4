package snmpengine

import (
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// TransportDomain identifies a transport by its snmpTargetAddrTDomain OID
// (RFC 3417 Sec 2 / RFC 3419), the formal counterpart to the informal
// "udp"/"udp4"/"udp6" network string Arguments.Network took as input.
type TransportDomain string

const (
	DomainUDP  TransportDomain = "1.3.6.1.6.1.1"
	DomainUDP6 TransportDomain = "1.3.6.1.6.1.2"
	DomainUnix TransportDomain = "1.3.6.1.6.1.3" // RFC 3419 "local" domain, unixgram here
)

// RecvFunc is the upward callback the Dispatcher invokes for each inbound
// datagram: (domain, source address, raw octets).
type RecvFunc func(domain TransportDomain, src net.Addr, data []byte)

// Transport is one registered socket a Dispatcher reads from and writes
// to. A udpTransport wraps a single net.PacketConn; tests may substitute a
// fake for deterministic I/O.
type Transport interface {
	Domain() TransportDomain
	LocalAddr() net.Addr
	Send(addr net.Addr, data []byte) error
	ResolveAddr(address string) (net.Addr, error)
	Close() error
	readLoop(recv RecvFunc, bufSize int) error
}

// udpTransport implements Transport over a net.PacketConn (UDP v4/v6, or
// unixgram for DomainUnix).
type udpTransport struct {
	domain  TransportDomain
	network string
	conn    net.PacketConn
}

// NewUDPTransport opens a UDP (or unixgram) socket bound to localAddr
// ("host:port", or a path for unixgram) and registers it under domain.
func NewUDPTransport(domain TransportDomain, network, localAddr string) (Transport, error) {
	conn, err := net.ListenPacket(network, localAddr)
	if err != nil {
		return nil, err
	}
	return &udpTransport{domain: domain, network: network, conn: conn}, nil
}

func (t *udpTransport) Domain() TransportDomain { return t.domain }
func (t *udpTransport) LocalAddr() net.Addr     { return t.conn.LocalAddr() }
func (t *udpTransport) Close() error            { return t.conn.Close() }

func (t *udpTransport) Send(addr net.Addr, data []byte) error {
	_, err := t.conn.WriteTo(data, addr)
	return err
}

func (t *udpTransport) ResolveAddr(address string) (net.Addr, error) {
	if t.network == "unixgram" {
		return net.ResolveUnixAddr(t.network, address)
	}
	return net.ResolveUDPAddr(t.network, address)
}

func (t *udpTransport) readLoop(recv RecvFunc, bufSize int) error {
	buf := make([]byte, bufSize)
	for {
		n, src, err := t.conn.ReadFrom(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			continue
		}
		msg := make([]byte, n)
		copy(msg, buf[:n])
		recv(t.domain, src, msg)
	}
}

// Dispatcher is the Transport Dispatcher (C1, RFC 3411 Section 3.1):
// it owns the registered sockets and fans inbound datagrams to recv.
// RunDispatcher returns only once CloseDispatcher has closed the sockets
// (or a read loop fails); it does not wait on the jobStarted/jobFinished
// counter, and no timer or pending request keeps it running.
type Dispatcher struct {
	mu         sync.Mutex
	transports map[TransportDomain]Transport
	recv       RecvFunc
	bufSize    int

	group   *errgroup.Group
	jobs    int64
	jobDone chan struct{}
}

// NewDispatcher builds a Dispatcher that delivers inbound datagrams to
// recv. bufSize bounds a single read (messages larger than this are
// truncated by the OS socket layer; recvBufferSize is the default).
func NewDispatcher(recv RecvFunc, bufSize int) *Dispatcher {
	if bufSize <= 0 {
		bufSize = recvBufferSize
	}
	return &Dispatcher{
		transports: make(map[TransportDomain]Transport),
		recv:       recv,
		bufSize:    bufSize,
		jobDone:    make(chan struct{}, 1),
	}
}

// RegisterTransport adds a transport the dispatcher will read from once
// RunDispatcher starts, and through which SendMessage can route outbound
// octets for its domain.
func (d *Dispatcher) RegisterTransport(t Transport) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.transports[t.Domain()] = t
}

// SendMessage queues data for transmission via the transport registered
// for domain. UDP failures are delivered synchronously (an ICMP
// "destination unreachable" surfaces as a write error); silent loss of
// a datagram already written to the socket is the network's
// prerogative, not ours.
func (d *Dispatcher) SendMessage(domain TransportDomain, addr net.Addr, data []byte) error {
	d.mu.Lock()
	t, ok := d.transports[domain]
	d.mu.Unlock()
	if !ok {
		return &ArgumentError{Value: domain, Message: "No transport registered for domain"}
	}
	return t.Send(addr, data)
}

// ResolveAddr resolves address against whichever transport is registered
// for domain, the coordinate a Command Generator needs before its first
// SendPdu call.
func (d *Dispatcher) ResolveAddr(domain TransportDomain, address string) (net.Addr, error) {
	d.mu.Lock()
	t, ok := d.transports[domain]
	d.mu.Unlock()
	if !ok {
		return nil, &ArgumentError{Value: domain, Message: "No transport registered for domain"}
	}
	return t.ResolveAddr(address)
}

// jobStarted records one unit of async work in the dispatcher's job
// counter. RunDispatcher does not consult this counter.
func (d *Dispatcher) jobStarted() { atomic.AddInt64(&d.jobs, 1) }

// jobFinished releases one unit recorded by jobStarted.
func (d *Dispatcher) jobFinished() {
	if atomic.AddInt64(&d.jobs, -1) == 0 {
		select {
		case d.jobDone <- struct{}{}:
		default:
		}
	}
}

// RunDispatcher starts a read loop per registered transport and blocks
// until CloseDispatcher is called. Each transport's read loop runs in its
// own goroutine, but recv is only ever invoked one datagram at a time per
// transport; callers needing engine-wide serialization should route
// every domain through one shared mutex in their recv callback, the same
// discipline the dispatcher itself uses for its routing tables.
func (d *Dispatcher) RunDispatcher() error {
	d.mu.Lock()
	transports := make([]Transport, 0, len(d.transports))
	for _, t := range d.transports {
		transports = append(transports, t)
	}
	g := &errgroup.Group{}
	d.group = g
	d.mu.Unlock()

	for _, t := range transports {
		t := t
		g.Go(func() error {
			err := t.readLoop(d.recv, d.bufSize)
			if isClosedConnError(err) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// CloseDispatcher closes every registered transport, which unblocks their
// read loops (ReadFrom returns a closed-connection error) so
// RunDispatcher's errgroup.Wait can return.
func (d *Dispatcher) CloseDispatcher() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	var firstErr error
	for _, t := range d.transports {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func isClosedConnError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "closed")
}
