// Package snmpengine implements an SNMP engine (RFC 3411-3418) able to act
// as both a command generator (manager) and a command responder (agent)
// for SNMPv1, SNMPv2c and SNMPv3 within a single process.
//
// The engine is built around five cooperating pieces: a transport
// dispatcher (C1) that owns the sockets, per-version message processing
// models (C2) that frame and unframe whole messages, security models (C3)
// that authenticate and (for v3) encrypt them, a view-based access control
// model (C4), and a message & PDU dispatcher (C5) that ties the others
// together and correlates requests with responses. The command responder
// and command generator state machines (C6/C7) and the notification
// originator/receiver (C8) are built on top of that core.
package snmpengine
