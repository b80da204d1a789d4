package snmpengine

import (
	"encoding/binary"
	"fmt"
	"math/big"
	"net"
)

// Variable is the typed value half of a VarBind. It is a closed set per
// the SMIv2 ASN.1 application classes (RFC 2578 Section 7) plus the three
// SNMPv2 exception values.
type Variable interface {
	fmt.Stringer
	// Marshal returns the BER encoding of the value, tag included.
	Marshal() ([]byte, error)
	// Unmarshal decodes a BER value (tag included) into the receiver.
	Unmarshal([]byte) (rest []byte, err error)
}

// Integer is the ASN.1 INTEGER type, used directly for Integer32 and for
// errorStatus/errorIndex/request-id fields.
type Integer struct{ Value int32 }

func NewInteger(v int32) *Integer { return &Integer{Value: v} }
func (i *Integer) String() string { return fmt.Sprintf("%d", i.Value) }
func (i *Integer) Marshal() ([]byte, error) {
	return berEncodeInt(tagInteger, int64(i.Value)), nil
}
func (i *Integer) Unmarshal(b []byte) ([]byte, error) {
	v, rest, err := berDecodeInt(b, tagInteger)
	if err != nil {
		return nil, err
	}
	i.Value = int32(v)
	return rest, nil
}

// OctetString is the ASN.1 OCTET STRING type.
type OctetString struct{ Value []byte }

func NewOctetString(v []byte) *OctetString { return &OctetString{Value: v} }
func (s *OctetString) String() string      { return string(s.Value) }
func (s *OctetString) Marshal() ([]byte, error) {
	return berEncodeRaw(classUniversal, tagOctetString, s.Value), nil
}
func (s *OctetString) Unmarshal(b []byte) ([]byte, error) {
	v, rest, err := berDecodeRaw(b, classUniversal, tagOctetString)
	if err != nil {
		return nil, err
	}
	s.Value = v
	return rest, nil
}

// Null is the ASN.1 NULL type, used as a VarBind placeholder in requests.
type Null struct{}

func (Null) String() string { return "Null" }
func (Null) Marshal() ([]byte, error) {
	return berEncodeRaw(classUniversal, tagNull, nil), nil
}
func (n *Null) Unmarshal(b []byte) ([]byte, error) {
	_, rest, err := berDecodeRaw(b, classUniversal, tagNull)
	return rest, err
}

// ObjectIdentifier wraps an Oid as a Variable (distinct from the VarBind's
// own name field, which is always present; this is used when an OID
// itself is a value, e.g. snmpTrapOID.0).
type ObjectIdentifier struct{ Oid Oid }

func NewObjectIdentifier(o Oid) *ObjectIdentifier { return &ObjectIdentifier{Oid: o} }
func (o *ObjectIdentifier) String() string        { return o.Oid.String() }
func (o *ObjectIdentifier) Marshal() ([]byte, error) {
	return berEncodeOid(o.Oid), nil
}
func (o *ObjectIdentifier) Unmarshal(b []byte) ([]byte, error) {
	oid, rest, err := berDecodeOid(b)
	if err != nil {
		return nil, err
	}
	o.Oid = oid
	return rest, nil
}

// IpAddress is the SMIv2 Application 0 type: a 4-octet IPv4 address.
type IpAddress struct{ Value net.IP }

func NewIpAddress(v net.IP) *IpAddress { return &IpAddress{Value: v.To4()} }
func (a *IpAddress) String() string    { return a.Value.String() }
func (a *IpAddress) Marshal() ([]byte, error) {
	return berEncodeRaw(classApplication, tagIpAddress, []byte(a.Value.To4())), nil
}
func (a *IpAddress) Unmarshal(b []byte) ([]byte, error) {
	v, rest, err := berDecodeRaw(b, classApplication, tagIpAddress)
	if err != nil {
		return nil, err
	}
	a.Value = net.IP(v)
	return rest, nil
}

// unsigned32 is shared by Counter32, Gauge32 and TimeTicks, which differ
// only by their ASN.1 application tag.
type unsigned32 struct {
	Value uint32
	tag   byte
	name  string
}

func (u *unsigned32) String() string { return fmt.Sprintf("%d", u.Value) }
func (u *unsigned32) Marshal() ([]byte, error) {
	return berEncodeRaw(classApplication, u.tag, big.NewInt(int64(u.Value)).Bytes()), nil
}
func (u *unsigned32) Unmarshal(b []byte) ([]byte, error) {
	raw, rest, err := berDecodeRaw(b, classApplication, u.tag)
	if err != nil {
		return nil, err
	}
	u.Value = uint32(new(big.Int).SetBytes(raw).Uint64())
	return rest, nil
}

type Counter32 struct{ unsigned32 }
type Gauge32 struct{ unsigned32 }
type TimeTicks struct{ unsigned32 }

func NewCounter32(v uint32) *Counter32 {
	return &Counter32{unsigned32{Value: v, tag: tagCounter32, name: "Counter32"}}
}
func NewGauge32(v uint32) *Gauge32 {
	return &Gauge32{unsigned32{Value: v, tag: tagGauge32, name: "Gauge32"}}
}
func NewTimeTicks(v uint32) *TimeTicks {
	return &TimeTicks{unsigned32{Value: v, tag: tagTimeTicks, name: "TimeTicks"}}
}

// Opaque carries an arbitrarily BER-encoded value inside an OCTET STRING
// wrapper (RFC 2578 Section 7.1.7).
type Opaque struct{ Value []byte }

func NewOpaque(v []byte) *Opaque { return &Opaque{Value: v} }
func (o *Opaque) String() string { return fmt.Sprintf("% x", o.Value) }
func (o *Opaque) Marshal() ([]byte, error) {
	return berEncodeRaw(classApplication, tagOpaque, o.Value), nil
}
func (o *Opaque) Unmarshal(b []byte) ([]byte, error) {
	v, rest, err := berDecodeRaw(b, classApplication, tagOpaque)
	if err != nil {
		return nil, err
	}
	o.Value = v
	return rest, nil
}

// Counter64 is the SMIv2 64-bit counter (RFC 2578 Section 7.1.10); absent
// from SNMPv1, where it must be translated away (RFC 2576 Section 4.1.2).
type Counter64 struct{ Value uint64 }

func NewCounter64(v uint64) *Counter64 { return &Counter64{Value: v} }
func (c *Counter64) String() string    { return fmt.Sprintf("%d", c.Value) }
func (c *Counter64) Marshal() ([]byte, error) {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, c.Value)
	i := 0
	for i < 7 && buf[i] == 0 && buf[i+1]&0x80 == 0 {
		i++
	}
	return berEncodeRaw(classApplication, tagCounter64, buf[i:]), nil
}
func (c *Counter64) Unmarshal(b []byte) ([]byte, error) {
	raw, rest, err := berDecodeRaw(b, classApplication, tagCounter64)
	if err != nil {
		return nil, err
	}
	c.Value = new(big.Int).SetBytes(raw).Uint64()
	return rest, nil
}

// The three SNMPv2 exception values (RFC 3416 Section 2), encoded as
// context-specific primitives with no content.
type NoSuchObject struct{}
type NoSuchInstance struct{}
type EndOfMibView struct{}

func (NoSuchObject) String() string   { return "noSuchObject" }
func (NoSuchInstance) String() string { return "noSuchInstance" }
func (EndOfMibView) String() string   { return "endOfMibView" }

func (NoSuchObject) Marshal() ([]byte, error) {
	return berEncodeRaw(classContext, tagNoSuchObject, nil), nil
}
func (n *NoSuchObject) Unmarshal(b []byte) ([]byte, error) {
	_, rest, err := berDecodeRaw(b, classContext, tagNoSuchObject)
	return rest, err
}

func (NoSuchInstance) Marshal() ([]byte, error) {
	return berEncodeRaw(classContext, tagNoSuchInstance, nil), nil
}
func (n *NoSuchInstance) Unmarshal(b []byte) ([]byte, error) {
	_, rest, err := berDecodeRaw(b, classContext, tagNoSuchInstance)
	return rest, err
}

func (EndOfMibView) Marshal() ([]byte, error) {
	return berEncodeRaw(classContext, tagEndOfMibView, nil), nil
}
func (n *EndOfMibView) Unmarshal(b []byte) ([]byte, error) {
	_, rest, err := berDecodeRaw(b, classContext, tagEndOfMibView)
	return rest, err
}

// isExceptionValue reports whether v is one of the three SNMPv2
// exception values, which RFC 2576 Section 4.1.2 says must become
// noSuchName(2) when translated down to SNMPv1.
func isExceptionValue(v Variable) bool {
	switch v.(type) {
	case *NoSuchObject, *NoSuchInstance, *EndOfMibView:
		return true
	default:
		return false
	}
}
