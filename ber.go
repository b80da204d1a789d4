package snmpengine

// BER/DER encode and decode helpers used by the Variable, Pdu and message
// types. It leans on the standard library's asn1.RawValue framing for TLV
// plumbing and on github.com/geoffgarside/ber for the permissive
// (indefinite-length tolerant) decoding SNMP agents in the wild are known
// to emit, exactly as the vendored snmpgo security.go already does when
// unwrapping an encrypted scopedPDU octet string.

import (
	"encoding/asn1"
	"fmt"

	gber "github.com/geoffgarside/ber"
)

const (
	classUniversal   = 0
	classApplication = 1
	classContext     = 2
	classPrivate     = 3
)

const (
	tagInteger          = 2
	tagOctetString      = 4
	tagNull             = 5
	tagObjectIdentifier = 6
	tagSequence         = 16

	// SMIv2 Application-class tags (RFC 2578 Sec. 7.1).
	tagIpAddress = 0
	tagCounter32 = 1
	tagGauge32   = 2
	tagTimeTicks = 3
	tagOpaque    = 4
	tagCounter64 = 6

	// SNMPv2 exception values are context-specific primitives (RFC 3416 Sec. 2).
	tagNoSuchObject   = 0
	tagNoSuchInstance = 1
	tagEndOfMibView   = 2

	// PDU tags are context-specific constructed (RFC 3416 Sec. 3 / RFC 3412 Sec. 6).
	tagGetRequest     = 0
	tagGetNextRequest = 1
	tagGetResponse    = 2
	tagSetRequest     = 3
	tagTrap           = 4 // v1 only
	tagGetBulkRequest = 5
	tagInformRequest  = 6
	tagSNMPTrapV2     = 7
	tagReport         = 8
)

// berEncodeRaw builds a full TLV for a primitive value of the given
// class/tag with the supplied content octets.
func berEncodeRaw(class, tag int, content []byte) []byte {
	raw := asn1.RawValue{Class: class, Tag: tag, IsCompound: false, Bytes: content}
	b, err := asn1.Marshal(raw)
	if err != nil {
		// Only reachable for content asn1.Marshal itself cannot frame,
		// which does not happen for a byte slice; keep the panic local
		// to callers that construct malformed values in tests.
		panic(err)
	}
	return b
}

// berEncodeConstructed builds a full TLV for a constructed value (SEQUENCE
// or a context-tagged PDU) whose content is the concatenation of already
// encoded children.
func berEncodeConstructed(class, tag int, children ...[]byte) []byte {
	var content []byte
	for _, c := range children {
		content = append(content, c...)
	}
	raw := asn1.RawValue{Class: class, Tag: tag, IsCompound: true, Bytes: content}
	b, err := asn1.Marshal(raw)
	if err != nil {
		panic(err)
	}
	return b
}

func berEncodeSequence(children ...[]byte) []byte {
	return berEncodeConstructed(classUniversal, tagSequence, children...)
}

// berDecodeRaw parses one TLV off the front of b and verifies its
// class/tag, returning the content octets and the remaining bytes.
func berDecodeRaw(b []byte, wantClass, wantTag int) (content, rest []byte, err error) {
	var raw asn1.RawValue
	rest, err = gber.Unmarshal(b, &raw)
	if err != nil {
		return nil, nil, &MessageError{Cause: err, Message: "Failed to unmarshal BER value"}
	}
	if raw.Class != wantClass || raw.Tag != wantTag {
		return nil, nil, &MessageError{Message: fmt.Sprintf(
			"Unexpected BER tag - want class %d tag %d, got class %d tag %d",
			wantClass, wantTag, raw.Class, raw.Tag)}
	}
	return raw.Bytes, rest, nil
}

// berPeekTag reports the class/tag of the next TLV in b without consuming
// it, so callers can dispatch on PDU type before fully decoding.
func berPeekTag(b []byte) (class, tag int, compound bool, err error) {
	var raw asn1.RawValue
	_, err = gber.Unmarshal(b, &raw)
	if err != nil {
		return 0, 0, false, &MessageError{Cause: err, Message: "Failed to peek BER tag"}
	}
	return raw.Class, raw.Tag, raw.IsCompound, nil
}

// berDecodeSequence unwraps any constructed TLV (SEQUENCE or a
// context-tagged PDU) and returns its content for further decoding.
func berDecodeSequence(b []byte, wantClass, wantTag int) (content, rest []byte, err error) {
	var raw asn1.RawValue
	rest, err = gber.Unmarshal(b, &raw)
	if err != nil {
		return nil, nil, &MessageError{Cause: err, Message: "Failed to unmarshal BER sequence"}
	}
	if raw.Class != wantClass || raw.Tag != wantTag || !raw.IsCompound {
		return nil, nil, &MessageError{Message: fmt.Sprintf(
			"Unexpected BER sequence - want class %d tag %d, got class %d tag %d",
			wantClass, wantTag, raw.Class, raw.Tag)}
	}
	return raw.Bytes, rest, nil
}

func berEncodeInt(tag int, v int64) []byte {
	return berEncodeRaw(classUniversal, tag, minimalTwosComplement(v))
}

func berDecodeInt(b []byte, tag int) (int64, []byte, error) {
	content, rest, err := berDecodeRaw(b, classUniversal, tag)
	if err != nil {
		return 0, nil, err
	}
	return twosComplementToInt(content), rest, nil
}

func minimalTwosComplement(v int64) []byte {
	if v == 0 {
		return []byte{0}
	}
	var buf []byte
	for {
		buf = append([]byte{byte(v)}, buf...)
		v >>= 8
		if (v == 0 && buf[0]&0x80 == 0) || (v == -1 && buf[0]&0x80 != 0) {
			break
		}
	}
	return buf
}

func twosComplementToInt(b []byte) int64 {
	if len(b) == 0 {
		return 0
	}
	var v int64
	if b[0]&0x80 != 0 {
		v = -1
	}
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

func berEncodeOid(o Oid) []byte {
	ints := make(asn1.ObjectIdentifier, len(o))
	for i, a := range o {
		ints[i] = int(a)
	}
	b, err := asn1.Marshal(ints)
	if err != nil {
		panic(err)
	}
	return b
}

func berDecodeOid(b []byte) (Oid, []byte, error) {
	var ints asn1.ObjectIdentifier
	rest, err := gber.Unmarshal(b, &ints)
	if err != nil {
		return nil, nil, &MessageError{Cause: err, Message: "Failed to unmarshal Oid"}
	}
	oid := make(Oid, len(ints))
	for i, n := range ints {
		oid[i] = uint32(n)
	}
	return oid, rest, nil
}
