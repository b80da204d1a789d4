package snmpengine

import "fmt"

// pduTags maps a PduType to its RFC 3416/3412 context-specific tag.
var pduTags = map[PduType]int{
	GetRequest:     tagGetRequest,
	GetNextRequest: tagGetNextRequest,
	GetResponse:    tagGetResponse,
	SetRequest:     tagSetRequest,
	Trap:           tagTrap,
	GetBulkRequest: tagGetBulkRequest,
	InformRequest:  tagInformRequest,
	SNMPTrapV2:     tagSNMPTrapV2,
	Report:         tagReport,
}

var pduTagsRev = func() map[int]PduType {
	m := make(map[int]PduType, len(pduTags))
	for t, tag := range pduTags {
		m[tag] = t
	}
	return m
}()

func marshalVarBind(vb VarBind) ([]byte, error) {
	oidBytes := berEncodeOid(vb.Oid)
	valBytes, err := vb.Variable.Marshal()
	if err != nil {
		return nil, err
	}
	return berEncodeSequence(oidBytes, valBytes), nil
}

func unmarshalVarBind(b []byte) (VarBind, []byte, error) {
	content, rest, err := berDecodeSequence(b, classUniversal, tagSequence)
	if err != nil {
		return VarBind{}, nil, err
	}
	oid, after, err := berDecodeOid(content)
	if err != nil {
		return VarBind{}, nil, err
	}
	v, err := decodeVariable(after)
	if err != nil {
		return VarBind{}, nil, err
	}
	return VarBind{Oid: oid, Variable: v}, rest, nil
}

// decodeVariable peeks the class/tag of the value half of a VarBind and
// dispatches to the matching Variable implementation's Unmarshal.
func decodeVariable(b []byte) (Variable, error) {
	class, tag, _, err := berPeekTag(b)
	if err != nil {
		return nil, err
	}
	var v Variable
	switch {
	case class == classUniversal && tag == tagInteger:
		v = &Integer{}
	case class == classUniversal && tag == tagOctetString:
		v = &OctetString{}
	case class == classUniversal && tag == tagNull:
		v = &Null{}
	case class == classUniversal && tag == tagObjectIdentifier:
		v = &ObjectIdentifier{}
	case class == classApplication && tag == tagIpAddress:
		v = &IpAddress{}
	case class == classApplication && tag == tagCounter32:
		v = &Counter32{unsigned32{tag: tagCounter32}}
	case class == classApplication && tag == tagGauge32:
		v = &Gauge32{unsigned32{tag: tagGauge32}}
	case class == classApplication && tag == tagTimeTicks:
		v = &TimeTicks{unsigned32{tag: tagTimeTicks}}
	case class == classApplication && tag == tagOpaque:
		v = &Opaque{}
	case class == classApplication && tag == tagCounter64:
		v = &Counter64{}
	case class == classContext && tag == tagNoSuchObject:
		v = &NoSuchObject{}
	case class == classContext && tag == tagNoSuchInstance:
		v = &NoSuchInstance{}
	case class == classContext && tag == tagEndOfMibView:
		v = &EndOfMibView{}
	default:
		return nil, &MessageError{Message: fmt.Sprintf(
			"Unknown VarBind value tag - class %d tag %d", class, tag)}
	}
	if _, err := v.Unmarshal(b); err != nil {
		return nil, err
	}
	return v, nil
}

func marshalVarBindList(vbs VarBinds) ([]byte, error) {
	children := make([][]byte, len(vbs))
	for i, vb := range vbs {
		b, err := marshalVarBind(vb)
		if err != nil {
			return nil, err
		}
		children[i] = b
	}
	return berEncodeSequence(children...), nil
}

func unmarshalVarBindList(b []byte) (VarBinds, error) {
	content, _, err := berDecodeSequence(b, classUniversal, tagSequence)
	if err != nil {
		return nil, err
	}
	var vbs VarBinds
	for len(content) > 0 {
		vb, rest, err := unmarshalVarBind(content)
		if err != nil {
			return nil, err
		}
		vbs = append(vbs, vb)
		content = rest
	}
	return vbs, nil
}

// pduBody encodes the four fields common to every PDU's BER body: the two
// integers following request-id differ in meaning for GetBulkRequest
// (non-repeaters/max-repetitions) vs everything else (error-status/
// error-index), per RFC 3416 Section 3.
func pduBody(p *pduCore) ([]byte, error) {
	vbList, err := marshalVarBindList(p.varBinds)
	if err != nil {
		return nil, err
	}
	f2, f3 := p.errorStatus, p.errorIndex
	if p.pduType == GetBulkRequest {
		f2, f3 = p.nonRepeaters, p.maxRepetitions
	}
	return berEncodeSequence(
		berEncodeInt(tagInteger, int64(p.requestId)),
		berEncodeInt(tagInteger, int64(f2)),
		berEncodeInt(tagInteger, int64(f3)),
		vbList,
	), nil
}

func unmarshalPduBody(p *pduCore, content []byte) error {
	reqId, rest, err := berDecodeInt(content, tagInteger)
	if err != nil {
		return err
	}
	f2, rest, err := berDecodeInt(rest, tagInteger)
	if err != nil {
		return err
	}
	f3, rest, err := berDecodeInt(rest, tagInteger)
	if err != nil {
		return err
	}
	vbs, err := unmarshalVarBindList(rest)
	if err != nil {
		return err
	}
	p.requestId = int32(reqId)
	if p.pduType == GetBulkRequest {
		p.nonRepeaters, p.maxRepetitions = int(f2), int(f3)
	} else {
		p.errorStatus, p.errorIndex = int(f2), int(f3)
	}
	p.varBinds = vbs
	return nil
}

func marshalPduV1(p *PduV1) ([]byte, error) {
	tag, ok := pduTags[p.pduType]
	if !ok {
		return nil, &ArgumentError{Value: p.pduType, Message: "Unknown PduType"}
	}
	body, err := pduBody(&p.pduCore)
	if err != nil {
		return nil, err
	}
	// body is already a full SEQUENCE TLV; re-tag it as the context-specific
	// PDU tag by re-wrapping its inner content.
	content, _, err := berDecodeSequence(body, classUniversal, tagSequence)
	if err != nil {
		return nil, err
	}
	return berEncodeConstructed(classContext, tag, content), nil
}

func unmarshalPduV1(p *PduV1, b []byte) ([]byte, error) {
	class, tag, _, err := berPeekTag(b)
	if err != nil {
		return nil, err
	}
	if class != classContext {
		return nil, &MessageError{Message: "Pdu is not a context-tagged value"}
	}
	t, ok := pduTagsRev[tag]
	if !ok {
		return nil, &MessageError{Message: fmt.Sprintf("Unknown Pdu tag %d", tag)}
	}
	content, rest, err := berDecodeSequence(b, classContext, tag)
	if err != nil {
		return nil, err
	}
	p.pduType = t
	if err := unmarshalPduBody(&p.pduCore, content); err != nil {
		return nil, err
	}
	return rest, nil
}

// marshalScopedPdu encodes the ScopedPDU envelope (RFC 3412 Sec. 6.1.2):
// SEQUENCE { contextEngineID OCTET STRING, contextName OCTET STRING,
// data PDU }.
func marshalScopedPdu(p *ScopedPdu) ([]byte, error) {
	tag, ok := pduTags[p.pduType]
	if !ok {
		return nil, &ArgumentError{Value: p.pduType, Message: "Unknown PduType"}
	}
	body, err := pduBody(&p.pduCore)
	if err != nil {
		return nil, err
	}
	content, _, err := berDecodeSequence(body, classUniversal, tagSequence)
	if err != nil {
		return nil, err
	}
	pduBytes := berEncodeConstructed(classContext, tag, content)
	return berEncodeSequence(
		berEncodeRaw(classUniversal, tagOctetString, p.ContextEngineId),
		berEncodeRaw(classUniversal, tagOctetString, p.ContextName),
		pduBytes,
	), nil
}

func unmarshalScopedPdu(p *ScopedPdu, b []byte) ([]byte, error) {
	content, rest, err := berDecodeSequence(b, classUniversal, tagSequence)
	if err != nil {
		return nil, err
	}
	engId, after, err := berDecodeRaw(content, classUniversal, tagOctetString)
	if err != nil {
		return nil, err
	}
	name, after, err := berDecodeRaw(after, classUniversal, tagOctetString)
	if err != nil {
		return nil, err
	}
	class, tag, _, err := berPeekTag(after)
	if err != nil {
		return nil, err
	}
	if class != classContext {
		return nil, &MessageError{Message: "ScopedPdu data is not a context-tagged Pdu"}
	}
	t, ok := pduTagsRev[tag]
	if !ok {
		return nil, &MessageError{Message: fmt.Sprintf("Unknown Pdu tag %d", tag)}
	}
	pduContent, _, err := berDecodeSequence(after, classContext, tag)
	if err != nil {
		return nil, err
	}
	p.ContextEngineId = engId
	p.ContextName = name
	p.pduType = t
	if err := unmarshalPduBody(&p.pduCore, pduContent); err != nil {
		return nil, err
	}
	return rest, nil
}
