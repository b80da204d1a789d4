package snmpengine

import "fmt"

// message is the whole-message envelope a messageProcessing model frames a
// Pdu into (RFC 3412 Section 6): messageV1 for v1/v2c, messageV3 for v3.
// The Pdu's own bytes are held separately (PduBytes/SetPduBytes) so a
// security model can authenticate or encrypt them without re-parsing the
// Pdu on every pass.
type message interface {
	fmt.Stringer
	Version() SNMPVersion
	Pdu() Pdu
	PduBytes() []byte
	SetPduBytes([]byte)
	Marshal() ([]byte, error)
	Unmarshal([]byte) ([]byte, error)
}

// messageV1 wraps a v1/v2c Pdu with its community string (RFC 1157 Sec 3.2
// / RFC 3416's SNMPv2c message wrapper).
type messageV1 struct {
	version   SNMPVersion
	Community []byte
	pdu       Pdu
	pduBytes  []byte
}

func (m *messageV1) Version() SNMPVersion { return m.version }
func (m *messageV1) Pdu() Pdu             { return m.pdu }
func (m *messageV1) PduBytes() []byte     { return m.pduBytes }
func (m *messageV1) SetPduBytes(b []byte) { m.pduBytes = b }

func (m *messageV1) String() string {
	return fmt.Sprintf(`{"Version": "%s", "Community": "%s", "Pdu": %s}`,
		m.version, toHexStr(m.Community, ""), m.pdu)
}

func (m *messageV1) Marshal() ([]byte, error) {
	verBytes := berEncodeInt(tagInteger, int64(m.version))
	commBytes := berEncodeRaw(classUniversal, tagOctetString, m.Community)
	return berEncodeSequence(verBytes, commBytes, m.pduBytes), nil
}

func (m *messageV1) Unmarshal(b []byte) ([]byte, error) {
	content, rest, err := berDecodeSequence(b, classUniversal, tagSequence)
	if err != nil {
		return nil, err
	}
	ver, after, err := berDecodeInt(content, tagInteger)
	if err != nil {
		return nil, err
	}
	comm, after, err := berDecodeRaw(after, classUniversal, tagOctetString)
	if err != nil {
		return nil, err
	}
	m.version = SNMPVersion(ver)
	m.Community = comm
	m.pduBytes = after
	return rest, nil
}

// msgFlags bits, RFC 3412 Section 6.3.
const (
	flagAuth       = 0x1
	flagPriv       = 0x2
	flagReportable = 0x4
)

// messageV3 is the SNMPv3 message wrapper (RFC 3412 Section 6, RFC 3414
// Section 2.4 for the USM security parameters it embeds).
type messageV3 struct {
	MessageId       int32
	MessageMaxSize  int
	msgFlags        byte
	SecurityModel   securityModel
	AuthEngineId    []byte
	AuthEngineBoots int64
	AuthEngineTime  int64
	UserName        []byte
	AuthParameter   []byte
	PrivParameter   []byte
	pdu             Pdu
	pduBytes        []byte
}

func (m *messageV3) Version() SNMPVersion { return V3 }
func (m *messageV3) Pdu() Pdu             { return m.pdu }
func (m *messageV3) PduBytes() []byte     { return m.pduBytes }
func (m *messageV3) SetPduBytes(b []byte) { m.pduBytes = b }

func (m *messageV3) Authentication() bool     { return m.msgFlags&flagAuth != 0 }
func (m *messageV3) SetAuthentication(v bool) { m.setFlag(flagAuth, v) }
func (m *messageV3) Privacy() bool            { return m.msgFlags&flagPriv != 0 }
func (m *messageV3) SetPrivacy(v bool)        { m.setFlag(flagPriv, v) }
func (m *messageV3) Reportable() bool         { return m.msgFlags&flagReportable != 0 }
func (m *messageV3) SetReportable(v bool)     { m.setFlag(flagReportable, v) }

func (m *messageV3) setFlag(bit byte, v bool) {
	if v {
		m.msgFlags |= bit
	} else {
		m.msgFlags &^= bit
	}
}

func (m *messageV3) String() string {
	return fmt.Sprintf(`{"MessageId": %d, "MessageMaxSize": %d, "Flags": %02x, `+
		`"SecurityModel": %d, "AuthEngineId": "%s", "AuthEngineBoots": %d, `+
		`"AuthEngineTime": %d, "UserName": "%s", "Pdu": %s}`,
		m.MessageId, m.MessageMaxSize, m.msgFlags, m.SecurityModel,
		toHexStr(m.AuthEngineId, ""), m.AuthEngineBoots, m.AuthEngineTime, m.UserName, m.pdu)
}

// Marshal encodes the outer HeaderData/globalData and the already-secured
// msgSecurityParameters + msgData; the latter must be set via
// SetPduBytes by the security model before this is called.
func (m *messageV3) Marshal() ([]byte, error) {
	headerData := berEncodeSequence(
		berEncodeInt(tagInteger, int64(m.MessageId)),
		berEncodeInt(tagInteger, int64(m.MessageMaxSize)),
		berEncodeRaw(classUniversal, tagOctetString, []byte{m.msgFlags}),
		berEncodeInt(tagInteger, int64(m.SecurityModel)),
	)
	secParams := berEncodeSequence(
		berEncodeRaw(classUniversal, tagOctetString, m.AuthEngineId),
		berEncodeInt(tagInteger, m.AuthEngineBoots),
		berEncodeInt(tagInteger, m.AuthEngineTime),
		berEncodeRaw(classUniversal, tagOctetString, m.UserName),
		berEncodeRaw(classUniversal, tagOctetString, m.AuthParameter),
		berEncodeRaw(classUniversal, tagOctetString, m.PrivParameter),
	)
	return berEncodeSequence(
		berEncodeInt(tagInteger, int64(V3)),
		headerData,
		berEncodeRaw(classUniversal, tagOctetString, secParams),
		m.pduBytes,
	), nil
}

func (m *messageV3) Unmarshal(b []byte) ([]byte, error) {
	content, rest, err := berDecodeSequence(b, classUniversal, tagSequence)
	if err != nil {
		return nil, err
	}
	_, after, err := berDecodeInt(content, tagInteger) // version, already dispatched on
	if err != nil {
		return nil, err
	}
	hdrContent, after, err := berDecodeSequence(after, classUniversal, tagSequence)
	if err != nil {
		return nil, err
	}
	msgId, hdrRest, err := berDecodeInt(hdrContent, tagInteger)
	if err != nil {
		return nil, err
	}
	maxSize, hdrRest, err := berDecodeInt(hdrRest, tagInteger)
	if err != nil {
		return nil, err
	}
	flags, hdrRest, err := berDecodeRaw(hdrRest, classUniversal, tagOctetString)
	if err != nil {
		return nil, err
	}
	secModel, _, err := berDecodeInt(hdrRest, tagInteger)
	if err != nil {
		return nil, err
	}

	secParamsBytes, after, err := berDecodeRaw(after, classUniversal, tagOctetString)
	if err != nil {
		return nil, err
	}
	spContent, _, err := berDecodeSequence(secParamsBytes, classUniversal, tagSequence)
	if err != nil {
		return nil, err
	}
	engId, spRest, err := berDecodeRaw(spContent, classUniversal, tagOctetString)
	if err != nil {
		return nil, err
	}
	boots, spRest, err := berDecodeInt(spRest, tagInteger)
	if err != nil {
		return nil, err
	}
	etime, spRest, err := berDecodeInt(spRest, tagInteger)
	if err != nil {
		return nil, err
	}
	user, spRest, err := berDecodeRaw(spRest, classUniversal, tagOctetString)
	if err != nil {
		return nil, err
	}
	authParam, spRest, err := berDecodeRaw(spRest, classUniversal, tagOctetString)
	if err != nil {
		return nil, err
	}
	privParam, _, err := berDecodeRaw(spRest, classUniversal, tagOctetString)
	if err != nil {
		return nil, err
	}

	m.MessageId = int32(msgId)
	m.MessageMaxSize = int(maxSize)
	if len(flags) > 0 {
		m.msgFlags = flags[0]
	}
	m.SecurityModel = securityModel(secModel)
	m.AuthEngineId = engId
	m.AuthEngineBoots = boots
	m.AuthEngineTime = etime
	m.UserName = user
	m.AuthParameter = authParam
	m.PrivParameter = privParam
	m.pduBytes = after
	return rest, nil
}

func newMessageWithPdu(version SNMPVersion, pdu Pdu) message {
	if version == V3 {
		return &messageV3{pdu: pdu}
	}
	return &messageV1{version: version, pdu: pdu}
}
