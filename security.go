package snmpengine

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/des"
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"encoding/asn1"
	"encoding/binary"
	"fmt"
	"hash"
	"math"
	"sync"
	"time"

	gber "github.com/geoffgarside/ber"
)

// security is a Security Model (RFC 3411 Section 3.3): it frames a Pdu into
// a message on the way out, authenticates/decrypts one on the way in, and
// (for USM) drives the discovery handshake a command generator needs
// before it can talk to an unknown agent.
type security interface {
	Identifier() string
	GenerateRequestMessage(message) error
	GenerateResponseMessage(message) error
	ProcessIncomingMessage(message) error
	Discover(pduSender) error
	String() string
}

// pduSender is the slice of Generator a security model needs to run USM
// discovery probes without importing the whole command-generator surface.
type pduSender interface {
	sendProbePdu(version SNMPVersion, level SecurityLevel) error
}

// community implements the Community-based Security Model used by v1/v2c
// (RFC 3584): authentication is just a string comparison, there is no
// privacy and no discovery handshake.
type community struct {
	Community []byte
}

func (c *community) Identifier() string { return string(c.Community) }

func (c *community) GenerateRequestMessage(sendMsg message) error {
	m := sendMsg.(*messageV1)
	m.Community = c.Community

	b, err := m.Pdu().Marshal()
	if err != nil {
		return err
	}
	m.SetPduBytes(b)
	return nil
}

func (c *community) GenerateResponseMessage(sendMsg message) error {
	return c.GenerateRequestMessage(sendMsg)
}

func (c *community) ProcessIncomingMessage(recvMsg message) error {
	rm := recvMsg.(*messageV1)

	if !bytes.Equal(c.Community, rm.Community) {
		return &MessageError{
			Message: fmt.Sprintf(
				"Community mismatch - expected [%s], actual [%s]",
				toHexStr(c.Community, ""), toHexStr(rm.Community, "")),
			Detail: fmt.Sprintf("Message - [%s]", rm),
		}
	}

	if _, err := rm.Pdu().Unmarshal(rm.PduBytes()); err != nil {
		return &MessageError{
			Cause:   err,
			Message: "Failed to Unmarshal Pdu",
			Detail:  fmt.Sprintf("Pdu Bytes - [%s]", toHexStr(rm.PduBytes(), " ")),
		}
	}
	return nil
}

func (c *community) Discover(pduSender) error { return nil }

func (c *community) String() string {
	return fmt.Sprintf(`{"Community": "%s"}`, toHexStr(c.Community, ""))
}

// discoveryStatus tracks a USM principal's progress through the RFC 3414
// Section 4 discovery/time-synchronization handshake.
type discoveryStatus int

const (
	noDiscovered   discoveryStatus = iota // client side: authoritative engine unknown
	noSynchronized                        // client side: engine known, boots/time not yet synced
	discovered                            // client side: fully synchronized

	remoteReference // server side: a remembered non-authoritative user, per RFC 3414 Sec 2.3
)

func (d discoveryStatus) String() string {
	switch d {
	case noDiscovered:
		return "noDiscovered"
	case noSynchronized:
		return "noSynchronized"
	case discovered:
		return "discovered"
	case remoteReference:
		return "remoteReference"
	default:
		return "Unknown"
	}
}

// usm implements the User-based Security Model (RFC 3414): HMAC-MD5-96 /
// HMAC-SHA-96 authentication, DES-CBC / AES-CFB privacy, and the engine
// discovery + time-window handshake both manager and agent roles need.
type usm struct {
	UserName        []byte
	DiscoveryStatus discoveryStatus
	AuthEngineId    []byte
	AuthEngineBoots int64
	AuthEngineTime  int64
	UpdatedTime     time.Time
	AuthKey         []byte
	AuthPassword    string
	AuthProtocol    AuthProtocol
	PrivKey         []byte
	PrivPassword    string
	PrivProtocol    PrivProtocol
}

func (u *usm) Identifier() string {
	id := string(u.AuthEngineId) + ":" + string(u.UserName)
	if len(u.AuthPassword) > 0 {
		id += ":auth"
	}
	return id
}

func (u *usm) GenerateRequestMessage(sendMsg message) error {
	m := sendMsg.(*messageV3)

	if u.DiscoveryStatus > noDiscovered {
		m.UserName = u.UserName
		m.AuthEngineId = u.AuthEngineId
	}
	if u.DiscoveryStatus > noSynchronized {
		if err := u.UpdateEngineBootsTime(); err != nil {
			return err
		}
		m.AuthEngineBoots = u.AuthEngineBoots
		m.AuthEngineTime = u.AuthEngineTime
	}

	pduBytes, err := sendMsg.Pdu().Marshal()
	if err != nil {
		return err
	}
	m.SetPduBytes(pduBytes)

	if m.Authentication() {
		if m.Privacy() {
			if err := encrypt(m, u.PrivProtocol, u.PrivKey); err != nil {
				return err
			}
		}
		digest, err := mac(m, u.AuthProtocol, u.AuthKey)
		if err != nil {
			return err
		}
		m.AuthParameter = digest
	}
	return nil
}

func (u *usm) GenerateResponseMessage(sendMsg message) error {
	return u.GenerateRequestMessage(sendMsg)
}

func (u *usm) ProcessIncomingMessage(recvMsg message) error {
	rm := recvMsg.(*messageV3)

	if rm.Privacy() && !rm.Authentication() {
		return &UsmReportError{Kind: usmStatsUnsupportedSecLevel, Err: &MessageError{
			Message: "Privacy requested without authentication"}}
	}

	// RFC 3411 Section 5
	if l := len(rm.AuthEngineId); l < 5 || l > 32 {
		return &MessageError{Message: fmt.Sprintf(
			"AuthEngineId length is range 5..32, value [%s]", toHexStr(rm.AuthEngineId, ""))}
	}
	if rm.AuthEngineBoots < 0 || rm.AuthEngineBoots > math.MaxInt32 {
		return &MessageError{Message: fmt.Sprintf(
			"AuthEngineBoots is range 0..%d, value [%d]", int32(math.MaxInt32), rm.AuthEngineBoots)}
	}
	if rm.AuthEngineTime < 0 || rm.AuthEngineTime > math.MaxInt32 {
		return &MessageError{Message: fmt.Sprintf(
			"AuthEngineTime is range 0..%d, value [%d]", int32(math.MaxInt32), rm.AuthEngineTime)}
	}
	if u.DiscoveryStatus > noDiscovered {
		if !bytes.Equal(u.AuthEngineId, rm.AuthEngineId) {
			return &UsmReportError{Kind: usmStatsUnknownEngineId, Err: &MessageError{
				Message: fmt.Sprintf("AuthEngineId mismatch - expected [%s], actual [%s]",
					toHexStr(u.AuthEngineId, ""), toHexStr(rm.AuthEngineId, "")),
				Detail: fmt.Sprintf("Message - [%s]", rm),
			}}
		}
		if !bytes.Equal(u.UserName, rm.UserName) {
			return &UsmReportError{Kind: usmStatsUnknownUserName, Err: &MessageError{
				Message: fmt.Sprintf("UserName mismatch - expected [%s], actual [%s]",
					toHexStr(u.UserName, ""), toHexStr(rm.UserName, "")),
				Detail: fmt.Sprintf("Message - [%s]", rm),
			}}
		}
	}

	if rm.Authentication() {
		digest, err := mac(rm, u.AuthProtocol, u.AuthKey)
		if err != nil {
			return &MessageError{Cause: err, Message: "Can't get a message digest"}
		}
		if !hmac.Equal(rm.AuthParameter, digest) {
			return &UsmReportError{Kind: usmStatsWrongDigest, Err: &MessageError{Message: fmt.Sprintf(
				"Failed to authenticate - expected [%s], actual [%s]",
				toHexStr(rm.AuthParameter, ""), toHexStr(digest, ""))}}
		}
		if rm.Privacy() {
			if err := decrypt(rm, u.PrivProtocol, u.PrivKey, rm.PrivParameter); err != nil {
				return &UsmReportError{Kind: usmStatsDecryptionError,
					Err: &MessageError{Cause: err, Message: "Can't decrypt a message"}}
			}
		}
	}

	switch u.DiscoveryStatus {
	case remoteReference:
		if rm.Authentication() {
			if err := u.CheckTimeliness(rm.AuthEngineBoots, rm.AuthEngineTime); err != nil {
				return &UsmReportError{Kind: usmStatsNotInTimeWindow, Err: err}
			}
			u.SynchronizeEngineBootsTime(rm.AuthEngineBoots, rm.AuthEngineTime)
		}
	case discovered:
		if rm.Authentication() {
			if err := u.CheckTimeliness(rm.AuthEngineBoots, rm.AuthEngineTime); err != nil {
				u.SynchronizeEngineBootsTime(0, 0)
				u.DiscoveryStatus = noSynchronized
				return &UsmReportError{Kind: usmStatsNotInTimeWindow, Err: err}
			}
		}
		fallthrough
	case noSynchronized:
		if rm.Authentication() {
			u.SynchronizeEngineBootsTime(rm.AuthEngineBoots, rm.AuthEngineTime)
			u.DiscoveryStatus = discovered
		}
	case noDiscovered:
		u.SetAuthEngineId(rm.AuthEngineId)
		u.DiscoveryStatus = noSynchronized
	}

	if _, err := rm.Pdu().Unmarshal(rm.PduBytes()); err != nil {
		note := ""
		if rm.Privacy() {
			note = " (probably Pdu was unable to decrypt)"
		}
		return &MessageError{
			Cause:   err,
			Message: fmt.Sprintf("Failed to Unmarshal Pdu%s", note),
			Detail:  fmt.Sprintf("Pdu Bytes - [%s]", toHexStr(rm.PduBytes(), " ")),
		}
	}
	return nil
}

// Discover runs the RFC 3414 Section 4 handshake: an unauthenticated probe
// to learn the agent's authoritative engine ID, then (if a security level
// above NoAuthNoPriv is wanted) a second probe to learn its boots/time.
func (u *usm) Discover(sender pduSender) error {
	if u.DiscoveryStatus == noDiscovered {
		if err := sender.sendProbePdu(V3, NoAuthNoPriv); err != nil {
			return err
		}
	}
	if u.DiscoveryStatus == noSynchronized {
		if err := sender.sendProbePdu(V3, AuthNoPriv); err != nil {
			return err
		}
	}
	return nil
}

func (u *usm) SetAuthEngineId(authEngineId []byte) {
	u.AuthEngineId = authEngineId
	if len(u.AuthPassword) > 0 {
		u.AuthKey = passwordToKey(u.AuthProtocol, u.AuthPassword, authEngineId)
	}
	if len(u.PrivPassword) > 0 {
		u.PrivKey = passwordToKey(u.AuthProtocol, u.PrivPassword, authEngineId)
	}
}

func (u *usm) UpdateEngineBootsTime() error {
	now := time.Now()
	u.AuthEngineTime += int64(now.Sub(u.UpdatedTime).Seconds())
	if u.AuthEngineTime > math.MaxInt32 {
		u.AuthEngineBoots++
		if u.AuthEngineBoots == math.MaxInt32 { // RFC 3414 Sec 2.2.2
			return fmt.Errorf("EngineBoots reached the max value, [%d]", int32(math.MaxInt32))
		}
		u.AuthEngineTime -= math.MaxInt32
	}
	u.UpdatedTime = now
	return nil
}

func (u *usm) SynchronizeEngineBootsTime(engineBoots, engineTime int64) {
	u.AuthEngineBoots = engineBoots
	u.AuthEngineTime = engineTime
	u.UpdatedTime = time.Now()
}

func (u *usm) CheckTimeliness(engineBoots, engineTime int64) error {
	// RFC 3414 Section 3.2 7) b)
	if engineBoots == math.MaxInt32 ||
		engineBoots < u.AuthEngineBoots ||
		(engineBoots == u.AuthEngineBoots && u.AuthEngineTime-engineTime > usmTimeWindow) {
		return &notInTimeWindowError{ResponseError{Message: fmt.Sprintf(
			"The message is not in the time window - local [%d/%d], remote [%d/%d]",
			engineBoots, engineTime, u.AuthEngineBoots, u.AuthEngineTime)}}
	}
	return nil
}

func (u *usm) String() string {
	return fmt.Sprintf(
		`{"UserName": "%s", "DiscoveryStatus": "%s", "AuthEngineId": "%s", `+
			`"AuthEngineBoots": %d, "AuthEngineTime": %d, "UpdatedTime": "%s", `+
			`"AuthKey": "%s", "AuthProtocol": "%s", "PrivKey": "%s", "PrivProtocol": "%s"}`,
		u.UserName, u.DiscoveryStatus, toHexStr(u.AuthEngineId, ""),
		u.AuthEngineBoots, u.AuthEngineTime, u.UpdatedTime,
		toHexStr(u.AuthKey, ""), u.AuthProtocol, toHexStr(u.PrivKey, ""), u.PrivProtocol)
}

// mac computes the HMAC-96 authentication digest over the whole message
// with AuthParameter zeroed (RFC 3414 Section 6.3.1).
func mac(msg *messageV3, proto AuthProtocol, key []byte) ([]byte, error) {
	tmp := msg.AuthParameter
	msg.AuthParameter = padding([]byte{}, 12)
	msgBytes, err := msg.Marshal()
	msg.AuthParameter = tmp
	if err != nil {
		return nil, err
	}

	var h hash.Hash
	switch proto {
	case Md5:
		h = hmac.New(md5.New, key)
	case Sha:
		h = hmac.New(sha1.New, key)
	default:
		return nil, &ArgumentError{Value: proto, Message: "Unknown AuthProtocol"}
	}
	h.Write(msgBytes)
	return h.Sum(nil)[:12], nil
}

func encrypt(msg *messageV3, proto PrivProtocol, key []byte) error {
	var dst, priv []byte
	var err error
	src := msg.PduBytes()

	switch proto {
	case Des:
		dst, priv, err = encryptDES(src, key, int32(msg.AuthEngineBoots), genSalt32())
	case Aes, Aes192, Aes256:
		dst, priv, err = encryptAES(src, key, int32(msg.AuthEngineBoots), int32(msg.AuthEngineTime), genSalt64())
	default:
		return &ArgumentError{Value: proto, Message: "Unknown PrivProtocol"}
	}
	if err != nil {
		return err
	}

	raw := asn1.RawValue{Class: classUniversal, Tag: tagOctetString, IsCompound: false, Bytes: dst}
	dst, err = asn1.Marshal(raw)
	if err != nil {
		return err
	}
	msg.SetPduBytes(dst)
	msg.PrivParameter = priv
	return nil
}

func decrypt(msg *messageV3, proto PrivProtocol, key, privParam []byte) error {
	var raw asn1.RawValue
	if _, err := gber.Unmarshal(msg.PduBytes(), &raw); err != nil {
		return err
	}
	if raw.Class != classUniversal || raw.Tag != tagOctetString || raw.IsCompound {
		return &MessageError{Message: fmt.Sprintf(
			"Invalid encrypted Pdu object - Class [%02x], Tag [%02x] : [%s]",
			raw.Class, raw.Tag, toHexStr(msg.PduBytes(), " "))}
	}

	var dst []byte
	var err error
	switch proto {
	case Des:
		dst, err = decryptDES(raw.Bytes, key, privParam)
	case Aes, Aes192, Aes256:
		dst, err = decryptAES(raw.Bytes, key, privParam, int32(msg.AuthEngineBoots), int32(msg.AuthEngineTime))
	default:
		return &ArgumentError{Value: proto, Message: "Unknown PrivProtocol"}
	}
	if err != nil {
		return err
	}
	msg.SetPduBytes(dst)
	return nil
}

func encryptDES(src, key []byte, engineBoots, salt int32) (dst, privParam []byte, err error) {
	block, err := des.NewCipher(key[:8])
	if err != nil {
		return nil, nil, err
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, engineBoots)
	binary.Write(&buf, binary.BigEndian, salt)
	privParam = buf.Bytes()
	iv := xor(key[8:16], privParam)

	src = padding(src, des.BlockSize)
	dst = make([]byte, len(src))

	cipher.NewCBCEncrypter(block, iv).CryptBlocks(dst, src)
	return dst, privParam, nil
}

func decryptDES(src, key, privParam []byte) ([]byte, error) {
	if len(src)%des.BlockSize != 0 {
		return nil, &ArgumentError{Value: len(src), Message: "Invalid DES cipher length"}
	}
	if len(privParam) != 8 {
		return nil, &ArgumentError{Value: len(privParam), Message: "Invalid DES PrivParameter length"}
	}

	block, err := des.NewCipher(key[:8])
	if err != nil {
		return nil, err
	}

	iv := xor(key[8:16], privParam)
	dst := make([]byte, len(src))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(dst, src)
	return dst, nil
}

func encryptAES(src, key []byte, engineBoots, engineTime int32, salt int64) (dst, privParam []byte, err error) {
	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, nil, err
	}

	var saltBuf, ivBuf bytes.Buffer
	binary.Write(&saltBuf, binary.BigEndian, salt)
	privParam = saltBuf.Bytes()

	binary.Write(&ivBuf, binary.BigEndian, engineBoots)
	binary.Write(&ivBuf, binary.BigEndian, engineTime)
	iv := append(ivBuf.Bytes(), privParam...)

	src = padding(src, aes.BlockSize)
	dst = make([]byte, len(src))
	cipher.NewCFBEncrypter(block, iv).XORKeyStream(dst, src)
	return dst, privParam, nil
}

func decryptAES(src, key, privParam []byte, engineBoots, engineTime int32) ([]byte, error) {
	if len(privParam) != 8 {
		return nil, &ArgumentError{Value: len(privParam), Message: "Invalid AES PrivParameter length"}
	}

	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, engineBoots)
	binary.Write(&buf, binary.BigEndian, engineTime)
	iv := append(buf.Bytes(), privParam...)

	dst := make([]byte, len(src))
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(dst, src)
	return dst, nil
}

// passwordToKey implements the RFC 3414 Appendix A.2 password-to-key
// algorithm: the password is repeated to fill a megabyte buffer, hashed,
// then localized to the target engine ID.
func passwordToKey(proto AuthProtocol, password string, engineId []byte) []byte {
	var h hash.Hash
	switch proto {
	case Md5:
		h = md5.New()
	case Sha:
		h = sha1.New()
	default:
		return nil
	}

	pass := []byte(password)
	plen := len(pass)
	if plen == 0 {
		return nil
	}
	for i := mega / plen; i > 0; i-- {
		h.Write(pass)
	}
	if remain := mega % plen; remain > 0 {
		h.Write(pass[:remain])
	}
	ku := h.Sum(nil)

	h.Reset()
	h.Write(ku)
	h.Write(engineId)
	h.Write(ku)
	return h.Sum(nil)
}

// SecurityEntry is one row of the USM/Community local configuration
// datastore (RFC 3415 Sec. 5 usmUserTable, plus a community-string
// equivalent for v1/v2c), keyed by a caller-chosen Name.
type SecurityEntry struct {
	Name             string
	Version          SNMPVersion
	Community        string
	UserName         string
	SecurityLevel    SecurityLevel
	AuthProtocol     AuthProtocol
	AuthPassword     string
	PrivProtocol     PrivProtocol
	PrivPassword     string
	SecurityEngineId string
}

func newSecurityFromArgs(version SNMPVersion, community string, level SecurityLevel,
	userName, authPassword string, authProto AuthProtocol,
	privPassword string, privProto PrivProtocol) security {

	switch version {
	case V1, V2c:
		return &community{Community: []byte(community)}
	case V3:
		sec := &usm{UserName: []byte(userName)}
		switch level {
		case AuthPriv:
			sec.PrivPassword = privPassword
			sec.PrivProtocol = privProto
			fallthrough
		case AuthNoPriv:
			sec.AuthPassword = authPassword
			sec.AuthProtocol = authProto
		}
		return sec
	default:
		return nil
	}
}

func newSecurityFromEntry(entry *SecurityEntry) security {
	switch entry.Version {
	case V1, V2c:
		return &community{Community: []byte(entry.Community)}
	case V3:
		sec := &usm{UserName: []byte(entry.UserName)}
		switch entry.SecurityLevel {
		case AuthPriv:
			sec.PrivPassword = entry.PrivPassword
			sec.PrivProtocol = entry.PrivProtocol
			fallthrough
		case AuthNoPriv:
			sec.AuthPassword = entry.AuthPassword
			sec.AuthProtocol = entry.AuthProtocol
		}
		if len(entry.SecurityEngineId) > 0 {
			if authEngineId, err := engineIdToBytes(entry.SecurityEngineId); err == nil {
				sec.SetAuthEngineId(authEngineId)
				sec.DiscoveryStatus = remoteReference
			}
		}
		return sec
	default:
		return nil
	}
}

// securityMap is a concurrency-safe registry of live security states,
// keyed by Identifier() (community string, or engineID:userName[:auth]).
// The Command Responder uses one to recall a USM user's boots/time across
// requests; the Command Generator uses one per target.
type securityMap struct {
	lock *sync.RWMutex
	objs map[string]security
}

func (m *securityMap) Set(sec security) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.objs[sec.Identifier()] = sec
}

func (m *securityMap) Lookup(msg message) security {
	var id string
	switch mm := msg.(type) {
	case *messageV1:
		id = string(mm.Community)
	case *messageV3:
		id = string(mm.AuthEngineId) + ":" + string(mm.UserName)
		if mm.Authentication() {
			id += ":auth"
		}
	}

	m.lock.RLock()
	defer m.lock.RUnlock()
	return m.objs[id]
}

func (m *securityMap) List() []security {
	m.lock.RLock()
	defer m.lock.RUnlock()

	ret := make([]security, 0, len(m.objs))
	for _, v := range m.objs {
		ret = append(ret, v)
	}
	return ret
}

func (m *securityMap) Delete(sec security) {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.objs, sec.Identifier())
}

func newSecurityMap() *securityMap {
	return &securityMap{lock: new(sync.RWMutex), objs: map[string]security{}}
}
