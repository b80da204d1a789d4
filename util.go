package snmpengine

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
)

// toHexStr renders b as hex octets joined by sep, the way engine IDs and
// keys go into error/String() output without ever printing raw secret
// bytes as characters.
func toHexStr(b []byte, sep string) string {
	parts := make([]string, len(b))
	for i, c := range b {
		parts[i] = fmt.Sprintf("%02x", c)
	}
	return strings.Join(parts, sep)
}

// escape renders a value as JSON for use in a String() method; arguments
// structs use this so logs never need bespoke formatting code.
func escape(v interface{}) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(b)
}

// retry runs fn up to retries+1 times, returning the last error.
func retry(retries int, fn func() error) error {
	var err error
	for i := 0; i <= retries; i++ {
		if err = fn(); err == nil {
			return nil
		}
	}
	return err
}

func stripHexPrefix(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:]
	}
	return s
}

// engineIdToBytes validates and decodes a hex-encoded engine ID, enforcing
// the 5-32 octet bound from RFC 3411 Section 5.
func engineIdToBytes(s string) ([]byte, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, &ArgumentError{Value: s, Message: "EngineId is not a hex string"}
	}
	if l := len(b); l < 5 || l > 32 {
		return nil, &ArgumentError{Value: s, Message: "EngineId length is range 5..32"}
	}
	return b, nil
}

func xor(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// padding right-pads b with zero bytes up to the next multiple of size, as
// DES/AES CBC/CFB block ciphers require.
func padding(b []byte, size int) []byte {
	if r := len(b) % size; r != 0 {
		b = append(b, make([]byte, size-r)...)
	}
	return b
}

func genSalt32() int32 {
	var buf [4]byte
	rand.Read(buf[:])
	return int32(buf[0])<<24 | int32(buf[1])<<16 | int32(buf[2])<<8 | int32(buf[3])
}

func genSalt64() int64 {
	var buf [8]byte
	rand.Read(buf[:])
	var v int64
	for _, c := range buf {
		v = v<<8 | int64(c)
	}
	return v
}

var messageIdSeq uint32

// genMessageId mints a fresh msgID (RFC 3412 Sec. 6.1), independent of the
// PDU's requestID: the dispatcher maps msgID -> sendPduHandle, while
// requestID is preserved across retries so the MIB layer sees one logical
// request.
func genMessageId() int32 {
	return int32(atomic.AddUint32(&messageIdSeq, 1) & 0x7fffffff)
}

var stateRefSeq uint32

// genStateReference mints an opaque, positive 31-bit stateReference
// (Data Model Sec. 3), unique across concurrently live inbound messages.
func genStateReference() int32 {
	return int32(atomic.AddUint32(&stateRefSeq, 1) & 0x7fffffff)
}

var sendHandleSeq uint32

func genSendPduHandle() int32 {
	return int32(atomic.AddUint32(&sendHandleSeq, 1) & 0x7fffffff)
}
