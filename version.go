package snmpengine

import (
	"fmt"
	"strings"
	"time"
)

// SNMPVersion identifies the protocol version of a message, per RFC 3411
// Section 3 (snmpMessageProcessingModel).
type SNMPVersion int

const (
	V1  SNMPVersion = 0
	V2c SNMPVersion = 1
	V3  SNMPVersion = 3
)

func (v SNMPVersion) String() string {
	switch v {
	case V1:
		return "1"
	case V2c:
		return "2c"
	case V3:
		return "3"
	default:
		return fmt.Sprintf("Unknown(%d)", int(v))
	}
}

// ParseVersion parses the conventional command-line spelling of a version.
func ParseVersion(s string) (SNMPVersion, error) {
	switch s {
	case "1", "v1":
		return V1, nil
	case "2c", "v2c":
		return V2c, nil
	case "3", "v3":
		return V3, nil
	default:
		return V1, &ArgumentError{Value: s, Message: "Unknown SNMP Version"}
	}
}

// SecurityLevel is the USM securityLevel (RFC 3414 Section 3).
type SecurityLevel int

const (
	NoAuthNoPriv SecurityLevel = iota
	AuthNoPriv
	AuthPriv
)

func (l SecurityLevel) String() string {
	switch l {
	case NoAuthNoPriv:
		return "NoAuthNoPriv"
	case AuthNoPriv:
		return "AuthNoPriv"
	case AuthPriv:
		return "AuthPriv"
	default:
		return "Unknown"
	}
}

// ParseSecurityLevel parses the conventional command-line spelling of a
// USM securityLevel.
func ParseSecurityLevel(s string) (SecurityLevel, error) {
	switch strings.ToLower(s) {
	case "", "noauthnopriv":
		return NoAuthNoPriv, nil
	case "authnopriv":
		return AuthNoPriv, nil
	case "authpriv":
		return AuthPriv, nil
	default:
		return NoAuthNoPriv, &ArgumentError{Value: s, Message: "Unknown SecurityLevel"}
	}
}

// AuthProtocol is the USM authentication protocol (RFC 3414 Section 6).
type AuthProtocol int

const (
	AuthNone AuthProtocol = iota
	Md5
	Sha
)

func (p AuthProtocol) String() string {
	switch p {
	case Md5:
		return "MD5"
	case Sha:
		return "SHA"
	default:
		return "None"
	}
}

// ParseAuthProtocol parses the conventional command-line spelling of a
// USM authentication protocol.
func ParseAuthProtocol(s string) (AuthProtocol, error) {
	switch strings.ToUpper(s) {
	case "", "NONE":
		return AuthNone, nil
	case "MD5":
		return Md5, nil
	case "SHA":
		return Sha, nil
	default:
		return AuthNone, &ArgumentError{Value: s, Message: "Unknown AuthProtocol"}
	}
}

// PrivProtocol is the USM privacy protocol (RFC 3414 Section 8, plus the
// AES-CFB variants from the AES USM draft).
type PrivProtocol int

const (
	PrivNone PrivProtocol = iota
	Des
	TripleDes
	Aes
	Aes192
	Aes256
)

func (p PrivProtocol) String() string {
	switch p {
	case Des:
		return "DES"
	case TripleDes:
		return "3DES"
	case Aes:
		return "AES"
	case Aes192:
		return "AES192"
	case Aes256:
		return "AES256"
	default:
		return "None"
	}
}

// ParsePrivProtocol parses the conventional command-line spelling of a
// USM privacy protocol.
func ParsePrivProtocol(s string) (PrivProtocol, error) {
	switch strings.ToUpper(s) {
	case "", "NONE":
		return PrivNone, nil
	case "DES":
		return Des, nil
	case "3DES", "TRIPLEDES":
		return TripleDes, nil
	case "AES":
		return Aes, nil
	case "AES192":
		return Aes192, nil
	case "AES256":
		return Aes256, nil
	default:
		return PrivNone, &ArgumentError{Value: s, Message: "Unknown PrivProtocol"}
	}
}

// securityModel identifiers, RFC 3411 Section 3 (snmpSecurityModel).
type securityModel int

const (
	securityAny       securityModel = 0
	securityCommunity securityModel = 2 // used for v1/v2c bookkeeping
	securityUsm       securityModel = 3
)

// ParseSecurityModel parses the conventional command-line spelling of a
// snmpSecurityModel ("v1", "v2c", "v3", "any"), the string form
// cmd/snmpagentd's VACM provisioning accepts in its config file.
func ParseSecurityModel(s string) (securityModel, error) {
	switch strings.ToLower(s) {
	case "v1", "v2c", "community":
		return securityCommunity, nil
	case "v3", "usm":
		return securityUsm, nil
	case "", "any":
		return securityAny, nil
	default:
		return securityAny, &ArgumentError{Value: s, Message: "Unknown securityModel"}
	}
}

// SecurityModelForVersion returns the snmpSecurityModel a message of
// version uses, the same V1/V2c-vs-V3 split HandleMessage applies when it
// fills in HandlerContext.SecurityModel. Callers outside this package
// (cmd/snmpagentd's VACM provisioning) have no other way to name a
// securityModel value, since the type itself is unexported.
func SecurityModelForVersion(version SNMPVersion) securityModel {
	if version == V3 {
		return securityUsm
	}
	return securityCommunity
}

// ViewType distinguishes the three VACM view purposes (RFC 3415 Sec. 4.3).
type ViewType int

const (
	ViewRead ViewType = iota
	ViewWrite
	ViewNotify
)

func (v ViewType) String() string {
	switch v {
	case ViewRead:
		return "read"
	case ViewWrite:
		return "write"
	case ViewNotify:
		return "notify"
	default:
		return "unknown"
	}
}

// PDU-level errorStatus values, RFC 3416 Section 4 plus the SNMPv1 subset
// (RFC 1157 Section 4.1.1).
const (
	ErrNoError = iota
	ErrTooBig
	ErrNoSuchName
	ErrBadValue
	ErrReadOnly
	ErrGenErr
	ErrNoAccess
	ErrWrongType
	ErrWrongLength
	ErrWrongEncoding
	ErrWrongValue
	ErrNoCreation
	ErrInconsistentValue
	ErrResourceUnavailable
	ErrCommitFailed
	ErrUndoFailed
	ErrAuthorizationError
	ErrNotWritable
	ErrInconsistentName
)

const (
	msgSizeDefault  = 1400
	msgSizeMinimum  = 484 // RFC 3411 Section 8
	timeoutDefault  = 5 * time.Second
	recvBufferSize  = 2048
	maxVarBindsBulk = 64 // default GetBulk response cap, cmdrsp.py BulkCommandResponder.maxVarBinds
	mega            = 1048576
	usmTimeWindow   = 150 // seconds, RFC 3414 Section 3.2 7) b)
)
