package snmpengine

// translate.go implements the RFC 2576 Section 4 proxy rules a command
// responder/notification originator needs to run SNMPv1 and SNMPv2c
// simultaneously against one SMIv2-shaped MIB backend, the same role
// pysnmp.proto.proxy.rfc2576 plays for cmdrsp.py's processPdu/sendRsp.

var (
	oidSysUpTime   = MustNewOid("1.3.6.1.2.1.1.3.0")
	oidSnmpTrapOID = MustNewOid("1.3.6.1.6.3.1.1.4.1.0")
	oidColdStart   = MustNewOid("1.3.6.1.6.3.1.1.5.1")
)

// v2ErrorStatusToV1 maps an SMIv2 errorStatus down onto the 5 values
// SNMPv1 (RFC 1157 Sec 4.1.1) can represent, per RFC 2576 Section 4.1.1.
func v2ErrorStatusToV1(status int) int {
	switch status {
	case ErrNoError, ErrTooBig, ErrNoSuchName, ErrBadValue, ErrReadOnly, ErrGenErr:
		return status
	case ErrNoAccess, ErrNoCreation, ErrInconsistentName:
		return ErrNoSuchName
	case ErrWrongType, ErrWrongLength, ErrWrongEncoding, ErrWrongValue, ErrInconsistentValue:
		return ErrBadValue
	case ErrNotWritable:
		return ErrReadOnly
	default: // ErrAuthorizationError, ErrResourceUnavailable, ErrCommitFailed, ErrUndoFailed
		return ErrGenErr
	}
}

// translateResponseV2ToV1 rewrites a GetResponse built against the SMIv2
// backend into a wire-compatible SNMPv1 response: errorStatus is folded
// down with v2ErrorStatusToV1, and the first varbind holding a Counter64
// or one of the SNMPv2 exception values becomes noSuchName with the whole
// PDU's errorStatus/errorIndex pointing at it (RFC 2576 Section 4.1.2).
func translateResponseV2ToV1(pdu *PduV1) {
	for i, vb := range pdu.varBinds {
		_, is64 := vb.Variable.(*Counter64)
		if is64 || isExceptionValue(vb.Variable) {
			pdu.errorStatus = ErrNoSuchName
			pdu.errorIndex = i + 1
			pdu.varBinds[i].Variable = vb.Oid.asNullValue()
			break
		}
	}
	pdu.errorStatus = v2ErrorStatusToV1(pdu.errorStatus)
}

// asNullValue lets translateResponseV2ToV1 put a syntactically valid
// placeholder in place of a Counter64/exception value it cannot represent
// on the v1 wire.
func (o Oid) asNullValue() Variable { return &Null{} }

// skipForV1GetNext reports whether a VarBind must be dropped from a
// GetNext/GetBulk response presented to a v1 originator: RFC 2576 Section
// 4.1.2.1 requires skipping Counter64-valued columns entirely (rather than
// translating them) since v1 GetNext has no way to represent them and a
// noSuchName there would wrongly terminate the walk.
func skipForV1GetNext(version SNMPVersion, reqType PduType, v Variable) bool {
	if version != V1 || reqType != GetNextRequest {
		return false
	}
	_, is64 := v.(*Counter64)
	return is64
}

// translateTrapV1ToV2 builds the SNMPv2-Trap VarBinds (sysUpTime.0,
// snmpTrapOID.0, then the original trap's bindings) from a v1 Trap-PDU,
// per RFC 2576 Section 4.2's enterprise-specific / generic-trap mapping.
func translateTrapV1ToV2(enterprise Oid, genericTrap, specificTrap int, uptime uint32, vbs VarBinds) VarBinds {
	trapOid := enterprise.Clone()
	if genericTrap == 6 { // enterpriseSpecific
		trapOid = append(trapOid, 0, uint32(specificTrap))
	} else {
		trapOid = append(Oid{1, 3, 6, 1, 6, 3, 1, 1, 5}, uint32(genericTrap+1))
	}

	out := make(VarBinds, 0, len(vbs)+2)
	out = append(out,
		VarBind{Oid: oidSysUpTime, Variable: NewTimeTicks(uptime)},
		VarBind{Oid: oidSnmpTrapOID, Variable: NewObjectIdentifier(trapOid)},
	)
	return append(out, vbs...)
}

// translateTrapV2ToV1 recovers the v1 Trap-PDU fields (enterprise,
// genericTrap, specificTrap) from an SNMPv2-Trap's leading sysUpTime /
// snmpTrapOID varbinds, the inverse of translateTrapV1ToV2.
func translateTrapV2ToV1(vbs VarBinds) (enterprise Oid, genericTrap, specificTrap int, uptime uint32, rest VarBinds) {
	if len(vbs) < 2 {
		return nil, 0, 0, 0, vbs
	}
	if tt, ok := vbs[0].Variable.(*TimeTicks); ok {
		uptime = tt.Value
	}
	trapOid, ok := vbs[1].Variable.(*ObjectIdentifier)
	if !ok {
		return nil, 0, 0, uptime, vbs[2:]
	}

	snmpTraps := Oid{1, 3, 6, 1, 6, 3, 1, 1, 5}
	if snmpTraps.Contains(trapOid.Oid) && len(trapOid.Oid) == len(snmpTraps)+1 {
		generic := int(trapOid.Oid[len(trapOid.Oid)-1]) - 1
		return Oid{0, 0}, generic, 0, uptime, vbs[2:]
	}

	last := trapOid.Oid[len(trapOid.Oid)-1]
	specificOid := trapOid.Oid[:len(trapOid.Oid)-1]
	if len(specificOid) > 0 && specificOid[len(specificOid)-1] == 0 {
		return specificOid[:len(specificOid)-1].Clone(), 6, int(last), uptime, vbs[2:]
	}
	return trapOid.Oid.Clone(), 6, int(last), uptime, vbs[2:]
}
