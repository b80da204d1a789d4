package snmpengine

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestV2ErrorStatusToV1(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{ErrNoError, ErrNoError},
		{ErrTooBig, ErrTooBig},
		{ErrNoAccess, ErrNoSuchName},
		{ErrNoCreation, ErrNoSuchName},
		{ErrInconsistentName, ErrNoSuchName},
		{ErrWrongType, ErrBadValue},
		{ErrWrongLength, ErrBadValue},
		{ErrWrongValue, ErrBadValue},
		{ErrNotWritable, ErrReadOnly},
		{ErrAuthorizationError, ErrGenErr},
		{ErrCommitFailed, ErrGenErr},
	}
	for _, tt := range tests {
		if got := v2ErrorStatusToV1(tt.in); got != tt.want {
			t.Errorf("v2ErrorStatusToV1(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestTranslateResponseV2ToV1ExceptionValue(t *testing.T) {
	pdu := NewPdu(V1, GetResponse).(*PduV1)
	pdu.varBinds = VarBinds{
		{Oid: MustNewOid("1.3.6.1.2.1.1.1.0"), Variable: NewOctetString([]byte("ok"))},
		{Oid: MustNewOid("1.3.6.1.2.1.1.99.0"), Variable: &NoSuchObject{}},
	}
	pdu.errorStatus = ErrNoError

	translateResponseV2ToV1(pdu)

	if pdu.errorStatus != ErrNoSuchName {
		t.Errorf("errorStatus = %d, want ErrNoSuchName", pdu.errorStatus)
	}
	if pdu.errorIndex != 2 {
		t.Errorf("errorIndex = %d, want 2", pdu.errorIndex)
	}
	if _, ok := pdu.varBinds[1].Variable.(*Null); !ok {
		t.Errorf("varBinds[1] = %T, want *Null placeholder", pdu.varBinds[1].Variable)
	}
}

func TestTranslateResponseV2ToV1PlainErrorStatus(t *testing.T) {
	pdu := NewPdu(V1, GetResponse).(*PduV1)
	pdu.varBinds = VarBinds{{Oid: MustNewOid("1.3.6.1.2.1.1.1.0"), Variable: NewOctetString([]byte("ok"))}}
	pdu.errorStatus = ErrNoAccess
	pdu.errorIndex = 1

	translateResponseV2ToV1(pdu)

	if pdu.errorStatus != ErrNoSuchName {
		t.Errorf("errorStatus = %d, want ErrNoSuchName (mapped from ErrNoAccess)", pdu.errorStatus)
	}
}

func TestSkipForV1GetNext(t *testing.T) {
	if !skipForV1GetNext(V1, GetNextRequest, NewCounter64(1)) {
		t.Error("skipForV1GetNext() - expected Counter64 to be skipped for v1 GetNext")
	}
	if skipForV1GetNext(V1, GetNextRequest, NewInteger(1)) {
		t.Error("skipForV1GetNext() - Integer should never be skipped")
	}
	if skipForV1GetNext(V2c, GetNextRequest, NewCounter64(1)) {
		t.Error("skipForV1GetNext() - v2c never skips Counter64")
	}
	if skipForV1GetNext(V1, GetRequest, NewCounter64(1)) {
		t.Error("skipForV1GetNext() - only GetNext is affected, not plain Get")
	}
}

func TestTranslateTrapV1ToV2GenericTrap(t *testing.T) {
	enterprise := MustNewOid("1.3.6.1.4.1.8072")
	vbs := translateTrapV1ToV2(enterprise, 1 /* warmStart */, 0, 12345, nil)

	if len(vbs) != 2 {
		t.Fatalf("translateTrapV1ToV2() = %v, want 2 leading varbinds", vbs)
	}
	if !vbs[0].Oid.Equal(oidSysUpTime) {
		t.Errorf("vbs[0].Oid = %v, want sysUpTime.0", vbs[0].Oid)
	}
	wantTrapOid := MustNewOid("1.3.6.1.6.3.1.1.5.2") // warmStart = genericTrap(1)+1
	if !vbs[1].Oid.Equal(oidSnmpTrapOID) {
		t.Errorf("vbs[1].Oid = %v, want snmpTrapOID.0", vbs[1].Oid)
	}
	got := vbs[1].Variable.(*ObjectIdentifier).Oid
	if !got.Equal(wantTrapOid) {
		t.Errorf("trap OID = %v, want %v", got, wantTrapOid)
	}
}

func TestTranslateTrapV1ToV2EnterpriseSpecific(t *testing.T) {
	enterprise := MustNewOid("1.3.6.1.4.1.8072")
	vbs := translateTrapV1ToV2(enterprise, 6, 42, 999, VarBinds{
		{Oid: MustNewOid("1.3.6.1.4.1.8072.1.1.0"), Variable: NewInteger(7)},
	})

	want := MustNewOid("1.3.6.1.4.1.8072.0.42")
	got := vbs[1].Variable.(*ObjectIdentifier).Oid
	if !got.Equal(want) {
		t.Errorf("enterprise-specific trap OID = %v, want %v", got, want)
	}
	if len(vbs) != 3 {
		t.Errorf("translateTrapV1ToV2() = %v, want original varbind carried through", vbs)
	}
}

func TestTranslateTrapV2ToV1RoundTrip(t *testing.T) {
	enterprise := MustNewOid("1.3.6.1.4.1.8072")
	vbs := translateTrapV1ToV2(enterprise, 6, 42, 999, VarBinds{
		{Oid: MustNewOid("1.3.6.1.4.1.8072.1.1.0"), Variable: NewInteger(7)},
	})

	gotEnterprise, genericTrap, specificTrap, uptime, rest := translateTrapV2ToV1(vbs)
	if !gotEnterprise.Equal(enterprise) {
		t.Errorf("enterprise = %v, want %v", gotEnterprise, enterprise)
	}
	if genericTrap != 6 || specificTrap != 42 || uptime != 999 {
		t.Errorf("genericTrap=%d specificTrap=%d uptime=%d, want 6/42/999", genericTrap, specificTrap, uptime)
	}
	if len(rest) != 1 {
		t.Errorf("rest = %v, want the one original varbind", rest)
	}
}

func TestTranslateTrapV1ToV2VarBindsDeepEqual(t *testing.T) {
	enterprise := MustNewOid("1.3.6.1.4.1.8072")
	got := translateTrapV1ToV2(enterprise, 1, 0, 12345, nil)
	want := VarBinds{
		{Oid: oidSysUpTime, Variable: NewTimeTicks(12345)},
		{Oid: oidSnmpTrapOID, Variable: NewObjectIdentifier(MustNewOid("1.3.6.1.6.3.1.1.5.2"))},
	}
	if diff := cmp.Diff(want, got, cmp.AllowUnexported(unsigned32{})); diff != "" {
		t.Errorf("translateTrapV1ToV2() mismatch (-want +got):\n%s", diff)
	}
}

func TestTranslateTrapV2ToV1GenericTrap(t *testing.T) {
	vbs := VarBinds{
		{Oid: oidSysUpTime, Variable: NewTimeTicks(5)},
		{Oid: oidSnmpTrapOID, Variable: NewObjectIdentifier(MustNewOid("1.3.6.1.6.3.1.1.5.2"))},
	}
	_, genericTrap, _, uptime, rest := translateTrapV2ToV1(vbs)
	if genericTrap != 1 || uptime != 5 {
		t.Errorf("genericTrap=%d uptime=%d, want 1/5", genericTrap, uptime)
	}
	if len(rest) != 0 {
		t.Errorf("rest = %v, want empty", rest)
	}
}
