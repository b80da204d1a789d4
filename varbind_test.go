package snmpengine

import "testing"

func TestVariableMarshalRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		v    Variable
	}{
		{"Integer", NewInteger(-12345)},
		{"OctetString", NewOctetString([]byte("public"))},
		{"Null", &Null{}},
		{"ObjectIdentifier", NewObjectIdentifier(MustNewOid("1.3.6.1.2.1.1.1.0"))},
		{"Counter32", NewCounter32(4294967295)},
		{"Gauge32", NewGauge32(42)},
		{"TimeTicks", NewTimeTicks(123456)},
		{"Counter64", NewCounter64(18446744073709551615)},
		{"NoSuchObject", &NoSuchObject{}},
		{"NoSuchInstance", &NoSuchInstance{}},
		{"EndOfMibView", &EndOfMibView{}},
	}
	for _, tt := range tests {
		b, err := tt.v.Marshal()
		if err != nil {
			t.Errorf("%s: Marshal() error = %v", tt.name, err)
			continue
		}
		got := newZeroValue(tt.v)
		if _, err := got.Unmarshal(b); err != nil {
			t.Errorf("%s: Unmarshal() error = %v", tt.name, err)
			continue
		}
		if got.String() != tt.v.String() {
			t.Errorf("%s: round trip = %q, want %q", tt.name, got.String(), tt.v.String())
		}
	}
}

// newZeroValue returns a fresh, empty instance of v's concrete type so
// Unmarshal has somewhere to write -- the marshal/unmarshal round trip
// needs a destination distinct from the source value.
func newZeroValue(v Variable) Variable {
	switch v.(type) {
	case *Integer:
		return &Integer{}
	case *OctetString:
		return &OctetString{}
	case *Null:
		return &Null{}
	case *ObjectIdentifier:
		return &ObjectIdentifier{}
	case *Counter32:
		return &Counter32{unsigned32{tag: tagCounter32}}
	case *Gauge32:
		return &Gauge32{unsigned32{tag: tagGauge32}}
	case *TimeTicks:
		return &TimeTicks{unsigned32{tag: tagTimeTicks}}
	case *Counter64:
		return &Counter64{}
	case *NoSuchObject:
		return &NoSuchObject{}
	case *NoSuchInstance:
		return &NoSuchInstance{}
	case *EndOfMibView:
		return &EndOfMibView{}
	default:
		panic("unhandled Variable type in test")
	}
}

func TestIsExceptionValue(t *testing.T) {
	if !isExceptionValue(&NoSuchObject{}) {
		t.Error("isExceptionValue(NoSuchObject) = false, want true")
	}
	if !isExceptionValue(&EndOfMibView{}) {
		t.Error("isExceptionValue(EndOfMibView) = false, want true")
	}
	if isExceptionValue(NewInteger(0)) {
		t.Error("isExceptionValue(Integer) = true, want false")
	}
}

func TestVarBindsSortUniqMatch(t *testing.T) {
	vbs := VarBinds{
		{Oid: MustNewOid("1.3.6.1.2.1.1.3.0"), Variable: NewTimeTicks(1)},
		{Oid: MustNewOid("1.3.6.1.2.1.1.1.0"), Variable: NewOctetString([]byte("a"))},
		{Oid: MustNewOid("1.3.6.1.2.1.1.1.0"), Variable: NewOctetString([]byte("a-dup"))},
	}
	vbs.Sort()
	if !vbs[0].Oid.Equal(MustNewOid("1.3.6.1.2.1.1.1.0")) {
		t.Errorf("Sort() = %v, want sysDescr.0 first", vbs)
	}

	uniq := vbs.Uniq()
	if len(uniq) != 2 {
		t.Fatalf("Uniq() = %v, want 2 entries", uniq)
	}
	if uniq[0].Variable.String() != "a" {
		t.Errorf("Uniq() kept %q, want the first occurrence", uniq[0].Variable.String())
	}

	if m := vbs.MatchOid(MustNewOid("1.3.6.1.2.1.1.3.0")); m == nil || m.Variable.String() != "1" {
		t.Errorf("MatchOid() = %v, want sysUpTime.0's VarBind", m)
	}
	if m := vbs.MatchOid(MustNewOid("9.9.9")); m != nil {
		t.Errorf("MatchOid() = %v, want nil for an absent Oid", m)
	}

	matched := vbs.MatchBaseOids(MustNewOid("1.3.6.1.2.1.1"))
	if len(matched) != 3 {
		t.Errorf("MatchBaseOids() = %v, want all 3 entries under the System group", matched)
	}
}

func TestVarBindString(t *testing.T) {
	vb := VarBind{Oid: MustNewOid("1.3.6.1.2.1.1.5.0"), Variable: NewOctetString([]byte("host1"))}
	want := "1.3.6.1.2.1.1.5.0 = host1"
	if got := vb.String(); got != want {
		t.Errorf("VarBind.String() = %q, want %q", got, want)
	}
}
