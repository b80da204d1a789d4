package mibtree

import (
	"testing"

	"github.com/zjn1234/snmpengine"
)

// scalar is a read-write Handler backed by a plain in-memory Variable,
// the simplest MIB leaf a test can register.
type scalar struct {
	v      snmpengine.Variable
	setErr error
}

func (s *scalar) Get() (snmpengine.Variable, error) { return s.v, nil }
func (s *scalar) Set(v snmpengine.Variable) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.v = v
	return nil
}

// failingGet always fails Get, exercising the GenError-aborts-the-PDU path.
type failingGet struct{}

func (failingGet) Get() (snmpengine.Variable, error) { return nil, snmpengine.GenError(0) }
func (failingGet) Set(snmpengine.Variable) error     { return nil }

func newTestEngine(t *testing.T) *snmpengine.Engine {
	t.Helper()
	e, err := snmpengine.NewEngine(snmpengine.EngineArguments{})
	if err != nil {
		t.Fatalf("NewEngine() error = %v", err)
	}
	return e
}

// allowAllChecker builds an AccessChecker whose VACM grants read+write
// access to every oid under mib-2 (1.3.6.1.2.1), via a "full" view with no
// exclusions.
func allowAllChecker(t *testing.T, reqType snmpengine.PduType) *snmpengine.AccessChecker {
	t.Helper()
	e := newTestEngine(t)
	model := snmpengine.SecurityModelForVersion(snmpengine.V2c)
	e.VACM.SetGroup(model, "public", "operators")
	e.VACM.SetView("full", snmpengine.ViewTreeEntry{Subtree: snmpengine.MustNewOid("1.3.6.1.2.1"), Include: true})
	e.VACM.SetAccess("operators", "", true, model, snmpengine.NoAuthNoPriv, snmpengine.AccessEntry{
		ReadView: "full", WriteView: "full", NotifyView: "full",
	})
	return snmpengine.NewAccessChecker(e, model, "public", snmpengine.NoAuthNoPriv, "", snmpengine.V2c, reqType)
}

// denyAllChecker builds an AccessChecker for a principal VACM has no
// group for at all, so every Check() call is denied.
func denyAllChecker(t *testing.T, reqType snmpengine.PduType) *snmpengine.AccessChecker {
	t.Helper()
	e := newTestEngine(t)
	model := snmpengine.SecurityModelForVersion(snmpengine.V2c)
	return snmpengine.NewAccessChecker(e, model, "nobody", snmpengine.NoAuthNoPriv, "", snmpengine.V2c, reqType)
}

func TestRegisterUnregisterLookup(t *testing.T) {
	tree := New()
	oid := snmpengine.MustNewOid("1.3.6.1.2.1.1.1.0")
	h := &scalar{v: snmpengine.NewOctetString([]byte("widget"))}
	tree.Register(oid, h)

	ac := allowAllChecker(t, snmpengine.GetRequest)
	out, err := tree.ReadVars(snmpengine.VarBinds{{Oid: oid, Variable: &snmpengine.Null{}}}, ac)
	if err != nil {
		t.Fatalf("ReadVars() error = %v", err)
	}
	if out[0].Variable.String() != "widget" {
		t.Errorf("ReadVars() = %v, want widget", out[0].Variable)
	}

	tree.Unregister(oid)
	out, err = tree.ReadVars(snmpengine.VarBinds{{Oid: oid, Variable: &snmpengine.Null{}}}, ac)
	if err != nil {
		t.Fatalf("ReadVars() after Unregister error = %v", err)
	}
	if _, ok := out[0].Variable.(*snmpengine.NoSuchObject); !ok {
		t.Errorf("ReadVars() after Unregister = %T, want NoSuchObject", out[0].Variable)
	}
}

func TestReadVarsNoSuchObjectVsNoSuchInstance(t *testing.T) {
	tree := New()
	// Register a sibling under the same column (1.3.6.1.2.1.1.1) so a
	// miss at .0 is a NoSuchInstance, while a miss under an unrelated
	// column (1.3.6.1.2.1.99) is a NoSuchObject.
	tree.Register(snmpengine.MustNewOid("1.3.6.1.2.1.1.1.1"), &scalar{v: snmpengine.NewInteger(1)})

	ac := allowAllChecker(t, snmpengine.GetRequest)
	out, err := tree.ReadVars(snmpengine.VarBinds{
		{Oid: snmpengine.MustNewOid("1.3.6.1.2.1.1.1.0"), Variable: &snmpengine.Null{}},
		{Oid: snmpengine.MustNewOid("1.3.6.1.2.1.99.0"), Variable: &snmpengine.Null{}},
	}, ac)
	if err != nil {
		t.Fatalf("ReadVars() error = %v", err)
	}
	if _, ok := out[0].Variable.(*snmpengine.NoSuchInstance); !ok {
		t.Errorf("out[0] = %T, want NoSuchInstance (sibling registered at .1)", out[0].Variable)
	}
	if _, ok := out[1].Variable.(*snmpengine.NoSuchObject); !ok {
		t.Errorf("out[1] = %T, want NoSuchObject (no sibling at all)", out[1].Variable)
	}
}

func TestReadVarsDeniedByAccessChecker(t *testing.T) {
	tree := New()
	oid := snmpengine.MustNewOid("1.3.6.1.2.1.1.1.0")
	tree.Register(oid, &scalar{v: snmpengine.NewOctetString([]byte("secret"))})

	ac := denyAllChecker(t, snmpengine.GetRequest)
	out, err := tree.ReadVars(snmpengine.VarBinds{{Oid: oid, Variable: &snmpengine.Null{}}}, ac)
	if err != nil {
		t.Fatalf("ReadVars() error = %v", err)
	}
	if _, ok := out[0].Variable.(*snmpengine.NoSuchObject); !ok {
		t.Errorf("ReadVars() denied = %T, want a NoSuchObject placeholder, not a leak", out[0].Variable)
	}
}

func TestReadVarsHandlerGetErrorAbortsPdu(t *testing.T) {
	tree := New()
	oid := snmpengine.MustNewOid("1.3.6.1.2.1.1.1.0")
	tree.Register(oid, failingGet{})

	ac := allowAllChecker(t, snmpengine.GetRequest)
	if _, err := tree.ReadVars(snmpengine.VarBinds{{Oid: oid, Variable: &snmpengine.Null{}}}, ac); err == nil {
		t.Error("ReadVars() - expected a GenErr from the failing handler")
	}
}

func TestReadNextVarsWalksToFirstInstance(t *testing.T) {
	tree := New()
	tree.Register(snmpengine.MustNewOid("1.3.6.1.2.1.1.1.0"), &scalar{v: snmpengine.NewOctetString([]byte("a"))})
	tree.Register(snmpengine.MustNewOid("1.3.6.1.2.1.1.2.0"), &scalar{v: snmpengine.NewOctetString([]byte("b"))})
	tree.Register(snmpengine.MustNewOid("1.3.6.1.2.1.1.3.0"), &scalar{v: snmpengine.NewOctetString([]byte("c"))})

	ac := allowAllChecker(t, snmpengine.GetNextRequest)
	out, err := tree.ReadNextVars(snmpengine.VarBinds{
		{Oid: snmpengine.MustNewOid("1.3.6.1.2.1.1"), Variable: &snmpengine.Null{}},
	}, ac)
	if err != nil {
		t.Fatalf("ReadNextVars() error = %v", err)
	}
	if !out[0].Oid.Equal(snmpengine.MustNewOid("1.3.6.1.2.1.1.1.0")) || out[0].Variable.String() != "a" {
		t.Errorf("ReadNextVars() first hop = %v", out[0])
	}
}

func TestReadNextVarsEndOfMibView(t *testing.T) {
	tree := New()
	tree.Register(snmpengine.MustNewOid("1.3.6.1.2.1.1.1.0"), &scalar{v: snmpengine.NewOctetString([]byte("a"))})

	ac := allowAllChecker(t, snmpengine.GetNextRequest)
	out, err := tree.ReadNextVars(snmpengine.VarBinds{
		{Oid: snmpengine.MustNewOid("1.3.6.1.2.1.1.1.0"), Variable: &snmpengine.Null{}},
	}, ac)
	if err != nil {
		t.Fatalf("ReadNextVars() error = %v", err)
	}
	if _, ok := out[0].Variable.(*snmpengine.EndOfMibView); !ok {
		t.Errorf("ReadNextVars() at the end = %T, want EndOfMibView", out[0].Variable)
	}
}

func TestReadNextVarsSkipsDeniedCandidate(t *testing.T) {
	tree := New()
	tree.Register(snmpengine.MustNewOid("1.3.6.1.2.1.1.1.0"), &scalar{v: snmpengine.NewOctetString([]byte("a"))})
	tree.Register(snmpengine.MustNewOid("1.3.6.1.2.1.1.2.0"), &scalar{v: snmpengine.NewOctetString([]byte("b"))})

	// denyAllChecker never permits any oid, so the walk should run clean
	// off the end of the tree instead of surfacing a denied instance.
	ac := denyAllChecker(t, snmpengine.GetNextRequest)
	out, err := tree.ReadNextVars(snmpengine.VarBinds{
		{Oid: snmpengine.MustNewOid("1.3.6.1.2.1.1"), Variable: &snmpengine.Null{}},
	}, ac)
	if err != nil {
		t.Fatalf("ReadNextVars() error = %v", err)
	}
	if _, ok := out[0].Variable.(*snmpengine.EndOfMibView); !ok {
		t.Errorf("ReadNextVars() all denied = %T, want EndOfMibView", out[0].Variable)
	}
}

func TestWriteVarsCommitsAll(t *testing.T) {
	tree := New()
	oidA := snmpengine.MustNewOid("1.3.6.1.2.1.1.1.0")
	oidB := snmpengine.MustNewOid("1.3.6.1.2.1.1.2.0")
	a := &scalar{v: snmpengine.NewOctetString([]byte("old-a"))}
	b := &scalar{v: snmpengine.NewOctetString([]byte("old-b"))}
	tree.Register(oidA, a)
	tree.Register(oidB, b)

	ac := allowAllChecker(t, snmpengine.SetRequest)
	vbs := snmpengine.VarBinds{
		{Oid: oidA, Variable: snmpengine.NewOctetString([]byte("new-a"))},
		{Oid: oidB, Variable: snmpengine.NewOctetString([]byte("new-b"))},
	}
	out, err := tree.WriteVars(vbs, ac)
	if err != nil {
		t.Fatalf("WriteVars() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("WriteVars() = %v, want 2 varbinds back", out)
	}
	if a.v.String() != "new-a" || b.v.String() != "new-b" {
		t.Errorf("WriteVars() did not commit: a=%v b=%v", a.v, b.v)
	}
}

func TestWriteVarsRollsBackOnMidPduFailure(t *testing.T) {
	tree := New()
	oidA := snmpengine.MustNewOid("1.3.6.1.2.1.1.1.0")
	oidB := snmpengine.MustNewOid("1.3.6.1.2.1.1.2.0")
	a := &scalar{v: snmpengine.NewOctetString([]byte("old-a"))}
	b := &scalar{v: snmpengine.NewOctetString([]byte("old-b")), setErr: snmpengine.WrongValueError(1)}
	tree.Register(oidA, a)
	tree.Register(oidB, b)

	ac := allowAllChecker(t, snmpengine.SetRequest)
	vbs := snmpengine.VarBinds{
		{Oid: oidA, Variable: snmpengine.NewOctetString([]byte("new-a"))},
		{Oid: oidB, Variable: snmpengine.NewOctetString([]byte("new-b"))},
	}
	if _, err := tree.WriteVars(vbs, ac); err == nil {
		t.Fatal("WriteVars() - expected the second Set's failure to surface")
	}
	if a.v.String() != "old-a" {
		t.Errorf("WriteVars() did not roll back the first Set: a=%v, want old-a", a.v)
	}
}

func TestWriteVarsUnregisteredOidIsNoCreation(t *testing.T) {
	tree := New()
	ac := allowAllChecker(t, snmpengine.SetRequest)
	_, err := tree.WriteVars(snmpengine.VarBinds{
		{Oid: snmpengine.MustNewOid("1.3.6.1.2.1.1.9.0"), Variable: snmpengine.NewInteger(1)},
	}, ac)
	if err == nil {
		t.Fatal("WriteVars() - expected an error for an unregistered oid")
	}
}

func TestWriteVarsDeniedByAccessChecker(t *testing.T) {
	tree := New()
	oid := snmpengine.MustNewOid("1.3.6.1.2.1.1.1.0")
	h := &scalar{v: snmpengine.NewOctetString([]byte("old"))}
	tree.Register(oid, h)

	ac := denyAllChecker(t, snmpengine.SetRequest)
	_, err := tree.WriteVars(snmpengine.VarBinds{
		{Oid: oid, Variable: snmpengine.NewOctetString([]byte("new"))},
	}, ac)
	if err == nil {
		t.Error("WriteVars() - expected a VACM denial error")
	}
	if h.v.String() != "old" {
		t.Errorf("WriteVars() denied but still committed: %v", h.v)
	}
}

func TestReadOnlyHandlerRejectsSet(t *testing.T) {
	h := ReadOnly(func() (snmpengine.Variable, error) { return snmpengine.NewInteger(42), nil })
	if err := h.Set(snmpengine.NewInteger(1)); err == nil {
		t.Error("ReadOnly.Set() - expected a not-writable error")
	}
	v, err := h.Get()
	if err != nil || v.String() != "42" {
		t.Errorf("ReadOnly.Get() = %v, %v", v, err)
	}
}
