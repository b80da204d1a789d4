package snmpengine

import "testing"

func TestNewOid(t *testing.T) {
	tests := []struct {
		in      string
		want    Oid
		wantErr bool
	}{
		{"1.3.6.1.2.1.1.1.0", Oid{1, 3, 6, 1, 2, 1, 1, 1, 0}, false},
		{".1.3.6.1.2.1.1.1.0", Oid{1, 3, 6, 1, 2, 1, 1, 1, 0}, false},
		{"", Oid{}, false},
		{"1.3.x.1", nil, true},
	}
	for _, tt := range tests {
		got, err := NewOid(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewOid(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && !got.Equal(tt.want) {
			t.Errorf("NewOid(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestOidCompare(t *testing.T) {
	tests := []struct {
		a, b Oid
		want int
	}{
		{MustNewOid("1.3.6.1"), MustNewOid("1.3.6.1"), 0},
		{MustNewOid("1.3.6.1"), MustNewOid("1.3.6.2"), -1},
		{MustNewOid("1.3.6.2"), MustNewOid("1.3.6.1"), 1},
		{MustNewOid("1.3.6.1"), MustNewOid("1.3.6.1.0"), -1},
		{MustNewOid("1.3.6.1.0"), MustNewOid("1.3.6.1"), 1},
	}
	for _, tt := range tests {
		if got := tt.a.Compare(tt.b); got != tt.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestOidContains(t *testing.T) {
	base := MustNewOid("1.3.6.1.2.1.1")
	if !base.Contains(MustNewOid("1.3.6.1.2.1.1.1.0")) {
		t.Error("Contains() - expected base to contain descendant")
	}
	if base.Contains(MustNewOid("1.3.6.1.2.1.2")) {
		t.Error("Contains() - expected base to not contain sibling subtree")
	}
	if MustNewOid("1.3.6.1.2.1.1.1.0").Contains(base) {
		t.Error("Contains() - a longer Oid cannot contain a shorter one")
	}
}

func TestOidsUniqBase(t *testing.T) {
	in := Oids{
		MustNewOid("1.3.6.1.2.1.1"),
		MustNewOid("1.3.6.1.2.1.1.1.0"),
		MustNewOid("1.3.6.1.2.1.2"),
	}
	out := in.UniqBase()
	if len(out) != 2 {
		t.Fatalf("UniqBase() = %v, want 2 entries", out)
	}
	if !out[0].Equal(MustNewOid("1.3.6.1.2.1.1")) || !out[1].Equal(MustNewOid("1.3.6.1.2.1.2")) {
		t.Errorf("UniqBase() = %v, want base OIDs in original order", out)
	}
}

func TestOidsSort(t *testing.T) {
	in := Oids{MustNewOid("1.3.6.1.2.1.2"), MustNewOid("1.3.6.1.2.1.1")}
	in.Sort()
	if !in[0].Equal(MustNewOid("1.3.6.1.2.1.1")) {
		t.Errorf("Sort() left %v first, want the lexicographically smaller Oid first", in)
	}
}
