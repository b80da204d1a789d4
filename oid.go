package snmpengine

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Oid is an SNMP object identifier, stored as its decoded arcs.
type Oid []uint32

// NewOid parses a dotted-decimal string, with or without a leading dot.
func NewOid(s string) (Oid, error) {
	s = strings.TrimPrefix(s, ".")
	if s == "" {
		return Oid{}, nil
	}
	parts := strings.Split(s, ".")
	oid := make(Oid, len(parts))
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			return nil, &ArgumentError{Value: s, Message: "Invalid Oid"}
		}
		oid[i] = uint32(n)
	}
	return oid, nil
}

// MustNewOid is NewOid but panics on a malformed literal; useful for
// constant OIDs baked into the engine (e.g. usmStats counters).
func MustNewOid(s string) Oid {
	o, err := NewOid(s)
	if err != nil {
		panic(err)
	}
	return o
}

func (o Oid) String() string {
	parts := make([]string, len(o))
	for i, a := range o {
		parts[i] = strconv.FormatUint(uint64(a), 10)
	}
	return strings.Join(parts, ".")
}

func (o Oid) ToString() string { return o.String() }

// Compare returns -1, 0 or 1 per the lexicographic ordering of OID arcs
// defined in RFC 3416 Section 4.1 (used for canonical VarBind ordering and
// GetNext tree walks).
func (o Oid) Compare(other Oid) int {
	for i := 0; i < len(o) && i < len(other); i++ {
		if o[i] < other[i] {
			return -1
		}
		if o[i] > other[i] {
			return 1
		}
	}
	switch {
	case len(o) < len(other):
		return -1
	case len(o) > len(other):
		return 1
	default:
		return 0
	}
}

func (o Oid) Equal(other Oid) bool { return o.Compare(other) == 0 }

// Contains reports whether o is a prefix of other (o is a base OID of
// other), the relation GetNext/GetBulk walkers and VACM subtree matching
// both rely on.
func (o Oid) Contains(other Oid) bool {
	if len(o) > len(other) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a defensive copy.
func (o Oid) Clone() Oid {
	c := make(Oid, len(o))
	copy(c, o)
	return c
}

// Oids is a sortable, de-duplicable collection of Oid, mirroring the
// helper methods the command generator's GetBulkWalk relies on.
type Oids []Oid

func (o Oids) Len() int           { return len(o) }
func (o Oids) Less(i, j int) bool { return o[i].Compare(o[j]) < 0 }
func (o Oids) Swap(i, j int)      { o[i], o[j] = o[j], o[i] }

func (o Oids) Sort() Oids {
	sort.Sort(o)
	return o
}

// UniqBase removes entries that are a strict subtree of an earlier entry,
// since GetBulkWalk only needs one request per top-level base OID.
func (o Oids) UniqBase() Oids {
	var out Oids
	for _, oid := range o {
		dup := false
		for _, seen := range out {
			if seen.Contains(oid) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, oid)
		}
	}
	return out
}

var _ fmt.Stringer = Oid{}
