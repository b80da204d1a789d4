package snmpengine

import "sort"

// VarBind is an (OID, value) pair, the unit PDUs carry varBinds in.
type VarBind struct {
	Oid      Oid
	Variable Variable
}

func (v VarBind) String() string {
	return v.Oid.String() + " = " + v.Variable.String()
}

// VarBinds is an ordered sequence of VarBind, with the sort/dedup/match
// helpers the command generator's GetBulkWalk needs to merge repeated
// GetBulk rows into one subtree result.
type VarBinds []VarBind

func (v VarBinds) Len() int           { return len(v) }
func (v VarBinds) Less(i, j int) bool { return v[i].Oid.Compare(v[j].Oid) < 0 }
func (v VarBinds) Swap(i, j int)      { v[i], v[j] = v[j], v[i] }

func (v VarBinds) Sort() VarBinds {
	sort.Sort(v)
	return v
}

// Uniq removes VarBinds whose OID equals that of the entry kept just
// before it, keeping the first of each run; repeats that are not adjacent
// are all kept.
func (v VarBinds) Uniq() VarBinds {
	out := make(VarBinds, 0, len(v))
	for _, vb := range v {
		if len(out) == 0 || !out[len(out)-1].Oid.Equal(vb.Oid) {
			out = append(out, vb)
		}
	}
	return out
}

// MatchOid returns the VarBind whose OID exactly equals oid, or nil.
func (v VarBinds) MatchOid(oid Oid) *VarBind {
	for i := range v {
		if v[i].Oid.Equal(oid) {
			return &v[i]
		}
	}
	return nil
}

// MatchBaseOids returns, in order, every VarBind whose OID lies under the
// given base OID (base.Contains(vb.Oid)).
func (v VarBinds) MatchBaseOids(base Oid) VarBinds {
	var out VarBinds
	for _, vb := range v {
		if base.Contains(vb.Oid) {
			out = append(out, vb)
		}
	}
	return out
}
