// Package mibtree is an in-memory MIB instrumentation store implementing
// snmpengine.MibStore, the Go equivalent of pysnmp.smi.instrum's MibTree:
// a flat, oid-sorted table of registered instances that a Command
// Responder walks for Get/GetNext/GetBulk and commits two-phase for Set.
package mibtree

import (
	"sort"
	"sync"

	"github.com/zjn1234/snmpengine"
)

// Handler is the instrumentation behind one managed object instance.
// Get returns its current value; Set validates and applies v, returning
// the typed SMIError (snmpengine.WrongTypeError, snmpengine.WrongValueError,
// ...) a MIB module raises when v fails a type or range check.
type Handler interface {
	Get() (snmpengine.Variable, error)
	Set(v snmpengine.Variable) error
}

// ReadOnly adapts a plain accessor function into a Handler whose Set
// always fails not-writable, for scalars a MIB module only ever exposes
// for reading (counters, identification scalars, and the like).
type ReadOnly func() (snmpengine.Variable, error)

func (f ReadOnly) Get() (snmpengine.Variable, error) { return f() }
func (f ReadOnly) Set(snmpengine.Variable) error     { return snmpengine.NotWritableError(0) }

type entry struct {
	oid     snmpengine.Oid
	handler Handler
}

// Tree is a sorted collection of registered instances. The zero value is
// an empty Tree ready for use; New returns the same.
type Tree struct {
	mu      sync.RWMutex
	entries []entry
}

// New returns an empty Tree.
func New() *Tree { return &Tree{} }

// Register installs handler at oid, replacing any prior registration at
// the same oid.
func (t *Tree) Register(oid snmpengine.Oid, handler Handler) {
	t.mu.Lock()
	defer t.mu.Unlock()

	oid = oid.Clone()
	for i, e := range t.entries {
		if e.oid.Equal(oid) {
			t.entries[i].handler = handler
			return
		}
	}
	t.entries = append(t.entries, entry{oid: oid, handler: handler})
	sort.Slice(t.entries, func(i, j int) bool { return t.entries[i].oid.Compare(t.entries[j].oid) < 0 })
}

// Unregister removes the entry at oid, if any.
func (t *Tree) Unregister(oid snmpengine.Oid) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, e := range t.entries {
		if e.oid.Equal(oid) {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}

// lookup returns the entry exactly matching oid. Caller holds t.mu.
func (t *Tree) lookup(oid snmpengine.Oid) (entry, bool) {
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].oid.Compare(oid) >= 0 })
	if i < len(t.entries) && t.entries[i].oid.Equal(oid) {
		return t.entries[i], true
	}
	return entry{}, false
}

// next returns the first entry strictly greater than oid. Caller holds t.mu.
func (t *Tree) next(oid snmpengine.Oid) (entry, bool) {
	i := sort.Search(len(t.entries), func(i int) bool { return t.entries[i].oid.Compare(oid) > 0 })
	if i < len(t.entries) {
		return t.entries[i], true
	}
	return entry{}, false
}

// hasSibling reports whether some registered oid shares oid's column
// (every arc but the last), the heuristic this Tree uses to pick
// NoSuchInstance (object type known, this instance absent) over
// NoSuchObject (nothing registered under that object at all) for a
// lookup miss, mirroring the distinction RFC 1905 Section 4.2.1 draws.
func (t *Tree) hasSibling(oid snmpengine.Oid) bool {
	if len(oid) == 0 {
		return false
	}
	column := oid[:len(oid)-1]
	for _, e := range t.entries {
		if len(e.oid) == len(oid) && column.Equal(e.oid[:len(e.oid)-1]) {
			return true
		}
	}
	return false
}

func (t *Tree) missingValue(oid snmpengine.Oid) snmpengine.Variable {
	if t.hasSibling(oid) {
		return &snmpengine.NoSuchInstance{}
	}
	return &snmpengine.NoSuchObject{}
}

// ReadVars answers a GetRequest (RFC 1905 Section 4.2.1): each requested
// oid is resolved against the tree and access-checked under ViewRead. A
// denied or nonexistent instance becomes an inline NoSuchObject/
// NoSuchInstance value rather than failing the whole PDU -- only a
// Handler.Get failure (a real instrumentation error) aborts the request
// with GenError, matching cmdrsp.py's own "exceptions abort, syntax
// holes don't" split.
func (t *Tree) ReadVars(vbs snmpengine.VarBinds, ac *snmpengine.AccessChecker) (snmpengine.VarBinds, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(snmpengine.VarBinds, len(vbs))
	for i, vb := range vbs {
		e, ok := t.lookup(vb.Oid)
		if !ok {
			out[i] = snmpengine.VarBind{Oid: vb.Oid, Variable: t.missingValue(vb.Oid)}
			continue
		}
		v, err := e.handler.Get()
		if err != nil {
			return nil, snmpengine.GenError(i)
		}
		if err := ac.Check(i, vb.Oid, v, snmpengine.ViewRead); err != nil {
			out[i] = snmpengine.VarBind{Oid: vb.Oid, Variable: &snmpengine.NoSuchObject{}}
			continue
		}
		out[i] = snmpengine.VarBind{Oid: vb.Oid, Variable: v}
	}
	return out, nil
}

// ReadNextVars answers a GetNextRequest/GetBulkRequest tail (RFC 1905
// Sections 4.2.2/4.2.3): each input VarBind names where to resume the
// walk from, not an instance to read. A candidate denied by ac.Check (or
// skipped by the v1/Counter64 rule it implements) is never surfaced --
// the walk simply advances past it -- and running off the end of the
// tree answers EndOfMibView instead of terminating the response early.
func (t *Tree) ReadNextVars(vbs snmpengine.VarBinds, ac *snmpengine.AccessChecker) (snmpengine.VarBinds, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(snmpengine.VarBinds, len(vbs))
	for i, vb := range vbs {
		cursor := vb.Oid
		for {
			e, ok := t.next(cursor)
			if !ok {
				out[i] = snmpengine.VarBind{Oid: vb.Oid, Variable: &snmpengine.EndOfMibView{}}
				break
			}
			cursor = e.oid

			v, err := e.handler.Get()
			if err != nil {
				return nil, snmpengine.GenError(i)
			}
			if _, isNoSuch := v.(*snmpengine.NoSuchInstance); isNoSuch {
				continue
			}
			if err := ac.Check(i, e.oid, v, snmpengine.ViewRead); err != nil {
				continue
			}
			out[i] = snmpengine.VarBind{Oid: e.oid, Variable: v}
			break
		}
	}
	return out, nil
}

// writePlan is one VarBind's resolved and access-checked, not yet applied
// change.
type writePlan struct {
	handler Handler
	prior   snmpengine.Variable
	next    snmpengine.Variable
}

// WriteVars answers a SetRequest (RFC 1905 Section 4.2.5) in two passes.
// The first pass resolves every VarBind and access-checks it under
// ViewWrite, capturing each instance's prior value; it does not check the
// new values. The second pass applies the new values in order through
// Handler.Set, so a value a handler rejects is found only there. When a
// Set fails partway through, the VarBinds already applied are restored to
// their prior values and the error names the failing VarBind's index.
func (t *Tree) WriteVars(vbs snmpengine.VarBinds, ac *snmpengine.AccessChecker) (snmpengine.VarBinds, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	plans := make([]writePlan, len(vbs))
	for i, vb := range vbs {
		e, ok := t.lookup(vb.Oid)
		if !ok {
			return nil, snmpengine.NoCreationError(i)
		}
		prior, err := e.handler.Get()
		if err != nil {
			return nil, snmpengine.GenError(i)
		}
		if err := ac.Check(i, vb.Oid, prior, snmpengine.ViewWrite); err != nil {
			return nil, err
		}
		plans[i] = writePlan{handler: e.handler, prior: prior, next: vb.Variable}
	}

	for i, p := range plans {
		if err := p.handler.Set(p.next); err != nil {
			for j := 0; j < i; j++ {
				if rerr := plans[j].handler.Set(plans[j].prior); rerr != nil {
					return nil, snmpengine.UndoFailedError(j)
				}
			}
			if se, ok := err.(*snmpengine.SMIError); ok {
				return nil, &snmpengine.SMIError{Kind: se.Kind, Idx: i}
			}
			return nil, snmpengine.CommitFailedError(i)
		}
	}
	return vbs, nil
}
