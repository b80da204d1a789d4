package snmpengine

import "sync"

// vacmError enumerates the named access-control outcomes RFC 3415 Section
// 4.2's isAccessAllowed can produce, short of plain "granted".
type vacmError int

const (
	vacmNoSuchView vacmError = iota
	vacmNoAccessEntry
	vacmNoGroupName
	vacmNoSuchContext
	vacmNotInView
	vacmOtherError
)

func (e vacmError) Error() string {
	switch e {
	case vacmNoSuchView:
		return "noSuchView"
	case vacmNoAccessEntry:
		return "noAccessEntry"
	case vacmNoGroupName:
		return "noGroupName"
	case vacmNoSuchContext:
		return "noSuchContext"
	case vacmNotInView:
		return "notInView"
	default:
		return "otherError"
	}
}

// vacmGroupKey looks up a group by (securityModel, securityName) in
// vacmSecurityToGroupTable, RFC 3415 Section 5.3.
type vacmGroupKey struct {
	Model securityModel
	Name  string
}

// vacmAccessKey looks up an access entry by (group, contextPrefix,
// securityModel, securityLevel), RFC 3415 Section 5.4. Matching at lookup
// time picks the entry with the longest matching context prefix and,
// among ties, the highest securityLevel not exceeding the request's.
type vacmAccessKey struct {
	Group    string
	Context  string
	Model    securityModel
	Level    SecurityLevel
	IsPrefix bool // false = exact context match, true = prefix match
}

// AccessEntry is one row of vacmAccessTable: the view names granted for
// each viewType at this (group, context, model, level) coordinate.
type AccessEntry struct {
	ReadView   string
	WriteView  string
	NotifyView string
}

func (e *AccessEntry) viewFor(t ViewType) string {
	switch t {
	case ViewWrite:
		return e.WriteView
	case ViewNotify:
		return e.NotifyView
	default:
		return e.ReadView
	}
}

// ViewTreeEntry is one row of vacmViewTreeFamilyTable: a subtree plus a
// bit-mask of "don't care" arcs and whether matching OIDs are included or
// excluded, RFC 3415 Section 5.5.
type ViewTreeEntry struct {
	Subtree Oid
	Mask    []byte // bit i (MSB-first per octet) gates Subtree[i]; nil = all bits significant
	Include bool
}

// matches reports whether oid matches Subtree under Mask: for each arc
// index the mask doesn't exclude, oid's arc must equal Subtree's.
func (e *ViewTreeEntry) matches(oid Oid) bool {
	if len(oid) < len(e.Subtree) {
		return false
	}
	for i, arc := range e.Subtree {
		if e.maskBit(i) && oid[i] != arc {
			return false
		}
	}
	return true
}

func (e *ViewTreeEntry) maskBit(i int) bool {
	byteIdx, bitIdx := i/8, 7-i%8
	if byteIdx >= len(e.Mask) {
		return true // RFC 3415 5.3.2: a short mask implies all further bits are 1
	}
	return e.Mask[byteIdx]&(1<<uint(bitIdx)) != 0
}

// VACM implements the View-based Access Control Model (RFC 3415): the
// three configuration tables behind isAccessAllowed, held as plain maps
// guarded by one RWMutex in the style of the vendored snmpgo
// securityMap (one mutex, one map, Set/Lookup/Delete) rather than
// ported from any example, since no example repo implements VACM itself.
type VACM struct {
	lock   sync.RWMutex
	groups map[vacmGroupKey]string
	access []vacmAccessRow
	views  map[string][]ViewTreeEntry
}

type vacmAccessRow struct {
	vacmAccessKey
	Entry AccessEntry
}

func NewVACM() *VACM {
	return &VACM{
		groups: make(map[vacmGroupKey]string),
		views:  make(map[string][]ViewTreeEntry),
	}
}

// SetGroup assigns (securityModel, securityName) to a VACM group name.
func (v *VACM) SetGroup(model securityModel, securityName, group string) {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.groups[vacmGroupKey{model, securityName}] = group
}

// SetAccess installs one vacmAccessTable row. contextPrefix="" with
// isPrefix=true matches every context, the usual wildcard configuration.
func (v *VACM) SetAccess(group, contextPrefix string, isPrefix bool, model securityModel, level SecurityLevel, entry AccessEntry) {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.access = append(v.access, vacmAccessRow{
		vacmAccessKey: vacmAccessKey{Group: group, Context: contextPrefix, Model: model, Level: level, IsPrefix: isPrefix},
		Entry:         entry,
	})
}

// SetView adds one vacmViewTreeFamilyTable row under the named view.
func (v *VACM) SetView(viewName string, entry ViewTreeEntry) {
	v.lock.Lock()
	defer v.lock.Unlock()
	v.views[viewName] = append(v.views[viewName], entry)
}

// IsAccessAllowed runs the RFC 3415 Section 4.2 decision algorithm.
func (v *VACM) IsAccessAllowed(model securityModel, securityName string, level SecurityLevel,
	viewType ViewType, contextName string, oid Oid) error {

	v.lock.RLock()
	defer v.lock.RUnlock()

	group, ok := v.groups[vacmGroupKey{model, securityName}]
	if !ok {
		return vacmNoGroupName
	}

	access, ok := v.bestAccess(group, contextName, model, level)
	if !ok {
		return vacmNoAccessEntry
	}

	viewName := access.viewFor(viewType)
	if viewName == "" {
		return vacmNoSuchView
	}

	return v.checkView(viewName, oid)
}

// bestAccess picks the access row with the longest matching context
// prefix, and among ties the highest securityLevel not exceeding the
// request's (RFC 3415 Section 5.4's "nearest match" rule).
func (v *VACM) bestAccess(group, contextName string, model securityModel, level SecurityLevel) (*AccessEntry, bool) {
	var best *vacmAccessRow
	bestPrefixLen := -1

	for i := range v.access {
		row := &v.access[i]
		if row.Group != group || row.Model != model || row.Level > level {
			continue
		}
		var prefixLen int
		switch {
		case !row.IsPrefix && row.Context == contextName:
			prefixLen = len(contextName) + 1 // exact match outranks any prefix
		case row.IsPrefix && len(contextName) >= len(row.Context) && contextName[:len(row.Context)] == row.Context:
			prefixLen = len(row.Context)
		default:
			continue
		}
		if prefixLen < bestPrefixLen {
			continue
		}
		if prefixLen > bestPrefixLen || best == nil || row.Level > best.Level {
			best = row
			bestPrefixLen = prefixLen
		}
	}
	if best == nil {
		return nil, false
	}
	return &best.Entry, true
}

// checkView walks viewName's rows for the longest-prefix subtree match,
// RFC 3415 Section 5.5 (ties broken by longest Subtree since a longer,
// matching subtree is always at least as specific).
func (v *VACM) checkView(viewName string, oid Oid) error {
	entries := v.views[viewName]
	if len(entries) == 0 {
		return vacmNoSuchView
	}

	var best *ViewTreeEntry
	for i := range entries {
		e := &entries[i]
		if !e.matches(oid) {
			continue
		}
		if best == nil || len(e.Subtree) > len(best.Subtree) {
			best = e
		}
	}
	if best == nil {
		return vacmNotInView
	}
	if best.Include {
		return nil
	}
	return vacmNotInView
}
