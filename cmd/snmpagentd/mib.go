package main

import (
	"sync"

	"github.com/zjn1234/snmpengine"
	"github.com/zjn1234/snmpengine/mibtree"
)

// scalarHandler is a mutex-protected read/write octet-string scalar, the
// mibtree.Handler behind the System group's writable objects (sysContact,
// sysName, sysLocation).
type scalarHandler struct {
	mu    sync.Mutex
	value string
}

func (h *scalarHandler) Get() (snmpengine.Variable, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return snmpengine.NewOctetString([]byte(h.value)), nil
}

func (h *scalarHandler) Set(v snmpengine.Variable) error {
	os, ok := v.(*snmpengine.OctetString)
	if !ok {
		return snmpengine.WrongTypeError(0)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.value = string(os.Value)
	return nil
}

// buildMibTree seeds a mibtree.Tree with the MIB-II System group
// (RFC 1213 Section 6.1): sysDescr/sysObjectID/sysServices read-only,
// sysContact/sysName/sysLocation read-write. sysUpTime is added later by
// bindUptime.
func buildMibTree() *mibtree.Tree {
	tree := mibtree.New()

	tree.Register(snmpengine.MustNewOid("1.3.6.1.2.1.1.1.0"),
		mibtree.ReadOnly(func() (snmpengine.Variable, error) {
			return snmpengine.NewOctetString([]byte("snmpagentd")), nil
		}))
	tree.Register(snmpengine.MustNewOid("1.3.6.1.2.1.1.2.0"),
		mibtree.ReadOnly(func() (snmpengine.Variable, error) {
			return snmpengine.NewObjectIdentifier(snmpengine.MustNewOid("1.3.6.1.4.1.0.1")), nil
		}))
	tree.Register(snmpengine.MustNewOid("1.3.6.1.2.1.1.7.0"),
		mibtree.ReadOnly(func() (snmpengine.Variable, error) {
			return snmpengine.NewInteger(72), nil // layers 4 (end-to-end, 8) + 7 (applications, 64)
		}))

	tree.Register(snmpengine.MustNewOid("1.3.6.1.2.1.1.4.0"), &scalarHandler{})
	tree.Register(snmpengine.MustNewOid("1.3.6.1.2.1.1.5.0"), &scalarHandler{value: "snmpagentd"})
	tree.Register(snmpengine.MustNewOid("1.3.6.1.2.1.1.6.0"), &scalarHandler{})

	return tree
}

// bindUptime registers sysUpTime.0 against engine, whose Time method is
// only available once the Engine exists -- called from run after
// buildMibTree and NewEngine have both run.
func bindUptime(tree *mibtree.Tree, engine *snmpengine.Engine) {
	tree.Register(snmpengine.MustNewOid("1.3.6.1.2.1.1.3.0"),
		mibtree.ReadOnly(func() (snmpengine.Variable, error) {
			return snmpengine.NewTimeTicks(uint32(engine.Time() * 100)), nil
		}))
}
