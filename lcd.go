package snmpengine

import (
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// TargetParams is one row of the SNMP-TARGET-MIB snmpTargetParamsTable
// (RFC 3413 Section 5): the message-processing/security coordinates a
// TargetAddr entry uses to build a request.
type TargetParams struct {
	Name          string        `yaml:"name"`
	Version       SNMPVersion   `yaml:"version"`
	SecurityModel securityModel `yaml:"securityModel"`
	SecurityName  string        `yaml:"securityName"`
	SecurityLevel SecurityLevel `yaml:"securityLevel"`
}

// TargetAddr is one row of snmpTargetAddrTable (RFC 3413 Section 5): a
// transport address plus the TargetParams name to use when sending there.
type TargetAddr struct {
	Name       string `yaml:"name"`
	Domain     string `yaml:"domain"` // "udp", "udp6", "unixgram"
	Address    string `yaml:"address"`
	Timeout    int    `yaml:"timeoutMs"`
	RetryCount int    `yaml:"retryCount"`
	ParamsName string `yaml:"params"`
	TagList    string `yaml:"tagList"`
}

// lcdConfig is the on-disk shape the LCD persists/loads, keyed by
// administrative name across TargetAddr/TargetParams/Community/UsmUser
// configuration rows.
type lcdConfig struct {
	TargetAddrs  []TargetAddr    `yaml:"targetAddrs"`
	TargetParams []TargetParams  `yaml:"targetParams"`
	Securities   []SecurityEntry `yaml:"securities"`
}

// LCD is the engine's Local Configuration Datastore: the mutable tables
// backing SNMP-TARGET-MIB and USM-MIB/SNMP-COMMUNITY-MIB, guarded the same
// way the vendored snmpgo securityMap is (one RWMutex, plain map underneath).
type LCD struct {
	lock sync.RWMutex

	targetAddrs  map[string]TargetAddr
	targetParams map[string]TargetParams
	securities   map[string]SecurityEntry
}

func NewLCD() *LCD {
	return &LCD{
		targetAddrs:  make(map[string]TargetAddr),
		targetParams: make(map[string]TargetParams),
		securities:   make(map[string]SecurityEntry),
	}
}

func (l *LCD) SetTargetAddr(e TargetAddr) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.targetAddrs[e.Name] = e
}

func (l *LCD) TargetAddr(name string) (TargetAddr, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	e, ok := l.targetAddrs[name]
	return e, ok
}

func (l *LCD) DeleteTargetAddr(name string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	delete(l.targetAddrs, name)
}

func (l *LCD) SetTargetParams(e TargetParams) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.targetParams[e.Name] = e
}

func (l *LCD) TargetParams(name string) (TargetParams, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	e, ok := l.targetParams[name]
	return e, ok
}

func (l *LCD) SetSecurityEntry(e SecurityEntry) {
	l.lock.Lock()
	defer l.lock.Unlock()
	l.securities[e.Name] = e
}

func (l *LCD) SecurityEntry(name string) (SecurityEntry, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	e, ok := l.securities[name]
	return e, ok
}

func (l *LCD) DeleteSecurityEntry(name string) {
	l.lock.Lock()
	defer l.lock.Unlock()
	delete(l.securities, name)
}

// ListSecurityEntries returns a snapshot of every configured security
// principal, the shape a Command Responder scans to decide whether an
// inbound community name or USM user is one it should accept.
func (l *LCD) ListSecurityEntries() []SecurityEntry {
	l.lock.RLock()
	defer l.lock.RUnlock()

	out := make([]SecurityEntry, 0, len(l.securities))
	for _, s := range l.securities {
		out = append(out, s)
	}
	return out
}

// ListTargetAddrs returns a snapshot of every configured target, the shape
// a Notification Originator scans to decide who to fan a trap out to.
func (l *LCD) ListTargetAddrs() []TargetAddr {
	l.lock.RLock()
	defer l.lock.RUnlock()

	out := make([]TargetAddr, 0, len(l.targetAddrs))
	for _, a := range l.targetAddrs {
		out = append(out, a)
	}
	return out
}

// Resolve looks up a TargetAddr and its TargetParams together, and the
// resulting security entry it name, the coordinates a command generator's
// sendReq needs to place a request.
func (l *LCD) Resolve(targetName string) (TargetAddr, TargetParams, SecurityEntry, error) {
	addr, ok := l.TargetAddr(targetName)
	if !ok {
		return TargetAddr{}, TargetParams{}, SecurityEntry{}, &ArgumentError{
			Value: targetName, Message: "Unknown TargetAddr"}
	}
	params, ok := l.TargetParams(addr.ParamsName)
	if !ok {
		return TargetAddr{}, TargetParams{}, SecurityEntry{}, &ArgumentError{
			Value: addr.ParamsName, Message: "Unknown TargetParams"}
	}
	sec, ok := l.SecurityEntry(params.SecurityName)
	if !ok {
		return TargetAddr{}, TargetParams{}, SecurityEntry{}, &ArgumentError{
			Value: params.SecurityName, Message: "Unknown SecurityEntry"}
	}
	return addr, params, sec, nil
}

// LoadLCD reads a YAML-encoded lcdConfig from path and populates a fresh
// LCD from it, the persistence format Save writes. The snmpagentd and
// snmpmgr CLIs do not call it.
func LoadLCD(path string) (*LCD, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg lcdConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	l := NewLCD()
	for _, a := range cfg.TargetAddrs {
		l.SetTargetAddr(a)
	}
	for _, p := range cfg.TargetParams {
		l.SetTargetParams(p)
	}
	for _, s := range cfg.Securities {
		l.SetSecurityEntry(s)
	}
	return l, nil
}

// Save persists the LCD's current tables to path as YAML.
func (l *LCD) Save(path string) error {
	l.lock.RLock()
	cfg := lcdConfig{
		TargetAddrs:  make([]TargetAddr, 0, len(l.targetAddrs)),
		TargetParams: make([]TargetParams, 0, len(l.targetParams)),
		Securities:   make([]SecurityEntry, 0, len(l.securities)),
	}
	for _, a := range l.targetAddrs {
		cfg.TargetAddrs = append(cfg.TargetAddrs, a)
	}
	for _, p := range l.targetParams {
		cfg.TargetParams = append(cfg.TargetParams, p)
	}
	for _, s := range l.securities {
		cfg.Securities = append(cfg.Securities, s)
	}
	l.lock.RUnlock()

	b, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
