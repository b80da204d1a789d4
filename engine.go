package snmpengine

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EngineArguments configures a new Engine, in the same Arguments-struct
// idiom snmpgo.go's own Arguments type follows: a plain struct validated
// once at construction rather than a long constructor parameter list.
type EngineArguments struct {
	// EngineId is a hex string, 5-32 octets once decoded; if empty, a
	// default is derived from the process's boot time and PID.
	EngineId string
	// BootsFile persists snmpEngineBoots across restarts; if empty,
	// boots is always 1 (no persistence).
	BootsFile  string
	Logger     StdLogger
	Registerer prometheus.Registerer
}

func (a *EngineArguments) String() string { return escape(a) }

func (a *EngineArguments) Validate() error {
	if a.EngineId != "" {
		if _, err := engineIdToBytes(a.EngineId); err != nil {
			return err
		}
	}
	return nil
}

// Engine is an SnmpEngine (RFC 3411 Section 3.1): the process-wide
// singleton carrying the authoritative engineID, the persisted boots
// counter, and the tables (LCD, VACM, security/application registries)
// every other component is built around.
type Engine struct {
	args EngineArguments

	id        []byte
	boots     int64
	startTime time.Time

	LCD      *LCD
	VACM     *VACM
	Security *securityMap
	Metrics  *metrics
	Log      StdLogger

	contextEngineId []byte
}

// NewEngine builds an Engine, deriving a default engineID and loading the
// persisted boots counter when args.BootsFile is set.
func NewEngine(args EngineArguments) (*Engine, error) {
	if err := args.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		args:      args,
		startTime: time.Now(),
		LCD:       NewLCD(),
		VACM:      NewVACM(),
		Security:  newSecurityMap(),
		Log:       args.Logger,
	}
	if e.Log == nil {
		e.Log = defaultLogger()
	}
	e.Metrics = newMetrics(args.Registerer)

	if args.EngineId != "" {
		id, err := engineIdToBytes(args.EngineId)
		if err != nil {
			return nil, err
		}
		e.id = id
	} else {
		e.id = defaultEngineId()
	}
	e.contextEngineId = e.id

	boots, err := loadAndBumpBoots(args.BootsFile)
	if err != nil {
		return nil, err
	}
	e.boots = boots

	return e, nil
}

// EngineId returns the authoritative snmpEngineID octets.
func (e *Engine) EngineId() []byte { return e.id }

// Boots returns the current snmpEngineBoots value.
func (e *Engine) Boots() int64 { return e.boots }

// Time returns snmpEngineTime: seconds elapsed since this Engine started,
// monotonic within the boot, per RFC 3414 Section 2.2.2.
func (e *Engine) Time() int64 { return int64(time.Since(e.startTime).Seconds()) }

func (e *Engine) String() string {
	return fmt.Sprintf(`{"EngineId": "%s", "Boots": %d}`, toHexStr(e.id, ""), e.boots)
}

// defaultEngineId synthesizes a locally-unique engine ID per the
// enterprise-number-prefixed "format 4" convention of RFC 3411 Appendix A,
// using an unregistered-but-stable prefix and the process start time/PID
// in place of a real enterprise number.
func defaultEngineId() []byte {
	id := []byte{0x80, 0x00, 0x00, 0x00, 0x04} // format 4: text, no real enterprise number
	tag := fmt.Sprintf("go-%d-%d", os.Getpid(), time.Now().UnixNano())
	return append(id, []byte(tag)...)
}

// loadAndBumpBoots implements the "snmpEngineBoots increments on each cold
// start" lifecycle rule: it reads the prior value from path (0 if absent),
// writes back value+1, and returns the new value. An empty path disables
// persistence and always returns 1.
func loadAndBumpBoots(path string) (int64, error) {
	if path == "" {
		return 1, nil
	}

	var prev int64
	if b, err := os.ReadFile(path); err == nil {
		prev, _ = strconv.ParseInt(strings.TrimSpace(string(b)), 10, 64)
	} else if !os.IsNotExist(err) {
		return 0, err
	}

	next := prev + 1
	if err := os.WriteFile(path, []byte(strconv.FormatInt(next, 10)), 0o600); err != nil {
		return 0, err
	}
	return next, nil
}
