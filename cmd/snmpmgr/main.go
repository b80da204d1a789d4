// Command snmpmgr is a Command Generator (RFC 3413 Section 3.1) CLI:
// get/getnext/bulkwalk/set issue confirmed requests against one target,
// trap/inform fire notifications. Flags and subcommand layout follow
// marmos91-dittofs/cmd/dittofs/commands' persistent-flags-plus-RunE
// pattern, scaled down to snmpget/snmpset-style per-invocation
// connection parameters instead of a daemon config file.
package main

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/zjn1234/snmpengine"
)

var opts struct {
	version       string
	community     string
	userName      string
	securityLevel string
	authProtocol  string
	authPassword  string
	privProtocol  string
	privPassword  string
	domain        string
	timeoutMs     int
	retries       int
	contextName   string
}

var rootCmd = &cobra.Command{
	Use:           "snmpmgr",
	Short:         "SNMP command generator (manager)",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&opts.version, "version", "v", "2c", "SNMP version: 1, 2c, or 3")
	f.StringVarP(&opts.community, "community", "c", "public", "community string (v1/v2c)")
	f.StringVarP(&opts.userName, "user", "u", "", "USM user name (v3)")
	f.StringVarP(&opts.securityLevel, "level", "l", "noAuthNoPriv", "USM security level: noAuthNoPriv, authNoPriv, authPriv")
	f.StringVar(&opts.authProtocol, "auth-protocol", "", "USM auth protocol: MD5, SHA")
	f.StringVar(&opts.authPassword, "auth-password", "", "USM auth password")
	f.StringVar(&opts.privProtocol, "priv-protocol", "", "USM privacy protocol: DES, AES")
	f.StringVar(&opts.privPassword, "priv-password", "", "USM privacy password")
	f.StringVar(&opts.domain, "domain", "udp", "transport domain: udp, udp6, unixgram")
	f.IntVar(&opts.timeoutMs, "timeout", 5000, "request timeout in milliseconds")
	f.IntVar(&opts.retries, "retries", 1, "retransmissions per confirmed request")
	f.StringVar(&opts.contextName, "context", "", "v3 contextName")

	rootCmd.AddCommand(getCmd, getNextCmd, bulkWalkCmd, setCmd, trapCmd, informCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "snmpmgr:", err)
		os.Exit(1)
	}
}

var getCmd = &cobra.Command{
	Use:   "get <host:port> <oid> [oid...]",
	Short: "GetRequest",
	Args:  cobra.MinimumNArgs(2),
	RunE: withGenerator(func(g *snmpengine.Generator, args []string) error {
		oids, err := parseOids(args)
		if err != nil {
			return err
		}
		pdu, err := g.GetRequest(oids)
		return printResult(pdu, err)
	}),
}

var getNextCmd = &cobra.Command{
	Use:   "getnext <host:port> <oid> [oid...]",
	Short: "GetNextRequest",
	Args:  cobra.MinimumNArgs(2),
	RunE: withGenerator(func(g *snmpengine.Generator, args []string) error {
		oids, err := parseOids(args)
		if err != nil {
			return err
		}
		pdu, err := g.GetNextRequest(oids)
		return printResult(pdu, err)
	}),
}

var bulkWalkCmd = &cobra.Command{
	Use:   "bulkwalk <host:port> <oid> [oid...]",
	Short: "Enumerate a subtree via repeated GetBulkRequest",
	Args:  cobra.MinimumNArgs(2),
	RunE: withGenerator(func(g *snmpengine.Generator, args []string) error {
		oids, err := parseOids(args)
		if err != nil {
			return err
		}
		pdu, err := g.GetBulkWalk(oids, 0, 10)
		return printResult(pdu, err)
	}),
}

var setCmd = &cobra.Command{
	Use:   "set <host:port> <oid>=<type>:<value> [oid=type:value...]",
	Short: "SetRequest (type: i=Integer, s=OctetString, o=ObjectIdentifier, t=TimeTicks)",
	Args:  cobra.MinimumNArgs(2),
	RunE: withGenerator(func(g *snmpengine.Generator, args []string) error {
		vbs, err := parseVarBinds(args)
		if err != nil {
			return err
		}
		pdu, err := g.SetRequest(vbs)
		return printResult(pdu, err)
	}),
}

var trapCmd = &cobra.Command{
	Use:   "trap <host:port> <trap-oid> [oid=type:value...]",
	Short: "Send an unconfirmed notification (SNMPv2-Trap; v2c/v3 only, no Trap-PDU under -v 1)",
	Args:  cobra.MinimumNArgs(2),
	RunE: withGenerator(func(g *snmpengine.Generator, args []string) error {
		return sendNotification(g, args, false)
	}),
}

var informCmd = &cobra.Command{
	Use:   "inform <host:port> <trap-oid> [oid=type:value...]",
	Short: "Send a confirmed InformRequest (v2c/v3 only)",
	Args:  cobra.MinimumNArgs(2),
	RunE: withGenerator(func(g *snmpengine.Generator, args []string) error {
		return sendNotification(g, args, true)
	}),
}

var (
	oidSysUpTime   = snmpengine.MustNewOid("1.3.6.1.2.1.1.3.0")
	oidSnmpTrapOID = snmpengine.MustNewOid("1.3.6.1.6.3.1.1.4.1.0")
)

// sendNotification builds the sysUpTime.0/snmpTrapOID.0-prefixed VarBinds
// RFC 3416 Section 4.2.6/4.2.7 require of every notification and hands
// them to the Generator directly -- unlike notify.NotificationOriginator,
// a bare Generator does not add this prefix itself.
func sendNotification(g *snmpengine.Generator, args []string, inform bool) error {
	trapOid, err := snmpengine.NewOid(args[1])
	if err != nil {
		return err
	}
	extra, err := parseVarBinds(args[2:])
	if err != nil {
		return err
	}
	vbs := make(snmpengine.VarBinds, 0, len(extra)+2)
	vbs = append(vbs,
		snmpengine.VarBind{Oid: oidSysUpTime, Variable: snmpengine.NewTimeTicks(0)},
		snmpengine.VarBind{Oid: oidSnmpTrapOID, Variable: snmpengine.NewObjectIdentifier(trapOid)},
	)
	vbs = append(vbs, extra...)

	if inform {
		return g.InformRequest(vbs)
	}
	return g.V2Trap(vbs)
}

// withGenerator builds a Generator from the persistent connection flags
// and args[0] (the target "host:port"), then hands the remaining args to
// fn.
func withGenerator(fn func(g *snmpengine.Generator, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		version, err := snmpengine.ParseVersion(opts.version)
		if err != nil {
			return err
		}
		level, err := snmpengine.ParseSecurityLevel(opts.securityLevel)
		if err != nil {
			return err
		}
		authProto, err := snmpengine.ParseAuthProtocol(opts.authProtocol)
		if err != nil {
			return err
		}
		privProto, err := snmpengine.ParsePrivProtocol(opts.privProtocol)
		if err != nil {
			return err
		}
		domain, network, err := resolveDomain(opts.domain)
		if err != nil {
			return err
		}

		var pd *snmpengine.PduDispatcher
		transport := snmpengine.NewDispatcher(func(d snmpengine.TransportDomain, addr net.Addr, data []byte) {
			pd.HandleMessage(d, addr, data)
		}, 0)
		udp, err := snmpengine.NewUDPTransport(domain, network, ":0")
		if err != nil {
			return fmt.Errorf("opening local socket: %w", err)
		}
		transport.RegisterTransport(udp)

		engine, err := snmpengine.NewEngine(snmpengine.EngineArguments{})
		if err != nil {
			return err
		}
		pd = snmpengine.NewPduDispatcher(engine, transport)

		go transport.RunDispatcher()
		defer transport.CloseDispatcher()

		gen, err := snmpengine.NewGenerator(pd, snmpengine.GeneratorArguments{
			Version: version, Domain: domain, Address: args[0],
			Timeout:       time.Duration(opts.timeoutMs) * time.Millisecond,
			Retries:       uint(opts.retries),
			Community:     opts.community,
			UserName:      opts.userName,
			SecurityLevel: level,
			AuthPassword:  opts.authPassword,
			AuthProtocol:  authProto,
			PrivPassword:  opts.privPassword,
			PrivProtocol:  privProto,
			ContextName:   opts.contextName,
		})
		if err != nil {
			return err
		}

		return fn(gen, args[1:])
	}
}

func resolveDomain(name string) (snmpengine.TransportDomain, string, error) {
	switch name {
	case "", "udp":
		return snmpengine.DomainUDP, "udp", nil
	case "udp4":
		return snmpengine.DomainUDP, "udp4", nil
	case "udp6":
		return snmpengine.DomainUDP6, "udp6", nil
	case "unixgram", "unix":
		return snmpengine.DomainUnix, "unixgram", nil
	default:
		return "", "", fmt.Errorf("unknown domain %q", name)
	}
}

func parseOids(args []string) (snmpengine.Oids, error) {
	oids := make(snmpengine.Oids, len(args))
	for i, a := range args {
		o, err := snmpengine.NewOid(a)
		if err != nil {
			return nil, err
		}
		oids[i] = o
	}
	return oids, nil
}

// parseVarBinds parses "oid=type:value" tokens, the conventional
// snmpset command-line notation.
func parseVarBinds(args []string) (snmpengine.VarBinds, error) {
	vbs := make(snmpengine.VarBinds, 0, len(args))
	for _, a := range args {
		oidPart, rest, ok := strings.Cut(a, "=")
		if !ok {
			return nil, fmt.Errorf("malformed assignment %q, want oid=type:value", a)
		}
		typePart, valPart, ok := strings.Cut(rest, ":")
		if !ok {
			return nil, fmt.Errorf("malformed assignment %q, want oid=type:value", a)
		}
		oid, err := snmpengine.NewOid(oidPart)
		if err != nil {
			return nil, err
		}
		v, err := parseVariable(typePart, valPart)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", a, err)
		}
		vbs = append(vbs, snmpengine.VarBind{Oid: oid, Variable: v})
	}
	return vbs, nil
}

func parseVariable(typ, val string) (snmpengine.Variable, error) {
	switch typ {
	case "i":
		n, err := strconv.ParseInt(val, 10, 32)
		if err != nil {
			return nil, err
		}
		return snmpengine.NewInteger(int32(n)), nil
	case "s":
		return snmpengine.NewOctetString([]byte(val)), nil
	case "o":
		oid, err := snmpengine.NewOid(val)
		if err != nil {
			return nil, err
		}
		return snmpengine.NewObjectIdentifier(oid), nil
	case "t":
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return nil, err
		}
		return snmpengine.NewTimeTicks(uint32(n)), nil
	case "u":
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return nil, err
		}
		return snmpengine.NewGauge32(uint32(n)), nil
	case "c":
		n, err := strconv.ParseUint(val, 10, 32)
		if err != nil {
			return nil, err
		}
		return snmpengine.NewCounter32(uint32(n)), nil
	default:
		return nil, fmt.Errorf("unknown type tag %q", typ)
	}
}

func printResult(pdu snmpengine.Pdu, err error) error {
	if err != nil {
		return err
	}
	if pdu.ErrorStatus() != snmpengine.ErrNoError {
		fmt.Printf("Error: status=%d index=%d\n", pdu.ErrorStatus(), pdu.ErrorIndex())
		return nil
	}
	for _, vb := range pdu.VarBinds() {
		fmt.Printf("%s = %s\n", vb.Oid.String(), vb.Variable)
	}
	return nil
}
