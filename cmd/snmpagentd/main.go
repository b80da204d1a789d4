// Command snmpagentd is a Command Responder (RFC 3413 Section 3.2): it
// answers Get/GetNext/GetBulk/Set against an in-memory MIB tree and, on
// startup, fires a coldStart notification at every configured target.
// The cobra root-command-plus-persistent-config-flag shape is adapted
// from marmos91-dittofs/cmd/dittofs/commands' root.go/start.go.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zjn1234/snmpengine"
	"github.com/zjn1234/snmpengine/config"
	"github.com/zjn1234/snmpengine/mibtree"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "snmpagentd",
	Short:         "SNMP command responder (agent)",
	Long:          "snmpagentd answers SNMPv1/v2c/v3 Get/GetNext/GetBulk/Set requests against an in-memory MIB and sends a coldStart notification to configured targets at startup.",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (YAML)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "snmpagentd:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(cfgFile)
	if err != nil {
		return err
	}

	engine, err := snmpengine.NewEngine(snmpengine.EngineArguments{
		EngineId:  cfg.Engine.EngineId,
		BootsFile: cfg.Engine.BootsFile,
	})
	if err != nil {
		return fmt.Errorf("building engine: %w", err)
	}

	if err := provisionSecurity(engine, cfg); err != nil {
		return fmt.Errorf("provisioning VACM/LCD: %w", err)
	}

	domain, network, err := resolveDomain(cfg.Listen.Domain)
	if err != nil {
		return err
	}
	udp, err := snmpengine.NewUDPTransport(domain, network, cfg.Listen.Address)
	if err != nil {
		return fmt.Errorf("listening on %s %s: %w", network, cfg.Listen.Address, err)
	}

	// pd.HandleMessage is the Dispatcher's recv callback, but pd can only
	// be built from the transport Dispatcher that needs it -- closed over
	// via a forward-declared variable rather than restructuring either
	// constructor around the other.
	var pd *snmpengine.PduDispatcher
	transport := snmpengine.NewDispatcher(func(d snmpengine.TransportDomain, addr net.Addr, data []byte) {
		pd.HandleMessage(d, addr, data)
	}, 0)
	transport.RegisterTransport(udp)
	pd = snmpengine.NewPduDispatcher(engine, transport)

	tree := buildMibTree()
	bindUptime(tree, engine)
	responder := snmpengine.NewCommandResponder(pd, engine, nil,
		func(contextName string) snmpengine.MibStore { return tree })
	defer responder.Close()

	for _, addr := range cfg.Targets {
		if err := provisionTarget(engine, addr); err != nil {
			return fmt.Errorf("target %s: %w", addr.Name, err)
		}
	}
	if len(cfg.Targets) > 0 {
		originator := snmpengine.NewNotificationOriginator(pd, engine, engine.LCD)
		coldStart := snmpengine.MustNewOid("1.3.6.1.6.3.1.1.5.1")
		for _, addr := range cfg.Targets {
			if err := originator.SendTrap(addr.Name, coldStart, nil); err != nil {
				engine.Log.Printf("snmpagentd: coldStart to %s: %v", addr.Name, err)
			}
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- transport.RunDispatcher() }()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-sig:
		return transport.CloseDispatcher()
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
		return "", "", fmt.Errorf("unknown listen domain %q", name)
	}
}

// provisionSecurity loads communities/users into the engine's LCD (so
// dispatch.lookupSecurity will admit them) and their VACM group/access/
// view rows (so CommandResponder will let them read or write anything).
func provisionSecurity(engine *snmpengine.Engine, cfg *config.Config) error {
	for _, v := range cfg.Views {
		subtree, err := snmpengine.NewOid(v.Subtree)
		if err != nil {
			return fmt.Errorf("view %s: %w", v.Name, err)
		}
		mask, err := parseMask(v.Mask)
		if err != nil {
			return fmt.Errorf("view %s: %w", v.Name, err)
		}
		engine.VACM.SetView(v.Name, snmpengine.ViewTreeEntry{
			Subtree: subtree, Mask: mask, Include: v.Include,
		})
	}

	for _, a := range cfg.Access {
		model, err := snmpengine.ParseSecurityModel(a.SecurityModel)
		if err != nil {
			return fmt.Errorf("access row for group %s: %w", a.Group, err)
		}
		level, err := snmpengine.ParseSecurityLevel(a.SecurityLevel)
		if err != nil {
			return fmt.Errorf("access row for group %s: %w", a.Group, err)
		}
		engine.VACM.SetAccess(a.Group, a.ContextPrefix, a.IsPrefix, model, level, snmpengine.AccessEntry{
			ReadView: a.ReadView, WriteView: a.WriteView, NotifyView: a.NotifyView,
		})
	}

	for _, c := range cfg.Communities {
		engine.LCD.SetSecurityEntry(snmpengine.SecurityEntry{
			Name: c.Name, Version: snmpengine.V2c, Community: c.Name,
		})
		engine.VACM.SetGroup(snmpengine.SecurityModelForVersion(snmpengine.V2c), c.Name, c.Group)
	}

	for _, u := range cfg.Users {
		level, err := snmpengine.ParseSecurityLevel(u.SecurityLevel)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.Name, err)
		}
		authProto, err := snmpengine.ParseAuthProtocol(u.AuthProtocol)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.Name, err)
		}
		privProto, err := snmpengine.ParsePrivProtocol(u.PrivProtocol)
		if err != nil {
			return fmt.Errorf("user %s: %w", u.Name, err)
		}
		engine.LCD.SetSecurityEntry(snmpengine.SecurityEntry{
			Name: u.Name, Version: snmpengine.V3, UserName: u.Name,
			SecurityLevel: level, AuthProtocol: authProto, AuthPassword: u.AuthPassword,
			PrivProtocol: privProto, PrivPassword: u.PrivPassword,
		})
		engine.VACM.SetGroup(snmpengine.SecurityModelForVersion(snmpengine.V3), u.Name, u.Group)
	}

	return nil
}

// provisionTarget seeds the LCD rows a NotificationOriginator needs to
// resolve addr.Name (RFC 3413 Section 5's snmpTargetAddrTable/
// snmpTargetParamsTable/security split).
func provisionTarget(engine *snmpengine.Engine, t config.TargetConfig) error {
	version, err := snmpengine.ParseVersion(t.Version)
	if err != nil {
		return err
	}
	level, err := snmpengine.ParseSecurityLevel(t.SecurityLevel)
	if err != nil {
		return err
	}
	authProto, err := snmpengine.ParseAuthProtocol(t.AuthProtocol)
	if err != nil {
		return err
	}
	privProto, err := snmpengine.ParsePrivProtocol(t.PrivProtocol)
	if err != nil {
		return err
	}

	secName := t.Community
	if version == snmpengine.V3 {
		secName = t.UserName
	}
	engine.LCD.SetSecurityEntry(snmpengine.SecurityEntry{
		Name: t.Name, Version: version, Community: t.Community, UserName: t.UserName,
		SecurityLevel: level, AuthProtocol: authProto, AuthPassword: t.AuthPassword,
		PrivProtocol: privProto, PrivPassword: t.PrivPassword,
	})
	engine.LCD.SetTargetParams(snmpengine.TargetParams{
		Name: t.Name, Version: version, SecurityModel: snmpengine.SecurityModelForVersion(version),
		SecurityName: secName, SecurityLevel: level,
	})
	engine.LCD.SetTargetAddr(snmpengine.TargetAddr{
		Name: t.Name, Domain: t.Domain, Address: t.Address,
		Timeout: int(t.Timeout.Milliseconds()), RetryCount: t.RetryCount, ParamsName: t.Name,
	})
	return nil
}

func parseMask(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ":")
	mask := make([]byte, len(parts))
	for i, p := range parts {
		var b int
		if _, err := fmt.Sscanf(p, "%x", &b); err != nil {
			return nil, fmt.Errorf("invalid mask octet %q: %w", p, err)
		}
		mask[i] = byte(b)
	}
	return mask, nil
}
