// Package config loads cmd/snmpagentd's configuration: the LCD rows
// (communities, USM users) and VACM tables (groups, access, views) a
// responder needs before it can answer anything, plus the listen
// address. Grounded on marmos91-dittofs/pkg/config's viper-based
// Load/MustLoad split -- environment overrides via AutomaticEnv, a
// mapstructure decode hook for time.Duration, defaults applied after
// unmarshal -- scaled down to this engine's own settings.
package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config is cmd/snmpagentd's full configuration.
type Config struct {
	Listen      ListenConfig      `mapstructure:"listen"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Communities []CommunityConfig `mapstructure:"communities"`
	Users       []UserConfig      `mapstructure:"users"`
	Access      []AccessConfig    `mapstructure:"access"`
	Views       []ViewConfig      `mapstructure:"views"`
	Targets     []TargetConfig    `mapstructure:"targets"`
}

// ListenConfig names the socket a responder binds.
type ListenConfig struct {
	Domain  string `mapstructure:"domain"`  // "udp", "udp6", "unixgram"; default "udp"
	Address string `mapstructure:"address"` // "host:port" or a unixgram path
}

// EngineConfig carries the snmpEngineID bookkeeping (RFC 3411 Sec 3.1).
type EngineConfig struct {
	EngineId  string `mapstructure:"engine_id"`
	BootsFile string `mapstructure:"boots_file"`
}

// CommunityConfig is one vacmSecurityToGroupTable row for the Community
// Security Model (v1/v2c).
type CommunityConfig struct {
	Name  string `mapstructure:"name"`
	Group string `mapstructure:"group"`
}

// UserConfig is one usmUserTable row (RFC 3414 Section 5).
type UserConfig struct {
	Name          string `mapstructure:"name"`
	Group         string `mapstructure:"group"`
	SecurityLevel string `mapstructure:"security_level"` // noAuthNoPriv, authNoPriv, authPriv
	AuthProtocol  string `mapstructure:"auth_protocol"`  // MD5, SHA
	AuthPassword  string `mapstructure:"auth_password"`
	PrivProtocol  string `mapstructure:"priv_protocol"` // DES, AES
	PrivPassword  string `mapstructure:"priv_password"`
}

// AccessConfig is one vacmAccessTable row (RFC 3415 Section 5.4).
type AccessConfig struct {
	Group         string `mapstructure:"group"`
	ContextPrefix string `mapstructure:"context_prefix"`
	IsPrefix      bool   `mapstructure:"is_prefix"`
	SecurityModel string `mapstructure:"security_model"` // v1, v2c, v3, any
	SecurityLevel string `mapstructure:"security_level"`
	ReadView      string `mapstructure:"read_view"`
	WriteView     string `mapstructure:"write_view"`
	NotifyView    string `mapstructure:"notify_view"`
}

// ViewConfig is one vacmViewTreeFamilyTable row (RFC 3415 Section 5.5).
type ViewConfig struct {
	Name    string `mapstructure:"name"`
	Subtree string `mapstructure:"subtree"` // dotted OID
	Mask    string `mapstructure:"mask"`    // hex octets, e.g. "ff:e0"; empty = all bits significant
	Include bool   `mapstructure:"include"`
}

// TargetConfig seeds the LCD's snmpTargetAddrTable/snmpTargetParamsTable/
// security rows a NotificationOriginator resolves a target name against.
type TargetConfig struct {
	Name          string        `mapstructure:"name"`
	Domain        string        `mapstructure:"domain"`
	Address       string        `mapstructure:"address"`
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryCount    int           `mapstructure:"retry_count"`
	Version       string        `mapstructure:"version"`
	SecurityLevel string        `mapstructure:"security_level"`
	Community     string        `mapstructure:"community"`
	UserName      string        `mapstructure:"user_name"`
	AuthProtocol  string        `mapstructure:"auth_protocol"`
	AuthPassword  string        `mapstructure:"auth_password"`
	PrivProtocol  string        `mapstructure:"priv_protocol"`
	PrivPassword  string        `mapstructure:"priv_password"`
}

// Load reads configPath (YAML or TOML, viper sniffs the extension) plus
// SNMPAGENTD_*-prefixed environment overrides and unmarshals into a
// Config with defaults applied for anything the file and environment
// both left unset.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SNMPAGENTD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	hook := mapstructure.ComposeDecodeHookFunc(durationDecodeHook())
	if err := v.Unmarshal(&cfg, viper.DecodeHook(hook)); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// MustLoad loads configPath, failing loudly with setup instructions if a
// non-empty path doesn't exist -- the same contract dittofs's MustLoad
// gives its "init first" error, adapted to this engine's own flags.
func MustLoad(configPath string) (*Config, error) {
	if configPath != "" {
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s\n\n"+
				"Create one first, or pass --config /path/to/config.yaml", configPath)
		}
	}
	return Load(configPath)
}

func applyDefaults(cfg *Config) {
	if cfg.Listen.Domain == "" {
		cfg.Listen.Domain = "udp"
	}
	if cfg.Listen.Address == "" {
		cfg.Listen.Address = ":161"
	}
}

func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v) * time.Millisecond, nil
		case int64:
			return time.Duration(v) * time.Millisecond, nil
		case float64:
			return time.Duration(v) * time.Millisecond, nil
		default:
			return data, nil
		}
	}
}
