package launcher

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/naoina/toml"
	"gopkg.in/urfave/cli.v1"

	"github.com/rony4d/go-settlement/felt"
	"github.com/rony4d/go-settlement/integration"
	"github.com/rony4d/go-settlement/starknet"
)

// These settings ensure that TOML keys use the same names as Go struct fields.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string {
		return key
	},
	FieldToKey: func(rt reflect.Type, field string) string {
		return field
	},
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

const configKey = "config"

func loadAllConfigs(file string, cfg *Config) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	// Add file name to errors that have a line number.
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	if err != nil {
		return fmt.Errorf("TOML config file error: %v.\n"+
			"Use 'dumpconfig' command to get an example config file.\n"+
			"If node was recently upgraded and a previous config file is used, then check updates for the config file.", err)
	}
	return nil
}

// mayMakeAllConfigs merges defaults, the config file and CLI overrides.
func mayMakeAllConfigs(ctx *cli.Context) (*Config, error) {
	cfg := DefaultConfig()

	if file := ctx.GlobalString("config"); file != "" {
		if err := loadAllConfigs(file, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyCLIOverrides(ctx, &cfg); err != nil {
		return nil, err
	}
	cfg.Node.DataDir = resolvePath(cfg.Node.DataDir)
	return &cfg, nil
}

// configOf returns the config assembled before the command ran.
func configOf(ctx *cli.Context) *Config {
	return ctx.App.Metadata[configKey].(*Config)
}

func applyCLIOverrides(ctx *cli.Context, cfg *Config) error {
	if ctx.GlobalIsSet("datadir") {
		cfg.Node.DataDir = ctx.GlobalString("datadir")
	}
	if ctx.GlobalIsSet("log.format") {
		cfg.Node.Logging.Format = ctx.GlobalString("log.format")
	}
	if ctx.GlobalIsSet("log.verbosity") {
		cfg.Node.Logging.Verbosity = ctx.GlobalInt("log.verbosity")
	}
	if ctx.GlobalIsSet("log.color") {
		cfg.Node.Logging.Color = ctx.GlobalBool("log.color")
	}
	if ctx.GlobalIsSet("sentry.dsn") {
		cfg.Node.Logging.SentryDSN = ctx.GlobalString("sentry.dsn")
	}

	if ctx.GlobalIsSet("db.preset") {
		preset, err := integration.GetPresetByName(ctx.GlobalString("db.preset"))
		if err != nil {
			return err
		}
		integration.ApplyPreset(&cfg.Storage, preset)
	}
	if ctx.GlobalIsSet("cache") {
		cfg.Storage.CacheMB = ctx.GlobalInt("cache")
	}

	if ctx.GlobalIsSet("network") {
		n, err := starknet.NetworkByName(ctx.GlobalString("network"))
		if err != nil {
			return err
		}
		prev := cfg.Network
		cfg.Network = networkConfig(n)
		cfg.Network.Endpoint = prev.Endpoint
		cfg.Network.KeyFile = prev.KeyFile
		cfg.Network.Timeout = prev.Timeout
	}
	if ctx.GlobalIsSet("l1.endpoint") {
		cfg.Network.Endpoint = ctx.GlobalString("l1.endpoint")
	}
	if ctx.GlobalIsSet("l1.keyfile") {
		cfg.Network.KeyFile = ctx.GlobalString("l1.keyfile")
	}
	if ctx.GlobalIsSet("l1.timeout") {
		cfg.Network.Timeout = ctx.GlobalDuration("l1.timeout")
	}
	if ctx.GlobalIsSet("l1.contract") {
		addr := ctx.GlobalString("l1.contract")
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("invalid l1.contract %q", addr)
		}
		cfg.Network.Contract = common.HexToAddress(addr)
	}
	for name, dst := range map[string]*felt.Felt{
		"chain.programhash": &cfg.Network.ProgramHash,
		"chain.confighash":  &cfg.Network.ConfigHash,
	} {
		if !ctx.GlobalIsSet(name) {
			continue
		}
		v, err := felt.FromHex(ctx.GlobalString(name))
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		*dst = v
	}

	if ctx.GlobalIsSet("metrics") {
		cfg.Metrics.Enabled = ctx.GlobalBool("metrics")
	}
	if ctx.GlobalIsSet("metrics.addr") {
		cfg.Metrics.Addr = ctx.GlobalString("metrics.addr")
	}
	if ctx.GlobalIsSet("metrics.port") {
		cfg.Metrics.Port = ctx.GlobalInt("metrics.port")
	}
	return nil
}

func dumpConfig(ctx *cli.Context) error {
	cfg := configOf(ctx)
	out, err := tomlSettings.Marshal(cfg)
	if err != nil {
		return err
	}

	dump := ctx.App.Writer
	if ctx.NArg() > 0 {
		f, err := os.OpenFile(ctx.Args().Get(0), os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		dump = f
	}
	_, err = io.WriteString(dump, string(out))
	return err
}

func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create datadir %s: %w", dir, err)
	}
	return nil
}

func resolvePath(p string) string {
	if strings.HasPrefix(p, "~") {
		return filepath.Join(GuessHomeDir(), strings.TrimPrefix(p, "~"))
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(GuessWorkDir(), p)
}

func splitCSV(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func GuessWorkDir() string {
	if wd, err := os.Getwd(); err == nil {
		return wd
	}
	return "."
}

func GuessHomeDir() string {
	if dir, err := os.UserHomeDir(); err == nil {
		return dir
	}
	return "."
}
