// Package config loads engine deployment configuration.
//
// A configuration file is either YAML (.yaml, .yml) or CUE (.cue). YAML is
// decoded strictly: unknown keys are an error. CUE files are unified with
// an embedded schema, so constraint violations are reported with CUE
// positions.
//
// Example (YAML):
//
//	minimum_upkeep_interval: 10
//	engine_address: "0x00000000000000000000000000000000000000aa"
//	router_address: "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D"
//	keeper_interval: 30s
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/roach88/trickle/internal/engine"
)

//go:embed schema.cue
var schemaSource []byte

// DefaultKeeperInterval is how often the keeper polls when unset.
const DefaultKeeperInterval = 30 * time.Second

// Config is a loaded, validated deployment configuration.
// It is read-only after Load returns.
type Config struct {
	MinimumUpkeepInterval int64
	EngineAddress         common.Address
	RouterAddress         common.Address
	KeeperInterval        time.Duration
}

// fileConfig is the on-disk shape shared by YAML and CUE.
type fileConfig struct {
	MinimumUpkeepInterval *int64 `yaml:"minimum_upkeep_interval" json:"minimum_upkeep_interval"`
	EngineAddress         string `yaml:"engine_address" json:"engine_address"`
	RouterAddress         string `yaml:"router_address" json:"router_address"`
	KeeperInterval        string `yaml:"keeper_interval" json:"keeper_interval"`
}

// Default returns a configuration with default intervals and no addresses.
func Default() Config {
	return Config{
		MinimumUpkeepInterval: engine.DefaultMinimumUpkeepInterval,
		KeeperInterval:        DefaultKeeperInterval,
	}
}

// Load reads and validates the configuration at path. The format is
// chosen by file extension.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var fc fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		fc, err = decodeYAML(data)
	case ".cue":
		fc, err = decodeCUE(path, data)
	default:
		return Config{}, fmt.Errorf("unsupported config format %q (want .yaml, .yml or .cue)", ext)
	}
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}

	cfg, err := fc.resolve()
	if err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func decodeYAML(data []byte) (fileConfig, error) {
	var fc fileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		if errors.Is(err, io.EOF) {
			return fc, fmt.Errorf("empty config")
		}
		return fc, fmt.Errorf("parse yaml: %w", err)
	}
	return fc, nil
}

func decodeCUE(path string, data []byte) (fileConfig, error) {
	var fc fileConfig
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fc, fmt.Errorf("compile schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return fc, fmt.Errorf("parse cue: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fc, fmt.Errorf("validate cue: %w", err)
	}
	if err := unified.Decode(&fc); err != nil {
		return fc, fmt.Errorf("decode cue: %w", err)
	}
	return fc, nil
}

func (fc fileConfig) resolve() (Config, error) {
	cfg := Default()

	if fc.MinimumUpkeepInterval != nil {
		cfg.MinimumUpkeepInterval = *fc.MinimumUpkeepInterval
	}

	addr, err := parseAddress("engine_address", fc.EngineAddress)
	if err != nil {
		return Config{}, err
	}
	cfg.EngineAddress = addr

	if fc.RouterAddress != "" {
		addr, err := parseAddress("router_address", fc.RouterAddress)
		if err != nil {
			return Config{}, err
		}
		cfg.RouterAddress = addr
	}

	if fc.KeeperInterval != "" {
		d, err := time.ParseDuration(fc.KeeperInterval)
		if err != nil {
			return Config{}, fmt.Errorf("keeper_interval: %w", err)
		}
		cfg.KeeperInterval = d
	}
	return cfg, nil
}

func parseAddress(field, s string) (common.Address, error) {
	if s == "" {
		return common.Address{}, fmt.Errorf("%s is required", field)
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%s: invalid address %q", field, s)
	}
	return common.HexToAddress(s), nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.KeeperInterval <= 0 {
		return fmt.Errorf("keeper_interval must be positive, got %s", c.KeeperInterval)
	}
	return c.EngineConfig().Validate()
}

// EngineConfig returns the engine's share of the configuration.
func (c Config) EngineConfig() engine.Config {
	return engine.Config{
		MinimumUpkeepInterval: c.MinimumUpkeepInterval,
		Address:               c.EngineAddress,
	}
}
