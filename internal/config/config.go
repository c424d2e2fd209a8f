// Package config loads the eetest TOML configuration.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/blockberries/eeproxy/types"
)

// Config is the merged result of defaults and an optional TOML file.
type Config struct {
	Socket     string
	DB         string
	Handler    string
	EngineType string
	LogLevel   string
	NoColor    bool
	Timeout    time.Duration
	Info       Info
}

// Info seeds the transaction context returned by GetInfo. T.hash is
// always the invocation code and is not configurable.
type Info struct {
	BlockHeight    int64
	BlockTimestamp int64
	TxIndex        int64
	TxTimestamp    int64
	TxNonce        int64
	Owner          types.Address
	Revision       int64
}

type fileConfig struct {
	Socket     string   `toml:"socket"`
	DB         string   `toml:"db"`
	Handler    string   `toml:"handler"`
	EngineType string   `toml:"engine_type"`
	LogLevel   string   `toml:"log_level"`
	NoColor    bool     `toml:"log_no_color"`
	Timeout    string   `toml:"timeout"`
	Info       fileInfo `toml:"info"`
}

type fileInfo struct {
	BlockHeight    int64  `toml:"block_height"`
	BlockTimestamp int64  `toml:"block_timestamp"`
	TxIndex        int64  `toml:"tx_index"`
	TxTimestamp    int64  `toml:"tx_timestamp"`
	TxNonce        int64  `toml:"tx_nonce"`
	Owner          string `toml:"owner"`
	Revision       int64  `toml:"revision"`
}

// Handlers lists the built-in engine handlers selectable by name.
var Handlers = []string{"sample", "counter"}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Socket:     "/tmp/ee.socket",
		Handler:    "sample",
		EngineType: "go",
		LogLevel:   "info",
		Timeout:    30 * time.Second,
		Info: Info{
			BlockHeight: 1,
			Revision:    1,
		},
	}
}

// Load overlays the keys present in the TOML file at path onto Default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("socket") {
		cfg.Socket = strings.TrimSpace(raw.Socket)
	}
	if meta.IsDefined("db") {
		cfg.DB = strings.TrimSpace(raw.DB)
	}
	if meta.IsDefined("handler") {
		cfg.Handler = strings.TrimSpace(raw.Handler)
	}
	if meta.IsDefined("engine_type") {
		cfg.EngineType = strings.TrimSpace(raw.EngineType)
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}
	if meta.IsDefined("log_no_color") {
		cfg.NoColor = raw.NoColor
	}
	if meta.IsDefined("timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Timeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse timeout: %w", err)
		}
		cfg.Timeout = d
	}

	if meta.IsDefined("info", "block_height") {
		cfg.Info.BlockHeight = raw.Info.BlockHeight
	}
	if meta.IsDefined("info", "block_timestamp") {
		cfg.Info.BlockTimestamp = raw.Info.BlockTimestamp
	}
	if meta.IsDefined("info", "tx_index") {
		cfg.Info.TxIndex = raw.Info.TxIndex
	}
	if meta.IsDefined("info", "tx_timestamp") {
		cfg.Info.TxTimestamp = raw.Info.TxTimestamp
	}
	if meta.IsDefined("info", "tx_nonce") {
		cfg.Info.TxNonce = raw.Info.TxNonce
	}
	if meta.IsDefined("info", "owner") {
		owner, err := types.ParseAddress(strings.TrimSpace(raw.Info.Owner))
		if err != nil {
			return Config{}, fmt.Errorf("parse info.owner: %w", err)
		}
		cfg.Info.Owner = owner
	}
	if meta.IsDefined("info", "revision") {
		cfg.Info.Revision = raw.Info.Revision
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations no command could run with.
func (c Config) Validate() error {
	if c.Socket == "" {
		return fmt.Errorf("config: socket must not be empty")
	}
	if !isHandler(c.Handler) {
		return fmt.Errorf("config: unknown handler %q (valid: %s)", c.Handler, strings.Join(Handlers, ", "))
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("config: timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

func isHandler(name string) bool {
	for _, h := range Handlers {
		if h == name {
			return true
		}
	}
	return false
}

// InfoMap returns the GetInfo dictionary template.
func (i Info) InfoMap() map[string]any {
	return map[string]any{
		types.InfoBlockHeight:    i.BlockHeight,
		types.InfoBlockTimestamp: i.BlockTimestamp,
		types.InfoTxIndex:        i.TxIndex,
		types.InfoTxTimestamp:    i.TxTimestamp,
		types.InfoTxNonce:        i.TxNonce,
		types.InfoContractOwner:  i.Owner,
		types.InfoRevision:       i.Revision,
	}
}
