package cli

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"math/big"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/blockberries/eeproxy/types"
)

// Scenario is a scripted sequence of invocations run by the manager
// against one engine.
type Scenario struct {
	Name        string            `yaml:"name"`
	Balances    map[string]string `yaml:"balances,omitempty"`
	Invocations []Invocation      `yaml:"invocations"`
}

// Invocation describes one InvokeRequest. Amounts are decimal strings
// and params are hex. An empty code gets a fresh UUID.
type Invocation struct {
	Code   string `yaml:"code,omitempty"`
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Value  string `yaml:"value,omitempty"`
	Limit  string `yaml:"limit"`
	Method string `yaml:"method"`
	Params string `yaml:"params,omitempty"`
	// Expect is the expected status name or number, e.g. "Success" or "7".
	Expect string `yaml:"expect,omitempty"`
}

// LoadScenario reads and validates a scenario file. Unknown fields are
// rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario decodes and validates scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	var sc Scenario
	if err := decoder.Decode(&sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

// Validate checks every invocation converts to a request.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return fmt.Errorf("scenario: name is required")
	}
	if len(sc.Invocations) == 0 {
		return fmt.Errorf("scenario %s: no invocations", sc.Name)
	}
	if _, err := sc.balances(); err != nil {
		return err
	}
	for i, inv := range sc.Invocations {
		if _, err := inv.Request(); err != nil {
			return fmt.Errorf("scenario %s: invocation %d: %w", sc.Name, i, err)
		}
		if _, err := inv.expected(); err != nil {
			return fmt.Errorf("scenario %s: invocation %d: %w", sc.Name, i, err)
		}
	}
	return nil
}

func (sc *Scenario) balances() (map[types.Address]*big.Int, error) {
	out := make(map[types.Address]*big.Int, len(sc.Balances))
	for text, amount := range sc.Balances {
		addr, err := types.ParseAddress(text)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: balance address: %w", sc.Name, err)
		}
		v, err := parseAmount(amount)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: balance of %s: %w", sc.Name, text, err)
		}
		out[addr] = v
	}
	return out, nil
}

// Request converts the invocation to an InvokeRequest. A missing code is
// filled with a UUIDv7 so codes sort by creation time.
func (inv Invocation) Request() (types.InvokeRequest, error) {
	from, err := types.ParseAddress(inv.From)
	if err != nil {
		return types.InvokeRequest{}, fmt.Errorf("from: %w", err)
	}
	to, err := types.ParseAddress(inv.To)
	if err != nil {
		return types.InvokeRequest{}, fmt.Errorf("to: %w", err)
	}
	value := new(big.Int)
	if inv.Value != "" {
		if value, err = parseAmount(inv.Value); err != nil {
			return types.InvokeRequest{}, fmt.Errorf("value: %w", err)
		}
	}
	limit, err := parseAmount(inv.Limit)
	if err != nil {
		return types.InvokeRequest{}, fmt.Errorf("limit: %w", err)
	}
	if inv.Method == "" {
		return types.InvokeRequest{}, fmt.Errorf("method is required")
	}
	params, err := hex.DecodeString(inv.Params)
	if err != nil {
		return types.InvokeRequest{}, fmt.Errorf("params: %w", err)
	}

	code := inv.Code
	if code == "" {
		code = uuid.Must(uuid.NewV7()).String()
	}
	return types.InvokeRequest{
		Code:   code,
		From:   from,
		To:     to,
		Value:  value,
		Limit:  limit,
		Method: inv.Method,
		Params: params,
	}, nil
}

// expected resolves Expect to a status; no expectation means Success.
func (inv Invocation) expected() (types.Status, error) {
	if inv.Expect == "" {
		return types.StatusSuccess, nil
	}
	return types.ParseStatus(inv.Expect)
}

func parseAmount(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	if v.Sign() < 0 {
		return nil, fmt.Errorf("negative amount %q", s)
	}
	return v, nil
}
