package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap/zapcore"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/data"
)

// Validate checks the configuration and reports every violation at once
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	var level zapcore.Level
	if err := level.Set(strings.ToLower(c.Log.Level)); err != nil {
		add("log.level %q is not a valid level", c.Log.Level)
	}
	if c.Log.Encoding != "console" && c.Log.Encoding != "json" {
		add("log.encoding must be console or json, got %q", c.Log.Encoding)
	}
	if c.Server.Workers < 1 {
		add("server.workers must be positive, got %d", c.Server.Workers)
	}

	if c.Backtest.InitialBalance <= 0 {
		add("backtest.initial_balance must be positive, got %.2f", c.Backtest.InitialBalance)
	}
	if c.Backtest.EntryLots <= 0 {
		add("backtest.entry_lots must be positive, got %.2f", c.Backtest.EntryLots)
	}
	if _, err := data.CSVFormatByName(c.Backtest.CSVFormat); err != nil {
		add("backtest.csv_format: %v", err)
	}

	inst := c.Instrument
	if inst.Symbol == "" {
		add("instrument.symbol is required")
	}
	if inst.Digits < 0 || inst.Digits > 8 {
		add("instrument.digits must be between 0 and 8, got %d", inst.Digits)
	}
	if inst.Point <= 0 {
		add("instrument.point must be positive, got %g", inst.Point)
	}
	if inst.LotSize <= 0 {
		add("instrument.lot_size must be positive, got %g", inst.LotSize)
	}
	if inst.Spread < 0 {
		add("instrument.spread must not be negative, got %g", inst.Spread)
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
