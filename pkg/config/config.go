// Package config loads the optimizer configuration from a YAML file and
// OPT_ prefixed environment variables
package config

import (
	"strings"

	"github.com/spf13/viper"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
	Optimizer  OptimizerConfig  `mapstructure:"optimizer"`
	Backtest   BacktestConfig   `mapstructure:"backtest"`
	Instrument types.Instrument `mapstructure:"instrument"`
	Report     ReportConfig     `mapstructure:"report"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type ServerConfig struct {
	HTTPAddr string `mapstructure:"http_addr"`
	// Workers bounds the number of runs executing at once
	Workers int `mapstructure:"workers"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Encoding    string `mapstructure:"encoding"`
	Development bool   `mapstructure:"development"`
	// Dir, when set, adds a daily log file next to stdout
	Dir string `mapstructure:"dir"`
}

type OptimizerConfig struct {
	// Seed 0 picks a time-based seed
	Seed                      int64 `mapstructure:"seed"`
	Improved                  bool  `mapstructure:"improved"`
	PreservePermanentSL       bool  `mapstructure:"preserve_permanent_sl"`
	PreservePermanentTP       bool  `mapstructure:"preserve_permanent_tp"`
	PreserveBreakEven         bool  `mapstructure:"preserve_break_even"`
	UseDefaultIndicatorValues bool  `mapstructure:"use_default_indicator_values"`
}

type BacktestConfig struct {
	DataFile string `mapstructure:"data_file"`
	// DataDir is the root that data files named in server requests must stay under
	DataDir string `mapstructure:"data_dir"`
	// CSVFormat selects the column layout of price files: default or metatrader
	CSVFormat      string  `mapstructure:"csv_format"`
	InitialBalance float64 `mapstructure:"initial_balance"`
	EntryLots      float64 `mapstructure:"entry_lots"`
	// Period keeps only the trailing part of the series ("30d", "720h"); empty keeps all
	Period string `mapstructure:"period"`
}

type ReportConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Excel   bool `mapstructure:"excel"`
}

// Load reads the configuration. With envOnly the file is not read and only
// defaults and environment variables apply.
func Load(path string, envOnly bool) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("OPT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	setDefaults(v)

	if !envOnly {
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	inst := types.DefaultInstrument()

	v.SetDefault("app.env", "dev")
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.workers", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", true)
	v.SetDefault("log.dir", "")

	v.SetDefault("optimizer.seed", 0)
	v.SetDefault("optimizer.improved", false)
	v.SetDefault("optimizer.preserve_permanent_sl", false)
	v.SetDefault("optimizer.preserve_permanent_tp", false)
	v.SetDefault("optimizer.preserve_break_even", false)
	v.SetDefault("optimizer.use_default_indicator_values", false)

	v.SetDefault("backtest.data_file", "")
	v.SetDefault("backtest.data_dir", "data")
	v.SetDefault("backtest.csv_format", "default")
	v.SetDefault("backtest.initial_balance", 10000.0)
	v.SetDefault("backtest.entry_lots", 1.0)
	v.SetDefault("backtest.period", "")

	v.SetDefault("instrument.symbol", inst.Symbol)
	v.SetDefault("instrument.digits", inst.Digits)
	v.SetDefault("instrument.point", inst.Point)
	v.SetDefault("instrument.lot_size", inst.LotSize)
	v.SetDefault("instrument.spread", inst.Spread)
	v.SetDefault("instrument.swap_long", inst.SwapLong)
	v.SetDefault("instrument.swap_short", inst.SwapShort)

	v.SetDefault("report.enabled", true)
	v.SetDefault("report.excel", false)
}
