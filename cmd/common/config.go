package common

import (
	"errors"
	"io/fs"
	"os"

	"go.uber.org/zap"

	opterrors "github.com/kanastasov/Forex-Strategy-Builder-sub001/internal/errors"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/config"
	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/data"
)

// LoadConfig reads the configuration file. Only defaults and the environment
// apply when OPT_ENV_ONLY is set or the file does not exist; the second
// result reports that case.
func LoadConfig(path string) (config.Config, bool, error) {
	envOnly := EnvOnly()
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		envOnly = true
	}
	cfg, err := config.Load(path, envOnly)
	if err != nil {
		return config.Config{}, envOnly, opterrors.Wrap(err, opterrors.ErrorCategoryConfiguration, "config", "load").
			WithContext("path", path)
	}
	return cfg, envOnly, nil
}

// ValidateConfig reports every configuration problem as one CONFIG error
func ValidateConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return opterrors.NewConfigurationError("config", "validate", err.Error())
	}
	return nil
}

// NewDataManager builds the price loader for the configured CSV layout
func NewDataManager(cfg config.BacktestConfig, logger *zap.Logger) (*data.DataManager, error) {
	format, err := data.CSVFormatByName(cfg.CSVFormat)
	if err != nil {
		return nil, opterrors.NewConfigurationError("config", "csv_format", err.Error())
	}
	return data.NewDataManagerWithFormat(format, logger), nil
}
