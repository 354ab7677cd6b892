package data

import (
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

// DataManager combines loading, caching and filtering of price series
type DataManager struct {
	provider DataProvider
	filter   DataFilter
}

// NewDataManager creates a data manager reading cached CSV files
func NewDataManager(logger *zap.Logger) *DataManager {
	return NewDataManagerWithFormat(DefaultCSVFormat, logger)
}

// NewDataManagerWithFormat creates a data manager reading cached CSV files laid out as format
func NewDataManagerWithFormat(format CSVColumnMapping, logger *zap.Logger) *DataManager {
	return &DataManager{
		provider: NewCachedProvider(NewCSVProviderWithFormat(format, logger), logger),
		filter:   NewDefaultDataFilter(),
	}
}

// NewDataManagerWithProvider creates a data manager with a custom provider
func NewDataManagerWithProvider(provider DataProvider) *DataManager {
	return &DataManager{
		provider: provider,
		filter:   NewDefaultDataFilter(),
	}
}

// Load reads a series, checks its integrity and keeps the trailing period.
// An empty period keeps everything.
func (dm *DataManager) Load(source, period string) ([]types.OHLCV, error) {
	bars, err := dm.provider.LoadData(source)
	if err != nil {
		return nil, err
	}
	if err := dm.provider.ValidateData(bars); err != nil {
		return nil, err
	}
	if err := dm.filter.ValidateTimeSequence(bars); err != nil {
		return nil, err
	}
	if d, ok := ParseTrailingPeriod(period); ok {
		bars = dm.filter.FilterByPeriod(bars, d)
	}
	return bars, nil
}

// FilterDataByPeriod filters data by time period
func (dm *DataManager) FilterDataByPeriod(data []types.OHLCV, period time.Duration) []types.OHLCV {
	return dm.filter.FilterByPeriod(data, period)
}

// FilterDataByDateRange keeps the bars within [start, end]
func (dm *DataManager) FilterDataByDateRange(data []types.OHLCV, start, end time.Time) []types.OHLCV {
	return dm.filter.FilterByDateRange(data, start, end)
}

// ParseTrailingPeriod parses period strings like "7d", "30d", "180d"
func ParseTrailingPeriod(s string) (time.Duration, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	if strings.HasSuffix(s, "days") {
		s = strings.TrimSuffix(s, "days") + "d"
	}
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n <= 0 {
			return 0, false
		}
		return time.Duration(n) * 24 * time.Hour, true
	}
	// allow raw durations too (e.g., 168h)
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, true
	}
	return 0, false
}
