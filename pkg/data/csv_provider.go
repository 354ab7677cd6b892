package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

// CSVProvider implements DataProvider for CSV files
type CSVProvider struct {
	format CSVColumnMapping
	logger *zap.Logger
}

// NewCSVProvider creates a new CSV data provider with default format
func NewCSVProvider(logger *zap.Logger) *CSVProvider {
	return NewCSVProviderWithFormat(DefaultCSVFormat, logger)
}

// NewCSVProviderWithFormat creates a new CSV data provider with custom format
func NewCSVProviderWithFormat(format CSVColumnMapping, logger *zap.Logger) *CSVProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CSVProvider{
		format: format,
		logger: logger,
	}
}

// GetName returns the name of the data provider
func (p *CSVProvider) GetName() string {
	return "CSV Provider"
}

// LoadData loads historical data from a CSV file. Malformed rows are skipped.
func (p *CSVProvider) LoadData(source string) ([]types.OHLCV, error) {
	file, err := os.Open(source)
	if err != nil {
		return nil, fmt.Errorf("could not open price data: %w", err)
	}
	defer file.Close()
	return p.read(file, source)
}

func (p *CSVProvider) read(r io.Reader, source string) ([]types.OHLCV, error) {
	format := p.format
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	// Skip header
	if _, err := reader.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%s: empty file", source)
		}
		return nil, err
	}

	var data []types.OHLCV
	lineNum := 1
	for {
		record, err := reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("error reading CSV at line %d: %w", lineNum, err)
		}
		lineNum++

		if len(record) < format.MinColumns {
			p.logger.Warn("insufficient columns, skipping row",
				zap.Int("line", lineNum), zap.Int("expected", format.MinColumns), zap.Int("got", len(record)))
			continue
		}

		timestamp, err := time.Parse(format.DateFormat, record[format.TimestampCol])
		if err != nil {
			p.logger.Warn("invalid timestamp, skipping row", zap.Int("line", lineNum), zap.Error(err))
			continue
		}

		values, err := parseFloats(record, format.OpenCol, format.HighCol, format.LowCol, format.CloseCol, format.VolumeCol)
		if err != nil {
			p.logger.Warn("invalid price, skipping row", zap.Int("line", lineNum), zap.Error(err))
			continue
		}
		candle := types.OHLCV{
			Timestamp: timestamp,
			Open:      values[0],
			High:      values[1],
			Low:       values[2],
			Close:     values[3],
			Volume:    values[4],
		}
		if err := validateCandle(candle); err != nil {
			p.logger.Warn("inconsistent candle, skipping row", zap.Int("line", lineNum), zap.Error(err))
			continue
		}
		data = append(data, candle)
	}

	p.logger.Debug("price data loaded", zap.String("source", source), zap.Int("bars", len(data)))
	return data, nil
}

func parseFloats(record []string, cols ...int) ([]float64, error) {
	out := make([]float64, len(cols))
	for i, col := range cols {
		v, err := strconv.ParseFloat(record[col], 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func validateCandle(c types.OHLCV) error {
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 {
		return fmt.Errorf("prices must be positive")
	}
	if c.High < c.Low {
		return fmt.Errorf("high (%.5f) cannot be less than low (%.5f)", c.High, c.Low)
	}
	if c.High < c.Open || c.High < c.Close {
		return fmt.Errorf("high (%.5f) must be >= open (%.5f) and close (%.5f)", c.High, c.Open, c.Close)
	}
	if c.Low > c.Open || c.Low > c.Close {
		return fmt.Errorf("low (%.5f) must be <= open (%.5f) and close (%.5f)", c.Low, c.Open, c.Close)
	}
	return nil
}

// ValidateData validates the integrity of loaded data
func (p *CSVProvider) ValidateData(data []types.OHLCV) error {
	if len(data) == 0 {
		return fmt.Errorf("no data provided")
	}

	for i, candle := range data {
		if err := validateCandle(candle); err != nil {
			return fmt.Errorf("invalid price data at index %d: %w", i, err)
		}
		if i > 0 && candle.Timestamp.Before(data[i-1].Timestamp) {
			return fmt.Errorf("invalid timestamp sequence at index %d: timestamps must be in chronological order", i)
		}
	}

	return nil
}
