package data

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kanastasov/Forex-Strategy-Builder-sub001/pkg/types"
)

const sampleCSV = `timestamp,open,high,low,close,volume
2024-01-01 00:00:00,1.10000,1.10100,1.09900,1.10050,100
2024-01-01 01:00:00,1.10050,1.10200,1.10000,1.10150,120
2024-01-01 02:00:00,bad,1.10200,1.10000,1.10150,120
2024-01-01 03:00:00,1.10150,1.10100,1.10000,1.10050,90
2024-01-02 00:00:00,1.10150,1.10300,1.10100,1.10250,80
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "EURUSD60.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0644))
	return path
}

func TestCSVProvider_LoadData_SkipsMalformedRows(t *testing.T) {
	bars, err := NewCSVProvider(nil).LoadData(writeSample(t))
	require.NoError(t, err)

	// the unparsable open and the high below the open are skipped
	require.Len(t, bars, 3)
	assert.Equal(t, 1.10050, bars[0].Close)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), bars[2].Timestamp)
}

func TestCSVProvider_LoadData_MissingFile(t *testing.T) {
	_, err := NewCSVProvider(nil).LoadData(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}

func TestCSVProvider_EmptyFile(t *testing.T) {
	_, err := NewCSVProvider(nil).read(strings.NewReader(""), "empty")
	assert.Error(t, err)
}

type countingProvider struct {
	DataProvider
	loads int
}

func (c *countingProvider) LoadData(source string) ([]types.OHLCV, error) {
	c.loads++
	return c.DataProvider.LoadData(source)
}

func TestCachedProvider_LoadsOnce(t *testing.T) {
	path := writeSample(t)
	inner := &countingProvider{DataProvider: NewCSVProvider(nil)}
	cached := NewCachedProvider(inner, nil)

	first, err := cached.LoadData(path)
	require.NoError(t, err)
	second, err := cached.LoadData(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.loads)
	assert.Equal(t, 1, cached.GetCacheSize())
}

func TestCachedProvider_RereadsRewrittenFile(t *testing.T) {
	path := writeSample(t)
	cached := NewCachedProvider(NewCSVProvider(nil), nil)

	bars, err := cached.LoadData(path)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	extra := sampleCSV + "2024-01-02 01:00:00,1.10250,1.10400,1.10200,1.10300,70\n"
	require.NoError(t, os.WriteFile(path, []byte(extra), 0644))
	later := time.Now().Add(time.Minute)
	require.NoError(t, os.Chtimes(path, later, later))

	bars, err = cached.LoadData(path)
	require.NoError(t, err)
	assert.Len(t, bars, 4)
	// the previous version is dropped, not kept next to the new one
	assert.Equal(t, 1, cached.GetCacheSize())
}

func TestCachedProvider_RemovedFileIsNotServed(t *testing.T) {
	path := writeSample(t)
	cached := NewCachedProvider(NewCSVProvider(nil), nil)

	_, err := cached.LoadData(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	_, err = cached.LoadData(path)
	assert.Error(t, err)
	assert.Zero(t, cached.GetCacheSize())
}

func TestMemoryCache_EvictsOldest(t *testing.T) {
	cache := NewMemoryCache(2)
	cache.Set("a", []types.OHLCV{{Close: 1}})
	cache.Set("b", []types.OHLCV{{Close: 2}})
	cache.Set("a", []types.OHLCV{{Close: 3}})
	cache.Set("c", []types.OHLCV{{Close: 4}})

	assert.Equal(t, 2, cache.Size())
	_, ok := cache.Get("a")
	assert.False(t, ok)
	got, ok := cache.Get("c")
	require.True(t, ok)
	assert.Equal(t, 4.0, got[0].Close)

	cache.Delete("b")
	assert.Equal(t, 1, cache.Size())
	cache.Set("d", nil)
	cache.Set("e", nil)
	_, ok = cache.Get("c")
	assert.False(t, ok)
}

func TestFilterByPeriod(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, 10)
	for i := range bars {
		bars[i].Timestamp = start.Add(time.Duration(i) * 24 * time.Hour)
	}

	filtered := NewDefaultDataFilter().FilterByPeriod(bars, 3*24*time.Hour)
	require.Len(t, filtered, 4)
	assert.Equal(t, bars[6].Timestamp, filtered[0].Timestamp)

	assert.Len(t, NewDefaultDataFilter().FilterByPeriod(bars, 0), 10)
}

func TestValidateTimeSequence_Duplicate(t *testing.T) {
	ts := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	err := NewDefaultDataFilter().ValidateTimeSequence([]types.OHLCV{{Timestamp: ts}, {Timestamp: ts}})
	assert.Error(t, err)
}

func TestParseTrailingPeriod(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
		ok   bool
	}{
		{"30d", 30 * 24 * time.Hour, true},
		{"7days", 7 * 24 * time.Hour, true},
		{"168h", 168 * time.Hour, true},
		{"", 0, false},
		{"0d", 0, false},
		{"soon", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseTrailingPeriod(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDataManager_Load(t *testing.T) {
	dm := NewDataManager(nil)

	bars, err := dm.Load(writeSample(t), "1d")
	require.NoError(t, err)
	// last bar 2024-01-02 00:00 minus one day keeps every surviving bar
	assert.Len(t, bars, 3)
}

func TestDataManager_FilterDataByDateRange(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	bars := make([]types.OHLCV, 10)
	for i := range bars {
		bars[i].Timestamp = start.Add(time.Duration(i) * 24 * time.Hour)
	}

	dm := NewDataManagerWithProvider(NewCSVProvider(nil))
	filtered := dm.FilterDataByDateRange(bars, bars[2].Timestamp, bars[4].Timestamp)
	require.Len(t, filtered, 3)
	assert.Equal(t, bars[2].Timestamp, filtered[0].Timestamp)
	assert.Empty(t, dm.FilterDataByDateRange(bars, bars[9].Timestamp.Add(time.Hour), bars[9].Timestamp.Add(2*time.Hour)))
}

func TestCSVFormatByName(t *testing.T) {
	format, err := CSVFormatByName("")
	require.NoError(t, err)
	assert.Equal(t, DefaultCSVFormat, format)

	format, err = CSVFormatByName("MetaTrader")
	require.NoError(t, err)
	assert.Equal(t, MetaTraderCSVFormat, format)

	_, err = CSVFormatByName("bybit")
	assert.Error(t, err)
}

func TestDataManager_MetaTraderFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "EURUSD_H1.csv")
	require.NoError(t, os.WriteFile(path, []byte(`date,open,high,low,close,volume
2024.01.01 00:00,1.10000,1.10100,1.09900,1.10050,100
2024.01.01 01:00,1.10050,1.10200,1.10000,1.10150,120
`), 0644))

	format, err := CSVFormatByName("metatrader")
	require.NoError(t, err)
	bars, err := NewDataManagerWithFormat(format, nil).Load(path, "")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), bars[1].Timestamp)

	// the default layout cannot read terminal exports
	_, err = NewDataManager(nil).Load(path, "")
	assert.Error(t, err)
}
