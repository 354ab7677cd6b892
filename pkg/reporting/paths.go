package reporting

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// strategyExtensions are stripped from a strategy path before naming its reports
var strategyExtensions = []string{".json", ".xml", ".lst"}

// maxReportIndex bounds the search for a free report name
const maxReportIndex = 10000

// ReportBase returns the strategy path without its known extension
func ReportBase(strategyPath string) string {
	ext := filepath.Ext(strategyPath)
	for _, known := range strategyExtensions {
		if strings.EqualFold(ext, known) {
			return strings.TrimSuffix(strategyPath, ext)
		}
	}
	return strategyPath
}

// NextReportPath returns <base>-Report-<N><ext> for the smallest N whose file
// does not exist yet
func NextReportPath(strategyPath, ext string) (string, error) {
	base := ReportBase(strategyPath)
	for n := 1; n <= maxReportIndex; n++ {
		path := fmt.Sprintf("%s-Report-%d%s", base, n, ext)
		_, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			return path, nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", fmt.Errorf("no free report name for %s", base)
}

// EnsureDirectoryExists creates the parent directory of path
func EnsureDirectoryExists(path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}
