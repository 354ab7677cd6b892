package common

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads variables from a dotenv file. A missing file is not an
// error; the process environment is used as is.
func LoadEnvFile(path string) (bool, error) {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err := godotenv.Load(path); err != nil {
		return false, err
	}
	return true, nil
}

// EnvOnly reports whether OPT_ENV_ONLY asks to skip the config file
func EnvOnly() bool {
	raw := os.Getenv("OPT_ENV_ONLY")
	return strings.EqualFold(raw, "true") || raw == "1"
}
