//go:build !windows

package region

import (
	"errors"
	"os"
)

// localeEnv is the POSIX precedence order for the message locale
var localeEnv = []string{"LC_ALL", "LC_MESSAGES", "LANG"}

func systemLocale() (string, error) {
	for _, key := range localeEnv {
		if v := os.Getenv(key); v != "" {
			return v, nil
		}
	}
	return "", errors.New("no locale environment variable set")
}
