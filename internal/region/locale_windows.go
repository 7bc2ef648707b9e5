//go:build windows

package region

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

const localeNameMaxLength = 85

var (
	kernel32                     = windows.NewLazySystemDLL("kernel32.dll")
	procGetUserDefaultLocaleName = kernel32.NewProc("GetUserDefaultLocaleName")
)

func systemLocale() (string, error) {
	// Honour an explicit override from MSYS/Cygwin style shells first
	if v := os.Getenv("LANG"); v != "" {
		return v, nil
	}

	if err := procGetUserDefaultLocaleName.Find(); err != nil {
		return "", fmt.Errorf("GetUserDefaultLocaleName unavailable: %w", err)
	}

	buf := make([]uint16, localeNameMaxLength)
	r, _, callErr := procGetUserDefaultLocaleName.Call(
		uintptr(unsafe.Pointer(&buf[0])),
		uintptr(len(buf)),
	)
	if r == 0 {
		return "", fmt.Errorf("GetUserDefaultLocaleName: %w", callErr)
	}
	return windows.UTF16ToString(buf), nil
}
