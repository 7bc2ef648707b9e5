package helpers

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// FileType represents the detected type of a package archive
type FileType string

const (
	FileTypeZip     FileType = "zip"
	FileTypeTarGz   FileType = "tar.gz"
	FileTypeTarXz   FileType = "tar.xz"
	FileTypeTar     FileType = "tar"
	FileTypeUnknown FileType = "unknown"
)

// archiveSuffixes maps file name suffixes to archive types, longest first
var archiveSuffixes = []struct {
	suffix string
	kind   FileType
}{
	{".tar.gz", FileTypeTarGz},
	{".tar.xz", FileTypeTarXz},
	{".tgz", FileTypeTarGz},
	{".txz", FileTypeTarXz},
	{".tar", FileTypeTar},
	{".zip", FileTypeZip},
}

// DetectFileType identifies the archive type based on extension, then
// magic numbers
func DetectFileType(filePath string) (FileType, error) {
	if kind := GetArchiveType(filePath); kind != "" {
		return kind, nil
	}

	f, err := os.Open(filePath)
	if err != nil {
		return FileTypeUnknown, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	header := make([]byte, 512)
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return FileTypeUnknown, fmt.Errorf("failed to read file header: %w", err)
	}
	header = header[:n]

	switch {
	// ZIP magic: "PK\x03\x04"
	case len(header) >= 4 && bytes.Equal(header[:4], []byte{'P', 'K', 0x03, 0x04}):
		return FileTypeZip, nil
	// Gzip magic: 0x1F 0x8B
	case len(header) >= 2 && bytes.Equal(header[:2], []byte{0x1F, 0x8B}):
		return FileTypeTarGz, nil
	// XZ magic: 0xFD '7' 'z' 'X' 'Z' 0x00
	case len(header) >= 6 && bytes.Equal(header[:6], []byte{0xFD, '7', 'z', 'X', 'Z', 0x00}):
		return FileTypeTarXz, nil
	// Tar magic: "ustar" at offset 257
	case len(header) >= 262 && bytes.Equal(header[257:262], []byte("ustar")):
		return FileTypeTar, nil
	}

	return FileTypeUnknown, nil
}

// GetArchiveType returns the archive type based on file extension, or ""
func GetArchiveType(filePath string) FileType {
	lower := strings.ToLower(filepath.Base(filePath))
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return s.kind
		}
	}
	return ""
}

// TrimArchiveExt strips a known archive extension from name
func TrimArchiveExt(name string) string {
	lower := strings.ToLower(name)
	for _, s := range archiveSuffixes {
		if strings.HasSuffix(lower, s.suffix) {
			return name[:len(name)-len(s.suffix)]
		}
	}
	return name
}

// IsExecutable checks if a file has execute permissions
func IsExecutable(filePath string) (bool, error) {
	info, err := os.Stat(filePath)
	if err != nil {
		return false, err
	}

	return info.Mode()&0111 != 0, nil
}
