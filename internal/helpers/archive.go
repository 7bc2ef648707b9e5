package helpers

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/quantmind-br/depctl/internal/security"
	"github.com/ulikunitz/xz"
)

// Extraction limits guarding against archive bombs
const (
	MaxExtractedSize    int64 = 10 << 30 // 10 GiB
	MaxFileCount              = 200000
	MaxCompressionRatio int64 = 200
)

type extractionLimiter struct {
	archiveSize int64
	total       int64
	files       int
}

func newExtractionLimiter(archiveSize int64) *extractionLimiter {
	return &extractionLimiter{archiveSize: archiveSize}
}

// checkLimits accounts for one more entry of the given size
func (l *extractionLimiter) checkLimits(size int64) error {
	l.files++
	l.total += size

	if l.total > MaxExtractedSize {
		return fmt.Errorf("extraction size limit exceeded: %d bytes", l.total)
	}
	if l.files > MaxFileCount {
		return fmt.Errorf("file count limit exceeded: %d files", l.files)
	}
	if l.archiveSize > 0 && l.total/l.archiveSize > MaxCompressionRatio {
		return fmt.Errorf("compression ratio exceeds %d:1", MaxCompressionRatio)
	}
	return nil
}

// ExtractArchive extracts archivePath into destDir, picking the format from
// the file name and magic bytes
func ExtractArchive(archivePath, destDir string) error {
	fileType, err := DetectFileType(archivePath)
	if err != nil {
		return err
	}

	switch fileType {
	case FileTypeZip:
		return ExtractZip(archivePath, destDir)
	case FileTypeTarGz:
		return ExtractTarGz(archivePath, destDir)
	case FileTypeTarXz:
		return ExtractTarXz(archivePath, destDir)
	case FileTypeTar:
		return ExtractTar(archivePath, destDir)
	default:
		return fmt.Errorf("unsupported archive format: %s", filepath.Base(archivePath))
	}
}

// ExtractTarGz extracts a .tar.gz archive with security checks
func ExtractTarGz(archivePath, destDir string) error {
	file, size, err := openArchive(archivePath)
	if err != nil {
		return err
	}
	defer file.Close()

	gzr, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	return extractTar(gzr, destDir, newExtractionLimiter(size))
}

// ExtractTarXz extracts a .tar.xz archive with security checks
func ExtractTarXz(archivePath, destDir string) error {
	file, size, err := openArchive(archivePath)
	if err != nil {
		return err
	}
	defer file.Close()

	xzr, err := xz.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create xz reader: %w", err)
	}

	return extractTar(xzr, destDir, newExtractionLimiter(size))
}

// ExtractTar extracts a .tar archive with security checks
func ExtractTar(archivePath, destDir string) error {
	file, size, err := openArchive(archivePath)
	if err != nil {
		return err
	}
	defer file.Close()

	return extractTar(file, destDir, newExtractionLimiter(size))
}

func openArchive(archivePath string) (*os.File, int64, error) {
	file, err := os.Open(archivePath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open archive: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, 0, fmt.Errorf("failed to stat archive: %w", err)
	}
	return file, info.Size(), nil
}

func extractTar(r io.Reader, destDir string, limiter *extractionLimiter) error {
	tr := tar.NewReader(r)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("tar read error: %w", err)
		}

		// Security: Validate path to prevent directory traversal
		if err := security.ValidateExtractPath(destDir, header.Name); err != nil {
			return fmt.Errorf("invalid path in archive: %w", err)
		}
		if err := limiter.checkLimits(header.Size); err != nil {
			return err
		}

		target := filepath.Join(destDir, header.Name)

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, os.FileMode(header.Mode)|0700); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}

		case tar.TypeReg:
			if err := extractFile(tr, target, os.FileMode(header.Mode)); err != nil {
				return fmt.Errorf("failed to extract file %s: %w", header.Name, err)
			}

		case tar.TypeSymlink:
			// Security: Validate symlink target
			if err := security.ValidateSymlink(destDir, target, header.Linkname); err != nil {
				return fmt.Errorf("invalid symlink: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("failed to create parent directory: %w", err)
			}
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("failed to create symlink: %w", err)
			}

		case tar.TypeLink:
			if err := security.ValidateExtractPath(destDir, header.Linkname); err != nil {
				return fmt.Errorf("invalid hard link target: %w", err)
			}
			if err := os.Link(filepath.Join(destDir, header.Linkname), target); err != nil {
				return fmt.Errorf("failed to create hard link: %w", err)
			}

		default:
			// Skip unsupported types (TypeBlock, TypeChar, TypeFifo, etc.)
			continue
		}
	}

	return nil
}

func extractFile(r io.Reader, target string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode.Perm()|0600)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}

// ExtractZip extracts a .zip archive with security checks
func ExtractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	var archiveSize int64
	if info, err := os.Stat(archivePath); err == nil {
		archiveSize = info.Size()
	}
	limiter := newExtractionLimiter(archiveSize)

	for _, f := range r.File {
		// Security: Validate path
		if err := security.ValidateExtractPath(destDir, f.Name); err != nil {
			return fmt.Errorf("invalid path in zip: %w", err)
		}
		if err := limiter.checkLimits(int64(f.UncompressedSize64)); err != nil {
			return err
		}

		target := filepath.Join(destDir, f.Name)

		switch {
		case f.FileInfo().IsDir():
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create directory: %w", err)
			}
		case f.Mode()&os.ModeSymlink != 0:
			if err := extractZipSymlink(f, destDir, target); err != nil {
				return fmt.Errorf("failed to extract %s: %w", f.Name, err)
			}
		default:
			if err := extractZipFile(f, target); err != nil {
				return fmt.Errorf("failed to extract %s: %w", f.Name, err)
			}
		}
	}

	return nil
}

func extractZipFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open zip file entry: %w", err)
	}
	defer rc.Close()

	return extractFile(rc, target, f.Mode())
}

func extractZipSymlink(f *zip.File, destDir, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("failed to open zip file entry: %w", err)
	}
	defer rc.Close()

	link, err := io.ReadAll(io.LimitReader(rc, 4096))
	if err != nil {
		return fmt.Errorf("failed to read symlink target: %w", err)
	}
	if err := security.ValidateSymlink(destDir, target, string(link)); err != nil {
		return fmt.Errorf("invalid symlink: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}
	return os.Symlink(string(link), target)
}
