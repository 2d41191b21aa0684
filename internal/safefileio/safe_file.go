package safefileio

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
)

const (
	// MaxFileSize is the size limit applied by ReadFile (16 MB). It covers
	// configuration files and API lists, not binaries.
	MaxFileSize = 16 * 1024 * 1024

	// MaxBinarySize is the size limit applied by OpenBinary (1 GB).
	MaxBinarySize = 1 << 30
)

// OpenBinary opens filePath read-only without following symlinks and checks
// that it is a regular file no larger than MaxBinarySize. The caller owns the
// returned file and must close it.
func OpenBinary(filePath string) (*os.File, int64, error) {
	file, info, err := openRegular(filePath, os.O_RDONLY, 0)
	if err != nil {
		return nil, 0, err
	}
	if info.Size() > MaxBinarySize {
		closeQuietly(file)
		return nil, 0, fmt.Errorf("%w: %d bytes (max %d)", ErrFileTooLarge, info.Size(), MaxBinarySize)
	}
	return file, info.Size(), nil
}

// ReadFile reads a small regular file without following symlinks.
func ReadFile(filePath string) ([]byte, error) {
	file, info, err := openRegular(filePath, os.O_RDONLY, 0)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(file)

	if info.Size() > MaxFileSize {
		return nil, ErrFileTooLarge
	}

	content, err := io.ReadAll(io.LimitReader(file, MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filePath, err)
	}
	if int64(len(content)) > MaxFileSize {
		return nil, ErrFileTooLarge
	}
	return content, nil
}

// WriteFileOverwrite writes content to filePath, creating or truncating it.
// Symlinks at the final component or in any parent directory are rejected.
func WriteFileOverwrite(filePath string, content []byte, perm os.FileMode) (err error) {
	file, _, err := openRegular(filePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close file: %w", closeErr)
		}
	}()

	if _, err = file.Write(content); err != nil {
		return fmt.Errorf("failed to write to %s: %w", filePath, err)
	}
	return nil
}

// OpenAppend opens filePath for appending, creating it with perm when it
// does not exist. Used for the optional log file.
func OpenAppend(filePath string, perm os.FileMode) (*os.File, error) {
	file, _, err := openRegular(filePath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, perm)
	if err != nil {
		return nil, err
	}
	return file, nil
}

// openRegular opens the file with O_NOFOLLOW, then verifies the parent
// directories and the file type using the open descriptor.
func openRegular(filePath string, flag int, perm os.FileMode) (*os.File, os.FileInfo, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidFilePath, err)
	}

	// #nosec G304 - absPath is cleaned above and O_NOFOLLOW rejects a symlinked final component
	file, err := os.OpenFile(absPath, flag|syscall.O_NOFOLLOW, perm)
	if err != nil {
		if isNoFollowError(err) {
			return nil, nil, fmt.Errorf("%w: %s", ErrIsSymlink, absPath)
		}
		return nil, nil, err
	}

	if err := verifyPathComponents(absPath); err != nil {
		closeQuietly(file)
		return nil, nil, err
	}

	info, err := file.Stat()
	if err != nil {
		closeQuietly(file)
		return nil, nil, fmt.Errorf("failed to get file info: %w", err)
	}
	if !info.Mode().IsRegular() {
		closeQuietly(file)
		return nil, nil, fmt.Errorf("%w: %s (%s)", ErrNotRegularFile, absPath, info.Mode())
	}
	return file, info, nil
}

// verifyPathComponents rejects paths whose parent directories contain a symlink.
func verifyPathComponents(absPath string) error {
	current := filepath.Dir(absPath)
	for {
		parent := filepath.Dir(current)
		if parent == current {
			return nil
		}

		fi, err := os.Lstat(current)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("failed to stat %s: %w", current, err)
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s", ErrIsSymlink, current)
		}

		current = parent
	}
}

// isNoFollowError reports whether err is what open(2) returns for a symlink
// opened with O_NOFOLLOW: ELOOP on Linux, EMLINK on FreeBSD.
func isNoFollowError(err error) bool {
	var e *os.PathError
	if !errors.As(err, &e) {
		return false
	}
	return errors.Is(e.Err, syscall.ELOOP) || errors.Is(e.Err, syscall.EMLINK)
}

func closeQuietly(file *os.File) {
	if err := file.Close(); err != nil {
		slog.Warn("error closing file", slog.String("path", file.Name()), slog.Any("error", err))
	}
}
