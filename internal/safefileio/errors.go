// Package safefileio provides file I/O helpers that refuse to follow symbolic
// links and only operate on regular files. The manifest producer uses it both
// to open the binary under analysis and to write manifest files.
package safefileio

import "errors"

var (
	// ErrInvalidFilePath indicates that the specified file path is invalid.
	ErrInvalidFilePath = errors.New("invalid file path")

	// ErrIsSymlink indicates that the path, or one of its parent directories, is a symbolic link.
	ErrIsSymlink = errors.New("path is a symbolic link")

	// ErrNotRegularFile indicates that the path refers to a device, FIFO, socket or directory.
	ErrNotRegularFile = errors.New("not a regular file")

	// ErrFileTooLarge indicates that the file exceeds the size limit of the operation.
	ErrFileTooLarge = errors.New("file too large")
)
