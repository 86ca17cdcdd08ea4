package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// fileExt is the suffix of logger exports.
const fileExt = ".tsv"

// dirPermissions is the mode of directories created for failed files.
const dirPermissions = 0750

// PathComponents is the context encoded in a file's location.
type PathComponents struct {
	Bucket             string
	Campaign           string
	DeviceMasterSerial string
	FileName           string

	// RelPath is the path relative to the base folder, slash separated.
	RelPath string
}

// FindFiles returns every .tsv file under root whose name does not start
// with parsedPrefix, sorted by path.
func FindFiles(root, parsedPrefix string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		name := d.Name()
		if strings.HasSuffix(name, fileExt) && !strings.HasPrefix(name, parsedPrefix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(files)
	return files, nil
}

// ExtractPathComponents reads bucket, campaign and master serial from the
// first three directories of path relative to base. Deeper layouts are
// accepted; the file name is always the last element.
func ExtractPathComponents(base, path string) (PathComponents, error) {
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return PathComponents{}, fmt.Errorf("%w: %s: %w", ErrInvalidPath, path, err)
	}
	rel = filepath.ToSlash(rel)
	if rel == ".." || strings.HasPrefix(rel, "../") {
		return PathComponents{}, fmt.Errorf("%w: %s is outside %s", ErrInvalidPath, path, base)
	}

	parts := strings.Split(rel, "/")
	if len(parts) < 4 {
		return PathComponents{}, fmt.Errorf("%w: %s", ErrInvalidPath, path)
	}

	return PathComponents{
		Bucket:             parts[0],
		Campaign:           parts[1],
		DeviceMasterSerial: parts[2],
		FileName:           parts[len(parts)-1],
		RelPath:            rel,
	}, nil
}

// RenameParsed prefixes the file name with prefix in place and returns the
// new path.
func RenameParsed(path, prefix string) (string, error) {
	target := filepath.Join(filepath.Dir(path), prefix+filepath.Base(path))
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("renaming parsed file: %w", err)
	}
	return target, nil
}

// MoveFailed moves path to the same relative location under failedDir and
// returns the new path. Files outside base keep only their name.
func MoveFailed(base, path, failedDir string) (string, error) {
	rel, err := filepath.Rel(base, path)
	if err != nil || rel == ".." || strings.HasPrefix(filepath.ToSlash(rel), "../") {
		rel = filepath.Base(path)
	}

	target := filepath.Join(failedDir, rel)
	if err := os.MkdirAll(filepath.Dir(target), dirPermissions); err != nil {
		return "", fmt.Errorf("creating failed directory: %w", err)
	}
	if err := os.Rename(path, target); err != nil {
		return "", fmt.Errorf("moving failed file: %w", err)
	}
	return target, nil
}

// HashFile returns the hex SHA-256 of the file content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from discovery
	if err != nil {
		return "", fmt.Errorf("opening file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hashing file: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
