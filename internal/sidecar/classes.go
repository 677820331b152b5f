package sidecar

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"annotator/internal/filesystem"
)

// ClassesFileName is the class-name list shipped with YOLO datasets.
const ClassesFileName = "classes.txt"

// classesSearchDepth bounds the walk below the dataset root.
const classesSearchDepth = 3

var errFound = errors.New("found")

// FindClassesFile locates classes.txt for an image: first beside the image,
// then anywhere within a few levels of the dataset root (the directory above
// the last "images" segment). Returns "" when none exists.
func FindClassesFile(mediaPath string) string {
	if sibling := filepath.Join(filepath.Dir(mediaPath), ClassesFileName); filesystem.Exists(sibling) {
		return sibling
	}

	root, ok := DatasetRoot(mediaPath)
	if !ok {
		return ""
	}

	var found string
	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			if depth(root, path) > classesSearchDepth {
				return fs.SkipDir
			}
			return nil
		}
		if d.Name() == ClassesFileName {
			found = path
			return errFound
		}
		return nil
	})
	return found
}

func depth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// ReadClassNames reads one class name per line, skipping blank lines.
// A missing file yields an empty list.
func ReadClassNames(path string, config filesystem.RetryConfig) ([]string, error) {
	if path == "" {
		return []string{}, nil
	}
	data, err := filesystem.ReadFileWithRetry(path, config)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("read class names %s: %w", path, err)
	}

	names := []string{}
	for _, line := range strings.Split(string(data), "\n") {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}
