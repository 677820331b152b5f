package sidecar

import (
	"path/filepath"
	"strings"

	"annotator/internal/filesystem"
	"annotator/internal/mediatypes"
)

const (
	imagesSegment     = "images"
	labelsSegment     = "labels"
	detectionsSegment = "detections"
)

// LabelsPath returns the label sidecar for an image: a sibling <base>.txt if
// one exists, otherwise <base>.txt under the directory obtained by replacing
// the last path segment equal to "images" with "labels". Without such a
// segment the sibling path is returned.
func LabelsPath(mediaPath string) string {
	return resolve(mediaPath, mediatypes.LabelsSuffix, labelsSegment)
}

// DetectionsPath is LabelsPath for detections: sibling <base>.det.txt, then
// the "images" -> "detections" substitution.
func DetectionsPath(mediaPath string) string {
	return resolve(mediaPath, mediatypes.DetectionsSuffix, detectionsSegment)
}

func resolve(mediaPath, suffix, segment string) string {
	dir := filepath.Dir(mediaPath)
	name := mediatypes.BaseName(mediaPath) + suffix

	sibling := filepath.Join(dir, name)
	if filesystem.Exists(sibling) {
		return sibling
	}

	if swapped, ok := replaceSegment(dir, imagesSegment, segment); ok {
		return filepath.Join(swapped, name)
	}
	return sibling
}

// replaceSegment replaces the last path segment exactly equal to from.
// Substrings never match: "myimages" and "images2" are left alone.
func replaceSegment(dir, from, to string) (string, bool) {
	sep := string(filepath.Separator)
	parts := strings.Split(dir, sep)
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == from {
			parts[i] = to
			return strings.Join(parts, sep), true
		}
	}
	return dir, false
}

// DatasetRoot returns the directory above the last "images" segment of
// mediaPath's directory.
func DatasetRoot(mediaPath string) (string, bool) {
	sep := string(filepath.Separator)
	parts := strings.Split(filepath.Dir(mediaPath), sep)
	for i := len(parts) - 1; i >= 0; i-- {
		if parts[i] == imagesSegment {
			root := strings.Join(parts[:i], sep)
			if root == "" {
				root = sep
			}
			return root, true
		}
	}
	return "", false
}
