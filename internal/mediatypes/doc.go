// Package mediatypes provides shared type definitions and utilities for the
// files that make up an annotated image dataset.
//
// This package exists as a dependency-free foundation that can be imported by other
// packages without creating import cycles. It contains primitive types, constants,
// and pure utility functions with no external dependencies beyond the standard library.
//
// # File Types
//
//	mediatypes.FileTypeImage      // Indexed collection images (jpg, png, bmp, webp)
//	mediatypes.FileTypeLabels     // Label sidecars (<base>.txt)
//	mediatypes.FileTypeDetections // Detection sidecars (<base>.det.txt)
//	mediatypes.FileTypeOther      // Everything else
//
// # Transport Encoding
//
// Image payloads are handed to consumers as data URLs:
//
//	url := mediatypes.DataURL(mediatypes.GetMimeType(path), raw)
//	// "data:image/png;base64,iVBORw0..."
package mediatypes
