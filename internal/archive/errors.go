package archive

import "errors"

// Sentinel errors returned by the archive package. Each one is fatal for the
// archive being processed and for nothing else.
var (
	// ErrNotZip indicates the input could not be opened as a ZIP archive.
	ErrNotZip = errors.New("archive: not a zip archive")

	// ErrDRMProtected indicates the EPUB carries DRM (Adobe ADEPT, Readium
	// LCP, Apple FairPlay) and its content documents cannot be edited.
	ErrDRMProtected = errors.New("archive: file is DRM protected")

	// ErrUnsafePath indicates an entry name escapes the archive root.
	ErrUnsafePath = errors.New("archive: unsafe entry path")

	// ErrEntryTooLarge indicates an entry exceeds the decompression limit.
	ErrEntryTooLarge = errors.New("archive: entry too large")
)
