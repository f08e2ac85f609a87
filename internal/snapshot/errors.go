package snapshot

import "errors"

// Sentinel errors returned by the Service. Validation errors are safe to show
// to callers; everything else is reported as a generic render failure.
var (
	ErrEmptyContent          = errors.New("content cannot be empty")
	ErrInvalidURL            = errors.New("invalid url")
	ErrInvalidPDFOption      = errors.New("invalid pdf option")
	ErrInvalidSnapshotOption = errors.New("invalid snapshot option")
	ErrNoPages               = errors.New("no pages to render")
	ErrTooManyPages          = errors.New("too many pages")
	ErrDiscoveryDisabled     = errors.New("link discovery is not enabled")
	ErrRenderFailed          = errors.New("failed to generate PDF")
)

// IsValidation reports whether err was caused by bad caller input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyContent) ||
		errors.Is(err, ErrInvalidURL) ||
		errors.Is(err, ErrInvalidPDFOption) ||
		errors.Is(err, ErrInvalidSnapshotOption) ||
		errors.Is(err, ErrNoPages) ||
		errors.Is(err, ErrTooManyPages) ||
		errors.Is(err, ErrDiscoveryDisabled)
}
