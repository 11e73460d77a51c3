package media

import "errors"

var (
	// ErrAssetNotFound indicates the remote media object does not exist.
	ErrAssetNotFound = errors.New("media asset not found")
	// ErrRetrieval indicates the remote media object could not be fetched.
	ErrRetrieval = errors.New("media retrieval failed")
	// ErrAssetTooLarge indicates the payload exceeds the category size limit.
	ErrAssetTooLarge = errors.New("media asset too large")
	// ErrAudioTooLong indicates the audio duration exceeds the limit.
	ErrAudioTooLong = errors.New("audio too long")
	// ErrDurationUnknown indicates the audio duration could not be determined.
	ErrDurationUnknown = errors.New("audio duration unknown")
	// ErrUnsupportedType indicates the content is not of the expected media type.
	ErrUnsupportedType = errors.New("unsupported media type")
	// ErrMissingReference indicates the attachment carries no resolvable reference.
	ErrMissingReference = errors.New("attachment reference is required")
	// ErrPathTraversal indicates a storage key attempted directory traversal.
	ErrPathTraversal = errors.New("path traversal is forbidden")
)

// IsRejection reports whether err is a validation failure the user can fix by
// sending different media, as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrAssetTooLarge) ||
		errors.Is(err, ErrAudioTooLong) ||
		errors.Is(err, ErrDurationUnknown) ||
		errors.Is(err, ErrUnsupportedType) ||
		errors.Is(err, ErrMissingReference)
}
