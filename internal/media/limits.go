package media

import (
	"fmt"
	"io"
	"time"
)

const (
	// MaxAudioBytes is the largest accepted audio sample (5 MiB).
	MaxAudioBytes int64 = 5 * 1024 * 1024
	// MaxPhotoBytes is the largest accepted photo.
	MaxPhotoBytes int64 = 10 * 1024 * 1024
	// MaxAudioDuration is the longest accepted audio sample.
	MaxAudioDuration = 60 * time.Second
	// DefaultDownloadTimeout bounds a single attachment retrieval.
	DefaultDownloadTimeout = 30 * time.Second
	// sniffLen is how many leading bytes are inspected for type detection.
	sniffLen = 3072
)

// MaxBytes returns the size limit for a category.
func MaxBytes(category Category) int64 {
	if category == CategoryAudio {
		return MaxAudioBytes
	}
	return MaxPhotoBytes
}

// CheckAudio validates size and duration against the audio limits.
func CheckAudio(size int64, duration time.Duration) error {
	if size > MaxAudioBytes {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrAssetTooLarge, size, MaxAudioBytes)
	}
	if duration > MaxAudioDuration {
		return fmt.Errorf("%w: %s exceeds %s", ErrAudioTooLong, duration, MaxAudioDuration)
	}
	return nil
}

// limitReader fails with ErrAssetTooLarge once more than max bytes are read.
type limitReader struct {
	r    io.Reader
	max  int64
	read int64
}

func newLimitReader(r io.Reader, max int64) *limitReader {
	return &limitReader{r: r, max: max}
}

func (l *limitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.read += int64(n)
	if l.read > l.max {
		return n, fmt.Errorf("%w: max %d bytes", ErrAssetTooLarge, l.max)
	}
	return n, err
}
