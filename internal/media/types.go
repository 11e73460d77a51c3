package media

import (
	"context"
	"io"
	"time"

	"github.com/crossfellowship/registrar/internal/channel"
)

// Category selects the destination folder and validation rules.
type Category string

const (
	CategoryPhoto Category = "photo"
	CategoryAudio Category = "audio"
)

// Folder returns the storage folder name for the category.
func (c Category) Folder() string {
	switch c {
	case CategoryAudio:
		return "audios"
	default:
		return "photos"
	}
}

// Asset is a persisted, validated attachment.
type Asset struct {
	Category Category      `json:"category"`
	Key      string        `json:"key"`
	Path     string        `json:"path"`
	Mime     string        `json:"mime"`
	Size     int64         `json:"size"`
	Duration time.Duration `json:"duration,omitempty"`
}

// StorageProvider abstracts durable object storage.
type StorageProvider interface {
	// Put writes data under key, creating parent directories as needed.
	Put(ctx context.Context, key string, reader io.Reader) error
	// Open returns a reader for key.
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete removes the object at key. Missing objects are not an error.
	Delete(ctx context.Context, key string) error
	// AccessPath returns the stable reference recorded on applications.
	AccessPath(key string) string
}

// Resolver turns a transport attachment reference into a byte stream.
type Resolver interface {
	ResolveAttachment(ctx context.Context, attachment channel.Attachment) (channel.AttachmentPayload, error)
}

// DurationProber measures the encoded duration of an audio stream.
type DurationProber interface {
	Probe(ctx context.Context, reader io.Reader) (time.Duration, error)
}
