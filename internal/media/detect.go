package media

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Detect sniffs the content type of head.
func Detect(head []byte) *mimetype.MIME {
	return mimetype.Detect(head)
}

// Accepts reports whether the detected type is allowed for the category.
// The detected type and its ancestors are checked so that e.g. audio/ogg and
// application/ogg both qualify as audio.
func Accepts(category Category, mt *mimetype.MIME) bool {
	for m := mt; m != nil; m = m.Parent() {
		value := strings.ToLower(m.String())
		switch category {
		case CategoryPhoto:
			if strings.HasPrefix(value, "image/") {
				return true
			}
		case CategoryAudio:
			if strings.HasPrefix(value, "audio/") || strings.HasPrefix(value, "application/ogg") {
				return true
			}
		}
	}
	return false
}

// Extension returns the file extension for a detected type, with a category fallback.
func Extension(category Category, mt *mimetype.MIME) string {
	if mt != nil {
		if ext := mt.Extension(); ext != "" {
			return ext
		}
	}
	if category == CategoryAudio {
		return ".ogg"
	}
	return ".jpg"
}

func mimeValue(mt *mimetype.MIME) string {
	if mt == nil {
		return ""
	}
	value := mt.String()
	if i := strings.Index(value, ";"); i >= 0 {
		value = value[:i]
	}
	return strings.TrimSpace(value)
}
