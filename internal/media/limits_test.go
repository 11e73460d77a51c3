package media

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"
)

func TestCheckAudio(t *testing.T) {
	t.Parallel()

	const mib = 1024 * 1024
	tests := []struct {
		name     string
		size     int64
		duration time.Duration
		want     error
	}{
		{name: "4MiB 45s accepted", size: 4 * mib, duration: 45 * time.Second},
		{name: "6MiB rejected regardless of duration", size: 6 * mib, duration: 10 * time.Second, want: ErrAssetTooLarge},
		{name: "4MiB 65s rejected", size: 4 * mib, duration: 65 * time.Second, want: ErrAudioTooLong},
		{name: "exact limits accepted", size: MaxAudioBytes, duration: MaxAudioDuration},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CheckAudio(tt.size, tt.duration)
			if tt.want == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLimitReader(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		payload   []byte
		maxBytes  int64
		errTooBig bool
	}{
		{name: "within limit", payload: []byte("hello"), maxBytes: 8},
		{name: "over limit", payload: []byte("0123456789"), maxBytes: 5, errTooBig: true},
		{name: "exact limit", payload: []byte("12345"), maxBytes: 5},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := io.ReadAll(newLimitReader(bytes.NewReader(tt.payload), tt.maxBytes))
			if tt.errTooBig {
				if !errors.Is(err, ErrAssetTooLarge) {
					t.Fatalf("expected ErrAssetTooLarge, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !bytes.Equal(got, tt.payload) {
				t.Fatalf("unexpected payload: %q", got)
			}
		})
	}
}

func TestIsRejection(t *testing.T) {
	t.Parallel()

	if !IsRejection(ErrAudioTooLong) || !IsRejection(ErrUnsupportedType) {
		t.Fatal("validation errors should be rejections")
	}
	if IsRejection(ErrRetrieval) || IsRejection(errors.New("boom")) {
		t.Fatal("infra errors should not be rejections")
	}
}
