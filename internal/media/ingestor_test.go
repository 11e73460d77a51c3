package media

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/crossfellowship/registrar/internal/channel"
)

type memStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStorage() *memStorage {
	return &memStorage{objects: map[string][]byte{}}
}

func (m *memStorage) Put(_ context.Context, key string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, ErrAssetNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStorage) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *memStorage) AccessPath(key string) string {
	return "/uploads/" + key
}

func (m *memStorage) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type fakeResolver struct {
	data  []byte
	err   error
	calls int
}

func (r *fakeResolver) ResolveAttachment(_ context.Context, _ channel.Attachment) (channel.AttachmentPayload, error) {
	r.calls++
	if r.err != nil {
		return channel.AttachmentPayload{}, r.err
	}
	return channel.AttachmentPayload{Reader: io.NopCloser(bytes.NewReader(r.data))}, nil
}

type fakeProber struct {
	d   time.Duration
	err error
}

func (p fakeProber) Probe(_ context.Context, r io.Reader) (time.Duration, error) {
	_, _ = io.Copy(io.Discard, r)
	return p.d, p.err
}

func pngBytes() []byte {
	return append([]byte("\x89PNG\r\n\x1a\n"), bytes.Repeat([]byte{0}, 64)...)
}

func oggOpusBytes(size int) []byte {
	buf := make([]byte, size)
	copy(buf, "OggS\x00")
	copy(buf[28:], "OpusHead")
	return buf
}

func fixedNow() time.Time {
	return time.UnixMilli(1700000000000)
}

func newTestIngestor(storage StorageProvider, resolver Resolver, prober DurationProber) *Ingestor {
	return NewIngestor(nil, storage, resolver, prober, IngestorOptions{Now: fixedNow, Timeout: time.Second})
}

func TestIngestPhotoStoresImage(t *testing.T) {
	t.Parallel()
	storage := newMemStorage()
	ing := newTestIngestor(storage, &fakeResolver{data: pngBytes()}, nil)

	asset, err := ing.IngestPhoto(context.Background(), "42", channel.Attachment{Ref: "file-1"})
	if err != nil {
		t.Fatalf("IngestPhoto failed: %v", err)
	}
	if !strings.HasPrefix(asset.Key, "photos/42_1700000000000_") || !strings.HasSuffix(asset.Key, ".png") {
		t.Fatalf("unexpected key: %s", asset.Key)
	}
	if asset.Path != "/uploads/"+asset.Key {
		t.Fatalf("unexpected path: %s", asset.Path)
	}
	if asset.Mime != "image/png" || asset.Size != int64(len(pngBytes())) {
		t.Fatalf("unexpected metadata: %+v", asset)
	}
	if storage.count() != 1 {
		t.Fatalf("expected one stored object, got %d", storage.count())
	}
}

func TestIngestPhotoRejectsNonImage(t *testing.T) {
	t.Parallel()
	storage := newMemStorage()
	ing := newTestIngestor(storage, &fakeResolver{data: []byte("just some text")}, nil)

	_, err := ing.IngestPhoto(context.Background(), "42", channel.Attachment{Ref: "file-1"})
	if !errors.Is(err, ErrUnsupportedType) {
		t.Fatalf("expected ErrUnsupportedType, got %v", err)
	}
	if storage.count() != 0 {
		t.Fatal("rejected photo must not be stored")
	}
}

func TestIngestAudio(t *testing.T) {
	t.Parallel()

	const mib = 1024 * 1024
	tests := []struct {
		name         string
		attachment   channel.Attachment
		data         []byte
		prober       DurationProber
		wantErr      error
		wantResolve  bool
		wantDuration time.Duration
	}{
		{
			name:         "reported 4MiB 45s accepted",
			attachment:   channel.Attachment{Ref: "a", Size: 4 * mib, Duration: 45 * time.Second},
			data:         oggOpusBytes(4096),
			wantResolve:  true,
			wantDuration: 45 * time.Second,
		},
		{
			name:       "reported 6MiB rejected before download",
			attachment: channel.Attachment{Ref: "a", Size: 6 * mib, Duration: 10 * time.Second},
			wantErr:    ErrAssetTooLarge,
		},
		{
			name:       "reported 65s rejected before download",
			attachment: channel.Attachment{Ref: "a", Size: 4 * mib, Duration: 65 * time.Second},
			wantErr:    ErrAudioTooLong,
		},
		{
			name:         "unknown duration probed",
			attachment:   channel.Attachment{Ref: "a"},
			data:         oggOpusBytes(4096),
			prober:       fakeProber{d: 30 * time.Second},
			wantResolve:  true,
			wantDuration: 30 * time.Second,
		},
		{
			name:        "probed duration too long",
			attachment:  channel.Attachment{Ref: "a"},
			data:        oggOpusBytes(4096),
			prober:      fakeProber{d: 61 * time.Second},
			wantResolve: true,
			wantErr:     ErrAudioTooLong,
		},
		{
			name:        "duration undeterminable",
			attachment:  channel.Attachment{Ref: "a"},
			data:        oggOpusBytes(4096),
			wantResolve: true,
			wantErr:     ErrDurationUnknown,
		},
		{
			name:        "actual bytes exceed limit",
			attachment:  channel.Attachment{Ref: "a", Duration: 10 * time.Second},
			data:        oggOpusBytes(int(MaxAudioBytes) + 10),
			wantResolve: true,
			wantErr:     ErrAssetTooLarge,
		},
		{
			name:        "not audio",
			attachment:  channel.Attachment{Ref: "a", Duration: 10 * time.Second},
			data:        pngBytes(),
			wantResolve: true,
			wantErr:     ErrUnsupportedType,
		},
		{
			name:       "missing reference",
			attachment: channel.Attachment{Duration: 10 * time.Second},
			wantErr:    ErrMissingReference,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			storage := newMemStorage()
			resolver := &fakeResolver{data: tt.data}
			ing := newTestIngestor(storage, resolver, tt.prober)

			asset, err := ing.IngestAudio(context.Background(), "42", tt.attachment)
			if (resolver.calls > 0) != tt.wantResolve {
				t.Fatalf("resolver calls = %d, want resolve=%v", resolver.calls, tt.wantResolve)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if storage.count() != 0 {
					t.Fatal("rejected audio must not remain in storage")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !strings.HasPrefix(asset.Key, "audios/42_") {
				t.Fatalf("unexpected key: %s", asset.Key)
			}
			if asset.Duration != tt.wantDuration {
				t.Fatalf("duration = %s, want %s", asset.Duration, tt.wantDuration)
			}
			if storage.count() != 1 {
				t.Fatalf("expected one stored object, got %d", storage.count())
			}
		})
	}
}

func TestIngestRetrievalFailure(t *testing.T) {
	t.Parallel()
	ing := newTestIngestor(newMemStorage(), &fakeResolver{err: errors.New("network down")}, nil)

	_, err := ing.IngestPhoto(context.Background(), "42", channel.Attachment{Ref: "x"})
	if !errors.Is(err, ErrRetrieval) {
		t.Fatalf("expected ErrRetrieval, got %v", err)
	}
	if IsRejection(err) {
		t.Fatal("retrieval failure is not a user rejection")
	}
}

func TestStorageKeySanitizesIdentity(t *testing.T) {
	t.Parallel()
	ing := newTestIngestor(newMemStorage(), &fakeResolver{}, nil)

	key := ing.storageKey(CategoryAudio, "../42", ".ogg")
	if !strings.HasPrefix(key, "audios/42_1700000000000_") || strings.Contains(key, "..") {
		t.Fatalf("unexpected key: %s", key)
	}
}
