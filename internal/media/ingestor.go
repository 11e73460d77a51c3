package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/crossfellowship/registrar/internal/channel"
)

var unsafeIdentity = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// IngestorOptions tunes retrieval behavior.
type IngestorOptions struct {
	// Timeout bounds retrieval plus storage of one attachment.
	Timeout time.Duration
	// MaxConcurrent caps simultaneous downloads across all users.
	MaxConcurrent int64
	// Now overrides the clock for key generation.
	Now func() time.Time
}

// Ingestor retrieves attachments, validates them and persists them to storage.
type Ingestor struct {
	logger   *slog.Logger
	storage  StorageProvider
	resolver Resolver
	prober   DurationProber
	timeout  time.Duration
	sem      *semaphore.Weighted
	now      func() time.Time
}

// NewIngestor creates an ingestor. prober may be nil, in which case audio
// without a reported duration is rejected.
func NewIngestor(log *slog.Logger, storage StorageProvider, resolver Resolver, prober DurationProber, opts IngestorOptions) *Ingestor {
	if log == nil {
		log = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	limit := opts.MaxConcurrent
	if limit <= 0 {
		limit = 8
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Ingestor{
		logger:   log.With(slog.String("service", "media")),
		storage:  storage,
		resolver: resolver,
		prober:   prober,
		timeout:  timeout,
		sem:      semaphore.NewWeighted(limit),
		now:      now,
	}
}

// IngestPhoto stores an image attachment for identity.
func (s *Ingestor) IngestPhoto(ctx context.Context, identity string, attachment channel.Attachment) (Asset, error) {
	return s.ingest(ctx, CategoryPhoto, identity, attachment)
}

// IngestAudio stores an audio attachment for identity after enforcing size and duration limits.
func (s *Ingestor) IngestAudio(ctx context.Context, identity string, attachment channel.Attachment) (Asset, error) {
	if err := CheckAudio(attachment.Size, attachment.Duration); err != nil {
		return Asset{}, err
	}
	return s.ingest(ctx, CategoryAudio, identity, attachment)
}

// Discard removes a previously stored asset.
func (s *Ingestor) Discard(ctx context.Context, asset Asset) error {
	if asset.Key == "" {
		return nil
	}
	return s.storage.Delete(ctx, asset.Key)
}

func (s *Ingestor) ingest(ctx context.Context, category Category, identity string, attachment channel.Attachment) (Asset, error) {
	if s.storage == nil || s.resolver == nil {
		return Asset{}, errors.New("media ingestor not configured")
	}
	if !attachment.HasReference() {
		return Asset{}, ErrMissingReference
	}
	maxBytes := MaxBytes(category)
	if attachment.Size > maxBytes {
		return Asset{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrAssetTooLarge, attachment.Size, maxBytes)
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return Asset{}, err
	}
	defer s.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	payload, err := s.resolver.ResolveAttachment(ctx, attachment)
	if err != nil {
		if errors.Is(err, ErrAssetNotFound) {
			return Asset{}, err
		}
		return Asset{}, fmt.Errorf("%w: %w", ErrRetrieval, err)
	}
	if payload.Reader == nil {
		return Asset{}, fmt.Errorf("%w: empty payload", ErrRetrieval)
	}
	defer func() {
		_ = payload.Reader.Close()
	}()
	if payload.Size > maxBytes {
		return Asset{}, fmt.Errorf("%w: %d bytes exceeds %d", ErrAssetTooLarge, payload.Size, maxBytes)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(payload.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return Asset{}, fmt.Errorf("%w: read head: %w", ErrRetrieval, err)
	}
	head = head[:n]
	if n == 0 {
		return Asset{}, fmt.Errorf("%w: empty content", ErrUnsupportedType)
	}
	detected := Detect(head)
	if !Accepts(category, detected) {
		return Asset{}, fmt.Errorf("%w: %s for %s", ErrUnsupportedType, detected.String(), category)
	}

	key := s.storageKey(category, identity, Extension(category, detected))
	counter := &countingReader{r: newLimitReader(io.MultiReader(bytes.NewReader(head), payload.Reader), maxBytes)}
	if err := s.storage.Put(ctx, key, counter); err != nil {
		s.cleanup(key)
		return Asset{}, fmt.Errorf("store %s: %w", category, err)
	}

	asset := Asset{
		Category: category,
		Key:      key,
		Path:     s.storage.AccessPath(key),
		Mime:     mimeValue(detected),
		Size:     counter.n,
	}

	if category == CategoryAudio {
		duration, err := s.duration(ctx, key, attachment.Duration)
		if err != nil {
			s.cleanup(key)
			return Asset{}, err
		}
		if err := CheckAudio(asset.Size, duration); err != nil {
			s.cleanup(key)
			return Asset{}, err
		}
		asset.Duration = duration
	}

	s.logger.Info("media stored",
		slog.String("identity", identity),
		slog.String("category", string(category)),
		slog.String("key", key),
		slog.Int64("size", asset.Size),
	)
	return asset, nil
}

func (s *Ingestor) duration(ctx context.Context, key string, reported time.Duration) (time.Duration, error) {
	if reported > 0 {
		return reported, nil
	}
	if s.prober == nil {
		return 0, ErrDurationUnknown
	}
	rc, err := s.storage.Open(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("reopen audio: %w", err)
	}
	defer func() {
		_ = rc.Close()
	}()
	d, err := s.prober.Probe(ctx, rc)
	if err != nil {
		s.logger.Warn("probe audio duration failed", slog.String("key", key), slog.Any("error", err))
		return 0, fmt.Errorf("%w: %w", ErrDurationUnknown, err)
	}
	return d, nil
}

// cleanup runs detached so a cancelled request context still removes the file.
func (s *Ingestor) cleanup(key string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.storage.Delete(ctx, key); err != nil {
		s.logger.Warn("remove rejected media failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (s *Ingestor) storageKey(category Category, identity, ext string) string {
	id := unsafeIdentity.ReplaceAllString(identity, "")
	if id == "" {
		id = "anon"
	}
	suffix := uuid.NewString()[:8]
	return category.Folder() + "/" + id + "_" + strconv.FormatInt(s.now().UnixMilli(), 10) + "_" + suffix + ext
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
