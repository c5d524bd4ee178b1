package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"

	"github.com/InfyniteHeap/gridcore/internal/checksum"
)

// ErrWrite marks failures on the storage side of a Put, as opposed to
// failures reading the source.
var ErrWrite = errors.New("store: write failed")

// Store is the game root seen as a bucket of slash-separated keys.
type Store struct {
	bucket  *blob.Bucket
	bufSize int
}

// Option configures a Store.
type Option func(*Store)

// WithBufferSize sets the read buffer used for hashing and copying.
func WithBufferSize(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.bufSize = n
		}
	}
}

// New wraps an open bucket. The Store takes ownership of the bucket.
func New(bucket *blob.Bucket, options ...Option) *Store {
	s := &Store{
		bucket:  bucket,
		bufSize: checksum.DefaultBufferSize,
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// OpenDir opens the local directory root, creating it if needed.
// No metadata sidecar files are written next to game files.
func OpenDir(root string, options ...Option) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("store: create root: %w", err)
	}
	bucket, err := fileblob.OpenBucket(root, &fileblob.Options{
		CreateDir: true,
		NoTempDir: true,
		Metadata:  fileblob.MetadataDontWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", root, err)
	}
	return New(bucket, options...), nil
}

// Open opens any gocloud bucket URL (file://, mem://, ...).
func Open(ctx context.Context, url string, options ...Option) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", url, err)
	}
	return New(bucket, options...), nil
}

// OpenRoot opens a game root given either as a bucket URL or as a
// filesystem path.
func OpenRoot(ctx context.Context, root string, options ...Option) (*Store, error) {
	if strings.Contains(root, "://") {
		return Open(ctx, root, options...)
	}
	return OpenDir(root, options...)
}

// Close releases the underlying bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

// Exists reports whether key is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("store: stat %s: %w", key, err)
	}
	return ok, nil
}

// Digest hashes the object at key.
func (s *Store) Digest(ctx context.Context, key string) (string, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return "", fmt.Errorf("store: open %s: %w", key, err)
	}
	defer r.Close()

	sum, err := checksum.SumBuffer(r, s.bufSize)
	if err != nil {
		return "", fmt.Errorf("store: hash %s: %w", key, err)
	}
	return sum, nil
}

// ReadAll reads the whole object at key.
func (s *Store) ReadAll(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", key, err)
	}
	return data, nil
}

// Delete removes key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.bucket.Delete(ctx, key); err != nil && !IsNotExist(err) {
		return fmt.Errorf("store: delete %s: %w", key, err)
	}
	return nil
}

// Put streams r into key while hashing it. When expected is non-empty and
// the content does not match, the write is aborted and a
// *checksum.MismatchError is returned; an existing object at key is left
// untouched. Errors reading r are returned as-is, storage failures wrap
// ErrWrite.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, expected string) (int64, error) {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w, err := s.bucket.NewWriter(wctx, key, &blob.WriterOptions{
		ContentType: "application/octet-stream",
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrWrite, key, err)
	}

	h := checksum.New()
	src := &sourceReader{r: r}
	n, err := io.CopyBuffer(io.MultiWriter(w, h), src, make([]byte, s.bufSize))
	if err != nil {
		abort(cancel, w)
		if src.err != nil {
			return n, src.err
		}
		return n, fmt.Errorf("%w: %s: %w", ErrWrite, key, err)
	}

	if err := checksum.Verify(expected, checksum.Encode(h)); err != nil {
		abort(cancel, w)
		return n, err
	}

	if err := w.Close(); err != nil {
		return n, fmt.Errorf("%w: %s: %w", ErrWrite, key, err)
	}
	return n, nil
}

// abort discards an in-progress write. Cancelling the writer's context
// before Close prevents the object from being committed.
func abort(cancel context.CancelFunc, w *blob.Writer) {
	cancel()
	_ = w.Close()
}

// sourceReader remembers the last read error so Put can tell source
// failures from storage failures.
type sourceReader struct {
	r   io.Reader
	err error
}

func (s *sourceReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil && err != io.EOF {
		s.err = err
	}
	return n, err
}

// IsNotExist reports whether err means the key does not exist.
func IsNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
