package build

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/sarchlab/sdrbench/config"
)

// A Store caches build artifacts by content key.
type Store interface {
	// Get writes the artifact to w. It reports false when the key is
	// unknown.
	Get(ctx context.Context, key string, w io.Writer) (bool, error)

	// Put stores the artifact read from r.
	Put(ctx context.Context, key string, r io.Reader) error
}

func compress(r io.Reader) ([]byte, error) {
	var b bytes.Buffer

	w, err := zstd.NewWriter(&b)
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return nil, err
	}

	if err := w.Close(); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}

func decompress(r io.Reader, w io.Writer) error {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer zr.Close()

	_, err = io.Copy(w, zr)

	return err
}

// DirStore keeps artifacts in a local directory.
type DirStore struct {
	Root string
}

func (s DirStore) path(key string) string {
	if len(key) < 2 {
		return filepath.Join(s.Root, key+".zst")
	}

	return filepath.Join(s.Root, key[:2], key+".zst")
}

// Get writes the artifact to w.
func (s DirStore) Get(_ context.Context, key string, w io.Writer) (bool, error) {
	f, err := os.Open(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}

	if err != nil {
		return false, err
	}
	defer f.Close()

	if err := decompress(f, w); err != nil {
		return false, fmt.Errorf("reading artifact %s: %w", key, err)
	}

	return true, nil
}

// Put stores the artifact. The file appears atomically.
func (s DirStore) Put(_ context.Context, key string, r io.Reader) error {
	data, err := compress(r)
	if err != nil {
		return err
	}

	path := s.path(key)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".put-*")
	if err != nil {
		return err
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	return os.Rename(tmp.Name(), path)
}

// NewStore picks the artifact cache from the settings: S3 when a bucket is
// set, otherwise a directory, by default <builddir>/cache.
func NewStore(ctx context.Context, s config.Settings) (Store, error) {
	if s.Artifacts.S3Bucket != "" {
		return NewS3StoreFromSettings(ctx, s.Artifacts)
	}

	root := s.Artifacts.Dir
	if root == "" {
		root = filepath.Join(s.BuildDir, "cache")
	}

	return DirStore{Root: root}, nil
}
