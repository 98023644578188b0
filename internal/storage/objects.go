package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ErrObjectNotFound is returned by Open for keys that were never written.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore holds uploaded media under a bucket directory on disk, with a
// hard ceiling on object size.
type ObjectStore struct {
	bucketDir string
	maxBytes  int64
}

func NewObjectStore(baseDir, bucket string, maxBytes int64) (*ObjectStore, error) {
	bucketDir := filepath.Join(baseDir, "objects", bucket)
	if err := os.MkdirAll(bucketDir, 0o755); err != nil {
		return nil, fmt.Errorf("create bucket dir %s: %w", bucketDir, err)
	}

	return &ObjectStore{bucketDir: bucketDir, maxBytes: maxBytes}, nil
}

// Write streams r into the object at key, enforcing the size ceiling. A failed
// or oversized write leaves nothing behind.
func (o *ObjectStore) Write(key string, r io.Reader) (int64, error) {
	path, err := o.objectPath(key)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create object dir: %w", err)
	}

	out, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create object file: %w", err)
	}

	cleanup := func(err error) (int64, error) {
		out.Close()
		os.Remove(path)
		return 0, err
	}

	total := int64(0)
	buf := make([]byte, 32*1024)
	for {
		n, rerr := r.Read(buf)
		if n > 0 {
			total += int64(n)
			if o.maxBytes > 0 && total > o.maxBytes {
				return cleanup(fmt.Errorf("object exceeds maximum size of %d bytes", o.maxBytes))
			}
			if _, werr := out.Write(buf[:n]); werr != nil {
				return cleanup(fmt.Errorf("write object: %w", werr))
			}
		}

		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return cleanup(fmt.Errorf("read object content: %w", rerr))
		}
	}

	if err := out.Close(); err != nil {
		os.Remove(path)
		return 0, fmt.Errorf("close object file: %w", err)
	}

	return total, nil
}

// Open returns a reader over the object at key.
func (o *ObjectStore) Open(key string) (io.ReadCloser, error) {
	path, err := o.objectPath(key)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrObjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	return file, nil
}

func (o *ObjectStore) objectPath(key string) (string, error) {
	cleaned := filepath.Clean("/" + key)
	if strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filepath.Join(o.bucketDir, cleaned), nil
}
