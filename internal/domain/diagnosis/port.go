package diagnosis

import (
	"context"
	"errors"
)

// ErrBlobNotFound is returned by an ImageStore for an unknown or released reference.
var ErrBlobNotFound = errors.New("image blob not found")

// ImageStore port (penyimpanan gambar yang bisa ditampilkan)
type ImageStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (ImageRef, error)
	Get(ctx context.Context, ref ImageRef) (Blob, error)
	Release(ctx context.Context, ref ImageRef) error
}

// Inspector reads image geometry and renders thumbnails.
type Inspector interface {
	Dimensions(data []byte) (width, height int, err error)
	Thumbnail(data []byte, maxSide int) ([]byte, string, error)
}
