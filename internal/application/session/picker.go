package session

import "strings"

// Typed is anything that carries a content type.
type Typed interface {
	MIMEType() string
}

// IsImage reports whether a content type indicates an image.
func IsImage(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// SelectImages appends the image-typed entries of files to acc, preserving
// order. Nothing else is rejected: size and exact format are not checked.
// The returned slice never aliases acc.
func SelectImages[T Typed](acc []T, files []T) []T {
	out := make([]T, 0, len(acc)+len(files))
	out = append(out, acc...)
	for _, f := range files {
		if IsImage(f.MIMEType()) {
			out = append(out, f)
		}
	}
	return out
}

// RemoveImage returns acc without the element at index. An index outside
// [0, len) leaves the list unchanged.
func RemoveImage[T any](acc []T, index int) []T {
	out := make([]T, 0, len(acc))
	for i, f := range acc {
		if i != index {
			out = append(out, f)
		}
	}
	return out
}
