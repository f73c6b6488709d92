// Package storage is the Media Store for finished recordings.
package storage

import (
	"context"
	"errors"
	"io"
	"mime"
	"path"
	"regexp"
	"strings"
	"time"
)

// ErrNotFound is returned when a key does not exist in the store.
var ErrNotFound = errors.New("media object not found")

// ErrInvalidKey is returned for keys that are not a plain file name.
var ErrInvalidKey = errors.New("invalid media key")

// ErrInvalidRange is returned when a requested byte range cannot be satisfied.
var ErrInvalidRange = errors.New("requested range not satisfiable")

// Object describes a stored media file.
type Object struct {
	Key          string
	Size         int64
	ContentType  string
	ModTime      time.Time
	ContentRange string // set when only part of the object was opened, e.g. "bytes 2-4/10"
}

// Store is a flat, filesystem-like store keyed by file name.
type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// Open returns the object body; the caller must close it.
	Open(ctx context.Context, key string) (io.ReadCloser, Object, error)
	// Remove deletes key. Removing a missing key is not an error.
	Remove(ctx context.Context, key string) error
	List(ctx context.Context) ([]Object, error)
}

// RangeOpener is implemented by stores whose bodies cannot seek and that
// instead serve an HTTP byte range (RFC 9110 "bytes=..." syntax) themselves.
// Size in the returned Object is the length of the range.
type RangeOpener interface {
	OpenRange(ctx context.Context, key, byteRange string) (io.ReadCloser, Object, error)
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateKey rejects anything but a plain file name (no separators, no "..").
func ValidateKey(key string) error {
	if len(key) > 255 || !keyPattern.MatchString(key) || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	return nil
}

// ContentTypeForKey returns the MIME type for a media key's extension.
func ContentTypeForKey(key string) string {
	switch strings.ToLower(path.Ext(key)) {
	case ".mp4":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mkv":
		return "video/x-matroska"
	case ".mp3":
		return "audio/mpeg"
	}
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
