// Package storage defines the contract the upload subsystem stores files
// through, and its backends. A reference returned by Store is opaque: only the
// provider that issued it may parse it.
package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"material-pipeline/constant"
)

var ErrObjectNotFound = errors.New("object not found")

// File is one incoming upload. Size is the declared size in bytes.
type File struct {
	OriginalName string
	Mime         string
	Size         int64
	Content      io.Reader
}

type StoreOptions struct {
	// Prefix groups objects, e.g. by course. It is folded into the reference.
	Prefix string
	// Filename overrides the generated stored name.
	Filename string
}

type StoreResult struct {
	Provider     constant.StorageProvider
	Ref          string
	Mime         string
	Size         int64
	OriginalName string
	Filename     string
}

type FileStream struct {
	Stream   io.ReadCloser
	Filename string
	Mime     string
	Size     int64
}

type Provider interface {
	Name() constant.StorageProvider
	Store(ctx context.Context, file File, opts StoreOptions) (*StoreResult, error)
	AccessURL(ctx context.Context, ref string) (string, error)
	Open(ctx context.Context, ref string) (*FileStream, error)
	Delete(ctx context.Context, ref string) error
}

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// StoredFilename builds the backend-side name for an upload: a fresh uuid plus
// the lower-cased original extension. The original name never reaches the
// reference, so URLs do not depend on how the uploader named the file.
func StoredFilename(originalName string) string {
	ext := strings.ToLower(path.Ext(originalName))
	ext = unsafeName.ReplaceAllString(ext, "")
	return uuid.NewString() + ext
}

func objectKey(prefix, filename string) string {
	var segments []string
	for _, segment := range strings.Split(prefix, "/") {
		segment = strings.Trim(unsafeName.ReplaceAllString(segment, "-"), "-.")
		if segment != "" {
			segments = append(segments, segment)
		}
	}
	return path.Join(append(segments, filename)...)
}

func resolveFilename(file File, opts StoreOptions) string {
	if opts.Filename != "" {
		return unsafeName.ReplaceAllString(opts.Filename, "-")
	}
	return StoredFilename(file.OriginalName)
}

const defaultURLTTL = 15 * time.Minute
