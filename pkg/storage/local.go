package storage

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"material-pipeline/constant"
)

// Local stores files under a root directory and hands out HMAC-signed URLs
// that the HTTP server verifies before streaming.
type Local struct {
	root    string
	baseURL string
	secret  []byte
	ttl     time.Duration
	now     func() time.Time
}

func NewLocal(root, baseURL string, secret []byte, ttl time.Duration) (*Local, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	if ttl <= 0 {
		ttl = defaultURLTTL
	}
	return &Local{
		root:    root,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		secret:  secret,
		ttl:     ttl,
		now:     time.Now,
	}, nil
}

func (l *Local) Name() constant.StorageProvider {
	return constant.StorageProviderLocal
}

func (l *Local) Store(ctx context.Context, file File, opts StoreOptions) (*StoreResult, error) {
	filename := resolveFilename(file, opts)
	ref := objectKey(opts.Prefix, filename)
	target, err := l.path(ref)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return nil, fmt.Errorf("create object dir: %w", err)
	}
	dst, err := os.Create(target)
	if err != nil {
		return nil, fmt.Errorf("create object: %w", err)
	}
	written, err := io.Copy(dst, contextReader{ctx: ctx, r: file.Content})
	if closeErr := dst.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(target)
		return nil, fmt.Errorf("write object: %w", err)
	}
	return &StoreResult{
		Provider:     l.Name(),
		Ref:          ref,
		Mime:         file.Mime,
		Size:         written,
		OriginalName: file.OriginalName,
		Filename:     filename,
	}, nil
}

// AccessURL returns {baseURL}/{ref}?expires=..&signature=..
func (l *Local) AccessURL(ctx context.Context, ref string) (string, error) {
	if _, err := l.path(ref); err != nil {
		return "", err
	}
	expires := l.now().Add(l.ttl).Unix()
	query := url.Values{}
	query.Set("expires", strconv.FormatInt(expires, 10))
	query.Set("signature", l.sign(ref, expires))
	return l.baseURL + "/" + escapeRef(ref) + "?" + query.Encode(), nil
}

// Verify checks a signature produced by AccessURL.
func (l *Local) Verify(ref, expires, signature string) bool {
	exp, err := strconv.ParseInt(expires, 10, 64)
	if err != nil {
		return false
	}
	if time.Unix(exp, 0).Before(l.now()) {
		return false
	}
	return hmac.Equal([]byte(l.sign(ref, exp)), []byte(signature))
}

func (l *Local) Open(ctx context.Context, ref string) (*FileStream, error) {
	target, err := l.path(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", ref, ErrObjectNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat object: %w", err)
	}
	name := path.Base(ref)
	contentType := mime.TypeByExtension(path.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return &FileStream{
		Stream:   f,
		Filename: name,
		Mime:     contentType,
		Size:     info.Size(),
	}, nil
}

func (l *Local) Delete(ctx context.Context, ref string) error {
	target, err := l.path(ref)
	if err != nil {
		return err
	}
	err = os.Remove(target)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (l *Local) sign(ref string, expires int64) string {
	mac := hmac.New(sha256.New, l.secret)
	mac.Write([]byte(fmt.Sprintf("%s:%d", ref, expires)))
	return hex.EncodeToString(mac.Sum(nil))
}

// path maps a reference to a file below root, refusing anything that escapes it.
func (l *Local) path(ref string) (string, error) {
	clean := path.Clean("/" + ref)
	if ref == "" || clean == "/" || clean != "/"+ref {
		return "", fmt.Errorf("invalid reference %q", ref)
	}
	return filepath.Join(l.root, filepath.FromSlash(clean)), nil
}

func escapeRef(ref string) string {
	parts := strings.Split(ref, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
