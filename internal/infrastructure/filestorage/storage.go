// Package filestorage stores document attachments for student files.
// Uploads are validated (PDF, JPEG or PNG up to 5 MB), checksummed with
// BLAKE2b and written to a Backend: the local filesystem or a GCS bucket.
package filestorage

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"golang.org/x/crypto/blake2b"

	"github.com/sagenius/agency-crm/internal/domain/shared"
	"github.com/sagenius/agency-crm/internal/domain/student"
)

// MaxFileSize is the upload limit.
const MaxFileSize = 5 << 20

var allowedTypes = map[string]string{
	"application/pdf": "pdf",
	"image/jpeg":      "jpg",
	"image/png":       "png",
}

var (
	// ErrEmptyFile - upload has no content.
	ErrEmptyFile = shared.NewDomainError("filestorage", "Validate", shared.ErrEmptyValue, "file is empty")

	// ErrFileTooLarge - upload exceeds MaxFileSize.
	ErrFileTooLarge = shared.NewDomainError("filestorage", "Validate", shared.ErrValueOutOfRange, "file exceeds 5 MB")

	// ErrUnsupportedType - content is not PDF, JPEG or PNG.
	ErrUnsupportedType = shared.NewDomainError("filestorage", "Validate", shared.ErrInvalidFormat, "only PDF, JPEG and PNG files are accepted")

	// ErrObjectExists - the key is already taken in the backend.
	ErrObjectExists = shared.NewDomainError("filestorage", "Put", shared.ErrAlreadyExists, "object already exists")
)

// ══════════════════════════════════════════════════════════════════════════════
// BACKEND
// ══════════════════════════════════════════════════════════════════════════════

// Backend writes immutable objects. Put must fail with ErrObjectExists rather
// than overwrite.
type Backend interface {
	Put(ctx context.Context, key, contentType string, data []byte) (url string, err error)
	Delete(ctx context.Context, key string) error
}

// ══════════════════════════════════════════════════════════════════════════════
// UPLOADER
// ══════════════════════════════════════════════════════════════════════════════

// Upload is one incoming attachment.
type Upload struct {
	StudentID  string
	Filename   string
	Data       []byte
	UploadedBy string
}

// Uploader validates uploads and stores them in a Backend.
type Uploader struct {
	backend Backend
	clock   shared.Clock
	suffix  func() string
}

// NewUploader creates an Uploader.
func NewUploader(backend Backend, clock shared.Clock) *Uploader {
	if clock == nil {
		clock = shared.SystemClock(time.UTC)
	}
	return &Uploader{
		backend: backend,
		clock:   clock,
		suffix:  func() string { return shared.NewID()[:8] },
	}
}

// Store validates the upload and writes it under
// students/{studentId}/{unixMillis}_{rand}.{ext}.
func (u *Uploader) Store(ctx context.Context, up Upload) (student.StoredFile, error) {
	contentType, ext, err := Validate(up.Data)
	if err != nil {
		return student.StoredFile{}, err
	}

	pages := 0
	if contentType == "application/pdf" {
		if pages, err = pdfPageCount(up.Data); err != nil {
			return student.StoredFile{}, err
		}
	}

	now := u.clock()
	key := ObjectKey(up.StudentID, now, u.suffix(), ext)

	url, err := u.backend.Put(ctx, key, contentType, up.Data)
	if err != nil {
		return student.StoredFile{}, fmt.Errorf("filestorage: put %s: %w", key, err)
	}

	return student.StoredFile{
		Key:        key,
		Filename:   cleanFilename(up.Filename, ext),
		URL:        url,
		Size:       int64(len(up.Data)),
		MimeType:   contentType,
		Checksum:   Checksum(up.Data),
		Pages:      pages,
		UploadedAt: now.UTC(),
		UploadedBy: up.UploadedBy,
	}, nil
}

// StoreDocument is Store with positional arguments; it satisfies the
// application's document storage port.
func (u *Uploader) StoreDocument(ctx context.Context, studentID, filename string, data []byte, uploadedBy string) (student.StoredFile, error) {
	return u.Store(ctx, Upload{StudentID: studentID, Filename: filename, Data: data, UploadedBy: uploadedBy})
}

// Remove deletes a stored object. Used to roll back an upload whose
// descriptor could not be saved.
func (u *Uploader) Remove(ctx context.Context, key string) error {
	return u.backend.Delete(ctx, key)
}

// Validate sniffs the content type and enforces the size limit.
// The declared filename is not trusted.
func Validate(data []byte) (contentType, ext string, err error) {
	if len(data) == 0 {
		return "", "", ErrEmptyFile
	}
	if len(data) > MaxFileSize {
		return "", "", ErrFileTooLarge
	}
	contentType = http.DetectContentType(data)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", "", ErrUnsupportedType
	}
	return contentType, ext, nil
}

// ObjectKey builds students/{studentId}/{unixMillis}_{suffix}.{ext}.
func ObjectKey(studentID string, at time.Time, suffix, ext string) string {
	return path.Join("students", studentID, fmt.Sprintf("%d_%s.%s", at.UnixMilli(), suffix, ext))
}

// Checksum returns the hex BLAKE2b-256 digest of data.
func Checksum(data []byte) string {
	sum := blake2b.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func pdfPageCount(data []byte) (int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	n, err := api.PageCount(bytes.NewReader(data), conf)
	if err != nil {
		return 0, shared.WrapError("filestorage", "Validate", shared.ErrInvalidFormat, "PDF could not be read", err)
	}
	return n, nil
}

func cleanFilename(name, ext string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == "" {
		return "document." + ext
	}
	return name
}
