// Package media moves attachments from the messaging channel into the CRM
// record's file column.
package media

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
)

// MaxAttachmentBytes is the largest attachment the relay accepts.
const MaxAttachmentBytes int64 = 25 * 1024 * 1024

// Fetcher downloads an attachment from the messaging channel.
type Fetcher interface {
	// FetchMedia returns the attachment bytes and content type for a
	// channel media URL. The caller closes the reader.
	FetchMedia(ctx context.Context, url string) (io.ReadCloser, string, error)
}

// Uploader appends a file to a CRM record's file column.
type Uploader interface {
	AttachFile(ctx context.Context, recordID, filename string, r io.Reader, size int64) error
}

// Relay is the attachment pipeline: download, spool to a scoped temp file,
// upload, release. The temp file is removed on every exit path.
type Relay struct {
	fetcher  Fetcher
	uploader Uploader
	logger   *slog.Logger
	maxBytes int64
}

// NewRelay creates a Relay.
func NewRelay(log *slog.Logger, fetcher Fetcher, uploader Uploader) *Relay {
	if log == nil {
		log = slog.Default()
	}
	return &Relay{
		fetcher:  fetcher,
		uploader: uploader,
		logger:   log.With(slog.String("service", "media")),
		maxBytes: MaxAttachmentBytes,
	}
}

// Relay moves one attachment into the record's file column. Any failure is
// the caller's signal to skip this attachment and keep going with the rest
// of the batch; nothing here aborts sibling attachments.
func (r *Relay) Relay(ctx context.Context, contactKey, url, recordID string) error {
	if recordID == "" {
		return ErrNoLinkedRecord
	}

	body, contentType, err := r.fetcher.FetchMedia(ctx, url)
	if err != nil {
		return fmt.Errorf("fetch attachment: %w", err)
	}
	defer func() {
		_ = body.Close()
	}()

	size, tempPath, err := spoolWithLimit(body, r.maxBytes)
	if err != nil {
		return fmt.Errorf("spool attachment: %w", err)
	}
	defer func() {
		_ = os.Remove(tempPath)
	}()

	tempFile, err := os.Open(tempPath)
	if err != nil {
		return fmt.Errorf("open spooled attachment: %w", err)
	}
	defer func() {
		_ = tempFile.Close()
	}()

	filename := uuid.NewString() + extensionFromMime(contentType)
	if err := r.uploader.AttachFile(ctx, recordID, filename, tempFile, size); err != nil {
		return fmt.Errorf("upload attachment: %w", err)
	}

	r.logger.Info("attachment relayed",
		slog.String("contact", contactKey),
		slog.String("record_id", recordID),
		slog.String("filename", filename),
		slog.Int64("size_bytes", size))
	return nil
}

// spoolWithLimit copies the payload to a temp file, enforcing maxBytes. On
// success the caller owns the temp file and must remove it; on failure the
// file is already gone.
func spoolWithLimit(reader io.Reader, maxBytes int64) (int64, string, error) {
	tempFile, err := os.CreateTemp("", "maria-media-*")
	if err != nil {
		return 0, "", fmt.Errorf("create temp file: %w", err)
	}
	tempPath := tempFile.Name()
	keepFile := false
	defer func() {
		_ = tempFile.Close()
		if !keepFile {
			_ = os.Remove(tempPath)
		}
	}()

	limited := &io.LimitedReader{R: reader, N: maxBytes + 1}
	written, err := io.Copy(tempFile, limited)
	if err != nil {
		return 0, "", fmt.Errorf("copy to temp file: %w", err)
	}
	if written > maxBytes {
		return 0, "", fmt.Errorf("%w: max %d bytes", ErrAttachmentTooLarge, maxBytes)
	}
	if written == 0 {
		return 0, "", ErrEmptyAttachment
	}
	keepFile = true
	return written, tempPath, nil
}

func extensionFromMime(contentType string) string {
	switch contentType {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	case "image/heic":
		return ".heic"
	default:
		return ".bin"
	}
}
