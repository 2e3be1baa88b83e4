package media

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

type fakeFetcher struct {
	payload     string
	contentType string
	err         error
}

func (f *fakeFetcher) FetchMedia(ctx context.Context, url string) (io.ReadCloser, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	return io.NopCloser(strings.NewReader(f.payload)), f.contentType, nil
}

type fakeUploader struct {
	calls     int
	recordID  string
	filename  string
	size      int64
	uploadErr error
}

func (u *fakeUploader) AttachFile(ctx context.Context, recordID, filename string, r io.Reader, size int64) error {
	u.calls++
	u.recordID = recordID
	u.filename = filename
	u.size = size
	if u.uploadErr != nil {
		return u.uploadErr
	}
	_, err := io.Copy(io.Discard, r)
	return err
}

func TestRelaySuccess(t *testing.T) {
	t.Parallel()
	uploader := &fakeUploader{}
	relay := NewRelay(nil, &fakeFetcher{payload: "pdf-bytes", contentType: "application/pdf"}, uploader)

	err := relay.Relay(context.Background(), "whatsapp:+569", "https://media.example/1", "rec-1")
	if err != nil {
		t.Fatalf("Relay: %v", err)
	}
	if uploader.calls != 1 || uploader.recordID != "rec-1" {
		t.Fatalf("uploader calls=%d record=%q", uploader.calls, uploader.recordID)
	}
	if !strings.HasSuffix(uploader.filename, ".pdf") {
		t.Fatalf("filename = %q, want .pdf suffix", uploader.filename)
	}
	if uploader.size != int64(len("pdf-bytes")) {
		t.Fatalf("size = %d", uploader.size)
	}
}

func TestRelayRequiresLinkedRecord(t *testing.T) {
	t.Parallel()
	uploader := &fakeUploader{}
	relay := NewRelay(nil, &fakeFetcher{payload: "x"}, uploader)

	if err := relay.Relay(context.Background(), "c", "u", ""); !errors.Is(err, ErrNoLinkedRecord) {
		t.Fatalf("err = %v, want ErrNoLinkedRecord", err)
	}
	if uploader.calls != 0 {
		t.Fatal("uploader must not be called without a record")
	}
}

func TestRelayDownloadFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("twilio 502")
	uploader := &fakeUploader{}
	relay := NewRelay(nil, &fakeFetcher{err: boom}, uploader)

	if err := relay.Relay(context.Background(), "c", "u", "rec-1"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped fetch error", err)
	}
	if uploader.calls != 0 {
		t.Fatal("uploader must not be called after a failed download")
	}
}

func TestRelayUploadFailure(t *testing.T) {
	t.Parallel()
	boom := errors.New("monday 500")
	relay := NewRelay(nil, &fakeFetcher{payload: "x"}, &fakeUploader{uploadErr: boom})

	if err := relay.Relay(context.Background(), "c", "u", "rec-1"); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped upload error", err)
	}
}

func TestRelayEmptyPayload(t *testing.T) {
	t.Parallel()
	relay := NewRelay(nil, &fakeFetcher{payload: ""}, &fakeUploader{})
	if err := relay.Relay(context.Background(), "c", "u", "rec-1"); !errors.Is(err, ErrEmptyAttachment) {
		t.Fatalf("err = %v, want ErrEmptyAttachment", err)
	}
}

func TestSpoolWithLimitRejectsOversize(t *testing.T) {
	t.Parallel()
	_, _, err := spoolWithLimit(strings.NewReader("0123456789"), 5)
	if !errors.Is(err, ErrAttachmentTooLarge) {
		t.Fatalf("err = %v, want ErrAttachmentTooLarge", err)
	}
}
