package chat

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
)

const MaxAttachmentBytes int64 = 50 << 20

var (
	ErrAttachmentTooLarge = errors.New("attachment exceeds the maximum upload size")
	ErrNoAttachment       = errors.New("no attachment is pending")
)

// Attachment is a file waiting to be uploaded with the next send.
type Attachment struct {
	Name    string
	Size    int64
	Content io.Reader
}

// FileAttachment describes an already opened file. The caller keeps
// ownership of f.
func FileAttachment(f *os.File) (Attachment, error) {
	info, err := f.Stat()
	if err != nil {
		return Attachment{}, fmt.Errorf("error reading attachment info: %w", err)
	}
	if info.IsDir() {
		return Attachment{}, fmt.Errorf("attachment '%s' is a directory", f.Name())
	}
	return Attachment{Name: filepath.Base(f.Name()), Size: info.Size(), Content: f}, nil
}

func (a Attachment) MediaType() string {
	return MediaTypeForFile(a.Name)
}

// Validate rejects files over MaxAttachmentBytes.
func (a Attachment) Validate() error {
	if a.Size > MaxAttachmentBytes {
		return fmt.Errorf("%w: %s is %s, the limit is %s", ErrAttachmentTooLarge,
			a.Name, humanize.IBytes(uint64(a.Size)), humanize.IBytes(uint64(MaxAttachmentBytes)))
	}
	return nil
}
