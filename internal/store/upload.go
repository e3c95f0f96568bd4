package store

import (
	"context"
	"errors"
	"os"

	"github.com/dmorgan81/fluxgen/internal/log"
)

var ErrIO = errors.New("write failed")

type UploadParams struct {
	Name        string
	Data        []byte
	ContentType string
	Metadata    map[string]string
}

type Uploader interface {
	Upload(context.Context, UploadParams) error
}

// FileUploader writes to the local filesystem. Name is the file path.
type FileUploader struct{}

func (*FileUploader) Upload(ctx context.Context, params UploadParams) error {
	log.FromContextOrDiscard(ctx).WithGroup("file").Debug("writing", "file", params.Name, "bytes", len(params.Data))
	return os.WriteFile(params.Name, params.Data, 0o644)
}
