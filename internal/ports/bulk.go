package ports

import (
	"context"
	"io"
)

// Bulk export job terminal statuses reported by the platform
const (
	BulkStatusCompleted = "COMPLETED"
	BulkStatusFailed    = "FAILED"
	BulkStatusCanceled  = "CANCELED"
	BulkStatusExpired   = "EXPIRED"
)

// BulkJobResult is the terminal outcome of one export job. URL points at
// the full result when Status is COMPLETED, or at the partial result (if
// the platform provides one) otherwise; it is empty when no data at all
// is available.
type BulkJobResult struct {
	JobID       string
	Status      string
	URL         string
	Partial     bool
	ObjectCount int64
}

// BulkExporter is the client for the platform's asynchronous bulk-export
// mechanism: submit a job, poll it to a terminal state, download the
// newline-delimited JSON result.
type BulkExporter interface {
	Submit(ctx context.Context, shopDomain, accessToken, query string) (string, error)
	PollUntilDone(ctx context.Context, shopDomain, accessToken string) (*BulkJobResult, error)
	Download(ctx context.Context, url string) (io.ReadCloser, error)
}
