package shopify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"shoppulse-ingest-layer/internal/ports"
)

const (
	// DefaultPollInterval is how often a running export job is polled
	DefaultPollInterval = 2 * time.Second
	// DefaultPollTimeout caps the total wall-clock time spent waiting
	// for one export job to reach a terminal state
	DefaultPollTimeout = 10 * time.Minute
)

// BulkClient drives Shopify's asynchronous bulk-export mechanism over
// the GraphQL Admin API: submit a bulkOperationRunQuery, poll
// currentBulkOperation until the job terminates, stream the JSONL
// result from the signed URL Shopify hands back.
type BulkClient struct {
	apiVersion   string
	pollInterval time.Duration
	pollTimeout  time.Duration
	httpClient   *http.Client
	logger       zerolog.Logger

	// endpointOverride replaces the per-shop Admin API URL in tests
	endpointOverride string
}

// NewBulkClient creates a bulk export client with default polling settings
func NewBulkClient(apiVersion string, logger zerolog.Logger) *BulkClient {
	return &BulkClient{
		apiVersion:   apiVersion,
		pollInterval: DefaultPollInterval,
		pollTimeout:  DefaultPollTimeout,
		httpClient:   &http.Client{Timeout: 60 * time.Second},
		logger:       logger,
	}
}

func (c *BulkClient) endpoint(shopDomain string) string {
	if c.endpointOverride != "" {
		return c.endpointOverride
	}
	return fmt.Sprintf("https://%s/admin/api/%s/graphql.json", shopDomain, c.apiVersion)
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type bulkOperationPayload struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	ErrorCode      string `json:"errorCode"`
	ObjectCount    string `json:"objectCount"`
	URL            string `json:"url"`
	PartialDataURL string `json:"partialDataUrl"`
}

type userError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

func (c *BulkClient) execute(ctx context.Context, shopDomain, accessToken, query string, out interface{}) error {
	body, err := json.Marshal(graphqlRequest{Query: query})
	if err != nil {
		return fmt.Errorf("failed to encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.endpoint(shopDomain), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create graphql request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", accessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("graphql request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("graphql request failed with status %d: %s", resp.StatusCode, string(raw))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode graphql response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("graphql error: %s", envelope.Errors[0].Message)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode graphql data: %w", err)
	}
	return nil
}

// Submit starts a bulk export job for the given nested query and returns
// the job id. Shopify rejects a submission with userErrors (for example
// when another bulk operation is already running); that is a terminal
// submit failure, not something to poll through.
func (c *BulkClient) Submit(ctx context.Context, shopDomain, accessToken, query string) (string, error) {
	mutation := fmt.Sprintf(`mutation {
  bulkOperationRunQuery(query: """
%s
""") {
    bulkOperation {
      id
      status
    }
    userErrors {
      field
      message
    }
  }
}`, query)

	var data struct {
		BulkOperationRunQuery struct {
			BulkOperation *bulkOperationPayload `json:"bulkOperation"`
			UserErrors    []userError           `json:"userErrors"`
		} `json:"bulkOperationRunQuery"`
	}
	if err := c.execute(ctx, shopDomain, accessToken, mutation, &data); err != nil {
		return "", err
	}

	result := data.BulkOperationRunQuery
	if len(result.UserErrors) > 0 {
		return "", fmt.Errorf("bulk operation rejected: %s", result.UserErrors[0].Message)
	}
	if result.BulkOperation == nil || result.BulkOperation.ID == "" {
		return "", fmt.Errorf("bulk operation submission returned no job")
	}

	c.logger.Info().
		Str("shop", shopDomain).
		Str("job_id", result.BulkOperation.ID).
		Msg("Submitted bulk export job")

	return result.BulkOperation.ID, nil
}

// PollUntilDone polls the shop's current bulk operation until it reaches
// a terminal state or the wall-clock timeout expires. A FAILED job that
// carries a partialDataUrl is reported with Partial set so the caller
// can decide to ingest what exists.
func (c *BulkClient) PollUntilDone(ctx context.Context, shopDomain, accessToken string) (*ports.BulkJobResult, error) {
	query := `{
  currentBulkOperation {
    id
    status
    errorCode
    objectCount
    url
    partialDataUrl
  }
}`

	deadline := time.NewTimer(c.pollTimeout)
	defer deadline.Stop()
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var data struct {
			CurrentBulkOperation *bulkOperationPayload `json:"currentBulkOperation"`
		}
		if err := c.execute(ctx, shopDomain, accessToken, query, &data); err != nil {
			return nil, err
		}

		op := data.CurrentBulkOperation
		if op == nil {
			return nil, fmt.Errorf("no bulk operation in flight for %s", shopDomain)
		}

		switch op.Status {
		case ports.BulkStatusCompleted:
			count, _ := strconv.ParseInt(op.ObjectCount, 10, 64)
			return &ports.BulkJobResult{
				JobID:       op.ID,
				Status:      op.Status,
				URL:         op.URL,
				ObjectCount: count,
			}, nil
		case ports.BulkStatusFailed, ports.BulkStatusCanceled, ports.BulkStatusExpired:
			count, _ := strconv.ParseInt(op.ObjectCount, 10, 64)
			result := &ports.BulkJobResult{
				JobID:       op.ID,
				Status:      op.Status,
				ObjectCount: count,
			}
			if op.PartialDataURL != "" {
				result.URL = op.PartialDataURL
				result.Partial = true
			}
			c.logger.Warn().
				Str("shop", shopDomain).
				Str("job_id", op.ID).
				Str("status", op.Status).
				Str("error_code", op.ErrorCode).
				Bool("partial", result.Partial).
				Msg("Bulk export job terminated abnormally")
			return result, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("bulk export job %s did not finish within %s", op.ID, c.pollTimeout)
		case <-ticker.C:
		}
	}
}

// Download streams the JSONL result file. The URL is pre-signed, no
// access token is attached.
func (c *BulkClient) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download export result: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("export download failed with status %d", resp.StatusCode)
	}

	return resp.Body, nil
}
