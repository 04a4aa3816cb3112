// Package render is the boundary to the external letter renderer, the
// presentation-layer service that turns settlement views into printable
// documents. Only the interface shape matters here; layout and PDF
// export live behind it.
package render

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Kind selects which settlement letter to render.
type Kind string

const (
	KindInvoice Kind = "invoice"
	KindRefund  Kind = "refund"
)

// Job is a letter render request as carried on the settlement.letters
// topic. View is the serialized settlement view the letter is built
// from, frozen at enqueue time.
type Job struct {
	VONumber      string          `json:"vo_number"`
	Kind          Kind            `json:"kind"`
	InvoiceNumber string          `json:"invoice_number"`
	View          json.RawMessage `json:"view"`
}

// Client calls the letter renderer over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a renderer client.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
	}
}

// Render submits a job to the renderer and waits for completion.
func (c *Client) Render(ctx context.Context, job *Job) error {
	body, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal render job: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/render", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build render request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("renderer call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("renderer returned status %d for vo %s", resp.StatusCode, job.VONumber)
	}

	c.logger.Debug("letter rendered",
		zap.String("vo", job.VONumber),
		zap.String("kind", string(job.Kind)),
	)
	return nil
}
