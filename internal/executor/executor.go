package executor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/russellballestrini/tpmjs-sub004/internal/catalog"
	"github.com/russellballestrini/tpmjs-sub004/internal/errors"
)

// HTTPClient abstracts outbound HTTP execution.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Result is the executor endpoint's verdict on a tool run.
//
// Success reports whether the tool itself ran cleanly. A false Success with
// an Error message is a tool-level failure, distinct from transport errors
// which Execute returns as Go errors.
type Result struct {
	Success bool   `json:"success"`
	Output  any    `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Executor runs registry tools.
type Executor interface {
	// Execute invokes packageName's toolName with params against the
	// collection's executor endpoint.
	//
	// A non-nil Result with Success=false is a tool failure, not an
	// error. Errors are reserved for transport and protocol faults.
	Execute(
		ctx context.Context,
		cfg catalog.ExecutorConfig,
		packageName string,
		toolName string,
		params map[string]any,
	) (*Result, error)
}

// executeRequest is the JSON body posted to the executor endpoint.
type executeRequest struct {
	PackageName string         `json:"packageName"`
	ToolName    string         `json:"toolName"`
	Params      map[string]any `json:"params"`
}

// HTTPExecutor executes registry tools by POSTing to the configured
// endpoint.
type HTTPExecutor struct {
	log    *slog.Logger
	client HTTPClient
}

// Compile-time interface check.
var _ Executor = (*HTTPExecutor)(nil)

// NewHTTPExecutor creates an executor backed by client.
//
// A nil client falls back to http.DefaultClient. Callers control request
// deadlines through the context.
func NewHTTPExecutor(log *slog.Logger, client HTTPClient) *HTTPExecutor {
	if client == nil {
		client = http.DefaultClient
	}

	return &HTTPExecutor{
		log:    log.With("component", "executor"),
		client: client,
	}
}

// Execute implements Executor.
func (e *HTTPExecutor) Execute(
	ctx context.Context,
	cfg catalog.ExecutorConfig,
	packageName string,
	toolName string,
	params map[string]any,
) (*Result, error) {
	body, err := json.Marshal(executeRequest{
		PackageName: packageName,
		ToolName:    toolName,
		Params:      params,
	})
	if err != nil {
		return nil, e.wrap(packageName, toolName, fmt.Errorf("marshal request body: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, e.wrap(packageName, toolName, fmt.Errorf("build request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")

	if cfg.Token != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Token)
	}

	e.log.Debug("Calling executor", "url", cfg.URL, "package", packageName, "tool", toolName)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, e.wrap(packageName, toolName, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, e.wrap(packageName, toolName, fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		e.log.Warn("Executor returned non-2xx status",
			"status", resp.StatusCode,
			"package", packageName,
			"tool", toolName,
		)

		return nil, e.wrap(packageName, toolName, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, e.wrap(packageName, toolName, fmt.Errorf("decode response body: %w", err))
	}

	return &result, nil
}

func (e *HTTPExecutor) wrap(packageName, toolName string, err error) error {
	return &errors.ExecutorError{
		PackageName: packageName,
		ToolName:    toolName,
		Err:         err,
	}
}
