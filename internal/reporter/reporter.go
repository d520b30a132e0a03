package reporter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/The-Promised-Neverland/counterqueue/internal/models"
	"github.com/The-Promised-Neverland/counterqueue/pkg/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	LicenseHeader = "X-License-Key"

	maxResponseBodySize = 64 << 10
)

// HTTPClient is satisfied by *http.Client.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Result int

const (
	Accepted Result = iota
	Rejected
)

func (r Result) String() string {
	switch r {
	case Accepted:
		return "accepted"
	case Rejected:
		return "rejected"
	default:
		return fmt.Sprintf("result(%d)", int(r))
	}
}

// Outcome is the result of one delivered report.
type Outcome struct {
	Result     Result
	StatusCode int
	// Status is the acknowledgement status of an accepted report.
	Status string
	// Reason is the rejection message, or the raw body when RawBody is set.
	Reason  string
	RawBody bool
}

type Options struct {
	Endpoint   string
	LicenseKey string
	Timeout    time.Duration
}

// Reporter posts payloads to the New Relic platform metrics endpoint.
type Reporter struct {
	endpoint   string
	licenseKey string
	httpClient HTTPClient
	log        *slog.Logger
}

func New(opts Options) *Reporter {
	return &Reporter{
		endpoint:   opts.Endpoint,
		licenseKey: opts.LicenseKey,
		httpClient: &http.Client{Timeout: opts.Timeout},
		log:        logger.Log,
	}
}

// SetHTTPClient replaces the transport, used in tests.
func (r *Reporter) SetHTTPClient(client HTTPClient) {
	r.httpClient = client
}

func (r *Reporter) SetLogger(l *slog.Logger) {
	r.log = l
}

func (r *Reporter) Headers() http.Header {
	h := http.Header{}
	h.Set(LicenseHeader, r.licenseKey)
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	return h
}

// Send issues a single POST. A returned error means the request never got a
// response; any response, whatever its status, yields an Outcome.
func (r *Reporter) Send(ctx context.Context, payload models.Payload) (Outcome, error) {
	ctx, span := otel.Tracer("counterqueue/reporter").Start(ctx, "reporter.send")
	defer span.End()

	body, err := json.Marshal(payload)
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header = r.Headers()

	resp, err := r.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		return Outcome{}, fmt.Errorf("failed to post metrics: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return Outcome{}, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		span.SetStatus(codes.Error, "report rejected")
		return r.rejected(resp.StatusCode, respBody), nil
	}
	return r.accepted(body, respBody), nil
}

func (r *Reporter) accepted(sent, respBody []byte) Outcome {
	out := Outcome{Result: Accepted, StatusCode: http.StatusOK}
	var ack models.StatusResponse
	if err := json.Unmarshal(respBody, &ack); err != nil {
		r.log.Warn("Unreadable acknowledgement from Newrelic", "body", string(respBody), "err", err)
		return out
	}
	out.Status = ack.Status
	r.log.Info("Report payload", "payload", json.RawMessage(sent))
	r.log.Info("Send datas to Newrelic", "status", ack.Status)
	return out
}

func (r *Reporter) rejected(code int, respBody []byte) Outcome {
	out := Outcome{Result: Rejected, StatusCode: code}
	var errResp models.ErrorResponse
	if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
		out.Reason = errResp.Error
		r.log.Error(errResp.Error, "status_code", code)
		return out
	}
	out.Reason = string(respBody)
	out.RawBody = true
	logger.Critical(r.log, out.Reason, "status_code", code)
	return out
}
