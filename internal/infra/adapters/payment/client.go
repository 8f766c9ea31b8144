package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"telegram-digital-store/internal/domain"
	"telegram-digital-store/internal/domain/ports/adapter"
	"telegram-digital-store/internal/infra/metrics"
)

// idempotencyNamespace scopes generated keys to this service.
var idempotencyNamespace = uuid.MustParse("6f1c3a52-3f0e-4d53-9a2f-5a8e3f4c7d10")

// IdempotencyKey derives a stable key from parts. The same inputs always
// produce the same key, so a retried call is recognised by the provider.
func IdempotencyKey(parts ...string) string {
	return uuid.NewSHA1(idempotencyNamespace, []byte(strings.Join(parts, "|"))).String()
}

// createKey keys a payment creation by its attempt reference. Requests
// without one fall back to their content.
func createKey(req adapter.CreatePaymentRequest) string {
	if req.Reference != "" {
		return IdempotencyKey("create", req.Reference, req.Amount.StringFixed(2))
	}
	return IdempotencyKey("create", req.Amount.StringFixed(2), req.Description, req.ReturnURL)
}

func refundKey(req adapter.RefundRequest) string {
	return IdempotencyKey("refund", req.ProviderPaymentID, req.Amount.StringFixed(2), req.Reference)
}

// maxErrorBody bounds the provider body kept on GatewayError.
const maxErrorBody = 4 << 10

type httpClient struct {
	provider string
	baseURL  string
	client   *http.Client
	log      zerolog.Logger
	// decorate sets auth and provider specific headers.
	decorate func(req *http.Request)
}

// do sends a JSON request and decodes a 2xx JSON answer into out. Any
// transport failure or non-2xx answer becomes *domain.GatewayError.
func (c *httpClient) do(ctx context.Context, op, method, path string, in, out any, headers map[string]string) error {
	start := time.Now()
	err := c.roundTrip(ctx, op, method, path, in, out, headers)
	metrics.ObserveGatewayCall(c.provider, op, time.Since(start).Seconds(), err == nil)
	if err != nil {
		c.log.Warn().Err(err).Str("op", op).Dur("took", time.Since(start)).Msg("gateway call failed")
	}
	return err
}

func (c *httpClient) roundTrip(ctx context.Context, op, method, path string, in, out any, headers map[string]string) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return &domain.GatewayError{Provider: c.provider, Op: op, Err: err}
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.baseURL, "/")+path, body)
	if err != nil {
		return &domain.GatewayError{Provider: c.provider, Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.decorate != nil {
		c.decorate(req)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return &domain.GatewayError{Provider: c.provider, Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &domain.GatewayError{Provider: c.provider, Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return &domain.GatewayError{Provider: c.provider, Op: op, StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.GatewayError{Provider: c.provider, Op: op, StatusCode: resp.StatusCode, Body: string(raw),
			Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// equalSignature compares signatures in constant time.
func equalSignature(expected, got []byte) bool {
	return len(got) > 0 && hmac.Equal(expected, got)
}
