package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yashrajoria/equipment-workflow-service/auth"
	apperrors "github.com/yashrajoria/equipment-workflow-service/errors"
	"github.com/yashrajoria/equipment-workflow-service/logger"

	"go.uber.org/zap"
)

// ERPClient is the one wrapper every ERP call goes through. It always
// decodes into a typed value and maps failures onto the error taxonomy.
type ERPClient struct {
	baseURL string
	client  *http.Client
	service auth.TokenStore
}

// NewERPClient creates a client. serviceTokens authenticates calls made
// without a caller token in the context; it may be nil.
func NewERPClient(baseURL string, timeout time.Duration, serviceTokens auth.TokenStore) *ERPClient {
	return &ERPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		service: serviceTokens,
	}
}

// Do sends body (JSON encoded when non-nil) and decodes the response into out.
func (c *ERPClient) Do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return apperrors.Unknown("Failed to encode request", err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return apperrors.Unknown("Failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.tokenFor(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		logger.Warn(ctx, "erp request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return apperrors.Unknown("ERP request failed", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperrors.Unknown("Failed to read ERP response", err)
	}

	logger.Debug(ctx, "erp request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	if resp.StatusCode >= 400 {
		return apperrors.FromStatus(resp.StatusCode, upstreamMessage(resp.StatusCode, payload))
	}
	if out == nil || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrapEnvelope(payload), out); err != nil {
		return apperrors.Unknown("Unexpected ERP response", err)
	}
	return nil
}

func (c *ERPClient) tokenFor(ctx context.Context) string {
	if store, ok := auth.TokenStoreFrom(ctx); ok {
		if token := store.GetToken(); token != "" {
			return token
		}
	}
	if c.service != nil {
		return c.service.GetToken()
	}
	return ""
}

// unwrapEnvelope strips a top-level {"data": ...} wrapper once.
func unwrapEnvelope(payload []byte) []byte {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(payload, &envelope); err != nil {
		return payload
	}
	if data, ok := envelope["data"]; ok && len(data) > 0 && string(data) != "null" {
		return data
	}
	return payload
}

func upstreamMessage(status int, payload []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("ERP returned status %d", status)
}

func segment(s string) string {
	return url.PathEscape(s)
}
