package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// ============================================================
// HTTP helpers for POST, PATCH, DELETE
//
// Mutations run through the circuit breaker but are never retried:
// the caller cannot tell "already applied" from "failed".
// All three ask PostgREST for the affected rows back
// (Prefer: return=representation) so the stores can tell a vanished
// row apart from a successful write.
// ============================================================

func (c *Client) doPost(ctx context.Context, table string, data map[string]any) ([]byte, error) {
	var body []byte
	_, err := c.cb.Execute(func() (any, error) {
		var postErr error
		body, postErr = c.doWrite(ctx, http.MethodPost, table, data)
		return nil, postErr
	})
	return body, err
}

func (c *Client) doPatch(ctx context.Context, path string, data map[string]any) ([]byte, error) {
	var body []byte
	_, err := c.cb.Execute(func() (any, error) {
		var patchErr error
		body, patchErr = c.doWrite(ctx, http.MethodPatch, path, data)
		return nil, patchErr
	})
	return body, err
}

func (c *Client) doDelete(ctx context.Context, path string) ([]byte, error) {
	var body []byte
	_, err := c.cb.Execute(func() (any, error) {
		var delErr error
		body, delErr = c.doWrite(ctx, http.MethodDelete, path, nil)
		return nil, delErr
	})
	return body, err
}

func (c *Client) doWrite(ctx context.Context, method, path string, data map[string]any) ([]byte, error) {
	url := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, path)

	var reqBody *bytes.Reader
	if data != nil {
		jsonBody, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(jsonBody)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	req.Header.Set("Prefer", "return=representation")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("supabase: write request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, err
	}
	defer resp.Body.Close()

	body, err := readBody(resp)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("supabase: write non-2xx",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("body", string(body)),
		)
		return nil, fmt.Errorf("supabase %s %s returned %d: %s", method, path, resp.StatusCode, string(body))
	}

	c.logger.Debug("supabase: write OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)
	return body, nil
}

func readBody(resp *http.Response) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
