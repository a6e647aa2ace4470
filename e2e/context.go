package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	headerTenantID   = "X-Tenant-ID"
	headerAdminToken = "X-Admin-Token"
)

// TestContext carries one scenario's HTTP state against a running server.
type TestContext struct {
	baseURL    string
	adminToken string
	client     *http.Client

	tenantID   string
	lastStatus int
	lastBody   []byte
	saved      map[string]string
}

func NewTestContext(baseURL, adminToken string) *TestContext {
	return &TestContext{
		baseURL:    strings.TrimRight(baseURL, "/"),
		adminToken: adminToken,
		client:     &http.Client{Timeout: 30 * time.Second},
		saved:      map[string]string{},
	}
}

// Reset clears per-scenario state.
func (tc *TestContext) Reset() {
	tc.tenantID = ""
	tc.lastStatus = 0
	tc.lastBody = nil
	tc.saved = map[string]string{}
}

func (tc *TestContext) SetTenant(tenantID string) { tc.tenantID = tenantID }

func (tc *TestContext) POST(path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return tc.do(http.MethodPost, path, bytes.NewReader(raw), "application/json", false)
}

func (tc *TestContext) GET(path string) error {
	return tc.do(http.MethodGet, path, nil, "", false)
}

// AdminPOST sends body as is with the admin token.
func (tc *TestContext) AdminPOST(path, contentType string, body []byte) error {
	return tc.do(http.MethodPost, path, bytes.NewReader(body), contentType, true)
}

func (tc *TestContext) do(method, path string, body io.Reader, contentType string, admin bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, tc.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if tc.tenantID != "" {
		req.Header.Set(headerTenantID, tc.tenantID)
	}
	if admin {
		req.Header.Set(headerAdminToken, tc.adminToken)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) GetLastResponseStatus() int   { return tc.lastStatus }
func (tc *TestContext) GetLastResponseBody() []byte { return tc.lastBody }

// GetResponseField reads a dotted path such as "decision.status" from the
// last JSON response.
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var v any
	if err := json.Unmarshal(tc.lastBody, &v); err != nil {
		return nil, fmt.Errorf("response is not json: %w", err)
	}
	for _, part := range strings.Split(field, ".") {
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		if v, ok = obj[part]; !ok {
			return nil, fmt.Errorf("field %q not in response: %s", field, tc.lastBody)
		}
	}
	return v, nil
}

// Save remembers a value for later steps in the scenario.
func (tc *TestContext) Save(key, value string) { tc.saved[key] = value }

func (tc *TestContext) Saved(key string) (string, bool) {
	v, ok := tc.saved[key]
	return v, ok
}
