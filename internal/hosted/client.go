package hosted

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/autoescuela/backend/internal/config"
)

// Client talks to the Supabase-style hosted backend's table API (PostgREST
// dialect). It is the first stop for credential lookups; handlers fall back
// to direct SQL when the hosted side answers with a permission-shaped error.
type Client struct {
	baseURL    string
	anonKey    string
	serviceKey string
	httpClient *http.Client
}

func New(cfg config.HostedConfig) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		anonKey:    cfg.AnonKey,
		serviceKey: cfg.ServiceKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.key() != ""
}

// key prefers the service key; the anon key only works for tables whose
// row-level security allows anonymous reads.
func (c *Client) key() string {
	if c.serviceKey != "" {
		return c.serviceKey
	}
	return c.anonKey
}

// APIError is a non-2xx answer from the hosted backend.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("hosted api: status %d: %s", e.Status, e.Body)
}

// UserRecord is the minimal projection the authentication path needs. Field
// extraction tolerates the same legacy column names the SQL side does.
type UserRecord struct {
	ID      int
	Nombre  string
	Correo  string
	Secreto string
}

// The hosted usuarios table follows whichever naming era its deployment is
// from, same as the SQL side. The lookup filter walks the candidate names in
// order; an unknown-column answer from the table API moves on to the next.
var hostedEmailColumns = []string{"correo", "email", "usuario"}

// FetchUserByEmail returns the matching row, or (nil, nil) when the table
// exists but holds no such user.
func (c *Client) FetchUserByEmail(ctx context.Context, email string) (*UserRecord, error) {
	var lastErr error
	for _, column := range hostedEmailColumns {
		query := url.Values{}
		query.Set("select", "*")
		query.Set(column, "eq."+email)
		query.Set("limit", "1")

		body, err := c.get(ctx, "/rest/v1/usuarios?"+query.Encode())
		if err != nil {
			if isUnknownColumn(err) {
				lastErr = err
				continue
			}
			return nil, err
		}

		var rows []map[string]any
		if err := json.Unmarshal(body, &rows); err != nil {
			return nil, fmt.Errorf("hosted api: decoding usuarios response: %w", err)
		}
		if len(rows) == 0 {
			return nil, nil
		}

		record := userRecordFromRow(rows[0])
		return &record, nil
	}
	return nil, lastErr
}

// isUnknownColumn matches the table API's answer for a filter on a column the
// table does not have (42703, undefined_column).
func isUnknownColumn(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Status != http.StatusBadRequest && apiErr.Status != http.StatusNotFound {
		return false
	}
	body := strings.ToLower(apiErr.Body)
	return strings.Contains(body, "42703") || strings.Contains(body, "does not exist")
}

// Health probes the table API root with the configured key.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.get(ctx, "/rest/v1/")
	return err
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if !c.Configured() {
		return nil, errors.New("hosted api: not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.key())
	req.Header.Set("Authorization", "Bearer "+c.key())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return body, nil
}

// IsPermissionDenied reports whether an error looks like the hosted backend
// refusing access (missing grants or row-level security), which is the signal
// to fall back to direct SQL.
func IsPermissionDenied(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden {
			return true
		}
	}

	message := strings.ToLower(err.Error())
	for _, marker := range []string{"permission denied", "row-level security", "row level security", "insufficient_privilege"} {
		if strings.Contains(message, marker) {
			return true
		}
	}
	return false
}

func userRecordFromRow(row map[string]any) UserRecord {
	return UserRecord{
		ID:      fieldInt(row, "id_usuario", "id"),
		Nombre:  fieldString(row, "nombre", "nombre_completo", "usuario"),
		Correo:  fieldString(row, "correo", "email", "usuario"),
		Secreto: fieldString(row, "contrasena", "password", "clave"),
	}
}

func fieldString(row map[string]any, candidates ...string) string {
	for _, key := range candidates {
		if value, ok := row[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}

func fieldInt(row map[string]any, candidates ...string) int {
	for _, key := range candidates {
		switch value := row[key].(type) {
		case float64:
			return int(value)
		case int:
			return value
		}
	}
	return 0
}
