package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/fleetcheck/internal/api"
	"github.com/dmitrijs2005/fleetcheck/internal/common"
)

const maxErrorBody = 4 << 10

// HTTPClient talks to the fleetcheck REST backend. Requests outside /auth
// carry the stored access token; an expired token is refreshed once per
// request and the request is replayed.
type HTTPClient struct {
	baseURL string
	hc      *http.Client
	raw     *http.Client
	tokens  TokenStore

	refreshMu sync.Mutex
}

func NewHTTPClient(baseURL string, tokens TokenStore, timeout time.Duration) (*HTTPClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}

	c := &HTTPClient{
		baseURL: strings.TrimRight(u.String(), "/"),
		raw:     &http.Client{Timeout: timeout},
		tokens:  tokens,
	}
	c.hc = &http.Client{
		Timeout:   timeout,
		Transport: &tokenTransport{base: http.DefaultTransport, c: c},
	}
	return c, nil
}

// tokenTransport is the HTTP counterpart of a unary auth interceptor.
type tokenTransport struct {
	base http.RoundTripper
	c    *HTTPClient
}

func (t *tokenTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	access, _, err := t.c.tokens.Tokens(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(withBearer(req, access))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	msg, body := peekError(resp)
	if msg != common.ErrTokenExpired.Error() {
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return resp, nil
	}

	fresh, err := t.c.refresh(ctx, access)
	if err != nil {
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return resp, nil
	}

	retry, err := rewind(req)
	if err != nil {
		return nil, err
	}
	return t.base.RoundTrip(withBearer(retry, fresh))
}

func withBearer(req *http.Request, token string) *http.Request {
	r := req.Clone(req.Context())
	if token != "" {
		r.Header.Set(common.AuthorizationHeaderName, common.BearerPrefix+token)
	}
	return r
}

func rewind(req *http.Request) (*http.Request, error) {
	r := req.Clone(req.Context())
	if req.Body == nil || req.GetBody == nil {
		return r, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	r.Body = body
	return r, nil
}

// peekError consumes a (small) error body and returns its message together
// with the raw bytes so the body can be restored.
func peekError(resp *http.Response) (string, []byte) {
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var e api.ErrorResponse
	if err := json.Unmarshal(body, &e); err != nil {
		return strings.TrimSpace(string(body)), body
	}
	return e.Error, body
}

// refresh exchanges the refresh token for a new pair. Concurrent callers that
// saw the same stale token share one exchange.
func (c *HTTPClient) refresh(ctx context.Context, stale string) (string, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	access, refresh, err := c.tokens.Tokens(ctx)
	if err != nil {
		return "", err
	}
	if access != stale && access != "" {
		return access, nil
	}
	if refresh == "" {
		return "", ErrNoSession
	}

	var pair api.TokenPair
	err = c.send(ctx, c.raw, http.MethodPost, "/auth/refresh", nil, api.RefreshRequest{RefreshToken: refresh}, &pair)
	if err != nil {
		return "", err
	}
	if err := c.tokens.SaveTokens(ctx, pair.AccessToken, pair.RefreshToken); err != nil {
		return "", err
	}
	return pair.AccessToken, nil
}

func (c *HTTPClient) Register(ctx context.Context, username, password string) error {
	return c.send(ctx, c.raw, http.MethodPost, "/auth/register", nil, api.Credentials{Username: username, Password: password}, nil)
}

// Login authenticates and stores the issued token pair.
func (c *HTTPClient) Login(ctx context.Context, username, password string) error {
	var pair api.TokenPair
	if err := c.send(ctx, c.raw, http.MethodPost, "/auth/login", nil, api.Credentials{Username: username, Password: password}, &pair); err != nil {
		return err
	}
	return c.tokens.SaveTokens(ctx, pair.AccessToken, pair.RefreshToken)
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	return c.send(ctx, c.raw, http.MethodGet, "/ping", nil, nil, nil)
}

func (c *HTTPClient) PhotoUploadURL(ctx context.Context, executionID, itemID string) (api.PhotoUploadResponse, error) {
	var out api.PhotoUploadResponse
	path := "/" + api.CollectionExecutions + "/" + url.PathEscape(executionID) + "/results/" + url.PathEscape(itemID) + "/photo"
	err := c.send(ctx, c.hc, http.MethodPost, path, nil, nil, &out)
	return out, err
}

func (c *HTTPClient) send(ctx context.Context, hc *http.Client, method, path string, query url.Values, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	u := c.baseURL + common.APIPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return mapStatus(resp)
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrDecode, method, path, err)
	}
	return nil
}

func mapStatus(resp *http.Response) error {
	msg, _ := peekError(resp)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	var base error
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		base = ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		base = ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		base = ErrConflict
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusUnprocessableEntity:
		base = ErrBadRequest
	case resp.StatusCode >= 500:
		base = ErrUnavailable
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, msg)
	}
	return fmt.Errorf("%w: %s", base, msg)
}

// RESTCollection is the Collection implementation for /api/v1/{name}.
type RESTCollection[D any] struct {
	c    *HTTPClient
	name string
}

func (r *RESTCollection[D]) List(ctx context.Context, page, size int) (api.Page[D], error) {
	var out api.Page[D]
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))

	if err := r.c.send(ctx, r.c.hc, http.MethodGet, "/"+r.name, q, nil, &out); err != nil {
		return api.Page[D]{}, fmt.Errorf("list %s page %d: %w", r.name, page, err)
	}
	return out, nil
}

func (r *RESTCollection[D]) Create(ctx context.Context, dto D) (D, error) {
	var out D
	if err := r.c.send(ctx, r.c.hc, http.MethodPost, "/"+r.name, nil, dto, &out); err != nil {
		var zero D
		return zero, fmt.Errorf("create %s: %w", r.name, err)
	}
	return out, nil
}

func (r *RESTCollection[D]) Update(ctx context.Context, id string, dto D) (D, error) {
	var out D
	if err := r.c.send(ctx, r.c.hc, http.MethodPut, "/"+r.name+"/"+url.PathEscape(id), nil, dto, &out); err != nil {
		var zero D
		return zero, fmt.Errorf("update %s[%s]: %w", r.name, id, err)
	}
	return out, nil
}

// Collections wires one RESTCollection per synchronizable collection.
type Collections struct {
	VehicleTypes  Collection[api.VehicleTypeDTO]
	VehicleGroups Collection[api.VehicleGroupDTO]
	Vehicles      Collection[api.VehicleDTO]
	Checklists    Collection[api.ChecklistDTO]
	Executions    Collection[api.ChecklistExecutionDTO]
}

func NewCollections(c *HTTPClient) *Collections {
	return &Collections{
		VehicleTypes:  &RESTCollection[api.VehicleTypeDTO]{c: c, name: api.CollectionVehicleTypes},
		VehicleGroups: &RESTCollection[api.VehicleGroupDTO]{c: c, name: api.CollectionVehicleGroups},
		Vehicles:      &RESTCollection[api.VehicleDTO]{c: c, name: api.CollectionVehicles},
		Checklists:    &RESTCollection[api.ChecklistDTO]{c: c, name: api.CollectionChecklists},
		Executions:    &RESTCollection[api.ChecklistExecutionDTO]{c: c, name: api.CollectionExecutions},
	}
}

// IsRetryable reports whether err is a transport-level failure worth retrying
// on the next scheduled pass.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrUnavailable) || errors.Is(err, context.DeadlineExceeded)
}
