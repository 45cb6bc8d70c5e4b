package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/tripsync/internal/credentials"
	"github.com/MrSnakeDoc/tripsync/internal/domain"
	"github.com/MrSnakeDoc/tripsync/internal/logger"
	"github.com/MrSnakeDoc/tripsync/internal/utils"
)

const maxBodyBytes = 8 << 20

// Options configures the HTTP gateway.
type Options struct {
	BaseURL   string        // ex: "https://api.example.com/api"
	Timeout   time.Duration // per request (ex: 15s)
	UserAgent string        // optional
	Client    *http.Client  // optional, overrides Timeout
}

// HTTPGateway talks JSON to the REST backend.
type HTTPGateway struct {
	base      *url.URL
	client    *http.Client
	creds     credentials.Provider
	logger    logger.Logger
	userAgent string
}

// NewHTTP creates a gateway for opts.BaseURL.
func NewHTTP(opts Options, creds credentials.Provider, log logger.Logger) (*HTTPGateway, error) {
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", opts.BaseURL)
	}

	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "tripsync"
	}

	return &HTTPGateway{
		base:      base,
		client:    client,
		creds:     creds,
		logger:    log,
		userAgent: ua,
	}, nil
}

// FetchCollection requests one page of kind.
func (g *HTTPGateway) FetchCollection(ctx context.Context, kind string, params domain.Params) (*domain.Page, error) {
	op := "fetch " + kind
	q := url.Values{}
	for k, v := range params {
		q.Set(k, v)
	}

	body, err := g.do(ctx, op, http.MethodGet, g.endpoint(kind), q, nil, "")
	if err != nil {
		return nil, err
	}

	page, err := decodePage(body, params)
	if err != nil {
		return nil, domain.NewError(domain.KindServerError, op, "malformed page", err)
	}
	return page, nil
}

// Mutate applies op to one entity of kind.
func (g *HTTPGateway) Mutate(ctx context.Context, kind string, op Op, payload MutatePayload) (*MutateResult, error) {
	name := fmt.Sprintf("%s %s", op, kind)
	body, err := g.do(ctx, name, http.MethodPost, g.endpoint(kind, string(op)), nil, payload, "")
	if err != nil {
		return nil, err
	}

	var res MutateResult
	if len(bytes.TrimSpace(body)) == 0 {
		// 204 and empty 200s are successes.
		return &MutateResult{Success: true}, nil
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, domain.NewError(domain.KindServerError, name, "malformed response", err)
	}
	return &res, nil
}

// Submit posts a non-idempotent payload. The booking code, when present,
// is also sent as Idempotency-Key so a cooperating backend can drop replays.
func (g *HTTPGateway) Submit(ctx context.Context, kind string, payload map[string]any) (*SubmitResult, error) {
	op := "submit " + kind
	idemKey, _ := payload["code"].(string)

	body, err := g.do(ctx, op, http.MethodPost, g.endpoint(kind), nil, payload, idemKey)
	if err != nil {
		return nil, err
	}

	var res SubmitResult
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, domain.NewError(domain.KindServerError, op, "malformed response", err)
	}
	return &res, nil
}

func (g *HTTPGateway) endpoint(parts ...string) *url.URL {
	u := *g.base
	segs := make([]string, 0, len(parts))
	for _, p := range parts {
		segs = append(segs, url.PathEscape(p))
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.Join(segs, "/")
	return &u
}

func (g *HTTPGateway) do(ctx context.Context, op, method string, u *url.URL, q url.Values, payload any, idemKey string) ([]byte, error) {
	token, err := g.creds.Token(ctx)
	if err != nil {
		return nil, domain.NewError(domain.KindUnauthenticated, op, "no credential available", err)
	}

	if q != nil {
		u.RawQuery = q.Encode()
	}

	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to marshal payload: %w", op, err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to build request: %w", op, err)
	}

	reqID := uuid.NewString()
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("User-Agent", g.userAgent)
	req.Header.Set("X-Request-ID", reqID)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	start := time.Now()
	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("gateway request failed",
			logger.String("op", op),
			logger.String("request_id", reqID),
			logger.Error(err))
		return nil, domain.NewError(domain.KindNetworkError, op, "", err)
	}
	defer utils.Close(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, domain.NewError(domain.KindNetworkError, op, "failed to read response", err)
	}

	g.logger.Debug("gateway request",
		logger.String("op", op),
		logger.String("method", method),
		logger.String("url", u.Redacted()),
		logger.Int("status", resp.StatusCode),
		logger.Duration("duration", time.Since(start)),
		logger.String("request_id", reqID))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}
	return nil, classify(op, resp.StatusCode, body)
}

type errorBody struct {
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
}

// classify maps an HTTP status to the error taxonomy.
func classify(op string, status int, body []byte) error {
	var eb errorBody
	_ = json.Unmarshal(body, &eb)
	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}
	if msg == "" {
		msg = http.StatusText(status)
	}

	kind := domain.KindServerError
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = domain.KindUnauthenticated
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		kind = domain.KindValidation
	case status == http.StatusNotFound:
		kind = domain.KindNotFound
	}

	e := domain.NewError(kind, op, msg, fmt.Errorf("http status %d", status))
	if kind == domain.KindValidation {
		e.Fields = eb.Errors
	}
	return e
}

// pageEnvelope covers the pagination shapes the backend returns.
type pageEnvelope struct {
	Data       []domain.Raw `json:"data"`
	Rows       []domain.Raw `json:"rows"`
	Items      []domain.Raw `json:"items"`
	Total      *float64     `json:"total"`
	TotalCount *float64     `json:"total_count"`
	TotalPages *float64     `json:"totalPages"`
	TotalPgs   *float64     `json:"total_pages"`
	LastPage   *float64     `json:"last_page"`
}

func decodePage(body []byte, params domain.Params) (*domain.Page, error) {
	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	data := env.Data
	if data == nil {
		data = env.Rows
	}
	if data == nil {
		data = env.Items
	}
	if data == nil {
		return nil, errors.New("no data array in page")
	}

	page := &domain.Page{Data: data, Total: len(data)}
	if n := firstNumber(env.Total, env.TotalCount); n != nil {
		page.Total = int(*n)
	}

	if n := firstNumber(env.TotalPages, env.TotalPgs, env.LastPage); n != nil {
		page.TotalPages = int(*n)
	} else {
		perPage, _ := strconv.Atoi(params["per_page"])
		if perPage <= 0 {
			perPage = len(data)
		}
		page.TotalPages = 1
		if perPage > 0 && page.Total > perPage {
			page.TotalPages = int(math.Ceil(float64(page.Total) / float64(perPage)))
		}
	}
	if page.TotalPages < 1 {
		page.TotalPages = 1
	}
	return page, nil
}

func firstNumber(ns ...*float64) *float64 {
	for _, n := range ns {
		if n != nil {
			return n
		}
	}
	return nil
}
