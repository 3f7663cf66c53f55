package payments

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
)

const (
	apiKeyHeader    = "thawani-api-key"
	sessionMode     = "payment"
	maxResponseSize = 1 << 20
)

// HTTPDoer abstracts the HTTP client so tests can stub transport behaviour.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ThawaniProviderConfig configures the hosted-checkout gateway adapter.
type ThawaniProviderConfig struct {
	// BaseURL is the gateway API root, e.g. https://uatcheckout.thawani.om/api/v1.
	BaseURL string
	// CheckoutBaseURL is the hosted payment page root used to build payment links.
	CheckoutBaseURL string
	// APIKey is the server-side key sent on every request.
	APIKey string
	// PublishableKey is appended to payment links for the hosted page.
	PublishableKey string
	// HTTPClient overrides the transport, primarily for tests.
	HTTPClient HTTPDoer
	// Logger receives structured diagnostic events.
	Logger func(context.Context, string, map[string]any)
}

// ThawaniProvider implements Provider over the gateway's REST API.
type ThawaniProvider struct {
	baseURL         string
	checkoutBaseURL string
	apiKey          string
	publishableKey  string
	client          HTTPDoer
	logger          func(context.Context, string, map[string]any)
}

// NewThawaniProvider validates the configuration and builds the adapter.
func NewThawaniProvider(cfg ThawaniProviderConfig) (*ThawaniProvider, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("thawani provider: base url is required")
	}
	checkoutBaseURL := strings.TrimRight(strings.TrimSpace(cfg.CheckoutBaseURL), "/")
	if checkoutBaseURL == "" {
		return nil, errors.New("thawani provider: checkout base url is required")
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("thawani provider: api key is required")
	}
	publishableKey := strings.TrimSpace(cfg.PublishableKey)
	if publishableKey == "" {
		return nil, errors.New("thawani provider: publishable key is required")
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &ThawaniProvider{
		baseURL:         baseURL,
		checkoutBaseURL: checkoutBaseURL,
		apiKey:          apiKey,
		publishableKey:  publishableKey,
		client:          client,
		logger:          logger,
	}, nil
}

type apiEnvelope struct {
	Success     bool            `json:"success"`
	Code        int             `json:"code"`
	Description string          `json:"description"`
	Data        json.RawMessage `json:"data"`
}

type sessionPayload struct {
	SessionID         string         `json:"session_id"`
	ClientReferenceID string         `json:"client_reference_id"`
	PaymentStatus     string         `json:"payment_status"`
	TotalAmount       int64          `json:"total_amount"`
	Mode              string         `json:"mode"`
	Metadata          map[string]any `json:"metadata"`
}

type sessionProductPayload struct {
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
	UnitAmount int64  `json:"unit_amount"`
}

type createSessionPayload struct {
	ClientReferenceID string                  `json:"client_reference_id"`
	Mode              string                  `json:"mode"`
	Products          []sessionProductPayload `json:"products"`
	SuccessURL        string                  `json:"success_url"`
	CancelURL         string                  `json:"cancel_url"`
	Metadata          map[string]any          `json:"metadata,omitempty"`
}

// CreateSession opens a hosted checkout session for the supplied charge lines.
func (p *ThawaniProvider) CreateSession(ctx context.Context, req CreateSessionRequest) (Session, error) {
	reference := strings.TrimSpace(req.ClientReferenceID)
	if reference == "" {
		return Session{}, fmt.Errorf("%w: client reference id is required", ErrInvalidInput)
	}
	if len(req.Products) == 0 {
		return Session{}, fmt.Errorf("%w: at least one product is required", ErrInvalidInput)
	}

	products := make([]sessionProductPayload, 0, len(req.Products))
	for idx, product := range req.Products {
		name := strings.TrimSpace(product.Name)
		if name == "" {
			return Session{}, fmt.Errorf("%w: product %d name is required", ErrInvalidInput, idx)
		}
		if product.Quantity <= 0 {
			return Session{}, fmt.Errorf("%w: product %d quantity must be positive", ErrInvalidInput, idx)
		}
		if product.UnitAmount <= 0 {
			return Session{}, fmt.Errorf("%w: product %d unit amount must be positive", ErrInvalidInput, idx)
		}
		products = append(products, sessionProductPayload{
			Name:       name,
			Quantity:   product.Quantity,
			UnitAmount: product.UnitAmount,
		})
	}

	payload := createSessionPayload{
		ClientReferenceID: reference,
		Mode:              sessionMode,
		Products:          products,
		SuccessURL:        strings.TrimSpace(req.SuccessURL),
		CancelURL:         strings.TrimSpace(req.CancelURL),
		Metadata:          req.Metadata,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Session{}, fmt.Errorf("thawani provider: encode session request: %w", err)
	}

	envelope, err := p.call(ctx, http.MethodPost, "/checkout/session", bytes.NewReader(body))
	if err != nil {
		return Session{}, err
	}

	session, err := decodeSession(envelope.Data)
	if err != nil {
		return Session{}, fmt.Errorf("thawani provider: decode session: %w", err)
	}
	if session.SessionID == "" {
		p.logger(ctx, "thawani_session_missing_id", map[string]any{
			"reference":   reference,
			"code":        envelope.Code,
			"description": envelope.Description,
		})
		return Session{}, ErrSessionNotCreated
	}
	return session, nil
}

// ListSessions returns one page of recent sessions, newest first, as reported
// by the gateway.
func (p *ThawaniProvider) ListSessions(ctx context.Context, limit, skip int) ([]Session, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", ErrInvalidInput)
	}
	if skip < 0 {
		return nil, fmt.Errorf("%w: skip cannot be negative", ErrInvalidInput)
	}

	path := "/checkout/session/?limit=" + strconv.Itoa(limit) + "&skip=" + strconv.Itoa(skip)
	envelope, err := p.call(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var payloads []json.RawMessage
	if err := json.Unmarshal(envelope.Data, &payloads); err != nil {
		return nil, fmt.Errorf("thawani provider: decode session page: %w", err)
	}

	sessions := make([]Session, 0, len(payloads))
	for _, raw := range payloads {
		session, err := decodeSession(raw)
		if err != nil {
			return nil, fmt.Errorf("thawani provider: decode session page entry: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

// GetSession fetches the full session detail for the supplied identifier.
func (p *ThawaniProvider) GetSession(ctx context.Context, sessionID string) (Session, error) {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return Session{}, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}

	envelope, err := p.call(ctx, http.MethodGet, "/checkout/session/"+url.PathEscape(id), nil)
	if err != nil {
		return Session{}, err
	}

	session, err := decodeSession(envelope.Data)
	if err != nil {
		return Session{}, fmt.Errorf("thawani provider: decode session: %w", err)
	}
	if session.SessionID == "" {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

// PaymentLink builds the hosted payment page URL for a session.
func (p *ThawaniProvider) PaymentLink(sessionID string) string {
	id := strings.TrimSpace(sessionID)
	if id == "" {
		return ""
	}
	return p.checkoutBaseURL + "/" + url.PathEscape(id) + "?key=" + url.QueryEscape(p.publishableKey)
}

func (p *ThawaniProvider) call(ctx context.Context, method, path string, body io.Reader) (apiEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, p.baseURL+path, body)
	if err != nil {
		return apiEnvelope{}, fmt.Errorf("thawani provider: build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, p.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return apiEnvelope{}, fmt.Errorf("thawani provider: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return apiEnvelope{}, fmt.Errorf("thawani provider: read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return apiEnvelope{}, ErrSessionNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		p.logger(ctx, "thawani_gateway_error", map[string]any{
			"method": method,
			"path":   path,
			"status": resp.StatusCode,
			"body":   string(raw),
		})
		return apiEnvelope{}, fmt.Errorf("thawani provider: %s %s: gateway status %d", method, path, resp.StatusCode)
	}

	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return apiEnvelope{}, fmt.Errorf("thawani provider: decode envelope: %w", err)
	}
	if !envelope.Success {
		p.logger(ctx, "thawani_gateway_rejected", map[string]any{
			"method":      method,
			"path":        path,
			"code":        envelope.Code,
			"description": envelope.Description,
		})
		if envelope.Code == http.StatusNotFound {
			return apiEnvelope{}, ErrSessionNotFound
		}
		return apiEnvelope{}, fmt.Errorf("thawani provider: gateway rejected request: %s (code %d)", envelope.Description, envelope.Code)
	}
	return envelope, nil
}

func decodeSession(data json.RawMessage) (Session, error) {
	if len(data) == 0 || string(data) == "null" {
		return Session{}, nil
	}

	var payload sessionPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return Session{}, err
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		raw = nil
	}

	return Session{
		SessionID:         strings.TrimSpace(payload.SessionID),
		ClientReferenceID: strings.TrimSpace(payload.ClientReferenceID),
		PaymentStatus:     PaymentStatus(strings.ToLower(strings.TrimSpace(payload.PaymentStatus))),
		TotalAmount:       payload.TotalAmount,
		Mode:              payload.Mode,
		Metadata:          payload.Metadata,
		Raw:               raw,
	}, nil
}
