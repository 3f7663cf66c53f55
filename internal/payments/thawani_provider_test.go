package payments

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestProvider(t *testing.T, handler http.Handler) (*ThawaniProvider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	provider, err := NewThawaniProvider(ThawaniProviderConfig{
		BaseURL:         server.URL,
		CheckoutBaseURL: "https://uatcheckout.thawani.om/pay",
		APIKey:          "sk_test",
		PublishableKey:  "pk_test",
		HTTPClient:      server.Client(),
	})
	if err != nil {
		t.Fatalf("NewThawaniProvider returned error: %v", err)
	}
	return provider, server
}

func TestCreateSessionSuccess(t *testing.T) {
	var gotBody map[string]any
	provider, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/checkout/session" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("thawani-api-key"); got != "sk_test" {
			t.Errorf("expected api key header, got %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":     true,
			"code":        2004,
			"description": "Session generated successfully",
			"data": map[string]any{
				"session_id":          "checkout_123",
				"client_reference_id": "ord_01ABC",
				"payment_status":      "unpaid",
				"total_amount":        12600,
				"mode":                "payment",
			},
		})
	}))

	session, err := provider.CreateSession(context.Background(), CreateSessionRequest{
		ClientReferenceID: "ord_01ABC",
		Products: []SessionProduct{
			{Name: "شيلة فرنسية", Quantity: 2, UnitAmount: 6250},
		},
		SuccessURL: "https://shop.example.com/payment-success",
		CancelURL:  "https://shop.example.com/payment-failed",
		Metadata:   map[string]any{"email": "maha@example.com"},
	})
	if err != nil {
		t.Fatalf("CreateSession returned error: %v", err)
	}
	if session.SessionID != "checkout_123" {
		t.Fatalf("unexpected session id %q", session.SessionID)
	}
	if session.PaymentStatus != PaymentStatusUnpaid {
		t.Fatalf("unexpected payment status %q", session.PaymentStatus)
	}
	if gotBody["mode"] != "payment" {
		t.Errorf("expected payment mode, got %v", gotBody["mode"])
	}
	if gotBody["client_reference_id"] != "ord_01ABC" {
		t.Errorf("unexpected reference %v", gotBody["client_reference_id"])
	}
	products, ok := gotBody["products"].([]any)
	if !ok || len(products) != 1 {
		t.Fatalf("expected one wire product, got %v", gotBody["products"])
	}
}

func TestCreateSessionMissingSessionID(t *testing.T) {
	provider, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":     true,
			"code":        2004,
			"description": "ok",
			"data":        map[string]any{"payment_status": "unpaid"},
		})
	}))

	_, err := provider.CreateSession(context.Background(), CreateSessionRequest{
		ClientReferenceID: "ord_01ABC",
		Products:          []SessionProduct{{Name: "شيلة", Quantity: 1, UnitAmount: 1000}},
	})
	if !errors.Is(err, ErrSessionNotCreated) {
		t.Fatalf("expected ErrSessionNotCreated, got %v", err)
	}
}

func TestCreateSessionGatewayRejection(t *testing.T) {
	provider, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success":     false,
			"code":        4001,
			"description": "invalid unit amount",
		})
	}))

	_, err := provider.CreateSession(context.Background(), CreateSessionRequest{
		ClientReferenceID: "ord_01ABC",
		Products:          []SessionProduct{{Name: "شيلة", Quantity: 1, UnitAmount: 1000}},
	})
	if err == nil || !strings.Contains(err.Error(), "invalid unit amount") {
		t.Fatalf("expected rejection error with description, got %v", err)
	}
}

func TestCreateSessionValidatesInput(t *testing.T) {
	provider, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		t.Error("gateway should not be called for invalid input")
	}))

	cases := []CreateSessionRequest{
		{Products: []SessionProduct{{Name: "x", Quantity: 1, UnitAmount: 100}}},
		{ClientReferenceID: "ord_1"},
		{ClientReferenceID: "ord_1", Products: []SessionProduct{{Name: "", Quantity: 1, UnitAmount: 100}}},
		{ClientReferenceID: "ord_1", Products: []SessionProduct{{Name: "x", Quantity: 0, UnitAmount: 100}}},
		{ClientReferenceID: "ord_1", Products: []SessionProduct{{Name: "x", Quantity: 1, UnitAmount: 0}}},
	}
	for i, req := range cases {
		if _, err := provider.CreateSession(context.Background(), req); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestListSessions(t *testing.T) {
	provider, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout/session/" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("limit"); got != "20" {
			t.Errorf("unexpected limit %q", got)
		}
		if got := r.URL.Query().Get("skip"); got != "0" {
			t.Errorf("unexpected skip %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"code":    2000,
			"data": []map[string]any{
				{"session_id": "sess_b", "client_reference_id": "ord_b", "payment_status": "paid", "total_amount": 10100},
				{"session_id": "sess_a", "client_reference_id": "ord_a", "payment_status": "unpaid", "total_amount": 5000},
			},
		})
	}))

	sessions, err := provider.ListSessions(context.Background(), 20, 0)
	if err != nil {
		t.Fatalf("ListSessions returned error: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}
	if sessions[0].SessionID != "sess_b" || !sessions[0].Paid() {
		t.Fatalf("unexpected first session %+v", sessions[0])
	}
}

func TestGetSessionNotFound(t *testing.T) {
	provider, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	if _, err := provider.GetSession(context.Background(), "missing"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestGetSessionDetail(t *testing.T) {
	provider, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/checkout/session/sess_123" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"code":    2000,
			"data": map[string]any{
				"session_id":          "sess_123",
				"client_reference_id": "ord_z",
				"payment_status":      "PAID",
				"total_amount":        10100,
				"metadata":            map[string]any{"shippingFee": 2},
			},
		})
	}))

	session, err := provider.GetSession(context.Background(), "sess_123")
	if err != nil {
		t.Fatalf("GetSession returned error: %v", err)
	}
	if !session.Paid() {
		t.Fatalf("expected normalised paid status, got %q", session.PaymentStatus)
	}
	if session.Metadata["shippingFee"] == nil {
		t.Fatalf("expected metadata to survive decode, got %v", session.Metadata)
	}
}

func TestPaymentLink(t *testing.T) {
	provider, _ := newTestProvider(t, http.NewServeMux())

	link := provider.PaymentLink("sess_123")
	want := "https://uatcheckout.thawani.om/pay/sess_123?key=pk_test"
	if link != want {
		t.Fatalf("PaymentLink = %q, want %q", link, want)
	}
	if provider.PaymentLink("  ") != "" {
		t.Fatal("expected empty link for blank session id")
	}
}
