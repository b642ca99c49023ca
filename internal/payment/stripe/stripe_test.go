package stripe

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"
)

func TestNormalizeFillsDefaults(t *testing.T) {
	cfg := &Config{
		SecretKey:     " sk_test_123 ",
		WebhookSecret: " whsec_123 ",
		SuccessURL:    "https://example.com/checkout/success",
		CancelURL:     "https://example.com/checkout/cancel",
	}
	cfg.Normalize()
	if cfg.SecretKey != "sk_test_123" {
		t.Fatalf("unexpected secret key: %s", cfg.SecretKey)
	}
	if cfg.APIBaseURL != defaultAPIBaseURL {
		t.Fatalf("unexpected default api base url: %s", cfg.APIBaseURL)
	}
	if cfg.WebhookToleranceSeconds != defaultWebhookToleranceS {
		t.Fatalf("unexpected tolerance: %d", cfg.WebhookToleranceSeconds)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("validate config failed: %v", err)
	}
}

func TestCreateSessionBuildsLineItems(t *testing.T) {
	var gotForm map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form failed: %v", err)
		}
		gotForm = r.PostForm
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "cs_test_abc",
			"url":    "https://checkout.example.com/pay/cs_test_abc",
			"status": "open",
		})
	}))
	defer server.Close()

	cfg := &Config{
		SecretKey:  "sk_test_123",
		APIBaseURL: server.URL,
		SuccessURL: "https://example.com/success",
		CancelURL:  "https://example.com/cancel",
	}
	result, err := CreateSession(nil, cfg, CreateInput{
		PaymentNo: "PAY-1001",
		PaymentID: 1001,
		Currency:  "USD",
		LineItems: []LineItem{
			{Name: "All-Terrain 265/70R17", UnitAmount: "189.99", Quantity: 4},
			{Name: "Hub Centric Rings", UnitAmount: "12.50", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	if result.SessionID != "cs_test_abc" {
		t.Fatalf("unexpected session id: %s", result.SessionID)
	}
	if got := gotForm["line_items[0][price_data][unit_amount]"]; len(got) != 1 || got[0] != "18999" {
		t.Fatalf("unexpected first line unit amount: %v", got)
	}
	if got := gotForm["line_items[1][quantity]"]; len(got) != 1 || got[0] != "1" {
		t.Fatalf("unexpected second line quantity: %v", got)
	}
	if got := gotForm["metadata[payment_id]"]; len(got) != 1 || got[0] != "1001" {
		t.Fatalf("unexpected metadata payment id: %v", got)
	}
}

func TestCreateSessionCarriesDeadline(t *testing.T) {
	var gotForm map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parse form failed: %v", err)
		}
		gotForm = r.PostForm
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     "cs_test_abc",
			"url":    "https://checkout.example.com/pay/cs_test_abc",
			"status": "open",
		})
	}))
	defer server.Close()

	cfg := &Config{
		SecretKey:  "sk_test_123",
		APIBaseURL: server.URL,
		SuccessURL: "https://example.com/success",
		CancelURL:  "https://example.com/cancel",
	}
	deadline := time.Now().Add(2 * time.Hour)
	_, err := CreateSession(nil, cfg, CreateInput{
		PaymentNo: "PAY-1002",
		PaymentID: 1002,
		Amount:    "99.00",
		Currency:  "USD",
		ExpiresAt: &deadline,
	})
	if err != nil {
		t.Fatalf("create session failed: %v", err)
	}
	got := gotForm["expires_at"]
	if len(got) != 1 || got[0] != strconv.FormatInt(deadline.Unix(), 10) {
		t.Fatalf("unexpected session expiry: %v", got)
	}
}

func TestClampSessionExpiry(t *testing.T) {
	now := time.Unix(1760000000, 0)
	if got := clampSessionExpiry(now.Add(10*time.Minute), now); !got.Equal(now.Add(30 * time.Minute)) {
		t.Fatalf("short deadline must rise to the provider floor, got %v", got)
	}
	if got := clampSessionExpiry(now.Add(48*time.Hour), now); !got.Equal(now.Add(24 * time.Hour)) {
		t.Fatalf("long deadline must cap at the provider ceiling, got %v", got)
	}
	if got := clampSessionExpiry(now.Add(time.Hour), now); !got.Equal(now.Add(time.Hour)) {
		t.Fatalf("in-window deadline must pass through, got %v", got)
	}
}

func TestQueryPaymentSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id":             "cs_test_abc",
			"payment_status": "paid",
			"status":         "complete",
			"currency":       "usd",
			"amount_total":   45999,
			"created":        1760000000,
		})
	}))
	defer server.Close()

	cfg := &Config{SecretKey: "sk_test_123", APIBaseURL: server.URL}
	result, err := QueryPayment(nil, cfg, "cs_test_abc")
	if err != nil {
		t.Fatalf("query payment failed: %v", err)
	}
	if result.Status != "completed" {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if result.Amount != "459.99" {
		t.Fatalf("unexpected amount: %s", result.Amount)
	}
	if result.Currency != "USD" {
		t.Fatalf("unexpected currency: %s", result.Currency)
	}
	// "created" is when the session was opened, not when the buyer paid
	if result.PaidAt != nil {
		t.Fatalf("expected no paid time from session creation, got %v", result.PaidAt)
	}
}

func TestVerifyAndParseWebhookCheckoutCompleted(t *testing.T) {
	now := time.Unix(1760000000, 0)
	cfg := &Config{
		WebhookSecret:           "whsec_test_abc",
		WebhookToleranceSeconds: 300,
	}
	payload := map[string]interface{}{
		"id":   "evt_test_1",
		"type": "checkout.session.completed",
		"data": map[string]interface{}{
			"object": map[string]interface{}{
				"object":         "checkout.session",
				"id":             "cs_test_123",
				"payment_status": "paid",
				"currency":       "usd",
				"amount_total":   1288,
				"created":        now.Unix(),
				"metadata": map[string]interface{}{
					"payment_id": "1001",
					"payment_no": "PAY-1001",
				},
			},
		},
	}
	body, _ := json.Marshal(payload)
	sig := computeSignature(cfg.WebhookSecret, now.Unix(), body)
	headers := map[string]string{
		"Stripe-Signature": "t=1760000000,v1=" + sig,
	}

	result, err := VerifyAndParseWebhook(cfg, headers, body, now)
	if err != nil {
		t.Fatalf("verify and parse webhook failed: %v", err)
	}
	if result.EventType != "checkout.session.completed" {
		t.Fatalf("unexpected event type: %s", result.EventType)
	}
	if result.PaymentID != 1001 {
		t.Fatalf("unexpected payment id: %d", result.PaymentID)
	}
	if result.SessionID != "cs_test_123" {
		t.Fatalf("unexpected session id: %s", result.SessionID)
	}
	if result.Status != "completed" {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if result.Amount != "12.88" {
		t.Fatalf("unexpected amount: %s", result.Amount)
	}
}

func TestVerifyAndParseWebhookInvalidSignature(t *testing.T) {
	now := time.Unix(1760000000, 0)
	cfg := &Config{
		WebhookSecret:           "whsec_test_abc",
		WebhookToleranceSeconds: 300,
	}
	body := []byte(`{"id":"evt_test_2","type":"payment_intent.succeeded","data":{"object":{"object":"payment_intent","id":"pi_test_1"}}}`)
	headers := map[string]string{
		"Stripe-Signature": "t=1760000000,v1=deadbeef",
	}
	if _, err := VerifyAndParseWebhook(cfg, headers, body, now); err == nil {
		t.Fatalf("expected signature verification to fail")
	}
}

func TestMapPaymentIntentStatus(t *testing.T) {
	if got := mapPaymentIntentStatus("succeeded"); got != "completed" {
		t.Fatalf("unexpected status for succeeded: %s", got)
	}
	if got := mapPaymentIntentStatus("requires_payment_method"); got != "failed" {
		t.Fatalf("unexpected status for requires_payment_method: %s", got)
	}
	if got := mapPaymentIntentStatus("processing"); got != "pending" {
		t.Fatalf("unexpected status for processing: %s", got)
	}
}

func TestToMinorAmountZeroDecimalCurrency(t *testing.T) {
	minor, err := toMinorAmount("1200", "JPY")
	if err != nil {
		t.Fatalf("to minor amount failed: %v", err)
	}
	if minor != 1200 {
		t.Fatalf("unexpected minor amount: %d", minor)
	}
	minor, err = toMinorAmount("19.99", "USD")
	if err != nil {
		t.Fatalf("to minor amount failed: %v", err)
	}
	if minor != 1999 {
		t.Fatalf("unexpected minor amount: %d", minor)
	}
}
