package paypal

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizeFillsSandboxBase(t *testing.T) {
	cfg := &Config{ClientID: " id ", ClientSecret: " secret ", Sandbox: true}
	cfg.Normalize()
	if cfg.ClientID != "id" {
		t.Fatalf("unexpected client id: %s", cfg.ClientID)
	}
	if cfg.BaseURL != defaultSandboxBaseURL {
		t.Fatalf("unexpected base url: %s", cfg.BaseURL)
	}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("validate config failed: %v", err)
	}
}

func TestValidateConfigMissingSecret(t *testing.T) {
	cfg := &Config{ClientID: "id", BaseURL: defaultSandboxBaseURL}
	if err := ValidateConfig(cfg); err == nil {
		t.Fatalf("expected missing client_secret to fail validation")
	}
}

func TestToPaymentStatus(t *testing.T) {
	status, ok := ToPaymentStatus("COMPLETED")
	if !ok || status != "completed" {
		t.Fatalf("expected completed, got %s %v", status, ok)
	}
	status, ok = ToPaymentStatus("declined")
	if !ok || status != "failed" {
		t.Fatalf("expected failed, got %s %v", status, ok)
	}
	status, ok = ToPaymentStatus("PAYER_ACTION_REQUIRED")
	if !ok || status != "pending" {
		t.Fatalf("expected pending, got %s %v", status, ok)
	}
	status, ok = ToPaymentStatus("unknown")
	if ok || status != "" {
		t.Fatalf("expected unmapped status, got %s %v", status, ok)
	}
}

func TestCreateOrderExtractsApprovalURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "token-123"})
		case "/v2/checkout/orders":
			var payload map[string]interface{}
			_ = json.NewDecoder(r.Body).Decode(&payload)
			units, _ := payload["purchase_units"].([]interface{})
			if len(units) != 1 {
				t.Fatalf("unexpected purchase units: %v", payload["purchase_units"])
			}
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "PPORDER123",
				"status": "CREATED",
				"links": []interface{}{
					map[string]interface{}{"rel": "self", "href": "https://api.example.com/self"},
					map[string]interface{}{"rel": "approve", "href": "https://www.example.com/checkoutnow?token=PPORDER123"},
				},
			})
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	cfg := &Config{ClientID: "id", ClientSecret: "secret", BaseURL: server.URL}
	result, err := CreateOrder(nil, cfg, CreateInput{
		PaymentNo: "PAY-2001",
		PaymentID: 2001,
		Amount:    "459.99",
		Currency:  "usd",
	})
	if err != nil {
		t.Fatalf("create order failed: %v", err)
	}
	if result.OrderID != "PPORDER123" {
		t.Fatalf("unexpected order id: %s", result.OrderID)
	}
	if result.ApprovalURL != "https://www.example.com/checkoutnow?token=PPORDER123" {
		t.Fatalf("unexpected approval url: %s", result.ApprovalURL)
	}
}

func TestCaptureOrderReadsCaptureDetails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/oauth2/token":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{"access_token": "token-123"})
		case "/v2/checkout/orders/PPORDER123/capture":
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "PPORDER123",
				"status": "COMPLETED",
				"purchase_units": []interface{}{
					map[string]interface{}{
						"payments": map[string]interface{}{
							"captures": []interface{}{
								map[string]interface{}{
									"id":     "CAP123",
									"status": "COMPLETED",
									"amount": map[string]interface{}{
										"value":         "459.99",
										"currency_code": "USD",
									},
									"create_time": "2026-02-10T08:30:00Z",
								},
							},
						},
					},
				},
			})
		default:
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
	}))
	defer server.Close()

	cfg := &Config{ClientID: "id", ClientSecret: "secret", BaseURL: server.URL}
	result, err := CaptureOrder(nil, cfg, "PPORDER123")
	if err != nil {
		t.Fatalf("capture order failed: %v", err)
	}
	if result.CaptureID != "CAP123" {
		t.Fatalf("unexpected capture id: %s", result.CaptureID)
	}
	if result.Status != "COMPLETED" {
		t.Fatalf("unexpected status: %s", result.Status)
	}
	if result.Amount != "459.99" || result.Currency != "USD" {
		t.Fatalf("unexpected amount: %s %s", result.Amount, result.Currency)
	}
	if result.PaidAt == nil {
		t.Fatalf("expected paid at to be parsed")
	}
}

func TestExtractLinkByRelMissing(t *testing.T) {
	raw := map[string]interface{}{
		"links": []interface{}{
			map[string]interface{}{"rel": "self", "href": "https://api.example.com/self"},
		},
	}
	if got := extractLinkByRel(raw, "approve"); got != "" {
		t.Fatalf("expected empty link, got %s", got)
	}
}
