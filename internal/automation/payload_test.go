package automation

import (
	"encoding/json"
	"testing"
)

func decodeJSON(t *testing.T, s string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		t.Fatalf("json.Unmarshal(%q) error = %v", s, err)
	}
	return v
}

func TestNormalize_CanonicalObject(t *testing.T) {
	raw := decodeJSON(t, `{"chat_response":"Hello","order_from_sparklayer":{"order_id":"SO-1","customer":"Acme","date":"2025-09-01"},"invoice_from_xero":{"invoice_id":"INV-9","amount_due":120.5,"status":"authorised"}}`)

	p := Normalize(raw)
	if p == nil {
		t.Fatal("Normalize() = nil, want payload")
	}
	if p.ChatResponse != "Hello" {
		t.Errorf("ChatResponse = %q, want %q", p.ChatResponse, "Hello")
	}
	if p.OrderReference == nil || p.OrderReference.OrderID != "SO-1" {
		t.Errorf("OrderReference = %+v, want order SO-1", p.OrderReference)
	}
	if p.InvoiceReference == nil || p.InvoiceReference.AmountDue != 120.5 {
		t.Errorf("InvoiceReference = %+v, want amount 120.5", p.InvoiceReference)
	}
	if p.InvoiceReference.Status != InvoiceStatusAuthorised {
		t.Errorf("Status = %q, want %q", p.InvoiceReference.Status, InvoiceStatusAuthorised)
	}
}

func TestNormalize_Unwrapping(t *testing.T) {
	want := "Final answer"
	cases := []struct {
		name string
		raw  string
	}{
		{"bare object", `{"chat_response":"Final answer"}`},
		{"array wrapped", `[{"chat_response":"Final answer"}]`},
		{"output wrapped", `{"output":{"chat_response":"Final answer"}}`},
		{"array of output", `[{"output":{"chat_response":"Final answer"}}]`},
		{"output of array", `{"output":[{"chat_response":"Final answer"}]}`},
		{"three levels", `[{"output":[{"chat_response":"Final answer"}]}]`},
		{"output of string", `{"output":"Final answer"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := Normalize(decodeJSON(t, tc.raw))
			if p == nil {
				t.Fatalf("Normalize(%s) = nil, want payload", tc.raw)
			}
			if p.ChatResponse != want {
				t.Errorf("ChatResponse = %q, want %q", p.ChatResponse, want)
			}
		})
	}
}

func TestNormalize_BareString(t *testing.T) {
	p := Normalize("just text")
	if p == nil {
		t.Fatal("Normalize() = nil, want payload")
	}
	if p.ChatResponse != "just text" {
		t.Errorf("ChatResponse = %q, want %q", p.ChatResponse, "just text")
	}
	if p.OrderReference != nil || p.InvoiceReference != nil {
		t.Errorf("references = %+v, %+v, want nil, nil", p.OrderReference, p.InvoiceReference)
	}
}

func TestNormalize_Invalid(t *testing.T) {
	cases := []struct {
		name string
		raw  any
	}{
		{"empty string", ""},
		{"whitespace", "   "},
		{"empty object", map[string]any{}},
		{"empty array", []any{}},
		{"nil", nil},
		{"number", float64(42)},
		{"empty chat_response", map[string]any{"chat_response": ""}},
		{"blank chat_response", map[string]any{"chat_response": "  \t "}},
		{"non-string chat_response", map[string]any{"chat_response": 3.0}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if p := Normalize(tc.raw); p != nil {
				t.Errorf("Normalize(%v) = %+v, want nil", tc.raw, p)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	raw := decodeJSON(t, `[{"output":{"chat_response":"Hello","invoice_from_xero":{"invoice_id":"INV-1","amount_due":10,"status":"paid"}}}]`)
	first := Normalize(raw)
	if first == nil {
		t.Fatal("Normalize() = nil, want payload")
	}

	roundTripped, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	second := Normalize(decodeJSON(t, string(roundTripped)))
	if second == nil {
		t.Fatal("Normalize(Normalize(x)) = nil, want payload")
	}
	if second.ChatResponse != first.ChatResponse {
		t.Errorf("ChatResponse = %q, want %q", second.ChatResponse, first.ChatResponse)
	}
	if second.InvoiceReference == nil || *second.InvoiceReference != *first.InvoiceReference {
		t.Errorf("InvoiceReference = %+v, want %+v", second.InvoiceReference, first.InvoiceReference)
	}
}

func TestNormalize_DroppedMalformedReference(t *testing.T) {
	raw := decodeJSON(t, `{"chat_response":"Hi","invoice_from_xero":{"amount_due":"not a number"}}`)
	p := Normalize(raw)
	if p == nil {
		t.Fatal("Normalize() = nil, want payload")
	}
	if p.InvoiceReference != nil {
		t.Errorf("InvoiceReference = %+v, want nil for undecodable reference", p.InvoiceReference)
	}
}
