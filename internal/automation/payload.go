package automation

import (
	"encoding/json"
	"strings"
)

// Invoice statuses as reported by the accounting integration.
const (
	InvoiceStatusDraft      = "draft"
	InvoiceStatusSubmitted  = "submitted"
	InvoiceStatusAuthorised = "authorised"
	InvoiceStatusPaid       = "paid"
	InvoiceStatusVoided     = "voided"
	InvoiceStatusDeleted    = "deleted"
)

// OrderReference points at an order surfaced by the automation workflow.
type OrderReference struct {
	OrderID  string `json:"order_id"`
	Customer string `json:"customer"`
	Date     string `json:"date"`
	Link     string `json:"link,omitempty"`
}

// InvoiceReference points at an invoice surfaced by the automation workflow.
type InvoiceReference struct {
	InvoiceID string  `json:"invoice_id"`
	AmountDue float64 `json:"amount_due"`
	Status    string  `json:"status"`
	Link      string  `json:"link,omitempty"`
}

// Payload is the canonical response shape the whole pipeline converges
// on. ChatResponse is always non-empty for a valid payload; the
// references are nil when the workflow attached none.
type Payload struct {
	ChatResponse     string            `json:"chat_response"`
	OrderReference   *OrderReference   `json:"order_from_sparklayer"`
	InvoiceReference *InvoiceReference `json:"invoice_from_xero"`
}

// Normalize reduces an arbitrarily wrapped decoded JSON value into the
// canonical payload. Array wrapping is a transport artifact, so a
// single-element array unwraps to its first element; an "output" field
// unwraps one producer-nesting level. Returns nil when the value does
// not qualify: a payload is valid only if chat_response is non-empty
// after trimming, or the raw value is itself a non-empty string.
func Normalize(raw any) *Payload {
	switch v := raw.(type) {
	case []any:
		if len(v) == 0 {
			return nil
		}
		return Normalize(v[0])
	case map[string]any:
		if out, ok := v["output"]; ok {
			return Normalize(out)
		}
		return payloadFromObject(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return nil
		}
		return &Payload{ChatResponse: v}
	default:
		return nil
	}
}

func payloadFromObject(obj map[string]any) *Payload {
	text, ok := obj["chat_response"].(string)
	if !ok || strings.TrimSpace(text) == "" {
		return nil
	}

	p := &Payload{ChatResponse: text}
	if ref, ok := obj["order_from_sparklayer"].(map[string]any); ok {
		p.OrderReference = decodeRef[OrderReference](ref)
	}
	if ref, ok := obj["invoice_from_xero"].(map[string]any); ok {
		p.InvoiceReference = decodeRef[InvoiceReference](ref)
	}
	return p
}

// decodeRef coerces a loosely typed reference object into its struct
// form via a JSON round-trip. A reference that does not decode is
// dropped rather than failing the whole payload.
func decodeRef[T any](obj map[string]any) *T {
	data, err := json.Marshal(obj)
	if err != nil {
		return nil
	}
	var ref T
	if err := json.Unmarshal(data, &ref); err != nil {
		return nil
	}
	return &ref
}
