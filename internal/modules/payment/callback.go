package payment

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// transactionDateLayout is how the provider encodes TransactionDate, in EAT.
const transactionDateLayout = "20060102150405"

var eat = time.FixedZone("EAT", 3*60*60)

type callbackEnvelope struct {
	Body struct {
		StkCallback *struct {
			MerchantRequestID string       `json:"MerchantRequestID"`
			CheckoutRequestID string       `json:"CheckoutRequestID"`
			ResultCode        *json.Number `json:"ResultCode"`
			ResultDesc        string       `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// CallbackResult is a decoded push-payment result notification.
type CallbackResult struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	Metadata          Metadata
}

func (r *CallbackResult) Success() bool { return r.ResultCode == 0 }

// Metadata maps callback item names to their raw values. Accessors return
// zero values for absent items.
type Metadata map[string]interface{}

func (m Metadata) ReceiptNumber() string { return m.str("MpesaReceiptNumber") }

func (m Metadata) PhoneNumber() string { return m.str("PhoneNumber") }

func (m Metadata) Amount() *float64 {
	switch v := m["Amount"].(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return &f
		}
	}
	return nil
}

func (m Metadata) TransactionDate() (time.Time, bool) {
	raw := m.str("TransactionDate")
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(transactionDateLayout, raw, eat)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func (m Metadata) str(name string) string {
	switch v := m[name].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	}
	return ""
}

// ParseCallback decodes the provider envelope. A body without a checkout id
// or result code is rejected.
func ParseCallback(body []byte) (*CallbackResult, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var env callbackEnvelope
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}
	cb := env.Body.StkCallback
	if cb == nil {
		return nil, fmt.Errorf("%w: missing Body.stkCallback", ErrMalformedCallback)
	}
	if strings.TrimSpace(cb.CheckoutRequestID) == "" {
		return nil, fmt.Errorf("%w: missing CheckoutRequestID", ErrMalformedCallback)
	}
	if cb.ResultCode == nil {
		return nil, fmt.Errorf("%w: missing ResultCode", ErrMalformedCallback)
	}
	code, err := strconv.Atoi(cb.ResultCode.String())
	if err != nil {
		return nil, fmt.Errorf("%w: ResultCode %q", ErrMalformedCallback, cb.ResultCode.String())
	}

	out := &CallbackResult{
		MerchantRequestID: cb.MerchantRequestID,
		CheckoutRequestID: strings.TrimSpace(cb.CheckoutRequestID),
		ResultCode:        code,
		ResultDesc:        cb.ResultDesc,
		Metadata:          Metadata{},
	}
	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			if item.Name != "" && item.Value != nil {
				out.Metadata[item.Name] = item.Value
			}
		}
	}
	return out, nil
}
