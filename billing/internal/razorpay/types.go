package razorpay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Item is the chargeable part of a plan.
type Item struct {
	ID          string `json:"id,omitempty"`
	Name        string `json:"name"`
	Amount      int64  `json:"amount"` // minor units
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active,omitempty"`
}

// Plan is a recurring-charge template.
type Plan struct {
	ID        string `json:"id"`
	Entity    string `json:"entity,omitempty"`
	Interval  int    `json:"interval"`
	Period    string `json:"period"`
	Item      Item   `json:"item"`
	Notes     Notes  `json:"notes,omitempty"`
	CreatedAt int64  `json:"created_at,omitempty"`

	raw json.RawMessage // provider object as received
}

// UnmarshalJSON keeps the provider's full object alongside the typed fields.
func (p *Plan) UnmarshalJSON(b []byte) error {
	type plain Plan
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*p = Plan(v)
	p.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON echoes the provider's object when the plan was decoded from
// one, so fields without a typed counterpart survive.
func (p Plan) MarshalJSON() ([]byte, error) {
	if len(p.raw) > 0 {
		return p.raw, nil
	}
	type plain Plan
	return json.Marshal(plain(p))
}

// PlanRequest is the body of POST /plans.
type PlanRequest struct {
	Period   string `json:"period"`
	Interval int    `json:"interval"`
	Item     Item   `json:"item"`
	Notes    Notes  `json:"notes,omitempty"`
}

// PlanList is a page of plans.
type PlanList struct {
	Entity string `json:"entity"`
	Count  int    `json:"count"`
	Items  []Plan `json:"items"`
}

// ListOptions paginates list endpoints.
type ListOptions struct {
	Count int
	Skip  int
}

// SubscriptionRequest is the body of POST /subscriptions. CustomerNotify is
// 1 to let Razorpay notify the customer, 0 to suppress it.
type SubscriptionRequest struct {
	PlanID         string `json:"plan_id"`
	TotalCount     int    `json:"total_count"`
	CustomerNotify int    `json:"customer_notify"`
	Notes          Notes  `json:"notes,omitempty"`
}

// Subscription binds a customer to a plan.
type Subscription struct {
	ID             string  `json:"id"`
	Entity         string  `json:"entity,omitempty"`
	PlanID         string  `json:"plan_id"`
	CustomerID     *string `json:"customer_id,omitempty"`
	Status         string  `json:"status"`
	CurrentStart   *int64  `json:"current_start,omitempty"`
	CurrentEnd     *int64  `json:"current_end,omitempty"`
	ChargeAt       *int64  `json:"charge_at,omitempty"`
	StartAt        *int64  `json:"start_at,omitempty"`
	EndAt          *int64  `json:"end_at,omitempty"`
	TotalCount     int     `json:"total_count"`
	PaidCount      int     `json:"paid_count"`
	RemainingCount any     `json:"remaining_count,omitempty"`
	CustomerNotify bool    `json:"customer_notify"`
	ShortURL       string  `json:"short_url,omitempty"`
	Notes          Notes   `json:"notes,omitempty"`
	CreatedAt      int64   `json:"created_at,omitempty"`

	raw json.RawMessage
}

// UnmarshalJSON keeps the provider's full object alongside the typed fields.
func (s *Subscription) UnmarshalJSON(b []byte) error {
	type plain Subscription
	var v plain
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*s = Subscription(v)
	s.raw = append(json.RawMessage(nil), b...)
	return nil
}

// MarshalJSON echoes the provider's object when there is one.
func (s Subscription) MarshalJSON() ([]byte, error) {
	if len(s.raw) > 0 {
		return s.raw, nil
	}
	type plain Subscription
	return json.Marshal(plain(s))
}

// Notes are free-form key/value tags. Razorpay encodes an empty set as [],
// so both encodings are accepted.
type Notes map[string]string

func (n *Notes) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if bytes.Equal(trimmed, []byte("null")) {
		*n = nil
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var arr []json.RawMessage
		if err := json.Unmarshal(trimmed, &arr); err != nil {
			return err
		}
		if len(arr) > 0 {
			return fmt.Errorf("notes: unexpected non-empty array")
		}
		*n = Notes{}
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return err
	}
	out := make(Notes, len(m))
	for k, v := range m {
		switch val := v.(type) {
		case string:
			out[k] = val
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	*n = out
	return nil
}

// APIError is the error envelope Razorpay returns on non-2xx responses.
type APIError struct {
	StatusCode  int    `json:"-"`
	Code        string `json:"code"`
	Description string `json:"description"`
	Source      string `json:"source,omitempty"`
	Step        string `json:"step,omitempty"`
	Reason      string `json:"reason,omitempty"`
	Field       string `json:"field,omitempty"`
}

func (e *APIError) Error() string {
	if e.Description != "" {
		return e.Description
	}
	return fmt.Sprintf("razorpay: unexpected status %d", e.StatusCode)
}

// withDefaultMessage gives description-less API errors a readable message.
func withDefaultMessage(err error, msg string) error {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Description == "" {
		apiErr.Description = msg
	}
	return err
}
