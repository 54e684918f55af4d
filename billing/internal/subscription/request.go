package subscription

import (
	"encoding/json"
	"io"
	"strings"
)

// Action names as sent in the request body.
const (
	ActionCreatePlan         = "create-plan"
	ActionCreateSubscription = "create-subscription"
	ActionVerifyPayment      = "verify-payment"
	ActionCheckSubscription  = "check-subscription"
)

// Request is one of CreatePlanRequest, CreateSubscriptionRequest,
// VerifyPaymentRequest or CheckSubscriptionRequest.
type Request interface {
	Action() string
	sealed()
}

type CreatePlanRequest struct{}

type CreateSubscriptionRequest struct{}

type VerifyPaymentRequest struct {
	SubscriptionID string
	PaymentID      string
	Signature      string
}

type CheckSubscriptionRequest struct{}

func (CreatePlanRequest) Action() string         { return ActionCreatePlan }
func (CreateSubscriptionRequest) Action() string { return ActionCreateSubscription }
func (VerifyPaymentRequest) Action() string      { return ActionVerifyPayment }
func (CheckSubscriptionRequest) Action() string  { return ActionCheckSubscription }

func (CreatePlanRequest) sealed()         {}
func (CreateSubscriptionRequest) sealed() {}
func (VerifyPaymentRequest) sealed()      {}
func (CheckSubscriptionRequest) sealed()  {}

// envelope is the wire shape of every request. A userId field, if present,
// is ignored: the caller is always the authenticated identity.
type envelope struct {
	Action         string `json:"action"`
	SubscriptionID string `json:"subscriptionId"`
	PaymentID      string `json:"paymentId"`
	Signature      string `json:"signature"`
}

// DecodeRequest reads a JSON request body into its variant.
func DecodeRequest(r io.Reader) (Request, error) {
	var env envelope
	if err := json.NewDecoder(r).Decode(&env); err != nil {
		return nil, BadRequest("Invalid request body")
	}

	switch env.Action {
	case ActionCreatePlan:
		return CreatePlanRequest{}, nil
	case ActionCreateSubscription:
		return CreateSubscriptionRequest{}, nil
	case ActionVerifyPayment:
		// Values are signed as sent; blank-only values count as missing.
		if blank(env.SubscriptionID) || blank(env.PaymentID) || blank(env.Signature) {
			return nil, BadRequest("subscriptionId, paymentId and signature are required")
		}
		return VerifyPaymentRequest{
			SubscriptionID: env.SubscriptionID,
			PaymentID:      env.PaymentID,
			Signature:      env.Signature,
		}, nil
	case ActionCheckSubscription:
		return CheckSubscriptionRequest{}, nil
	default:
		return nil, BadRequest("Invalid action")
	}
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
