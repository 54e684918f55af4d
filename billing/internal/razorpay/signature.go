package razorpay

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// SubscriptionSignature computes the checkout signature Razorpay attaches to
// a successful subscription payment: hex(HMAC-SHA256(secret, paymentID|subscriptionID)).
func SubscriptionSignature(secret, paymentID, subscriptionID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(paymentID + "|" + subscriptionID))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySubscriptionSignature reports whether signature matches the expected
// value. The comparison is constant-time.
func VerifySubscriptionSignature(secret, paymentID, subscriptionID, signature string) bool {
	expected := SubscriptionSignature(secret, paymentID, subscriptionID)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyPayment checks a subscription payment signature with the client's
// key secret.
func (c *Client) VerifyPayment(paymentID, subscriptionID, signature string) bool {
	return VerifySubscriptionSignature(c.cfg.KeySecret, paymentID, subscriptionID, signature)
}
