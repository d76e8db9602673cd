package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func sign(secret string, body []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	body := []byte(`{"event":"payment.succeeded","object":{"id":"pay-1"}}`)

	t.Run("passes with a valid signature", func(t *testing.T) {
		if !VerifyWebhookSignature("secret", body, sign("secret", body)) {
			t.Error("valid signature rejected")
		}
	})

	t.Run("signature case does not matter", func(t *testing.T) {
		upper := sign("secret", body)
		for i, c := range upper {
			if c >= 'a' && c <= 'f' {
				upper = upper[:i] + string(c-32) + upper[i+1:]
			}
		}
		if !VerifyWebhookSignature("secret", body, upper) {
			t.Error("uppercase hex signature rejected")
		}
	})

	t.Run("rejects a tampered body", func(t *testing.T) {
		if VerifyWebhookSignature("secret", []byte(`{"event":"payment.canceled"}`), sign("secret", body)) {
			t.Error("tampered body accepted")
		}
	})

	t.Run("rejects the wrong secret", func(t *testing.T) {
		if VerifyWebhookSignature("secret", body, sign("other", body)) {
			t.Error("signature with wrong secret accepted")
		}
	})

	t.Run("rejects empty and non-hex signatures", func(t *testing.T) {
		if VerifyWebhookSignature("secret", body, "") {
			t.Error("empty signature accepted")
		}
		if VerifyWebhookSignature("secret", body, "zz-not-hex") {
			t.Error("non-hex signature accepted")
		}
	})

	t.Run("enforcement is off without a secret", func(t *testing.T) {
		if !VerifyWebhookSignature("", body, "") {
			t.Error("unsigned webhook rejected with no secret configured")
		}
	})
}
