package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHMACSignatureService_SignAndVerify(t *testing.T) {
	svc := NewHMACSignatureService()
	secretKey := "gateway-webhook-secret"
	payload := []byte(`{"event_id":"evt_1","order_id":"ORD-1","status":"Success"}`)

	signature := svc.Sign(secretKey, payload)

	assert.Regexp(t, `^[0-9a-f]{64}$`, signature, "signature should be 64-char lowercase hex (SHA-256)")
	assert.True(t, svc.Verify(secretKey, payload, signature))
}

func TestHMACSignatureService_VerifyFailures(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := []byte("original payload")
	good := svc.Sign("key", payload)

	tests := []struct {
		name      string
		secret    string
		payload   []byte
		signature string
	}{
		{"wrong key", "other-key", payload, good},
		{"tampered payload", "key", []byte("tampered payload"), good},
		{"garbage signature", "key", payload, "invalidsignature"},
		{"empty signature", "key", payload, ""},
		{"empty secret", "", payload, svc.Sign("", payload)},
		{"truncated signature", "key", payload, good[:32]},
		{"other scheme tag", "key", payload, "sha1=" + good},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, svc.Verify(tt.secret, tt.payload, tt.signature))
		})
	}
}

func TestHMACSignatureService_AcceptedForms(t *testing.T) {
	svc := NewHMACSignatureService()
	payload := []byte(`{"order_id":"ORD-9"}`)
	sig := svc.Sign("key", payload)

	for _, form := range []string{sig, strings.ToUpper(sig), "sha256=" + sig, "SHA256=" + strings.ToUpper(sig)} {
		assert.True(t, svc.Verify("key", payload, form), form)
	}
}

func TestHMACSignatureService_DeterministicSign(t *testing.T) {
	svc := NewHMACSignatureService()

	assert.Equal(t, svc.Sign("key", []byte("data")), svc.Sign("key", []byte("data")))
}
