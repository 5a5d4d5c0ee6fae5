package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// signaturePrefix is the optional scheme tag some gateways put in front of
// the hex digest, as in "sha256=ab12...".
const signaturePrefix = "sha256="

// HMACSignatureService signs outgoing gateway requests and authenticates
// incoming gateway callbacks with HMAC-SHA256.
type HMACSignatureService struct{}

func NewHMACSignatureService() *HMACSignatureService {
	return &HMACSignatureService{}
}

// Sign returns the lowercase hex HMAC-SHA256 of payload.
func (s *HMACSignatureService) Sign(secretKey string, payload []byte) string {
	return hex.EncodeToString(digest(secretKey, payload))
}

// Verify accepts the hex digest in either case, with or without the
// "sha256=" tag. An empty secret or signature never verifies.
func (s *HMACSignatureService) Verify(secretKey string, payload []byte, signature string) bool {
	if secretKey == "" {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(strings.ToLower(signature), signaturePrefix))
	if err != nil || len(got) != sha256.Size {
		return false
	}
	return hmac.Equal(digest(secretKey, payload), got)
}

func digest(secretKey string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secretKey))
	mac.Write(payload)
	return mac.Sum(nil)
}
