/**
 * @description
 * HMAC-SHA256 signing for ATS status webhooks. The signature is computed over
 * the exact request body bytes and sent as lowercase hex, optionally prefixed
 * with "sha256=".
 *
 * @dependencies
 * - crypto/hmac, crypto/sha256, encoding/hex: signature computation.
 */
package webhooksig

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Prefix is the optional scheme marker in front of the hex digest.
const Prefix = "sha256="

// Compute returns the lowercase hex HMAC-SHA256 of body under secret.
func Compute(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// Header returns the header value a sender should attach.
func Header(secret string, body []byte) string {
	return Prefix + Compute(secret, body)
}

// Normalize lowercases the digest and strips whitespace and a leading
// "sha256=" marker.
func Normalize(signature string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(signature)), Prefix)
}

// Verify reports whether signature matches body. The comparison runs in
// constant time over the hex text.
func Verify(secret string, body []byte, signature string) bool {
	provided := Normalize(signature)
	if provided == "" {
		return false
	}
	expected := Compute(secret, body)
	return hmac.Equal([]byte(expected), []byte(provided))
}
