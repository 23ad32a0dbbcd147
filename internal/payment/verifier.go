package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signature returns the hex HMAC-SHA256 the gateway attaches to a
// checkout callback: HMAC(secret, orderID + "|" + paymentID).
func Signature(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature authenticates the callback.  The
// comparison is constant time; any malformed input yields false.
func Verify(orderID, paymentID, signature, secret string) bool {
	if orderID == "" || paymentID == "" || signature == "" || secret == "" {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	want, _ := hex.DecodeString(Signature(orderID, paymentID, secret))
	return hmac.Equal(got, want)
}

// Verifier binds the shared secret so callers never pass it around.
type Verifier struct {
	secret string
}

func NewVerifier(secret string) *Verifier { return &Verifier{secret: secret} }

func (v *Verifier) Verify(orderID, paymentID, signature string) bool {
	return Verify(orderID, paymentID, signature, v.secret)
}
