package payment

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify_AcceptsGatewaySignature(t *testing.T) {
	sig := Signature("order_1", "pay_1", "s3cret")
	assert.True(t, Verify("order_1", "pay_1", sig, "s3cret"))
	assert.True(t, NewVerifier("s3cret").Verify("order_1", "pay_1", sig))
}

func TestVerify_KnownVector(t *testing.T) {
	// HMAC-SHA256 with key "key" over "a|b"
	assert.Equal(t, "8bbc27fa3bd74d7c55f7eda2400213ce30b3434b54909557dc7115aa8f454214", Signature("a", "b", "key"))
	assert.NotEqual(t, Signature("a", "b", "key"), Signature("b", "a", "key"))
}

func TestVerify_RejectsEverySingleBitFlip(t *testing.T) {
	sig := Signature("order_9", "pay_9", "s3cret")
	raw, err := hex.DecodeString(sig)
	require.NoError(t, err)

	for i := 0; i < len(raw)*8; i++ {
		flipped := make([]byte, len(raw))
		copy(flipped, raw)
		flipped[i/8] ^= 1 << (i % 8)
		assert.False(t, Verify("order_9", "pay_9", hex.EncodeToString(flipped), "s3cret"), "bit %d", i)
	}
}

func TestVerify_RejectsTampering(t *testing.T) {
	sig := Signature("order_1", "pay_1", "s3cret")

	assert.False(t, Verify("order_2", "pay_1", sig, "s3cret"), "other order")
	assert.False(t, Verify("order_1", "pay_2", sig, "s3cret"), "other payment")
	assert.False(t, Verify("order_1", "pay_1", sig, "other"), "other secret")
	assert.False(t, Verify("order_1", "pay_1", sig[:62], "s3cret"), "truncated")
	assert.False(t, Verify("order_1", "pay_1", "zz"+sig[2:], "s3cret"), "not hex")
	assert.False(t, Verify("order_1", "pay_1", "", "s3cret"), "empty")
	assert.False(t, Verify("order_1", "pay_1", sig, ""), "empty secret")
}
