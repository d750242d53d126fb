package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifySignature_RoundTrip(t *testing.T) {
	cases := []struct{ order, payment, secret string }{
		{"order_N1", "pay_N1", "s3cr3t"},
		{"order_with|pipe", "pay_x", "k"},
		{"o", "p", "a much longer secret value with spaces"},
	}
	for _, c := range cases {
		sig := Sign(c.order, c.payment, c.secret)
		assert.True(t, VerifySignature(c.order, c.payment, sig, c.secret))
		assert.True(t, NewHMACVerifier(c.secret).Verify(c.order, c.payment, sig))
	}
}

func TestVerifySignature_AnySingleCharMutationFails(t *testing.T) {
	sig := Sign("order_N1", "pay_N1", "s3cr3t")
	for i := range sig {
		b := []byte(sig)
		if b[i] == 'a' {
			b[i] = 'b'
		} else {
			b[i] = 'a'
		}
		assert.False(t, VerifySignature("order_N1", "pay_N1", string(b), "s3cr3t"), "mutation at %d", i)
	}
}

func TestVerifySignature_InvalidInputs(t *testing.T) {
	sig := Sign("order_N1", "pay_N1", "s3cr3t")

	assert.False(t, VerifySignature("order_N1", "pay_N1", "", "s3cr3t"))
	assert.False(t, VerifySignature("order_N1", "pay_N1", sig, "other"))
	assert.False(t, VerifySignature("order_N1", "pay_N2", sig, "s3cr3t"))
	assert.False(t, VerifySignature("order_N1", "pay_N1", sig[:10], "s3cr3t"))
	assert.False(t, VerifySignature("order_N1", "pay_N1", "not-hex-at-all", "s3cr3t"))
}

func TestSign_SeparatorIsPartOfMessage(t *testing.T) {
	assert.NotEqual(t, Sign("ab", "c", "key"), Sign("a", "bc", "key"))
	assert.Len(t, Sign("a", "b", "key"), 64)
}
