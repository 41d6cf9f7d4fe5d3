package identity_test

import (
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/faceoff/internal/identity"
)

func TestDeriveIsDeterministic(t *testing.T) {
	d := identity.NewDeriver([]byte("server-secret"))

	first := d.Derive("203.0.113.7")
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, d.Derive("203.0.113.7"))
	}
	assert.Len(t, first, identity.TokenLength)
	assert.True(t, identity.ValidToken(first))
}

func TestDistinctAddressesYieldDistinctTokens(t *testing.T) {
	d := identity.NewDeriver([]byte("server-secret"))

	seen := map[string]string{}
	for i := 0; i < 256; i++ {
		addr := fmt.Sprintf("198.51.100.%d", i)
		token := d.Derive(addr)
		prev, collided := seen[token]
		require.False(t, collided, "token collision between %s and %s", addr, prev)
		seen[token] = addr
	}
}

func TestSecretChangesTokens(t *testing.T) {
	a := identity.NewDeriver([]byte("secret-a"))
	b := identity.NewDeriver([]byte("secret-b"))

	assert.NotEqual(t, a.Derive("203.0.113.7"), b.Derive("203.0.113.7"))
}

func TestDeriveFromRequestPrefersForwardedFor(t *testing.T) {
	d := identity.NewDeriver([]byte("server-secret"))

	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "10.0.0.1:4242"
	r.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	assert.Equal(t, d.Derive("203.0.113.7"), d.DeriveFromRequest(r))
}

func TestDeriveFromRequestFallsBackToRealIP(t *testing.T) {
	d := identity.NewDeriver([]byte("server-secret"))

	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "10.0.0.1:4242"
	r.Header.Set("X-Forwarded-For", "not-an-address")
	r.Header.Set("X-Real-IP", "198.51.100.23")

	assert.Equal(t, d.Derive("198.51.100.23"), d.DeriveFromRequest(r))
}

func TestDeriveFromRequestUsesRemoteAddr(t *testing.T) {
	d := identity.NewDeriver([]byte("server-secret"))

	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "192.0.2.55:9999"

	assert.Equal(t, d.Derive("192.0.2.55"), d.DeriveFromRequest(r))
}

func TestNoValidAddressStillYieldsToken(t *testing.T) {
	d := identity.NewDeriver([]byte("server-secret"))

	r := httptest.NewRequest("GET", "/ws", nil)
	r.RemoteAddr = "garbage"
	r.Header.Set("X-Forwarded-For", "also-garbage")

	first := d.DeriveFromRequest(r)
	second := d.DeriveFromRequest(r)

	assert.True(t, identity.ValidToken(first))
	assert.True(t, identity.ValidToken(second))
	// The fallback is connection-unique, not address-stable.
	assert.NotEqual(t, first, second)
}

func TestValidToken(t *testing.T) {
	assert.True(t, identity.ValidToken("0123456789abcdef"))
	assert.False(t, identity.ValidToken(""))
	assert.False(t, identity.ValidToken("0123456789abcde"))
	assert.False(t, identity.ValidToken("0123456789abcdeg"))
	assert.False(t, identity.ValidToken("0123456789ABCDEF"))
}
