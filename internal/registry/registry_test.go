package registry_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/faceoff/internal/registry"
)

type fakeHandle struct {
	name string
}

func (f *fakeHandle) Enqueue(msg []byte) bool { return true }

func TestRegisterAndLookup(t *testing.T) {
	r := registry.NewRegistry()
	h1 := &fakeHandle{name: "h1"}
	h2 := &fakeHandle{name: "h2"}

	r.Register("tokA", h1)
	r.Register("tokA", h2)

	handles := r.HandlesFor("tokA")
	assert.Len(t, handles, 2)

	token, ok := r.TokenFor(h1)
	require.True(t, ok)
	assert.Equal(t, "tokA", token)

	assert.Equal(t, 2, r.Len())
}

func TestUnregisterKeepsIndicesConsistent(t *testing.T) {
	r := registry.NewRegistry()
	h1 := &fakeHandle{name: "h1"}
	h2 := &fakeHandle{name: "h2"}
	r.Register("tokA", h1)
	r.Register("tokA", h2)

	r.Unregister(h1)

	assert.Len(t, r.HandlesFor("tokA"), 1)
	_, ok := r.TokenFor(h1)
	assert.False(t, ok)

	// Last handle gone prunes the token entirely.
	r.Unregister(h2)
	assert.Empty(t, r.HandlesFor("tokA"))
	assert.Equal(t, 0, r.Len())
}

func TestIdempotentOperations(t *testing.T) {
	r := registry.NewRegistry()
	h := &fakeHandle{name: "h"}

	// Unknown handle unregister is a no-op.
	r.Unregister(h)

	r.Register("tokA", h)
	r.Register("tokA", h)
	assert.Len(t, r.HandlesFor("tokA"), 1)

	r.Unregister(h)
	r.Unregister(h)
	assert.Equal(t, 0, r.Len())
}

func TestReregisterMovesHandle(t *testing.T) {
	r := registry.NewRegistry()
	h := &fakeHandle{name: "h"}

	r.Register("tokA", h)
	r.Register("tokB", h)

	assert.Empty(t, r.HandlesFor("tokA"))
	assert.Len(t, r.HandlesFor("tokB"), 1)

	token, ok := r.TokenFor(h)
	require.True(t, ok)
	assert.Equal(t, "tokB", token)
}

func TestAll(t *testing.T) {
	r := registry.NewRegistry()
	r.Register("tokA", &fakeHandle{name: "a1"})
	r.Register("tokA", &fakeHandle{name: "a2"})
	r.Register("tokB", &fakeHandle{name: "b1"})

	assert.Len(t, r.All(), 3)
}

func TestUnknownTokenLookups(t *testing.T) {
	r := registry.NewRegistry()
	assert.Empty(t, r.HandlesFor("nope"))
	_, ok := r.TokenFor(&fakeHandle{})
	assert.False(t, ok)
}
