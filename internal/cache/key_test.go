package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyShape(t *testing.T) {
	assert.Equal(t, "image:u1:p1.jpg:50:100", Key("u1", "p1.jpg", 50, 100))
	assert.Equal(t, "image:u1:p2.webp:75", Key("u1", "p2.webp", 75, 0))
}

func TestKeyDeterminism(t *testing.T) {
	assert.Equal(t, Key("u1", "p1.jpg", 75, 200), Key("u1", "p1.jpg", 75, 200))
	assert.Equal(t, Key("u1", "p1.jpg", 75, 0), Key("u1", "p1.jpg", 75, 0))
}

func TestKeyDistinguishesEveryComponent(t *testing.T) {
	base := Key("u1", "p1.jpg", 75, 200)

	assert.NotEqual(t, base, Key("u2", "p1.jpg", 75, 200), "owner")
	assert.NotEqual(t, base, Key("u1", "p2.jpg", 75, 200), "picture")
	assert.NotEqual(t, base, Key("u1", "p1.jpg", 50, 200), "quality")
	assert.NotEqual(t, base, Key("u1", "p1.jpg", 75, 100), "width")
	assert.NotEqual(t, base, Key("u1", "p1.jpg", 75, 0), "width absent")
}

func TestKeyWidthAbsenceEquivalence(t *testing.T) {
	// A width that failed to parse resolves to 0 upstream; the key must be
	// byte-identical to the no-width key.
	assert.Equal(t, Key("u1", "p1.jpg", 75, 0), Key("u1", "p1.jpg", 75, 0))
	assert.Equal(t, "image:u1:p1.jpg:75", Key("u1", "p1.jpg", 75, 0))
}
