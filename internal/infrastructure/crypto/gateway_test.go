package crypto

import (
	"bytes"
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"github.com/groceryshare/backend/internal/domain/identity"
	"github.com/groceryshare/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, keyID string, fill byte) *Gateway {
	t.Helper()
	g, err := NewGateway(keyID, bytes.Repeat([]byte{fill}, KeySize))
	require.NoError(t, err)
	return g
}

func TestGateway_RoundTrip(t *testing.T) {
	g := newTestGateway(t, "k1", 1)

	for _, field := range []identity.ContactField{identity.FieldAddress, identity.FieldPhone, identity.FieldNotes} {
		sealed, err := g.Seal(field, "12 Orchard Lane, flat 3")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(sealed, "v1.k1."))
		assert.NotContains(t, sealed, "Orchard")

		plain, err := g.Open(field, sealed)
		require.NoError(t, err)
		assert.Equal(t, "12 Orchard Lane, flat 3", plain)
	}
}

func TestGateway_NonceIsFresh(t *testing.T) {
	g := newTestGateway(t, "k1", 1)
	a, err := g.Seal(identity.FieldPhone, "555-0100")
	require.NoError(t, err)
	b, err := g.Seal(identity.FieldPhone, "555-0100")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGateway_FieldIsBound(t *testing.T) {
	g := newTestGateway(t, "k1", 1)
	sealed, err := g.Seal(identity.FieldPhone, "555-0100")
	require.NoError(t, err)

	_, err = g.Open(identity.FieldAddress, sealed)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestGateway_KeyMismatch(t *testing.T) {
	old := newTestGateway(t, "k1", 1)
	next := newTestGateway(t, "k2", 2)

	sealed, err := old.Seal(identity.FieldAddress, "1 Main St")
	require.NoError(t, err)

	_, err = next.Open(identity.FieldAddress, sealed)
	assert.ErrorIs(t, err, ErrKeyMismatch)

	keyID, err := KeyIDOf(sealed)
	require.NoError(t, err)
	assert.Equal(t, "k1", keyID)
}

func TestGateway_SameIDDifferentKeyFailsAuthentication(t *testing.T) {
	a := newTestGateway(t, "k1", 1)
	b := newTestGateway(t, "k1", 9)

	sealed, err := a.Seal(identity.FieldAddress, "1 Main St")
	require.NoError(t, err)
	_, err = b.Open(identity.FieldAddress, sealed)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestGateway_Tampering(t *testing.T) {
	g := newTestGateway(t, "k1", 1)
	sealed, err := g.Seal(identity.FieldAddress, "1 Main St")
	require.NoError(t, err)

	_, payload, err := Parse(sealed)
	require.NoError(t, err)
	payload[len(payload)-1] ^= 0xff
	tampered := "v1.k1." + base64.RawURLEncoding.EncodeToString(payload)

	_, err = g.Open(identity.FieldAddress, tampered)
	assert.ErrorIs(t, err, ErrOpen)
}

func TestGateway_Malformed(t *testing.T) {
	g := newTestGateway(t, "k1", 1)
	for _, in := range []string{"", "plain text", "v2.k1.AAAA", "v1.k1.***", "v1..AAAA", "v1.k1.AAAA", identity.PurgeMarker} {
		_, err := g.Open(identity.FieldAddress, in)
		assert.ErrorIs(t, err, ErrMalformed, in)
	}
}

func TestGateway_UnknownField(t *testing.T) {
	g := newTestGateway(t, "k1", 1)
	_, err := g.Seal(identity.ContactField("ssn"), "x")
	assert.Error(t, err)
}

func TestNewGateway_Validation(t *testing.T) {
	_, err := NewGateway("k1", []byte("short"))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewGateway("bad id", bytes.Repeat([]byte{1}, KeySize))
	assert.ErrorIs(t, err, ErrInvalidKeyID)

	_, err = NewGatewayFromBase64("k1", "not base64!")
	assert.Error(t, err)
}

func TestGenerateKey(t *testing.T) {
	encoded, err := GenerateKey()
	require.NoError(t, err)

	g, err := NewGatewayFromBase64("gen", encoded)
	require.NoError(t, err)
	assert.Equal(t, "gen", g.KeyID())
}

func TestGateway_ConcurrentUse(t *testing.T) {
	g := newTestGateway(t, "k1", 1)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sealed, err := g.Seal(identity.FieldNotes, "leave at door")
			if assert.NoError(t, err) {
				plain, err := g.Open(identity.FieldNotes, sealed)
				assert.NoError(t, err)
				assert.Equal(t, "leave at door", plain)
			}
		}()
	}
	wg.Wait()
}

func TestSealContact_WithGateway(t *testing.T) {
	g := newTestGateway(t, "k1", 1)
	sealed, err := identity.SealContact(g, identity.Contact{Address: "9 Birch Rd", Phone: "555-0199"})
	require.NoError(t, err)
	assert.Nil(t, sealed.Notes)

	contact, err := identity.OpenContact(g, sealed)
	require.NoError(t, err)
	assert.Equal(t, "9 Birch Rd", contact.Address)
	assert.Equal(t, "555-0199", contact.Phone)
}

func TestFromConfig(t *testing.T) {
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{3}, KeySize))

	_, err := FromConfig(config.EncryptionConfig{KeyID: "k1"})
	assert.ErrorIs(t, err, ErrNoKey)

	g, err := FromConfig(config.EncryptionConfig{KeyID: "k2", Key: key})
	require.NoError(t, err)
	assert.Equal(t, "k2", g.KeyID())

	prev, err := PreviousFromConfig(config.EncryptionConfig{KeyID: "k2", Key: key})
	require.NoError(t, err)
	assert.Nil(t, prev)

	prev, err = PreviousFromConfig(config.EncryptionConfig{PreviousKeyID: "k1", PreviousKey: key})
	require.NoError(t, err)
	assert.Equal(t, "k1", prev.KeyID())
}
