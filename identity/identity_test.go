package identity

import (
	"crypto/rand"
	"regexp"
	"strings"
	"testing"

	"github.com/jmcleod/weavesync/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var knownSyncKey = []byte{
	0xc7, 0x1a, 0xa7, 0xcb, 0xd8, 0xb8, 0x2a, 0x8f,
	0xf6, 0xed, 0xa5, 0x5c, 0x39, 0x47, 0x9f, 0xd2,
}

const knownFriendly = "y-4nkps-6yxav-i75xn-uv9ds-r472i"

func TestDeriveUsername_Plain(t *testing.T) {
	tests := []struct {
		account string
		want    string
	}{
		{"johndoe", "johndoe"},
		{"JohnDoe", "johndoe"},
		{"john.doe_99-x", "john.doe_99-x"},
		{"ABC.DEF", "abc.def"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.account, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveUsername(tt.account))
		})
	}
}

func TestDeriveUsername_Hashed(t *testing.T) {
	b32 := regexp.MustCompile(`^[a-z2-7]{32}$`)

	tests := []struct {
		account string
		want    string
	}{
		{"johndoe@example.com", "v64aw4knp6ittxnarcpmoi7smokoazsr"},
		// Hashing uses the name as supplied, not lower-cased.
		{"JohnDoe@Example.com", "wxqii777aqipacjadfy6au7ymjrw67d5"},
	}

	for _, tt := range tests {
		t.Run(tt.account, func(t *testing.T) {
			got := DeriveUsername(tt.account)
			assert.Equal(t, tt.want, got)
			assert.Regexp(t, b32, got)
			assert.Equal(t, got, DeriveUsername(tt.account), "derivation must be deterministic")
		})
	}

	for _, account := range []string{"a b", "x+y", "ümlaut", "tab\there", "slash/name"} {
		assert.Regexp(t, b32, DeriveUsername(account), account)
	}
}

func TestAccount(t *testing.T) {
	a := NewAccount("JohnDoe@Example.com")
	assert.Equal(t, "JohnDoe@Example.com", a.Name())
	assert.Equal(t, "wxqii777aqipacjadfy6au7ymjrw67d5", a.Username())
}

func TestEncodeFriendly_KnownVector(t *testing.T) {
	got, err := EncodeFriendly(knownSyncKey)
	require.NoError(t, err)
	assert.Equal(t, knownFriendly, got)
	assert.Len(t, got, FriendlySyncKeyLen)
}

func TestEncodeFriendly_WrongLength(t *testing.T) {
	_, err := EncodeFriendly(make([]byte, 15))
	require.ErrorIs(t, err, errdefs.ErrFormat)
}

func TestDecodeFriendly_KnownVector(t *testing.T) {
	for _, in := range []string{
		knownFriendly,
		strings.ToUpper(knownFriendly),
		"y4nkps6yxavi75xnuv9dsr472i",
		" y-4nkps 6yxav-i75xn uv9ds-r472i\n",
		"ｙ－４ｎｋｐｓ－６ｙｘａｖ－ｉ７５ｘｎ－ｕｖ９ｄｓ－ｒ４７２ｉ",
	} {
		got, err := DecodeFriendly(in)
		require.NoError(t, err, in)
		assert.Equal(t, knownSyncKey, got, in)
	}
}

func TestDecodeFriendly_Invalid(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"Empty", ""},
		{"TooShort", "y-4nkps-6yxav-i75xn-uv9ds"},
		{"TooLong", knownFriendly + "-aaaaa-aaaaa"},
		{"BadAlphabet", "y-4nkps-6yxav-i75xn-uv9ds-r471i"},
		{"NonASCII", "y-4nkps-6yxav-i75xn-uv9ds-r47€i"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeFriendly(tt.in)
			require.ErrorIs(t, err, errdefs.ErrFormat)
		})
	}
}

func TestFriendly_RoundTrip(t *testing.T) {
	for i := 0; i < 256; i++ {
		key := make([]byte, SyncKeySize)
		_, err := rand.Read(key)
		require.NoError(t, err)

		enc, err := EncodeFriendly(key)
		require.NoError(t, err)
		assert.Len(t, enc, FriendlySyncKeyLen)
		assert.NotContains(t, enc, "l")
		assert.NotContains(t, enc, "o")

		dec, err := DecodeFriendly(enc)
		require.NoError(t, err)
		require.Equal(t, key, dec)
	}
}

func TestNewSyncKey(t *testing.T) {
	k1, err := NewSyncKey()
	require.NoError(t, err)
	k2, err := NewSyncKey()
	require.NoError(t, err)

	assert.Len(t, k1, SyncKeySize)
	assert.NotEqual(t, k1, k2)
}
