package keyring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestSaveLoadDelete(t *testing.T) {
	keyring.MockInit()

	const account = "johndoe@example.com"
	assert.False(t, Has(account))

	_, err := Load(account)
	require.ErrorIs(t, err, ErrNotFound)

	want := Secrets{Password: "hunter2", SyncKey: "a-bcdef-ghijk-mnpqr-stuvw-xyz23"}
	require.NoError(t, Save(account, want))
	assert.True(t, Has(account))

	got, err := Load(account)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// Other accounts are untouched.
	assert.False(t, Has("jane@example.com"))

	require.NoError(t, Delete(account))
	assert.False(t, Has(account))
	require.NoError(t, Delete(account))
}

func TestLoad_Partial(t *testing.T) {
	keyring.MockInit()

	const account = "partial@example.com"
	require.NoError(t, keyring.Set(serviceName, syncKeyItem(account), "key"))

	got, err := Load(account)
	require.NoError(t, err)
	assert.Empty(t, got.Password)
	assert.Equal(t, "key", got.SyncKey)
}

func TestLoad_Error(t *testing.T) {
	keyring.MockInitWithError(assert.AnError)

	_, err := Load("johndoe@example.com")
	require.ErrorIs(t, err, assert.AnError)
	assert.ErrorIs(t, Save("johndoe@example.com", Secrets{}), assert.AnError)
	assert.ErrorIs(t, Delete("johndoe@example.com"), assert.AnError)
}
