package identity

import (
	"crypto/sha1"
	"strings"

	"github.com/jmcleod/weavesync/internal/util"
)

// Account pairs the user-supplied account name with the protocol username
// derived from it. The username is computed once in NewAccount.
type Account struct {
	name     string
	username string
}

// NewAccount resolves the protocol username for name.
func NewAccount(name string) Account {
	return Account{name: name, username: DeriveUsername(name)}
}

// Name returns the account name as supplied by the user.
func (a Account) Name() string {
	return a.name
}

// Username returns the protocol-visible username.
func (a Account) Username() string {
	return a.username
}

// DeriveUsername folds an account name into the identifier the server uses in
// resource paths. Names made only of [A-Za-z0-9._-] are lower-cased; anything
// else is replaced by the lower-case unpadded base32 SHA-1 digest of the name
// exactly as supplied.
func DeriveUsername(account string) string {
	if isPlainUsername(account) {
		return strings.ToLower(account)
	}
	digest := sha1.Sum([]byte(account))
	return util.Base32Encode(digest[:])
}

func isPlainUsername(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		case c == '.', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}
