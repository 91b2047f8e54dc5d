package identity

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/jmcleod/weavesync/errdefs"
	"github.com/jmcleod/weavesync/internal/util"
)

const (
	// SyncKeySize is the length of a raw sync key in bytes.
	SyncKeySize = 16
	// FriendlySyncKeyLen is the length of the dash-grouped text form.
	FriendlySyncKeyLen = 31

	base32SyncKeyLen = 26
	friendlyGroupLen = 5
)

// NewSyncKey generates a random sync key.
func NewSyncKey() ([]byte, error) {
	return util.RandomBytes(SyncKeySize)
}

// EncodeFriendly renders a raw sync key in its 31-character friendly form.
func EncodeFriendly(key []byte) (string, error) {
	if len(key) != SyncKeySize {
		return "", fmt.Errorf("%w: sync key is %d bytes, want %d", errdefs.ErrFormat, len(key), SyncKeySize)
	}

	enc := util.Base32Encode(key)

	var sb strings.Builder
	sb.Grow(FriendlySyncKeyLen)
	sb.WriteByte(toFriendly(enc[0]))
	for i := 1; i < len(enc); i++ {
		if (i-1)%friendlyGroupLen == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(toFriendly(enc[i]))
	}
	return sb.String(), nil
}

// DecodeFriendly parses a friendly sync key. Dashes and whitespace are
// ignored, case is not significant and compatibility characters (for example
// full-width digits pasted from another application) are folded first.
func DecodeFriendly(s string) ([]byte, error) {
	s = util.Normalize(s)

	var sb strings.Builder
	sb.Grow(base32SyncKeyLen)
	for _, r := range s {
		if r == '-' || unicode.IsSpace(r) {
			continue
		}
		if r > unicode.MaxASCII {
			return nil, fmt.Errorf("%w: sync key contains non-ASCII character %q", errdefs.ErrFormat, r)
		}
		sb.WriteByte(fromFriendly(byte(r)))
	}

	key, err := util.Base32Decode(sb.String())
	if err != nil {
		return nil, fmt.Errorf("%w: sync key is not valid base32: %v", errdefs.ErrFormat, err)
	}
	if len(key) != SyncKeySize {
		util.WipeBytes(key)
		return nil, fmt.Errorf("%w: sync key decodes to %d bytes, want %d", errdefs.ErrFormat, len(key), SyncKeySize)
	}
	return key, nil
}

func toFriendly(c byte) byte {
	switch c {
	case 'l':
		return '8'
	case 'o':
		return '9'
	}
	return c
}

func fromFriendly(c byte) byte {
	switch c {
	case '8':
		return 'L'
	case '9':
		return 'O'
	}
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}
