package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/jmcleod/weavesync/errdefs"
	"github.com/jmcleod/weavesync/internal/util"
)

const hmacHexLen = 2 * sha256.Size

// Envelope is the authenticated-encryption wrapper of every stored record.
// HMAC is the hex HMAC-SHA256 of the base64 Ciphertext text.
type Envelope struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"IV"`
	HMAC       string `json:"hmac"`
}

type wireEnvelope struct {
	Ciphertext *string `json:"ciphertext"`
	IV         *string `json:"IV"`
	HMAC       *string `json:"hmac"`
}

// ParseEnvelope decodes the JSON object form of an envelope. All three fields
// must be present and be strings.
func ParseEnvelope(record []byte) (*Envelope, error) {
	var w wireEnvelope
	if err := json.Unmarshal(record, &w); err != nil {
		return nil, fmt.Errorf("%w: envelope: %s", errdefs.ErrProtocol, util.DescribeJSONError(err))
	}
	switch {
	case w.HMAC == nil:
		return nil, fmt.Errorf("%w: envelope missing hmac", errdefs.ErrProtocol)
	case w.Ciphertext == nil:
		return nil, fmt.Errorf("%w: envelope missing ciphertext", errdefs.ErrProtocol)
	case w.IV == nil:
		return nil, fmt.Errorf("%w: envelope missing IV", errdefs.ErrProtocol)
	}
	return &Envelope{Ciphertext: *w.Ciphertext, IV: *w.IV, HMAC: *w.HMAC}, nil
}

// DecryptEnvelope parses record, verifies its HMAC under kb and only then
// decrypts it. The returned bytes still carry any block padding.
func DecryptEnvelope(record []byte, kb *KeyBundle) ([]byte, error) {
	env, err := ParseEnvelope(record)
	if err != nil {
		return nil, err
	}
	return env.Open(kb)
}

// Open verifies and decrypts the envelope. No plaintext is produced unless
// the HMAC matches.
func (e *Envelope) Open(kb *KeyBundle) ([]byte, error) {
	if len(e.HMAC) != hmacHexLen {
		return nil, fmt.Errorf("%w: record hmac is %d characters, want %d", errdefs.ErrProtocol, len(e.HMAC), hmacHexLen)
	}
	recordMAC, err := util.HexDecode(e.HMAC)
	if err != nil {
		return nil, fmt.Errorf("%w: record hmac is not hex", errdefs.ErrHMACMismatch)
	}

	var plainText []byte
	err = kb.use(func(enc, mac []byte) error {
		m := hmac.New(sha256.New, mac)
		m.Write([]byte(e.Ciphertext))
		if !hmac.Equal(m.Sum(nil), recordMAC) {
			return fmt.Errorf("%w: computed hmac does not match record", errdefs.ErrHMACMismatch)
		}

		iv, err := util.Base64Decode(e.IV)
		if err != nil {
			return fmt.Errorf("%w: IV is not valid base64", errdefs.ErrProtocol)
		}
		if len(iv) != util.IVSize {
			return fmt.Errorf("%w: IV is %d bytes, want %d", errdefs.ErrProtocol, len(iv), util.IVSize)
		}
		cipherText, err := util.Base64Decode(e.Ciphertext)
		if err != nil {
			return fmt.Errorf("%w: ciphertext is not valid base64", errdefs.ErrProtocol)
		}

		plainText, err = util.DecryptAESCBC(cipherText, enc, iv)
		if err != nil {
			return fmt.Errorf("%w: %v", errdefs.ErrProtocol, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return plainText, nil
}

// SealEnvelope encrypts plainText under kb with a fresh IV and signs the
// resulting ciphertext text. It produces records in the same format servers
// hand out, for fixtures and tests.
func SealEnvelope(plainText []byte, kb *KeyBundle) (*Envelope, error) {
	iv, err := util.NewIV()
	if err != nil {
		return nil, err
	}

	var env *Envelope
	err = kb.use(func(enc, mac []byte) error {
		cipherText, err := util.EncryptAESCBC(plainText, enc, iv)
		if err != nil {
			return err
		}
		ct := util.Base64Encode(cipherText)
		m := hmac.New(sha256.New, mac)
		m.Write([]byte(ct))
		env = &Envelope{
			Ciphertext: ct,
			IV:         util.Base64Encode(iv),
			HMAC:       util.HexEncode(m.Sum(nil)),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return env, nil
}

// Marshal returns the JSON object form of the envelope.
func (e *Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}
