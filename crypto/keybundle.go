// Package crypto implements the key hierarchy and record envelope of the sync
// protocol.
//
// A KeyBundle pairs a 32-byte AES-256 key with a 32-byte HMAC-SHA256 key. The
// sync bundle is derived from the user's sync key; the default bundle is
// recovered from the server's crypto/keys record, which is sealed under the
// sync bundle. Both keys live in memguard locked buffers that are frozen after
// construction and wiped by Destroy.
package crypto

import (
	"fmt"

	"github.com/awnumar/memguard"
	"github.com/jmcleod/weavesync/errdefs"
	"github.com/jmcleod/weavesync/identity"
	"github.com/jmcleod/weavesync/internal/util"
)

const (
	EncryptionKeySize = 32
	HMACKeySize       = 32
)

var keyBundleInfoPrefix = []byte("Sync-AES_256_CBC-HMAC256")

// KeyBundle holds an encryption key and an HMAC key. It is read-only after
// construction and safe for concurrent use until Destroy is called.
type KeyBundle struct {
	encryption *memguard.LockedBuffer
	hmac       *memguard.LockedBuffer
}

// newKeyBundle moves enc and mac into locked memory. Both source slices are
// wiped.
func newKeyBundle(enc, mac []byte) *KeyBundle {
	kb := &KeyBundle{
		encryption: memguard.NewBufferFromBytes(enc),
		hmac:       memguard.NewBufferFromBytes(mac),
	}
	kb.encryption.Freeze()
	kb.hmac.Freeze()
	return kb
}

// Destroy wipes both keys. It is safe to call more than once.
func (kb *KeyBundle) Destroy() {
	if kb == nil {
		return
	}
	kb.encryption.Destroy()
	kb.hmac.Destroy()
}

// Destroyed reports whether Destroy has been called.
func (kb *KeyBundle) Destroyed() bool {
	return kb == nil || !kb.encryption.IsAlive() || !kb.hmac.IsAlive()
}

// DeriveKeyBundle derives the sync KeyBundle from a raw 16-byte sync key and
// the protocol username. The derivation is the HKDF-SHA256 expand step keyed
// by the sync key with info "Sync-AES_256_CBC-HMAC256" || username:
//
//	encryption = HMAC-SHA256(syncKey, info || 0x01)
//	hmac       = HMAC-SHA256(syncKey, encryption || info || 0x02)
func DeriveKeyBundle(syncKey []byte, username string) (*KeyBundle, error) {
	if len(syncKey) != identity.SyncKeySize {
		return nil, fmt.Errorf("%w: sync key is %d bytes, want %d", errdefs.ErrFormat, len(syncKey), identity.SyncKeySize)
	}

	info := make([]byte, 0, len(keyBundleInfoPrefix)+len(username))
	info = append(info, keyBundleInfoPrefix...)
	info = append(info, username...)

	okm, err := util.HKDFExpand(syncKey, info, EncryptionKeySize+HMACKeySize)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrAllocation, err)
	}
	defer util.WipeBytes(okm)

	return newKeyBundle(util.CopyBytes(okm[:EncryptionKeySize]), util.CopyBytes(okm[EncryptionKeySize:])), nil
}

// DeriveKeyBundleFromFriendly decodes a friendly sync key and derives the sync
// KeyBundle from it.
func DeriveKeyBundleFromFriendly(friendly, username string) (*KeyBundle, error) {
	syncKey, err := identity.DecodeFriendly(friendly)
	if err != nil {
		return nil, err
	}
	defer util.WipeBytes(syncKey)
	return DeriveKeyBundle(syncKey, username)
}

// KeyBundleFromBase64Pair builds a KeyBundle from base64 encryption and HMAC
// keys, as found in the default entry of crypto/keys.
func KeyBundleFromBase64Pair(keyB64, hmacB64 string) (*KeyBundle, error) {
	enc, err := decodeKey(keyB64, EncryptionKeySize, "encryption")
	if err != nil {
		return nil, err
	}
	mac, err := decodeKey(hmacB64, HMACKeySize, "hmac")
	if err != nil {
		util.WipeBytes(enc)
		return nil, err
	}
	return newKeyBundle(enc, mac), nil
}

func decodeKey(s string, size int, name string) ([]byte, error) {
	k, err := util.Base64Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s key is not valid base64: %v", errdefs.ErrFormat, name, err)
	}
	if len(k) != size {
		util.WipeBytes(k)
		return nil, fmt.Errorf("%w: %s key is %d bytes, want %d", errdefs.ErrProtocol, name, len(k), size)
	}
	return k, nil
}

// use runs fn with both keys while they are alive.
func (kb *KeyBundle) use(fn func(enc, mac []byte) error) error {
	if kb.Destroyed() {
		return fmt.Errorf("%w: key bundle destroyed", errdefs.ErrSessionClosed)
	}
	return fn(kb.encryption.Bytes(), kb.hmac.Bytes())
}
