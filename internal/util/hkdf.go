package util

import (
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// HKDFExpand runs the HKDF-SHA256 expand step only, keyed directly by prk.
// The output is T(1) || T(2) || ... truncated to length bytes.
func HKDFExpand(prk, info []byte, length int) ([]byte, error) {
	h := hkdf.Expand(sha256.New, prk, info)
	k := make([]byte, length)
	if _, err := io.ReadFull(h, k); err != nil {
		return nil, fmt.Errorf("reading from HKDF: %w", err)
	}
	return k, nil
}
