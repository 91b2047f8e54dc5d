package util

import (
	"encoding/base32"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var base32NoPad = base32.StdEncoding.WithPadding(base32.NoPadding)

func Normalize(s string) string {
	return norm.NFKC.String(s)
}

// Base32Encode returns the lower-case, unpadded RFC 4648 encoding of b.
func Base32Encode(b []byte) string {
	return strings.ToLower(base32NoPad.EncodeToString(b))
}

// Base32Decode accepts either case, with or without padding.
func Base32Decode(s string) ([]byte, error) {
	s = strings.TrimRight(strings.ToUpper(s), "=")
	return base32NoPad.DecodeString(s)
}

func Base64Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func Base64Decode(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}
