package util

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"strings"
	"testing"
)

func TestAESCBC(t *testing.T) {
	key := bytes.Repeat([]byte{0x42}, AESKeySize)
	iv, err := NewIV()
	if err != nil {
		t.Fatalf("NewIV failed: %v", err)
	}
	plainText := []byte(`{"id":"keys","default":["a","b"]}`)

	t.Run("EncryptDecrypt", func(t *testing.T) {
		cipherText, err := EncryptAESCBC(plainText, key, iv)
		if err != nil {
			t.Fatalf("EncryptAESCBC failed: %v", err)
		}
		if len(cipherText)%IVSize != 0 {
			t.Fatalf("ciphertext length %d not block aligned", len(cipherText))
		}

		decrypted, err := DecryptAESCBC(cipherText, key, iv)
		if err != nil {
			t.Fatalf("DecryptAESCBC failed: %v", err)
		}
		if !bytes.Equal(plainText, UnpadPKCS7(decrypted)) {
			t.Errorf("expected %s, got %s", plainText, decrypted)
		}
		if !bytes.HasPrefix(decrypted, plainText) {
			t.Error("padding should be left in place by DecryptAESCBC")
		}
	})

	t.Run("RejectBadKeySize", func(t *testing.T) {
		if _, err := DecryptAESCBC(make([]byte, 16), []byte("too short"), iv); err == nil {
			t.Error("expected error with wrong key size, got nil")
		}
	})

	t.Run("RejectBadIVSize", func(t *testing.T) {
		if _, err := DecryptAESCBC(make([]byte, 16), key, []byte("short")); err == nil {
			t.Error("expected error with wrong IV size, got nil")
		}
	})

	t.Run("RejectUnalignedCiphertext", func(t *testing.T) {
		if _, err := DecryptAESCBC(make([]byte, 17), key, iv); err == nil {
			t.Error("expected error with unaligned ciphertext, got nil")
		}
	})
}

func TestUnpadPKCS7(t *testing.T) {
	tests := []struct {
		name string
		in   []byte
		want []byte
	}{
		{"FullBlockOfPadding", append([]byte("0123456789abcdef"), bytes.Repeat([]byte{16}, 16)...), []byte("0123456789abcdef")},
		{"PartialBlock", append([]byte("hello world"), bytes.Repeat([]byte{5}, 5)...), []byte("hello world")},
		{"InvalidPaddingUnchanged", []byte("0123456789abcde\x03"), []byte("0123456789abcde\x03")},
		{"ZeroPaddingUnchanged", []byte("0123456789abcde\x00"), []byte("0123456789abcde\x00")},
		{"UnalignedUnchanged", []byte("abc"), []byte("abc")},
		{"Empty", nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UnpadPKCS7(tt.in); !bytes.Equal(got, tt.want) {
				t.Errorf("UnpadPKCS7(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestHKDFExpand(t *testing.T) {
	prk := []byte("sixteen byte key")
	info := []byte("Sync-AES_256_CBC-HMAC256user")

	out, err := HKDFExpand(prk, info, 64)
	if err != nil {
		t.Fatalf("HKDFExpand failed: %v", err)
	}

	// T(1) = HMAC(prk, info || 0x01); T(2) = HMAC(prk, T(1) || info || 0x02)
	m := hmac.New(sha256.New, prk)
	m.Write(info)
	m.Write([]byte{0x01})
	t1 := m.Sum(nil)

	m = hmac.New(sha256.New, prk)
	m.Write(t1)
	m.Write(info)
	m.Write([]byte{0x02})
	t2 := m.Sum(nil)

	if !bytes.Equal(out[:32], t1) {
		t.Errorf("first block mismatch: %x != %x", out[:32], t1)
	}
	if !bytes.Equal(out[32:], t2) {
		t.Errorf("second block mismatch: %x != %x", out[32:], t2)
	}
}

func TestBase32(t *testing.T) {
	raw := []byte{0xc7, 0x1a, 0xa7, 0xcb, 0xd8, 0xb8, 0x2a, 0x8f, 0xf6, 0xed, 0xa5, 0x5c, 0x39, 0x47, 0x9f, 0xd2}

	enc := Base32Encode(raw)
	if enc != "y4nkps6yxavi75xnuvodsr472i" {
		t.Errorf("unexpected encoding %q", enc)
	}

	for _, in := range []string{enc, strings.ToUpper(enc), strings.ToUpper(enc) + "======"} {
		dec, err := Base32Decode(in)
		if err != nil {
			t.Fatalf("Base32Decode(%q) failed: %v", in, err)
		}
		if !bytes.Equal(dec, raw) {
			t.Errorf("Base32Decode(%q) = %x, want %x", in, dec, raw)
		}
	}

	if _, err := Base32Decode("not*base32"); err == nil {
		t.Error("expected error for invalid base32, got nil")
	}
}

func TestNormalize(t *testing.T) {
	// Full-width characters fold to ASCII under NFKC.
	if got := Normalize("ｙ－４ｎｋ"); got != "y-4nk" {
		t.Errorf("Normalize returned %q", got)
	}
}

func TestWipeBytes(t *testing.T) {
	b := []byte("secret")
	c := CopyBytes(b)
	WipeBytes(b)
	if !bytes.Equal(b, make([]byte, 6)) {
		t.Errorf("expected zeroed slice, got %v", b)
	}
	if string(c) != "secret" {
		t.Error("CopyBytes should not alias the source")
	}
}
