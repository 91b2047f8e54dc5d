package util

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"fmt"
)

const (
	AESKeySize = 32
	IVSize     = aes.BlockSize
)

// DecryptAESCBC decrypts cipherText with AES-256-CBC. Block padding is left
// in place; callers that know the payload framing strip it themselves.
func DecryptAESCBC(cipherText, rawKey, iv []byte) ([]byte, error) {
	if len(rawKey) != AESKeySize {
		return nil, fmt.Errorf("invalid AES key size: got %d, want %d", len(rawKey), AESKeySize)
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("invalid IV size: got %d, want %d", len(iv), IVSize)
	}
	if len(cipherText)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("ciphertext length %d is not a multiple of the block size", len(cipherText))
	}

	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	plainText := make([]byte, len(cipherText))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plainText, cipherText)
	return plainText, nil
}

// EncryptAESCBC PKCS#7-pads plainText and encrypts it with AES-256-CBC.
func EncryptAESCBC(plainText, rawKey, iv []byte) ([]byte, error) {
	if len(rawKey) != AESKeySize {
		return nil, fmt.Errorf("invalid AES key size: got %d, want %d", len(rawKey), AESKeySize)
	}
	if len(iv) != IVSize {
		return nil, fmt.Errorf("invalid IV size: got %d, want %d", len(iv), IVSize)
	}

	block, err := aes.NewCipher(rawKey)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}

	padded := PadPKCS7(plainText, aes.BlockSize)
	cipherText := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(cipherText, padded)
	return cipherText, nil
}

func PadPKCS7(b []byte, blockSize int) []byte {
	n := blockSize - len(b)%blockSize
	return append(CopyBytes(b), bytes.Repeat([]byte{byte(n)}, n)...)
}

// UnpadPKCS7 returns b without its PKCS#7 padding. If b does not end in valid
// padding it is returned unchanged.
func UnpadPKCS7(b []byte) []byte {
	if len(b) == 0 || len(b)%aes.BlockSize != 0 {
		return b
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize {
		return b
	}
	for _, c := range b[len(b)-n:] {
		if int(c) != n {
			return b
		}
	}
	return b[:len(b)-n]
}

func NewIV() ([]byte, error) {
	return RandomBytes(IVSize)
}
