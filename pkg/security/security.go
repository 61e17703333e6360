package security

import (
	"bytes"
	"crypto/aes"
	"crypto/md5"
	"errors"
	"fmt"
)

// signKey is the vendor application sign key. Both the command body cipher
// key and packet trailers derive from it.
const signKey = "xhdiwjnchekd4d512chdjx5d8e4c394D2D7S"

// Security layer errors.
var (
	// ErrSignMismatch indicates a checksum or signature verification failure.
	ErrSignMismatch = errors.New("sign does not match")

	// ErrBadPadding indicates invalid PKCS#7 padding after decryption.
	ErrBadPadding = errors.New("invalid padding")

	// ErrCiphertextLength indicates a ciphertext that is not a whole number
	// of AES blocks.
	ErrCiphertextLength = errors.New("ciphertext length is not block aligned")

	// ErrHandshakeFailed indicates the appliance rejected the token handshake.
	ErrHandshakeFailed = errors.New("handshake rejected by appliance")
)

// bodyKey is the AES key for command bodies: MD5 of the sign key.
var bodyKey = md5.Sum([]byte(signKey))

// EncryptBody encrypts a command body with AES-ECB under the sign-key-derived
// key. The body is PKCS#7 padded to the AES block size first.
func EncryptBody(body []byte) []byte {
	block, err := aes.NewCipher(bodyKey[:])
	if err != nil {
		// Key is a compile-time constant of valid length.
		panic(err)
	}

	padded := pkcs7Pad(body, aes.BlockSize)
	out := make([]byte, len(padded))
	for i := 0; i < len(padded); i += aes.BlockSize {
		block.Encrypt(out[i:i+aes.BlockSize], padded[i:i+aes.BlockSize])
	}
	return out
}

// DecryptBody decrypts an AES-ECB encrypted command body and strips the
// PKCS#7 padding.
func DecryptBody(data []byte) ([]byte, error) {
	if len(data) == 0 || len(data)%aes.BlockSize != 0 {
		return nil, fmt.Errorf("%w: %d bytes", ErrCiphertextLength, len(data))
	}

	block, err := aes.NewCipher(bodyKey[:])
	if err != nil {
		panic(err)
	}

	out := make([]byte, len(data))
	for i := 0; i < len(data); i += aes.BlockSize {
		block.Decrypt(out[i:i+aes.BlockSize], data[i:i+aes.BlockSize])
	}
	return pkcs7Unpad(out, aes.BlockSize)
}

// Trailer computes the 16-byte packet trailer: MD5 over the packet bytes
// concatenated with the sign key.
func Trailer(data []byte) [16]byte {
	h := md5.New()
	h.Write(data)
	h.Write([]byte(signKey))
	var sum [16]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// VerifyTrailer checks the 16-byte MD5 trailer at the end of data against the
// preceding bytes. Returns ErrSignMismatch on failure.
func VerifyTrailer(data []byte) error {
	if len(data) < md5.Size {
		return fmt.Errorf("%w: packet shorter than trailer", ErrSignMismatch)
	}
	body, trailer := data[:len(data)-md5.Size], data[len(data)-md5.Size:]
	want := Trailer(body)
	if !bytes.Equal(want[:], trailer) {
		return ErrSignMismatch
	}
	return nil
}

// pkcs7Pad appends PKCS#7 padding up to blockSize.
func pkcs7Pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+n)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(n)
	}
	return padded
}

// pkcs7Unpad strips and validates PKCS#7 padding.
func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, ErrBadPadding
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize || n > len(data) {
		return nil, ErrBadPadding
	}
	for _, b := range data[len(data)-n:] {
		if int(b) != n {
			return nil, ErrBadPadding
		}
	}
	return data[:len(data)-n], nil
}
