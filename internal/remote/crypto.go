package remote

import (
	"errors"
	"fmt"
	"os"

	"github.com/fernet/fernet-go"
)

var ErrDecrypt = errors.New("decrypt: invalid token or key")

// GenerateKey returns a new URL-safe base64 Fernet key.
func GenerateKey() (string, error) {
	var k fernet.Key
	if err := k.Generate(); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return k.Encode(), nil
}

// ParseKey decodes a base64 Fernet key.
func ParseKey(s string) (*fernet.Key, error) {
	k, err := fernet.DecodeKey(s)
	if err != nil {
		return nil, fmt.Errorf("parse key: %w", err)
	}
	return k, nil
}

// Encrypt seals data into a Fernet token.
func Encrypt(data []byte, key *fernet.Key) ([]byte, error) {
	tok, err := fernet.EncryptAndSign(data, key)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}
	return tok, nil
}

// Decrypt opens a Fernet token. Token age is not checked.
func Decrypt(tok []byte, key *fernet.Key) ([]byte, error) {
	msg := fernet.VerifyAndDecrypt(tok, -1, []*fernet.Key{key})
	if msg == nil {
		return nil, ErrDecrypt
	}
	return msg, nil
}

// EncryptFile encrypts src into dst.
func EncryptFile(src, dst string, key *fernet.Key) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	tok, err := Encrypt(data, key)
	if err != nil {
		return err
	}
	return writeFileAtomic(dst, tok)
}

// DecryptFile decrypts src into dst.
func DecryptFile(src, dst string, key *fernet.Key) error {
	tok, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("read %s: %w", src, err)
	}
	data, err := Decrypt(tok, key)
	if err != nil {
		return fmt.Errorf("%s: %w", src, err)
	}
	return writeFileAtomic(dst, data)
}
