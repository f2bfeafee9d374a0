package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"github.com/juju/errors"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
)

const keyLen = 32

// Box AES-GCM 封装，密文 = base64(nonce|ct)
type Box struct {
	key []byte
	log *zap.Logger
}

// NewBox MASTER_KEY：base64 编码的 32 字节
func NewBox(masterKeyB64 string) (*Box, error) {
	b, err := base64.StdEncoding.DecodeString(masterKeyB64)
	if err != nil {
		return nil, errors.Annotate(err, "decode master key")
	}
	if len(b) != keyLen {
		return nil, errors.NewNotValid(nil, fmt.Sprintf("MASTER_KEY must be base64(32 bytes), got %d bytes", len(b)))
	}
	return &Box{key: b, log: zap.NewNop()}, nil
}

// NewBoxFromPassphrase argon2id 派生：1 pass, 64MB, 4 threads
func NewBoxFromPassphrase(passphrase string, salt []byte) (*Box, error) {
	if passphrase == "" {
		return nil, errors.NewNotValid(nil, "empty passphrase")
	}
	if len(salt) < 8 {
		return nil, errors.NewNotValid(nil, "salt shorter than 8 bytes")
	}
	key := argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, keyLen)
	return &Box{key: key, log: zap.NewNop()}, nil
}

func (b *Box) WithLogger(l *zap.Logger) *Box {
	if l != nil {
		b.log = l
	}
	return b
}

func (b *Box) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Seal 空串原样返回
func (b *Box) Seal(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	aead, err := b.aead()
	if err != nil {
		return "", errors.Trace(err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", errors.Trace(err)
	}
	ct := aead.Seal(nonce, nonce, []byte(plain), nil)
	return base64.StdEncoding.EncodeToString(ct), nil
}

func (b *Box) Open(cipherB64 string) (string, error) {
	if cipherB64 == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(cipherB64)
	if err != nil {
		return "", errors.Annotate(err, "decode ciphertext")
	}
	aead, err := b.aead()
	if err != nil {
		return "", errors.Trace(err)
	}
	n := aead.NonceSize()
	if len(raw) < n {
		return "", errors.NewNotValid(nil, "ciphertext too short")
	}
	nonce, ct := raw[:n], raw[n:]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", errors.Annotate(err, "open ciphertext")
	}
	return string(pt), nil
}

// MustOpen 解密失败只记日志并返回空串
func (b *Box) MustOpen(cipherB64 string) string {
	s, err := b.Open(cipherB64)
	if err != nil {
		b.log.Warn("解密失败", zap.Error(err))
		return ""
	}
	return s
}
