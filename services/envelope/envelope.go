// Package envelope implements the message wrapper every client and server
// payload travels in: AES-128-CBC content encryption with the content key
// wrapped by the recipient's RSA key, and a shared-key fallback for when the
// recipient's key is unavailable.
//
// The fallback channel uses a key and IV that ship with every client. It keeps
// messages well formed when key exchange broke down; it is NOT confidential.
package envelope

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"Forest/services/keys"

	"go.uber.org/zap"
)

type Method string

const (
	MethodHybrid   Method = "hybrid"
	MethodFallback Method = "symmetric-fallback"

	// Names still sent by deployed clients.
	legacyHybrid   Method = "hybrid-rsa-aes"
	legacyFallback Method = "aes-128-cbc"
)

const (
	DefaultFallbackKey = "SecureKey7890123"
	DefaultFallbackIV  = "Vector4567890123"
)

const contentKeySize = 16

var (
	ErrNotEncrypted      = errors.New("envelope is not encrypted")
	ErrUnknownMethod     = errors.New("unknown envelope method")
	ErrMalformed         = errors.New("malformed envelope")
	ErrMissingPrivateKey = errors.New("private key required for hybrid envelope")
	ErrDecrypt           = errors.New("envelope decryption failed")
)

// Envelope is the wire form of a secured message. Binary fields are standard
// base64 without line breaks.
type Envelope struct {
	Encrypted    bool   `json:"encrypted"`
	Method       Method `json:"method"`
	EncryptedKey string `json:"encrypted_key,omitempty"`
	IV           string `json:"iv,omitempty"`
	Data         string `json:"data"`
}

// Canonical maps legacy method names onto the current ones.
func (m Method) Canonical() Method {
	switch m {
	case legacyHybrid:
		return MethodHybrid
	case legacyFallback:
		return MethodFallback
	}
	return m
}

// Codec encrypts and decrypts envelopes. It is safe for concurrent use.
type Codec struct {
	fallbackKey []byte
	fallbackIV  []byte
	logger      *zap.Logger
}

// NewCodec builds a codec around the shared fallback material. Both key and
// IV are normalized to 16 bytes.
func NewCodec(fallbackKey, fallbackIV string, logger *zap.Logger) *Codec {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Codec{
		fallbackKey: keys.FallbackMaterial(fallbackKey),
		fallbackIV:  keys.FallbackMaterial(fallbackIV),
		logger:      logger,
	}
}

// Default returns a codec using the fallback material every client ships with.
func Default(logger *zap.Logger) *Codec {
	return NewCodec(DefaultFallbackKey, DefaultFallbackIV, logger)
}

// Encrypt seals plaintext for pub. A nil key or any RSA failure degrades to
// the symmetric fallback instead of failing.
func (c *Codec) Encrypt(plaintext []byte, pub *rsa.PublicKey) (Envelope, error) {
	if pub == nil {
		c.logger.Debug("[ENVELOPE] no recipient key, using fallback")
		return c.encryptFallback(plaintext)
	}

	env, err := c.encryptHybrid(plaintext, pub)
	if err != nil {
		c.logger.Debug("[ENVELOPE] hybrid encryption failed, using fallback", zap.Error(err))
		return c.encryptFallback(plaintext)
	}
	return env, nil
}

// EncryptFor seals plaintext for a public key in its exported text form.
// An empty or unparsable key degrades to the fallback.
func (c *Codec) EncryptFor(plaintext []byte, publicKey string) (Envelope, error) {
	if publicKey == "" {
		return c.Encrypt(plaintext, nil)
	}
	pub, err := keys.ParsePublicKey(publicKey)
	if err != nil {
		c.logger.Debug("[ENVELOPE] recipient key unusable", zap.Error(err))
		return c.Encrypt(plaintext, nil)
	}
	return c.Encrypt(plaintext, pub)
}

// EncryptJSON marshals v and seals it for pub.
func (c *Codec) EncryptJSON(v any, pub *rsa.PublicKey) (Envelope, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshaling payload: %w", err)
	}
	return c.Encrypt(data, pub)
}

func (c *Codec) encryptHybrid(plaintext []byte, pub *rsa.PublicKey) (Envelope, error) {
	contentKey := make([]byte, contentKeySize)
	iv := make([]byte, contentKeySize)
	if _, err := rand.Read(contentKey); err != nil {
		return Envelope{}, err
	}
	if _, err := rand.Read(iv); err != nil {
		return Envelope{}, err
	}

	ciphertext, err := cbcEncrypt(contentKey, iv, plaintext)
	if err != nil {
		return Envelope{}, err
	}
	wrapped, err := rsa.EncryptPKCS1v15(rand.Reader, pub, contentKey)
	if err != nil {
		return Envelope{}, fmt.Errorf("wrapping content key: %w", err)
	}

	return Envelope{
		Encrypted:    true,
		Method:       MethodHybrid,
		EncryptedKey: base64.StdEncoding.EncodeToString(wrapped),
		IV:           base64.StdEncoding.EncodeToString(iv),
		Data:         base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

func (c *Codec) encryptFallback(plaintext []byte) (Envelope, error) {
	ciphertext, err := cbcEncrypt(c.fallbackKey, c.fallbackIV, plaintext)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		Encrypted: true,
		Method:    MethodFallback,
		Data:      base64.StdEncoding.EncodeToString(ciphertext),
	}, nil
}

// Decrypt opens env with priv. A hybrid envelope that cannot be opened is
// retried as a fallback envelope before an error is returned.
func (c *Codec) Decrypt(env Envelope, priv *rsa.PrivateKey) (Plaintext, error) {
	if !env.Encrypted {
		return Plaintext{}, ErrNotEncrypted
	}

	switch env.Method.Canonical() {
	case MethodFallback:
		raw, err := c.decryptFallback(env.Data)
		if err != nil {
			return Plaintext{}, fmt.Errorf("%w: %v", ErrDecrypt, err)
		}
		return newPlaintext(raw), nil

	case MethodHybrid:
		raw, hybridErr := c.decryptHybrid(env, priv)
		if hybridErr == nil {
			return newPlaintext(raw), nil
		}
		c.logger.Debug("[ENVELOPE] hybrid decryption failed, retrying fallback", zap.Error(hybridErr))

		raw, fallbackErr := c.decryptFallback(env.Data)
		if fallbackErr == nil && utf8.Valid(raw) {
			return newPlaintext(raw), nil
		}
		if fallbackErr == nil {
			fallbackErr = errors.New("fallback output is not text")
		}
		return Plaintext{}, fmt.Errorf("%w: %w", ErrDecrypt, errors.Join(hybridErr, fallbackErr))
	}

	return Plaintext{}, fmt.Errorf("%w: %q", ErrUnknownMethod, env.Method)
}

func (c *Codec) decryptHybrid(env Envelope, priv *rsa.PrivateKey) ([]byte, error) {
	if priv == nil {
		return nil, ErrMissingPrivateKey
	}
	wrapped, err := base64.StdEncoding.DecodeString(env.EncryptedKey)
	if err != nil {
		return nil, fmt.Errorf("%w: encrypted_key: %v", ErrMalformed, err)
	}
	iv, err := base64.StdEncoding.DecodeString(env.IV)
	if err != nil {
		return nil, fmt.Errorf("%w: iv: %v", ErrMalformed, err)
	}
	ciphertext, err := base64.StdEncoding.DecodeString(env.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}

	contentKey, err := rsa.DecryptPKCS1v15(nil, priv, wrapped)
	if err != nil {
		return nil, fmt.Errorf("unwrapping content key: %w", err)
	}
	return cbcDecrypt(contentKey, iv, ciphertext)
}

func (c *Codec) decryptFallback(data string) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("%w: data: %v", ErrMalformed, err)
	}
	return cbcDecrypt(c.fallbackKey, c.fallbackIV, ciphertext)
}

// Parse converts an incoming transport value into an Envelope. Socket.io
// delivers decoded JSON objects, REST bodies arrive as bytes, and some
// clients send the JSON text as a string.
func Parse(v any) (Envelope, error) {
	var data []byte
	switch t := v.(type) {
	case nil:
		return Envelope{}, fmt.Errorf("%w: empty payload", ErrMalformed)
	case Envelope:
		return t, nil
	case *Envelope:
		return *t, nil
	case []byte:
		data = t
	case string:
		data = []byte(t)
	default:
		var err error
		if data, err = json.Marshal(t); err != nil {
			return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if env.Data == "" && env.Encrypted {
		return Envelope{}, fmt.Errorf("%w: missing data", ErrMalformed)
	}
	return env, nil
}
