package keys

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DefaultBits is the RSA modulus size used by both the server and participants.
const DefaultBits = 2048

const (
	privateKeyFile = "private.pem"
	publicKeyFile  = "public.pem"
)

var (
	ErrEmptyKey      = errors.New("empty key material")
	ErrNotRSA        = errors.New("key is not an RSA key")
	ErrUnparsableKey = errors.New("unparsable key material")
)

// Pair is an RSA key pair owned by the server or a participant.
type Pair struct {
	Private *rsa.PrivateKey
}

// Public returns the public half of the pair.
func (p *Pair) Public() *rsa.PublicKey {
	if p == nil || p.Private == nil {
		return nil
	}
	return &p.Private.PublicKey
}

// PublicKeyBase64 exports the public key as base64 X.509 SubjectPublicKeyInfo
// with no line wrapping. This is the form participants send at login.
func (p *Pair) PublicKeyBase64() (string, error) {
	return EncodePublicKey(p.Public())
}

// Generate creates a fresh key pair from crypto/rand.
func Generate(bits int) (*Pair, error) {
	if bits <= 0 {
		bits = DefaultBits
	}
	priv, err := rsa.GenerateKey(rand.Reader, bits)
	if err != nil {
		return nil, fmt.Errorf("generating rsa key: %w", err)
	}
	return &Pair{Private: priv}, nil
}

// LoadOrGenerate reads private.pem from dir, or generates and persists a new
// pair when none exists yet.
func LoadOrGenerate(dir string) (*Pair, error) {
	privPath := filepath.Join(dir, privateKeyFile)

	data, err := os.ReadFile(privPath)
	if err == nil {
		priv, err := ParsePrivateKey(string(data))
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", privPath, err)
		}
		return &Pair{Private: priv}, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("reading %s: %w", privPath, err)
	}

	pair, err := Generate(DefaultBits)
	if err != nil {
		return nil, err
	}
	if err := pair.Save(dir); err != nil {
		return nil, err
	}
	return pair, nil
}

// Save writes the pair as PEM files into dir. The private key is only
// readable by the owner.
func (p *Pair) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("creating key dir: %w", err)
	}

	privDER, err := x509.MarshalPKCS8PrivateKey(p.Private)
	if err != nil {
		return fmt.Errorf("marshaling private key: %w", err)
	}
	privPEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privDER})
	if err := os.WriteFile(filepath.Join(dir, privateKeyFile), privPEM, 0o600); err != nil {
		return fmt.Errorf("writing private key: %w", err)
	}

	pubDER, err := x509.MarshalPKIXPublicKey(p.Public())
	if err != nil {
		return fmt.Errorf("marshaling public key: %w", err)
	}
	pubPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER})
	if err := os.WriteFile(filepath.Join(dir, publicKeyFile), pubPEM, 0o644); err != nil {
		return fmt.Errorf("writing public key: %w", err)
	}
	return nil
}

// EncodePublicKey exports pub as unwrapped base64 SPKI.
func EncodePublicKey(pub *rsa.PublicKey) (string, error) {
	if pub == nil {
		return "", ErrEmptyKey
	}
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("marshaling public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ParsePublicKey accepts a PEM block or bare base64 DER, in SPKI or PKCS#1 form.
func ParsePublicKey(text string) (*rsa.PublicKey, error) {
	der, err := keyDER(text)
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKIXPublicKey(der); err == nil {
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, ErrNotRSA
		}
		return pub, nil
	}
	if pub, err := x509.ParsePKCS1PublicKey(der); err == nil {
		return pub, nil
	}
	return nil, ErrUnparsableKey
}

// ParsePrivateKey accepts a PEM block or bare base64 DER, in PKCS#8 or PKCS#1 form.
func ParsePrivateKey(text string) (*rsa.PrivateKey, error) {
	der, err := keyDER(text)
	if err != nil {
		return nil, err
	}

	if key, err := x509.ParsePKCS8PrivateKey(der); err == nil {
		priv, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, ErrNotRSA
		}
		return priv, nil
	}
	if priv, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return priv, nil
	}
	return nil, ErrUnparsableKey
}

func keyDER(text string) ([]byte, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyKey
	}
	if block, _ := pem.Decode([]byte(text)); block != nil {
		return block.Bytes, nil
	}
	// Some clients wrap the base64 body at 64 columns without PEM armor.
	compact := strings.Join(strings.Fields(text), "")
	der, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnparsableKey, err)
	}
	return der, nil
}

// FallbackMaterial normalizes a configured shared key or IV to exactly 16
// bytes, zero padding short values and truncating long ones.
func FallbackMaterial(value string) []byte {
	out := make([]byte, 16)
	copy(out, value)
	return out
}
