package envelope

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"Forest/services/keys"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newPair(t *testing.T) *keys.Pair {
	t.Helper()
	pair, err := keys.Generate(keys.DefaultBits)
	require.NoError(t, err)
	return pair
}

func TestHybridRoundTrip(t *testing.T) {
	codec := Default(zaptest.NewLogger(t))
	pair := newPair(t)

	payloads := map[string][]byte{
		"object": []byte(`{"room_code":"ab12","username":"alice"}`),
		"text":   []byte("hello there"),
		"empty":  {},
		"block":  []byte("0123456789abcdef"),
	}

	for name, payload := range payloads {
		t.Run(name, func(t *testing.T) {
			env, err := codec.Encrypt(payload, pair.Public())
			require.NoError(t, err)
			assert.True(t, env.Encrypted)
			assert.Equal(t, MethodHybrid, env.Method)
			assert.NotEmpty(t, env.EncryptedKey)
			assert.NotEmpty(t, env.IV)

			iv, err := base64.StdEncoding.DecodeString(env.IV)
			require.NoError(t, err)
			assert.Len(t, iv, 16)

			out, err := codec.Decrypt(env, pair.Private)
			require.NoError(t, err)
			assert.Equal(t, payload, out.Bytes())
		})
	}
}

func TestHybridUsesFreshKeyMaterial(t *testing.T) {
	codec := Default(nil)
	pair := newPair(t)

	a, err := codec.Encrypt([]byte("same"), pair.Public())
	require.NoError(t, err)
	b, err := codec.Encrypt([]byte("same"), pair.Public())
	require.NoError(t, err)

	assert.NotEqual(t, a.IV, b.IV)
	assert.NotEqual(t, a.EncryptedKey, b.EncryptedKey)
}

func TestFallbackWithoutRecipientKey(t *testing.T) {
	codec := Default(zaptest.NewLogger(t))

	env, err := codec.Encrypt([]byte(`{"ok":true}`), nil)
	require.NoError(t, err)
	assert.Equal(t, MethodFallback, env.Method)
	assert.Empty(t, env.EncryptedKey)
	assert.Empty(t, env.IV)

	// No private key is needed to open a fallback envelope.
	out, err := codec.Decrypt(env, nil)
	require.NoError(t, err)
	assert.True(t, out.IsStructured())
	assert.Equal(t, `{"ok":true}`, out.Text())
}

func TestEncryptForInvalidKeyFallsBack(t *testing.T) {
	codec := Default(nil)

	env, err := codec.EncryptFor([]byte("hi"), "not a key")
	require.NoError(t, err)
	assert.Equal(t, MethodFallback, env.Method)

	env, err = codec.EncryptFor([]byte("hi"), "")
	require.NoError(t, err)
	assert.Equal(t, MethodFallback, env.Method)
}

func TestEncryptForExportedKey(t *testing.T) {
	codec := Default(nil)
	pair := newPair(t)
	exported, err := pair.PublicKeyBase64()
	require.NoError(t, err)

	env, err := codec.EncryptFor([]byte("hi"), exported)
	require.NoError(t, err)
	assert.Equal(t, MethodHybrid, env.Method)

	out, err := codec.Decrypt(env, pair.Private)
	require.NoError(t, err)
	assert.Equal(t, "hi", out.Text())
}

func TestLegacyMethodNames(t *testing.T) {
	codec := Default(nil)
	pair := newPair(t)

	hybrid, err := codec.Encrypt([]byte("legacy"), pair.Public())
	require.NoError(t, err)
	hybrid.Method = "hybrid-rsa-aes"
	out, err := codec.Decrypt(hybrid, pair.Private)
	require.NoError(t, err)
	assert.Equal(t, "legacy", out.Text())

	fallback, err := codec.Encrypt([]byte("legacy"), nil)
	require.NoError(t, err)
	fallback.Method = "aes-128-cbc"
	out, err = codec.Decrypt(fallback, nil)
	require.NoError(t, err)
	assert.Equal(t, "legacy", out.Text())
}

func TestHybridLabelledFallbackPayloadIsRecovered(t *testing.T) {
	codec := Default(nil)
	pair := newPair(t)

	env, err := codec.Encrypt([]byte(`{"move":1}`), nil)
	require.NoError(t, err)
	env.Method = MethodHybrid
	env.EncryptedKey = base64.StdEncoding.EncodeToString([]byte("garbage"))
	env.IV = base64.StdEncoding.EncodeToString(make([]byte, 16))

	out, err := codec.Decrypt(env, pair.Private)
	require.NoError(t, err)
	assert.Equal(t, `{"move":1}`, out.Text())
}

func TestDecryptFailures(t *testing.T) {
	codec := Default(nil)
	pair := newPair(t)
	other := newPair(t)

	t.Run("not encrypted", func(t *testing.T) {
		_, err := codec.Decrypt(Envelope{Encrypted: false, Data: "x"}, pair.Private)
		assert.ErrorIs(t, err, ErrNotEncrypted)
	})

	t.Run("unknown method", func(t *testing.T) {
		_, err := codec.Decrypt(Envelope{Encrypted: true, Method: "rot13", Data: "x"}, pair.Private)
		assert.ErrorIs(t, err, ErrUnknownMethod)
	})

	t.Run("wrong private key", func(t *testing.T) {
		env, err := codec.Encrypt([]byte("secret"), pair.Public())
		require.NoError(t, err)
		_, err = codec.Decrypt(env, other.Private)
		assert.ErrorIs(t, err, ErrDecrypt)
	})

	t.Run("truncated ciphertext", func(t *testing.T) {
		env := Envelope{
			Encrypted: true,
			Method:    MethodFallback,
			Data:      base64.StdEncoding.EncodeToString(make([]byte, 10)),
		}
		_, err := codec.Decrypt(env, nil)
		assert.ErrorIs(t, err, ErrDecrypt)
	})

	t.Run("bad base64", func(t *testing.T) {
		_, err := codec.Decrypt(Envelope{Encrypted: true, Method: MethodFallback, Data: "%%%"}, nil)
		assert.ErrorIs(t, err, ErrDecrypt)
	})
}

func TestPlaintextVariants(t *testing.T) {
	structured := newPlaintext([]byte(` {"a":1}`))
	assert.True(t, structured.IsStructured())
	var decoded map[string]int
	require.NoError(t, structured.Decode(&decoded))
	assert.Equal(t, 1, decoded["a"])

	raw := newPlaintext([]byte("42"))
	assert.False(t, raw.IsStructured())
	assert.ErrorIs(t, raw.Decode(&decoded), ErrNotStructured)
	assert.Equal(t, "42", raw.Text())

	broken := newPlaintext([]byte(`{"a":`))
	assert.False(t, broken.IsStructured())
}

func TestParse(t *testing.T) {
	codec := Default(nil)
	env, err := codec.Encrypt([]byte("x"), nil)
	require.NoError(t, err)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var asMap map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &asMap))

	for name, input := range map[string]any{
		"map":    asMap,
		"bytes":  data,
		"string": string(data),
		"struct": env,
	} {
		t.Run(name, func(t *testing.T) {
			parsed, err := Parse(input)
			require.NoError(t, err)
			assert.Equal(t, env, parsed)
		})
	}

	_, err = Parse(nil)
	assert.ErrorIs(t, err, ErrMalformed)
	_, err = Parse("{not json")
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestPKCS7(t *testing.T) {
	for n := 0; n <= 33; n++ {
		data := make([]byte, n)
		padded := pkcs7Pad(data, 16)
		assert.Zero(t, len(padded)%16)
		assert.Greater(t, len(padded), n)
		out, err := pkcs7Unpad(padded, 16)
		require.NoError(t, err)
		assert.Len(t, out, n)
	}

	_, err := pkcs7Unpad(make([]byte, 16), 16)
	assert.ErrorIs(t, err, errPadding)
}
