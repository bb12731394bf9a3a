package keystore

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tensors-cli/tensors/krypto"
	"github.com/tensors-cli/tensors/store"
)

const (
	testPhrase  = "banana consider excuse claw treat travel flash bundle belt danger aunt dragon"
	testSeed    = "0xee88e102c6c924fb67552215894a43cca267c8b94da8dffc66acb8578382d80b"
	testAccount = "0xe06feefcde9ee212c0a05c365f509d0228d52371369094ac60dea4a798f1d477"
	testSS58    = "5H8yqMeyP4i8ZYVd7i2rNgPZawgdJnhkQ92sSfJfguF8RbWd"
)

func testKeystore(t *testing.T, password *SecretString) *Keystore {
	t.Helper()

	k, err := New("default", Fields{
		AccountID:    testAccount,
		PublicKey:    testAccount,
		SS58Address:  testSS58,
		SecretPhrase: NewSecretString(testPhrase),
		SecretSeed:   NewSecretString(testSeed),
	}, password)
	require.NoError(t, err)
	return k
}

func requireOwnerOnly(t *testing.T, path string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		return
	}
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestNewRequiresDerivedFields(t *testing.T) {
	full := Fields{AccountID: "0x01", PublicKey: "0x01", SS58Address: "5x"}

	cases := []struct {
		name   string
		mutate func(*Fields)
	}{
		{name: "account id", mutate: func(f *Fields) { f.AccountID = "" }},
		{name: "public key", mutate: func(f *Fields) { f.PublicKey = "" }},
		{name: "address", mutate: func(f *Fields) { f.SS58Address = "" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := full
			tc.mutate(&f)
			_, err := New("w", f, nil)
			require.ErrorIs(t, err, ErrMissingField)
		})
	}

	k, err := New("w", full, nil)
	require.NoError(t, err)
	require.False(t, k.HasSecrets())
}

func TestSavePublicOnlyNullsSecrets(t *testing.T) {
	dir := t.TempDir()
	k := testKeystore(t, NewSecretString("password"))
	require.True(t, k.HasSecrets())

	require.NoError(t, k.SavePublicOnly(dir))

	path := filepath.Join(dir, store.ColdkeyPubFilename)
	requireOwnerOnly(t, path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got, 5)
	require.Contains(t, got, "secretPhrase")
	require.Contains(t, got, "secretSeed")
	require.Nil(t, got["secretPhrase"])
	require.Nil(t, got["secretSeed"])
	require.Equal(t, testAccount, got["accountId"])
	require.Equal(t, testAccount, got["publicKey"])
	require.Equal(t, testSS58, got["ss58Address"])
	require.NotContains(t, string(raw), "password")

	// The in-memory record keeps its secrets.
	require.Equal(t, testPhrase, k.SecretPhrase.Reveal())
}

func TestSaveSecretPlaintext(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coldkey.json")
	k := testKeystore(t, NewSecretString("hunter2"))

	require.NoError(t, k.SaveSecretPlaintext(path))
	requireOwnerOnly(t, path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, krypto.EncryptionUnencrypted, krypto.DetectEncryptionType(raw))

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	require.Len(t, got, 5)
	require.Equal(t, testPhrase, got["secretPhrase"])
	require.Equal(t, testSeed, got["secretSeed"])
	require.NotContains(t, string(raw), "hunter2")
	require.NotContains(t, got, "password")
	require.NotContains(t, got, "name")
}

func TestSaveEncryptedRequiresPassword(t *testing.T) {
	for _, pw := range []*SecretString{nil, NewSecretString("")} {
		dir := t.TempDir()
		k := testKeystore(t, pw)

		err := k.SaveEncrypted(dir)
		require.ErrorIs(t, err, ErrNoPasswordProvided)

		_, statErr := os.Stat(filepath.Join(dir, store.ColdkeyFilename))
		require.ErrorIs(t, statErr, fs.ErrNotExist)
	}
}

func TestSaveLoadEncryptedRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("sensitive argon2i parameters allocate 512 MiB")
	}

	dir := t.TempDir()
	k := testKeystore(t, NewSecretString("password"))
	require.NoError(t, k.SaveEncrypted(dir))

	path := filepath.Join(dir, store.ColdkeyFilename)
	requireOwnerOnly(t, path)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, krypto.EncryptionNacl, krypto.DetectEncryptionType(raw))
	require.NotContains(t, string(raw), "banana")

	loaded, err := LoadEncrypted(path, NewSecretString("password"))
	require.NoError(t, err)
	require.Equal(t, testAccount, loaded.AccountID)
	require.Equal(t, testAccount, loaded.PublicKey)
	require.Equal(t, testSS58, loaded.SS58Address)
	require.Equal(t, testPhrase, loaded.SecretPhrase.Reveal())
	require.Equal(t, testSeed, loaded.SecretSeed.Reveal())
	require.Equal(t, "password", loaded.Password.Reveal())

	_, err = LoadEncrypted(path, NewSecretString("not the password"))
	require.ErrorIs(t, err, krypto.ErrAuthenticationFailed)
}

func TestLoadEncryptedRejectsNonJSONPayload(t *testing.T) {
	if testing.Short() {
		t.Skip("sensitive argon2i parameters allocate 512 MiB")
	}

	envelope, err := krypto.Encrypt([]byte("definitely not json"), []byte("pw"))
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), store.ColdkeyFilename)
	require.NoError(t, os.WriteFile(path, envelope, 0o600))

	_, err = LoadEncrypted(path, NewSecretString("pw"))
	require.ErrorIs(t, err, ErrDeserialization)
}

func TestLoadEncryptedErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadEncrypted(filepath.Join(dir, "missing"), NewSecretString("pw"))
	require.ErrorIs(t, err, ErrIO)
	require.ErrorIs(t, err, fs.ErrNotExist)

	cases := []struct {
		name    string
		content string
		want    error
	}{
		{name: "plaintext json", content: `{"accountId":"0x01"}`, want: krypto.ErrMalformedEnvelope},
		{name: "truncated envelope", content: "$NACL0123456789", want: krypto.ErrMalformedEnvelope},
		{name: "garbage", content: "\x00\x01\x02", want: krypto.ErrMalformedEnvelope},
		{name: "ansible vault", content: "$ANSIBLE_VAULT;1.1;AES256\n00", want: krypto.ErrUnsupportedEncryptionType},
		{name: "legacy fernet", content: "gAAAAABkAAAA", want: krypto.ErrUnsupportedEncryptionType},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(dir, tc.name)
			require.NoError(t, os.WriteFile(path, []byte(tc.content), 0o600))

			_, err := LoadEncrypted(path, NewSecretString("pw"))
			require.ErrorIs(t, err, tc.want)
		})
	}
}

func TestLoadPublic(t *testing.T) {
	dir := t.TempDir()
	k := testKeystore(t, nil)
	require.NoError(t, k.SavePublicOnly(dir))

	loaded, err := LoadPublic(dir)
	require.NoError(t, err)
	require.Equal(t, testSS58, loaded.SS58Address)
	require.Equal(t, testAccount, loaded.PublicKey)
	require.Nil(t, loaded.SecretPhrase)
	require.Nil(t, loaded.SecretSeed)
	require.Nil(t, loaded.Password)
}

func TestLoadPublicDropsSecrets(t *testing.T) {
	dir := t.TempDir()
	k := testKeystore(t, nil)
	require.NoError(t, k.SaveSecretPlaintext(filepath.Join(dir, store.ColdkeyPubFilename)))

	loaded, err := LoadPublic(dir)
	require.NoError(t, err)
	require.False(t, loaded.HasSecrets())
}

func TestLoadPublicInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, store.ColdkeyPubFilename)

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	_, err := LoadPublic(dir)
	require.ErrorIs(t, err, ErrDeserialization)

	require.NoError(t, os.WriteFile(path, []byte(`{"accountId":"0x01"}`), 0o600))
	_, err = LoadPublic(dir)
	require.ErrorIs(t, err, ErrDeserialization)
	require.ErrorIs(t, err, ErrMissingField)
}

func TestSecretsAreRedactedAndWiped(t *testing.T) {
	k := testKeystore(t, NewSecretString("hunter2"))

	for _, format := range []string{"%v", "%+v", "%#v", "%s"} {
		out := fmt.Sprintf(format, k)
		require.NotContains(t, out, "banana", format)
		require.NotContains(t, out, "hunter2", format)
	}

	phrase := k.SecretPhrase.Expose()
	k.Wipe()
	for _, b := range phrase {
		require.Zero(t, b)
	}
	require.True(t, k.SecretPhrase.Empty())
	require.True(t, k.Password.Empty())
	require.False(t, k.HasSecrets())
}

func TestSecretStringUnmarshalJSON(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: `"hunter2"`, want: "hunter2"},
		{name: "empty", in: `""`, want: ""},
		{name: "escapes", in: `"a\"b\\c\/d\n\t"`, want: "a\"b\\c/d\n\t"},
		{name: "unicode escape", in: `"caf\u00e9"`, want: "café"},
		{name: "surrogate pair", in: `"\ud83d\udd11"`, want: "🔑"},
		{name: "raw utf8", in: `"päss"`, want: "päss"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var s SecretString
			require.NoError(t, json.Unmarshal([]byte(tc.in), &s))
			require.Equal(t, tc.want, s.Reveal())

			var std string
			require.NoError(t, json.Unmarshal([]byte(tc.in), &std))
			require.Equal(t, std, s.Reveal())
		})
	}
}

func TestSecretStringUnmarshalJSONRejectsNonStrings(t *testing.T) {
	for _, in := range []string{`42`, `{}`, `"unterminated`, `"bad \x escape"`, `"\u12"`} {
		var s SecretString
		require.Error(t, s.UnmarshalJSON([]byte(in)), in)
		require.True(t, s.Empty(), in)
	}
}

func TestSecretStringUnmarshalJSONOwnsBuffer(t *testing.T) {
	data := []byte(`"hunter2"`)
	var s SecretString
	require.NoError(t, s.UnmarshalJSON(data))

	copy(data, `"xxxxxxx"`)
	require.Equal(t, "hunter2", s.Reveal())

	buf := s.Expose()
	s.Wipe()
	for _, b := range buf {
		require.Zero(t, b)
	}
}
