package wallet

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

const testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

func TestClassifyKey(t *testing.T) {
	cases := map[string]KeyFormat{
		"":                    FormatUnknown,
		"[1,2,3]":             FormatJSONArray,
		testMnemonic:          FormatMnemonic,
		"1,2,3":               FormatCommaList,
		"4Nd1mYw7yZ9GQ8c5xxJ": FormatBase58,
	}
	for input, want := range cases {
		assert.Equal(t, want, ClassifyKey(input), input)
	}
}

func TestParseKeyAllFormatsAgree(t *testing.T) {
	key := solana.NewWallet().PrivateKey

	ints := make([]int, len(key))
	strs := make([]string, len(key))
	for i, b := range key {
		ints[i] = int(b)
		strs[i] = strconv.Itoa(int(b))
	}
	jsonArray, err := json.Marshal(ints)
	require.NoError(t, err)

	inputs := map[KeyFormat]string{
		FormatJSONArray: string(jsonArray),
		FormatCommaList: strings.Join(strs, ","),
		FormatBase58:    key.String(),
	}
	for format, input := range inputs {
		got, gotFormat, err := ParseKey(input)
		require.NoError(t, err, format.String())
		assert.Equal(t, format, gotFormat)
		assert.Equal(t, key.PublicKey(), got.PublicKey(), format.String())
	}
}

func TestParseKeyMnemonic(t *testing.T) {
	key, format, err := ParseKey(testMnemonic)
	require.NoError(t, err)
	assert.Equal(t, FormatMnemonic, format)
	assert.Equal(t, "HAgk14JpMQLgt6rVgv7cBQFJWFto5Dqxi472uT3DKpqk", key.PublicKey().String())
}

func TestParseKeyRejects(t *testing.T) {
	inputs := []string{
		"",
		"[1,2,3]",
		"[not json",
		"1,2,300",
		"0OIl",
		"abandon abandon abandon",
	}
	for _, input := range inputs {
		_, _, err := ParseKey(input)
		require.Error(t, err, input)
		assert.ErrorIs(t, err, types.ErrUnrecognizedKeyFormat, input)
	}
}

func TestParseKeyRejectsMismatchedPublicHalf(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	other := solana.NewWallet().PrivateKey
	forged := append(append([]byte{}, key[:32]...), other[32:]...)

	_, _, err := ParseKey(solana.PrivateKey(forged).String())
	assert.ErrorIs(t, err, types.ErrUnrecognizedKeyFormat)
}

func TestLocalSigner(t *testing.T) {
	signer, err := NewRandomLocal()
	require.NoError(t, err)

	restored, err := NewLocalFromString(EncodeBase58(signer.PrivateKey()))
	require.NoError(t, err)
	assert.Equal(t, signer.PublicKey(), restored.PublicKey())

	msg := []byte("bundle")
	sig, err := restored.SignMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, sig.Verify(signer.PublicKey(), msg))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = restored.SignMessage(ctx, msg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoadLocalKeygenFile(t *testing.T) {
	key := solana.NewWallet().PrivateKey
	ints := make([]int, len(key))
	for i, b := range key {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, append(raw, '\n'), 0o600))

	l, err := LoadLocal(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), l.PublicKey())

	require.NoError(t, os.WriteFile(path, []byte("garbage!"), 0o600))
	_, err = LoadLocal(path)
	assert.ErrorIs(t, err, types.ErrUnrecognizedKeyFormat)

	_, err = LoadLocal(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
