package wallet

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"
	"github.com/tyler-smith/go-bip39"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

// KeyFormat identifies how a stored private key is encoded.
type KeyFormat int

const (
	FormatUnknown KeyFormat = iota
	FormatJSONArray
	FormatMnemonic
	FormatCommaList
	FormatBase58
)

func (f KeyFormat) String() string {
	switch f {
	case FormatJSONArray:
		return "json-array"
	case FormatMnemonic:
		return "mnemonic"
	case FormatCommaList:
		return "comma-list"
	case FormatBase58:
		return "base58"
	default:
		return "unknown"
	}
}

// SolanaDerivationPath is the first account on the standard Solana BIP44 path.
var SolanaDerivationPath = []uint32{44, 501, 0, 0}

// ClassifyKey reports the encoding of a stored key without decoding it.
func ClassifyKey(input string) KeyFormat {
	s := strings.TrimSpace(input)
	switch {
	case s == "":
		return FormatUnknown
	case strings.HasPrefix(s, "["):
		return FormatJSONArray
	case len(strings.Fields(s)) > 1:
		return FormatMnemonic
	case strings.Contains(s, ","):
		return FormatCommaList
	default:
		return FormatBase58
	}
}

// ParseKey decodes a private key stored in any of the supported encodings.
// Failures wrap types.ErrUnrecognizedKeyFormat.
func ParseKey(input string) (solana.PrivateKey, KeyFormat, error) {
	s := strings.TrimSpace(input)
	format := ClassifyKey(s)

	var (
		raw []byte
		err error
	)
	switch format {
	case FormatJSONArray:
		raw, err = parseJSONArray(s)
	case FormatMnemonic:
		raw, err = fromMnemonic(s)
	case FormatCommaList:
		raw, err = parseCommaList(s)
	case FormatBase58:
		raw, err = base58.Decode(s)
	default:
		err = fmt.Errorf("empty input")
	}
	if err != nil {
		return nil, format, fmt.Errorf("%w: %s: %v", types.ErrUnrecognizedKeyFormat, format, err)
	}

	key, err := checkKeypair(raw)
	if err != nil {
		return nil, format, fmt.Errorf("%w: %s: %v", types.ErrUnrecognizedKeyFormat, format, err)
	}
	return key, format, nil
}

// NewLocalFromString builds a local signer from any supported key encoding.
func NewLocalFromString(input string) (Local, error) {
	key, _, err := ParseKey(input)
	if err != nil {
		return Local{}, err
	}
	return NewLocal(key), nil
}

// EncodeBase58 renders a private key in the format launch records are stored with.
func EncodeBase58(key solana.PrivateKey) string {
	return base58.Encode(key)
}

func parseJSONArray(s string) ([]byte, error) {
	var values []int
	if err := json.Unmarshal([]byte(s), &values); err != nil {
		return nil, err
	}
	return toBytes(values)
}

func parseCommaList(s string) ([]byte, error) {
	parts := strings.Split(s, ",")
	values := make([]int, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return toBytes(values)
}

func toBytes(values []int) ([]byte, error) {
	out := make([]byte, len(values))
	for i, v := range values {
		if v < 0 || v > 255 {
			return nil, fmt.Errorf("byte %d out of range: %d", i, v)
		}
		out[i] = byte(v)
	}
	return out, nil
}

// checkKeypair accepts a 64-byte secret key whose public half matches its seed.
func checkKeypair(raw []byte) (solana.PrivateKey, error) {
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("secret key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	derived := ed25519.NewKeyFromSeed(raw[:ed25519.SeedSize])
	if !hmac.Equal(derived[ed25519.SeedSize:], raw[ed25519.SeedSize:]) {
		return nil, fmt.Errorf("public key does not match secret")
	}
	return solana.PrivateKey(derived), nil
}

func fromMnemonic(mnemonic string) ([]byte, error) {
	seed, err := bip39.NewSeedWithErrorChecking(strings.Join(strings.Fields(mnemonic), " "), "")
	if err != nil {
		return nil, err
	}
	return deriveEd25519(seed, SolanaDerivationPath), nil
}

// deriveEd25519 walks a fully hardened SLIP-0010 path and returns the 64-byte keypair.
func deriveEd25519(seed []byte, path []uint32) []byte {
	key, chain := slip10(seed)
	for _, index := range path {
		data := make([]byte, 0, 37)
		data = append(data, 0)
		data = append(data, key...)
		data = binary.BigEndian.AppendUint32(data, index|0x80000000)
		key, chain = hmacSplit(chain, data)
	}
	return ed25519.NewKeyFromSeed(key)
}

func slip10(seed []byte) (key, chain []byte) {
	return hmacSplit([]byte("ed25519 seed"), seed)
}

func hmacSplit(secret, data []byte) (left, right []byte) {
	mac := hmac.New(sha512.New, secret)
	mac.Write(data)
	sum := mac.Sum(nil)
	return sum[:32], sum[32:]
}
