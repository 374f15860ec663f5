package cashaddr

import (
	"strings"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/pkg/errors"
)

const (
	// DefaultPrefix is the network prefix of eCash mainnet addresses.
	DefaultPrefix = "ecash"

	// TestPrefix is the network prefix of eCash testnet addresses.
	TestPrefix = "ectest"

	charset = "qpzry9x8gf2tvdw0s3jn54khce6mua7l"

	// HashSize is the only hash size supported (size code 0 in the version byte).
	HashSize = 20

	checksumSize = 8
)

// ScriptType is the locking script type encoded in the version byte.
type ScriptType uint8

const (
	P2PKH = ScriptType(0)
	P2SH  = ScriptType(1)
)

var (
	ErrInvalidCharacter = errors.New("Invalid character")
	ErrInvalidChecksum  = errors.New("Invalid checksum")
	ErrMixedCase        = errors.New("Mixed case")
	ErrInvalidLength    = errors.New("Invalid length")
	ErrInvalidPrefix    = errors.New("Invalid prefix")
	ErrUnsupportedType  = errors.New("Unsupported address type")

	generators = [5]uint64{0x98f2bc8e61, 0x79b76d99e2, 0xf33e5fb3c4, 0xae2eabe2a8, 0x1e4f43e470}

	charsetRev [128]int8
)

func init() {
	for i := range charsetRev {
		charsetRev[i] = -1
	}
	for i, c := range charset {
		charsetRev[c] = int8(i)
	}
}

func (t ScriptType) String() string {
	switch t {
	case P2PKH:
		return "p2pkh"
	case P2SH:
		return "p2sh"
	default:
		return "unknown"
	}
}

// Address is a decoded cash address.
type Address struct {
	Prefix string
	Type   ScriptType
	Hash   [HashSize]byte
}

// NewAddress creates an address from a 20 byte hash.
func NewAddress(prefix string, hash []byte, t ScriptType) (Address, error) {
	result := Address{Prefix: strings.ToLower(prefix), Type: t}
	if len(hash) != HashSize {
		return result, errors.Wrapf(ErrInvalidLength, "hash size %d", len(hash))
	}
	if t != P2PKH && t != P2SH {
		return result, errors.Wrapf(ErrUnsupportedType, "type %d", t)
	}
	if len(result.Prefix) == 0 {
		return result, ErrInvalidPrefix
	}
	copy(result.Hash[:], hash)
	return result, nil
}

// String returns the checksummed, prefixed, lower case form of the address.
func (a Address) String() string {
	s, err := Encode(a.Prefix, a.Hash[:], a.Type)
	if err != nil {
		return ""
	}
	return s
}

// Encode returns the cash address string for a hash and script type.
func Encode(prefix string, hash []byte, t ScriptType) (string, error) {
	prefix = strings.ToLower(prefix)
	if len(prefix) == 0 {
		return "", ErrInvalidPrefix
	}
	if len(hash) != HashSize {
		return "", errors.Wrapf(ErrInvalidLength, "hash size %d", len(hash))
	}
	if t != P2PKH && t != P2SH {
		return "", errors.Wrapf(ErrUnsupportedType, "type %d", t)
	}

	raw := make([]byte, 0, HashSize+1)
	raw = append(raw, byte(t)<<3) // size code 0 means 160 bits
	raw = append(raw, hash...)

	payload, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", errors.Wrap(err, "convert bits")
	}

	values := append(expandPrefix(prefix), payload...)
	values = append(values, make([]byte, checksumSize)...)
	mod := polymod(values)

	var b strings.Builder
	b.Grow(len(prefix) + 1 + len(payload) + checksumSize)
	b.WriteString(prefix)
	b.WriteByte(':')
	for _, v := range payload {
		b.WriteByte(charset[v])
	}
	for i := 0; i < checksumSize; i++ {
		b.WriteByte(charset[(mod>>uint(5*(7-i)))&0x1f])
	}

	return b.String(), nil
}

// Decode parses an address using DefaultPrefix when the string has no prefix.
func Decode(s string) (Address, error) {
	return DecodeWithPrefix(s, DefaultPrefix)
}

// DecodeWithPrefix parses an address. When the string doesn't contain a prefix the
// defaultPrefix is used to verify the checksum.
func DecodeWithPrefix(s, defaultPrefix string) (Address, error) {
	var result Address

	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if lower != s && strings.ToUpper(s) != s {
		return result, ErrMixedCase
	}

	prefix := strings.ToLower(defaultPrefix)
	body := lower
	if i := strings.LastIndexByte(lower, ':'); i != -1 {
		prefix = lower[:i]
		body = lower[i+1:]
	}
	if len(prefix) == 0 {
		return result, ErrInvalidPrefix
	}
	if len(body) <= checksumSize {
		return result, errors.Wrapf(ErrInvalidLength, "length %d", len(body))
	}

	data := make([]byte, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c >= 128 || charsetRev[c] == -1 {
			return result, errors.Wrapf(ErrInvalidCharacter, "%q at %d", c, i)
		}
		data[i] = byte(charsetRev[c])
	}

	if polymod(append(expandPrefix(prefix), data...)) != 0 {
		return result, ErrInvalidChecksum
	}

	raw, err := bech32.ConvertBits(data[:len(data)-checksumSize], 5, 8, false)
	if err != nil {
		return result, errors.Wrap(ErrInvalidLength, err.Error())
	}
	if len(raw) != HashSize+1 {
		return result, errors.Wrapf(ErrInvalidLength, "payload size %d", len(raw))
	}

	version := raw[0]
	if version&0x80 != 0 || version&0x07 != 0 {
		return result, errors.Wrapf(ErrUnsupportedType, "version %02x", version)
	}

	t := ScriptType(version >> 3)
	if t != P2PKH && t != P2SH {
		return result, errors.Wrapf(ErrUnsupportedType, "type %d", t)
	}

	result.Prefix = prefix
	result.Type = t
	copy(result.Hash[:], raw[1:])
	return result, nil
}

// Normalize trims and lower cases an address string. It doesn't validate it.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Canonical decodes an address and returns its prefixed lower case form.
func Canonical(s, defaultPrefix string) (string, error) {
	a, err := DecodeWithPrefix(s, defaultPrefix)
	if err != nil {
		return "", err
	}
	return a.String(), nil
}

// expandPrefix returns the lower 5 bits of each prefix character followed by a zero separator.
func expandPrefix(prefix string) []byte {
	result := make([]byte, len(prefix)+1)
	for i := 0; i < len(prefix); i++ {
		result[i] = prefix[i] & 0x1f
	}
	return result
}

func polymod(values []byte) uint64 {
	c := uint64(1)
	for _, d := range values {
		c0 := byte(c >> 35)
		c = ((c & 0x07ffffffff) << 5) ^ uint64(d)
		for i, g := range generators {
			if (c0>>uint(i))&1 != 0 {
				c ^= g
			}
		}
	}
	return c ^ 1
}
