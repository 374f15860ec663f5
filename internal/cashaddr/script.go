package cashaddr

import (
	"encoding/hex"

	"github.com/btcsuite/btcd/txscript"
	"github.com/pkg/errors"
)

const (
	p2pkhScriptSize = 25
	p2shScriptSize  = 23
)

// ParseScript returns the script type and hash of a P2PKH or P2SH locking script. Any other
// script shape returns false.
func ParseScript(script []byte) (ScriptType, []byte, bool) {
	switch len(script) {
	case p2pkhScriptSize:
		// OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG
		if script[0] == txscript.OP_DUP &&
			script[1] == txscript.OP_HASH160 &&
			script[2] == txscript.OP_DATA_20 &&
			script[23] == txscript.OP_EQUALVERIFY &&
			script[24] == txscript.OP_CHECKSIG {
			return P2PKH, script[3:23], true
		}

	case p2shScriptSize:
		// OP_HASH160 <20 bytes> OP_EQUAL
		if script[0] == txscript.OP_HASH160 &&
			script[1] == txscript.OP_DATA_20 &&
			script[22] == txscript.OP_EQUAL {
			return P2SH, script[2:22], true
		}
	}

	return 0, nil, false
}

// ScriptToAddress returns the address that a locking script pays. Unsupported script shapes
// return false, not an error.
func ScriptToAddress(prefix string, script []byte) (Address, bool) {
	t, hash, ok := ParseScript(script)
	if !ok {
		return Address{}, false
	}

	a, err := NewAddress(prefix, hash, t)
	if err != nil {
		return Address{}, false
	}
	return a, true
}

// ScriptHexToAddress is ScriptToAddress for hex encoded scripts.
func ScriptHexToAddress(prefix, scriptHex string) (Address, bool) {
	script, err := hex.DecodeString(scriptHex)
	if err != nil {
		return Address{}, false
	}
	return ScriptToAddress(prefix, script)
}

// LockingScript returns the canonical locking script for the address.
func (a Address) LockingScript() ([]byte, error) {
	b := txscript.NewScriptBuilder()
	switch a.Type {
	case P2PKH:
		b.AddOp(txscript.OP_DUP).
			AddOp(txscript.OP_HASH160).
			AddData(a.Hash[:]).
			AddOp(txscript.OP_EQUALVERIFY).
			AddOp(txscript.OP_CHECKSIG)
	case P2SH:
		b.AddOp(txscript.OP_HASH160).
			AddData(a.Hash[:]).
			AddOp(txscript.OP_EQUAL)
	default:
		return nil, errors.Wrapf(ErrUnsupportedType, "type %d", a.Type)
	}

	return b.Script()
}

// AddressToScript decodes an address string and returns its locking script.
func AddressToScript(s string) ([]byte, error) {
	a, err := Decode(s)
	if err != nil {
		return nil, errors.Wrap(err, "decode")
	}
	return a.LockingScript()
}

// AddressToScriptHex is AddressToScript returning hex.
func AddressToScriptHex(s string) (string, error) {
	script, err := AddressToScript(s)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(script), nil
}
