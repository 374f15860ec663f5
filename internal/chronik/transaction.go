package chronik

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrInvalidTxID is returned before any network call when a txid is not 64 lower case hex
	// characters.
	ErrInvalidTxID = errors.New("Invalid txid")

	// ErrNotFound is returned when the indexers don't know the transaction.
	ErrNotFound = errors.New("Transaction not found")

	// ErrNetwork is returned when no indexer returned a usable response.
	ErrNetwork = errors.New("Indexer unavailable")
)

// Transaction is an indexer transaction normalized so callers don't depend on indexer specific
// field names.
type Transaction struct {
	TxID          string
	Inputs        []Input
	Outputs       []Output
	TimeFirstSeen int64
	Block         *Block
}

type OutPoint struct {
	TxID   string
	OutIdx uint32
}

type Input struct {
	PrevOut      OutPoint
	OutputScript string // hex locking script of the spent output
	Value        int64
}

type Output struct {
	Value        int64
	OutputScript string // hex
}

type Block struct {
	Hash      string
	Height    int32
	Timestamp int64
}

// Time returns the block time when the transaction is confirmed, otherwise the first seen time.
// False is returned if neither is known.
func (tx Transaction) Time() (time.Time, bool) {
	if tx.Block != nil && tx.Block.Timestamp > 0 {
		return time.Unix(tx.Block.Timestamp, 0), true
	}
	if tx.TimeFirstSeen > 0 {
		return time.Unix(tx.TimeFirstSeen, 0), true
	}
	return time.Time{}, false
}

// IsConfirmed returns true when the transaction is in a block.
func (tx Transaction) IsConfirmed() bool {
	return tx.Block != nil
}

// ValidTxID returns true for exactly 64 lower case hex characters.
func ValidTxID(txid string) bool {
	if len(txid) != 64 {
		return false
	}
	for i := 0; i < len(txid); i++ {
		c := txid[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}

// flexInt decodes integers that indexers send either as JSON numbers or as strings.
type flexInt int64

func (v *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if len(s) == 0 || s == "null" {
		*v = 0
		return nil
	}

	i, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return errors.Wrapf(err, "parse int %s", s)
	}

	*v = flexInt(i)
	return nil
}

type jsonOutPoint struct {
	TxID   string `json:"txid"`
	OutIdx uint32 `json:"outIdx"`
}

type jsonInput struct {
	PrevOut      jsonOutPoint `json:"prevOut"`
	OutputScript string       `json:"outputScript"`
	Value        flexInt      `json:"value"`
	Sats         flexInt      `json:"sats"`
}

type jsonOutput struct {
	Value        flexInt `json:"value"`
	Sats         flexInt `json:"sats"`
	OutputScript string  `json:"outputScript"`
}

type jsonBlock struct {
	Hash      string  `json:"hash"`
	Height    int32   `json:"height"`
	Timestamp flexInt `json:"timestamp"`
}

type jsonTransaction struct {
	TxID          string       `json:"txid"`
	Inputs        []jsonInput  `json:"inputs"`
	Outputs       []jsonOutput `json:"outputs"`
	TimeFirstSeen flexInt      `json:"timeFirstSeen"`
	Block         *jsonBlock   `json:"block"`
}

type jsonHistory struct {
	Txs      []jsonTransaction `json:"txs"`
	NumPages int               `json:"numPages"`
	NumTxs   int               `json:"numTxs"`
}

func amount(value, sats flexInt) int64 {
	if value != 0 {
		return int64(value)
	}
	return int64(sats)
}

func (jt jsonTransaction) normalize() *Transaction {
	tx := &Transaction{
		TxID:          strings.ToLower(jt.TxID),
		TimeFirstSeen: int64(jt.TimeFirstSeen),
		Inputs:        make([]Input, 0, len(jt.Inputs)),
		Outputs:       make([]Output, 0, len(jt.Outputs)),
	}

	for _, in := range jt.Inputs {
		tx.Inputs = append(tx.Inputs, Input{
			PrevOut: OutPoint{
				TxID:   in.PrevOut.TxID,
				OutIdx: in.PrevOut.OutIdx,
			},
			OutputScript: strings.ToLower(in.OutputScript),
			Value:        amount(in.Value, in.Sats),
		})
	}

	for _, out := range jt.Outputs {
		tx.Outputs = append(tx.Outputs, Output{
			Value:        amount(out.Value, out.Sats),
			OutputScript: strings.ToLower(out.OutputScript),
		})
	}

	if jt.Block != nil {
		tx.Block = &Block{
			Hash:      jt.Block.Hash,
			Height:    jt.Block.Height,
			Timestamp: int64(jt.Block.Timestamp),
		}
	}

	return tx
}
