package pulse

import (
	"time"
)

// Record statuses.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusWon       = "won"
	StatusLost      = "lost"
	StatusRefunded  = "refunded"
)

// Prediction and raffle statuses.
const (
	StatusActive = "active"
	StatusClosed = "closed"
)

// Bet positions.
const (
	PositionYes = "yes"
	PositionNo  = "no"
)

type User struct {
	ID          string    `db:"id" json:"id"`
	Address     string    `db:"address" json:"address"`
	DateCreated time.Time `db:"date_created" json:"date_created"`
}

type Session struct {
	Token       string    `db:"token" json:"token"`
	UserID      string    `db:"user_id" json:"user_id"`
	ExpiresAt   time.Time `db:"expires_at" json:"expires_at"`
	DateCreated time.Time `db:"date_created" json:"date_created"`
}

type AuthTransaction struct {
	TxHash      string    `db:"tx_hash" json:"tx_hash"`
	UserID      string    `db:"user_id" json:"user_id"`
	Address     string    `db:"address" json:"address"`
	Amount      int64     `db:"amount" json:"amount"`
	DateCreated time.Time `db:"date_created" json:"date_created"`
}

type Prediction struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Status      string    `db:"status" json:"status"`
	YesPool     int64     `db:"yes_pool" json:"yes_pool"`
	NoPool      int64     `db:"no_pool" json:"no_pool"`
	TotalVolume int64     `db:"total_volume" json:"total_volume"`
	BetCount    int       `db:"bet_count" json:"bet_count"`
	DateCreated time.Time `db:"date_created" json:"date_created"`
}

// Outcome is one option of a multiple choice prediction.
type Outcome struct {
	ID           string    `db:"id" json:"id"`
	PredictionID string    `db:"prediction_id" json:"prediction_id"`
	Label        string    `db:"label" json:"label"`
	Pool         int64     `db:"pool" json:"pool"`
	DateCreated  time.Time `db:"date_created" json:"date_created"`
}

type Bet struct {
	ID           string     `db:"id" json:"id"`
	UserID       string     `db:"user_id" json:"user_id"`
	PredictionID string     `db:"prediction_id" json:"prediction_id"`
	OutcomeID    *string    `db:"outcome_id" json:"outcome_id,omitempty"`
	Position     string     `db:"position" json:"position"`
	Amount       int64      `db:"amount" json:"amount"`
	PaidAmount   int64      `db:"paid_amount" json:"paid_amount"`
	TxHash       *string    `db:"tx_hash" json:"tx_hash,omitempty"`
	Status       string     `db:"status" json:"status"`
	ConfirmedAt  *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	DateCreated  time.Time  `db:"date_created" json:"date_created"`
}

type Raffle struct {
	ID           string    `db:"id" json:"id"`
	Title        string    `db:"title" json:"title"`
	EntryCost    int64     `db:"entry_cost" json:"entry_cost"`
	TotalPot     int64     `db:"total_pot" json:"total_pot"`
	EntriesCount int       `db:"entries_count" json:"entries_count"`
	Status       string    `db:"status" json:"status"`
	DateCreated  time.Time `db:"date_created" json:"date_created"`
}

type RaffleEntry struct {
	ID          string     `db:"id" json:"id"`
	RaffleID    string     `db:"raffle_id" json:"raffle_id"`
	UserID      string     `db:"user_id" json:"user_id"`
	Amount      int64      `db:"amount" json:"amount"`
	PaidAmount  int64      `db:"paid_amount" json:"paid_amount"`
	TxHash      *string    `db:"tx_hash" json:"tx_hash,omitempty"`
	Status      string     `db:"status" json:"status"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	DateCreated time.Time  `db:"date_created" json:"date_created"`
}

// PlatformFee is written once for each confirmed record.
type PlatformFee struct {
	ID          string    `db:"id" json:"id"`
	SourceType  string    `db:"source_type" json:"source_type"`
	SourceID    string    `db:"source_id" json:"source_id"`
	TxHash      string    `db:"tx_hash" json:"tx_hash"`
	Amount      int64     `db:"amount" json:"amount"`
	Rate        string    `db:"rate" json:"rate"`
	DateCreated time.Time `db:"date_created" json:"date_created"`
}

// AttributionChange records a record moving to the user that signed its payment.
type AttributionChange struct {
	ID            string    `db:"id" json:"id"`
	RecordType    string    `db:"record_type" json:"record_type"`
	RecordID      string    `db:"record_id" json:"record_id"`
	FromUserID    string    `db:"from_user_id" json:"from_user_id"`
	ToUserID      string    `db:"to_user_id" json:"to_user_id"`
	TxHash        string    `db:"tx_hash" json:"tx_hash"`
	SenderAddress string    `db:"sender_address" json:"sender_address"`
	DateCreated   time.Time `db:"date_created" json:"date_created"`
}

type UsedTransaction struct {
	TxHash      string    `db:"tx_hash" json:"tx_hash"`
	RecordType  string    `db:"record_type" json:"record_type"`
	RecordID    string    `db:"record_id" json:"record_id"`
	DateCreated time.Time `db:"date_created" json:"date_created"`
}
