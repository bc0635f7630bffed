package models

import (
	"math/big"
	"time"
)

// Token is a launch-platform asset surfaced by discovery. Liquidity,
// MarketCap and HolderCount are enrichment fields and stay nil when unknown.
type Token struct {
	Address         string    `json:"address"`
	Symbol          string    `json:"symbol"`
	Name            string    `json:"name"`
	Pool            string    `json:"pool,omitempty"`
	Creator         string    `json:"creator"`
	TokenURI        string    `json:"tokenUri,omitempty"`
	LaunchTimestamp time.Time `json:"launchTimestamp"`
	BlockNumber     uint64    `json:"blockNumber"`
	Liquidity       *float64  `json:"liquidity,omitempty"`
	MarketCap       *float64  `json:"marketCap,omitempty"`
	HolderCount     *int      `json:"holderCount,omitempty"`
}

func (t Token) Tradable() bool { return t.Pool != "" }

// CurveState is a point-in-time read of a bonding curve. Never persisted.
type CurveState struct {
	RealBaseReserve    *big.Int
	VirtualBaseReserve *big.Int
	TokenReserve       *big.Int
	Creator            string
	CreatorBase        *big.Int
	Graduated          bool
	Closed             bool
}

// CreationEvent is a decoded CurveCreate log.
type CreationEvent struct {
	Creator           string
	Token             string
	Pool              string
	Name              string
	Symbol            string
	TokenURI          string
	VirtualBase       *big.Int
	VirtualToken      *big.Int
	TargetTokenAmount *big.Int
	BlockNumber       uint64
	LogIndex          uint
	TxHash            string
}
