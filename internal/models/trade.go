package models

import "time"

type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// TradeRecord is one entry of the capped trade ledger.
type TradeRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	Symbol    string    `json:"symbol"`
	Address   string    `json:"address"`
	Amount    float64   `json:"amount"`
	Price     float64   `json:"price"`
	TxHash    string    `json:"txHash,omitempty"`
	Pool      string    `json:"pool,omitempty"`
}

type InvestmentDecision struct {
	Action     Action  `json:"action"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

type TradeResult struct {
	Success bool    `json:"success"`
	Amount  float64 `json:"amount"`
	Price   float64 `json:"price"`
	TxHash  string  `json:"txHash,omitempty"`
	Error   string  `json:"error,omitempty"`
}

// AgentStatus is a point-in-time view of the agent loop for dashboards.
type AgentStatus struct {
	Running       bool      `json:"running"`
	ReadOnly      bool      `json:"readOnly"`
	Halted        bool      `json:"halted"`
	Cycles        uint64    `json:"cycles"`
	LastCycleAt   time.Time `json:"lastCycleAt,omitempty"`
	LastCycleErr  string    `json:"lastCycleError,omitempty"`
	SeenTokens    int       `json:"seenTokens"`
	TradesToday   int       `json:"tradesToday"`
	OpenPositions int       `json:"openPositions"`
}
