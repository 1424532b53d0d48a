package domain

// TradeResult is the outcome class of a simulated trade.
type TradeResult string

const (
	ResultWin  TradeResult = "WIN"
	ResultLoss TradeResult = "LOSS"
)

// ResultFromWin maps a prediction hit to its result.
func ResultFromWin(isWin bool) TradeResult {
	if isWin {
		return ResultWin
	}
	return ResultLoss
}

// String returns the string representation of TradeResult.
func (r TradeResult) String() string {
	return string(r)
}

// IsValid checks if the result is a valid value.
func (r TradeResult) IsValid() bool {
	return r == ResultWin || r == ResultLoss
}
