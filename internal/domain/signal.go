package domain

// Signal is a trade suggestion projected from the best-performing strategy.
type Signal struct {
	Pair       string  `json:"pair"`
	Direction  Color   `json:"direction"`
	Confidence float64 `json:"confidence"` // win rate of the backing strategy
	Strategy   string  `json:"strategy"`   // pattern key
}
