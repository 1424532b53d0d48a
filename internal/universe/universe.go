// Package universe holds the fixed list of trading symbols the engine samples from.
package universe

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
)

// ErrEmpty is returned when a universe would contain no symbols.
var ErrEmpty = errors.New("empty symbol universe")

// Universe is an immutable, de-duplicated list of symbols.
type Universe struct {
	symbols []string
}

// New creates a universe from symbols, dropping blanks and duplicates while preserving order.
func New(symbols []string) (*Universe, error) {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return &Universe{symbols: out}, nil
}

// Default returns the built-in universe of every base asset quoted in every quote asset.
func Default() *Universe {
	symbols := make([]string, 0, len(defaultBases)*len(defaultQuotes))
	for _, q := range defaultQuotes {
		for _, b := range defaultBases {
			if b == q {
				continue
			}
			symbols = append(symbols, b+q)
		}
	}
	u, err := New(symbols)
	if err != nil {
		panic(err)
	}
	return u
}

// Load reads one symbol per line from r. Lines starting with # are ignored.
func Load(r io.Reader) (*Universe, error) {
	var symbols []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		symbols = append(symbols, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read symbols: %w", err)
	}
	return New(symbols)
}

// LoadFile reads a symbol list from path.
func LoadFile(path string) (*Universe, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe file: %w", err)
	}
	defer f.Close()

	u, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return u, nil
}

// Size returns the number of symbols.
func (u *Universe) Size() int {
	return len(u.symbols)
}

// Symbols returns a copy of all symbols.
func (u *Universe) Symbols() []string {
	out := make([]string, len(u.symbols))
	copy(out, u.symbols)
	return out
}

// Contains reports whether symbol is part of the universe.
func (u *Universe) Contains(symbol string) bool {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	for _, s := range u.symbols {
		if s == symbol {
			return true
		}
	}
	return false
}

// Sample returns min(n, Size()) distinct symbols chosen uniformly at random.
// A nil rng uses the global source.
func (u *Universe) Sample(n int, rng *rand.Rand) []string {
	if n <= 0 {
		return nil
	}
	if n > len(u.symbols) {
		n = len(u.symbols)
	}

	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}

	// partial Fisher-Yates over a copy
	pool := u.Symbols()
	for i := 0; i < n; i++ {
		j := i + intN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:n]
}

var defaultQuotes = []string{
	"USDT", "USDC", "FDUSD", "BUSD", "TUSD", "DAI",
	"BTC", "ETH", "BNB",
	"EUR", "GBP", "TRY", "BRL", "AUD", "JPY", "RUB", "UAH", "ZAR", "PLN", "ARS",
}

var defaultBases = []string{
	"BTC", "ETH", "BNB", "SOL", "XRP", "ADA", "DOGE", "TRX", "TON", "AVAX",
	"SHIB", "DOT", "LINK", "BCH", "NEAR", "MATIC", "LTC", "ICP", "UNI", "APT",
	"ETC", "XLM", "ATOM", "FIL", "HBAR", "IMX", "ARB", "OP", "VET", "INJ",
	"MKR", "RNDR", "GRT", "STX", "SUI", "SEI", "TIA", "ALGO", "AAVE", "FTM",
	"EGLD", "THETA", "SAND", "MANA", "AXS", "FLOW", "CHZ", "XTZ", "EOS", "KAVA",
	"NEO", "IOTA", "GALA", "APE", "CRV", "LDO", "RUNE", "SNX", "COMP", "ZEC",
	"DASH", "ENJ", "BAT", "ZIL", "1INCH", "CAKE", "QNT", "MINA", "KSM", "WOO",
	"GMX", "DYDX", "PEPE", "FLOKI", "BONK", "WIF", "JUP", "PYTH", "ORDI", "WLD",
	"FET", "AGIX", "OCEAN", "ROSE", "CELO", "ONE", "ICX", "ZRX", "ANKR", "SKL",
	"STORJ", "LRC", "ENS", "BLUR", "MASK", "SUSHI", "YFI", "BAL", "UMA", "RSR",
	"HOT", "IOST", "ONT", "WAVES", "QTUM", "RVN", "SXP", "CTSI", "AUDIO", "CELR",
	"C98", "ALPHA", "BAND", "COTI", "DENT", "JASMY", "LPT", "MAGIC", "PENDLE", "STRK",
}
