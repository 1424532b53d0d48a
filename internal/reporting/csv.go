package reporting

import (
	"encoding/csv"
	"strconv"
	"strings"
	"time"

	"candle-learning-lab/internal/domain"
)

// RenderCSV renders strategies as CSV with a header row.
func RenderCSV(strategies []*domain.Strategy) (string, error) {
	var sb strings.Builder
	w := csv.NewWriter(&sb)

	if err := w.Write([]string{"id", "name", "total_simulations", "total_wins", "win_rate", "last_seen_at"}); err != nil {
		return "", err
	}
	for _, st := range strategies {
		lastSeen := ""
		if st.LastSeenAt != nil {
			lastSeen = st.LastSeenAt.UTC().Format(time.RFC3339)
		}
		row := []string{
			st.ID,
			st.Name,
			strconv.FormatInt(st.TotalSimulations, 10),
			strconv.FormatInt(st.TotalWins, 10),
			strconv.FormatFloat(st.WinRate, 'f', 6, 64),
			lastSeen,
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return sb.String(), nil
}
