package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders learning stats as a Markdown document.
func RenderMarkdown(s *LearningStats) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Learning Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", s.GeneratedAt.Format(time.RFC3339)))

	// Summary
	sb.WriteString("## Summary\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Total Simulations | %d |\n", s.TotalSimulations))
	sb.WriteString(fmt.Sprintf("| Total Wins | %d |\n", s.TotalWins))
	sb.WriteString(fmt.Sprintf("| Average Win Rate | %.2f%% |\n", s.AverageWinRate))
	sb.WriteString(fmt.Sprintf("| Strategies | %d |\n", s.TotalStrategies))
	sb.WriteString(fmt.Sprintf("| High Confidence (>%.0f%%) | %d |\n", HighConfidenceThreshold, s.HighConfidenceStrategies))
	sb.WriteString(fmt.Sprintf("| Confidence | %s |\n", s.LearningProgress.Confidence))
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("**%s**\n\n", s.LearningProgress.Recommendation))

	// Top strategies
	sb.WriteString(fmt.Sprintf("## Top Strategies (min %d simulations)\n\n", TopStrategiesMinSims))
	if len(s.TopStrategies) > 0 {
		sb.WriteString("| Pattern | Simulations | Wins | WinRate | Last Seen |\n")
		sb.WriteString("|---------|-------------|------|---------|-----------|\n")
		for _, st := range s.TopStrategies {
			lastSeen := "-"
			if st.LastSeenAt != nil {
				lastSeen = st.LastSeenAt.Format(time.RFC3339)
			}
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %.2f | %s |\n",
				st.Name, st.TotalSimulations, st.TotalWins, st.WinRate, lastSeen))
		}
	} else {
		sb.WriteString("No strategy has enough simulations yet.\n")
	}
	sb.WriteString("\n")

	// Recent trades
	sb.WriteString("## Recent Simulations\n\n")
	if len(s.RecentTrades) > 0 {
		sb.WriteString("| Time | Pair | Pattern | Result |\n")
		sb.WriteString("|------|------|---------|--------|\n")
		for _, t := range s.RecentTrades {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				t.CreatedAt.Format(time.RFC3339), t.Pair, t.StrategyID, t.Result))
		}
	} else {
		sb.WriteString("No simulations recorded.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
