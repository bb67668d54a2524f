package advisor

import (
	"fmt"
	"strings"

	"crypto-concierge/internal/domain"
)

const persona = `You are a crypto market concierge. Your role is to explain current market conditions and indicator readings, NOT to tell users what to buy or sell.

Rules:
- Ground every observation in the market data you were given.
- Never fabricate numbers. If data is unavailable or marked as fallback, say so.
- Indicator values are short-window estimates, so frame them as approximate.
- Express uncertainty when indicators disagree with the price action.
- Keep responses concise. This is a chat interface, not a report.
- If asked about an asset you have no data for, say so honestly rather than speculating.`

// BuildPrompt folds the persona, recent history and the new message into a
// single prompt string suitable for any of the ensemble backends.
func BuildPrompt(history []domain.ChatTurn, userMessage string) string {
	var sb strings.Builder
	sb.WriteString(persona)

	if len(history) > 0 {
		sb.WriteString("\n\nConversation so far:\n")
		for _, turn := range history {
			sb.WriteString(turn.Role)
			sb.WriteString(": ")
			sb.WriteString(turn.Content)
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nuser: ")
	sb.WriteString(userMessage)
	return sb.String()
}

func FormatMarketContext(coins []domain.CoinStat, stats domain.AggregateStats, origin domain.Origin) string {
	var sb strings.Builder

	if len(coins) > 0 {
		sb.WriteString("Coins:\n")
		for _, c := range coins {
			sb.WriteString(fmt.Sprintf("  %s (%s): $%.2f (24h: %+.2f%%, vol: $%.0f, mood: %s, RSI: %.0f)\n",
				c.Symbol, c.Name, c.Price, c.ChangePct24h, c.Volume24h, c.Mood, c.Indicators.RSI14))
		}
	}

	sb.WriteString(fmt.Sprintf("\nMarket: total 24h volume $%.0f, BTC dominance %.1f%%, avg change %+.2f%%, mood %s\n",
		stats.TotalVolume24h, stats.BTCDominancePct, stats.AvgChangePct24h, stats.GlobalMood))
	if len(stats.TrendingSymbols) > 0 {
		sb.WriteString("Trending: " + strings.Join(stats.TrendingSymbols, ", ") + "\n")
	}
	if origin == domain.OriginFallback {
		sb.WriteString("Note: live market feeds are unavailable, figures above are stale fallback data.\n")
	}

	return sb.String()
}
