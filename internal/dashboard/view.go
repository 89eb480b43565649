package dashboard

import (
	"github.com/shopspring/decimal"

	"github.com/souravmenon1999/ticker-dashboard/internal/ticker"
)

// View is everything the page renders for one state.
type View struct {
	Title  string `json:"title"`
	Symbol string `json:"symbol"`
	Theme  Theme  `json:"theme"`
	Status string `json:"status"`
	Flash  string `json:"flash"` // "up", "down" or ""

	LastPrice    string `json:"lastPrice"`
	MarkPrice    string `json:"markPrice"`
	High24h      string `json:"high24h"`
	Low24h       string `json:"low24h"`
	Turnover24h  string `json:"turnover24h"`
	Price24hPcnt string `json:"price24hPcnt"`
	PctClass     string `json:"pctClass"`

	Seq uint64 `json:"seq"`
}

// BuildView composes ticker state and theme. It is the only place the two meet.
func BuildView(title, symbol string, st ticker.State, theme Theme) View {
	snap := st.Snapshot
	return View{
		Title:  title,
		Symbol: symbol,
		Theme:  theme,
		Status: st.Status.String(),
		Flash:  st.Direction.String(),

		LastPrice:    withPrefix("$", snap.LastPrice),
		MarkPrice:    withPrefix("$", snap.MarkPrice),
		High24h:      withPrefix("$", snap.High24h),
		Low24h:       withPrefix("$", snap.Low24h),
		Turnover24h:  Fmt(snap.Turnover24h, DefaultDecimals),
		Price24hPcnt: withSuffix(snap.Price24hPcnt, "%"),
		PctClass:     PctClass(snap.Price24hPcnt),

		Seq: st.Seq,
	}
}

func withPrefix(prefix string, v decimal.NullDecimal) string {
	s := Fmt(v, DefaultDecimals)
	if s == Placeholder {
		return s
	}
	return prefix + s
}

func withSuffix(v decimal.NullDecimal, suffix string) string {
	s := Fmt(v, DefaultDecimals)
	if s == Placeholder {
		return s
	}
	return s + suffix
}
