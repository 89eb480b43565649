package ticker

import (
	"github.com/shopspring/decimal"

	"github.com/souravmenon1999/ticker-dashboard/internal/exchange/bybit"
)

var hundred = decimal.NewFromInt(100)

// Snapshot is the merged view of every ticker field seen so far. A field with
// Valid=false has never been received.
type Snapshot struct {
	LastPrice    decimal.NullDecimal `json:"lastPrice"`
	MarkPrice    decimal.NullDecimal `json:"markPrice"`
	High24h      decimal.NullDecimal `json:"high24h"`
	Low24h       decimal.NullDecimal `json:"low24h"`
	Turnover24h  decimal.NullDecimal `json:"turnover24h"`
	Price24hPcnt decimal.NullDecimal `json:"price24hPcnt"` // percent, already x100
}

// Update carries the fields present in one frame.
type Update Snapshot

// UpdateFromData extracts the numeric fields of a tickers data object.
// Absent or non-numeric keys stay invalid; price24hPcnt is scaled to percent.
func UpdateFromData(data bybit.TickerData) Update {
	var u Update
	u.LastPrice = field(data, bybit.FieldLastPrice)
	u.MarkPrice = field(data, bybit.FieldMarkPrice)
	u.High24h = field(data, bybit.FieldHighPrice24h)
	u.Low24h = field(data, bybit.FieldLowPrice24h)
	u.Turnover24h = field(data, bybit.FieldTurnover24h)
	u.Price24hPcnt = field(data, bybit.FieldPrice24hPcnt)
	if u.Price24hPcnt.Valid {
		u.Price24hPcnt.Decimal = u.Price24hPcnt.Decimal.Mul(hundred)
	}
	return u
}

func field(data bybit.TickerData, key string) decimal.NullDecimal {
	v, ok := data.Decimal(key)
	return decimal.NullDecimal{Decimal: v, Valid: ok}
}

// Empty reports whether the update carries no field at all.
func (u Update) Empty() bool {
	return !u.LastPrice.Valid && !u.MarkPrice.Valid && !u.High24h.Valid &&
		!u.Low24h.Valid && !u.Turnover24h.Valid && !u.Price24hPcnt.Valid
}

// Merge returns s with every field present in u replaced. Fields absent from u
// keep their previous value, so a known field never goes back to unknown.
func (s Snapshot) Merge(u Update) Snapshot {
	return Snapshot{
		LastPrice:    pick(u.LastPrice, s.LastPrice),
		MarkPrice:    pick(u.MarkPrice, s.MarkPrice),
		High24h:      pick(u.High24h, s.High24h),
		Low24h:       pick(u.Low24h, s.Low24h),
		Turnover24h:  pick(u.Turnover24h, s.Turnover24h),
		Price24hPcnt: pick(u.Price24hPcnt, s.Price24hPcnt),
	}
}

func pick(next, prev decimal.NullDecimal) decimal.NullDecimal {
	if next.Valid {
		return next
	}
	return prev
}
