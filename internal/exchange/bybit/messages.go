package bybit

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Bybit WebSocket topics and operations
const (
	TopicTickers = "tickers." // Example: tickers.BTCUSDT

	OpSubscribe   = "subscribe"
	OpUnsubscribe = "unsubscribe"
	OpPing        = "ping"
	OpPong        = "pong"
)

// Ticker data keys as sent on the public linear stream.
const (
	FieldLastPrice    = "lastPrice"
	FieldMarkPrice    = "markPrice"
	FieldHighPrice24h = "highPrice24h"
	FieldLowPrice24h  = "lowPrice24h"
	FieldTurnover24h  = "turnover24h"
	FieldPrice24hPcnt = "price24hPcnt"
)

// TickerTopic returns the subscription topic for a symbol.
func TickerTopic(symbol string) string {
	return TopicTickers + symbol
}

// WSMessage is any frame received from the public stream: data frames carry
// Topic/Type/Data, command responses carry Op/Success/RetMsg.
type WSMessage struct {
	Topic  string          `json:"topic"`
	Type   string          `json:"type"` // "snapshot", "delta"
	TS     int64           `json:"ts"`   // Timestamp in milliseconds
	Data   json.RawMessage `json:"data"`
	Op     string          `json:"op,omitempty"`
	Succ   *bool           `json:"success,omitempty"`
	RetMsg string          `json:"ret_msg,omitempty"`
	ReqID  string          `json:"req_id,omitempty"`
	ConnID string          `json:"conn_id,omitempty"`
}

// IsCommandResponse reports whether the frame answers a subscribe/unsubscribe/ping.
func (m *WSMessage) IsCommandResponse() bool {
	return m.Op != "" && m.Topic == ""
}

// Failed reports a command response with success=false.
func (m *WSMessage) Failed() bool {
	return m.Succ != nil && !*m.Succ
}

// HasData reports whether the frame carries a non-null data payload.
func (m *WSMessage) HasData() bool {
	d := bytes.TrimSpace(m.Data)
	return len(d) > 0 && !bytes.Equal(d, []byte("null"))
}

// WSRequest is a control frame sent to Bybit.
type WSRequest struct {
	ReqID string   `json:"req_id,omitempty"`
	Op    string   `json:"op"`
	Args  []string `json:"args,omitempty"`
}

// TickerData is the "data" object of a tickers frame, kept raw per key so one
// bad field does not discard the rest of the frame.
type TickerData map[string]json.RawMessage

// Decimal returns the value of key if it is present and numeric. Values may be
// JSON strings ("64012.5") or JSON numbers; empty strings and null count as absent.
func (d TickerData) Decimal(key string) (decimal.Decimal, bool) {
	raw, ok := d[key]
	if !ok {
		return decimal.Decimal{}, false
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return decimal.Decimal{}, false
	}

	text := string(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return decimal.Decimal{}, false
		}
		text = strings.TrimSpace(s)
	}
	if text == "" {
		return decimal.Decimal{}, false
	}

	v, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Decimal{}, false
	}
	return v, true
}
