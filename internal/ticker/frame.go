package ticker

import (
	"encoding/json"
	"errors"

	"github.com/souravmenon1999/ticker-dashboard/internal/exchange/bybit"
	"github.com/souravmenon1999/ticker-dashboard/internal/types"
)

var (
	errCommandResponse = errors.New("command response")
	errNoData          = errors.New("frame without data")
)

// parseFrame decodes one raw frame for topic. It returns a ParseError for
// malformed JSON, a TopicMismatch for other subscriptions, errCommandResponse
// for subscribe/ping acknowledgements and errNoData for empty payloads.
func parseFrame(raw []byte, topic string) (Update, error) {
	var msg bybit.WSMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Update{}, types.NewParseError("decode frame", err)
	}
	if msg.IsCommandResponse() {
		if msg.Failed() {
			return Update{}, types.AppError{Code: types.ErrTransport, Message: msg.Op + " rejected: " + msg.RetMsg}
		}
		return Update{}, errCommandResponse
	}
	if msg.Topic != topic {
		return Update{}, types.NewTopicMismatch(msg.Topic, topic)
	}
	if !msg.HasData() {
		return Update{}, errNoData
	}

	var data bybit.TickerData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		return Update{}, types.NewParseError("decode ticker data", err)
	}
	return UpdateFromData(data), nil
}
