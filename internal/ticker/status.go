package ticker

import "github.com/shopspring/decimal"

// Status is the connection state of one socket lifetime.
type Status int

const (
	StatusConnecting Status = iota
	StatusConnected
	StatusError
	StatusDisconnected
)

// String returns the text shown next to the theme toggle.
func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "Connecting..."
	case StatusConnected:
		return "Connected"
	case StatusError:
		return "Error"
	case StatusDisconnected:
		return "Disconnected"
	default:
		return "Unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Direction tags the last price move for one flash window.
type Direction int

const (
	DirectionNone Direction = iota
	DirectionUp
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return ""
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// directionOf compares next against the previous known price. Either side
// unknown, or equal prices, yields DirectionNone.
func directionOf(prev, next decimal.NullDecimal) Direction {
	if !prev.Valid || !next.Valid {
		return DirectionNone
	}
	switch next.Decimal.Cmp(prev.Decimal) {
	case 1:
		return DirectionUp
	case -1:
		return DirectionDown
	default:
		return DirectionNone
	}
}
