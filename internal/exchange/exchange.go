package exchange

import "context"

// StreamDialer opens a connection to a public market-data stream.
type StreamDialer interface {
	Dial(ctx context.Context) (StreamConn, error)
}

// StreamConn is one live market-data connection.
//
// ReadMessage is called from a single goroutine. Subscribe, Unsubscribe and
// Close may be called concurrently with it. Close must be idempotent and must
// unblock a pending ReadMessage.
type StreamConn interface {
	Subscribe(topic string) error
	Unsubscribe(topic string) error
	ReadMessage() ([]byte, error)
	Close() error
}
