package stream

import "github.com/aso824/dcf77decoder/internal/telegram"

// SSE message payload types.

type snapshotMessage struct {
	Type      string          `json:"type"`
	Receivers []decodeMessage `json:"receivers"`
}

type decodeMessage struct {
	Type      string          `json:"type"`
	Receiver  string          `json:"receiver"`
	DecodedAt string          `json:"decoded_at"`
	Telegram  string          `json:"telegram"`
	Result    telegram.Result `json:"result"`
}
