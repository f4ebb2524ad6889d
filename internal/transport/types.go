package transport

import "context"

// ChatTarget addresses a Telegram chat (and optionally a forum topic).
type ChatTarget struct {
	ChatID   int64
	ThreadID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
}

// Sender delivers plain text to a chat. The operator log sink depends on this
// rather than on a concrete bot so tests can capture messages.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error
}
