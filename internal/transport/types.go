package transport

import "context"

// ChatTarget identifies an outbound destination. For direct chats the
// ChatID equals the Telegram user ID.
type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	ReplyMarkup    any // adapter-specific markup (Telegram: *telebot.ReplyMarkup)
}

// Sender is the minimal outbound surface the core needs from a delivery
// channel. The broadcast engine and the reading service depend on this,
// not on the concrete Telegram adapter.
type Sender interface {
	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
}

// IdentityResolver resolves a display name for a raw recipient ID.
// Best-effort: callers fall back to the raw ID on error.
type IdentityResolver interface {
	LookupIdentity(ctx context.Context, id int64) (string, error)
}
