package chat

import (
	"context"
	"time"

	"basegraph.app/nudge/internal/audit"
	"basegraph.app/nudge/internal/model"
)

type Config struct {
	Token       string
	APIURL      string // Optional: e.g. an httptest server in tests
	HTTPTimeout time.Duration
}

// ChannelReader reads channel history and message permalinks. It satisfies
// both audit.HistoryFetcher and audit.PermalinkResolver.
type ChannelReader interface {
	History(ctx context.Context, query audit.HistoryQuery) (*model.History, error)
	Permalink(ctx context.Context, channelID, messageTS string) (string, error)
}
