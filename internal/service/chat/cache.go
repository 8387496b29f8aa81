package chat

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"basegraph.app/nudge/internal/audit"
	"basegraph.app/nudge/internal/model"
)

// cachingChannelReader remembers permalinks. A message keeps its permalink
// for life, and consecutive audits overlap by most of their window.
type cachingChannelReader struct {
	ChannelReader
	links *cache.Cache
}

// NewCachingChannelReader wraps r with a permalink cache. History is never
// cached. A ttl of zero returns r unchanged.
func NewCachingChannelReader(r ChannelReader, ttl time.Duration) ChannelReader {
	if ttl <= 0 {
		return r
	}
	return &cachingChannelReader{
		ChannelReader: r,
		links:         cache.New(ttl, 2*ttl),
	}
}

func (c *cachingChannelReader) History(ctx context.Context, query audit.HistoryQuery) (*model.History, error) {
	return c.ChannelReader.History(ctx, query)
}

func (c *cachingChannelReader) Permalink(ctx context.Context, channelID, messageTS string) (string, error) {
	key := channelID + "/" + messageTS
	if v, ok := c.links.Get(key); ok {
		return v.(string), nil
	}

	link, err := c.ChannelReader.Permalink(ctx, channelID, messageTS)
	if err != nil {
		return "", err
	}
	if link != "" {
		c.links.SetDefault(key, link)
	}
	return link, nil
}
