package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/slack-go/slack"

	"basegraph.app/nudge/internal/audit"
	"basegraph.app/nudge/internal/model"
)

type slackChannelReader struct {
	client *slack.Client
}

func NewSlackChannelReader(cfg Config) (ChannelReader, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("slack token is required")
	}

	opts := []slack.Option{
		slack.OptionHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
	}
	if cfg.APIURL != "" {
		opts = append(opts, slack.OptionAPIURL(strings.TrimSuffix(cfg.APIURL, "/")+"/"))
	}

	return &slackChannelReader{client: slack.New(cfg.Token, opts...)}, nil
}

func (r *slackChannelReader) History(ctx context.Context, query audit.HistoryQuery) (*model.History, error) {
	resp, err := r.client.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
		ChannelID: query.ChannelID,
		Oldest:    query.Oldest,
		Limit:     query.Limit,
	})
	if err != nil {
		var rateLimited *slack.RateLimitedError
		if errors.As(err, &rateLimited) {
			slog.WarnContext(ctx, "slack rate limited history fetch", "retry_after", rateLimited.RetryAfter)
		}
		return nil, fmt.Errorf("fetching conversation history: %w", err)
	}

	return mapHistory(resp), nil
}

func (r *slackChannelReader) Permalink(ctx context.Context, channelID, messageTS string) (string, error) {
	link, err := r.client.GetPermalinkContext(ctx, &slack.PermalinkParameters{
		Channel: channelID,
		Ts:      messageTS,
	})
	if err != nil {
		return "", fmt.Errorf("fetching permalink: %w", err)
	}
	return link, nil
}

func mapHistory(resp *slack.GetConversationHistoryResponse) *model.History {
	if resp == nil || resp.Messages == nil {
		return &model.History{}
	}

	messages := make([]model.Message, len(resp.Messages))
	for i, m := range resp.Messages {
		messages[i] = model.Message{
			Timestamp: m.Timestamp,
			User:      m.User,
			Subtype:   m.SubType,
			Reactions: mapReactions(m.Reactions),
		}
	}

	return &model.History{
		Messages: messages,
		HasMore:  resp.HasMore,
	}
}

func mapReactions(reactions []slack.ItemReaction) []model.Reaction {
	if reactions == nil {
		return nil
	}
	out := make([]model.Reaction, len(reactions))
	for i, r := range reactions {
		out[i] = model.Reaction{Name: r.Name, Count: r.Count}
	}
	return out
}
