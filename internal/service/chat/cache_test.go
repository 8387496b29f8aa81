package chat_test

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/nudge/internal/audit"
	"basegraph.app/nudge/internal/model"
	"basegraph.app/nudge/internal/service/chat"
)

type countingReader struct {
	historyCalls   atomic.Int32
	permalinkCalls atomic.Int32
	permalinkErr   error
}

func (r *countingReader) History(context.Context, audit.HistoryQuery) (*model.History, error) {
	r.historyCalls.Add(1)
	return &model.History{Messages: []model.Message{}}, nil
}

func (r *countingReader) Permalink(_ context.Context, channelID, messageTS string) (string, error) {
	r.permalinkCalls.Add(1)
	if r.permalinkErr != nil {
		return "", r.permalinkErr
	}
	return "https://example.slack.com/archives/" + channelID + "/p" + messageTS, nil
}

var _ = Describe("cachingChannelReader", func() {
	var (
		ctx   context.Context
		inner *countingReader
	)

	BeforeEach(func() {
		ctx = context.Background()
		inner = &countingReader{}
	})

	It("looks a permalink up once", func() {
		r := chat.NewCachingChannelReader(inner, time.Hour)

		first, err := r.Permalink(ctx, "C1", "1.000001")
		Expect(err).NotTo(HaveOccurred())
		second, err := r.Permalink(ctx, "C1", "1.000001")
		Expect(err).NotTo(HaveOccurred())

		Expect(second).To(Equal(first))
		Expect(inner.permalinkCalls.Load()).To(Equal(int32(1)))

		_, err = r.Permalink(ctx, "C2", "1.000001")
		Expect(err).NotTo(HaveOccurred())
		Expect(inner.permalinkCalls.Load()).To(Equal(int32(2)))
	})

	It("does not cache failures", func() {
		inner.permalinkErr = errors.New("message_not_found")
		r := chat.NewCachingChannelReader(inner, time.Hour)

		_, err := r.Permalink(ctx, "C1", "1.000001")
		Expect(err).To(HaveOccurred())
		_, err = r.Permalink(ctx, "C1", "1.000001")
		Expect(err).To(HaveOccurred())
		Expect(inner.permalinkCalls.Load()).To(Equal(int32(2)))
	})

	It("always reads history through", func() {
		r := chat.NewCachingChannelReader(inner, time.Hour)
		_, _ = r.History(ctx, audit.HistoryQuery{ChannelID: "C1"})
		_, _ = r.History(ctx, audit.HistoryQuery{ChannelID: "C1"})
		Expect(inner.historyCalls.Load()).To(Equal(int32(2)))
	})

	It("is disabled by a zero ttl", func() {
		r := chat.NewCachingChannelReader(inner, 0)
		Expect(r).To(BeIdenticalTo(chat.ChannelReader(inner)))
	})
})
