package chat_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/nudge/internal/audit"
	"basegraph.app/nudge/internal/model"
	"basegraph.app/nudge/internal/service/chat"
)

type fakeSlack struct {
	mu       sync.Mutex
	forms    map[string][]map[string]string
	bodies   map[string]string
	statuses map[string]int
}

func newFakeSlack() *fakeSlack {
	return &fakeSlack{
		forms:    map[string][]map[string]string{},
		bodies:   map[string]string{},
		statuses: map[string]int{},
	}
}

func (f *fakeSlack) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	values := map[string]string{}
	for k := range r.Form {
		values[k] = r.Form.Get(k)
	}

	f.mu.Lock()
	f.forms[r.URL.Path] = append(f.forms[r.URL.Path], values)
	body, ok := f.bodies[r.URL.Path]
	status := f.statuses[r.URL.Path]
	f.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (f *fakeSlack) lastForm(path string) map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	calls := f.forms[path]
	if len(calls) == 0 {
		return nil
	}
	return calls[len(calls)-1]
}

var _ = Describe("slackChannelReader", func() {
	var (
		ctx    context.Context
		fake   *fakeSlack
		server *httptest.Server
		reader chat.ChannelReader
	)

	BeforeEach(func() {
		ctx = context.Background()
		fake = newFakeSlack()
		server = httptest.NewServer(fake)
		DeferCleanup(server.Close)

		var err error
		reader, err = chat.NewSlackChannelReader(chat.Config{
			Token:       "xoxb-test",
			APIURL:      server.URL,
			HTTPTimeout: 2 * time.Second,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("requires a token", func() {
		_, err := chat.NewSlackChannelReader(chat.Config{})
		Expect(err).To(HaveOccurred())
	})

	Describe("History", func() {
		It("passes the window query and maps messages in order", func() {
			fake.bodies["/conversations.history"] = `{
				"ok": true,
				"has_more": true,
				"messages": [
					{"type": "message", "ts": "1705400000.000200", "user": "U1",
					 "reactions": [{"name": "zumi", "count": 2, "users": ["U2", "U3"]}]},
					{"type": "message", "ts": "1705300000.000100", "user": "U2", "subtype": "thread_broadcast"},
					{"type": "message", "ts": "1705200000.000100", "subtype": "channel_join"}
				]
			}`

			history, err := reader.History(ctx, audit.HistoryQuery{
				ChannelID: "C123",
				Oldest:    "1705483800",
				Limit:     500,
			})
			Expect(err).NotTo(HaveOccurred())

			form := fake.lastForm("/conversations.history")
			Expect(form).To(HaveKeyWithValue("channel", "C123"))
			Expect(form).To(HaveKeyWithValue("oldest", "1705483800"))
			Expect(form).To(HaveKeyWithValue("limit", "500"))

			Expect(history.HasMore).To(BeTrue())
			Expect(history.Messages).To(HaveLen(3))
			Expect(history.Messages[0]).To(Equal(model.Message{
				Timestamp: "1705400000.000200",
				User:      "U1",
				Reactions: []model.Reaction{{Name: "zumi", Count: 2}},
			}))
			Expect(history.Messages[1].Subtype).To(Equal(model.SubtypeThreadBroadcast))
			Expect(history.Messages[2].User).To(BeEmpty())
			Expect(history.Messages[2].Subtype).To(Equal("channel_join"))
		})

		It("keeps an empty list distinct from a missing one", func() {
			fake.bodies["/conversations.history"] = `{"ok": true, "messages": []}`
			history, err := reader.History(ctx, audit.HistoryQuery{ChannelID: "C1", Limit: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(history.Messages).NotTo(BeNil())
			Expect(history.Messages).To(BeEmpty())

			fake.bodies["/conversations.history"] = `{"ok": true}`
			history, err = reader.History(ctx, audit.HistoryQuery{ChannelID: "C1", Limit: 10})
			Expect(err).NotTo(HaveOccurred())
			Expect(history.Messages).To(BeNil())
		})

		It("returns the platform error when the call is rejected", func() {
			fake.bodies["/conversations.history"] = `{"ok": false, "error": "channel_not_found"}`
			_, err := reader.History(ctx, audit.HistoryQuery{ChannelID: "C404", Limit: 10})
			Expect(err).To(MatchError(ContainSubstring("channel_not_found")))
		})
	})

	Describe("Permalink", func() {
		It("returns the link for a message", func() {
			fake.bodies["/chat.getPermalink"] = `{"ok": true, "channel": "C123",
				"permalink": "https://example.slack.com/archives/C123/p1705400000000200"}`

			link, err := reader.Permalink(ctx, "C123", "1705400000.000200")
			Expect(err).NotTo(HaveOccurred())
			Expect(link).To(Equal("https://example.slack.com/archives/C123/p1705400000000200"))

			form := fake.lastForm("/chat.getPermalink")
			Expect(form).To(HaveKeyWithValue("channel", "C123"))
			Expect(form).To(HaveKeyWithValue("message_ts", "1705400000.000200"))
		})

		It("fails when the message is gone", func() {
			fake.bodies["/chat.getPermalink"] = `{"ok": false, "error": "message_not_found"}`
			_, err := reader.Permalink(ctx, "C123", "1.000001")
			Expect(err).To(MatchError(ContainSubstring("message_not_found")))
		})
	})
})
