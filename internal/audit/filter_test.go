package audit_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/nudge/internal/audit"
	"basegraph.app/nudge/internal/model"
)

var _ = Describe("History Filter", func() {
	params := audit.FilterParams{BotUserID: "UBOT", MarkerReaction: "zumi"}

	DescribeTable("IsUnresolved",
		func(msg model.Message, expected bool) {
			Expect(audit.IsUnresolved(msg, params)).To(Equal(expected))
		},
		Entry("plain message without reactions",
			model.Message{Timestamp: "1.000001", User: "U1"}, true),
		Entry("thread broadcast without reactions",
			model.Message{Timestamp: "1.000001", User: "U1", Subtype: model.SubtypeThreadBroadcast}, true),
		Entry("empty reactions list counts as no reactions",
			model.Message{Timestamp: "1.000001", User: "U1", Reactions: []model.Reaction{}}, true),
		Entry("only unrelated reactions",
			model.Message{Timestamp: "1.000001", User: "U1", Reactions: []model.Reaction{{Name: "eyes"}, {Name: "+1"}}}, true),
		Entry("marker reaction resolves the question",
			model.Message{Timestamp: "1.000001", User: "U1", Reactions: []model.Reaction{{Name: "zumi"}}}, false),
		Entry("marker among other reactions still resolves",
			model.Message{Timestamp: "1.000001", User: "U1", Reactions: []model.Reaction{{Name: "eyes"}, {Name: "zumi"}, {Name: "+1"}}}, false),
		Entry("marker on a thread broadcast resolves",
			model.Message{Timestamp: "1.000001", User: "U1", Subtype: model.SubtypeThreadBroadcast, Reactions: []model.Reaction{{Name: "zumi"}}}, false),
		Entry("bot message is never a question",
			model.Message{Timestamp: "1.000001", User: "UBOT"}, false),
		Entry("bot thread broadcast is never a question",
			model.Message{Timestamp: "1.000001", User: "UBOT", Subtype: model.SubtypeThreadBroadcast, Reactions: []model.Reaction{{Name: "eyes"}}}, false),
		Entry("channel join notice is excluded",
			model.Message{Timestamp: "1.000001", User: "U1", Subtype: "channel_join"}, false),
		Entry("other subtypes are excluded even with reactions",
			model.Message{Timestamp: "1.000001", User: "U1", Subtype: "bot_message", Reactions: []model.Reaction{{Name: "eyes"}}}, false),
		Entry("similar reaction names do not match the marker",
			model.Message{Timestamp: "1.000001", User: "U1", Reactions: []model.Reaction{{Name: "zumi2"}, {Name: "ZUMI"}}}, true),
	)

	It("skips authorless messages when no bot identity is configured", func() {
		noBot := audit.FilterParams{MarkerReaction: "zumi"}
		Expect(audit.IsUnresolved(model.Message{Timestamp: "1.000001"}, noBot)).To(BeFalse())
		Expect(audit.IsUnresolved(model.Message{Timestamp: "1.000001", User: "U1"}, noBot)).To(BeTrue())
	})

	Describe("FilterUnresolved", func() {
		It("keeps history order and original indexes", func() {
			history := &model.History{Messages: []model.Message{
				{Timestamp: "100.000001", User: "U1"},
				{Timestamp: "101.000001", User: "UBOT"},
				{Timestamp: "102.000001", User: "U2", Reactions: []model.Reaction{{Name: "zumi"}}},
				{Timestamp: "103.000001", User: "U3", Subtype: "channel_join"},
				{Timestamp: "104.000001", User: "U4", Subtype: model.SubtypeThreadBroadcast},
				{Timestamp: "105.000001", User: "U5", Reactions: []model.Reaction{{Name: "eyes"}}},
			}}

			items, err := audit.FilterUnresolved(history, params)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(Equal([]audit.UnresolvedItem{
				{MessageID: "100.000001", OriginalIndex: 0},
				{MessageID: "104.000001", OriginalIndex: 4},
				{MessageID: "105.000001", OriginalIndex: 5},
			}))
		})

		It("reports a missing message collection", func() {
			_, err := audit.FilterUnresolved(&model.History{}, params)
			Expect(err).To(MatchError(audit.ErrEmptyOrMalformedHistory))

			_, err = audit.FilterUnresolved(nil, params)
			Expect(err).To(MatchError(audit.ErrEmptyOrMalformedHistory))
		})

		It("returns no items for an empty message collection", func() {
			items, err := audit.FilterUnresolved(&model.History{Messages: []model.Message{}}, params)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(BeEmpty())
		})

		It("gives the same answer on every run", func() {
			history := &model.History{Messages: []model.Message{
				{Timestamp: "100.000001", User: "U1"},
				{Timestamp: "102.000001", User: "U2", Reactions: []model.Reaction{{Name: "zumi"}}},
				{Timestamp: "104.000001", User: "U4", Subtype: model.SubtypeThreadBroadcast},
			}}

			first, err := audit.FilterUnresolved(history, params)
			Expect(err).NotTo(HaveOccurred())
			second, err := audit.FilterUnresolved(history, params)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})
	})
})
