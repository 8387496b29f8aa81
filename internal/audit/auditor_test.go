package audit_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/nudge/internal/audit"
	"basegraph.app/nudge/internal/model"
	"basegraph.app/nudge/internal/policy"
)

var _ = Describe("Auditor", func() {
	const day = 24 * time.Hour

	var (
		ctx       context.Context
		reference time.Time
		history   *mockHistoryFetcher
		links     *mockPermalinkResolver
		auditor   *audit.Auditor
		params    audit.Params
	)

	BeforeEach(func() {
		ctx = context.Background()
		reference = time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
		history = &mockHistoryFetcher{}
		links = &mockPermalinkResolver{}

		var err error
		auditor, err = audit.NewAuditor(history, audit.NewLinkResolver(links, 0), policy.Default())
		Expect(err).NotTo(HaveOccurred())

		params = audit.Params{
			Reference:      reference,
			ChannelID:      "C123",
			BotUserID:      "UBOT",
			MarkerReaction: "zumi",
			HistoryLimit:   500,
		}
	})

	withMessages := func(msgs ...model.Message) {
		history.historyFn = func(_ context.Context, _ audit.HistoryQuery) (*model.History, error) {
			return &model.History{Messages: msgs}, nil
		}
	}

	It("queries one bounded page starting 14 days back", func() {
		_, err := auditor.Run(ctx, params)
		Expect(err).NotTo(HaveOccurred())

		Expect(history.queries).To(Equal([]audit.HistoryQuery{{
			ChannelID: "C123",
			Oldest:    "1705492800",
			Limit:     500,
		}}))
	})

	It("reports unresolved questions newest counter first with tier labels", func() {
		withMessages(
			model.Message{Timestamp: tsAgo(reference, 8*day), User: "U1"},
			model.Message{Timestamp: tsAgo(reference, 4*day), User: "U2", Reactions: []model.Reaction{{Name: "zumi"}}},
			model.Message{Timestamp: tsAgo(reference, 30*time.Hour), User: "U3", Subtype: model.SubtypeThreadBroadcast},
			model.Message{Timestamp: tsAgo(reference, 2*time.Hour), User: "UBOT"},
			model.Message{Timestamp: tsAgo(reference, time.Hour), User: "U4", Reactions: []model.Reaction{}},
		)

		result, err := auditor.Run(ctx, params)
		Expect(err).NotTo(HaveOccurred())

		Expect(result.Scanned).To(Equal(5))
		Expect(result.Items).To(HaveLen(3))
		Expect(result.Resolved()).To(Equal(3))
		Expect(result.Failed()).To(Equal(0))

		lines := result.Report.Lines
		Expect(lines).To(HaveLen(3))
		Expect(lines[0].Counter).To(Equal(3))
		Expect(lines[0].Text).To(HaveSuffix(":dart: New question! :dart:"))
		Expect(lines[1].Counter).To(Equal(2))
		Expect(lines[1].Text).To(ContainSubstring(":yatteiki:"))
		Expect(lines[2].Counter).To(Equal(1))
		Expect(lines[2].Text).To(ContainSubstring(":boom:"))
		Expect(result.Report.Header).To(HavePrefix("<#C123> - Questions without a :zumi: reaction"))
	})

	It("completes with the remaining lines when one lookup fails", func() {
		second := tsAgo(reference, 2*day)
		withMessages(
			model.Message{Timestamp: tsAgo(reference, 3*day), User: "U1"},
			model.Message{Timestamp: second, User: "U2"},
			model.Message{Timestamp: tsAgo(reference, day), User: "U3"},
		)
		links.permalinkFn = func(_ context.Context, channelID, ts string) (string, error) {
			if ts == second {
				return "", errors.New("ratelimited")
			}
			return "https://x.slack.com/archives/" + channelID + "/p" + ts, nil
		}

		result, err := auditor.Run(ctx, params)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Report.Lines).To(HaveLen(2))
		Expect(result.Report.Lines[0].Counter).To(Equal(3))
		Expect(result.Report.Lines[1].Counter).To(Equal(1))
		Expect(result.Failed()).To(Equal(1))
	})

	It("surfaces history transport failures", func() {
		cause := errors.New("connection reset")
		history.historyFn = func(_ context.Context, _ audit.HistoryQuery) (*model.History, error) {
			return nil, cause
		}

		result, err := auditor.Run(ctx, params)
		Expect(result).To(BeNil())
		Expect(err).To(MatchError(audit.ErrTransport))
		Expect(err).To(MatchError(cause))
	})

	It("reports a history without a message collection", func() {
		history.historyFn = func(_ context.Context, _ audit.HistoryQuery) (*model.History, error) {
			return &model.History{}, nil
		}

		_, err := auditor.Run(ctx, params)
		Expect(err).To(MatchError(audit.ErrEmptyOrMalformedHistory))
	})

	It("rejects a run without a channel before touching the network", func() {
		params.ChannelID = ""
		_, err := auditor.Run(ctx, params)
		Expect(err).To(MatchError(audit.ErrInvalidConfig))
		Expect(history.queries).To(BeEmpty())
	})

	It("rejects a run without a marker reaction", func() {
		params.MarkerReaction = ""
		_, err := auditor.Run(ctx, params)
		Expect(err).To(MatchError(audit.ErrInvalidConfig))
	})

	It("refuses a tier table without a catch-all", func() {
		_, err := audit.NewAuditor(history, audit.NewLinkResolver(links, 0), []model.EscalationTier{
			{ThresholdDays: 3, Label: "late"},
		})
		Expect(err).To(MatchError(audit.ErrInvalidConfig))
	})

	It("classifies future-dated questions with the catch-all tier", func() {
		withMessages(model.Message{Timestamp: tsAgo(reference, -10*time.Minute), User: "U1"})

		result, err := auditor.Run(ctx, params)
		Expect(err).NotTo(HaveOccurred())
		Expect(result.Items[0].Fallback).To(BeTrue())
		Expect(result.Report.Lines[0].Text).To(ContainSubstring(":dart:"))
	})

	It("is idempotent for an unchanged history and window", func() {
		withMessages(
			model.Message{Timestamp: tsAgo(reference, 5*day), User: "U1"},
			model.Message{Timestamp: tsAgo(reference, time.Hour), User: "U2", Reactions: []model.Reaction{{Name: "eyes"}}},
		)

		first, err := auditor.Run(ctx, params)
		Expect(err).NotTo(HaveOccurred())
		second, err := auditor.Run(ctx, params)
		Expect(err).NotTo(HaveOccurred())

		Expect(second.Items).To(Equal(first.Items))
		Expect(second.Report).To(Equal(first.Report))
	})
})
