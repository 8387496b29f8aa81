package audit_test

import (
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"basegraph.app/nudge/internal/audit"
	"basegraph.app/nudge/internal/model"
)

var _ = Describe("Report Composer", func() {
	var params audit.ComposeParams

	classified := func(ids ...string) []audit.ClassifiedItem {
		items := make([]audit.ClassifiedItem, len(ids))
		for i, id := range ids {
			items[i] = audit.ClassifiedItem{
				UnresolvedItem: audit.UnresolvedItem{MessageID: id, OriginalIndex: i},
				Tier:           model.EscalationTier{ThresholdDays: 0, Label: ":dart: New question! :dart:"},
			}
		}
		return items
	}

	ok := func(id string) audit.ResolvedLink {
		return audit.ResolvedLink{MessageID: id, Permalink: "https://x.slack.com/p" + id}
	}

	BeforeEach(func() {
		params = audit.ComposeParams{
			ChannelID:      "C123",
			MarkerReaction: "zumi",
			Window:         audit.NewWindow(time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)),
		}
	})

	It("lists lines in descending counter order", func() {
		report := audit.Compose(classified("1", "2", "3"), []audit.ResolvedLink{ok("1"), ok("2"), ok("3")}, params)

		Expect(report.Lines).To(HaveLen(3))
		Expect(report.Lines[0].Counter).To(Equal(3))
		Expect(report.Lines[1].Counter).To(Equal(2))
		Expect(report.Lines[2].Counter).To(Equal(1))
		for i, line := range report.Lines {
			Expect(line.DisplayIndex).To(Equal(i + 1))
		}
		Expect(report.Body).To(Equal(
			"- <https://x.slack.com/p3|Unresolved question 3> :dart: New question! :dart:\n" +
				"- <https://x.slack.com/p2|Unresolved question 2> :dart: New question! :dart:\n" +
				"- <https://x.slack.com/p1|Unresolved question 1> :dart: New question! :dart:\n"))
	})

	It("drops failed lookups and keeps the remaining counters", func() {
		failed := audit.ResolvedLink{MessageID: "2", Err: &audit.LinkResolutionError{MessageID: "2", Err: errors.New("nope")}}
		report := audit.Compose(classified("1", "2", "3"), []audit.ResolvedLink{ok("1"), failed, ok("3")}, params)

		Expect(report.Lines).To(HaveLen(2))
		Expect(report.Lines[0].MessageID).To(Equal("3"))
		Expect(report.Lines[0].Counter).To(Equal(3))
		Expect(report.Lines[1].MessageID).To(Equal("1"))
		Expect(report.Lines[1].Counter).To(Equal(1))
		Expect(report.Body).NotTo(ContainSubstring("p2"))
	})

	It("uses each item's tier label", func() {
		items := classified("1", "2")
		items[0].Tier = model.EscalationTier{ThresholdDays: 7, Label: ":boom: old :boom:"}

		report := audit.Compose(items, []audit.ResolvedLink{ok("1"), ok("2")}, params)
		Expect(report.Lines[1].Text).To(Equal("- <https://x.slack.com/p1|Unresolved question 1> :boom: old :boom:"))
	})

	It("names the channel, marker and window in the header", func() {
		report := audit.Compose(nil, nil, params)
		Expect(report.Header).To(Equal(
			"<#C123> - Questions without a :zumi: reaction (window: 2024-01-17T00:00:00.000Z - 2024-01-31T00:00:00.000Z)"))
	})

	It("produces an empty but valid report when nothing resolved", func() {
		report := audit.Compose(nil, nil, params)
		Expect(report.Empty()).To(BeTrue())
		Expect(report.Body).To(BeEmpty())
		Expect(report.Header).NotTo(BeEmpty())
	})

	It("builds the outbound payload", func() {
		report := audit.Compose(classified("1"), []audit.ResolvedLink{ok("1")}, params)
		payload := report.Payload()

		Expect(payload.Text).To(Equal(report.Header))
		Expect(payload.Attachments).To(Equal([]audit.Attachment{{Text: report.Body}}))
	})
})
