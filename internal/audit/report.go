package audit

import (
	"fmt"
	"sort"
	"strings"
)

// ReportLine is one rendered question. Counter is the 1-based processing
// position among all unresolved items; DisplayIndex is the 1-based position
// in the rendered body.
type ReportLine struct {
	MessageID    string
	Text         string
	Counter      int
	DisplayIndex int
}

type Report struct {
	Header string
	Body   string
	Lines  []ReportLine
}

// Empty reports whether there is nothing worth sending.
func (r Report) Empty() bool {
	return len(r.Lines) == 0
}

// Payload is the outbound notification: the header as text and the body as
// a single attachment.
type Payload struct {
	Text        string
	Attachments []Attachment
}

type Attachment struct {
	Text string
}

func (r Report) Payload() Payload {
	return Payload{
		Text:        r.Header,
		Attachments: []Attachment{{Text: r.Body}},
	}
}

type ComposeParams struct {
	ChannelID      string
	MarkerReaction string
	Window         Window
}

// Compose renders the resolved items, newest processing counter first.
// items and links correspond positionally; failed links are skipped and
// keep their counter number unused.
func Compose(items []ClassifiedItem, links []ResolvedLink, params ComposeParams) Report {
	lines := make([]ReportLine, 0, len(items))
	for i, item := range items {
		if i >= len(links) || !links[i].OK() {
			continue
		}

		counter := i + 1
		lines = append(lines, ReportLine{
			MessageID: item.MessageID,
			Counter:   counter,
			Text:      fmt.Sprintf("- <%s|Unresolved question %d> %s", links[i].Permalink, counter, item.Tier.Label),
		})
	}

	sort.SliceStable(lines, func(a, b int) bool {
		return lines[a].Counter > lines[b].Counter
	})

	var body strings.Builder
	for i := range lines {
		lines[i].DisplayIndex = i + 1
		body.WriteString(lines[i].Text)
		body.WriteString("\n")
	}

	return Report{
		Header: Header(params),
		Body:   body.String(),
		Lines:  lines,
	}
}

func Header(params ComposeParams) string {
	return fmt.Sprintf("<#%s> - Questions without a :%s: reaction (window: %s)",
		params.ChannelID, params.MarkerReaction, params.Window)
}
