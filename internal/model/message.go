package model

// SubtypeThreadBroadcast marks a thread reply also posted to the channel. It is
// the only subtype that can still be a question.
const SubtypeThreadBroadcast = "thread_broadcast"

// Message is one entry of a channel's history page.
type Message struct {
	Timestamp string     `json:"ts"`
	User      string     `json:"user"`
	Subtype   string     `json:"subtype,omitempty"` // empty when absent
	Reactions []Reaction `json:"reactions,omitempty"`
}

type Reaction struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// History is a single bounded page of channel history. Messages is nil when the
// provider response carried no message collection at all.
type History struct {
	Messages []Message
	HasMore  bool
}
