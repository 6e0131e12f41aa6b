package iocfeed

// EventMeta is metadata to create a destination event.
type EventMeta struct {
	Info         string `json:"info"`
	Distribution int    `json:"distribution"`
	ThreatLevel  int    `json:"threat_level"`
	Analysis     int    `json:"analysis"`
}

// Event is destination event in the threat intel platform.
type Event struct {
	ID           string
	UUID         string
	Info         string
	Distribution int
	ThreatLevel  int
	Analysis     int
	Tags         []string
	Attributes   []*Attribute
	Published    bool
}

// AttributeValues returns values of all attributes on the event.
func (x *Event) AttributeValues() []string {
	values := make([]string, 0, len(x.Attributes))
	for _, attr := range x.Attributes {
		values = append(values, attr.Value)
	}
	return values
}

// Attribute is an indicator attached to Event.
type Attribute struct {
	Value    string `json:"value"`
	Type     string `json:"type"`
	Category string `json:"category,omitempty"`
}

// AttributeTypeText is generic textual classification of an attribute
const AttributeTypeText = "text"

// EventRecord maps event info (title) to the event created for it. It's stored to make event creation idempotent across re-runs.
type EventRecord struct {
	Info      string `json:"info" dynamo:"info"`
	EventID   string `json:"event_id" dynamo:"event_id"`
	EventUUID string `json:"event_uuid" dynamo:"event_uuid"`
	CreatedAt int64  `json:"created_at" dynamo:"created_at"`
}
