package iocfeed

import "fmt"

// OutcomeKind is result category of one candidate.
type OutcomeKind int

const (
	Committed OutcomeKind = iota
	SkippedDuplicate
	SkippedEmpty
	RejectedForbidden
	Failed
)

func (x OutcomeKind) String() string {
	switch x {
	case Committed:
		return "committed"
	case SkippedDuplicate:
		return "skipped_duplicate"
	case SkippedEmpty:
		return "skipped_empty"
	case RejectedForbidden:
		return "rejected_forbidden"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("unknown(%d)", int(x))
	}
}

// CommitOutcome is result of admission and commit of one candidate. Reason is set for Failed and RejectedForbidden.
type CommitOutcome struct {
	Kind   OutcomeKind
	Reason string
}

func (x CommitOutcome) String() string {
	if x.Reason == "" {
		return x.Kind.String()
	}
	return x.Kind.String() + ": " + x.Reason
}

// Summary aggregates counts of one run.
type Summary struct {
	Date           string `json:"date" dynamo:"date"`
	EventID        string `json:"event_id" dynamo:"event_id"`
	Locations      int    `json:"locations" dynamo:"locations"`
	LocationErrors int    `json:"location_errors" dynamo:"location_errors"`
	Objects        int    `json:"objects" dynamo:"objects"`
	ObjectErrors   int    `json:"object_errors" dynamo:"object_errors"`
	Candidates     int    `json:"candidates" dynamo:"candidates"`

	Committed        int `json:"committed" dynamo:"committed"`
	SkippedDuplicate int `json:"skipped_duplicate" dynamo:"skipped_duplicate"`
	SkippedEmpty     int `json:"skipped_empty" dynamo:"skipped_empty"`
	Rejected         int `json:"rejected" dynamo:"rejected"`
	Failed           int `json:"failed" dynamo:"failed"`

	TagErrors    int    `json:"tag_errors" dynamo:"tag_errors"`
	Published    bool   `json:"published" dynamo:"published"`
	PublishError string `json:"publish_error,omitempty" dynamo:"publish_error"`
}

// Add counts an outcome of a candidate.
func (x *Summary) Add(outcome CommitOutcome) {
	switch outcome.Kind {
	case Committed:
		x.Committed++
	case SkippedDuplicate:
		x.SkippedDuplicate++
	case SkippedEmpty:
		x.SkippedEmpty++
	case RejectedForbidden:
		x.Rejected++
	case Failed:
		x.Failed++
	}
}

func (x *Summary) String() string {
	return fmt.Sprintf("objects=%d (errors=%d) candidates=%d committed=%d duplicate=%d empty=%d rejected=%d failed=%d published=%v",
		x.Objects, x.ObjectErrors, x.Candidates, x.Committed,
		x.SkippedDuplicate, x.SkippedEmpty, x.Rejected, x.Failed, x.Published)
}
