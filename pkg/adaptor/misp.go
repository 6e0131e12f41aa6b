package adaptor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"strings"

	"github.com/m-mizutani/iocfeed"
	"github.com/m-mizutani/iocfeed/pkg/errors"
	"golang.org/x/time/rate"
)

// MISPClient is accessor to MISP REST API
type MISPClient interface {
	AddEvent(ctx context.Context, event *iocfeed.Event) (*iocfeed.Event, error)
	GetEvent(ctx context.Context, eventID string) (*iocfeed.Event, error)
	SearchEvents(ctx context.Context, info string) ([]*iocfeed.Event, error)
	AddAttribute(ctx context.Context, eventID string, attr *iocfeed.Attribute) error
	AddTag(ctx context.Context, eventUUID, tag string) error
	PublishEvent(ctx context.Context, eventID string) error
}

// MISPErrorKind is structured classification of MISP API failure
type MISPErrorKind int

const (
	MISPErrorOther MISPErrorKind = iota
	MISPErrorDuplicate
	MISPErrorEmpty
	MISPErrorForbidden
	MISPErrorNotFound
)

func (x MISPErrorKind) String() string {
	switch x {
	case MISPErrorDuplicate:
		return "duplicate"
	case MISPErrorEmpty:
		return "empty"
	case MISPErrorForbidden:
		return "forbidden"
	case MISPErrorNotFound:
		return "not_found"
	default:
		return "other"
	}
}

// MISPError is returned when MISP responded with failure.
type MISPError struct {
	StatusCode int
	Kind       MISPErrorKind
	Path       string
	Message    string
	Details    []string
}

func (x *MISPError) Error() string {
	msg := fmt.Sprintf("MISP API error (%s, code=%d, path=%s): %s", x.Kind, x.StatusCode, x.Path, x.Message)
	if len(x.Details) > 0 {
		msg += " [" + strings.Join(x.Details, "; ") + "]"
	}
	return msg
}

// MISPClientArguments is parameters of NewMISPClient
type MISPClientArguments struct {
	URL  string
	Key  string
	HTTP HTTPClient

	// RateLimit is max number of requests per second. Zero means unlimited.
	RateLimit int
}

// MISPAPI is MISPClient implementation over HTTP
type MISPAPI struct {
	baseURL string
	key     string
	client  HTTPClient
	limiter *rate.Limiter
}

// NewMISPClient is constructor of MISPAPI
func NewMISPClient(args *MISPClientArguments) *MISPAPI {
	limit := rate.Inf
	if args.RateLimit > 0 {
		limit = rate.Limit(args.RateLimit)
	}

	client := args.HTTP
	if client == nil {
		client = NewHTTPClient(true)
	}

	return &MISPAPI{
		baseURL: strings.TrimRight(args.URL, "/"),
		key:     args.Key,
		client:  client,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// -----------------------
// Wire format of MISP

// mispInt accepts both of number and numeric string because MISP returns "0" for integer fields.
type mispInt int

func (x *mispInt) UnmarshalJSON(raw []byte) error {
	s := strings.Trim(string(raw), `"`)
	if s == "" || s == "null" {
		*x = 0
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return err
	}
	*x = mispInt(n)
	return nil
}

type mispAttribute struct {
	ID       string `json:"id,omitempty"`
	Value    string `json:"value"`
	Type     string `json:"type"`
	Category string `json:"category,omitempty"`
}

type mispTag struct {
	Name string `json:"name"`
}

type mispEvent struct {
	ID            string          `json:"id,omitempty"`
	UUID          string          `json:"uuid,omitempty"`
	Info          string          `json:"info"`
	Distribution  mispInt         `json:"distribution"`
	ThreatLevelID mispInt         `json:"threat_level_id"`
	Analysis      mispInt         `json:"analysis"`
	Published     bool            `json:"published"`
	Attribute     []mispAttribute `json:"Attribute,omitempty"`
	Tag           []mispTag       `json:"Tag,omitempty"`
}

type mispEventWrapper struct {
	Event mispEvent `json:"Event"`
}

type mispSearchResponse struct {
	Response []mispEventWrapper `json:"response"`
}

type mispErrorResponse struct {
	Name    string          `json:"name"`
	Message string          `json:"message"`
	Saved   *bool           `json:"saved"`
	Errors  json.RawMessage `json:"errors"`
}

func toEvent(ev *mispEvent) *iocfeed.Event {
	event := &iocfeed.Event{
		ID:           ev.ID,
		UUID:         ev.UUID,
		Info:         ev.Info,
		Distribution: int(ev.Distribution),
		ThreatLevel:  int(ev.ThreatLevelID),
		Analysis:     int(ev.Analysis),
		Published:    ev.Published,
	}
	for _, attr := range ev.Attribute {
		event.Attributes = append(event.Attributes, &iocfeed.Attribute{
			Value:    attr.Value,
			Type:     attr.Type,
			Category: attr.Category,
		})
	}
	for _, tag := range ev.Tag {
		event.Tags = append(event.Tags, tag.Name)
	}
	return event
}

// -----------------------
// API methods

func (x *MISPAPI) AddEvent(ctx context.Context, event *iocfeed.Event) (*iocfeed.Event, error) {
	req := &mispEventWrapper{
		Event: mispEvent{
			UUID:          event.UUID,
			Info:          event.Info,
			Distribution:  mispInt(event.Distribution),
			ThreatLevelID: mispInt(event.ThreatLevel),
			Analysis:      mispInt(event.Analysis),
		},
	}

	var resp mispEventWrapper
	if err := x.do(ctx, http.MethodPost, "/events/add", req, &resp); err != nil {
		return nil, err
	}
	return toEvent(&resp.Event), nil
}

func (x *MISPAPI) GetEvent(ctx context.Context, eventID string) (*iocfeed.Event, error) {
	var resp mispEventWrapper
	if err := x.do(ctx, http.MethodGet, "/events/view/"+eventID, nil, &resp); err != nil {
		return nil, err
	}
	return toEvent(&resp.Event), nil
}

// SearchEvents returns events whose info is exactly same with info. Attributes are not included.
func (x *MISPAPI) SearchEvents(ctx context.Context, info string) ([]*iocfeed.Event, error) {
	req := map[string]interface{}{
		"returnFormat": "json",
		"eventinfo":    info,
		"metadata":     true,
	}

	var resp mispSearchResponse
	if err := x.do(ctx, http.MethodPost, "/events/restSearch", req, &resp); err != nil {
		return nil, err
	}

	var events []*iocfeed.Event
	for i := range resp.Response {
		if resp.Response[i].Event.Info != info {
			continue // eventinfo is substring match
		}
		events = append(events, toEvent(&resp.Response[i].Event))
	}
	return events, nil
}

func (x *MISPAPI) AddAttribute(ctx context.Context, eventID string, attr *iocfeed.Attribute) error {
	req := &mispAttribute{
		Value:    attr.Value,
		Type:     attr.Type,
		Category: attr.Category,
	}
	return x.do(ctx, http.MethodPost, "/attributes/add/"+eventID, req, nil)
}

func (x *MISPAPI) AddTag(ctx context.Context, eventUUID, tag string) error {
	req := map[string]string{
		"uuid": eventUUID,
		"tag":  tag,
	}
	return x.do(ctx, http.MethodPost, "/tags/attachTagToObject", req, nil)
}

func (x *MISPAPI) PublishEvent(ctx context.Context, eventID string) error {
	return x.do(ctx, http.MethodPost, "/events/publish/"+eventID, nil, nil)
}

func (x *MISPAPI) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := x.limiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "Waiting MISP rate limiter").With("path", path)
	}

	var reqBody *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, "Failed to marshal MISP request").With("body", body)
		}
		reqBody = bytes.NewReader(raw)
	} else {
		reqBody = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, x.baseURL+path, reqBody)
	if err != nil {
		return errors.Wrap(err, "Failed to create MISP request").With("path", path)
	}
	req.Header.Set("Authorization", x.key)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")

	resp, err := x.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "Failed to send MISP request").With("path", path)
	}
	defer resp.Body.Close()

	raw, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "Failed to read MISP response").With("path", path)
	}

	if resp.StatusCode < 200 || 299 < resp.StatusCode {
		return classifyMISPError(resp.StatusCode, path, raw)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return errors.Wrap(err, "Failed to unmarshal MISP response").With("path", path).With("body", string(raw))
		}
	}
	return nil
}

// classifyMISPError converts MISP error response to MISPError. MISP has no error code in its
// response body and reports validation failures as 403 with "errors", so message matching of
// the validation errors is required here. A 403 without validation errors is an ACL denial.
func classifyMISPError(code int, path string, raw []byte) *MISPError {
	e := &MISPError{
		StatusCode: code,
		Kind:       MISPErrorOther,
		Path:       path,
	}

	var resp mispErrorResponse
	validation := false
	if err := json.Unmarshal(raw, &resp); err != nil {
		e.Message = strings.TrimSpace(string(raw))
	} else {
		e.Message = resp.Message
		if e.Message == "" {
			e.Message = resp.Name
		}
		e.Details = flattenMessages(resp.Errors)
		validation = len(e.Details) > 0 || (resp.Saved != nil && !*resp.Saved)
	}

	switch {
	case containsMessage(e.Details, "already exists"), strings.Contains(strings.ToLower(e.Message), "already exists"):
		e.Kind = MISPErrorDuplicate
	case containsMessage(e.Details, "value not set"):
		e.Kind = MISPErrorEmpty
	case code == http.StatusUnauthorized:
		e.Kind = MISPErrorForbidden
	case code == http.StatusForbidden && !validation:
		e.Kind = MISPErrorForbidden
	case code == http.StatusNotFound:
		e.Kind = MISPErrorNotFound
	}
	return e
}

func containsMessage(messages []string, substr string) bool {
	for _, msg := range messages {
		if strings.Contains(strings.ToLower(msg), substr) {
			return true
		}
	}
	return false
}

// flattenMessages collects strings in "errors" field, which is string, list or nested object.
func flattenMessages(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}

	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}

	var out []string
	var walk func(v interface{})
	walk = func(v interface{}) {
		switch t := v.(type) {
		case string:
			out = append(out, t)
		case []interface{}:
			for _, item := range t {
				walk(item)
			}
		case map[string]interface{}:
			for _, item := range t {
				walk(item)
			}
		}
	}
	walk(v)
	return out
}
