package mock

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/m-mizutani/iocfeed"
)

// MISPEvent is event stored in MISPServer
type MISPEvent struct {
	ID           string
	UUID         string
	Info         string
	Distribution int
	ThreatLevel  int
	Analysis     int
	Attributes   []*iocfeed.Attribute
	Tags         []string
	Published    bool
}

// MISPServer is fake MISP REST API server for tests. It responds with MISP compatible JSON,
// including 403 validation errors for duplicated or empty attribute values.
type MISPServer struct {
	*httptest.Server
	Key string

	// Calls records "METHOD path" of handled requests in order
	Calls []string

	// Error injection. Value is HTTP status code to respond.
	AddEventError   int
	SearchError     int
	PublishError    int
	TagErrors       map[string]int
	AttributeErrors map[string]int

	events map[string]*MISPEvent
	nextID int
	mutex  sync.Mutex
}

// NewMISPServer starts fake MISP server. Call Close() after test.
func NewMISPServer(key string) *MISPServer {
	x := &MISPServer{
		Key:             key,
		TagErrors:       make(map[string]int),
		AttributeErrors: make(map[string]int),
		events:          make(map[string]*MISPEvent),
		nextID:          1,
	}

	r := mux.NewRouter()
	r.Use(x.middleware)
	r.HandleFunc("/events/add", x.addEvent).Methods(http.MethodPost)
	r.HandleFunc("/events/view/{id}", x.viewEvent).Methods(http.MethodGet)
	r.HandleFunc("/events/restSearch", x.searchEvents).Methods(http.MethodPost)
	r.HandleFunc("/events/publish/{id}", x.publishEvent).Methods(http.MethodPost)
	r.HandleFunc("/attributes/add/{id}", x.addAttribute).Methods(http.MethodPost)
	r.HandleFunc("/tags/attachTagToObject", x.attachTag).Methods(http.MethodPost)

	x.Server = httptest.NewServer(r)
	return x
}

// PutEvent stores an event directly and returns its ID
func (x *MISPServer) PutEvent(ev *MISPEvent) string {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	if ev.ID == "" {
		ev.ID = strconv.Itoa(x.nextID)
		x.nextID++
	}
	if ev.UUID == "" {
		ev.UUID = uuid.New().String()
	}
	x.events[ev.ID] = ev
	return ev.ID
}

// Event returns a copy of stored event, or nil
func (x *MISPServer) Event(id string) *MISPEvent {
	x.mutex.Lock()
	defer x.mutex.Unlock()

	ev, ok := x.events[id]
	if !ok {
		return nil
	}
	copied := *ev
	copied.Attributes = append([]*iocfeed.Attribute{}, ev.Attributes...)
	copied.Tags = append([]string{}, ev.Tags...)
	return &copied
}

// EventCount returns number of stored events
func (x *MISPServer) EventCount() int {
	x.mutex.Lock()
	defer x.mutex.Unlock()
	return len(x.events)
}

// AttributeValues returns attribute values of the event in added order
func (x *MISPServer) AttributeValues(id string) []string {
	ev := x.Event(id)
	if ev == nil {
		return nil
	}
	var values []string
	for _, attr := range ev.Attributes {
		values = append(values, attr.Value)
	}
	return values
}

// -----------------------
// Handlers

func (x *MISPServer) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		x.mutex.Lock()
		x.Calls = append(x.Calls, r.Method+" "+r.URL.Path)
		x.mutex.Unlock()

		if r.Header.Get("Authorization") != x.Key {
			writeMISPError(w, http.StatusForbidden, "Authentication failed. Please make sure you pass the API key of an API enabled user along in the Authorization header.", r.URL.Path, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type mispEventJSON struct {
	ID            string               `json:"id"`
	UUID          string               `json:"uuid"`
	Info          string               `json:"info"`
	Distribution  string               `json:"distribution"`
	ThreatLevelID string               `json:"threat_level_id"`
	Analysis      string               `json:"analysis"`
	Published     bool                 `json:"published"`
	Attribute     []*iocfeed.Attribute `json:"Attribute"`
	Tag           []map[string]string  `json:"Tag,omitempty"`
}

func (x *MISPEvent) toJSON(withAttributes bool) map[string]interface{} {
	ev := &mispEventJSON{
		ID:            x.ID,
		UUID:          x.UUID,
		Info:          x.Info,
		Distribution:  strconv.Itoa(x.Distribution),
		ThreatLevelID: strconv.Itoa(x.ThreatLevel),
		Analysis:      strconv.Itoa(x.Analysis),
		Published:     x.Published,
		Attribute:     []*iocfeed.Attribute{},
	}
	if withAttributes {
		ev.Attribute = append(ev.Attribute, x.Attributes...)
	}
	for _, tag := range x.Tags {
		ev.Tag = append(ev.Tag, map[string]string{"name": tag})
	}
	return map[string]interface{}{"Event": ev}
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMISPError(w http.ResponseWriter, code int, msg, path string, errs interface{}) {
	resp := map[string]interface{}{
		"name":    msg,
		"message": msg,
		"url":     path,
	}
	if errs != nil {
		resp["saved"] = false
		resp["errors"] = errs
	}
	writeJSON(w, code, resp)
}

func (x *MISPServer) addEvent(w http.ResponseWriter, r *http.Request) {
	if x.AddEventError != 0 {
		writeMISPError(w, x.AddEventError, "Could not add Event", r.URL.Path, nil)
		return
	}

	var req struct {
		Event struct {
			UUID          string `json:"uuid"`
			Info          string `json:"info"`
			Distribution  int    `json:"distribution"`
			ThreatLevelID int    `json:"threat_level_id"`
			Analysis      int    `json:"analysis"`
		} `json:"Event"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMISPError(w, http.StatusBadRequest, err.Error(), r.URL.Path, nil)
		return
	}
	if req.Event.Info == "" {
		writeMISPError(w, http.StatusForbidden, "Could not add Event", r.URL.Path,
			map[string][]string{"info": {"Info cannot be empty."}})
		return
	}

	ev := &MISPEvent{
		UUID:         req.Event.UUID,
		Info:         req.Event.Info,
		Distribution: req.Event.Distribution,
		ThreatLevel:  req.Event.ThreatLevelID,
		Analysis:     req.Event.Analysis,
	}
	x.PutEvent(ev)
	writeJSON(w, http.StatusOK, x.Event(ev.ID).toJSON(true))
}

func (x *MISPServer) viewEvent(w http.ResponseWriter, r *http.Request) {
	ev := x.Event(mux.Vars(r)["id"])
	if ev == nil {
		writeMISPError(w, http.StatusNotFound, "Invalid event", r.URL.Path, nil)
		return
	}
	writeJSON(w, http.StatusOK, ev.toJSON(true))
}

func (x *MISPServer) searchEvents(w http.ResponseWriter, r *http.Request) {
	if x.SearchError != 0 {
		writeMISPError(w, x.SearchError, "Search failed", r.URL.Path, nil)
		return
	}

	var req struct {
		EventInfo string `json:"eventinfo"`
		Metadata  bool   `json:"metadata"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMISPError(w, http.StatusBadRequest, err.Error(), r.URL.Path, nil)
		return
	}

	x.mutex.Lock()
	var matched []*MISPEvent
	for _, ev := range x.events {
		if strings.Contains(ev.Info, req.EventInfo) {
			matched = append(matched, ev)
		}
	}
	x.mutex.Unlock()

	resp := []interface{}{}
	for _, ev := range matched {
		resp = append(resp, x.Event(ev.ID).toJSON(!req.Metadata))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"response": resp})
}

func (x *MISPServer) publishEvent(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if x.PublishError != 0 {
		writeMISPError(w, x.PublishError, "Publishing failed", r.URL.Path, nil)
		return
	}

	x.mutex.Lock()
	ev, ok := x.events[id]
	if ok {
		ev.Published = true
	}
	x.mutex.Unlock()

	if !ok {
		writeMISPError(w, http.StatusNotFound, "Invalid event", r.URL.Path, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":    "Publish",
		"message": "Job queued",
		"url":     r.URL.Path,
		"id":      id,
	})
}

func (x *MISPServer) addAttribute(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var attr iocfeed.Attribute
	if err := json.NewDecoder(r.Body).Decode(&attr); err != nil {
		writeMISPError(w, http.StatusBadRequest, err.Error(), r.URL.Path, nil)
		return
	}

	if code, ok := x.AttributeErrors[attr.Value]; ok {
		writeMISPError(w, code, "Internal error", r.URL.Path, nil)
		return
	}

	x.mutex.Lock()
	defer x.mutex.Unlock()

	ev, ok := x.events[id]
	if !ok {
		writeMISPError(w, http.StatusNotFound, "Invalid event", r.URL.Path, nil)
		return
	}

	if strings.TrimSpace(attr.Value) == "" {
		writeMISPError(w, http.StatusForbidden, "Could not add Attribute", r.URL.Path,
			map[string][]string{"value": {"Value not set."}})
		return
	}
	if (attr.Type == "ip-dst" || attr.Type == "ip-src") && net.ParseIP(attr.Value) == nil {
		writeMISPError(w, http.StatusForbidden, "Could not add Attribute", r.URL.Path,
			map[string][]string{"value": {"IP address has an invalid format."}})
		return
	}
	for _, existing := range ev.Attributes {
		if existing.Value == attr.Value && existing.Type == attr.Type {
			writeMISPError(w, http.StatusForbidden, "Could not add Attribute", r.URL.Path,
				map[string][]string{"value": {"A similar attribute already exists for this event."}})
			return
		}
	}

	copied := attr
	ev.Attributes = append(ev.Attributes, &copied)
	writeJSON(w, http.StatusOK, map[string]interface{}{"Attribute": &copied})
}

func (x *MISPServer) attachTag(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UUID string `json:"uuid"`
		Tag  string `json:"tag"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeMISPError(w, http.StatusBadRequest, err.Error(), r.URL.Path, nil)
		return
	}

	if code, ok := x.TagErrors[req.Tag]; ok {
		writeMISPError(w, code, "Invalid Tag.", r.URL.Path, nil)
		return
	}

	x.mutex.Lock()
	defer x.mutex.Unlock()
	for _, ev := range x.events {
		if ev.UUID == req.UUID {
			ev.Tags = append(ev.Tags, req.Tag)
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"saved":   true,
				"success": "Tag " + req.Tag + " successfully attached to Event.",
			})
			return
		}
	}
	writeMISPError(w, http.StatusNotFound, "Invalid object.", r.URL.Path, nil)
}
