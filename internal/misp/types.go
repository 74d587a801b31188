package misp

import (
	"fmt"
	"strconv"
	"strings"
)

// AttributeFilter is the body of an attribute restSearch
type AttributeFilter struct {
	Value              string   `json:"value"`
	ToIDs              *bool    `json:"to_ids,omitempty"`
	Tags               []string `json:"tags,omitempty"`
	Published          bool     `json:"published"`
	Limit              int      `json:"limit,omitempty"`
	EnforceWarninglist bool     `json:"enforceWarninglist"`
}

// EventFilter is the body of an event restSearch
type EventFilter struct {
	UUID string `json:"uuid"`
}

// Sighting is the body of a sighting submission
type Sighting struct {
	Value  string `json:"value"`
	Source string `json:"source"`
}

// Tag is a MISP tag
type Tag struct {
	Name string `json:"name"`
}

// Organisation is the creator organisation of an event
type Organisation struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// EventRef is the event summary embedded in an attribute
type EventRef struct {
	ID   string `json:"id"`
	UUID string `json:"uuid"`
	Info string `json:"info"`
}

// Attribute is a single indicator stored in an event
type Attribute struct {
	ID      string   `json:"id"`
	EventID string   `json:"event_id"`
	Type    string   `json:"type"`
	Value   string   `json:"value"`
	Event   EventRef `json:"Event"`
	Tags    []Tag    `json:"Tag"`
}

// Event holds the event details returned by an event search
type Event struct {
	ID            string       `json:"id"`
	UUID          string       `json:"uuid"`
	Info          string       `json:"info"`
	Date          string       `json:"date"`
	ThreatLevelID string       `json:"threat_level_id"`
	Analysis      string       `json:"analysis"`
	Orgc          Organisation `json:"Orgc"`
	Tags          []Tag        `json:"Tag"`
}

// ThreatLevel of an event
type ThreatLevel int

const (
	ThreatLevelHigh      ThreatLevel = 1
	ThreatLevelMedium    ThreatLevel = 2
	ThreatLevelLow       ThreatLevel = 3
	ThreatLevelUndefined ThreatLevel = 4
)

func (t ThreatLevel) String() string {
	switch t {
	case ThreatLevelHigh:
		return "high"
	case ThreatLevelMedium:
		return "medium"
	case ThreatLevelLow:
		return "low"
	case ThreatLevelUndefined:
		return "undefined"
	}
	return fmt.Sprintf("unknown(%d)", int(t))
}

// Analysis stage of an event
type Analysis int

const (
	AnalysisInitial   Analysis = 0
	AnalysisOngoing   Analysis = 1
	AnalysisCompleted Analysis = 2
)

func (a Analysis) String() string {
	switch a {
	case AnalysisInitial:
		return "initial"
	case AnalysisOngoing:
		return "ongoing"
	case AnalysisCompleted:
		return "completed"
	}
	return fmt.Sprintf("unknown(%d)", int(a))
}

// ThreatLevelLabel renders a threat_level_id as returned by the API
func ThreatLevelLabel(id string) string {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		return fmt.Sprintf("unknown(%s)", id)
	}
	return ThreatLevel(n).String()
}

// AnalysisLabel renders an analysis id as returned by the API
func AnalysisLabel(id string) string {
	n, err := strconv.Atoi(strings.TrimSpace(id))
	if err != nil {
		return fmt.Sprintf("unknown(%s)", id)
	}
	return Analysis(n).String()
}
