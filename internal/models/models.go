package models

// Account is the sender of a notification
type Account struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Acct     string `json:"acct"`
	URL      string `json:"url"`
}

// Status is the post a notification refers to
type Status struct {
	ID      string `json:"id"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// Notification is a mention notification as returned by the platform
type Notification struct {
	ID      string  `json:"id"`
	Type    string  `json:"type"`
	Account Account `json:"account"`
	Status  *Status `json:"status,omitempty"`
}

// Mention is the part of a notification the bot works with
type Mention struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"` // status the reply is threaded to
	SourceURL      string `json:"source_url"`
	RawContent     string `json:"raw_content"`
	SenderHandle   string `json:"sender_handle"`
	SenderURL      string `json:"sender_url"`
}

// CommandKind tags a parsed command
type CommandKind int

const (
	CommandUnrecognized CommandKind = iota
	CommandQuery
	CommandSighting
)

func (k CommandKind) String() string {
	switch k {
	case CommandQuery:
		return "query"
	case CommandSighting:
		return "sighting"
	default:
		return "unrecognized"
	}
}

// Command is the classification of a mention. Indicator is empty for CommandUnrecognized.
type Command struct {
	Kind      CommandKind
	Indicator string
}

// LookupResult is one event matched by an indicator search
type LookupResult struct {
	EventID       string   `json:"event_id"`
	EventUUID     string   `json:"event_uuid"`
	Organisation  string   `json:"organisation"`
	Info          string   `json:"info"`
	Date          string   `json:"date"`
	ThreatLevel   string   `json:"threat_level"`
	AnalysisStage string   `json:"analysis_stage"`
	ContextTags   []string `json:"context_tags"`
}

// ReplyJob is a reply waiting to be posted
type ReplyJob struct {
	MentionID      string
	ConversationID string
	Body           string
}

// OutcomeKind is the terminal state of a processed mention
type OutcomeKind string

const (
	OutcomeReplied      OutcomeKind = "replied"
	OutcomeSighted      OutcomeKind = "sighted"
	OutcomeUnrecognized OutcomeKind = "unrecognized"
	OutcomeFailed       OutcomeKind = "failed"
)

// Outcome records what happened to a single notification during a run
type Outcome struct {
	NotificationID string
	Kind           OutcomeKind
	Err            error
}

// Dismissable reports whether the notification should be dismissed after the run
func (o Outcome) Dismissable() bool {
	return o.Kind != OutcomeFailed
}
