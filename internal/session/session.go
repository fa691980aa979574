package session

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// now is the clock used for every timestamp the entity records.
var now = func() time.Time { return time.Now().UTC() }

// Session is one documentation run: lifecycle state, captured commands and
// annotations, an append-only audit log, metadata and derived statistics.
type Session struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	State       State          `json:"state"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	StartedAt   *time.Time     `json:"started_at"`
	StoppedAt   *time.Time     `json:"stopped_at"`
	OutputFile  string         `json:"output_file,omitempty"`
	Commands    []CommandEntry `json:"commands"`
	Annotations []Annotation   `json:"annotations"`
	Events      []Event        `json:"events"`
	Metadata    Metadata       `json:"metadata"`
	Stats       Stats          `json:"stats"`
}

// CommandEntry is a finished shell command reported by the monitor.
// ExitCode is nil while the outcome is unknown.
type CommandEntry struct {
	Command          string    `json:"command"`
	Timestamp        time.Time `json:"timestamp"`
	ExitCode         *int      `json:"exit_code"`
	WorkingDirectory string    `json:"working_directory"`
	Shell            string    `json:"shell"`
	Output           *string   `json:"output"`
	Error            *string   `json:"error"`
}

// AnnotationKind classifies a manual annotation.
type AnnotationKind string

const (
	AnnotationNote        AnnotationKind = "Note"
	AnnotationExplanation AnnotationKind = "Explanation"
	AnnotationWarning     AnnotationKind = "Warning"
	AnnotationMilestone   AnnotationKind = "Milestone"
)

// AnnotationKinds lists every kind in display order.
var AnnotationKinds = []AnnotationKind{AnnotationNote, AnnotationExplanation, AnnotationWarning, AnnotationMilestone}

// ParseAnnotationKind accepts a kind name in any case ("note", "Warning").
func ParseAnnotationKind(s string) (AnnotationKind, error) {
	for _, k := range AnnotationKinds {
		if strings.EqualFold(string(k), s) {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown annotation kind %q (want note, explanation, warning or milestone)", s)
}

// Annotation is a developer-provided note attached to a session.
type Annotation struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Timestamp time.Time      `json:"timestamp"`
	Kind      AnnotationKind `json:"annotation_type"`
}

// EventType names an audit log entry.
type EventType string

const (
	EventSessionStarted       EventType = "SessionStarted"
	EventSessionPaused        EventType = "SessionPaused"
	EventSessionResumed       EventType = "SessionResumed"
	EventSessionStopped       EventType = "SessionStopped"
	EventAnnotationAdded      EventType = "AnnotationAdded"
	EventCommandCaptured      EventType = "CommandCaptured"
	EventErrorOccurred        EventType = "ErrorOccurred"
	EventConfigurationChanged EventType = "ConfigurationChanged"
)

// Event is one entry of the session's audit log.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
	Details   string    `json:"details,omitempty"`
}

// Metadata describes where and by whom a session was recorded.
type Metadata struct {
	WorkingDirectory string            `json:"working_directory"`
	ShellType        string            `json:"shell_type"`
	Platform         string            `json:"platform"`
	Hostname         string            `json:"hostname"`
	User             string            `json:"user,omitempty"`
	Tags             []string          `json:"tags"`
	LLMProvider      string            `json:"llm_provider,omitempty"`
	Settings         map[string]string `json:"settings"`
}

// Stats holds counters derived from the session's contents.
type Stats struct {
	TotalCommands      int    `json:"total_commands"`
	SuccessfulCommands int    `json:"successful_commands"`
	FailedCommands     int    `json:"failed_commands"`
	TotalAnnotations   int    `json:"total_annotations"`
	DurationSeconds    *int64 `json:"duration_seconds"`
	PauseResumeCount   int    `json:"pause_resume_count"`
}

const unknown = "unknown"

// DefaultMetadata returns best-effort metadata for the running process. Shell
// and platform stay "unknown" until a monitor reports them.
func DefaultMetadata() Metadata {
	wd, err := os.Getwd()
	if err != nil {
		wd = "/"
	}
	host, err := os.Hostname()
	if err != nil {
		host = unknown
	}
	user := os.Getenv("USER")
	if user == "" {
		user = os.Getenv("USERNAME")
	}
	return Metadata{
		WorkingDirectory: wd,
		ShellType:        unknown,
		Platform:         unknown,
		Hostname:         host,
		User:             user,
		Tags:             []string{},
		Settings:         map[string]string{},
	}
}

// New creates an Active session and records its SessionStarted event.
func New(description, outputFile string, meta Metadata) (*Session, error) {
	if description == "" {
		return nil, errors.New("session description must not be empty")
	}
	if meta.Tags == nil {
		meta.Tags = []string{}
	}
	if meta.Settings == nil {
		meta.Settings = map[string]string{}
	}

	t := now()
	started := t
	s := &Session{
		ID:          uuid.NewString(),
		Description: description,
		State:       StateActive,
		CreatedAt:   t,
		UpdatedAt:   t,
		StartedAt:   &started,
		OutputFile:  outputFile,
		Commands:    []CommandEntry{},
		Annotations: []Annotation{},
		Events:      []Event{},
		Metadata:    meta,
	}
	s.record(EventSessionStarted, "Session created: "+description)
	return s, nil
}

// CanModify reports whether the session still accepts commands and annotations.
func (s *Session) CanModify() bool {
	return s.State.IsActive() || s.State.IsPaused()
}

// AddCommand appends a captured command and updates the success/failure
// counters from its exit code.
func (s *Session) AddCommand(entry CommandEntry) error {
	if !s.CanModify() {
		return &TransitionError{Op: "add command to", From: s.State}
	}
	s.Commands = append(s.Commands, entry)
	s.Stats.TotalCommands++
	if entry.ExitCode != nil {
		if *entry.ExitCode == 0 {
			s.Stats.SuccessfulCommands++
		} else {
			s.Stats.FailedCommands++
		}
	}
	s.record(EventCommandCaptured, entry.Command)
	return nil
}

// AddAnnotation appends an annotation and returns its id. Annotations are
// accepted while paused.
func (s *Session) AddAnnotation(text string, kind AnnotationKind) (string, error) {
	if !s.CanModify() {
		return "", &TransitionError{Op: "annotate", From: s.State}
	}
	a := Annotation{
		ID:        uuid.NewString(),
		Text:      text,
		Timestamp: now(),
		Kind:      kind,
	}
	s.Annotations = append(s.Annotations, a)
	s.Stats.TotalAnnotations++
	s.record(EventAnnotationAdded, "Annotation added: "+a.ID)
	return a.ID, nil
}

// Pause moves an Active session to Paused.
func (s *Session) Pause() error {
	if !s.State.IsActive() {
		return &TransitionError{Op: "pause", From: s.State}
	}
	s.State = StatePaused
	s.Stats.PauseResumeCount++
	s.record(EventSessionPaused, "")
	return nil
}

// Resume moves a Paused session back to Active.
func (s *Session) Resume() error {
	if !s.State.IsPaused() {
		return &TransitionError{Op: "resume", From: s.State}
	}
	s.State = StateActive
	s.record(EventSessionResumed, "")
	return nil
}

// Stop finalizes the session. StoppedAt and DurationSeconds are set here and
// nowhere else.
func (s *Session) Stop() error {
	if !s.CanModify() {
		return &TransitionError{Op: "stop", From: s.State}
	}
	t := now()
	s.State = StateStopped
	s.StoppedAt = &t
	if s.StartedAt != nil {
		secs := int64(t.Sub(*s.StartedAt) / time.Second)
		if secs < 0 {
			secs = 0
		}
		s.Stats.DurationSeconds = &secs
	}
	s.record(EventSessionStopped, fmt.Sprintf("Session completed with %d commands", s.Stats.TotalCommands))
	return nil
}

// SetError moves the session into the error state unconditionally.
func (s *Session) SetError(reason string) {
	s.State = StateError(reason)
	s.record(EventErrorOccurred, reason)
}

// UpdateEnvironment records the shell and platform reported by a monitor.
// Empty values are ignored. It reports whether anything changed.
func (s *Session) UpdateEnvironment(shell, platform string) bool {
	var changed []string
	if shell != "" && shell != s.Metadata.ShellType {
		s.Metadata.ShellType = shell
		changed = append(changed, "shell_type="+shell)
	}
	if platform != "" && platform != s.Metadata.Platform {
		s.Metadata.Platform = platform
		changed = append(changed, "platform="+platform)
	}
	if len(changed) == 0 {
		return false
	}
	s.record(EventConfigurationChanged, strings.Join(changed, ", "))
	return true
}

// Duration is the time between start and stop, or until now for a running
// session. ok is false when the session has no start time.
func (s *Session) Duration() (d time.Duration, ok bool) {
	if s.StartedAt == nil {
		return 0, false
	}
	end := now()
	if s.StoppedAt != nil {
		end = *s.StoppedAt
	}
	return end.Sub(*s.StartedAt), true
}

// Clone returns a deep copy that shares no mutable state with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.StartedAt = clonePtr(s.StartedAt)
	c.StoppedAt = clonePtr(s.StoppedAt)
	if s.Commands != nil {
		c.Commands = make([]CommandEntry, len(s.Commands))
		for i, e := range s.Commands {
			e.ExitCode = clonePtr(e.ExitCode)
			e.Output = clonePtr(e.Output)
			e.Error = clonePtr(e.Error)
			c.Commands[i] = e
		}
	}
	c.Annotations = slices.Clone(s.Annotations)
	c.Events = slices.Clone(s.Events)
	c.Metadata.Tags = slices.Clone(s.Metadata.Tags)
	c.Metadata.Settings = maps.Clone(s.Metadata.Settings)
	c.Stats.DurationSeconds = clonePtr(s.Stats.DurationSeconds)
	return &c
}

// record appends an audit event and advances UpdatedAt.
func (s *Session) record(typ EventType, details string) {
	t := now()
	s.Events = append(s.Events, Event{
		ID:        uuid.NewString(),
		Type:      typ,
		Timestamp: t,
		Details:   details,
	})
	if t.After(s.UpdatedAt) {
		s.UpdatedAt = t
	}
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
