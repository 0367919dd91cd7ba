// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"context"
	"encoding/json"
	"time"
)

// EventType represents the type discriminant of an incoming TRAX change
// notification. The values are the literal codes emitted by the legacy system.
type EventType string

// TRAX notification types - these drive the event-driven reconciliation.
// Each one describes a change made in the legacy source-of-truth system.
const (
	// EventNewStudent - a brand new student appeared in TRAX.
	EventNewStudent EventType = "NEWSTUDENT"

	// EventGradMasterUpdate - the grad master record changed (school, grade,
	// citizenship, program inputs).
	EventGradMasterUpdate EventType = "STUDENT"

	// EventProgramList - full replacement of the optional/career program set.
	EventProgramList EventType = "XPROGRAM"

	// French Immersion course evidence events (grade 10 and 11 variants).
	EventFrenchImmersion10Add    EventType = "FI10ADD"
	EventFrenchImmersion10Delete EventType = "FI10DEL"
	EventFrenchImmersion11Add    EventType = "FI11ADD"
	EventFrenchImmersion11Delete EventType = "FI11DEL"

	// EventCourseChange / EventAssessmentChange - a course or assessment record
	// changed; always triggers a downstream batch recompute.
	EventCourseChange     EventType = "COURSE"
	EventAssessmentChange EventType = "ASSESSMENT"

	// EventDemographics - name or date-of-birth changed.
	EventDemographics EventType = "UPD_DEMOG"

	// EventGradUpdate - graduation-relevant fields changed (uses the
	// non-graduated resolver table).
	EventGradUpdate EventType = "UPD_GRAD"

	// EventStatusChange - the student status code changed.
	EventStatusChange EventType = "UPD_STD_STATUS"
)

// IsValid reports whether the event type is one the engine dispatches.
func (t EventType) IsValid() bool {
	switch t {
	case EventNewStudent, EventGradMasterUpdate, EventProgramList,
		EventFrenchImmersion10Add, EventFrenchImmersion10Delete,
		EventFrenchImmersion11Add, EventFrenchImmersion11Delete,
		EventCourseChange, EventAssessmentChange,
		EventDemographics, EventGradUpdate, EventStatusChange:
		return true
	default:
		return false
	}
}

// IsFrenchImmersion reports whether the type is one of the FI course
// evidence variants.
func (t EventType) IsFrenchImmersion() bool {
	switch t {
	case EventFrenchImmersion10Add, EventFrenchImmersion10Delete,
		EventFrenchImmersion11Add, EventFrenchImmersion11Delete:
		return true
	default:
		return false
	}
}

// IsFrenchImmersionAdd reports whether the type adds FI course evidence.
func (t EventType) IsFrenchImmersionAdd() bool {
	return t == EventFrenchImmersion10Add || t == EventFrenchImmersion11Add
}

// EventStatus is the lifecycle status of a durable reconciliation event.
type EventStatus string

const (
	// EventStatusReceived - the event has been stored but not yet handled.
	EventStatusReceived EventStatus = "RECEIVED"

	// EventStatusProcessed - terminal; the event has been handled.
	EventStatusProcessed EventStatus = "PROCESSED"
)

// Event is the base interface for all reconciliation events.
type Event interface {
	// EventID returns the unique identifier of the event record.
	EventID() string

	// EventType returns the type discriminant of the event.
	EventType() EventType

	// PEN returns the personal education number the event refers to.
	PEN() string

	// OccurredAt returns when the change happened in the source system.
	OccurredAt() time.Time
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	Pen           string    `json:"pen"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventID implements Event interface.
func (e BaseEvent) EventID() string { return e.ID }

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType { return e.Type }

// PEN implements Event interface.
func (e BaseEvent) PEN() string { return e.Pen }

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// NewBaseEvent creates a new base event.
func NewBaseEvent(id string, eventType EventType, pen string) BaseEvent {
	return BaseEvent{
		ID:        id,
		Type:      eventType,
		Pen:       pen,
		Timestamp: time.Now().UTC(),
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Typed TRAX events
// ═══════════════════════════════════════════════════════════════════════════

// NewStudentEvent - a new student record must be created and converted.
type NewStudentEvent struct {
	BaseEvent
	RequirementYear string `json:"requirement_year"`
	SchoolOfRecord  string `json:"school_of_record"`
	StudentGrade    string `json:"student_grade"`
	StudentStatus   string `json:"student_status"`
	FrenchDogwood   string `json:"french_dogwood,omitempty"`
	Citizenship     string `json:"citizenship,omitempty"`
}

// GradMasterUpdateEvent - the grad master record changed in TRAX.
type GradMasterUpdateEvent struct {
	BaseEvent
	RequirementYear string `json:"requirement_year"`
	SchoolOfRecord  string `json:"school_of_record"`
	SchoolAtGrad    string `json:"school_at_grad,omitempty"`
	StudentGrade    string `json:"student_grade"`
	Citizenship     string `json:"citizenship"`
	FrenchDogwood   string `json:"french_dogwood,omitempty"`
	FrenchCert      string `json:"french_cert,omitempty"`
}

// ProgramListEvent - full replacement set of optional/career program codes.
type ProgramListEvent struct {
	BaseEvent
	ProgramList []string `json:"program_list"`
}

// FrenchImmersionEvent - a French-language course was added or removed for
// the student (grade 10 or 11 variant, see the event type).
type FrenchImmersionEvent struct {
	BaseEvent
	CourseCode  string `json:"course_code"`
	CourseLevel string `json:"course_level"`
}

// CourseChangeEvent - a course or assessment record changed; the payload is
// the same for COURSE and ASSESSMENT, only the type differs.
type CourseChangeEvent struct {
	BaseEvent
	CourseCode  string `json:"course_code,omitempty"`
	CourseLevel string `json:"course_level,omitempty"`
}

// DemographicsEvent - name or birthdate changed in the source system.
type DemographicsEvent struct {
	BaseEvent
	FirstName   string `json:"first_name"`
	MiddleNames string `json:"middle_names,omitempty"`
	LastName    string `json:"last_name"`
	Birthdate   string `json:"birthdate"` // yyyy-MM-dd
}

// GradUpdateEvent - graduation-relevant fields changed.
type GradUpdateEvent struct {
	BaseEvent
	RequirementYear string `json:"requirement_year"`
	SchoolOfRecord  string `json:"school_of_record"`
	StudentGrade    string `json:"student_grade"`
	Citizenship     string `json:"citizenship"`
	SLPDate         string `json:"slp_date,omitempty"` // yyyyMMdd in TRAX
	FrenchDogwood   string `json:"french_dogwood,omitempty"`
}

// StatusChangeEvent - the student status code changed (CUR/ARC/TER/MER/DEC).
type StatusChangeEvent struct {
	BaseEvent
	NewStatus   string `json:"new_status"`
	ArchiveFlag string `json:"archive_flag,omitempty"`
}

// ═══════════════════════════════════════════════════════════════════════════
// Event record (durable form) and codec
// ═══════════════════════════════════════════════════════════════════════════

// EventRecord is the durable form of a reconciliation event. The processed
// status on this record is the only engine-owned mutable state.
type EventRecord struct {
	ID          string          `json:"id"`
	Type        EventType       `json:"type"`
	Pen         string          `json:"pen"`
	Status      EventStatus     `json:"status"`
	Payload     json.RawMessage `json:"payload"`
	CreatedAt   time.Time       `json:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at,omitempty"`
}

// EncodeEvent serializes a typed event into its durable record form.
func EncodeEvent(event Event) (*EventRecord, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, WrapError("event", "Encode", ErrInvalidFormat, "failed to marshal payload", err)
	}

	return &EventRecord{
		ID:        event.EventID(),
		Type:      event.EventType(),
		Pen:       event.PEN(),
		Status:    EventStatusReceived,
		Payload:   payload,
		CreatedAt: event.OccurredAt(),
	}, nil
}

// DecodeEvent deserializes a durable record back into its typed event.
func DecodeEvent(record *EventRecord) (Event, error) {
	var event Event

	switch record.Type {
	case EventNewStudent:
		event = &NewStudentEvent{}
	case EventGradMasterUpdate:
		event = &GradMasterUpdateEvent{}
	case EventProgramList:
		event = &ProgramListEvent{}
	case EventFrenchImmersion10Add, EventFrenchImmersion10Delete,
		EventFrenchImmersion11Add, EventFrenchImmersion11Delete:
		event = &FrenchImmersionEvent{}
	case EventCourseChange, EventAssessmentChange:
		event = &CourseChangeEvent{}
	case EventDemographics:
		event = &DemographicsEvent{}
	case EventGradUpdate:
		event = &GradUpdateEvent{}
	case EventStatusChange:
		event = &StatusChangeEvent{}
	default:
		return nil, ErrUnknownEventType
	}

	if err := json.Unmarshal(record.Payload, event); err != nil {
		return nil, WrapError("event", "Decode", ErrInvalidFormat, "failed to unmarshal payload", err)
	}

	return event, nil
}

// EventStore defines the durable storage contract for reconciliation events.
// The engine owns exactly one mutation on a record: flipping the status from
// RECEIVED to PROCESSED at the end of handling.
type EventStore interface {
	// Save persists a new event record in RECEIVED status.
	Save(ctx context.Context, record *EventRecord) error

	// GetByID returns an event record by its identifier.
	GetByID(ctx context.Context, id string) (*EventRecord, error)

	// MarkProcessed flips the record status to PROCESSED.
	MarkProcessed(ctx context.Context, id string) error

	// ListPending returns up to limit records still in RECEIVED status,
	// oldest first.
	ListPending(ctx context.Context, limit int) ([]*EventRecord, error)

	// PurgeProcessed deletes PROCESSED records older than the cutoff and
	// returns the number of rows removed.
	PurgeProcessed(ctx context.Context, olderThan time.Time) (int64, error)
}

// ═══════════════════════════════════════════════════════════════════════════
// Event bus interfaces
// ═══════════════════════════════════════════════════════════════════════════

// EventHandler is a function that handles an event.
type EventHandler func(ctx context.Context, event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(ctx context.Context, event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
