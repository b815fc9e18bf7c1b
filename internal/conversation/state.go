// Package conversation implements the per-session slot-filling engine that
// turns chat messages into stored requirements, bugs and queries.
package conversation

import (
	"fmt"
	"time"

	"github.com/ashureev/projecthub/internal/domain"
)

// Kind identifies which record a flow is collecting.
type Kind string

const (
	KindBug         Kind = "create_bug"
	KindRequirement Kind = "create_requirement"
	KindQuery       Kind = "create_query"
)

// Field names one slot of a draft.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldSeverity    Field = "severity"
	FieldSteps       Field = "steps"
	FieldPriority    Field = "priority"
	FieldAssignedTo  Field = "assigned_to"
)

// slot binds a field name to its storage in a draft.
type slot struct {
	field Field
	value **string
}

// BugDraft collects a bug report. Nil fields have not been answered yet.
type BugDraft struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Severity    *string `json:"severity,omitempty"`
	Steps       *string `json:"steps,omitempty"`
}

func (d *BugDraft) slots() []slot {
	return []slot{
		{FieldTitle, &d.Title},
		{FieldDescription, &d.Description},
		{FieldSeverity, &d.Severity},
		{FieldSteps, &d.Steps},
	}
}

// RequirementDraft collects a requirement.
type RequirementDraft struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
}

func (d *RequirementDraft) slots() []slot {
	return []slot{
		{FieldTitle, &d.Title},
		{FieldDescription, &d.Description},
		{FieldPriority, &d.Priority},
	}
}

// QueryDraft collects a query.
type QueryDraft struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	AssignedTo  *string `json:"assigned_to,omitempty"`
}

func (d *QueryDraft) slots() []slot {
	return []slot{
		{FieldTitle, &d.Title},
		{FieldDescription, &d.Description},
		{FieldAssignedTo, &d.AssignedTo},
	}
}

// State is an in-progress flow for one session. Exactly one draft,
// matching Kind, is non-nil.
type State struct {
	Kind        Kind              `json:"kind"`
	Bug         *BugDraft         `json:"bug,omitempty"`
	Requirement *RequirementDraft `json:"requirement,omitempty"`
	Query       *QueryDraft       `json:"query,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// NewState starts an empty draft of the given kind.
func NewState(kind Kind, now time.Time) (*State, error) {
	s := &State{Kind: kind, UpdatedAt: now}
	switch kind {
	case KindBug:
		s.Bug = &BugDraft{}
	case KindRequirement:
		s.Requirement = &RequirementDraft{}
	case KindQuery:
		s.Query = &QueryDraft{}
	default:
		return nil, fmt.Errorf("unknown flow kind %q", kind)
	}
	return s, nil
}

func (s *State) slots() []slot {
	switch s.Kind {
	case KindBug:
		if s.Bug != nil {
			return s.Bug.slots()
		}
	case KindRequirement:
		if s.Requirement != nil {
			return s.Requirement.slots()
		}
	case KindQuery:
		if s.Query != nil {
			return s.Query.slots()
		}
	}
	return nil
}

// Valid reports whether the state carries the draft its Kind names.
func (s *State) Valid() bool {
	return len(s.slots()) > 0
}

// NextField returns the first unanswered field. ok is false once every
// field is filled.
func (s *State) NextField() (Field, bool) {
	for _, sl := range s.slots() {
		if *sl.value == nil {
			return sl.field, true
		}
	}
	return "", false
}

// Fill stores value verbatim in the next unanswered field and returns
// that field. It returns false if the draft is already complete.
func (s *State) Fill(value string) (Field, bool) {
	for _, sl := range s.slots() {
		if *sl.value == nil {
			v := value
			*sl.value = &v
			return sl.field, true
		}
	}
	return "", false
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	if !s.Valid() {
		cp := *s
		return &cp
	}
	c, _ := NewState(s.Kind, s.UpdatedAt)
	src, dst := s.slots(), c.slots()
	for i := range src {
		if i < len(dst) && *src[i].value != nil {
			v := **src[i].value
			*dst[i].value = &v
		}
	}
	return c
}

// FieldOrder returns the fixed question order for kind.
func FieldOrder(kind Kind) []Field {
	s, err := NewState(kind, time.Time{})
	if err != nil {
		return nil
	}
	slots := s.slots()
	out := make([]Field, len(slots))
	for i, sl := range slots {
		out[i] = sl.field
	}
	return out
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// BugRecord converts a complete bug draft into a record ready to insert.
func (d *BugDraft) BugRecord() *domain.Bug {
	return &domain.Bug{
		Title:       deref(d.Title),
		Description: deref(d.Description),
		Severity:    deref(d.Severity),
		Steps:       deref(d.Steps),
	}
}

// RequirementRecord converts a complete requirement draft into a record.
func (d *RequirementDraft) RequirementRecord() *domain.Requirement {
	return &domain.Requirement{
		Title:       deref(d.Title),
		Description: deref(d.Description),
		Priority:    deref(d.Priority),
	}
}

// QueryRecord converts a complete query draft into a record.
func (d *QueryDraft) QueryRecord() *domain.Query {
	return &domain.Query{
		Title:       deref(d.Title),
		Description: deref(d.Description),
		AssignedTo:  deref(d.AssignedTo),
	}
}
