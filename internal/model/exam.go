package model

import (
	"encoding/json"

	"github.com/google/uuid"
)

// QuestionType enumerates the supported question families.
type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "single_choice"
	QuestionMultipleChoice QuestionType = "multiple_choice"
	QuestionFillIn         QuestionType = "fill_in"
	QuestionFreeText       QuestionType = "free_text"
	QuestionCoding         QuestionType = "coding"
)

// IsCoding reports whether the type belongs to the coding family and
// therefore requires a selected language before run/submit.
func (t QuestionType) IsCoding() bool {
	return t == QuestionCoding
}

// IsChoice reports whether the answer is a set of selected options.
func (t QuestionType) IsChoice() bool {
	return t == QuestionSingleChoice || t == QuestionMultipleChoice
}

// ProctoringPolicy is the per-exam integrity configuration.
type ProctoringPolicy struct {
	FullscreenRequired bool `json:"fullscreen_required"`
	TabSwitchLimit     int  `json:"tab_switch_limit"` // 0 = unlimited
	DisableCopyPaste   bool `json:"disable_copy_paste"`
	AutoSubmitOnEnd    bool `json:"auto_submit_on_end"`
}

// ScoringPolicy describes how the authority scores the attempt.
// The controller never computes scores itself; this is display data.
type ScoringPolicy struct {
	TotalPoints  int     `json:"total_points"`
	PassingScore float64 `json:"passing_score"`
}

// Section is an ordered, optionally time-boxed grouping of questions.
type Section struct {
	ID              uuid.UUID `json:"id"`
	Title           string    `json:"title"`
	DurationSeconds *int      `json:"duration_seconds"` // nil = unbounded
	AllowRevisit    bool      `json:"allow_revisit"`
	Order           int       `json:"order"`
}

// QuestionRef places a question inside a section of the exam.
type QuestionRef struct {
	ID               uuid.UUID `json:"id"`
	SectionID        uuid.UUID `json:"section_id"`
	Order            int       `json:"order"`
	TimeLimitSeconds *int      `json:"time_limit_seconds"` // nil = unbounded
	Points           int       `json:"points"`
}

// ExamDefinition is the immutable description of an exam as delivered by
// the authority at session start. Sections and Questions are in definition
// order.
type ExamDefinition struct {
	ID         uuid.UUID        `json:"id"`
	Title      string           `json:"title"`
	Sections   []Section        `json:"sections"`
	Questions  []QuestionRef    `json:"questions"`
	Proctoring ProctoringPolicy `json:"proctoring"`
	Scoring    ScoringPolicy    `json:"scoring"`
}

// SectionByID returns the section with the given ID, or nil.
func (d *ExamDefinition) SectionByID(id uuid.UUID) *Section {
	for i := range d.Sections {
		if d.Sections[i].ID == id {
			return &d.Sections[i]
		}
	}
	return nil
}

// QuestionByID returns the question ref with the given ID, or nil.
func (d *ExamDefinition) QuestionByID(id uuid.UUID) *QuestionRef {
	for i := range d.Questions {
		if d.Questions[i].ID == id {
			return &d.Questions[i]
		}
	}
	return nil
}

// QuestionsInSection returns the question refs of a section in definition order.
func (d *ExamDefinition) QuestionsInSection(sectionID uuid.UUID) []QuestionRef {
	var out []QuestionRef
	for _, q := range d.Questions {
		if q.SectionID == sectionID {
			out = append(out, q)
		}
	}
	return out
}

// QuestionDetail carries the render payload for one question. Description,
// Examples and Options are opaque display data passed through to the UI;
// the controller only interprets Type, AllowedLanguages and StarterCode.
type QuestionDetail struct {
	ID               uuid.UUID         `json:"id"`
	SectionID        uuid.UUID         `json:"section_id"`
	Type             QuestionType      `json:"type"`
	Title            string            `json:"title"`
	Description      json.RawMessage   `json:"description,omitempty"`
	Examples         json.RawMessage   `json:"examples,omitempty"`
	Options          json.RawMessage   `json:"options,omitempty"`
	AllowedLanguages []string          `json:"allowed_languages,omitempty"`
	StarterCode      map[string]string `json:"starter_code,omitempty"`
}

// AllowsLanguage reports whether lang is in the question's allowed set.
func (q *QuestionDetail) AllowsLanguage(lang string) bool {
	for _, l := range q.AllowedLanguages {
		if l == lang {
			return true
		}
	}
	return false
}
