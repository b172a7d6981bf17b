package domain

import (
	"fmt"
	"strconv"
	"time"
)

// Epoch identifies a fixed time window as the Unix second of its start (UTC).
type Epoch int64

// Start returns the wall-clock start of the window.
func (e Epoch) Start() time.Time {
	return time.Unix(int64(e), 0).UTC()
}

func (e Epoch) String() string {
	return e.Start().Format("2006-01-02T15:04Z")
}

// Question is a multiple-choice catalog entry. It is never mutated after seeding.
type Question struct {
	ID            int64    `json:"id" yaml:"id"`
	Prompt        string   `json:"prompt" yaml:"prompt"`
	Options       []string `json:"options" yaml:"options"`
	CorrectOption int      `json:"correctOption" yaml:"correctOption"`
}

// Public strips the correct answer so the question can be sent to participants.
func (q Question) Public() PublicQuestion {
	options := make([]string, len(q.Options))
	copy(options, q.Options)
	return PublicQuestion{ID: q.ID, Prompt: q.Prompt, Options: options}
}

// Validate checks the catalog invariants for a single question.
func (q Question) Validate() error {
	if len(q.Options) < 2 {
		return fmt.Errorf("%w: question %d has %d options", ErrInvalidQuestion, q.ID, len(q.Options))
	}
	if q.CorrectOption < 0 || q.CorrectOption >= len(q.Options) {
		return fmt.Errorf("%w: question %d correct option %d out of range", ErrInvalidQuestion, q.ID, q.CorrectOption)
	}
	return nil
}

// PublicQuestion is the participant-facing view of a Question.
type PublicQuestion struct {
	ID      int64    `json:"id"`
	Prompt  string   `json:"prompt"`
	Options []string `json:"options"`
}

// ParticipantSession is the durable per-participant record. Stores own its
// persistence; the engines only mutate it inside a store update.
type ParticipantSession struct {
	SessionID           string    `json:"sessionId"`
	DisplayName         string    `json:"displayName,omitempty"`
	AssignedEpoch       Epoch     `json:"assignedEpoch"`
	AssignedQuestionIDs []int64   `json:"assignedQuestionIds"`
	AnsweredQuestionIDs []int64   `json:"answeredQuestionIds"`
	CumulativeScore     int       `json:"cumulativeScore"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// HasAssignment reports whether the session holds a complete assignment for
// epoch. A short or duplicated id list counts as no assignment.
func (s *ParticipantSession) HasAssignment(epoch Epoch, size int) bool {
	if s.AssignedEpoch != epoch || len(s.AssignedQuestionIDs) == 0 {
		return false
	}
	if len(s.AssignedQuestionIDs) < size {
		return false
	}
	seen := make(map[int64]struct{}, len(s.AssignedQuestionIDs))
	for _, id := range s.AssignedQuestionIDs {
		if _, dup := seen[id]; dup {
			return false
		}
		seen[id] = struct{}{}
	}
	return true
}

// Mint replaces the assignment and clears the answered set. Score is untouched.
func (s *ParticipantSession) Mint(epoch Epoch, ids []int64) {
	s.AssignedEpoch = epoch
	s.AssignedQuestionIDs = append([]int64(nil), ids...)
	s.AnsweredQuestionIDs = []int64{}
}

func (s *ParticipantSession) IsAssigned(questionID int64) bool {
	return containsID(s.AssignedQuestionIDs, questionID)
}

func (s *ParticipantSession) IsAnswered(questionID int64) bool {
	return containsID(s.AnsweredQuestionIDs, questionID)
}

// MarkAnswered adds questionID to the answered set. Unassigned or already
// answered ids are ignored so the subset invariant holds.
func (s *ParticipantSession) MarkAnswered(questionID int64) {
	if !s.IsAssigned(questionID) || s.IsAnswered(questionID) {
		return
	}
	s.AnsweredQuestionIDs = append(s.AnsweredQuestionIDs, questionID)
}

// Completed reports whether every assigned question was answered.
func (s *ParticipantSession) Completed() bool {
	return len(s.AssignedQuestionIDs) > 0 && len(s.AnsweredQuestionIDs) >= len(s.AssignedQuestionIDs)
}

// Clone returns a deep copy, so a failed update never leaks into stored state.
func (s *ParticipantSession) Clone() ParticipantSession {
	out := *s
	out.AssignedQuestionIDs = append([]int64(nil), s.AssignedQuestionIDs...)
	out.AnsweredQuestionIDs = append([]int64(nil), s.AnsweredQuestionIDs...)
	return out
}

// Name is what the leaderboard shows for the participant.
func (s *ParticipantSession) Name() string {
	if s.DisplayName != "" {
		return s.DisplayName
	}
	return s.SessionID
}

func containsID(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// Answer is one (question, selected option) pair from a submission.
type Answer struct {
	QuestionID     int64 `json:"questionId"`
	SelectedOption int   `json:"selectedOptionIndex"`
}

// Assignment is the epoch-scoped question set served to a participant.
type Assignment struct {
	SessionID   string           `json:"sessionId"`
	Epoch       Epoch            `json:"epoch"`
	EpochStart  time.Time        `json:"epochStart"`
	NextEpochAt time.Time        `json:"nextEpochAt"`
	Questions   []PublicQuestion `json:"questions"`
	Answered    []int64          `json:"answered"`
	Done        bool             `json:"done"`
	Minted      bool             `json:"-"`
}

// SubmitResult summarizes a scored submission.
type SubmitResult struct {
	Epoch           Epoch   `json:"epoch"`
	ScoreDelta      int     `json:"scoreDelta"`
	CumulativeScore int     `json:"cumulativeScore"`
	Scored          []int64 `json:"scored"`
	Ignored         []int64 `json:"ignored"`
	Done            bool    `json:"done"`
}

// LeaderboardEntry is one ranked participant.
type LeaderboardEntry struct {
	Rank        int    `json:"rank"`
	SessionID   string `json:"sessionId"`
	DisplayName string `json:"name"`
	Score       int    `json:"score"`
}

// Leaderboard captures the ordered top-K scoreboard.
type Leaderboard struct {
	Entries   []LeaderboardEntry `json:"entries"`
	UpdatedAt time.Time          `json:"updatedAt"`
}

// QuestionIDKey renders a question id for use as a hash field or map key.
func QuestionIDKey(id int64) string {
	return strconv.FormatInt(id, 10)
}
