package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"hourly-quiz-service/internal/domain"
)

func TestDefaultCatalog(t *testing.T) {
	questions := Default()
	if len(questions) != 100 {
		t.Fatalf("expected 100 questions, got %d", len(questions))
	}
	if err := Validate(questions); err != nil {
		t.Fatalf("default catalog invalid: %v", err)
	}
	if questions[0].ID != 1 || questions[99].ID != 100 {
		t.Fatalf("unexpected id range %d..%d", questions[0].ID, questions[99].ID)
	}
}

func TestValidateRejectsBadQuestions(t *testing.T) {
	cases := map[string][]domain.Question{
		"one option":    {{ID: 1, Prompt: "p", Options: []string{"a"}}},
		"out of range":  {{ID: 1, Prompt: "p", Options: []string{"a", "b"}, CorrectOption: 2}},
		"negative":      {{ID: 1, Prompt: "p", Options: []string{"a", "b"}, CorrectOption: -1}},
		"duplicate ids": {{ID: 1, Options: []string{"a", "b"}}, {ID: 1, Options: []string{"a", "b"}}},
	}
	for name, qs := range cases {
		if err := Validate(qs); !errors.Is(err, domain.ErrInvalidQuestion) {
			t.Fatalf("%s: expected ErrInvalidQuestion, got %v", name, err)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	data := []byte(`questions:
  - id: 7
    prompt: "2 + 2?"
    options: ["3", "4", "5"]
    correctOption: 1
  - id: 8
    prompt: "Sky color?"
    options: ["blue", "green"]
    correctOption: 0
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	questions, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(questions) != 2 || questions[0].ID != 7 || questions[0].CorrectOption != 1 {
		t.Fatalf("unexpected questions %+v", questions)
	}
}
