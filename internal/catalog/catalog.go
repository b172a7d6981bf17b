package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"hourly-quiz-service/internal/domain"
)

type file struct {
	Questions []domain.Question `yaml:"questions"`
}

// LoadFile reads a YAML catalog of the form `questions: [{id, prompt, options, correctOption}]`.
func LoadFile(path string) ([]domain.Question, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	if err := Validate(f.Questions); err != nil {
		return nil, err
	}
	return f.Questions, nil
}

// Validate checks every question and rejects duplicate ids.
func Validate(questions []domain.Question) error {
	seen := make(map[int64]struct{}, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return err
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("%w: duplicate id %d", domain.ErrInvalidQuestion, q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

var base = []domain.Question{
	{Prompt: "What is the capital of Hungary?", Options: []string{"Budapest", "Debrecen", "Szeged", "Pécs"}, CorrectOption: 0},
	{Prompt: "In which year did the Hungarian Revolution against Habsburg rule begin?", Options: []string{"1914", "1848", "1956", "1945"}, CorrectOption: 1},
	{Prompt: "Which fruit brandy is considered Hungary's national spirit?", Options: []string{"Grappa", "Rakija", "Pálinka", "Slivovitz"}, CorrectOption: 2},
	{Prompt: "Who was the first king of Hungary?", Options: []string{"Matthias Corvinus", "Béla IV", "Louis the Great", "Saint Stephen"}, CorrectOption: 3},
	{Prompt: "What is the Hortobágy?", Options: []string{"A national park", "A city", "A lake", "A river"}, CorrectOption: 0},
	{Prompt: "Which river flows through Budapest?", Options: []string{"Tisza", "Danube", "Rába", "Dráva"}, CorrectOption: 1},
	{Prompt: "What is the largest lake in Central Europe?", Options: []string{"Lake Velence", "Lake Tisza", "Lake Balaton", "Lake Fertő"}, CorrectOption: 2},
	{Prompt: "Which spice is central to Hungarian goulash?", Options: []string{"Cumin", "Saffron", "Turmeric", "Paprika"}, CorrectOption: 3},
	{Prompt: "Who invented the Rubik's Cube?", Options: []string{"Ernő Rubik", "John von Neumann", "Albert Szent-Györgyi", "Ferenc Puskás"}, CorrectOption: 0},
	{Prompt: "What is the currency of Hungary?", Options: []string{"Euro", "Forint", "Koruna", "Złoty"}, CorrectOption: 1},
}

// Rounds is how many numbered variants of each base question Default produces.
const Rounds = 10

// Default returns the built-in catalog of 100 questions with ids 1..100.
func Default() []domain.Question {
	out := make([]domain.Question, 0, len(base)*Rounds)
	var id int64
	for round := 1; round <= Rounds; round++ {
		for _, q := range base {
			id++
			options := make([]string, len(q.Options))
			copy(options, q.Options)
			out = append(out, domain.Question{
				ID:            id,
				Prompt:        fmt.Sprintf("%s (%d)", q.Prompt, round),
				Options:       options,
				CorrectOption: q.CorrectOption,
			})
		}
	}
	return out
}
