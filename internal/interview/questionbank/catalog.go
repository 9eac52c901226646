package questionbank

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

//go:embed questions.json
var defaultCatalogJSON []byte

// Question is one entry of the interview question catalog.
type Question struct {
	// University is the institution the question is specific to, or "General"
	// for questions applicable anywhere.
	University string `json:"university"`

	// Program is the program of study the question targets, "All" for any, or
	// a program family like "STEM".
	Program string `json:"program"`

	// Text is the question itself.
	Text string `json:"question_text"`

	// Category classifies the question (personal, motivation, academic,
	// behavioral, situational).
	Category string `json:"category"`

	// Difficulty grades the question from 1 (warm-up) to 5 (hardest).
	Difficulty int `json:"difficulty_level"`

	// Source records where the question came from.
	Source string `json:"source"`
}

// DefaultCatalog returns the embedded question catalog.
func DefaultCatalog() ([]Question, error) {
	return parseCatalog(defaultCatalogJSON)
}

// LoadCatalog reads a question catalog from the JSON file at path. When path
// is empty, the embedded default catalog is returned.
func LoadCatalog(path string) ([]Question, error) {
	if path == "" {
		return DefaultCatalog()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("questionbank: read catalog %q: %w", path, err)
	}
	catalog, err := parseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("questionbank: parse catalog %q: %w", path, err)
	}
	return catalog, nil
}

func parseCatalog(data []byte) ([]Question, error) {
	var catalog []Question
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("questionbank: decode catalog: %w", err)
	}
	if len(catalog) == 0 {
		return nil, errors.New("questionbank: catalog is empty")
	}
	for i, q := range catalog {
		if q.Text == "" {
			return nil, fmt.Errorf("questionbank: catalog entry %d has empty question_text", i)
		}
		if q.Difficulty < 1 || q.Difficulty > 5 {
			return nil, fmt.Errorf("questionbank: catalog entry %d has difficulty_level %d outside [1, 5]", i, q.Difficulty)
		}
	}
	return catalog, nil
}
