package domain

import (
	"fmt"
	"strings"
	"time"
)

// CategoryCount is fixed: diagnostics enumerate every subset of categories.
const CategoryCount = 7

type Category struct {
	Label     string `json:"label" yaml:"label"`
	Prototype string `json:"prototype" yaml:"prototype"`
}

// CategorySet is the ordered list of categories; position i is category index i+1.
type CategorySet [CategoryCount]Category

// CategoryConfig is the configuration request shape.
type CategoryConfig struct {
	Labels                []string `json:"labels"`
	PrototypeDescriptions []string `json:"prototypeDescriptions"`
}

// ActiveCategories is a category set together with its configuration version.
type ActiveCategories struct {
	Version    int         `json:"version"`
	Categories CategorySet `json:"categories"`
	UpdatedAt  time.Time   `json:"updatedAt"`
}

// NewCategorySet validates labels and prototypes and builds a set.
// Nothing is applied unless every check passes.
func NewCategorySet(labels, prototypes []string) (CategorySet, error) {
	var set CategorySet
	if len(labels) != CategoryCount {
		return set, WrapError(ErrConfiguration, "category set", fmt.Errorf("expected %d labels, got %d", CategoryCount, len(labels)))
	}
	if len(prototypes) != CategoryCount {
		return set, WrapError(ErrConfiguration, "category set", fmt.Errorf("expected %d prototype descriptions, got %d", CategoryCount, len(prototypes)))
	}

	seen := make(map[string]int, CategoryCount)
	for i := range CategoryCount {
		label := strings.TrimSpace(labels[i])
		if label == "" {
			return set, WrapError(ErrConfiguration, "category set", fmt.Errorf("label %d is empty", i+1))
		}
		if prev, ok := seen[label]; ok {
			return set, WrapError(ErrConfiguration, "category set", fmt.Errorf("label %q repeats at %d and %d", label, prev, i+1))
		}
		seen[label] = i + 1

		prototype := strings.TrimSpace(prototypes[i])
		if prototype == "" {
			return set, WrapError(ErrConfiguration, "category set", fmt.Errorf("prototype description %d is empty", i+1))
		}
		set[i] = Category{Label: label, Prototype: prototype}
	}
	return set, nil
}

func (s CategorySet) Validate() error {
	_, err := NewCategorySet(s.Labels(), s.Prototypes())
	return err
}

func (s CategorySet) Labels() []string {
	out := make([]string, CategoryCount)
	for i, c := range s {
		out[i] = c.Label
	}
	return out
}

func (s CategorySet) Prototypes() []string {
	out := make([]string, CategoryCount)
	for i, c := range s {
		out[i] = c.Prototype
	}
	return out
}

// Label returns the label for a one-based category index.
func (s CategorySet) Label(index int) string {
	if index < 1 || index > CategoryCount {
		return ""
	}
	return s[index-1].Label
}

// DefaultCategorySet is used when neither storage nor a catalog file supplies one.
func DefaultCategorySet() CategorySet {
	return CategorySet{
		{Label: "Technical", Prototype: "Source code, software architecture, APIs, debugging and engineering implementation details."},
		{Label: "Emotional", Prototype: "Personal feelings, moods, relationships, grief, joy, fear and emotional reflection."},
		{Label: "Philosophical", Prototype: "Questions of meaning, consciousness, ethics, existence and the nature of knowledge."},
		{Label: "Narrative", Prototype: "A story with characters, events unfolding over time, plot, scenes and dialogue."},
		{Label: "Analytical", Prototype: "Data analysis, statistics, measurements, comparisons, evidence and logical argument."},
		{Label: "Creative", Prototype: "Poetry, art, music, imaginative invention, design ideas and playful experimentation."},
		{Label: "Practical", Prototype: "Step by step instructions, checklists, schedules, errands and everyday how-to advice."},
	}
}
