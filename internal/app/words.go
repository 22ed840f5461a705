package app

import (
	"fmt"
	"math/rand/v2"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"roulette/internal/domain"
)

// WordsPerCategory is the fixed size of each reel's word list
const WordsPerCategory = 10

// WordBank maps each category to its reel words
type WordBank map[domain.Category][]string

// DefaultWordBank is the built-in word list
var DefaultWordBank = WordBank{
	domain.CategoryA: {
		"흔들리다", "곤충", "미끌미끌", "파닥파닥", "돌",
		"괴물", "책", "나무", "잠자다", "춤추다",
	},
	domain.CategoryB: {
		"부서지다", "쿵", "사람", "느릿느릿", "뒤집히다",
		"늦다", "과일", "자르다", "꿈", "잇다",
	},
	domain.CategoryC: {
		"모이다", "대화하다", "벽", "소리", "와글와글",
		"태양", "물", "집", "덩어리", "매듭",
	},
}

// Words returns the list for a category
func (b WordBank) Words(c domain.Category) []string {
	return b[c]
}

// Contains reports whether word belongs to category c
func (b WordBank) Contains(c domain.Category, word string) bool {
	for _, w := range b[c] {
		if w == word {
			return true
		}
	}
	return false
}

// Pick returns a uniformly random word of category c
func (b WordBank) Pick(c domain.Category, rng *rand.Rand) string {
	words := b[c]
	if len(words) == 0 {
		return c.Placeholder()
	}
	return words[rng.IntN(len(words))]
}

// Validate checks that every category has exactly WordsPerCategory distinct, non-empty words
func (b WordBank) Validate() error {
	for _, c := range domain.Categories {
		words, ok := b[c]
		if !ok {
			return fmt.Errorf("%w: category %s missing", domain.ErrInvalidWordBank, c)
		}
		if len(words) != WordsPerCategory {
			return fmt.Errorf("%w: category %s has %d words, want %d", domain.ErrInvalidWordBank, c, len(words), WordsPerCategory)
		}
		seen := make(map[string]bool, len(words))
		for _, w := range words {
			if strings.TrimSpace(w) == "" {
				return fmt.Errorf("%w: category %s has an empty word", domain.ErrInvalidWordBank, c)
			}
			if seen[w] {
				return fmt.Errorf("%w: category %s repeats %q", domain.ErrInvalidWordBank, c, w)
			}
			seen[w] = true
		}
	}
	if len(b) != len(domain.Categories) {
		return fmt.Errorf("%w: unexpected categories", domain.ErrInvalidWordBank)
	}
	return nil
}

// ParseWordBank decodes a YAML document of the form `A: [...]`, `B: [...]`, `C: [...]`
func ParseWordBank(data []byte) (WordBank, error) {
	var raw map[string][]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse word bank: %w", err)
	}

	bank := make(WordBank, len(raw))
	for key, words := range raw {
		c, err := domain.ParseCategory(key)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a category", domain.ErrInvalidWordBank, key)
		}
		bank[c] = words
	}

	if err := bank.Validate(); err != nil {
		return nil, err
	}
	return bank, nil
}

// LoadWordBank reads the word bank from path, or returns DefaultWordBank when path is empty
func LoadWordBank(path string) (WordBank, error) {
	if path == "" {
		return DefaultWordBank, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read word bank: %w", err)
	}
	return ParseWordBank(data)
}
