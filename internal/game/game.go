package game

import (
	_ "embed"
	"fmt"
	"slices"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	models "github.com/CodeAndHammer/wordsprint/internal/models"
)

//go:embed puzzles.yaml
var puzzlesYAML []byte

var puzzles = mustLoadPuzzles(puzzlesYAML)

func mustLoadPuzzles(data []byte) map[models.Variant]models.PuzzleConfig {
	cfg, err := LoadPuzzles(data)
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadPuzzles parses per-variant puzzle definitions and checks that every
// target list is duplicate free and matches its target count.
func LoadPuzzles(data []byte) (map[models.Variant]models.PuzzleConfig, error) {
	var raw map[models.Variant]models.PuzzleConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse puzzles: %w", err)
	}
	for _, v := range []models.Variant{models.VariantA, models.VariantB} {
		cfg, ok := raw[v]
		if !ok {
			return nil, fmt.Errorf("puzzle for variant %s missing", v)
		}
		cfg.TargetWords = lo.Map(cfg.TargetWords, func(w string, _ int) string { return NormalizeWord(w) })
		if len(lo.Uniq(cfg.TargetWords)) != len(cfg.TargetWords) {
			return nil, fmt.Errorf("puzzle %s has duplicate target words", v)
		}
		if len(cfg.TargetWords) != cfg.TargetCount {
			return nil, fmt.Errorf("puzzle %s lists %d target words but targetCount is %d", v, len(cfg.TargetWords), cfg.TargetCount)
		}
		raw[v] = cfg
	}
	return raw, nil
}

// ConfigFor returns a copy of the variant's puzzle.
func ConfigFor(v models.Variant) (models.PuzzleConfig, bool) {
	cfg, ok := puzzles[v]
	if !ok {
		return models.PuzzleConfig{}, false
	}
	cfg.Letters = slices.Clone(cfg.Letters)
	cfg.TargetWords = slices.Clone(cfg.TargetWords)
	return cfg, true
}

func Variants() []models.Variant {
	return []models.Variant{models.VariantA, models.VariantB}
}

// NormalizeWord trims and upper-cases input. Casers are stateful, so each call
// gets its own.
func NormalizeWord(input string) string {
	return cases.Upper(language.Und).String(strings.TrimSpace(input))
}

func IsTargetWord(cfg models.PuzzleConfig, word string) bool {
	return slices.Contains(cfg.TargetWords, word)
}
