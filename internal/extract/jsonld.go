// Package extract parses fetched recipe pages into drafts. The default
// extractor reads schema.org Recipe structured data from ld+json blocks,
// which nearly every recipe publisher embeds for search engines.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	"github.com/chefstream/harvester/internal/domain"
	"github.com/chefstream/harvester/internal/fetcher"
	"github.com/chefstream/harvester/internal/logger"
)

// ErrNoRecipe is returned when a page carries no Recipe structured data.
// The failure is permanent: refetching the same page will not help.
var ErrNoRecipe = errors.New("no recipe structured data found")

// JSONLD extracts recipe drafts from schema.org ld+json blocks.
type JSONLD struct {
	log logger.Interface
}

// NewJSONLD creates a JSON-LD extractor.
func NewJSONLD(log logger.Interface) *JSONLD {
	return &JSONLD{log: log.WithComponent("extractor")}
}

// Extract implements fetcher.Extractor.
func (e *JSONLD) Extract(_ context.Context, raw []byte, ectx fetcher.ExtractContext) (*domain.RecipeDraft, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("failed to parse document: %w", err)
	}

	var draft *domain.RecipeDraft
	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if d := parseBlock(s.Text()); d != nil {
			draft = d
			return false
		}
		return true
	})
	if draft == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRecipe, ectx.URL)
	}
	if draft.Title == "" {
		return nil, fmt.Errorf("%w: recipe node has no name at %s", ErrNoRecipe, ectx.URL)
	}

	draft.URL = ectx.URL
	e.log.WithURL(ectx.URL).Debug("recipe extracted",
		"title", draft.Title,
		"ingredients", len(draft.Ingredients),
		"steps", len(draft.Steps),
	)
	return draft, nil
}

func parseBlock(raw string) *domain.RecipeDraft {
	var node any
	// Publishers routinely ship broken ld+json; a block that does not
	// parse is skipped, not fatal.
	if err := json.Unmarshal([]byte(raw), &node); err != nil {
		return nil
	}
	return findRecipe(node)
}

// findRecipe walks a parsed ld+json value looking for the first node
// typed as a schema.org Recipe. Nodes may nest via arrays or @graph.
func findRecipe(node any) *domain.RecipeDraft {
	switch v := node.(type) {
	case []any:
		for _, item := range v {
			if d := findRecipe(item); d != nil {
				return d
			}
		}
	case map[string]any:
		if hasType(v, "Recipe") {
			return draftFromNode(v)
		}
		if graph, ok := v["@graph"]; ok {
			return findRecipe(graph)
		}
	}
	return nil
}

func hasType(node map[string]any, want string) bool {
	switch t := node["@type"].(type) {
	case string:
		return t == want
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok && s == want {
				return true
			}
		}
	}
	return false
}

func draftFromNode(node map[string]any) *domain.RecipeDraft {
	draft := &domain.RecipeDraft{
		Title:       stringField(node, "name"),
		Description: stringField(node, "description"),
		Steps:       stepsFrom(node["recipeInstructions"]),
	}
	for _, item := range listField(node, "recipeIngredient") {
		if s, ok := item.(string); ok && s != "" {
			draft.Ingredients = append(draft.Ingredients, domain.DraftIngredient{Code: s})
		}
	}
	return draft
}

// stepsFrom flattens recipeInstructions, which publishers encode as a
// plain string, a list of strings, a list of HowToStep nodes, or
// HowToSection groups of steps.
func stepsFrom(v any) []string {
	switch steps := v.(type) {
	case string:
		if steps == "" {
			return nil
		}
		return []string{steps}
	case []any:
		out := make([]string, 0, len(steps))
		for _, item := range steps {
			switch step := item.(type) {
			case string:
				if step != "" {
					out = append(out, step)
				}
			case map[string]any:
				if text := stringField(step, "text"); text != "" {
					out = append(out, text)
					continue
				}
				out = append(out, stepsFrom(step["itemListElement"])...)
			}
		}
		return out
	}
	return nil
}

func stringField(node map[string]any, key string) string {
	s, _ := node[key].(string)
	return s
}

func listField(node map[string]any, key string) []any {
	l, _ := node[key].([]any)
	return l
}
