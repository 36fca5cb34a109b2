package extract_test

import (
	"context"
	"errors"
	"testing"

	"github.com/chefstream/harvester/internal/extract"
	"github.com/chefstream/harvester/internal/fetcher"
	"github.com/chefstream/harvester/internal/logger"
)

const recipePage = `<!doctype html>
<html><head>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@type": "Recipe",
  "name": "Blueberry Pancakes",
  "description": "Fluffy pancakes with fresh blueberries.",
  "recipeIngredient": ["2 cups flour", "1 cup blueberries", "2 eggs"],
  "recipeInstructions": [
    {"@type": "HowToStep", "text": "Mix the dry ingredients."},
    {"@type": "HowToStep", "text": "Fold in the blueberries."},
    {"@type": "HowToStep", "text": "Cook on a hot griddle."}
  ]
}
</script>
</head><body>content</body></html>`

const graphPage = `<html><head>
<script type="application/ld+json">
{
  "@context": "https://schema.org",
  "@graph": [
    {"@type": "WebPage", "name": "A page"},
    {
      "@type": ["Recipe", "NewsArticle"],
      "name": "Tomato Soup",
      "recipeIngredient": ["4 tomatoes"],
      "recipeInstructions": "Simmer everything."
    }
  ]
}
</script>
</head><body></body></html>`

func TestExtract_RecipeNode(t *testing.T) {
	t.Parallel()

	e := extract.NewJSONLD(logger.NewNoOp())
	draft, err := e.Extract(context.Background(), []byte(recipePage), fetcher.ExtractContext{
		ProviderID: "p1",
		URL:        "https://example.com/r/pancakes",
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if draft.Title != "Blueberry Pancakes" {
		t.Fatalf("unexpected title: %q", draft.Title)
	}
	if draft.URL != "https://example.com/r/pancakes" {
		t.Fatalf("unexpected url: %q", draft.URL)
	}
	if len(draft.Ingredients) != 3 {
		t.Fatalf("expected 3 ingredients, got %d", len(draft.Ingredients))
	}
	if draft.Ingredients[0].Code != "2 cups flour" {
		t.Fatalf("unexpected first ingredient: %q", draft.Ingredients[0].Code)
	}
	if len(draft.Steps) != 3 {
		t.Fatalf("expected 3 steps, got %d", len(draft.Steps))
	}
	if draft.Steps[0] != "Mix the dry ingredients." {
		t.Fatalf("unexpected first step: %q", draft.Steps[0])
	}
}

func TestExtract_GraphAndTypeList(t *testing.T) {
	t.Parallel()

	e := extract.NewJSONLD(logger.NewNoOp())
	draft, err := e.Extract(context.Background(), []byte(graphPage), fetcher.ExtractContext{
		ProviderID: "p1",
		URL:        "https://example.com/r/soup",
	})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	if draft.Title != "Tomato Soup" {
		t.Fatalf("unexpected title: %q", draft.Title)
	}
	if len(draft.Steps) != 1 || draft.Steps[0] != "Simmer everything." {
		t.Fatalf("unexpected steps: %v", draft.Steps)
	}
}

func TestExtract_NoRecipeData(t *testing.T) {
	t.Parallel()

	e := extract.NewJSONLD(logger.NewNoOp())
	_, err := e.Extract(context.Background(), []byte("<html><body>no structured data</body></html>"), fetcher.ExtractContext{
		ProviderID: "p1",
		URL:        "https://example.com/about",
	})
	if !errors.Is(err, extract.ErrNoRecipe) {
		t.Fatalf("expected ErrNoRecipe, got %v", err)
	}
}

func TestExtract_BrokenBlockIsSkipped(t *testing.T) {
	t.Parallel()

	page := `<html><head>
<script type="application/ld+json">{not valid json</script>
<script type="application/ld+json">{"@type": "Recipe", "name": "Toast", "recipeIngredient": ["bread"]}</script>
</head></html>`

	e := extract.NewJSONLD(logger.NewNoOp())
	draft, err := e.Extract(context.Background(), []byte(page), fetcher.ExtractContext{URL: "https://example.com/r/toast"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if draft.Title != "Toast" {
		t.Fatalf("unexpected title: %q", draft.Title)
	}
}

func TestExtract_HowToSections(t *testing.T) {
	t.Parallel()

	page := `<html><head><script type="application/ld+json">
{
  "@type": "Recipe",
  "name": "Layer Cake",
  "recipeIngredient": ["cake"],
  "recipeInstructions": [
    {
      "@type": "HowToSection",
      "name": "Base",
      "itemListElement": [
        {"@type": "HowToStep", "text": "Bake the base."},
        {"@type": "HowToStep", "text": "Let it cool."}
      ]
    }
  ]
}
</script></head></html>`

	e := extract.NewJSONLD(logger.NewNoOp())
	draft, err := e.Extract(context.Background(), []byte(page), fetcher.ExtractContext{URL: "https://example.com/r/cake"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(draft.Steps) != 2 {
		t.Fatalf("expected section steps to be flattened, got %v", draft.Steps)
	}
}
