package discovery_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/chefstream/harvester/internal/discovery"
	"github.com/chefstream/harvester/internal/logger"
)

func TestStaticStrategy_CollectsListingLinks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/":
			fmt.Fprint(w, `<html><body>
				<a href="/recipes/1">Pancakes</a>
				<a href="/recipes/2">Soup</a>
				<a href="https://other-host.com/recipes/3">Elsewhere</a>
			</body></html>`)
		default:
			fmt.Fprint(w, `<html><body></body></html>`)
		}
	}))
	defer srv.Close()

	s := discovery.NewStaticStrategy(logger.NewNoOp())
	found, err := s.Discover(context.Background(), discovery.Request{
		RootURL:    srv.URL + "/",
		ProviderID: "p1",
		MaxDepth:   1,
		MaxCount:   10,
	})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if len(found) != 2 {
		t.Fatalf("expected 2 same-host candidates, got %d: %+v", len(found), found)
	}
	for _, d := range found {
		if !strings.HasPrefix(d.URL, "https://") {
			t.Fatalf("candidates should be https, got %s", d.URL)
		}
		if strings.Contains(d.URL, "other-host") {
			t.Fatalf("off-host link leaked through: %s", d.URL)
		}
	}
	if found[0].Title != "Pancakes" {
		t.Fatalf("expected anchor text as title, got %q", found[0].Title)
	}
}

func TestStaticStrategy_MaxCountStops(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var links strings.Builder
		for i := 0; i < 20; i++ {
			fmt.Fprintf(&links, `<a href="/recipes/%d">Recipe %d</a>`, i, i)
		}
		fmt.Fprintf(w, "<html><body>%s</body></html>", links.String())
	}))
	defer srv.Close()

	s := discovery.NewStaticStrategy(logger.NewNoOp())
	found, err := s.Discover(context.Background(), discovery.Request{
		RootURL:    srv.URL + "/",
		ProviderID: "p1",
		MaxDepth:   1,
		MaxCount:   5,
	})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(found) != 5 {
		t.Fatalf("expected MaxCount candidates, got %d", len(found))
	}
}

func TestStaticStrategy_RootFailureIsError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	s := discovery.NewStaticStrategy(logger.NewNoOp())
	_, err := s.Discover(context.Background(), discovery.Request{
		RootURL:    srv.URL + "/",
		ProviderID: "p1",
		MaxDepth:   1,
		MaxCount:   10,
	})

	var discErr *discovery.Error
	if !errors.As(err, &discErr) {
		t.Fatalf("expected *discovery.Error, got %v", err)
	}
	if !discErr.Transient {
		t.Fatal("503 on the root listing should be transient")
	}
}

func TestStaticStrategy_BadRootURL(t *testing.T) {
	t.Parallel()

	s := discovery.NewStaticStrategy(logger.NewNoOp())
	_, err := s.Discover(context.Background(), discovery.Request{
		RootURL:    "not-a-url",
		ProviderID: "p1",
		MaxCount:   10,
	})
	if err == nil {
		t.Fatal("expected error for unparseable root url")
	}
}
