package discovery_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/chefstream/harvester/internal/discovery"
	"github.com/chefstream/harvester/internal/fetcher"
	"github.com/chefstream/harvester/internal/logger"
)

// listingServer serves a paginated recipe listing with the given number
// of items per page and total pages.
func listingServer(t *testing.T, perPage, totalPages int) *httptest.Server {
	t.Helper()

	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}

		type item struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			Description string `json:"description"`
		}
		resp := struct {
			Recipes  []item `json:"recipes"`
			NextPage int    `json:"next_page"`
		}{}

		for i := 0; i < perPage; i++ {
			n := (page-1)*perPage + i
			resp.Recipes = append(resp.Recipes, item{
				URL:         fmt.Sprintf("%s/recipes/%d", srv.URL, n),
				Title:       fmt.Sprintf("Recipe %d", n),
				Description: "a description",
			})
		}
		if page < totalPages {
			resp.NextPage = page + 1
		}

		json.NewEncoder(w).Encode(resp)
	}))
	return srv
}

func TestAPIStrategy_SinglePage(t *testing.T) {
	t.Parallel()

	srv := listingServer(t, 3, 1)
	defer srv.Close()

	s := discovery.NewAPIStrategy(fetcher.NewClient(srv.Client()), logger.NewNoOp())
	found, err := s.Discover(context.Background(), discovery.Request{
		RootURL:    srv.URL + "/api/recipes",
		ProviderID: "p1",
		MaxDepth:   1,
		MaxCount:   10,
	})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}

	if len(found) != 3 {
		t.Fatalf("expected 3 candidates, got %d", len(found))
	}
	if found[0].Title != "Recipe 0" {
		t.Fatalf("unexpected title: %q", found[0].Title)
	}
	if found[0].Snippet != "a description" {
		t.Fatalf("expected description carried as snippet, got %q", found[0].Snippet)
	}
}

func TestAPIStrategy_FollowsPagination(t *testing.T) {
	t.Parallel()

	srv := listingServer(t, 2, 3)
	defer srv.Close()

	s := discovery.NewAPIStrategy(fetcher.NewClient(srv.Client()), logger.NewNoOp())
	found, err := s.Discover(context.Background(), discovery.Request{
		RootURL:    srv.URL + "/api/recipes",
		ProviderID: "p1",
		MaxDepth:   3,
		MaxCount:   10,
	})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(found) != 6 {
		t.Fatalf("expected 6 candidates across 3 pages, got %d", len(found))
	}
}

func TestAPIStrategy_MaxDepthBoundsPages(t *testing.T) {
	t.Parallel()

	srv := listingServer(t, 2, 10)
	defer srv.Close()

	s := discovery.NewAPIStrategy(fetcher.NewClient(srv.Client()), logger.NewNoOp())
	found, err := s.Discover(context.Background(), discovery.Request{
		RootURL:    srv.URL + "/api/recipes",
		ProviderID: "p1",
		MaxDepth:   2,
		MaxCount:   100,
	})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(found) != 4 {
		t.Fatalf("expected 2 pages of 2, got %d", len(found))
	}
}

func TestAPIStrategy_MaxCountStopsEarly(t *testing.T) {
	t.Parallel()

	srv := listingServer(t, 5, 2)
	defer srv.Close()

	s := discovery.NewAPIStrategy(fetcher.NewClient(srv.Client()), logger.NewNoOp())
	found, err := s.Discover(context.Background(), discovery.Request{
		RootURL:    srv.URL + "/api/recipes",
		ProviderID: "p1",
		MaxDepth:   5,
		MaxCount:   3,
	})
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(found) != 3 {
		t.Fatalf("expected MaxCount candidates, got %d", len(found))
	}
}

func TestAPIStrategy_ServerErrorIsTransient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := discovery.NewAPIStrategy(fetcher.NewClient(srv.Client()), logger.NewNoOp())
	_, err := s.Discover(context.Background(), discovery.Request{
		RootURL:    srv.URL + "/api/recipes",
		ProviderID: "p1",
		MaxDepth:   1,
		MaxCount:   10,
	})

	var discErr *discovery.Error
	if !errors.As(err, &discErr) {
		t.Fatalf("expected *discovery.Error, got %v", err)
	}
	if !discErr.Transient {
		t.Fatal("5xx listing failures should be transient")
	}
}

func TestAPIStrategy_MalformedListingIsPermanent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("this is not json"))
	}))
	defer srv.Close()

	s := discovery.NewAPIStrategy(fetcher.NewClient(srv.Client()), logger.NewNoOp())
	_, err := s.Discover(context.Background(), discovery.Request{
		RootURL:    srv.URL + "/api/recipes",
		ProviderID: "p1",
		MaxDepth:   1,
		MaxCount:   10,
	})

	var discErr *discovery.Error
	if !errors.As(err, &discErr) {
		t.Fatalf("expected *discovery.Error, got %v", err)
	}
	if discErr.Transient {
		t.Fatal("malformed listings should not be retried")
	}
}
