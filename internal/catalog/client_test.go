package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mesaflow/orders-service/internal/domain"
)

func TestValidateProducts(t *testing.T) {
	t.Run("posts ids and decodes products", func(t *testing.T) {
		var gotPath string
		var gotBody productsRequest
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
				t.Errorf("decode request: %v", err)
			}
			_ = json.NewEncoder(w).Encode([]domain.Product{
				{ID: 1, Name: "Margherita", Price: 10},
				{ID: 2, Name: "Lemonade", Price: 20},
			})
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client())
		products, err := client.ValidateProducts(context.Background(), []int64{1, 2}, "biz-a")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if gotPath != "/products/validate" {
			t.Errorf("expected path /products/validate, got %s", gotPath)
		}
		if len(gotBody.IDs) != 2 || gotBody.IDs[0] != 1 || gotBody.IDs[1] != 2 {
			t.Errorf("unexpected forwarded ids: %v", gotBody.IDs)
		}
		if gotBody.BusinessID != "biz-a" {
			t.Errorf("expected business id biz-a, got %s", gotBody.BusinessID)
		}
		if len(products) != 2 || products[0].Name != "Margherita" {
			t.Errorf("unexpected products: %+v", products)
		}
	})

	t.Run("maps rejection statuses to 502", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client())
		_, err := client.ValidateProducts(context.Background(), []int64{1}, "biz-a")
		if domain.StatusCode(err) != 502 {
			t.Fatalf("expected status 502, got %d (%v)", domain.StatusCode(err), err)
		}
	})

	t.Run("maps transport errors to 502", func(t *testing.T) {
		client := NewClient("http://localhost:1", http.DefaultClient)
		_, err := client.ValidateProducts(context.Background(), []int64{1}, "biz-a")
		if domain.StatusCode(err) != 502 {
			t.Fatalf("expected status 502, got %d (%v)", domain.StatusCode(err), err)
		}
	})

	t.Run("maps malformed responses to 502", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{not json`))
		}))
		defer server.Close()

		client := NewClient(server.URL, server.Client())
		_, err := client.ValidateProducts(context.Background(), []int64{1}, "biz-a")
		if domain.StatusCode(err) != 502 {
			t.Fatalf("expected status 502, got %d (%v)", domain.StatusCode(err), err)
		}
	})
}

func TestLookupPaths(t *testing.T) {
	var paths []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, server.Client())
	ctx := context.Background()

	if _, err := client.GetProductsByIDs(ctx, []int64{1}, "biz-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := client.GetAvailableProductsByIDs(ctx, []int64{1}, "biz-a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(paths) != 2 || paths[0] != "/products/by-ids" || paths[1] != "/products/available/by-ids" {
		t.Errorf("unexpected request paths: %v", paths)
	}
}
