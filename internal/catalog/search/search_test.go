package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/elastic/go-elasticsearch/v9"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/storefront/internal/catalog/models"
)

type fakeES struct {
	mu       sync.Mutex
	requests []string
	bodies   [][]byte
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.bodies = append(f.bodies, body)
	f.mu.Unlock()

	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.URL.Path == "/products/_search":
		_, _ = w.Write([]byte(`{"hits":{"total":{"value":1},"hits":[{"_source":{"id":"7f1c5c2e-2b7e-4a53-9b57-6d3f7d4c0a11","slug":"blue-mug","title":"Blue mug","price":1500,"active":true}}]}}`))
	case r.Method == http.MethodDelete:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"result":"not_found"}`))
	default:
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}
}

func newIndex(t *testing.T) (*Index, *fakeES) {
	fake := &fakeES{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return &Index{ES: es, Name: "products"}, fake
}

func TestIndex_Search(t *testing.T) {
	idx, fake := newIndex(t)

	total, items, err := idx.Search(context.Background(), "mug", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "blue-mug", items[0].Slug)
	assert.EqualValues(t, 1500, items[0].Price)

	var q map[string]any
	require.NoError(t, json.Unmarshal(fake.bodies[len(fake.bodies)-1], &q))
	assert.EqualValues(t, 10, q["size"])
}

func TestIndex_UpsertAndDelete(t *testing.T) {
	idx, fake := newIndex(t)
	p := models.Product{ID: uuid.New(), Slug: "red-mug", Title: "Red mug", Price: 900, Active: true}

	require.NoError(t, idx.Upsert(context.Background(), p))
	require.NoError(t, idx.Delete(context.Background(), p.ID.String()))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Contains(t, fake.requests, "PUT /products/_doc/"+p.ID.String())
	assert.Contains(t, fake.requests, "DELETE /products/_doc/"+p.ID.String())
}
