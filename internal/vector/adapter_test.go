package vector_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"

	"lessonforge/internal/vector"
)

// fakeSchemaServer keeps a tiny in-memory schema behind the REST paths the
// client uses.
type fakeSchemaServer struct {
	mu      sync.Mutex
	classes map[string]*models.Class
	calls   []string
}

func (f *fakeSchemaServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if r.URL.Path == "/v1/meta" {
		w.Write([]byte(`{"version": "1.19.0"}`))
		return
	}
	f.calls = append(f.calls, r.Method+" "+r.URL.Path)

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/v1/schema":
		var c models.Class
		json.NewDecoder(r.Body).Decode(&c)
		f.classes[c.Class] = &c
		json.NewEncoder(w).Encode(&c)
	case r.Method == http.MethodPost && r.URL.Path == "/v1/schema/Lesson/properties":
		var p models.Property
		json.NewDecoder(r.Body).Decode(&p)
		f.classes["Lesson"].Properties = append(f.classes["Lesson"].Properties, &p)
		json.NewEncoder(w).Encode(&p)
	case r.Method == http.MethodGet && r.URL.Path == "/v1/schema/Lesson":
		c, ok := f.classes["Lesson"]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(c)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newAdapter(t *testing.T, srv *fakeSchemaServer) *vector.SchemaAdapter {
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	client, err := weaviate.NewClient(weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"})
	require.NoError(t, err)
	return vector.NewSchemaAdapter(client)
}

func TestSchemaAdapter_EnsureSchemaCreatesClass(t *testing.T) {
	srv := &fakeSchemaServer{classes: map[string]*models.Class{}}
	adapter := newAdapter(t, srv)

	require.NoError(t, vector.EnsureSchema(context.Background(), adapter))

	created, ok := srv.classes[vector.LessonClass]
	require.True(t, ok)
	assert.Equal(t, "none", created.Vectorizer)
	assert.Len(t, created.Properties, 7)
}

func TestSchemaAdapter_EnsureSchemaIsIdempotent(t *testing.T) {
	srv := &fakeSchemaServer{classes: map[string]*models.Class{}}
	adapter := newAdapter(t, srv)
	ctx := context.Background()

	require.NoError(t, vector.EnsureSchema(ctx, adapter))
	srv.calls = nil
	require.NoError(t, vector.EnsureSchema(ctx, adapter))

	for _, c := range srv.calls {
		assert.NotEqual(t, "POST /v1/schema", c, "class must not be created twice")
	}
	assert.Len(t, srv.classes[vector.LessonClass].Properties, 7)
}

func TestSchemaAdapter_AddsMissingProperty(t *testing.T) {
	srv := &fakeSchemaServer{classes: map[string]*models.Class{
		"Lesson": {Class: "Lesson", Properties: []*models.Property{{Name: "courseId", DataType: []string{"string"}}}},
	}}
	adapter := newAdapter(t, srv)

	require.NoError(t, vector.EnsureSchema(context.Background(), adapter))
	assert.Len(t, srv.classes["Lesson"].Properties, 7)
	assert.Contains(t, srv.calls, "POST /v1/schema/Lesson/properties")
}

func TestSchemaAdapter_ClassExists(t *testing.T) {
	srv := &fakeSchemaServer{classes: map[string]*models.Class{}}
	adapter := newAdapter(t, srv)

	exists, err := adapter.ClassExists(context.Background(), "Lesson")
	require.NoError(t, err)
	assert.False(t, exists)
}
