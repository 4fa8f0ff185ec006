package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rpattn/travelcms/internal/domain"
	"github.com/rpattn/travelcms/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/postgrest-go"
)

type recordedRequest struct {
	method string
	path   string
	query  string
	body   string
}

// fakeREST answers PostgREST calls from canned bodies keyed by method and
// table, and records what it received.
type fakeREST struct {
	mu        sync.Mutex
	responses map[string]string
	requests  []recordedRequest
}

func (f *fakeREST) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	f.mu.Lock()
	f.requests = append(f.requests, recordedRequest{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, body: string(body)})
	response, ok := f.responses[r.Method+" "+r.URL.Path]
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !ok {
		response = "[]"
	}
	if response == "echo" {
		trimmed := strings.TrimSpace(string(body))
		if !strings.HasPrefix(trimmed, "[") {
			trimmed = "[" + trimmed + "]"
		}
		response = trimmed
	}
	_, _ = w.Write([]byte(response))
}

func newFakeStore(t *testing.T, responses map[string]string) (repository.Store, *fakeREST) {
	t.Helper()
	fake := &fakeREST{responses: responses}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	return NewStore(postgrest.NewClient(server.URL, "", nil)), fake
}

func TestUploadJobCreateAndLookup(t *testing.T) {
	store, fake := newFakeStore(t, map[string]string{"POST /upload_jobs": "echo"})
	ctx := context.Background()

	job := domain.NewUploadJob("travel-guide", "spring", "spring.csv", 10, 1)
	created, err := store.Jobs.Create(ctx, job)
	require.NoError(t, err)
	require.Equal(t, job.ID, created.ID)
	require.Equal(t, "spring", created.JobName)

	_, err = store.Jobs.GetByID(ctx, job.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	last := fake.requests[len(fake.requests)-1]
	require.Equal(t, http.MethodGet, last.method)
	require.Contains(t, last.query, "id=eq."+job.ID.String())
}

func TestUpdateMissingRowIsNotFound(t *testing.T) {
	store, _ := newFakeStore(t, nil)
	row := domain.NewCSVRow(uuid.New(), 1, map[string]any{"title": "x"})
	err := store.Rows.Update(context.Background(), row)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestSlugExistsAndPostsLookup(t *testing.T) {
	postID := uuid.New()
	post, err := json.Marshal([]domain.BlogPost{{ID: postID, Title: "Lisbon", Slug: "lisbon"}})
	require.NoError(t, err)

	store, fake := newFakeStore(t, map[string]string{"GET /blog_posts": string(post)})
	ctx := context.Background()

	exists, err := store.Posts.SlugExists(ctx, "lisbon")
	require.NoError(t, err)
	require.True(t, exists)

	loaded, err := store.Posts.GetByID(ctx, postID)
	require.NoError(t, err)
	require.Equal(t, "Lisbon", loaded.Title)
	require.Contains(t, fake.requests[1].query, "id=in.")
}

func TestTranslationUpsertKeepsExistingID(t *testing.T) {
	existingID := uuid.New()
	created := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	existing, err := json.Marshal([]map[string]any{{"id": existingID, "created_at": created}})
	require.NoError(t, err)

	store, fake := newFakeStore(t, map[string]string{
		"GET /post_translations":  string(existing),
		"POST /post_translations": "echo",
	})

	translation := domain.NewPostTranslation(uuid.New(), "fr", "en")
	stored, err := store.Translations.Upsert(context.Background(), translation)
	require.NoError(t, err)
	require.Equal(t, existingID, stored.ID)
	require.True(t, created.Equal(stored.CreatedAt))

	upsert := fake.requests[len(fake.requests)-1]
	require.Equal(t, http.MethodPost, upsert.method)
	require.Contains(t, upsert.query, "on_conflict=")
}
