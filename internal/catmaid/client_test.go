package catmaid

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/catmaid-go/internal/fetch"
	"github.com/ajitpratap0/catmaid-go/internal/models"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeServer mimics the handful of CATMAID endpoints the client uses for
// project 1 with a single skeleton 16 named "PN left".
func fakeServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET /1/16/1/1/compact-skeleton", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			[[1, null, 4, 0.0, 0.0, 0.0, 150.0, 5],
			 [2, 1, 4, 10.0, 0.0, 0.0, -1.0, 5],
			 [3, 2, 4, 20.0, 5.0, 0.0, -1.0, 5]],
			[[3, 900, 0, 21.0, 5.0, 0.0]],
			{"soma": [1]}
		]`)
	})
	mux.HandleFunc("POST /1/skeleton/neuronnames", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "16", r.PostForm.Get("skids[0]"))
		fmt.Fprint(w, `{"16": "PN left"}`)
	})
	mux.HandleFunc("POST /1/skeletons/review-status", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"16": [10, 4]}`)
	})
	mux.HandleFunc("POST /1/annotations/forskeletons", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"annotations": {"11": "glomerulus DA1", "12": "uPN"},
			"skeletons": {"16": [{"id": 12, "uid": 4}, {"id": 11, "uid": 4}]}
		}`)
	})
	mux.HandleFunc("GET /1/annotations/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"annotations": [{"id": 11, "name": "glomerulus DA1"}, {"id": 12, "name": "uPN"}]}`)
	})
	mux.HandleFunc("POST /1/annotations/query-targets", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("annotated_with") == "11" || r.PostForm.Get("name") == "PN left" {
			fmt.Fprint(w, `{"entities": [{"id": 5, "name": "PN left", "skeleton_ids": [16]}]}`)
			return
		}
		fmt.Fprint(w, `{"entities": []}`)
	})
	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Token secret", r.Header.Get("X-Authorization"))
		fmt.Fprint(w, `{"SERVER_VERSION": "2023.01.01"}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	client := NewClient(Config{
		BaseURL:   srv.URL,
		APIToken:  "secret",
		ProjectID: 1,
	}, discardLogger())
	return srv, client
}

func TestClient_FetchSkeletonGroup(t *testing.T) {
	_, client := fakeServer(t)

	recs, err := client.FetchFields(context.Background(), []int64{16}, fetch.GroupSkeleton)
	require.NoError(t, err)
	rec := recs[16]
	require.NotNil(t, rec)

	require.Len(t, rec.Nodes, 3)
	assert.Equal(t, models.Treenode{
		ID: 1, ParentID: models.RootParent, CreatorID: 4,
		X: 0, Y: 0, Z: 0, Radius: 150, Confidence: 5,
	}, rec.Nodes[0])
	assert.Equal(t, int64(1), rec.Nodes[1].ParentID)

	require.Len(t, rec.Connectors, 1)
	assert.Equal(t, models.Presynaptic, rec.Connectors[0].Relation)
	assert.Equal(t, []int64{1}, rec.Tags["soma"])
}

func TestClient_FetchNames(t *testing.T) {
	_, client := fakeServer(t)

	recs, err := client.FetchFields(context.Background(), []int64{16}, fetch.GroupName)
	require.NoError(t, err)
	require.NotNil(t, recs[16].Name)
	assert.Equal(t, "PN left", *recs[16].Name)
}

func TestClient_FetchReview(t *testing.T) {
	_, client := fakeServer(t)

	recs, err := client.FetchFields(context.Background(), []int64{16}, fetch.GroupReview)
	require.NoError(t, err)
	require.NotNil(t, recs[16].Review)
	assert.Equal(t, models.ReviewStatus{Total: 10, Reviewed: 4}, *recs[16].Review)
}

func TestClient_FetchAnnotations(t *testing.T) {
	_, client := fakeServer(t)

	recs, err := client.FetchFields(context.Background(), []int64{16}, fetch.GroupAnnotations)
	require.NoError(t, err)
	annotations := recs[16].Annotations
	require.Len(t, annotations, 2)
	// Sorted by name for a stable order.
	assert.Equal(t, "glomerulus DA1", annotations[0].Name)
	assert.Equal(t, int64(11), annotations[0].ID)
	assert.Equal(t, "uPN", annotations[1].Name)
}

func TestClient_UnknownSkeletonIs404(t *testing.T) {
	_, client := fakeServer(t)

	_, err := client.FetchFields(context.Background(), []int64{404}, fetch.GroupSkeleton)
	var unknown *fetch.UnknownSkeletonError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, int64(404), unknown.ID)
}

func TestClient_ServerErrorIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "database on fire", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{BaseURL: srv.URL, ProjectID: 1}, discardLogger())
	_, err := client.FetchFields(context.Background(), []int64{16}, fetch.GroupName)

	var remote *fetch.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusInternalServerError, remote.Status)
	assert.ErrorContains(t, err, "database on fire")
}

func TestClient_MalformedBodyIsRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	t.Cleanup(srv.Close)

	client := NewClient(Config{BaseURL: srv.URL, ProjectID: 1}, discardLogger())
	_, err := client.Version(context.Background())

	var remote *fetch.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.ErrorContains(t, err, "decoding response")
}

func TestClient_Version(t *testing.T) {
	_, client := fakeServer(t)

	version, err := client.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2023.01.01", version)
}

func TestResolveSkeletonIDs(t *testing.T) {
	_, client := fakeServer(t)
	ctx := context.Background()

	// Numeric strings pass through untouched, duplicates collapse, order
	// is first-seen.
	ids, err := client.ResolveSkeletonIDs(ctx, "27295", "16", "27295")
	require.NoError(t, err)
	assert.Equal(t, []int64{27295, 16}, ids)

	ids, err = client.ResolveSkeletonIDs(ctx, "annotation:glomerulus DA1")
	require.NoError(t, err)
	assert.Equal(t, []int64{16}, ids)

	ids, err = client.ResolveSkeletonIDs(ctx, "name:PN left")
	require.NoError(t, err)
	assert.Equal(t, []int64{16}, ids)

	// A bare non-numeric specifier is treated as a name.
	ids, err = client.ResolveSkeletonIDs(ctx, "PN left")
	require.NoError(t, err)
	assert.Equal(t, []int64{16}, ids)
}

func TestResolveSkeletonIDs_UnknownAnnotation(t *testing.T) {
	_, client := fakeServer(t)

	_, err := client.ResolveSkeletonIDs(context.Background(), "annotation:missing")
	require.Error(t, err)
	assert.ErrorContains(t, err, `annotation "missing" not found`)
}
