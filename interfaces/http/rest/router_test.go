package rest

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"killrvideo/application/commands/bus"
	mutations "killrvideo/application/commands/handlers"
	"killrvideo/application/fanout"
	"killrvideo/application/queries"
	querybus "killrvideo/application/queries/bus"
	reads "killrvideo/application/queries/handlers"
	domainconfig "killrvideo/domain/config"
	"killrvideo/infrastructure/config"
	"killrvideo/infrastructure/dedup"
	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/memory"
	"killrvideo/infrastructure/persistence/schema"
	"killrvideo/pkg/auth"
	"killrvideo/pkg/observability"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiFixture struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Session
	tokens  *auth.TokenManager
}

func newAPI(t *testing.T, withAuth bool) *apiFixture {
	t.Helper()
	logger := zap.NewNop()
	reg := schema.MustLoad()
	store := memory.NewBootstrappedSession(reg, logger)
	domain := domainconfig.DefaultDomainConfig()
	promReg := prometheus.NewRegistry()
	metrics := observability.NewCollector("killrvideo", promReg)

	coord := fanout.NewCoordinator(reg, store, nil, dedup.NewMemoryLedger(), nil, nil, metrics, fanout.DefaultConfig(), logger)
	commandBus := bus.NewCommandBus()
	require.NoError(t, mutations.NewMutationHandlers(coord, domain, logger).Register(commandBus))

	queryBus := querybus.NewQueryBus()
	router := queries.NewRouter(reg, store, domain, metrics, logger)
	require.NoError(t, reads.NewReadHandlers(router, logger).Register(queryBus))

	var tokens *auth.TokenManager
	if withAuth {
		var err error
		tokens, err = auth.NewTokenManager(auth.JWTConfig{SecretKey: "test-secret", Issuer: "killrvideo"})
		require.NoError(t, err)
	}

	cfg := &config.Config{Environment: "test", WriteTimeout: time.Second}
	api := NewRouter(commandBus, queryBus, cfg, RouterOptions{
		Tokens:   tokens,
		Limiter:  auth.NewSlidingWindowLimiter(1000, time.Minute),
		Metrics:  metrics,
		Gatherer: promReg,
	}, logger)

	return &apiFixture{t: t, handler: api.Setup(), store: store, tokens: tokens}
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Meta    struct {
		Count *int   `json:"count"`
		Next  string `json:"next"`
	} `json:"meta"`
	Type string `json:"type"`
}

func (f *apiFixture) do(method, path string, body interface{}, token string, headers ...string) (int, envelope) {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(f.t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func (f *apiFixture) createUser(email string) string {
	f.t.Helper()
	status, env := f.do(http.MethodPost, "/api/v1/users", map[string]string{
		"firstName": "Ada", "lastName": "Lovelace", "email": email, "password": "engines",
	}, "")
	require.Equal(f.t, http.StatusCreated, status)
	return decode[MutationResponseBody](f.t, env.Data).ID
}

// MutationResponseBody mirrors handlers.MutationResponse for decoding
type MutationResponseBody struct {
	ID       string                         `json:"id"`
	Mutation string                         `json:"mutation"`
	Results  map[string]fanout.TargetResult `json:"results"`
	Failed   []string                       `json:"failed"`
}

func TestVideoLifecycle(t *testing.T) {
	f := newAPI(t, true)
	userID := f.createUser("ada@example.com")

	status, env := f.do(http.MethodPost, "/api/v1/sessions", map[string]string{"email": "ADA@example.com", "password": "engines"}, "")
	require.Equal(t, http.StatusCreated, status)
	token := decode[map[string]string](t, env.Data)["token"]
	require.NotEmpty(t, token)

	status, env = f.do(http.MethodPost, "/api/v1/videos", map[string]interface{}{
		"name":     "Analytical engine",
		"location": "https://www.youtube.com/watch?v=engine",
		"tags":     []string{"Math", "history"},
	}, token)
	require.Equal(t, http.StatusCreated, status)
	added := decode[MutationResponseBody](t, env.Data)
	assert.Equal(t, "AddVideo", added.Mutation)
	assert.Len(t, added.Results, 7)
	videoID := added.ID

	status, env = f.do(http.MethodGet, "/api/v1/videos/"+videoID, nil, "")
	require.Equal(t, http.StatusOK, status)
	video := decode[queries.VideoView](t, env.Data)
	assert.Equal(t, userID, video.UserID.String())
	assert.Equal(t, []string{"history", "math"}, video.Tags)

	status, env = f.do(http.MethodGet, "/api/v1/users/"+userID+"/videos", nil, "")
	require.Equal(t, http.StatusOK, status)
	require.NotNil(t, env.Meta.Count)
	assert.Equal(t, 1, *env.Meta.Count)

	status, env = f.do(http.MethodGet, "/api/v1/tags/math/videos", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]queries.VideoPreview](t, env.Data), 1)

	status, env = f.do(http.MethodGet, "/api/v1/tags?prefix=hi", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{"history"}, decode[[]string](t, env.Data))

	status, env = f.do(http.MethodGet, "/api/v1/videos/latest?days=2", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]queries.VideoPreview](t, env.Data), 1)

	// the counter lands but the per-user row does not; the redelivery
	// completes the row without counting the rating twice
	f.store.SetFault(func(_ abstractions.StatementKind, table string) error {
		if table == schema.TableVideoRatingsByUser {
			return errors.New("write timeout")
		}
		return nil
	})
	status, _ = f.do(http.MethodPut, "/api/v1/videos/"+videoID+"/rating", map[string]int{"rating": 4}, token, "Idempotency-Key", "sub-1")
	assert.Equal(t, http.StatusMultiStatus, status)
	f.store.SetFault(nil)
	status, env = f.do(http.MethodPut, "/api/v1/videos/"+videoID+"/rating", map[string]int{"rating": 4}, token, "Idempotency-Key", "sub-1")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, fanout.StatusSkipped, decode[MutationResponseBody](t, env.Data).Results[schema.TableVideoRating].Status)

	status, env = f.do(http.MethodGet, "/api/v1/videos/"+videoID+"/rating", nil, token)
	require.Equal(t, http.StatusOK, status)
	rating := decode[queries.RatingView](t, env.Data)
	assert.Equal(t, int64(1), rating.Count)
	require.NotNil(t, rating.UserRating)
	assert.Equal(t, 4, *rating.UserRating)

	for _, body := range []string{"first", "second", "third"} {
		status, _ = f.do(http.MethodPost, "/api/v1/videos/"+videoID+"/comments", map[string]string{"comment": body}, token)
		require.Equal(t, http.StatusCreated, status)
	}
	status, env = f.do(http.MethodGet, "/api/v1/videos/"+videoID+"/comments?limit=2", nil, "")
	require.Equal(t, http.StatusOK, status)
	page := decode[[]queries.CommentView](t, env.Data)
	require.Len(t, page, 2)
	assert.Equal(t, "third", page[0].Comment)
	require.NotEmpty(t, env.Meta.Next)

	status, env = f.do(http.MethodGet, "/api/v1/videos/"+videoID+"/comments?limit=2&cursor="+env.Meta.Next, nil, "")
	require.Equal(t, http.StatusOK, status)
	page = decode[[]queries.CommentView](t, env.Data)
	require.Len(t, page, 1)
	assert.Equal(t, "first", page[0].Comment)

	status, env = f.do(http.MethodGet, "/api/v1/users/"+userID+"/comments", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]queries.CommentView](t, env.Data), 3)

	status, _ = f.do(http.MethodPost, "/api/v1/videos/"+videoID+"/playback", map[string]interface{}{"event": "start", "videoOffset": 0}, token)
	require.Equal(t, http.StatusCreated, status)
	status, env = f.do(http.MethodGet, "/api/v1/videos/"+videoID+"/playback", nil, token)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]queries.PlaybackEventView](t, env.Data), 1)
}

func TestAuthentication(t *testing.T) {
	f := newAPI(t, true)
	userID := f.createUser("grace@example.com")
	body := map[string]interface{}{"name": "COBOL", "location": "https://example.com/cobol.mp4", "locationType": 1}

	status, env := f.do(http.MethodPost, "/api/v1/videos", body, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", env.Type)

	status, _ = f.do(http.MethodPost, "/api/v1/videos", body, "not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = f.do(http.MethodPost, "/api/v1/sessions", map[string]string{"email": "grace@example.com", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, status)

	token, _, err := f.tokens.GenerateToken(userID, "grace@example.com")
	require.NoError(t, err)

	body["userId"] = uuid.NewString()
	status, env = f.do(http.MethodPost, "/api/v1/videos", body, token)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Type)

	body["userId"] = userID
	status, _ = f.do(http.MethodPost, "/api/v1/videos", body, token)
	assert.Equal(t, http.StatusCreated, status)
}

func TestSessionsUnavailableWithoutSecret(t *testing.T) {
	f := newAPI(t, false)
	status, _ := f.do(http.MethodPost, "/api/v1/sessions", map[string]string{"email": "a@b.co", "password": "x"}, "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestRequestErrors(t *testing.T) {
	f := newAPI(t, false)
	userID := f.createUser("edgar@example.com")

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
		status int
		typ    string
	}{
		{"invalid email", http.MethodPost, "/api/v1/users", map[string]string{"email": "nope", "password": "secret1"}, http.StatusBadRequest, "VALIDATION"},
		{"unknown field", http.MethodPost, "/api/v1/users", map[string]string{"email": "x@y.co", "password": "secret1", "admin": "true"}, http.StatusBadRequest, "VALIDATION"},
		{"email taken", http.MethodPost, "/api/v1/users", map[string]string{"email": "edgar@example.com", "password": "secret1"}, http.StatusConflict, "CONFLICT"},
		{"bad video id", http.MethodGet, "/api/v1/videos/42", nil, http.StatusBadRequest, "VALIDATION"},
		{"missing video", http.MethodGet, "/api/v1/videos/" + uuid.NewString(), nil, http.StatusNotFound, "NOT_FOUND"},
		{"unknown owner", http.MethodPost, "/api/v1/videos", map[string]interface{}{"userId": uuid.NewString(), "name": "x", "location": "y"}, http.StatusNotFound, "NOT_FOUND"},
		{"rating out of range", http.MethodPut, "/api/v1/videos/" + uuid.NewString() + "/rating", map[string]interface{}{"userId": userID, "rating": 6}, http.StatusBadRequest, "VALIDATION"},
		{"bad limit", http.MethodGet, "/api/v1/users/" + userID + "/videos?limit=-1", nil, http.StatusBadRequest, "VALIDATION"},
		{"bad window", http.MethodGet, "/api/v1/users/" + userID + "/videos?from=2024-02-01T00:00:00Z&to=2024-01-01T00:00:00Z", nil, http.StatusBadRequest, "VALIDATION"},
		{"unknown job", http.MethodGet, "/api/v1/jobs/job-404", nil, http.StatusNotFound, "NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, env := f.do(tt.method, tt.path, tt.body, "")
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.typ, env.Type)
		})
	}
}

func TestPartialFanoutResponses(t *testing.T) {
	f := newAPI(t, false)
	userID := f.createUser("barbara@example.com")
	video := map[string]interface{}{"userId": userID, "name": "CLU", "location": "https://example.com/clu", "tags": []string{"lang"}}

	f.store.SetFault(func(kind abstractions.StatementKind, table string) error {
		if table == schema.TableVideosByTag {
			return errors.New("node down")
		}
		return nil
	})
	status, env := f.do(http.MethodPost, "/api/v1/videos", video, "")
	require.Equal(t, http.StatusMultiStatus, status)
	body := decode[MutationResponseBody](t, env.Data)
	assert.Equal(t, []string{"videos_by_tag:lang"}, body.Failed)
	assert.Equal(t, fanout.StatusApplied, body.Results[schema.TableVideos].Status)

	// resending the same video completes it
	f.store.SetFault(nil)
	video["videoId"] = body.ID
	status, _ = f.do(http.MethodPost, "/api/v1/videos", video, "")
	assert.Equal(t, http.StatusCreated, status)

	f.store.SetFault(func(abstractions.StatementKind, string) error { return errors.New("cluster down") })
	status, env = f.do(http.MethodPost, "/api/v1/videos/"+body.ID+"/comments", map[string]string{"userId": userID, "comment": "hi"}, "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Len(t, decode[MutationResponseBody](t, env.Data).Failed, 2)
}

func TestUploadRoutes(t *testing.T) {
	f := newAPI(t, false)
	userID := f.createUser("alan@example.com")

	status, env := f.do(http.MethodPost, "/api/v1/uploads", map[string]interface{}{"userId": userID, "name": "raw.mov", "jobId": "job-9"}, "")
	require.Equal(t, http.StatusCreated, status)
	videoID := decode[MutationResponseBody](t, env.Data).ID

	for _, tr := range []map[string]string{
		{"newState": "submitted"},
		{"oldState": "submitted", "newState": "processing"},
	} {
		status, _ = f.do(http.MethodPost, "/api/v1/jobs/job-9/transitions", tr, "")
		require.Equal(t, http.StatusCreated, status)
		// transitions are keyed by millisecond
		time.Sleep(2 * time.Millisecond)
	}

	status, env = f.do(http.MethodGet, "/api/v1/jobs/job-9", nil, "")
	require.Equal(t, http.StatusOK, status)
	job := decode[queries.JobStatusView](t, env.Data)
	assert.Equal(t, "processing", job.State)
	assert.Len(t, job.History, 2)

	status, env = f.do(http.MethodGet, "/api/v1/uploads?jobId=job-9", nil, "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, videoID, decode[queries.UploadView](t, env.Data).VideoID.String())

	status, _ = f.do(http.MethodGet, "/api/v1/uploads/"+videoID, nil, "")
	assert.Equal(t, http.StatusOK, status)
}

func TestOperationalEndpoints(t *testing.T) {
	f := newAPI(t, false)

	status, _ := f.do(http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, status)
	status, _ = f.do(http.MethodGet, "/ready", nil, "")
	assert.Equal(t, http.StatusOK, status)

	f.createUser("metrics@example.com")
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	f.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "killrvideo_http_requests_total")
}
