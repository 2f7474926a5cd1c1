package api

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"talentflow/internal/auth"
	"talentflow/internal/errcode"
	"talentflow/internal/events"
	"talentflow/internal/fault"
	"talentflow/internal/store"
)

func createCandidate(t *testing.T, ts testServer, name, email string) candidateDTO {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/v1/candidates", map[string]any{"name": name, "email": email, "jobId": 1}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[candidateDTO](t, w)
}

func TestMoveStageReturnsTimelineEntry(t *testing.T) {
	ts := newTestServer(t, newTestStore(t), nil)
	cand := createCandidate(t, ts, "Alice", "alice@example.com")

	w := ts.do(t, http.MethodPatch, "/v1/candidates/1", map[string]string{"stage": "tech"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	moved := decode[stageChangeDTO](t, w)
	assert.Equal(t, cand.ID, moved.ID)
	assert.Equal(t, "tech", moved.Stage)
	assert.Equal(t, "stage_change", moved.TimelineEntry.Type)
	assert.Contains(t, ts.publisher.types(), events.CandidateStageChanged)

	w = ts.do(t, http.MethodGet, "/v1/candidates/1/timeline", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	timeline := decode[[]timelineDTO](t, w)
	require.Len(t, timeline, 2)
	assert.Equal(t, moved.TimelineEntry.ID, timeline[1].ID)

	w = ts.do(t, http.MethodGet, "/v1/candidates/1/timeline?order=desc", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, moved.TimelineEntry.ID, decode[[]timelineDTO](t, w)[0].ID)
}

func TestMoveStageValidation(t *testing.T) {
	ts := newTestServer(t, newTestStore(t), nil)
	createCandidate(t, ts, "Bob", "bob@example.com")

	w := ts.do(t, http.MethodPatch, "/v1/candidates/1", map[string]string{"stage": "interview"}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPatch, "/v1/candidates/9", map[string]string{"stage": "screen"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodPost, "/v1/candidates", map[string]any{"name": "Other", "email": "BOB@example.com"}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestMoveStageFailureKeepsStage(t *testing.T) {
	s := newTestStore(t)
	ts := newTestServer(t, s, nil)
	createCandidate(t, ts, "Carol", "carol@example.com")

	failing := newTestServer(t, store.New(s.DB(), store.WithFaults(fault.Always{fault.OpWrite})), nil)
	w := failing.do(t, http.MethodPatch, "/v1/candidates/1", map[string]string{"stage": "offer"}, nil)
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, errcode.SimulatedFailure, decode[errorBody](t, w).Code)

	w = ts.do(t, http.MethodGet, "/v1/candidates/1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "applied", decode[candidateDetailDTO](t, w).Stage)
}

func TestListCandidatesFiltersBeforePaging(t *testing.T) {
	ts := newTestServer(t, newTestStore(t), nil)
	createCandidate(t, ts, "Alice One", "one@example.com")
	createCandidate(t, ts, "Alice Two", "two@example.com")
	createCandidate(t, ts, "Zed", "zed@example.com")
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPatch, "/v1/candidates/2", map[string]string{"stage": "screen"}, nil).Code)

	w := ts.do(t, http.MethodGet, "/v1/candidates?search=alice&stage=screen", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-Total-Count"))
	items := decode[[]candidateDTO](t, w)
	require.Len(t, items, 1)
	assert.Equal(t, "Alice Two", items[0].Name)

	w = ts.do(t, http.MethodGet, "/v1/candidates?stage=bogus", nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAddNoteAuthor(t *testing.T) {
	roster := []string{"John Doe", "Jane Smith"}
	tokens, err := auth.NewTokenService("secret", time.Hour, roster)
	require.NoError(t, err)
	ts := newTestServer(t, newTestStore(t), func(d *Dependencies) { d.Tokens = tokens })
	createCandidate(t, ts, "Dana", "dana@example.com")

	token, err := tokens.Issue("jane smith")
	require.NoError(t, err)
	w := ts.do(t, http.MethodPost, "/v1/candidates/1/notes",
		map[string]string{"text": "strong systems answers, @John Doe please review", "author": "Someone Else"},
		http.Header{"Authorization": {"Bearer " + token}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	note := decode[noteDTO](t, w)
	assert.Equal(t, "Jane Smith", note.Author)
	assert.Equal(t, []string{"John Doe"}, note.Mentions)

	w = ts.do(t, http.MethodPost, "/v1/candidates/1/notes", map[string]string{"text": "anonymous"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, anonymousAuthor, decode[noteDTO](t, w).Author)

	w = ts.do(t, http.MethodGet, "/v1/candidates/1", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	detail := decode[candidateDetailDTO](t, w)
	require.Len(t, detail.Notes, 2)
	assert.Contains(t, ts.publisher.types(), events.CandidateNoteAdded)

	w = ts.do(t, http.MethodPost, "/v1/candidates/1/notes", map[string]string{"text": "x"},
		http.Header{"Authorization": {"Bearer nope"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestWritesRequireTokenWhenConfigured(t *testing.T) {
	tokens, err := auth.NewTokenService("secret", time.Hour, nil)
	require.NoError(t, err)
	ts := newTestServer(t, newTestStore(t), func(d *Dependencies) {
		d.Tokens = tokens
		d.RequireForWrites = true
	})

	w := ts.do(t, http.MethodPost, "/v1/jobs", map[string]string{"title": "Locked"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/jobs", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
