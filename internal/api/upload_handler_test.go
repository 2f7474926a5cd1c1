package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObjectStorage struct {
	mu      sync.Mutex
	objects map[string][]byte
	failPut bool
}

func newFakeObjectStorage() *fakeObjectStorage {
	return &fakeObjectStorage{objects: map[string][]byte{}}
}

func (f *fakeObjectStorage) UploadFile(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if f.failPut {
		return errors.New("bucket offline")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = data
	return nil
}

func (f *fakeObjectStorage) GeneratePresignedURL(_ context.Context, key, fileName string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key + "?name=" + fileName, nil
}

func (f *fakeObjectStorage) DeleteObject(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	return nil
}

type fakeRateCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (f *fakeRateCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return redis.NewIntResult(f.counts[key], nil)
}

func (f *fakeRateCounter) Expire(context.Context, string, time.Duration) *redis.BoolCmd {
	return redis.NewBoolResult(true, nil)
}

func multipartUpload(t *testing.T, fileName, contentType, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", `form-data; name="file"; filename="`+fileName+`"`)
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func upload(t *testing.T, ts testServer, jobID, fileName, contentType, content string) *httptest.ResponseRecorder {
	t.Helper()
	body, ct := multipartUpload(t, fileName, contentType, content)
	req := httptest.NewRequest(http.MethodPost, "/v1/assessments/"+jobID+"/uploads", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func TestUploadAttachmentAndFetchURL(t *testing.T) {
	objects := newFakeObjectStorage()
	ts := newTestServer(t, newTestStore(t), func(d *Dependencies) { d.Storage = objects })

	w := upload(t, ts, "3", "resume.PDF", "application/pdf", "%PDF-1.4")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode[struct {
		ObjectKey string `json:"objectKey"`
		FileName  string `json:"fileName"`
		Size      int64  `json:"size"`
	}](t, w)
	assert.True(t, strings.HasPrefix(body.ObjectKey, "assessments/3/"))
	assert.True(t, strings.HasSuffix(body.ObjectKey, ".pdf"))
	assert.Equal(t, "resume.PDF", body.FileName)
	assert.EqualValues(t, 8, body.Size)
	assert.Contains(t, objects.objects, body.ObjectKey)

	w = ts.do(t, http.MethodGet, "/v1/assessments/3/uploads/url?key="+body.ObjectKey, nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decode[map[string]any](t, w)["url"], body.ObjectKey)

	w = ts.do(t, http.MethodGet, "/v1/assessments/4/uploads/url?key="+body.ObjectKey, nil, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/v1/assessments/3/uploads/url?key=assessments/3/missing.pdf", nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadAttachmentLimits(t *testing.T) {
	objects := newFakeObjectStorage()
	counter := &fakeRateCounter{counts: map[string]int64{}}
	s := newTestStore(t)
	router := newTestServer(t, s, nil).router

	h := NewUploadHandler(s.Assessments(), objects, counter, "")
	h.MaxBytes = 4
	h.MIMEWhitelist = []string{"application/pdf"}
	h.quota.limit = 1
	router.POST("/limited/:jobId", h.UploadAttachment)

	send := func(contentType, content string) int {
		body, ct := multipartUpload(t, "a.pdf", contentType, content)
		req := httptest.NewRequest(http.MethodPost, "/limited/1", body)
		req.Header.Set("Content-Type", ct)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusRequestEntityTooLarge, send("application/pdf", "too large"))
	assert.Equal(t, http.StatusUnsupportedMediaType, send("text/html", "<a>"))
	assert.Equal(t, http.StatusCreated, send("application/pdf", "ok"))
	assert.Equal(t, http.StatusTooManyRequests, send("application/pdf", "ok"))
}

func TestUploadFailureSurfacesError(t *testing.T) {
	objects := newFakeObjectStorage()
	objects.failPut = true
	ts := newTestServer(t, newTestStore(t), func(d *Dependencies) { d.Storage = objects })

	w := upload(t, ts, "3", "a.txt", "text/plain", "hello")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, objects.objects)
}

func TestAttachmentKeyValidation(t *testing.T) {
	assert.True(t, isValidAttachmentKey(3, "assessments/3/abc.pdf"))
	assert.False(t, isValidAttachmentKey(3, ""))
	assert.False(t, isValidAttachmentKey(3, "assessments/4/abc.pdf"))
	assert.False(t, isValidAttachmentKey(3, "assessments/3/../4/abc.pdf"))
	assert.False(t, isValidAttachmentKey(3, "assessments/3//abc.pdf"))
}
