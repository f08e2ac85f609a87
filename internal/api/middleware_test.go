package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:54321"
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")

	assert.Equal(t, "192.0.2.10", clientIP(req, false))
	assert.Equal(t, "203.0.113.7", clientIP(req, true))

	req.Header.Del("X-Forwarded-For")
	req.Header.Set("X-Real-IP", "198.51.100.4")
	assert.Equal(t, "198.51.100.4", clientIP(req, true))

	req.Header.Del("X-Real-IP")
	req.RemoteAddr = "pipe"
	assert.Equal(t, "pipe", clientIP(req, true))
}

func TestAttachmentName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		raw, want string
	}{
		{"report.pdf", "report.pdf"},
		{"/var/tmp/report.pdf", "report.pdf"},
		{`C:\Users\me\report.pdf`, "report.pdf"},
		{"", "download.pdf"},
		{"   ", "download.pdf"},
		{"..", "download.pdf"},
		{"dir/", "dir"},
		{"a\"b;c.pdf", "a_b_c.pdf"},
		{"line\nbreak.pdf", "linebreak.pdf"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, attachmentName(tc.raw, "download.pdf"), tc.raw)
	}
}

func TestRequestIDIsUniquePerRequest(t *testing.T) {
	t.Parallel()

	var seen []string
	h := requestIDMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = append(seen, RequestID(r.Context()))
	}))
	for i := 0; i < 2; i++ {
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}
	assert.Len(t, seen, 2)
	assert.NotEmpty(t, seen[0])
	assert.NotEqual(t, seen[0], seen[1])
}

func TestTimeoutMiddlewareSetsDeadline(t *testing.T) {
	t.Parallel()

	var deadline time.Time
	var ok bool
	h := timeoutMiddleware(time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		deadline, ok = r.Context().Deadline()
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(time.Minute), deadline, 5*time.Second)
}
