package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const liveSession = "0b7b1c5e-3c1a-4c7e-9a55-1f1e7e0f9a11"

func echoSession() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(SessionFromContext(r.Context())))
	})
}

func TestRequireSession(t *testing.T) {
	h := RequireSession(func(id string) bool { return id == liveSession })(echoSession())

	cases := []struct {
		name   string
		header string
		query  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"malformed", "abc", "", http.StatusBadRequest},
		{"unknown", "1b7b1c5e-3c1a-4c7e-9a55-1f1e7e0f9a11", "", http.StatusUnauthorized},
		{"header", liveSession, "", http.StatusOK},
		{"query", "", liveSession, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/events", nil)
			if tc.header != "" {
				req.Header.Set(SessionHeader, tc.header)
			}
			if tc.query != "" {
				req.URL.RawQuery = "session=" + tc.query
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				require.Equal(t, liveSession, rec.Body.String())
			}
		})
	}
}

func TestRateLimit_PerSession(t *testing.T) {
	rl := NewRateLimiter(2, 0)
	defer rl.Stop()
	h := RateLimit(rl)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	send := func(session string) int {
		req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
		req.Header.Set(SessionHeader, session)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	require.Equal(t, http.StatusOK, send("a"))
	require.Equal(t, http.StatusOK, send("a"))
	require.Equal(t, http.StatusTooManyRequests, send("a"))
	require.Equal(t, http.StatusOK, send("b"))
}

func TestLogging_WritesRequestLine(t *testing.T) {
	var buf bytes.Buffer
	log := zerolog.New(&buf)
	h := Logging(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/sessions", nil)
	req.Header.Set(SessionHeader, liveSession)
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "POST", line["method"])
	require.Equal(t, float64(http.StatusTeapot), line["status"])
	require.Equal(t, float64(len("short and stout")), line["bytes"])
	require.Equal(t, liveSession, line["session"])
}

func TestHealthHandler(t *testing.T) {
	ok := CheckFunc(func(context.Context) error { return nil })
	bucketMissing := CheckFunc(func(context.Context) error { return errors.New("bucket missing") })

	serve := func(deps ...Dependency) (int, HealthStatus) {
		rec := httptest.NewRecorder()
		HealthHandler(deps).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		var st HealthStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &st))
		return rec.Code, st
	}

	code, st := serve(Dependency{Name: "journal", Checker: ok}, Dependency{Name: "minio", Checker: bucketMissing, Optional: true})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusDegraded, st.Status)
	require.Equal(t, StatusHealthy, st.Checks["journal"].Status)
	require.Equal(t, "bucket missing", st.Checks["minio"].Message)
	require.True(t, st.Checks["minio"].Optional)

	code, st = serve(Dependency{Name: "journal", Checker: bucketMissing}, Dependency{Name: "minio", Checker: ok, Optional: true})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, StatusUnhealthy, st.Status)

	code, st = serve()
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, StatusHealthy, st.Status)
}

func TestReadinessBoundsSlowChecks(t *testing.T) {
	slow := CheckFunc(func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	st := Readiness(context.Background(), []Dependency{{Name: "redis", Checker: slow}}, 20*time.Millisecond)
	require.Equal(t, StatusUnhealthy, st.Status)
	require.Contains(t, st.Checks["redis"].Message, "deadline exceeded")
}

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Name string `json:"name" validate:"required,max=5"`
	}
	decode := func(raw string) error {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
		var b body
		return DecodeJSON(req, &b)
	}

	require.NoError(t, decode(`{"name":"ok"}`))
	require.ErrorContains(t, decode(``), "empty")
	require.ErrorContains(t, decode(`{"name":"way too long"}`), "name: failed max=5")
	require.ErrorContains(t, decode(`{"name":""}`), "name: failed required")
	require.Error(t, decode(`{"name":"ok","extra":1}`))
}

func TestValidators(t *testing.T) {
	require.NoError(t, ValidateSessionID(liveSession))
	require.Error(t, ValidateSessionID(strings.ToUpper(liveSession)))

	require.Equal(t, "hello\tworld", SanitizeString("  hello\x00\tworld\x07 "))

	n, err := PositiveID("42")
	require.NoError(t, err)
	require.Equal(t, int64(42), n)
	_, err = PositiveID("0")
	require.Error(t, err)

	require.Equal(t, 20, ValidateLimit(0))
	require.Equal(t, 100, ValidateLimit(500))
	require.Equal(t, 7, ValidateLimit(7))
}
