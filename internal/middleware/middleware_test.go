package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservation/internal/config"
	"github.com/iliyamo/table-reservation/internal/utils"
)

func whoami(c echo.Context) error {
	id, _ := UserID(c)
	return c.JSON(http.StatusOK, echo.Map{"id": id, "role": Role(c)})
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTAuth(t *testing.T) {
	e := echo.New()
	e.GET("/me", whoami, JWTAuth("secret"))

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	assert.Equal(t, http.StatusUnauthorized, serve(e, req).Code)

	at, err := utils.NewAccessToken("secret", 9, "STAFF", 5)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+at.Token)
	rec = serve(e, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":9,"role":"STAFF"}`, rec.Body.String())
}

func TestRequireRole(t *testing.T) {
	e := echo.New()
	e.GET("/staff", whoami, JWTAuth("secret"), RequireRole("STAFF"))

	for role, want := range map[string]int{"STAFF": http.StatusOK, "CUSTOMER": http.StatusForbidden} {
		at, err := utils.NewAccessToken("secret", 1, role, 5)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/staff", nil)
		req.Header.Set("Authorization", "Bearer "+at.Token)
		assert.Equal(t, want, serve(e, req).Code, role)
	}
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	log := logrus.New()
	log.SetOutput(&buf)
	log.SetFormatter(&logrus.JSONFormatter{})

	e := echo.New()
	e.Use(RequestLogger(log))
	e.GET("/ok", func(c echo.Context) error { return c.String(http.StatusOK, RequestID(c)) })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadGateway, "upstream") })

	rec := serve(e, httptest.NewRequest(http.MethodGet, "/ok", nil))
	rid := rec.Header().Get(echo.HeaderXRequestID)
	assert.NotEmpty(t, rid)
	assert.Equal(t, rid, rec.Body.String())
	assert.Contains(t, buf.String(), `"path":"/ok"`)

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set(echo.HeaderXRequestID, "abc-123")
	rec = serve(e, req)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "abc-123", rec.Header().Get(echo.HeaderXRequestID))
	assert.Contains(t, buf.String(), `"request_id":"abc-123"`)
	assert.Contains(t, buf.String(), `"level":"error"`)
}

func TestBuildRateKey(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/reservations", nil)
	req.Header.Set(echo.HeaderXRealIP, "10.0.0.7")
	c := e.NewContext(req, httptest.NewRecorder())
	c.SetPath("/v1/reservations")

	cfg := config.RateLimitConfig{Prefix: "rl:reserve", KeyStrategy: "user_route"}
	assert.Equal(t, "rl:reserve:user:guest:route:POST /v1/reservations", buildRateKey(cfg, c))

	c.Set(ctxUserID, uint64(12))
	assert.Equal(t, "rl:reserve:user:12:route:POST /v1/reservations", buildRateKey(cfg, c))

	cfg.KeyStrategy = "ip"
	assert.Equal(t, "rl:reserve:ip:10.0.0.7", buildRateKey(cfg, c))
}

func TestParseBucketResult(t *testing.T) {
	d, err := parseBucketResult([]interface{}{int64(0), int64(0), int64(1500)})
	require.NoError(t, err)
	assert.False(t, d.allowed)
	assert.Equal(t, 1500*time.Millisecond, d.retry)

	d, err = parseBucketResult([]interface{}{int64(1), "4", int64(0)})
	require.NoError(t, err)
	assert.True(t, d.allowed)
	assert.Equal(t, int64(4), d.remaining)

	_, err = parseBucketResult("nope")
	assert.Error(t, err)
}

func TestDisabledMiddlewaresPassThrough(t *testing.T) {
	e := echo.New()
	e.GET("/h", func(c echo.Context) error { return c.String(http.StatusOK, "ok") },
		NewTokenBucket(config.RateLimitConfig{Enabled: true}, nil, nil),
		NewRedisCache(config.CacheConfig{Enabled: true}, nil, nil))
	rec := serve(e, httptest.NewRequest(http.MethodGet, "/h", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"))
}

func TestCachePayloadRoundTrip(t *testing.T) {
	hdr := http.Header{"Content-Type": {"application/json"}}
	bs, err := encodePayload(http.StatusOK, hdr, []byte(`{"a":1}`))
	require.NoError(t, err)
	status, got, body, ok := decodePayload(bs)
	require.True(t, ok)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "application/json", got.Get("Content-Type"))
	assert.Equal(t, `{"a":1}`, string(body))

	_, _, _, ok = decodePayload([]byte{0, 0})
	assert.False(t, ok)
}

func TestCacheKeyIncludesQuery(t *testing.T) {
	e := echo.New()
	cfg := config.CacheConfig{Prefix: "cache", KeyStrategy: "route_query"}
	key := func(q string) string {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/opening-hours"+q, nil), httptest.NewRecorder())
		c.SetPath("/v1/opening-hours")
		return cacheKeyFrom(cfg, c)
	}
	assert.Equal(t, key("?from=2026-06-01"), key("?from=2026-06-01"))
	assert.NotEqual(t, key("?from=2026-06-01"), key("?from=2026-07-01"))
	assert.Regexp(t, `^cache:[0-9a-f]{40}$`, key(""))
}
