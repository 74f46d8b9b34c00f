package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRateLimitBlocksAfterThreshold(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimit(2, time.Minute))
	r.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
}

func TestRateLimitDisabledWhenZero(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RateLimit(0, time.Minute))
	r.GET("/ping", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	for i := 0; i < 10; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ping", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

func TestMemoryRateStoreWindowReset(t *testing.T) {
	store := &memoryRateStore{
		data:  make(map[string]*memoryCounter),
		clock: time.Now,
	}

	count, _ := store.Increment("k", time.Minute)
	require.Equal(t, 1, count)
	count, _ = store.Increment("k", time.Minute)
	require.Equal(t, 2, count)

	// Force the window to lapse
	store.clock = func() time.Time { return time.Now().Add(2 * time.Minute) }
	count, _ = store.Increment("k", time.Minute)
	require.Equal(t, 1, count)
}

func TestMemoryRateStoreSweepsStaleCounters(t *testing.T) {
	now := time.Unix(1700000000, 0)
	store := &memoryRateStore{
		data:  make(map[string]*memoryCounter),
		clock: func() time.Time { return now },
	}

	for _, key := range []string{"a", "b", "c"} {
		store.Increment(key, time.Minute)
	}
	require.Len(t, store.data, 3)

	// Past every window end and the sweep deadline, a single touch on a
	// fresh key drops the stale counters.
	now = now.Add(3 * time.Minute)
	store.Increment("d", time.Minute)

	store.mu.Lock()
	defer store.mu.Unlock()
	require.Len(t, store.data, 1)
	require.Contains(t, store.data, "d")
}
