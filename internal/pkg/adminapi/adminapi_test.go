package adminapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/forumarch/archiver/internal/pkg/stats"
)

func TestStatsHandlerReportsCounters(t *testing.T) {
	gin.SetMode(gin.TestMode)

	stats.ArchiverRoutinesIncr()
	defer stats.ArchiverRoutinesDecr()

	s := &Server{startedAt: time.Now()}

	r := gin.New()
	r.GET("/stats", s.statsHandler)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"archiver_routines":1`)
}
