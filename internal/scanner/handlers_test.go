package scanner

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRouter(svc *Service) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(svc).RegisterRoutes(r.Group("/api/v1"))
	return r
}

func TestAnalyzeEndpoint(t *testing.T) {
	svc := newTestService(t,
		serveJSON(cleanSecurityBody),
		serveJSON(deepLiquidityBody),
		serveJSON(`{"status": "1", "result": "[...]"}`),
	)
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/contracts/ethereum/"+testAddr+"/analysis", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var body ContractAnalysisResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, testAddr, body.Address)
	assert.Equal(t, LevelSafe, body.RiskLevel)
	assert.Len(t, body.RiskFactors, 7)
	assert.NotEmpty(t, body.AIExplanation)
}

func TestAnalyzeEndpoint_BadInput(t *testing.T) {
	svc := newTestService(t, serveStatus(200), serveStatus(200), serveStatus(200))
	r := newTestRouter(svc)

	t.Run("bad address", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/contracts/ethereum/nope/analysis", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid_address")
	})

	t.Run("bad chain", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/contracts/dogechain/"+testAddr+"/analysis", nil)
		r.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "unsupported_chain")
	})
}

func TestQuickCheckEndpoint(t *testing.T) {
	body := `{"code": 1, "result": {"` + testAddr + `": {"is_honeypot": "1"}}}`
	svc := newTestService(t, serveJSON(body), serveStatus(502), serveStatus(502))
	r := newTestRouter(svc)

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/v1/contracts/ethereum/"+testAddr+"/quick-check", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var result QuickCheckResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 50, result.RiskScore)
	assert.True(t, result.IsHoneypot)
}
