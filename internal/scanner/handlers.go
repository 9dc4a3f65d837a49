package scanner

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Handler provides HTTP handlers for contract analysis.
type Handler struct {
	svc *Service
}

// NewHandler creates a new analysis handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes sets up the contract analysis routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/contracts/:chain/:address/analysis", h.Analyze)
	r.GET("/contracts/:chain/:address/quick-check", h.QuickCheck)
}

// Analyze handles GET /contracts/:chain/:address/analysis.
func (h *Handler) Analyze(c *gin.Context) {
	result, err := h.svc.AnalyzeContract(c.Request.Context(),
		c.Param("address"), c.Param("chain"))
	if err != nil {
		writeAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// QuickCheck handles GET /contracts/:chain/:address/quick-check.
func (h *Handler) QuickCheck(c *gin.Context) {
	result, err := h.svc.QuickCheck(c.Request.Context(),
		c.Param("address"), c.Param("chain"))
	if err != nil {
		writeAnalysisError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func writeAnalysisError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrInvalidAddress):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_address",
			"message": "address must be a valid Ethereum address (0x + 40 hex chars)",
		})
	case errors.Is(err, ErrUnsupportedChain):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "unsupported_chain",
			"message": "chain is not supported",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "analysis_failed",
			"message": "Failed to analyze contract",
		})
	}
}
