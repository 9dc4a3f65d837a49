package guardian

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"

	"github.com/mbrant/tokensentinel/internal/chains"
	"github.com/mbrant/tokensentinel/internal/validation"
)

// Handler provides HTTP handlers for wallet approval scanning.
type Handler struct {
	svc      *Service
	registry *chains.Registry
}

// NewHandler creates a new wallet handler.
func NewHandler(svc *Service, registry *chains.Registry) *Handler {
	return &Handler{svc: svc, registry: registry}
}

// RegisterRoutes sets up the wallet routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/wallets/:chain/:address/approvals", h.Scan)
	r.POST("/wallets/revoke-tx", h.RevokeTx)
}

// Scan handles GET /wallets/:chain/:address/approvals.
func (h *Handler) Scan(c *gin.Context) {
	result, err := h.svc.ScanWallet(c.Request.Context(),
		c.Param("address"), c.Param("chain"))
	if err != nil {
		writeScanError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// RevokeTxRequest is the request body for building a revoke transaction.
type RevokeTxRequest struct {
	Chain        string       `json:"chain" binding:"required"`
	TokenAddress string       `json:"tokenAddress" binding:"required"`
	Spender      string       `json:"spender" binding:"required"`
	Type         ApprovalType `json:"type"`
}

// RevokeTx handles POST /wallets/revoke-tx.
func (h *Handler) RevokeTx(c *gin.Context) {
	var req RevokeTxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Invalid request body",
		})
		return
	}

	id, err := chains.Parse(req.Chain)
	if err != nil {
		writeScanError(c, ErrUnsupportedChain)
		return
	}
	cfg, _ := h.registry.Get(id)

	token := validation.SanitizeAddress(req.TokenAddress)
	spender := validation.SanitizeAddress(req.Spender)
	if !validation.IsValidEthAddress(token) || !validation.IsValidEthAddress(spender) {
		writeScanError(c, ErrInvalidAddress)
		return
	}

	typ := req.Type
	if typ == "" {
		typ = ApprovalERC20
	}

	tx, err := BuildRevokeTx(typ, common.HexToAddress(token), common.HexToAddress(spender), cfg.SecurityID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_approval_type",
			"message": err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, tx)
}

func writeScanError(c *gin.Context, err error) {
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
	case errors.Is(err, ErrScanUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "scan_unavailable",
			"message": "Upstream data sources are unavailable, try again later",
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "scan_failed",
			"message": "Failed to scan wallet",
		})
	}
}
