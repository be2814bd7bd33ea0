package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/absolute0github/band-contract-plugin/model"
	"github.com/absolute0github/band-contract-plugin/pkg/finance"
	"github.com/absolute0github/band-contract-plugin/pkg/logger"
	"github.com/absolute0github/band-contract-plugin/service"
)

const clientActor = "client"

// PublicHandler serves the unauthenticated client endpoints: the contract link and signing.
type PublicHandler struct {
	contracts *service.ContractService
	signer    *service.SignatureWorkflow
}

func NewPublicHandler(contracts *service.ContractService, signer *service.SignatureWorkflow) *PublicHandler {
	return &PublicHandler{contracts: contracts, signer: signer}
}

// publicError writes a {success, message} failure. Storage failures keep a generic message.
func publicError(c *gin.Context, err error, fallback string) {
	status := statusFor(err)
	message := err.Error()

	var validation *service.ValidationError
	if errors.As(err, &validation) {
		message = validation.Message
	}
	if status == http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "public request failed", "error", err)
		message = fallback
	}
	setRetryAfter(c, err)
	c.JSON(status, gin.H{"success": false, "message": message})
}

// Sign records a client signature
func (h *PublicHandler) Sign(c *gin.Context) {
	var req service.SignRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": service.MsgInvalidLink})
		return
	}

	if _, err := h.signer.Sign(c.Request.Context(), req, requestMeta(c, clientActor)); err != nil {
		publicError(c, err, service.MsgSaveFailed)
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "message": service.MsgSigned})
}

// ContractInfo returns the public summary of a contract for the signing page preview
func (h *PublicHandler) ContractInfo(c *gin.Context) {
	token := c.Param("token")
	if !service.ValidTokenFormat(token) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "No route was found matching the URL and request method.",
		})
		return
	}

	contract, err := h.contracts.GetByToken(c.Request.Context(), token)
	if err != nil {
		publicError(c, err, "Something went wrong. Please try again.")
		return
	}

	decision := h.contracts.Tokens().CanSign(contract)
	totals := contract.Totals()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"contract": gin.H{
			"contract_number":    contract.ContractNumber,
			"event_name":         contract.EventName,
			"performance_date":   contract.PerformanceDate,
			"client_company":     contract.ClientCompanyName,
			"status":             contract.Status,
			"total_compensation": totals.TotalCompensation,
			"deposit_amount":     totals.DepositAmount,
			"can_sign":           decision.Valid,
			"sign_message":       decision.Reason,
		},
	})
}

// ClientContract is what the client sees when opening the emailed link.
type ClientContract struct {
	*model.Contract
	Calculated  finance.Totals `json:"calculated"`
	CanSign     bool           `json:"can_sign"`
	SignMessage string         `json:"sign_message,omitempty"`
	SignURL     string         `json:"sign_url"`
}

// View opens the client link. The first view of a sent contract marks it viewed.
func (h *PublicHandler) View(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": service.MsgInvalidLink})
		return
	}

	contract, decision, err := h.contracts.View(c.Request.Context(), token, requestMeta(c, clientActor))
	if err != nil {
		publicError(c, err, "Something went wrong. Please try again.")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"contract": ClientContract{
			Contract:    contract,
			Calculated:  contract.Totals(),
			CanSign:     decision.Valid,
			SignMessage: decision.Reason,
			SignURL:     "/wp-json/smcb/v1/sign",
		},
	})
}

// Health reports liveness
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
