package handler

import (
	"context"
	"net/http"
	"path"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/absolute0github/band-contract-plugin/model"
	"github.com/absolute0github/band-contract-plugin/pkg/logger"
	"github.com/absolute0github/band-contract-plugin/service"
)

type ContractHandler struct {
	contracts *service.ContractService
}

func NewContractHandler(contracts *service.ContractService) *ContractHandler {
	return &ContractHandler{contracts: contracts}
}

// contractResponse adds the calculated amounts and client link to a contract.
func (h *ContractHandler) contractResponse(c *model.Contract) gin.H {
	return gin.H{
		"contract":     c,
		"calculated":   c.Totals(),
		"contract_url": h.contracts.ContractURL(c.AccessToken),
	}
}

// contractID parses the :id path parameter
func contractID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contract id"})
		return 0, false
	}
	c.Request = c.Request.WithContext(logger.WithContractID(c.Request.Context(), id))
	return id, true
}

// List returns a page of contracts
func (h *ContractHandler) List(c *gin.Context) {
	var q service.ListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query"})
		return
	}

	result, err := h.contracts.List(c.Request.Context(), q)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Create creates a draft contract
func (h *ContractHandler) Create(c *gin.Context) {
	var in model.ContractInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	contract, err := h.contracts.Create(c.Request.Context(), in, requestMeta(c, ""))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, h.contractResponse(contract))
}

// Get returns a single contract with its calculated amounts
func (h *ContractHandler) Get(c *gin.Context) {
	id, ok := contractID(c)
	if !ok {
		return
	}

	contract, err := h.contracts.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.contractResponse(contract))
}

// Lookup finds a contract by its contract number
func (h *ContractHandler) Lookup(c *gin.Context) {
	number := c.Query("number")
	if number == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "number is required"})
		return
	}

	contract, err := h.contracts.GetByNumber(c.Request.Context(), number)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.contractResponse(contract))
}

// Update edits a contract. A status change follows the transition table unless override is set.
func (h *ContractHandler) Update(c *gin.Context) {
	id, ok := contractID(c)
	if !ok {
		return
	}

	var in model.ContractInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	contract, err := h.contracts.Update(c.Request.Context(), id, in, requestMeta(c, ""))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.contractResponse(contract))
}

// Delete deletes a contract with its activity and documents
func (h *ContractHandler) Delete(c *gin.Context) {
	id, ok := contractID(c)
	if !ok {
		return
	}

	if err := h.contracts.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	logger.Info(c.Request.Context(), "contract deleted")
	c.JSON(http.StatusOK, gin.H{"message": "Contract deleted"})
}

// Send emails the contract link to the client
func (h *ContractHandler) Send(c *gin.Context) {
	h.action(c, h.contracts.Send)
}

// Cancel cancels an unsigned contract
func (h *ContractHandler) Cancel(c *gin.Context) {
	h.action(c, h.contracts.Cancel)
}

// RegenerateToken issues a new client link
func (h *ContractHandler) RegenerateToken(c *gin.Context) {
	h.action(c, h.contracts.RegenerateToken)
}

func (h *ContractHandler) action(c *gin.Context, run func(context.Context, int64, service.RequestMeta) (*model.Contract, error)) {
	id, ok := contractID(c)
	if !ok {
		return
	}

	contract, err := run(c.Request.Context(), id, requestMeta(c, ""))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.contractResponse(contract))
}

// GenerateDocuments renders the contract documents again
func (h *ContractHandler) GenerateDocuments(c *gin.Context) {
	id, ok := contractID(c)
	if !ok {
		return
	}

	contract, err := h.contracts.GenerateDocuments(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": contract.Documents})
}

// Document downloads one generated document. Object storage answers with a presigned redirect.
func (h *ContractHandler) Document(c *gin.Context) {
	id, ok := contractID(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	kind := c.Param("kind")

	contract, err := h.contracts.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}

	link, err := h.contracts.DocumentLink(ctx, contract, kind)
	if err != nil {
		respondError(c, err)
		return
	}
	if link != "" {
		c.Redirect(http.StatusFound, link)
		return
	}

	data, loc, err := h.contracts.Document(ctx, contract, kind)
	if err != nil {
		respondError(c, err)
		return
	}
	filename := contract.ContractNumber + "-" + path.Base(loc)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, service.DocumentContentType(loc), data)
}

// RecordPayment records a deposit or balance payment on a signed contract
func (h *ContractHandler) RecordPayment(c *gin.Context) {
	id, ok := contractID(c)
	if !ok {
		return
	}

	var in service.PaymentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	contract, err := h.contracts.RecordPayment(c.Request.Context(), id, in, requestMeta(c, ""))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.contractResponse(contract))
}

// Activity returns the newest activity entries of a contract
func (h *ContractHandler) Activity(c *gin.Context) {
	id, ok := contractID(c)
	if !ok {
		return
	}

	acts, err := h.contracts.Activity(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if acts == nil {
		acts = []model.Activity{}
	}
	c.JSON(http.StatusOK, gin.H{"activity": acts})
}

// Stats returns the dashboard counters
func (h *ContractHandler) Stats(c *gin.Context) {
	stats, err := h.contracts.Statistics(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
