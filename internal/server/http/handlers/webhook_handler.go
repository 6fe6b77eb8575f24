package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/polkiloo/storepay/internal/config"
	domainErrors "github.com/polkiloo/storepay/internal/domain/errors"
	"github.com/polkiloo/storepay/internal/domain/model"
	"github.com/polkiloo/storepay/internal/server/http/dto"
)

// WebhookHandler receives bank-transfer notifications.
type WebhookHandler struct {
	facade WebhookFacade
	policy config.MismatchPolicy
	logger *slog.Logger
}

// NewWebhookHandler constructs WebhookHandler.
func NewWebhookHandler(facade WebhookFacade, policy config.MismatchPolicy, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{facade: facade, policy: policy, logger: logger}
}

// SePay handles POST /api/webhooks/sepay. Authentication is enforced by middleware.
func (h *WebhookHandler) SePay(c *gin.Context) {
	var req dto.WebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				h.logger.Info("webhook field rejected", slog.String("field", fe.Field()), slog.String("rule", fe.Tag()))
			}
		} else {
			h.logger.Info("malformed webhook body", slog.String("error", err.Error()))
		}
		c.JSON(http.StatusBadRequest, dto.WebhookResponse{Message: "malformed payload"})
		return
	}

	h.logger.Debug("webhook received",
		slog.Int64("transaction_id", req.ID),
		slog.String("gateway", req.Gateway),
		slog.String("account_number", req.AccountNumber),
		slog.String("reference_code", req.ReferenceCode),
		slog.String("transaction_date", req.TransactionDate),
		slog.String("description", req.Description),
	)

	res, err := h.facade.ApplyTransfer(c.Request.Context(), toTransfer(req))
	if err != nil {
		switch {
		case errors.Is(err, domainErrors.ErrInvalidTransfer):
			c.JSON(http.StatusBadRequest, dto.WebhookResponse{Message: "malformed payload"})
		case errors.Is(err, domainErrors.ErrPersistenceUnavailable):
			h.logger.Error("webhook not applied", slog.Int64("transaction_id", req.ID), slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, dto.WebhookResponse{Message: "temporarily unavailable"})
		default:
			h.logger.Error("webhook failed", slog.Int64("transaction_id", req.ID), slog.String("error", err.Error()))
			c.JSON(http.StatusInternalServerError, dto.WebhookResponse{Message: "internal error"})
		}
		return
	}

	status := http.StatusOK
	if res.Outcome == model.OutcomeAmountMismatch && h.policy == config.MismatchRetry {
		status = http.StatusUnprocessableEntity
	}
	c.JSON(status, toWebhookResponse(res, status == http.StatusOK))
}

func toTransfer(req dto.WebhookRequest) model.Transfer {
	return model.Transfer{
		TransactionID:   req.ID,
		Content:         req.Content,
		Amount:          req.TransferAmount,
		Type:            model.TransferType(req.TransferType),
		Gateway:         req.Gateway,
		AccountNumber:   req.AccountNumber,
		ReferenceCode:   req.ReferenceCode,
		TransactionDate: req.TransactionDate,
		Description:     req.Description,
	}
}

var outcomeMessages = map[model.Outcome]string{
	model.OutcomeCompleted:        "payment applied",
	model.OutcomeFailed:           "reversal applied",
	model.OutcomeDuplicate:        "duplicate delivery",
	model.OutcomeNoCandidate:      "acknowledged, no match",
	model.OutcomeNotFound:         "acknowledged, order not found",
	model.OutcomeAlreadyProcessed: "order already processed",
	model.OutcomeAmountMismatch:   "amount mismatch",
}

func toWebhookResponse(res model.Reconciliation, success bool) dto.WebhookResponse {
	resp := dto.WebhookResponse{
		Success: success,
		Message: outcomeMessages[res.Outcome],
		Data:    &dto.WebhookData{Outcome: string(res.Outcome)},
	}
	if res.OrderID != "" {
		resp.Data.OrderID = res.OrderID
		resp.Data.Status = string(res.Status)
	}
	return resp
}
