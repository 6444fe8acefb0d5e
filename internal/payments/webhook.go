package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"tripgo/internal/bookings"
	"tripgo/internal/shared/utils/response"
	"tripgo/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SignatureHeader carries the gateway's HMAC-SHA256 of the raw request body.
const SignatureHeader = "X-Signature"

// WebhookController receives payment status notifications from the gateway.
// Booking state is reconciled synchronously before the notification is acked,
// so a crash between ack and reconcile cannot lose a payment.
type WebhookController struct {
	bookingService bookings.Service
	records        Repository
	secret         []byte
}

func NewWebhookController(bookingService bookings.Service, records Repository, webhookSecret string) *WebhookController {
	return &WebhookController{
		bookingService: bookingService,
		records:        records,
		secret:         []byte(webhookSecret),
	}
}

// HandleWebhook handles POST /api/v1/payments/webhook
func (wc *WebhookController) HandleWebhook(ctx *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, 1<<20))
	if err != nil {
		response.Error(ctx, http.StatusBadRequest, "Failed to read request body", nil)
		return
	}

	if !wc.verifySignature(body, ctx.GetHeader(SignatureHeader)) {
		logger.GetDefault().LogWebhookRejected(ctx.Request.Context(), "invalid signature", ctx.ClientIP())
		response.Error(ctx, http.StatusUnauthorized, "Invalid webhook signature", nil)
		return
	}

	var payload bookings.WebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		logger.GetDefault().LogWebhookRejected(ctx.Request.Context(), "malformed payload", ctx.ClientIP())
		response.Error(ctx, http.StatusBadRequest, "Malformed webhook payload", nil)
		return
	}
	if payload.PaymentID == "" || payload.BookingID == "" || payload.Status == "" {
		response.Error(ctx, http.StatusBadRequest, "Missing required webhook fields", nil)
		return
	}

	bookingID, err := uuid.Parse(payload.BookingID)
	if err != nil {
		response.Error(ctx, http.StatusBadRequest, "Invalid booking ID in payload", nil)
		return
	}

	// Ledger short-circuit: a redelivery whose terminal status was already
	// applied is acked without touching the booking again.
	record, err := wc.records.GetByPaymentID(ctx.Request.Context(), payload.PaymentID)
	if err != nil {
		// Fall through to the booking service, which is idempotent on its own.
		logger.GetDefault().ErrorWithContext(ctx.Request.Context(), "failed to read payment record", err,
			map[string]interface{}{"payment_id": payload.PaymentID})
	} else if record != nil && record.ProcessedAt != nil && record.GatewayStatus == payload.Status {
		response.Success(ctx, http.StatusOK, "Webhook already processed", gin.H{
			"booking_id": payload.BookingID,
			"payment_id": payload.PaymentID,
			"status":     record.Status,
		})
		return
	}

	result, err := wc.bookingService.ConfirmPayment(ctx.Request.Context(), bookingID, payload.Status, payload.PaymentID)
	if err != nil {
		wc.respondConfirmError(ctx, err, payload)
		return
	}

	wc.recordOutcome(ctx, payload, result)

	if result.AlreadyProcessed {
		response.Success(ctx, http.StatusOK, "Webhook already processed", gin.H{
			"booking_id": payload.BookingID,
			"status":     result.Booking.Status.String(),
		})
		return
	}

	response.Success(ctx, http.StatusOK, "Webhook processed", gin.H{
		"booking_id": payload.BookingID,
		"status":     result.Booking.Status.String(),
	})
}

// verifySignature compares the header against HMAC-SHA256(secret, body) in
// constant time.
func (wc *WebhookController) verifySignature(body []byte, signature string) bool {
	if signature == "" || len(wc.secret) == 0 {
		return false
	}

	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, wc.secret)
	mac.Write(body)
	expected := mac.Sum(nil)

	return hmac.Equal(provided, expected)
}

func (wc *WebhookController) respondConfirmError(ctx *gin.Context, err error, payload bookings.WebhookPayload) {
	switch {
	case errors.Is(err, bookings.ErrHoldExpired):
		// Terminal: acking stops pointless redelivery. The gateway initiates
		// the refund for a completed payment on an expired hold.
		logger.GetDefault().InfoWithContext(ctx.Request.Context(), "webhook for expired hold", map[string]interface{}{
			"booking_id": payload.BookingID,
			"payment_id": payload.PaymentID,
		})
		wc.markRecord(ctx, payload, StatusFailed)
		response.Success(ctx, http.StatusOK, "Hold expired before payment completed", gin.H{
			"booking_id": payload.BookingID,
			"status":     bookings.StatusExpired.String(),
		})
	case errors.Is(err, bookings.ErrNotFound):
		response.Error(ctx, http.StatusNotFound, "Unknown booking", nil)
	case errors.Is(err, bookings.ErrValidation):
		response.Error(ctx, http.StatusBadRequest, "Unsupported payment status", err.Error())
	case errors.Is(err, bookings.ErrRepositoryUnavailable):
		// Non-2xx makes the gateway redeliver once storage recovers.
		response.Error(ctx, http.StatusServiceUnavailable, "Temporarily unable to process webhook", nil)
	default:
		response.Error(ctx, http.StatusInternalServerError, "Failed to process webhook", nil)
	}
}

// recordOutcome keeps the local payment ledger in step with the booking row.
// Ledger failures are logged, never surfaced: the booking transition already
// happened and must stay acked.
func (wc *WebhookController) recordOutcome(ctx *gin.Context, payload bookings.WebhookPayload, result *bookings.ConfirmResult) {
	status := StatusFailed
	if payload.Status == bookings.GatewayStatusCompleted {
		status = StatusCompleted
	}

	record := &PaymentRecord{
		PaymentID: payload.PaymentID,
		BookingID: result.Booking.ID,
		Amount:    result.Booking.Total,
		Currency:  result.Booking.Currency,
		Status:    StatusPending,
	}
	if err := wc.records.Upsert(ctx.Request.Context(), record); err != nil {
		logger.GetDefault().ErrorWithContext(ctx.Request.Context(), "failed to upsert payment record", err,
			map[string]interface{}{"payment_id": payload.PaymentID})
		return
	}
	if err := wc.records.MarkProcessed(ctx.Request.Context(), payload.PaymentID, status, payload.Status); err != nil {
		logger.GetDefault().ErrorWithContext(ctx.Request.Context(), "failed to update payment record", err,
			map[string]interface{}{"payment_id": payload.PaymentID})
	}
}

// markRecord writes a terminal ledger entry for a webhook that never reached
// the booking service, so the row may not exist yet. The booking never loaded,
// so the amount is unknown; the gateway's figure arrives via reconciliation.
func (wc *WebhookController) markRecord(ctx *gin.Context, payload bookings.WebhookPayload, status string) {
	bookingID, err := uuid.Parse(payload.BookingID)
	if err != nil {
		return
	}

	record := &PaymentRecord{
		PaymentID: payload.PaymentID,
		BookingID: bookingID,
		Status:    StatusPending,
	}
	if err := wc.records.Upsert(ctx.Request.Context(), record); err != nil {
		logger.GetDefault().ErrorWithContext(ctx.Request.Context(), "failed to upsert payment record", err,
			map[string]interface{}{"payment_id": payload.PaymentID})
		return
	}
	if err := wc.records.MarkProcessed(ctx.Request.Context(), payload.PaymentID, status, payload.Status); err != nil {
		logger.GetDefault().ErrorWithContext(ctx.Request.Context(), "failed to update payment record", err,
			map[string]interface{}{"payment_id": payload.PaymentID})
	}
}
