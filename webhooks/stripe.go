package webhooks

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/cineo-ai/cineo-api/credits"
	"github.com/cineo-ai/cineo-api/internal/apperr"
	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
	"gorm.io/gorm"
)

type Handler struct {
	DB     *gorm.DB
	Ledger *credits.Ledger
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{DB: db, Ledger: credits.NewLedger(db)}
}

// HandleStripeWebhook processes incoming Stripe webhook events
func (h *Handler) HandleStripeWebhook(c *gin.Context) {
	// Read the request body
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	// Get Stripe signature from headers
	signatureHeader := c.GetHeader("Stripe-Signature")

	// Verify webhook signature
	webhookSecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	event, err := webhook.ConstructEvent(payload, signatureHeader, webhookSecret)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid webhook signature"})
		return
	}

	// Handle specific event types
	switch event.Type {
	case "checkout.session.completed":
		h.handleCheckoutCompleted(event)
	default:
		fmt.Printf("Unhandled event type: %s\n", event.Type)
	}

	// Return 200 OK to acknowledge receipt
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// handleCheckoutCompleted credits a purchased credit pack to the buyer.
// The checkout session's metadata carries the user id and pack size, set
// when the session was created.
func (h *Handler) handleCheckoutCompleted(event stripe.Event) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		fmt.Printf("Error parsing checkout session: %v\n", err)
		return
	}

	if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		fmt.Printf("Checkout session %s not paid, ignoring\n", session.ID)
		return
	}

	userID, err := strconv.ParseUint(session.Metadata["user_id"], 10, 64)
	if err != nil {
		fmt.Printf("Checkout session %s missing user_id metadata\n", session.ID)
		return
	}
	pack, err := strconv.ParseInt(session.Metadata["credit_pack"], 10, 64)
	if err != nil || pack <= 0 {
		fmt.Printf("Checkout session %s has no valid credit_pack metadata\n", session.ID)
		return
	}

	if err := h.Ledger.Credit(uint(userID), pack); err != nil {
		if apperr.IsPersistence(err) {
			fmt.Printf("Error crediting user %d for session %s: %v\n", userID, session.ID, err)
		} else {
			// Validation failure: the metadata names a user that does not
			// exist. Nothing to retry.
			fmt.Printf("Ignoring credit for unknown user %d (session %s)\n", userID, session.ID)
		}
		return
	}
	fmt.Printf("Credited %d credits to user %d (session %s)\n", pack, userID, session.ID)
}
