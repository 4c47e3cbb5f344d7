package handlers

import (
	"github.com/amirphl/viewiq/app/dto"
	businessflow "github.com/amirphl/viewiq/business_flow"
	"github.com/gofiber/fiber/v3"
)

// PaymentHandlerInterface defines the contract for plan, subscription and webhook endpoints
type PaymentHandlerInterface interface {
	ListPlans(c fiber.Ctx) error
	CurrentSubscription(c fiber.Ctx) error
	CreateSubscription(c fiber.Ctx) error
	StripeWebhook(c fiber.Ctx) error
}

// PaymentHandler handles Stripe billing
type PaymentHandler struct {
	baseHandler
	paymentFlow businessflow.PaymentFlow
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(paymentFlow businessflow.PaymentFlow) *PaymentHandler {
	return &PaymentHandler{
		baseHandler: newBaseHandler(),
		paymentFlow: paymentFlow,
	}
}

// ListPlans returns the purchasable plans
// @Summary List plans
// @Tags Payments
// @Produce json
// @Success 200 {object} dto.APIResponse{data=[]dto.PlanResponse} "Plans retrieved"
// @Router /api/v1/payments/plans [get]
func (h *PaymentHandler) ListPlans(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/payments/plans")
	defer cancel()

	result, err := h.paymentFlow.ListPlans(ctx)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Plans retrieved", result)
}

// CurrentSubscription returns the caller's subscription
// @Summary Current subscription
// @Tags Payments
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.APIResponse{data=dto.SubscriptionResponse} "Subscription retrieved"
// @Failure 404 {object} dto.APIResponse "No subscription"
// @Router /api/v1/payments/subscription [get]
func (h *PaymentHandler) CurrentSubscription(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/payments/subscription")
	defer cancel()

	result, err := h.paymentFlow.CurrentSubscription(ctx)
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Subscription retrieved", result)
}

// CreateSubscription subscribes the caller to a plan
// @Summary Create subscription
// @Description Creates the Stripe customer on first use, then the subscription. Processor errors are returned in details.
// @Tags Payments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body dto.CreateSubscriptionRequest true "Plan and payment method"
// @Success 201 {object} dto.APIResponse{data=dto.SubscriptionResponse} "Subscription created"
// @Failure 400 {object} dto.APIResponse "Unknown plan or processor error"
// @Router /api/v1/payments/subscriptions [post]
func (h *PaymentHandler) CreateSubscription(c fiber.Ctx) error {
	var req dto.CreateSubscriptionRequest
	if ok, err := h.bindJSON(c, &req); !ok {
		return err
	}

	ctx, cancel := requestContext(c, "/api/v1/payments/subscriptions")
	defer cancel()

	result, err := h.paymentFlow.CreateSubscription(ctx, &req, clientMetadata(c))
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Subscription created", result)
}

// StripeWebhook receives Stripe events
// @Summary Stripe webhook
// @Description Stores the event, confirms it against the Stripe API and applies it to the local mirrors. Replays are acknowledged without reprocessing.
// @Tags Payments
// @Accept json
// @Produce json
// @Param Stripe-Signature header string false "Stripe signature"
// @Success 200 {object} dto.APIResponse{data=dto.WebhookResponse} "Event received"
// @Failure 400 {object} dto.APIResponse "Invalid payload or signature"
// @Router /api/v1/payments/webhooks/stripe [post]
func (h *PaymentHandler) StripeWebhook(c fiber.Ctx) error {
	ctx, cancel := requestContext(c, "/api/v1/payments/webhooks/stripe")
	defer cancel()

	// the signature covers the exact bytes received
	payload := append([]byte(nil), c.Body()...)
	result, err := h.paymentFlow.Webhook(ctx, payload, c.Get("Stripe-Signature"))
	if err != nil {
		return h.HandleError(c, err)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Event received", result)
}
