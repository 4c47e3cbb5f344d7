package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/app/services"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/amirphl/viewiq/utils"
	"github.com/stripe/stripe-go/v81"
)

// PaymentFlow handles plans, subscriptions and Stripe webhooks
type PaymentFlow interface {
	ListPlans(ctx context.Context) ([]dto.PlanResponse, error)
	CurrentSubscription(ctx context.Context) (*dto.SubscriptionResponse, error)
	CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest, metadata *ClientMetadata) (*dto.SubscriptionResponse, error)
	Webhook(ctx context.Context, payload []byte, signature string) (*dto.WebhookResponse, error)
}

// webhookHandler syncs the local mirror for one event type and returns the user to notify
type webhookHandler func(ctx context.Context, evt *stripe.Event) (notify *models.User, message string, err error)

// PaymentFlowImpl implements the payment business flow
type PaymentFlowImpl struct {
	gateway      services.PaymentGateway
	userRepo     repository.UserRepository
	customerRepo repository.CustomerRepository
	planRepo     repository.PlanRepository
	subRepo      repository.SubscriptionRepository
	eventRepo    repository.WebhookEventRepository
	notifier     services.NotificationService
	handlers     map[string]webhookHandler
}

// NewPaymentFlow creates a new payment flow instance
func NewPaymentFlow(
	gateway services.PaymentGateway,
	userRepo repository.UserRepository,
	customerRepo repository.CustomerRepository,
	planRepo repository.PlanRepository,
	subRepo repository.SubscriptionRepository,
	eventRepo repository.WebhookEventRepository,
	notifier services.NotificationService,
) PaymentFlow {
	p := &PaymentFlowImpl{
		gateway:      gateway,
		userRepo:     userRepo,
		customerRepo: customerRepo,
		planRepo:     planRepo,
		subRepo:      subRepo,
		eventRepo:    eventRepo,
		notifier:     notifier,
	}
	p.handlers = map[string]webhookHandler{
		"customer.created":              p.handleCustomer,
		"customer.updated":              p.handleCustomer,
		"customer.subscription.created": p.handleSubscription,
		"customer.subscription.updated": p.handleSubscription,
		"customer.subscription.deleted": p.handleSubscription,
		"plan.created":                  p.handlePlan,
		"plan.updated":                  p.handlePlan,
		"plan.deleted":                  p.handlePlan,
		"price.created":                 p.handlePrice,
		"price.updated":                 p.handlePrice,
		"price.deleted":                 p.handlePrice,
		"invoice.payment_succeeded":     p.handleInvoice,
		"invoice.payment_failed":        p.handleInvoice,
	}
	return p
}

func toPlanResponse(plan *models.Plan) *dto.PlanResponse {
	return &dto.PlanResponse{
		ID:           plan.ID,
		Name:         plan.Name,
		StripePlanID: utils.Deref(plan.StripePlanID),
		Amount:       plan.Amount,
		Currency:     plan.Currency,
		Interval:     plan.Interval,
	}
}

func toSubscriptionResponse(sub *models.Subscription) *dto.SubscriptionResponse {
	resp := &dto.SubscriptionResponse{
		ID:                   sub.ID,
		StripeSubscriptionID: sub.StripeSubscriptionID,
		Status:               string(sub.Status),
		CurrentPeriodEnd:     sub.CurrentPeriodEnd,
		CancelAtPeriodEnd:    sub.CancelAtPeriodEnd,
	}
	if sub.Plan != nil {
		resp.Plan = toPlanResponse(sub.Plan)
	}
	return resp
}

func (p *PaymentFlowImpl) ListPlans(ctx context.Context) ([]dto.PlanResponse, error) {
	active := true
	plans, err := p.planRepo.ByFilter(ctx, models.PlanFilter{Active: &active}, "", 0, 0)
	if err != nil {
		return nil, internal("PLAN_LIST_FAILED", "Failed to list plans", err)
	}
	out := make([]dto.PlanResponse, 0, len(plans))
	for _, plan := range plans {
		out = append(out, *toPlanResponse(plan))
	}
	return out, nil
}

func (p *PaymentFlowImpl) CurrentSubscription(ctx context.Context) (*dto.SubscriptionResponse, error) {
	caller, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	sub, err := p.subRepo.LatestByUserID(ctx, caller.ID)
	if err != nil {
		return nil, internal("SUBSCRIPTION_LOOKUP_FAILED", "Failed to load subscription", err)
	}
	if sub == nil {
		return nil, notFound("SUBSCRIPTION_NOT_FOUND", "No subscription found", ErrSubscriptionNotFound)
	}
	return toSubscriptionResponse(sub), nil
}

// processorError turns a Stripe API error into a 400 carrying the processor's body
func processorError(err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		be := NewBusinessError("PAYMENT_PROCESSOR_ERROR", stripeErr.Msg, ErrPaymentProcessor)
		be.Details = stripeErr
		return be
	}
	return internal("PAYMENT_FAILED", "Payment processor request failed", err)
}

// CreateSubscription subscribes the caller, creating the Stripe customer on first use
func (p *PaymentFlowImpl) CreateSubscription(ctx context.Context, req *dto.CreateSubscriptionRequest, metadata *ClientMetadata) (*dto.SubscriptionResponse, error) {
	caller, err := currentUser(ctx)
	if err != nil {
		return nil, err
	}
	plan, err := p.planRepo.ByID(ctx, req.PlanID)
	if err != nil {
		return nil, internal("PLAN_LOOKUP_FAILED", "Failed to load plan", err)
	}
	if plan == nil || !plan.Active || plan.StripePlanID == nil {
		return nil, NewBusinessError("PLAN_NOT_FOUND", "Plan not found", ErrPlanNotFound)
	}
	user, err := p.userRepo.ByID(ctx, caller.ID)
	if err != nil || user == nil {
		return nil, internal("USER_LOOKUP_FAILED", "Failed to load user", err)
	}

	customer, err := p.customerRepo.ByUserID(ctx, user.ID)
	if err != nil {
		return nil, internal("CUSTOMER_LOOKUP_FAILED", "Failed to load customer", err)
	}
	if customer == nil {
		sc, err := p.gateway.CreateCustomer(ctx, user.ID, user.Email, user.FullName())
		if err != nil {
			return nil, processorError(err)
		}
		customer = &models.Customer{UserID: &user.ID, StripeCustomerID: sc.ID, Email: user.Email}
		if err := p.customerRepo.Upsert(ctx, customer); err != nil {
			return nil, internal("CUSTOMER_SAVE_FAILED", "Failed to save customer", err)
		}
	}

	ss, err := p.gateway.CreateSubscription(ctx, customer.StripeCustomerID, *plan.StripePlanID, req.PaymentMethod)
	if err != nil {
		slog.WarnContext(ctx, "stripe subscription failed", append([]any{"user_id", user.ID, "error", err}, metadata.logAttrs()...)...)
		return nil, processorError(err)
	}
	sub, err := p.syncSubscription(ctx, ss, &user.ID)
	if err != nil {
		return nil, internal("SUBSCRIPTION_SAVE_FAILED", "Failed to save subscription", err)
	}
	sub.Plan = plan
	slog.InfoContext(ctx, "subscription created",
		append([]any{"user_id", user.ID, "subscription", ss.ID, "status", ss.Status}, metadata.logAttrs()...)...)
	return toSubscriptionResponse(sub), nil
}

func unixTime(sec int64) *time.Time {
	if sec == 0 {
		return nil
	}
	t := time.Unix(sec, 0).UTC()
	return &t
}

// syncSubscription upserts the mirror and points the user's plan at the subscribed plan
func (p *PaymentFlowImpl) syncSubscription(ctx context.Context, ss *stripe.Subscription, userID *uint) (*models.Subscription, error) {
	sub := &models.Subscription{
		UserID:               userID,
		StripeSubscriptionID: ss.ID,
		Status:               models.SubscriptionStatus(ss.Status),
		CurrentPeriodEnd:     unixTime(ss.CurrentPeriodEnd),
		CancelAtPeriodEnd:    ss.CancelAtPeriodEnd,
		CanceledAt:           unixTime(ss.CanceledAt),
		UpdatedAt:            utils.UTCNow(),
	}
	if ss.Customer != nil {
		sub.StripeCustomerID = ss.Customer.ID
	}
	if ss.Items != nil && len(ss.Items.Data) > 0 && ss.Items.Data[0].Price != nil {
		plan, err := p.planRepo.ByStripePlanID(ctx, ss.Items.Data[0].Price.ID)
		if err != nil {
			return nil, err
		}
		if plan != nil {
			sub.PlanID = &plan.ID
		}
	}
	if err := p.subRepo.Upsert(ctx, sub); err != nil {
		return nil, err
	}

	if userID == nil {
		return sub, nil
	}
	user, err := p.userRepo.ByID(ctx, *userID)
	if err != nil || user == nil {
		return sub, err
	}
	if sub.IsActive() {
		user.PlanID = sub.PlanID
	} else if sub.Status == models.SubscriptionStatusCanceled {
		user.PlanID = nil
	}
	return sub, p.userRepo.Update(ctx, user)
}

// Webhook stores the event, re-fetches it from Stripe and applies it when both copies match
func (p *PaymentFlowImpl) Webhook(ctx context.Context, payload []byte, signature string) (*dto.WebhookResponse, error) {
	if err := p.gateway.VerifyWebhook(payload, signature); err != nil {
		return nil, NewBusinessError("INVALID_WEBHOOK", "Invalid webhook signature", ErrInvalidWebhook)
	}
	var evt stripe.Event
	if err := json.Unmarshal(payload, &evt); err != nil || evt.ID == "" {
		return nil, NewBusinessError("INVALID_WEBHOOK", "Invalid webhook payload", ErrInvalidWebhook)
	}

	stored, _, err := p.eventRepo.InsertIfAbsent(ctx, &models.WebhookEvent{
		StripeEventID: evt.ID,
		Type:          string(evt.Type),
		Payload:       payload,
	})
	if err != nil {
		return nil, internal("WEBHOOK_STORE_FAILED", "Failed to store webhook", err)
	}
	resp := &dto.WebhookResponse{EventID: evt.ID, Valid: stored.Valid, Processed: stored.Processed}
	if stored.Processed {
		return resp, nil
	}

	remote, err := p.gateway.RetrieveEvent(ctx, evt.ID)
	if err != nil {
		p.finishEvent(ctx, stored, false, fmt.Errorf("retrieve event: %w", err))
		return resp, nil
	}
	stored.Valid = sameEventData(&evt, remote)
	resp.Valid = stored.Valid
	if !stored.Valid {
		slog.WarnContext(ctx, "webhook data does not match the processor copy", "event_id", evt.ID, "type", evt.Type)
		p.finishEvent(ctx, stored, false, errors.New("event data mismatch"))
		return resp, nil
	}

	handler, ok := p.handlers[string(remote.Type)]
	if !ok {
		slog.InfoContext(ctx, "ignoring unhandled webhook", "event_id", evt.ID, "type", remote.Type)
		p.finishEvent(ctx, stored, true, nil)
		resp.Processed = true
		return resp, nil
	}
	notify, message, err := handler(ctx, remote)
	if err != nil {
		slog.ErrorContext(ctx, "webhook handler failed", "event_id", evt.ID, "type", remote.Type, "error", err)
		p.finishEvent(ctx, stored, false, err)
		return nil, internal("WEBHOOK_PROCESSING_FAILED", "Failed to process webhook", err)
	}
	p.finishEvent(ctx, stored, true, nil)
	resp.Processed = true

	if notify != nil && message != "" {
		if err := p.notifier.SendPaymentNotification(ctx, notify.Email, string(remote.Type), message); err != nil {
			slog.WarnContext(ctx, "failed to send payment notification", "event_id", evt.ID, "error", err)
		}
	}
	return resp, nil
}

func sameEventData(local, remote *stripe.Event) bool {
	if remote == nil || local.Data == nil || remote.Data == nil || local.Type != remote.Type {
		return false
	}
	return reflect.DeepEqual(local.Data.Object, remote.Data.Object)
}

func (p *PaymentFlowImpl) finishEvent(ctx context.Context, stored *models.WebhookEvent, processed bool, cause error) {
	stored.Processed = processed
	stored.UpdatedAt = utils.UTCNow()
	if processed {
		stored.ProcessedAt = utils.UTCNowPtr()
	}
	if cause != nil {
		stored.Error = utils.ToPtr(cause.Error())
	} else {
		stored.Error = nil
	}
	if err := p.eventRepo.Update(ctx, stored); err != nil {
		slog.ErrorContext(ctx, "failed to update webhook event", "event_id", stored.StripeEventID, "error", err)
	}
}

func decodeEventObject(evt *stripe.Event, dst any) error {
	if evt.Data == nil {
		return errors.New("event has no data")
	}
	return json.Unmarshal(evt.Data.Raw, dst)
}

// userForCustomer resolves the user behind a Stripe customer id
func (p *PaymentFlowImpl) userForCustomer(ctx context.Context, stripeCustomerID string) (*models.User, error) {
	if stripeCustomerID == "" {
		return nil, nil
	}
	customer, err := p.customerRepo.ByStripeCustomerID(ctx, stripeCustomerID)
	if err != nil || customer == nil || customer.UserID == nil {
		return nil, err
	}
	return p.userRepo.ByID(ctx, *customer.UserID)
}

func (p *PaymentFlowImpl) handleCustomer(ctx context.Context, evt *stripe.Event) (*models.User, string, error) {
	var sc stripe.Customer
	if err := decodeEventObject(evt, &sc); err != nil {
		return nil, "", err
	}
	customer := &models.Customer{StripeCustomerID: sc.ID, Email: sc.Email, UpdatedAt: utils.UTCNow()}
	if raw, ok := sc.Metadata["user_id"]; ok {
		if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
			customer.UserID = utils.ToPtr(uint(id))
		}
	}
	return nil, "", p.customerRepo.Upsert(ctx, customer)
}

func (p *PaymentFlowImpl) handleSubscription(ctx context.Context, evt *stripe.Event) (*models.User, string, error) {
	var ss stripe.Subscription
	if err := decodeEventObject(evt, &ss); err != nil {
		return nil, "", err
	}
	var user *models.User
	if ss.Customer != nil {
		var err error
		if user, err = p.userForCustomer(ctx, ss.Customer.ID); err != nil {
			return nil, "", err
		}
	}
	var userID *uint
	if user != nil {
		userID = &user.ID
	}
	if _, err := p.syncSubscription(ctx, &ss, userID); err != nil {
		return nil, "", err
	}

	switch evt.Type {
	case "customer.subscription.created":
		return user, "Your subscription has been created.", nil
	case "customer.subscription.deleted":
		return user, "Your subscription has been cancelled.", nil
	default:
		return nil, "", nil
	}
}

func planName(nickname, fallback string) string {
	if strings.TrimSpace(nickname) != "" {
		return nickname
	}
	return fallback
}

func (p *PaymentFlowImpl) handlePlan(ctx context.Context, evt *stripe.Event) (*models.User, string, error) {
	var sp stripe.Plan
	if err := decodeEventObject(evt, &sp); err != nil {
		return nil, "", err
	}
	plan := &models.Plan{
		Name:         planName(sp.Nickname, sp.ID),
		StripePlanID: utils.ToPtr(sp.ID),
		Amount:       sp.Amount,
		Currency:     string(sp.Currency),
		Interval:     string(sp.Interval),
		Active:       sp.Active && evt.Type != "plan.deleted",
		UpdatedAt:    utils.UTCNow(),
	}
	if sp.Product != nil {
		plan.StripeProductID = sp.Product.ID
	}
	return nil, "", p.planRepo.Upsert(ctx, plan)
}

func (p *PaymentFlowImpl) handlePrice(ctx context.Context, evt *stripe.Event) (*models.User, string, error) {
	var price stripe.Price
	if err := decodeEventObject(evt, &price); err != nil {
		return nil, "", err
	}
	if price.Recurring == nil {
		return nil, "", nil
	}
	plan := &models.Plan{
		Name:         planName(price.Nickname, price.ID),
		StripePlanID: utils.ToPtr(price.ID),
		Amount:       price.UnitAmount,
		Currency:     string(price.Currency),
		Interval:     string(price.Recurring.Interval),
		Active:       price.Active && evt.Type != "price.deleted",
		UpdatedAt:    utils.UTCNow(),
	}
	if price.Product != nil {
		plan.StripeProductID = price.Product.ID
	}
	return nil, "", p.planRepo.Upsert(ctx, plan)
}

func (p *PaymentFlowImpl) handleInvoice(ctx context.Context, evt *stripe.Event) (*models.User, string, error) {
	var inv stripe.Invoice
	if err := decodeEventObject(evt, &inv); err != nil {
		return nil, "", err
	}
	if inv.Customer == nil {
		return nil, "", nil
	}
	user, err := p.userForCustomer(ctx, inv.Customer.ID)
	if err != nil || user == nil {
		return nil, "", err
	}
	amount := fmt.Sprintf("%.2f %s", float64(inv.AmountDue)/100, strings.ToUpper(string(inv.Currency)))
	if evt.Type == "invoice.payment_failed" {
		return user, fmt.Sprintf("Your payment of %s failed. Please update your payment method.", amount), nil
	}
	return user, fmt.Sprintf("Your payment of %s was received. Thank you.", amount), nil
}
