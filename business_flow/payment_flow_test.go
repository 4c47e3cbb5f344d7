package businessflow

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/amirphl/viewiq/app/services"
	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v81"
)

const invoiceFailedPayload = `{"id":"evt_1","object":"event","type":"invoice.payment_failed",` +
	`"data":{"object":{"id":"in_1","object":"invoice","customer":"cus_1","amount_due":1999,"currency":"usd"}}}`

type fakeGateway struct {
	services.PaymentGateway
	remote    string
	retrieved int
}

func (g *fakeGateway) VerifyWebhook(_ []byte, signature string) error {
	if signature == "bad" {
		return errors.New("signature mismatch")
	}
	return nil
}

func (g *fakeGateway) RetrieveEvent(context.Context, string) (*stripe.Event, error) {
	g.retrieved++
	var evt stripe.Event
	if err := json.Unmarshal([]byte(g.remote), &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}

type fakeEventRepo struct {
	repository.WebhookEventRepository
	rows map[string]*models.WebhookEvent
}

func (r *fakeEventRepo) InsertIfAbsent(_ context.Context, e *models.WebhookEvent) (*models.WebhookEvent, bool, error) {
	if existing, ok := r.rows[e.StripeEventID]; ok {
		return existing, false, nil
	}
	r.rows[e.StripeEventID] = e
	return e, true, nil
}

func (r *fakeEventRepo) Update(context.Context, *models.WebhookEvent) error { return nil }

type fakeCustomers struct {
	repository.CustomerRepository
	byStripeID map[string]*models.Customer
}

func (r *fakeCustomers) ByStripeCustomerID(_ context.Context, id string) (*models.Customer, error) {
	return r.byStripeID[id], nil
}

type paymentUsers struct {
	repository.UserRepository
	user *models.User
}

func (r paymentUsers) ByID(_ context.Context, id uint) (*models.User, error) {
	if r.user != nil && r.user.ID == id {
		return r.user, nil
	}
	return nil, nil
}

type sentNotification struct {
	email, eventType, message string
}

type fakeNotifier struct {
	services.NotificationService
	sent []sentNotification
}

func (n *fakeNotifier) SendPaymentNotification(_ context.Context, email, eventType, message string) error {
	n.sent = append(n.sent, sentNotification{email, eventType, message})
	return nil
}

type paymentFixture struct {
	flow     PaymentFlow
	gateway  *fakeGateway
	events   *fakeEventRepo
	notifier *fakeNotifier
}

func newPaymentFixture(remote string) *paymentFixture {
	userID := uint(5)
	f := &paymentFixture{
		gateway:  &fakeGateway{remote: remote},
		events:   &fakeEventRepo{rows: map[string]*models.WebhookEvent{}},
		notifier: &fakeNotifier{},
	}
	customers := &fakeCustomers{byStripeID: map[string]*models.Customer{
		"cus_1": {StripeCustomerID: "cus_1", UserID: &userID},
	}}
	users := paymentUsers{user: &models.User{ID: userID, Email: "billing@example.com"}}
	f.flow = NewPaymentFlow(f.gateway, users, customers, nil, nil, f.events, f.notifier)
	return f
}

func TestWebhook_InvoiceFailedNotifiesCustomer(t *testing.T) {
	fx := newPaymentFixture(invoiceFailedPayload)
	ctx := context.Background()

	resp, err := fx.flow.Webhook(ctx, []byte(invoiceFailedPayload), "sig")
	require.NoError(t, err)
	assert.Equal(t, "evt_1", resp.EventID)
	assert.True(t, resp.Valid)
	assert.True(t, resp.Processed)

	require.Len(t, fx.notifier.sent, 1)
	assert.Equal(t, "billing@example.com", fx.notifier.sent[0].email)
	assert.Equal(t, "invoice.payment_failed", fx.notifier.sent[0].eventType)
	assert.Equal(t, "Your payment of 19.99 USD failed. Please update your payment method.", fx.notifier.sent[0].message)

	stored := fx.events.rows["evt_1"]
	require.NotNil(t, stored)
	assert.NotNil(t, stored.ProcessedAt)
	assert.Nil(t, stored.Error)

	t.Run("RedeliveryIsIgnored", func(t *testing.T) {
		resp, err := fx.flow.Webhook(ctx, []byte(invoiceFailedPayload), "sig")
		require.NoError(t, err)
		assert.True(t, resp.Processed)
		assert.Equal(t, 1, fx.gateway.retrieved)
		assert.Len(t, fx.notifier.sent, 1)
	})
}

func TestWebhook_MismatchedDataIsNotApplied(t *testing.T) {
	remote := `{"id":"evt_1","object":"event","type":"invoice.payment_failed",` +
		`"data":{"object":{"id":"in_1","object":"invoice","customer":"cus_1","amount_due":1,"currency":"usd"}}}`
	fx := newPaymentFixture(remote)

	resp, err := fx.flow.Webhook(context.Background(), []byte(invoiceFailedPayload), "sig")
	require.NoError(t, err)
	assert.False(t, resp.Valid)
	assert.False(t, resp.Processed)
	assert.Empty(t, fx.notifier.sent)

	stored := fx.events.rows["evt_1"]
	require.NotNil(t, stored.Error)
	assert.Equal(t, "event data mismatch", *stored.Error)
}

func TestWebhook_UnhandledTypeIsMarkedProcessed(t *testing.T) {
	payload := `{"id":"evt_2","object":"event","type":"charge.refunded","data":{"object":{"id":"ch_1"}}}`
	fx := newPaymentFixture(payload)

	resp, err := fx.flow.Webhook(context.Background(), []byte(payload), "")
	require.NoError(t, err)
	assert.True(t, resp.Valid)
	assert.True(t, resp.Processed)
	assert.Empty(t, fx.notifier.sent)
}

func TestWebhook_Rejected(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		signature string
	}{
		{name: "bad signature", payload: invoiceFailedPayload, signature: "bad"},
		{name: "not json", payload: "{", signature: "sig"},
		{name: "missing id", payload: `{"type":"invoice.payment_failed"}`, signature: "sig"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fx := newPaymentFixture(invoiceFailedPayload)
			_, err := fx.flow.Webhook(context.Background(), []byte(tt.payload), tt.signature)
			assert.ErrorIs(t, err, ErrInvalidWebhook)
			assert.Empty(t, fx.events.rows)
		})
	}
}
