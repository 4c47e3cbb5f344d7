package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/amirphl/viewiq/models"
	"gorm.io/gorm"
)

// CustomerRepositoryImpl implements CustomerRepository interface
type CustomerRepositoryImpl struct {
	*BaseRepository[models.Customer, models.CustomerFilter]
}

// NewCustomerRepository creates a new customer repository
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &CustomerRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Customer, models.CustomerFilter](db),
	}
}

func (r *CustomerRepositoryImpl) first(ctx context.Context, column string, value any) (*models.Customer, error) {
	var row models.Customer
	err := r.getDB(ctx).Where(column+" = ?", value).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find customer: %w", err)
	}
	return &row, nil
}

// ByUserID retrieves the customer linked to a user
func (r *CustomerRepositoryImpl) ByUserID(ctx context.Context, userID uint) (*models.Customer, error) {
	return r.first(ctx, "user_id", userID)
}

// ByStripeCustomerID retrieves a customer by its processor id
func (r *CustomerRepositoryImpl) ByStripeCustomerID(ctx context.Context, stripeCustomerID string) (*models.Customer, error) {
	return r.first(ctx, "stripe_customer_id", stripeCustomerID)
}

// Upsert creates or refreshes a customer keyed by its processor id
func (r *CustomerRepositoryImpl) Upsert(ctx context.Context, customer *models.Customer) error {
	columns := []string{"email", "updated_at"}
	if customer.UserID != nil {
		columns = append(columns, "user_id")
	}
	return r.write(ctx, func(db *gorm.DB) error {
		return db.Clauses(onConflictUpdate("stripe_customer_id", columns...)).Create(customer).Error
	})
}

// PlanRepositoryImpl implements PlanRepository interface
type PlanRepositoryImpl struct {
	*BaseRepository[models.Plan, models.PlanFilter]
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *gorm.DB) PlanRepository {
	return &PlanRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Plan, models.PlanFilter](db),
	}
}

// ByStripePlanID retrieves a plan by its processor id
func (r *PlanRepositoryImpl) ByStripePlanID(ctx context.Context, stripePlanID string) (*models.Plan, error) {
	rows, err := r.ByFilter(ctx, models.PlanFilter{StripePlanID: &stripePlanID}, "", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Upsert creates or refreshes a plan keyed by its processor id
func (r *PlanRepositoryImpl) Upsert(ctx context.Context, plan *models.Plan) error {
	return r.write(ctx, func(db *gorm.DB) error {
		return db.Clauses(onConflictUpdate("stripe_plan_id",
			"name", "stripe_product_id", "amount", "currency", "interval", "active", "updated_at",
		)).Create(plan).Error
	})
}

func (r *PlanRepositoryImpl) applyFilter(query *gorm.DB, filter models.PlanFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.StripePlanID != nil {
		query = query.Where("stripe_plan_id = ?", *filter.StripePlanID)
	}
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}
	return query
}

// ByFilter retrieves plans based on filter criteria
func (r *PlanRepositoryImpl) ByFilter(ctx context.Context, filter models.PlanFilter, orderBy string, limit, offset int) ([]*models.Plan, error) {
	if orderBy == "" {
		orderBy = "amount ASC, id ASC"
	}
	query := paginate(r.applyFilter(r.getDB(ctx).Model(&models.Plan{}), filter), orderBy, limit, offset)
	var rows []*models.Plan
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of plans matching filter
func (r *PlanRepositoryImpl) Count(ctx context.Context, filter models.PlanFilter) (int64, error) {
	var count int64
	if err := r.applyFilter(r.getDB(ctx).Model(&models.Plan{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Exists checks if any plan matches the filter
func (r *PlanRepositoryImpl) Exists(ctx context.Context, filter models.PlanFilter) (bool, error) {
	count, err := r.Count(ctx, filter)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// SubscriptionRepositoryImpl implements SubscriptionRepository interface
type SubscriptionRepositoryImpl struct {
	*BaseRepository[models.Subscription, models.SubscriptionFilter]
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB) SubscriptionRepository {
	return &SubscriptionRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Subscription, models.SubscriptionFilter](db),
	}
}

// ByStripeSubscriptionID retrieves a subscription by its processor id
func (r *SubscriptionRepositoryImpl) ByStripeSubscriptionID(ctx context.Context, id string) (*models.Subscription, error) {
	var row models.Subscription
	err := r.getDB(ctx).Preload("Plan").Where("stripe_subscription_id = ?", id).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription %s: %w", id, err)
	}
	return &row, nil
}

// LatestByUserID retrieves the most recently created subscription of a user
func (r *SubscriptionRepositoryImpl) LatestByUserID(ctx context.Context, userID uint) (*models.Subscription, error) {
	var row models.Subscription
	err := r.getDB(ctx).Preload("Plan").Where("user_id = ?", userID).Order("created_at DESC, id DESC").First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find subscription for user %d: %w", userID, err)
	}
	return &row, nil
}

// Upsert creates or refreshes a subscription keyed by its processor id
func (r *SubscriptionRepositoryImpl) Upsert(ctx context.Context, sub *models.Subscription) error {
	columns := []string{
		"stripe_customer_id", "plan_id", "status", "current_period_end",
		"cancel_at_period_end", "canceled_at", "updated_at",
	}
	if sub.UserID != nil {
		columns = append(columns, "user_id")
	}
	return r.write(ctx, func(db *gorm.DB) error {
		return db.Omit("Plan").Clauses(onConflictUpdate("stripe_subscription_id", columns...)).Create(sub).Error
	})
}

// Count returns number of subscriptions matching filter
func (r *SubscriptionRepositoryImpl) Count(ctx context.Context, filter models.SubscriptionFilter) (int64, error) {
	query := r.getDB(ctx).Model(&models.Subscription{})
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.StripeCustomerID != nil {
		query = query.Where("stripe_customer_id = ?", *filter.StripeCustomerID)
	}
	if filter.StripeSubscriptionID != nil {
		query = query.Where("stripe_subscription_id = ?", *filter.StripeSubscriptionID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// WebhookEventRepositoryImpl implements WebhookEventRepository interface
type WebhookEventRepositoryImpl struct {
	*BaseRepository[models.WebhookEvent, models.WebhookEventFilter]
}

// NewWebhookEventRepository creates a new webhook event repository
func NewWebhookEventRepository(db *gorm.DB) WebhookEventRepository {
	return &WebhookEventRepositoryImpl{
		BaseRepository: NewBaseRepository[models.WebhookEvent, models.WebhookEventFilter](db),
	}
}

// InsertIfAbsent stores the event unless an event with the same processor id exists
func (r *WebhookEventRepositoryImpl) InsertIfAbsent(ctx context.Context, event *models.WebhookEvent) (*models.WebhookEvent, bool, error) {
	var created bool
	err := r.write(ctx, func(db *gorm.DB) error {
		res := db.Clauses(onConflictDoNothing("stripe_event_id")).Create(event)
		created = res.RowsAffected > 0
		return res.Error
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to store webhook event: %w", err)
	}
	if created {
		return event, true, nil
	}

	var row models.WebhookEvent
	if err := r.getDB(ctx).Where("stripe_event_id = ?", event.StripeEventID).First(&row).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load webhook event %s: %w", event.StripeEventID, err)
	}
	return &row, false, nil
}

// Update persists the processing outcome of an event
func (r *WebhookEventRepositoryImpl) Update(ctx context.Context, event *models.WebhookEvent) error {
	return r.write(ctx, func(db *gorm.DB) error {
		return db.Model(event).Select("valid", "processed", "processed_at", "error", "updated_at").Updates(event).Error
	})
}
