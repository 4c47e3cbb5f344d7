package testing

import (
	"fmt"
	"math/rand"

	"github.com/amirphl/viewiq/models"
	"golang.org/x/crypto/bcrypt"
)

// TestPassword is the plain-text password of every fixture user
const TestPassword = "TestPass123!"

// TestFixtures provides helper methods for creating test data
type TestFixtures struct {
	DB *TestDB
}

// NewTestFixtures creates a new test fixtures instance
func NewTestFixtures(db *TestDB) *TestFixtures {
	return &TestFixtures{DB: db}
}

// CreateTestUser creates an active user holding the named seeded roles
func (tf *TestFixtures) CreateTestUser(roleNames ...string) (*models.User, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Email:        fmt.Sprintf("john.doe.%09d@example.com", rand.Intn(1000000000)),
		PasswordHash: string(hashed),
		FirstName:    "John",
		LastName:     "Doe",
		Domain:       "viewiq",
		IsActive:     true,
	}
	if err := tf.DB.DB.Create(user).Error; err != nil {
		return nil, fmt.Errorf("failed to create test user: %w", err)
	}

	if len(roleNames) > 0 {
		var roles []models.Role
		if err := tf.DB.DB.Where("name IN ?", roleNames).Find(&roles).Error; err != nil {
			return nil, fmt.Errorf("failed to load roles: %w", err)
		}
		if err := tf.DB.DB.Model(user).Association("Roles").Append(&roles); err != nil {
			return nil, fmt.Errorf("failed to assign roles: %w", err)
		}
	}
	return user, nil
}

// CreateTestCategory creates a bad word category with a unique name
func (tf *TestFixtures) CreateTestCategory(excluded bool) (*models.BadWordCategory, error) {
	category := &models.BadWordCategory{
		Name:     fmt.Sprintf("Category %06d", rand.Intn(1000000)),
		Excluded: excluded,
	}
	if err := tf.DB.DB.Create(category).Error; err != nil {
		return nil, fmt.Errorf("failed to create test category: %w", err)
	}
	return category, nil
}
