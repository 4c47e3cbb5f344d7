package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	testingutil "github.com/amirphl/viewiq/testing"
	"github.com/amirphl/viewiq/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserActionRepository_Filters(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB) error {
		ctx := context.Background()
		fixtures := testingutil.NewTestFixtures(testDB)
		repo := repository.NewUserActionRepository(testDB.DB)

		john, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		jane, err := fixtures.CreateTestUser()
		require.NoError(t, err)
		require.NoError(t, testDB.DB.Model(jane).Updates(map[string]any{"first_name": "Jane", "last_name": "Roe"}).Error)

		day := func(d int) time.Time { return time.Date(2024, 1, d, 12, 0, 0, 0, time.UTC) }
		actions := []*models.UserAction{
			{UserID: john.ID, Slug: "segments", URL: "/segments/1", CreatedAt: day(1)},
			{UserID: john.ID, Slug: "ads_analyzer", URL: "/ads/analyzer", CreatedAt: day(2)},
			{UserID: jane.ID, Slug: "adsXanalyzer", URL: "/ads/other", CreatedAt: day(3)},
		}
		require.NoError(t, repo.SaveBatch(ctx, actions))

		t.Run("UsernameWordsMustAllMatch", func(t *testing.T) {
			rows, err := repo.ByFilter(ctx, models.UserActionFilter{Username: utils.ToPtr("jane roe")}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, jane.ID, rows[0].UserID)
			require.NotNil(t, rows[0].User)
			assert.Equal(t, "Jane", rows[0].User.FirstName)

			rows, err = repo.ByFilter(ctx, models.UserActionFilter{Username: utils.ToPtr("jane smith")}, "", 0, 0)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})

		t.Run("UnderscoreIsLiteral", func(t *testing.T) {
			rows, err := repo.ByFilter(ctx, models.UserActionFilter{Slug: utils.ToPtr("ads_")}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "ads_analyzer", rows[0].Slug)
		})

		t.Run("DateRangeAndOrder", func(t *testing.T) {
			from, to := day(2).Add(-time.Hour), day(3).Add(time.Hour)
			filter := models.UserActionFilter{CreatedAfter: &from, CreatedBefore: &to}
			rows, err := repo.ByFilter(ctx, filter, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 2)
			assert.Equal(t, "adsXanalyzer", rows[0].Slug)

			count, err := repo.Count(ctx, models.UserActionFilter{URL: utils.ToPtr("/ADS/")})
			require.NoError(t, err)
			assert.EqualValues(t, 2, count)
		})

		t.Run("ListByUser", func(t *testing.T) {
			rows, err := repo.ListByUser(ctx, john.ID, 1, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.Equal(t, "ads_analyzer", rows[0].Slug)
		})
		return nil
	})
}

func TestOTPVerificationRepository_Lifecycle(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB) error {
		ctx := context.Background()
		fixtures := testingutil.NewTestFixtures(testDB)
		repo := repository.NewOTPVerificationRepository(testDB.DB)

		user, err := fixtures.CreateTestUser()
		require.NoError(t, err)

		newOTP := func() *models.OTPVerification {
			otp := &models.OTPVerification{
				CorrelationID: uuid.New(),
				UserID:        user.ID,
				OTPCode:       "123456",
				Purpose:       models.OTPPurposeLogin,
				TargetValue:   user.Email,
				Status:        models.OTPStatusPending,
				MaxAttempts:   3,
				ExpiresAt:     time.Now().UTC().Add(5 * time.Minute),
			}
			require.NoError(t, repo.Save(ctx, otp))
			return otp
		}

		first := newOTP()
		expired, err := repo.ExpirePending(ctx, user.ID, models.OTPPurposeLogin)
		require.NoError(t, err)
		assert.EqualValues(t, 1, expired)

		second := newOTP()
		attempts, err := repo.RecordFailedAttempt(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, attempts)

		now := time.Now().UTC()
		ok, err := repo.Transition(ctx, second.ID, models.OTPStatusPending, models.OTPStatusUsed, now)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = repo.Transition(ctx, second.ID, models.OTPStatusPending, models.OTPStatusUsed, now)
		require.NoError(t, err)
		assert.False(t, ok)

		got, err := repo.ByCorrelationID(ctx, first.CorrelationID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, models.OTPStatusExpired, got.Status)

		got, err = repo.ByCorrelationID(ctx, second.CorrelationID)
		require.NoError(t, err)
		assert.Equal(t, models.OTPStatusUsed, got.Status)
		assert.NotNil(t, got.VerifiedAt)

		missing, err := repo.ByCorrelationID(ctx, uuid.New())
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	})
}
