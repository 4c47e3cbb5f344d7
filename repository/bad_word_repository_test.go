package repository_test

import (
	"context"
	"errors"
	"testing"

	"github.com/amirphl/viewiq/models"
	"github.com/amirphl/viewiq/repository"
	testingutil "github.com/amirphl/viewiq/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withDB(t *testing.T, fn func(*testingutil.TestDB) error) {
	t.Helper()
	err := testingutil.TestWithDB(fn)
	if errors.Is(err, testingutil.ErrDatabaseUnavailable) {
		t.Skipf("skipping: %v", err)
	}
	require.NoError(t, err)
}

func TestBadWordRepository_SoftDelete(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB) error {
		ctx := context.Background()
		fixtures := testingutil.NewTestFixtures(testDB)
		repo := repository.NewBadWordRepository(testDB.DB)

		category, err := fixtures.CreateTestCategory(false)
		require.NoError(t, err)

		t.Run("DeletedWordIsHiddenButKept", func(t *testing.T) {
			word := &models.BadWord{Name: "Gore", CategoryID: category.ID, Language: "en", NegativeScore: 3}
			require.NoError(t, repo.Save(ctx, word))
			assert.Equal(t, "gore", word.NormalizedName)

			deleted, err := repo.Delete(ctx, word.ID)
			require.NoError(t, err)
			assert.True(t, deleted)

			got, err := repo.ByID(ctx, word.ID)
			require.NoError(t, err)
			assert.Nil(t, got)

			rows, err := repo.ByFilter(ctx, models.BadWordFilter{ID: &word.ID, IncludeDeleted: true}, "", 0, 0)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			assert.True(t, rows[0].DeletedAt.Valid)
		})

		t.Run("DeletedKeyCanBeReused", func(t *testing.T) {
			first := &models.BadWord{Name: "Violence", CategoryID: category.ID, Language: "en", NegativeScore: 2}
			require.NoError(t, repo.Save(ctx, first))

			dup := &models.BadWord{Name: "  VIOLENCE ", CategoryID: category.ID, Language: "en", NegativeScore: 2}
			err := repo.Save(ctx, dup)
			require.Error(t, err)
			assert.True(t, repository.IsDuplicate(err))

			_, err = repo.Delete(ctx, first.ID)
			require.NoError(t, err)

			again := &models.BadWord{Name: "violence", CategoryID: category.ID, Language: "en", NegativeScore: 4}
			require.NoError(t, repo.Save(ctx, again))
			assert.NotEqual(t, first.ID, again.ID)
		})

		t.Run("SecondDeleteReportsNothing", func(t *testing.T) {
			word := &models.BadWord{Name: "Scam", CategoryID: category.ID, NegativeScore: 1}
			require.NoError(t, repo.Save(ctx, word))

			deleted, err := repo.Delete(ctx, word.ID)
			require.NoError(t, err)
			assert.True(t, deleted)

			deleted, err = repo.Delete(ctx, word.ID)
			require.NoError(t, err)
			assert.False(t, deleted)
		})

		t.Run("ClearAllTables", func(t *testing.T) {
			require.NoError(t, testDB.ClearAllTables())

			rows, err := repo.ByFilter(ctx, models.BadWordFilter{IncludeDeleted: true}, "", 0, 0)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})

		return nil
	})
}

func TestUserRepository_RolesAndCapabilities(t *testing.T) {
	withDB(t, func(testDB *testingutil.TestDB) error {
		ctx := context.Background()
		fixtures := testingutil.NewTestFixtures(testDB)
		repo := repository.NewUserRepository(testDB.DB)

		user, err := fixtures.CreateTestUser("admin")
		require.NoError(t, err)

		loaded, err := repo.ByIDWithRoles(ctx, user.ID)
		require.NoError(t, err)
		require.NotNil(t, loaded)
		require.Len(t, loaded.Roles, 1)
		assert.True(t, loaded.Capabilities().Has(models.CapabilityAdmin))

		byEmail, err := repo.ByEmail(ctx, user.Email)
		require.NoError(t, err)
		require.NotNil(t, byEmail)
		assert.Equal(t, user.ID, byEmail.ID)

		missing, err := repo.ByEmail(ctx, "nobody@example.com")
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	})
}
