package businessflow

import (
	"bytes"
	"testing"

	"github.com/amirphl/viewiq/app/dto"
	"github.com/amirphl/viewiq/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBadWordFixture() (BadWordFlow, *fakeWordRepo) {
	categories := &fakeCategoryRepo{rows: []*models.BadWordCategory{
		{ID: 1, Name: "Violence"},
		{ID: 2, Name: "Profanity"},
	}}
	words := &fakeWordRepo{}
	return NewBadWordFlow(categories, words), words
}

func TestCreateBadWord(t *testing.T) {
	flow, _ := newBadWordFixture()
	ctx := asUser(1, models.CapabilityBSTECreate, models.CapabilityBSTERead)

	t.Run("CategoryByNameAndDefaultScore", func(t *testing.T) {
		resp, err := flow.CreateBadWord(ctx, &dto.BadWordRequest{Name: "  Gore ", Category: "violence", Language: "EN"})
		require.NoError(t, err)
		assert.Equal(t, "Gore", resp.Name)
		assert.Equal(t, uint(1), resp.CategoryID)
		assert.Equal(t, "Violence", resp.Category)
		assert.Equal(t, "en", resp.Language)
		assert.Equal(t, models.MinNegativeScore, resp.NegativeScore)
	})

	t.Run("DuplicateIgnoresCaseAndSpacing", func(t *testing.T) {
		_, err := flow.CreateBadWord(ctx, &dto.BadWordRequest{Name: "GORE", Category: "1", Language: "en"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateBadWord)
	})

	t.Run("SameWordOtherLanguage", func(t *testing.T) {
		_, err := flow.CreateBadWord(ctx, &dto.BadWordRequest{Name: "gore", Category: "1", Language: "de"})
		require.NoError(t, err)
	})

	t.Run("UnknownCategory", func(t *testing.T) {
		_, err := flow.CreateBadWord(ctx, &dto.BadWordRequest{Name: "x", Category: "Nope"})
		assert.Equal(t, "Category 'Nope' does not exist.", validationMessage(t, err))
	})

	t.Run("RequiresCapability", func(t *testing.T) {
		_, err := flow.CreateBadWord(asUser(2, models.CapabilityBSTERead), &dto.BadWordRequest{Name: "x", Category: "1"})
		assert.ErrorIs(t, err, ErrForbidden)
	})
}

func TestDeleteBadWord_FreesNaturalKey(t *testing.T) {
	flow, words := newBadWordFixture()
	ctx := asUser(1, models.CapabilityBSTECreate, models.CapabilityBSTEDelete, models.CapabilityBSTERead)
	score := 3

	created, err := flow.CreateBadWord(ctx, &dto.BadWordRequest{Name: "Scam", Category: "2", Language: "en", NegativeScore: &score})
	require.NoError(t, err)

	require.NoError(t, flow.DeleteBadWord(ctx, created.ID))
	err = flow.DeleteBadWord(ctx, created.ID)
	assert.ErrorIs(t, err, ErrBadWordNotFound)

	_, err = flow.GetBadWord(ctx, created.ID)
	assert.ErrorIs(t, err, ErrBadWordNotFound)

	again, err := flow.CreateBadWord(ctx, &dto.BadWordRequest{Name: "scam", Category: "Profanity", Language: "en"})
	require.NoError(t, err)
	assert.NotEqual(t, created.ID, again.ID)

	// the deleted row is kept
	assert.Len(t, words.rows, 2)
}

func TestUpdateBadWord(t *testing.T) {
	flow, _ := newBadWordFixture()
	ctx := asUser(1, models.CapabilityBSTECreate)

	first, err := flow.CreateBadWord(ctx, &dto.BadWordRequest{Name: "blood", Category: "1", Language: "en"})
	require.NoError(t, err)
	second, err := flow.CreateBadWord(ctx, &dto.BadWordRequest{Name: "gore", Category: "1", Language: "en"})
	require.NoError(t, err)

	t.Run("CollisionRejected", func(t *testing.T) {
		name := "Blood"
		_, err := flow.UpdateBadWord(ctx, second.ID, &dto.UpdateBadWordRequest{Name: &name})
		assert.ErrorIs(t, err, ErrDuplicateBadWord)
	})

	t.Run("MoveCategoryAndScore", func(t *testing.T) {
		category := "Profanity"
		score := 4
		resp, err := flow.UpdateBadWord(ctx, first.ID, &dto.UpdateBadWordRequest{Category: &category, NegativeScore: &score})
		require.NoError(t, err)
		assert.Equal(t, uint(2), resp.CategoryID)
		assert.Equal(t, "Profanity", resp.Category)
		assert.Equal(t, 4, resp.NegativeScore)
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := flow.UpdateBadWord(ctx, 999, &dto.UpdateBadWordRequest{})
		assert.ErrorIs(t, err, ErrBadWordNotFound)
	})
}

func TestExportBadWords(t *testing.T) {
	flow, _ := newBadWordFixture()
	ctx := asUser(1, models.CapabilityBSTECreate, models.CapabilityBSTEDelete, models.CapabilityBSTEExport)

	_, err := flow.CreateBadWord(ctx, &dto.BadWordRequest{Name: "gore", Category: "1", Language: "en"})
	require.NoError(t, err)
	deleted, err := flow.CreateBadWord(ctx, &dto.BadWordRequest{Name: "damn", Category: "Profanity", Language: "en"})
	require.NoError(t, err)
	require.NoError(t, flow.DeleteBadWord(ctx, deleted.ID))

	var buf bytes.Buffer
	require.NoError(t, flow.ExportBadWords(ctx, &buf))
	assert.Equal(t, "Name,Category,Language,Score\ngore,Violence,en,1\n", buf.String())

	err = flow.ExportBadWords(asUser(2, models.CapabilityBSTERead), &bytes.Buffer{})
	assert.ErrorIs(t, err, ErrForbidden)
}
