package jsondb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/patric-chuzhbe/recipebook/internal/models"
	"github.com/patric-chuzhbe/recipebook/internal/user"
)

func TestPersistsAcrossReopen(t *testing.T) {
	fileName := filepath.Join(t.TempDir(), "db_test.json")
	ctx := context.Background()

	theStorage, err := New(fileName)
	require.NoError(t, err)

	userID, err := theStorage.CreateUser(ctx, &user.User{Name: "Ann", Email: "ann@example.com"})
	require.NoError(t, err)

	recipe := &models.Recipe{Title: "Soup", Ingredients: []string{"water", "salt"}, User: userID}
	require.NoError(t, theStorage.CreateRecipe(ctx, recipe))
	require.True(t, models.IsValidID(recipe.ID))

	_, err = theStorage.AddFavorite(ctx, userID, recipe.ID)
	require.NoError(t, err)
	require.NoError(t, theStorage.Close())

	reopened, err := New(fileName)
	require.NoError(t, err)

	stored, err := reopened.GetRecipe(ctx, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, recipe, stored)

	usr, err := reopened.GetUserByEmail(ctx, "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{recipe.ID}, usr.Favorites)
}

func TestRecipes(t *testing.T) {
	ctx := context.Background()
	theStorage, err := New(filepath.Join(t.TempDir(), "db_test.json"))
	require.NoError(t, err)

	first := &models.Recipe{Title: "First", User: models.NewID()}
	second := &models.Recipe{Title: "Second", User: models.NewID()}
	require.NoError(t, theStorage.CreateRecipe(ctx, first))
	require.NoError(t, theStorage.CreateRecipe(ctx, second))

	all, err := theStorage.ListRecipes(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "First", all[0].Title)
	assert.Equal(t, "Second", all[1].Title)

	t.Run("update keeps the owner", func(t *testing.T) {
		changed := *first
		changed.Title = "Changed"
		changed.User = models.NewID()
		require.NoError(t, theStorage.UpdateRecipe(ctx, &changed))

		stored, err := theStorage.GetRecipe(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, "Changed", stored.Title)
		assert.Equal(t, first.User, stored.User)
	})

	t.Run("returned records are copies", func(t *testing.T) {
		stored, err := theStorage.GetRecipe(ctx, second.ID)
		require.NoError(t, err)
		stored.Title = "mutated"

		again, err := theStorage.GetRecipe(ctx, second.ID)
		require.NoError(t, err)
		assert.Equal(t, "Second", again.Title)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, theStorage.DeleteRecipe(ctx, second.ID))
		_, err := theStorage.GetRecipe(ctx, second.ID)
		assert.ErrorIs(t, err, models.ErrNotFound)
		assert.ErrorIs(t, theStorage.DeleteRecipe(ctx, second.ID), models.ErrNotFound)

		resolved, err := theStorage.GetRecipesByIDs(ctx, []string{second.ID, first.ID})
		require.NoError(t, err)
		require.Len(t, resolved, 1)
		assert.Equal(t, first.ID, resolved[0].ID)
	})
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	theStorage, err := New(filepath.Join(t.TempDir(), "db_test.json"))
	require.NoError(t, err)

	userID, err := theStorage.CreateUser(ctx, &user.User{Email: "bob@example.com"})
	require.NoError(t, err)

	_, err = theStorage.CreateUser(ctx, &user.User{Email: "bob@example.com"})
	assert.ErrorIs(t, err, models.ErrEmailTaken)

	_, err = theStorage.GetUserByID(ctx, models.NewID())
	assert.ErrorIs(t, err, models.ErrNotFound)

	recipeID := models.NewID()
	favorites, err := theStorage.AddFavorite(ctx, userID, recipeID)
	require.NoError(t, err)
	favorites, err = theStorage.AddFavorite(ctx, userID, recipeID)
	require.NoError(t, err)
	assert.Equal(t, []string{recipeID}, favorites)

	_, err = theStorage.AddFavorite(ctx, userID, "not-an-id")
	assert.ErrorIs(t, err, models.ErrInvalidID)

	favorites, err = theStorage.RemoveFavorite(ctx, userID, models.NewID())
	require.NoError(t, err)
	assert.Equal(t, []string{recipeID}, favorites)

	favorites, err = theStorage.RemoveFavorite(ctx, userID, recipeID)
	require.NoError(t, err)
	assert.Empty(t, favorites)
}
