// Package mockstorage provides a testify-based mock implementation
// of the storage interfaces used by the service package.
// It lets handler tests simulate storage failures.
package mockstorage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/patric-chuzhbe/recipebook/internal/models"
	"github.com/patric-chuzhbe/recipebook/internal/user"
)

// StorageMock is a testify mock of the recipe, user and favorites stores.
type StorageMock struct {
	mock.Mock
}

// Ping mocks the pinger interface to simulate a health check.
func (m *StorageMock) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *StorageMock) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	args := m.Called(ctx)
	recipes, _ := args.Get(0).([]models.Recipe)
	return recipes, args.Error(1)
}

func (m *StorageMock) GetRecipe(ctx context.Context, id string) (*models.Recipe, error) {
	args := m.Called(ctx, id)
	recipe, _ := args.Get(0).(*models.Recipe)
	return recipe, args.Error(1)
}

func (m *StorageMock) GetRecipesByIDs(ctx context.Context, ids []string) ([]models.Recipe, error) {
	args := m.Called(ctx, ids)
	recipes, _ := args.Get(0).([]models.Recipe)
	return recipes, args.Error(1)
}

// CreateRecipe mocks insertion. A non-empty first return value is written to recipe.ID.
func (m *StorageMock) CreateRecipe(ctx context.Context, recipe *models.Recipe) error {
	args := m.Called(ctx, recipe)
	if id, ok := args.Get(0).(string); ok && id != "" {
		recipe.ID = id
	}
	return args.Error(1)
}

func (m *StorageMock) UpdateRecipe(ctx context.Context, recipe *models.Recipe) error {
	args := m.Called(ctx, recipe)
	return args.Error(0)
}

func (m *StorageMock) DeleteRecipe(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *StorageMock) CreateUser(ctx context.Context, usr *user.User) (string, error) {
	args := m.Called(ctx, usr)
	return args.String(0), args.Error(1)
}

func (m *StorageMock) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	args := m.Called(ctx, userID)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

func (m *StorageMock) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	usr, _ := args.Get(0).(*user.User)
	return usr, args.Error(1)
}

func (m *StorageMock) AddFavorite(ctx context.Context, userID, recipeID string) ([]string, error) {
	args := m.Called(ctx, userID, recipeID)
	favorites, _ := args.Get(0).([]string)
	return favorites, args.Error(1)
}

func (m *StorageMock) RemoveFavorite(ctx context.Context, userID, recipeID string) ([]string, error) {
	args := m.Called(ctx, userID, recipeID)
	favorites, _ := args.Get(0).([]string)
	return favorites, args.Error(1)
}
