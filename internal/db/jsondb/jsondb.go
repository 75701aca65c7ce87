// Package jsondb is a storage backend that keeps users and recipes in memory
// and persists them as one JSON document when closed.
package jsondb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/thoas/go-funk"

	"github.com/patric-chuzhbe/recipebook/internal/models"
	"github.com/patric-chuzhbe/recipebook/internal/user"
)

// JSONDB is the file-backed store. All methods are safe for concurrent use.
type JSONDB struct {
	mu       sync.RWMutex
	fileName string
	Cache    CacheStruct
}

// CacheStruct is the persisted document.
type CacheStruct struct {
	Recipes     map[string]*models.Recipe
	RecipeOrder []string
	Users       map[string]*user.User
}

// NewCache returns an empty document.
func NewCache() CacheStruct {
	return CacheStruct{
		Recipes:     map[string]*models.Recipe{},
		RecipeOrder: []string{},
		Users:       map[string]*user.User{},
	}
}

func initDBFile(fileName string) error {
	return writeToJSONFile(fileName, NewCache())
}

func writeToJSONFile(fileName string, cache interface{}) error {
	jsonData, err := json.MarshalIndent(cache, "", "\t")
	if err != nil {
		return fmt.Errorf("error marshaling JSON: %w", err)
	}

	file, err := os.OpenFile(fileName, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("error opening file: %w", err)
	}
	defer file.Close()

	_, err = file.Write(jsonData)
	if err != nil {
		return fmt.Errorf("error writing to file: %w", err)
	}

	return nil
}

func parseJSONFile(fileName string, cache *CacheStruct) error {
	file, err := os.Open(fileName)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(cache)
}

// New opens fileName, creating an empty document if it does not exist.
func New(fileName string) (*JSONDB, error) {
	db := &JSONDB{
		fileName: fileName,
		Cache:    NewCache(),
	}

	err := parseJSONFile(db.fileName, &db.Cache)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		if err := initDBFile(fileName); err != nil {
			return nil, err
		}
	}
	applyMissing(&db.Cache, NewCache())

	return db, nil
}

func applyMissing(dst *CacheStruct, empty CacheStruct) {
	if dst.Recipes == nil {
		dst.Recipes = empty.Recipes
	}
	if dst.Users == nil {
		dst.Users = empty.Users
	}
	if dst.RecipeOrder == nil {
		dst.RecipeOrder = empty.RecipeOrder
	}
}

// Ping always succeeds.
func (db *JSONDB) Ping(ctx context.Context) error {
	return nil
}

// Close flushes the document to disk.
func (db *JSONDB) Close() error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	return writeToJSONFile(db.fileName, db.Cache)
}

func copyRecipe(recipe *models.Recipe) *models.Recipe {
	result := *recipe
	result.Ingredients = append([]string{}, recipe.Ingredients...)
	if recipe.Image != nil {
		image := *recipe.Image
		result.Image = &image
	}

	return &result
}

func copyUser(usr *user.User) *user.User {
	result := *usr
	result.Favorites = append([]string{}, usr.Favorites...)

	return &result
}

// ListRecipes returns every recipe in creation order.
func (db *JSONDB) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := make([]models.Recipe, 0, len(db.Cache.RecipeOrder))
	for _, id := range db.Cache.RecipeOrder {
		if recipe, ok := db.Cache.Recipes[id]; ok {
			result = append(result, *copyRecipe(recipe))
		}
	}

	return result, nil
}

// GetRecipe returns models.ErrNotFound for unknown ids.
func (db *JSONDB) GetRecipe(ctx context.Context, id string) (*models.Recipe, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	recipe, ok := db.Cache.Recipes[id]
	if !ok {
		return nil, models.ErrNotFound
	}

	return copyRecipe(recipe), nil
}

// GetRecipesByIDs resolves ids in order, silently skipping unknown ones.
func (db *JSONDB) GetRecipesByIDs(ctx context.Context, ids []string) ([]models.Recipe, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	result := make([]models.Recipe, 0, len(ids))
	for _, id := range ids {
		if recipe, ok := db.Cache.Recipes[id]; ok {
			result = append(result, *copyRecipe(recipe))
		}
	}

	return result, nil
}

// CreateRecipe stores recipe under a new id and writes the id back into it.
func (db *JSONDB) CreateRecipe(ctx context.Context, recipe *models.Recipe) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	recipe.ID = models.NewID()
	db.Cache.Recipes[recipe.ID] = copyRecipe(recipe)
	db.Cache.RecipeOrder = append(db.Cache.RecipeOrder, recipe.ID)

	return nil
}

// UpdateRecipe overwrites the mutable fields of a stored recipe. The owner is kept.
func (db *JSONDB) UpdateRecipe(ctx context.Context, recipe *models.Recipe) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	stored, ok := db.Cache.Recipes[recipe.ID]
	if !ok {
		return models.ErrNotFound
	}

	updated := copyRecipe(recipe)
	updated.User = stored.User
	db.Cache.Recipes[recipe.ID] = updated

	return nil
}

// DeleteRecipe removes a recipe. Favorites pointing at it are left dangling.
func (db *JSONDB) DeleteRecipe(ctx context.Context, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.Cache.Recipes[id]; !ok {
		return models.ErrNotFound
	}
	delete(db.Cache.Recipes, id)
	db.Cache.RecipeOrder = funk.Filter(db.Cache.RecipeOrder, func(recipeID string) bool {
		return recipeID != id
	}).([]string)

	return nil
}

// CreateUser stores usr and returns its new id. Emails are unique.
func (db *JSONDB) CreateUser(ctx context.Context, usr *user.User) (string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.Cache.Users {
		if existing.Email == usr.Email {
			return "", models.ErrEmailTaken
		}
	}

	stored := copyUser(usr)
	stored.ID = models.NewID()
	db.Cache.Users[stored.ID] = stored

	return stored.ID, nil
}

// GetUserByID returns models.ErrNotFound for unknown ids.
func (db *JSONDB) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	usr, ok := db.Cache.Users[userID]
	if !ok {
		return nil, models.ErrNotFound
	}

	return copyUser(usr), nil
}

// GetUserByEmail returns models.ErrNotFound when no user has that email.
func (db *JSONDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	for _, usr := range db.Cache.Users {
		if usr.Email == email {
			return copyUser(usr), nil
		}
	}

	return nil, models.ErrNotFound
}

// AddFavorite appends recipeID to the user's favorites unless it is already there.
func (db *JSONDB) AddFavorite(ctx context.Context, userID, recipeID string) ([]string, error) {
	if !models.IsValidID(recipeID) {
		return nil, models.ErrInvalidID
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	usr, ok := db.Cache.Users[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	if !funk.ContainsString(usr.Favorites, recipeID) {
		usr.Favorites = append(usr.Favorites, recipeID)
	}

	return append([]string{}, usr.Favorites...), nil
}

// RemoveFavorite drops recipeID from the user's favorites; absent ids are a no-op.
func (db *JSONDB) RemoveFavorite(ctx context.Context, userID, recipeID string) ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	usr, ok := db.Cache.Users[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	usr.Favorites = funk.Filter(usr.Favorites, func(id string) bool {
		return id != recipeID
	}).([]string)

	return append([]string{}, usr.Favorites...), nil
}
