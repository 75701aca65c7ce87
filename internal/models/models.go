// Package models holds the recipe record, the request schemas accepted by the
// HTTP layer and the error values shared between storage backends and handlers.
package models

import (
	"encoding/json"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Recipe is a stored recipe. User is the id of the owner and never changes
// after creation.
type Recipe struct {
	ID           string   `json:"_id"`
	Title        string   `json:"title"`
	Description  string   `json:"description"`
	Ingredients  []string `json:"ingredients"`
	Instructions string   `json:"instructions"`
	Image        *string  `json:"image"`
	User         string   `json:"user"`
}

// RecipeInput is the schema of the create and update endpoints. Every field is
// optional; on update an empty value means "keep the stored one".
// Ingredients arrive as a JSON-encoded array of strings.
type RecipeInput struct {
	Title        string `json:"title" validate:"max=200"`
	Description  string `json:"description" validate:"max=2000"`
	Ingredients  string `json:"ingredients" validate:"max=20000"`
	Instructions string `json:"instructions" validate:"max=20000"`
}

// FavoriteRequest is the body of the add/remove favorites endpoints.
type FavoriteRequest struct {
	RecipeID string `json:"recipeId" validate:"required"`
}

type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// MessageResponse is the body of every non-favorites error and of the delete endpoint.
type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type RecipeResponse struct {
	Message string  `json:"message"`
	Recipe  *Recipe `json:"recipe"`
}

type FavoritesResponse struct {
	Success   bool     `json:"success"`
	Favorites []string `json:"favorites"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  UserSummary `json:"user"`
}

type RegisterResponse struct {
	Message string      `json:"message"`
	User    UserSummary `json:"user"`
}

// UserSummary is the public part of a user record.
type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

const (
	StorageTypeUnknown = iota
	StorageTypeMongo
	StorageTypePostgresql
	StorageTypeFile
	StorageTypeMemory
)

var (
	ErrInvalidID          = errors.New("invalid id")
	ErrNotFound           = errors.New("not found")
	ErrForbidden          = errors.New("not the owner of the recipe")
	ErrEmailTaken         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidIngredients = errors.New("ingredients must be a JSON array of strings")
)

// NewID returns a fresh identifier in ObjectID hex form. Every backend uses it
// so ids stay interchangeable between storages.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// IsValidID reports whether id is a 24 character hex ObjectID.
func IsValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

// ParseIngredients decodes the serialized ingredients field.
func ParseIngredients(raw string) ([]string, error) {
	var ingredients []string
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &ingredients); err != nil {
		return nil, ErrInvalidIngredients
	}
	if ingredients == nil {
		ingredients = []string{}
	}

	return ingredients, nil
}
