package service

import (
	"context"
	"errors"
	"strings"

	"github.com/patric-chuzhbe/recipebook/internal/auth"
	"github.com/patric-chuzhbe/recipebook/internal/models"
	"github.com/patric-chuzhbe/recipebook/internal/user"
)

type recipeKeeper interface {
	ListRecipes(ctx context.Context) ([]models.Recipe, error)

	GetRecipe(ctx context.Context, id string) (*models.Recipe, error)

	GetRecipesByIDs(ctx context.Context, ids []string) ([]models.Recipe, error)

	CreateRecipe(ctx context.Context, recipe *models.Recipe) error

	UpdateRecipe(ctx context.Context, recipe *models.Recipe) error

	DeleteRecipe(ctx context.Context, id string) error
}

type userKeeper interface {
	CreateUser(ctx context.Context, usr *user.User) (string, error)

	GetUserByID(ctx context.Context, userID string) (*user.User, error)

	GetUserByEmail(ctx context.Context, email string) (*user.User, error)
}

type favoritesKeeper interface {
	AddFavorite(ctx context.Context, userID, recipeID string) ([]string, error)

	RemoveFavorite(ctx context.Context, userID, recipeID string) ([]string, error)
}

type pinger interface {
	Ping(ctx context.Context) error
}

type storage interface {
	recipeKeeper
	userKeeper
	favoritesKeeper
	pinger
}

type tokenIssuer interface {
	BuildJWTString(userID string) (string, error)
}

type imageCleaner interface {
	EnqueueImage(imagePath string)
}

// ErrUnauthenticated is returned when an operation that needs an acting user gets none.
var ErrUnauthenticated = errors.New("no user id in the request context")

type Service struct {
	db     storage
	tokens tokenIssuer
	images imageCleaner
}

type initOptions struct {
	images imageCleaner
}

// InitOption configures New.
type InitOption func(*initOptions)

// WithImageCleaner makes the service hand images no recipe references any
// more to cleaner.
func WithImageCleaner(cleaner imageCleaner) InitOption {
	return func(options *initOptions) {
		options.images = cleaner
	}
}

func New(db storage, tokens tokenIssuer, optionsProto ...InitOption) *Service {
	options := &initOptions{}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	return &Service{
		db:     db,
		tokens: tokens,
		images: options.images,
	}
}

// DiscardImage hands an uploaded image that no recipe will reference to the
// image cleaner.
func (s *Service) DiscardImage(image *string) {
	if s.images == nil || image == nil || *image == "" {
		return
	}
	s.images.EnqueueImage(*image)
}

// Ping checks the health of the storage layer.
func (s *Service) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func (s *Service) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	recipes, err := s.db.ListRecipes(ctx)
	if err != nil {
		return nil, err
	}
	if recipes == nil {
		recipes = []models.Recipe{}
	}

	return recipes, nil
}

// GetRecipe answers models.ErrNotFound for ids that cannot exist.
func (s *Service) GetRecipe(ctx context.Context, id string) (*models.Recipe, error) {
	if !models.IsValidID(id) {
		return nil, models.ErrNotFound
	}

	return s.db.GetRecipe(ctx, id)
}

// CreateRecipe stores a recipe owned by userID. image is the stored path of
// the uploaded file, or nil.
func (s *Service) CreateRecipe(
	ctx context.Context,
	userID string,
	input models.RecipeInput,
	image *string,
) (*models.Recipe, error) {
	recipe, err := s.createRecipe(ctx, userID, input, image)
	if err != nil {
		s.DiscardImage(image)
		return nil, err
	}

	return recipe, nil
}

func (s *Service) createRecipe(
	ctx context.Context,
	userID string,
	input models.RecipeInput,
	image *string,
) (*models.Recipe, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	ingredients := []string{}
	if input.Ingredients != "" {
		parsed, err := models.ParseIngredients(input.Ingredients)
		if err != nil {
			return nil, err
		}
		ingredients = parsed
	}

	recipe := &models.Recipe{
		Title:        input.Title,
		Description:  input.Description,
		Ingredients:  ingredients,
		Instructions: input.Instructions,
		Image:        image,
		User:         userID,
	}
	if err := s.db.CreateRecipe(ctx, recipe); err != nil {
		return nil, err
	}

	return recipe, nil
}

// loadOwned returns the recipe with the given id if userID owns it.
func (s *Service) loadOwned(ctx context.Context, userID, id string) (*models.Recipe, error) {
	if !models.IsValidID(id) {
		return nil, models.ErrInvalidID
	}

	recipe, err := s.db.GetRecipe(ctx, id)
	if err != nil {
		return nil, err
	}

	if recipe.User == "" || recipe.User != userID {
		return nil, models.ErrForbidden
	}

	return recipe, nil
}

// UpdateRecipe applies a partial update: empty input fields keep the stored
// value, and the image changes only when image is not nil. The replaced file
// is kept unless an image cleaner is configured.
func (s *Service) UpdateRecipe(
	ctx context.Context,
	userID string,
	id string,
	input models.RecipeInput,
	image *string,
) (*models.Recipe, error) {
	recipe, err := s.loadOwned(ctx, userID, strings.TrimSpace(id))
	if err != nil {
		s.DiscardImage(image)
		return nil, err
	}
	previousImage := recipe.Image

	recipe, err = s.applyUpdate(ctx, recipe, input, image)
	if err != nil {
		s.DiscardImage(image)
		return nil, err
	}

	if image != nil && previousImage != nil && *previousImage != *image {
		s.DiscardImage(previousImage)
	}

	return recipe, nil
}

func (s *Service) applyUpdate(
	ctx context.Context,
	recipe *models.Recipe,
	input models.RecipeInput,
	image *string,
) (*models.Recipe, error) {
	if input.Title != "" {
		recipe.Title = input.Title
	}
	if input.Description != "" {
		recipe.Description = input.Description
	}
	if input.Ingredients != "" {
		ingredients, err := models.ParseIngredients(input.Ingredients)
		if err != nil {
			return nil, err
		}
		recipe.Ingredients = ingredients
	}
	if input.Instructions != "" {
		recipe.Instructions = input.Instructions
	}
	if image != nil {
		recipe.Image = image
	}

	if err := s.db.UpdateRecipe(ctx, recipe); err != nil {
		return nil, err
	}

	return recipe, nil
}

func (s *Service) DeleteRecipe(ctx context.Context, userID, id string) error {
	recipe, err := s.loadOwned(ctx, userID, strings.TrimSpace(id))
	if err != nil {
		return err
	}

	if err := s.db.DeleteRecipe(ctx, recipe.ID); err != nil {
		return err
	}
	s.DiscardImage(recipe.Image)

	return nil
}

func (s *Service) AddFavorite(ctx context.Context, userID, recipeID string) ([]string, error) {
	return s.db.AddFavorite(ctx, userID, recipeID)
}

func (s *Service) RemoveFavorite(ctx context.Context, userID, recipeID string) ([]string, error) {
	return s.db.RemoveFavorite(ctx, userID, recipeID)
}

// GetFavorites resolves the user's favorites to recipes. References to
// deleted recipes are skipped.
func (s *Service) GetFavorites(ctx context.Context, userID string) ([]models.Recipe, error) {
	usr, err := s.db.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	recipes, err := s.db.GetRecipesByIDs(ctx, usr.Favorites)
	if err != nil {
		return nil, err
	}
	if recipes == nil {
		recipes = []models.Recipe{}
	}

	return recipes, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func summary(usr *user.User) models.UserSummary {
	return models.UserSummary{
		ID:    usr.ID,
		Name:  usr.Name,
		Email: usr.Email,
	}
}

// Register creates an account. A taken email yields models.ErrEmailTaken.
func (s *Service) Register(ctx context.Context, request models.RegisterRequest) (models.UserSummary, error) {
	hash, err := auth.HashPassword(request.Password)
	if err != nil {
		return models.UserSummary{}, err
	}

	usr := &user.User{
		Name:         strings.TrimSpace(request.Name),
		Email:        normalizeEmail(request.Email),
		PasswordHash: hash,
		Favorites:    []string{},
	}
	usr.ID, err = s.db.CreateUser(ctx, usr)
	if err != nil {
		return models.UserSummary{}, err
	}

	return summary(usr), nil
}

// Login checks the credentials and issues a bearer token. Unknown emails and
// wrong passwords both yield models.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, request models.LoginRequest) (models.LoginResponse, error) {
	usr, err := s.db.GetUserByEmail(ctx, normalizeEmail(request.Email))
	if errors.Is(err, models.ErrNotFound) {
		return models.LoginResponse{}, models.ErrInvalidCredentials
	}
	if err != nil {
		return models.LoginResponse{}, err
	}

	if err := auth.CheckPassword(usr.PasswordHash, request.Password); err != nil {
		return models.LoginResponse{}, err
	}

	token, err := s.tokens.BuildJWTString(usr.ID)
	if err != nil {
		return models.LoginResponse{}, err
	}

	return models.LoginResponse{
		Token: token,
		User:  summary(usr),
	}, nil
}
