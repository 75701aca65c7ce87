package router

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	validator "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/patric-chuzhbe/recipebook/internal/auth"
	"github.com/patric-chuzhbe/recipebook/internal/gzippedhttp"
	"github.com/patric-chuzhbe/recipebook/internal/logger"
	"github.com/patric-chuzhbe/recipebook/internal/models"
	"github.com/patric-chuzhbe/recipebook/internal/service"
	"github.com/patric-chuzhbe/recipebook/internal/upload"
)

type recipeService interface {
	Ping(ctx context.Context) error

	ListRecipes(ctx context.Context) ([]models.Recipe, error)

	GetRecipe(ctx context.Context, id string) (*models.Recipe, error)

	CreateRecipe(ctx context.Context, userID string, input models.RecipeInput, image *string) (*models.Recipe, error)

	UpdateRecipe(ctx context.Context, userID, id string, input models.RecipeInput, image *string) (*models.Recipe, error)

	DeleteRecipe(ctx context.Context, userID, id string) error

	DiscardImage(image *string)
}

type favoritesService interface {
	AddFavorite(ctx context.Context, userID, recipeID string) ([]string, error)

	RemoveFavorite(ctx context.Context, userID, recipeID string) ([]string, error)

	GetFavorites(ctx context.Context, userID string) ([]models.Recipe, error)
}

type accountService interface {
	Register(ctx context.Context, request models.RegisterRequest) (models.UserSummary, error)

	Login(ctx context.Context, request models.LoginRequest) (models.LoginResponse, error)
}

type appService interface {
	recipeService
	favoritesService
	accountService
}

type authenticator interface {
	AuthenticateUser(h http.Handler) http.Handler
}

type imageUploader interface {
	Single(field string) func(http.Handler) http.Handler
}

// Router holds the HTTP handlers of the service.
type Router struct {
	service  appService
	validate *validator.Validate
}

type initOptions struct {
	corsAllowedOrigins []string
	authLimiter        func(http.Handler) http.Handler
	images             http.Handler
}

// InitOption configures New.
type InitOption func(*initOptions)

// WithCORSAllowedOrigins sets the origins allowed by the CORS stage.
func WithCORSAllowedOrigins(origins []string) InitOption {
	return func(options *initOptions) {
		options.corsAllowedOrigins = origins
	}
}

// WithAuthLimiter puts limiter in front of the account endpoints.
func WithAuthLimiter(limiter func(http.Handler) http.Handler) InitOption {
	return func(options *initOptions) {
		options.authLimiter = limiter
	}
}

// WithImages serves uploaded images with images under /uploads/.
func WithImages(images http.Handler) InitOption {
	return func(options *initOptions) {
		options.images = images
	}
}

// New builds the chi router with the full middleware pipeline.
func New(
	svc appService,
	authMiddleware authenticator,
	uploader imageUploader,
	optionsProto ...InitOption,
) *chi.Mux {
	options := &initOptions{
		corsAllowedOrigins: []string{"*"},
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	r := &Router{
		service:  svc,
		validate: validator.New(),
	}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(logger.WithLoggingHTTPMiddleware)
	router.Use(middleware.Recoverer)
	router.Use(gzippedhttp.UngzipRequest)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: options.corsAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	router.Use(middleware.Compress(5, "application/json"))

	router.Get("/ping", r.GetPing)

	if options.images != nil {
		router.Handle(upload.PublicPrefix+"*", http.StripPrefix("/uploads", options.images))
	}

	router.Route("/api/auth", func(sub chi.Router) {
		if options.authLimiter != nil {
			sub.Use(options.authLimiter)
		}
		sub.Post("/register", r.PostRegister)
		sub.Post("/login", r.PostLogin)
	})

	router.Route("/api/recipes", func(sub chi.Router) {
		sub.Get("/", r.GetRecipes)
		sub.Get("/{id}", r.GetRecipe)
		sub.With(authMiddleware.AuthenticateUser, uploader.Single("image")).Post("/", r.PostRecipe)
		sub.With(authMiddleware.AuthenticateUser, uploader.Single("image")).Put("/{id}", r.PutRecipe)
		sub.With(authMiddleware.AuthenticateUser).Delete("/{id}", r.DeleteRecipe)
	})

	router.Route("/api/favorites", func(sub chi.Router) {
		sub.Use(authMiddleware.AuthenticateUser)
		sub.Post("/add", r.PostFavoritesAdd)
		sub.Post("/remove", r.PostFavoritesRemove)
		sub.Get("/", r.GetFavorites)
	})

	return router
}

func writeJSON(response http.ResponseWriter, status int, body any) {
	response.Header().Set("Content-Type", "application/json")
	response.WriteHeader(status)
	if err := json.NewEncoder(response).Encode(body); err != nil {
		logger.Log.Debugln("Error calling the `json.NewEncoder().Encode()`: ", zap.Error(err))
	}
}

func writeMessage(response http.ResponseWriter, status int, message string) {
	writeJSON(response, status, models.MessageResponse{Message: message})
}

func writeError(response http.ResponseWriter, status int, message string) {
	writeJSON(response, status, models.ErrorResponse{Error: message})
}

// decodeJSONBody decodes a JSON body into dst, rejecting unknown fields.
// An empty body leaves dst untouched.
func decodeJSONBody(request *http.Request, dst any) error {
	decoder := json.NewDecoder(request.Body)
	decoder.DisallowUnknownFields()
	err := decoder.Decode(dst)
	if errors.Is(err, io.EOF) {
		return nil
	}

	return err
}

func (r *Router) GetPing(response http.ResponseWriter, request *http.Request) {
	if err := r.service.Ping(request.Context()); err != nil {
		logger.Log.Debugln("Error calling the `r.service.Ping()`: ", zap.Error(err))
		response.WriteHeader(http.StatusInternalServerError)
		return
	}

	response.WriteHeader(http.StatusOK)
}

var errUnknownField = errors.New("unknown form field")

var recipeFormFields = map[string]bool{
	"title":        true,
	"description":  true,
	"ingredients":  true,
	"instructions": true,
}

// decodeRecipeInput reads the recipe fields from a multipart or urlencoded
// form, or from a JSON body.
func decodeRecipeInput(request *http.Request) (models.RecipeInput, error) {
	var input models.RecipeInput

	mediaType, _, _ := mime.ParseMediaType(request.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data", "application/x-www-form-urlencoded":
		if err := request.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			return input, err
		}
		for field := range request.PostForm {
			if !recipeFormFields[field] {
				return input, errUnknownField
			}
		}
		input.Title = request.PostFormValue("title")
		input.Description = request.PostFormValue("description")
		input.Ingredients = request.PostFormValue("ingredients")
		input.Instructions = request.PostFormValue("instructions")
	default:
		if err := decodeJSONBody(request, &input); err != nil {
			return input, err
		}
	}

	return input, nil
}

func (r *Router) readRecipeInput(response http.ResponseWriter, request *http.Request) (models.RecipeInput, bool) {
	input, err := decodeRecipeInput(request)
	if err != nil {
		logger.Log.Debugln("Error calling the `decodeRecipeInput()`: ", zap.Error(err))
		r.service.DiscardImage(uploadedImage(request))
		writeMessage(response, http.StatusBadRequest, "Invalid request body")
		return input, false
	}

	if err := r.validate.Struct(input); err != nil {
		logger.Log.Debugln("Error calling the `r.validate.Struct()`: ", zap.Error(err))
		r.service.DiscardImage(uploadedImage(request))
		writeMessage(response, http.StatusBadRequest, "Invalid request body")
		return input, false
	}

	return input, true
}

func uploadedImage(request *http.Request) *string {
	file, ok := upload.FromContext(request.Context())
	if !ok {
		return nil
	}

	path := file.Path

	return &path
}

func (r *Router) GetRecipes(response http.ResponseWriter, request *http.Request) {
	recipes, err := r.service.ListRecipes(request.Context())
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.ListRecipes()`: ", zap.Error(err))
		writeMessage(response, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(response, http.StatusOK, recipes)
}

func (r *Router) GetRecipe(response http.ResponseWriter, request *http.Request) {
	recipe, err := r.service.GetRecipe(request.Context(), chi.URLParam(request, "id"))
	if errors.Is(err, models.ErrNotFound) {
		writeMessage(response, http.StatusNotFound, "Recipe not found")
		return
	}
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.GetRecipe()`: ", zap.Error(err))
		writeMessage(response, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(response, http.StatusOK, recipe)
}

func (r *Router) PostRecipe(response http.ResponseWriter, request *http.Request) {
	input, ok := r.readRecipeInput(response, request)
	if !ok {
		return
	}

	userID, _ := auth.UserIDFromContext(request.Context())
	recipe, err := r.service.CreateRecipe(request.Context(), userID, input, uploadedImage(request))
	switch {
	case errors.Is(err, service.ErrUnauthenticated):
		writeMessage(response, http.StatusUnauthorized, "Unauthorized - Please log in again")
		return
	case errors.Is(err, models.ErrInvalidIngredients):
		writeMessage(response, http.StatusBadRequest, "Invalid ingredients format")
		return
	case err != nil:
		logger.Log.Debugln("Error calling the `r.service.CreateRecipe()`: ", zap.Error(err))
		writeMessage(response, http.StatusInternalServerError, "Server error while adding recipe")
		return
	}

	writeJSON(response, http.StatusCreated, models.RecipeResponse{
		Message: "Recipe added successfully",
		Recipe:  recipe,
	})
}

// writeOwnedRecipeError answers the failures shared by update and delete.
func writeOwnedRecipeError(response http.ResponseWriter, err error, action, serverErrorMessage string) {
	switch {
	case errors.Is(err, models.ErrInvalidID):
		writeMessage(response, http.StatusBadRequest, "Invalid Recipe ID")
	case errors.Is(err, models.ErrNotFound):
		writeMessage(response, http.StatusNotFound, "Recipe not found")
	case errors.Is(err, models.ErrForbidden):
		writeMessage(response, http.StatusForbidden, "Not authorized to "+action+" this recipe")
	case errors.Is(err, models.ErrInvalidIngredients):
		writeMessage(response, http.StatusBadRequest, "Invalid ingredients format")
	default:
		logger.Log.Debugln("Error calling the service to "+action+" a recipe: ", zap.Error(err))
		writeMessage(response, http.StatusInternalServerError, serverErrorMessage)
	}
}

func (r *Router) PutRecipe(response http.ResponseWriter, request *http.Request) {
	input, ok := r.readRecipeInput(response, request)
	if !ok {
		return
	}

	userID, _ := auth.UserIDFromContext(request.Context())
	recipe, err := r.service.UpdateRecipe(
		request.Context(),
		userID,
		chi.URLParam(request, "id"),
		input,
		uploadedImage(request),
	)
	if err != nil {
		writeOwnedRecipeError(response, err, "update", "Server error while updating recipe")
		return
	}

	writeJSON(response, http.StatusOK, models.RecipeResponse{
		Message: "Recipe updated successfully",
		Recipe:  recipe,
	})
}

func (r *Router) DeleteRecipe(response http.ResponseWriter, request *http.Request) {
	userID, _ := auth.UserIDFromContext(request.Context())
	err := r.service.DeleteRecipe(request.Context(), userID, chi.URLParam(request, "id"))
	if err != nil {
		writeOwnedRecipeError(response, err, "delete", "Server error while deleting recipe")
		return
	}

	writeMessage(response, http.StatusOK, "Recipe deleted successfully")
}

func (r *Router) readFavoriteRequest(response http.ResponseWriter, request *http.Request) (models.FavoriteRequest, bool) {
	var body models.FavoriteRequest
	if err := decodeJSONBody(request, &body); err != nil {
		logger.Log.Debugln("Error calling the `decodeJSONBody()`: ", zap.Error(err))
		writeError(response, http.StatusBadRequest, "Invalid request body")
		return body, false
	}

	if err := r.validate.Struct(body); err != nil {
		writeError(response, http.StatusBadRequest, "recipeId is required")
		return body, false
	}

	return body, true
}

func (r *Router) PostFavoritesAdd(response http.ResponseWriter, request *http.Request) {
	body, ok := r.readFavoriteRequest(response, request)
	if !ok {
		return
	}

	userID, _ := auth.UserIDFromContext(request.Context())
	favorites, err := r.service.AddFavorite(request.Context(), userID, body.RecipeID)
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.AddFavorite()`: ", zap.Error(err))
		writeError(response, http.StatusInternalServerError, "Error adding to favorites")
		return
	}

	writeJSON(response, http.StatusOK, models.FavoritesResponse{Success: true, Favorites: favorites})
}

func (r *Router) PostFavoritesRemove(response http.ResponseWriter, request *http.Request) {
	body, ok := r.readFavoriteRequest(response, request)
	if !ok {
		return
	}

	userID, _ := auth.UserIDFromContext(request.Context())
	favorites, err := r.service.RemoveFavorite(request.Context(), userID, body.RecipeID)
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.RemoveFavorite()`: ", zap.Error(err))
		writeError(response, http.StatusInternalServerError, "Error removing from favorites")
		return
	}

	writeJSON(response, http.StatusOK, models.FavoritesResponse{Success: true, Favorites: favorites})
}

func (r *Router) GetFavorites(response http.ResponseWriter, request *http.Request) {
	userID, _ := auth.UserIDFromContext(request.Context())
	recipes, err := r.service.GetFavorites(request.Context(), userID)
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.GetFavorites()`: ", zap.Error(err))
		writeError(response, http.StatusInternalServerError, "Error fetching favorites")
		return
	}

	writeJSON(response, http.StatusOK, recipes)
}

func (r *Router) PostRegister(response http.ResponseWriter, request *http.Request) {
	var body models.RegisterRequest
	if err := decodeJSONBody(request, &body); err != nil {
		logger.Log.Debugln("Error calling the `decodeJSONBody()`: ", zap.Error(err))
		writeMessage(response, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := r.validate.Struct(body); err != nil {
		logger.Log.Debugln("Error calling the `r.validate.Struct()`: ", zap.Error(err))
		writeMessage(response, http.StatusBadRequest, "Invalid registration data")
		return
	}

	summary, err := r.service.Register(request.Context(), body)
	if errors.Is(err, models.ErrEmailTaken) {
		writeMessage(response, http.StatusConflict, "User already exists")
		return
	}
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.Register()`: ", zap.Error(err))
		writeMessage(response, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(response, http.StatusCreated, models.RegisterResponse{
		Message: "User registered successfully",
		User:    summary,
	})
}

func (r *Router) PostLogin(response http.ResponseWriter, request *http.Request) {
	var body models.LoginRequest
	if err := decodeJSONBody(request, &body); err != nil {
		logger.Log.Debugln("Error calling the `decodeJSONBody()`: ", zap.Error(err))
		writeMessage(response, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := r.validate.Struct(body); err != nil {
		logger.Log.Debugln("Error calling the `r.validate.Struct()`: ", zap.Error(err))
		writeMessage(response, http.StatusBadRequest, "Invalid login data")
		return
	}

	result, err := r.service.Login(request.Context(), body)
	if errors.Is(err, models.ErrInvalidCredentials) {
		writeMessage(response, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		logger.Log.Debugln("Error calling the `r.service.Login()`: ", zap.Error(err))
		writeMessage(response, http.StatusInternalServerError, "Server error")
		return
	}

	writeJSON(response, http.StatusOK, result)
}
