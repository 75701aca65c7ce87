// Package mongodb is the document-database storage backend. Users and recipes
// live in two collections; favorites are an array of recipe ObjectIDs on the
// user document, changed with $addToSet and $pull.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/patric-chuzhbe/recipebook/internal/models"
	"github.com/patric-chuzhbe/recipebook/internal/user"
)

const (
	usersCollection   = "users"
	recipesCollection = "recipes"
)

type recipeDocument struct {
	ID           primitive.ObjectID `bson:"_id"`
	Title        string             `bson:"title"`
	Description  string             `bson:"description"`
	Ingredients  []string           `bson:"ingredients"`
	Instructions string             `bson:"instructions"`
	Image        *string            `bson:"image"`
	User         primitive.ObjectID `bson:"user"`
	CreatedAt    time.Time          `bson:"createdAt"`
}

type userDocument struct {
	ID        primitive.ObjectID   `bson:"_id"`
	Name      string               `bson:"name"`
	Email     string               `bson:"email"`
	Password  string               `bson:"password"`
	Favorites []primitive.ObjectID `bson:"favorites"`
	CreatedAt time.Time            `bson:"createdAt"`
}

func (d *recipeDocument) toModel() models.Recipe {
	ingredients := d.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}

	return models.Recipe{
		ID:           d.ID.Hex(),
		Title:        d.Title,
		Description:  d.Description,
		Ingredients:  ingredients,
		Instructions: d.Instructions,
		Image:        d.Image,
		User:         d.User.Hex(),
	}
}

func (d *userDocument) toModel() *user.User {
	return &user.User{
		ID:           d.ID.Hex(),
		Name:         d.Name,
		Email:        d.Email,
		PasswordHash: d.Password,
		Favorites:    hexIDs(d.Favorites),
	}
}

func hexIDs(ids []primitive.ObjectID) []string {
	result := make([]string, 0, len(ids))
	for _, id := range ids {
		result = append(result, id.Hex())
	}

	return result
}

// MongoDB is a store over one MongoDB database.
type MongoDB struct {
	client            *mongo.Client
	users             *mongo.Collection
	recipes           *mongo.Collection
	connectionTimeout time.Duration
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset drops the database before the indexes are created. Meant for tests.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New connects to uri, selects databaseName and makes sure the unique email
// index exists.
func New(
	ctx context.Context,
	uri string,
	databaseName string,
	connectionTimeout time.Duration,
	optionsProto ...InitOption,
) (*MongoDB, error) {
	initOpts := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(initOpts)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, connectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctxWithTimeout, options.Client().ApplyURI(uri))
	if err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/mongodb/mongodb.go/New(): error while `mongo.Connect()` calling: %w",
				err,
			)
	}

	database := client.Database(databaseName)
	result := &MongoDB{
		client:            client,
		users:             database.Collection(usersCollection),
		recipes:           database.Collection(recipesCollection),
		connectionTimeout: connectionTimeout,
	}

	if initOpts.DBPreReset {
		if err := database.Drop(ctxWithTimeout); err != nil {
			_ = client.Disconnect(ctx)
			return nil,
				fmt.Errorf(
					"in internal/db/mongodb/mongodb.go/New(): error while `database.Drop()` calling: %w",
					err,
				)
		}
	}

	_, err = result.users.Indexes().CreateOne(ctxWithTimeout, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil,
			fmt.Errorf(
				"in internal/db/mongodb/mongodb.go/New(): error while `result.users.Indexes().CreateOne()` calling: %w",
				err,
			)
	}

	return result, nil
}

func (db *MongoDB) findRecipes(ctx context.Context, filter any) ([]models.Recipe, error) {
	cursor, err := db.recipes.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}

	var documents []recipeDocument
	if err := cursor.All(ctx, &documents); err != nil {
		return nil, err
	}

	result := make([]models.Recipe, 0, len(documents))
	for i := range documents {
		result = append(result, documents[i].toModel())
	}

	return result, nil
}

// ListRecipes returns every recipe in creation order.
func (db *MongoDB) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	return db.findRecipes(ctx, bson.D{})
}

// GetRecipe returns models.ErrNotFound for unknown or malformed ids.
func (db *MongoDB) GetRecipe(ctx context.Context, id string) (*models.Recipe, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrNotFound
	}

	var document recipeDocument
	err = db.recipes.FindOne(ctx, bson.M{"_id": objectID}).Decode(&document)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	recipe := document.toModel()

	return &recipe, nil
}

// GetRecipesByIDs resolves ids keeping their order; unknown ids are dropped.
func (db *MongoDB) GetRecipesByIDs(ctx context.Context, ids []string) ([]models.Recipe, error) {
	objectIDs := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if objectID, err := primitive.ObjectIDFromHex(id); err == nil {
			objectIDs = append(objectIDs, objectID)
		}
	}
	if len(objectIDs) == 0 {
		return []models.Recipe{}, nil
	}

	found, err := db.findRecipes(ctx, bson.M{"_id": bson.M{"$in": objectIDs}})
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Recipe, len(found))
	for _, recipe := range found {
		byID[recipe.ID] = recipe
	}

	result := make([]models.Recipe, 0, len(found))
	for _, id := range ids {
		if recipe, ok := byID[id]; ok {
			result = append(result, recipe)
		}
	}

	return result, nil
}

// CreateRecipe inserts recipe under a new id and writes the id back into it.
func (db *MongoDB) CreateRecipe(ctx context.Context, recipe *models.Recipe) error {
	owner, err := primitive.ObjectIDFromHex(recipe.User)
	if err != nil {
		return models.ErrInvalidID
	}

	document := recipeDocument{
		ID:           primitive.NewObjectID(),
		Title:        recipe.Title,
		Description:  recipe.Description,
		Ingredients:  recipe.Ingredients,
		Instructions: recipe.Instructions,
		Image:        recipe.Image,
		User:         owner,
		CreatedAt:    time.Now(),
	}
	if document.Ingredients == nil {
		document.Ingredients = []string{}
	}

	if _, err := db.recipes.InsertOne(ctx, document); err != nil {
		return err
	}
	recipe.ID = document.ID.Hex()

	return nil
}

// UpdateRecipe overwrites the mutable fields of a stored recipe. The owner is never written.
func (db *MongoDB) UpdateRecipe(ctx context.Context, recipe *models.Recipe) error {
	objectID, err := primitive.ObjectIDFromHex(recipe.ID)
	if err != nil {
		return models.ErrNotFound
	}

	ingredients := recipe.Ingredients
	if ingredients == nil {
		ingredients = []string{}
	}

	result, err := db.recipes.UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": bson.M{
			"title":        recipe.Title,
			"description":  recipe.Description,
			"ingredients":  ingredients,
			"instructions": recipe.Instructions,
			"image":        recipe.Image,
		}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return models.ErrNotFound
	}

	return nil
}

// DeleteRecipe removes a recipe. Favorites pointing at it are left dangling.
func (db *MongoDB) DeleteRecipe(ctx context.Context, id string) error {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return models.ErrNotFound
	}

	result, err := db.recipes.DeleteOne(ctx, bson.M{"_id": objectID})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return models.ErrNotFound
	}

	return nil
}

// CreateUser inserts a new user document and returns its id.
func (db *MongoDB) CreateUser(ctx context.Context, usr *user.User) (string, error) {
	document := userDocument{
		ID:        primitive.NewObjectID(),
		Name:      usr.Name,
		Email:     usr.Email,
		Password:  usr.PasswordHash,
		Favorites: []primitive.ObjectID{},
		CreatedAt: time.Now(),
	}

	_, err := db.users.InsertOne(ctx, document)
	if mongo.IsDuplicateKeyError(err) {
		return "", models.ErrEmailTaken
	}
	if err != nil {
		return "", err
	}

	return document.ID.Hex(), nil
}

func (db *MongoDB) findUser(ctx context.Context, filter any) (*user.User, error) {
	var document userDocument
	err := db.users.FindOne(ctx, filter).Decode(&document)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return document.toModel(), nil
}

// GetUserByID returns models.ErrNotFound for unknown or malformed ids.
func (db *MongoDB) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	objectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, models.ErrNotFound
	}

	return db.findUser(ctx, bson.M{"_id": objectID})
}

// GetUserByEmail returns models.ErrNotFound when no user has that email.
func (db *MongoDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return db.findUser(ctx, bson.M{"email": email})
}

func (db *MongoDB) updateFavorites(ctx context.Context, userID string, update bson.M) ([]string, error) {
	objectID, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return nil, models.ErrNotFound
	}

	var document userDocument
	err = db.users.FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&document)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return hexIDs(document.Favorites), nil
}

// AddFavorite adds recipeID to the user's favorites set.
func (db *MongoDB) AddFavorite(ctx context.Context, userID, recipeID string) ([]string, error) {
	recipeObjectID, err := primitive.ObjectIDFromHex(recipeID)
	if err != nil {
		return nil, models.ErrInvalidID
	}

	return db.updateFavorites(ctx, userID, bson.M{"$addToSet": bson.M{"favorites": recipeObjectID}})
}

// RemoveFavorite drops recipeID from the user's favorites; absent ids are a no-op.
func (db *MongoDB) RemoveFavorite(ctx context.Context, userID, recipeID string) ([]string, error) {
	recipeObjectID, err := primitive.ObjectIDFromHex(recipeID)
	if err != nil {
		usr, err := db.GetUserByID(ctx, userID)
		if err != nil {
			return nil, err
		}
		return usr.Favorites, nil
	}

	return db.updateFavorites(ctx, userID, bson.M{"$pull": bson.M{"favorites": recipeObjectID}})
}

// Ping checks the connection to the primary within the configured timeout.
func (db *MongoDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.client.Ping(ctxWithTimeout, readpref.Primary())
}

// Close disconnects the client.
func (db *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), db.connectionTimeout)
	defer cancel()

	return db.client.Disconnect(ctx)
}
