// Package postgresdb provides a PostgreSQL-based implementation of the storage
// interface for users, recipes and favorites. The schema is managed by goose
// migrations; list-valued fields are text[] columns.
package postgresdb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/patric-chuzhbe/recipebook/internal/models"
	"github.com/patric-chuzhbe/recipebook/internal/user"
)

const uniqueViolationCode = "23505"

// PostgresDB is a PostgreSQL-backed store.
type PostgresDB struct {
	database          *sql.DB
	connectionTimeout time.Duration
}

type initOptions struct {
	DBPreReset bool
}

// InitOption defines a functional option for configuring database initialization.
type InitOption func(*initOptions)

// WithDBPreReset drops every table of the public schema before migrating.
// Meant for tests.
func WithDBPreReset(value bool) InitOption {
	return func(options *initOptions) {
		options.DBPreReset = value
	}
}

// New establishes a connection to the PostgreSQL database,
// runs schema migrations, and returns a configured PostgresDB instance.
func New(
	ctx context.Context,
	databaseDSN string,
	connectionTimeout time.Duration,
	migrationsDir string,
	optionsProto ...InitOption,
) (*PostgresDB, error) {
	options := &initOptions{
		DBPreReset: false,
	}
	for _, protoOption := range optionsProto {
		protoOption(options)
	}

	database, err := sql.Open("pgx", databaseDSN)
	if err != nil {
		return nil, err
	}

	result := &PostgresDB{
		database:          database,
		connectionTimeout: connectionTimeout,
	}

	if options.DBPreReset {
		if err := result.resetDB(ctx); err != nil {
			return nil,
				fmt.Errorf(
					"in internal/db/postgresdb/postgresdb.go/New(): error while `result.resetDB()` calling: %w",
					err,
				)
		}
	}

	if err := goose.SetDialect("postgres"); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.SetDialect()` calling: %w",
				err,
			)
	}

	if err := goose.UpContext(ctx, result.database, migrationsDir); err != nil {
		return nil,
			fmt.Errorf(
				"in internal/db/postgresdb/postgresdb.go/New(): error while `goose.UpContext()` calling: %w",
				err,
			)
	}

	return result, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

const recipeColumns = `id, title, description, ingredients::text, instructions, image, user_id`

func scanRecipe(row rowScanner) (*models.Recipe, error) {
	var (
		recipe      models.Recipe
		ingredients pq.StringArray
		image       sql.NullString
	)
	err := row.Scan(
		&recipe.ID,
		&recipe.Title,
		&recipe.Description,
		&ingredients,
		&recipe.Instructions,
		&image,
		&recipe.User,
	)
	if err != nil {
		return nil, err
	}

	recipe.Ingredients = []string(ingredients)
	if recipe.Ingredients == nil {
		recipe.Ingredients = []string{}
	}
	if image.Valid {
		recipe.Image = &image.String
	}

	return &recipe, nil
}

func scanRecipes(rows *sql.Rows) ([]models.Recipe, error) {
	defer rows.Close()

	result := []models.Recipe{}
	for rows.Next() {
		recipe, err := scanRecipe(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *recipe)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

// ingredientsParam encodes a string slice as a Postgres array literal. The
// statements cast it with $n::text::text[].
func ingredientsParam(values []string) (string, error) {
	if values == nil {
		values = []string{}
	}
	value, err := pq.StringArray(values).Value()
	if err != nil {
		return "", err
	}

	return value.(string), nil
}

func nullableImage(image *string) sql.NullString {
	if image == nil {
		return sql.NullString{}
	}

	return sql.NullString{String: *image, Valid: true}
}

// ListRecipes returns every recipe in creation order.
func (db *PostgresDB) ListRecipes(ctx context.Context) ([]models.Recipe, error) {
	rows, err := db.database.QueryContext(
		ctx,
		`SELECT `+recipeColumns+` FROM recipes ORDER BY created_at, id`,
	)
	if err != nil {
		return nil, err
	}

	return scanRecipes(rows)
}

// GetRecipe returns models.ErrNotFound for unknown ids.
func (db *PostgresDB) GetRecipe(ctx context.Context, id string) (*models.Recipe, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT `+recipeColumns+` FROM recipes WHERE id = $1`,
		id,
	)
	recipe, err := scanRecipe(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	return recipe, nil
}

// GetRecipesByIDs resolves ids keeping their order; unknown ids are dropped.
func (db *PostgresDB) GetRecipesByIDs(ctx context.Context, ids []string) ([]models.Recipe, error) {
	if len(ids) == 0 {
		return []models.Recipe{}, nil
	}

	idsParam, err := ingredientsParam(ids)
	if err != nil {
		return nil, err
	}

	rows, err := db.database.QueryContext(
		ctx,
		`
			SELECT `+recipeColumns+`
				FROM recipes
					JOIN unnest($1::text::text[]) WITH ORDINALITY AS wanted(wanted_id, position)
						ON wanted.wanted_id = recipes.id
				ORDER BY wanted.position
		`,
		idsParam,
	)
	if err != nil {
		return nil, err
	}

	return scanRecipes(rows)
}

// CreateRecipe inserts recipe under a new id and writes the id back into it.
func (db *PostgresDB) CreateRecipe(ctx context.Context, recipe *models.Recipe) error {
	ingredients, err := ingredientsParam(recipe.Ingredients)
	if err != nil {
		return err
	}

	id := models.NewID()
	_, err = db.database.ExecContext(
		ctx,
		`
			INSERT INTO recipes (id, title, description, ingredients, instructions, image, user_id)
				VALUES ($1, $2, $3, $4::text::text[], $5, $6, $7)
		`,
		id,
		recipe.Title,
		recipe.Description,
		ingredients,
		recipe.Instructions,
		nullableImage(recipe.Image),
		recipe.User,
	)
	if err != nil {
		return err
	}

	recipe.ID = id

	return nil
}

// UpdateRecipe overwrites the mutable fields of a stored recipe. The owner column is never written.
func (db *PostgresDB) UpdateRecipe(ctx context.Context, recipe *models.Recipe) error {
	ingredients, err := ingredientsParam(recipe.Ingredients)
	if err != nil {
		return err
	}

	result, err := db.database.ExecContext(
		ctx,
		`
			UPDATE recipes
				SET
					title = $2,
					description = $3,
					ingredients = $4::text::text[],
					instructions = $5,
					image = $6
				WHERE id = $1
		`,
		recipe.ID,
		recipe.Title,
		recipe.Description,
		ingredients,
		recipe.Instructions,
		nullableImage(recipe.Image),
	)
	if err != nil {
		return err
	}

	return expectAffected(result)
}

// DeleteRecipe removes a recipe. Favorites pointing at it are left dangling.
func (db *PostgresDB) DeleteRecipe(ctx context.Context, id string) error {
	result, err := db.database.ExecContext(ctx, `DELETE FROM recipes WHERE id = $1`, id)
	if err != nil {
		return err
	}

	return expectAffected(result)
}

func expectAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return models.ErrNotFound
	}

	return nil
}

// CreateUser inserts a new user record and returns its id.
func (db *PostgresDB) CreateUser(ctx context.Context, usr *user.User) (string, error) {
	id := models.NewID()
	_, err := db.database.ExecContext(
		ctx,
		`INSERT INTO users (id, name, email, password) VALUES ($1, $2, $3, $4)`,
		id,
		usr.Name,
		usr.Email,
		usr.PasswordHash,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return "", models.ErrEmailTaken
		}
		return "", err
	}

	return id, nil
}

func (db *PostgresDB) getUser(ctx context.Context, where string, arg string) (*user.User, error) {
	row := db.database.QueryRowContext(
		ctx,
		`SELECT id, name, email, password, favorites::text FROM users WHERE `+where+` = $1`,
		arg,
	)

	var (
		usr       user.User
		favorites pq.StringArray
	)
	err := row.Scan(&usr.ID, &usr.Name, &usr.Email, &usr.PasswordHash, &favorites)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	usr.Favorites = []string(favorites)

	return &usr, nil
}

// GetUserByID returns models.ErrNotFound for unknown ids.
func (db *PostgresDB) GetUserByID(ctx context.Context, userID string) (*user.User, error) {
	return db.getUser(ctx, "id", userID)
}

// GetUserByEmail returns models.ErrNotFound when no user has that email.
func (db *PostgresDB) GetUserByEmail(ctx context.Context, email string) (*user.User, error) {
	return db.getUser(ctx, "email", email)
}

func (db *PostgresDB) updateFavorites(ctx context.Context, query, userID, recipeID string) ([]string, error) {
	row := db.database.QueryRowContext(ctx, query, userID, recipeID)

	var favorites pq.StringArray
	err := row.Scan(&favorites)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if favorites == nil {
		return []string{}, nil
	}

	return []string(favorites), nil
}

// AddFavorite appends recipeID to the user's favorites in a single statement,
// leaving the list untouched when it is already present.
func (db *PostgresDB) AddFavorite(ctx context.Context, userID, recipeID string) ([]string, error) {
	if !models.IsValidID(recipeID) {
		return nil, models.ErrInvalidID
	}

	return db.updateFavorites(
		ctx,
		`
			UPDATE users
				SET favorites = CASE
					WHEN $2::text = ANY(favorites) THEN favorites
					ELSE array_append(favorites, $2::text)
				END
				WHERE id = $1
				RETURNING favorites::text
		`,
		userID,
		recipeID,
	)
}

// RemoveFavorite drops recipeID from the user's favorites; absent ids are a no-op.
func (db *PostgresDB) RemoveFavorite(ctx context.Context, userID, recipeID string) ([]string, error) {
	return db.updateFavorites(
		ctx,
		`
			UPDATE users
				SET favorites = array_remove(favorites, $2::text)
				WHERE id = $1
				RETURNING favorites::text
		`,
		userID,
		recipeID,
	)
}

// Ping verifies connectivity with the PostgreSQL database within the configured timeout.
func (db *PostgresDB) Ping(ctx context.Context) error {
	ctxWithTimeout, cancel := context.WithTimeout(ctx, db.connectionTimeout)
	defer cancel()

	return db.database.PingContext(ctxWithTimeout)
}

// Close closes the database connection and releases any associated resources.
func (db *PostgresDB) Close() error {
	return db.database.Close()
}

func (db *PostgresDB) resetDB(ctx context.Context) error {
	_, err := db.database.ExecContext(
		ctx,
		`
			DO $$
			DECLARE
				r RECORD;
			BEGIN
				FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public') LOOP
					EXECUTE 'DROP TABLE IF EXISTS ' || quote_ident(r.tablename) || ' CASCADE';
				END LOOP;
			END $$;
		`,
	)
	if err != nil {
		return fmt.Errorf(
			"in internal/db/postgresdb/postgresdb.go/resetDB(): error while `db.database.ExecContext()` calling: %w",
			err,
		)
	}
	return nil
}
