package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/franckalain/mealdose/internal/models"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// credentialSlot is the single row holding the signed-in user's credential.
const credentialSlot = "current"

// DB interface defines the methods our database should implement
type DB interface {
	SaveMeal(ctx context.Context, meal *models.NormalizedMeal) error
	GetMeal(ctx context.Context, recordID string) (*models.NormalizedMeal, error)
	GetRecentMeals(ctx context.Context, limit int) ([]*models.NormalizedMeal, error)
	SaveCredential(ctx context.Context, cred models.Credential) error
	GetCredential(ctx context.Context) (models.Credential, error)
	ClearCredential(ctx context.Context) error
	Close() error
}

// SQLiteDB implements the DB interface
type SQLiteDB struct {
	db *sql.DB
}

// NewSQLiteDB creates a new SQLite database connection
func NewSQLiteDB(dbPath string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	// Enable foreign keys and WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing schema: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

func initializeSchema(db *sql.DB) error {
	schemaBytes, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("error reading schema file: %w", err)
	}

	if _, err := db.Exec(string(schemaBytes)); err != nil {
		return fmt.Errorf("error executing schema: %w", err)
	}
	return nil
}

// SaveMeal stores a normalized meal and its ingredients, replacing any
// previous version of the same record.
func (s *SQLiteDB) SaveMeal(ctx context.Context, meal *models.NormalizedMeal) error {
	if meal.RecordID == "" {
		return fmt.Errorf("meal record id is required")
	}

	now := time.Now()
	if meal.AnalyzedAt.IsZero() {
		meal.AnalyzedAt = now
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO meals (
			id, meal_id, name, meal_date, total_carbs, dose, glycemia,
			language, analyzed_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			meal_id = excluded.meal_id,
			name = excluded.name,
			meal_date = excluded.meal_date,
			total_carbs = excluded.total_carbs,
			dose = excluded.dose,
			glycemia = excluded.glycemia,
			language = excluded.language,
			analyzed_at = excluded.analyzed_at
	`,
		meal.RecordID, meal.MealID, nullString(meal.Name), nullString(meal.Date),
		meal.TotalCarbs, meal.Dose, meal.Glycemia, meal.Language,
		formatTime(meal.AnalyzedAt), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("error saving meal: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM meal_ingredients WHERE meal_record_id = ?`, meal.RecordID); err != nil {
		return fmt.Errorf("error clearing ingredients: %w", err)
	}
	for i, ing := range meal.Ingredients {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO meal_ingredients (
				meal_record_id, position, ingredient_id, name, carbs_per_100g, grams, carbs
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`, meal.RecordID, i, ing.ID, ing.Name, ing.CarbsPer100g, nullFloat(ing.Grams), nullFloat(ing.Carbs))
		if err != nil {
			return fmt.Errorf("error saving ingredient %d: %w", i, err)
		}
	}

	return tx.Commit()
}

// GetMeal retrieves a stored meal; it returns nil when the record does not exist.
func (s *SQLiteDB) GetMeal(ctx context.Context, recordID string) (*models.NormalizedMeal, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, meal_id, name, meal_date, total_carbs, dose, glycemia, language, analyzed_at
		FROM meals WHERE id = ?
	`, recordID)

	meal, err := scanMeal(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadIngredients(ctx, meal); err != nil {
		return nil, err
	}
	return meal, nil
}

// GetRecentMeals retrieves the most recently analysed meals, newest first
func (s *SQLiteDB) GetRecentMeals(ctx context.Context, limit int) ([]*models.NormalizedMeal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, meal_id, name, meal_date, total_carbs, dose, glycemia, language, analyzed_at
		FROM meals
		ORDER BY analyzed_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}

	var results []*models.NormalizedMeal
	for rows.Next() {
		meal, err := scanMeal(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		results = append(results, meal)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	for _, meal := range results {
		if err := s.loadIngredients(ctx, meal); err != nil {
			return nil, err
		}
	}
	return results, nil
}

func (s *SQLiteDB) loadIngredients(ctx context.Context, meal *models.NormalizedMeal) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ingredient_id, name, carbs_per_100g, grams, carbs
		FROM meal_ingredients
		WHERE meal_record_id = ?
		ORDER BY position
	`, meal.RecordID)
	if err != nil {
		return err
	}
	defer rows.Close()

	meal.Ingredients = []models.Ingredient{}
	for rows.Next() {
		var ing models.Ingredient
		var grams, carbs sql.NullFloat64
		if err := rows.Scan(&ing.ID, &ing.Name, &ing.CarbsPer100g, &grams, &carbs); err != nil {
			return err
		}
		ing.Grams = floatPtr(grams)
		ing.Carbs = floatPtr(carbs)
		meal.Ingredients = append(meal.Ingredients, ing)
	}
	return rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMeal(row scanner) (*models.NormalizedMeal, error) {
	var meal models.NormalizedMeal
	var name, date sql.NullString
	var analyzedAt string
	err := row.Scan(
		&meal.RecordID, &meal.MealID, &name, &date,
		&meal.TotalCarbs, &meal.Dose, &meal.Glycemia, &meal.Language, &analyzedAt,
	)
	if err != nil {
		return nil, err
	}
	meal.Name = stringPtr(name)
	meal.Date = stringPtr(date)
	meal.AnalyzedAt, _ = time.Parse(timeLayout, analyzedAt)
	return &meal, nil
}

// SaveCredential persists the signed-in user's credential
func (s *SQLiteDB) SaveCredential(ctx context.Context, cred models.Credential) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO credentials (slot, token, user_id, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET
			token = excluded.token,
			user_id = excluded.user_id,
			updated_at = excluded.updated_at
	`, credentialSlot, cred.Token, cred.UserID, formatTime(time.Now()))
	return err
}

// GetCredential returns the stored credential, or an empty one when nobody is signed in
func (s *SQLiteDB) GetCredential(ctx context.Context) (models.Credential, error) {
	var cred models.Credential
	err := s.db.QueryRowContext(ctx, `SELECT token, user_id FROM credentials WHERE slot = ?`, credentialSlot).
		Scan(&cred.Token, &cred.UserID)
	if err == sql.ErrNoRows {
		return models.Credential{}, nil
	}
	if err != nil {
		return models.Credential{}, err
	}
	return cred, nil
}

// ClearCredential removes the stored credential
func (s *SQLiteDB) ClearCredential(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM credentials WHERE slot = ?`, credentialSlot)
	return err
}

// Close closes the database connection
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func floatPtr(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
