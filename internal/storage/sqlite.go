// internal/storage/sqlite.go
package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"greenbite/internal/models"
)

// MemoryDSN keeps the whole store in process memory.
const MemoryDSN = ":memory:"

// timestampLayout has fixed width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

type SQLiteStorage struct {
	db *sql.DB
}

func NewSQLiteStorage(dsn string) (*SQLiteStorage, error) {
	if strings.TrimSpace(dsn) == "" {
		dsn = MemoryDSN
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dsn == MemoryDSN {
		// Each connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS users (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        co2_saved REAL NOT NULL DEFAULT 0
    );

    CREATE TABLE IF NOT EXISTS daily_emissions (
        user_id TEXT NOT NULL,
        date TEXT NOT NULL,
        co2_emitted REAL NOT NULL,
        PRIMARY KEY (user_id, date)
    );

    CREATE TABLE IF NOT EXISTS meals (
        id TEXT PRIMARY KEY,
        user_id TEXT NOT NULL,
        timestamp TEXT NOT NULL,
        total_co2 REAL NOT NULL
    );

    CREATE TABLE IF NOT EXISTS meal_items (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        meal_id TEXT NOT NULL,
        name TEXT NOT NULL,
        FOREIGN KEY (meal_id) REFERENCES meals(id) ON DELETE CASCADE
    );

    CREATE INDEX IF NOT EXISTS idx_meals_user ON meals(user_id, timestamp);
    CREATE INDEX IF NOT EXISTS idx_meal_items_meal_id ON meal_items(meal_id);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// SeedDemo loads the demo leaderboard and trend once; it is a no-op when
// any user already exists.
func (s *SQLiteStorage) SeedDemo() error {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return fmt.Errorf("failed to count users: %w", err)
	}
	if n > 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range demoUsers {
		if _, err := tx.Exec(`INSERT INTO users (id, name, co2_saved) VALUES (?, ?, ?)`, u.UserID, u.UserName, u.TotalCO2Saved); err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
	}
	for _, d := range demoTrend {
		if _, err := tx.Exec(`INSERT INTO daily_emissions (user_id, date, co2_emitted) VALUES (?, ?, ?)`, demoTrendUser, d.Date, d.CO2Emitted); err != nil {
			return fmt.Errorf("failed to insert trend: %w", err)
		}
	}

	return tx.Commit()
}

// SaveMeal stores a meal and adds its total to the user's daily emissions.
// Unknown users join the leaderboard under their id with nothing saved.
func (s *SQLiteStorage) SaveMeal(meal *models.MealRecord) error {
	if meal.UserID == "" {
		return fmt.Errorf("meal has no user")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	ts := meal.Timestamp.UTC()
	if _, err := tx.Exec(`INSERT OR IGNORE INTO users (id, name, co2_saved) VALUES (?, ?, 0)`, meal.UserID, meal.UserID); err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	_, err = tx.Exec(`INSERT INTO meals (id, user_id, timestamp, total_co2) VALUES (?, ?, ?, ?)`,
		meal.ID, meal.UserID, ts.Format(timestampLayout), meal.TotalCO2)
	if err != nil {
		return fmt.Errorf("failed to insert meal: %w", err)
	}

	for _, item := range meal.Items {
		if _, err := tx.Exec(`INSERT INTO meal_items (meal_id, name) VALUES (?, ?)`, meal.ID, item); err != nil {
			return fmt.Errorf("failed to insert meal item: %w", err)
		}
	}

	_, err = tx.Exec(`
        INSERT INTO daily_emissions (user_id, date, co2_emitted) VALUES (?, ?, ?)
        ON CONFLICT(user_id, date) DO UPDATE SET co2_emitted = co2_emitted + excluded.co2_emitted
    `, meal.UserID, ts.Format(models.DateLayout), meal.TotalCO2)
	if err != nil {
		return fmt.Errorf("failed to update daily emissions: %w", err)
	}

	return tx.Commit()
}

// GetLeaderboard returns users by CO2 saved, highest first, ranked from 1.
func (s *SQLiteStorage) GetLeaderboard() ([]models.LeaderboardEntry, error) {
	rows, err := s.db.Query(`SELECT id, name, co2_saved FROM users ORDER BY co2_saved DESC, name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	board := []models.LeaderboardEntry{}
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.UserID, &e.UserName, &e.TotalCO2Saved); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		e.Rank = len(board) + 1
		board = append(board, e)
	}
	return board, rows.Err()
}

// Rank returns the user's leaderboard position, or false when absent.
func (s *SQLiteStorage) Rank(userID string) (int, bool, error) {
	board, err := s.GetLeaderboard()
	if err != nil {
		return 0, false, err
	}
	for _, e := range board {
		if e.UserID == userID {
			return e.Rank, true, nil
		}
	}
	return 0, false, nil
}

// GetTrend returns the user's daily emissions, oldest first.
func (s *SQLiteStorage) GetTrend(userID string) ([]models.TrendData, error) {
	rows, err := s.db.Query(`SELECT date, co2_emitted FROM daily_emissions WHERE user_id = ? ORDER BY date`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query trend: %w", err)
	}
	defer rows.Close()

	trend := []models.TrendData{}
	for rows.Next() {
		var d models.TrendData
		if err := rows.Scan(&d.Date, &d.CO2Emitted); err != nil {
			return nil, fmt.Errorf("failed to scan trend: %w", err)
		}
		trend = append(trend, d)
	}
	return trend, rows.Err()
}

// GetMeals returns the user's most recent meals, newest first.
func (s *SQLiteStorage) GetMeals(userID string, limit int) ([]*models.MealRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
        SELECT id, user_id, timestamp, total_co2
        FROM meals
        WHERE user_id = ?
        ORDER BY timestamp DESC
        LIMIT ?
    `, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}

	meals := []*models.MealRecord{}
	for rows.Next() {
		meal := &models.MealRecord{}
		var timestampStr string
		if err := rows.Scan(&meal.ID, &meal.UserID, &timestampStr, &meal.TotalCO2); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}
		if meal.Timestamp, err = time.Parse(timestampLayout, timestampStr); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}
		meals = append(meals, meal)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Items are loaded after the meal cursor is closed; an in-memory store
	// has a single connection.
	for _, meal := range meals {
		if err := s.loadItemsForMeal(meal); err != nil {
			return nil, fmt.Errorf("failed to load items for meal %s: %w", meal.ID, err)
		}
	}
	return meals, nil
}

func (s *SQLiteStorage) loadItemsForMeal(meal *models.MealRecord) error {
	rows, err := s.db.Query(`SELECT name FROM meal_items WHERE meal_id = ? ORDER BY id`, meal.ID)
	if err != nil {
		return fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		meal.Items = append(meal.Items, name)
	}
	return rows.Err()
}
