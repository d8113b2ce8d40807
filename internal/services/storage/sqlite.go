package storage

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sergey214/socrates-bot2/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
    user_id INTEGER PRIMARY KEY,
    username TEXT,
    first_name TEXT,
    joined_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    questions_count INTEGER NOT NULL DEFAULT 0,
    blocked INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS questions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    user_id INTEGER NOT NULL,
    question TEXT NOT NULL,
    answer TEXT NOT NULL,
    rating INTEGER,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    FOREIGN KEY (user_id) REFERENCES users(user_id)
);

CREATE INDEX IF NOT EXISTS idx_questions_user ON questions(user_id);`

// SQLiteStore is the durable backend over a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database and applies the schema.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db}, nil
}

// SaveUser upserts by user id. The join timestamp and question count of an
// existing row are preserved; name fields track the latest values.
func (s *SQLiteStore) SaveUser(ctx context.Context, user *models.User) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO users (user_id, username, first_name, joined_at)
        VALUES (?, ?, ?, CURRENT_TIMESTAMP)
        ON CONFLICT(user_id) DO UPDATE SET
            username = excluded.username,
            first_name = excluded.first_name`,
		user.ID, user.Username, user.FirstName)
	return err
}

func (s *SQLiteStore) BlockUser(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET blocked = 1 WHERE user_id = ?`, userID)
	return err
}

func (s *SQLiteStore) IncrementQuestionCount(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET questions_count = questions_count + 1 WHERE user_id = ?`, userID)
	return err
}

func (s *SQLiteStore) SaveQuestion(ctx context.Context, userID int64, question, answer string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `
        INSERT INTO questions (user_id, question, answer, created_at)
        VALUES (?, ?, ?, CURRENT_TIMESTAMP)
        RETURNING id`,
		userID, question, answer).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// SaveRating overwrites any previous rating for the question. An id that
// matches no row yields ErrUnknownQuestion.
func (s *SQLiteStore) SaveRating(ctx context.Context, questionID int64, rating int) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE questions SET rating = ? WHERE id = ?`, rating, questionID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrUnknownQuestion
	}
	return nil
}

func (s *SQLiteStore) UserStats(ctx context.Context, userID int64) (*models.UserStats, error) {
	stats := &models.UserStats{UserID: userID}
	var joined time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT questions_count, joined_at FROM users WHERE user_id = ?`, userID).
		Scan(&stats.QuestionsCount, &joined)
	if err == sql.ErrNoRows {
		return stats, nil
	}
	if err != nil {
		return nil, err
	}
	stats.JoinedAt = joined
	return stats, nil
}

func (s *SQLiteStore) GlobalStats(ctx context.Context) (*models.GlobalStats, error) {
	stats := &models.GlobalStats{}

	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&stats.TotalUsers)
	if err != nil {
		return nil, err
	}
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM questions`).Scan(&stats.TotalQuestions)
	if err != nil {
		return nil, err
	}

	// AVG ignores NULL ratings by SQL semantics.
	var avg sql.NullFloat64
	err = s.db.QueryRowContext(ctx, `SELECT AVG(rating) FROM questions`).Scan(&avg)
	if err != nil {
		return nil, err
	}
	if avg.Valid {
		stats.AvgRating = avg.Float64
	}

	rows, err := s.db.QueryContext(ctx, `
        SELECT user_id, first_name, questions_count
        FROM users
        WHERE questions_count > 0
        ORDER BY questions_count DESC
        LIMIT 5`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var top models.TopUser
		if err := rows.Scan(&top.UserID, &top.FirstName, &top.QuestionsCount); err != nil {
			return nil, err
		}
		stats.TopUsers = append(stats.TopUsers, top)
	}
	return stats, rows.Err()
}

func (s *SQLiteStore) AllUserIDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM users WHERE blocked = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
