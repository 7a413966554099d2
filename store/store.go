// Package store 提供样本归档与训练历史的SQLite存储
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"textstream/ml"
)

// BatchRecord 一次训练调用的结果
type BatchRecord struct {
	ID        int64     `json:"id"`
	Size      int       `json:"size"`
	Loss      float64   `json:"loss"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store 训练数据存储
type Store struct {
	db *sql.DB
}

// Open 打开（必要时创建）数据库
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database failed: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(1 * time.Hour)

	s := &Store{db: db}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables failed: %w", err)
	}

	return s, nil
}

func (s *Store) createTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS examples (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            text TEXT NOT NULL,
            label INTEGER NOT NULL,
            created_at INTEGER DEFAULT (strftime('%s', 'now'))
        )`,
		`CREATE TABLE IF NOT EXISTS train_batches (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            size INTEGER NOT NULL,
            loss REAL NOT NULL,
            error TEXT,
            created_at INTEGER DEFAULT (strftime('%s', 'now'))
        )`,
		`CREATE INDEX IF NOT EXISTS idx_batches_created ON train_batches(created_at)`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

// SaveExamples 事务内批量写入样本
func (s *Store) SaveExamples(ctx context.Context, examples []ml.Example) error {
	if len(examples) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO examples (text, label) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, example := range examples {
		if _, err := stmt.ExecContext(ctx, example.Text, example.Label); err != nil {
			return fmt.Errorf("insert example failed: %w", err)
		}
	}

	return tx.Commit()
}

// RecordBatch 记录一次训练调用
func (s *Store) RecordBatch(ctx context.Context, size int, loss float64, trainErr string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO train_batches (size, loss, error) VALUES (?, ?, ?)`,
		size, loss, trainErr)
	return err
}

// RecentBatches 返回最近的训练记录，新的在前
func (s *Store) RecentBatches(ctx context.Context, limit int) ([]BatchRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, size, loss, COALESCE(error, ''), created_at
         FROM train_batches ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []BatchRecord
	for rows.Next() {
		var r BatchRecord
		var created int64
		if err := rows.Scan(&r.ID, &r.Size, &r.Loss, &r.Error, &created); err != nil {
			return nil, err
		}
		r.CreatedAt = time.Unix(created, 0)
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountExamples 已归档样本总数
func (s *Store) CountExamples(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM examples`).Scan(&count)
	return count, err
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}
