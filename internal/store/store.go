// Package store persists assessment documents in sqlite, one record
// per document keyed by an opaque id and scoped to an account.
// Questions and the answer key are stored as JSON columns and written
// atomically: a document is created in a single insert and edits touch
// only the questions/answer-key columns.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/provagen/provagen/internal/model"
)

type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		document_type TEXT NOT NULL DEFAULT '',
		education_level TEXT NOT NULL DEFAULT '',
		grade_track TEXT NOT NULL DEFAULT '',
		topics TEXT NOT NULL DEFAULT '[]',
		difficulty TEXT NOT NULL DEFAULT '',
		questions TEXT NOT NULL,
		answer_key TEXT NOT NULL,
		generation_metadata TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_account_created
		ON documents(account_id, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// CreateDocument assigns an id and creation timestamp and inserts the
// document atomically. The returned copy carries the assigned fields.
func (s *Store) CreateDocument(accountID string, doc model.AssessmentDocument) (model.AssessmentDocument, error) {
	doc.ID = uuid.NewString()
	doc.CreatedAt = time.Now().UTC()

	topics, err := json.Marshal(doc.Topics)
	if err != nil {
		return model.AssessmentDocument{}, fmt.Errorf("marshal topics: %w", err)
	}
	questions, err := json.Marshal(doc.Questions)
	if err != nil {
		return model.AssessmentDocument{}, fmt.Errorf("marshal questions: %w", err)
	}
	answerKey, err := json.Marshal(doc.AnswerKey)
	if err != nil {
		return model.AssessmentDocument{}, fmt.Errorf("marshal answer key: %w", err)
	}
	var metadata any
	if doc.Metadata != nil {
		b, err := json.Marshal(doc.Metadata)
		if err != nil {
			return model.AssessmentDocument{}, fmt.Errorf("marshal metadata: %w", err)
		}
		metadata = string(b)
	}

	_, err = s.db.Exec(
		`INSERT INTO documents (id, account_id, title, document_type, education_level, grade_track,
		 topics, difficulty, questions, answer_key, generation_metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		doc.ID, accountID, doc.Title, doc.DocumentType, doc.EducationLevel, doc.GradeTrack,
		string(topics), doc.Difficulty, string(questions), string(answerKey), metadata, doc.CreatedAt,
	)
	if err != nil {
		return model.AssessmentDocument{}, err
	}
	return doc, nil
}

const documentColumns = `id, title, document_type, education_level, grade_track,
	topics, difficulty, questions, answer_key, generation_metadata, created_at`

func scanDocument(row interface{ Scan(...any) error }) (model.AssessmentDocument, error) {
	var doc model.AssessmentDocument
	var topics, questions, answerKey string
	var metadata sql.NullString
	err := row.Scan(&doc.ID, &doc.Title, &doc.DocumentType, &doc.EducationLevel, &doc.GradeTrack,
		&topics, &doc.Difficulty, &questions, &answerKey, &metadata, &doc.CreatedAt)
	if err != nil {
		return doc, err
	}
	if err := json.Unmarshal([]byte(topics), &doc.Topics); err != nil {
		return doc, fmt.Errorf("unmarshal topics: %w", err)
	}
	if err := json.Unmarshal([]byte(questions), &doc.Questions); err != nil {
		return doc, fmt.Errorf("unmarshal questions: %w", err)
	}
	if err := json.Unmarshal([]byte(answerKey), &doc.AnswerKey); err != nil {
		return doc, fmt.Errorf("unmarshal answer key: %w", err)
	}
	if metadata.Valid && metadata.String != "" {
		doc.Metadata = &model.GenerationMetadata{}
		if err := json.Unmarshal([]byte(metadata.String), doc.Metadata); err != nil {
			return doc, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return doc, nil
}

// GetDocument returns one document owned by the account. Missing
// records surface as sql.ErrNoRows.
func (s *Store) GetDocument(accountID, id string) (model.AssessmentDocument, error) {
	row := s.db.QueryRow(
		`SELECT `+documentColumns+` FROM documents WHERE account_id = ? AND id = ?`,
		accountID, id,
	)
	return scanDocument(row)
}

// ListDocuments returns the account's documents, newest first.
func (s *Store) ListDocuments(accountID string) ([]model.AssessmentDocument, error) {
	rows, err := s.db.Query(
		`SELECT `+documentColumns+` FROM documents WHERE account_id = ? ORDER BY created_at DESC, id DESC`,
		accountID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []model.AssessmentDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// UpdateQuestions writes the questions and answer-key columns of one
// document, leaving every other field untouched. Missing records
// surface as sql.ErrNoRows.
func (s *Store) UpdateQuestions(accountID, id string, questions []model.Question, answerKey []model.AnswerKeyEntry) error {
	qs, err := json.Marshal(questions)
	if err != nil {
		return fmt.Errorf("marshal questions: %w", err)
	}
	ak, err := json.Marshal(answerKey)
	if err != nil {
		return fmt.Errorf("marshal answer key: %w", err)
	}

	res, err := s.db.Exec(
		`UPDATE documents SET questions = ?, answer_key = ? WHERE account_id = ? AND id = ?`,
		string(qs), string(ak), accountID, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteDocument removes one document owned by the account. Missing
// records surface as sql.ErrNoRows.
func (s *Store) DeleteDocument(accountID, id string) error {
	res, err := s.db.Exec(`DELETE FROM documents WHERE account_id = ? AND id = ?`, accountID, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountCreatedSince returns how many documents the account created at
// or after the given instant. The quota gate consumes this with the
// current period's start.
func (s *Store) CountCreatedSince(accountID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM documents WHERE account_id = ? AND created_at >= ?`,
		accountID, since,
	).Scan(&count)
	return count, err
}
