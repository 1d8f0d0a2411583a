package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"classgroups-server-go/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS classes (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS students (
	id         TEXT PRIMARY KEY,
	class_id   TEXT NOT NULL REFERENCES classes (id) ON DELETE CASCADE,
	full_name  TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS students_class_id_created_at_idx ON students (class_id, created_at);`

// PostgresStore keeps rosters in PostgreSQL.
type PostgresStore struct {
	DB *sqlx.DB
}

// NewPostgresStore wraps an open connection.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{DB: db}
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("could not connect to Postgres: %w", err)
	}
	log.Info("Successfully connected to Postgres")
	return NewPostgresStore(db), nil
}

// Migrate creates the tables if they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// AddClass inserts a class.
func (s *PostgresStore) AddClass(ctx context.Context, clazz models.Clazz) (models.Clazz, error) {
	clazz, err := prepareClass(clazz)
	if err != nil {
		return clazz, err
	}
	_, err = s.DB.NamedExecContext(ctx,
		`INSERT INTO classes (id, name, created_at) VALUES (:id, :name, :created_at)`, clazz)
	if err != nil {
		return clazz, fmt.Errorf("failed to add class: %w", err)
	}
	log.WithFields(log.Fields{"class_id": clazz.ID, "name": clazz.Name}).Info("Added class")
	return clazz, nil
}

// GetClassByID returns nil, nil when the class does not exist.
func (s *PostgresStore) GetClassByID(ctx context.Context, classID string) (*models.Clazz, error) {
	var clazz models.Clazz
	err := s.DB.GetContext(ctx, &clazz,
		`SELECT id, name, created_at FROM classes WHERE id = $1`, classID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get class %s: %w", classID, err)
	}
	return &clazz, nil
}

// GetAllClasses lists classes oldest first.
func (s *PostgresStore) GetAllClasses(ctx context.Context) ([]models.Clazz, error) {
	classes := []models.Clazz{}
	err := s.DB.SelectContext(ctx, &classes,
		`SELECT id, name, created_at FROM classes ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list classes: %w", err)
	}
	return classes, nil
}

// ClassExists reports whether the class is stored.
func (s *PostgresStore) ClassExists(ctx context.Context, classID string) (bool, error) {
	var exists bool
	err := s.DB.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM classes WHERE id = $1)`, classID)
	if err != nil {
		return false, fmt.Errorf("failed to check class existence: %w", err)
	}
	return exists, nil
}

// DeleteClass removes a class; its students go with it through the cascade.
func (s *PostgresStore) DeleteClass(ctx context.Context, classID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, classID)
	if err != nil {
		return fmt.Errorf("failed to delete class %s: %w", classID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrClassNotFound
	}
	log.WithField("class_id", classID).Info("Deleted class")
	return nil
}

// AddStudent inserts a single student into an existing class.
func (s *PostgresStore) AddStudent(ctx context.Context, student models.Student) (models.Student, error) {
	added, err := s.AddStudents(ctx, student.ClassID, []models.Student{student})
	if err != nil {
		return student, err
	}
	return added[0], nil
}

// AddStudents inserts students in one transaction. Invalid entries are
// skipped and reported in the returned error.
func (s *PostgresStore) AddStudents(ctx context.Context, classID string, students []models.Student) ([]models.Student, error) {
	exists, err := s.ClassExists(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrClassNotFound, classID)
	}

	valid, errs := prepareStudents(classID, students)
	if len(valid) == 0 {
		return valid, errs
	}
	taken, err := s.takenStudentIDs(ctx, valid)
	if err != nil {
		return nil, multierr.Append(errs, err)
	}
	valid, errs = dropTaken(valid, taken, errs)
	if len(valid) == 0 {
		return valid, errs
	}

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	for _, st := range valid {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO students (id, class_id, full_name, created_at) VALUES ($1, $2, $3, $4)`,
			st.ID, st.ClassID, st.Name, st.CreatedAt)
		if err != nil {
			_ = tx.Rollback()
			return nil, multierr.Append(errs, fmt.Errorf("failed to add student %s: %w", st.ID, err))
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit students: %w", err)
	}
	log.WithFields(log.Fields{"class_id": classID, "count": len(valid)}).Debug("Added students")
	return valid, errs
}

// takenStudentIDs reports which of the students are already stored, in any class.
func (s *PostgresStore) takenStudentIDs(ctx context.Context, students []models.Student) (map[string]bool, error) {
	ids := make([]string, len(students))
	for i, st := range students {
		ids[i] = st.ID
	}
	var found []string
	if err := s.DB.SelectContext(ctx, &found, `SELECT id FROM students WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to check student IDs: %w", err)
	}
	taken := make(map[string]bool, len(found))
	for _, id := range found {
		taken[id] = true
	}
	return taken, nil
}

// GetStudentsByClassID lists a class roster in insertion order.
func (s *PostgresStore) GetStudentsByClassID(ctx context.Context, classID string) ([]models.Student, error) {
	students := []models.Student{}
	err := s.DB.SelectContext(ctx, &students,
		`SELECT id, class_id, full_name, created_at FROM students WHERE class_id = $1 ORDER BY created_at, id`, classID)
	if err != nil {
		return nil, fmt.Errorf("failed to get students for class %s: %w", classID, err)
	}
	return students, nil
}

// DeleteStudent removes a student from a class.
func (s *PostgresStore) DeleteStudent(ctx context.Context, classID, studentID string) error {
	res, err := s.DB.ExecContext(ctx,
		`DELETE FROM students WHERE class_id = $1 AND id = $2`, classID, studentID)
	if err != nil {
		return fmt.Errorf("failed to delete student %s: %w", studentID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrStudentNotFound
	}
	return nil
}

// SeedData adds a demo class when no class exists yet.
func (s *PostgresStore) SeedData(ctx context.Context) error {
	var count int
	if err := s.DB.GetContext(ctx, &count, `SELECT COUNT(*) FROM classes`); err != nil {
		return fmt.Errorf("failed to count classes: %w", err)
	}
	if count > 0 {
		log.WithField("classes", count).Info("Found existing data, skipping seed")
		return nil
	}
	return seedDemoClass(ctx, s)
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.DB.PingContext(ctx)
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.DB.Close()
}
