package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"classgroups-server-go/models"
)

var (
	// ErrClassNotFound is returned when an operation targets a class that does not exist.
	ErrClassNotFound = errors.New("class not found")
	// ErrStudentNotFound is returned when a student is not part of the given class.
	ErrStudentNotFound = errors.New("student not found")
	// ErrInvalidRecord is returned when required fields are missing.
	ErrInvalidRecord = errors.New("invalid record")
)

// RosterStore is the create/read/delete surface over classes and students.
// Both RedisService and PostgresStore implement it.
type RosterStore interface {
	AddClass(ctx context.Context, clazz models.Clazz) (models.Clazz, error)
	GetClassByID(ctx context.Context, classID string) (*models.Clazz, error)
	GetAllClasses(ctx context.Context) ([]models.Clazz, error)
	ClassExists(ctx context.Context, classID string) (bool, error)
	DeleteClass(ctx context.Context, classID string) error

	AddStudent(ctx context.Context, student models.Student) (models.Student, error)
	AddStudents(ctx context.Context, classID string, students []models.Student) ([]models.Student, error)
	GetStudentsByClassID(ctx context.Context, classID string) ([]models.Student, error)
	DeleteStudent(ctx context.Context, classID, studentID string) error

	Ping(ctx context.Context) error
	Close() error
}

var (
	_ RosterStore = (*RedisService)(nil)
	_ RosterStore = (*PostgresStore)(nil)
)

// now is swapped in tests.
var now = func() time.Time { return time.Now().UTC() }

// prepareClass fills generated fields and validates a class before it is stored.
func prepareClass(clazz models.Clazz) (models.Clazz, error) {
	clazz.Name = strings.TrimSpace(clazz.Name)
	clazz.ID = strings.TrimSpace(clazz.ID)
	if clazz.Name == "" {
		return clazz, fmt.Errorf("%w: class name cannot be empty", ErrInvalidRecord)
	}
	if clazz.ID == "" {
		clazz.ID = uuid.NewString()
	}
	if clazz.CreatedAt.IsZero() {
		clazz.CreatedAt = now()
	}
	return clazz, nil
}

// prepareStudent fills generated fields and validates a student before it is stored.
func prepareStudent(student models.Student, createdAt time.Time) (models.Student, error) {
	student.Name = strings.TrimSpace(student.Name)
	student.ID = strings.TrimSpace(student.ID)
	if student.Name == "" || student.ClassID == "" {
		return student, fmt.Errorf("%w: student name and class ID cannot be empty", ErrInvalidRecord)
	}
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	if student.CreatedAt.IsZero() {
		student.CreatedAt = createdAt
	}
	return student, nil
}

// prepareStudents validates a batch for classID. Creation times are one
// microsecond apart so the batch keeps its input order. Invalid entries and
// IDs repeated within the batch are skipped and reported in the error.
func prepareStudents(classID string, students []models.Student) ([]models.Student, error) {
	base := now()
	var errs error
	seen := make(map[string]struct{}, len(students))
	valid := make([]models.Student, 0, len(students))
	for i, st := range students {
		st.ClassID = classID
		prepared, err := prepareStudent(st, base.Add(time.Duration(i)*time.Microsecond))
		if err == nil {
			if _, dup := seen[prepared.ID]; dup {
				err = fmt.Errorf("%w: student ID %s is repeated", ErrInvalidRecord, prepared.ID)
			}
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("student #%d: %w", i+1, err))
			continue
		}
		seen[prepared.ID] = struct{}{}
		valid = append(valid, prepared)
	}
	return valid, errs
}

// dropTaken removes the students whose ID is already stored. Student IDs are
// unique across classes.
func dropTaken(students []models.Student, taken map[string]bool, errs error) ([]models.Student, error) {
	kept := make([]models.Student, 0, len(students))
	for _, st := range students {
		if taken[st.ID] {
			errs = multierr.Append(errs, fmt.Errorf("student %s: %w: ID already in use", st.ID, ErrInvalidRecord))
			continue
		}
		kept = append(kept, st)
	}
	return kept, errs
}

// SplitNames turns newline separated input into trimmed, non-empty names.
func SplitNames(text string) []string {
	lines := strings.Split(text, "\n")
	names := make([]string, 0, len(lines))
	for _, line := range lines {
		if name := strings.TrimSpace(line); name != "" {
			names = append(names, name)
		}
	}
	return names
}
