package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"classgroups-server-go/models"
)

const (
	classesKey          = "classes"  // Sorted set: all class IDs, scored by creation time
	classInfoPrefix     = "class:"   // Hash prefix: class:{id} -> stores class details
	classStudentsPrefix = "class:"   // Sorted set prefix: class:{id}:students -> student IDs scored by creation time
	studentInfoPrefix   = "student:" // Hash prefix: student:{id} -> stores student details
)

// RedisService handles operations with the Redis database
type RedisService struct {
	Client *redis.Client
}

// NewRedisService creates a new RedisService instance
func NewRedisService(client *redis.Client) *RedisService {
	return &RedisService{Client: client}
}

// Helper to generate class info key
func getClassInfoKey(classID string) string {
	return classInfoPrefix + classID
}

// Helper to generate class students set key
func getClassStudentsKey(classID string) string {
	return classStudentsPrefix + classID + ":students"
}

// Helper to generate student info key
func getStudentInfoKey(studentID string) string {
	return studentInfoPrefix + studentID
}

// score orders members by creation time. Microseconds fit a float64 exactly.
func score(t time.Time) float64 {
	return float64(t.UnixMicro())
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// --- Class Operations ---

// AddClass adds a new class to Redis
func (s *RedisService) AddClass(ctx context.Context, clazz models.Clazz) (models.Clazz, error) {
	clazz, err := prepareClass(clazz)
	if err != nil {
		return clazz, err
	}
	classKey := getClassInfoKey(clazz.ID)
	pipe := s.Client.TxPipeline()

	// Add class ID to the global set of classes
	pipe.ZAdd(ctx, classesKey, &redis.Z{Score: score(clazz.CreatedAt), Member: clazz.ID})
	// Store class details in a Hash
	pipe.HSet(ctx, classKey, map[string]interface{}{
		"id":        clazz.ID,
		"name":      clazz.Name,
		"createdAt": clazz.CreatedAt.Format(time.RFC3339Nano),
	})

	if _, err := pipe.Exec(ctx); err != nil {
		log.WithError(err).WithField("class_id", clazz.ID).Error("Error adding class")
		return clazz, fmt.Errorf("failed to add class to Redis: %w", err)
	}
	log.WithFields(log.Fields{"class_id": clazz.ID, "name": clazz.Name}).Info("Added class")
	return clazz, nil
}

// GetClassByID retrieves a class by its ID. A missing class yields nil, nil.
func (s *RedisService) GetClassByID(ctx context.Context, classID string) (*models.Clazz, error) {
	data, err := s.Client.HGetAll(ctx, getClassInfoKey(classID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get class %s from Redis: %w", classID, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return classFromHash(data), nil
}

func classFromHash(data map[string]string) *models.Clazz {
	return &models.Clazz{
		ID:        data["id"],
		Name:      data["name"],
		CreatedAt: parseTime(data["createdAt"]),
	}
}

// GetAllClasses retrieves all classes, oldest first
func (s *RedisService) GetAllClasses(ctx context.Context) ([]models.Clazz, error) {
	classIDs, err := s.Client.ZRange(ctx, classesKey, 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []models.Clazz{}, nil
		}
		return nil, fmt.Errorf("failed to get class IDs from Redis: %w", err)
	}

	pipe := s.Client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(classIDs))
	for i, id := range classIDs {
		cmds[i] = pipe.HGetAll(ctx, getClassInfoKey(id))
	}
	if len(cmds) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to get class details from Redis: %w", err)
		}
	}

	classes := make([]models.Clazz, 0, len(classIDs))
	for i, cmd := range cmds {
		data := cmd.Val()
		if len(data) == 0 {
			// Log but keep going; a dangling ID should not hide the other classes
			log.WithField("class_id", classIDs[i]).Warn("Class listed without details")
			continue
		}
		classes = append(classes, *classFromHash(data))
	}
	return classes, nil
}

// ClassExists checks if a class ID exists in the classes set
func (s *RedisService) ClassExists(ctx context.Context, classID string) (bool, error) {
	err := s.Client.ZScore(ctx, classesKey, classID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check class existence: %w", err)
	}
	return true, nil
}

// DeleteClass removes a class together with all of its students
func (s *RedisService) DeleteClass(ctx context.Context, classID string) error {
	exists, err := s.ClassExists(ctx, classID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrClassNotFound
	}

	classStudentsKey := getClassStudentsKey(classID)
	studentIDs, err := s.Client.ZRange(ctx, classStudentsKey, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to list students of class %s: %w", classID, err)
	}

	pipe := s.Client.TxPipeline()
	for _, id := range studentIDs {
		pipe.Del(ctx, getStudentInfoKey(id))
	}
	pipe.Del(ctx, classStudentsKey, getClassInfoKey(classID))
	pipe.ZRem(ctx, classesKey, classID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete class %s: %w", classID, err)
	}
	log.WithFields(log.Fields{"class_id": classID, "students": len(studentIDs)}).Info("Deleted class")
	return nil
}

// --- Student Operations ---

// AddStudent adds a student to an existing class
func (s *RedisService) AddStudent(ctx context.Context, student models.Student) (models.Student, error) {
	added, err := s.AddStudents(ctx, student.ClassID, []models.Student{student})
	if err != nil {
		return student, err
	}
	return added[0], nil
}

// AddStudents adds several students to a class in one pipeline. Invalid
// entries are skipped and reported together in the returned error while the
// valid ones are still stored.
func (s *RedisService) AddStudents(ctx context.Context, classID string, students []models.Student) ([]models.Student, error) {
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

	classStudentsKey := getClassStudentsKey(classID)
	pipe := s.Client.TxPipeline()
	for _, st := range valid {
		// Add student ID to the class's set of students
		pipe.ZAdd(ctx, classStudentsKey, &redis.Z{Score: score(st.CreatedAt), Member: st.ID})
		// Store student details in a Hash
		pipe.HSet(ctx, getStudentInfoKey(st.ID), map[string]interface{}{
			"id":        st.ID,
			"name":      st.Name,
			"classId":   st.ClassID,
			"createdAt": st.CreatedAt.Format(time.RFC3339Nano),
		})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		log.WithError(err).WithField("class_id", classID).Error("Error adding students")
		return nil, multierr.Append(errs, fmt.Errorf("failed to add students to Redis: %w", err))
	}
	log.WithFields(log.Fields{"class_id": classID, "count": len(valid)}).Debug("Added students")
	return valid, errs
}

// takenStudentIDs reports which of the students already have a hash, in any class.
func (s *RedisService) takenStudentIDs(ctx context.Context, students []models.Student) (map[string]bool, error) {
	pipe := s.Client.Pipeline()
	cmds := make([]*redis.IntCmd, len(students))
	for i, st := range students {
		cmds[i] = pipe.Exists(ctx, getStudentInfoKey(st.ID))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to check student IDs in Redis: %w", err)
	}

	taken := make(map[string]bool)
	for i, cmd := range cmds {
		if cmd.Val() > 0 {
			taken[students[i].ID] = true
		}
	}
	return taken, nil
}

// GetStudentByID retrieves a student by their ID
func (s *RedisService) GetStudentByID(ctx context.Context, studentID string) (*models.Student, error) {
	data, err := s.Client.HGetAll(ctx, getStudentInfoKey(studentID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get student from Redis: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return studentFromHash(data), nil
}

func studentFromHash(data map[string]string) *models.Student {
	return &models.Student{
		ID:        data["id"],
		Name:      data["name"],
		ClassID:   data["classId"],
		CreatedAt: parseTime(data["createdAt"]),
	}
}

// GetStudentsByClassID retrieves all students for a given class ID in insertion order
func (s *RedisService) GetStudentsByClassID(ctx context.Context, classID string) ([]models.Student, error) {
	studentIDs, err := s.Client.ZRange(ctx, getClassStudentsKey(classID), 0, -1).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []models.Student{}, nil
		}
		return nil, fmt.Errorf("failed to get student IDs from Redis for class %s: %w", classID, err)
	}

	pipe := s.Client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(studentIDs))
	for i, id := range studentIDs {
		cmds[i] = pipe.HGetAll(ctx, getStudentInfoKey(id))
	}
	if len(cmds) > 0 {
		if _, err := pipe.Exec(ctx); err != nil {
			return nil, fmt.Errorf("failed to get student details for class %s: %w", classID, err)
		}
	}

	students := make([]models.Student, 0, len(studentIDs))
	for i, cmd := range cmds {
		data := cmd.Val()
		if len(data) == 0 {
			log.WithFields(log.Fields{"class_id": classID, "student_id": studentIDs[i]}).Warn("Student listed without details")
			continue
		}
		students = append(students, *studentFromHash(data))
	}
	return students, nil
}

// DeleteStudent removes a student from a class
func (s *RedisService) DeleteStudent(ctx context.Context, classID, studentID string) error {
	removed, err := s.Client.ZRem(ctx, getClassStudentsKey(classID), studentID).Result()
	if err != nil {
		return fmt.Errorf("failed to remove student %s from class %s: %w", studentID, classID, err)
	}
	if removed == 0 {
		return ErrStudentNotFound
	}
	if err := s.Client.Del(ctx, getStudentInfoKey(studentID)).Err(); err != nil {
		return fmt.Errorf("failed to delete student %s: %w", studentID, err)
	}
	return nil
}

// --- Seed Data (Optional) ---

// SeedData adds a demo class when the store holds no classes yet.
func (s *RedisService) SeedData(ctx context.Context) error {
	count, err := s.Client.ZCard(ctx, classesKey).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to count classes: %w", err)
	}
	if count > 0 {
		log.WithField("classes", count).Info("Found existing data, skipping seed")
		return nil
	}
	return seedDemoClass(ctx, s)
}

// --- Utility ---

// Ping checks the connection to Redis
func (s *RedisService) Ping(ctx context.Context) error {
	return s.Client.Ping(ctx).Err()
}

// Close releases the underlying client
func (s *RedisService) Close() error {
	return s.Client.Close()
}

// InitializeRedisClient creates and tests a Redis client connection
func InitializeRedisClient(ctx context.Context, addr, password string, database int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       database,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("could not connect to Redis at %s: %w", addr, err)
	}

	log.WithFields(log.Fields{"addr": addr, "db": database}).Info("Successfully connected to Redis")
	return rdb, nil
}
