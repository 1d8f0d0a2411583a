package db

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"classgroups-server-go/models"
)

// seedDemoClass adds a small demo class so a fresh install has something to group.
func seedDemoClass(ctx context.Context, store RosterStore) error {
	log.Info("Seeding demo data...")

	clazz, err := store.AddClass(ctx, models.Clazz{ID: "C_DEMO_01", Name: "Demo Class"})
	if err != nil {
		return fmt.Errorf("failed to seed demo class: %w", err)
	}

	roster := []string{"Alice", "Bob", "Charlie", "David", "Eve", "Frank", "Grace"}
	students := make([]models.Student, len(roster))
	for i, name := range roster {
		students[i] = models.Student{ID: fmt.Sprintf("S_DEMO_%03d", i+1), Name: name}
	}
	if _, err := store.AddStudents(ctx, clazz.ID, students); err != nil {
		return fmt.Errorf("failed to seed demo students: %w", err)
	}

	log.WithField("class_id", clazz.ID).Info("Seeding complete")
	return nil
}
