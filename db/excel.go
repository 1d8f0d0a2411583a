package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"classgroups-server-go/models"
)

// --- Excel Import ---

// ErrUnreadableRoster is returned when an upload is not a readable workbook.
var ErrUnreadableRoster = errors.New("unreadable roster file")

// ImportStudentsFromExcel reads an Excel file stream and adds students to the
// specified class, creating the class when it does not exist.
//
// Nothing is stored when the file cannot be parsed.
// The first row of the first sheet is a header. Column A holds the student ID
// and column B the name; a row with a single filled cell is read as a name
// and gets a generated ID.
func ImportStudentsFromExcel(ctx context.Context, store RosterStore, file io.Reader, classID string) (int, error) {
	// Parse first so a bad upload leaves the store untouched
	students, err := ReadRosterExcel(file)
	if err != nil {
		return 0, err
	}

	exists, err := store.ClassExists(ctx, classID)
	if err != nil {
		return 0, fmt.Errorf("failed to check class existence before import: %w", err)
	}
	if !exists {
		log.WithField("class_id", classID).Info("Import target class does not exist, creating it")
		if _, err := store.AddClass(ctx, models.Clazz{ID: classID, Name: "Imported Class " + classID}); err != nil {
			return 0, fmt.Errorf("target class %s does not exist and failed to create it: %w", classID, err)
		}
	}

	log.WithFields(log.Fields{"class_id": classID, "rows": len(students)}).Info("Adding students from Excel file")
	added, err := store.AddStudents(ctx, classID, students)
	if err != nil {
		log.WithError(err).WithField("class_id", classID).Warn("Some students could not be imported")
	}
	if len(added) == 0 && err != nil {
		return 0, err
	}

	log.WithFields(log.Fields{"class_id": classID, "imported": len(added)}).Info("Imported students")
	return len(added), nil
}

// ReadRosterExcel parses a roster spreadsheet without storing anything.
func ReadRosterExcel(file io.Reader) ([]models.Student, error) {
	f, err := excelize.OpenReader(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadableRoster, err)
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.WithError(err).Warn("Error closing excel file")
		}
	}()

	// Data is expected in the first sheet
	sheetName := f.GetSheetName(0)
	if sheetName == "" {
		return nil, fmt.Errorf("%w: no sheets", ErrUnreadableRoster)
	}

	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to get rows from sheet %s: %w", sheetName, err)
	}

	students := make([]models.Student, 0, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue // Skip header row
		}

		var studentID, studentName string
		switch {
		case len(row) > 1:
			studentID = strings.TrimSpace(row[0])
			studentName = strings.TrimSpace(row[1])
		case len(row) == 1:
			studentName = strings.TrimSpace(row[0])
		}

		if studentName == "" {
			log.WithFields(log.Fields{"row": i + 1, "id": studentID}).Debug("Skipping row without a name")
			continue
		}
		students = append(students, models.Student{ID: studentID, Name: studentName})
	}
	return students, nil
}

// --- Excel Export ---

const groupsSheet = "Groups"

// WriteGroupsExcel writes one row per group member under a Group/#/Student header.
func WriteGroupsExcel(w io.Writer, title string, groups [][]string) error {
	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			log.WithError(err).Warn("Error closing excel file")
		}
	}()

	if err := f.SetSheetName("Sheet1", groupsSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if title != "" {
		if err := f.SetDocProps(&excelize.DocProperties{Title: title}); err != nil {
			return fmt.Errorf("failed to set document title: %w", err)
		}
	}
	if err := f.SetSheetRow(groupsSheet, "A1", &[]interface{}{"Group", "#", "Student"}); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	row := 2
	for g, members := range groups {
		for i, name := range members {
			cell, err := excelize.CoordinatesToCellName(1, row)
			if err != nil {
				return err
			}
			values := []interface{}{fmt.Sprintf("Group %d", g+1), i + 1, name}
			if err := f.SetSheetRow(groupsSheet, cell, &values); err != nil {
				return fmt.Errorf("failed to write row %d: %w", row, err)
			}
			row++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write excel file: %w", err)
	}
	return nil
}
