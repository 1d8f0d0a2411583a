package models

import "time"

// Clazz represents a class
type Clazz struct {
	ID        string    `json:"id" db:"id"`                // Unique class ID
	Name      string    `json:"name" db:"name"`            // Class name
	CreatedAt time.Time `json:"createdAt" db:"created_at"` // Creation time, used for ordering
}

// Student represents a student
type Student struct {
	ID        string    `json:"id" db:"id"`                // Unique student ID (e.g., student number)
	Name      string    `json:"name" db:"full_name"`       // Student name
	ClassID   string    `json:"classId" db:"class_id"`     // ID of the class the student belongs to
	CreatedAt time.Time `json:"createdAt" db:"created_at"` // Insertion time; rosters are listed in this order
}

// NewClass is the body of POST /api/classes.
type NewClass struct {
	ID   string `json:"id" binding:"omitempty,max=64"`
	Name string `json:"name" binding:"required,max=128"`
}

// NewStudent is the body of POST /api/classes/:classId/students.
type NewStudent struct {
	ID   string `json:"id" binding:"omitempty,max=64"`
	Name string `json:"name" binding:"required,max=128"`
}

// BulkStudents is the body of POST /api/classes/:classId/students/bulk.
// Text holds one name per line; Names may be used instead.
type BulkStudents struct {
	Text  string   `json:"text"`
	Names []string `json:"names"`
}

// Attendance is the body of PUT /api/classes/:classId/attendance/:studentId.
type Attendance struct {
	Absent *bool `json:"absent" binding:"required"`
}

// GroupRequest is the body of the generate and regenerate endpoints.
// Zero values fall back to the configured defaults.
type GroupRequest struct {
	GroupSize int    `json:"groupSize" binding:"omitempty,min=1"`
	Strategy  string `json:"strategy" binding:"omitempty,strategy"`
	Seed      string `json:"seed" binding:"omitempty,max=128"`
}

// GroupView is a rendered group of students.
type GroupView struct {
	Number   int       `json:"number"`
	Students []Student `json:"students"`
}

// GroupsResponse describes the current assignment of a class.
type GroupsResponse struct {
	ClassID        string      `json:"classId"`
	GroupSize      int         `json:"groupSize"`
	Strategy       string      `json:"strategy"`
	Groups         []GroupView `json:"groups"`
	TotalStudents  int         `json:"totalStudents"`
	RemainingCount int         `json:"remainingCount"`
	Absent         []string    `json:"absent"`
}

// PickResponse is returned by POST /api/classes/:classId/pick.
type PickResponse struct {
	Student   Student `json:"student"`
	Remaining int     `json:"remaining"`
	Round     int     `json:"round"`
}

// StudentAttendance pairs a student with the current attendance mark.
type StudentAttendance struct {
	Student
	Absent bool `json:"absent"`
}
