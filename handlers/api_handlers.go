package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"classgroups-server-go/config"
	"classgroups-server-go/db"
	"classgroups-server-go/metrics"
	"classgroups-server-go/models"
	"classgroups-server-go/session"
)

// APIHandler holds the dependencies for API handlers
type APIHandler struct {
	Store    db.RosterStore
	Sessions *session.Registry
	Metrics  metrics.Recorder
	Grouping config.GroupingConfig
}

// NewAPIHandler creates a new APIHandler. A nil recorder disables metrics.
func NewAPIHandler(store db.RosterStore, sessions *session.Registry, rec metrics.Recorder, grouping config.GroupingConfig) *APIHandler {
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	return &APIHandler{
		Store:    store,
		Sessions: sessions,
		Metrics:  rec,
		Grouping: grouping,
	}
}

// loadClass resolves :classId and writes the error response itself when the
// class cannot be used.
func (h *APIHandler) loadClass(c *gin.Context) (*models.Clazz, bool) {
	classID := c.Param("classId")
	if classID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Class ID is required"})
		return nil, false
	}

	clazz, err := h.Store.GetClassByID(c.Request.Context(), classID)
	if err != nil {
		log.WithError(err).WithField("class_id", classID).Error("Error loading class")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve class details"})
		return nil, false
	}
	if clazz == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Class not found"})
		return nil, false
	}
	return clazz, true
}

// --- Class Handlers ---

// GetAllClasses handles GET /api/classes
func (h *APIHandler) GetAllClasses(c *gin.Context) {
	classes, err := h.Store.GetAllClasses(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("Error in GetAllClasses handler")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve classes"})
		return
	}
	if classes == nil {
		// Return empty list instead of null for JSON consistency
		classes = []models.Clazz{}
	}
	c.JSON(http.StatusOK, classes)
}

// GetClassByID handles GET /api/classes/:classId
func (h *APIHandler) GetClassByID(c *gin.Context) {
	clazz, ok := h.loadClass(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, clazz)
}

// AddClass handles POST /api/classes
func (h *APIHandler) AddClass(c *gin.Context) {
	var req models.NewClass
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	clazz, err := h.Store.AddClass(c.Request.Context(), models.Clazz{ID: req.ID, Name: req.Name})
	if err != nil {
		if errors.Is(err, db.ErrInvalidRecord) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.WithError(err).Error("Error in AddClass handler")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add class"})
		return
	}

	c.JSON(http.StatusCreated, clazz)
}

// DeleteClass handles DELETE /api/classes/:classId
func (h *APIHandler) DeleteClass(c *gin.Context) {
	classID := c.Param("classId")
	err := h.Store.DeleteClass(c.Request.Context(), classID)
	if errors.Is(err, db.ErrClassNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Class not found"})
		return
	}
	if err != nil {
		log.WithError(err).WithField("class_id", classID).Error("Error in DeleteClass handler")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete class"})
		return
	}

	h.Sessions.Drop(classID)
	c.Status(http.StatusNoContent)
}

// --- Student Handlers ---

// GetStudentsByClass handles GET /api/classes/:classId/students
func (h *APIHandler) GetStudentsByClass(c *gin.Context) {
	clazz, ok := h.loadClass(c)
	if !ok {
		return
	}

	students, err := h.Store.GetStudentsByClassID(c.Request.Context(), clazz.ID)
	if err != nil {
		log.WithError(err).WithField("class_id", clazz.ID).Error("Error in GetStudentsByClass handler")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve students for the class"})
		return
	}
	if students == nil {
		students = []models.Student{}
	}
	c.JSON(http.StatusOK, students)
}

// AddStudent handles POST /api/classes/:classId/students
func (h *APIHandler) AddStudent(c *gin.Context) {
	clazz, ok := h.loadClass(c)
	if !ok {
		return
	}
	var req models.NewStudent
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	student, err := h.Store.AddStudent(c.Request.Context(), models.Student{ID: req.ID, Name: req.Name, ClassID: clazz.ID})
	if err != nil {
		if errors.Is(err, db.ErrInvalidRecord) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.WithError(err).WithField("class_id", clazz.ID).Error("Error in AddStudent handler")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add student"})
		return
	}
	c.JSON(http.StatusCreated, student)
}

// BulkAddStudents handles POST /api/classes/:classId/students/bulk
func (h *APIHandler) BulkAddStudents(c *gin.Context) {
	clazz, ok := h.loadClass(c)
	if !ok {
		return
	}
	var req models.BulkStudents
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	names := db.SplitNames(req.Text)
	for _, n := range req.Names {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	if len(names) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No student names given"})
		return
	}

	students := make([]models.Student, len(names))
	for i, n := range names {
		students[i] = models.Student{Name: n}
	}
	added, err := h.Store.AddStudents(c.Request.Context(), clazz.ID, students)
	if len(added) == 0 && err != nil {
		log.WithError(err).WithField("class_id", clazz.ID).Error("Error in BulkAddStudents handler")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to add students"})
		return
	}

	resp := gin.H{"students": added, "addedCount": len(added)}
	if err != nil {
		msgs := make([]string, 0)
		for _, e := range multierr.Errors(err) {
			msgs = append(msgs, e.Error())
		}
		resp["errors"] = msgs
	}
	c.JSON(http.StatusCreated, resp)
}

// DeleteStudent handles DELETE /api/classes/:classId/students/:studentId
func (h *APIHandler) DeleteStudent(c *gin.Context) {
	classID, studentID := c.Param("classId"), c.Param("studentId")

	err := h.Store.DeleteStudent(c.Request.Context(), classID, studentID)
	if errors.Is(err, db.ErrStudentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found in this class"})
		return
	}
	if err != nil {
		log.WithError(err).WithFields(log.Fields{"class_id": classID, "student_id": studentID}).
			Error("Error in DeleteStudent handler")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete student"})
		return
	}

	// The roster changed, so the groups built from it are stale
	if sess, ok := h.Sessions.Lookup(classID); ok {
		sess.Forget(studentID)
	}
	c.Status(http.StatusNoContent)
}

// --- Import Handler ---

// ImportStudents handles POST /api/import/students
func (h *APIHandler) ImportStudents(c *gin.Context) {
	// Get classId from form data
	classID := c.PostForm("classId")
	if classID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing 'classId' in form data"})
		return
	}

	// Get file from form data
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Error retrieving uploaded file: " + err.Error()})
		return
	}
	defer file.Close()

	logger := log.WithFields(log.Fields{"file": header.Filename, "class_id": classID})
	logger.Info("Received roster upload")

	importedCount, err := db.ImportStudentsFromExcel(c.Request.Context(), h.Store, file, classID)
	h.Metrics.RosterImported(importedCount, err)
	if errors.Is(err, db.ErrUnreadableRoster) || errors.Is(err, db.ErrInvalidRecord) {
		logger.WithError(err).Warn("Rejected roster upload")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to import students: " + err.Error()})
		return
	}
	if err != nil {
		logger.WithError(err).Error("Error importing students")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to import students: " + err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Import successful",
		"importedCount": importedCount,
		"classId":       classID,
	})
}

// --- Ping Handler ---

// Ping handles GET /api/ping and checks the store connection.
func (h *APIHandler) Ping(c *gin.Context) {
	if err := h.Store.Ping(c.Request.Context()); err != nil {
		log.WithError(err).Warn("Store ping failed")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Store unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Pong!"})
}
