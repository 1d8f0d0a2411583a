package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"classgroups-server-go/db"
	"classgroups-server-go/grouping"
	"classgroups-server-go/models"
	"classgroups-server-go/session"
)

const xlsxMIME = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// roster loads the class students, writing a 500 on failure.
func (h *APIHandler) roster(c *gin.Context, classID string) ([]models.Student, bool) {
	students, err := h.Store.GetStudentsByClassID(c.Request.Context(), classID)
	if err != nil {
		log.WithError(err).WithField("class_id", classID).Error("Error loading roster")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve students for the class"})
		return nil, false
	}
	return students, true
}

func findStudent(students []models.Student, id string) bool {
	for _, st := range students {
		if st.ID == id {
			return true
		}
	}
	return false
}

// --- Attendance Handlers ---

// GetAttendance handles GET /api/classes/:classId/attendance
func (h *APIHandler) GetAttendance(c *gin.Context) {
	clazz, ok := h.loadClass(c)
	if !ok {
		return
	}
	students, ok := h.roster(c, clazz.ID)
	if !ok {
		return
	}

	sess := h.Sessions.Get(clazz.ID)
	out := make([]models.StudentAttendance, len(students))
	present := 0
	for i, st := range students {
		absent := sess.IsAbsent(st.ID)
		if !absent {
			present++
		}
		out[i] = models.StudentAttendance{Student: st, Absent: absent}
	}
	c.JSON(http.StatusOK, gin.H{"students": out, "presentCount": present})
}

// SetAttendance handles PUT /api/classes/:classId/attendance/:studentId
func (h *APIHandler) SetAttendance(c *gin.Context) {
	var req models.Attendance
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}
	h.updateAttendance(c, func(sess *session.Session, studentID string) bool {
		sess.SetAbsent(studentID, *req.Absent)
		return *req.Absent
	})
}

// ToggleAttendance handles POST /api/classes/:classId/attendance/:studentId/toggle
func (h *APIHandler) ToggleAttendance(c *gin.Context) {
	h.updateAttendance(c, func(sess *session.Session, studentID string) bool {
		return sess.ToggleAbsent(studentID)
	})
}

func (h *APIHandler) updateAttendance(c *gin.Context, apply func(*session.Session, string) bool) {
	clazz, ok := h.loadClass(c)
	if !ok {
		return
	}
	students, ok := h.roster(c, clazz.ID)
	if !ok {
		return
	}
	studentID := c.Param("studentId")
	if !findStudent(students, studentID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Student not found in this class"})
		return
	}

	absent := apply(h.Sessions.Get(clazz.ID), studentID)
	c.JSON(http.StatusOK, gin.H{"studentId": studentID, "absent": absent})
}

// --- Group Handlers ---

// bindGroupRequest accepts an empty body, which means "use the defaults".
func bindGroupRequest(c *gin.Context) (models.GroupRequest, bool) {
	var req models.GroupRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		respondBindError(c, err)
		return req, false
	}
	return req, true
}

// resolveOptions layers the request over base and enforces the configured maximum.
func (h *APIHandler) resolveOptions(c *gin.Context, base grouping.Options, req models.GroupRequest) (grouping.Options, bool) {
	opts := base
	if req.GroupSize != 0 {
		opts.GroupSize = req.GroupSize
	}
	if req.Strategy != "" {
		strategy, err := grouping.ParseStrategy(req.Strategy)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return opts, false
		}
		opts.Strategy = strategy
	}
	if opts.GroupSize > h.Grouping.MaxSize {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Group size must be at most %d", h.Grouping.MaxSize),
		})
		return opts, false
	}
	return opts, true
}

// GenerateGroups handles POST /api/classes/:classId/groups
func (h *APIHandler) GenerateGroups(c *gin.Context) {
	req, ok := bindGroupRequest(c)
	if !ok {
		return
	}
	opts, ok := h.resolveOptions(c, h.Grouping.DefaultOptions(), req)
	if !ok {
		return
	}
	h.generate(c, req, func(sess *session.Session, students []models.Student) (grouping.Assignment[models.Student], grouping.Options, error) {
		a, err := sess.Generate(students, opts, req.Seed)
		return a, opts, err
	})
}

// RegenerateGroups handles POST /api/classes/:classId/groups/regenerate.
// Without overrides it reshuffles with the options of the last generation.
func (h *APIHandler) RegenerateGroups(c *gin.Context) {
	req, ok := bindGroupRequest(c)
	if !ok {
		return
	}
	h.generate(c, req, func(sess *session.Session, students []models.Student) (grouping.Assignment[models.Student], grouping.Options, error) {
		if req.GroupSize == 0 && req.Strategy == "" {
			return sess.Regenerate(students, req.Seed)
		}
		base, ok := sess.Options()
		if !ok {
			return grouping.Assignment[models.Student]{}, grouping.Options{}, session.ErrNoGroups
		}
		opts, ok := h.resolveOptions(c, base, req)
		if !ok {
			return grouping.Assignment[models.Student]{}, grouping.Options{}, errResponded
		}
		a, err := sess.Generate(students, opts, req.Seed)
		return a, opts, err
	})
}

// errResponded signals that the response was already written.
var errResponded = errors.New("response already written")

func (h *APIHandler) generate(
	c *gin.Context,
	req models.GroupRequest,
	run func(*session.Session, []models.Student) (grouping.Assignment[models.Student], grouping.Options, error),
) {
	clazz, ok := h.loadClass(c)
	if !ok {
		return
	}
	students, ok := h.roster(c, clazz.ID)
	if !ok {
		return
	}

	sess := h.Sessions.Get(clazz.ID)
	a, opts, err := run(sess, students)
	switch {
	case errors.Is(err, errResponded):
		return
	case errors.Is(err, session.ErrNoGroups):
		c.JSON(http.StatusConflict, gin.H{"error": "No groups generated yet"})
		return
	case errors.Is(err, grouping.ErrInvalidGroupSize), errors.Is(err, grouping.ErrUnknownStrategy):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.WithError(err).WithField("class_id", clazz.ID).Error("Error generating groups")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate groups"})
		return
	}

	h.Metrics.GroupsGenerated(string(opts.Strategy), a.Len(), len(a.Groups))
	log.WithFields(log.Fields{
		"class_id": clazz.ID,
		"students": a.Len(),
		"groups":   len(a.Groups),
		"strategy": opts.Strategy,
		"seeded":   req.Seed != "",
	}).Info("Generated groups")

	c.JSON(http.StatusOK, groupsResponse(clazz.ID, a, opts, sess.AbsentIDs()))
}

func groupsResponse(classID string, a grouping.Assignment[models.Student], opts grouping.Options, absent []string) models.GroupsResponse {
	views := make([]models.GroupView, len(a.Groups))
	for i, g := range a.Groups {
		views[i] = models.GroupView{Number: i + 1, Students: g}
	}
	return models.GroupsResponse{
		ClassID:        classID,
		GroupSize:      opts.GroupSize,
		Strategy:       string(opts.Strategy),
		Groups:         views,
		TotalStudents:  a.Len(),
		RemainingCount: a.Remaining,
		Absent:         absent,
	}
}

// currentGroups returns the active assignment or writes a 404.
func (h *APIHandler) currentGroups(c *gin.Context, classID string) (grouping.Assignment[models.Student], grouping.Options, *session.Session, bool) {
	sess, ok := h.Sessions.Lookup(classID)
	if ok {
		if a, opts, ok := sess.Current(); ok {
			return a, opts, sess, true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "No groups generated yet"})
	return grouping.Assignment[models.Student]{}, grouping.Options{}, nil, false
}

// GetGroups handles GET /api/classes/:classId/groups
func (h *APIHandler) GetGroups(c *gin.Context) {
	clazz, ok := h.loadClass(c)
	if !ok {
		return
	}
	a, opts, sess, ok := h.currentGroups(c, clazz.ID)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, groupsResponse(clazz.ID, a, opts, sess.AbsentIDs()))
}

// GetGroupsText handles GET /api/classes/:classId/groups/text
func (h *APIHandler) GetGroupsText(c *gin.Context) {
	clazz, ok := h.loadClass(c)
	if !ok {
		return
	}
	a, _, _, ok := h.currentGroups(c, clazz.ID)
	if !ok {
		return
	}
	c.String(http.StatusOK, session.FormatText(session.GroupNames(a)))
}

// ExportGroups handles GET /api/classes/:classId/groups/export
func (h *APIHandler) ExportGroups(c *gin.Context) {
	clazz, ok := h.loadClass(c)
	if !ok {
		return
	}
	a, _, _, ok := h.currentGroups(c, clazz.ID)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := db.WriteGroupsExcel(&buf, clazz.Name, session.GroupNames(a)); err != nil {
		log.WithError(err).WithField("class_id", clazz.ID).Error("Error exporting groups")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export groups"})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="groups-%s.xlsx"`, clazz.ID))
	c.Data(http.StatusOK, xlsxMIME, buf.Bytes())
}

// --- Pick Handler ---

// PickStudent handles POST /api/classes/:classId/pick
func (h *APIHandler) PickStudent(c *gin.Context) {
	clazz, ok := h.loadClass(c)
	if !ok {
		return
	}

	sess, ok := h.Sessions.Lookup(clazz.ID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "No groups to pick from"})
		return
	}
	d, ok := sess.Pick()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "No groups to pick from"})
		return
	}

	h.Metrics.StudentPicked(d.FirstOfRound())
	c.JSON(http.StatusOK, models.PickResponse{Student: d.Item, Remaining: d.Remaining, Round: d.Round})
}
