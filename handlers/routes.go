package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter wires every API route. metricsHandler may be nil.
func NewRouter(h *APIHandler, metricsHandler http.Handler) *gin.Engine {
	RegisterValidators()

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	if metricsHandler != nil {
		router.GET("/metrics", gin.WrapH(metricsHandler))
	}

	api := router.Group("/api")
	{
		// Class routes
		api.GET("/classes", h.GetAllClasses)
		api.POST("/classes", h.AddClass)
		api.GET("/classes/:classId", h.GetClassByID)
		api.DELETE("/classes/:classId", h.DeleteClass)

		// Student routes within a class
		api.GET("/classes/:classId/students", h.GetStudentsByClass)
		api.POST("/classes/:classId/students", h.AddStudent)
		api.POST("/classes/:classId/students/bulk", h.BulkAddStudents)
		api.DELETE("/classes/:classId/students/:studentId", h.DeleteStudent)

		// Attendance
		api.GET("/classes/:classId/attendance", h.GetAttendance)
		api.PUT("/classes/:classId/attendance/:studentId", h.SetAttendance)
		api.POST("/classes/:classId/attendance/:studentId/toggle", h.ToggleAttendance)

		// Groups and picking
		api.POST("/classes/:classId/groups", h.GenerateGroups)
		api.POST("/classes/:classId/groups/regenerate", h.RegenerateGroups)
		api.GET("/classes/:classId/groups", h.GetGroups)
		api.GET("/classes/:classId/groups/text", h.GetGroupsText)
		api.GET("/classes/:classId/groups/export", h.ExportGroups)
		api.POST("/classes/:classId/pick", h.PickStudent)

		// Import route
		api.POST("/import/students", h.ImportStudents)

		api.GET("/ping", h.Ping)
	}
	return router
}
