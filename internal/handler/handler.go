package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"festpass/internal/metrics"
	"festpass/internal/queue"
	"festpass/internal/student"
)

// Handler exposes the registration service over HTTP.
type Handler struct {
	svc  *student.Service
	feed queue.Queue // nil when the scan feed is disabled
	mets *metrics.Metrics
}

// New creates a handler around the service.
func New(svc *student.Service, feed queue.Queue, mets *metrics.Metrics) *Handler {
	return &Handler{svc: svc, feed: feed, mets: mets}
}

// Register mounts all routes on the router.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/students", h.CreateStudent)
	api.GET("/students", h.ListStudents)
	api.GET("/students/:id", h.GetStudent)
	api.POST("/validate", h.Validate)
	api.GET("/validate/recent", h.RecentScans)
	api.GET("/analytics", h.Analytics)
}

// CreateStudent handles POST /api/students.
func (h *Handler) CreateStudent(c *gin.Context) {
	var in student.CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	st, err := h.svc.Register(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, student.ErrInvalidInput):
			h.mets.RegistrationsRejected.WithLabelValues("invalid_input").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		case errors.Is(err, student.ErrDuplicateEmail):
			h.mets.RegistrationsRejected.WithLabelValues("duplicate_email").Inc()
			c.JSON(http.StatusConflict, gin.H{"error": "Student with this email already exists"})
		default:
			log.Printf("register failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create student"})
		}
		return
	}

	h.mets.Registrations.Inc()
	c.JSON(http.StatusCreated, gin.H{"student": st})
}

// ListStudents handles GET /api/students with optional search and role filters.
func (h *Handler) ListStudents(c *gin.Context) {
	search := c.Query("search")
	role := c.Query("role")

	students, err := h.svc.Search(c.Request.Context(), search, role)
	if err != nil {
		log.Printf("list students failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch students"})
		return
	}
	if students == nil {
		students = []student.Student{}
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// GetStudent handles GET /api/students/:id.
func (h *Handler) GetStudent(c *gin.Context) {
	st, err := h.svc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, student.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
			return
		}
		log.Printf("get student failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch student"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": st})
}

// Validate handles POST /api/validate. Business failures (unknown id, already
// validated) come back as 400 with the result body so the caller can show the
// existing record.
func (h *Handler) Validate(c *gin.Context) {
	var req struct {
		StudentID string `json:"studentId"`
		Method    string `json:"method"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.StudentID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Student ID is required"})
		return
	}

	res, err := h.svc.Validate(c.Request.Context(), req.StudentID, req.Method)
	if err != nil {
		if errors.Is(err, student.ErrInvalidInput) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		log.Printf("validate failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to validate student"})
		return
	}

	if !res.Success {
		reason := "not_found"
		if res.Student != nil {
			reason = "already_validated"
		}
		h.mets.ValidationsRejected.WithLabelValues(reason).Inc()
		c.JSON(http.StatusBadRequest, res)
		return
	}

	method := req.Method
	if method == "" {
		method = student.MethodManual
	}
	h.mets.Validations.WithLabelValues(method).Inc()
	h.publishScan(res, method)
	c.JSON(http.StatusOK, res)
}

// publishScan pushes a successful validation onto the scan feed. Failures are
// logged and never fail the request.
func (h *Handler) publishScan(res student.Result, method string) {
	if h.feed == nil || res.Student == nil {
		return
	}
	body, err := json.Marshal(gin.H{
		"studentId":   res.Student.ID,
		"name":        res.Student.Name,
		"college":     res.Student.College,
		"method":      method,
		"validatedAt": res.Student.ValidatedAt,
	})
	if err != nil {
		return
	}
	// Publish outlives the request; an abandoned request must not drop the event.
	if err := h.feed.Publish(context.Background(), queue.Message{Type: "scan", Body: body}); err != nil {
		log.Printf("scan feed publish failed: %v", err)
	}
}

// RecentScans handles GET /api/validate/recent.
func (h *Handler) RecentScans(c *gin.Context) {
	limit := 10
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	scans, err := h.svc.RecentScans(c.Request.Context(), limit)
	if err != nil {
		log.Printf("recent scans failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch recent scans"})
		return
	}
	if scans == nil {
		scans = []student.ScanRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"recentScans": scans})
}

// Analytics handles GET /api/analytics.
func (h *Handler) Analytics(c *gin.Context) {
	report, err := h.svc.Analytics(c.Request.Context())
	if err != nil {
		log.Printf("analytics failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch analytics"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"analytics": report})
}
