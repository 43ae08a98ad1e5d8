package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dencamenew/vsuet-attendance/internal/attendance"
	"github.com/dencamenew/vsuet-attendance/internal/middleware"
	"github.com/dencamenew/vsuet-attendance/internal/store"
	"github.com/dencamenew/vsuet-attendance/pkg/errors"
	"github.com/dencamenew/vsuet-attendance/pkg/response"
)

// AttendanceHandler exposes session lifecycle and scan verification endpoints.
type AttendanceHandler struct {
	service *attendance.Service
}

// NewAttendanceHandler constructs the handler backed by the attendance service.
func NewAttendanceHandler(service *attendance.Service) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

type openSessionRequest struct {
	SubjectName     string `json:"subject_name" binding:"required"`
	SubjectType     string `json:"subject_type" binding:"required"`
	GroupName       string `json:"group_name" binding:"required"`
	Date            string `json:"date" binding:"required"`
	LessonStartTime string `json:"lesson_start_time" binding:"required"`
}

type scanRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Token     string `json:"token" binding:"required"`
}

// Open creates a new attendance session and returns its identifier.
func (h *AttendanceHandler) Open(c *gin.Context) {
	var req openSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}

	session, err := h.service.OpenSession(requestContext(c), store.Metadata{
		SubjectName:     req.SubjectName,
		SubjectType:     req.SubjectType,
		GroupName:       req.GroupName,
		Date:            req.Date,
		LessonStartTime: req.LessonStartTime,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"session_id": session.ID,
		"token":      session.CurrentToken,
	})
}

// Close marks a session inactive. Closing an already closed session is a conflict.
func (h *AttendanceHandler) Close(c *gin.Context) {
	sessionID := c.Param("id")

	err := h.service.CloseSession(requestContext(c), sessionID)
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, gin.H{"session_id": sessionID, "active": false})
	case stderrors.Is(err, attendance.ErrAlreadyClosed):
		response.Error(c, errors.ErrSessionAlreadyClosed)
	case stderrors.Is(err, store.ErrSessionNotFound):
		response.Error(c, errors.ErrSessionNotFound)
	default:
		response.Error(c, err)
	}
}

// Scan verifies a presented token and records the caller's check-in.
func (h *AttendanceHandler) Scan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}

	callerID := c.GetString(middleware.CtxUserIDKey)

	result, err := h.service.ValidateScan(requestContext(c), req.SessionID, req.Token, callerID)
	if err != nil {
		response.Error(c, err)
		return
	}

	body := gin.H{"result": string(result)}
	switch result {
	case attendance.ScanRecorded, attendance.ScanAlreadyRecorded:
		response.Success(c, http.StatusOK, body)
	case attendance.ScanTokenMismatch:
		response.Error(c, errors.ErrTokenMismatch)
	case attendance.ScanSessionClosed:
		response.Error(c, errors.ErrSessionClosed)
	case attendance.ScanSessionNotFound:
		response.Error(c, errors.ErrSessionNotFound)
	case attendance.ScanIdentityNotFound:
		response.Error(c, errors.ErrIdentityNotFound)
	default:
		response.Error(c, errors.ErrInternalServer)
	}
}

// ListCheckedIn returns the checked-in roster for a session in check-in order.
func (h *AttendanceHandler) ListCheckedIn(c *gin.Context) {
	sessionID := c.Param("id")

	members, err := h.service.ListCheckedIn(requestContext(c), sessionID)
	if err != nil {
		if stderrors.Is(err, store.ErrSessionNotFound) {
			response.Error(c, errors.ErrSessionNotFound)
			return
		}
		response.Error(c, err)
		return
	}

	if members == nil {
		members = []string{}
	}
	response.Success(c, http.StatusOK, gin.H{
		"session_id": sessionID,
		"students":   members,
	})
}
