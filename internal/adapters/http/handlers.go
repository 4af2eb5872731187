package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/classline/classline/internal/app"
	"github.com/classline/classline/internal/app/orch"
	"github.com/classline/classline/internal/core"
	"github.com/classline/classline/internal/domain"
)

type Handlers struct {
	Orch *orch.Orchestrator
}

// statusFor keeps error kinds distinguishable at the client: "ended",
// "full" and "missing" each get their own status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, core.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrSessionEnded):
		return http.StatusGone
	case errors.Is(err, core.ErrCapacity):
		return http.StatusConflict
	case errors.Is(err, core.ErrNotInSession):
		return http.StatusForbidden
	case errors.Is(err, core.ErrConfiguration):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func fail(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

type createSessionRequest struct {
	Title           string          `json:"title" binding:"required"`
	OwnerID         string          `json:"owner_id" binding:"required"`
	OwnerName       string          `json:"owner_name"`
	MaxParticipants int             `json:"max_participants" binding:"required,gt=0"`
	Settings        domain.Settings `json:"settings"`
}

func (h *Handlers) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid fields"})
		return
	}
	sum, err := h.Orch.CreateSession(orch.CreateInput{
		Title:           req.Title,
		OwnerID:         domain.UserID(req.OwnerID),
		OwnerName:       req.OwnerName,
		MaxParticipants: req.MaxParticipants,
		Settings:        req.Settings,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"session":   sum,
		"share_ref": sum.RoomKey,
	})
}

func (h *Handlers) ListSessions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"sessions": h.Orch.ListSessions()})
}

func (h *Handlers) GetSession(c *gin.Context) {
	sum, err := h.Orch.GetSessionSummary(domain.SessionID(c.Param("id")))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

type joinSessionRequest struct {
	UserID      string `json:"user_id" binding:"required"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role" binding:"required"`
}

func (h *Handlers) JoinSession(c *gin.Context) {
	var req joinSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid fields"})
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be instructor or student"})
		return
	}
	res, err := h.Orch.JoinSession(
		domain.SessionID(c.Param("id")),
		domain.UserID(req.UserID), req.DisplayName, role,
	)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"session":     res.Summary,
		"participant": res.Participant,
		"credential":  res.Credential,
		"room_key":    res.RoomKey,
	})
}

type leaveSessionRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handlers) LeaveSession(c *gin.Context) {
	var req leaveSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid fields"})
		return
	}
	sum, err := h.Orch.LeaveSession(domain.SessionID(c.Param("id")), domain.UserID(req.UserID))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sum})
}

func (h *Handlers) EndSession(c *gin.Context) {
	if err := h.Orch.EndSession(domain.SessionID(c.Param("id"))); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ended"})
}

func (h *Handlers) UpdateSettings(c *gin.Context) {
	var patch domain.Settings
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "settings must be a flag map"})
		return
	}
	sum, err := h.Orch.UpdateSessionSettings(domain.SessionID(c.Param("id")), patch)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sum})
}

type recordingRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Action string `json:"action" binding:"required,oneof=start stop"`
}

func (h *Handlers) ControlRecording(c *gin.Context) {
	var req recordingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be start or stop"})
		return
	}
	sum, err := h.Orch.ControlRecording(
		domain.SessionID(c.Param("id")),
		domain.UserID(req.UserID),
		app.RecordingAction(req.Action),
	)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": sum})
}

type refreshTokenRequest struct {
	RoomKey       string `json:"room_key" binding:"required"`
	ParticipantID string `json:"participant_id" binding:"required"`
	Role          string `json:"role" binding:"required"`
}

func (h *Handlers) RefreshToken(c *gin.Context) {
	var req refreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing or invalid fields"})
		return
	}
	role, err := domain.ParseRole(req.Role)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "role must be instructor or student"})
		return
	}
	cred, err := h.Orch.IssueToken(
		domain.RoomKey(req.RoomKey),
		domain.UserID(req.ParticipantID), role,
	)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credential": cred})
}
