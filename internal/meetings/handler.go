package meetings

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/crh-church/backend/internal/models"
	"github.com/crh-church/backend/pkg/response"
)

// Handler exposes meeting HTTP endpoints.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a meetings handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

type createRequest struct {
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	StartTime    time.Time `json:"startTime"`
	EndTime      time.Time `json:"endTime"`
	InviteEmails []string  `json:"inviteEmails"`
}

type updateRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	StartTime   *time.Time `json:"startTime"`
	EndTime     *time.Time `json:"endTime"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

type inviteRequest struct {
	Emails []string `json:"emails"`
}

// createdMeeting carries the join token alongside the meeting. Only the
// admin create response exposes the token; the serialized Meeting omits it.
type createdMeeting struct {
	*models.Meeting
	JoinToken string `json:"joinToken"`
}

// Create handles POST /api/meetings (admin).
func (h *Handler) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	m, err := h.service.Create(c.Request.Context(), CreateParams{
		Title:        req.Title,
		Description:  req.Description,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
		InviteEmails: req.InviteEmails,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.Created(c, createdMeeting{Meeting: m, JoinToken: m.JoinToken})
}

// List handles GET /api/meetings. Status filter via ?status=scheduled.
func (h *Handler) List(c *gin.Context) {
	list, err := h.service.List(c.Request.Context(), c.Query("status"))
	if err != nil {
		h.logger.Error("list meetings", zap.Error(err))
		response.Internal(c, "could not fetch meetings")
		return
	}
	response.OK(c, list)
}

// Get handles GET /api/meetings/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := h.meetingID(c)
	if !ok {
		return
	}
	m, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, m)
}

// Update handles PATCH /api/meetings/:id (admin).
func (h *Handler) Update(c *gin.Context) {
	id, ok := h.meetingID(c)
	if !ok {
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	m, err := h.service.Update(c.Request.Context(), id, UpdateParams{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, m)
}

// Cancel handles POST /api/meetings/:id/cancel (admin).
func (h *Handler) Cancel(c *gin.Context) {
	id, ok := h.meetingID(c)
	if !ok {
		return
	}
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	m, err := h.service.Cancel(c.Request.Context(), id, req.Reason)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, m)
}

// Join handles GET /api/meetings/:id/join?token=...
func (h *Handler) Join(c *gin.Context) {
	id, ok := h.meetingID(c)
	if !ok {
		return
	}
	info, err := h.service.ResolveJoin(c.Request.Context(), id, c.Query("token"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, info)
}

// Invite handles POST /api/meetings/:id/invites (admin).
func (h *Handler) Invite(c *gin.Context) {
	id, ok := h.meetingID(c)
	if !ok {
		return
	}
	var req inviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	sent, err := h.service.SendInvites(c.Request.Context(), id, req.Emails)
	if err != nil {
		h.writeError(c, err)
		return
	}
	response.OK(c, gin.H{"sent": sent})
}

func (h *Handler) meetingID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid meeting id")
		return 0, false
	}
	return id, true
}

func (h *Handler) writeError(c *gin.Context, err error) {
	var valErr *ValidationError
	switch {
	case errors.As(err, &valErr):
		response.BadRequest(c, valErr.Message)
	case errors.Is(err, ErrMeetingNotFound):
		response.NotFound(c, "Meeting not found")
	case errors.Is(err, ErrInvalidToken):
		response.Forbidden(c, "Invalid join token")
	case errors.Is(err, ErrMeetingCancelled):
		response.BadRequest(c, "Meeting has been cancelled")
	default:
		h.logger.Error("meeting request failed", zap.Error(err))
		response.Internal(c, "something went wrong")
	}
}
