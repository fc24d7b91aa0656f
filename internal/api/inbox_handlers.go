package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"gofolio/internal/content"
	"gofolio/internal/model"
)

const (
	entityMessage = "message"
	entityMeeting = "meeting"
)

type messageRequest struct {
	Name    string `json:"name"    binding:"required,max=200"`
	Email   string `json:"email"   binding:"required,email"`
	Subject string `json:"subject" binding:"max=300"`
	Body    string `json:"body"    binding:"required,max=5000"`
}

type meetingRequest struct {
	Name        string    `json:"name"        binding:"required,max=200"`
	Email       string    `json:"email"       binding:"required,email"`
	Topic       string    `json:"topic"       binding:"required,max=500"`
	RequestedAt time.Time `json:"requestedAt" binding:"required"`
}

// createMessage stores a contact-form submission
// POST /api/v1/messages
func (r *Router) createMessage(c *gin.Context) {
	var req messageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	msg, err := r.catalog.Messages.Create(c.Request.Context(), model.Message{
		Name:    strings.TrimSpace(req.Name),
		Email:   strings.TrimSpace(req.Email),
		Subject: strings.TrimSpace(req.Subject),
		Body:    req.Body,
	})
	if err != nil {
		respondError(c, err, entityMessage, "create")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": msg.ID})
}

// createMeeting stores a meeting request in pending state
// POST /api/v1/meetings
func (r *Router) createMeeting(c *gin.Context) {
	var req meetingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	meeting, err := r.catalog.Meetings.Create(c.Request.Context(), model.Meeting{
		Name:        strings.TrimSpace(req.Name),
		Email:       strings.TrimSpace(req.Email),
		Topic:       strings.TrimSpace(req.Topic),
		RequestedAt: req.RequestedAt.UTC(),
		Status:      model.MeetingPending,
	})
	if err != nil {
		respondError(c, err, entityMeeting, "create")
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": meeting.ID, "status": meeting.Status})
}

// listMessages returns the inbox, newest first
// GET /api/v1/admin/messages?read=false&limit=N
func (r *Router) listMessages(c *gin.Context) {
	read, err := queryBool(c, "read")
	if err != nil {
		respondError(c, err, entityMessage, "list")
		return
	}
	limit, err := queryLimit(c)
	if err != nil {
		respondError(c, err, entityMessage, "list")
		return
	}

	messages, err := r.catalog.Messages.Find(c.Request.Context(), content.Filter{Read: read, Limit: limit})
	if err != nil {
		respondError(c, err, entityMessage, "list")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": messages,
		"count": len(messages),
	})
}

// GET /api/v1/admin/messages/:id
func (r *Router) getMessage(c *gin.Context) {
	msg, found, err := r.catalog.Messages.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, entityMessage, "get")
		return
	}
	if !found {
		notFound(c, entityMessage)
		return
	}
	c.JSON(http.StatusOK, msg)
}

// updateMessage marks a message read or unread
// PATCH /api/v1/admin/messages/:id
func (r *Router) updateMessage(c *gin.Context) {
	var patch model.MessagePatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBindError(c, err)
		return
	}
	if isEmptyPatch(patch) {
		respondError(c, content.ValidationError("read", "is required"), entityMessage, "update")
		return
	}

	msg, err := r.catalog.Messages.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err, entityMessage, "update")
		return
	}
	c.JSON(http.StatusOK, msg)
}

// DELETE /api/v1/admin/messages/:id
func (r *Router) deleteMessage(c *gin.Context) {
	if err := r.catalog.Messages.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, entityMessage, "delete")
		return
	}
	c.Status(http.StatusNoContent)
}

// listMeetings returns meeting requests, newest first
// GET /api/v1/admin/meetings?status=pending&limit=N
func (r *Router) listMeetings(c *gin.Context) {
	var f content.Filter
	if raw := c.Query("status"); raw != "" {
		status, err := model.ParseMeetingStatus(raw)
		if err != nil {
			respondError(c, content.ValidationError("status", "is not a meeting status"), entityMeeting, "list")
			return
		}
		f.Status = string(status)
	}
	limit, err := queryLimit(c)
	if err != nil {
		respondError(c, err, entityMeeting, "list")
		return
	}
	f.Limit = limit

	meetings, err := r.catalog.Meetings.Find(c.Request.Context(), f)
	if err != nil {
		respondError(c, err, entityMeeting, "list")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": meetings,
		"count": len(meetings),
	})
}

// GET /api/v1/admin/meetings/:id
func (r *Router) getMeeting(c *gin.Context) {
	meeting, found, err := r.catalog.Meetings.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, entityMeeting, "get")
		return
	}
	if !found {
		notFound(c, entityMeeting)
		return
	}
	c.JSON(http.StatusOK, meeting)
}

// PATCH /api/v1/admin/meetings/:id
func (r *Router) updateMeeting(c *gin.Context) {
	var patch model.MeetingPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBindError(c, err)
		return
	}
	if isEmptyPatch(patch) {
		respondError(c, content.ValidationError("body", "must contain at least one field"), entityMeeting, "update")
		return
	}

	meeting, err := r.catalog.Meetings.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err, entityMeeting, "update")
		return
	}
	c.JSON(http.StatusOK, meeting)
}

// DELETE /api/v1/admin/meetings/:id
func (r *Router) deleteMeeting(c *gin.Context) {
	if err := r.catalog.Meetings.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err, entityMeeting, "delete")
		return
	}
	c.Status(http.StatusNoContent)
}
