package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/soundvault/backend/internal/model"
	"github.com/soundvault/backend/internal/service"
)

type MediaHandler struct {
	svc *service.MediaService
}

func NewMediaHandler(svc *service.MediaService) *MediaHandler {
	return &MediaHandler{svc: svc}
}

func (h *MediaHandler) CreateTrack(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req model.CreateTrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
		return
	}

	track, err := h.svc.CreateTrack(c.Request.Context(), user.ID, req)
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusCreated, track.Summary())
}

func (h *MediaHandler) ListTracks(c *gin.Context) {
	tracks, err := h.svc.ListTracks(c.Request.Context())
	if err != nil {
		writeAuthError(c, err)
		return
	}

	out := make([]model.TrackResponse, 0, len(tracks))
	for i := range tracks {
		out = append(out, tracks[i].Summary())
	}
	c.JSON(http.StatusOK, out)
}

// StreamToken mints a short-lived capability for one track. Requires a full
// session; the capability itself is what the stream endpoint accepts.
func (h *MediaHandler) StreamToken(c *gin.Context) {
	user := GetAuthUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	resp, err := h.svc.IssueStreamToken(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		writeAuthError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Stream relays track bytes from storage. The stream token travels as query
// parameter t because media elements cannot attach custom headers.
func (h *MediaHandler) Stream(c *gin.Context) {
	mediaID := c.Param("id")

	_, err := h.svc.Authorize(mediaID, c.Query("t"), GetAuthUser(c))
	if err != nil {
		writeAuthError(c, err)
		return
	}

	obj, err := h.svc.Stream(c.Request.Context(), mediaID, c.GetHeader("Range"))
	if err != nil {
		writeAuthError(c, err)
		return
	}
	defer obj.Body.Close()

	c.Header("Cache-Control", "no-store")
	c.Header("Content-Disposition", "inline")
	if obj.ContentType != "" {
		c.Header("Content-Type", obj.ContentType)
	}
	if obj.ContentLength != "" {
		c.Header("Content-Length", obj.ContentLength)
	}
	if obj.ContentRange != "" {
		c.Header("Content-Range", obj.ContentRange)
	}
	if obj.AcceptRanges != "" {
		c.Header("Accept-Ranges", obj.AcceptRanges)
	} else {
		c.Header("Accept-Ranges", "bytes")
	}

	c.Status(obj.StatusCode)

	// io.Copy ties client backpressure to the upstream read; a disconnect
	// cancels the request context and aborts the fetch.
	_, _ = io.Copy(c.Writer, obj.Body)
}
