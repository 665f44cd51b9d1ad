package handlers

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/openseva/seva-backend/internal/requestdata"
	"github.com/openseva/seva-backend/internal/services"
)

// 10MB per evidence photo.
const maxPhotoBytes = 10 << 20

type ActivityHandler struct {
	sessionService services.SessionService
	catalogService services.CatalogService
	bucketService  services.BucketService
}

func NewActivityHandler(sessionService services.SessionService, catalogService services.CatalogService, bucketService services.BucketService) *ActivityHandler {
	return &ActivityHandler{
		sessionService: sessionService,
		catalogService: catalogService,
		bucketService:  bucketService,
	}
}

func participantFromContext(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.ParticipantID == uuid.Nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not authenticated"})
		return uuid.Nil, false
	}
	return rd.ParticipantID, true
}

func parseIDParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid %s", name))
		return uuid.Nil, false
	}
	return id, true
}

func (h *ActivityHandler) ListActivityTypes(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	includePending := c.Query("include_pending") == "true" && rd != nil && rd.IsAdmin
	rows, err := h.catalogService.ListActivityTypes(c.Request.Context(), includePending)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"activity_types": rows})
}

func (h *ActivityHandler) RequestActivityType(c *gin.Context) {
	var body struct {
		Name        string   `json:"name"`
		Description *string  `json:"description"`
		MapsURL     *string  `json:"maps_url"`
		TargetLat   *float64 `json:"target_lat"`
		TargetLng   *float64 `json:"target_lng"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	row, err := h.catalogService.RequestActivityType(c.Request.Context(), services.RequestActivityTypeInput{
		Name:        body.Name,
		Description: body.Description,
		MapsURL:     body.MapsURL,
		TargetLat:   body.TargetLat,
		TargetLng:   body.TargetLng,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"activity_type": row})
}

func (h *ActivityHandler) CreateSession(c *gin.Context) {
	participantID, ok := participantFromContext(c)
	if !ok {
		return
	}
	var body struct {
		ActivityTypeID string  `json:"activity_type_id"`
		ActivityName   string  `json:"activity_name"`
		Description    *string `json:"description"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	activityTypeID, err := uuid.Parse(body.ActivityTypeID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("invalid activity_type_id"))
		return
	}
	if strings.TrimSpace(body.ActivityName) == "" {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("activity_name is required"))
		return
	}
	session, err := h.sessionService.CreateSession(c.Request.Context(), participantID, activityTypeID, body.ActivityName, body.Description)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"session": session})
}

func (h *ActivityHandler) ListSessions(c *gin.Context) {
	participantID, ok := participantFromContext(c)
	if !ok {
		return
	}
	sessions, err := h.sessionService.ListSessions(c.Request.Context(), participantID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"sessions": sessions})
}

func (h *ActivityHandler) GetSession(c *gin.Context) {
	participantID, ok := participantFromContext(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	detail, err := h.sessionService.GetSessionDetail(c.Request.Context(), participantID, sessionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, detail)
}

// UploadPhoto accepts one multipart evidence photo for a sequence slot. The
// raw file goes to the bucket first; a failed metadata write leaves an
// orphaned object, never a photo row without bytes.
func (h *ActivityHandler) UploadPhoto(c *gin.Context) {
	participantID, ok := participantFromContext(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	seqNo, err := strconv.Atoi(c.PostForm("seq_no"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("seq_no is required"))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("file is required"))
		return
	}
	if fileHeader.Size > maxPhotoBytes {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("file exceeds %d bytes", maxPhotoBytes))
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", err)
		return
	}
	defer f.Close()
	raw, err := io.ReadAll(io.LimitReader(f, maxPhotoBytes+1))
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}

	sum := sha256.Sum256(raw)
	shaHex := hex.EncodeToString(sum[:])

	var capturedAt *time.Time
	if v := c.PostForm("captured_at"); v != "" {
		t, perr := time.Parse(time.RFC3339, v)
		if perr != nil {
			RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("captured_at must be RFC3339"))
			return
		}
		capturedAt = &t
	}
	lat, ok := parseOptionalFloat(c, "lat")
	if !ok {
		return
	}
	lng, ok := parseOptionalFloat(c, "lng")
	if !ok {
		return
	}

	ext := strings.TrimPrefix(filepath.Ext(fileHeader.Filename), ".")
	key := services.NewEvidenceObjectKey(participantID, sessionID, ext)
	if err := h.bucketService.UploadFile(c.Request.Context(), key, bytes.NewReader(raw), fileHeader.Header.Get("Content-Type")); err != nil {
		RespondError(c, http.StatusInternalServerError, "internal", err)
		return
	}

	photo, err := h.sessionService.AddPhoto(c.Request.Context(), participantID, sessionID, services.AddPhotoInput{
		SeqNo:      seqNo,
		ObjectKey:  key,
		CapturedAt: capturedAt,
		Lat:        lat,
		Lng:        lng,
		SHA256:     &shaHex,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"photo": photo, "url": h.bucketService.GetPublicURL(key)})
}

func parseOptionalFloat(c *gin.Context, name string) (*float64, bool) {
	v := c.PostForm(name)
	if v == "" {
		return nil, true
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("%s must be a number", name))
		return nil, false
	}
	return &f, true
}

func (h *ActivityHandler) SubmitSession(c *gin.Context) {
	participantID, ok := participantFromContext(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	session, err := h.sessionService.SubmitSession(c.Request.Context(), participantID, sessionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"session": session})
}
