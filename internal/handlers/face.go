package handlers

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/openseva/seva-backend/internal/services"
)

type FaceHandler struct {
	faceService services.FaceService
}

func NewFaceHandler(faceService services.FaceService) *FaceHandler {
	return &FaceHandler{faceService: faceService}
}

// Enroll reads 3-5 multipart images under the "photos" field and builds the
// caller's face profile.
func (h *FaceHandler) Enroll(c *gin.Context) {
	participantID, ok := participantFromContext(c)
	if !ok {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("multipart form required"))
		return
	}
	files := form.File["photos"]
	if len(files) == 0 {
		RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("photos field is required"))
		return
	}

	images := make([][]byte, 0, len(files))
	for _, fh := range files {
		if fh.Size > maxPhotoBytes {
			RespondError(c, http.StatusBadRequest, "validation", fmt.Errorf("photo exceeds %d bytes", maxPhotoBytes))
			return
		}
		f, err := fh.Open()
		if err != nil {
			RespondError(c, http.StatusBadRequest, "validation", err)
			return
		}
		raw, err := io.ReadAll(io.LimitReader(f, maxPhotoBytes+1))
		f.Close()
		if err != nil {
			RespondError(c, http.StatusInternalServerError, "internal", err)
			return
		}
		images = append(images, raw)
	}

	result, err := h.faceService.Enroll(c.Request.Context(), participantID, images)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}

func (h *FaceHandler) VerifySession(c *gin.Context) {
	participantID, ok := participantFromContext(c)
	if !ok {
		return
	}
	sessionID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	result, err := h.faceService.VerifySession(c.Request.Context(), participantID, sessionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, result)
}
