package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/visionvault-backend/internal/logger"
	"github.com/yungbote/visionvault-backend/internal/requestdata"
	"github.com/yungbote/visionvault-backend/internal/services"
)

const maxUploadBytes = 20 << 20

type VisionHandler struct {
	log        *logger.Logger
	store      services.AnalysisStoreService
	history    services.AnalysisHistoryService
	detector   services.ObjectDetector
	describer  services.ImageDescriber
	recognizer services.FaceRecognizer
}

func NewVisionHandler(
	log *logger.Logger,
	store services.AnalysisStoreService,
	history services.AnalysisHistoryService,
	detector services.ObjectDetector,
	describer services.ImageDescriber,
	recognizer services.FaceRecognizer,
) *VisionHandler {
	handlerLog := log.With("handler", "VisionHandler")
	return &VisionHandler{
		log:        handlerLog,
		store:      store,
		history:    history,
		detector:   detector,
		describer:  describer,
		recognizer: recognizer,
	}
}

type uploadedImage struct {
	Bytes     []byte
	FileName  string
	SessionID *uuid.UUID
}

func (vh *VisionHandler) readUpload(c *gin.Context) (*uploadedImage, bool) {
	fileHeader, err := c.FormFile("image")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return nil, false
	}
	if fileHeader.Size > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return nil, false
	}
	file, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return nil, false
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_input", err)
		return nil, false
	}
	if len(data) > maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image too large"})
		return nil, false
	}

	upload := &uploadedImage{Bytes: data, FileName: fileHeader.Filename}
	if raw := c.PostForm("session_id"); raw != "" {
		sessionID, pErr := uuid.Parse(raw)
		if pErr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session_id"})
			return nil, false
		}
		upload.SessionID = &sessionID
	}
	return upload, true
}

// DetectObjects runs object detection on the uploaded image and
// persists the result under the caller's account.
func (vh *VisionHandler) DetectObjects(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	upload, ok := vh.readUpload(c)
	if !ok {
		return
	}

	settings := services.DetectionSettings{Threshold: 0.5, MaxObjects: 50}
	if raw := c.PostForm("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threshold"})
			return
		}
		settings.Threshold = v
	}
	if raw := c.PostForm("max_objects"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_objects"})
			return
		}
		settings.MaxObjects = v
	}

	output, err := vh.detector.DetectObjects(c.Request.Context(), upload.Bytes, settings)
	if err != nil {
		vh.log.Warn("Object detection failed", "error", err, "user_id", rd.UserID)
		RespondError(c, http.StatusBadGateway, "inference", err)
		return
	}

	record, err := vh.store.SaveObjectDetection(c.Request.Context(), services.SaveObjectDetectionInput{
		UserID:     rd.UserID,
		SessionID:  upload.SessionID,
		ImageBytes: upload.Bytes,
		FileName:   upload.FileName,
		ModelName:  output.ModelName,
		ModelSettings: map[string]any{
			"threshold":   settings.Threshold,
			"max_objects": settings.MaxObjects,
		},
		Detections:       output.Objects,
		ProcessingTimeMs: output.ProcessingTimeMs,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, record)
}

// DescribeImage generates a natural-language description of the
// uploaded image and persists it.
func (vh *VisionHandler) DescribeImage(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	upload, ok := vh.readUpload(c)
	if !ok {
		return
	}

	req := services.DescribeRequest{Prompt: c.PostForm("prompt")}
	if raw := c.PostForm("max_new_tokens"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid max_new_tokens"})
			return
		}
		req.MaxNewTokens = &v
	}
	if raw := c.PostForm("temperature"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 2 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid temperature"})
			return
		}
		req.Temperature = &v
	}

	output, err := vh.describer.DescribeImage(c.Request.Context(), upload.Bytes, req)
	if err != nil {
		vh.log.Warn("Image description failed", "error", err, "user_id", rd.UserID)
		RespondError(c, http.StatusBadGateway, "inference", err)
		return
	}

	record, err := vh.store.SaveImageDescription(c.Request.Context(), services.SaveImageDescriptionInput{
		UserID:           rd.UserID,
		SessionID:        upload.SessionID,
		ImageBytes:       upload.Bytes,
		FileName:         upload.FileName,
		ModelName:        output.ModelName,
		Prompt:           output.Prompt,
		MaxNewTokens:     req.MaxNewTokens,
		Temperature:      req.Temperature,
		Description:      output.Description,
		ProcessingTimeMs: output.ProcessingTimeMs,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, record)
}

// RecognizeFaces matches faces in the uploaded image against the
// recognizer's gallery and persists the result.
func (vh *VisionHandler) RecognizeFaces(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	upload, ok := vh.readUpload(c)
	if !ok {
		return
	}

	threshold := 0.6
	if raw := c.PostForm("threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid threshold"})
			return
		}
		threshold = v
	}

	output, err := vh.recognizer.RecognizeFaces(c.Request.Context(), upload.Bytes, threshold)
	if err != nil {
		vh.log.Warn("Face recognition failed", "error", err, "user_id", rd.UserID)
		RespondError(c, http.StatusBadGateway, "inference", err)
		return
	}

	record, err := vh.store.SaveFaceRecognition(c.Request.Context(), services.SaveFaceRecognitionInput{
		UserID:           rd.UserID,
		SessionID:        upload.SessionID,
		ImageBytes:       upload.Bytes,
		FileName:         upload.FileName,
		Threshold:        threshold,
		Faces:            output.Faces,
		ProcessingTimeMs: output.ProcessingTimeMs,
	})
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, record)
}

// GetHistory returns one page of the caller's analysis history,
// newest first.
func (vh *VisionHandler) GetHistory(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	limit := 20
	offset := 0
	if raw := c.Query("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = v
	}
	if raw := c.Query("offset"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid offset"})
			return
		}
		offset = v
	}

	page, err := vh.history.GetUserHistory(c.Request.Context(), rd.UserID, limit, offset)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, page)
}

// GetAnalysis returns one analysis by id. Records owned by other
// users are indistinguishable from records that do not exist.
func (vh *VisionHandler) GetAnalysis(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid analysis id"})
		return
	}
	record, err := vh.history.GetAnalysisByID(c.Request.Context(), id, rd.UserID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, record)
}

// GetSession returns every analysis recorded under one session id,
// newest first, filtered to the caller's own records.
func (vh *VisionHandler) GetSession(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}
	records, err := vh.history.GetSessionHistory(c.Request.Context(), sessionID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	owned := make([]*services.AnalysisRecord, 0, len(records))
	for _, r := range records {
		if r.Analysis != nil && r.Analysis.UserID == rd.UserID {
			owned = append(owned, r)
		}
	}
	RespondOK(c, owned)
}
