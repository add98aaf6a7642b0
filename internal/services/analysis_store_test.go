package services

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/visionvault-backend/internal/apierr"
	"github.com/yungbote/visionvault-backend/internal/repos"
	"github.com/yungbote/visionvault-backend/internal/types"
	"github.com/yungbote/visionvault-backend/internal/utils"
)

func newStoreFixture(t *testing.T) (*gorm.DB, AnalysisStoreService) {
	t.Helper()
	db := openTestDB(t)
	log := testLogger(t)
	store := NewAnalysisStoreService(
		db,
		log,
		repos.NewAnalysisRepo(db, log),
		repos.NewObjectDetectionRepo(db, log),
		repos.NewImageDescriptionRepo(db, log),
		repos.NewFaceRecognitionRepo(db, log),
	)
	return db, store
}

func TestSaveObjectDetectionPersistsEnvelopeVariantAndChildren(t *testing.T) {
	db, store := newStoreFixture(t)
	userID := uuid.New()
	img := []byte("fake image bytes")

	record, err := store.SaveObjectDetection(context.Background(), SaveObjectDetectionInput{
		UserID:        userID,
		ImageBytes:    img,
		FileName:      "photo.jpg",
		ImageFormat:   "jpeg",
		ModelName:     "gcp-object-localization",
		ModelSettings: map[string]any{"threshold": 0.5},
		Detections: []DetectionInput{
			{Label: "cat", Confidence: 0.91, Box: BoundingBox{X1: 0.1, Y1: 0.2, X2: 0.5, Y2: 0.6}},
			{Label: "sofa", Confidence: 0.72, Box: BoundingBox{X1: 0, Y1: 0.4, X2: 1, Y2: 1}},
		},
		ProcessingTimeMs: 120,
	})
	if err != nil {
		t.Fatalf("SaveObjectDetection: %v", err)
	}
	if record.Analysis == nil || record.ObjectDetection == nil {
		t.Fatalf("expected envelope and detection variant, got %+v", record)
	}
	if record.ImageDescription != nil || record.FaceRecognition != nil {
		t.Fatalf("expected exactly one variant on the record")
	}
	if record.Analysis.AnalysisType != types.AnalysisTypeObjectDetection {
		t.Fatalf("wrong type tag: %q", record.Analysis.AnalysisType)
	}
	if record.Analysis.ImageHash != utils.Fingerprint(img) {
		t.Fatalf("image hash mismatch")
	}
	if record.ObjectDetection.UserID != userID {
		t.Fatalf("variant user id %s does not match envelope owner %s", record.ObjectDetection.UserID, userID)
	}

	var envelopes, variants, children int64
	db.Model(&types.ImageAnalysis{}).Count(&envelopes)
	db.Model(&types.ObjectDetectionResult{}).Count(&variants)
	db.Model(&types.DetectedObject{}).Count(&children)
	if envelopes != 1 || variants != 1 || children != 2 {
		t.Fatalf("row counts = (%d, %d, %d), want (1, 1, 2)", envelopes, variants, children)
	}
}

func TestSaveImageDescriptionRoundTrip(t *testing.T) {
	db, store := newStoreFixture(t)
	log := testLogger(t)
	userID := uuid.New()
	maxTokens := 150
	temp := 0.7

	saved, err := store.SaveImageDescription(context.Background(), SaveImageDescriptionInput{
		UserID:           userID,
		ImageBytes:       []byte("desk photo"),
		ModelName:        "gpt-4o-mini",
		Prompt:           "What is on the desk?",
		MaxNewTokens:     &maxTokens,
		Temperature:      &temp,
		Description:      "A cup on a table.",
		ProcessingTimeMs: 840,
	})
	if err != nil {
		t.Fatalf("SaveImageDescription: %v", err)
	}

	history := NewAnalysisHistoryService(
		db,
		log,
		repos.NewAnalysisRepo(db, log),
		repos.NewObjectDetectionRepo(db, log),
		repos.NewImageDescriptionRepo(db, log),
		repos.NewFaceRecognitionRepo(db, log),
	)
	got, err := history.GetAnalysisByID(context.Background(), saved.Analysis.ID, userID)
	if err != nil {
		t.Fatalf("GetAnalysisByID: %v", err)
	}
	d := got.ImageDescription
	if d == nil {
		t.Fatalf("expected description variant")
	}
	if d.Description != "A cup on a table." || d.Prompt != "What is on the desk?" {
		t.Fatalf("text fields did not round-trip: %+v", d)
	}
	if d.MaxNewTokens == nil || *d.MaxNewTokens != 150 {
		t.Fatalf("max_new_tokens did not round-trip")
	}
	if d.Temperature == nil || *d.Temperature != 0.7 {
		t.Fatalf("temperature did not round-trip")
	}
	if d.ProcessingTimeMs != 840 {
		t.Fatalf("processing time did not round-trip: %d", d.ProcessingTimeMs)
	}
}

func TestSaveFaceRecognitionPersistsFaces(t *testing.T) {
	db, store := newStoreFixture(t)
	userID := uuid.New()
	personID := uuid.New()
	personName := "Ada"
	box := BoundingBox{X1: 10, Y1: 20, X2: 110, Y2: 140}

	record, err := store.SaveFaceRecognition(context.Background(), SaveFaceRecognitionInput{
		UserID:     userID,
		ImageBytes: []byte("group photo"),
		Threshold:  0.6,
		Faces: []FaceInput{
			{PersonID: &personID, PersonName: &personName, Confidence: 0.93, Box: &box},
			{Confidence: 0.71},
		},
		ProcessingTimeMs: 310,
	})
	if err != nil {
		t.Fatalf("SaveFaceRecognition: %v", err)
	}
	if len(record.FaceRecognition.Faces) != 2 {
		t.Fatalf("expected 2 faces on record, got %d", len(record.FaceRecognition.Faces))
	}

	var faces []types.RecognizedFace
	if err := db.Find(&faces).Error; err != nil {
		t.Fatalf("fetch faces: %v", err)
	}
	if len(faces) != 2 {
		t.Fatalf("expected 2 face rows, got %d", len(faces))
	}
	var matched, unmatched int
	for _, f := range faces {
		if f.PersonID != nil {
			matched++
			if f.PersonName == nil || *f.PersonName != "Ada" {
				t.Fatalf("matched face lost its name: %+v", f)
			}
			if f.X1 == nil || *f.X1 != 10 || f.Y2 == nil || *f.Y2 != 140 {
				t.Fatalf("matched face lost its box: %+v", f)
			}
		} else {
			unmatched++
			if f.PersonName != nil {
				t.Fatalf("unmatched face should have no name")
			}
			if f.X1 != nil {
				t.Fatalf("unmatched face should have no box")
			}
		}
	}
	if matched != 1 || unmatched != 1 {
		t.Fatalf("matched/unmatched = %d/%d, want 1/1", matched, unmatched)
	}
}

type failingObjectRepo struct {
	repos.ObjectDetectionRepo
}

func (f *failingObjectRepo) CreateObjects(ctx context.Context, tx *gorm.DB, objects []*types.DetectedObject) ([]*types.DetectedObject, error) {
	return nil, fmt.Errorf("simulated child insert failure")
}

func TestSaveObjectDetectionRollsBackOnChildFailure(t *testing.T) {
	db := openTestDB(t)
	log := testLogger(t)
	store := NewAnalysisStoreService(
		db,
		log,
		repos.NewAnalysisRepo(db, log),
		&failingObjectRepo{ObjectDetectionRepo: repos.NewObjectDetectionRepo(db, log)},
		repos.NewImageDescriptionRepo(db, log),
		repos.NewFaceRecognitionRepo(db, log),
	)

	_, err := store.SaveObjectDetection(context.Background(), SaveObjectDetectionInput{
		UserID:     uuid.New(),
		ImageBytes: []byte("img"),
		ModelName:  "m",
		Detections: []DetectionInput{{Label: "cat", Confidence: 0.9}},
	})
	if !errors.Is(err, apierr.ErrPersistence) {
		t.Fatalf("expected persistence error, got %v", err)
	}

	var envelopes, variants, children int64
	db.Model(&types.ImageAnalysis{}).Count(&envelopes)
	db.Model(&types.ObjectDetectionResult{}).Count(&variants)
	db.Model(&types.DetectedObject{}).Count(&children)
	if envelopes != 0 || variants != 0 || children != 0 {
		t.Fatalf("rollback left rows behind: (%d, %d, %d)", envelopes, variants, children)
	}
}

func TestResubmittingSameImageCreatesNewRecord(t *testing.T) {
	db, store := newStoreFixture(t)
	userID := uuid.New()
	img := []byte("the very same image")

	first, err := store.SaveImageDescription(context.Background(), SaveImageDescriptionInput{
		UserID: userID, ImageBytes: img, ModelName: "m", Description: "one",
	})
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, err := store.SaveImageDescription(context.Background(), SaveImageDescriptionInput{
		UserID: userID, ImageBytes: img, ModelName: "m", Description: "two",
	})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}

	if first.Analysis.ID == second.Analysis.ID {
		t.Fatalf("resubmission reused an envelope id")
	}
	if first.Analysis.ImageHash != second.Analysis.ImageHash {
		t.Fatalf("equal bytes must produce equal hashes")
	}
	var count int64
	db.Model(&types.ImageAnalysis{}).Count(&count)
	if count != 2 {
		t.Fatalf("expected 2 envelopes, got %d", count)
	}
}

func TestSaveRejectsInvalidInput(t *testing.T) {
	_, store := newStoreFixture(t)
	ctx := context.Background()

	if _, err := store.SaveObjectDetection(ctx, SaveObjectDetectionInput{
		ImageBytes: []byte("img"), ModelName: "m",
	}); !errors.Is(err, apierr.ErrInvalidInput) {
		t.Fatalf("missing user id: got %v", err)
	}
	if _, err := store.SaveImageDescription(ctx, SaveImageDescriptionInput{
		UserID: uuid.New(), ModelName: "m", Description: "d",
	}); !errors.Is(err, apierr.ErrInvalidInput) {
		t.Fatalf("missing image bytes: got %v", err)
	}
	if _, err := store.SaveFaceRecognition(ctx, SaveFaceRecognitionInput{
		UserID: uuid.New(), ImageBytes: []byte("img"), ProcessingTimeMs: -1,
	}); !errors.Is(err, apierr.ErrInvalidInput) {
		t.Fatalf("negative processing time: got %v", err)
	}
}
