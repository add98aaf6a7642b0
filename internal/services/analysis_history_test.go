package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/visionvault-backend/internal/apierr"
	"github.com/yungbote/visionvault-backend/internal/repos"
	"github.com/yungbote/visionvault-backend/internal/types"
)

func newHistoryFixture(t *testing.T) (*gorm.DB, AnalysisHistoryService) {
	t.Helper()
	db := openTestDB(t)
	log := testLogger(t)
	history := NewAnalysisHistoryService(
		db,
		log,
		repos.NewAnalysisRepo(db, log),
		repos.NewObjectDetectionRepo(db, log),
		repos.NewImageDescriptionRepo(db, log),
		repos.NewFaceRecognitionRepo(db, log),
	)
	return db, history
}

// seedDescription writes one envelope plus its description variant
// with an explicit timestamp so ordering assertions are deterministic.
func seedDescription(t *testing.T, db *gorm.DB, userID uuid.UUID, sessionID *uuid.UUID, createdAt time.Time, text string) *types.ImageAnalysis {
	t.Helper()
	analysis := &types.ImageAnalysis{
		UserID:       userID,
		SessionID:    sessionID,
		AnalysisType: types.AnalysisTypeImageDescription,
		ImageHash:    fmt.Sprintf("hash-%s", text),
		CreatedAt:    createdAt,
	}
	if err := db.Create(analysis).Error; err != nil {
		t.Fatalf("seed envelope: %v", err)
	}
	variant := &types.ImageDescriptionResult{
		AnalysisID:  analysis.ID,
		UserID:      userID,
		ModelName:   "m",
		Description: text,
	}
	if err := db.Create(variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}
	return analysis
}

func TestGetUserHistoryOrdersNewestFirst(t *testing.T) {
	db, history := newHistoryFixture(t)
	userID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		seedDescription(t, db, userID, nil, base.Add(time.Duration(i)*time.Minute), fmt.Sprintf("t%d", i))
	}

	page, err := history.GetUserHistory(context.Background(), userID, 2, 0)
	if err != nil {
		t.Fatalf("GetUserHistory: %v", err)
	}
	if page.Total != 5 {
		t.Fatalf("total = %d, want 5", page.Total)
	}
	if len(page.Items) != 2 {
		t.Fatalf("len(items) = %d, want 2", len(page.Items))
	}
	if got := page.Items[0].ImageDescription.Description; got != "t5" {
		t.Fatalf("first item = %q, want t5", got)
	}
	if got := page.Items[1].ImageDescription.Description; got != "t4" {
		t.Fatalf("second item = %q, want t4", got)
	}
	if !page.HasMore {
		t.Fatalf("expected HasMore with 3 rows remaining")
	}
}

func TestGetUserHistoryLastPage(t *testing.T) {
	db, history := newHistoryFixture(t)
	userID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		seedDescription(t, db, userID, nil, base.Add(time.Duration(i)*time.Minute), fmt.Sprintf("t%d", i))
	}

	page, err := history.GetUserHistory(context.Background(), userID, 2, 4)
	if err != nil {
		t.Fatalf("GetUserHistory: %v", err)
	}
	if len(page.Items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(page.Items))
	}
	if got := page.Items[0].ImageDescription.Description; got != "t1" {
		t.Fatalf("last item = %q, want t1", got)
	}
	if page.HasMore {
		t.Fatalf("last page must not report more")
	}
}

func TestGetUserHistoryEmptyUser(t *testing.T) {
	_, history := newHistoryFixture(t)

	page, err := history.GetUserHistory(context.Background(), uuid.New(), 10, 0)
	if err != nil {
		t.Fatalf("GetUserHistory: %v", err)
	}
	if page.Total != 0 || len(page.Items) != 0 || page.HasMore {
		t.Fatalf("empty user should yield an empty page, got %+v", page)
	}
}

func TestGetUserHistoryValidation(t *testing.T) {
	_, history := newHistoryFixture(t)
	ctx := context.Background()

	if _, err := history.GetUserHistory(ctx, uuid.Nil, 10, 0); !errors.Is(err, apierr.ErrInvalidInput) {
		t.Fatalf("nil user: got %v", err)
	}
	if _, err := history.GetUserHistory(ctx, uuid.New(), 0, 0); !errors.Is(err, apierr.ErrInvalidInput) {
		t.Fatalf("zero limit: got %v", err)
	}
	if _, err := history.GetUserHistory(ctx, uuid.New(), 10, -1); !errors.Is(err, apierr.ErrInvalidInput) {
		t.Fatalf("negative offset: got %v", err)
	}
}

func TestGetUserHistoryClampsLimit(t *testing.T) {
	db, history := newHistoryFixture(t)
	userID := uuid.New()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		seedDescription(t, db, userID, nil, base.Add(time.Duration(i)*time.Minute), fmt.Sprintf("c%d", i))
	}

	page, err := history.GetUserHistory(context.Background(), userID, 100000, 0)
	if err != nil {
		t.Fatalf("oversized limit must be clamped, not rejected: %v", err)
	}
	if len(page.Items) != 3 || page.HasMore {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestGetAnalysisByIDHidesForeignRecords(t *testing.T) {
	db, history := newHistoryFixture(t)
	owner := uuid.New()
	analysis := seedDescription(t, db, owner, nil, time.Now(), "private")

	got, err := history.GetAnalysisByID(context.Background(), analysis.ID, owner)
	if err != nil {
		t.Fatalf("owner read: %v", err)
	}
	if got.ImageDescription == nil || got.ImageDescription.Description != "private" {
		t.Fatalf("owner read returned wrong record: %+v", got)
	}

	if _, err := history.GetAnalysisByID(context.Background(), analysis.ID, uuid.New()); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("foreign read must look like a missing record, got %v", err)
	}
	if _, err := history.GetAnalysisByID(context.Background(), uuid.New(), owner); !errors.Is(err, apierr.ErrNotFound) {
		t.Fatalf("missing record: got %v", err)
	}
}

func TestGetSessionHistoryOrdersNewestFirst(t *testing.T) {
	db, history := newHistoryFixture(t)
	userID := uuid.New()
	sessionID := uuid.New()
	otherSession := uuid.New()
	base := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	seedDescription(t, db, userID, &sessionID, base, "s1")
	seedDescription(t, db, userID, &sessionID, base.Add(time.Minute), "s2")
	seedDescription(t, db, userID, &otherSession, base.Add(2*time.Minute), "elsewhere")

	records, err := history.GetSessionHistory(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("GetSessionHistory: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].ImageDescription.Description != "s2" || records[1].ImageDescription.Description != "s1" {
		t.Fatalf("session records out of order")
	}
}

func TestHistoryMixesVariantKinds(t *testing.T) {
	db, history := newHistoryFixture(t)
	log := testLogger(t)
	userID := uuid.New()
	store := NewAnalysisStoreService(
		db,
		log,
		repos.NewAnalysisRepo(db, log),
		repos.NewObjectDetectionRepo(db, log),
		repos.NewImageDescriptionRepo(db, log),
		repos.NewFaceRecognitionRepo(db, log),
	)
	ctx := context.Background()

	if _, err := store.SaveObjectDetection(ctx, SaveObjectDetectionInput{
		UserID: userID, ImageBytes: []byte("a"), ModelName: "m",
		Detections: []DetectionInput{{Label: "dog", Confidence: 0.8}},
	}); err != nil {
		t.Fatalf("save detection: %v", err)
	}
	if _, err := store.SaveImageDescription(ctx, SaveImageDescriptionInput{
		UserID: userID, ImageBytes: []byte("b"), ModelName: "m", Description: "d",
	}); err != nil {
		t.Fatalf("save description: %v", err)
	}
	if _, err := store.SaveFaceRecognition(ctx, SaveFaceRecognitionInput{
		UserID: userID, ImageBytes: []byte("c"), Threshold: 0.6,
		Faces: []FaceInput{{Confidence: 0.9}},
	}); err != nil {
		t.Fatalf("save recognition: %v", err)
	}

	page, err := history.GetUserHistory(ctx, userID, 10, 0)
	if err != nil {
		t.Fatalf("GetUserHistory: %v", err)
	}
	if len(page.Items) != 3 {
		t.Fatalf("len(items) = %d, want 3", len(page.Items))
	}
	for _, item := range page.Items {
		variants := 0
		if item.ObjectDetection != nil {
			variants++
			if len(item.ObjectDetection.Objects) != 1 {
				t.Fatalf("detection children not preloaded")
			}
		}
		if item.ImageDescription != nil {
			variants++
		}
		if item.FaceRecognition != nil {
			variants++
			if len(item.FaceRecognition.Faces) != 1 {
				t.Fatalf("recognition children not preloaded")
			}
		}
		if variants != 1 {
			t.Fatalf("record %s resolved %d variants, want exactly 1", item.Analysis.ID, variants)
		}
	}
}

func TestGetUserHistoryStableOrderOnEqualTimestamps(t *testing.T) {
	db, history := newHistoryFixture(t)
	userID := uuid.New()
	ts := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	seeded := map[uuid.UUID]bool{}
	for i := 0; i < 4; i++ {
		a := seedDescription(t, db, userID, nil, ts, fmt.Sprintf("tie%d", i))
		seeded[a.ID] = true
	}
	ctx := context.Background()

	collect := func() []uuid.UUID {
		var ids []uuid.UUID
		for offset := 0; offset < 4; offset++ {
			page, err := history.GetUserHistory(ctx, userID, 1, offset)
			if err != nil {
				t.Fatalf("page offset %d: %v", offset, err)
			}
			if len(page.Items) != 1 {
				t.Fatalf("page offset %d returned %d items", offset, len(page.Items))
			}
			ids = append(ids, page.Items[0].Analysis.ID)
		}
		return ids
	}

	first := collect()
	seen := map[uuid.UUID]bool{}
	for i, id := range first {
		if seen[id] {
			t.Fatalf("id %s repeated across pages", id)
		}
		seen[id] = true
		if !seeded[id] {
			t.Fatalf("page returned unknown id %s", id)
		}
		if i > 0 && first[i].String() > first[i-1].String() {
			t.Fatalf("equal timestamps must fall back to id DESC: %s before %s", first[i-1], first[i])
		}
	}
	if len(seen) != 4 {
		t.Fatalf("pages covered %d of 4 rows", len(seen))
	}

	second := collect()
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("repeated reads disagreed at page %d: %s vs %s", i, first[i], second[i])
		}
	}
}
