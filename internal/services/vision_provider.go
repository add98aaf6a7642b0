package services

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/yungbote/visionvault-backend/internal/logger"
)

// ObjectDetector is the inference collaborator for object detection.
// Implementations run no persistence; the store never calls them.
type ObjectDetector interface {
	DetectObjects(ctx context.Context, img []byte, settings DetectionSettings) (*DetectionOutput, error)
}

// FaceRecognizer is the inference collaborator for face detection and
// identity matching.
type FaceRecognizer interface {
	RecognizeFaces(ctx context.Context, img []byte, threshold float64) (*FaceRecognitionOutput, error)
}

type DetectionSettings struct {
	Threshold  float64        `json:"threshold"`
	MaxObjects int            `json:"max_objects"`
	Extra      map[string]any `json:"extra,omitempty"`
}

type DetectionOutput struct {
	ModelName        string
	Objects          []DetectionInput
	ProcessingTimeMs int64
}

type FaceRecognitionOutput struct {
	Faces            []FaceInput
	ProcessingTimeMs int64
}

const defaultMaxFaces = 50

// VisionProviderService wraps the GCP Vision image annotator as both
// an ObjectDetector and a FaceRecognizer. Faces found here carry no
// identity: PersonID/PersonName stay nil and only the detection
// confidence and box are reported.
type VisionProviderService interface {
	ObjectDetector
	FaceRecognizer
	Close() error
}

type visionProviderService struct {
	log    *logger.Logger
	client *vision.ImageAnnotatorClient
}

func NewVisionProviderService(ctx context.Context, log *logger.Logger) (VisionProviderService, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	serviceLog := log.With("service", "VisionProviderService")

	creds := strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS_JSON"))
	if creds == "" {
		creds = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var opts []option.ClientOption
	if creds != "" {
		opts = append(opts, option.WithCredentialsFile(creds))
	}
	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("vision client: %w", err)
	}
	return &visionProviderService{log: serviceLog, client: client}, nil
}

func (s *visionProviderService) annotate(ctx context.Context, img []byte, feature visionpb.Feature_Type, maxResults int32) (*visionpb.AnnotateImageResponse, error) {
	resp, err := s.client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: img},
			Features: []*visionpb.Feature{{Type: feature, MaxResults: maxResults}},
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("annotate request failed: %w", err)
	}
	responses := resp.GetResponses()
	if len(responses) == 0 {
		return nil, fmt.Errorf("annotate returned no responses")
	}
	annotated := responses[0]
	if st := annotated.GetError(); st != nil {
		return nil, fmt.Errorf("annotation failed: %s", st.GetMessage())
	}
	return annotated, nil
}

func (s *visionProviderService) DetectObjects(ctx context.Context, img []byte, settings DetectionSettings) (*DetectionOutput, error) {
	if len(img) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	start := time.Now()

	annotated, err := s.annotate(ctx, img, visionpb.Feature_OBJECT_LOCALIZATION, 0)
	if err != nil {
		return nil, err
	}
	return &DetectionOutput{
		ModelName:        "gcp-object-localization",
		Objects:          objectsFromAnnotations(annotated.GetLocalizedObjectAnnotations(), settings),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func (s *visionProviderService) RecognizeFaces(ctx context.Context, img []byte, threshold float64) (*FaceRecognitionOutput, error) {
	if len(img) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	start := time.Now()

	annotated, err := s.annotate(ctx, img, visionpb.Feature_FACE_DETECTION, defaultMaxFaces)
	if err != nil {
		return nil, err
	}
	return &FaceRecognitionOutput{
		Faces:            facesFromAnnotations(annotated.GetFaceAnnotations(), threshold),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func (s *visionProviderService) Close() error {
	return s.client.Close()
}

func objectsFromAnnotations(annotations []*visionpb.LocalizedObjectAnnotation, settings DetectionSettings) []DetectionInput {
	objects := make([]DetectionInput, 0, len(annotations))
	for _, ann := range annotations {
		score := float64(ann.GetScore())
		if score < settings.Threshold {
			continue
		}
		if settings.MaxObjects > 0 && len(objects) >= settings.MaxObjects {
			break
		}
		objects = append(objects, DetectionInput{
			Label:      ann.GetName(),
			Confidence: score,
			Box:        normalizedBox(ann.GetBoundingPoly()),
		})
	}
	return objects
}

func facesFromAnnotations(annotations []*visionpb.FaceAnnotation, threshold float64) []FaceInput {
	faces := make([]FaceInput, 0, len(annotations))
	for _, ann := range annotations {
		confidence := float64(ann.GetDetectionConfidence())
		if confidence < threshold {
			continue
		}
		face := FaceInput{
			Confidence: confidence,
			Attributes: map[string]any{
				"joy":      ann.GetJoyLikelihood().String(),
				"sorrow":   ann.GetSorrowLikelihood().String(),
				"anger":    ann.GetAngerLikelihood().String(),
				"surprise": ann.GetSurpriseLikelihood().String(),
			},
		}
		if box := pixelBox(ann.GetBoundingPoly()); box != nil {
			face.Box = box
		}
		faces = append(faces, face)
	}
	return faces
}

func normalizedBox(poly *visionpb.BoundingPoly) BoundingBox {
	var box BoundingBox
	vertices := poly.GetNormalizedVertices()
	if len(vertices) == 0 {
		return box
	}
	box.X1, box.Y1 = float64(vertices[0].GetX()), float64(vertices[0].GetY())
	box.X2, box.Y2 = box.X1, box.Y1
	for _, v := range vertices[1:] {
		x, y := float64(v.GetX()), float64(v.GetY())
		if x < box.X1 {
			box.X1 = x
		}
		if y < box.Y1 {
			box.Y1 = y
		}
		if x > box.X2 {
			box.X2 = x
		}
		if y > box.Y2 {
			box.Y2 = y
		}
	}
	return box
}

func pixelBox(poly *visionpb.BoundingPoly) *BoundingBox {
	vertices := poly.GetVertices()
	if len(vertices) == 0 {
		return nil
	}
	box := BoundingBox{
		X1: float64(vertices[0].GetX()),
		Y1: float64(vertices[0].GetY()),
	}
	box.X2, box.Y2 = box.X1, box.Y1
	for _, v := range vertices[1:] {
		x, y := float64(v.GetX()), float64(v.GetY())
		if x < box.X1 {
			box.X1 = x
		}
		if y < box.Y1 {
			box.Y1 = y
		}
		if x > box.X2 {
			box.X2 = x
		}
		if y > box.Y2 {
			box.Y2 = y
		}
	}
	return &box
}
