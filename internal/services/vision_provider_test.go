package services

import (
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"
)

func TestObjectsFromAnnotationsFiltersAndBoxes(t *testing.T) {
	annotations := []*visionpb.LocalizedObjectAnnotation{
		{
			Name:  "cat",
			Score: 0.91,
			BoundingPoly: &visionpb.BoundingPoly{
				NormalizedVertices: []*visionpb.NormalizedVertex{
					{X: 0.5, Y: 0.6}, {X: 0.1, Y: 0.2}, {X: 0.5, Y: 0.2}, {X: 0.1, Y: 0.6},
				},
			},
		},
		{Name: "shadow", Score: 0.2},
		{
			Name:  "sofa",
			Score: 0.72,
			BoundingPoly: &visionpb.BoundingPoly{
				NormalizedVertices: []*visionpb.NormalizedVertex{{X: 0, Y: 0.4}, {X: 1, Y: 1}},
			},
		},
	}

	objects := objectsFromAnnotations(annotations, DetectionSettings{Threshold: 0.5})
	if len(objects) != 2 {
		t.Fatalf("len(objects) = %d, want 2 after threshold filter", len(objects))
	}
	cat := objects[0]
	if cat.Label != "cat" || cat.Confidence != float64(float32(0.91)) {
		t.Fatalf("unexpected first object: %+v", cat)
	}
	wantBox := BoundingBox{X1: float64(float32(0.1)), Y1: float64(float32(0.2)), X2: float64(float32(0.5)), Y2: float64(float32(0.6))}
	if cat.Box != wantBox {
		t.Fatalf("box = %+v, want min/max over all vertices %+v", cat.Box, wantBox)
	}
}

func TestObjectsFromAnnotationsCapsAtMaxObjects(t *testing.T) {
	annotations := []*visionpb.LocalizedObjectAnnotation{
		{Name: "a", Score: 0.9},
		{Name: "b", Score: 0.8},
		{Name: "c", Score: 0.7},
	}
	objects := objectsFromAnnotations(annotations, DetectionSettings{Threshold: 0.5, MaxObjects: 2})
	if len(objects) != 2 {
		t.Fatalf("len(objects) = %d, want cap of 2", len(objects))
	}
}

func TestFacesFromAnnotationsAnonymousWithAttributes(t *testing.T) {
	annotations := []*visionpb.FaceAnnotation{
		{
			DetectionConfidence: 0.93,
			JoyLikelihood:       visionpb.Likelihood_VERY_LIKELY,
			SorrowLikelihood:    visionpb.Likelihood_VERY_UNLIKELY,
			BoundingPoly: &visionpb.BoundingPoly{
				Vertices: []*visionpb.Vertex{{X: 10, Y: 20}, {X: 110, Y: 20}, {X: 110, Y: 140}, {X: 10, Y: 140}},
			},
		},
		{DetectionConfidence: 0.3},
	}

	faces := facesFromAnnotations(annotations, 0.6)
	if len(faces) != 1 {
		t.Fatalf("len(faces) = %d, want 1 after threshold filter", len(faces))
	}
	face := faces[0]
	if face.PersonID != nil || face.PersonName != nil {
		t.Fatalf("detected faces must stay anonymous: %+v", face)
	}
	if face.Box == nil || face.Box.X1 != 10 || face.Box.Y2 != 140 {
		t.Fatalf("unexpected box: %+v", face.Box)
	}
	if face.Attributes["joy"] != "VERY_LIKELY" || face.Attributes["sorrow"] != "VERY_UNLIKELY" {
		t.Fatalf("likelihood attributes missing: %+v", face.Attributes)
	}
}

func TestPixelBoxEmptyPoly(t *testing.T) {
	if pixelBox(nil) != nil {
		t.Fatalf("nil poly must yield no box")
	}
	if pixelBox(&visionpb.BoundingPoly{}) != nil {
		t.Fatalf("empty poly must yield no box")
	}
}
