package qdrantidx

import (
	"context"
	"errors"
	"testing"

	"github.com/qdrant/go-client/qdrant"
)

func filePoint(id uint64, fileName string) *qdrant.RetrievedPoint {
	return &qdrant.RetrievedPoint{
		Id:      qdrant.NewIDNum(id),
		Payload: qdrant.NewValueMap(map[string]interface{}{"file_name": fileName}),
	}
}

func TestCollectFileNamesFollowsNextPageOffset(t *testing.T) {
	pages := [][]*qdrant.RetrievedPoint{
		{filePoint(1, "handbook.pdf"), filePoint(2, "policy.pdf")},
		{filePoint(3, "policy.pdf"), filePoint(4, "onboarding.md")},
	}
	nextOffsets := []*qdrant.PointId{qdrant.NewIDNum(3), nil}

	var calls int
	var receivedOffsets []*qdrant.PointId
	page := func(ctx context.Context, offset *qdrant.PointId) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error) {
		receivedOffsets = append(receivedOffsets, offset)
		result := pages[calls]
		next := nextOffsets[calls]
		calls++
		return result, next, nil
	}

	files, err := collectFileNames(context.Background(), page)
	if err != nil {
		t.Fatalf("collect failed: %v", err)
	}

	if calls != 2 {
		t.Fatalf("expected 2 page fetches, got %d", calls)
	}
	if receivedOffsets[0] != nil {
		t.Error("first page must start from the beginning")
	}
	if receivedOffsets[1].GetNum() != 3 {
		t.Errorf("second page must start at the reported next offset, got %v", receivedOffsets[1])
	}

	want := []string{"handbook.pdf", "onboarding.md", "policy.pdf"}
	if len(files) != len(want) {
		t.Fatalf("expected files %v, got %v", want, files)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Fatalf("expected files %v, got %v", want, files)
		}
	}
}

func TestCollectFileNamesStopsOnError(t *testing.T) {
	page := func(ctx context.Context, offset *qdrant.PointId) ([]*qdrant.RetrievedPoint, *qdrant.PointId, error) {
		return nil, nil, errors.New("collection not found")
	}

	if _, err := collectFileNames(context.Background(), page); err == nil {
		t.Fatal("expected scroll error to propagate")
	}
}
