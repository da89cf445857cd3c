package repository

import (
	"context"
	"testing"
	"time"

	"product-authenticity-service/internal/domain"
)

func TestVerificationLogRepository_AppendAndFind(t *testing.T) {
	ctx := context.Background()
	repo := NewVerificationLogRepository(setupTestDB(t))

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	entries := []*domain.VerificationLogEntry{
		{
			ProductID:           "P100",
			VisibleLayerMatched: true,
			Method:              domain.VerificationMethodManualID,
			Outcome:             domain.OutcomeSuspiciousHiddenLayerMissing,
			Reason:              domain.OutcomeSuspiciousHiddenLayerMissing.Authenticity(),
			CreatedAt:           base,
		},
		{
			ProductID:           "P100",
			VisibleLayerMatched: true,
			HiddenLayerMatched:  true,
			TokenSignatureValid: true,
			Method:              domain.VerificationMethodHiddenDetection,
			Outcome:             domain.OutcomeGenuineBothLayers,
			Reason:              "token verified",
			CreatedAt:           base.Add(time.Minute),
		},
		{
			ProductID: "P200",
			Method:    domain.VerificationMethodManualID,
			Outcome:   domain.OutcomeNotFound,
			Reason:    domain.OutcomeNotFound.Authenticity(),
			CreatedAt: base,
		},
	}
	for _, e := range entries {
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
		if e.ID == "" {
			t.Error("expected ID to be generated")
		}
	}

	found, err := repo.FindByProductID(ctx, "P100")
	if err != nil {
		t.Fatalf("FindByProductID failed: %v", err)
	}
	if len(found) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(found))
	}
	// 新しい順
	if found[0].Outcome != domain.OutcomeGenuineBothLayers {
		t.Errorf("expected newest entry first, got %s", found[0].Outcome)
	}
	if found[0].Method != domain.VerificationMethodHiddenDetection || !found[0].TokenSignatureValid {
		t.Errorf("unexpected entry %+v", found[0])
	}
}

func TestVerificationLogRepository_FindByProductID_Empty(t *testing.T) {
	repo := NewVerificationLogRepository(setupTestDB(t))

	found, err := repo.FindByProductID(context.Background(), "P100")
	if err != nil {
		t.Fatalf("FindByProductID failed: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("expected no entries, got %d", len(found))
	}
}
