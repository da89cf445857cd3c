package usecase

import (
	"context"
	"errors"
	"testing"

	"product-authenticity-service/internal/domain"
	"product-authenticity-service/internal/qrlayer"
)

func TestInspectionService_Inspect(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	cred, err := issuer.Issue(context.Background(), vitaminC())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	service := NewInspectionService(qrlayer.NewCodec())
	analysis, err := service.Inspect(context.Background(), cred.QRImage)
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}
	if !analysis.IsDualLayer {
		t.Errorf("expected dual layer, got %+v", analysis)
	}
}

func TestInspectionService_Inspect_Empty(t *testing.T) {
	service := NewInspectionService(qrlayer.NewCodec())

	if _, err := service.Inspect(context.Background(), nil); !errors.Is(err, domain.ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
}

func TestInspectionService_Inspect_NotAnImage(t *testing.T) {
	service := NewInspectionService(qrlayer.NewCodec())

	if _, err := service.Inspect(context.Background(), []byte("hello")); !errors.Is(err, domain.ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
}
