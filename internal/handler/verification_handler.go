package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"product-authenticity-service/internal/domain"
	"product-authenticity-service/internal/middleware"
	"product-authenticity-service/internal/usecase"
	"product-authenticity-service/pkg/httputil"
)

// VerificationHandler は真贋検証のHTTPハンドラを提供する。
type VerificationHandler struct {
	service *usecase.VerificationService
}

// NewVerificationHandler は新しいVerificationHandlerを生成する。
func NewVerificationHandler(service *usecase.VerificationService) *VerificationHandler {
	return &VerificationHandler{service: service}
}

// DualLayerCheck は二層の照合結果。
type DualLayerCheck struct {
	VisibleLayer       bool   `json:"visibleLayer"`
	HiddenLayer        bool   `json:"hiddenLayer"`
	BothLayersVerified bool   `json:"bothLayersVerified"`
	CryptoTokenValid   bool   `json:"cryptoTokenValid"`
	QRFormat           string `json:"qrFormat"`
}

// VerifyResponse は検証のレスポンス形式。
type VerifyResponse struct {
	Product                *domain.ProductFields  `json:"product"`
	BlockchainVerification *domain.RegistryRecord `json:"blockchain_verification"`
	DualLayerCheck         DualLayerCheck         `json:"dual_layer_check"`
	Authenticity           string                 `json:"authenticity"`
	SecurityLevel          domain.SecurityLevel   `json:"security_level"`
	Outcome                domain.Outcome         `json:"outcome"`
	TokenReason            string                 `json:"token_reason,omitempty"`
}

// VerificationLogResponse は検証ログ1件のレスポンス形式。
type VerificationLogResponse struct {
	ID                  string `json:"id"`
	VisibleLayerMatched bool   `json:"visible_layer_matched"`
	HiddenLayerMatched  bool   `json:"hidden_layer_matched"`
	TokenSignatureValid bool   `json:"token_signature_valid"`
	Method              string `json:"verification_method"`
	Outcome             string `json:"outcome"`
	Reason              string `json:"reason,omitempty"`
	CreatedAt           string `json:"created_at"`
}

// VerificationLogListResponse は検証ログ一覧のレスポンス形式。
type VerificationLogListResponse struct {
	ProductID     string                    `json:"product_id"`
	Verifications []VerificationLogResponse `json:"verifications"`
}

func toVerifyResponse(result *domain.VerificationResult) VerifyResponse {
	resp := VerifyResponse{
		BlockchainVerification: result.Registry,
		DualLayerCheck: DualLayerCheck{
			VisibleLayer:       result.VisibleLayer,
			HiddenLayer:        result.HiddenLayer,
			BothLayersVerified: result.BothLayersVerified,
			CryptoTokenValid:   result.CryptoTokenValid,
			QRFormat:           result.QRFormat,
		},
		Authenticity:  result.Outcome.Authenticity(),
		SecurityLevel: result.SecurityLevel,
		Outcome:       result.Outcome,
		TokenReason:   result.TokenReason,
	}
	if result.Product != nil {
		fields := result.Product.Fields
		resp.Product = &fields
	}
	return resp
}

// Verify は製品IDと任意の隠しレイヤートークンで真贋を判定する。
func (h *VerificationHandler) Verify(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	q := r.URL.Query()

	result, err := h.service.Verify(r.Context(), domain.VerificationRequest{
		ProductID:            productID,
		HiddenLayerToken:     q.Get("hiddenLayerToken"),
		HiddenLayerSignature: q.Get("hiddenLayerSignature"),
	})
	if err != nil {
		writeError(r.Context(), w, "VERIFY_PRODUCT", productID, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "VERIFY_PRODUCT", productID, string(result.Outcome))

	status := http.StatusOK
	if result.Outcome == domain.OutcomeNotFound {
		status = http.StatusNotFound
	}
	httputil.JSON(w, status, toVerifyResponse(result))
}

// ListVerifications は製品の検証ログを新しい順に返す。
func (h *VerificationHandler) ListVerifications(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")
	if err := domain.ValidateProductID(productID); err != nil {
		writeError(r.Context(), w, "LIST_VERIFICATIONS", productID, err)
		return
	}

	entries, err := h.service.ListVerifications(r.Context(), productID)
	if err != nil {
		writeError(r.Context(), w, "LIST_VERIFICATIONS", productID, err)
		return
	}

	resp := VerificationLogListResponse{
		ProductID:     productID,
		Verifications: make([]VerificationLogResponse, 0, len(entries)),
	}
	for _, e := range entries {
		resp.Verifications = append(resp.Verifications, VerificationLogResponse{
			ID:                  e.ID,
			VisibleLayerMatched: e.VisibleLayerMatched,
			HiddenLayerMatched:  e.HiddenLayerMatched,
			TokenSignatureValid: e.TokenSignatureValid,
			Method:              string(e.Method),
			Outcome:             string(e.Outcome),
			Reason:              e.Reason,
			CreatedAt:           e.CreatedAt.Format(time.RFC3339),
		})
	}

	middleware.WriteAuditLog(r.Context(), "LIST_VERIFICATIONS", productID, middleware.AuditSuccess)
	httputil.JSON(w, http.StatusOK, resp)
}
