// Package handler はHTTPハンドラを提供する。
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"product-authenticity-service/internal/domain"
	"product-authenticity-service/internal/middleware"
	"product-authenticity-service/internal/usecase"
	"product-authenticity-service/pkg/httputil"
)

// ProductHandler は製品登録・照会のHTTPハンドラを提供する。
type ProductHandler struct {
	service *usecase.ProductService
}

// NewProductHandler は新しいProductHandlerを生成する。
func NewProductHandler(service *usecase.ProductService) *ProductHandler {
	return &ProductHandler{service: service}
}

// RegisterProductRequest は製品登録のリクエスト形式。
type RegisterProductRequest struct {
	SellerID   string `json:"seller_id"`
	ProductID  string `json:"product_id"`
	Name       string `json:"name"`
	Brand      string `json:"brand"`
	BatchNo    string `json:"batch_no"`
	ExpiryDate string `json:"expiry_date"`
}

// SecurityInfo は発行したクレデンシャルの方式。
type SecurityInfo struct {
	QRFormat   string `json:"qr_format"`
	Layers     int    `json:"layers"`
	Encryption string `json:"encryption"`
	Signature  string `json:"signature"`
	Integrity  string `json:"integrity"`
}

// RegisterProductResponse は製品登録のレスポンス形式。
type RegisterProductResponse struct {
	ProductID    string                  `json:"product_id"`
	QRCode       string                  `json:"qr_code"`
	QRImageURL   string                  `json:"qr_image_url,omitempty"`
	Registry     *domain.RegistryReceipt `json:"registry"`
	SecurityInfo SecurityInfo            `json:"security_info"`
}

// ProductResponse は製品レコードのレスポンス形式。
// 暗号トークンと署名は返さない。
type ProductResponse struct {
	ProductID            string  `json:"product_id"`
	SellerID             string  `json:"seller_id"`
	Name                 string  `json:"name"`
	Brand                string  `json:"brand"`
	BatchNo              string  `json:"batch_no"`
	ExpiryDate           string  `json:"expiry_date"`
	QRVersion            string  `json:"qr_version"`
	QRImageURL           string  `json:"qr_image_url,omitempty"`
	VerificationCount    uint    `json:"verification_count"`
	LastVerifiedAt       *string `json:"last_verified_at"`
	IsVerifiedBothLayers bool    `json:"is_verified_both_layers"`
	CreatedAt            string  `json:"created_at"`
}

// ProductListResponse は製品一覧のレスポンス形式。
type ProductListResponse struct {
	Products []ProductResponse `json:"products"`
}

func toProductResponse(p *domain.Product) ProductResponse {
	resp := ProductResponse{
		ProductID:            p.Fields.ProductID,
		SellerID:             p.SellerID,
		Name:                 p.Fields.Name,
		Brand:                p.Fields.Brand,
		BatchNo:              p.Fields.BatchNo,
		ExpiryDate:           p.Fields.ExpiryDate,
		QRVersion:            p.QRVersion,
		QRImageURL:           p.QRImageURL,
		VerificationCount:    p.VerificationCount,
		IsVerifiedBothLayers: p.IsVerifiedBothLayers,
		CreatedAt:            p.CreatedAt.Format(time.RFC3339),
	}
	if p.LastVerifiedAt != nil {
		s := p.LastVerifiedAt.Format(time.RFC3339)
		resp.LastVerifiedAt = &s
	}
	return resp
}

// RegisterProduct は製品を登録し、二層QRクレデンシャルを発行する。
func (h *ProductHandler) RegisterProduct(w http.ResponseWriter, r *http.Request) {
	var req RegisterProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "request body must be JSON")
		return
	}

	fields := domain.ProductFields{
		ProductID:  req.ProductID,
		Name:       req.Name,
		Brand:      req.Brand,
		BatchNo:    req.BatchNo,
		ExpiryDate: req.ExpiryDate,
	}
	reg, err := h.service.RegisterProduct(r.Context(), req.SellerID, fields)
	if err != nil {
		writeError(r.Context(), w, "REGISTER_PRODUCT", req.ProductID, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "REGISTER_PRODUCT", req.ProductID, middleware.AuditSuccess)
	httputil.JSON(w, http.StatusCreated, RegisterProductResponse{
		ProductID:  reg.Product.Fields.ProductID,
		QRCode:     reg.Credential.DataURI(),
		QRImageURL: reg.Product.QRImageURL,
		Registry:   reg.Receipt,
		SecurityInfo: SecurityInfo{
			QRFormat:   reg.Credential.Format,
			Layers:     2,
			Encryption: "AES-256-GCM",
			Signature:  "HMAC-SHA256",
			Integrity:  "SHA-256",
		},
	})
}

// GetProduct は製品を取得する。
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	product, err := h.service.GetProduct(r.Context(), productID)
	if err != nil {
		writeError(r.Context(), w, "GET_PRODUCT", productID, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "GET_PRODUCT", productID, middleware.AuditSuccess)
	httputil.JSON(w, http.StatusOK, toProductResponse(product))
}

// ListProducts は製品一覧を取得する。seller_id で絞り込める。
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.service.ListProducts(r.Context(), r.URL.Query().Get("seller_id"))
	if err != nil {
		writeError(r.Context(), w, "LIST_PRODUCTS", "", err)
		return
	}

	resp := ProductListResponse{Products: make([]ProductResponse, 0, len(products))}
	for _, p := range products {
		resp.Products = append(resp.Products, toProductResponse(p))
	}

	middleware.WriteAuditLog(r.Context(), "LIST_PRODUCTS", "", middleware.AuditSuccess)
	httputil.JSON(w, http.StatusOK, resp)
}

// DeleteProduct は製品レコードを削除する。
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	if err := h.service.DeleteProduct(r.Context(), productID); err != nil {
		writeError(r.Context(), w, "DELETE_PRODUCT", productID, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "DELETE_PRODUCT", productID, middleware.AuditSuccess)
	w.WriteHeader(http.StatusAccepted)
}
