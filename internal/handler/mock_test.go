package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"product-authenticity-service/internal/domain"
)

// mockProductRepository はテスト用のモックリポジトリ。
type mockProductRepository struct {
	products  map[string]*domain.Product
	findErr   error
	deleteErr error
}

func newMockProductRepository() *mockProductRepository {
	return &mockProductRepository{products: make(map[string]*domain.Product)}
}

func (m *mockProductRepository) FindByProductID(ctx context.Context, productID string) (*domain.Product, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	p, ok := m.products[productID]
	if !ok {
		return nil, nil
	}
	copied := *p
	return &copied, nil
}

func (m *mockProductRepository) ExistsByProductID(ctx context.Context, productID string) (bool, error) {
	if m.findErr != nil {
		return false, m.findErr
	}
	_, ok := m.products[productID]
	return ok, nil
}

func (m *mockProductRepository) FindAllBySellerID(ctx context.Context, sellerID string) ([]*domain.Product, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	var result []*domain.Product
	for _, p := range m.products {
		if sellerID == "" || p.SellerID == sellerID {
			result = append(result, p)
		}
	}
	return result, nil
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	product.ID = "id-" + product.Fields.ProductID
	product.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.products[product.Fields.ProductID] = product
	return nil
}

func (m *mockProductRepository) DeleteByProductID(ctx context.Context, productID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.products, productID)
	return nil
}

func (m *mockProductRepository) UpdateImageURL(ctx context.Context, productID, url string) error {
	if p, ok := m.products[productID]; ok {
		p.QRImageURL = url
	}
	return nil
}

func (m *mockProductRepository) RecordVerification(ctx context.Context, productID string, bothLayers bool, verifiedAt time.Time) error {
	if p, ok := m.products[productID]; ok {
		p.VerificationCount++
		p.LastVerifiedAt = &verifiedAt
		p.IsVerifiedBothLayers = bothLayers
	}
	return nil
}

// mockVerificationLogRepository はテスト用のモック。
type mockVerificationLogRepository struct {
	entries []*domain.VerificationLogEntry
}

func (m *mockVerificationLogRepository) Append(ctx context.Context, entry *domain.VerificationLogEntry) error {
	entry.ID = "log-" + entry.ProductID
	entry.CreatedAt = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	m.entries = append(m.entries, entry)
	return nil
}

func (m *mockVerificationLogRepository) FindByProductID(ctx context.Context, productID string) ([]*domain.VerificationLogEntry, error) {
	var result []*domain.VerificationLogEntry
	for _, e := range m.entries {
		if e.ProductID == productID {
			result = append(result, e)
		}
	}
	return result, nil
}

// mockRegistry はテスト用のモックレジストリ。
type mockRegistry struct {
	records  map[string]*domain.RegistryRecord
	readErr  error
	writeErr error
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{records: make(map[string]*domain.RegistryRecord)}
}

func (m *mockRegistry) Write(ctx context.Context, fields domain.ProductFields) (*domain.RegistryReceipt, error) {
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	m.records[fields.ProductID] = &domain.RegistryRecord{
		Found:      true,
		ProductID:  fields.ProductID,
		Name:       fields.Name,
		Brand:      fields.Brand,
		BatchNo:    fields.BatchNo,
		ExpiryDate: fields.ExpiryDate,
		Seller:     "seller-1",
	}
	return &domain.RegistryReceipt{TransactionRef: "tx-" + fields.ProductID, BlockRef: uint64(len(m.records))}, nil
}

func (m *mockRegistry) Read(ctx context.Context, productID string) (*domain.RegistryRecord, error) {
	if m.readErr != nil {
		return nil, m.readErr
	}
	if r, ok := m.records[productID]; ok {
		return r, nil
	}
	return &domain.RegistryRecord{Found: false}, nil
}

// stubIssuer は固定のクレデンシャルを返す。
type stubIssuer struct{}

func (stubIssuer) Issue(ctx context.Context, fields domain.ProductFields) (*domain.Credential, error) {
	return &domain.Credential{
		QRImage:  []byte("png"),
		Format:   domain.QRVersionDualLayer,
		MIMEType: "image/png",
		Token: &domain.CryptoToken{
			Ciphertext: "cipher-" + fields.ProductID,
			Signature:  "sig-" + fields.ProductID,
			Payload:    domain.TokenPayload{Nonce: "00", Timestamp: 1},
		},
	}, nil
}

// stubExtractor は固定の解析結果を返す。
type stubExtractor struct {
	err error
}

func (s stubExtractor) Extract(imageBytes []byte) (*domain.LayerAnalysis, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &domain.LayerAnalysis{HasVisibleLayer: true, HasHiddenLayer: true, HasSecurityMarkers: true, IsDualLayer: true}, nil
}

type stubPinger struct {
	err error
}

func (s stubPinger) PingContext(ctx context.Context) error {
	return s.err
}

var errStore = errors.New("store unavailable")

func withProductID(req *http.Request, productID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("product_id", productID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
