package usecase

import (
	"context"
	"errors"
	"image"
	"sort"
	"time"

	"product-authenticity-service/internal/domain"
)

var errStore = errors.New("store unavailable")

// mockProductRepository はテスト用のモックリポジトリ。
type mockProductRepository struct {
	products      map[string]*domain.Product
	findErr       error
	existsErr     error
	createErr     error
	deleteErr     error
	updateURLErr  error
	recordErr     error
	deleted       []string
	recordedCalls []recordedVerification
}

type recordedVerification struct {
	productID  string
	bothLayers bool
	at         time.Time
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
	if m.existsErr != nil {
		return false, m.existsErr
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
	sort.Slice(result, func(i, j int) bool { return result[i].Fields.ProductID < result[j].Fields.ProductID })
	return result, nil
}

func (m *mockProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if m.createErr != nil {
		return m.createErr
	}
	product.ID = "id-" + product.Fields.ProductID
	product.CreatedAt = time.Now()
	m.products[product.Fields.ProductID] = product
	return nil
}

func (m *mockProductRepository) DeleteByProductID(ctx context.Context, productID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, productID)
	delete(m.products, productID)
	return nil
}

func (m *mockProductRepository) UpdateImageURL(ctx context.Context, productID, url string) error {
	if m.updateURLErr != nil {
		return m.updateURLErr
	}
	if p, ok := m.products[productID]; ok {
		p.QRImageURL = url
	}
	return nil
}

func (m *mockProductRepository) RecordVerification(ctx context.Context, productID string, bothLayers bool, verifiedAt time.Time) error {
	m.recordedCalls = append(m.recordedCalls, recordedVerification{productID, bothLayers, verifiedAt})
	if m.recordErr != nil {
		return m.recordErr
	}
	if p, ok := m.products[productID]; ok {
		p.VerificationCount++
		p.LastVerifiedAt = &verifiedAt
		p.IsVerifiedBothLayers = bothLayers
	}
	return nil
}

// mockVerificationLogRepository はテスト用のモック。
type mockVerificationLogRepository struct {
	entries   []*domain.VerificationLogEntry
	appendErr error
}

func (m *mockVerificationLogRepository) Append(ctx context.Context, entry *domain.VerificationLogEntry) error {
	if m.appendErr != nil {
		return m.appendErr
	}
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
	writes   []domain.ProductFields
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{records: make(map[string]*domain.RegistryRecord)}
}

func (m *mockRegistry) put(fields domain.ProductFields) {
	m.records[fields.ProductID] = &domain.RegistryRecord{
		Found:      true,
		ProductID:  fields.ProductID,
		Name:       fields.Name,
		Brand:      fields.Brand,
		BatchNo:    fields.BatchNo,
		ExpiryDate: fields.ExpiryDate,
		Seller:     "seller-1",
	}
}

func (m *mockRegistry) Write(ctx context.Context, fields domain.ProductFields) (*domain.RegistryReceipt, error) {
	if m.writeErr != nil {
		return nil, m.writeErr
	}
	m.writes = append(m.writes, fields)
	m.put(fields)
	return &domain.RegistryReceipt{TransactionRef: "tx-" + fields.ProductID, BlockRef: uint64(len(m.writes))}, nil
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

// mockLayerCodec は描画を行わないモック。
type mockLayerCodec struct {
	compositeErr error
}

func (m *mockLayerCodec) RenderVisible(data string) (*image.NRGBA, error) {
	return image.NewNRGBA(image.Rect(0, 0, 1, 1)), nil
}

func (m *mockLayerCodec) RenderHidden(data string) (*image.NRGBA, error) {
	return image.NewNRGBA(image.Rect(0, 0, 1, 1)), nil
}

func (m *mockLayerCodec) Composite(visible, hidden image.Image, productID string) ([]byte, error) {
	if m.compositeErr != nil {
		return nil, m.compositeErr
	}
	return []byte("png:" + productID), nil
}

// mockPublisher はテスト用のモック。
type mockPublisher struct {
	url       string
	err       error
	published []string
}

func (m *mockPublisher) Publish(ctx context.Context, productID string, png []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.published = append(m.published, productID)
	return m.url, nil
}
