package domain

import (
	"errors"
	"strings"
	"testing"
)

func validFields() ProductFields {
	return ProductFields{
		ProductID:  "P100",
		Name:       "Widget",
		Brand:      "Acme",
		BatchNo:    "B1",
		ExpiryDate: "2027-01-01",
	}
}

func TestProductFields_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(f *ProductFields)
		wantErr error
	}{
		{"valid", func(f *ProductFields) {}, nil},
		{"missing brand", func(f *ProductFields) { f.Brand = "" }, ErrInvalidProductFields},
		{"bad product id", func(f *ProductFields) { f.ProductID = "P 100" }, ErrInvalidProductID},
		{"name at limit", func(f *ProductFields) { f.Name = strings.Repeat("n", MaxTextFieldLength) }, nil},
		{"name too long", func(f *ProductFields) { f.Name = strings.Repeat("n", MaxTextFieldLength+1) }, ErrInvalidProductFields},
		{"brand too long", func(f *ProductFields) { f.Brand = strings.Repeat("b", MaxTextFieldLength+1) }, ErrInvalidProductFields},
		{"batch too long", func(f *ProductFields) { f.BatchNo = strings.Repeat("1", MaxTextFieldLength+1) }, ErrInvalidProductFields},
		{"expiry too long", func(f *ProductFields) { f.ExpiryDate = strings.Repeat("9", MaxExpiryDateLength+1) }, ErrInvalidProductFields},
		{"multibyte name at limit", func(f *ProductFields) { f.Name = strings.Repeat("製", MaxTextFieldLength) }, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := validFields()
			tt.modify(&f)
			err := f.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("want %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidateSellerID(t *testing.T) {
	if err := ValidateSellerID("seller-1"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateSellerID(""); !errors.Is(err, ErrInvalidProductFields) {
		t.Errorf("want ErrInvalidProductFields, got %v", err)
	}
	if err := ValidateSellerID(strings.Repeat("s", MaxTextFieldLength+1)); !errors.Is(err, ErrInvalidProductFields) {
		t.Errorf("want ErrInvalidProductFields, got %v", err)
	}
}
