package domain

// RegistryRecord はレジストリから読み出した製品記録を表す。
// Found=false は正常な応答であり、エラーではない。
type RegistryRecord struct {
	Found      bool   `json:"found"`
	ProductID  string `json:"productId,omitempty"`
	Name       string `json:"name,omitempty"`
	Brand      string `json:"brand,omitempty"`
	BatchNo    string `json:"batchNo,omitempty"`
	ExpiryDate string `json:"expiryDate,omitempty"`
	Seller     string `json:"seller,omitempty"`
}

// Fields はレジストリ記録の製品情報を返す。
func (r *RegistryRecord) Fields() ProductFields {
	return ProductFields{
		ProductID:  r.ProductID,
		Name:       r.Name,
		Brand:      r.Brand,
		BatchNo:    r.BatchNo,
		ExpiryDate: r.ExpiryDate,
	}
}

// RegistryReceipt はレジストリ書き込みの受領情報。
type RegistryReceipt struct {
	TransactionRef string `json:"transaction_ref"`
	BlockRef       uint64 `json:"block_ref"`
}
