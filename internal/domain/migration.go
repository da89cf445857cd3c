package domain

import "time"

// MigrationStatus はマイグレーションの適用状態を表す
type MigrationStatus string

const (
	MigrationStatusPending MigrationStatus = "pending"
	MigrationStatusApplied MigrationStatus = "applied"
)

// Migration はスキーママイグレーションを表すドメインモデル
type Migration struct {
	Version   string          // 例: "001"
	Name      string          // ファイル名から抽出
	AppliedAt *time.Time      // 未適用の場合はnil
	FileName  string          // マイグレーションソース内のファイル名
	Status    MigrationStatus // 適用状態
}

// Applied は適用済みかを返す。
func (m *Migration) Applied() bool {
	return m.Status == MigrationStatusApplied
}
