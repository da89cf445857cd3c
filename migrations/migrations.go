// Package migrations はバイナリに埋め込まれたスキーマ定義を提供する。
package migrations

import "embed"

// FS は全マイグレーションSQLファイル。
//
//go:embed *.sql
var FS embed.FS
