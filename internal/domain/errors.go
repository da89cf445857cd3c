package domain

import "errors"

var (
	// ErrProductNotFound は指定された製品が存在しない場合のエラー。
	ErrProductNotFound = errors.New("product not found")

	// ErrProductAlreadyExists は指定された製品IDが既に登録されている場合のエラー。
	ErrProductAlreadyExists = errors.New("product already exists")

	// ErrInvalidProductID は製品IDの形式が不正な場合のエラー。
	ErrInvalidProductID = errors.New("invalid product ID")

	// ErrInvalidProductFields は製品情報に未入力の項目がある場合のエラー。
	ErrInvalidProductFields = errors.New("all product fields are required")

	// ErrRegistryUnavailable はレジストリへの読み書きに失敗した場合のエラー。
	ErrRegistryUnavailable = errors.New("registry unavailable")

	// ErrInvalidImage は画像をデコードできない場合のエラー。
	ErrInvalidImage = errors.New("invalid image")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrMigrationFileNotFound はマイグレーションファイルが見つからない場合のエラー。
	ErrMigrationFileNotFound = errors.New("migration file not found")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)
