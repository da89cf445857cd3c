package domain

import "time"

// Outcome は真贋判定の結果を表す。
type Outcome string

const (
	OutcomeNotFound                     Outcome = "NOT_FOUND"
	OutcomeFakeNotOnChain               Outcome = "FAKE_NOT_ON_CHAIN"
	OutcomeGenuineBothLayers            Outcome = "GENUINE_BOTH_LAYERS"
	OutcomeSuspiciousHiddenLayerMissing Outcome = "SUSPICIOUS_HIDDEN_LAYER_MISSING"
	OutcomeVerifiedVisibleOnly          Outcome = "VERIFIED_VISIBLE_ONLY"
	OutcomeFakeDataMismatch             Outcome = "FAKE_DATA_MISMATCH"
)

// Authenticity は判定結果の説明文を返す。
func (o Outcome) Authenticity() string {
	switch o {
	case OutcomeGenuineBothLayers:
		return "ORIGINAL PRODUCT - Both layers verified on registry"
	case OutcomeSuspiciousHiddenLayerMissing:
		return "SUSPICIOUS - Visible layer verified but hidden layer missing or invalid. Likely counterfeit."
	case OutcomeVerifiedVisibleOnly:
		return "VERIFIED - Visible layer confirmed on registry"
	case OutcomeFakeDataMismatch:
		return "FAKE PRODUCT - Data mismatch"
	case OutcomeFakeNotOnChain:
		return "FAKE PRODUCT - Not found on registry"
	default:
		return "Product not found"
	}
}

// SecurityLevel は判定結果の信頼度を表す。
type SecurityLevel string

const (
	SecurityLevelMaximum  SecurityLevel = "MAXIMUM"
	SecurityLevelStandard SecurityLevel = "STANDARD"
	SecurityLevelCritical SecurityLevel = "CRITICAL"
)

// SecurityLevel は判定結果に対応するセキュリティレベルを返す。
func (o Outcome) SecurityLevel() SecurityLevel {
	switch o {
	case OutcomeGenuineBothLayers:
		return SecurityLevelMaximum
	case OutcomeVerifiedVisibleOnly:
		return SecurityLevelStandard
	default:
		return SecurityLevelCritical
	}
}

// VerificationMethod は検証の経路を表す。
type VerificationMethod string

const (
	// VerificationMethodHiddenDetection は隠しレイヤーのトークンが提示された検証。
	VerificationMethodHiddenDetection VerificationMethod = "hidden-detection"
	// VerificationMethodManualID は製品IDのみによる検証。
	VerificationMethodManualID VerificationMethod = "manual-id"
)

// VerificationRequest は検証リクエストを表す。
type VerificationRequest struct {
	ProductID            string
	HiddenLayerToken     string
	HiddenLayerSignature string
}

// HasHiddenLayer は隠しレイヤーのトークンと署名が両方提示されているかを返す。
func (r VerificationRequest) HasHiddenLayer() bool {
	return r.HiddenLayerToken != "" && r.HiddenLayerSignature != ""
}

// VerificationResult は検証結果を表す。
type VerificationResult struct {
	Outcome            Outcome
	SecurityLevel      SecurityLevel
	Product            *Product
	Registry           *RegistryRecord
	VisibleLayer       bool // 基本情報がレジストリと一致したか
	HiddenLayer        bool
	BothLayersVerified bool
	CryptoTokenValid   bool
	QRFormat           string
	TokenReason        string
}

// VerificationLogEntry は検証試行の追記専用ログ。
type VerificationLogEntry struct {
	ID                  string
	ProductID           string
	VisibleLayerMatched bool
	HiddenLayerMatched  bool
	TokenSignatureValid bool
	Method              VerificationMethod
	Outcome             Outcome
	Reason              string
	CreatedAt           time.Time
}

// LayerMetrics は画像解析の計測値。
type LayerMetrics struct {
	DarkRatio       float64 `json:"darkRatio"`
	HiddenDiversity float64 `json:"hiddenDiversity"`
	VisibleOpacity  float64 `json:"visibleOpacity"`
	HiddenOpacity   float64 `json:"hiddenOpacity"`
	DetectionMethod string  `json:"detectionMethod"`
}

// LayerAnalysis は画像がクレデンシャル形式に見えるかのヒューリスティック判定。
// 真贋判定には使用しない。
type LayerAnalysis struct {
	HasVisibleLayer    bool         `json:"hasVisibleLayer"`
	HasHiddenLayer     bool         `json:"hasHiddenLayer"`
	HasSecurityMarkers bool         `json:"hasSecurityMarkers"`
	IsDualLayer        bool         `json:"isDualLayer"`
	Analysis           LayerMetrics `json:"analysis"`
}
