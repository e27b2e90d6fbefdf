package models

type TransactionType string

const (
	TransactionBuy  TransactionType = "buy"
	TransactionSell TransactionType = "sell"
)

func (t TransactionType) Valid() bool {
	return t == TransactionBuy || t == TransactionSell
}

// PortfolioAsset is a holding. Timestamps are unix milliseconds.
type PortfolioAsset struct {
	ID            string  `json:"id"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Quantity      float64 `json:"quantity"`
	PurchasePrice float64 `json:"purchasePrice"`
	CurrentPrice  float64 `json:"currentPrice"`
	LastUpdated   int64   `json:"lastUpdated"`
	Blockchain    string  `json:"blockchain,omitempty"`
}

// Value is quantity times current price.
func (a PortfolioAsset) Value() float64 {
	return a.Quantity * a.CurrentPrice
}

// Transaction is append-only once recorded.
type Transaction struct {
	ID        string          `json:"id"`
	AssetID   string          `json:"assetId"`
	Symbol    string          `json:"symbol"`
	Type      TransactionType `json:"type"`
	Quantity  float64         `json:"quantity"`
	Price     float64         `json:"price"`
	Timestamp int64           `json:"timestamp"`
	Total     float64         `json:"total"`
	Fee       float64         `json:"fee"`
}

// NewAsset carries the caller-supplied fields of an asset.
type NewAsset struct {
	Symbol        string  `json:"symbol" binding:"required"`
	Name          string  `json:"name" binding:"required"`
	Quantity      float64 `json:"quantity" binding:"gte=0"`
	PurchasePrice float64 `json:"purchasePrice" binding:"gte=0"`
	CurrentPrice  float64 `json:"currentPrice" binding:"gte=0"`
	Blockchain    string  `json:"blockchain,omitempty"`
}

// AssetUpdate is a partial update; nil fields are left untouched.
type AssetUpdate struct {
	Symbol        *string  `json:"symbol,omitempty"`
	Name          *string  `json:"name,omitempty"`
	Quantity      *float64 `json:"quantity,omitempty"`
	PurchasePrice *float64 `json:"purchasePrice,omitempty"`
	CurrentPrice  *float64 `json:"currentPrice,omitempty"`
	Blockchain    *string  `json:"blockchain,omitempty"`
}

type NewTransaction struct {
	AssetID   string          `json:"assetId" binding:"required"`
	Symbol    string          `json:"symbol" binding:"required"`
	Type      TransactionType `json:"type" binding:"required,oneof=buy sell"`
	Quantity  float64         `json:"quantity" binding:"gt=0"`
	Price     float64         `json:"price" binding:"gte=0"`
	Timestamp int64           `json:"timestamp"`
	Total     float64         `json:"total"`
	Fee       float64         `json:"fee"`
}

// PortfolioSummary holds the derived totals; they are recomputed on every
// asset mutation.
type PortfolioSummary struct {
	TotalValue         float64 `json:"totalValue"`
	DailyChange        float64 `json:"dailyChange"`
	DailyChangePercent float64 `json:"dailyChangePercent"`

	// Display strings, e.g. "$12,345.67", "$12.35K", "+$120.00", "-1.25%".
	TotalValueFormatted         string `json:"totalValueFormatted"`
	TotalValueCompact           string `json:"totalValueCompact"`
	DailyChangeFormatted        string `json:"dailyChangeFormatted"`
	DailyChangePercentFormatted string `json:"dailyChangePercentFormatted"`
}

type ImportResult struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Blockchain string `json:"blockchain,omitempty"`
}

// Allocation is one row of the portfolio breakdown: the first three assets
// individually, the rest folded into "Others".
type Allocation struct {
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	Allocation     int     `json:"allocation"`
	Value          float64 `json:"value"`
	ValueFormatted string  `json:"valueFormatted"`
	Change         string  `json:"change"`
}
