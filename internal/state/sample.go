package state

import (
	"time"

	"tradesxbt/models"
)

const (
	hourMs = int64(time.Hour / time.Millisecond)
	dayMs  = 24 * hourMs
)

func sampleAssets(now int64) []models.PortfolioAsset {
	return []models.PortfolioAsset{
		{ID: "btc-asset", Symbol: "BTC", Name: "Bitcoin", Quantity: 1.55, PurchasePrice: 42000, CurrentPrice: 45678.32, LastUpdated: now},
		{ID: "eth-asset", Symbol: "ETH", Name: "Ethereum", Quantity: 15.3, PurchasePrice: 2800, CurrentPrice: 3245.67, LastUpdated: now},
		{ID: "sol-asset", Symbol: "SOL", Name: "Solana", Quantity: 210.5, PurchasePrice: 110, CurrentPrice: 120.89, LastUpdated: now},
		{ID: "bnb-asset", Symbol: "BNB", Name: "Binance Coin", Quantity: 12.75, PurchasePrice: 380, CurrentPrice: 402.56, LastUpdated: now},
		{ID: "ada-asset", Symbol: "ADA", Name: "Cardano", Quantity: 5400, PurchasePrice: 1.15, CurrentPrice: 1.23, LastUpdated: now},
		{ID: "dot-asset", Symbol: "DOT", Name: "Polkadot", Quantity: 300, PurchasePrice: 22.50, CurrentPrice: 25.89, LastUpdated: now},
		{ID: "doge-asset", Symbol: "DOGE", Name: "Dogecoin", Quantity: 10500, PurchasePrice: 0.095, CurrentPrice: 0.089, LastUpdated: now},
	}
}

func sampleTransactions(now int64) []models.Transaction {
	buy := models.TransactionBuy
	return []models.Transaction{
		{ID: "tx1", AssetID: "btc-asset", Symbol: "BTC", Type: buy, Quantity: 1, Price: 41000, Timestamp: now - 35*dayMs, Total: 41000, Fee: 20.5},
		{ID: "tx2", AssetID: "btc-asset", Symbol: "BTC", Type: buy, Quantity: 0.55, Price: 43800, Timestamp: now - 14*dayMs, Total: 24090, Fee: 12.05},
		{ID: "tx3", AssetID: "eth-asset", Symbol: "ETH", Type: buy, Quantity: 10, Price: 2750, Timestamp: now - 30*dayMs, Total: 27500, Fee: 13.75},
		{ID: "tx4", AssetID: "eth-asset", Symbol: "ETH", Type: buy, Quantity: 5.3, Price: 2900, Timestamp: now - 10*dayMs, Total: 15370, Fee: 7.69},
		{ID: "tx5", AssetID: "sol-asset", Symbol: "SOL", Type: buy, Quantity: 200, Price: 105, Timestamp: now - 20*dayMs, Total: 21000, Fee: 10.5},
		{ID: "tx6", AssetID: "sol-asset", Symbol: "SOL", Type: buy, Quantity: 10.5, Price: 118, Timestamp: now - 4*dayMs, Total: 1239, Fee: 0.62},
	}
}

func sampleAlerts(now int64) []models.Alert {
	ethTriggered := now - 2*hourMs
	volTriggered := now - 5*hourMs
	return []models.Alert{
		{ID: "alert1", Asset: "BTC", Condition: models.ConditionAbove, Value: 48000, Active: true, CreatedAt: now - dayMs, NotificationType: models.ChannelApp},
		{ID: "alert2", Asset: "ETH", Condition: models.ConditionBelow, Value: 3000, Active: true, Triggered: true, CreatedAt: now - 2*dayMs, TriggeredAt: &ethTriggered, NotificationType: models.ChannelBoth},
		{ID: "alert3", Asset: "SOL", Condition: models.ConditionPercentChange, Value: 10, Active: true, CreatedAt: now - 3*dayMs, NotificationType: models.ChannelApp, Notes: "Watch for breakout"},
		{ID: "alert4", Asset: "Market", Condition: models.ConditionVolumeSpike, Value: 200, Active: true, Triggered: true, CreatedAt: now - 4*dayMs, TriggeredAt: &volTriggered, NotificationType: models.ChannelApp},
	}
}

func sampleNotifications(now int64) []models.Notification {
	return []models.Notification{
		{ID: "notif1", AlertID: "alert2", Type: models.NotificationAlert, Title: "ETH Price Alert", Message: "Ethereum price dropped below $3,000", Timestamp: now - 2*hourMs, Importance: models.ImportanceHigh},
		{ID: "notif2", AlertID: "alert4", Type: models.NotificationAlert, Title: "Market Volume Alert", Message: "Market trading volume increased by more than 200%", Timestamp: now - 5*hourMs, Importance: models.ImportanceMedium},
		{ID: "notif3", Type: models.NotificationPrice, Title: "BTC Weekly Analysis", Message: "Bitcoin has gained 15% in the past week, breaking key resistance levels.", Read: true, Timestamp: now - 3*dayMs, Importance: models.ImportanceLow},
		{ID: "notif4", Type: models.NotificationSystem, Title: "New Feature Available", Message: "Check out the new portfolio analytics tools in your dashboard.", Read: true, Timestamp: now - 4*dayMs, Importance: models.ImportanceLow},
	}
}
