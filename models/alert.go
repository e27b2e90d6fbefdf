package models

type AlertCondition string

const (
	ConditionAbove         AlertCondition = "above"
	ConditionBelow         AlertCondition = "below"
	ConditionPercentChange AlertCondition = "percent-change"
	ConditionVolumeSpike   AlertCondition = "volume-spike"
	ConditionTechnical     AlertCondition = "technical"
	ConditionOnChain       AlertCondition = "on-chain"
)

func (c AlertCondition) Valid() bool {
	switch c {
	case ConditionAbove, ConditionBelow, ConditionPercentChange,
		ConditionVolumeSpike, ConditionTechnical, ConditionOnChain:
		return true
	}
	return false
}

type NotificationChannel string

const (
	ChannelApp   NotificationChannel = "app"
	ChannelEmail NotificationChannel = "email"
	ChannelBoth  NotificationChannel = "both"
)

type TechnicalIndicatorParams struct {
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters"`
	Timeframe  string                 `json:"timeframe"`
	Message    string                 `json:"message"`
}

type OnChainMetricParams struct {
	Type       string                 `json:"type"`
	Parameters map[string]interface{} `json:"parameters"`
	Network    string                 `json:"network"`
	Message    string                 `json:"message"`
}

type Alert struct {
	ID                 string                    `json:"id"`
	Asset              string                    `json:"asset"`
	Condition          AlertCondition            `json:"condition"`
	Value              float64                   `json:"value"`
	Active             bool                      `json:"active"`
	Triggered          bool                      `json:"triggered"`
	CreatedAt          int64                     `json:"createdAt"`
	TriggeredAt        *int64                    `json:"triggeredAt,omitempty"`
	Repeat             bool                      `json:"repeat,omitempty"`
	NotificationType   NotificationChannel       `json:"notificationType"`
	Notes              string                    `json:"notes,omitempty"`
	TechnicalIndicator *TechnicalIndicatorParams `json:"technicalIndicator,omitempty"`
	OnChainMetric      *OnChainMetricParams      `json:"onChainMetric,omitempty"`
}

type NewAlert struct {
	Asset              string                    `json:"asset" binding:"required"`
	Condition          AlertCondition            `json:"condition" binding:"required,oneof=above below percent-change volume-spike technical on-chain"`
	Value              float64                   `json:"value"`
	Active             bool                      `json:"active"`
	Repeat             bool                      `json:"repeat,omitempty"`
	NotificationType   NotificationChannel       `json:"notificationType" binding:"omitempty,oneof=app email both"`
	Notes              string                    `json:"notes,omitempty"`
	TechnicalIndicator *TechnicalIndicatorParams `json:"technicalIndicator,omitempty"`
	OnChainMetric      *OnChainMetricParams      `json:"onChainMetric,omitempty"`
}

// AlertUpdate is a partial update; nil fields are left untouched.
type AlertUpdate struct {
	Asset            *string              `json:"asset,omitempty"`
	Condition        *AlertCondition      `json:"condition,omitempty"`
	Value            *float64             `json:"value,omitempty"`
	Active           *bool                `json:"active,omitempty"`
	Repeat           *bool                `json:"repeat,omitempty"`
	NotificationType *NotificationChannel `json:"notificationType,omitempty"`
	Notes            *string              `json:"notes,omitempty"`
}

type NotificationType string

const (
	NotificationAlert  NotificationType = "alert"
	NotificationSystem NotificationType = "system"
	NotificationPrice  NotificationType = "price"
)

type Importance string

const (
	ImportanceLow    Importance = "low"
	ImportanceMedium Importance = "medium"
	ImportanceHigh   Importance = "high"
)

type Notification struct {
	ID         string           `json:"id"`
	AlertID    string           `json:"alertId,omitempty"`
	Type       NotificationType `json:"type"`
	Title      string           `json:"title"`
	Message    string           `json:"message"`
	Read       bool             `json:"read"`
	Timestamp  int64            `json:"timestamp"`
	Importance Importance       `json:"importance"`
}
