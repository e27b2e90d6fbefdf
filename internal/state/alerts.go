package state

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"tradesxbt/internal/storage"
	"tradesxbt/logger"
	"tradesxbt/models"
)

// AlertService owns price alerts and the notification inbox.
type AlertService struct {
	store storage.Store
	log   *logger.Log
	clock Clock

	mu            sync.RWMutex
	alerts        []models.Alert
	notifications []models.Notification
	version       uint64
}

func NewAlertService(store storage.Store, log *logger.Log) *AlertService {
	if log == nil {
		log = logger.GetLogger()
	}
	return &AlertService{
		store:         store,
		log:           log,
		clock:         time.Now,
		alerts:        []models.Alert{},
		notifications: []models.Notification{},
	}
}

func (s *AlertService) entry() *logger.Entry {
	return s.log.WithComponent("alert_service")
}

func (s *AlertService) Load(ctx context.Context) {
	now := nowMillis(s.clock)
	log := s.entry()
	alerts := loadJSON(ctx, s.store, storage.KeyUserAlerts, log, func() []models.Alert { return sampleAlerts(now) })
	notes := loadJSON(ctx, s.store, storage.KeyUserNotifications, log, func() []models.Notification { return sampleNotifications(now) })
	if alerts == nil {
		alerts = []models.Alert{}
	}
	if notes == nil {
		notes = []models.Notification{}
	}

	s.mu.Lock()
	s.alerts = alerts
	s.notifications = notes
	s.version++
	s.mu.Unlock()

	log.WithFields(logger.Fields{"alerts": len(alerts), "notifications": len(notes)}).Info("alerts loaded")
}

func (s *AlertService) Alerts() []models.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Alert{}, s.alerts...)
}

// Notifications returns the inbox, newest first.
func (s *AlertService) Notifications() []models.Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Notification{}, s.notifications...)
}

func (s *AlertService) UnreadCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, note := range s.notifications {
		if !note.Read {
			n++
		}
	}
	return n
}

func (s *AlertService) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

func (s *AlertService) saveAlertsLocked(ctx context.Context) {
	s.version++
	saveJSON(ctx, s.store, storage.KeyUserAlerts, s.alerts, s.entry())
}

func (s *AlertService) saveNotificationsLocked(ctx context.Context) {
	s.version++
	saveJSON(ctx, s.store, storage.KeyUserNotifications, s.notifications, s.entry())
}

// pushNotificationLocked prepends an unread notification.
func (s *AlertService) pushNotificationLocked(ctx context.Context, n models.Notification) models.Notification {
	n.ID = newID()
	n.Read = false
	n.Timestamp = nowMillis(s.clock)
	s.notifications = append([]models.Notification{n}, s.notifications...)
	s.saveNotificationsLocked(ctx)
	return n
}

// AddNotification records a notification raised outside the alert flow.
func (s *AlertService) AddNotification(ctx context.Context, n models.Notification) models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushNotificationLocked(ctx, n)
}

func describe(a models.Alert) string {
	return fmt.Sprintf("%s %s %s", a.Asset, a.Condition, strconv.FormatFloat(a.Value, 'f', -1, 64))
}

// AddAlert stores a new untriggered alert and announces it with a
// low-importance system notification.
func (s *AlertService) AddAlert(ctx context.Context, in models.NewAlert) models.Alert {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert := models.Alert{
		ID:                 newID(),
		Asset:              in.Asset,
		Condition:          in.Condition,
		Value:              in.Value,
		Active:             in.Active,
		CreatedAt:          nowMillis(s.clock),
		Repeat:             in.Repeat,
		NotificationType:   in.NotificationType,
		Notes:              in.Notes,
		TechnicalIndicator: in.TechnicalIndicator,
		OnChainMetric:      in.OnChainMetric,
	}
	if alert.NotificationType == "" {
		alert.NotificationType = models.ChannelApp
	}
	s.alerts = append(s.alerts, alert)
	s.saveAlertsLocked(ctx)

	s.pushNotificationLocked(ctx, models.Notification{
		Type:       models.NotificationSystem,
		Title:      "New Alert Created",
		Message:    fmt.Sprintf("Alert for %s has been created.", describe(alert)),
		Importance: models.ImportanceLow,
	})
	s.entry().WithFields(logger.Fields{"alert_id": alert.ID, "asset": alert.Asset}).Info("alert created")
	return alert
}

func (s *AlertService) UpdateAlert(ctx context.Context, id string, u models.AlertUpdate) (models.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.alertIndexLocked(id)
	if i < 0 {
		return models.Alert{}, false
	}
	a := &s.alerts[i]
	if u.Asset != nil {
		a.Asset = *u.Asset
	}
	if u.Condition != nil {
		a.Condition = *u.Condition
	}
	if u.Value != nil {
		a.Value = *u.Value
	}
	if u.Active != nil {
		a.Active = *u.Active
	}
	if u.Repeat != nil {
		a.Repeat = *u.Repeat
	}
	if u.NotificationType != nil {
		a.NotificationType = *u.NotificationType
	}
	if u.Notes != nil {
		a.Notes = *u.Notes
	}
	updated := *a
	s.saveAlertsLocked(ctx)
	return updated, true
}

func (s *AlertService) DeleteAlert(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.alertIndexLocked(id)
	if i < 0 {
		return false
	}
	s.alerts = append(s.alerts[:i], s.alerts[i+1:]...)
	s.saveAlertsLocked(ctx)
	return true
}

// TriggerAlert marks the alert as fired. A non-repeating alert is
// deactivated. Unknown ids are ignored.
func (s *AlertService) TriggerAlert(ctx context.Context, id string) (models.Alert, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.alertIndexLocked(id)
	if i < 0 {
		return models.Alert{}, false
	}
	now := nowMillis(s.clock)
	a := &s.alerts[i]
	a.Triggered = true
	a.TriggeredAt = &now
	a.Active = a.Repeat
	fired := *a
	s.saveAlertsLocked(ctx)

	s.pushNotificationLocked(ctx, models.Notification{
		AlertID:    fired.ID,
		Type:       models.NotificationAlert,
		Title:      "Alert Triggered",
		Message:    fmt.Sprintf("Your alert for %s has been triggered.", describe(fired)),
		Importance: models.ImportanceHigh,
	})
	s.entry().WithFields(logger.Fields{"alert_id": fired.ID, "asset": fired.Asset}).Info("alert triggered")
	return fired, true
}

func (s *AlertService) MarkNotificationRead(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications[i].Read = true
			s.saveNotificationsLocked(ctx)
			return true
		}
	}
	return false
}

func (s *AlertService) MarkAllNotificationsRead(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		s.notifications[i].Read = true
	}
	s.saveNotificationsLocked(ctx)
}

func (s *AlertService) DeleteNotification(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			s.saveNotificationsLocked(ctx)
			return true
		}
	}
	return false
}

func (s *AlertService) DeleteAllNotifications(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = []models.Notification{}
	s.saveNotificationsLocked(ctx)
}

// Evaluate fires every active price alert whose threshold is crossed by
// the given prices, keyed by upper-case asset symbol.
func (s *AlertService) Evaluate(ctx context.Context, prices map[string]float64) []models.Alert {
	var due []string
	s.mu.RLock()
	for _, a := range s.alerts {
		if !a.Active {
			continue
		}
		p, ok := prices[strings.ToUpper(a.Asset)]
		if !ok {
			continue
		}
		if (a.Condition == models.ConditionAbove && p > a.Value) ||
			(a.Condition == models.ConditionBelow && p < a.Value) {
			due = append(due, a.ID)
		}
	}
	s.mu.RUnlock()

	fired := make([]models.Alert, 0, len(due))
	for _, id := range due {
		if a, ok := s.TriggerAlert(ctx, id); ok {
			fired = append(fired, a)
		}
	}
	return fired
}

func (s *AlertService) alertIndexLocked(id string) int {
	for i := range s.alerts {
		if s.alerts[i].ID == id {
			return i
		}
	}
	return -1
}
