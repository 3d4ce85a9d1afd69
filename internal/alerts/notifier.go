package alerts

import (
	"log"
	"strings"

	"github.com/weathermon/weathermon/internal/models"
)

// Notifier receives alerts the moment they are persisted. Delivery channels
// (email, SMS, webhooks) plug in here; the default just logs.
type Notifier interface {
	Notify(alert models.Alert)
}

// LogNotifier writes fired alerts to the process log.
type LogNotifier struct{}

func (LogNotifier) Notify(alert models.Alert) {
	log.Printf("alerts: %s %s ALERT for %s: %s",
		strings.ToUpper(string(alert.Severity)), alert.Type, alert.City, alert.Message)
}
