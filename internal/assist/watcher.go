// Package assist watches the assistance-request table for newly pending
// rows and broadcasts them to the operator room with zero polling
// latency. The watcher is strictly best-effort: if the store cannot
// provide change notification, it logs one warning and stays off.
package assist

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"roadassist/backend/internal/models"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

const (
	notifyChannel     = "assist_pending"
	listenerKeepalive = 90 * time.Second
)

// Broadcaster fans an event out to a room. Implemented by the hub.
type Broadcaster interface {
	Broadcast(room string, ev models.Event, excludeUserID string)
}

// Alerter forwards a pending-request summary to an out-of-band operator
// channel. Optional.
type Alerter interface {
	PendingRequestAlert(summary models.AssistSummary) error
}

type Watcher struct {
	DB     *gorm.DB
	DSN    string
	Hub    Broadcaster
	Alerts Alerter

	listener *pq.Listener
}

func NewWatcher(db *gorm.DB, dsn string, hub Broadcaster, alerts Alerter) *Watcher {
	return &Watcher{DB: db, DSN: dsn, Hub: hub, Alerts: alerts}
}

// Start installs the notify trigger and begins listening. Any setup
// failure disables the watcher without affecting process startup.
func (w *Watcher) Start(ctx context.Context) {
	if err := w.installTrigger(); err != nil {
		log.Printf("WARN: assist watcher disabled, change notification unavailable: %v", err)
		return
	}

	listener := pq.NewListener(w.DSN, 5*time.Second, time.Minute, func(_ pq.ListenerEventType, err error) {
		if err != nil {
			log.Printf("WARN: assist listener: %v", err)
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		log.Printf("WARN: assist watcher disabled, LISTEN failed: %v", err)
		listener.Close()
		return
	}

	w.listener = listener
	go w.run(ctx)
	log.Println("assist watcher started")
}

func (w *Watcher) run(ctx context.Context) {
	defer w.listener.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case n := <-w.listener.Notify:
			// nil signals a driver reconnect, not a payload.
			if n == nil {
				continue
			}
			w.handle(n.Extra)

		case <-time.After(listenerKeepalive):
			go w.listener.Ping()
		}
	}
}

func (w *Watcher) handle(payload string) {
	var doc map[string]any
	if err := json.Unmarshal([]byte(payload), &doc); err != nil {
		log.Printf("WARN: assist notification payload unreadable: %v", err)
		return
	}
	if status, _ := doc["status"].(string); status != models.RequestStatusPending {
		return
	}

	summary := NormalizeSummary(doc)
	w.Hub.Broadcast(models.OperatorRoom, models.NewEvent(models.EventAssistCreated, summary), "")

	if w.Alerts != nil {
		if err := w.Alerts.PendingRequestAlert(summary); err != nil {
			log.Printf("WARN: operator alert failed for request %s: %v", summary.RequestID, err)
		}
	}
}

// installTrigger makes the assist_requests table emit a NOTIFY with the
// row as JSON whenever a row is, or becomes, pending.
func (w *Watcher) installTrigger() error {
	if err := w.DB.Exec(`
		CREATE OR REPLACE FUNCTION notify_assist_pending() RETURNS trigger AS $$
		BEGIN
			PERFORM pg_notify('assist_pending', row_to_json(NEW)::text);
			RETURN NEW;
		END;
		$$ LANGUAGE plpgsql`).Error; err != nil {
		return err
	}
	if err := w.DB.Exec(`DROP TRIGGER IF EXISTS assist_pending_notify ON assist_requests`).Error; err != nil {
		return err
	}
	return w.DB.Exec(`
		CREATE TRIGGER assist_pending_notify
		AFTER INSERT OR UPDATE OF status ON assist_requests
		FOR EACH ROW WHEN (NEW.status = 'pending')
		EXECUTE FUNCTION notify_assist_pending()`).Error
}
