package sync

import (
	"encoding/json"
	"log"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/secutel/netmanager/internal/data"
)

// EventPublisher fans committed camera events out to interested consumers.
// Publishing is best effort; a run never fails because the bus is down.
type EventPublisher interface {
	Publish(evt *data.CameraEvent) error
}

const (
	// DefaultEventSubject is where committed camera events land.
	DefaultEventSubject = "netmanager.events.camera"

	publishRetries = 3
	publishBackoff = 200 * time.Millisecond
)

// NATSPublisher publishes events as JSON on a fixed subject.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
}

func NewNATSPublisher(conn *nats.Conn, subject string) *NATSPublisher {
	if subject == "" {
		subject = DefaultEventSubject
	}
	return &NATSPublisher{conn: conn, subject: subject}
}

func (p *NATSPublisher) Publish(evt *data.CameraEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	for attempt := 1; attempt <= publishRetries; attempt++ {
		err = p.conn.Publish(p.subject, payload)
		if err == nil {
			return nil
		}
		if attempt < publishRetries {
			time.Sleep(publishBackoff * time.Duration(attempt))
		}
	}
	log.Printf("nats publish %s failed after %d attempts: %v", p.subject, publishRetries, err)
	return err
}
