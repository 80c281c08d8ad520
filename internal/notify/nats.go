// Package notify fans session updates out to NATS subscribers.
package notify

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jason-s-yu/uno/internal/gateway"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"
)

// SubjectPrefix is prepended to the session id to form the subject of its updates.
const SubjectPrefix = "uno.sessions."

// Publisher is the part of *nats.Conn the notifier uses.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes the public snapshot of every update. Private hands never leave the process.
type NATS struct {
	pub    Publisher
	logger logrus.FieldLogger
}

func NewNATS(pub Publisher, logger logrus.FieldLogger) *NATS {
	return &NATS{pub: pub, logger: logger}
}

// Connect dials the broker at url with reconnects enabled.
func Connect(url string, logger logrus.FieldLogger) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("uno-service"),
		nats.Timeout(10*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.WithError(err).Warn("nats disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.WithField("url", nc.ConnectedUrl()).Info("nats reconnected")
		}),
	)
}

// Subject returns the subject updates of the session are published on.
func Subject(u gateway.Update) string {
	return SubjectPrefix + u.SessionID.String()
}

func (n *NATS) Notify(_ context.Context, u gateway.Update) {
	data, err := json.Marshal(u.Public)
	if err != nil {
		n.logger.WithField("session", u.SessionID).WithError(err).Error("failed to encode update")
		return
	}
	// Publish buffers locally and never blocks on the network.
	if err := n.pub.Publish(Subject(u), data); err != nil {
		n.logger.WithField("session", u.SessionID).WithError(err).Warn("failed to publish update")
	}
}
