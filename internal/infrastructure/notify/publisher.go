// Package notify announces transaction outcomes on a NATS subject.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"txctl/internal/bootstrap/logging"
	"txctl/internal/errs"
	"txctl/internal/txcontrol"
)

const DefaultSubject = "txctl.transactions"

// Publisher is the part of *nats.Conn the notifier needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Event is the JSON payload published for every completed transaction.
type Event struct {
	TransactionKey string `json:"tx_key"`
	Propagation    string `json:"propagation"`
	Status         string `json:"status"`
	ReadOnly       bool   `json:"read_only"`
	CompletedAt    string `json:"completed_at"`
}

type Notifier struct {
	pub     Publisher
	subject string
	now     func() time.Time
}

func NewNotifier(pub Publisher, subject string) *Notifier {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Notifier{pub: pub, subject: subject, now: time.Now}
}

// Listener publishes the final status of each transaction begun by a Control. Scopes
// without a transaction are not announced. Publish failures are logged and never
// affect the outcome.
func (n *Notifier) Listener() txcontrol.ContextListener {
	return func(ctx context.Context, p txcontrol.Propagation, tc txcontrol.TransactionContext) {
		key := tc.TransactionKey()
		if key == nil {
			return
		}
		readOnly := tc.ReadOnly()
		logCtx := logging.WithAttrs(ctx, slog.String("component", "notify"))

		_ = tc.PostCompletion(func(status txcontrol.Status) error {
			event := Event{
				TransactionKey: fmt.Sprint(key),
				Propagation:    p.String(),
				Status:         status.String(),
				ReadOnly:       readOnly,
				CompletedAt:    n.now().UTC().Format(time.RFC3339Nano),
			}
			if err := n.publish(event); err != nil {
				logging.Warn(logCtx, "publish transaction event failed", slog.Any("err", errs.Loggable(err)))
			}
			return nil
		})
	}
}

func (n *Notifier) publish(event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errs.Wrap(err, "marshal transaction event")
	}
	if err := n.pub.Publish(n.subject, data); err != nil {
		return errs.Wrapf(err, "publish to %q", n.subject)
	}
	return nil
}

// Connect dials the NATS server at url.
func Connect(ctx context.Context, url string) (*nats.Conn, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "notify"))

	conn, err := nats.Connect(url,
		nats.Name("txctl"),
		nats.Timeout(5*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logging.Warn(logCtx, "nats disconnected", slog.Any("err", errs.Loggable(err)))
			}
		}),
	)
	if err != nil {
		return nil, errs.Wrapf(err, "connect nats %q", url)
	}
	logging.Info(logCtx, "nats connected", slog.String("url", conn.ConnectedUrl()))
	return conn, nil
}
