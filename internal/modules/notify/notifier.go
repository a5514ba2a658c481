package notify

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Notifier sends a short message to a customer phone number. Callers invoke
// it after their own mutation has committed and must swallow failures; a
// notifier error never unwinds business state.
type Notifier interface {
	Notify(ctx context.Context, phoneNumber, message string) error
}

// logNotifier writes the message to the log instead of sending it. Used in
// development and tests, and as the fallback when no SMS gateway is
// configured.
type logNotifier struct {
	log logrus.FieldLogger
}

// NewLogNotifier creates a Notifier that only logs.
func NewLogNotifier(log logrus.FieldLogger) Notifier {
	return &logNotifier{log: log}
}

func (n *logNotifier) Notify(ctx context.Context, phoneNumber, message string) error {
	n.log.WithFields(logrus.Fields{
		"phone": phoneNumber,
	}).Info("sms (log only): " + message)
	return nil
}
