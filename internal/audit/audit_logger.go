package audit

import (
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type EventType string

const (
	EventBegin      EventType = "BEGIN"
	EventTransition EventType = "TRANSITION"
	EventCredit     EventType = "CREDIT"
	EventCancel     EventType = "CANCEL"
	EventError      EventType = "ERROR"
)

type Event struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"timestamp"`
	EventType   EventType `json:"event_type"`
	ReferenceID string    `json:"reference_id"`
	UserID      string    `json:"user_id"`
	Amount      int64     `json:"amount,omitempty"`
	Status      string    `json:"status"`
	Details     any       `json:"details,omitempty"`
}

// Logger writes ledger audit events to a dedicated named zap logger.
type Logger struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewLogger(logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{logger: logger.Named("audit"), now: time.Now}
}

func (a *Logger) LogBegin(referenceID, userID string) {
	a.log(Event{
		EventType:   EventBegin,
		ReferenceID: referenceID,
		UserID:      userID,
		Status:      "pending",
	})
}

func (a *Logger) LogTransition(referenceID, userID, from, to string) {
	a.log(Event{
		EventType:   EventTransition,
		ReferenceID: referenceID,
		UserID:      userID,
		Status:      to,
		Details:     map[string]string{"from": from},
	})
}

func (a *Logger) LogCredit(referenceID, userID string, amount, balance int64) {
	a.log(Event{
		EventType:   EventCredit,
		ReferenceID: referenceID,
		UserID:      userID,
		Amount:      amount,
		Status:      "SUCCESS",
		Details:     map[string]int64{"balance": balance},
	})
}

func (a *Logger) LogCancel(referenceID, userID string, accepted bool) {
	status := "FAILED"
	if accepted {
		status = "SUCCESS"
	}
	a.log(Event{
		EventType:   EventCancel,
		ReferenceID: referenceID,
		UserID:      userID,
		Status:      status,
	})
}

func (a *Logger) LogError(referenceID, userID string, err error) {
	a.log(Event{
		EventType:   EventError,
		ReferenceID: referenceID,
		UserID:      userID,
		Status:      "FAILED",
		Details:     map[string]string{"error": err.Error()},
	})
}

func (a *Logger) log(event Event) {
	event.ID = uuid.NewString()
	event.Timestamp = a.now().UTC()

	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.Time("timestamp", event.Timestamp),
		zap.String("event_type", string(event.EventType)),
		zap.String("reference_id", event.ReferenceID),
		zap.String("user_id", event.UserID),
		zap.String("status", event.Status),
	}
	if event.Amount != 0 {
		fields = append(fields, zap.Int64("amount", event.Amount))
	}
	if event.Details != nil {
		fields = append(fields, zap.Any("details", event.Details))
	}
	a.logger.Info("AUDIT", fields...)
}
