// Package audit пишет журнал значимых действий магазина: выпуск токенов,
// покупки, обращения к контенту и административные правки. Каждая запись —
// отдельная JSON строка через общий логгер, с request_id и личностью
// пользователя из контекста.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"alemkitap.org/internal/auth"
	"alemkitap.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// entry — форма одной записи журнала.
type entry struct {
	TS        string         `json:"ts"`
	Type      string         `json:"type"`
	Event     string         `json:"event"`
	RequestID string         `json:"request_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Fields    map[string]any `json:"fields"`
}

// WithRequestID привязывает идентификатор запроса к контексту журнала.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// LogEvent пишет запись журнала, обогащённую контекстом запроса.
// Держатель по токенному пути передаётся явным полем в fields.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}

	e := entry{
		TS:     time.Now().UTC().Format(time.RFC3339Nano),
		Type:   "audit",
		Event:  event,
		Fields: map[string]any{},
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		e.RequestID = v
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		e.UserID = userID
	}
	for k, v := range fields {
		e.Fields[k] = v
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
