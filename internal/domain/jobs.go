package domain

import (
	"context"
	"time"
)

// MatchJobCause описывает источник запроса на матчинг.
type MatchJobCause string

const (
	// MatchCauseManual — матчинг запрошен вручную через API.
	MatchCauseManual MatchJobCause = "manual"
	// MatchCauseScheduled — матчинг запланирован batch-прогоном.
	MatchCauseScheduled MatchJobCause = "scheduled"
)

// MatchJob содержит информацию о задаче на матчинг одного пользователя.
type MatchJob struct {
	ID          string        `json:"job_id,omitempty"`
	UserEmail   string        `json:"user_email"`
	RequestedAt time.Time     `json:"requested_at"`
	Cause       MatchJobCause `json:"cause"`
}

// MatchQueue описывает очередь задач на матчинг.
type MatchQueue interface {
	Enqueue(ctx context.Context, job MatchJob) error
	Receive(ctx context.Context) (MatchJob, MatchAckFunc, error)
}

// MatchAckFunc подтверждает успешную обработку или запрашивает повтор доставки задачи.
type MatchAckFunc func(success bool) error
