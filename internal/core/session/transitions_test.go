package session

import (
	"testing"
	"time"

	"github.com/example/dlqwatch/internal/models"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    models.SessionStatus
		to      models.SessionStatus
		wantErr bool
	}{
		{name: "triggered to running", from: models.StatusTriggered, to: models.StatusRunning, wantErr: false},
		{name: "triggered to failed on launch error", from: models.StatusTriggered, to: models.StatusFailed, wantErr: false},
		{name: "running to completed", from: models.StatusRunning, to: models.StatusCompleted, wantErr: false},
		{name: "running to failed", from: models.StatusRunning, to: models.StatusFailed, wantErr: false},
		{name: "running to timed out", from: models.StatusRunning, to: models.StatusTimedOut, wantErr: false},
		{name: "triggered cannot complete directly", from: models.StatusTriggered, to: models.StatusCompleted, wantErr: true},
		{name: "triggered cannot time out", from: models.StatusTriggered, to: models.StatusTimedOut, wantErr: true},
		{name: "completed is terminal", from: models.StatusCompleted, to: models.StatusRunning, wantErr: true},
		{name: "failed is terminal", from: models.StatusFailed, to: models.StatusTriggered, wantErr: true},
		{name: "timed out is terminal", from: models.StatusTimedOut, to: models.StatusFailed, wantErr: true},
		{name: "no self transition", from: models.StatusRunning, to: models.StatusRunning, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CanTransition(tt.from, tt.to)
			if (err != nil) != tt.wantErr {
				t.Errorf("CanTransition(%s, %s) error = %v, wantErr %v", tt.from, tt.to, err, tt.wantErr)
			}
		})
	}
}

func TestApplyTerminal(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fields := ApplyTerminal(now, time.Hour)

	if !fields.EndedAt.Equal(now) {
		t.Errorf("EndedAt = %v, want %v", fields.EndedAt, now)
	}
	if want := now.Add(time.Hour); !fields.CooldownUntil.Equal(want) {
		t.Errorf("CooldownUntil = %v, want %v", fields.CooldownUntil, want)
	}
}

func TestExpired(t *testing.T) {
	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	timeout := 30 * time.Minute

	tests := []struct {
		name string
		sess *models.Session
		now  time.Time
		want bool
	}{
		{
			name: "running before deadline",
			sess: &models.Session{Status: models.StatusRunning, StartedAt: started},
			now:  started.Add(29 * time.Minute),
			want: false,
		},
		{
			name: "running past deadline",
			sess: &models.Session{Status: models.StatusRunning, StartedAt: started},
			now:  started.Add(31 * time.Minute),
			want: true,
		},
		{
			name: "exactly at deadline is not expired",
			sess: &models.Session{Status: models.StatusRunning, StartedAt: started},
			now:  started.Add(timeout),
			want: false,
		},
		{
			name: "triggered sessions never expire",
			sess: &models.Session{Status: models.StatusTriggered, StartedAt: started},
			now:  started.Add(2 * time.Hour),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Expired(tt.sess, timeout, tt.now); got != tt.want {
				t.Errorf("Expired() = %v, want %v", got, tt.want)
			}
		})
	}
}
