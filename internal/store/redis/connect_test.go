package redis

import (
	"context"
	"testing"
	"time"

	"github.com/MrSnakeDoc/tripsync/internal/logger"
)

func TestBackoff(t *testing.T) {
	tests := []struct {
		wait, max, want time.Duration
	}{
		{wait: time.Second, max: 10 * time.Second, want: 2 * time.Second},
		{wait: 4 * time.Second, max: 5 * time.Second, want: 5 * time.Second},
		{wait: 10 * time.Second, max: 10 * time.Second, want: 10 * time.Second},
	}
	for _, tt := range tests {
		if got := backoff(tt.wait, tt.max); got != tt.want {
			t.Errorf("backoff(%v, %v) = %v, want %v", tt.wait, tt.max, got, tt.want)
		}
	}
}

func TestConnectRejectsInvalidOptions(t *testing.T) {
	valid := ConnectOptions{
		Addr:           "localhost:6379",
		ConnectTimeout: time.Second,
		RetryInterval:  time.Millisecond,
		MaxWait:        time.Millisecond,
		PingTimeout:    time.Millisecond,
	}

	tests := []struct {
		name   string
		mutate func(*ConnectOptions)
	}{
		{name: "connect timeout", mutate: func(o *ConnectOptions) { o.ConnectTimeout = 0 }},
		{name: "retry interval", mutate: func(o *ConnectOptions) { o.RetryInterval = 0 }},
		{name: "max wait", mutate: func(o *ConnectOptions) { o.MaxWait = -1 }},
		{name: "ping timeout", mutate: func(o *ConnectOptions) { o.PingTimeout = 0 }},
		{name: "warn threshold", mutate: func(o *ConnectOptions) { o.WarnThreshold = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := valid
			tt.mutate(&opts)
			if _, err := Connect(context.Background(), opts, logger.NewNop()); err == nil {
				t.Errorf("Connect() should reject %s", tt.name)
			}
		})
	}
}
