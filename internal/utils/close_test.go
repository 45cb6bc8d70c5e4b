package utils

import (
	"errors"
	"testing"

	"github.com/MrSnakeDoc/tripsync/internal/logger"
)

func TestCloseLogged(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "clean close"},
		{name: "failing close", err: errors.New("boom")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := 0
			c := CloserFunc(func() error {
				called++
				return tt.err
			})
			CloseLogged(c, logger.NewNop(), "thing")
			Close(c)
			if called != 2 {
				t.Errorf("Close called %d times, want 2", called)
			}
		})
	}
}
