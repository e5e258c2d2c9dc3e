package state

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"golang.org/x/text/encoding/charmap"

	"nfex/config"
)

func TestContextWithEnv(t *testing.T) {
	ctx := ContextWithEnv(context.Background())
	env := EnvFromContext(ctx)
	if env == nil {
		t.Fatal("EnvFromContext() returned nil")
	}
	if env.Started().IsZero() {
		t.Error("Environment start time not set")
	}
	if env.RunID == uuid.Nil {
		t.Error("Run ID not set")
	}
}

func TestContextWithEnv_UniqueRuns(t *testing.T) {
	a := EnvFromContext(ContextWithEnv(context.Background()))
	b := EnvFromContext(ContextWithEnv(context.Background()))
	if a.RunID == b.RunID {
		t.Errorf("two environments share run ID %s", a.RunID)
	}
}

func TestEnvFromContext_Missing(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic when env not in context")
		}
	}()
	EnvFromContext(context.Background())
}

func TestLocalEnv_Uptime(t *testing.T) {
	env := EnvFromContext(ContextWithEnv(context.Background()))

	time.Sleep(10 * time.Millisecond)
	uptime := env.Uptime()

	if uptime < 10*time.Millisecond {
		t.Errorf("Uptime() = %v, expected at least 10ms", uptime)
	}
	if uptime > time.Second {
		t.Errorf("Uptime() = %v, unexpectedly large", uptime)
	}
}

func TestLocalEnv_StdLog(t *testing.T) {
	tests := []struct {
		name     string
		log      *zap.Logger
		redirect bool
	}{
		{"with logger", zaptest.NewLogger(t), true},
		{"without logger", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &LocalEnv{Log: tt.log}
			for i := 0; i < 3; i++ {
				env.RedirectStdLog()
				if got := env.restoreStdLog != nil; got != tt.redirect {
					t.Errorf("iteration %d: redirect installed = %v, want %v", i, got, tt.redirect)
				}
				env.RestoreStdLog()
			}
		})
	}
}

func TestLocalEnv_Integration(t *testing.T) {
	ctx := ContextWithEnv(context.Background())
	env := EnvFromContext(ctx)

	env.Cfg = &config.Config{Version: 1}
	env.Log = zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	env.CodePage = charmap.CodePage866
	env.Overwrite = true

	env.RedirectStdLog()
	defer env.RestoreStdLog()

	if got := EnvFromContext(ctx); got.CodePage != charmap.CodePage866 || !got.Overwrite {
		t.Error("environment changes are not visible through context")
	}
	// nil report is valid and does nothing
	env.Rpt.StoreData("ignored", []byte("data"))
	if env.Rpt.Len() != 0 {
		t.Error("nil report must stay empty")
	}
}
