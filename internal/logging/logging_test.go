package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestComponentAndCtxChain(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Output: &buf, Level: "debug"})
	defer Init(Config{Level: "disabled"})

	Component("watchlist").Info().Str("uid", "u1").Msg("mirror loaded")
	if out := buf.String(); !strings.Contains(out, `"component":"watchlist"`) || !strings.Contains(out, `"uid":"u1"`) {
		t.Fatalf("expected component fields, got %s", out)
	}

	buf.Reset()
	ctx := WithRequestID(context.Background(), "rid-1")
	Ctx(ctx).Warn().Msg("slow request")
	if out := buf.String(); !strings.Contains(out, `"request_id":"rid-1"`) || !strings.Contains(out, `"level":"warn"`) {
		t.Fatalf("expected request id on ctx logger, got %s", out)
	}

	buf.Reset()
	Ctx(context.Background()).Debug().Msg("no id")
	if out := buf.String(); strings.Contains(out, "request_id") {
		t.Fatalf("expected no request id, got %s", out)
	}
}

func TestInitLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Output: &buf, Level: "warn"})
	defer Init(Config{Level: "disabled"})

	Component("x").Info().Msg("dropped")
	if buf.Len() != 0 {
		t.Fatalf("expected info to be filtered at warn level, got %s", buf.String())
	}
	Component("x").Error().Msg("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("expected error to be logged, got %s", buf.String())
	}
}
