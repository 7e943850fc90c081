package traces

import (
	"context"
	"io"
	"log/slog"
	"testing"
)

func TestInitDisabledWithoutEndpoint(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	shutdown, err := Init(context.Background(), "", logger)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown: %v", err)
	}
}

func TestSpanHelpers(t *testing.T) {
	ctx, span := StartSpan(context.Background(), "classify_address",
		Address("0x5555555555555555555555555555555555555555"), Selector("0x095ea7b3"))
	SetAttributes(ctx, Mode("calldata"), Lang("en"), SignalCount(2))
	span.End()
}

func TestSetAttributesWithoutSpan(t *testing.T) {
	// Must be a silent no-op on a context that never saw StartSpan.
	SetAttributes(context.Background(), Address("0x5555555555555555555555555555555555555555"))
}
