package kit

import (
	"context"
	"errors"
	"testing"
)

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) Middleware {
		return func(next Endpoint) Endpoint {
			return func(ctx context.Context, req any) (any, error) {
				order = append(order, name+"_before")
				resp, err := next(ctx, req)
				order = append(order, name+"_after")
				return resp, err
			}
		}
	}

	base := func(_ context.Context, _ any) (any, error) {
		order = append(order, "endpoint")
		return "ok", nil
	}

	chained := Chain(mw("a"), mw("b"), mw("c"))(base)
	resp, err := chained(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != "ok" {
		t.Fatalf("response: got %v", resp)
	}

	expected := []string{"a_before", "b_before", "c_before", "endpoint", "c_after", "b_after", "a_after"}
	if len(order) != len(expected) {
		t.Fatalf("order length: got %d, want %d", len(order), len(expected))
	}
	for i, v := range expected {
		if order[i] != v {
			t.Fatalf("order[%d]: got %q, want %q", i, order[i], v)
		}
	}
}

func TestChain_ErrorPropagation(t *testing.T) {
	errFail := errors.New("fail")
	base := func(_ context.Context, _ any) (any, error) {
		return nil, errFail
	}

	noop := func(next Endpoint) Endpoint { return next }
	chained := Chain(noop)(base)

	_, err := chained(context.Background(), nil)
	if !errors.Is(err, errFail) {
		t.Fatalf("error: got %v, want %v", err, errFail)
	}
}

func TestContext_Transport_Default(t *testing.T) {
	if got := GetTransport(context.Background()); got != "http" {
		t.Fatalf("transport default: got %q, want http", got)
	}
}

func TestContext_Values(t *testing.T) {
	ctx := WithTransport(context.Background(), "mcp")
	ctx = WithTraceID(ctx, "trace-1")
	ctx = WithPageID(ctx, "docs")
	ctx = WithTool(ctx, "keyhint_press")
	if GetTransport(ctx) != "mcp" || GetTraceID(ctx) != "trace-1" || GetPageID(ctx) != "docs" || GetTool(ctx) != "keyhint_press" {
		t.Fatalf("context values: %q %q %q %q", GetTransport(ctx), GetTraceID(ctx), GetPageID(ctx), GetTool(ctx))
	}
}

func TestContext_EmptyDefaults(t *testing.T) {
	ctx := context.Background()
	if GetTraceID(ctx) != "" || GetPageID(ctx) != "" || GetTool(ctx) != "" {
		t.Fatal("expected empty values on a bare context")
	}
}

func TestLogging_PassesThrough(t *testing.T) {
	errFail := errors.New("unknown page")
	ep := Logging(nil)(func(_ context.Context, req any) (any, error) {
		if req == "bad" {
			return nil, errFail
		}
		return req, nil
	})
	if resp, err := ep(context.Background(), "ok"); err != nil || resp != "ok" {
		t.Fatalf("ok call: %v %v", resp, err)
	}
	if _, err := ep(context.Background(), "bad"); !errors.Is(err, errFail) {
		t.Fatalf("failing call: %v", err)
	}
}
