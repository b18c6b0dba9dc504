package machine

import (
	"context"
	"testing"
	"time"
)

func recv(t *testing.T, d *Deferred) Task {
	t.Helper()
	select {
	case task := <-d.C():
		return task
	case <-time.After(2 * time.Second):
		t.Fatal("no task delivered")
	}
	return Task{}
}

func TestDeferred_RunsOnLoop(t *testing.T) {
	d := NewDeferred()
	defer d.Close()
	ran := 0
	d.Schedule(func(context.Context) { ran++ })
	if ran != 0 {
		t.Fatal("task must not run inline")
	}
	task := recv(t, d)
	task.Run(context.Background())
	task.Run(context.Background())
	if ran != 1 {
		t.Errorf("ran: got %d, want 1", ran)
	}
}

func TestDeferred_RescheduleSupersedes(t *testing.T) {
	d := NewDeferred()
	defer d.Close()
	var got []string
	d.Schedule(func(context.Context) { got = append(got, "first") })
	d.Schedule(func(context.Context) { got = append(got, "second") })

	deadline := time.After(2 * time.Second)
	for len(got) == 0 {
		select {
		case task := <-d.C():
			task.Run(context.Background())
		case <-deadline:
			t.Fatal("no task ran")
		}
	}
	if len(got) != 1 || got[0] != "second" {
		t.Errorf("got %v, want [second]", got)
	}
}

func TestDeferred_CancelledTaskIsNoop(t *testing.T) {
	d := NewDeferred()
	defer d.Close()
	ran := false
	d.Schedule(func(context.Context) { ran = true })
	task := recv(t, d)
	d.Cancel()
	task.Run(context.Background())
	if ran {
		t.Error("cancelled task ran")
	}
}

func TestDeferred_CloseUnblocksTimer(t *testing.T) {
	d := NewDeferred()
	d.Schedule(func(context.Context) {})
	d.Schedule(func(context.Context) {})
	d.Close()
	d.Close()
}
