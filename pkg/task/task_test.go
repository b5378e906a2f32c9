package task

import (
	"context"
	"errors"
	"testing"
)

func TestGoDeliversResultAndEvents(t *testing.T) {
	t.Parallel()
	tk := Go(context.Background(), func(ctx context.Context, report Report) (string, error) {
		report(Event{Stage: "download", Written: 10, Total: 100})
		report(Event{Stage: "download", Written: 100, Total: 100})
		return "payload.pk3", nil
	})

	var events []Event
	for e := range tk.Events() {
		events = append(events, e)
	}

	got, err := tk.Wait()
	if err != nil {
		t.Fatal(err)
	}
	if got != "payload.pk3" {
		t.Errorf("result = %q", got)
	}
	if len(events) != 2 || events[1].Written != 100 {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestGoPropagatesError(t *testing.T) {
	t.Parallel()
	boom := errors.New("boom")
	tk := Go(context.Background(), func(ctx context.Context, report Report) (int, error) {
		return 0, boom
	})
	for range tk.Events() {
	}
	if _, err := tk.Wait(); !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
}

func TestReportNeverBlocks(t *testing.T) {
	t.Parallel()
	tk := Go(context.Background(), func(ctx context.Context, report Report) (struct{}, error) {
		// Far more events than the channel buffers, with no reader yet.
		for i := 0; i < 10000; i++ {
			report(Event{Written: int64(i)})
		}
		return struct{}{}, nil
	})
	if _, err := tk.Wait(); err != nil {
		t.Fatal(err)
	}
	for range tk.Events() {
	}
}
