package listener

import (
	"context"
	"io"
	"log/slog"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/Dilbarpun07/GBFC-website/internal/model"
	"github.com/Dilbarpun07/GBFC-website/internal/syncer"
)

func TestParsePayload(t *testing.T) {
	tests := []struct {
		payload string
		want    model.Kind
		wantErr bool
	}{
		{`{"table":"players","op":"update","ts":1714564800}`, model.KindPlayers, false},
		{`{"table":"training_sessions","op":"insert","ts":1}`, model.KindTrainingSessions, false},
		{`{"table":"teams","op":"delete"}`, model.KindTeams, false},
		{`{"table":"profiles","op":"insert"}`, "", true},
		{`not json`, "", true},
	}
	for _, tt := range tests {
		got, err := ParsePayload(tt.payload)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePayload(%q) error = %v, wantErr %v", tt.payload, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePayload(%q) = %q, want %q", tt.payload, got, tt.want)
		}
	}
}

func TestNextBackoff(t *testing.T) {
	steps := []struct {
		connected bool
		want      time.Duration
	}{
		{false, 5 * time.Second},
		{false, 10 * time.Second},
		{false, 20 * time.Second},
		{false, 30 * time.Second},
		{false, 30 * time.Second},
		// A session that reached LISTEN resets the sequence.
		{true, 5 * time.Second},
		{false, 10 * time.Second},
	}
	var backoff time.Duration
	for i, step := range steps {
		backoff = nextBackoff(backoff, step.connected)
		if backoff != step.want {
			t.Errorf("step %d (connected=%v): backoff = %v, want %v", i, step.connected, backoff, step.want)
		}
	}
}

func TestCoalesceGroupsWithinWindow(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	in := make(chan model.Kind)
	batches := make(chan []model.Kind, 4)
	done := make(chan struct{})
	go func() {
		Coalesce(ctx, clock, time.Second, in, func(b []model.Kind) { batches <- b })
		close(done)
	}()

	in <- model.KindTeams
	in <- model.KindPlayers
	in <- model.KindTeams
	in <- model.KindMatches

	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Second)

	select {
	case got := <-batches:
		want := []model.Kind{model.KindTeams, model.KindPlayers, model.KindMatches}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("batch = %v, want %v", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no batch flushed")
	}

	// A new window starts with the next kind.
	in <- model.KindPlayers
	if err := clock.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Second)
	select {
	case got := <-batches:
		if !reflect.DeepEqual(got, []model.Kind{model.KindPlayers}) {
			t.Errorf("second batch = %v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no second batch")
	}

	close(in)
	<-done
}

func TestCoalesceFlushesOnClose(t *testing.T) {
	in := make(chan model.Kind, 2)
	in <- model.KindMatches
	close(in)

	var got []model.Kind
	Coalesce(context.Background(), clockwork.NewFakeClock(), time.Minute, in, func(b []model.Kind) { got = b })
	if !reflect.DeepEqual(got, []model.Kind{model.KindMatches}) {
		t.Errorf("got %v", got)
	}
}

type fakeResyncer struct {
	mu    sync.Mutex
	state syncer.State
	calls [][]model.Kind
}

func (f *fakeResyncer) State() syncer.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeResyncer) Resync(_ context.Context, kinds ...model.Kind) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kinds)
	return nil
}

func TestResyncOnlyWhenReady(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fakeResyncer{state: syncer.StateLoading}

	resync(context.Background(), f, []model.Kind{model.KindPlayers}, logger)
	if len(f.calls) != 0 {
		t.Fatalf("resynced while loading: %v", f.calls)
	}

	f.state = syncer.StateReady
	resync(context.Background(), f, []model.Kind{model.KindPlayers, model.KindTeams}, logger)
	if len(f.calls) != 1 || len(f.calls[0]) != 2 {
		t.Errorf("calls = %v", f.calls)
	}
}
