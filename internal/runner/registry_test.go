//go:build !windows

package runner

import (
	"strings"
	"testing"
	"time"

	"github.com/rsmidt/ptyhost/internal/models"
)

func waitDone(t *testing.T, run *Run) {
	t.Helper()
	select {
	case <-run.Done():
	case <-time.After(15 * time.Second):
		t.Fatal("run did not finish in time")
	}
}

func TestStartAndSettle(t *testing.T) {
	reg := NewRegistry(nil)

	run, err := reg.Start(models.StartRequest{Command: "printf marker-out; exit 4"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if reg.Get(run.ID) != run {
		t.Error("run not registered while live")
	}

	waitDone(t, run)

	res := run.Result()
	if res == nil {
		t.Fatal("no result after done")
	}
	if res.ExitCode == nil || *res.ExitCode != 4 {
		t.Errorf("got exit code %v, want 4", res.ExitCode)
	}
	if res.Cancelled || res.TimedOut {
		t.Errorf("got cancelled=%v timedOut=%v", res.Cancelled, res.TimedOut)
	}
	if !strings.Contains(string(run.Replay()), "marker-out") {
		t.Error("replay buffer missing command output")
	}
	if reg.Get(run.ID) != nil {
		t.Error("finished run still registered")
	}
}

func TestKillLiveRun(t *testing.T) {
	reg := NewRegistry(nil)

	run, err := reg.Start(models.StartRequest{Command: "sleep 30"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := reg.Kill(run.ID); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	waitDone(t, run)

	res := run.Result()
	if res == nil || !res.Cancelled {
		t.Errorf("got result %+v, want cancelled", res)
	}
}

func TestControlUnknownRun(t *testing.T) {
	reg := NewRegistry(nil)

	if err := reg.Write("nope", "x"); err != ErrRunNotFound {
		t.Errorf("Write: got %v, want ErrRunNotFound", err)
	}
	if err := reg.Resize("nope", 80, 24); err != ErrRunNotFound {
		t.Errorf("Resize: got %v, want ErrRunNotFound", err)
	}
	if err := reg.Kill("nope"); err != ErrRunNotFound {
		t.Errorf("Kill: got %v, want ErrRunNotFound", err)
	}
}

func TestSubscribeReceivesOutput(t *testing.T) {
	reg := NewRegistry(nil)

	run, err := reg.Start(models.StartRequest{Command: "sleep 0.2; printf streamed-chunk"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	ch, unsub := run.Subscribe()
	defer unsub()

	var got strings.Builder
	for chunk := range ch {
		got.WriteString(chunk)
	}
	if !strings.Contains(got.String(), "streamed-chunk") {
		t.Errorf("subscriber saw %q, want streamed-chunk", got.String())
	}

	waitDone(t, run)
}

func TestSubscribeAfterFinish(t *testing.T) {
	reg := NewRegistry(nil)

	run, err := reg.Start(models.StartRequest{Command: "true"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, run)

	ch, unsub := run.Subscribe()
	defer unsub()
	if _, open := <-ch; open {
		t.Error("subscription channel open after finish")
	}
}

func TestSnapshotLifecycle(t *testing.T) {
	reg := NewRegistry(nil)

	run, err := reg.Start(models.StartRequest{Command: "exit 0", Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitDone(t, run)

	snap := run.Snapshot()
	if snap.Status != models.StatusCompleted {
		t.Errorf("got status %q, want completed", snap.Status)
	}
	if snap.Cols != 80 || snap.Rows != 24 {
		t.Errorf("got %dx%d, want 80x24", snap.Cols, snap.Rows)
	}
	if snap.ExitCode == nil || *snap.ExitCode != 0 {
		t.Errorf("got exit code %v, want 0", snap.ExitCode)
	}
}

func TestSnapshotReportsEffectiveSize(t *testing.T) {
	reg := NewRegistry(nil)

	// No size requested: the snapshot must show the defaulted terminal
	// size, not the request's zeros.
	run, err := reg.Start(models.StartRequest{Command: "sleep 30"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		run.Kill()
		waitDone(t, run)
	}()

	snap := run.Snapshot()
	if snap.Cols != 120 || snap.Rows != 40 {
		t.Errorf("got %dx%d, want defaulted 120x40", snap.Cols, snap.Rows)
	}

	// Out-of-range requests clamp the same way the engine does.
	clamped, err := reg.Start(models.StartRequest{Command: "sleep 30", Cols: 10000, Rows: 1})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() {
		clamped.Kill()
		waitDone(t, clamped)
	}()

	snap = clamped.Snapshot()
	if snap.Cols != 400 || snap.Rows != 5 {
		t.Errorf("got %dx%d, want clamped 400x5", snap.Cols, snap.Rows)
	}
}

func TestReplayBounded(t *testing.T) {
	run := &Run{subscribers: make(map[chan string]struct{})}

	chunk := strings.Repeat("x", 10*1024)
	for i := 0; i < 20; i++ {
		run.ingest(chunk)
	}
	if got := len(run.Replay()); got > replayBufSize {
		t.Errorf("replay buffer grew to %d, cap is %d", got, replayBufSize)
	}
}
