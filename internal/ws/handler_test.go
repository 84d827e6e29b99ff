//go:build !windows

package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rsmidt/ptyhost/internal/models"
	"github.com/rsmidt/ptyhost/internal/runner"
)

func attachServer(t *testing.T) (*httptest.Server, *runner.Registry) {
	t.Helper()
	reg := runner.NewRegistry(nil)
	t.Cleanup(reg.StopAll)

	mux := http.NewServeMux()
	mux.Handle("GET /ws/run/{id}", NewHandler(reg))
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, reg
}

func dialRun(t *testing.T, srv *httptest.Server, id string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/run/" + id
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestAttachUnknownRun(t *testing.T) {
	srv, _ := attachServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/run/nope"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err == nil {
		t.Fatal("dial succeeded for unknown run")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("got response %+v, want 404", resp)
	}
}

func TestAttachStreamsOutputAndResult(t *testing.T) {
	srv, reg := attachServer(t)

	run, err := reg.Start(models.StartRequest{Command: "sleep 0.2; printf ws-marker; exit 5"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn := dialRun(t, srv, run.ID)
	conn.SetReadDeadline(time.Now().Add(15 * time.Second))

	var output strings.Builder
	var result *models.RunResult
	for result == nil {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v (output so far: %q)", err, output.String())
		}
		switch msgType {
		case websocket.BinaryMessage:
			output.Write(msg)
		case websocket.TextMessage:
			var frame struct {
				Type   string            `json:"type"`
				Result *models.RunResult `json:"result"`
			}
			if err := json.Unmarshal(msg, &frame); err != nil {
				t.Fatalf("unmarshal result frame: %v", err)
			}
			if frame.Type != "result" {
				t.Fatalf("got text frame type %q", frame.Type)
			}
			result = frame.Result
		}
	}

	if !strings.Contains(output.String(), "ws-marker") {
		t.Errorf("output %q missing marker", output.String())
	}
	if result.ExitCode == nil || *result.ExitCode != 5 {
		t.Errorf("got exit code %v, want 5", result.ExitCode)
	}
}

func TestAttachReplaysRetainedOutput(t *testing.T) {
	srv, reg := attachServer(t)

	run, err := reg.Start(models.StartRequest{Command: "printf early-marker; sleep 30"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	// Let the output land in the replay buffer before attaching.
	deadline := time.Now().Add(10 * time.Second)
	for len(run.Replay()) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no replay output before attach")
		}
		time.Sleep(20 * time.Millisecond)
	}

	conn := dialRun(t, srv, run.ID)
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))

	msgType, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if msgType != websocket.BinaryMessage {
		t.Fatalf("got frame type %d, want binary", msgType)
	}
	if !strings.Contains(string(msg), "early-marker") {
		t.Errorf("replay %q missing marker", msg)
	}
}

func TestKillOverControlFrame(t *testing.T) {
	srv, reg := attachServer(t)

	run, err := reg.Start(models.StartRequest{Command: "sleep 30"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn := dialRun(t, srv, run.ID)
	conn.SetReadDeadline(time.Now().Add(15 * time.Second))

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"kill"}`)); err != nil {
		t.Fatalf("write kill: %v", err)
	}

	select {
	case <-run.Done():
	case <-time.After(15 * time.Second):
		t.Fatal("run did not end after kill frame")
	}
	res := run.Result()
	if res == nil || !res.Cancelled {
		t.Errorf("got result %+v, want cancelled", res)
	}
}

func TestInputOverBinaryFrame(t *testing.T) {
	srv, reg := attachServer(t)

	run, err := reg.Start(models.StartRequest{Command: "read line; printf 'echoed:%s' \"$line\"; exit 0"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	conn := dialRun(t, srv, run.ID)
	conn.SetReadDeadline(time.Now().Add(15 * time.Second))

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte("ping\n")); err != nil {
		t.Fatalf("write input: %v", err)
	}

	var output strings.Builder
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType == websocket.BinaryMessage {
			output.Write(msg)
			if strings.Contains(output.String(), "echoed:ping") {
				break
			}
		}
	}
	if !strings.Contains(output.String(), "echoed:ping") {
		t.Errorf("output %q missing echoed input", output.String())
	}
}
