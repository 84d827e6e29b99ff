package ws

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/rsmidt/ptyhost/internal/runner"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// controlMsg is a text-frame directive from the client. Binary frames
// carry raw input for the PTY.
type controlMsg struct {
	Type string `json:"type"` // "resize" or "kill"
	Data struct {
		Cols uint16 `json:"cols"`
		Rows uint16 `json:"rows"`
	} `json:"data"`
}

// resultMsg is the final text frame sent before closing.
type resultMsg struct {
	Type   string `json:"type"` // "result"
	Result any    `json:"result"`
}

type Handler struct {
	registry *runner.Registry
}

func NewHandler(registry *runner.Registry) *Handler {
	return &Handler{registry: registry}
}

// ServeHTTP attaches a client to a live run: replay first, then the
// chunk stream as binary frames; input and control flow back the other
// way until either side goes away or the run ends.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		http.Error(w, "missing run id", http.StatusBadRequest)
		return
	}

	run := h.registry.Get(runID)
	if run == nil {
		http.Error(w, "run not found", http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed for %s: %v", runID, err)
		return
	}
	defer conn.Close()

	log.Printf("ws: client attached to run %s", runID)

	var writeMu sync.Mutex
	writeMessage := func(msgType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteMessage(msgType, data)
	}

	// Replay retained output so late attachers catch up.
	if replay := run.Replay(); len(replay) > 0 {
		if err := writeMessage(websocket.BinaryMessage, replay); err != nil {
			return
		}
	}

	outputCh, unsub := run.Subscribe()
	defer unsub()

	var wg sync.WaitGroup
	clientGone := make(chan struct{})

	// Run output -> client
	wg.Add(1)
	go func() {
		defer wg.Done()
		for chunk := range outputCh {
			if err := writeMessage(websocket.BinaryMessage, []byte(chunk)); err != nil {
				return
			}
		}
	}()

	// Client -> run (binary = input, text = control)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(clientGone)
		for {
			msgType, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			switch msgType {
			case websocket.BinaryMessage:
				if err := run.Write(string(msg)); err != nil {
					log.Printf("ws: input for run %s: %v", runID, err)
				}
			case websocket.TextMessage:
				var ctrl controlMsg
				if json.Unmarshal(msg, &ctrl) != nil {
					continue
				}
				switch ctrl.Type {
				case "resize":
					run.Resize(ctrl.Data.Cols, ctrl.Data.Rows)
				case "kill":
					run.Kill()
				}
			}
		}
	}()

	select {
	case <-clientGone:
		log.Printf("ws: client detached from run %s", runID)
	case <-run.Done():
		// Deliver the structured result, then a normal close.
		if res := run.Result(); res != nil {
			if payload, err := json.Marshal(resultMsg{Type: "result", Result: res}); err == nil {
				writeMessage(websocket.TextMessage, payload)
			}
		}
		writeMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run ended"))
		log.Printf("ws: run %s ended", runID)
	}

	conn.Close()
	wg.Wait()
}
