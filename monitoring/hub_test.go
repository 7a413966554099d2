package monitoring

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestPublishWithoutClients(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	// 无订阅者时发布不阻塞
	for i := 0; i < 1000; i++ {
		hub.Publish("batch_trained", map[string]interface{}{"size": 8})
	}
}

func TestClientReceivesEvent(t *testing.T) {
	hub := NewHub()
	hub.Start()
	defer hub.Stop()

	server := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	// 等注册完成后再广播
	time.Sleep(50 * time.Millisecond)
	hub.Publish("batch_trained", map[string]interface{}{"size": 8, "loss": 0.25})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}

	var event Event
	if err := json.Unmarshal(message, &event); err != nil {
		t.Fatalf("invalid event %q: %v", message, err)
	}
	if event.Type != "batch_trained" {
		t.Fatalf("unexpected event type: %s", event.Type)
	}
}

func TestCollectorSnapshot(t *testing.T) {
	c := NewCollector()
	c.Inc("examples_ingested", 3)
	c.Inc("examples_ingested", 2)
	c.Set("last_loss", 0.5)

	snapshot := c.Snapshot()
	counters := snapshot["counters"].(map[string]int64)
	if counters["examples_ingested"] != 5 {
		t.Fatalf("unexpected counter: %v", counters)
	}
	gauges := snapshot["gauges"].(map[string]float64)
	if gauges["last_loss"] != 0.5 {
		t.Fatalf("unexpected gauge: %v", gauges)
	}
}
