package websocket

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// Writes from several goroutines must never interleave on the wire.
// Gorilla panics on a concurrent write, which would kill the server
// handler and surface as a read error on the client side.
func TestConnSerializesConcurrentWrites(t *testing.T) {
	const (
		writers          = 8
		messagesPerWrite = 50
	)

	upgrader := websocket.Upgrader{}
	serverDone := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conn := NewConn(raw)
		defer conn.Close()

		var wg sync.WaitGroup
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < messagesPerWrite; j++ {
					if err := conn.WriteTyped(PongResponse{Event: EventPong}); err != nil {
						t.Errorf("write: %v", err)
						return
					}
				}
			}()
		}
		wg.Wait()
		close(serverDone)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	for received := 0; received < writers*messagesPerWrite; received++ {
		var msg PongResponse
		if err := client.ReadJSON(&msg); err != nil {
			t.Fatalf("read after %d messages: %v", received, err)
		}
		if msg.Event != EventPong {
			t.Fatalf("unexpected event %q", msg.Event)
		}
	}
	<-serverDone
}

func TestWriteErrorCarriesEventAndMessage(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		conn := NewConn(raw)
		defer conn.Close()
		if err := conn.WriteError("leaderboard unavailable"); err != nil {
			t.Errorf("write: %v", err)
		}
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()

	var msg ErrorResponse
	if err := client.ReadJSON(&msg); err != nil {
		t.Fatalf("read: %v", err)
	}
	if msg.Event != EventError || msg.Error != "leaderboard unavailable" {
		t.Fatalf("unexpected payload %+v", msg)
	}
}
