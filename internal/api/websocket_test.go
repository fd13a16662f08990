package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/fluxhaus/fluxhaus-core/internal/auth"
	"github.com/fluxhaus/fluxhaus-core/internal/command"
	"github.com/fluxhaus/fluxhaus-core/internal/device"
	"github.com/fluxhaus/fluxhaus-core/internal/infrastructure/config"
	"github.com/fluxhaus/fluxhaus-core/internal/snapshot"
)

type recordingGauge struct{ value float64 }

func (g *recordingGauge) Set(v float64) { g.value = v }

func newTestHub(gauge Gauge) *Hub {
	return NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, testLogger(), gauge)
}

func newTestClient(hub *Hub, role auth.Role, channels ...string) *WSClient {
	c := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		identity:      auth.Identity{Username: string(role), Role: role},
		subscriptions: make(map[string]struct{}),
	}
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
	hub.Register(c)
	return c
}

func receive(t *testing.T, c *WSClient) (WSMessage, bool) {
	t.Helper()
	select {
	case data := <-c.send:
		var msg WSMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		return msg, true
	case <-time.After(100 * time.Millisecond):
		return WSMessage{}, false
	}
}

func TestHub_SnapshotUpdated_FilteredByRole(t *testing.T) {
	hub := newTestHub(nil)
	admin := newTestClient(hub, auth.RoleAdmin, ChannelSnapshotUpdated)
	partner := newTestClient(hub, auth.RolePartner, ChannelSnapshotUpdated)

	hub.SnapshotUpdated(snapshot.KeyEVStatus, snapshot.Snapshot{Timestamp: time.Now()})
	if _, ok := receive(t, admin); !ok {
		t.Error("admin should receive vehicle snapshot")
	}
	if _, ok := receive(t, partner); ok {
		t.Error("partner must not receive vehicle snapshot")
	}

	hub.SnapshotUpdated(snapshot.KeyRhizome, snapshot.Snapshot{Timestamp: time.Now()})
	msg, ok := receive(t, partner)
	if !ok {
		t.Fatal("partner should receive schedule snapshot")
	}
	if msg.EventType != ChannelSnapshotUpdated {
		t.Errorf("event_type = %q", msg.EventType)
	}
	payload, _ := msg.Payload.(map[string]any)
	if payload["key"] != snapshot.KeyRhizome {
		t.Errorf("payload = %v", msg.Payload)
	}
}

func TestHub_CommandUpdated_AdminOnly(t *testing.T) {
	hub := newTestHub(nil)
	admin := newTestClient(hub, auth.RoleAdmin, ChannelCommandUpdated)
	partner := newTestClient(hub, auth.RolePartner, ChannelCommandUpdated)

	hub.CommandUpdated(command.Execution{ID: "x", Device: device.NameCar, Command: device.CommandLock})
	if _, ok := receive(t, admin); !ok {
		t.Error("admin should receive command event")
	}
	if _, ok := receive(t, partner); ok {
		t.Error("partner must not receive command event")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := newTestHub(nil)
	client := newTestClient(hub, auth.RoleAdmin)

	hub.SnapshotUpdated(snapshot.KeyRhizome, snapshot.Snapshot{Timestamp: time.Now()})
	if _, ok := receive(t, client); ok {
		t.Error("unsubscribed client should not receive message")
	}
}

func TestHub_ClientCount(t *testing.T) {
	gauge := &recordingGauge{}
	hub := newTestHub(gauge)

	client := newTestClient(hub, auth.RoleAdmin)
	if hub.ClientCount() != 1 || gauge.value != 1 {
		t.Errorf("after register count = %d gauge = %v", hub.ClientCount(), gauge.value)
	}

	hub.Unregister(client)
	hub.Unregister(client) // second call must not close twice
	if hub.ClientCount() != 0 || gauge.value != 0 {
		t.Errorf("after unregister count = %d gauge = %v", hub.ClientCount(), gauge.value)
	}
}

func TestClient_SubscribeRejectsForbiddenChannels(t *testing.T) {
	hub := newTestHub(nil)
	client := newTestClient(hub, auth.RolePartner)

	client.handleMessage([]byte(`{"type":"subscribe","id":"1","payload":{"channels":["snapshot.updated","command.updated","bogus"]}}`))

	msg, ok := receive(t, client)
	if !ok {
		t.Fatal("no subscribe response")
	}
	payload, _ := msg.Payload.(map[string]any)
	rejected, _ := payload["rejected"].([]any)
	if len(rejected) != 2 {
		t.Errorf("rejected = %v, want command.updated and bogus", payload["rejected"])
	}
	if !client.isSubscribed(ChannelSnapshotUpdated) || client.isSubscribed(ChannelCommandUpdated) {
		t.Error("subscription set is wrong")
	}
}

func TestClient_PingAndUnknown(t *testing.T) {
	hub := newTestHub(nil)
	client := newTestClient(hub, auth.RoleAdmin)

	client.handleMessage([]byte(`{"type":"ping","id":"p1"}`))
	if msg, ok := receive(t, client); !ok || msg.Type != WSTypePong || msg.ID != "p1" {
		t.Errorf("ping reply = %+v", msg)
	}

	client.handleMessage([]byte(`{"type":"shout"}`))
	if msg, ok := receive(t, client); !ok || msg.Type != WSTypeError {
		t.Errorf("unknown type reply = %+v", msg)
	}

	client.handleMessage([]byte(`not json`))
	if msg, ok := receive(t, client); !ok || msg.Type != WSTypeError {
		t.Errorf("invalid JSON reply = %+v", msg)
	}
}

func TestWebSocket_EndToEnd(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.router)
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil {
		t.Fatal("dial without credentials should fail")
	} else if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated dial response = %v", resp)
	}

	header := http.Header{"Authorization": {"Basic " + basic("admin", "admin-pass")}}
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sub := WSMessage{Type: WSTypeSubscribe, ID: "s1", Payload: WSSubscribePayload{Channels: []string{ChannelSnapshotUpdated}}}
	if err := conn.WriteJSON(sub); err != nil {
		t.Fatal(err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second)) //nolint:errcheck // test deadline
	var resp WSMessage
	if err := conn.ReadJSON(&resp); err != nil {
		t.Fatalf("read subscribe response: %v", err)
	}
	if resp.Type != WSTypeResponse || resp.ID != "s1" {
		t.Fatalf("subscribe response = %+v", resp)
	}

	env.srv.hub.SnapshotUpdated(snapshot.KeyRhizomePhotos, snapshot.Snapshot{Timestamp: time.Now()})

	var event WSMessage
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != ChannelSnapshotUpdated {
		t.Errorf("event = %+v", event)
	}
}
