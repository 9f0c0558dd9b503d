package api

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func dialTestServer(t *testing.T) (*Hub, *websocket.Conn) {
	t.Helper()

	hub := NewHub()
	srv := NewServer(nil, hub, "")
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return hub, conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_HelloFrame(t *testing.T) {
	_, conn := dialTestServer(t)

	hello := readFrame(t, conn)
	require.Equal(t, true, hello["ok"])
	require.Equal(t, "degenter-ws", hello["hello"])
	require.Equal(t, "/ws", hello["path"])
}

func TestWebSocket_SubscribeUnsubscribe(t *testing.T) {
	hub, conn := dialTestServer(t)
	readFrame(t, conn) // hello

	require.NoError(t, conn.WriteJSON(map[string]string{"op": "subscribe", "topic": TopicTrades}))
	ack := readFrame(t, conn)
	require.Equal(t, true, ack["ok"])
	require.Equal(t, TopicTrades, ack["subscribed"])

	// Published frames reach the subscriber.
	hub.Publish(TopicTrades, []byte(`{"type":"trade","data":{}}`))
	frame := readFrame(t, conn)
	require.Equal(t, "trade", frame["type"])

	require.NoError(t, conn.WriteJSON(map[string]string{"op": "unsubscribe", "topic": TopicTrades}))
	ack = readFrame(t, conn)
	require.Equal(t, true, ack["ok"])
	require.Equal(t, TopicTrades, ack["unsubscribed"])

	// Give the hub a beat to drop the registration before asserting.
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(TopicTrades) == 0
	}, time.Second, 10*time.Millisecond)
}

func TestWebSocket_UnknownOp(t *testing.T) {
	_, conn := dialTestServer(t)
	readFrame(t, conn) // hello

	require.NoError(t, conn.WriteJSON(map[string]string{"op": "ping"}))
	ack := readFrame(t, conn)
	require.Equal(t, false, ack["ok"])
	require.Equal(t, "unknown_op", ack["error"])
}

func TestWebSocket_InvalidJSON(t *testing.T) {
	_, conn := dialTestServer(t)
	readFrame(t, conn) // hello

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	ack := readFrame(t, conn)
	require.Equal(t, false, ack["ok"])
	require.Equal(t, "invalid_json", ack["error"])
}

func TestWebSocket_TopicIsolation(t *testing.T) {
	hub, conn := dialTestServer(t)
	readFrame(t, conn) // hello

	require.NoError(t, conn.WriteJSON(map[string]string{"op": "subscribe", "topic": PairTopic("zig1pair")}))
	readFrame(t, conn) // ack

	// A frame on another pair's topic must not arrive.
	hub.Publish(PairTopic("zig1other"), []byte(`{"type":"trade","data":{"pairContract":"zig1other"}}`))
	hub.Publish(PairTopic("zig1pair"), []byte(`{"type":"trade","data":{"pairContract":"zig1pair"}}`))

	frame := readFrame(t, conn)
	data := frame["data"].(map[string]interface{})
	require.Equal(t, "zig1pair", data["pairContract"])
}

func TestHub_FullBufferDropsClient(t *testing.T) {
	hub := NewHub()
	c := newClient(hub, nil)
	c.send = make(chan []byte) // unbuffered, nobody reading
	hub.subscribe(TopicTrades, c)

	hub.Publish(TopicTrades, []byte("x"))

	require.Equal(t, 0, hub.SubscriberCount(TopicTrades))
}

func TestHub_PublishDuringDisconnect(t *testing.T) {
	hub := NewHub()

	clients := make([]*Client, 0, 200)
	for i := 0; i < 200; i++ {
		c := newClient(hub, nil)
		c.send = make(chan []byte, 1)
		hub.subscribe(TopicTrades, c)
		clients = append(clients, c)
	}

	// Fan out while clients disconnect underneath the pump. A send to a
	// closing client must never panic the publisher.
	pumpDone := make(chan struct{})
	go func() {
		defer close(pumpDone)
		for i := 0; i < 500; i++ {
			hub.Publish(TopicTrades, []byte("x"))
		}
	}()
	for _, c := range clients {
		c.close()
	}
	<-pumpDone

	require.Equal(t, 0, hub.SubscriberCount(TopicTrades))
}
