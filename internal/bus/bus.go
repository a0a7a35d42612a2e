// Package bus attaches the assistant to a hub over a websocket, so
// utterances can arrive from other machines or shards and the result text
// flows back to whoever asked.
package bus

import (
	"context"
	"encoding/json"
	"net/url"

	log "log/slog"

	"github.com/gorilla/websocket"
)

const shardName = "sysvox"

// Message is the JSON frame exchanged with the hub.
type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
}

type Bus struct {
	conn *websocket.Conn
}

func Dial(wsURL string) (*Bus, error) {
	u, err := url.Parse(wsURL)
	if err != nil {
		return nil, err
	}

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return nil, err
	}

	log.Info("Connected to bus", "url", wsURL)
	return &Bus{conn: conn}, nil
}

func (b *Bus) Close() error {
	return b.conn.Close()
}

// Run reads utterance frames and feeds them through handle, writing the
// result back to the sender. It returns when the connection drops or the
// context is canceled. handle runs one frame at a time, so bus traffic
// obeys the same single-turn discipline as the terminal.
func (b *Bus) Run(ctx context.Context, handle func(context.Context, string) string) {
	for {
		var msg Message
		if err := b.readMessage(&msg); err != nil {
			log.Error("Bus read failed", "err", err)
			return
		}
		if msg.Kind != "utterance" {
			continue
		}
		if ctx.Err() != nil {
			return
		}

		reply := handle(ctx, msg.Content)
		out := Message{From: shardName, To: msg.From, Kind: "reply", Content: reply}
		if err := b.writeMessage(out); err != nil {
			log.Error("Bus write failed", "err", err)
			return
		}
	}
}

func (b *Bus) readMessage(msg *Message) error {
	_, data, err := b.conn.ReadMessage()
	if err != nil {
		return err
	}
	return json.Unmarshal(data, msg)
}

func (b *Bus) writeMessage(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.conn.WriteMessage(websocket.TextMessage, data)
}
