// Command ws_smoke drives a running `relaychat serve` instance end to end:
// it joins a topic over the REST API, sends a message and waits on /ws
// until the relay accepted it.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/vovakirdan/relaychat/internal/core"
	"github.com/vovakirdan/relaychat/internal/proto"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
}

func run() error {
	base := flag.String("base", "http://127.0.0.1:8080", "local API base URL")
	topic := flag.String("topic", "relaychat-smoke", "topic to join")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 15*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := post(ctx, *base+"/api/rooms", map[string]string{"topic": *topic}); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	wsURL := strings.Replace(*base, "http", "ws", 1) + "/ws"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if err := post(ctx, *base+"/api/messages", map[string]string{"text": *text}); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	for {
		var outbound struct {
			Type  string          `json:"type"`
			Event string          `json:"event"`
			Data  json.RawMessage `json:"data"`
			Error *proto.Error    `json:"error"`
		}
		if err := wsjson.Read(ctx, conn, &outbound); err != nil {
			return fmt.Errorf("read: %w", err)
		}

		fmt.Printf("Received outbound: type=%s", outbound.Type)
		if outbound.Event != "" {
			fmt.Printf(" event=%s", outbound.Event)
		}
		fmt.Println()

		if outbound.Type == proto.OutboundTypeError && outbound.Error != nil {
			return fmt.Errorf("server error: %s (%s)", outbound.Error.Msg, outbound.Error.Code)
		}
		if outbound.Event != "message_updated" {
			continue
		}
		var msg core.Message
		if err := json.Unmarshal(outbound.Data, &msg); err != nil {
			return fmt.Errorf("decode message: %w", err)
		}
		if msg.Text == *text && msg.Status == core.StatusSent {
			fmt.Printf("OK: %q delivered to topic %s\n", msg.Text, *topic)
			return nil
		}
	}
}

func post(ctx context.Context, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
