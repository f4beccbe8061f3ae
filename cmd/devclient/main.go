// Command devclient is a development probe for the voicedesk daemon. It
// opens a voice session over the control-plane WebSocket and prints what
// the daemon sends back, so you can exercise the tool flow without a UI
// shell in front of it.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/techaid-za/voicedesk/messages"
)

func main() {
	serverURL := flag.String("server", "ws://localhost:8080/ws", "WebSocket server URL")
	userContext := flag.String("context", "", "context string sent with open")
	showVisual := flag.Bool("visual", false, "print orb animation frames")
	flag.Parse()

	log.Printf("🔌 Connecting to %s...", *serverURL)
	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			printMessage(data, *showVisual)
		}
	}()

	send(conn, messages.TypeOpen, messages.OpenPayload{Context: *userContext})

	go readCommands(conn)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)

	select {
	case <-sigChan:
		send(conn, messages.TypeClose, nil)
	case <-done:
	}
}

// readCommands turns stdin lines into control messages.
// Commands: mute, unmute, scan, ping, close, quit.
func readCommands(conn *websocket.Conn) {
	fmt.Println("commands: mute | unmute | scan | ping | close | quit")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "mute":
			send(conn, messages.TypeSetMuted, messages.SetMutedPayload{Muted: true})
		case "unmute":
			send(conn, messages.TypeSetMuted, messages.SetMutedPayload{Muted: false})
		case "scan":
			send(conn, messages.TypeScanResult, map[string]any{
				"deviceType":  "laptop",
				"model":       "ThinkPad T14",
				"condition":   "fair",
				"description": "slow boot, fan noise",
			})
		case "ping":
			send(conn, messages.TypePing, nil)
		case "close":
			send(conn, messages.TypeClose, nil)
		case "quit":
			conn.Close()
			return
		case "":
		default:
			fmt.Println("unknown command")
		}
	}
}

func send(conn *websocket.Conn, msgType string, payload any) {
	msg := map[string]any{"type": msgType}
	if payload != nil {
		msg["payload"] = payload
	}
	data, err := sonic.Marshal(msg)
	if err != nil {
		log.Printf("encode %s: %v", msgType, err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("send %s: %v", msgType, err)
	}
}

func printMessage(data []byte, showVisual bool) {
	var msg struct {
		Type      string `json:"type"`
		SessionID string `json:"sessionId"`
		Payload   any    `json:"payload"`
	}
	if err := sonic.Unmarshal(data, &msg); err != nil {
		log.Printf("bad message: %s", data)
		return
	}
	if msg.Type == messages.TypeVisual && !showVisual {
		return
	}

	switch msg.Type {
	case messages.TypeStatus:
		fmt.Printf("⚡ status: %v\n", msg.Payload)
	case messages.TypeContactLink:
		fmt.Printf("💬 contact link: %v\n", msg.Payload)
	case messages.TypeBookingForm:
		fmt.Printf("📋 booking form: %v\n", msg.Payload)
	case messages.TypeOpenScanner:
		fmt.Println("📷 open scanner")
	case messages.TypeNavigate:
		fmt.Printf("🧭 navigate: %v\n", msg.Payload)
	case messages.TypeError:
		fmt.Printf("❌ error: %v\n", msg.Payload)
	case messages.TypePong:
		fmt.Println("🏓 pong")
	default:
		fmt.Printf("%s: %v\n", msg.Type, msg.Payload)
	}
}
