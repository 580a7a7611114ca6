package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/satriahrh/schedula/domain"
	"github.com/satriahrh/schedula/internal/config"
	ws "github.com/satriahrh/schedula/internal/websocket"
)

var (
	urlFlag   string
	tokenFlag string
)

var attachCmd = &cobra.Command{
	Use:   "attach",
	Short: "Attach a terminal to a session run by schedula serve",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := urlFlag
		if target == "" {
			cfg, err := config.Load(configFlag)
			if err != nil {
				return err
			}
			target = "ws://127.0.0.1:" + cfg.Control.Port + "/ws"
		}
		u, err := url.Parse(target)
		if err != nil {
			return fmt.Errorf("invalid url: %w", err)
		}

		header := http.Header{}
		if tokenFlag != "" {
			header.Set("Authorization", "Bearer "+tokenFlag)
		}

		out := cmd.OutOrStdout()
		printf(out, "Connecting to %s\n", u.String())
		conn, resp, err := websocket.DefaultDialer.DialContext(cmd.Context(), u.String(), header)
		if err != nil {
			if resp != nil {
				return fmt.Errorf("websocket connection failed with status %d: %w", resp.StatusCode, err)
			}
			return fmt.Errorf("websocket connection failed: %w", err)
		}
		defer conn.Close()

		printer := &eventPrinter{out: out}
		done := make(chan struct{})
		go func() {
			defer close(done)
			for {
				_, data, err := conn.ReadMessage()
				if err != nil {
					if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
						printf(out, "[error] connection lost: %v\n", err)
					}
					return
				}
				renderFrame(printer, data)
			}
		}()

		line := liner.NewLiner()
		defer line.Close()
		line.SetCtrlCAborts(true)

		for {
			input, err := line.Prompt("you> ")
			if err != nil {
				if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
					return err
				}
				break
			}
			input = strings.TrimSpace(input)
			if input == "" {
				continue
			}
			line.AppendHistory(input)

			msg, quit, err := commandFor(input)
			if err != nil {
				printf(out, "[error] %v\n", err)
				continue
			}
			if quit {
				break
			}
			if msg.Type == ws.MessageTypeSubmitMessage {
				printer.expectTyped(msg.Text)
			}
			if err := conn.WriteJSON(msg); err != nil {
				return fmt.Errorf("send command: %w", err)
			}

			select {
			case <-done:
				return nil
			default:
			}
		}

		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return nil
	},
}

func init() {
	attachCmd.Flags().StringVar(&urlFlag, "url", "", "Websocket URL of the control API (default ws://127.0.0.1:<port>/ws)")
	attachCmd.Flags().StringVarP(&tokenFlag, "token", "t", "", "Control token printed by schedula serve")
}

// commandFor maps a REPL line to a websocket command
func commandFor(input string) (*ws.CommandMessage, bool, error) {
	msg := &ws.CommandMessage{BaseMessage: ws.BaseMessage{
		Timestamp: time.Now().Format(time.RFC3339),
		MessageID: uuid.NewString(),
	}}

	if !strings.HasPrefix(input, "/") {
		msg.Type = ws.MessageTypeSubmitMessage
		msg.Text = input
		return msg, false, nil
	}

	name, rest, _ := strings.Cut(input, " ")
	switch name {
	case "/quit", "/exit":
		return nil, true, nil
	case "/mic":
		msg.Type = ws.MessageTypeToggleMicrophone
	case "/say":
		msg.Type = ws.MessageTypeToggleSpeech
		msg.Text = strings.TrimSpace(rest)
	case "/history":
		msg.Type = ws.MessageTypeLoadHistory
	case "/ping":
		msg.Type = ws.MessageTypePing
	default:
		return nil, false, fmt.Errorf("unknown command %s; use /mic, /say [text], /history, /ping or /quit", name)
	}
	return msg, false, nil
}

// renderFrame prints one frame pushed by the control API
func renderFrame(p *eventPrinter, data []byte) {
	switch ws.MessageType(gjson.GetBytes(data, "type").String()) {
	case ws.MessageTypeSnapshot:
		var msg ws.SnapshotMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			printf(p.out, "[error] bad snapshot: %v\n", err)
			return
		}
		printf(p.out, "Attached to session %s (%s)\n", msg.Snapshot.ID, msg.Snapshot.State)
		p.print(domain.SessionEvent{Type: domain.EventHistoryLoaded, Messages: msg.Snapshot.Messages})
	case ws.MessageTypeEvent:
		var msg ws.EventMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			printf(p.out, "[error] bad event: %v\n", err)
			return
		}
		p.print(msg.Event)
	case ws.MessageTypeError:
		printf(p.out, "[error] %s\n", gjson.GetBytes(data, "message").String())
	case ws.MessageTypePong:
		printf(p.out, "pong\n")
	case ws.MessageTypeAck:
		if active := gjson.GetBytes(data, "active"); active.Exists() && gjson.GetBytes(data, "command").String() == string(ws.MessageTypeToggleMicrophone) && !active.Bool() {
			printf(p.out, "[mic off]\n")
		}
	}
}
