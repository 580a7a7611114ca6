package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/satriahrh/schedula/domain"
	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
	"github.com/satriahrh/schedula/usecase"
)

const chatHelp = `Commands:
  /mic        start or stop voice input
  /say <n>    read the n-th assistant message aloud, or stop reading
  /history    reload previous messages
  /help       show this help
  /quit       leave the chat
Anything else is sent to the assistant.`

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(nil)
		if err != nil {
			return err
		}
		defer a.close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		session, err := a.newSession(ctx)
		if err != nil {
			return err
		}
		session.Start(ctx)
		defer session.Close()

		return runChat(ctx, session, cmd.OutOrStdout(), a.logger)
	},
}

// chatSession is the part of a conversation session the REPL drives
type chatSession interface {
	SubmitMessage(ctx context.Context, text string) (entities.Message, error)
	ToggleMicrophone(ctx context.Context) (bool, error)
	ToggleSpeech(ctx context.Context, text string) (bool, error)
	LoadHistory(ctx context.Context) error
	Messages() []entities.Message
	Subscribe() (<-chan domain.SessionEvent, func())
}

func runChat(ctx context.Context, session chatSession, out io.Writer, logger *zap.Logger) error {
	events, unsubscribe := session.Subscribe()
	defer unsubscribe()

	printer := &eventPrinter{out: out}
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range events {
			printer.print(ev)
		}
	}()

	if err := session.LoadHistory(ctx); err != nil {
		logger.Warn("Failed to load history", zap.Error(err))
	}

	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	historyFile := chatHistoryFile()
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		if f, err := os.OpenFile(historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			line.WriteHistory(f)
			f.Close()
		}
		line.Close()
	}()

	printf(out, "Type a message, or /help for commands.\n")
	for {
		input, err := line.Prompt("you> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				printf(out, "\n")
				break
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		typed := !strings.HasPrefix(input, "/")
		if typed {
			printer.expectTyped(input)
		}
		quit, err := handleChatInput(ctx, session, input, out)
		if err != nil {
			if typed {
				printer.wasTyped(input)
			}
			printf(out, "[error] %v\n", err)
		}
		if quit {
			break
		}
	}

	unsubscribe()
	wg.Wait()
	return nil
}

// handleChatInput runs one REPL line; it reports whether the user asked to quit
func handleChatInput(ctx context.Context, session chatSession, input string, out io.Writer) (bool, error) {
	if !strings.HasPrefix(input, "/") {
		_, err := session.SubmitMessage(ctx, input)
		return false, err
	}

	fields := strings.Fields(input)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		printf(out, "%s\n", chatHelp)
	case "/mic":
		listening, err := session.ToggleMicrophone(ctx)
		if errors.Is(err, repositories.ErrUnsupported) {
			return false, errors.New("voice input is not available; try --audio=mock")
		}
		if err != nil {
			return false, err
		}
		if !listening {
			printf(out, "[mic off]\n")
		}
	case "/say":
		text := ""
		if len(fields) > 1 {
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				return false, fmt.Errorf("usage: /say <n>")
			}
			text, err = assistantMessage(session.Messages(), n)
			if err != nil {
				return false, err
			}
		}
		_, err := session.ToggleSpeech(ctx, text)
		return false, err
	case "/history":
		return false, session.LoadHistory(ctx)
	default:
		return false, fmt.Errorf("unknown command %s, see /help", fields[0])
	}
	return false, nil
}

// assistantMessage returns the content of the n-th assistant message, counting from 1
func assistantMessage(messages []entities.Message, n int) (string, error) {
	if n < 1 {
		return "", fmt.Errorf("message number must be positive")
	}
	seen := 0
	for _, m := range messages {
		if m.Sender != entities.SenderAssistant {
			continue
		}
		seen++
		if seen == n {
			return m.Content, nil
		}
	}
	return "", fmt.Errorf("there are only %d assistant messages", seen)
}

func chatHistoryFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	dir = filepath.Join(dir, "schedula")
	_ = os.MkdirAll(dir, 0o700)
	return filepath.Join(dir, "chat_history")
}

// eventPrinter renders session events as terminal lines. User messages are
// echoed unless they were typed at the prompt.
type eventPrinter struct {
	out       io.Writer
	assistant int

	mu    sync.Mutex
	typed []string
}

// expectTyped records a line the user typed so its message is not echoed
func (p *eventPrinter) expectTyped(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.typed = append(p.typed, text)
}

// wasTyped consumes a recorded line matching content
func (p *eventPrinter) wasTyped(content string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, text := range p.typed {
		if text == content {
			p.typed = append(p.typed[:i], p.typed[i+1:]...)
			return true
		}
	}
	return false
}

func (p *eventPrinter) print(ev domain.SessionEvent) {
	switch ev.Type {
	case domain.EventHistoryLoaded:
		p.assistant = 0
		for i := range ev.Messages {
			p.printMessage(ev.Messages[i])
		}
	case domain.EventMessageAppended:
		if ev.Message == nil {
			return
		}
		if ev.Message.Sender == entities.SenderAssistant {
			p.printMessage(*ev.Message)
		} else if !p.wasTyped(ev.Message.Content) {
			printf(p.out, "you (voice)> %s\n", ev.Message.Content)
		}
	case domain.EventTranscript:
		if ev.Transcript != "" {
			printf(p.out, "  ... %s\n", ev.Transcript)
		}
	case domain.EventNotice:
		if ev.Notice != nil {
			printf(p.out, "[%s] %s\n", ev.Notice.Level, ev.Notice.Message)
		}
	case domain.EventStateChanged:
		if ev.State == entities.SessionStateSending {
			printf(p.out, "  (assistant is typing)\n")
		}
	}
}

func (p *eventPrinter) printMessage(m entities.Message) {
	if m.Sender != entities.SenderAssistant {
		printf(p.out, "you> %s\n", m.Content)
		return
	}
	p.assistant++
	suffix := ""
	if m.Fallback {
		suffix = " (offline)"
	}
	printf(p.out, "assistant [%d]%s> %s\n", p.assistant, suffix, m.Content)
}

var _ chatSession = (*usecase.ConversationSession)(nil)
