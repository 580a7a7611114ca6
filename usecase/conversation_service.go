package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/satriahrh/schedula/domain"
	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
)

const (
	DefaultGreeting      = "Hello! I'm your AI Schedule Assistant. You can tell me about your upcoming events or ask about your schedule."
	DefaultFallbackReply = "I've noted that information about your schedule. Is there anything else you'd like to add or ask about?"
	DefaultFallbackDelay = 1500 * time.Millisecond

	defaultVoiceLanguage = "en-"
	subscriberBuffer     = 64
)

var (
	// ErrEmptyMessage is returned for submissions that are blank after trimming
	ErrEmptyMessage = errors.New("message is empty")
	// ErrSessionClosed is returned by operations on a session that was closed
	ErrSessionClosed = errors.New("session closed")
	// ErrSessionNotStarted is returned by operations called before Start
	ErrSessionNotStarted = errors.New("session not started")
)

// SessionConfig tunes a conversation session
type SessionConfig struct {
	Greeting      string
	FallbackReply string
	FallbackDelay time.Duration
	Audio         repositories.AudioConfig
	// VoiceLanguage is the language tag prefix of the preferred synthesis voice
	VoiceLanguage string
	Rate          float64
	Pitch         float64
	Volume        float64
}

// SessionDeps are the collaborators of a conversation session. Chat is required;
// a nil Recognizer or Synthesizer means the capability is unsupported.
type SessionDeps struct {
	Chat        repositories.ChatBackend
	Credentials repositories.CredentialSource
	Microphone  repositories.Microphone
	Recognizer  repositories.Recognizer
	Synthesizer repositories.Synthesizer
	Notifier    repositories.Notifier
	Archive     repositories.MessageArchive
}

// SessionSnapshot is a read-only view of a session
type SessionSnapshot struct {
	ID       string                `json:"id"`
	State    entities.SessionState `json:"state"`
	Audio    entities.AudioState   `json:"audio"`
	Typing   bool                  `json:"typing"`
	Messages []entities.Message    `json:"messages"`
}

// ConversationSession coordinates microphone capture, speech recognition, chat
// requests and speech playback. All state is owned by the run loop; public
// methods, platform events and network results are messages into it.
type ConversationSession struct {
	id          string
	cfg         SessionConfig
	chat        repositories.ChatBackend
	creds       repositories.CredentialSource
	mic         repositories.Microphone
	recognizer  repositories.Recognizer
	synthesizer repositories.Synthesizer
	notifier    repositories.Notifier
	archiver    *messageArchiver
	logger      *zap.Logger
	now         func() time.Time

	inbox   chan func()
	ctx     context.Context
	cancel  context.CancelFunc
	started chan struct{}
	done    chan struct{}

	startOnce sync.Once
	closeOnce sync.Once

	// serializes ToggleMicrophone so two quick toggles land on opposite states
	micMu sync.Mutex

	subsMu  sync.Mutex
	subs    map[int]chan domain.SessionEvent
	nextSub int

	// owned by the run loop
	conv                *entities.Conversation
	state               entities.SessionState
	audio               entities.AudioState
	voice               *repositories.Voice
	captureID           uint64
	utteranceID         uint64
	requestSeq          uint64
	inFlight            bool
	historySeq          uint64
	historyMark         int
	recognitionDisabled bool
	synthesisDisabled   bool
	recognitionReported bool
	synthesisReported   bool
}

// NewConversationSession creates a session; call Start before using it
func NewConversationSession(cfg SessionConfig, deps SessionDeps, logger *zap.Logger) (*ConversationSession, error) {
	if deps.Chat == nil {
		return nil, errors.New("chat backend is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()

	conv := entities.NewConversation()
	s := &ConversationSession{
		id:          conv.ID,
		cfg:         cfg,
		chat:        deps.Chat,
		creds:       deps.Credentials,
		mic:         deps.Microphone,
		recognizer:  deps.Recognizer,
		synthesizer: deps.Synthesizer,
		notifier:    deps.Notifier,
		logger:      logger.With(zap.String("sessionID", conv.ID)),
		now:         time.Now,
		inbox:       make(chan func()),
		started:     make(chan struct{}),
		done:        make(chan struct{}),
		subs:        make(map[int]chan domain.SessionEvent),
		conv:        conv,
		state:       entities.SessionStateIdle,
	}
	if deps.Archive != nil {
		s.archiver = newMessageArchiver(deps.Archive, conv.ID, s.logger)
	}
	return s, nil
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.Greeting == "" {
		c.Greeting = DefaultGreeting
	}
	if c.FallbackReply == "" {
		c.FallbackReply = DefaultFallbackReply
	}
	if c.FallbackDelay <= 0 {
		c.FallbackDelay = DefaultFallbackDelay
	}
	if c.VoiceLanguage == "" {
		c.VoiceLanguage = defaultVoiceLanguage
	}
	if c.Rate == 0 {
		c.Rate = 1
	}
	if c.Pitch == 0 {
		c.Pitch = 1
	}
	if c.Volume == 0 {
		c.Volume = 1
	}
	if c.Audio.SampleRate == 0 {
		c.Audio.SampleRate = 16000
	}
	if c.Audio.Encoding == "" {
		c.Audio.Encoding = "LINEAR16"
	}
	if c.Audio.Language == "" {
		c.Audio.Language = "en-US"
	}
	return c
}

// ID returns the session identifier
func (s *ConversationSession) ID() string { return s.id }

// Start runs the session loop until ctx is cancelled or Close is called
func (s *ConversationSession) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.ctx, s.cancel = context.WithCancel(ctx)
		if s.archiver != nil {
			go s.archiver.run()
		}
		go s.run()
		close(s.started)
		if s.synthesizer != nil {
			go s.loadVoices()
		}
		s.logger.Info("Conversation session started")
	})
}

// Close releases the microphone, cancels playback and stops the loop
func (s *ConversationSession) Close() {
	s.closeOnce.Do(func() {
		s.startOnce.Do(func() {})
		if s.cancel == nil {
			close(s.done)
			return
		}
		s.cancel()
		<-s.done
		if s.archiver != nil {
			s.archiver.close()
		}
		s.logger.Info("Conversation session closed")
	})
}

// Subscribe returns a channel of session events and a function that releases it
func (s *ConversationSession) Subscribe() (<-chan domain.SessionEvent, func()) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()

	ch := make(chan domain.SessionEvent, subscriberBuffer)
	id := s.nextSub
	s.nextSub++
	if s.subs == nil {
		close(ch)
		return ch, func() {}
	}
	s.subs[id] = ch

	return ch, func() {
		s.subsMu.Lock()
		defer s.subsMu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
}

// SubmitMessage appends a user message and sends it to the backend. Blank text is
// rejected with ErrEmptyMessage and has no other effect.
func (s *ConversationSession) SubmitMessage(ctx context.Context, text string) (entities.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return entities.Message{}, ErrEmptyMessage
	}

	var msg entities.Message
	err := s.do(ctx, func() {
		msg = s.submit(text)
	})
	return msg, err
}

// ToggleMicrophone starts capture when idle and stops it when listening. It
// reports whether the session is listening afterwards.
func (s *ConversationSession) ToggleMicrophone(ctx context.Context) (bool, error) {
	s.micMu.Lock()
	defer s.micMu.Unlock()

	var wasListening, unsupported bool
	err := s.do(ctx, func() {
		wasListening = s.audio.Listening
		if wasListening {
			s.stopCapture()
			return
		}
		s.cancelPlayback()
		if s.recognizer == nil || s.recognitionDisabled {
			unsupported = true
			s.reportUnsupported(domain.NoticeRecognitionMissing)
		}
	})
	if err != nil {
		return false, err
	}
	if wasListening {
		return false, nil
	}
	if unsupported {
		return false, repositories.ErrUnsupported
	}

	if s.mic != nil {
		if err := s.mic.RequestPermission(ctx); err != nil {
			s.logger.Warn("Microphone access failed", zap.Error(err))
			_ = s.do(ctx, func() {
				if errors.Is(err, repositories.ErrPermissionDenied) {
					s.notify(domain.NoticeError, domain.NoticePermissionDenied, "Microphone access denied. Please check your settings.")
				} else {
					s.notify(domain.NoticeError, domain.NoticePermissionDenied, "Could not access microphone. Please check permissions.")
				}
			})
			return false, fmt.Errorf("request microphone permission: %w", err)
		}
	}

	var startErr error
	if err := s.do(ctx, func() {
		startErr = s.startCapture()
	}); err != nil {
		return false, err
	}
	if startErr != nil {
		return false, startErr
	}
	return true, nil
}

// Speak plays text, replacing any utterance in progress. Failures are reported
// as notices rather than returned.
func (s *ConversationSession) Speak(ctx context.Context, text string) error {
	return s.do(ctx, func() {
		s.stopCapture()
		s.speak(text)
	})
}

// ToggleSpeech cancels playback when speaking, otherwise speaks text. It reports
// whether the session is speaking afterwards.
func (s *ConversationSession) ToggleSpeech(ctx context.Context, text string) (bool, error) {
	var speaking bool
	err := s.do(ctx, func() {
		if s.audio.Speaking {
			s.cancelPlayback()
			return
		}
		s.stopCapture()
		speaking = s.speak(text)
	})
	return speaking, err
}

// LoadHistory replaces the log with the user's stored exchanges, or a greeting
// when there are none. A fetch failure falls back to the greeting and is
// reported as a notice; the error is returned for the caller's logs.
func (s *ConversationSession) LoadHistory(ctx context.Context) error {
	var (
		seq   uint64
		creds entities.Credentials
	)
	if err := s.do(ctx, func() {
		s.historySeq++
		seq = s.historySeq
		s.historyMark = len(s.conv.Messages)
		creds = s.credentials()
	}); err != nil {
		return err
	}

	if !creds.Authenticated() {
		return s.do(ctx, func() {
			s.applyHistory(seq, nil, nil)
		})
	}

	exchanges, fetchErr := s.chat.History(ctx, creds, creds.UserID())
	if err := s.do(ctx, func() {
		s.applyHistory(seq, exchanges, fetchErr)
	}); err != nil {
		return err
	}
	if fetchErr != nil {
		return fmt.Errorf("load history: %w", fetchErr)
	}
	return nil
}

// Messages returns a copy of the conversation log
func (s *ConversationSession) Messages() []entities.Message {
	return s.Snapshot().Messages
}

// State returns the current session state
func (s *ConversationSession) State() entities.SessionState {
	return s.Snapshot().State
}

// Snapshot returns a consistent copy of the session state
func (s *ConversationSession) Snapshot() SessionSnapshot {
	snap := SessionSnapshot{ID: s.id, State: entities.SessionStateIdle}
	_ = s.do(context.Background(), func() {
		snap.State = s.state
		snap.Audio = s.audio
		snap.Typing = s.inFlight
		snap.Messages = s.conv.Snapshot()
	})
	return snap
}

// run is the only goroutine that touches loop-owned state
func (s *ConversationSession) run() {
	defer close(s.done)

	var recognitionEvents <-chan repositories.RecognitionEvent
	if s.recognizer != nil {
		recognitionEvents = s.recognizer.Events()
	}
	var speechEvents <-chan repositories.SpeechEvent
	if s.synthesizer != nil {
		speechEvents = s.synthesizer.Events()
	}

	for {
		select {
		case <-s.ctx.Done():
			s.teardown()
			return

		case fn := <-s.inbox:
			fn()

		case ev, ok := <-recognitionEvents:
			if !ok {
				recognitionEvents = nil
				continue
			}
			s.handleRecognition(ev)

		case ev, ok := <-speechEvents:
			if !ok {
				speechEvents = nil
				continue
			}
			s.handleSpeech(ev)
		}
	}
}

// do runs fn on the loop and waits for it to finish
func (s *ConversationSession) do(ctx context.Context, fn func()) error {
	select {
	case <-s.started:
	default:
		return ErrSessionNotStarted
	}

	finished := make(chan struct{})
	wrapped := func() {
		defer close(finished)
		fn()
	}

	select {
	case s.inbox <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSessionClosed
	}

	select {
	case <-finished:
		return nil
	case <-s.done:
		return ErrSessionClosed
	}
}

// post queues fn on the loop without waiting; dropped once the loop has exited
func (s *ConversationSession) post(fn func()) {
	select {
	case s.inbox <- fn:
	case <-s.done:
	}
}

func (s *ConversationSession) teardown() {
	if s.audio.Listening && s.recognizer != nil {
		if err := s.recognizer.Abort(); err != nil {
			s.logger.Warn("Failed to abort recognition", zap.Error(err))
		}
		s.audio.Listening = false
	}
	if s.audio.Speaking && s.synthesizer != nil {
		if err := s.synthesizer.Cancel(); err != nil {
			s.logger.Warn("Failed to cancel playback", zap.Error(err))
		}
		s.audio.Speaking = false
	}

	s.subsMu.Lock()
	for id, ch := range s.subs {
		close(ch)
		delete(s.subs, id)
	}
	s.subs = nil
	s.subsMu.Unlock()
}

func (s *ConversationSession) submit(text string) entities.Message {
	s.cancelPlayback()
	s.stopCapture()

	msg := s.appendMessage(entities.SenderUser, text, false)

	s.requestSeq++
	seq := s.requestSeq
	if s.inFlight {
		s.logger.Info("Superseding unanswered request", zap.Uint64("requestSeq", seq))
	}
	s.inFlight = true
	s.setState(entities.SessionStateSending)

	creds := s.credentials()
	ctx := s.ctx
	go func() {
		reply, err := s.chat.SendMessage(ctx, creds, text)
		s.post(func() {
			s.handleReply(seq, reply, err)
		})
	}()

	s.logger.Info("Message submitted",
		zap.String("messageID", msg.ID),
		zap.Uint64("requestSeq", seq),
		zap.Bool("authenticated", creds.Authenticated()))
	return msg
}

func (s *ConversationSession) handleReply(seq uint64, reply string, err error) {
	if seq != s.requestSeq {
		s.discardReply(seq)
		return
	}

	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("backend returned an empty reply")
	}
	if err != nil {
		s.logger.Error("Chat request failed, using fallback reply",
			zap.Uint64("requestSeq", seq),
			zap.Error(err))
		s.notify(domain.NoticeError, domain.NoticeSendFailed, "Could not reach the assistant. Showing an offline reply.")
		time.AfterFunc(s.cfg.FallbackDelay, func() {
			s.post(func() {
				s.deliverReply(seq, s.cfg.FallbackReply, true)
			})
		})
		return
	}

	s.deliverReply(seq, reply, false)
}

func (s *ConversationSession) deliverReply(seq uint64, text string, fallback bool) {
	if seq != s.requestSeq {
		s.discardReply(seq)
		return
	}

	s.inFlight = false
	s.appendMessage(entities.SenderAssistant, text, fallback)

	if s.audio.Listening {
		// the user is already talking again
		return
	}
	if !s.speak(text) && s.state == entities.SessionStateSending {
		s.setState(entities.SessionStateIdle)
	}
}

func (s *ConversationSession) discardReply(seq uint64) {
	s.logger.Info("Discarding reply to superseded request",
		zap.Uint64("requestSeq", seq),
		zap.Uint64("latestSeq", s.requestSeq))
	s.emit(domain.SessionEvent{Type: domain.EventReplyDiscarded})
}

// speak reports whether playback started
func (s *ConversationSession) speak(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	if s.synthesizer == nil || s.synthesisDisabled {
		s.reportUnsupported(domain.NoticeSynthesisMissing)
		return false
	}
	s.cancelPlayback()

	s.utteranceID++
	utterance := repositories.Utterance{
		ID:     s.utteranceID,
		Text:   text,
		Voice:  s.voice,
		Rate:   s.cfg.Rate,
		Pitch:  s.cfg.Pitch,
		Volume: s.cfg.Volume,
	}
	if err := s.synthesizer.Speak(s.ctx, utterance); err != nil {
		if errors.Is(err, repositories.ErrUnsupported) {
			s.synthesisDisabled = true
			s.reportUnsupported(domain.NoticeSynthesisMissing)
		} else {
			s.logger.Error("Failed to start playback", zap.Error(err))
			s.notify(domain.NoticeError, domain.NoticeSynthesisError, "Text-to-speech failed")
		}
		return false
	}

	s.audio.Speaking = true
	s.setState(entities.SessionStateSpeaking)
	return true
}

// cancelPlayback reports whether an utterance was cancelled
func (s *ConversationSession) cancelPlayback() bool {
	if !s.audio.Speaking {
		return false
	}
	if err := s.synthesizer.Cancel(); err != nil {
		s.logger.Warn("Failed to cancel playback", zap.Error(err))
	}
	// events of the cancelled utterance are ignored from now on
	s.utteranceID++
	s.audio.Speaking = false
	if s.state == entities.SessionStateSpeaking {
		s.settle()
	}
	s.emit(domain.SessionEvent{Type: domain.EventPlaybackCanceled})
	return true
}

func (s *ConversationSession) startCapture() error {
	s.cancelPlayback()

	s.captureID++
	s.setTranscript("")
	if err := s.recognizer.Start(s.ctx, s.captureID, s.cfg.Audio); err != nil {
		if errors.Is(err, repositories.ErrUnsupported) {
			s.recognitionDisabled = true
			s.reportUnsupported(domain.NoticeRecognitionMissing)
		} else {
			s.logger.Error("Failed to start recognition", zap.Error(err))
			s.notify(domain.NoticeError, domain.NoticeRecognitionError, "Speech recognition failed. Please try again.")
		}
		return fmt.Errorf("start recognition: %w", err)
	}

	s.audio.Listening = true
	s.setState(entities.SessionStateListening)
	s.logger.Info("Listening started", zap.Uint64("captureID", s.captureID))
	return nil
}

// stopCapture ends capture and discards the unsent transcript
func (s *ConversationSession) stopCapture() {
	if !s.audio.Listening {
		return
	}
	// late results of this capture are ignored from now on
	s.captureID++
	if err := s.recognizer.Stop(); err != nil {
		s.logger.Warn("Failed to stop recognition", zap.Error(err))
	}
	s.endCapture()
}

func (s *ConversationSession) endCapture() {
	s.audio.Listening = false
	s.setTranscript("")
	if s.state == entities.SessionStateListening {
		s.settle()
	}
}

// settle leaves listening or speaking for Sending while a reply is pending, Idle otherwise
func (s *ConversationSession) settle() {
	if s.inFlight {
		s.setState(entities.SessionStateSending)
	} else {
		s.setState(entities.SessionStateIdle)
	}
}

func (s *ConversationSession) handleRecognition(ev repositories.RecognitionEvent) {
	if ev.CaptureID != s.captureID || !s.audio.Listening {
		return
	}

	switch ev.Type {
	case repositories.RecognitionStarted:
		s.notify(domain.NoticeSuccess, domain.NoticeListening, "Listening... Speak now")

	case repositories.RecognitionResult:
		if !ev.Final {
			s.setTranscript(ev.Transcript)
			return
		}
		text := strings.TrimSpace(ev.Transcript)
		if text == "" {
			return
		}
		s.submit(text)

	case repositories.RecognitionError:
		s.logger.Error("Speech recognition error",
			zap.String("code", ev.ErrorCode),
			zap.Error(ev.Err))
		s.captureID++
		s.endCapture()
		if ev.ErrorCode == repositories.RecognitionErrorNotAllowed {
			s.notify(domain.NoticeError, domain.NoticePermissionDenied, "Microphone access denied. Please check your settings.")
		} else {
			s.notify(domain.NoticeError, domain.NoticeRecognitionError, "Speech recognition failed. Please try again.")
		}

	case repositories.RecognitionEnded:
		s.captureID++
		s.endCapture()
	}
}

func (s *ConversationSession) handleSpeech(ev repositories.SpeechEvent) {
	if ev.UtteranceID != s.utteranceID || !s.audio.Speaking {
		return
	}

	switch ev.Type {
	case repositories.SpeechStarted:
		s.logger.Debug("Playback started", zap.Uint64("utteranceID", ev.UtteranceID))

	case repositories.SpeechEnded:
		s.audio.Speaking = false
		if s.state == entities.SessionStateSpeaking {
			s.settle()
		}

	case repositories.SpeechError:
		s.logger.Error("Playback failed", zap.Error(ev.Err))
		s.audio.Speaking = false
		if s.state == entities.SessionStateSpeaking {
			s.settle()
		}
		s.notify(domain.NoticeError, domain.NoticeSynthesisError, "Text-to-speech failed")
	}
}

func (s *ConversationSession) applyHistory(seq uint64, exchanges []entities.Exchange, err error) {
	if seq != s.historySeq {
		s.logger.Info("Discarding superseded history load", zap.Uint64("historySeq", seq))
		return
	}

	var loaded []entities.Message
	if err != nil {
		s.logger.Error("Failed to fetch messages", zap.Error(err))
		s.notify(domain.NoticeError, domain.NoticeHistoryFailed, "Failed to load previous messages")
	} else {
		loaded = FlattenHistory(exchanges)
		// history ids stay unique across reloads
		for i := range loaded {
			loaded[i].ID = fmt.Sprintf("h%d-%s", seq, loaded[i].ID)
		}
	}
	if len(loaded) == 0 {
		now := s.now()
		loaded = []entities.Message{{
			ID:        s.conv.NextMessageID(now),
			Content:   s.cfg.Greeting,
			Sender:    entities.SenderAssistant,
			Timestamp: now,
		}}
	}

	// keep what was appended while the fetch was in flight
	mark := s.historyMark
	if mark > len(s.conv.Messages) {
		mark = len(s.conv.Messages)
	}
	loaded = append(loaded, s.conv.Messages[mark:]...)
	s.conv.Reset(loaded)

	s.emit(domain.SessionEvent{
		Type:     domain.EventHistoryLoaded,
		Messages: s.conv.Snapshot(),
	})
	s.logger.Info("History loaded", zap.Int("messages", len(loaded)))
}

func (s *ConversationSession) appendMessage(sender entities.Sender, content string, fallback bool) entities.Message {
	now := s.now()
	msg := entities.Message{
		ID:        s.conv.NextMessageID(now),
		Content:   content,
		Sender:    sender,
		Timestamp: now,
		Fallback:  fallback,
	}
	s.conv.AddMessage(msg)

	s.emit(domain.SessionEvent{Type: domain.EventMessageAppended, Message: &msg})
	if s.archiver != nil {
		s.archiver.enqueue(msg)
	}
	return msg
}

func (s *ConversationSession) setState(state entities.SessionState) {
	if s.state == state {
		return
	}
	s.logger.Debug("Session state changed",
		zap.String("from", string(s.state)),
		zap.String("to", string(state)))
	s.state = state
	s.emit(domain.SessionEvent{Type: domain.EventStateChanged, State: state})
}

func (s *ConversationSession) setTranscript(text string) {
	if s.audio.PendingTranscript == text {
		return
	}
	s.audio.PendingTranscript = text
	s.emit(domain.SessionEvent{Type: domain.EventTranscript, Transcript: text})
}

func (s *ConversationSession) reportUnsupported(kind domain.NoticeKind) {
	switch kind {
	case domain.NoticeRecognitionMissing:
		if s.recognitionReported {
			return
		}
		s.recognitionReported = true
		s.recognitionDisabled = true
		s.notify(domain.NoticeError, kind, "Speech recognition is not supported in this environment")
	case domain.NoticeSynthesisMissing:
		if s.synthesisReported {
			return
		}
		s.synthesisReported = true
		s.synthesisDisabled = true
		s.notify(domain.NoticeError, kind, "Text-to-speech is not supported in this environment")
	}
}

func (s *ConversationSession) notify(level domain.NoticeLevel, kind domain.NoticeKind, message string) {
	notice := domain.Notice{Level: level, Kind: kind, Message: message}
	if s.notifier != nil {
		s.notifier.Notify(notice)
	}
	s.emit(domain.SessionEvent{Type: domain.EventNotice, Notice: &notice})
}

func (s *ConversationSession) emit(ev domain.SessionEvent) {
	ev.SessionID = s.id
	ev.Timestamp = s.now()
	if ev.State == "" {
		ev.State = s.state
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- ev:
		default:
			s.logger.Warn("Subscriber channel full, dropping event", zap.String("type", string(ev.Type)))
		}
	}
}

func (s *ConversationSession) credentials() entities.Credentials {
	if s.creds == nil {
		return entities.Credentials{}
	}
	return s.creds.Credentials()
}

func (s *ConversationSession) loadVoices() {
	ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
	defer cancel()

	voices, err := s.synthesizer.Voices(ctx)
	if err != nil {
		s.logger.Warn("Failed to list voices, using platform default", zap.Error(err))
		return
	}
	voice := PreferredVoice(voices, s.cfg.VoiceLanguage)
	s.post(func() {
		s.voice = voice
	})
}

// PreferredVoice returns the first voice whose language starts with prefix, or
// nil to use the platform default
func PreferredVoice(voices []repositories.Voice, prefix string) *repositories.Voice {
	prefix = strings.ToLower(prefix)
	for i := range voices {
		if strings.HasPrefix(strings.ToLower(voices[i].Language), prefix) {
			v := voices[i]
			return &v
		}
	}
	return nil
}
