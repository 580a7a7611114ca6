package usecase

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/satriahrh/schedula/domain"
	"github.com/satriahrh/schedula/domain/entities"
	"github.com/satriahrh/schedula/domain/repositories"
)

// callLog records calls across fakes so tests can assert ordering
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func (l *callLog) count(call string) int {
	n := 0
	for _, c := range l.list() {
		if c == call {
			n++
		}
	}
	return n
}

func (l *callLog) index(call string) int {
	for i, c := range l.list() {
		if c == call {
			return i
		}
	}
	return -1
}

type fakeChat struct {
	log *callLog

	mu      sync.Mutex
	respond func(ctx context.Context, text string) (string, error)
	sent    []string
	creds   []entities.Credentials

	history        []entities.Exchange
	historyErr     error
	historyStarted chan struct{}
	historyGate    chan struct{}
	historyCalls   int
}

func (f *fakeChat) SendMessage(ctx context.Context, creds entities.Credentials, content string) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, content)
	f.creds = append(f.creds, creds)
	respond := f.respond
	f.mu.Unlock()
	f.log.add("chat.send:%s", content)

	if respond == nil {
		return "reply to " + content, nil
	}
	return respond(ctx, content)
}

func (f *fakeChat) History(ctx context.Context, creds entities.Credentials, userID string) ([]entities.Exchange, error) {
	f.mu.Lock()
	f.historyCalls++
	f.mu.Unlock()
	f.log.add("chat.history:%s", userID)

	if f.historyStarted != nil {
		close(f.historyStarted)
	}
	if f.historyGate != nil {
		select {
		case <-f.historyGate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.history, f.historyErr
}

func (f *fakeChat) sentMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

type fakeCredentials struct {
	creds entities.Credentials
}

func (f fakeCredentials) Credentials() entities.Credentials { return f.creds }

type fakeMicrophone struct {
	log *callLog
	err error
}

func (f *fakeMicrophone) RequestPermission(ctx context.Context) error {
	f.log.add("mic.permission")
	return f.err
}

func (f *fakeMicrophone) Open(ctx context.Context) (io.ReadCloser, error) {
	return nil, repositories.ErrUnsupported
}

type fakeRecognizer struct {
	log    *callLog
	events chan repositories.RecognitionEvent

	mu       sync.Mutex
	startErr error
	captures []uint64
}

func newFakeRecognizer(log *callLog) *fakeRecognizer {
	return &fakeRecognizer{
		log:    log,
		events: make(chan repositories.RecognitionEvent, 32),
	}
}

func (f *fakeRecognizer) Start(ctx context.Context, captureID uint64, config repositories.AudioConfig) error {
	f.log.add("recognizer.start")
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.captures = append(f.captures, captureID)
	return nil
}

func (f *fakeRecognizer) Stop() error {
	f.log.add("recognizer.stop")
	return nil
}

func (f *fakeRecognizer) Abort() error {
	f.log.add("recognizer.abort")
	return nil
}

func (f *fakeRecognizer) Events() <-chan repositories.RecognitionEvent {
	return f.events
}

func (f *fakeRecognizer) lastCapture() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.captures) == 0 {
		return 0
	}
	return f.captures[len(f.captures)-1]
}

func (f *fakeRecognizer) emit(ev repositories.RecognitionEvent) {
	f.events <- ev
}

type fakeSynthesizer struct {
	log    *callLog
	events chan repositories.SpeechEvent
	voices []repositories.Voice

	mu       sync.Mutex
	speakErr error
	spoken   []repositories.Utterance
}

func newFakeSynthesizer(log *callLog) *fakeSynthesizer {
	return &fakeSynthesizer{
		log:    log,
		events: make(chan repositories.SpeechEvent, 32),
	}
}

func (f *fakeSynthesizer) Voices(ctx context.Context) ([]repositories.Voice, error) {
	return f.voices, nil
}

func (f *fakeSynthesizer) Speak(ctx context.Context, u repositories.Utterance) error {
	f.log.add("synth.speak:%s", u.Text)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.speakErr != nil {
		return f.speakErr
	}
	f.spoken = append(f.spoken, u)
	return nil
}

func (f *fakeSynthesizer) Cancel() error {
	f.log.add("synth.cancel")
	return nil
}

func (f *fakeSynthesizer) Events() <-chan repositories.SpeechEvent {
	return f.events
}

func (f *fakeSynthesizer) utterances() []repositories.Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]repositories.Utterance(nil), f.spoken...)
}

func (f *fakeSynthesizer) last() repositories.Utterance {
	u := f.utterances()
	if len(u) == 0 {
		return repositories.Utterance{}
	}
	return u[len(u)-1]
}

type fakeNotifier struct {
	mu      sync.Mutex
	notices []domain.Notice
}

func (f *fakeNotifier) Notify(n domain.Notice) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, n)
}

func (f *fakeNotifier) count(kind domain.NoticeKind) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, notice := range f.notices {
		if notice.Kind == kind {
			n++
		}
	}
	return n
}

func (f *fakeNotifier) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.notices)
}

type fakeArchive struct {
	mu       sync.Mutex
	appended []entities.Message
}

func (f *fakeArchive) Append(ctx context.Context, sessionID string, msg entities.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.appended = append(f.appended, msg)
	return nil
}

func (f *fakeArchive) ListBySession(ctx context.Context, sessionID string, limit int) ([]repositories.ArchivedMessage, error) {
	return nil, nil
}

// sessionFixture bundles a started session with its fakes
type sessionFixture struct {
	log         *callLog
	chat        *fakeChat
	mic         *fakeMicrophone
	recognizer  *fakeRecognizer
	synthesizer *fakeSynthesizer
	notifier    *fakeNotifier
	archive     *fakeArchive
	session     *ConversationSession
}

type fixtureOption func(*sessionFixture, *SessionDeps)

func withoutRecognizer() fixtureOption {
	return func(_ *sessionFixture, d *SessionDeps) { d.Recognizer = nil }
}

func withoutSynthesizer() fixtureOption {
	return func(_ *sessionFixture, d *SessionDeps) { d.Synthesizer = nil }
}

func withCredentials(creds entities.Credentials) fixtureOption {
	return func(_ *sessionFixture, d *SessionDeps) { d.Credentials = fakeCredentials{creds: creds} }
}

func newSessionFixture(t *testing.T, opts ...fixtureOption) *sessionFixture {
	t.Helper()

	log := &callLog{}
	f := &sessionFixture{
		log:         log,
		chat:        &fakeChat{log: log},
		mic:         &fakeMicrophone{log: log},
		recognizer:  newFakeRecognizer(log),
		synthesizer: newFakeSynthesizer(log),
		notifier:    &fakeNotifier{},
		archive:     &fakeArchive{},
	}
	deps := SessionDeps{
		Chat:        f.chat,
		Microphone:  f.mic,
		Recognizer:  f.recognizer,
		Synthesizer: f.synthesizer,
		Notifier:    f.notifier,
		Archive:     f.archive,
	}
	for _, opt := range opts {
		opt(f, &deps)
	}

	session, err := NewConversationSession(SessionConfig{FallbackDelay: 10 * time.Millisecond}, deps, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Failed to create session: %v", err)
	}
	f.session = session
	session.Start(context.Background())
	t.Cleanup(session.Close)
	return f
}

// waitFor polls cond until it holds or the deadline passes
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %s", what)
}

func (f *sessionFixture) waitForMessages(t *testing.T, n int) []entities.Message {
	t.Helper()
	var msgs []entities.Message
	waitFor(t, fmt.Sprintf("%d messages", n), func() bool {
		msgs = f.session.Messages()
		return len(msgs) == n
	})
	return msgs
}

func (f *sessionFixture) waitForState(t *testing.T, state entities.SessionState) {
	t.Helper()
	waitFor(t, "state "+string(state), func() bool {
		return f.session.State() == state
	})
}
