package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"

	"agriadvisor/internal/domain"
	"agriadvisor/internal/ports"
)

type fakeAudioSession struct {
	mu      sync.Mutex
	chunks  [][]byte
	stopped bool
	stops   int
	wake    chan struct{}
}

func newFakeAudioSession(chunks ...[]byte) *fakeAudioSession {
	return &fakeAudioSession{chunks: chunks, wake: make(chan struct{})}
}

// Read hands out the queued chunks, then blocks like a live microphone until
// Stop is called.
func (s *fakeAudioSession) Read(p []byte) (int, error) {
	s.mu.Lock()
	if len(s.chunks) > 0 {
		chunk := s.chunks[0]
		s.chunks = s.chunks[1:]
		s.mu.Unlock()
		return copy(p, chunk), nil
	}
	s.mu.Unlock()
	<-s.wake
	return 0, io.EOF
}

func (s *fakeAudioSession) Close() error {
	return s.Stop()
}

func (s *fakeAudioSession) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stops++
	if !s.stopped {
		s.stopped = true
		close(s.wake)
	}
	return nil
}

func (s *fakeAudioSession) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []*fakeAudioSession
	err      error
	starts   int
}

func (c *fakeAudioCapture) Start(context.Context, ports.AudioConfig) (ports.AudioSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.starts++
	if c.err != nil {
		return nil, c.err
	}
	if len(c.sessions) == 0 {
		return nil, errors.New("no fake audio session")
	}
	session := c.sessions[0]
	c.sessions = c.sessions[1:]
	return session, nil
}

type fakeEncoder struct{}

func (fakeEncoder) Encode(segments [][]byte, _ ports.AudioConfig) ports.AudioPayload {
	return ports.AudioPayload{Data: bytes.Join(segments, nil), ContentType: "audio/raw", Filename: "test.raw"}
}

type fakeTranscriber struct {
	mu      sync.Mutex
	text    string
	err     error
	calls   int
	payload []byte
	locale  string
	block   chan struct{}
}

func (t *fakeTranscriber) Transcribe(ctx context.Context, payload ports.AudioPayload, locale string) (string, error) {
	t.mu.Lock()
	t.calls++
	t.payload = payload.Data
	t.locale = locale
	block := t.block
	t.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return t.text, t.err
}

func (t *fakeTranscriber) callCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

type fakeRules struct {
	transform string
	err       error
}

func (r fakeRules) Apply(text string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	if r.transform != "" {
		return r.transform, nil
	}
	return text, nil
}

type fakeLanguage struct {
	mu      sync.Mutex
	code    string
	adopted []string
}

func (l *fakeLanguage) Current() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.code == "" {
		return "en"
	}
	return l.code
}

func (l *fakeLanguage) Adopt(code string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.code = code
	l.adopted = append(l.adopted, code)
}

type fakeTranscriptHandler struct {
	mu          sync.Mutex
	transcripts []domain.Transcript
}

func (h *fakeTranscriptHandler) HandleTranscript(_ context.Context, t domain.Transcript) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.transcripts = append(h.transcripts, t)
}

type sendCall struct {
	req ports.SendMessageRequest
}

type fakeChatAPI struct {
	mu      sync.Mutex
	calls   []sendCall
	replies []domain.ChatSession
	err     error
	// gate, when set, holds SendMessage until it is closed or receives.
	gate chan struct{}
	// entered is signalled once a call is in flight.
	entered chan struct{}
}

func (a *fakeChatAPI) SendMessage(ctx context.Context, req ports.SendMessageRequest) (domain.ChatSession, error) {
	a.mu.Lock()
	a.calls = append(a.calls, sendCall{req: req})
	gate := a.gate
	entered := a.entered
	a.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
	}
	if gate != nil {
		<-gate
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return domain.ChatSession{}, a.err
	}
	if len(a.replies) == 0 {
		return domain.ChatSession{}, errors.New("no fake reply")
	}
	reply := a.replies[0]
	a.replies = a.replies[1:]
	return reply, nil
}

func (a *fakeChatAPI) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.calls)
}

type fakeHistoryAPI struct {
	mu        sync.Mutex
	summaries []domain.SessionSummary
	listErr   error
	listCalls int
	chats     map[string]domain.ChatSession
	getErr    error
	deleteErr error
	deleted   []string

	// When gate is set, reads announce themselves on entered and block
	// until gate is closed.
	gate    chan struct{}
	entered chan string
}

func (a *fakeHistoryAPI) hold(call string) {
	if a.gate == nil {
		return
	}
	a.entered <- call
	<-a.gate
}

func (a *fakeHistoryAPI) ListChats(context.Context) ([]domain.SessionSummary, error) {
	a.hold("list")
	a.mu.Lock()
	defer a.mu.Unlock()
	a.listCalls++
	if a.listErr != nil {
		return nil, a.listErr
	}
	return append([]domain.SessionSummary{}, a.summaries...), nil
}

func (a *fakeHistoryAPI) GetChat(_ context.Context, id string) (domain.ChatSession, error) {
	a.hold("get " + id)
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.getErr != nil {
		return domain.ChatSession{}, a.getErr
	}
	chat, ok := a.chats[id]
	if !ok {
		return domain.ChatSession{}, errors.New("not found")
	}
	return chat, nil
}

func (a *fakeHistoryAPI) DeleteChat(_ context.Context, id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deleteErr != nil {
		return a.deleteErr
	}
	a.deleted = append(a.deleted, id)
	return nil
}

type fakeAuthAPI struct {
	mu           sync.Mutex
	session      domain.AuthSession
	loginErr     error
	registerErr  error
	registered   []ports.SignupRequest
	logins       int
	google       ports.GoogleLoginResult
	googleErr    error
	completed    []string
	refreshed    string
	refreshErr   error
	refreshCalls int
}

func (a *fakeAuthAPI) Login(context.Context, string, string) (domain.AuthSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.logins++
	return a.session, a.loginErr
}

func (a *fakeAuthAPI) Register(_ context.Context, req ports.SignupRequest) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.registered = append(a.registered, req)
	return a.registerErr
}

func (a *fakeAuthAPI) LoginGoogle(context.Context, string) (ports.GoogleLoginResult, error) {
	return a.google, a.googleErr
}

func (a *fakeAuthAPI) CompleteGoogleSignup(_ context.Context, tempToken, language string) (domain.AuthSession, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.completed = append(a.completed, tempToken+":"+language)
	return a.session, nil
}

func (a *fakeAuthAPI) Refresh(context.Context, string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.refreshCalls++
	return a.refreshed, a.refreshErr
}

type fakeProfileAPI struct {
	mu        sync.Mutex
	languages []string
	err       error
}

func (p *fakeProfileAPI) UpdateLanguage(_ context.Context, language string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.languages = append(p.languages, language)
	return p.err
}

type fakeKV struct {
	mu     sync.Mutex
	values map[string]string
	setErr error
}

func newFakeKV() *fakeKV {
	return &fakeKV{values: map[string]string{}}
}

func (k *fakeKV) Get(key string) (string, bool, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.values[key]
	return v, ok, nil
}

func (k *fakeKV) Set(key, value string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.setErr != nil {
		return k.setErr
	}
	k.values[key] = value
	return nil
}

func (k *fakeKV) Delete(keys ...string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	for _, key := range keys {
		delete(k.values, key)
	}
	return nil
}

type fakeCredentials struct {
	mu        sync.Mutex
	session   domain.AuthSession
	listeners []func()
	saves     int
}

func (c *fakeCredentials) Current() (domain.AuthSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session, c.session.Valid()
}

func (c *fakeCredentials) Save(session domain.AuthSession) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saves++
	c.session = session
	return nil
}

func (c *fakeCredentials) UpdateAccessToken(access string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.session.AccessToken = access
	return nil
}

func (c *fakeCredentials) Invalidate() {
	c.mu.Lock()
	c.session = domain.AuthSession{}
	listeners := append([]func(){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}

func (c *fakeCredentials) OnInvalidate(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

type recordingEvent struct {
	status domain.RecordingStatus
	reason domain.RecordingReason
}

type notification struct {
	code    domain.ErrorCode
	message string
}

type fakeEventSink struct {
	mu          sync.Mutex
	recordings  []recordingEvent
	transcripts []domain.Transcript
	chats       []domain.ChatSnapshot
	sessions    [][]domain.SessionSummary
	auth        []domain.AuthStatus
	languages   []string
	notices     []notification
}

func (s *fakeEventSink) RecordingStateChanged(status domain.RecordingStatus, reason domain.RecordingReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recordings = append(s.recordings, recordingEvent{status: status, reason: reason})
}

func (s *fakeEventSink) TranscriptReady(t domain.Transcript) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transcripts = append(s.transcripts, t)
}

func (s *fakeEventSink) ChatChanged(snapshot domain.ChatSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chats = append(s.chats, snapshot)
}

func (s *fakeEventSink) SessionsChanged(summaries []domain.SessionSummary) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, summaries)
}

func (s *fakeEventSink) AuthChanged(status domain.AuthStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = append(s.auth, status)
}

func (s *fakeEventSink) LanguageChanged(code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.languages = append(s.languages, code)
}

func (s *fakeEventSink) Notify(code domain.ErrorCode, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notices = append(s.notices, notification{code: code, message: message})
}

func (s *fakeEventSink) snapshotRecordings() []recordingEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordingEvent{}, s.recordings...)
}

func (s *fakeEventSink) snapshotNotices() []notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]notification{}, s.notices...)
}

func (s *fakeEventSink) lastChat() domain.ChatSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.chats) == 0 {
		return domain.ChatSnapshot{}
	}
	return s.chats[len(s.chats)-1]
}

func (s *fakeEventSink) lastAuth() domain.AuthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.auth) == 0 {
		return domain.AuthStatus{}
	}
	return s.auth[len(s.auth)-1]
}
