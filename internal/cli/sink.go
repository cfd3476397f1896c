package cli

import (
	"fmt"
	"io"
	"sync"

	"agriadvisor/internal/domain"
)

// terminalSink prints controller notices and recording transitions. Chat
// and session changes are rendered by the commands themselves.
type terminalSink struct {
	mu      sync.Mutex
	out     io.Writer
	notices int
}

func newTerminalSink(out io.Writer) *terminalSink {
	return &terminalSink{out: out}
}

func (s *terminalSink) RecordingStateChanged(status domain.RecordingStatus, reason domain.RecordingReason) {
	var line string
	switch reason {
	case domain.RecordingReasonStarted:
		line = "recording... (/stop to finish, /abort to discard)"
	case domain.RecordingReasonTranscribing:
		line = "transcribing..."
	case domain.RecordingReasonCeilingReached:
		line = "maximum recording length reached, transcribing..."
	case domain.RecordingReasonDiscarded:
		line = "recording discarded"
	default:
		return
	}
	s.println(infoStyle.Render(line))
}

func (s *terminalSink) TranscriptReady(transcript domain.Transcript) {
	if transcript.Fallback {
		return
	}
	s.println(infoStyle.Render("heard: " + transcript.Text))
}

func (s *terminalSink) ChatChanged(domain.ChatSnapshot) {}

func (s *terminalSink) SessionsChanged([]domain.SessionSummary) {}

func (s *terminalSink) AuthChanged(domain.AuthStatus) {}

func (s *terminalSink) LanguageChanged(string) {}

func (s *terminalSink) Notify(code domain.ErrorCode, message string) {
	s.mu.Lock()
	s.notices++
	s.mu.Unlock()
	s.println(errorStyle.Render(fmt.Sprintf("[%s] %s", code, message)))
}

// noticeCount reports how many errors have been shown so far.
func (s *terminalSink) noticeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notices
}

func (s *terminalSink) println(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, line)
}
