package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"agriadvisor/internal/bootstrap"
	"agriadvisor/internal/domain"
	"agriadvisor/internal/i18n"
	"agriadvisor/internal/keyboard"
	"agriadvisor/internal/shell"
	"agriadvisor/internal/usecase"
)

const replHelp = `Type a question and press Enter to send it.

  /new              start a new chat
  /list             list saved chats
  /load <id|#n>     open a saved chat
  /delete <id|#n>   delete a saved chat
  /lang [code]      list languages or switch
  /keyboard         show the virtual keyboard
  /key <key>        press a virtual key (space, backspace, enter or a glyph)
  /record           start recording from the microphone
  /stop             stop recording and send the transcript
  /abort            discard the current recording
  /quit             leave`

func newChatCommand(e *env) *cobra.Command {
	var chatID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			r := &repl{env: e, s: s}
			if chatID != "" {
				if err := s.History.Load(cmd.Context(), chatID); err != nil {
					return err
				}
			}
			return r.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&chatID, "chat", "", "open the chat with this id")
	return cmd
}

type repl struct {
	env *env
	s   *bootstrap.Services
	// listing is what the last /list printed; "#n" indexes into it.
	listing []domain.SessionSummary
}

func (r *repl) run(ctx context.Context) error {
	r.env.println(renderChat(r.s.Chat.Snapshot(), r.language(), r.env.markdown))
	r.env.println(infoStyle.Render("/help for commands"))

	for {
		line, err := r.env.prompter.Prompt(r.prompt())
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		r.env.prompter.Remember(line)

		before := r.env.sink.noticeCount()
		quit, err := r.execute(ctx, line)
		if err != nil && r.env.sink.noticeCount() == before {
			r.env.println(errorStyle.Render(err.Error()))
		}
		if quit {
			return nil
		}
	}
}

func (r *repl) prompt() string {
	if r.s.Recording.Status().InputLocked() {
		return "rec> "
	}
	return r.language() + "> "
}

func (r *repl) language() string {
	return r.s.Language.Current()
}

// execute runs one REPL line and reports whether the REPL should end.
func (r *repl) execute(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if !strings.HasPrefix(line, "/") {
		return false, r.send(ctx, line)
	}

	name, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)

	switch name {
	case "quit", "q", "exit":
		return true, nil
	case "help", "h":
		r.env.println(replHelp)
	case "new":
		r.s.History.New()
		r.env.println(renderChat(r.s.Chat.Snapshot(), r.language(), r.env.markdown))
	case "list":
		sessions, err := r.s.History.List(ctx)
		if err != nil {
			return false, err
		}
		r.listing = sessions
		r.env.println(renderSessions(sessions, r.s.Chat.ActiveID(), r.language()))
	case "load":
		id, err := r.resolve(arg)
		if err != nil {
			return false, err
		}
		if err := r.s.History.Load(ctx, id); err != nil {
			return false, err
		}
		r.env.println(renderChat(r.s.Chat.Snapshot(), r.language(), r.env.markdown))
	case "delete":
		id, err := r.resolve(arg)
		if err != nil {
			return false, err
		}
		if err := r.s.History.Delete(ctx, id); err != nil {
			return false, err
		}
		r.env.printf("Deleted chat %s\n", id)
	case "lang":
		if arg == "" {
			r.env.println(renderLanguages(r.language()))
			return false, nil
		}
		if _, err := r.s.Shell.ChooseLanguage(arg); err != nil {
			return false, err
		}
		r.env.println(infoStyle.Render(i18n.T(r.language(), i18n.KeyPlaceholder)))
	case "keyboard":
		state := r.s.Shell.Toggle(shell.PanelKeyboard)
		if state.Panels[shell.PanelKeyboard] {
			r.env.println(renderKeyboard(state.KeyboardLayout))
		}
	case "key":
		return false, r.pressKey(ctx, arg)
	case "record":
		return false, r.s.Recording.Start(ctx)
	case "stop":
		return false, r.stop(ctx)
	case "abort":
		return false, r.s.Recording.Abort()
	default:
		return false, fmt.Errorf("unknown command /%s (try /help)", name)
	}
	return false, nil
}

func (r *repl) send(ctx context.Context, text string) error {
	if err := r.s.Shell.Type(text); err != nil {
		return err
	}
	if err := r.s.Shell.Submit(ctx); err != nil {
		return err
	}
	r.printLastTurn()
	return nil
}

func (r *repl) pressKey(ctx context.Context, arg string) error {
	key := arg
	switch strings.ToLower(arg) {
	case "":
		return errors.New("usage: /key <key>")
	case "space":
		key = keyboard.KeySpace
	case "backspace":
		key = keyboard.KeyBackspace
	case "enter":
		key = keyboard.KeyEnter
	}
	if err := r.s.Shell.PressKey(ctx, key); err != nil {
		return err
	}
	if key == keyboard.KeyEnter {
		r.printLastTurn()
		return nil
	}
	r.env.println(infoStyle.Render("input: " + r.s.Chat.Input()))
	return nil
}

func (r *repl) stop(ctx context.Context) error {
	transcript, err := r.s.Recording.Stop(ctx)
	if errors.Is(err, usecase.ErrRecordingDiscarded) {
		return nil
	}
	if err != nil {
		return err
	}
	if transcript.Fallback && !r.s.Config.Transcriber.SubmitFallback {
		r.env.println(infoStyle.Render(transcript.Text))
		return nil
	}
	r.printLastTurn()
	return nil
}

// resolve accepts a chat id or "#n", the n-th entry of the last listing.
func (r *repl) resolve(arg string) (string, error) {
	if arg == "" {
		return "", errors.New("a chat id is required")
	}
	if !strings.HasPrefix(arg, "#") {
		return arg, nil
	}
	if r.listing == nil {
		return "", fmt.Errorf("no listing to pick %s from (run /list first)", arg)
	}
	n, err := strconv.Atoi(arg[1:])
	if err != nil || n < 1 || n > len(r.listing) {
		return "", fmt.Errorf("no chat %s in the last listing", arg)
	}
	return r.listing[n-1].ID, nil
}

func (r *repl) printLastTurn() {
	snapshot := r.s.Chat.Snapshot()
	if n := len(snapshot.Turns); n > 0 && !snapshot.Turns[n-1].Pending {
		r.env.println(renderTurn(snapshot.Turns[n-1], r.language(), r.env.markdown))
	}
}
