// Package cli is the terminal front end: one-shot cobra commands for
// sign-in, history and questions, plus an interactive chat REPL. It drives
// the same controllers as the desktop shell.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"agriadvisor/internal/bootstrap"
	"agriadvisor/internal/domain"
)

var errNotSignedIn = errors.New("not signed in; run `agri login` first")

// env is shared by every command of one invocation. Services are built on
// first use so that commands like `keyboard en` never touch storage.
type env struct {
	out      io.Writer
	sink     *terminalSink
	prompter prompter
	markdown markdownRenderer
	openURL  func(url string) error
	services *bootstrap.Services
}

func (e *env) load() (*bootstrap.Services, error) {
	if e.services != nil {
		return e.services, nil
	}
	services, err := bootstrap.Build(e.sink, e.openURL)
	if err != nil {
		return nil, err
	}
	e.services = &services
	return e.services, nil
}

// signedIn builds the services, refreshes a stored session and fails when
// nobody is signed in.
func (e *env) signedIn(ctx context.Context) (*bootstrap.Services, error) {
	s, err := e.load()
	if err != nil {
		return nil, err
	}
	if err := s.Auth.Restore(ctx); err != nil {
		return nil, err
	}
	if s.Auth.Status().State != domain.AuthStateLoggedIn {
		return nil, errNotSignedIn
	}
	return s, nil
}

func (e *env) close() {
	if e.prompter != nil {
		_ = e.prompter.Close()
	}
	if e.services != nil {
		if err := e.services.Close(); err != nil {
			e.services.Logger.Warn("close", "error", err)
		}
	}
}

func (e *env) println(a ...any) {
	fmt.Fprintln(e.out, a...)
}

func (e *env) printf(format string, a ...any) {
	fmt.Fprintf(e.out, format, a...)
}

func newRootCommand(e *env) *cobra.Command {
	root := &cobra.Command{
		Use:           "agri",
		Short:         "Agri-Advisor farming assistant in the terminal",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.SetOut(e.out)

	root.AddCommand(
		newLoginCommand(e),
		newSignupCommand(e),
		newGoogleLoginCommand(e),
		newLogoutCommand(e),
		newStatusCommand(e),
		newChatsCommand(e),
		newAskCommand(e),
		newChatCommand(e),
		newTranscribeCommand(e),
		newKeyboardCommand(e),
		newLangCommand(e),
	)
	return root
}

// Execute runs the CLI with args and returns the process exit code.
func Execute(ctx context.Context, args []string) int {
	e := &env{
		out:  os.Stdout,
		sink: newTerminalSink(os.Stderr),
		openURL: func(url string) error {
			fmt.Fprintf(os.Stderr, "Opening %s\n", url)
			return browser.OpenURL(url)
		},
	}
	if term.IsTerminal(int(os.Stdin.Fd())) {
		e.prompter = newLinerPrompter(historyPath())
	} else {
		e.prompter = newReaderPrompter(os.Stdin, os.Stderr)
	}
	if fd := int(os.Stdout.Fd()); term.IsTerminal(fd) {
		width, _, err := term.GetSize(fd)
		if err != nil {
			width = 0
		}
		e.markdown = newMarkdownRenderer(width)
	}
	return run(ctx, e, args, os.Stderr)
}

func run(ctx context.Context, e *env, args []string, errOut io.Writer) int {
	defer e.close()

	root := newRootCommand(e)
	root.SetErr(errOut)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		// Controller failures were already shown as localized notices.
		if e.sink.noticeCount() == 0 {
			fmt.Fprintln(errOut, errorStyle.Render("error: "+err.Error()))
		}
		return 1
	}
	return 0
}
