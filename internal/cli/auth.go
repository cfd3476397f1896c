package cli

import (
	"time"

	"github.com/spf13/cobra"

	"agriadvisor/internal/domain"
	"agriadvisor/internal/usecase"
)

func newLoginCommand(e *env) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.load()
			if err != nil {
				return err
			}
			if email, err = ask(e.prompter.Prompt, email, "Email: "); err != nil {
				return err
			}
			if password, err = ask(e.prompter.Password, password, "Password: "); err != nil {
				return err
			}
			if err := s.Auth.Login(cmd.Context(), email, password); err != nil {
				return err
			}
			e.printf("Signed in as %s\n", userLabel(s.Auth.Status()))
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	return cmd
}

func newSignupCommand(e *env) *cobra.Command {
	var form usecase.SignupForm
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.load()
			if err != nil {
				return err
			}
			if form.Username, err = ask(e.prompter.Prompt, form.Username, "Username: "); err != nil {
				return err
			}
			if form.Email, err = ask(e.prompter.Prompt, form.Email, "Email: "); err != nil {
				return err
			}
			if form.Password == "" {
				if form.Password, err = e.prompter.Password("Password: "); err != nil {
					return err
				}
				if form.Confirm, err = e.prompter.Password("Confirm password: "); err != nil {
					return err
				}
			} else if form.Confirm == "" {
				form.Confirm = form.Password
			}
			if err := s.Auth.Signup(cmd.Context(), form); err != nil {
				return err
			}
			e.printf("Welcome, %s\n", userLabel(s.Auth.Status()))
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Username, "username", "", "display name")
	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "password (prompted with confirmation when omitted)")
	cmd.Flags().StringVar(&form.Confirm, "confirm", "", "password confirmation (defaults to --password)")
	cmd.Flags().StringVar(&form.Language, "language", "", "preferred language code, e.g. hi")
	return cmd
}

func newGoogleLoginCommand(e *env) *cobra.Command {
	var language string
	cmd := &cobra.Command{
		Use:   "login-google",
		Short: "Sign in with Google in the system browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.load()
			if err != nil {
				return err
			}
			if err := s.SignInWithGoogle(cmd.Context()); err != nil {
				return err
			}

			if s.Auth.Status().View == domain.AuthViewGoogleSignupCompletion {
				if language == "" {
					e.println(renderLanguages(s.Language.Current()))
					if language, err = e.prompter.Prompt("Preferred language: "); err != nil {
						return err
					}
				}
				if err := s.Auth.CompleteGoogleSignup(cmd.Context(), language); err != nil {
					return err
				}
			}
			e.printf("Signed in as %s\n", userLabel(s.Auth.Status()))
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "preferred language for a new account")
	return cmd
}

func newLogoutCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			s, err := e.load()
			if err != nil {
				return err
			}
			s.Auth.Logout()
			e.println("Signed out")
			return nil
		},
	}
}

func newStatusCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show who is signed in and the current language",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.load()
			if err != nil {
				return err
			}
			if err := s.Auth.Restore(cmd.Context()); err != nil {
				return err
			}
			status := s.Auth.Status()
			if status.State == domain.AuthStateLoggedIn {
				e.printf("Signed in as %s\n", userLabel(status))
				if exp, ok := s.Credentials.AccessExpiry(); ok {
					e.printf("Session:  expires %s\n", exp.Local().Format(time.RFC1123))
				}
			} else {
				e.println("Not signed in")
			}
			e.printf("Language: %s\n", s.Language.Current())
			e.printf("Backend:  %s\n", s.Config.API.BaseURL)
			return nil
		},
	}
}

// ask returns value, or prompts for it when empty.
func ask(read func(string) (string, error), value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return read(label)
}

func userLabel(status domain.AuthStatus) string {
	if status.User == nil {
		return "(unknown user)"
	}
	switch {
	case status.User.Email != "":
		return status.User.Email
	case status.User.Username != "":
		return status.User.Username
	default:
		return status.User.Name
	}
}
