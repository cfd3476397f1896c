package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"agriadvisor/internal/i18n"
	"agriadvisor/internal/keyboard"
	"agriadvisor/internal/ports"
)

func newTranscribeCommand(e *env) *cobra.Command {
	var language string
	var raw bool
	cmd := &cobra.Command{
		Use:   "transcribe <file.wav>",
		Short: "Transcribe a recorded WAV file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.load()
			if err != nil {
				return err
			}
			if err := s.Auth.Restore(cmd.Context()); err != nil {
				return err
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read recording: %w", err)
			}
			if language == "" {
				language = s.Language.Current()
			}
			code, err := i18n.Normalize(language)
			if err != nil {
				return err
			}

			text, err := s.Transcriber.Transcribe(cmd.Context(), ports.AudioPayload{
				Data:        data,
				ContentType: "audio/wav",
				Filename:    filepath.Base(args[0]),
			}, i18n.LocaleCode(code))
			if err != nil {
				return fmt.Errorf("transcribe: %w", err)
			}
			if strings.TrimSpace(text) == "" {
				e.println(infoStyle.Render(i18n.T(code, i18n.KeyFallback)))
				return nil
			}
			if !raw {
				if text, err = s.Rules.Apply(text); err != nil {
					return fmt.Errorf("apply rules: %w", err)
				}
			}
			e.println(text)
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "spoken language (defaults to the current language)")
	cmd.Flags().BoolVar(&raw, "raw", false, "skip transcript rules")
	return cmd
}

func newKeyboardCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "keyboard [language]",
		Short: "Show the virtual keyboard layout",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			var code string
			if len(args) == 1 {
				normalized, err := i18n.Normalize(args[0])
				if err != nil {
					return err
				}
				code = normalized
			} else {
				s, err := e.load()
				if err != nil {
					return err
				}
				code = s.Language.Current()
			}
			if !keyboard.HasLayout(code) {
				e.println(infoStyle.Render("No dedicated layout for " + code + "; showing English."))
			}
			e.println(renderKeyboard(keyboard.LayoutFor(code)))
			return nil
		},
	}
}

func newLangCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "lang [code]",
		Short: "List languages or switch the current one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.load()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				e.println(renderLanguages(s.Language.Current()))
				return nil
			}
			if err := s.Auth.Restore(cmd.Context()); err != nil {
				return err
			}
			if err := s.Language.Set(args[0]); err != nil {
				return err
			}
			e.printf("Language set to %s\n", s.Language.Current())
			return nil
		},
	}
}
