package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"agriadvisor/internal/domain"
)

func newChatsCommand(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chats",
		Short: "List, show and delete saved chats",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved chats, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := e.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			sessions, err := s.History.List(cmd.Context())
			if err != nil {
				return err
			}
			e.println(renderSessions(sessions, "", s.Language.Current()))
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a saved chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.History.Load(cmd.Context(), args[0]); err != nil {
				return err
			}
			e.println(renderChat(s.Chat.Snapshot(), s.Language.Current(), e.markdown))
			return nil
		},
	}

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a saved chat",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.History.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			e.printf("Deleted chat %s\n", args[0])
			return nil
		},
	}

	cmd.AddCommand(list, show, del)
	return cmd
}

func newAskCommand(e *env) *cobra.Command {
	var chatID string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask one question and print the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := e.signedIn(cmd.Context())
			if err != nil {
				return err
			}
			if chatID != "" {
				if err := s.History.Load(cmd.Context(), chatID); err != nil {
					return err
				}
			}
			if err := s.Chat.Send(cmd.Context(), strings.Join(args, " "), domain.InputTypeText); err != nil {
				return err
			}
			snapshot := s.Chat.Snapshot()
			if n := len(snapshot.Turns); n > 0 {
				e.println(renderTurn(snapshot.Turns[n-1], s.Language.Current(), e.markdown))
			}
			e.println(infoStyle.Render("chat " + snapshot.SessionID))
			return nil
		},
	}
	cmd.Flags().StringVar(&chatID, "chat", "", "continue the chat with this id")
	return cmd
}
