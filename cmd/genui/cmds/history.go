package cmds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/sweetpotato0/genui/message"
)

func newHistoryCommand(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history [conversation-id]",
		Short: "List conversations or print one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return a.listConversations(cmd.Context(), cmd.OutOrStdout())
			}
			return a.printConversation(cmd.Context(), cmd.OutOrStdout(), args[0], asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the stored state as JSON")
	return cmd
}

func (a *app) listConversations(ctx context.Context, out io.Writer) error {
	ids, err := a.manager.IDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fmt.Fprintln(out, id)
	}
	return nil
}

func (a *app) printConversation(ctx context.Context, out io.Writer, id string, asJSON bool) error {
	state, err := a.repo.Load(ctx, id)
	if err != nil {
		return fmt.Errorf("load conversation %s: %w", id, err)
	}

	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(state)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, m := range state.Messages {
		fmt.Fprintf(w, "%s\t%s\n", m.Role, describe(m))
	}
	return w.Flush()
}

func describe(m *message.Message) string {
	switch {
	case len(m.ToolCalls) > 0:
		tc := m.ToolCalls[0]
		return fmt.Sprintf("call %s(%s) [%s]", tc.Name, string(tc.Arguments), tc.ID)
	case m.Role == message.RoleTool:
		return fmt.Sprintf("%s -> %s", m.Name, m.Content)
	default:
		return m.Content
	}
}
