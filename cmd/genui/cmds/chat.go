package cmds

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/sweetpotato0/genui/artifact"
	"github.com/sweetpotato0/genui/capability"
	"github.com/sweetpotato0/genui/capability/mcp"
	"github.com/sweetpotato0/genui/contrib/provider"
	"github.com/sweetpotato0/genui/contrib/tokenizer/tiktoken"
	"github.com/sweetpotato0/genui/examples/smarthome"
	"github.com/sweetpotato0/genui/middleware"
	"github.com/sweetpotato0/genui/orchestrator"
	"github.com/sweetpotato0/genui/pkg/logging"
	"github.com/sweetpotato0/genui/prompt"
)

type chatOptions struct {
	id         string
	message    string
	mcpURL     string
	mcpCommand string
	mcpArgs    []string
	mcpPrefix  string
}

func newChatCommand(a *app) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the smart home assistant",
		Long: `Starts an interactive session. Every line read from stdin is one turn:
text answers are streamed as they arrive and capability results are printed
as JSON artifacts.

Example:
  genui chat --id kitchen
  genui chat -m "turn on the coffee machine"
  genui chat --mcp-command ./weather-server`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runChat(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.id, "id", "", "conversation ID to resume (a new one is generated when empty)")
	cmd.Flags().StringVarP(&opts.message, "message", "m", "", "send one message and exit")
	cmd.Flags().StringVar(&opts.mcpURL, "mcp-url", "", "import the tools of an MCP server over streamable HTTP")
	cmd.Flags().StringVar(&opts.mcpCommand, "mcp-command", "", "import the tools of an MCP server launched as a subprocess")
	cmd.Flags().StringSliceVar(&opts.mcpArgs, "mcp-arg", nil, "argument passed to --mcp-command (repeatable)")
	cmd.Flags().StringVar(&opts.mcpPrefix, "mcp-prefix", "", "prefix added to the names of imported MCP tools")
	return cmd
}

func (a *app) runChat(ctx context.Context, in io.Reader, out, errOut io.Writer, opts *chatOptions) error {
	client, err := a.newClient(ctx, a.cfg.Model)
	if err != nil {
		return fmt.Errorf("model provider: %w", err)
	}
	defer provider.Close(client)

	chain := middleware.NewChain(
		middleware.NewRecoverer(),
		middleware.NewRequestLogger(logging.WithComponent("model")),
	)
	if rpm := a.cfg.Model.RequestsPerMinute; rpm > 0 {
		chain.Add(middleware.NewRateLimiter(rpm, 1))
	}

	descs := smarthome.Capabilities(smarthome.NewDeviceStore(smarthome.DefaultDevices()...))
	remote, err := a.remoteCapabilities(ctx, opts)
	if err != nil {
		return err
	}
	registry, err := capability.NewRegistry(append(descs, remote...)...)
	if err != nil {
		return err
	}

	instructions := a.cfg.SystemPrompt
	if instructions == "" {
		instructions = smarthome.Instructions
	}
	system, err := prompt.RenderSystem(instructions, registry)
	if err != nil {
		return err
	}

	conv, err := a.manager.GetOrCreate(ctx, opts.id)
	if err != nil {
		return err
	}

	orchOpts := []orchestrator.Option{
		orchestrator.WithRegistry(registry),
		orchestrator.WithSystemPrompt(system),
		orchestrator.WithLogger(logging.WithComponent("orchestrator")),
	}
	if tok, err := tiktoken.NewTiktokenTokenizer(a.cfg.Model.Tokenizer); err == nil {
		orchOpts = append(orchOpts, orchestrator.WithTokenCounter(tok))
	} else {
		a.logger.Warn("token counting disabled", "tokenizer", a.cfg.Model.Tokenizer, "error", err)
	}
	o := orchestrator.New(conv, chain.Then(client), orchOpts...)

	if opts.message != "" {
		return runTurn(ctx, o, opts.message, out, errOut)
	}

	fmt.Fprintf(errOut, "conversation %s (empty line or Ctrl-D to quit)\n", conv.ID())
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(errOut, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}
		if err := runTurn(ctx, o, line, out, errOut); err != nil {
			return err
		}
		if ctx.Err() != nil {
			break
		}
	}
	return scanner.Err()
}

func (a *app) remoteCapabilities(ctx context.Context, opts *chatOptions) ([]capability.Descriptor, error) {
	if opts.mcpURL == "" && opts.mcpCommand == "" {
		return nil, nil
	}
	client, err := mcp.Connect(ctx, mcp.Config{
		Endpoint: opts.mcpURL,
		Command:  opts.mcpCommand,
		Args:     opts.mcpArgs,
		Prefix:   opts.mcpPrefix,
	}, mcp.WithLogger(logging.WithComponent("mcp")))
	if err != nil {
		return nil, fmt.Errorf("connect mcp server: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	descs, err := client.Descriptors(ctx)
	if err != nil {
		return nil, fmt.Errorf("list mcp tools: %w", err)
	}
	a.logger.Info("mcp tools imported", "count", len(descs))
	return descs, nil
}

// runTurn streams one turn to out. Text is printed as it grows; other
// artifacts are printed once the turn is done.
func runTurn(ctx context.Context, o *orchestrator.Orchestrator, text string, out, errOut io.Writer) error {
	t := o.Start(ctx, text)

	current, sub, err := t.Stream().Subscribe()
	if err != nil {
		return err
	}
	printed := ""
	emit := func(v string) {
		if strings.HasPrefix(v, printed) {
			fmt.Fprint(out, v[len(printed):])
		} else {
			fmt.Fprint(out, "\n"+v)
		}
		printed = v
	}
	emit(current)
	for v := range sub.All(ctx) {
		emit(v)
	}
	sub.Close()

	<-t.Done()
	art := t.Artifact()
	switch art.Kind {
	case artifact.KindText:
		if printed != "" {
			fmt.Fprintln(out)
		}
	case artifact.KindCapability:
		if printed != "" {
			fmt.Fprintln(out)
		}
		raw, err := json.MarshalIndent(art, "", "  ")
		if err != nil {
			return fmt.Errorf("encode artifact: %w", err)
		}
		fmt.Fprintln(out, string(raw))
	case artifact.KindError:
		if printed != "" {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(errOut, "error: %s\n", art.Message)
	}
	return nil
}
