package sender

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/ats/transfer-service/internal/domain"
	"github.com/spf13/cobra"
)

// SendOptions holds flags for the send command.
type SendOptions struct {
	URL    string
	Secret string
	Delay  time.Duration
	States []string
}

// NewRootCommand creates the root command for the ats-sender CLI.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ats-sender",
		Short: "Send signed transfer status events to the ATS webhook receiver",
	}
	cmd.AddCommand(NewSendCommand())
	return cmd
}

// NewSendCommand creates the send command.
func NewSendCommand() *cobra.Command {
	opts := &SendOptions{}

	cmd := &cobra.Command{
		Use:   "send <payload-file>",
		Short: "Send status events built from a payload template",
		Long: `Send status events built from a payload template.

Each event gets a fresh evt_ id and occurredAt timestamp. data.previousState is
the state sent before it, starting from the template's data.state.

Without --state the command prompts for each next state until stdin closes.

Example:
  ats-sender send payload.json --state VALIDATION --state PROCESSING`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSend(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.URL, "url", envOr("WEBHOOK_URL", DefaultWebhookURL), "webhook receiver url")
	cmd.Flags().StringVar(&opts.Secret, "secret", envOr("ATS_WEBHOOK_SECRET", DefaultSecret), "shared HMAC secret")
	cmd.Flags().DurationVar(&opts.Delay, "delay", 0, "wait before the first send")
	cmd.Flags().StringArrayVar(&opts.States, "state", nil, "state to send; repeat to send several in order")

	return cmd
}

func envOr(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func runSend(cmd *cobra.Command, opts *SendOptions, path string) error {
	template, current, err := LoadTemplate(path)
	if err != nil {
		return err
	}

	var planned []domain.TransferState
	for _, raw := range opts.States {
		state, err := ParseState(raw)
		if err != nil {
			return err
		}
		planned = append(planned, state)
	}

	if opts.Delay > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "Delaying send by %s...\n", opts.Delay)
		time.Sleep(opts.Delay)
	}

	session := NewSession(New(opts.URL, opts.Secret), template, current)
	send := func(next domain.TransferState) error {
		resp, previous, err := session.Advance(cmd.Context(), next)
		if err != nil {
			return err
		}
		printResponse(cmd.OutOrStdout(), opts.URL, path, resp, previous, next)
		return nil
	}

	if len(planned) > 0 {
		for _, state := range planned {
			if err := send(state); err != nil {
				return err
			}
		}
		return nil
	}

	return prompt(cmd.InOrStdin(), cmd.OutOrStdout(), send)
}

func prompt(in io.Reader, out io.Writer, send func(domain.TransferState) error) error {
	names := make([]string, 0, len(domain.TransferStates))
	for _, state := range domain.TransferStates {
		names = append(names, string(state))
	}
	sort.Strings(names)
	choices := strings.Join(names, ", ")

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprintf(out, "Enter transfer status to send [%s]: ", choices)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		state, err := ParseState(scanner.Text())
		if err != nil {
			fmt.Fprintln(out, "Invalid status. Please enter one of the allowed values.")
			continue
		}
		if err := send(state); err != nil {
			return err
		}
	}
}

func printResponse(out io.Writer, url, path string, resp *Response, previous, next domain.TransferState) {
	fmt.Fprintf(out, "Sending to: %s\n", url)
	fmt.Fprintf(out, "Payload: %s\n", path)
	fmt.Fprintf(out, "EventId: %s\n", resp.EventID)
	fmt.Fprintf(out, "PreviousState: %s\n", previous)
	fmt.Fprintf(out, "State: %s\n", next)
	fmt.Fprintf(out, "Request Status: %s\n", resp.Status)
	if resp.Body != "" {
		fmt.Fprintf(out, "Response:\n%s\n", resp.Body)
	}
}
