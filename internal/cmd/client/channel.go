package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/rzbill/taskboard/internal/channel"
	"github.com/rzbill/taskboard/internal/relayapi"
)

// NewChannelCommand constructs the `channel` command group for raw relay
// access.
func NewChannelCommand(env *Env) *cobra.Command {
	channelCmd := &cobra.Command{Use: "channel", Short: "Publish to and tail relay channels"}
	channelCmd.PersistentFlags().String("relay", "", "Relay gRPC address (default transport.relay_addr)")
	channelCmd.PersistentFlags().StringP("channel", "c", "", "Channel (default board.channel)")
	channelCmd.AddCommand(newChannelPublishCommand(env), newChannelTailCommand(env))
	return channelCmd
}

func relayTarget(cmd *cobra.Command, env *Env) (addr, ch string) {
	addr, _ = cmd.Flags().GetString("relay")
	ch, _ = cmd.Flags().GetString("channel")
	if addr == "" {
		addr = env.Config.Transport.RelayAddr
	}
	if ch == "" {
		ch = env.Config.Board.Channel
	}
	return addr, ch
}

// newChannelPublishCommand constructs the `channel publish` subcommand.
func newChannelPublishCommand(env *Env) *cobra.Command {
	publishCmd := &cobra.Command{
		Use:   "publish",
		Short: "Publish one event envelope",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, ch := relayTarget(cmd, env)
			event, _ := cmd.Flags().GetString("event")
			data, _ := cmd.Flags().GetString("data")
			if event == "" {
				return errors.New("--event is required")
			}
			if !json.Valid([]byte(data)) {
				return errors.New("--data must be valid JSON")
			}
			msg := channel.Message{Channel: ch, Event: event, Sender: env.Participant, Data: json.RawMessage(data)}
			return withRelayClient(env, addr, func(c *relayapi.Client) error {
				resp, err := c.Publish(background(cmd.Context()), channel.ToStruct(msg))
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "seq:", relayapi.ParsePublishResponse(resp))
				return nil
			})
		},
	}
	publishCmd.Flags().String("event", "", "Event name, e.g. new-task")
	publishCmd.Flags().String("data", "null", "JSON payload")
	return publishCmd
}

// newChannelTailCommand constructs the `channel tail` subcommand.
func newChannelTailCommand(env *Env) *cobra.Command {
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print events published to a channel from now on",
		RunE: func(cmd *cobra.Command, _ []string) error {
			addr, ch := relayTarget(cmd, env)
			filter, _ := cmd.Flags().GetString("filter")
			limit, _ := cmd.Flags().GetInt("limit")
			out := cmd.OutOrStdout()
			return withRelayClient(env, addr, func(c *relayapi.Client) error {
				stream, err := c.Subscribe(background(cmd.Context()), relayapi.SubscribeRequest(ch, filter))
				if err != nil {
					return err
				}
				for n := 0; limit <= 0 || n < limit; n++ {
					s, err := stream.Recv()
					if errors.Is(err, io.EOF) {
						return nil
					}
					if err != nil {
						return err
					}
					m, err := channel.FromStruct(s)
					if err != nil {
						env.logger().Warn("skipping malformed envelope")
						continue
					}
					if err := printMessage(out, m); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	tailCmd.Flags().String("filter", "", "CEL filter evaluated by the relay")
	tailCmd.Flags().Int("limit", 0, "Stop after N events (0 = infinite)")
	return tailCmd
}
