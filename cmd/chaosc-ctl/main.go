// Command chaosc-ctl is a control-plane CLI client for chaoschub: it sends
// one reserved-address request and prints the reply. Grounded on
// chaosc_ctl.py's argparse-driven subscribe/unsubscribe commands, extended
// to cover /list, /save, and /pause since those are equally reserved
// addresses the original tool simply never exposed a flag for.
package main

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/oschub/chaosc/internal/control"
	"github.com/oschub/chaosc/osc"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type globalOpts struct {
	hubAddr string
	token   string
	timeout time.Duration
}

func newRootCommand() *cobra.Command {
	opts := &globalOpts{}
	root := &cobra.Command{
		Use:   "chaosc-ctl",
		Short: "chaosc-ctl sends subscribe/unsubscribe/list/save/pause requests to a chaoschub instance",
	}
	root.PersistentFlags().StringVar(&opts.hubAddr, "hub", "127.0.0.1:9001", "address of the chaoschub instance to control")
	root.PersistentFlags().StringVar(&opts.token, "token", "", "shared secret token")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 2*time.Second, "reply wait timeout")

	root.AddCommand(
		newSubscribeCommand(opts),
		newUnsubscribeCommand(opts),
		newListCommand(opts),
		newSaveCommand(opts),
		newPauseCommand(opts),
	)
	return root
}

func newSubscribeCommand(opts *globalOpts) *cobra.Command {
	var label string
	cmd := &cobra.Command{
		Use:   "subscribe <host> <port>",
		Short: "subscribe an endpoint to receive forwarded traffic",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, port, err := hostPort(args)
			if err != nil {
				return err
			}
			msgArgs := []any{host, port, opts.token}
			if label != "" {
				msgArgs = append(msgArgs, label)
			}
			return roundTrip(opts, osc.NewMessage(control.AddrSubscribe, msgArgs...))
		},
	}
	cmd.Flags().StringVar(&label, "label", "", "free-form label for the subscription")
	return cmd
}

func newUnsubscribeCommand(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "unsubscribe <host> <port>",
		Short: "unsubscribe a previously subscribed endpoint",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			host, port, err := hostPort(args)
			if err != nil {
				return err
			}
			return roundTrip(opts, osc.NewMessage(control.AddrUnsubscribe, host, port, opts.token))
		},
	}
}

func newListCommand(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "list current subscribers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return roundTrip(opts, osc.NewMessage(control.AddrList))
		},
	}
}

func newSaveCommand(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "save",
		Short: "ask the hub to persist its subscription registry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return roundTrip(opts, osc.NewMessage(control.AddrSave, opts.token))
		},
	}
}

func newPauseCommand(opts *globalOpts) *cobra.Command {
	return &cobra.Command{
		Use:   "pause <0|1>",
		Short: "toggle whether the hub forwards non-control traffic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v int
			if _, err := fmt.Sscanf(args[0], "%d", &v); err != nil {
				return fmt.Errorf("invalid pause value %q: %w", args[0], err)
			}
			return roundTrip(opts, osc.NewMessage(control.AddrPause, int32(v)))
		},
	}
}

func hostPort(args []string) (string, int32, error) {
	var port int
	if _, err := fmt.Sscanf(args[1], "%d", &port); err != nil {
		return "", 0, fmt.Errorf("invalid port %q: %w", args[1], err)
	}
	return args[0], int32(port), nil
}

// roundTrip sends msg to the configured hub and prints the first reply
// packet it receives, or reports a timeout.
func roundTrip(opts *globalOpts, msg *osc.Message) error {
	data, err := msg.MarshalOSC()
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	conn, err := net.Dial("udp", opts.hubAddr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", opts.hubAddr, err)
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("sending request: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(opts.timeout))
	buf := make([]byte, 65535)
	n, err := conn.Read(buf)
	if err != nil {
		return fmt.Errorf("waiting for reply: %w", err)
	}

	reply, err := osc.Decode(buf[:n])
	if err != nil {
		return fmt.Errorf("decoding reply: %w", err)
	}
	fmt.Println(describe(reply))
	return nil
}

func describe(pkt osc.Packet) string {
	switch v := pkt.(type) {
	case *osc.Message:
		return v.String()
	case *osc.Bundle:
		lines := make([]string, 0, len(v.Elements))
		for _, el := range v.Elements {
			lines = append(lines, describe(el))
		}
		out := "bundle:"
		for _, l := range lines {
			out += "\n  " + l
		}
		return out
	default:
		return fmt.Sprintf("%v", pkt)
	}
}
