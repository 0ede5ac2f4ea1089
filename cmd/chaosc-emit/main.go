// Command chaosc-emit generates synthetic oscillating OSC traffic against a
// chaoschub instance, for exercising the forwarding path without a real
// controller attached. Grounded on chaosc_emitter.py's Runner: three
// independently phased "ekg"-style channels sent at a fixed tick rate.
package main

import (
	"context"
	"fmt"
	"math"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/oschub/chaosc/osc"
)

func main() {
	cmd := newRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var hubAddr string
	var tick time.Duration

	cmd := &cobra.Command{
		Use:   "chaosc-emit",
		Short: "chaosc-emit sends synthetic oscillating OSC traffic to a chaoschub instance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return emit(hubAddr, tick)
		},
	}
	cmd.Flags().StringVar(&hubAddr, "hub", "127.0.0.1:9001", "address of the chaoschub instance to emit to")
	cmd.Flags().DurationVar(&tick, "tick", 5*time.Millisecond, "interval between emitted samples")
	return cmd
}

// channel is one of the emitter's independently phased oscillators.
type channel struct {
	address string
	phase   float64
	step    float64
	next    func(phase float64) int32
}

func emit(hubAddr string, tick time.Duration) error {
	conn, err := net.Dial("udp", hubAddr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", hubAddr, err)
	}
	defer conn.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	channels := []*channel{
		{
			address: "/uwe/ekg",
			phase:   0,
			step:    2 * math.Pi / 300,
			next: func(phase float64) int32 {
				return int32(254 * ((math.Exp(-2*phase))*math.Cos(phase*10*math.Pi) + 1) / 2)
			},
		},
		{
			address: "/merle/ekg",
			phase:   0,
			step:    1,
			next: func(phase float64) int32 {
				return int32(254 - math.Mod(phase, 254))
			},
		},
		{
			address: "/bjoern/ekg",
			phase:   0,
			step:    2 * math.Pi / 400,
			next: func(phase float64) int32 {
				return int32(254 * (math.Cos(phase) + 1) / 2)
			},
		},
	}

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for _, ch := range channels {
				if err := sendSample(conn, ch); err != nil {
					return err
				}
				ch.phase += ch.step
			}
		}
	}
}

func sendSample(conn net.Conn, ch *channel) error {
	msg := osc.NewMessage(ch.address, ch.next(ch.phase))
	data, err := msg.MarshalOSC()
	if err != nil {
		return fmt.Errorf("encoding %s sample: %w", ch.address, err)
	}
	_, err = conn.Write(data)
	return err
}
