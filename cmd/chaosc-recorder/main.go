// Command chaosc-recorder subscribes to a chaoschub instance, records every
// datagram it forwards along with its arrival offset, and can replay a
// recording back out to a forward address with the original timing.
// Grounded on chaosc_recorder.py's OSCRecorder (record/play/bypass modes,
// subscribe_me, process_request) — ported to two Cobra subcommands instead
// of the original's raw-terminal inkey() control loop, since that loop is
// console-UI glue rather than the part of the design worth preserving.
package main

import (
	"context"
	"encoding/gob"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/renameio/v2"
	"github.com/spf13/cobra"

	"github.com/oschub/chaosc/internal/control"
	"github.com/oschub/chaosc/osc"
)

// Sample is one recorded datagram: its raw bytes and its offset from the
// start of the recording.
type Sample struct {
	Offset time.Duration
	Data   []byte
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{Use: "chaosc-recorder", Short: "chaosc-recorder records and replays traffic forwarded by a chaoschub instance"}
	root.AddCommand(newRecordCommand(), newPlayCommand())
	return root
}

func newRecordCommand() *cobra.Command {
	var hubAddr, ownAddr, token, dataPath string
	cmd := &cobra.Command{
		Use:   "record",
		Short: "subscribe to a hub and record every forwarded datagram until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return record(hubAddr, ownAddr, token, dataPath)
		},
	}
	cmd.Flags().StringVar(&hubAddr, "hub", "127.0.0.1:9001", "chaoschub instance to subscribe to")
	cmd.Flags().StringVar(&ownAddr, "listen", "0.0.0.0:0", "local address to receive forwarded traffic on")
	cmd.Flags().StringVar(&token, "token", "", "shared secret token")
	cmd.Flags().StringVar(&dataPath, "data", "chaosc_recorder.gob", "path to write the recording to")
	return cmd
}

func newPlayCommand() *cobra.Command {
	var forwardAddr, dataPath string
	cmd := &cobra.Command{
		Use:   "play",
		Short: "replay a recording to a forward address with its original timing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return play(forwardAddr, dataPath)
		},
	}
	cmd.Flags().StringVar(&forwardAddr, "forward", "", "address to replay the recording to")
	cmd.Flags().StringVar(&dataPath, "data", "chaosc_recorder.gob", "path to read the recording from")
	cmd.MarkFlagRequired("forward")
	return cmd
}

func record(hubAddr, ownAddr, token, dataPath string) error {
	listener, err := net.ListenPacket("udp", ownAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", ownAddr, err)
	}
	defer listener.Close()

	if err := subscribeSelf(hubAddr, listener.LocalAddr(), token); err != nil {
		return fmt.Errorf("subscribing to hub: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-ctx.Done()
		listener.Close()
	}()

	var samples []Sample
	start := time.Now()
	buf := make([]byte, 65535)
	for {
		n, _, err := listener.ReadFrom(buf)
		if err != nil {
			break
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		samples = append(samples, Sample{Offset: time.Since(start), Data: data})
	}

	return saveSamples(dataPath, samples)
}

func play(forwardAddr, dataPath string) error {
	samples, err := loadSamples(dataPath)
	if err != nil {
		return fmt.Errorf("loading %s: %w", dataPath, err)
	}

	conn, err := net.Dial("udp", forwardAddr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", forwardAddr, err)
	}
	defer conn.Close()

	start := time.Now()
	for _, sample := range samples {
		if wait := sample.Offset - time.Since(start); wait > 0 {
			time.Sleep(wait)
		}
		if _, err := conn.Write(sample.Data); err != nil {
			return fmt.Errorf("replaying sample: %w", err)
		}
	}
	return nil
}

// subscribeSelf sends a /subscribe request for ownAddr to the hub at
// hubAddr, best-effort: it does not wait for the reply, matching the
// original's fire-and-forget subscribe_me.
func subscribeSelf(hubAddr string, ownAddr net.Addr, token string) error {
	host, portStr, err := net.SplitHostPort(ownAddr.String())
	if err != nil {
		return err
	}
	var port int
	fmt.Sscanf(portStr, "%d", &port)

	msg := osc.NewMessage(control.AddrSubscribe, host, int32(port), token, "chaosc-recorder")
	data, err := msg.MarshalOSC()
	if err != nil {
		return err
	}

	conn, err := net.Dial("udp", hubAddr)
	if err != nil {
		return err
	}
	defer conn.Close()
	_, err = conn.Write(data)
	return err
}

// saveSamples writes samples to path with encoding/gob, through a
// temporary file and an atomic rename (github.com/google/renameio/v2) so a
// crash mid-write never corrupts a previous recording.
func saveSamples(path string, samples []Sample) error {
	t, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return err
	}
	defer t.Cleanup()

	if err := gob.NewEncoder(t).Encode(samples); err != nil {
		return fmt.Errorf("encoding recording: %w", err)
	}
	return t.CloseAtomicallyReplace()
}

func loadSamples(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var samples []Sample
	if err := gob.NewDecoder(f).Decode(&samples); err != nil {
		return nil, fmt.Errorf("decoding recording: %w", err)
	}
	return samples, nil
}
