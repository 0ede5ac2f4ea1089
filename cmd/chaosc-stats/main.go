// Command chaosc-stats subscribes to a chaoschub instance and exposes live
// per-address traffic statistics as Prometheus metrics. Grounded on
// chaosc_stats.py's OSCAnalyzer, which loaded a recorded trace file after
// the fact and printed per-address counts, rates, and per-argument
// min/max/mean/median using numpy. Since the hub here is a live process
// rather than a file to replay, this tool adapts OSCAnalyzer's statistics
// into a streaming observer that serves them over /metrics instead of
// printing a one-shot report.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"regexp"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/oschub/chaosc/internal/control"
	"github.com/oschub/chaosc/osc"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type options struct {
	hubAddr     string
	listenAddr  string
	token       string
	metricsAddr string
	annotations string
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "chaosc-stats",
		Short: "chaosc-stats subscribes to a chaoschub instance and exposes per-address traffic statistics over /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}
	cmd.Flags().StringVar(&opts.hubAddr, "hub", "127.0.0.1:9001", "chaoschub instance to subscribe to")
	cmd.Flags().StringVar(&opts.listenAddr, "listen", "0.0.0.0:0", "local address to receive forwarded traffic on")
	cmd.Flags().StringVar(&opts.token, "token", "", "shared secret token")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", ":9102", "address to serve Prometheus metrics on")
	cmd.Flags().StringVar(&opts.annotations, "annotations", "", "optional YAML file mapping address patterns to argument names")
	return cmd
}

// annotation names the arguments of messages matching Pattern, mirroring
// the regex-keyed annotation file OSCAnalyzer.get_annotation loaded.
type annotation struct {
	Pattern  string   `yaml:"pattern"`
	ArgNames []string `yaml:"args"`
	compiled *regexp.Regexp
}

func loadAnnotations(path string) ([]annotation, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading annotations: %w", err)
	}
	var list []annotation
	if err := yaml.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("parsing annotations: %w", err)
	}
	for i := range list {
		re, err := regexp.Compile(list[i].Pattern)
		if err != nil {
			return nil, fmt.Errorf("annotation pattern %q: %w", list[i].Pattern, err)
		}
		list[i].compiled = re
	}
	return list, nil
}

// annotations is the compiled annotation list; argName resolves an
// argument's display name for the given address and positional index.
type annotations []annotation

func (list annotations) argName(address string, pos int) string {
	for _, a := range list {
		if a.compiled.MatchString(address) && pos < len(a.ArgNames) {
			return a.ArgNames[pos]
		}
	}
	return fmt.Sprintf("arg%d", pos)
}

// analyzer tracks per-address message counts and per-argument numeric
// summaries, the live equivalent of OSCAnalyzer.analyze's per-address loop.
type analyzer struct {
	annotations annotations

	messagesTotal *prometheus.CounterVec
	argValue      *prometheus.GaugeVec
	argSummary    *prometheus.SummaryVec
}

func newAnalyzer(reg prometheus.Registerer, notes annotations) *analyzer {
	return &analyzer{
		annotations: notes,
		messagesTotal: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: "chaosc",
			Name:      "messages_total",
			Help:      "Total OSC messages observed per address.",
		}, []string{"address"}),
		argValue: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "chaosc",
			Name:      "argument_value",
			Help:      "Most recently observed numeric value of a message argument.",
		}, []string{"address", "arg"}),
		argSummary: promauto.With(reg).NewSummaryVec(prometheus.SummaryOpts{
			Namespace:  "chaosc",
			Name:       "argument_value_summary",
			Help:       "Distribution of numeric message argument values.",
			Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
		}, []string{"address", "arg"}),
	}
}

// observe records one decoded packet's contribution to the running
// statistics, recursing into bundle elements the way OSCAnalyzer.decode_osc
// recursed into bundles read from the trace file.
func (a *analyzer) observe(pkt osc.Packet) {
	switch v := pkt.(type) {
	case *osc.Message:
		a.observeMessage(v)
	case *osc.Bundle:
		for _, el := range v.Elements {
			a.observe(el)
		}
	}
}

func (a *analyzer) observeMessage(msg *osc.Message) {
	if control.IsReserved(msg.Address) {
		return
	}
	a.messagesTotal.WithLabelValues(msg.Address).Inc()

	for i, arg := range msg.Arguments {
		val, ok := numericValue(arg)
		if !ok {
			continue
		}
		name := a.annotations.argName(msg.Address, i)
		a.argValue.WithLabelValues(msg.Address, name).Set(val)
		a.argSummary.WithLabelValues(msg.Address, name).Observe(val)
	}
}

// numericValue reports the float64 value of arg if it is one of the
// numeric OSC argument types, mirroring which argument types
// OSCAnalyzer's numpy statistics considered.
func numericValue(arg any) (float64, bool) {
	switch v := arg.(type) {
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case float32:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func run(opts *options) error {
	notes, err := loadAnnotations(opts.annotations)
	if err != nil {
		return err
	}

	logger := log.New(os.Stderr)
	registry := prometheus.NewRegistry()
	az := newAnalyzer(registry, notes)

	conn, err := net.ListenPacket("udp", opts.listenAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", opts.listenAddr, err)
	}
	defer conn.Close()

	if err := subscribeSelf(opts.hubAddr, conn.LocalAddr(), opts.token); err != nil {
		return fmt.Errorf("subscribing to hub: %w", err)
	}
	logger.Info("subscribed to hub", "hub", opts.hubAddr, "listen", conn.LocalAddr())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: opts.metricsAddr, Handler: mux}
	go func() {
		logger.Info("serving metrics", "addr", opts.metricsAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped", "err", err)
		}
	}()

	go func() {
		<-ctx.Done()
		conn.Close()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		server.Shutdown(shutdownCtx)
	}()

	buf := make([]byte, 65535)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading from hub: %w", err)
		}
		pkt, err := osc.Decode(buf[:n])
		if err != nil {
			logger.Warn("dropping malformed packet", "err", err)
			continue
		}
		az.observe(pkt)
	}
}

// subscribeSelf sends a fire-and-forget /subscribe request for ownAddr,
// the same pattern chaosc-recorder uses.
func subscribeSelf(hubAddr string, ownAddr net.Addr, token string) error {
	host, portStr, err := net.SplitHostPort(ownAddr.String())
	if err != nil {
		return err
	}
	var port int
	fmt.Sscanf(portStr, "%d", &port)

	msg := osc.NewMessage(control.AddrSubscribe, host, int32(port), token, "chaosc-stats")
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
