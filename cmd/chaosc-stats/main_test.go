package main

import (
	"regexp"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"

	"github.com/oschub/chaosc/osc"
)

func TestAnalyzerCountsNonReservedMessages(t *testing.T) {
	reg := prometheus.NewRegistry()
	az := newAnalyzer(reg, nil)

	az.observe(osc.NewMessage("/uwe/ekg", int32(42)))
	az.observe(osc.NewMessage("/uwe/ekg", int32(43)))
	az.observe(osc.NewMessage("/subscribe", "127.0.0.1", int32(9001), "secret"))

	require.Equal(t, float64(2), counterValue(t, az.messagesTotal.WithLabelValues("/uwe/ekg")))
}

func TestAnalyzerRecursesIntoBundles(t *testing.T) {
	reg := prometheus.NewRegistry()
	az := newAnalyzer(reg, nil)

	bun := osc.NewBundle(osc.Timetag{})
	bun.Append(osc.NewMessage("/merle/ekg", int32(1)))
	bun.Append(osc.NewMessage("/bjoern/ekg", int32(2)))
	az.observe(bun)

	require.Equal(t, float64(1), counterValue(t, az.messagesTotal.WithLabelValues("/merle/ekg")))
	require.Equal(t, float64(1), counterValue(t, az.messagesTotal.WithLabelValues("/bjoern/ekg")))
}

func TestAnalyzerUsesAnnotationArgNames(t *testing.T) {
	reg := prometheus.NewRegistry()
	notes, err := compileAnnotations([]annotation{{Pattern: `^/uwe/`, ArgNames: []string{"bpm"}}})
	require.NoError(t, err)
	az := newAnalyzer(reg, notes)

	az.observe(osc.NewMessage("/uwe/ekg", int32(77)))

	m := &dto.Metric{}
	require.NoError(t, az.argValue.WithLabelValues("/uwe/ekg", "bpm").Write(m))
	require.Equal(t, float64(77), m.GetGauge().GetValue())
}

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	m := &dto.Metric{}
	require.NoError(t, c.Write(m))
	return m.GetCounter().GetValue()
}

// compileAnnotations lets tests build annotations without going through
// loadAnnotations' file read.
func compileAnnotations(list []annotation) (annotations, error) {
	for i := range list {
		re, err := regexp.Compile(list[i].Pattern)
		if err != nil {
			return nil, err
		}
		list[i].compiled = re
	}
	return list, nil
}
