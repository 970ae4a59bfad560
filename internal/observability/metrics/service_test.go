package metrics

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "taskpanel/pkg/logx"
)

func TestServiceServesGatherer(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "panel_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Add(3)

	svc := New(Config{Enabled: true, Addr: "127.0.0.1:0", Path: "metrics"}, reg, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	svc.Start(ctx)

	select {
	case <-svc.Ready():
	case <-time.After(3 * time.Second):
		t.Fatal("metrics server not ready")
	}

	resp, err := http.Get("http://" + svc.Addr() + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "panel_test_total 3")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer stopCancel()
	svc.Stop(stopCtx)
	assert.Empty(t, svc.Addr())
}

func TestPprofMountedOnlyWhenEnabled(t *testing.T) {
	for _, on := range []bool{false, true} {
		svc := New(Config{Enabled: true, Addr: "127.0.0.1:0", Pprof: on}, prometheus.NewRegistry(), logx.Nop())
		ctx, cancel := context.WithCancel(context.Background())
		svc.Start(ctx)
		select {
		case <-svc.Ready():
		case <-time.After(3 * time.Second):
			t.Fatal("metrics server not ready")
		}

		resp, err := http.Get("http://" + svc.Addr() + "/debug/pprof/cmdline")
		require.NoError(t, err)
		_ = resp.Body.Close()
		if on {
			assert.Equal(t, http.StatusOK, resp.StatusCode)
		} else {
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		}

		stopCtx, stopCancel := context.WithTimeout(context.Background(), 3*time.Second)
		svc.Stop(stopCtx)
		stopCancel()
		cancel()
	}
}

func TestReconfigureDisabledIsNoop(t *testing.T) {
	svc := New(Config{}, prometheus.NewRegistry(), logx.Nop())
	svc.Reconfigure(context.Background(), Config{Enabled: false})
	assert.Nil(t, svc.Ready())
	assert.Empty(t, svc.Addr())
}

func TestIsLoopbackAddr(t *testing.T) {
	t.Parallel()

	assert.True(t, isLoopbackAddr("127.0.0.1:9464"))
	assert.True(t, isLoopbackAddr("localhost:1"))
	assert.True(t, isLoopbackAddr("[::1]:1"))
	assert.False(t, isLoopbackAddr(":9464"))
	assert.False(t, isLoopbackAddr("0.0.0.0:9464"))
}
