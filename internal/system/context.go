// Package system wires every component into a running node and drives the
// cooperative main loop, the analogue of the teacher's EdgeRuntime: a single
// place that owns construction order, lifecycle, and the metrics HTTP
// server.
package system

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/VamoKnut/hastig/internal/aggregation"
	"github.com/VamoKnut/hastig/internal/appconfig"
	"github.com/VamoKnut/hastig/internal/boardadapter"
	"github.com/VamoKnut/hastig/internal/bus"
	"github.com/VamoKnut/hastig/internal/celladapter"
	"github.com/VamoKnut/hastig/internal/commspump"
	"github.com/VamoKnut/hastig/internal/observability"
	"github.com/VamoKnut/hastig/internal/orchestrator"
	"github.com/VamoKnut/hastig/internal/ports"
	"github.com/VamoKnut/hastig/internal/power"
	"github.com/VamoKnut/hastig/internal/restartreason"
	"github.com/VamoKnut/hastig/internal/sampling"
	"github.com/VamoKnut/hastig/internal/sensoradapter"
	"github.com/VamoKnut/hastig/internal/settingsstore"
)

// ContextOption customizes the adapters SystemContext wires by default.
type ContextOption func(*overrides)

type overrides struct {
	obs      ports.Observability
	modem    ports.CellularModem
	board    interface {
		ports.BoardHAL
		ports.Battery
	}
	newMQTT   func(host string, port int, clientID, user, pass string) ports.MQTTClient
	newSensor ports.SensorFactory
	settings  ports.SettingsStore
	clock     ports.Clock
}

// WithObservability plugs in a custom Observability backend.
func WithObservability(obs ports.Observability) ContextOption {
	return func(o *overrides) { o.obs = obs }
}

// WithCellularModem overrides the default simulated modem, e.g. with a real
// AT-command driver on hardware.
func WithCellularModem(m ports.CellularModem) ContextOption {
	return func(o *overrides) { o.modem = m }
}

// WithMQTTFactory overrides the default paho-backed MQTT client factory.
func WithMQTTFactory(f func(host string, port int, clientID, user, pass string) ports.MQTTClient) ContextOption {
	return func(o *overrides) { o.newMQTT = f }
}

// WithBoard overrides the default simulated board HAL/battery, e.g. with a
// platform-specific driver on real hardware.
func WithBoard(b interface {
	ports.BoardHAL
	ports.Battery
}) ContextOption {
	return func(o *overrides) { o.board = b }
}

// WithSensorFactory overrides the default sensor factory (fake when
// cfg.Sensor.Simulated, Modbus-RTU otherwise), e.g. to inject a test double
// that returns canned samples.
func WithSensorFactory(f ports.SensorFactory) ContextOption {
	return func(o *overrides) { o.newSensor = f }
}

// WithSettingsStore overrides the default flash-backed settings store, e.g.
// with an in-memory fake for tests.
func WithSettingsStore(s ports.SettingsStore) ContextOption {
	return func(o *overrides) { o.settings = s }
}

// WithClock overrides the default wall clock, e.g. with a fake clock for
// deterministic timer tests.
func WithClock(c ports.Clock) ContextOption {
	return func(o *overrides) { o.clock = c }
}

// SystemContext owns every long-lived component in the node and drives the
// main loop: comms pump ticks, orchestrator ticks, and power manager
// service checks, in that order, every tick.
type SystemContext struct {
	cfg   *appconfig.Config
	obs   ports.Observability
	clock ports.Clock

	settings ports.SettingsStore
	restart  *restartreason.Store
	board    interface {
		ports.BoardHAL
		ports.Battery
	}

	b           *bus.SystemBus
	samplingAct *sampling.Activity
	aggAct      *aggregation.Activity
	comms       *commspump.Pump
	orch        *orchestrator.Orchestrator
	powerMgr    *power.Manager

	metricsSrv *http.Server

	stopSampling func()
	stopAgg      func()
}

// New constructs a fully wired SystemContext against cfg. It does not start
// any goroutines; call Run or Start for that.
func New(cfg *appconfig.Config, opts ...ContextOption) (*SystemContext, error) {
	if cfg == nil {
		return nil, fmt.Errorf("appconfig.Config is required")
	}

	var ov overrides
	for _, opt := range opts {
		if opt != nil {
			opt(&ov)
		}
	}

	obs := ov.obs
	if obs == nil {
		obs = observability.NewPromObs()
	}

	var err error
	settingsStore := ov.settings
	if settingsStore == nil {
		settingsStore, err = settingsstore.Open(cfg.Storage.SettingsPath)
		if err != nil {
			return nil, fmt.Errorf("open settings store: %w", err)
		}
	}

	restartStore, err := restartreason.Open(cfg.Storage.RestartReasonPath)
	if err != nil {
		return nil, fmt.Errorf("open restart reason store: %w", err)
	}

	board := ov.board
	if board == nil {
		board = boardadapter.New(3.9)
	}

	modem := ov.modem
	if modem == nil {
		modem = celladapter.New()
	}

	newMQTT := ov.newMQTT
	if newMQTT == nil {
		newMQTT = commspump.NewPahoClient
	}

	var clock ports.Clock = newWallClock()
	if ov.clock != nil {
		clock = ov.clock
	}
	b := bus.NewSystemBus(obs)

	newSensor := ov.newSensor
	if newSensor == nil {
		newSensor = ports.SensorFactory(func(sensorType int) (ports.Sensor, error) {
			if cfg.Sensor.Simulated {
				return sensoradapter.NewFake(), nil
			}
			return sensoradapter.NewSensor(sensorType)
		})
	}

	samplingAct := sampling.New(b, board, settingsStore, clock, obs, newSensor)
	aggAct := aggregation.New(b, settingsStore, obs)
	comms := commspump.New(b, settingsStore, modem, obs, clock, newMQTT)
	orch := orchestrator.New(b, settingsStore, board, samplingAct, aggAct, samplingAct, nil, obs, clock)
	powerMgr := power.New(board, restartStore, comms, orch, aggAct, samplingAct, clock, obs)

	// The orchestrator's Sleeper collaborator is the power manager, but the
	// two are constructed in a cycle (power manager needs the orchestrator's
	// Stop, orchestrator needs the power manager's RequestSleep). Break the
	// cycle by injecting the sleeper after both exist.
	orch.SetSleeper(powerMgr)

	sc := &SystemContext{
		cfg:         cfg,
		obs:         obs,
		clock:       clock,
		settings:    settingsStore,
		restart:     restartStore,
		board:       board,
		b:           b,
		samplingAct: samplingAct,
		aggAct:      aggAct,
		comms:       comms,
		orch:        orch,
		powerMgr:    powerMgr,
	}
	return sc, nil
}

// Start launches the sampling and aggregation activity goroutines and the
// orchestrator's initial state entry. It returns immediately; call Run to
// also drive the cooperative loop and block on a context.
func (sc *SystemContext) Start() {
	sc.stopSampling = sc.samplingAct.Run(sc.clock.NowMs)
	sc.stopAgg = sc.aggAct.Run(sc.clock.NowMs)
	sc.orch.Start(sc.clock.NowMs())
	sc.startMetrics()
}

// Run starts the node and drives its cooperative loop (comms pump, then
// orchestrator, then power manager) until ctx is cancelled or the power
// manager executes a sleep transaction.
func (sc *SystemContext) Run(ctx context.Context) error {
	sc.Start()
	defer sc.Shutdown(context.Background())

	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			sc.comms.LoopOnce()
			sc.orch.Tick(sc.clock.NowMs())
			if sc.powerMgr.Service() {
				return nil
			}
		}
	}
}

// Shutdown stops the sampling/aggregation goroutines and the metrics
// server. It does not touch the power manager's sleep transaction, which
// owns its own shutdown ordering.
func (sc *SystemContext) Shutdown(ctx context.Context) error {
	var errs []error

	if sc.metricsSrv != nil {
		if err := sc.metricsSrv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs = append(errs, err)
		}
	}

	if !sc.orch.Stopped() {
		if sc.stopAgg != nil {
			sc.aggAct.Stop()
			sc.stopAgg()
		}
		if sc.stopSampling != nil {
			sc.samplingAct.Stop()
			sc.stopSampling()
		}
	}

	return errors.Join(errs...)
}

func (sc *SystemContext) startMetrics() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	sc.metricsSrv = &http.Server{Addr: sc.cfg.Metrics.Addr, Handler: mux}
	go func() {
		if err := sc.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sc.obs.LogError("system: metrics server exited", err)
		}
	}()
}

// Orchestrator exposes the wired orchestrator.
func (sc *SystemContext) Orchestrator() *orchestrator.Orchestrator { return sc.orch }

// Settings exposes the wired settings store.
func (sc *SystemContext) Settings() ports.SettingsStore { return sc.settings }
