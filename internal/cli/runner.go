package cli

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/blockberries/eeproxy"
	"github.com/blockberries/eeproxy/codec"
	"github.com/blockberries/eeproxy/example/counter"
	"github.com/blockberries/eeproxy/example/sample"
	"github.com/blockberries/eeproxy/internal/config"
	"github.com/blockberries/eeproxy/manager"
	"github.com/blockberries/eeproxy/store/memory"
	"github.com/blockberries/eeproxy/store/sqlite"
)

func newHandler(name string, log zerolog.Logger) (eeproxy.Handler, error) {
	switch name {
	case "sample":
		return sample.New(log), nil
	case "counter":
		return counter.New(), nil
	default:
		return nil, fmt.Errorf("unknown handler %q", name)
	}
}

// backend is a seeded manager.Backend that can count the events an
// invocation emitted.
type backend struct {
	manager.Backend
	events func(ctx context.Context, code string) (int, error)
	close  func() error
}

// openBackend opens the SQLite store at cfg.DB, or a memory store when
// DB is empty, and seeds it with the configured info and the scenario's
// balances.
func openBackend(ctx context.Context, cfg config.Config, sc *Scenario, reg *codec.Registry) (*backend, error) {
	balances, err := sc.balances()
	if err != nil {
		return nil, err
	}
	info := cfg.Info.InfoMap()

	if cfg.DB == "" {
		st := memory.New(info)
		for addr, v := range balances {
			st.SetBalance(addr, v)
		}
		return &backend{
			Backend: st,
			events: func(_ context.Context, code string) (int, error) {
				n := 0
				for _, rec := range st.Events() {
					if rec.Code == code {
						n++
					}
				}
				return n, nil
			},
			close: func() error { return nil },
		}, nil
	}

	st, err := sqlite.Open(cfg.DB, reg)
	if err != nil {
		return nil, err
	}
	for key, v := range info {
		if err := st.SetInfo(ctx, key, v); err != nil {
			st.Close()
			return nil, fmt.Errorf("seed info %s: %w", key, err)
		}
	}
	for addr, v := range balances {
		if err := st.SetBalance(ctx, addr, v); err != nil {
			st.Close()
			return nil, fmt.Errorf("seed balance %s: %w", addr, err)
		}
	}
	return &backend{
		Backend: st,
		events: func(ctx context.Context, code string) (int, error) {
			recs, err := st.Events(ctx, code)
			return len(recs), err
		},
		close: st.Close,
	}, nil
}

// runScenario handshakes with the engine behind conn and runs every
// invocation of sc against b. Invocations whose status differs from the
// expected one are counted in Report.Failed; transport errors abort.
func runScenario(ctx context.Context, conn *manager.Conn, sc *Scenario, b *backend, log zerolog.Logger) (Report, error) {
	report := Report{Scenario: sc.Name}

	v, err := conn.Handshake(ctx)
	if err != nil {
		return report, fmt.Errorf("handshake: %w", err)
	}
	report.Engine = EngineInfo{Version: v.Version, PID: v.PID, Type: v.Type}

	for i, inv := range sc.Invocations {
		req, err := inv.Request()
		if err != nil {
			return report, fmt.Errorf("invocation %d: %w", i, err)
		}
		want, err := inv.expected()
		if err != nil {
			return report, fmt.Errorf("invocation %d: %w", i, err)
		}

		res, err := conn.Invoke(ctx, req, b)
		if err != nil {
			return report, fmt.Errorf("invoke %s: %w", req.Method, err)
		}

		rec := ResultRecord{
			Code:   req.Code,
			Method: req.Method,
			Status: res.Status.String(),
			Used:   "0",
			Result: hex.EncodeToString(res.Result),
			Pass:   res.Status == want,
		}
		if res.Used != nil {
			rec.Used = res.Used.String()
		}
		if inv.Expect != "" {
			rec.Expected = want.String()
		}
		if !rec.Pass {
			report.Failed++
		}
		report.Results = append(report.Results, rec)

		n, err := b.events(ctx, req.Code)
		if err != nil {
			return report, fmt.Errorf("count events: %w", err)
		}
		report.Events += n

		log.Debug().
			Str("code", req.Code).
			Str("method", req.Method).
			Stringer("status", res.Status).
			Bool("pass", rec.Pass).
			Msg("scenario_step")
	}
	return report, nil
}

// finish writes the report and maps failures to an exit error.
func finish(out OutputFormatter, report Report) error {
	if err := out.Write(report); err != nil {
		return WrapExitError(ExitCommandError, "write report", err)
	}
	if report.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d invocations failed", report.Failed, len(report.Results)))
	}
	return nil
}
