// Command loadtest measures call round trips through the actor runtime.
//
// Pairs of actors play call/response ping-pong across pooled threads until
// N round trips completed.
//
// Configure via environment variables:
//
//	N=200000         Total number of round trips
//	P=64             Number of actor pairs
//	T=<num cpu>      Number of pooled threads
//	B=20000          Batch size for progress reporting
//	METRICS_ADDR=    Serve Prometheus metrics on this address while running
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	prom "github.com/codewandler/actorrt/adapters/prometheus"
	"github.com/codewandler/actorrt/core/actor"
	"github.com/codewandler/actorrt/core/app"
)

// === Config ===

var (
	totalCalls  = getEnvInt("N", 200_000)
	numPairs    = getEnvInt("P", 64)
	numThreads  = getEnvInt("T", runtime.NumCPU())
	batchSize   = getEnvInt("B", 20_000)
	metricsAddr = getEnv("METRICS_ADDR", "")
)

func getEnv(key, fallback string) string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		return fallback
	}
	return v
}

const (
	codePing actor.Code = 2000
	codeGo   actor.Code = 2001
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(log)

	if err := run(ctx, log); err != nil {
		log.Error("loadtest failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	runID := gonanoid.Must(6)

	fmt.Println("=== Load Test Configuration ===")
	fmt.Printf("  Run:             %s\n", runID)
	fmt.Printf("  Round trips:     %d\n", totalCalls)
	fmt.Printf("  Actor pairs:     %d\n", numPairs)
	fmt.Printf("  Threads:         %d\n", numThreads)
	fmt.Println()

	reg := prometheus.NewRegistry()
	cfg := app.DefaultConfig()
	cfg.ID = "loadtest-" + runID
	cfg.LogLevel = "warn"
	cfg.Threads.Count = numThreads

	a, err := app.New(app.Options{Context: ctx, Config: cfg, Metrics: prom.NewRuntimeMetrics(reg)})
	if err != nil {
		return err
	}
	sys := a.System()
	prom.RegisterStats(reg, sys.Stats)

	g, gctx := errgroup.WithContext(ctx)

	var srv *http.Server
	if metricsAddr != "" {
		srv = &http.Server{Addr: metricsAddr, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		g.Go(func() error {
			log.Info("serving metrics", slog.String("addr", metricsAddr))
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	var (
		completed atomic.Int64
		failed    atomic.Int64
		finished  = make(chan struct{}, numPairs)
	)
	perPair := max(totalCalls/numPairs, 1)

	startAt := time.Now()
	for range numPairs {
		ponger, err := sys.AddActor(actor.HandlerFunc(pong))
		if err != nil {
			return err
		}
		pinger, err := sys.AddActor(&pingActor{
			target:    ponger,
			remaining: perPair,
			completed: &completed,
			failed:    &failed,
			finished:  finished,
		})
		if err != nil {
			return err
		}
		sys.Send(pinger, codeGo, nil, 0)
	}

	g.Go(func() error {
		defer func() {
			if srv != nil {
				_ = srv.Close()
			}
		}()
		return report(gctx, startAt, &completed, finished)
	})

	err = g.Wait()

	took := time.Since(startAt)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if sErr := a.Shutdown(shutdownCtx); sErr != nil {
		log.Warn("shutdown incomplete", slog.Any("error", sErr))
	}

	n := completed.Load()
	println("")
	println("==========================================")
	fmt.Printf("  total runtime: %.3f seconds\n", took.Seconds())
	fmt.Printf("    round trips: %d\n", n)
	fmt.Printf("         failed: %d\n", failed.Load())
	fmt.Printf("  avg. trips/s: %d\n", int(float64(n)/took.Seconds()))
	return err
}

func report(ctx context.Context, startAt time.Time, completed *atomic.Int64, finished <-chan struct{}) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	var (
		done      int
		lastCount int64
		lastTime  = startAt
	)
	for done < numPairs {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-finished:
			done++
		case <-ticker.C:
			n := completed.Load()
			if n-lastCount < int64(batchSize) {
				continue
			}
			now := time.Now()
			took := now.Sub(lastTime)
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			fmt.Printf(" | %8d trips | %6d ms | %8d trips/s | %4d MiB mem |\n",
				n-lastCount, took.Milliseconds(), int(float64(n-lastCount)/took.Seconds()), ms.Alloc/1024/1024)
			lastCount, lastTime = n, now
		}
	}
	return nil
}

func pong(rt actor.Runtime, self actor.ID, msg actor.Message) error {
	if msg.Code == codePing {
		rt.SendResult(msg.Sender, msg.CallID, actor.CodeCompleted, msg.Payload, self)
	}
	return nil
}

// pingActor calls its target until remaining reaches zero.
type pingActor struct {
	target    actor.ID
	remaining int
	pending   actor.CallID

	completed *atomic.Int64
	failed    *atomic.Int64
	finished  chan<- struct{}
}

func (p *pingActor) Handle(rt actor.Runtime, self actor.ID, msg actor.Message) error {
	switch {
	case msg.Code == codeGo:
	case msg.IsResult() && msg.CallID == p.pending:
		if msg.Code == actor.CodeCompleted {
			p.completed.Add(1)
		} else {
			p.failed.Add(1)
		}
		p.remaining--
	default:
		return nil
	}

	if p.remaining == 0 {
		p.finished <- struct{}{}
		return nil
	}
	p.pending = rt.Call(p.target, codePing, p.remaining, self, 5*time.Second)
	return nil
}

func (p *pingActor) Cleanup(actor.Runtime, actor.ID) error { return nil }
