// Command octaworld-demo is a small host application exercising the
// octaworld core: it streams a synthetic scatter of items through a
// WorldGrid as a simulated observer walks across the world.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"reflect"
	"syscall"
	"time"

	"github.com/aukilabs/go-tooling/pkg/cli"
	"github.com/aukilabs/go-tooling/pkg/errors"
	"github.com/aukilabs/go-tooling/pkg/logs"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"octaworld/pkg/octaworld"
)

// Without this, garble would obfuscate the config struct's field names,
// which breaks the cli package's struct-tag reflection.
// https://github.com/burrowers/garble/issues/403
var _ = reflect.TypeOf(config{})

type config struct {
	MetricsAddr string        `cli:"" env:"OCTAWORLD_METRICS_ADDR" help:"Listening address for the /metrics endpoint. Empty disables it."`
	LogLevel    string        `cli:"" env:"OCTAWORLD_LOG_LEVEL"    help:"Log level (debug|info|warning|error)."`
	ItemCount   int           `cli:"" env:"OCTAWORLD_ITEM_COUNT"   help:"Number of synthetic items to scatter across the world."`
	CellSize    float64       `cli:"" env:"OCTAWORLD_CELL_SIZE"    help:"World grid cell size on X and Y."`
	WorkerCount int           `cli:"" env:"OCTAWORLD_WORKER_COUNT" help:"Number of cell-loading worker goroutines."`
	TickRate    time.Duration `cli:"" env:"OCTAWORLD_TICK_RATE"    help:"Interval between simulated observer moves."`
}

type sample struct {
	Name string
}

func main() {
	conf := config{
		MetricsAddr: "",
		LogLevel:    logs.InfoLevel.String(),
		ItemCount:   5000,
		CellSize:    100,
		WorkerCount: 4,
		TickRate:    200 * time.Millisecond,
	}

	ctx, cancel := cli.ContextWithSignals(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cli.Register().
		Help("Streams a synthetic scatter of items through an octaworld WorldGrid.").
		Options(&conf)
	cli.Load()

	logs.SetLevel(logs.ParseLevel(conf.LogLevel))

	if conf.MetricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())
			if err := http.ListenAndServe(conf.MetricsAddr, mux); err != nil {
				logs.Warn(errors.New("metrics server stopped").Wrap(err))
			}
		}()
	}

	gridConfig := octaworld.DefaultWorldGridConfig()
	gridConfig.CellSizeX = conf.CellSize
	gridConfig.CellSizeY = conf.CellSize
	gridConfig.WorkerCount = conf.WorkerCount

	grid, err := octaworld.NewWorldGrid[sample](gridConfig)
	if err != nil {
		logs.Fatal(errors.New("building world grid failed").Wrap(err))
	}
	defer grid.Shutdown()

	scatter(grid, conf.ItemCount, conf.CellSize)

	ticker := time.NewTicker(conf.TickRate)
	defer ticker.Stop()

	var elapsed time.Duration
	for {
		select {
		case <-ctx.Done():
			logs.Info("shutting down")
			return

		case <-ticker.C:
			elapsed += conf.TickRate
			observer := octaworld.Vector3{X: elapsed.Seconds() * conf.CellSize, Y: 0, Z: 0}
			grid.Update(observer)

			window := octaworld.AABB{
				Min: octaworld.Vector3{X: observer.X - conf.CellSize, Y: observer.Y - conf.CellSize, Z: -1e9},
				Max: octaworld.Vector3{X: observer.X + conf.CellSize, Y: observer.Y + conf.CellSize, Z: 1e9},
			}
			hits := grid.Query(window)
			logs.WithTag("observer_x", observer.X).WithTag("resident_hits", len(hits)).
				Info(fmt.Sprintf("tick: %d items visible near observer", len(hits)))
		}
	}
}

func scatter(grid *octaworld.WorldGrid[sample], n int, spread float64) {
	items := make([]octaworld.Item[sample], n)
	for i := 0; i < n; i++ {
		x := rand.Float64() * spread * 10
		y := rand.Float64() * spread * 10
		items[i] = octaworld.Item[sample]{
			Payload: sample{Name: fmt.Sprintf("item-%d", i)},
			Box: octaworld.AABB{
				Min: octaworld.Vector3{X: x, Y: y, Z: 0},
				Max: octaworld.Vector3{X: x + 1, Y: y + 1, Z: 0},
			},
		}
	}
	grid.Insert(items)
}
