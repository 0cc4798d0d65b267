package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"os"
	"runtime/pprof"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/delaneyj/turnsignal"
	"github.com/jamiealquiza/tachymeter"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli/v3"
)

const (
	itersKey   = "iters"
	profileKey = "profile"
)

func main() {
	cmd := &cli.Command{
		Name:  "benchmark",
		Usage: "Measure write-to-listener propagation latency",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  itersKey,
				Usage: "Writes sampled per graph shape",
				Value: 100,
			},
			&cli.StringFlag{
				Name:  profileKey,
				Usage: "CPU profile output path, empty disables",
				Value: "default.pgo",
			},
		},
		Action: run,
	}
	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

var (
	ww = []int{1, 10, 100, 1_000}
	hh = []int{1, 10, 100, 1_000}
)

func run(ctx context.Context, cmd *cli.Command) error {
	iters := int(cmd.Int(itersKey))

	if path := cmd.String(profileKey); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			return err
		}
		defer pprof.StopCPUProfile()
	}

	log.Printf("warming up")

	tbl := table.NewWriter()
	tbl.SetTitle("Turn Signals")
	tbl.SetOutputMirror(os.Stdout)
	tbl.AppendHeader(table.Row{"benchmark", "avg", "min", "p75", "p99", "max", "stream hash"})

	for _, w := range ww {
		for _, h := range hh {
			tach := tachymeter.New(&tachymeter.Config{Size: iters})

			rctx := turnsignal.NewReactiveContext()
			src := turnsignal.Signal(rctx, 1)

			// Every notified value is folded into a digest by the chain
			// tails, so two runs over the same shape must agree on the hash.
			digest := xxhash.New()
			var buf [8]byte
			unsubs := make([]func(), 0, w)
			for i := 0; i < w; i++ {
				var last interface{ Value() int } = src
				for j := 0; j < h; j++ {
					prev := last
					last = turnsignal.Computed(rctx, func() int {
						return prev.Value() + 1
					})
				}

				tail := last.(*turnsignal.ReadonlySignal[int])
				unsubs = append(unsubs, tail.Subscribe(func(v int) {
					binary.LittleEndian.PutUint64(buf[:], uint64(v))
					digest.Write(buf[:])
				}))
			}

			for i := 0; i < iters; i++ {
				start := time.Now()
				src.Set(src.Value() + 1)
				tach.AddTime(time.Since(start))
			}

			for _, unsub := range unsubs {
				unsub()
			}

			calc := tach.Calc()
			tbl.AppendRows([]table.Row{
				{
					fmt.Sprintf("propagate: %d * %d", w, h),
					calc.Time.Avg,
					calc.Time.Min,
					calc.Time.P75,
					calc.Time.P99,
					calc.Time.Max,
					fmt.Sprintf("%016x", digest.Sum64()),
				},
			})
		}
	}

	tbl.Render()
	return nil
}
