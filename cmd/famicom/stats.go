package main

import (
	"log/slog"

	"github.com/go-echarts/statsview"
	"github.com/go-echarts/statsview/viewer"
)

const (
	statsAddress = "localhost:12600"
	statsPath    = "/debug/statsview"
)

// launchStatsView serves live runtime charts (heap, goroutines, GC) in
// the background.
func launchStatsView() {
	viewer.SetConfiguration(viewer.WithAddr(statsAddress))
	mgr := statsview.New()
	go mgr.Start()
	slog.Info("Stats server available", "url", "http://"+statsAddress+statsPath)
}
