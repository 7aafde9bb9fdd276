package main

import (
	"fmt"
	"os"
	"runtime"

	"gridstream/internal/app"
	"gridstream/internal/config"
	"gridstream/internal/logging"
	"gridstream/internal/navigation"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/xlab/closer"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	opts, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		closer.Fatalln(err)
	}
	closer.Close()
}

func run(opts *options) error {
	settings, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	opts.apply(&settings)
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	config.Apply(settings)

	log, logFile, err := logging.New(settings.Log)
	if err != nil {
		return err
	}
	closer.Bind(func() { _ = logFile.Close() })

	mode, err := navigation.ParseMode(settings.Navigation.Mode)
	if err != nil {
		return err
	}

	var reg *prometheus.Registry
	if settings.MetricsAddr != "" {
		reg = app.NewRegistry()
		srv := app.StartMetricsServer(settings.MetricsAddr, reg, log)
		closer.Bind(func() { _ = srv.Close() })
	}

	if err := glfw.Init(); err != nil {
		return fmt.Errorf("init glfw: %w", err)
	}
	defer glfw.Terminate()

	window, err := app.SetupWindow(settings.Window)
	if err != nil {
		return err
	}
	defer window.Destroy()

	a, err := app.New(window, app.Options{Mode: mode, Logger: log, Registry: reg})
	if err != nil {
		return err
	}
	defer a.Close()

	if opts.goTo != "" {
		cell, err := parseCell(opts.goTo)
		if err != nil {
			return fmt.Errorf("--goto %q: %w", opts.goTo, err)
		}
		if err := a.GoTo(cell); err != nil {
			return err
		}
	}

	log.WithField("mode", mode.String()).Info("Starting gridstream")
	a.Run()
	return nil
}
