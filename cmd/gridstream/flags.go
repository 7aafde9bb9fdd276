package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gridstream/internal/config"
	"gridstream/internal/gridmath"

	"github.com/spf13/pflag"
)

type options struct {
	configPath  string
	mode        string
	goTo        string
	metricsAddr string
	logLevel    string
	fpsLimit    int

	flags *pflag.FlagSet
}

func parseFlags(args []string) (*options, error) {
	o := &options{}
	fs := pflag.NewFlagSet("gridstream", pflag.ContinueOnError)
	fs.StringVarP(&o.configPath, "config", "c", "", "path to a YAML settings file")
	fs.StringVar(&o.mode, "mode", "", "navigation mode: simple or throttled")
	fs.StringVar(&o.goTo, "goto", "", "cell to center on at start, as x,y")
	fs.StringVar(&o.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")
	fs.StringVar(&o.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	fs.IntVar(&o.fpsLimit, "fps", 0, "frame rate cap, 0 for unlimited")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	o.flags = fs
	return o, nil
}

// apply overrides s with every flag given on the command line.
func (o *options) apply(s *config.Settings) {
	if o.flags.Changed("mode") {
		s.Navigation.Mode = o.mode
	}
	if o.flags.Changed("metrics-addr") {
		s.MetricsAddr = o.metricsAddr
	}
	if o.flags.Changed("log-level") {
		s.Log.Level = o.logLevel
	}
	if o.flags.Changed("fps") {
		s.FPSLimit = o.fpsLimit
	}
}

// parseCell reads "x,y" into a cell coordinate.
func parseCell(s string) (gridmath.CellCoord, error) {
	xs, ys, ok := strings.Cut(s, ",")
	if !ok {
		return gridmath.CellCoord{}, errors.New("expected x,y")
	}
	x, err := strconv.Atoi(strings.TrimSpace(xs))
	if err != nil {
		return gridmath.CellCoord{}, fmt.Errorf("x: %w", err)
	}
	y, err := strconv.Atoi(strings.TrimSpace(ys))
	if err != nil {
		return gridmath.CellCoord{}, fmt.Errorf("y: %w", err)
	}
	return gridmath.CellCoord{X: x, Y: y}, nil
}
