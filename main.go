package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/zeozeozeo/gopm4/config"
	"github.com/zeozeozeo/gopm4/device"
	"github.com/zeozeozeo/gopm4/display"
	"github.com/zeozeozeo/gopm4/emulator"
	"golang.org/x/sync/errgroup"
)

const (
	DEFAULT_RING_BASE        = 0x00100000 // GPU address of the primary ring
	DEFAULT_READBACK_ADDRESS = 0x000ff000 // GPU address receiving the read index
)

// A version string that can be set with
//
//	-ldflags "-X main.Build=SOMEVERSION"
//
// at compile-time.
var Build string

func init() {
	if Build == "" {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}

		Build = strings.TrimPrefix(info.Main.Version, "v")
	}
}

func main() {
	// parse arguments
	configPath := flag.String("config", "", "Path to either a file or directory to load configuration from")
	streamPath := flag.String("stream", "", "Path to a raw PM4 command stream to replay")
	showDisplay := flag.Bool("display", false, "Present the frames drawn by the command stream in a window")
	configTest := flag.Bool("test", false, "Test the config and exit. Non zero exit indicates a faulty config")
	printVersion := flag.Bool("version", false, "Print version")
	flag.Parse()

	if *printVersion {
		fmt.Printf("Version: %s\n", Build)
		os.Exit(0)
	}

	l := logrus.New()
	l.Out = os.Stdout

	c := config.NewC(l)
	if *configPath != "" {
		if err := c.Load(*configPath); err != nil {
			fmt.Printf("failed to load config: %s\n", err)
			os.Exit(1)
		}
	}

	if err := configLogger(l, c); err != nil {
		fmt.Printf("failed to configure the logger: %s\n", err)
		os.Exit(1)
	}

	if !*configTest && *streamPath == "" {
		fmt.Println("-stream flag must be set")
		flag.Usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, l, c, *streamPath, *showDisplay, *configTest); err != nil {
		l.WithError(err).Error("Command stream replay failed")
		os.Exit(1)
	}
}

// Replays the command stream at `streamPath` through the command processor.
// This goroutine plays the emulated CPU: it copies packets into the ring and
// publishes the write pointer, while a second goroutine runs the consumer
func run(ctx context.Context, l *logrus.Logger, c *config.C, streamPath string, showDisplay, configTest bool) error {
	ram, err := emulator.NewRAMFromConfig(c)
	if err != nil {
		return err
	}

	opts, err := emulator.NewOptionsFromConfig(c)
	if err != nil {
		return err
	}

	cp, err := emulator.NewCommandProcessor(l, ram, opts)
	if err != nil {
		return err
	}
	cp.Debugger = emulator.NewDebuggerFromConfig(l, c)

	dev := device.NewDevice(l)
	dev.OnInterrupt = func(cpuMask uint32) {
		l.WithField("cpu_mask", fmt.Sprintf("0x%08x", cpuMask)).Debug("Guest interrupt")
	}

	base := c.GetUint32("ring.base", DEFAULT_RING_BASE)
	pages := c.GetUint32("ring.pages", 1)
	if err := cp.Initialize(dev, base, pages); err != nil {
		return err
	}

	readback := c.GetUint32("readback.address", DEFAULT_READBACK_ADDRESS)
	if readback == 0 {
		return fmt.Errorf("%w: readback.address is required to replay a stream", emulator.ErrInvalidConfiguration)
	}
	if err := cp.EnableReadPointerWriteBack(readback, c.GetUint32("readback.period", 1)); err != nil {
		return err
	}

	if err := startStats(l, c, Build, configTest); err != nil {
		return err
	}

	if configTest {
		l.WithField("state", cp.State()).Info("Configuration is valid")
		return nil
	}

	packets, err := loadStream(l, streamPath, ram.Order)
	if err != nil {
		return err
	}

	state := cp.State()
	ring, err := emulator.NewRingBuffer(state.Base, state.Size)
	if err != nil {
		return err
	}

	writer := emulator.NewRingWriter(l, ram, cp, ring, emulator.GPUToPhysical(readback))
	writer.PollInterval = c.GetDuration("producer.poll_interval", emulator.DEFAULT_POLL_INTERVAL)
	if err := writer.Reset(); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return cp.Run(gctx)
	})
	g.Go(func() error {
		start := time.Now()
		if err := writer.WritePackets(gctx, packets); err != nil {
			return err
		}
		if err := writer.Drain(gctx); err != nil {
			return err
		}

		l.WithFields(logrus.Fields{
			"packets":  len(packets),
			"frames":   dev.Frame().Number,
			"duration": time.Since(start),
		}).Info("Command stream replayed")

		if !showDisplay {
			cancel()
		}
		return nil
	})

	if showDisplay {
		if err := display.NewWindow(dev).Run(gctx); err != nil {
			l.WithError(err).Error("Display failed")
		}
		cancel()
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Reads a command stream dump and splits it into packets
func loadStream(l *logrus.Logger, path string, order binary.ByteOrder) ([][]uint32, error) {
	l.WithField("path", path).Info("Loading command stream")
	start := time.Now()

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	words, err := emulator.LoadStream(file, order)
	if err != nil {
		return nil, err
	}

	packets, err := emulator.SplitPackets(words)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	l.WithFields(logrus.Fields{
		"words":    len(words),
		"packets":  len(packets),
		"duration": time.Since(start),
	}).Info("Loaded command stream")
	return packets, nil
}
