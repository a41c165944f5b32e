// Command avcapture runs a capture pipeline on a registered device until
// interrupted, optionally streaming frames as RTP and serving its status
// over HTTP.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pion/avcapture"
	"github.com/pion/avcapture/internal/logging"
	"github.com/pion/avcapture/internal/statusserver"
	"github.com/pion/avcapture/pkg/driver"
	_ "github.com/pion/avcapture/pkg/driver/camera" // This is required to register camera adapter
	_ "github.com/pion/avcapture/pkg/driver/screen" // This is required to register screen adapter
	_ "github.com/pion/avcapture/pkg/driver/synthetic"
	"github.com/pion/avcapture/pkg/sink/rtpsink"
	pionlogging "github.com/pion/logging"
)

var logger = logging.NewLogger("avcapture/cmd")

func main() {
	configPath := flag.String("config", "", "yaml configuration file")
	device := flag.String("device", "", "label of the device to capture from, highest priority when empty")
	list := flag.Bool("list", false, "list registered devices and exit")
	rtpDest := flag.String("rtp", "", "host:port to stream RTP to, RTCP goes to port+1")
	statusAddr := flag.String("status", "", "address to serve /health and /status on")
	verbose := flag.Bool("v", false, "log the pipeline at debug level")
	flag.Parse()

	if *list {
		for _, info := range avcapture.EnumerateDevices() {
			fmt.Printf("%s\t%s\t%s\n", info.DeviceID, info.DeviceType, info.Label)
		}
		return
	}

	if err := run(*configPath, *device, *rtpDest, *statusAddr, *verbose); err != nil {
		fmt.Fprintf(os.Stderr, "avcapture: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, device, rtpDest, statusAddr string, verbose bool) error {
	cfg := avcapture.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = avcapture.LoadConfig(configPath); err != nil {
			return err
		}
	}

	var filter driver.FilterFn
	if device != "" {
		filter = driver.FilterLabel(device)
	}
	d, props, err := avcapture.SelectDevice(filter, cfg.Media)
	if err != nil {
		return err
	}
	logger.Infof("capturing from %s (%s) at %s", d.Info().Label, d.ID(), props)
	cfg.Media = props

	if err := d.Open(); err != nil {
		return fmt.Errorf("open %s: %w", d.Info().Label, err)
	}
	defer func() {
		if err := d.Close(); err != nil {
			logger.Warnf("close %s: %v", d.Info().Label, err)
		}
	}()

	sink := avcapture.Discard
	if rtpDest != "" {
		rtpConn, rtcpConn, err := dialRTP(rtpDest)
		if err != nil {
			return err
		}
		defer rtpConn.Close()
		defer rtcpConn.Close()

		s, err := rtpsink.New(rtpConn, rtcpConn, rtpsink.Config{Media: cfg.Media})
		if err != nil {
			return err
		}
		sink = s
	}

	var opts []avcapture.Option
	if verbose {
		f := pionlogging.NewDefaultLoggerFactory()
		f.DefaultLogLevel = pionlogging.LogLevelDebug
		opts = append(opts, avcapture.WithLoggerFactory(f))
	}

	c := avcapture.New(d, sink, cfg, opts...)
	defer c.Close()

	if err := c.Init(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if statusAddr != "" {
		srv := statusserver.New(statusAddr, c)
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Errorf("status server: %v", err)
			}
		}()
	}

	if err := c.Run(); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		logger.Info("interrupted, stopping")
	case <-c.Done():
	}

	if err := c.Close(); err != nil {
		return err
	}
	return c.Err()
}

// dialRTP connects to host:port for RTP and host:port+1 for RTCP.
func dialRTP(dest string) (net.Conn, net.Conn, error) {
	host, portStr, err := net.SplitHostPort(dest)
	if err != nil {
		return nil, nil, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, nil, fmt.Errorf("rtp port: %w", err)
	}

	rtpConn, err := net.Dial("udp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, nil, err
	}
	rtcpConn, err := net.Dial("udp", net.JoinHostPort(host, strconv.Itoa(port+1)))
	if err != nil {
		rtpConn.Close()
		return nil, nil, err
	}
	return rtpConn, rtcpConn, nil
}
