package monitor

import (
	"context"
	"errors"
	"net"
	"os/exec"
	"strings"
	"time"
)

// Sentinel values shown when a provider cannot produce a real answer.
// Providers degrade to sentinels instead of propagating errors; the
// loop never fails while sampling.
const (
	SentinelNoIP    = "No IP"
	SentinelUnknown = "Unknown"

	StatusStreaming = "Streaming"
	StatusStopped   = "Stopped"
)

// Each shell-out gets this long to answer before the sample degrades.
const providerTimeout = 2 * time.Second

const streamService = "x11stream.service"

// Provider produces one status string. A returned error is absorbed by
// the loop as the provider's sentinel value.
type Provider func(ctx context.Context) (string, error)

// LocalIP resolves the address of the interface holding the default
// route by asking the routing table which source address would be
// used to reach 1.0.0.0, with `hostname -I` as fallback.
func LocalIP(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "ip", "route", "get", "1").Output()
	if err == nil {
		// field 7 holds the source address
		fields := strings.Fields(string(out))
		if len(fields) >= 7 {
			if ip := net.ParseIP(fields[6]); ip != nil && ip.To4() != nil {
				return fields[6], nil
			}
		}
	}

	out, err = exec.CommandContext(ctx, "hostname", "-I").Output()
	if err != nil {
		return SentinelNoIP, err
	}
	if ips := strings.Fields(string(out)); len(ips) > 0 {
		return ips[0], nil
	}
	return SentinelNoIP, nil
}

// StreamStatus reports whether the capture service is running, with a
// process-table fallback when systemd is not available.
func StreamStatus(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, providerTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, "systemctl", "is-active", streamService).Output()
	if err == nil {
		if strings.TrimSpace(string(out)) == "active" {
			return StatusStreaming, nil
		}
		return StatusStopped, nil
	}
	var exit *exec.ExitError
	if errors.As(err, &exit) && exit.ExitCode() > 0 && len(out) > 0 {
		// systemctl answered "inactive"/"failed" with a non-zero code
		return StatusStopped, nil
	}

	// no systemd; look for the ffmpeg capture process directly
	err = exec.CommandContext(ctx, "pgrep", "-f", "ffmpeg.*x11grab").Run()
	if err == nil {
		return StatusStreaming, nil
	}
	if errors.As(err, &exit) && exit.ExitCode() == 1 {
		return StatusStopped, nil
	}
	return SentinelUnknown, err
}
