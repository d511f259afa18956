package i2c

import (
	"context"
	"fmt"
	"sync"

	"github.com/maple-underscore/x11stream"
)

// Valid 7-bit slave address window for probing and transfers.
const ScanFirst = 0x08
const ScanLast = 0x77

var _ x11stream.Bus = &Adapter{}
var _ x11stream.Scanner = &Adapter{}

// Adapter presents the bus transaction contract display drivers expect
// on top of a bridge device that only supports single-shot addressed
// writes and reads. Every transfer ends with a stop condition emitted
// by the bridge; requests to suppress it are accepted and ignored.
//
// The adapter serializes transfers internally, so the TryLock/Unlock
// protocol always succeeds and needs no pairing.
type Adapter struct {
	mx  sync.Mutex
	dev x11stream.BridgeDevice
}

func NewAdapter(dev x11stream.BridgeDevice) *Adapter {
	return &Adapter{dev: dev}
}

// Write sends the whole buffer to address in one transaction.
func (a *Adapter) Write(ctx context.Context, address byte, buffer []byte, opts ...x11stream.TxOption) error {
	return a.WriteRange(ctx, address, buffer, 0, len(buffer), opts...)
}

// WriteRange sends buffer[start:end] to address in one transaction.
// An empty range performs no transfer and succeeds.
func (a *Adapter) WriteRange(ctx context.Context, address byte, buffer []byte, start, end int, opts ...x11stream.TxOption) error {
	x11stream.ApplyTxOptions(opts)
	if err := checkRange(buffer, start, end); err != nil {
		return err
	}
	if start == end {
		return nil
	}
	a.mx.Lock()
	defer a.mx.Unlock()
	if err := a.dev.WriteToAddr(ctx, address, buffer[start:end]); err != nil {
		return &x11stream.DeviceError{Address: address, Err: err}
	}
	return nil
}

// ReadInto fills the whole buffer from address in one transaction.
func (a *Adapter) ReadInto(ctx context.Context, address byte, buffer []byte, opts ...x11stream.TxOption) error {
	return a.ReadIntoRange(ctx, address, buffer, 0, len(buffer), opts...)
}

// ReadIntoRange reads end-start bytes from address into
// buffer[start:end], preserving order. On failure the content of the
// range is unspecified. An empty range performs no transfer and
// succeeds.
func (a *Adapter) ReadIntoRange(ctx context.Context, address byte, buffer []byte, start, end int, opts ...x11stream.TxOption) error {
	x11stream.ApplyTxOptions(opts)
	if err := checkRange(buffer, start, end); err != nil {
		return err
	}
	if start == end {
		return nil
	}
	a.mx.Lock()
	defer a.mx.Unlock()
	if err := a.dev.ReadFromAddr(ctx, address, buffer[start:end]); err != nil {
		return &x11stream.DeviceError{Address: address, Err: err}
	}
	return nil
}

// WriteThenRead writes out to address, then reads len(in) bytes back
// into in, as two independent transactions. The bridge cannot hold the
// bus between the phases, so each one ends with its own stop condition
// and another master could interject between them; this is a protocol
// approximation of a repeated-start read, not the real thing. An empty
// out skips the write phase, an empty in skips the read phase.
func (a *Adapter) WriteThenRead(ctx context.Context, address byte, out, in []byte, opts ...x11stream.TxOption) error {
	return a.WriteThenReadRange(ctx, address, out, 0, len(out), in, 0, len(in), opts...)
}

// WriteThenReadRange is WriteThenRead over the ranges out[outStart:outEnd]
// and in[inStart:inEnd].
func (a *Adapter) WriteThenReadRange(ctx context.Context, address byte, out []byte, outStart, outEnd int, in []byte, inStart, inEnd int, opts ...x11stream.TxOption) error {
	if err := a.WriteRange(ctx, address, out, outStart, outEnd, opts...); err != nil {
		return err
	}
	return a.ReadIntoRange(ctx, address, in, inStart, inEnd, opts...)
}

// TryLock always succeeds: the adapter serializes transfers itself and
// the bridge exposes no contended-ownership model. No paired Unlock is
// required.
func (a *Adapter) TryLock() bool { return true }

// Unlock is a no-op, provided for symmetry with bus-lock protocols
// expected by display driver callers.
func (a *Adapter) Unlock() {}

// Scan probes addresses 0x08 through 0x77 in ascending order with a
// one byte read and returns those that acknowledged. Any probe
// failure, whatever its cause, counts as an absent device. Scan is a
// sweep of independent probes, not an atomic operation: transfers
// issued by other callers may interleave between probes, so do not run
// it while a render is outstanding.
func (a *Adapter) Scan(ctx context.Context) ([]byte, error) {
	var found []byte
	probe := make([]byte, 1)
	for addr := byte(ScanFirst); addr <= ScanLast; addr++ {
		if err := ctx.Err(); err != nil {
			return found, err
		}
		if err := a.ReadInto(ctx, addr, probe); err != nil {
			continue
		}
		found = append(found, addr)
	}
	return found, nil
}

func checkRange(buffer []byte, start, end int) error {
	if start < 0 || start > end || end > len(buffer) {
		return fmt.Errorf("invalid range [%d:%d] for buffer of %d bytes", start, end, len(buffer))
	}
	return nil
}
