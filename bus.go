package x11stream

import (
	"context"
	"errors"
	"fmt"
)

// ErrBridgeBusy is returned when the bridge I2C engine rejects a
// transfer because a previous command has not completed.
var ErrBridgeBusy = errors.New("bridge I2C engine is busy (command not completed)")

// ErrNoDevice is returned when no bridge device is attached to the host.
var ErrNoDevice = errors.New("bridge device not found")

// DeviceError tags a failed bus transfer with the slave address it was
// directed at. Transfers are never retried at this level; retry policy
// belongs to whoever owns the whole operation (see monitor.Loop).
type DeviceError struct {
	Address byte
	Err     error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %#02x: %v", e.Address, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// ConfigError reports an invalid startup selection (driver name, bus
// address, multiplexer channel). It is fatal: the monitor loop must
// not be started after seeing one.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// BridgeDevice is the raw transfer surface of a bus bridge: single-shot
// addressed writes and reads, one transfer at a time, a stop condition
// emitted at the end of every transfer.
type BridgeDevice interface {
	WriteToAddr(ctx context.Context, address byte, buffer []byte) error
	ReadFromAddr(ctx context.Context, address byte, buffer []byte) error
}

// Bus is the transaction contract display drivers consume. Range
// variants operate on buffer[start:end]; an empty range is a valid,
// vacuous request that succeeds without touching the bus.
type Bus interface {
	Write(ctx context.Context, address byte, buffer []byte, opts ...TxOption) error
	WriteRange(ctx context.Context, address byte, buffer []byte, start, end int, opts ...TxOption) error
	ReadInto(ctx context.Context, address byte, buffer []byte, opts ...TxOption) error
	ReadIntoRange(ctx context.Context, address byte, buffer []byte, start, end int, opts ...TxOption) error
	WriteThenRead(ctx context.Context, address byte, out, in []byte, opts ...TxOption) error
	TryLock() bool
	Unlock()
}

// Scanner probes the bus for acknowledging devices.
type Scanner interface {
	Scan(ctx context.Context) ([]byte, error)
}

// TxOption adjusts a single bus transaction.
type TxOption func(*TxSettings)

// TxSettings is the resolved option set for one transaction.
type TxSettings struct {
	NoStop bool
}

// NoStop requests that the stop condition be suppressed at the end of
// the transaction. The bridge hardware in scope here always releases
// the bus after every transfer, so implementations accept the request
// and ignore it; callers that need a true repeated start are not
// supported.
func NoStop() TxOption {
	return func(s *TxSettings) { s.NoStop = true }
}

// ApplyTxOptions folds opts into a settings struct.
func ApplyTxOptions(opts []TxOption) TxSettings {
	var s TxSettings
	for _, o := range opts {
		o(&s)
	}
	return s
}
