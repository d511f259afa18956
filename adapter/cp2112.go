package adapter

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/maple-underscore/x11stream"

	"github.com/karalabe/hid"

	"github.com/maple-underscore/x11stream/cmd/oledstatus/console"
)

const VendorID = 0x10C4
const ProductID = 0xEA90

// HID report IDs, per the CP2112 interface specification (AN495).
const (
	reportSMBusConfig        = 0x06
	reportDataReadRequest    = 0x10
	reportDataWriteRead      = 0x11
	reportDataReadForceSend  = 0x12
	reportDataReadResponse   = 0x13
	reportDataWrite          = 0x14
	reportTransferStatusReq  = 0x15
	reportTransferStatusResp = 0x16
	reportCancelTransfer     = 0x17
)

// Transfer status codes (status0 of the transfer status response).
const (
	transferIdle     = 0x00
	transferBusy     = 0x01
	transferComplete = 0x02
	transferError    = 0x03
)

// A single data write report carries at most 61 payload bytes; a read
// request may ask for up to 512.
const maxWriteLen = 61
const maxReadLen = 512

const DefaultClockSpeed = 100_000

var ErrTransferFailed = errors.New("transfer failed")
var ErrNotOpen = errors.New("bridge device not open")

// CP2112 drives a Silicon Labs CP2112 USB-to-I2C bridge over raw HID
// reports. The device supports one transfer at a time and always
// emits a stop condition at the end of it; there is no repeated start.
type CP2112 struct {
	mx            sync.Mutex
	dev           *hid.Device
	request       []byte
	response      []byte
	responseWait  time.Duration
	statusRetries int
}

// TransferStatus is the decoded transfer status response.
type TransferStatus struct {
	State     string `yaml:"state"`
	Detail    int    `yaml:"detail"`
	Retries   uint16 `yaml:"retries"`
	BytesRead uint16 `yaml:"bytes_read"`
}

func NewCP2112() *CP2112 {
	return &CP2112{
		request:       make([]byte, 64),
		response:      make([]byte, 64),
		responseWait:  10 * time.Millisecond,
		statusRetries: 10,
	}
}

// Open locates the bridge by USB enumeration and opens its HID
// interface. Exactly one attached bridge is expected.
func (d *CP2112) Open() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.dev != nil {
		return nil
	}
	devs := hid.Enumerate(VendorID, ProductID)
	if len(devs) == 0 {
		return x11stream.ErrNoDevice
	}
	if len(devs) > 1 {
		return fmt.Errorf("ambiguous device identification: %d bridges attached", len(devs))
	}
	dev, err := devs[0].Open()
	if err != nil {
		return fmt.Errorf("error opening device: %w", err)
	}
	d.dev = dev
	return nil
}

func (d *CP2112) Close() error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if d.dev == nil {
		return nil
	}
	err := d.dev.Close()
	d.dev = nil
	return err
}

// ConfigureClock sets the bus clock speed in Hz. Must be called once
// before the first transfer.
func (d *CP2112) ConfigureClock(ctx context.Context, speed uint32) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = reportSMBusConfig
	binary.BigEndian.PutUint32(d.request[1:5], speed)
	// slave address the bridge answers to when addressed; unused here
	// but must be a valid 7-bit address
	d.request[5] = 0x02
	err := d.send(ctx, false)
	if err != nil {
		return fmt.Errorf("clock configuration failed: %w", err)
	}
	return nil
}

func (d *CP2112) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if len(buffer) == 0 {
		return nil
	}
	if len(buffer) > maxWriteLen {
		return fmt.Errorf("write of %d bytes exceeds the %d byte report limit", len(buffer), maxWriteLen)
	}
	d.resetBuffers()
	d.request[0] = reportDataWrite
	d.request[1] = address << 1
	d.request[2] = byte(len(buffer))
	copy(d.request[3:], buffer)
	err := d.send(ctx, false)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	err = d.waitTransfer(ctx)
	if err != nil {
		return fmt.Errorf("write to %x failed: %w", address, err)
	}
	return nil
}

func (d *CP2112) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	d.mx.Lock()
	defer d.mx.Unlock()
	if len(buffer) == 0 {
		return nil
	}
	if len(buffer) > maxReadLen {
		return fmt.Errorf("read of %d bytes exceeds the %d byte engine limit", len(buffer), maxReadLen)
	}
	d.resetBuffers()
	d.request[0] = reportDataReadRequest
	d.request[1] = address<<1 + 1
	binary.BigEndian.PutUint16(d.request[2:4], uint16(len(buffer)))
	err := d.send(ctx, false)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	err = d.waitTransfer(ctx)
	if err != nil {
		return fmt.Errorf("bus read from %x failed: %w", address, err)
	}
	filled := 0
	for attempt := 0; filled < len(buffer); attempt++ {
		if attempt >= d.statusRetries {
			return fmt.Errorf("incomplete read from %x: got %d of %d bytes", address, filled, len(buffer))
		}
		d.resetBuffers()
		d.request[0] = reportDataReadForceSend
		binary.BigEndian.PutUint16(d.request[1:3], uint16(len(buffer)-filled))
		err = d.send(ctx, true)
		if err != nil {
			return fmt.Errorf("error getting read data from bridge: %w", err)
		}
		if d.response[0] != reportDataReadResponse {
			return fmt.Errorf("unexpected report %#02x while reading from %x", d.response[0], address)
		}
		if d.response[1] == transferError {
			return fmt.Errorf("error reading the I2C slave data from the I2C engine")
		}
		n := int(d.response[2])
		if n > len(buffer)-filled {
			return fmt.Errorf("invalid data size byte; expected at most %d, got %d", len(buffer)-filled, n)
		}
		copy(buffer[filled:], d.response[3:3+n])
		filled += n
	}
	return nil
}

// Status queries the transfer engine without touching the bus.
func (d *CP2112) Status(ctx context.Context) (*TransferStatus, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	return d.transferStatus(ctx)
}

// Cancel aborts any in-flight transfer and reports the engine status
// afterwards. This releases the bus if the engine was stuck mid
// transaction.
func (d *CP2112) Cancel(ctx context.Context) (*TransferStatus, error) {
	d.mx.Lock()
	defer d.mx.Unlock()
	d.resetBuffers()
	d.request[0] = reportCancelTransfer
	d.request[1] = 0x01
	err := d.send(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("cancel request failed: %w", err)
	}
	return d.transferStatus(ctx)
}

// waitTransfer polls the transfer status until the engine reports
// completion. Polling is bounded; a persistently busy engine is a
// transfer failure, not a reason to wait forever.
func (d *CP2112) waitTransfer(ctx context.Context) error {
	for attempt := 0; attempt < d.statusRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		d.resetBuffers()
		d.request[0] = reportTransferStatusReq
		d.request[1] = 0x01
		err := d.send(ctx, true)
		if err != nil {
			return fmt.Errorf("status request failed: %w", err)
		}
		if d.response[0] != reportTransferStatusResp {
			return fmt.Errorf("unexpected report %#02x in status response", d.response[0])
		}
		switch d.response[1] {
		case transferComplete:
			return nil
		case transferError:
			return fmt.Errorf("%w (condition %#02x)", ErrTransferFailed, d.response[2])
		case transferBusy:
			time.Sleep(d.responseWait)
		case transferIdle:
			return fmt.Errorf("%w: engine went idle without completing", ErrTransferFailed)
		default:
			return fmt.Errorf("unknown transfer state %#02x", d.response[1])
		}
	}
	return x11stream.ErrBridgeBusy
}

func (d *CP2112) transferStatus(ctx context.Context) (*TransferStatus, error) {
	d.resetBuffers()
	d.request[0] = reportTransferStatusReq
	d.request[1] = 0x01
	err := d.send(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	return bufferToStatus(d.response), nil
}

func bufferToStatus(buffer []byte) *TransferStatus {
	/*
		1: status0 - idle / busy / complete / error
		2: status1 - condition detail (bus timeouts, NACK, arbitration)
		3-4: number of retries before completion
		5-6: number of bytes already read
	*/
	status := &TransferStatus{Detail: int(buffer[2])}
	switch buffer[1] {
	case transferIdle:
		status.State = "idle"
	case transferBusy:
		status.State = "busy"
	case transferComplete:
		status.State = "complete"
	case transferError:
		status.State = "error"
	default:
		status.State = hex.EncodeToString(buffer[1:2])
	}
	status.Retries = binary.BigEndian.Uint16(buffer[3:5])
	status.BytesRead = binary.BigEndian.Uint16(buffer[5:7])
	return status
}

func (d *CP2112) send(ctx context.Context, response bool) error {
	if d.dev == nil {
		return ErrNotOpen
	}
	verbose := console.IsVerbose(ctx)
	if verbose {
		console.Printf("sending report to bridge:\n%s\n", hex.Dump(d.request))
	}
	n, err := d.dev.Write(d.request)
	if err != nil {
		return fmt.Errorf("could not write request: %w", err)
	}
	if n != len(d.request) {
		return fmt.Errorf("short write: %d", n)
	}
	if !response {
		return nil
	}
	time.Sleep(d.responseWait)
	console.Debug("reading report from bridge")
	n, err = d.dev.Read(d.response)
	if err != nil {
		return fmt.Errorf("could not read response: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("empty response")
	}
	if verbose {
		console.Printf("read report from bridge:\n%s\n", hex.Dump(d.response))
	}
	return nil
}

func (d *CP2112) resetBuffers() {
	resetBuffer(d.request)
	resetBuffer(d.response)
}

func resetBuffer(buf []byte) {
	for i := range buf {
		buf[i] = 0x00
	}
}
