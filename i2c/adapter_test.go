package i2c

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/maple-underscore/x11stream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type transfer struct {
	op      string
	address byte
	data    []byte
}

// fakeBridge records transfers and produces results from behavior
// functions, so tests can script failures per address.
type fakeBridge struct {
	transfers   []transfer
	writeResult func(address byte, buffer []byte) error
	readResult  func(address byte, buffer []byte) error
}

func (f *fakeBridge) WriteToAddr(ctx context.Context, address byte, buffer []byte) error {
	cp := make([]byte, len(buffer))
	copy(cp, buffer)
	f.transfers = append(f.transfers, transfer{op: "write", address: address, data: cp})
	if f.writeResult == nil {
		return nil
	}
	return f.writeResult(address, buffer)
}

func (f *fakeBridge) ReadFromAddr(ctx context.Context, address byte, buffer []byte) error {
	f.transfers = append(f.transfers, transfer{op: "read", address: address, data: make([]byte, len(buffer))})
	if f.readResult == nil {
		return nil
	}
	return f.readResult(address, buffer)
}

func TestAdapter_WriteRange(t *testing.T) {
	buf := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	tests := []struct {
		start, end int
		expected   []byte
	}{
		{0, 4, []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{1, 3, []byte{0xAD, 0xBE}},
		{0, 1, []byte{0xDE}},
		{3, 4, []byte{0xEF}},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%d:%d", test.start, test.end), func(t *testing.T) {
			bridge := &fakeBridge{}
			a := NewAdapter(bridge)
			err := a.WriteRange(context.Background(), 0x3C, buf, test.start, test.end)
			require.NoError(t, err)
			require.Len(t, bridge.transfers, 1)
			assert.Equal(t, "write", bridge.transfers[0].op)
			assert.Equal(t, byte(0x3C), bridge.transfers[0].address)
			assert.Equal(t, test.expected, bridge.transfers[0].data)
		})
	}
}

func TestAdapter_EmptyRangeIsNoop(t *testing.T) {
	bridge := &fakeBridge{
		writeResult: func(byte, []byte) error { return errors.New("should not be called") },
		readResult:  func(byte, []byte) error { return errors.New("should not be called") },
	}
	a := NewAdapter(bridge)
	buf := make([]byte, 8)

	assert.NoError(t, a.WriteRange(context.Background(), 0x3C, buf, 3, 3))
	assert.NoError(t, a.ReadIntoRange(context.Background(), 0x3C, buf, 0, 0))
	assert.NoError(t, a.Write(context.Background(), 0x3C, nil))
	assert.NoError(t, a.ReadInto(context.Background(), 0x3C, nil))
	assert.Empty(t, bridge.transfers)
}

func TestAdapter_InvalidRange(t *testing.T) {
	a := NewAdapter(&fakeBridge{})
	buf := make([]byte, 4)
	tests := []struct {
		name       string
		start, end int
	}{
		{"negative start", -1, 2},
		{"start after end", 3, 1},
		{"end past buffer", 0, 5},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			assert.Error(t, a.WriteRange(context.Background(), 0x3C, buf, test.start, test.end))
			assert.Error(t, a.ReadIntoRange(context.Background(), 0x3C, buf, test.start, test.end))
		})
	}
}

func TestAdapter_ReadIntoRange(t *testing.T) {
	bridge := &fakeBridge{
		readResult: func(address byte, buffer []byte) error {
			for i := range buffer {
				buffer[i] = byte(0xA0 + i)
			}
			return nil
		},
	}
	a := NewAdapter(bridge)
	buf := []byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF}
	err := a.ReadIntoRange(context.Background(), 0x3C, buf, 1, 4)
	require.NoError(t, err)
	// only buf[1:4] touched, order preserved
	assert.Equal(t, []byte{0xFF, 0xA0, 0xA1, 0xA2, 0xFF}, buf)
}

func TestAdapter_DeviceErrorCarriesAddress(t *testing.T) {
	bridge := &fakeBridge{
		writeResult: func(byte, []byte) error { return errors.New("NACK") },
	}
	a := NewAdapter(bridge)
	err := a.Write(context.Background(), 0x3D, []byte{0x00})
	require.Error(t, err)
	var devErr *x11stream.DeviceError
	require.ErrorAs(t, err, &devErr)
	assert.Equal(t, byte(0x3D), devErr.Address)
	assert.Contains(t, err.Error(), "3d")
}

func TestAdapter_WriteThenRead(t *testing.T) {
	t.Run("both phases as independent transactions", func(t *testing.T) {
		bridge := &fakeBridge{}
		a := NewAdapter(bridge)
		out := []byte{0x00, 0x01}
		in := make([]byte, 2)
		require.NoError(t, a.WriteThenRead(context.Background(), 0x3C, out, in))
		require.Len(t, bridge.transfers, 2)
		assert.Equal(t, "write", bridge.transfers[0].op)
		assert.Equal(t, "read", bridge.transfers[1].op)
	})
	t.Run("empty out equivalent to read alone", func(t *testing.T) {
		bridge := &fakeBridge{}
		a := NewAdapter(bridge)
		in := make([]byte, 3)
		require.NoError(t, a.WriteThenRead(context.Background(), 0x3C, nil, in))
		require.Len(t, bridge.transfers, 1)
		assert.Equal(t, "read", bridge.transfers[0].op)
	})
	t.Run("empty in equivalent to write alone", func(t *testing.T) {
		bridge := &fakeBridge{}
		a := NewAdapter(bridge)
		require.NoError(t, a.WriteThenRead(context.Background(), 0x3C, []byte{0xB0}, nil))
		require.Len(t, bridge.transfers, 1)
		assert.Equal(t, "write", bridge.transfers[0].op)
	})
	t.Run("write failure skips the read phase", func(t *testing.T) {
		bridge := &fakeBridge{
			writeResult: func(byte, []byte) error { return errors.New("timeout") },
		}
		a := NewAdapter(bridge)
		in := make([]byte, 1)
		require.Error(t, a.WriteThenRead(context.Background(), 0x3C, []byte{0x00}, in))
		require.Len(t, bridge.transfers, 1)
	})
}

func TestAdapter_NoStopAcceptedAndIgnored(t *testing.T) {
	bridge := &fakeBridge{}
	a := NewAdapter(bridge)
	err := a.Write(context.Background(), 0x3C, []byte{0x01}, x11stream.NoStop())
	require.NoError(t, err)
	require.Len(t, bridge.transfers, 1)
}

func TestAdapter_Scan(t *testing.T) {
	present := map[byte]bool{0x3C: true, 0x70: true, 0x08: true, 0x77: true}
	bridge := &fakeBridge{
		readResult: func(address byte, buffer []byte) error {
			if present[address] {
				return nil
			}
			return errors.New("no ack")
		},
	}
	a := NewAdapter(bridge)
	found, err := a.Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{0x08, 0x3C, 0x70, 0x77}, found)
	// exactly one probe per address in the window
	assert.Len(t, bridge.transfers, ScanLast-ScanFirst+1)
	for _, tr := range bridge.transfers {
		assert.GreaterOrEqual(t, tr.address, byte(ScanFirst))
		assert.LessOrEqual(t, tr.address, byte(ScanLast))
		assert.Len(t, tr.data, 1)
	}
}

func TestAdapter_ScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := NewAdapter(&fakeBridge{})
	_, err := a.Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdapter_LockProtocol(t *testing.T) {
	a := NewAdapter(&fakeBridge{})
	assert.True(t, a.TryLock())
	assert.True(t, a.TryLock())
	a.Unlock()
}
