package stream

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

func TestPortOptions_Normalize(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		in      PortOptions
		want    PortOptions
		wantErr bool
	}{
		{"defaults", PortOptions{}, PortOptions{BaudRate: 38400, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"explicit", PortOptions{BaudRate: 4800, DataBits: 7, StopBits: 2, Parity: "even"}, PortOptions{BaudRate: 4800, DataBits: 7, StopBits: 2, Parity: "E"}, false},
		{"negative baud", PortOptions{BaudRate: -1}, PortOptions{BaudRate: 38400, DataBits: 8, StopBits: 1, Parity: "N"}, false},
		{"odd parity", PortOptions{Parity: " o "}, PortOptions{BaudRate: 38400, DataBits: 8, StopBits: 1, Parity: "O"}, false},
		{"unsupported baud", PortOptions{BaudRate: 12345}, PortOptions{}, true},
		{"bad data bits", PortOptions{DataBits: 9}, PortOptions{}, true},
		{"bad stop bits", PortOptions{StopBits: 3}, PortOptions{}, true},
		{"bad parity", PortOptions{Parity: "mark"}, PortOptions{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Normalize()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPortOptions_SerialMode(t *testing.T) {
	t.Parallel()
	mode, err := PortOptions{BaudRate: 9600, StopBits: 2, Parity: "O"}.SerialMode()
	require.NoError(t, err)
	assert.Equal(t, &serial.Mode{BaudRate: 9600, DataBits: 8, StopBits: serial.TwoStopBits, Parity: serial.OddParity}, mode)

	_, err = PortOptions{Parity: "X"}.SerialMode()
	assert.Error(t, err)
}

type pipePort struct {
	*io.PipeReader
}

func TestSerialDialer_ReadsLines(t *testing.T) {
	t.Parallel()
	pr, pw := io.Pipe()

	var gotPath string
	var gotMode *serial.Mode
	d := &SerialDialer{
		Path: "/dev/ttyUSB0",
		Open: func(path string, mode *serial.Mode) (io.ReadCloser, error) {
			gotPath, gotMode = path, mode
			return pipePort{pr}, nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn, err := d.Dial(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB0", gotPath)
	assert.Equal(t, 38400, gotMode.BaudRate)

	go func() {
		io.WriteString(pw, "{\"context\":\"vessels.a\"}\r\n\n  \n{\"context\":\"vessels.b\"}\n")
		pw.Close()
	}()

	line, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"context":"vessels.a"}`, string(line))

	line, err = conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, `{"context":"vessels.b"}`, string(line))

	_, err = conn.Read(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, conn.Close())
}

func TestSerialDialer_ContextClosesPort(t *testing.T) {
	t.Parallel()
	pr, _ := io.Pipe()
	d := &SerialDialer{
		Path: "/dev/ttyUSB0",
		Open: func(string, *serial.Mode) (io.ReadCloser, error) { return pipePort{pr}, nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	conn, err := d.Dial(ctx)
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() {
		_, err := conn.Read(ctx)
		errc <- err
	}()
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Read did not return after cancel")
	}
}

func TestSerialDialer_CloseDetachesFromContext(t *testing.T) {
	t.Parallel()
	pr, _ := io.Pipe()
	d := &SerialDialer{
		Path: "/dev/ttyUSB0",
		Open: func(string, *serial.Mode) (io.ReadCloser, error) { return pipePort{pr}, nil },
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	conn, err := d.Dial(ctx)
	require.NoError(t, err)
	lc, ok := conn.(*lineConn)
	require.True(t, ok)

	require.NoError(t, conn.Close())
	assert.False(t, lc.stop(), "close-on-cancel hook still registered after Close")
}

func TestSerialDialer_Errors(t *testing.T) {
	t.Parallel()

	_, err := (&SerialDialer{Path: "/dev/x", Options: PortOptions{DataBits: 4}}).Dial(context.Background())
	assert.Error(t, err)

	boom := errors.New("no such device")
	_, err = (&SerialDialer{
		Path: "/dev/x",
		Open: func(string, *serial.Mode) (io.ReadCloser, error) { return nil, boom },
	}).Dial(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, strings.Contains(err.Error(), "/dev/x"))
}
