package stream

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// PortOptions are the serial line parameters for a SerialDialer.
type PortOptions struct {
	BaudRate int    `json:"baud_rate"`
	DataBits int    `json:"data_bits"`
	StopBits int    `json:"stop_bits"`
	Parity   string `json:"parity"`
}

var standardBaudRates = map[int]bool{
	4800: true, 9600: true, 19200: true, 38400: true,
	57600: true, 115200: true, 230400: true, 460800: true,
}

// Normalize validates the options and fills in defaults (38400 8N1, the
// NMEA high-speed rate used by AIS receivers).
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 38400
	}
	if !standardBaudRates[opts.BaudRate] {
		return opts, fmt.Errorf("unsupported baud rate %d", opts.BaudRate)
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	switch strings.TrimSpace(strings.ToUpper(opts.Parity)) {
	case "", "N", "NONE":
		opts.Parity = "N"
	case "E", "EVEN":
		opts.Parity = "E"
	case "O", "ODD":
		opts.Parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", o.Parity)
	}
	return opts, nil
}

// SerialMode converts the options into a go.bug.st/serial mode.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}
	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.OneStopBit,
		Parity:   serial.NoParity,
	}
	if opts.StopBits == 2 {
		mode.StopBits = serial.TwoStopBits
	}
	switch opts.Parity {
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}
	return mode, nil
}

// PortOpener opens a serial device.
type PortOpener func(path string, mode *serial.Mode) (io.ReadCloser, error)

func openSerial(path string, mode *serial.Mode) (io.ReadCloser, error) {
	return serial.Open(path, mode)
}

// SerialDialer reads newline-delimited JSON deltas from a serial device,
// e.g. a gateway that forwards the Signal K stream over RS-232/USB.
type SerialDialer struct {
	Path    string
	Options PortOptions

	// Open replaces serial.Open, for tests.
	Open PortOpener
}

// Dial opens the port. The port is closed when ctx is done.
func (d *SerialDialer) Dial(ctx context.Context) (Conn, error) {
	mode, err := d.Options.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("serial %s: %w", d.Path, err)
	}
	open := d.Open
	if open == nil {
		open = openSerial
	}
	port, err := open(d.Path, mode)
	if err != nil {
		return nil, fmt.Errorf("open serial %s: %w", d.Path, err)
	}

	sc := bufio.NewScanner(port)
	sc.Buffer(make([]byte, 0, 64*1024), maxMessageSize)
	c := &lineConn{port: port, scanner: sc}
	c.stop = context.AfterFunc(ctx, func() { c.Close() })
	return c, nil
}

type lineConn struct {
	port    io.ReadCloser
	scanner *bufio.Scanner

	// stop detaches the close-on-cancel hook from the dial context.
	stop func() bool

	closeOnce sync.Once
	closeErr  error
}

// Read returns the next non-blank line.
func (c *lineConn) Read(ctx context.Context) ([]byte, error) {
	for c.scanner.Scan() {
		line := bytes.TrimSpace(c.scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		out := make([]byte, len(line))
		copy(out, line)
		return out, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.scanner.Err(); err != nil {
		return nil, err
	}
	return nil, io.EOF
}

func (c *lineConn) Close() error {
	c.closeOnce.Do(func() {
		if c.stop != nil {
			c.stop()
		}
		c.closeErr = c.port.Close()
	})
	return c.closeErr
}
