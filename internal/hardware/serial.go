package hardware

import (
	"fmt"
	"image/color"
	"io"
	"log/slog"

	"go.bug.st/serial"
)

// Controller sends frames to an LED controller.
type Controller struct {
	w      io.Writer
	logger *slog.Logger
}

// NewController wraps any writer, typically a serial port.
func NewController(w io.Writer, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{w: w, logger: logger}
}

// Send encodes and writes frames in order.
func (c *Controller) Send(frames ...Frame) error {
	for _, f := range frames {
		data, err := f.Encode()
		if err != nil {
			return err
		}
		n, err := c.w.Write(data)
		if err != nil {
			c.logger.Error("serial: write error", "err", err)
			return fmt.Errorf("hardware: write: %w", err)
		}
		c.logger.Debug("serial: frame sent", "bytes", n, "cmd", f.Cmd)
	}
	return nil
}

// Light clears the strip, lights leds in col and latches the result.
func (c *Controller) Light(col color.RGBA, leds []int) error {
	frames, err := SetLEDs(col, leds)
	if err != nil {
		return err
	}
	all := append([]Frame{Clear()}, frames...)
	return c.Send(append(all, Show())...)
}

// Clear turns every LED off.
func (c *Controller) Clear() error {
	return c.Send(Clear(), Show())
}

// OpenSerial opens the named serial device at the given baud rate.
func OpenSerial(name string, baud int, logger *slog.Logger) (serial.Port, error) {
	if logger == nil {
		logger = slog.Default()
	}
	mode := &serial.Mode{BaudRate: baud}
	p, err := serial.Open(name, mode)
	if err != nil {
		logger.Error("serial: failed to open port", "device", name, "baud", baud, "err", err)
		return nil, fmt.Errorf("hardware: open %s: %w", name, err)
	}
	logger.Info("serial: port opened", "device", name, "baud", baud)
	return p, nil
}

// Ports lists the serial devices present on the system.
func Ports() ([]string, error) {
	return serial.GetPortsList()
}
