// Package hardware speaks the framed serial protocol of the LED controller
// and provides helpers for lighting keys during calibration.
package hardware

import (
	"errors"
	"fmt"
	"image/color"
)

const (
	SOF0 = 0xAA
	SOF1 = 0x55

	CmdSetLEDs = 0x20 // payload: R G B, then big-endian uint16 LED indices
	CmdClear   = 0x21 // no payload
	CmdShow    = 0x22 // latch the buffered state onto the strip

	// MaxPayload is the largest payload a frame can carry; LEN counts the
	// CMD byte as well.
	MaxPayload = 254
	// MaxLEDsPerFrame is how many indices fit next to the color bytes.
	MaxLEDsPerFrame = (MaxPayload - 3) / 2
	// MaxLEDIndex is the highest index the 16-bit encoding can address.
	MaxLEDIndex = 0xFFFF
)

var (
	ErrPayloadTooLarge = errors.New("hardware: payload too large")
	ErrShortFrame      = errors.New("hardware: short frame")
	ErrBadChecksum     = errors.New("hardware: bad checksum")
	ErrBadSync         = errors.New("hardware: missing start-of-frame")
)

// Frame is one controller command.
type Frame struct {
	Cmd     byte
	Payload []byte
}

// Encode builds the on-wire representation:
//
//	[SOF0][SOF1][LEN][CMD][payload...][CKS]
//
// LEN covers CMD and payload; CKS is the XOR of LEN, CMD and payload.
func (f Frame) Encode() ([]byte, error) {
	if len(f.Payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(f.Payload))
	}
	length := byte(len(f.Payload) + 1)
	cks := length ^ f.Cmd
	for _, b := range f.Payload {
		cks ^= b
	}

	out := make([]byte, 0, len(f.Payload)+5)
	out = append(out, SOF0, SOF1, length, f.Cmd)
	out = append(out, f.Payload...)
	out = append(out, cks)
	return out, nil
}

// Decode parses one frame from the start of data and returns it along with
// the number of bytes consumed.
func Decode(data []byte) (Frame, int, error) {
	if len(data) < 5 {
		return Frame{}, 0, ErrShortFrame
	}
	if data[0] != SOF0 || data[1] != SOF1 {
		return Frame{}, 0, ErrBadSync
	}
	length := int(data[2])
	if length == 0 {
		return Frame{}, 0, ErrShortFrame
	}
	total := 3 + length + 1
	if len(data) < total {
		return Frame{}, 0, ErrShortFrame
	}

	cks := data[2]
	for _, b := range data[3 : 3+length] {
		cks ^= b
	}
	if cks != data[total-1] {
		return Frame{}, 0, ErrBadChecksum
	}

	f := Frame{Cmd: data[3]}
	if length > 1 {
		f.Payload = append([]byte(nil), data[4:3+length]...)
	}
	return f, total, nil
}

// SetLEDs returns the frames lighting leds in c. Long lists are split
// across frames.
func SetLEDs(c color.RGBA, leds []int) ([]Frame, error) {
	for _, l := range leds {
		if l < 0 || l > MaxLEDIndex {
			return nil, fmt.Errorf("hardware: LED index %d not addressable", l)
		}
	}

	var frames []Frame
	for start := 0; start < len(leds); start += MaxLEDsPerFrame {
		end := min(start+MaxLEDsPerFrame, len(leds))
		payload := make([]byte, 0, 3+2*(end-start))
		payload = append(payload, c.R, c.G, c.B)
		for _, l := range leds[start:end] {
			payload = append(payload, byte(l>>8), byte(l))
		}
		frames = append(frames, Frame{Cmd: CmdSetLEDs, Payload: payload})
	}
	return frames, nil
}

// ParseSetLEDs is the inverse of SetLEDs for a single frame.
func ParseSetLEDs(f Frame) (color.RGBA, []int, error) {
	if f.Cmd != CmdSetLEDs {
		return color.RGBA{}, nil, fmt.Errorf("hardware: command 0x%02x is not set-LEDs", f.Cmd)
	}
	if len(f.Payload) < 3 || (len(f.Payload)-3)%2 != 0 {
		return color.RGBA{}, nil, fmt.Errorf("hardware: malformed set-LEDs payload of %d bytes", len(f.Payload))
	}
	c := color.RGBA{R: f.Payload[0], G: f.Payload[1], B: f.Payload[2], A: 255}
	var leds []int
	for i := 3; i < len(f.Payload); i += 2 {
		leds = append(leds, int(f.Payload[i])<<8|int(f.Payload[i+1]))
	}
	return c, leds, nil
}

// Clear returns the frame turning every LED off.
func Clear() Frame {
	return Frame{Cmd: CmdClear}
}

// Show returns the frame latching buffered changes.
func Show() Frame {
	return Frame{Cmd: CmdShow}
}
