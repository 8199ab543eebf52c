package main

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/gousb"

	"github.com/mavryk-network/mvsign/apdu"
	"github.com/mavryk-network/mvsign/common"
)

// HID report framing: every 64 byte report opens with channel, tag and
// a big endian sequence number. The first report of a message carries
// a two byte length ahead of the data.
const (
	hidChannel    = 0x0101
	hidTagAPDU    = 0x05
	hidReportSize = 64
	hidHeaderSize = 5
)

var (
	errNoDevice    = errors.New("bridge: device not found")
	errShortReport = errors.New("bridge: report shorter than header")
)

// usbTransport speaks the framed protocol to a claimed HID interface.
// Reads block without a deadline because a signing exchange waits on
// the user at the device.
type usbTransport struct {
	ctx     *gousb.Context
	dev     *gousb.Device
	release func()
	in      *gousb.InEndpoint
	out     *gousb.OutEndpoint
	log     *slog.Logger
}

func openUSB(cfg USBConfig, log *slog.Logger) (*usbTransport, error) {
	ctx := gousb.NewContext()

	dev, err := ctx.OpenDeviceWithVIDPID(gousb.ID(cfg.VendorID), gousb.ID(cfg.ProductID))
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("bridge: open %04x:%04x: %w", cfg.VendorID, cfg.ProductID, err)
	}
	if dev == nil {
		ctx.Close()
		return nil, fmt.Errorf("%w: %04x:%04x", errNoDevice, cfg.VendorID, cfg.ProductID)
	}

	if err := dev.SetAutoDetach(true); err != nil {
		log.Warn("auto detach unsupported", "error", err.Error())
	}

	intf, release, err := dev.DefaultInterface()
	if err != nil {
		dev.Close()
		ctx.Close()
		return nil, fmt.Errorf("bridge: claim interface: %w", err)
	}

	t := &usbTransport{ctx: ctx, dev: dev, release: release, log: log}
	for _, ep := range intf.Setting.Endpoints {
		switch {
		case ep.Direction == gousb.EndpointDirectionIn && t.in == nil:
			t.in, err = intf.InEndpoint(ep.Number)
		case ep.Direction == gousb.EndpointDirectionOut && t.out == nil:
			t.out, err = intf.OutEndpoint(ep.Number)
		}
		if err != nil {
			t.Close()
			return nil, fmt.Errorf("bridge: endpoint %d: %w", ep.Number, err)
		}
	}
	if t.in == nil || t.out == nil {
		t.Close()
		return nil, errors.New("bridge: interface lacks an in/out endpoint pair")
	}

	log.Info("device claimed",
		"vid", fmt.Sprintf("%04x", cfg.VendorID),
		"pid", fmt.Sprintf("%04x", cfg.ProductID))
	return t, nil
}

func (t *usbTransport) Exchange(cmd apdu.Command) (apdu.Response, error) {
	if err := t.write(cmd); err != nil {
		return apdu.Response{}, err
	}
	return t.read()
}

func (t *usbTransport) write(cmd apdu.Command) error {
	raw, err := cmd.Encode()
	if err != nil {
		return err
	}

	msg := make([]byte, 2+len(raw))
	binary.BigEndian.PutUint16(msg, uint16(len(raw)))
	copy(msg[2:], raw)

	frame := make([]byte, hidReportSize)
	for off, seq := 0, uint16(0); off < len(msg); seq++ {
		binary.BigEndian.PutUint16(frame[0:], hidChannel)
		frame[2] = hidTagAPDU
		binary.BigEndian.PutUint16(frame[3:], seq)
		n := copy(frame[hidHeaderSize:], msg[off:])
		off += n
		clear(frame[hidHeaderSize+n:])

		if _, err := t.out.Write(frame); err != nil {
			return fmt.Errorf("bridge: write report: %w", err)
		}
	}
	return nil
}

func (t *usbTransport) read() (apdu.Response, error) {
	buf := make([]byte, hidReportSize)
	var msg []byte
	want := -1

	for seq := uint16(0); want < 0 || len(msg) < want; seq++ {
		n, err := t.in.Read(buf)
		if err != nil {
			return apdu.Response{}, fmt.Errorf("bridge: read report: %w", err)
		}
		frame := buf[:n]
		if len(frame) < hidHeaderSize {
			return apdu.Response{}, errShortReport
		}
		if binary.BigEndian.Uint16(frame[0:]) != hidChannel || frame[2] != hidTagAPDU {
			return apdu.Response{}, fmt.Errorf("bridge: unexpected report %x", frame[:3])
		}
		if got := binary.BigEndian.Uint16(frame[3:]); got != seq {
			return apdu.Response{}, fmt.Errorf("bridge: report %d arrived in place of %d", got, seq)
		}

		data := frame[hidHeaderSize:]
		if seq == 0 {
			if len(data) < 2 {
				return apdu.Response{}, errShortReport
			}
			want = int(binary.BigEndian.Uint16(data))
			data = data[2:]
		}
		msg = append(msg, data...)
	}

	if len(msg) > want {
		msg = msg[:want]
	}
	return apdu.DecodeResponse(msg)
}

// Ping asks for the ready flag over the control endpoint. A signing
// exchange parked on the data endpoints is not disturbed; an unplugged
// device fails the transfer.
func (t *usbTransport) Ping() error {
	buf := make([]byte, 1)
	_, err := t.dev.Control(
		gousb.ControlIn|gousb.ControlVendor|gousb.ControlDevice,
		common.VendorReqReady, 0, 0, buf)
	if err != nil {
		return fmt.Errorf("bridge: device ready: %w", err)
	}
	return nil
}

func (t *usbTransport) Close() error {
	if t.release != nil {
		t.release()
	}
	var errs []error
	if t.dev != nil {
		errs = append(errs, t.dev.Close())
	}
	if t.ctx != nil {
		errs = append(errs, t.ctx.Close())
	}
	return errors.Join(errs...)
}
