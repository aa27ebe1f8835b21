package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

const (
	defaultBaudRate    = 9600
	defaultReadTimeout = 50 * time.Millisecond
	defaultSettleDelay = 2 * time.Second
)

// byteChannel is the part of serial.Port the acquisition loop uses.
type byteChannel interface {
	io.Reader
	ResetInputBuffer() error
	Close() error
}

// SerialManager opens the device and runs its startup sequence.
type SerialManager struct {
	readTimeout time.Duration
	settleDelay time.Duration
}

func NewSerialManager(readTimeout, settleDelay time.Duration) *SerialManager {
	if readTimeout <= 0 {
		readTimeout = defaultReadTimeout
	}
	if settleDelay < 0 {
		settleDelay = 0
	}
	return &SerialManager{
		readTimeout: readTimeout,
		settleDelay: settleDelay,
	}
}

// AvailablePorts returns a list of detected serial port names.
func (sm *SerialManager) AvailablePorts() []string {
	ports, err := serial.GetPortsList()
	if err != nil || len(ports) == 0 {
		return []string{}
	}
	return ports
}

// Open opens portName at 8N1, waits for the board to finish the reset
// triggered by opening the port, then drops whatever it queued meanwhile.
func (sm *SerialManager) Open(ctx context.Context, portName string, baudRate int) (serial.Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	p, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", portName, err)
	}

	if err := p.SetReadTimeout(sm.readTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("set read timeout: %w", err)
	}

	if err := settle(ctx, p, sm.settleDelay); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// settle waits delay and then flushes stale input from ch.
func settle(ctx context.Context, ch byteChannel, delay time.Duration) error {
	if delay > 0 {
		t := time.NewTimer(delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if err := ch.ResetInputBuffer(); err != nil {
		return fmt.Errorf("flush input: %w", err)
	}
	return nil
}

// portErrorCoder is satisfied by serial.PortError.
type portErrorCoder interface {
	Code() serial.PortErrorCode
}

// isDisconnect reports whether err means the device went away.
func isDisconnect(err error) bool {
	var portErr portErrorCoder
	if errors.As(err, &portErr) {
		switch portErr.Code() {
		case serial.PortNotFound, serial.PortClosed, serial.InvalidSerialPort:
			return true
		}
	}
	return errors.Is(err, io.EOF)
}
