package sensoradapter

import (
	"encoding/binary"
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/VamoKnut/hastig/internal/domain"
	"github.com/VamoKnut/hastig/internal/ports"
)

// registerMap names the two Modbus holding registers this sensor type
// exposes and the scale each needs to become a physical-unit float.
type registerMap struct {
	k0     string
	reg0   uint16
	scale0 float32
	k1     string
	reg1   uint16
	scale1 float32
}

var (
	seametricsCT2X = registerMap{k0: "temp", reg0: 0, scale0: 0.1, k1: "hum", reg1: 1, scale1: 0.1}
	pt12           = registerMap{k0: "temp", reg0: 0, scale0: 0.1}
)

// SensorType tags which physical sensor model the device is wired to,
// replacing the source's virtual-inheritance sensor hierarchy with a small
// tagged-sum selected at startup.
type SensorType int

const (
	TypeFake SensorType = iota
	TypeSeametricsCT2X
	TypePT12
)

// NewSensor is the ports.SensorFactory implementation: it selects Fake,
// SeametricsCT2X, or PT12 from the configured sensorType.
func NewSensor(sensorType int) (ports.Sensor, error) {
	switch SensorType(sensorType) {
	case TypeSeametricsCT2X:
		return &ModbusRTU{regs: seametricsCT2X}, nil
	case TypePT12:
		return &ModbusRTU{regs: pt12}, nil
	default:
		return NewFake(), nil
	}
}

// ModbusRTU reads holding registers off an RS485 bus using Modbus function
// code 0x03, over a go.bug.st/serial port.
type ModbusRTU struct {
	regs    registerMap
	port    serial.Port
	addr    byte
	timeout time.Duration
}

func (m *ModbusRTU) Name() string { return "modbus-rtu" }

// Begin opens the serial port at the configured baud and slave address.
// The caller (sampling activity) is expected to have already powered the
// sensor rail and waited out the warm-up delay.
func (m *ModbusRTU) Begin(settings domain.Settings) error {
	mode := &serial.Mode{
		BaudRate: settings.SensorBaud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open("/dev/ttyRS485", mode)
	if err != nil {
		return fmt.Errorf("modbus: open serial port: %w", err)
	}
	m.port = port
	m.addr = byte(settings.SensorAddr)
	m.timeout = 200 * time.Millisecond
	return nil
}

func (m *ModbusRTU) Sample(relMs uint32) (domain.Sample, error) {
	var s domain.Sample
	s.RelMs = relMs

	v0, err := m.readRegister(m.regs.reg0, m.regs.scale0)
	if err != nil {
		return s, fmt.Errorf("modbus: read reg0: %w", err)
	}
	s.K0, s.V0 = m.regs.k0, v0

	if m.regs.k1 != "" {
		v1, err := m.readRegister(m.regs.reg1, m.regs.scale1)
		if err != nil {
			return s, fmt.Errorf("modbus: read reg1: %w", err)
		}
		s.K1, s.V1 = m.regs.k1, v1
	}

	s.OK = true
	return s, nil
}

func (m *ModbusRTU) End() error {
	if m.port == nil {
		return nil
	}
	err := m.port.Close()
	m.port = nil
	return err
}

// readRegister issues a single-register read-holding-registers request and
// decodes the big-endian u16 response scaled into a physical float.
func (m *ModbusRTU) readRegister(reg uint16, scale float32) (float32, error) {
	req := buildReadHoldingRegistersFrame(m.addr, reg, 1)
	if err := m.port.SetReadTimeout(m.timeout); err != nil {
		return 0, err
	}
	if _, err := m.port.Write(req); err != nil {
		return 0, err
	}

	resp := make([]byte, 7)
	n, err := m.port.Read(resp)
	if err != nil {
		return 0, err
	}
	if n < 5 || resp[1] != 0x03 {
		return 0, fmt.Errorf("short or malformed response: % x", resp[:n])
	}

	raw := binary.BigEndian.Uint16(resp[3:5])
	return float32(raw) * scale, nil
}

func buildReadHoldingRegistersFrame(addr byte, reg, count uint16) []byte {
	frame := make([]byte, 6, 8)
	frame[0] = addr
	frame[1] = 0x03
	binary.BigEndian.PutUint16(frame[2:4], reg)
	binary.BigEndian.PutUint16(frame[4:6], count)
	crc := modbusCRC16(frame)
	return binary.LittleEndian.AppendUint16(frame, crc)
}

// modbusCRC16 computes the standard Modbus CRC-16 (poly 0xA001).
func modbusCRC16(data []byte) uint16 {
	var crc uint16 = 0xFFFF
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc >>= 1
				crc ^= 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}

var _ ports.Sensor = (*ModbusRTU)(nil)
