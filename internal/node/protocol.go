package node

import (
	"encoding/binary"
	"fmt"
)

const (
	CmdReadFrequency  byte = 0x03
	CmdReadLapStats   byte = 0x05
	CmdWriteFrequency byte = 0x51

	frequencyPayloadSize = 2
	lapStatsPayloadSize  = 16

	// responseBufferSize is larger than any response so that oversized replies are detected
	responseBufferSize = 20

	// rssiClamp replaces RSSI bytes with the high bit set
	rssiClamp = 128
)

// LapStats is one decoded read-stats response
type LapStats struct {
	Timestamp int64 // Estimated device time in ms, host monotonic domain
	RSSI      int   // Current RSSI, 0..255

	HistoryRSSI         int // Peak of the last pass, 0 when there is nothing to report
	MsSinceHistoryStart int // Offset of the pass start before Timestamp
	MsSinceHistoryEnd   int // Offset of the pass end before Timestamp

	Laps           uint8
	MsSinceLastLap uint16
	PeakRSSI       uint8
	LastPassPeak   uint8
	LoopTimeMicros uint16
	Flags          uint8
	LastPassNadir  uint8
	NadirRSSI      uint8
}

// Checksum returns the low 8 bits of the sum of p
func Checksum(p []byte) byte {
	var sum byte
	for _, b := range p {
		sum += b
	}
	return sum
}

// EncodeSetFrequency builds the write-frequency command. The checksum covers
// the frequency bytes only.
func EncodeSetFrequency(freq uint16) []byte {
	buf := make([]byte, 1+frequencyPayloadSize+1)
	buf[0] = CmdWriteFrequency
	binary.BigEndian.PutUint16(buf[1:3], freq)
	buf[3] = Checksum(buf[1:3])
	return buf
}

// VerifyResponse checks the length and the trailing checksum of a response
// to cmd and returns its payload.
func VerifyResponse(cmd byte, resp []byte, payloadSize int) ([]byte, error) {
	if len(resp) != payloadSize+1 {
		return nil, NewProtocolError(cmd, fmt.Sprintf("unexpected response size %d", len(resp)))
	}

	payload := resp[:payloadSize]
	if resp[payloadSize] != Checksum(payload) {
		return nil, NewProtocolError(cmd, "invalid checksum")
	}
	return payload, nil
}

// DecodeFrequency decodes a read-frequency response
func DecodeFrequency(resp []byte) (int, error) {
	payload, err := VerifyResponse(CmdReadFrequency, resp, frequencyPayloadSize)
	if err != nil {
		return 0, err
	}
	return int(binary.BigEndian.Uint16(payload)), nil
}

// DecodeLapStats decodes a read-stats response. Timestamp is left for the caller.
func DecodeLapStats(resp []byte) (*LapStats, error) {
	p, err := VerifyResponse(CmdReadLapStats, resp, lapStatsPayloadSize)
	if err != nil {
		return nil, err
	}

	stats := LapStats{
		Laps:                p[0],
		MsSinceLastLap:      binary.BigEndian.Uint16(p[1:3]),
		RSSI:                decodeRSSI(p[3]),
		PeakRSSI:            p[4],
		LastPassPeak:        p[5],
		LoopTimeMicros:      binary.BigEndian.Uint16(p[6:8]),
		Flags:               p[8],
		LastPassNadir:       p[9],
		NadirRSSI:           p[10],
		HistoryRSSI:         int(p[11]),
		MsSinceHistoryStart: int(binary.BigEndian.Uint16(p[12:14])),
		MsSinceHistoryEnd:   int(binary.BigEndian.Uint16(p[14:16])),
	}
	return &stats, nil
}

// decodeRSSI reads the byte as signed and clamps negative values to 128.
// Values 128..255 therefore all read as 128.
func decodeRSSI(b byte) int {
	if v := int8(b); v >= 0 {
		return int(v)
	}
	return rssiClamp
}
