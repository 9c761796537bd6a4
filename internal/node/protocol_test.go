package node

import (
	"errors"
	"testing"
)

func withChecksum(payload ...byte) []byte {
	return append(payload, Checksum(payload))
}

func lapStatsResponse(rssi byte, historyRSSI byte, start, end uint16) []byte {
	payload := []byte{
		0x02,       // laps
		0x01, 0x2C, // ms since last lap = 300
		rssi,
		0x60,       // peak rssi
		0x58,       // last pass peak
		0x03, 0xE8, // loop time = 1000us
		0x01,       // flags
		0x20,       // last pass nadir
		0x1E,       // nadir rssi
		historyRSSI,
		byte(start >> 8), byte(start),
		byte(end >> 8), byte(end),
	}
	return withChecksum(payload...)
}

func TestChecksum(t *testing.T) {
	testCases := []struct {
		name    string
		payload []byte
		want    byte
	}{
		{"empty", nil, 0x00},
		{"single", []byte{0x42}, 0x42},
		{"no overflow", []byte{0x16, 0xA8}, 0xBE},
		{"wraps", []byte{0xFF, 0xFF, 0x03}, 0x01},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Checksum(tc.payload); got != tc.want {
				t.Errorf("Expected checksum 0x%02x, got 0x%02x", tc.want, got)
			}
		})
	}
}

func TestEncodeSetFrequency(t *testing.T) {
	got := EncodeSetFrequency(5800) // 0x16A8
	want := []byte{CmdWriteFrequency, 0x16, 0xA8, 0xBE}

	if len(got) != len(want) {
		t.Fatalf("Expected %d bytes, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Byte %d: expected 0x%02x, got 0x%02x", i, want[i], got[i])
		}
	}
}

func TestDecodeFrequency(t *testing.T) {
	freq, err := DecodeFrequency(withChecksum(0x16, 0xA8))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if freq != 5800 {
		t.Errorf("Expected frequency 5800, got %d", freq)
	}
}

func TestVerifyResponse_RejectsCorruption(t *testing.T) {
	valid := lapStatsResponse(0x32, 0x40, 500, 200)
	if _, err := VerifyResponse(CmdReadLapStats, valid, lapStatsPayloadSize); err != nil {
		t.Fatalf("Valid response rejected: %v", err)
	}

	// Flipping any covered byte must break the checksum
	for i := 0; i < lapStatsPayloadSize; i++ {
		corrupted := append([]byte(nil), valid...)
		corrupted[i] ^= 0x01

		_, err := VerifyResponse(CmdReadLapStats, corrupted, lapStatsPayloadSize)
		var protoErr *ProtocolError
		if !errors.As(err, &protoErr) {
			t.Errorf("Byte %d flipped: expected ProtocolError, got %v", i, err)
		}
	}
}

func TestVerifyResponse_Length(t *testing.T) {
	testCases := []struct {
		name string
		resp []byte
	}{
		{"empty", nil},
		{"short", make([]byte, 10)},
		{"long", make([]byte, 18)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := VerifyResponse(CmdReadLapStats, tc.resp, lapStatsPayloadSize)
			var protoErr *ProtocolError
			if !errors.As(err, &protoErr) {
				t.Fatalf("Expected ProtocolError, got %v", err)
			}
			if protoErr.Command != CmdReadLapStats {
				t.Errorf("Expected command 0x%02x, got 0x%02x", CmdReadLapStats, protoErr.Command)
			}
		})
	}
}

func TestDecodeLapStats(t *testing.T) {
	stats, err := DecodeLapStats(lapStatsResponse(0x32, 0x40, 500, 200))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if stats.RSSI != 50 {
		t.Errorf("Expected RSSI 50, got %d", stats.RSSI)
	}
	if stats.HistoryRSSI != 0x40 {
		t.Errorf("Expected history RSSI 64, got %d", stats.HistoryRSSI)
	}
	if stats.MsSinceHistoryStart != 500 || stats.MsSinceHistoryEnd != 200 {
		t.Errorf("Expected history offsets 500/200, got %d/%d", stats.MsSinceHistoryStart, stats.MsSinceHistoryEnd)
	}
	if stats.Laps != 2 || stats.MsSinceLastLap != 300 || stats.LoopTimeMicros != 1000 {
		t.Errorf("Unexpected lap fields: %+v", stats)
	}
	if stats.PeakRSSI != 0x60 || stats.LastPassPeak != 0x58 || stats.LastPassNadir != 0x20 || stats.NadirRSSI != 0x1E {
		t.Errorf("Unexpected peak/nadir fields: %+v", stats)
	}
}

func TestDecodeLapStats_RSSIClamp(t *testing.T) {
	for _, b := range []byte{0x80, 0x9C, 0xFF} {
		stats, err := DecodeLapStats(lapStatsResponse(b, 0, 0, 0))
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if stats.RSSI != 128 {
			t.Errorf("RSSI byte 0x%02x: expected 128, got %d", b, stats.RSSI)
		}
	}

	stats, err := DecodeLapStats(lapStatsResponse(0x7F, 0, 0, 0))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if stats.RSSI != 127 {
		t.Errorf("RSSI byte 0x7f: expected 127, got %d", stats.RSSI)
	}
}
