package series

import (
	"errors"
	"testing"
)

func TestFixedSeries_SetAt(t *testing.T) {
	fs, err := NewFixedSeries("live", 5645, 2, 151)
	if err != nil {
		t.Fatalf("Failed to create series: %v", err)
	}

	if y, ok, err := fs.At(5801); err != nil || ok || y != 0 {
		t.Errorf("Expected unset bin, got y=%d ok=%v err=%v", y, ok, err)
	}

	if err := fs.Set(5801, 73); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if y, ok, err := fs.At(5801); err != nil || !ok || y != 73 {
		t.Errorf("Expected 73, got y=%d ok=%v err=%v", y, ok, err)
	}

	// A reading of 0 is a value, not "unset"
	if err := fs.Set(5645, 0); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	if _, ok, _ := fs.At(5645); !ok {
		t.Error("Expected bin 5645 to be set")
	}

	var set int
	for _, b := range fs.Bins() {
		if b.Valid {
			set++
			continue
		}
		if b.Value != 0 {
			t.Errorf("Bin %d: expected 0 for unset bin, got %d", b.Frequency, b.Value)
		}
	}
	if set != 2 {
		t.Errorf("Expected 2 set bins, got %d", set)
	}
}

func TestFixedSeries_Index(t *testing.T) {
	fs, err := NewFixedSeries("live", 5645, 2, 151) // 5645..5945
	if err != nil {
		t.Fatalf("Failed to create series: %v", err)
	}

	testCases := []struct {
		name string
		x    int
		want int
		err  error
	}{
		{"origin", 5645, 0, nil},
		{"last", 5945, 150, nil},
		{"middle", 5801, 78, nil},
		{"below", 5643, 0, ErrOutOfRange},
		{"above", 5947, 0, ErrOutOfRange},
		{"off grid", 5800, 0, ErrOffGrid},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := fs.Index(tc.x)
			if tc.err != nil {
				if !errors.Is(err, tc.err) {
					t.Fatalf("Expected %v, got %v", tc.err, err)
				}
				if setErr := fs.Set(tc.x, 1); !errors.Is(setErr, tc.err) {
					t.Errorf("Set: expected %v, got %v", tc.err, setErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if got != tc.want {
				t.Errorf("Expected index %d, got %d", tc.want, got)
			}
			if fs.X(got) != tc.x {
				t.Errorf("X(%d): expected %d, got %d", got, tc.x, fs.X(got))
			}
		})
	}
}

func TestNewFixedSeries_Invalid(t *testing.T) {
	if _, err := NewFixedSeries("live", 5645, 0, 10); err == nil {
		t.Error("Expected error for zero step")
	}
	if _, err := NewFixedSeries("live", 5645, 2, 0); err == nil {
		t.Error("Expected error for zero length")
	}
}
