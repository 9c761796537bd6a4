package series

// Point is one (x, y) sample of a RingSeries
type Point struct {
	X int64 // Timestamp in ms
	Y int   // RSSI
}

// Bin is one slot of a FixedSeries
type Bin struct {
	Frequency int  // Bin frequency in MHz
	Value     int  // Last value written, 0 when unset
	Valid     bool // Whether the bin was ever written
}
