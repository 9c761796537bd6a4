package series

import (
	"fmt"
	"sync"
)

// RingSeries is a fixed-capacity, time-ordered buffer of points. Once full,
// every Add overwrites the oldest point.
type RingSeries struct {
	title string

	mu     sync.RWMutex
	points []Point
	head   int // Oldest point
	tail   int // Next write slot
	size   int
}

// NewRingSeries creates a new ring of the given capacity
func NewRingSeries(title string, capacity int) (*RingSeries, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("invalid ring capacity: %d", capacity)
	}
	return &RingSeries{
		title:  title,
		points: make([]Point, capacity),
	}, nil
}

// Title returns the series title
func (rs *RingSeries) Title() string {
	return rs.title
}

// Add appends a point, overwriting the oldest one when the ring is full
func (rs *RingSeries) Add(x int64, y int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.points[rs.tail] = Point{X: x, Y: y}
	rs.tail = (rs.tail + 1) % len(rs.points)

	if rs.size == len(rs.points) {
		rs.head = rs.tail
	} else {
		rs.size++
	}
}

// Reset empties the ring, keeping its storage
func (rs *RingSeries) Reset() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	rs.head = 0
	rs.tail = 0
	rs.size = 0
}

// Len returns the number of points held
func (rs *RingSeries) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return rs.size
}

// Cap returns the ring capacity
func (rs *RingSeries) Cap() int {
	return len(rs.points)
}

// At returns the i-th oldest point
func (rs *RingSeries) At(i int) (Point, error) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	if i < 0 || i >= rs.size {
		return Point{}, fmt.Errorf("%s: index %d out of range [0, %d)", rs.title, i, rs.size)
	}
	return rs.points[(rs.head+i)%len(rs.points)], nil
}

// Points returns a copy of the held points, oldest first
func (rs *RingSeries) Points() []Point {
	rs.mu.RLock()
	defer rs.mu.RUnlock()

	results := make([]Point, rs.size) // Preallocate with length
	for i := range results {
		results[i] = rs.points[(rs.head+i)%len(rs.points)]
	}
	return results
}
