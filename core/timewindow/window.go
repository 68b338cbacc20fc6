package timewindow

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Hour codes stored per hour of the day.
const (
	// Free marks an hour no tour touches.
	Free byte = iota
	// Interior marks an hour strictly inside a booked tour.
	Interior
	// Departure marks the first hour of a booked tour.
	Departure
	// Arrival marks the last hour of a booked tour.
	Arrival
	// Shared marks an hour that is both the arrival of one tour and the
	// departure of another, or the only hour of a single-hour tour.
	Shared
)

var (
	// ErrHourOutOfSpan is returned when an hour lies outside the day span.
	ErrHourOutOfSpan = errors.New("hour outside day span")
	// ErrUnavailable is returned when a booking overlaps an already booked interval.
	ErrUnavailable = errors.New("window unavailable")
)

// Span is the inclusive range of modeled hours.
type Span struct {
	First int `json:"first"`
	Last  int `json:"last"`
}

// DefaultSpan covers a full 24 hour day.
func DefaultSpan() Span { return Span{First: 0, Last: 23} }

// Len returns the number of hours in the span.
func (s Span) Len() int { return s.Last - s.First + 1 }

// Contains reports whether h lies inside the span.
func (s Span) Contains(h int) bool { return h >= s.First && h <= s.Last }

// Validate checks that the span is not empty.
func (s Span) Validate() error {
	if s.Last < s.First {
		return fmt.Errorf("invalid span %d..%d", s.First, s.Last)
	}
	return nil
}

// Window tracks which hours of one person's day are already committed to
// tours. Interior hours of a booked tour become unavailable; its start and
// end hours remain available so another tour may depart at the hour the
// previous one arrives.
type Window struct {
	span  Span
	codes []byte
}

// New returns an empty window over span.
func New(span Span) *Window {
	return &Window{span: span, codes: make([]byte, span.Len())}
}

// Span returns the day span of the window.
func (w *Window) Span() Span { return w.span }

// Code returns the raw code stored for h.
func (w *Window) Code(h int) byte {
	if !w.span.Contains(h) {
		return Free
	}
	return w.codes[h-w.span.First]
}

// IsAvailable reports whether a tour may still use hour h.
func (w *Window) IsAvailable(h int) bool {
	if !w.span.Contains(h) {
		return false
	}
	return w.codes[h-w.span.First] != Interior
}

// IsPreviousArrival reports whether a previously booked tour ends at h.
func (w *Window) IsPreviousArrival(h int) bool {
	c := w.Code(h)
	return c == Arrival || c == Shared
}

// IsPreviousDeparture reports whether a previously booked tour starts at h.
func (w *Window) IsPreviousDeparture(h int) bool {
	c := w.Code(h)
	return c == Departure || c == Shared
}

// CanBook reports whether a tour departing at start and arriving at end fits
// the window. A multi-hour tour may not depart at an hour where another tour
// already departs, nor arrive where another tour already arrives.
func (w *Window) CanBook(start, end int) bool {
	if !w.span.Contains(start) || !w.span.Contains(end) || end < start {
		return false
	}
	sc := w.Code(start)
	if sc == Interior || (sc == Departure && start != end) {
		return false
	}
	ec := w.Code(end)
	if ec == Interior || (ec == Arrival && start != end) {
		return false
	}
	for h := start + 1; h < end; h++ {
		if w.Code(h) != Free {
			return false
		}
	}
	return true
}

// Book commits the interval start..end. Interior hours become unavailable.
// Booking a single hour leaves every hour available.
func (w *Window) Book(start, end int) error {
	if !w.span.Contains(start) || !w.span.Contains(end) {
		return fmt.Errorf("%w: %d..%d not in %d..%d", ErrHourOutOfSpan, start, end, w.span.First, w.span.Last)
	}
	if end < start {
		return fmt.Errorf("book %d..%d: end before start", start, end)
	}
	if !w.CanBook(start, end) {
		return fmt.Errorf("%w: %d..%d", ErrUnavailable, start, end)
	}
	s, e := start-w.span.First, end-w.span.First
	if s == e {
		w.codes[s] = Shared
		return nil
	}
	switch w.codes[s] {
	case Arrival:
		w.codes[s] = Shared
	case Free:
		w.codes[s] = Departure
	}
	switch w.codes[e] {
	case Departure:
		w.codes[e] = Shared
	case Free:
		w.codes[e] = Arrival
	}
	for i := s + 1; i < e; i++ {
		w.codes[i] = Interior
	}
	return nil
}

// Remaining returns the number of available hours.
func (w *Window) Remaining() int {
	n := 0
	for _, c := range w.codes {
		if c != Interior {
			n++
		}
	}
	return n
}

// RemainingAfter returns the hours that would remain available if start..end
// were booked.
func (w *Window) RemainingAfter(start, end int) int {
	n := w.Remaining()
	if end-start > 1 {
		n -= end - start - 1
	}
	return n
}

// RunBefore counts the contiguous available hours immediately before h.
func (w *Window) RunBefore(h int) int {
	n := 0
	for i := h - 1; i >= w.span.First && w.IsAvailable(i); i-- {
		n++
	}
	return n
}

// RunAfter counts the contiguous available hours immediately after h.
func (w *Window) RunAfter(h int) int {
	n := 0
	for i := h + 1; i <= w.span.Last && w.IsAvailable(i); i++ {
		n++
	}
	return n
}

// Overlap counts the hours available in both windows. Windows over different
// spans are compared on their common hours.
func (w *Window) Overlap(other *Window) int {
	if other == nil {
		return 0
	}
	first := max(w.span.First, other.span.First)
	last := min(w.span.Last, other.span.Last)
	n := 0
	for h := first; h <= last; h++ {
		if w.IsAvailable(h) && other.IsAvailable(h) {
			n++
		}
	}
	return n
}

// Reset frees every hour.
func (w *Window) Reset() {
	clear(w.codes)
}

// Clone returns an independent copy of the window.
func (w *Window) Clone() *Window {
	c := &Window{span: w.span, codes: make([]byte, len(w.codes))}
	copy(c.codes, w.codes)
	return c
}

// Restore overwrites w with the contents of src.
func (w *Window) Restore(src *Window) {
	w.span = src.span
	w.codes = append(w.codes[:0], src.codes...)
}

// Equal reports whether both windows have the same span and codes.
func (w *Window) Equal(o *Window) bool {
	if o == nil || w.span != o.span {
		return false
	}
	for i := range w.codes {
		if w.codes[i] != o.codes[i] {
			return false
		}
	}
	return true
}

var glyphs = [...]byte{Free: '.', Interior: '=', Departure: '[', Arrival: ']', Shared: '|'}

// String renders one glyph per hour, e.g. "........[===]..........".
func (w *Window) String() string {
	var b strings.Builder
	b.Grow(len(w.codes))
	for _, c := range w.codes {
		if int(c) < len(glyphs) {
			b.WriteByte(glyphs[c])
		} else {
			b.WriteByte('?')
		}
	}
	return b.String()
}

type wireWindow struct {
	Span  Span   `json:"span"`
	Codes []byte `json:"codes"`
}

// MarshalJSON encodes the span and the raw hour codes.
func (w *Window) MarshalJSON() ([]byte, error) {
	return json.Marshal(wireWindow{Span: w.span, Codes: w.codes})
}

// UnmarshalJSON decodes a window produced by MarshalJSON.
func (w *Window) UnmarshalJSON(b []byte) error {
	var ww wireWindow
	if err := json.Unmarshal(b, &ww); err != nil {
		return err
	}
	if err := ww.Span.Validate(); err != nil {
		return err
	}
	if len(ww.Codes) == 0 {
		ww.Codes = make([]byte, ww.Span.Len())
	}
	if len(ww.Codes) != ww.Span.Len() {
		return fmt.Errorf("window codes length %d does not match span length %d", len(ww.Codes), ww.Span.Len())
	}
	for _, c := range ww.Codes {
		if c > Shared {
			return fmt.Errorf("invalid hour code %d", c)
		}
	}
	w.span = ww.Span
	w.codes = ww.Codes
	return nil
}
