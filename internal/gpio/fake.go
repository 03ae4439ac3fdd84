package gpio

import "errors"

// FakeReader is a test double that returns scripted door readings.
type FakeReader struct {
	// Samples contains scripted readings (true = open).
	// Each call to Read() consumes the next sample.
	Samples []bool

	// index tracks current position in Samples
	index int

	// Reads counts calls to Read.
	Reads int

	// Closed tracks if Close was called
	Closed bool

	// ReadError, if set, will be returned by Read()
	ReadError error
}

// NewFakeReader creates a FakeReader with the given samples.
func NewFakeReader(samples ...bool) *FakeReader {
	return &FakeReader{Samples: samples}
}

// Read returns the next scripted sample.
// If samples are exhausted, returns the last sample repeatedly.
func (f *FakeReader) Read() (bool, error) {
	f.Reads++
	if f.ReadError != nil {
		return false, f.ReadError
	}

	if len(f.Samples) == 0 {
		return false, errors.New("no samples configured")
	}

	sample := f.Samples[f.index]
	if f.index < len(f.Samples)-1 {
		f.index++
	}

	return sample, nil
}

// Close marks the reader as closed.
func (f *FakeReader) Close() error {
	f.Closed = true
	return nil
}

// LEDState is one recorded Show call.
type LEDState struct {
	Open   bool
	Closed bool
}

// FakeIndicator records LED changes.
type FakeIndicator struct {
	// History contains every Show call in order.
	History []LEDState

	// ShowError, if set, will be returned by Show.
	ShowError error

	// Closed tracks if Close was called.
	Closed bool
}

// Show records the LED state.
func (f *FakeIndicator) Show(open, closed bool) error {
	if f.ShowError != nil {
		return f.ShowError
	}
	f.History = append(f.History, LEDState{Open: open, Closed: closed})
	return nil
}

// Current returns the last LED state, or both off if Show was never called.
func (f *FakeIndicator) Current() LEDState {
	if len(f.History) == 0 {
		return LEDState{}
	}
	return f.History[len(f.History)-1]
}

// Close marks the indicator as closed.
func (f *FakeIndicator) Close() error {
	f.Closed = true
	return nil
}
