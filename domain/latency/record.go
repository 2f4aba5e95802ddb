package latency

// Latency tester protocol constants. The tester reads back an 8-bit gray
// level and quantizes it to one of IncrementCount readback indices.
const (
	ColorIncrement     = 32
	PixelTestThreshold = ColorIncrement / 3
	IncrementCount     = 256 / ColorIncrement

	// FramesTracked is the number of distinct non-baseline colors, so a tag
	// never collides with the baseline state.
	FramesTracked = IncrementCount - 1

	// RecordCount is the number of records per hardware batch.
	RecordCount = 4
	recordMask  = RecordCount - 1
)

// DrawColor is a readback index, 0..IncrementCount-1. It is what the tracker
// hands out and what the tester reports; Pixel gives the gray level that has
// to be painted for it.
type DrawColor uint8

// DrawColorBaseline is painted while no frame is being tagged. It is a valid
// protocol value that never has a saved timestamp.
const DrawColorBaseline DrawColor = 0

// Pixel returns the 8-bit gray level to paint for c: the middle of its
// quantization bucket.
func (c DrawColor) Pixel() uint8 {
	return uint8(int(c)*ColorIncrement + ColorIncrement/2)
}

// Tagged reports whether c identifies a frame (as opposed to the baseline).
func (c DrawColor) Tagged() bool { return c != DrawColorBaseline && int(c) <= FramesTracked }

// ColorFromPixel decodes a read-back gray level. It fails when the level sits
// too far from the centre of any bucket to be trusted, e.g. mid-transition.
func ColorFromPixel(pixel uint8) (DrawColor, bool) {
	compare := int(pixel) - ColorIncrement/2
	index := int(pixel) / ColorIncrement
	delta := compare - index*ColorIncrement
	if delta < PixelTestThreshold && delta > -PixelTestThreshold {
		return DrawColor(index), true
	}
	return 0, false
}

// FrameTimeRecord is one hardware readback: the index seen on screen and
// when it was scanned out.
type FrameTimeRecord struct {
	ReadbackIndex DrawColor
	TimeSeconds   float64
}

// FrameTimeRecordSet holds the last RecordCount readbacks, oldest first when
// accessed through At.
type FrameTimeRecordSet struct {
	Records        [RecordCount]FrameTimeRecord
	NextWriteIndex int
}

// AddValue appends a readback, dropping the oldest.
func (s *FrameTimeRecordSet) AddValue(index DrawColor, timeSeconds float64) {
	s.Records[s.NextWriteIndex] = FrameTimeRecord{ReadbackIndex: index, TimeSeconds: timeSeconds}
	s.NextWriteIndex = (s.NextWriteIndex + 1) & recordMask
}

// At returns the i-th record counting from the oldest.
func (s *FrameTimeRecordSet) At(i int) FrameTimeRecord {
	return s.Records[(s.NextWriteIndex+i)&recordMask]
}

// MostRecent returns the newest record.
func (s *FrameTimeRecordSet) MostRecent() FrameTimeRecord {
	return s.Records[(s.NextWriteIndex-1)&recordMask]
}

// FindReadbackIndex searches from position start (oldest-first order) for
// index and returns its position.
func (s *FrameTimeRecordSet) FindReadbackIndex(start int, index DrawColor) (int, bool) {
	for i := start; i < RecordCount; i++ {
		if s.At(i).ReadbackIndex == index {
			return i, true
		}
	}
	return 0, false
}

// IsAllZeroes reports whether every record shows the baseline color.
func (s *FrameTimeRecordSet) IsAllZeroes() bool {
	for i := range s.Records {
		if s.Records[i].ReadbackIndex != DrawColorBaseline {
			return false
		}
	}
	return true
}

// FrameTimeRecordEx is a tagged frame waiting for (or matched against) its
// readback, with the IMU sample times that fed its render and time-warp.
type FrameTimeRecordEx struct {
	FrameTimeRecord
	MatchedRecord          bool
	RenderIMUTimeSeconds   float64
	TimewarpIMUTimeSeconds float64
}
