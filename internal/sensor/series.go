// Package sensor decodes the fixed-layout tabular exports of the force plates, the EMG system and
// the motion-capture system into typed channel buffers.
package sensor

import "fmt"

// Modality identifies one of the three recording systems.
type Modality string

const (
	Kinetics   Modality = "kinetics"
	EMG        Modality = "emg"
	Kinematics Modality = "kinematics"
)

// Expected sampling rates, Hz.
const (
	KineticsRate   = 1000
	EMGRate        = 2000
	KinematicsRate = 100
)

// HeaderRows is the number of lines preceding the data block in every export.
const HeaderRows = 5

// Series is one modality's recording: a timestamp per accepted row and one named channel per
// column group. Len(Timestamps) equals the length of every channel.
type Series struct {
	Modality   Modality
	SampleRate float64
	Timestamps []float64
	Names      []string
	Channels   [][]float64

	index map[string]int
}

func newSeries(m Modality, rate float64, names []string) *Series {
	s := Series{
		Modality:   m,
		SampleRate: rate,
		Names:      names,
		Channels:   make([][]float64, len(names)),
		index:      make(map[string]int, len(names)),
	}
	for i, n := range names {
		s.index[n] = i
	}
	return &s
}

// SampleCount returns the number of accepted rows.
func (s *Series) SampleCount() int {
	return len(s.Timestamps)
}

// Duration returns the recording length in seconds.
func (s *Series) Duration() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(s.SampleCount()) / s.SampleRate
}

// Channel returns the named channel.
func (s *Series) Channel(name string) ([]float64, bool) {
	if s.index == nil {
		for i, n := range s.Names {
			if n == name {
				return s.Channels[i], true
			}
		}
		return nil, false
	}
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.Channels[i], true
}

// Markers returns the marker names of a kinematics series in column order.
func (s *Series) Markers() []string {
	var markers []string
	for i := 0; i+2 < len(s.Names); i += 3 {
		markers = append(markers, MarkerName(s.Names[i]))
	}
	return markers
}

// MarkerChannel returns the name of a marker axis channel, e.g. "RHEE_z".
func MarkerChannel(marker string, axis byte) string {
	return fmt.Sprintf("%s_%c", marker, axis)
}

// MarkerName strips the axis suffix from a marker axis channel name.
func MarkerName(channel string) string {
	if len(channel) > 2 && channel[len(channel)-2] == '_' {
		return channel[:len(channel)-2]
	}
	return channel
}

// Consistent reports whether every channel has one sample per timestamp.
func (s *Series) Consistent() bool {
	for _, ch := range s.Channels {
		if len(ch) != len(s.Timestamps) {
			return false
		}
	}
	return true
}

func (s *Series) append(row []float64) {
	s.Timestamps = append(s.Timestamps, float64(len(s.Timestamps))/s.SampleRate)
	for i := range s.Channels {
		s.Channels[i] = append(s.Channels[i], row[i])
	}
}
