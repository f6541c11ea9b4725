package gait

// Force plate channel indices.
const (
	Fx = iota
	Fy
	Fz
	Mx
	My
	Mz
	CopX
	CopY
	CopZ

	NumPlateChannels
)

var plateChannelNames = [NumPlateChannels]string{
	"fx", "fy", "fz", "mx", "my", "mz", "cop_x", "cop_y", "cop_z",
}

// PlateChannelName returns the export name of a plate channel ("fz", "cop_x", ...).
func PlateChannelName(c int) string {
	return plateChannelNames[c]
}

// MaxPlausibleForce bounds the magnitude of a plate force sample, N.
const MaxPlausibleForce = 5000.0

// Plate holds the nine channels of one force plate: forces in N, moments in Nmm and centre of
// pressure in mm.
type Plate [NumPlateChannels][]float64

// Fz returns the vertical ground reaction force.
func (p *Plate) Fz() []float64 {
	return p[Fz]
}

// EMG channel indices. Channels 1 to 4 carry the muscles the fusion detectors rely on.
const (
	EMG1 = iota
	EMG2
	EMG3
	EMG4
	EMG5
	EMG6
	EMG7
	EMG8
	EMG9
	EMG10
	EMG11
	EMG12
	EMG13
	EMG14
	EMG15
	EMG16

	NumEMGChannels
)

const (
	LeftQuadriceps  = EMG1
	RightQuadriceps = EMG2
	LeftHamstring   = EMG3
	RightHamstring  = EMG4
)

var emgChannelNames = [NumEMGChannels]string{
	"emg1", "emg2", "emg3", "emg4", "emg5", "emg6", "emg7", "emg8",
	"emg9", "emg10", "emg11", "emg12", "emg13", "emg14", "emg15", "emg16",
}

// EMGChannelName returns the export name of an EMG channel ("emg1" ... "emg16").
func EMGChannelName(c int) string {
	return emgChannelNames[c]
}

// EMGChannelIndex resolves an export name back to its index.
func EMGChannelIndex(name string) (int, bool) {
	for i, n := range emgChannelNames {
		if n == name {
			return i, true
		}
	}
	return 0, false
}

// EMG holds 16 surface EMG channels in volts.
type EMG [NumEMGChannels][]float64

// Quadriceps returns the quadriceps channel index of the leg.
func Quadriceps(leg Leg) int {
	if leg == Left {
		return LeftQuadriceps
	}
	return RightQuadriceps
}

// Hamstring returns the hamstring channel index of the leg.
func Hamstring(leg Leg) int {
	if leg == Left {
		return LeftHamstring
	}
	return RightHamstring
}
