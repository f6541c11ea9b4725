// Package align resamples EMG and kinematics onto the force-plate master timeline and assembles
// the synchronized frame every later stage consumes.
package align

import (
	"fmt"
	"math"

	"github.com/roman-kulish/gait-fusion/internal/fault"
	"github.com/roman-kulish/gait-fusion/internal/gait"
	"github.com/roman-kulish/gait-fusion/internal/sensor"
	"github.com/roman-kulish/gait-fusion/internal/signal"
)

// Method names the resampling scheme recorded in exported artifacts.
const Method = "emg_decimation_kinematics_interpolation"

// Synchronize builds the frame for one trial. force is the master and must hold at least one
// sample; emg and kin may be nil, in which case a MissingModality warning is recorded and the
// EMG channels are zero-filled.
func Synchronize(trialID string, force, emg, kin *sensor.Series) (fault.Result[*gait.Frame], error) {
	if force == nil || force.SampleCount() == 0 {
		return fault.Result[*gait.Frame]{}, fault.NewFormatError(trialID, "empty master timeline")
	}

	n := force.SampleCount()
	frame := gait.Frame{
		TrialID:    trialID,
		SampleRate: force.SampleRate,
		Timestamps: append([]float64(nil), force.Timestamps...),
	}

	var result fault.Result[*gait.Frame]

	for _, leg := range gait.Legs {
		plate := frame.Plate(leg)
		for c := range gait.NumPlateChannels {
			name := sensor.PlateColumn(leg, c)
			ch, ok := force.Channel(name)
			if !ok {
				result.Add(fault.Warn(fault.MissingModality, string(sensor.Kinetics), "channel %s missing, zero-filled", name))
				ch = make([]float64, n)
			}
			plate[c] = append([]float64(nil), ch...)
		}
	}

	if emg == nil || emg.SampleCount() == 0 {
		result.Add(fault.Warn(fault.MissingModality, string(sensor.EMG), "no EMG samples, channels zero-filled"))
		for c := range frame.EMG {
			frame.EMG[c] = make([]float64, n)
		}
	} else {
		factor := decimationFactor(emg.SampleRate, force.SampleRate)
		for c := range frame.EMG {
			ch, ok := emg.Channel(gait.EMGChannelName(c))
			if !ok {
				ch = nil
			}
			frame.EMG[c] = signal.Decimate(ch, factor, n)
		}
	}

	if kin == nil || kin.SampleCount() == 0 {
		result.Add(fault.Warn(fault.MissingModality, string(sensor.Kinematics), "no kinematics samples"))
	} else {
		for _, name := range kin.Markers() {
			m := gait.Marker{Name: name}
			for _, axis := range []struct {
				id  byte
				dst *[]float64
			}{{'x', &m.X}, {'y', &m.Y}, {'z', &m.Z}} {
				ch, _ := kin.Channel(sensor.MarkerChannel(name, axis.id))
				*axis.dst = signal.Interpolate(kin.Timestamps, ch, frame.Timestamps)
			}
			frame.Markers = append(frame.Markers, m)
		}
	}

	result.Add(Validate(&frame)...)
	result.Value = &frame
	return result, nil
}

func decimationFactor(rate, master float64) int {
	if master <= 0 || rate <= master {
		return 1
	}
	return int(math.Round(rate / master))
}

// Validate checks that every channel carries one sample per master timestamp, replaces
// non-finite samples with 0 and flags plate forces beyond gait.MaxPlausibleForce. Findings are
// returned as warnings; the frame is never rejected.
func Validate(f *gait.Frame) []fault.ValidationWarning {
	var warnings []fault.ValidationWarning
	n := f.Len()

	check := func(source string, ch []float64) {
		if len(ch) != n {
			warnings = append(warnings, fault.Warn(fault.LengthMismatch, source, "%d samples, master has %d", len(ch), n))
		}
		if replaced := signal.Sanitize(ch); replaced > 0 {
			warnings = append(warnings, fault.Warn(fault.NonFinite, source, "%d non-finite samples replaced by 0", replaced))
		}
	}

	for _, leg := range gait.Legs {
		plate := f.Plate(leg)
		for c := range plate {
			check(sensor.PlateColumn(leg, c), plate[c])
		}
		for _, c := range []int{gait.Fx, gait.Fy, gait.Fz} {
			if n := outOfRange(plate[c], gait.MaxPlausibleForce); n > 0 {
				warnings = append(warnings, fault.Warn(fault.OutOfRange, sensor.PlateColumn(leg, c),
					"%d samples beyond %.0f N", n, gait.MaxPlausibleForce))
			}
		}
	}
	for c := range f.EMG {
		check(gait.EMGChannelName(c), f.EMG[c])
	}
	for _, m := range f.Markers {
		check(fmt.Sprintf("%s_x", m.Name), m.X)
		check(fmt.Sprintf("%s_y", m.Name), m.Y)
		check(fmt.Sprintf("%s_z", m.Name), m.Z)
	}
	return warnings
}

func outOfRange(x []float64, limit float64) int {
	var n int
	for _, v := range x {
		if math.Abs(v) > limit {
			n++
		}
	}
	return n
}
