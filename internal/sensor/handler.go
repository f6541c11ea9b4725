package sensor

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/roman-kulish/gait-fusion/internal/gait"
)

const (
	// firstDataColumn skips the frame and sub-frame columns.
	firstDataColumn = 2

	// DefaultMarkerPrefix is the subject prefix the motion-capture export puts on marker names.
	DefaultMarkerPrefix = "S12:"
)

// ErrShortRow is returned by Handler.Parse when a row carries fewer fields than the layout needs.
var ErrShortRow = errors.New("row has too few fields")

// Handler decodes one modality's column layout.
type Handler interface {
	Modality() Modality
	// Rate is the sampling rate the header must declare.
	Rate() int
	// Columns derives channel names from the header block.
	Columns(header []string) ([]string, error)
	// Parse decodes the data fields of one row into row, which has one slot per column.
	// Unparseable cells decode as 0 and are counted in invalid.
	Parse(fields []string, row []float64) (invalid int, err error)
}

// parseCells decodes len(row) consecutive cells starting at the first data column.
func parseCells(fields []string, row []float64) (int, error) {
	if len(fields) < firstDataColumn+len(row) {
		return 0, fmt.Errorf("%w: %d given, %d required", ErrShortRow, len(fields), firstDataColumn+len(row))
	}

	var invalid int
	for i := range row {
		if !parseCell(fields[firstDataColumn+i], &row[i]) {
			invalid++
		}
	}
	return invalid, nil
}

// parseColumns decodes the cell at columns[i] into row[i]. width is the number of fields a row
// must carry.
func parseColumns(fields []string, row []float64, columns []int, width int) (int, error) {
	if len(fields) < width {
		return 0, fmt.Errorf("%w: %d given, %d required", ErrShortRow, len(fields), width)
	}

	var invalid int
	for i, c := range columns {
		if !parseCell(fields[c], &row[i]) {
			invalid++
		}
	}
	return invalid, nil
}

// parseCell stores the value of cell in dst, or 0 when it is not a finite number.
func parseCell(cell string, dst *float64) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		*dst = 0
		return false
	}
	*dst = v
	return true
}

type kineticsHandler struct{}

// NewKinetics returns the dual force plate handler: columns 2-10 carry the left plate and 11-19
// the right plate, nine channels each.
func NewKinetics() Handler {
	return kineticsHandler{}
}

func (kineticsHandler) Modality() Modality { return Kinetics }
func (kineticsHandler) Rate() int          { return KineticsRate }

func (kineticsHandler) Columns([]string) ([]string, error) {
	return KineticsColumns(), nil
}

func (kineticsHandler) Parse(fields []string, row []float64) (int, error) {
	return parseCells(fields, row)
}

// KineticsColumns returns the channel names of a kinetics series, e.g. "left_fz", "right_cop_x".
func KineticsColumns() []string {
	names := make([]string, 0, 2*gait.NumPlateChannels)
	for _, leg := range gait.Legs {
		for c := range gait.NumPlateChannels {
			names = append(names, PlateColumn(leg, c))
		}
	}
	return names
}

// PlateColumn returns the kinetics channel name of a plate channel.
func PlateColumn(leg gait.Leg, channel int) string {
	return string(leg) + "_" + gait.PlateChannelName(channel)
}

type emgHandler struct{}

// NewEMG returns the 16-channel EMG handler reading columns 2-17.
func NewEMG() Handler {
	return emgHandler{}
}

func (emgHandler) Modality() Modality { return EMG }
func (emgHandler) Rate() int          { return EMGRate }

func (emgHandler) Columns([]string) ([]string, error) {
	names := make([]string, gait.NumEMGChannels)
	for i := range names {
		names[i] = gait.EMGChannelName(i)
	}
	return names, nil
}

func (emgHandler) Parse(fields []string, row []float64) (int, error) {
	return parseCells(fields, row)
}

// WithMarkerPrefix sets the prefix stripped from marker names.
func WithMarkerPrefix(prefix string) func(h *kinematicsHandler) {
	return func(h *kinematicsHandler) {
		h.prefix = prefix
	}
}

type kinematicsHandler struct {
	prefix  string
	columns []int // field index of every channel
	width   int   // fields a data row must carry
}

// NewKinematics returns the motion-capture handler. Marker names come from header row 3 at
// columns 2, 5, 8, ...; each marker occupies three columns (x, y, z in mm). Unnamed marker slots
// are skipped together with their columns. The handler keeps the column layout of the last header
// it read, so it serves one file at a time.
func NewKinematics(options ...func(h *kinematicsHandler)) Handler {
	h := kinematicsHandler{prefix: DefaultMarkerPrefix}
	for _, option := range options {
		option(&h)
	}
	return &h
}

func (h *kinematicsHandler) Modality() Modality { return Kinematics }
func (h *kinematicsHandler) Rate() int          { return KinematicsRate }

func (h *kinematicsHandler) Columns(header []string) ([]string, error) {
	if len(header) < 3 {
		return nil, errors.New("missing marker name row")
	}

	var names []string
	h.columns, h.width = nil, 0
	cols := strings.Split(header[2], ",")
	for i := firstDataColumn; i < len(cols); i += 3 {
		name := strings.TrimSpace(cols[i])
		if name == "" || name == "X" {
			continue
		}
		name = strings.TrimPrefix(name, h.prefix)
		if name == "" {
			continue
		}
		names = append(names, MarkerChannel(name, 'x'), MarkerChannel(name, 'y'), MarkerChannel(name, 'z'))
		h.columns = append(h.columns, i, i+1, i+2)
		h.width = i + 3
	}
	if len(names) == 0 {
		return nil, errors.New("no marker names in header")
	}
	return names, nil
}

func (h *kinematicsHandler) Parse(fields []string, row []float64) (int, error) {
	return parseColumns(fields, row, h.columns, h.width)
}
