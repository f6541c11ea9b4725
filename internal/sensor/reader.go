package sensor

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/roman-kulish/gait-fusion/internal/fault"
)

const maxLineSize = 1 << 20

// ErrTooManyBadRows is returned when the number of consecutive rejected rows exceeds the
// configured threshold.
var ErrTooManyBadRows = errors.New("too many consecutive bad rows")

// WithLogger sets the logger for the reader
func WithLogger(logger *slog.Logger) func(r *Reader) {
	return func(r *Reader) {
		r.logger = logger
	}
}

// WithMaxBadRows aborts a read after n consecutive rejected rows. Zero, the default, never aborts.
func WithMaxBadRows(n int) func(r *Reader) {
	return func(r *Reader) {
		r.maxBadRows = n
	}
}

// Reader turns one export into a Series using a modality Handler.
type Reader struct {
	handler    Handler
	maxBadRows int
	logger     *slog.Logger
}

// NewReader creates a new Reader with a discard logger
func NewReader(h Handler, options ...func(r *Reader)) *Reader {
	r := Reader{
		handler: h,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, option := range options {
		option(&r)
	}
	r.logger = r.logger.With(slog.String("modality", string(h.Modality())))
	return &r
}

// Read decodes the export in src. A header that does not declare the modality's rate is a
// *fault.FormatError; short rows and unparseable cells are reported as warnings.
func (r *Reader) Read(ctx context.Context, src io.Reader, source string) (fault.Result[*Series], error) {
	scanner := bufio.NewScanner(src)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	header := make([]string, 0, HeaderRows)
	for len(header) < HeaderRows && scanner.Scan() {
		header = append(header, scanner.Text())
	}

	expected := strconv.Itoa(r.handler.Rate())
	if len(header) < 2 || strings.TrimSpace(header[1]) != expected {
		return fault.Result[*Series]{}, fault.NewFormatError(source,
			fmt.Sprintf("invalid %s file: expected %sHz sampling rate", r.handler.Modality(), expected))
	}

	names, err := r.handler.Columns(header)
	if err != nil {
		return fault.Result[*Series]{}, fault.NewFormatError(source, err.Error())
	}

	series := newSeries(r.handler.Modality(), float64(r.handler.Rate()), names)
	row := make([]float64, len(names))

	var skipped, invalid, badRun, lineNo int
	lineNo = len(header)
	for scanner.Scan() {
		lineNo++
		if lineNo%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return fault.Result[*Series]{}, err
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		n, err := r.handler.Parse(strings.Split(line, ","), row)
		if err != nil {
			skipped++
			badRun++
			r.logger.Debug("skipping row", slog.Int("line", lineNo), slog.String("error", err.Error()))

			if r.maxBadRows > 0 && badRun >= r.maxBadRows {
				return fault.Result[*Series]{}, fmt.Errorf("%s: %w", source, ErrTooManyBadRows)
			}
			continue
		}

		badRun = 0
		invalid += n
		series.append(row)
	}
	if err := scanner.Err(); err != nil {
		return fault.Result[*Series]{}, fmt.Errorf("error reading %s: %w", source, err)
	}

	result := fault.Ok(series)
	if skipped > 0 {
		result.Add(fault.Warn(fault.SkippedRows, source, "%d rows with too few fields skipped", skipped))
	}
	if invalid > 0 {
		result.Add(fault.Warn(fault.InvalidValues, source, "%d unparseable cells decoded as 0", invalid))
	}

	r.logger.Info("series parsed",
		slog.String("source", source),
		slog.Int("samples", series.SampleCount()),
		slog.Int("channels", len(series.Names)),
		slog.Float64("duration", series.Duration()),
	)

	return result, nil
}

// ReadFile opens path and decodes it with h. A missing file is a *fault.FormatError.
func ReadFile(ctx context.Context, path string, h Handler, options ...func(r *Reader)) (fault.Result[*Series], error) {
	f, err := os.Open(path)
	if err != nil {
		return fault.Result[*Series]{}, fault.NewFormatError(path, err.Error())
	}
	defer f.Close()

	return NewReader(h, options...).Read(ctx, f, path)
}
