package app

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/roman-kulish/gait-fusion/internal/storage"
)

const (
	ImagePNG  = "png"
	ImageJPEG = "jpeg"
)

type ImageFormat string

// Config selects what to plot. With a run id the events come from the database and the force
// traces from the run's trial artifact; with an artifact alone its ground truth events are plotted.
type Config struct {
	DBPath        string
	Driver        string
	RunID         uuid.UUID
	ArtifactPath  string
	OutputFile    string
	Format        ImageFormat
	Width         int
	Height        int
	From          *float64
	To            *float64
	MinConfidence float64
	NoAnnotations bool
}

var validImageFormats = map[ImageFormat]struct{}{
	ImagePNG:  {},
	ImageJPEG: {},
}

func NewConfig() *Config {
	return &Config{
		Driver: storage.DriverCGO,
		Format: ImagePNG,
		Width:  defaultWidth,
		Height: defaultHeight,
	}
}

func NewConfigFromCLI() (*Config, error) {
	c, err := ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		flag.Usage()
		return nil, err
	}
	return c, nil
}

// ParseConfig reads the command line flags from args into a validated configuration.
func ParseConfig(fs *flag.FlagSet, args []string) (*Config, error) {
	c := NewConfig()

	var imageFormat, runID string
	var from, to float64
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.StringVar(&c.Driver, "driver", c.Driver, "Database driver. [sqlite3, sqlite]")
	fs.StringVar(&runID, "run", "", "Detection run ID")
	fs.StringVar(&c.ArtifactPath, "artifact", "", "Path to a trial artifact, overrides the run's artifact")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file")
	fs.StringVar(&imageFormat, "f", string(ImagePNG), "Output image format. [png, jpeg]")
	fs.IntVar(&c.Width, "width", c.Width, "Plot width in pixels")
	fs.IntVar(&c.Height, "height", c.Height, "Plot height in pixels")
	fs.Float64Var(&from, "from", 0, "Start of the plotted interval, s")
	fs.Float64Var(&to, "to", 0, "End of the plotted interval, s")
	fs.Float64Var(&c.MinConfidence, "min-confidence", 0, "Hide events below this confidence")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as time and force scales")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	imageFormat = strings.ToLower(imageFormat)

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "from" {
			c.From = &from
		}
		if f.Name == "to" {
			c.To = &to
		}
	})

	var err error
	if runID != "" {
		if c.RunID, err = uuid.Parse(runID); err != nil {
			return nil, fmt.Errorf("invalid run id: %w", err)
		}
	}

	switch {
	case c.RunID == uuid.Nil && c.ArtifactPath == "":
		err = errors.New("run id or artifact path is required")
	case c.RunID != uuid.Nil && c.DBPath == "":
		err = errors.New("db path is required with a run id")
	case c.Driver != storage.DriverCGO && c.Driver != storage.DriverPure:
		err = fmt.Errorf("invalid driver: %s", c.Driver)
	case c.OutputFile == "":
		err = errors.New("output file is required")
	case c.Width < minWidth || c.Height < minHeight:
		err = fmt.Errorf("plot must be at least %dx%d pixels", minWidth, minHeight)
	case c.From != nil && c.To != nil && *c.From >= *c.To:
		err = errors.New("from must be before to")
	}
	if err == nil {
		if _, ok := validImageFormats[ImageFormat(imageFormat)]; !ok {
			err = fmt.Errorf("invalid image format: %s", imageFormat)
		}
	}
	if err != nil {
		return nil, err
	}

	c.Format = ImageFormat(imageFormat)
	c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	return c, nil
}
