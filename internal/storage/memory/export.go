package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"

	"github.com/skyops/dronectl/internal/geo"
	"github.com/skyops/dronectl/internal/vehicle"
	"github.com/skyops/dronectl/pkg/core"
)

// FlightExport is the root JSON structure
type FlightExport struct {
	ConsoleVersion string           `json:"consoleVersion"`
	LinkType       string           `json:"linkType"`
	Endpoint       string           `json:"endpoint"`
	VehicleSystem  uint8            `json:"vehicleSystem"`
	StartTime      time.Time        `json:"startTime"`
	EndTime        time.Time        `json:"endTime"`
	Params         map[string]any   `json:"params"`
	Track          geom.LineString  `json:"track"` // GeoJSON, lon/lat/alt
	Samples        []SampleJSON     `json:"samples"`
	Transitions    []TransitionJSON `json:"transitions"`
	Commands       []CommandJSON    `json:"commands"`
}

// SampleJSON is one telemetry row.
type SampleJSON struct {
	Time        time.Time `json:"time"`
	Latitude    float64   `json:"lat"`
	Longitude   float64   `json:"lon"`
	Altitude    float64   `json:"alt"`
	Velocity    []float64 `json:"velNed"`
	Speed       float64   `json:"speed"`
	Battery     float64   `json:"battery"`
	LandedState string    `json:"landedState"`
	Mode        string    `json:"mode"`
}

// TransitionJSON is one mode change.
type TransitionJSON struct {
	Time   time.Time `json:"time"`
	From   string    `json:"from"`
	To     string    `json:"to"`
	Reason string    `json:"reason,omitempty"`
}

// CommandJSON is one vehicle command.
type CommandJSON struct {
	Time       time.Time      `json:"time"`
	Command    string         `json:"command"`
	Params     map[string]any `json:"params,omitempty"`
	DurationMs float64        `json:"durationMs"`
	Success    bool           `json:"success"`
	Error      string         `json:"error,omitempty"`
}

// exportJSON writes the flight data to a JSON file, gzipped when configured.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	timestamp := b.flight.StartTime.UTC().Format("20060102_150405")
	filename := fmt.Sprintf("flight_%s.json", timestamp)
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, export)
	} else {
		err = writeJSON(outputPath, export)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() FlightExport {
	f := b.flight
	endTime := f.EndTime
	if endTime.IsZero() {
		endTime = time.Now().UTC()
	}

	export := FlightExport{
		ConsoleVersion: f.ConsoleVersion,
		LinkType:       f.LinkType,
		Endpoint:       f.Endpoint,
		VehicleSystem:  f.VehicleSystem,
		StartTime:      f.StartTime,
		EndTime:        endTime,
		Params:         f.Params,
		Samples:        make([]SampleJSON, 0, len(b.samples)),
		Transitions:    make([]TransitionJSON, 0, len(b.transitions)),
		Commands:       make([]CommandJSON, 0, len(b.commands)),
	}

	track := make([]vehicle.Waypoint, 0, len(b.samples))
	for _, s := range b.samples {
		export.Samples = append(export.Samples, SampleJSON{
			Time:        s.Time,
			Latitude:    s.LatitudeDeg,
			Longitude:   s.LongitudeDeg,
			Altitude:    s.RelativeAltitudeM,
			Velocity:    []float64{s.VelocityNorthMS, s.VelocityEastMS, s.VelocityDownMS},
			Speed:       s.SpeedMS,
			Battery:     s.BatteryPercent,
			LandedState: s.LandedState,
			Mode:        s.Mode,
		})
		if s.LatitudeDeg != 0 || s.LongitudeDeg != 0 {
			track = append(track, vehicle.Waypoint{
				LatitudeDeg:  s.LatitudeDeg,
				LongitudeDeg: s.LongitudeDeg,
				AltitudeM:    s.RelativeAltitudeM,
			})
		}
	}
	export.Track = geo.PathLineString(track)

	for _, t := range b.transitions {
		export.Transitions = append(export.Transitions, transitionToJSON(t))
	}
	for _, c := range b.commands {
		export.Commands = append(export.Commands, CommandJSON{
			Time:       c.Time,
			Command:    c.Command,
			Params:     c.Params,
			DurationMs: float64(c.Duration.Microseconds()) / 1000,
			Success:    c.Success,
			Error:      c.Error,
		})
	}

	return export
}

func transitionToJSON(t core.ModeTransition) TransitionJSON {
	return TransitionJSON{Time: t.Time, From: t.From, To: t.To, Reason: t.Reason}
}

func writeJSON(path string, data FlightExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	return json.NewEncoder(f).Encode(data)
}

func writeGzipJSON(path string, data FlightExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	if err := json.NewEncoder(gw).Encode(data); err != nil {
		gw.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return gw.Close()
}
