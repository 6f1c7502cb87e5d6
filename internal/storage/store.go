package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/orbits/internal/sim"
)

const (
	metadataFile = "metadata.json"
	framesFile   = "frames.csv"
)

// Store keeps run reports under baseDir, one directory per run. Particle
// state is never persisted; a report holds the run parameters, the final
// metric values and the sampled metric series.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Timestamp time.Time          `json:"timestamp"`
	Seed      int64              `json:"seed"`
	Particles int                `json:"particles"`
	Backend   string             `json:"backend"`
	Mode      string             `json:"mode"`
	Dt        float32            `json:"dt"`
	Substeps  int                `json:"substeps"`
	Frames    int                `json:"frames"`
	Switches  int                `json:"switches"`
	Elapsed   time.Duration      `json:"elapsed_ns"`
	Metrics   map[string]float64 `json:"metrics"`
}

// FrameRate is the number of frames produced per wall-clock second.
func (m RunMetadata) FrameRate() float64 {
	if m.Elapsed <= 0 {
		return 0
	}
	return float64(m.Frames) / m.Elapsed.Seconds()
}

// Save writes a report for result. meta supplies the run parameters; its
// ID, Timestamp and the result-derived fields are filled in here.
func (s *Store) Save(meta RunMetadata, result *sim.Result) (string, error) {
	now := time.Now()
	meta.ID = fmt.Sprintf("%s_%d", meta.Name, now.UnixNano())
	meta.Timestamp = now
	meta.Frames = result.Frames
	meta.Switches = result.Switches
	meta.Elapsed = result.Elapsed
	meta.Metrics = result.Metrics

	runDir := filepath.Join(s.baseDir, meta.ID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	metaFile, err := os.Create(filepath.Join(runDir, metadataFile))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	if err := writeSamples(filepath.Join(runDir, framesFile), result.Samples); err != nil {
		return "", err
	}
	return meta.ID, nil
}

func writeSamples(path string, samples []sim.Sample) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)

	names := metricNames(samples)
	header := append([]string{"frame", "time", "mode", "step_us"}, names...)
	if err := w.Write(header); err != nil {
		return err
	}

	for _, smp := range samples {
		row := []string{
			strconv.FormatUint(smp.Frame, 10),
			strconv.FormatFloat(smp.Time, 'f', 6, 64),
			smp.Mode.String(),
			strconv.FormatInt(smp.Step.Microseconds(), 10),
		}
		for _, name := range names {
			row = append(row, strconv.FormatFloat(smp.Values[name], 'g', 10, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}

func metricNames(samples []sim.Sample) []string {
	seen := map[string]bool{}
	var names []string
	for _, smp := range samples {
		for name := range smp.Values {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
	}
	sort.Strings(names)
	return names
}

// List returns every readable report, newest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.After(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadSamples reads the sampled metric series of a run.
func (s *Store) LoadSamples(runID string) ([]sim.Sample, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, framesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return []sim.Sample{}, nil
	}

	header := records[0]
	if len(header) < 4 {
		return nil, fmt.Errorf("run %s: malformed %s header", runID, framesFile)
	}
	names := header[4:]

	samples := make([]sim.Sample, 0, len(records)-1)
	for i, record := range records[1:] {
		frame, err := strconv.ParseUint(record[0], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", framesFile, i+2, err)
		}
		t, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", framesFile, i+2, err)
		}
		mode, err := sim.ParseMode(record[2])
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", framesFile, i+2, err)
		}
		us, err := strconv.ParseInt(record[3], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s line %d: %w", framesFile, i+2, err)
		}

		smp := sim.Sample{
			Frame:  frame,
			Time:   t,
			Mode:   mode,
			Step:   time.Duration(us) * time.Microsecond,
			Values: make(map[string]float64, len(names)),
		}
		for j, name := range names {
			v, err := strconv.ParseFloat(record[4+j], 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", framesFile, i+2, err)
			}
			smp.Values[name] = v
		}
		samples = append(samples, smp)
	}
	return samples, nil
}

// Series extracts one metric from samples, with the matching sample times.
func Series(samples []sim.Sample, metric string) (values, times []float64) {
	values = make([]float64, 0, len(samples))
	times = make([]float64, 0, len(samples))
	for _, smp := range samples {
		v, ok := smp.Values[metric]
		if !ok {
			continue
		}
		values = append(values, v)
		times = append(times, smp.Time)
	}
	return values, times
}
