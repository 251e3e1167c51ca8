package bdsp

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Encounter is one row of the statistics file.
type Encounter struct {
	Number         int
	Timestamp      time.Time
	EncounterTime  time.Duration
	BattleMenuTime time.Duration
	Type           Animation
	Shiny          bool
}

var statisticsHeader = []string{
	"encounter", "timestamp", "encounter_time", "battle_menu_time", "encounter_type", "shiny",
}

// StatisticsWriter appends encounters to a CSV file, flushing after every row
// so the file stays useful when the program is stopped.
type StatisticsWriter struct {
	file *os.File
	csv  *csv.Writer
}

// CreateStatistics creates path and writes the header.
func CreateStatistics(path string) (*StatisticsWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating statistics file: %w", err)
	}
	w := &StatisticsWriter{file: f, csv: csv.NewWriter(f)}
	if err := w.write(statisticsHeader); err != nil {
		f.Close()
		return nil, err
	}
	return w, nil
}

// WriteEncounter appends one row.
func (w *StatisticsWriter) WriteEncounter(e Encounter) error {
	return w.write([]string{
		strconv.Itoa(e.Number),
		e.Timestamp.Format(time.RFC3339),
		formatSeconds(e.EncounterTime),
		formatSeconds(e.BattleMenuTime),
		string(e.Type),
		strconv.FormatBool(e.Shiny),
	})
}

func (w *StatisticsWriter) write(record []string) error {
	if err := w.csv.Write(record); err != nil {
		return fmt.Errorf("writing statistics: %w", err)
	}
	w.csv.Flush()
	return w.csv.Error()
}

// Path returns the file name.
func (w *StatisticsWriter) Path() string {
	return w.file.Name()
}

// Close closes the file.
func (w *StatisticsWriter) Close() error {
	w.csv.Flush()
	return w.file.Close()
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
