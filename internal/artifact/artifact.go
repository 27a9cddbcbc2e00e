// Package artifact reads and writes the files that hand data from one stage
// to the next: tag lists and CSV extracts. Readers check the header once
// and return typed rows.
package artifact

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// File names inside the data directory.
const (
	ClansFile       = "clans.txt"
	PlayersFile     = "players.txt"
	PlayersCSV      = "players.csv"
	CardsCSV        = "cards.csv"
	BattlesCSV      = "battles_raw.csv"
	BattleCardsCSV  = "battle_cards_raw.csv"
	SummaryOverall  = "cards_summary_overall.csv"
	SummaryByTrophy = "cards_summary_per_trophy_bin.csv"
)

// SchemaError is an input table that lacks required columns.
type SchemaError struct {
	File    string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required column(s) %s", filepath.Base(e.File), strings.Join(e.Missing, ", "))
}

// RowError is a row whose required value cannot be parsed.
type RowError struct {
	File   string
	Line   int
	Column string
	Value  string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s:%d: bad %s value %q", filepath.Base(e.File), e.Line, e.Column, e.Value)
}

// MissingFileError is an input artifact that a previous stage should have produced.
type MissingFileError struct {
	Path  string
	Stage string
}

func (e *MissingFileError) Error() string {
	if e.Stage == "" {
		return fmt.Sprintf("%s not found", e.Path)
	}
	return fmt.Sprintf("%s not found. Run `crmetrics %s` first", e.Path, e.Stage)
}

func open(path, stage string) (*os.File, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &MissingFileError{Path: path, Stage: stage}
	}
	return f, err
}

func create(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(path)
}

// WriteTags writes one tag per line.
func WriteTags(path string, tags []string) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	w := bufio.NewWriter(f)
	for _, t := range tags {
		if _, err := w.WriteString(t + "\n"); err != nil {
			f.Close()
			return err
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// ReadTags reads a tag list, skipping blank lines. stage names the command
// that produces the file, for the missing-file error.
func ReadTags(path, stage string) ([]string, error) {
	f, err := open(path, stage)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var tags []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if t := strings.TrimSpace(sc.Text()); t != "" {
			tags = append(tags, t)
		}
	}
	return tags, sc.Err()
}
