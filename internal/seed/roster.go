package seed

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Roster is the seed file layout.
//
//	teams:
//	  - name: Falcons
//	    players:
//	      - {name: Ana, goals: 2}
//	    matches:
//	      - {opponent: Hawks, date: 2024-06-01, time: "18:30", location: Home}
//	    sessions:
//	      - {date: 2024-05-20, attendees: [Ana]}
type Roster struct {
	Teams []TeamSeed `yaml:"teams"`
}

type TeamSeed struct {
	Name     string        `yaml:"name"`
	Players  []PlayerSeed  `yaml:"players"`
	Matches  []MatchSeed   `yaml:"matches"`
	Sessions []SessionSeed `yaml:"sessions"`
}

type PlayerSeed struct {
	Name          string `yaml:"name"`
	MatchesPlayed int    `yaml:"matchesPlayed"`
	Goals         int    `yaml:"goals"`
	Assists       int    `yaml:"assists"`
}

type MatchSeed struct {
	Opponent string `yaml:"opponent"`
	Date     string `yaml:"date"`
	Time     string `yaml:"time"`
	Location string `yaml:"location"`
}

// SessionSeed names attendees by player name within the team.
type SessionSeed struct {
	Date      string   `yaml:"date"`
	Attendees []string `yaml:"attendees"`
}

// LoadFile reads and parses a roster file.
func LoadFile(path string) (*Roster, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a roster, rejecting unknown keys.
func Parse(r io.Reader) (*Roster, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var roster Roster
	if err := dec.Decode(&roster); err != nil {
		if err == io.EOF {
			return &roster, nil
		}
		return nil, fmt.Errorf("decode roster: %w", err)
	}
	return &roster, nil
}
