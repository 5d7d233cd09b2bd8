package syncer

import (
	"fmt"
	"strings"
	"time"

	"github.com/Dilbarpun07/GBFC-website/internal/model"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// ValidationError is a local pre-flight failure. No remote call was made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

func required(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return &ValidationError{Field: field, Reason: "is required"}
	}
	return nil
}

func validDate(field, v string) error {
	if err := required(field, v); err != nil {
		return err
	}
	if _, err := time.Parse(dateLayout, v); err != nil {
		return &ValidationError{Field: field, Reason: "must be a date in YYYY-MM-DD form"}
	}
	return nil
}

func validTime(field, v string) error {
	if err := required(field, v); err != nil {
		return err
	}
	if _, err := time.Parse(timeLayout, v); err != nil {
		return &ValidationError{Field: field, Reason: "must be a time in HH:MM form"}
	}
	return nil
}

func nonNegative(field string, v int) error {
	if v < 0 {
		return &ValidationError{Field: field, Reason: "must not be negative"}
	}
	return nil
}

// trimmedPtr returns a pointer to the trimmed value, or nil for nil.
func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func validateNewTeam(t model.NewTeam) error {
	return firstErr(
		required("name", t.Name),
		required("ownerId", t.OwnerID),
	)
}

func validateNewPlayer(p model.NewPlayer) error {
	return firstErr(
		required("name", p.Name),
		required("teamId", p.TeamID),
		nonNegative("matchesPlayed", p.MatchesPlayed),
		nonNegative("trainingsAttended", p.TrainingsAttended),
		nonNegative("goals", p.Goals),
		nonNegative("assists", p.Assists),
	)
}

func validatePlayerUpdate(u model.PlayerUpdate) error {
	var errs []error
	if u.Name != nil {
		errs = append(errs, required("name", *u.Name))
	}
	if u.TeamID != nil {
		errs = append(errs, required("teamId", *u.TeamID))
	}
	if u.MatchesPlayed != nil {
		errs = append(errs, nonNegative("matchesPlayed", *u.MatchesPlayed))
	}
	if u.TrainingsAttended != nil {
		errs = append(errs, nonNegative("trainingsAttended", *u.TrainingsAttended))
	}
	if u.Goals != nil {
		errs = append(errs, nonNegative("goals", *u.Goals))
	}
	if u.Assists != nil {
		errs = append(errs, nonNegative("assists", *u.Assists))
	}
	return firstErr(errs...)
}

func validateNewMatch(m model.NewMatch) error {
	return firstErr(
		required("teamId", m.TeamID),
		required("opponent", m.Opponent),
		validDate("date", m.Date),
		validTime("time", m.Time),
		required("location", m.Location),
	)
}

func validateMatchUpdate(u model.MatchUpdate) error {
	var errs []error
	if u.TeamID != nil {
		errs = append(errs, required("teamId", *u.TeamID))
	}
	if u.Opponent != nil {
		errs = append(errs, required("opponent", *u.Opponent))
	}
	if u.Date != nil {
		errs = append(errs, validDate("date", *u.Date))
	}
	if u.Time != nil {
		errs = append(errs, validTime("time", *u.Time))
	}
	if u.Location != nil {
		errs = append(errs, required("location", *u.Location))
	}
	return firstErr(errs...)
}

func validateNewTrainingSession(s model.NewTrainingSession) error {
	if err := firstErr(required("teamId", s.TeamID), validDate("date", s.Date)); err != nil {
		return err
	}
	if len(s.AttendedPlayerIDs) == 0 {
		return &ValidationError{Field: "attendedPlayerIds", Reason: "must name at least one player"}
	}
	return nil
}

func validateTrainingSessionUpdate(u model.TrainingSessionUpdate) error {
	var errs []error
	if u.TeamID != nil {
		errs = append(errs, required("teamId", *u.TeamID))
	}
	if u.Date != nil {
		errs = append(errs, validDate("date", *u.Date))
	}
	if u.AttendedPlayerIDs != nil && len(model.Dedupe(u.AttendedPlayerIDs)) == 0 {
		errs = append(errs, &ValidationError{Field: "attendedPlayerIds", Reason: "must name at least one player"})
	}
	return firstErr(errs...)
}
