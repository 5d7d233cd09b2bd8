package syncer

import (
	"context"
	"errors"
	"strings"

	"github.com/Dilbarpun07/GBFC-website/internal/model"
	"github.com/Dilbarpun07/GBFC-website/internal/notifications"
)

const noChangesMessage = "No changes were made."

// Each entry point: check session, validate locally, one remote write,
// resync the affected collections, emit one notice.

// --------------------------------------------------------------------------
// Teams
// --------------------------------------------------------------------------

// CreateTeam inserts a team owned by ownerID and resyncs teams.
func (s *Synchronizer) CreateTeam(ctx context.Context, name, ownerID string) (model.Team, error) {
	const op = "create_team"
	ctx, gen, err := s.begin(ctx)
	if err != nil {
		return model.Team{}, s.failed(op, model.KindTeams, err)
	}
	nt := model.NewTeam{Name: strings.TrimSpace(name), OwnerID: strings.TrimSpace(ownerID)}
	if err := validateNewTeam(nt); err != nil {
		return model.Team{}, s.failed(op, model.KindTeams, err)
	}

	team, err := s.repos.Teams.Insert(ctx, nt)
	if err != nil {
		return model.Team{}, s.failed(op, model.KindTeams, err)
	}
	s.resync(ctx, gen, model.KindTeams)
	s.notify(notifications.LevelSuccess, op, model.KindTeams, "Team created successfully!", nil)
	return team, nil
}

// EditTeam renames a team. It reports false without a remote call when the
// name is unchanged.
func (s *Synchronizer) EditTeam(ctx context.Context, id, name string) (bool, error) {
	const op = "edit_team"
	ctx, gen, err := s.begin(ctx)
	if err != nil {
		return false, s.failed(op, model.KindTeams, err)
	}
	name = strings.TrimSpace(name)
	if err := firstErr(required("id", id), required("name", name)); err != nil {
		return false, s.failed(op, model.KindTeams, err)
	}
	if cur, ok := s.Snapshot().Team(id); ok && cur.Name == name {
		s.notify(notifications.LevelInfo, op, model.KindTeams, noChangesMessage, nil)
		return false, nil
	}

	if err := s.repos.Teams.UpdateByID(ctx, id, model.TeamUpdate{Name: &name}); err != nil {
		return false, s.failed(op, model.KindTeams, err)
	}
	s.resync(ctx, gen, model.KindTeams)
	s.notify(notifications.LevelSuccess, op, model.KindTeams, "Team updated successfully!", nil)
	return true, nil
}

// DeleteTeam deletes a team. The store cascades to its players, matches and
// training sessions, so all four collections are resynced.
func (s *Synchronizer) DeleteTeam(ctx context.Context, id string) error {
	const op = "delete_team"
	ctx, gen, err := s.begin(ctx)
	if err != nil {
		return s.failed(op, model.KindTeams, err)
	}
	if err := required("id", id); err != nil {
		return s.failed(op, model.KindTeams, err)
	}

	if err := s.repos.Teams.DeleteByID(ctx, id); err != nil {
		return s.failed(op, model.KindTeams, err)
	}
	s.resync(ctx, gen, model.AllKinds...)
	s.notify(notifications.LevelSuccess, op, model.KindTeams, "Team deleted successfully!", nil)
	return nil
}

// --------------------------------------------------------------------------
// Players
// --------------------------------------------------------------------------

// AddPlayer inserts a player. Counters default to zero.
func (s *Synchronizer) AddPlayer(ctx context.Context, np model.NewPlayer) (model.Player, error) {
	const op = "add_player"
	ctx, gen, err := s.begin(ctx)
	if err != nil {
		return model.Player{}, s.failed(op, model.KindPlayers, err)
	}
	np.Name = strings.TrimSpace(np.Name)
	if err := validateNewPlayer(np); err != nil {
		return model.Player{}, s.failed(op, model.KindPlayers, err)
	}

	p, err := s.repos.Players.Insert(ctx, np)
	if err != nil {
		return model.Player{}, s.failed(op, model.KindPlayers, err)
	}
	s.resync(ctx, gen, model.KindPlayers)
	s.notify(notifications.LevelSuccess, op, model.KindPlayers, "Player added successfully!", nil)
	return p, nil
}

// EditPlayer writes the fields of u that differ from the snapshot copy. It
// reports false without a remote call when nothing differs. A player missing
// from the snapshot gets the update as given.
func (s *Synchronizer) EditPlayer(ctx context.Context, id string, u model.PlayerUpdate) (bool, error) {
	const op = "edit_player"
	ctx, gen, err := s.begin(ctx)
	if err != nil {
		return false, s.failed(op, model.KindPlayers, err)
	}
	u.Name = trimmedPtr(u.Name)
	if err := firstErr(required("id", id), validatePlayerUpdate(u)); err != nil {
		return false, s.failed(op, model.KindPlayers, err)
	}
	if cur, ok := s.Snapshot().Player(id); ok {
		u, _ = u.ChangesFrom(cur)
	}
	if u == (model.PlayerUpdate{}) {
		s.notify(notifications.LevelInfo, op, model.KindPlayers, noChangesMessage, nil)
		return false, nil
	}

	if err := s.repos.Players.UpdateByID(ctx, id, u); err != nil {
		return false, s.failed(op, model.KindPlayers, err)
	}
	s.resync(ctx, gen, model.KindPlayers)
	s.notify(notifications.LevelSuccess, op, model.KindPlayers, "Player updated successfully!", nil)
	return true, nil
}

// DeletePlayer deletes a player and resyncs players and training sessions,
// since the store drops the player from attendee lists.
func (s *Synchronizer) DeletePlayer(ctx context.Context, id string) error {
	const op = "delete_player"
	ctx, gen, err := s.begin(ctx)
	if err != nil {
		return s.failed(op, model.KindPlayers, err)
	}
	if err := required("id", id); err != nil {
		return s.failed(op, model.KindPlayers, err)
	}

	if err := s.repos.Players.DeleteByID(ctx, id); err != nil {
		return s.failed(op, model.KindPlayers, err)
	}
	s.resync(ctx, gen, model.KindPlayers, model.KindTrainingSessions)
	s.notify(notifications.LevelSuccess, op, model.KindPlayers, "Player deleted successfully!", nil)
	return nil
}

// --------------------------------------------------------------------------
// Matches
// --------------------------------------------------------------------------

func (s *Synchronizer) AddMatch(ctx context.Context, nm model.NewMatch) (model.Match, error) {
	const op = "add_match"
	ctx, gen, err := s.begin(ctx)
	if err != nil {
		return model.Match{}, s.failed(op, model.KindMatches, err)
	}
	nm.Opponent = strings.TrimSpace(nm.Opponent)
	nm.Location = strings.TrimSpace(nm.Location)
	if err := validateNewMatch(nm); err != nil {
		return model.Match{}, s.failed(op, model.KindMatches, err)
	}

	m, err := s.repos.Matches.Insert(ctx, nm)
	if err != nil {
		return model.Match{}, s.failed(op, model.KindMatches, err)
	}
	s.resync(ctx, gen, model.KindMatches)
	s.notify(notifications.LevelSuccess, op, model.KindMatches, "Match added successfully!", nil)
	return m, nil
}

// EditMatch writes the fields of u that differ from the snapshot copy.
func (s *Synchronizer) EditMatch(ctx context.Context, id string, u model.MatchUpdate) (bool, error) {
	const op = "edit_match"
	ctx, gen, err := s.begin(ctx)
	if err != nil {
		return false, s.failed(op, model.KindMatches, err)
	}
	u.Opponent = trimmedPtr(u.Opponent)
	u.Location = trimmedPtr(u.Location)
	if err := firstErr(required("id", id), validateMatchUpdate(u)); err != nil {
		return false, s.failed(op, model.KindMatches, err)
	}
	if cur, ok := s.Snapshot().Match(id); ok {
		u, _ = u.ChangesFrom(cur)
	}
	if u == (model.MatchUpdate{}) {
		s.notify(notifications.LevelInfo, op, model.KindMatches, noChangesMessage, nil)
		return false, nil
	}

	if err := s.repos.Matches.UpdateByID(ctx, id, u); err != nil {
		return false, s.failed(op, model.KindMatches, err)
	}
	s.resync(ctx, gen, model.KindMatches)
	s.notify(notifications.LevelSuccess, op, model.KindMatches, "Match updated successfully!", nil)
	return true, nil
}

func (s *Synchronizer) DeleteMatch(ctx context.Context, id string) error {
	const op = "delete_match"
	ctx, gen, err := s.begin(ctx)
	if err != nil {
		return s.failed(op, model.KindMatches, err)
	}
	if err := required("id", id); err != nil {
		return s.failed(op, model.KindMatches, err)
	}

	if err := s.repos.Matches.DeleteByID(ctx, id); err != nil {
		return s.failed(op, model.KindMatches, err)
	}
	s.resync(ctx, gen, model.KindMatches)
	s.notify(notifications.LevelSuccess, op, model.KindMatches, "Match deleted successfully!", nil)
	return nil
}

// --------------------------------------------------------------------------
// Training sessions
// --------------------------------------------------------------------------

// AddTrainingSession inserts a session, resyncs sessions, adds one to
// trainingsAttended for each attendee and resyncs players once. If some
// counters fail the session is still returned along with a
// *PartialIncrementError.
func (s *Synchronizer) AddTrainingSession(ctx context.Context, ns model.NewTrainingSession) (model.TrainingSession, error) {
	const op = "add_training_session"
	ctx, gen, err := s.begin(ctx)
	if err != nil {
		return model.TrainingSession{}, s.failed(op, model.KindTrainingSessions, err)
	}
	ns.AttendedPlayerIDs = model.Dedupe(ns.AttendedPlayerIDs)
	if err := validateNewTrainingSession(ns); err != nil {
		return model.TrainingSession{}, s.failed(op, model.KindTrainingSessions, err)
	}

	ts, err := s.repos.TrainingSessions.Insert(ctx, ns)
	if err != nil {
		return model.TrainingSession{}, s.failed(op, model.KindTrainingSessions, err)
	}
	s.resync(ctx, gen, model.KindTrainingSessions)

	incErr := s.incrementAttendance(ctx, ts.ID, ns.AttendedPlayerIDs)
	s.resync(ctx, gen, model.KindPlayers)

	if incErr != nil {
		s.notify(notifications.LevelWarning, op, model.KindPlayers,
			"Training session added, but some attendance counts could not be updated.", incErr)
		return ts, incErr
	}
	s.notify(notifications.LevelSuccess, op, model.KindTrainingSessions, "Training session added successfully!", nil)
	return ts, nil
}

// EditTrainingSession updates the session row. Attendance counters are
// never recomputed, even when the attendee set changes.
func (s *Synchronizer) EditTrainingSession(ctx context.Context, original model.TrainingSession, u model.TrainingSessionUpdate) (bool, error) {
	const op = "edit_training_session"
	ctx, gen, err := s.begin(ctx)
	if err != nil {
		return false, s.failed(op, model.KindTrainingSessions, err)
	}
	if u.AttendedPlayerIDs != nil {
		u.AttendedPlayerIDs = model.Dedupe(u.AttendedPlayerIDs)
	}
	if err := firstErr(required("id", original.ID), validateTrainingSessionUpdate(u)); err != nil {
		return false, s.failed(op, model.KindTrainingSessions, err)
	}
	u, changed := u.ChangesFrom(original)
	if !changed {
		s.notify(notifications.LevelInfo, op, model.KindTrainingSessions, noChangesMessage, nil)
		return false, nil
	}

	if err := s.repos.TrainingSessions.UpdateByID(ctx, original.ID, u); err != nil {
		return false, s.failed(op, model.KindTrainingSessions, err)
	}
	s.resync(ctx, gen, model.KindTrainingSessions)
	s.notify(notifications.LevelSuccess, op, model.KindTrainingSessions, "Training session updated successfully!", nil)
	return true, nil
}

// DeleteTrainingSession deletes the session row. Attendance counters are
// left as they are.
func (s *Synchronizer) DeleteTrainingSession(ctx context.Context, id string) error {
	const op = "delete_training_session"
	ctx, gen, err := s.begin(ctx)
	if err != nil {
		return s.failed(op, model.KindTrainingSessions, err)
	}
	if err := required("id", id); err != nil {
		return s.failed(op, model.KindTrainingSessions, err)
	}

	if err := s.repos.TrainingSessions.DeleteByID(ctx, id); err != nil {
		return s.failed(op, model.KindTrainingSessions, err)
	}
	s.resync(ctx, gen, model.KindTrainingSessions)
	s.notify(notifications.LevelSuccess, op, model.KindTrainingSessions, "Training session deleted successfully!", nil)
	return nil
}

// failed emits an error notice for err and returns it unchanged.
func (s *Synchronizer) failed(op string, kind model.Kind, err error) error {
	msg := "Failed to " + strings.ReplaceAll(op, "_", " ") + "."
	var verr *ValidationError
	if errors.As(err, &verr) {
		msg = "Please check the form: " + verr.Error() + "."
	}
	s.notify(notifications.LevelError, op, kind, msg, err)
	return err
}
