package seed

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Dilbarpun07/GBFC-website/internal/model"
	"github.com/Dilbarpun07/GBFC-website/internal/syncer"
)

// Target is the part of the synchronizer a seed drives. The session must
// already be established for the owner.
type Target interface {
	Snapshot() *syncer.Snapshot
	CreateTeam(ctx context.Context, name, ownerID string) (model.Team, error)
	AddPlayer(ctx context.Context, np model.NewPlayer) (model.Player, error)
	AddMatch(ctx context.Context, nm model.NewMatch) (model.Match, error)
	AddTrainingSession(ctx context.Context, ns model.NewTrainingSession) (model.TrainingSession, error)
}

// Apply creates every team in roster for ownerID, then its players, matches
// and sessions. Rows that already exist are reused. A failure on one item is
// recorded and the rest of the roster is still applied.
func Apply(ctx context.Context, target Target, roster *Roster, ownerID string, logger *slog.Logger) SeedResult {
	var result SeedResult
	for i, ts := range roster.Teams {
		if err := ctx.Err(); err != nil {
			result.AddErrorf("seed cancelled: %v", err)
			break
		}
		logger.Info("Seeding team", "team", ts.Name, "index", i+1, "total", len(roster.Teams))
		result.Add(applyTeam(ctx, target, ts, ownerID, logger))
	}
	logger.Info("Seed complete", "summary", result.Summary())
	return result
}

func applyTeam(ctx context.Context, target Target, ts TeamSeed, ownerID string, logger *slog.Logger) SeedResult {
	var result SeedResult

	team, ok := findTeam(target.Snapshot(), ts.Name, ownerID)
	if ok {
		result.Skipped++
	} else {
		created, err := target.CreateTeam(ctx, ts.Name, ownerID)
		if err != nil {
			result.AddErrorf("create team %q: %v", ts.Name, err)
			return result
		}
		team = created
		result.Teams++
	}

	// Player ids by name, for session attendees.
	ids := make(map[string]string, len(ts.Players))
	for _, p := range target.Snapshot().Players {
		if p.TeamID == team.ID {
			ids[p.Name] = p.ID
		}
	}

	for _, ps := range ts.Players {
		if _, exists := ids[ps.Name]; exists {
			result.Skipped++
			continue
		}
		p, err := target.AddPlayer(ctx, model.NewPlayer{
			Name:          ps.Name,
			TeamID:        team.ID,
			MatchesPlayed: ps.MatchesPlayed,
			Goals:         ps.Goals,
			Assists:       ps.Assists,
		})
		if err != nil {
			result.AddErrorf("add player %q to %q: %v", ps.Name, ts.Name, err)
			continue
		}
		ids[p.Name] = p.ID
		result.Players++
	}

	for _, ms := range ts.Matches {
		if hasMatch(target.Snapshot(), team.ID, ms) {
			result.Skipped++
			continue
		}
		_, err := target.AddMatch(ctx, model.NewMatch{
			TeamID:   team.ID,
			Opponent: ms.Opponent,
			Date:     ms.Date,
			Time:     ms.Time,
			Location: ms.Location,
		})
		if err != nil {
			result.AddErrorf("add match %q vs %q on %s: %v", ts.Name, ms.Opponent, ms.Date, err)
			continue
		}
		result.Matches++
	}

	for _, ss := range ts.Sessions {
		if hasSession(target.Snapshot(), team.ID, ss.Date) {
			result.Skipped++
			continue
		}
		attendees := make([]string, 0, len(ss.Attendees))
		for _, name := range ss.Attendees {
			id, ok := ids[name]
			if !ok {
				result.AddErrorf("session %s for %q: unknown player %q", ss.Date, ts.Name, name)
				continue
			}
			attendees = append(attendees, id)
		}
		_, err := target.AddTrainingSession(ctx, model.NewTrainingSession{
			TeamID:            team.ID,
			Date:              ss.Date,
			AttendedPlayerIDs: attendees,
		})
		var partial *syncer.PartialIncrementError
		switch {
		case errors.As(err, &partial):
			result.Sessions++
			for _, id := range partial.PlayerIDs() {
				result.AddErrorf("session %s for %q: attendance not updated for player %s: %v",
					ss.Date, ts.Name, id, partial.Failed[id])
			}
		case err != nil:
			result.AddErrorf("add session %s for %q: %v", ss.Date, ts.Name, err)
		default:
			result.Sessions++
		}
	}

	logger.Debug("Seeded team", "team", ts.Name, "summary", result.Summary())
	return result
}

func findTeam(snap *syncer.Snapshot, name, ownerID string) (model.Team, bool) {
	for _, t := range snap.Teams {
		if t.Name == name && t.OwnerID == ownerID {
			return t, true
		}
	}
	return model.Team{}, false
}

func hasMatch(snap *syncer.Snapshot, teamID string, ms MatchSeed) bool {
	for _, m := range snap.Matches {
		if m.TeamID == teamID && m.Opponent == ms.Opponent && m.Date == ms.Date && m.Time == ms.Time {
			return true
		}
	}
	return false
}

func hasSession(snap *syncer.Snapshot, teamID, date string) bool {
	for _, s := range snap.TrainingSessions {
		if s.TeamID == teamID && s.Date == date {
			return true
		}
	}
	return false
}
