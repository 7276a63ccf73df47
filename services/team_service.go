package services

import (
	"context"
	"errors"
	"strings"

	"github.com/Dosada05/field-control/models"
	"github.com/Dosada05/field-control/repositories"
)

// TeamService manages team records. Get also serves the field controller as
// its robot network configuration lookup.
type TeamService interface {
	Create(ctx context.Context, team *models.Team) error
	Get(ctx context.Context, id int) (*models.Team, error)
	List(ctx context.Context) ([]*models.Team, error)
	Update(ctx context.Context, team *models.Team) error
	Delete(ctx context.Context, id int) error
}

type teamService struct {
	teams repositories.TeamRepository
}

func NewTeamService(teams repositories.TeamRepository) TeamService {
	return &teamService{teams: teams}
}

func validateTeam(team *models.Team) error {
	if strings.TrimSpace(team.Name) == "" || strings.TrimSpace(team.Hostname) == "" {
		return ErrValidationFailed
	}
	return nil
}

func (s *teamService) Create(ctx context.Context, team *models.Team) error {
	if err := validateTeam(team); err != nil {
		return err
	}
	return s.teams.Create(ctx, team)
}

func (s *teamService) Get(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teams.GetByID(ctx, id)
	if err != nil {
		return nil, mapTeamError(err)
	}
	return team, nil
}

func (s *teamService) List(ctx context.Context) ([]*models.Team, error) {
	return s.teams.List(ctx)
}

func (s *teamService) Update(ctx context.Context, team *models.Team) error {
	if err := validateTeam(team); err != nil {
		return err
	}
	return mapTeamError(s.teams.Update(ctx, team))
}

func (s *teamService) Delete(ctx context.Context, id int) error {
	return mapTeamError(s.teams.Delete(ctx, id))
}

func mapTeamError(err error) error {
	if errors.Is(err, repositories.ErrTeamNotFound) {
		return ErrTeamNotFound
	}
	return err
}
