package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// RecentActivityWindow is how far back DashboardStats.RecentActivity looks.
const RecentActivityWindow = 7 * 24 * time.Hour

type DashboardStats struct {
	TotalPrompts   int `json:"totalPrompts"`
	PinnedPrompts  int `json:"pinnedPrompts"`
	TotalVersions  int `json:"totalVersions"`
	RecentActivity int `json:"recentActivity"`
}

type UserStats struct {
	TotalPrompts   int       `json:"totalPrompts"`
	TotalVersions  int       `json:"totalVersions"`
	AccountCreated time.Time `json:"accountCreated"`
}

// DashboardStats summarises the user's library. RecentActivity counts
// prompts updated within RecentActivityWindow of now.
func (s *PromptService) DashboardStats(ctx context.Context, userID string, now time.Time) (*DashboardStats, error) {
	var out DashboardStats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		views, err := s.prompts.ListPromptViews(ctx, userID)
		if err != nil {
			return err
		}
		since := now.Add(-RecentActivityWindow)
		out.TotalPrompts = len(views)
		for i := range views {
			if views[i].Pinned {
				out.PinnedPrompts++
			}
			if !views[i].UpdatedAt.Before(since) {
				out.RecentActivity++
			}
		}
		return nil
	})
	g.Go(func() error {
		n, err := s.prompts.CountVersionsByUser(ctx, userID)
		if err != nil {
			return err
		}
		out.TotalVersions = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats returns the account summary shown on the settings page.
func (s *UserService) Stats(ctx context.Context, userID string) (*UserStats, error) {
	var out UserStats
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		user, err := s.users.GetUserByID(ctx, userID)
		if err != nil {
			return err
		}
		out.AccountCreated = user.CreatedAt
		return nil
	})
	g.Go(func() error {
		views, err := s.prompts.prompts.ListPromptViews(ctx, userID)
		if err != nil {
			return err
		}
		out.TotalPrompts = len(views)
		return nil
	})
	g.Go(func() error {
		n, err := s.prompts.prompts.CountVersionsByUser(ctx, userID)
		if err != nil {
			return err
		}
		out.TotalVersions = n
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &out, nil
}
