package service

import (
	"context"
	"errors"
	"fmt"

	"whatsapp-assistant/backend/internal/models"
	"whatsapp-assistant/backend/internal/repository"
	"whatsapp-assistant/backend/pkg/logger"
)

const (
	defaultThreadTitle = "WhatsApp"
	defaultRoutingKey  = "whatsapp"
)

// Resolver maps a channel contact to its user and thread.
//
// With a route-to email every contact gets its own thread, titled after the
// address, under that one operator user. Without it each address gets a
// synthetic user and the user's most recently created thread is used.
//
// Rows are found first, then created; a unique violation on create means a
// concurrent request won, so the row is read again.
type Resolver struct {
	repo         repository.Repository
	routeToEmail string
	log          *logger.Logger
}

// NewResolver creates a resolver; routeToEmail may be empty. It is
// normalized the way logins are, so the routed user is the one that logs in.
func NewResolver(repo repository.Repository, routeToEmail string, log *logger.Logger) *Resolver {
	return &Resolver{repo: repo, routeToEmail: models.NormalizeEmail(routeToEmail), log: log}
}

// ChannelUserEmail is the synthetic handle for an address on a channel
func ChannelUserEmail(channel, address string) string {
	return fmt.Sprintf("%s@%s.wa", address, channel)
}

// ContactThreadTitle is the thread title used under fixed routing
func ContactThreadTitle(address string) string {
	return defaultThreadTitle + " " + address
}

// Resolve returns the user and thread for a canonical address
func (r *Resolver) Resolve(ctx context.Context, channel, address string) (*models.User, *models.Thread, error) {
	var (
		user   *models.User
		thread *models.Thread
		err    error
	)

	if r.routeToEmail != "" {
		user, err = r.findOrCreateUser(ctx, r.routeToEmail)
		if err != nil {
			return nil, nil, err
		}
		thread, err = r.contactThread(ctx, user, channel, address)
	} else {
		user, err = r.findOrCreateUser(ctx, ChannelUserEmail(channel, address))
		if err != nil {
			return nil, nil, err
		}
		thread, err = r.currentThread(ctx, user, channel, address)
	}
	if err != nil {
		return nil, nil, err
	}

	if thread.ExternalContact == nil {
		if err := r.repo.AttachContact(ctx, thread.ID, address, channel); err != nil {
			return nil, nil, fmt.Errorf("attach contact: %w", err)
		}
		thread.ExternalContact = &address
		thread.Channel = channel
	}
	return user, thread, nil
}

func (r *Resolver) findOrCreateUser(ctx context.Context, email string) (*models.User, error) {
	user, err := r.repo.FindUserByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	user = models.NewChannelUser(email)
	err = r.repo.CreateUser(ctx, user)
	if errors.Is(err, repository.ErrDuplicate) {
		r.log.Debug("User created concurrently, re-reading", "email", email)
		return r.repo.FindUserByEmail(ctx, email)
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	r.log.Info("Created user for contact", "user_id", user.ID)
	return user, nil
}

func (r *Resolver) contactThread(ctx context.Context, user *models.User, channel, address string) (*models.Thread, error) {
	title := ContactThreadTitle(address)

	thread, err := r.repo.FindThreadByTitle(ctx, user.ID, title)
	if err == nil {
		return thread, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find thread: %w", err)
	}

	thread = &models.Thread{
		UserID:          user.ID,
		Title:           title,
		RoutingKey:      &title,
		ExternalContact: &address,
		Channel:         channel,
	}
	err = r.repo.CreateThread(ctx, thread)
	if errors.Is(err, repository.ErrDuplicate) {
		return r.repo.FindThreadByTitle(ctx, user.ID, title)
	}
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	return thread, nil
}

func (r *Resolver) currentThread(ctx context.Context, user *models.User, channel, address string) (*models.Thread, error) {
	thread, err := r.repo.LatestThread(ctx, user.ID)
	if err == nil {
		return thread, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("find thread: %w", err)
	}

	key := defaultRoutingKey
	thread = &models.Thread{
		UserID:          user.ID,
		Title:           defaultThreadTitle,
		RoutingKey:      &key,
		ExternalContact: &address,
		Channel:         channel,
	}
	err = r.repo.CreateThread(ctx, thread)
	if errors.Is(err, repository.ErrDuplicate) {
		return r.repo.LatestThread(ctx, user.ID)
	}
	if err != nil {
		return nil, fmt.Errorf("create thread: %w", err)
	}
	return thread, nil
}
