package app

import (
	"fmt"
	"strings"
	"time"

	"bookie/internal/util"
	"bookie/pkg/auth"
	"bookie/pkg/domain"
)

// Register creates a user account plus the profile that carries its point
// balance. The first registered user becomes an admin.
func (a *App) Register(email, password, displayName string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	if err := auth.ValidatePassword(password); err != nil {
		return domain.User{}, "", err
	}
	exists, err := a.store.HasUserEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, "", ErrEmailAlreadyExists
	}
	passwordHash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	role := domain.RoleUser
	users, err := a.store.HasAnyUser()
	if err != nil {
		return domain.User{}, "", fmt.Errorf("count users: %w", err)
	}
	if !users {
		role = domain.RoleAdmin
	}
	now := time.Now().UTC()
	user := domain.User{
		ID:           util.NewID(),
		Email:        email,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.SaveUser(user); err != nil {
		return domain.User{}, "", fmt.Errorf("save user: %w", err)
	}
	if displayName == "" {
		displayName = email[:strings.Index(email+"@", "@")]
	}
	if _, err := a.store.CreateProfile(domain.Profile{
		UserID:      user.ID,
		DisplayName: displayName,
		Points:      a.startingPoints,
		CreatedAt:   now,
		UpdatedAt:   now,
	}); err != nil {
		return domain.User{}, "", fmt.Errorf("create profile: %w", err)
	}
	token, err := a.sessions.Issue(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Login verifies credentials and issues a session token.
func (a *App) Login(email, password string) (domain.User, string, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return domain.User{}, "", ErrEmailAndPasswordRequired
	}
	user, ok, err := a.store.GetUserByEmail(email)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("load user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	token, err := a.sessions.Issue(user.ID)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Authenticate resolves a session token to its user.
func (a *App) Authenticate(token string) (domain.User, error) {
	userID, err := a.sessions.Verify(token)
	if err != nil {
		return domain.User{}, err
	}
	user, ok, err := a.store.GetUserByID(userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

// ProfileOf returns the point-bearing profile of a user.
func (a *App) ProfileOf(user domain.User) (domain.Profile, error) {
	profile, ok, err := a.store.GetProfileByUser(user.ID)
	if err != nil {
		return domain.Profile{}, fmt.Errorf("load profile: %w", err)
	}
	if !ok {
		return domain.Profile{}, ErrProfileNotFound
	}
	return profile, nil
}
