package push

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gitlab.com/yelinaung/expense-share/internal/gateway"
	"gitlab.com/yelinaung/expense-share/internal/logger"
)

// Registration failures. All are terminal for the session.
var (
	ErrPermissionDenied     = errors.New("push permission denied")
	ErrNoPhysicalDevice     = errors.New("push requires a physical device")
	ErrProjectMisconfigured = errors.New("push project id not configured")
	ErrPlatform             = errors.New("push platform error")
)

// PermissionStatus is the notification permission reported by a device.
type PermissionStatus string

// Permission states.
const (
	PermissionGranted      PermissionStatus = "granted"
	PermissionDenied       PermissionStatus = "denied"
	PermissionUndetermined PermissionStatus = "undetermined"
)

// OSAndroid is the only platform that needs a notification channel.
const OSAndroid = "android"

// ChannelConfig describes an Android notification channel.
type ChannelConfig struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Importance       string `json:"importance"`
	VibrationPattern []int  `json:"vibrationPattern"`
	LightColor       string `json:"lightColor"`
}

// DefaultChannel is requested on Android before asking for a token.
var DefaultChannel = ChannelConfig{
	ID:               "default",
	Name:             "default",
	Importance:       "max",
	VibrationPattern: []int{0, 250, 250, 250},
	LightColor:       "#FF231F7C",
}

// Platform is the device side of registration.
type Platform interface {
	OS() string
	IsPhysicalDevice() bool
	SetNotificationChannel(ctx context.Context, cfg ChannelConfig) error
	PermissionStatus(ctx context.Context) (PermissionStatus, error)
	RequestPermission(ctx context.Context) (PermissionStatus, error)
	PushToken(ctx context.Context, projectID string) (string, error)
}

// Register obtains a push token from p. Permission is requested at most once.
func Register(ctx context.Context, p Platform, projectID string) (string, error) {
	if p.OS() == OSAndroid {
		if err := p.SetNotificationChannel(ctx, DefaultChannel); err != nil {
			logger.Log.Warn().Err(err).Msg("Failed to configure notification channel")
		}
	}

	if !p.IsPhysicalDevice() {
		return "", ErrNoPhysicalDevice
	}

	status, err := p.PermissionStatus(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPlatform, err)
	}
	if status != PermissionGranted {
		status, err = p.RequestPermission(ctx)
		if err != nil {
			return "", fmt.Errorf("%w: %w", ErrPlatform, err)
		}
	}
	if status != PermissionGranted {
		return "", ErrPermissionDenied
	}

	if strings.TrimSpace(projectID) == "" {
		return "", ErrProjectMisconfigured
	}

	token, err := p.PushToken(ctx, projectID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrPlatform, err)
	}
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("%w: empty push token", ErrPlatform)
	}
	return token, nil
}

// TokenSaver persists a registered token. Implemented by gateway backends.
type TokenSaver interface {
	SaveToken(ctx context.Context, token string) error
}

// Registrar runs registration and persists the resulting token.
type Registrar struct {
	store TokenSaver
}

// NewRegistrar creates a Registrar.
func NewRegistrar(store TokenSaver) *Registrar {
	return &Registrar{store: store}
}

// Register obtains a token from p and saves it. Nothing is retried.
func (r *Registrar) Register(ctx context.Context, p Platform, projectID string) (string, error) {
	token, err := Register(ctx, p, projectID)
	if err != nil {
		logger.Log.Warn().Err(err).Str("os", p.OS()).Msg("Push registration failed")
		return "", err
	}

	if err := r.store.SaveToken(ctx, token); err != nil {
		logger.Log.Error().Err(err).Str("token_hash", logger.HashToken(token)).Msg("Failed to save push token")
		return "", err
	}
	return token, nil
}

// UserMessage is the text shown to the user for a registration failure.
func UserMessage(err error) string {
	var storeErr *gateway.StoreError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Permission not granted to get push token for push notification!"
	case errors.Is(err, ErrNoPhysicalDevice):
		return "Must use physical device for push notifications"
	case errors.Is(err, ErrProjectMisconfigured):
		return "Project ID not found"
	case errors.As(err, &storeErr):
		return "Could not save the push token. Please try again later."
	default:
		return err.Error()
	}
}

// RemoteDevice is a Platform assembled from what a device reports over HTTP.
// The device has already prompted for permission; PromptResult is the answer.
type RemoteDevice struct {
	Platform     string           `json:"platform"`
	Physical     bool             `json:"isDevice"`
	Permission   PermissionStatus `json:"permission"`
	PromptResult PermissionStatus `json:"promptResult"`
	Token        string           `json:"token"`
	ProjectID    string           `json:"projectId"`

	// Channel is the channel configuration requested during registration.
	Channel *ChannelConfig `json:"-"`
}

var _ Platform = (*RemoteDevice)(nil)

// OS returns the reported platform, lower-cased.
func (d *RemoteDevice) OS() string {
	return strings.ToLower(strings.TrimSpace(d.Platform))
}

// IsPhysicalDevice reports the device flag.
func (d *RemoteDevice) IsPhysicalDevice() bool {
	return d.Physical
}

// SetNotificationChannel records cfg so the caller can echo it back to the device.
func (d *RemoteDevice) SetNotificationChannel(_ context.Context, cfg ChannelConfig) error {
	d.Channel = &cfg
	return nil
}

// PermissionStatus returns the reported status.
func (d *RemoteDevice) PermissionStatus(_ context.Context) (PermissionStatus, error) {
	if d.Permission == "" {
		return PermissionUndetermined, nil
	}
	return d.Permission, nil
}

// RequestPermission returns the reported prompt result.
func (d *RemoteDevice) RequestPermission(_ context.Context) (PermissionStatus, error) {
	if d.PromptResult == "" {
		return PermissionUndetermined, nil
	}
	return d.PromptResult, nil
}

// PushToken returns the reported token. A token issued for another project is rejected.
func (d *RemoteDevice) PushToken(_ context.Context, projectID string) (string, error) {
	if d.ProjectID != "" && d.ProjectID != projectID {
		return "", fmt.Errorf("token issued for project %q, expected %q", d.ProjectID, projectID)
	}
	if strings.TrimSpace(d.Token) == "" {
		return "", errors.New("device reported no push token")
	}
	return d.Token, nil
}
