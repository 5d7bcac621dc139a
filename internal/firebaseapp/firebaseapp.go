// Package firebaseapp builds the Firebase app shared by the Firestore store
// and the FCM notifier.
package firebaseapp

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	firebase "firebase.google.com/go/v4"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

var ErrNoCredentials = errors.New("no firebase credentials configured")

type Credentials struct {
	ProjectID string
	// ServiceAccountJSON is a base64 encoded service account key. It wins
	// over CredentialsFile.
	ServiceAccountJSON string
	CredentialsFile    string
}

func (c Credentials) option() (option.ClientOption, error) {
	if c.ServiceAccountJSON != "" {
		decoded, err := base64.StdEncoding.DecodeString(c.ServiceAccountJSON)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 firebase credentials: %w", err)
		}
		log.Info().Msg("firebaseapp: initializing from FIREBASE_SERVICE_ACCOUNT_JSON")
		return option.WithCredentialsJSON(decoded), nil
	}
	if c.CredentialsFile != "" {
		if _, err := os.Stat(c.CredentialsFile); err != nil {
			return nil, fmt.Errorf("firebase credentials file %s: %w", c.CredentialsFile, err)
		}
		log.Info().Str("path", c.CredentialsFile).Msg("firebaseapp: initializing from credentials file")
		return option.WithCredentialsFile(c.CredentialsFile), nil
	}
	return nil, ErrNoCredentials
}

func New(ctx context.Context, creds Credentials) (*firebase.App, error) {
	opt, err := creds.option()
	if err != nil {
		return nil, err
	}
	var cfg *firebase.Config
	if creds.ProjectID != "" {
		cfg = &firebase.Config{ProjectID: creds.ProjectID}
	}
	app, err := firebase.NewApp(ctx, cfg, opt)
	if err != nil {
		return nil, fmt.Errorf("error initializing firebase app: %w", err)
	}
	return app, nil
}
