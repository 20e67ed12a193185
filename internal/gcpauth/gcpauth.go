// Package gcpauth turns the gateway's Google service-account settings into client
// options shared by the Drive, Sheets and Cloud Storage clients.
//
// Credential sources, in order:
//   - google.credentials_json (inline key, env GOOGLE_SERVICE_ACCOUNT_JSON)
//   - google.credentials_file (path to a key file)
//   - Application Default Credentials (GOOGLE_APPLICATION_CREDENTIALS, metadata server, gcloud)
//
// When an endpoint override is set and no explicit key is configured the client is
// built unauthenticated, which is what emulators and httptest servers expect.
package gcpauth

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/intake-gateway/intake-gateway/internal/config"
)

// Scopes used by the gateway's Google clients.
const (
	DriveScope        = "https://www.googleapis.com/auth/drive"
	SpreadsheetsScope = "https://www.googleapis.com/auth/spreadsheets"
	StorageScope      = "https://www.googleapis.com/auth/devstorage.read_write"
)

// ClientOptions builds the option set for one Google API client.
func ClientOptions(ctx context.Context, cfg *config.GoogleConfig, endpoint string, scopes ...string) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if endpoint != "" {
		opts = append(opts, option.WithEndpoint(endpoint))
	}

	keyJSON, err := serviceAccountKey(cfg)
	if err != nil {
		return nil, err
	}

	switch {
	case keyJSON != nil:
		creds, err := google.CredentialsFromJSON(ctx, keyJSON, scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to parse service account credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	case endpoint != "":
		opts = append(opts, option.WithoutAuthentication())
	default:
		creds, err := google.FindDefaultCredentials(ctx, scopes...)
		if err != nil {
			return nil, fmt.Errorf("failed to find default credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	}

	return opts, nil
}

// serviceAccountKey returns the configured key bytes, or nil when none is configured.
func serviceAccountKey(cfg *config.GoogleConfig) ([]byte, error) {
	if cfg == nil {
		return nil, nil
	}
	if cfg.CredentialsJSON != "" {
		return []byte(cfg.CredentialsJSON), nil
	}
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read credentials file: %w", err)
		}
		return data, nil
	}
	return nil, nil
}
