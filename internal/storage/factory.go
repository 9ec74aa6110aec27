package storage

import (
	"context"
	"fmt"
	"os"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"

	"argus/internal/adapters/storage/gdrive"
	"argus/internal/adapters/storage/localfs"
)

// NewStore builds the snapshot store selected by STORAGE_PROVIDER.
// localfs is the default, gdrive needs the OAuth credentials that
// cmd/gdrive-auth prints.
func NewStore() (Store, error) {
	switch provider := os.Getenv("STORAGE_PROVIDER"); provider {
	case "", "localfs":
		root, err := requireEnv("STORAGE_LOCAL_ROOT")
		if err != nil {
			return nil, err
		}
		return localfs.New(root), nil

	case "gdrive":
		return newGDriveStore(context.Background())

	default:
		return nil, fmt.Errorf("unknown storage provider: %s", provider)
	}
}

func newGDriveStore(ctx context.Context) (Store, error) {
	clientID, err := requireEnv("GDRIVE_CLIENT_ID")
	if err != nil {
		return nil, err
	}
	clientSecret, err := requireEnv("GDRIVE_CLIENT_SECRET")
	if err != nil {
		return nil, err
	}
	refreshToken, err := requireEnv("GDRIVE_REFRESH_TOKEN")
	if err != nil {
		return nil, err
	}

	conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       []string{drive.DriveFileScope},
	}

	// The refresh token mints access tokens on demand, the daemon never
	// sees an interactive login.
	client := conf.Client(ctx, &oauth2.Token{RefreshToken: refreshToken})

	srv, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, err
	}
	return gdrive.NewClient(srv, os.Getenv("GDRIVE_FOLDER_ID")), nil
}

func requireEnv(k string) (string, error) {
	v := os.Getenv(k)
	if v == "" {
		return "", fmt.Errorf("missing env: %s", k)
	}
	return v, nil
}
