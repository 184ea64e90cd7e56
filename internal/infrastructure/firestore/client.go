package firestore

import (
	"context"
	"fmt"
	"os"

	"cloud.google.com/go/firestore"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

type FirestoreClient struct {
	client *firestore.Client
}

func NewFirestoreClient(ctx context.Context, projectID, credentialsFile string, logger *zap.Logger) (*FirestoreClient, error) {
	if projectID == "" {
		return nil, fmt.Errorf("FIRESTORE_PROJECT_ID環境変数が設定されていません")
	}

	var client *firestore.Client
	var err error

	// Cloud Run環境またはエミュレータではデフォルト認証を使用
	isCloudRun := os.Getenv("K_SERVICE") != ""
	isEmulator := os.Getenv("FIRESTORE_EMULATOR_HOST") != ""

	switch {
	case isCloudRun || isEmulator:
		logger.Info("☁️ Firestore: デフォルト認証を使用", zap.Bool("emulator", isEmulator))
		client, err = firestore.NewClient(ctx, projectID)
	case credentialsFile != "":
		if _, fileErr := os.Stat(credentialsFile); fileErr != nil {
			logger.Warn("⚠️ Credentials file not found, trying with default authentication", zap.String("file", credentialsFile))
			client, err = firestore.NewClient(ctx, projectID)
		} else {
			logger.Info("📄 Using credentials file", zap.String("file", credentialsFile))
			client, err = firestore.NewClient(ctx, projectID, option.WithCredentialsFile(credentialsFile))
		}
	default:
		client, err = firestore.NewClient(ctx, projectID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create Firestore client: %w", err)
	}

	logger.Info("✅ Firestore client initialized", zap.String("project", projectID))
	return &FirestoreClient{client: client}, nil
}

func (fc *FirestoreClient) Close() error {
	return fc.client.Close()
}

func (fc *FirestoreClient) GetClient() *firestore.Client {
	return fc.client
}
