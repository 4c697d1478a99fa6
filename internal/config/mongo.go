package config

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func ConnectMongoDB(cfg *Config) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %v", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %v", err)
	}

	if err := createIndexes(client, cfg.DBName); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %v", err)
	}

	return client, nil
}

func createIndexes(client *mongo.Client, dbName string) error {
	db := client.Database(dbName)

	documents := db.Collection("documents")
	documentIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "md5Hash", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "remoteFileId", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{Keys: bson.D{{Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "remoteFolderId", Value: 1}}},
	}
	if _, err := documents.Indexes().CreateMany(context.Background(), documentIndexes); err != nil {
		return err
	}

	chunks := db.Collection("chunks")
	chunkIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "documentId", Value: 1}, {Key: "chunkIndex", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := chunks.Indexes().CreateMany(context.Background(), chunkIndexes); err != nil {
		return err
	}

	profiles := db.Collection("processing_profiles")
	profileIndexes := []mongo.IndexModel{
		{Keys: bson.D{{Key: "isDefault", Value: 1}}},
	}
	if _, err := profiles.Indexes().CreateMany(context.Background(), profileIndexes); err != nil {
		return err
	}

	bindings := db.Collection("remote_folder_bindings")
	bindingIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "remoteFolderId", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := bindings.Indexes().CreateMany(context.Background(), bindingIndexes); err != nil {
		return err
	}

	return nil
}
