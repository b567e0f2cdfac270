package db

import (
	"context"
	"fmt"
	"time"

	"mediatrack/internal/config"
	"mediatrack/internal/logging"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var mongoClient *mongo.Client
var mongoDB *mongo.Database

// InitMongo connects and pings. The database is then available through DB().
func InitMongo(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return fmt.Errorf("mongo connect: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return fmt.Errorf("mongo ping: %w", err)
	}

	mongoClient = client
	mongoDB = client.Database(cfg.MongoDB)
	logging.Component("mongo").Info().Str("db", cfg.MongoDB).Msg("connected")
	return nil
}

func DB() *mongo.Database {
	return mongoDB
}

// Close disconnects the client opened by InitMongo.
func Close(ctx context.Context) error {
	if mongoClient == nil {
		return nil
	}
	return mongoClient.Disconnect(ctx)
}
