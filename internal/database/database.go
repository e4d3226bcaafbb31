package database

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/config"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/logger"
	"github.com/life-stream-dev/life-stream-go-song-bridge/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/event"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const defaultOperationTimeout = 5 * time.Second

type DBCloseCallback struct {
	client  *mongo.Client
	timeout time.Duration
}

func NewDBCloseCallback(client *mongo.Client, timeout time.Duration) *DBCloseCallback {
	return &DBCloseCallback{client: client, timeout: timeout}
}

func (dc *DBCloseCallback) Invoke(ctx context.Context) error {
	logger.InfoF("Closing database connection")
	ctx, cancel := context.WithTimeout(ctx, dc.timeout)
	defer cancel()
	return dc.client.Disconnect(ctx)
}

func databaseURL(cfg config.Config) string {
	if cfg.Database.Username == "" {
		return fmt.Sprintf("mongodb://%s:%d/", cfg.Database.Host, cfg.Database.Port)
	}
	// 编码特殊字符
	return fmt.Sprintf("mongodb://%s:%s@%s:%d/?authSource=admin",
		url.QueryEscape(cfg.Database.Username),
		url.QueryEscape(cfg.Database.Password),
		cfg.Database.Host,
		cfg.Database.Port,
	)
}

func clientOptions(cfg config.Config) *options.ClientOptions {
	db := cfg.Database
	clientOptions := options.Client().ApplyURI(databaseURL(cfg)).SetAppName(cfg.Remote.AppName)
	// 连接池配置
	clientOptions.SetMinPoolSize(db.MinPoolSize)
	clientOptions.SetMaxPoolSize(db.MaxPoolSize)
	clientOptions.SetMaxConnIdleTime(utils.DurationOr(db.ConnectIdleTimeout, 5*time.Minute))
	// 超时限制
	clientOptions.SetConnectTimeout(utils.DurationOr(db.ConnectTimeout, 10*time.Second))
	clientOptions.SetSocketTimeout(utils.DurationOr(db.SocketTimeout, 10*time.Second))
	// 心跳包
	clientOptions.SetHeartbeatInterval(utils.DurationOr(db.Heartbeat, 10*time.Second))
	if db.UseTLS {
		clientOptions.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	// 连接池监控
	clientOptions.SetPoolMonitor(&event.PoolMonitor{
		Event: func(evt *event.PoolEvent) {
			switch evt.Type {
			case event.ConnectionCreated:
				logger.DebugF("Database connection created: %s#%d", evt.Address, evt.ConnectionID)
			case event.ConnectionClosed:
				logger.DebugF("Database connection closed: %s#%d, reason %s", evt.Address, evt.ConnectionID, evt.Reason)
			}
		},
	})
	return clientOptions
}

// ConnectDatabase connects, pings and prepares the token collection. The
// returned callback disconnects the client and belongs in the cleaner.
func ConnectDatabase(ctx context.Context, cfg config.Config) (*DBStore, *DBCloseCallback, error) {
	logger.DebugF("Connecting to database...")
	operationTimeout := utils.DurationOr(cfg.Database.OperationTimeout, defaultOperationTimeout)

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("error occured while connecting to database: %w", err)
	}

	if err = client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("error occured while pinging database: %w", err)
	}

	tokens := client.Database(cfg.Database.Database).Collection(TokenCollectionName)
	_, err = tokens.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "app_name", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("tokens_app_name_unique"),
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("error occured while creating database indexes: %w", err)
	}

	logger.InfoF("Connected to database %s", cfg.Database.Database)
	return NewDatabaseStore(tokens, operationTimeout), NewDBCloseCallback(client, operationTimeout), nil
}
