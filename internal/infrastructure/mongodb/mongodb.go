// Package mongodb provides the document store connection for Hearth Core.
//
// This package manages:
//   - Connection to MongoDB with pooled, reference-counted handles
//   - Health checks via ping
//   - Proper lifecycle management (Connect/Close)
//
// The *mongo.Database handle returned by Database() is cheap to share:
// the driver pools connections internally and every feature repository
// may use it concurrently without external locking. Single-document
// mutations are atomic; cross-document guarantees require an explicit
// session (see the firealert repository for the transaction template).
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/hearthlink/hearth-core/internal/infrastructure/config"
)

// defaultConnectTimeout bounds the initial connection attempt when the
// config does not specify one.
const defaultConnectTimeout = 10 * time.Second

// Client wraps a mongo.Client with Hearth-specific lifecycle management.
type Client struct {
	client   *mongo.Client
	database string
}

// Connect establishes a connection to MongoDB and verifies it with a ping.
//
// Parameters:
//   - ctx: Context for the connection attempt
//   - cfg: Mongo configuration from config.yaml
//
// Returns:
//   - *Client: Connected client ready for use
//   - error: If connection or ping fails within the timeout
func Connect(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	timeout := defaultConnectTimeout
	if cfg.ConnectTimeout > 0 {
		timeout = time.Duration(cfg.ConnectTimeout) * time.Second
	}

	opts := options.Client().
		ApplyURI(cfg.URI).
		SetConnectTimeout(timeout)
	if cfg.MaxPoolSize > 0 {
		opts.SetMaxPoolSize(cfg.MaxPoolSize)
	}

	connectCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, opts)
	if err != nil {
		return nil, fmt.Errorf("connecting to mongodb: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		// Best-effort cleanup of the half-open client
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongodb: %w", err)
	}

	return &Client{
		client:   client,
		database: cfg.Database,
	}, nil
}

// Database returns the configured database handle.
//
// The handle is safe for concurrent use by any number of goroutines;
// the driver manages pooling internally.
func (c *Client) Database() *mongo.Database {
	return c.client.Database(c.database)
}

// Raw returns the underlying mongo.Client, needed for session/transaction
// work that spans collections.
func (c *Client) Raw() *mongo.Client {
	return c.client
}

// HealthCheck verifies the MongoDB connection is alive.
func (c *Client) HealthCheck(ctx context.Context) error {
	if err := c.client.Ping(ctx, readpref.Primary()); err != nil {
		return fmt.Errorf("mongodb health check: %w", err)
	}
	return nil
}

// Close disconnects from MongoDB, releasing pooled connections.
func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnecting from mongodb: %w", err)
	}
	return nil
}
