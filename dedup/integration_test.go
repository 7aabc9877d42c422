//go:build integration

package dedup

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func runStoreContract(t *testing.T, store Store) {
	ctx := context.Background()

	done, err := store.Exists(ctx, "p1::h")
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, store.Mark(ctx, "p1::h", 0))
	require.NoError(t, store.Mark(ctx, "p1::h", 0))

	done, err = store.Exists(ctx, "p1::h")
	require.NoError(t, err)
	assert.True(t, done)

	require.NoError(t, store.Mark(ctx, "short", time.Second))
	require.Eventually(t, func() bool {
		done, err := store.Exists(ctx, "short")
		return err == nil && !done
	}, 5*time.Second, 100*time.Millisecond)
}

func TestMongoStoreContract(t *testing.T) {
	ctx := context.Background()

	container, err := mongodb.Run(ctx, "mongo:6")
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	uri, err := container.ConnectionString(ctx)
	require.NoError(t, err)

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Disconnect(context.Background()) })

	store := NewMongoStore(client.Database("manufacture_test"), "")
	require.NoError(t, store.EnsureIndexes(ctx))

	runStoreContract(t, store)
}

func TestRedisStoreContract(t *testing.T) {
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "6379")
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: fmt.Sprintf("%s:%s", host, port.Port())})
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.Ping(ctx).Err())

	runStoreContract(t, NewRedisStore(client, ""))
}
