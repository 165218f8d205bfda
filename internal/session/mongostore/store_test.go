package mongostore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/wdoppenberg/ag-ui/internal/capability"
)

var (
	testMongoClient    *mongo.Client
	testMongoContainer testcontainers.Container
	skipMongoTests     bool
	mongoSetupDone     bool
)

func setupMongoDB() {
	mongoSetupDone = true
	ctx := context.Background()

	var containerErr error
	func() {
		defer func() {
			if r := recover(); r != nil {
				containerErr = fmt.Errorf("docker not available: %v", r)
			}
		}()
		req := testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections"),
			Tmpfs:        map[string]string{"/data/db": "rw"},
		}
		testMongoContainer, containerErr = testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
	}()

	if containerErr != nil {
		fmt.Printf("Docker not available, MongoDB tests will be skipped: %v\n", containerErr)
		skipMongoTests = true
		return
	}

	host, err := testMongoContainer.Host(ctx)
	if err != nil {
		fmt.Printf("Failed to get container host: %v\n", err)
		skipMongoTests = true
		return
	}
	port, err := testMongoContainer.MappedPort(ctx, "27017")
	if err != nil {
		fmt.Printf("Failed to get container port: %v\n", err)
		skipMongoTests = true
		return
	}

	uri := fmt.Sprintf("mongodb://%s:%s", host, port.Port())
	testMongoClient, err = mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		fmt.Printf("Failed to connect to MongoDB: %v\n", err)
		skipMongoTests = true
		return
	}
	if err := testMongoClient.Ping(ctx, nil); err != nil {
		fmt.Printf("Failed to ping MongoDB: %v\n", err)
		skipMongoTests = true
	}
}

func getMongoStore(t *testing.T) *Store {
	t.Helper()
	if !mongoSetupDone {
		setupMongoDB()
	}
	if skipMongoTests {
		t.Skip("Docker not available, skipping MongoDB test")
	}
	collection := testMongoClient.Database("agui_test").Collection(t.Name())
	if err := collection.Drop(context.Background()); err != nil {
		t.Fatalf("failed to drop collection: %v", err)
	}
	return New(collection)
}

func TestStore_GetMissingReturnsNil(t *testing.T) {
	store := getMongoStore(t)
	sess, err := store.Get(context.Background(), "app", "absent", "u1")
	require.NoError(t, err)
	assert.Nil(t, sess)
}

func TestStore_CreateGetRoundTrip(t *testing.T) {
	store := getMongoStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, "app", "s1", "u1", map[string]any{"k": "v"})
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.Equal(t, "s1", created.ID)

	got, err := store.Get(ctx, "app", "s1", "u1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "app", got.AppName)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "v", got.State["k"])
	assert.False(t, got.LastUpdateTime.IsZero())
}

func TestStore_AppendEventMergesAndRemoves(t *testing.T) {
	store := getMongoStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "app", "s1", "u1", map[string]any{"keep": "a", "drop": "b"})
	require.NoError(t, err)
	before := sess.LastUpdateTime

	time.Sleep(5 * time.Millisecond)
	updated, err := store.AppendEvent(ctx, sess, capability.StateDelta{
		Values: map[string]any{"added": "c"},
		Merge:  true,
	})
	require.NoError(t, err)
	assert.Equal(t, "a", updated.State["keep"])
	assert.Equal(t, "c", updated.State["added"])
	assert.True(t, updated.LastUpdateTime.After(before), "append must advance last_update_time")

	removed, err := store.AppendEvent(ctx, updated, capability.StateDelta{
		Values: map[string]any{"drop": nil},
		Merge:  false,
	})
	require.NoError(t, err)
	_, present := removed.State["drop"]
	assert.False(t, present, "nil value under merge=false must remove the key")
	assert.Equal(t, "a", removed.State["keep"])
}

func TestStore_DeleteRemovesAndToleratesMissing(t *testing.T) {
	store := getMongoStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "app", "s1", "u1", nil)
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "app", "s1", "u1"))

	sess, err := store.Get(ctx, "app", "s1", "u1")
	require.NoError(t, err)
	assert.Nil(t, sess)

	assert.NoError(t, store.Delete(ctx, "app", "s1", "u1"), "deleting a missing session is a no-op")
}

// TestStore_StateRoundTripProperty verifies that any scalar state map
// survives a create/get round trip through a real MongoDB.
func TestStore_StateRoundTripProperty(t *testing.T) {
	store := getMongoStore(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	seq := 0
	properties.Property("state persists across create and get", prop.ForAll(
		func(state map[string]string) bool {
			seq++
			id := fmt.Sprintf("s%d", seq)
			in := make(map[string]any, len(state))
			for k, v := range state {
				in[k] = v
			}

			if _, err := store.Create(ctx, "app", id, "u1", in); err != nil {
				return false
			}
			got, err := store.Get(ctx, "app", id, "u1")
			if err != nil || got == nil {
				return false
			}
			if len(got.State) != len(in) {
				return false
			}
			for k, v := range in {
				if got.State[k] != v {
					return false
				}
			}
			return true
		},
		gen.MapOf(gen.Identifier(), gen.AlphaString()),
	))

	properties.TestingRun(t)
}
