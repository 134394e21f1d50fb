package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redinnovafp/backend/core"
	"github.com/redinnovafp/backend/core/message"
)

func TestOpen(t *testing.T) {
	t.Run("unknown backend", func(t *testing.T) {
		_, err := Open(&core.Config{Storage: core.StorageConfig{Backend: "mongo"}})
		assert.ErrorIs(t, err, ErrUnknownBackend)
	})

	t.Run("memory", func(t *testing.T) {
		repos, err := Open(&core.Config{Storage: core.StorageConfig{Backend: BackendMemory}})
		require.NoError(t, err)
		assert.Nil(t, repos.SQL)
		assert.NoError(t, repos.Close())
	})

	t.Run("local store survives a reopen", func(t *testing.T) {
		conf := &core.Config{Storage: core.StorageConfig{Backend: BackendLocal, Dir: t.TempDir()}}
		repos, err := Open(conf)
		require.NoError(t, err)

		ctx := context.Background()
		msg, err := message.NewService(repos.Messages).Send(ctx, message.NewMessage{
			SenderID:    message.SystemSender,
			RecipientID: "ana",
			Content:     "Bienvenida",
		})
		require.NoError(t, err)
		require.NoError(t, repos.Close())

		reopened, err := Open(conf)
		require.NoError(t, err)
		inbox, err := message.NewService(reopened.Messages).Inbox(ctx, "ana")
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		assert.Equal(t, msg.ID, inbox[0].ID)
	})
}
