// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package memory_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/hashicorp/oidc-rp/oidc"
	"github.com/hashicorp/oidc-rp/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ oidc.Storage = (*memory.Storage)(nil)

func TestStorage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("read-write-remove", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := memory.New()

		_, ok, err := s.Read(ctx, "a", oidc.KeyAuthNonce)
		require.NoError(err)
		assert.False(ok)

		require.NoError(s.Write(ctx, "a", oidc.KeyAuthNonce, "n1"))
		v, ok, err := s.Read(ctx, "a", oidc.KeyAuthNonce)
		require.NoError(err)
		assert.True(ok)
		assert.Equal("n1", v)

		require.NoError(s.Remove(ctx, "a", oidc.KeyAuthNonce))
		_, ok, err = s.Read(ctx, "a", oidc.KeyAuthNonce)
		require.NoError(err)
		assert.False(ok)

		require.NoError(s.Remove(ctx, "a", "missing"))
	})
	t.Run("empty-value-is-present", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := memory.New()
		require.NoError(s.Write(ctx, "a", oidc.KeySilentRenewRunning, ""))
		v, ok, err := s.Read(ctx, "a", oidc.KeySilentRenewRunning)
		require.NoError(err)
		assert.True(ok)
		assert.Empty(v)
	})
	t.Run("scoped-by-config", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		s := memory.New()
		require.NoError(s.Write(ctx, "a", oidc.KeyAuthStateControl, "state-a"))
		require.NoError(s.Write(ctx, "b", oidc.KeyAuthStateControl, "state-b"))
		require.NoError(s.Remove(ctx, "a", oidc.KeyAuthStateControl))

		_, ok, err := s.Read(ctx, "a", oidc.KeyAuthStateControl)
		require.NoError(err)
		assert.False(ok)
		v, _, err := s.Read(ctx, "b", oidc.KeyAuthStateControl)
		require.NoError(err)
		assert.Equal("state-b", v)
		assert.Equal([]string{oidc.KeyAuthStateControl}, s.Keys("b"))
		assert.Empty(s.Keys("a"))
	})
	t.Run("concurrent", func(t *testing.T) {
		require := require.New(t)
		s := memory.New()
		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				id := fmt.Sprintf("config-%d", i%4)
				_ = s.Write(ctx, id, "k", fmt.Sprint(i))
				_, _, _ = s.Read(ctx, id, "k")
			}(i)
		}
		wg.Wait()
		for i := 0; i < 4; i++ {
			_, ok, err := s.Read(ctx, fmt.Sprintf("config-%d", i), "k")
			require.NoError(err)
			require.True(ok)
		}
	})
}
