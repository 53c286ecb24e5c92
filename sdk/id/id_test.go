// Copyright (c) HashiCorp, Inc.
// SPDX-License-Identifier: MPL-2.0

package id

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	type args struct {
		prefix string
	}
	tests := []struct {
		name    string
		args    args
		wantErr bool
		wantLen int
	}{
		{
			name: "valid",
			args: args{
				prefix: "id",
			},
			wantErr: false,
			wantLen: 10 + len("id_"),
		},
		{
			name: "no-prefix",
			args: args{
				prefix: "",
			},
			wantErr: false,
			wantLen: 10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New(tt.args.prefix)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && tt.args.prefix != "" && !strings.HasPrefix(got, tt.args.prefix+"_") {
				t.Errorf("New() = %v, wanted it to start with %v", got, tt.args.prefix)
			}
			if len(got) != tt.wantLen {
				t.Errorf("New() = %v, with len of %d and wanted len of %v", got, len(got), tt.wantLen)
			}
		})
	}
}

func TestRandom(t *testing.T) {
	t.Parallel()
	unreserved := regexp.MustCompile(`^[0-9A-Za-z]+$`)
	for _, length := range []int{1, 7, 8, 40, 66, 67, 128} {
		assert, require := assert.New(t), require.New(t)
		got, err := Random(length)
		require.NoError(err)
		assert.Lenf(got, length, "Random(%d) = %q", length, got)
		assert.Regexp(unreserved, got)
	}
	t.Run("unique", func(t *testing.T) {
		assert, require := assert.New(t), require.New(t)
		a, err := Random(40)
		require.NoError(err)
		b, err := Random(40)
		require.NoError(err)
		assert.NotEqual(a, b)
	})
	t.Run("zero-length", func(t *testing.T) {
		_, err := Random(0)
		require.Error(t, err)
	})
}
