// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package failure

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain error", errors.New("boom"), KindUnknown},
		{"config missing", ConfigMissing("mine", "serpapi key"), KindConfigMissing},
		{"upstream", Upstream("search", context.DeadlineExceeded), KindUpstream},
		{"empty", Empty("generate list"), KindEmptyResult},
		{"parse", Parse("generate list", errors.New("bad json")), KindParse},
		{"wrapped", fmt.Errorf("analyze: %w", Empty("generate list")), KindEmptyResult},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	err := Upstream("search", context.DeadlineExceeded)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, "search: upstream_failure: context deadline exceeded", err.Error())
	assert.Equal(t, "generate: empty_result", Empty("generate").Error())
}

func TestIsEmpty(t *testing.T) {
	assert.True(t, IsEmpty(Empty("x")))
	assert.True(t, IsEmpty(Parse("x", errors.New("bad"))))
	assert.False(t, IsEmpty(Upstream("x", errors.New("down"))))
	assert.False(t, IsEmpty(nil))
	assert.True(t, Is(ConfigMissing("x", "key"), KindConfigMissing))
	assert.False(t, Is(nil, KindUnknown))
}
