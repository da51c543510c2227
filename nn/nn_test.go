// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package nn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/bpnet/backend/cpu"
	"github.com/born-ml/bpnet/nn"
)

func TestNewChain(t *testing.T) {
	net, err := nn.NewChain(cpu.NewFactory(), []int{4, 3, 2}, nn.CrossEntropy)
	require.NoError(t, err)
	defer net.Release()

	assert.Equal(t, 3, net.Len())
	assert.Equal(t, nn.Identity, net.InputLayer().Activation())
	assert.Equal(t, nn.Sigmoid, net.OutputLayer().Activation())
	assert.Equal(t, nn.CrossEntropy, net.OutputLayer().CostFunc())

	require.NoError(t, net.InputLayer().Input().Write([]float32{1, 0, 0, 1}))
	require.NoError(t, net.Forward())
	out := make([]float32, 2)
	require.NoError(t, net.OutputLayer().Output().Read(out))
	for _, v := range out {
		assert.Greater(t, v, float32(0))
		assert.Less(t, v, float32(1))
	}
}

func TestNewChainRejectsBadCost(t *testing.T) {
	_, err := nn.NewChain(cpu.NewFactory(), []int{4, 2}, nn.NoCost)
	require.ErrorIs(t, err, nn.ErrConfig)
}
