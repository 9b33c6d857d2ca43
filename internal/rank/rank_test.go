package rank

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func TestSelectBest(t *testing.T) {
	me := new(mockEmbedder)
	me.On("Embed", mock.Anything, []string{"q", "s0", "s1", "s2"}).Return([][]float32{
		{1, 0},
		{0, 1},
		{1, 0.1},
		{-1, 0},
	}, nil)

	idx, err := New(me).SelectBest(context.Background(), "q", []string{"s0", "s1", "s2"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	me.AssertExpectations(t)
}

func TestSelectBestTieGoesToFirst(t *testing.T) {
	me := new(mockEmbedder)
	me.On("Embed", mock.Anything, mock.Anything).Return([][]float32{
		{1, 1}, {0, 1}, {2, 2}, {3, 3},
	}, nil)

	idx, err := New(me).SelectBest(context.Background(), "q", []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestSelectBestErrors(t *testing.T) {
	me := new(mockEmbedder)
	_, err := New(me).SelectBest(context.Background(), "q", nil)
	assert.ErrorIs(t, err, ErrNoCandidates)

	me.On("Embed", mock.Anything, []string{"q", "x"}).Return(nil, errors.New("down")).Once()
	_, err = New(me).SelectBest(context.Background(), "q", []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")

	me.On("Embed", mock.Anything, []string{"q", "x"}).Return([][]float32{{1}}, nil).Once()
	_, err = New(me).SelectBest(context.Background(), "q", []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "2 texts")
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0.0, CosineDistance([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 1.0, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2.0, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.InDelta(t, 1.0, CosineDistance([]float32{0, 0}, []float32{1, 0}), 1e-9)
	assert.True(t, math.IsInf(CosineDistance([]float32{1}, []float32{1, 0}), 1))
}
