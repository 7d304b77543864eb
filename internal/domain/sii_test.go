package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeSII(t *testing.T) {
	counts := []ArticleCount{
		{Region: "춘천", Count: 0},
		{Region: "강릉", Count: 99},
		{Region: "속초", Count: 9},
	}

	got, err := ComputeSII(counts)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, "춘천", got[0].Region)
	assert.Equal(t, 0.0, got[0].Score)
	assert.Equal(t, 1.0, got[1].Score)
	assert.InDelta(t, math.Log(10)/math.Log(100), got[2].Score, 1e-12)
	assert.InDelta(t, math.Log(100), got[1].LogCount, 1e-12)
}

func TestComputeSII_EqualCounts(t *testing.T) {
	got, err := ComputeSII([]ArticleCount{{Region: "A", Count: 4}, {Region: "B", Count: 4}})
	require.NoError(t, err)
	for _, s := range got {
		assert.Equal(t, 0.0, s.Score)
	}
}

func TestComputeSII_NegativeCount(t *testing.T) {
	_, err := ComputeSII([]ArticleCount{{Region: "A", Count: -1}, {Region: "B", Count: 4}})
	var invalid *InvalidInputError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, "A", invalid.RegionID)
}

func TestCountArticles(t *testing.T) {
	articles := []Article{
		{Region: "춘천", SourceURL: "https://news.example/1"},
		{Region: "춘천", SourceURL: "https://news.example/1"},
		{Region: "춘천", SourceURL: "https://news.example/2"},
		{Region: "강릉", SourceURL: "https://news.example/1"},
		{Region: "부산", SourceURL: "https://news.example/3"},
	}

	got := CountArticles([]string{"춘천", "강릉", "속초"}, articles)
	assert.Equal(t, []ArticleCount{
		{Region: "춘천", Count: 2},
		{Region: "강릉", Count: 1},
		{Region: "속초", Count: 0},
	}, got)
}
