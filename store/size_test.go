package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseSizePlainNumber(t *testing.T) {
	assert := assert.New(t)

	n, err := ParseSize("512")
	assert.Nil(err)
	assert.Equal(uint64(512), n)
}

func TestParseSizeDecimalSuffixes(t *testing.T) {
	assert := assert.New(t)

	cases := map[string]uint64{
		"1k":    1000,
		"1K":    1000,
		"1m":    1000000,
		"1M":    1000000,
		"1g":    1000000000,
		"1G":    1000000000,
		"1.5G":  1500000000,
		"0.25m": 250000,
	}

	for input, want := range cases {
		got, err := ParseSize(input)
		assert.Nil(err, input)
		assert.Equal(want, got, input)
	}
}

func TestParseSizeZeroForcedToOne(t *testing.T) {
	assert := assert.New(t)

	n, err := ParseSize("0")
	assert.Nil(err)
	assert.Equal(uint64(1), n)
}

func TestParseSizeFirstSuffixWins(t *testing.T) {
	assert := assert.New(t)

	// trailing garbage after the first suffix character is ignored.
	n, err := ParseSize("2kg")
	assert.Nil(err)
	assert.Equal(uint64(2000), n)
}

func TestParseSizeInvalid(t *testing.T) {
	assert := assert.New(t)

	_, err := ParseSize("not-a-size")
	assert.NotNil(err)
}
