package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []Record
	}{
		{
			name:     "Empty",
			input:    "",
			expected: []Record{{}},
		},
		{
			name:  "Single Byte",
			input: "f",
			expected: []Record{
				{Fields: [RecordLen]uint32{6, 6}},
			},
		},
		{
			name:  "Fills One Record",
			input: "main",
			expected: []Record{
				{Fields: [RecordLen]uint32{6, 13, 6, 1, 6, 9, 6, 14}},
				{},
			},
		},
		{
			name:  "Spills Into Second Record",
			input: "abcde",
			expected: []Record{
				{Fields: [RecordLen]uint32{6, 1, 6, 2, 6, 3, 6, 4}},
				{Fields: [RecordLen]uint32{6, 5}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := EncodeName(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestEncodeNameRejectsLowBytes(t *testing.T) {
	_, err := EncodeName("a\tb")
	assert.ErrorContains(t, err, "offset 1")
}

func TestUnpack(t *testing.T) {
	var buf []byte
	buf, done, err := unpack(Record{Fields: [RecordLen]uint32{6, 1, 6, 2, 6, 3, 6, 4}}, buf)
	require.NoError(t, err)
	assert.False(t, done)

	// Fields after the terminating pair are ignored.
	buf, done, err = unpack(Record{Fields: [RecordLen]uint32{6, 5, 0, 9, 9, 9, 9, 9}}, buf)
	require.NoError(t, err)
	assert.True(t, done)
	assert.Equal(t, "abcde", string(buf))

	_, _, err = unpack(Record{Fields: [RecordLen]uint32{16, 1}}, nil)
	assert.Error(t, err)
	_, _, err = unpack(Record{Fields: [RecordLen]uint32{6, 16}}, nil)
	assert.Error(t, err)
}

func TestNameRoundTrip(t *testing.T) {
	for _, s := range []string{"f", "main", "a_much_longer_name", "héllo wörld", "日本"} {
		records, err := EncodeName(s)
		require.NoError(t, err)

		var buf []byte
		done := false
		for _, r := range records {
			require.False(t, done, "terminator seen before the last record of %q", s)
			buf, done, err = unpack(r, buf)
			require.NoError(t, err)
		}
		assert.True(t, done)
		assert.Equal(t, s, string(buf))
	}
}
