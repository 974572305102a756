// ABOUTME: Tests for the JSON snapshot codec
// ABOUTME: Verifies round trips and tolerance of files written by older tooling
package record

import (
	"testing"

	"github.com/harperreed/cardsync/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotRoundTrip(t *testing.T) {
	in := []models.Contact{sampleContact(), {ID: "b", Name: "Bob"}}

	data, err := MarshalSnapshot(in)
	require.NoError(t, err)

	out, err := UnmarshalSnapshot(data)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, in[0], out[0])
	assert.Equal(t, "Bob", out[1].Name)
	assert.Equal(t, []string{}, out[1].Tags)
	assert.Equal(t, models.VerificationUnknown, out[1].VerificationStatus)
}

func TestSnapshotEmptyInput(t *testing.T) {
	out, err := UnmarshalSnapshot([]byte("  \n"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestSnapshotLegacyFields(t *testing.T) {
	data := []byte(`[{
		"id": "1",
		"name": "Ann",
		"website": "https://ann.dev",
		"tags": ["AI", ""],
		"importanceScore": "55",
		"addedAt": "2024-01-02T03:04:05.678Z"
	}]`)

	out, err := UnmarshalSnapshot(data)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "https://ann.dev", out[0].SocialProfiles.Website)
	assert.Equal(t, []string{"AI"}, out[0].Tags)
	assert.Equal(t, 55, out[0].ImportanceScore)
	assert.Equal(t, "2024-01-02T03:04:05.678Z", FormatTime(out[0].AddedAt))
}

func TestSnapshotRejectsGarbage(t *testing.T) {
	_, err := UnmarshalSnapshot([]byte("{"))
	assert.Error(t, err)
}
