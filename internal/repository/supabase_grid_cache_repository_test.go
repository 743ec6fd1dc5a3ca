package repository

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsPostgrestDuplicate(t *testing.T) {
	assert.True(t, isPostgrestDuplicate(errors.New(`(23505) duplicate key value violates unique constraint "places_pkey"`)))
	assert.True(t, isPostgrestDuplicate(errors.New("Duplicate key")))
	assert.False(t, isPostgrestDuplicate(errors.New("(42P01) relation does not exist")))
}

func TestDecodeGridCells(t *testing.T) {
	data := []byte(`[
		{"geohash":"xn76urx","center_lat":35.68,"center_lng":139.76,"fetch_status":"cached",
		 "fetched_at":1711962000000,"expires_at":1712048400000,"last_updated":1711962000000,"fetched_types":"[\"cafe\"]"},
		{"geohash":"xn76urw","center_lat":35.68,"center_lng":139.76,"fetch_status":"pending",
		 "fetched_at":null,"expires_at":null,"last_updated":1711962000000,"fetched_types":""}
	]`)

	cells, err := decodeGridCells(data)
	require.NoError(t, err)
	require.Len(t, cells, 2)

	assert.Equal(t, "xn76urx", cells[0].Geohash)
	require.NotNil(t, cells[0].ExpiresAt)
	assert.Equal(t, int64(1712048400000), cells[0].ExpiresAt.UnixMilli())
	assert.Equal(t, []string{"cafe"}, cells[0].FetchedTypes)

	assert.Nil(t, cells[1].ExpiresAt)
	assert.Empty(t, cells[1].FetchedTypes)

	_, err = decodeGridCells([]byte(`{"message":"error"}`))
	assert.Error(t, err)
}

func TestPlaceRowRoundTrip(t *testing.T) {
	rec := testPlace("p1", "xn76urx", "cafe", "food")
	row, err := newPlaceRow(rec)
	require.NoError(t, err)
	assert.Equal(t, `["cafe","food"]`, row.CommodityTypes)
	assert.Equal(t, testNow.UnixMilli(), row.FetchedAt)

	got, err := row.toRecord()
	require.NoError(t, err)
	assert.Equal(t, rec.ExternalID, got.ExternalID)
	assert.Equal(t, rec.CommodityTypes, got.CommodityTypes)
	assert.True(t, rec.FetchedAt.Equal(got.FetchedAt))

	row.CommodityTypes = "not json"
	_, err = row.toRecord()
	assert.Error(t, err)
}
