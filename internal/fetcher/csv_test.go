package fetcher

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV_Votes(t *testing.T) {
	input := "IP Address,Start Date,Best Pizza\n1.2.3.4,2024-03-05 10:00,\"Joe's Pizza, Main St\"\n5.6.7.8,,\n"

	rows, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"IP Address", "Start Date", "Best Pizza"}, rows[0])
	assert.Equal(t, "Joe's Pizza, Main St", rows[1][2])
	assert.Equal(t, []string{"5.6.7.8", "", ""}, rows[2])
}

func TestReadCSV_StripsBOM(t *testing.T) {
	input := "\uFEFFip address,best pizza\n1.2.3.4,Joe's\n"

	rows, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	assert.Equal(t, "ip address", rows[0][0])
}

func TestReadCSV_VariableFields(t *testing.T) {
	input := "a,b,c\n1\n1,2,3,4\n"

	rows, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Len(t, rows[1], 1)
	assert.Len(t, rows[2], 4)
}

func TestReadCSV_MalformedQuote(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader("a,\"b\nc"), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

func TestStreamCSV_HeaderChannel(t *testing.T) {
	headerCh := make(chan []string, 1)

	rows, err := ReadCSV(context.Background(), strings.NewReader("anchor,canonical\n starbucks , Starbucks Coffee\n"), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
		TrimSpace: true,
	})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"starbucks", "Starbucks Coffee"}}, rows)
	assert.Equal(t, []string{"anchor", "canonical"}, <-headerCh)
}

func TestStreamCSV_ContextAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadCSV(ctx, strings.NewReader("a,b\n1,2\n"), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}
