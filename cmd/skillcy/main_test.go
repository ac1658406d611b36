package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kshitij83/skillcy/internal/models"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	root := newRootCommand()
	for _, path := range [][]string{{"serve"}, {"migrate"}, {"seed"}, {"stats", "check"}, {"stats", "recompute"}} {
		cmd, _, err := root.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestStatsRecomputeRequiresExactlyOneTarget(t *testing.T) {
	for _, args := range [][]string{
		{"stats", "recompute"},
		{"stats", "recompute", "--all", "--user", "u-1"},
	} {
		root := newRootCommand()
		root.SetArgs(args)
		root.SetOut(&bytes.Buffer{})
		err := root.Execute()
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "exactly one of --user or --all")
	}
}

func TestSeedRejectsBadCounts(t *testing.T) {
	root := newRootCommand()
	root.SetArgs([]string{"seed", "--users", "0"})
	require.Error(t, root.Execute())
}

func TestFakeCoursePairsContent(t *testing.T) {
	for i := 0; i < 30; i++ {
		req := fakeCourse()
		require.NotEmpty(t, req.Title)
		switch models.ContentType(req.ContentType) {
		case models.ContentTypeText:
			assert.NotNil(t, req.ContentText)
			assert.Nil(t, req.ContentURL)
		case models.ContentTypeVideo, models.ContentTypePDF:
			assert.NotNil(t, req.ContentURL)
			assert.Nil(t, req.ContentText)
		default:
			t.Fatalf("unexpected content type %q", req.ContentType)
		}
	}
}

func TestPrintDrift(t *testing.T) {
	var buf bytes.Buffer
	printDrift(&buf, models.NewStatsDrift("u-1", models.ProfileStats{Enrolled: 2}, models.ProfileStats{Enrolled: 1}))
	assert.Contains(t, buf.String(), "DRIFT u-1")
	assert.Contains(t, buf.String(), "stored(enrolled=2")
}
