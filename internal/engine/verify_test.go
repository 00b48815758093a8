package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/timelock/internal/ir"
	"github.com/roach88/timelock/internal/timelock"
)

func populatedLog(t *testing.T) *engineFixture {
	t.Helper()
	f := newEngineFixture(t)
	f.airdrop(t, f.alice, 100_000_000)
	f.exec(t, signed(t, f.alice, timelock.ActionInitializeLockNative, ir.IRObject{
		"amount":      ir.IRInt(0),
		"unlock_time": ir.IRInt(testStart + 10),
	}))
	return f
}

func TestVerifyLog_CleanLog(t *testing.T) {
	f := populatedLog(t)

	report, err := VerifyLog(context.Background(), f.st)
	require.NoError(t, err)

	assert.True(t, report.OK(), "issues: %v", report.Issues)
	assert.Equal(t, 2, report.Invocations)
	assert.Equal(t, 2, report.Completions)
	assert.Equal(t, 1, report.Committed)
}

func TestVerifyLog_DetectsTamperedCompletion(t *testing.T) {
	f := populatedLog(t)
	_, err := f.st.DB().ExecContext(context.Background(),
		`UPDATE completions SET output_case = 'InvalidAmount' WHERE seq = 2`)
	require.NoError(t, err)

	report, err := VerifyLog(context.Background(), f.st)
	require.NoError(t, err)

	require.False(t, report.OK())
	var problems []string
	for _, is := range report.Issues {
		assert.Equal(t, int64(2), is.Seq)
		problems = append(problems, is.Problem)
	}
	assert.Len(t, problems, 2)
	assert.Contains(t, problems[0], "completion id does not match")
	assert.Contains(t, problems[1], "committed completion has failure case")
}

func TestVerifyLog_DetectsMissingCompletion(t *testing.T) {
	f := populatedLog(t)
	_, err := f.st.DB().ExecContext(context.Background(), `DELETE FROM completions WHERE seq = 4`)
	require.NoError(t, err)

	report, err := VerifyLog(context.Background(), f.st)
	require.NoError(t, err)

	require.Len(t, report.Issues, 1)
	assert.Equal(t, int64(3), report.Issues[0].Seq)
	assert.Equal(t, "invocation has no completion", report.Issues[0].Problem)
}
