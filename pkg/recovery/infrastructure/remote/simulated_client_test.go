package remote_test

import (
	"context"
	"testing"

	model "github.com/tigerroll/tidal/pkg/recovery/core/domain/model"
	"github.com/tigerroll/tidal/pkg/recovery/core/ports"
	"github.com/tigerroll/tidal/pkg/recovery/infrastructure/remote"
	"github.com/tigerroll/tidal/pkg/recovery/support/util/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitJob_IdempotencyKeyDeduplicates(t *testing.T) {
	client := remote.NewSimulatedJobClient()
	ctx := context.Background()
	configs := []ports.ServerConfig{{ServerID: "srv-1"}, {ServerID: "srv-2"}}

	first, err := client.SubmitJob(ctx, configs, false, "exec-1:1")
	require.NoError(t, err)

	second, err := client.SubmitJob(ctx, configs, false, "exec-1:1")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	other, err := client.SubmitJob(ctx, configs, false, "exec-1:2")
	require.NoError(t, err)
	assert.NotEqual(t, first, other)
}

func TestQueryJob_ConvergesToCompleted(t *testing.T) {
	client := remote.NewSimulatedJobClient()
	ctx := context.Background()

	require.NoError(t, client.ConfigureLaunchTarget(ctx, "srv-1", "tgt-1"))

	jobID, err := client.SubmitJob(ctx, []ports.ServerConfig{
		{ServerID: "srv-1", TargetResourceID: "tgt-1"},
		{ServerID: "srv-2"},
	}, false, "exec-1:1")
	require.NoError(t, err)

	partial, err := client.QueryJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.RemoteJobStatusInProgress, partial.JobStatus)
	assert.Equal(t, model.LaunchStateLaunched, partial.Participants[0].LaunchState)
	assert.Equal(t, "tgt-1", partial.Participants[0].TargetResourceID)
	assert.Equal(t, model.LaunchStatePending, partial.Participants[1].LaunchState)

	done, err := client.QueryJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, model.RemoteJobStatusCompleted, done.JobStatus)
	for _, p := range done.Participants {
		assert.Equal(t, model.LaunchStateLaunched, p.LaunchState)
	}
}

func TestQueryJob_UnknownJobIsPermanent(t *testing.T) {
	client := remote.NewSimulatedJobClient()

	_, err := client.QueryJob(context.Background(), "no-such-job")
	require.Error(t, err)
	assert.True(t, exception.IsPermanent(err))
}
