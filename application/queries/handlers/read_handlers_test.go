package handlers

import (
	"context"
	"testing"
	"time"

	"killrvideo/application/commands"
	commandbus "killrvideo/application/commands/bus"
	mutations "killrvideo/application/commands/handlers"
	"killrvideo/application/fanout"
	"killrvideo/application/queries"
	"killrvideo/application/queries/bus"
	"killrvideo/domain/config"
	"killrvideo/infrastructure/dedup"
	"killrvideo/infrastructure/persistence/memory"
	"killrvideo/infrastructure/persistence/schema"
	pkgerrors "killrvideo/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type readFixture struct {
	commands *commandbus.CommandBus
	queries  *bus.QueryBus
}

func newReadFixture(t *testing.T) *readFixture {
	t.Helper()
	reg := schema.MustLoad()
	store := memory.NewBootstrappedSession(reg, nil)
	cfg := config.DefaultDomainConfig()

	coord := fanout.NewCoordinator(reg, store, nil, dedup.NewMemoryLedger(), nil, nil, nil, fanout.DefaultConfig(), nil)
	cb := commandbus.NewCommandBus()
	require.NoError(t, mutations.NewMutationHandlers(coord, cfg, nil).Register(cb))

	qb := bus.NewQueryBus(bus.LoggingMiddleware(zap.NewNop(), time.Second))
	require.NoError(t, NewReadHandlers(queries.NewRouter(reg, store, cfg, nil, nil), nil).Register(qb))
	return &readFixture{commands: cb, queries: qb}
}

func (f *readFixture) send(t *testing.T, cmd commandbus.Command) string {
	t.Helper()
	res, err := f.commands.Send(context.Background(), cmd)
	require.NoError(t, err)
	return res.(*mutations.Result).ID
}

func (f *readFixture) ask(t *testing.T, q bus.Query) interface{} {
	t.Helper()
	res, err := f.queries.Ask(context.Background(), q)
	require.NoError(t, err)
	return res
}

func TestReadHandlers(t *testing.T) {
	f := newReadFixture(t)
	userID := f.send(t, commands.CreateUserCommand{FirstName: "Edgar", LastName: "Codd", Email: "ted@example.com", Password: "normal"})
	videoID := f.send(t, commands.AddVideoCommand{
		UserID:   userID,
		Name:     "A relational model",
		Location: "https://example.com/rm.mp4",
		Tags:     []string{"SQL", "theory"},
	})
	f.send(t, commands.RateVideoCommand{VideoID: videoID, UserID: userID, Rating: 5})
	f.send(t, commands.AddCommentCommand{VideoID: videoID, UserID: userID, Comment: "first"})

	user := f.ask(t, queries.GetUserQuery{UserID: userID}).(queries.UserView)
	assert.Equal(t, "ted@example.com", user.Email)

	video := f.ask(t, queries.GetVideoQuery{VideoID: videoID}).(queries.VideoView)
	assert.Equal(t, []string{"sql", "theory"}, video.Tags)
	require.NotNil(t, video.Rating)
	assert.Equal(t, int64(1), video.Rating.Count)
	assert.Equal(t, int64(5), video.Rating.Total)

	owned := f.ask(t, queries.ListUserVideosQuery{UserID: userID}).([]queries.VideoPreview)
	require.Len(t, owned, 1)
	assert.Equal(t, videoID, owned[0].VideoID.String())

	tagged := f.ask(t, queries.VideosByTagQuery{Tag: "SQL"}).([]queries.VideoPreview)
	assert.Len(t, tagged, 1)

	latest := f.ask(t, queries.LatestVideosQuery{Days: 1}).([]queries.VideoPreview)
	assert.Len(t, latest, 1)

	tags := f.ask(t, queries.SuggestTagsQuery{Prefix: "t"}).([]string)
	assert.Equal(t, []string{"theory"}, tags)

	rating := f.ask(t, queries.GetRatingQuery{VideoID: videoID, UserID: userID}).(queries.RatingView)
	require.NotNil(t, rating.UserRating)
	assert.Equal(t, 5, *rating.UserRating)

	unrated := f.ask(t, queries.GetRatingQuery{VideoID: videoID, UserID: uuid.NewString()}).(queries.RatingView)
	assert.Nil(t, unrated.UserRating)

	byVideo := f.ask(t, queries.ListCommentsQuery{VideoID: videoID}).([]queries.CommentView)
	require.Len(t, byVideo, 1)
	byUser := f.ask(t, queries.ListCommentsQuery{UserID: userID}).([]queries.CommentView)
	require.Len(t, byUser, 1)
	assert.Equal(t, byVideo[0].CommentID, byUser[0].CommentID)
}

func TestVerifyCredentials(t *testing.T) {
	f := newReadFixture(t)
	userID := f.send(t, commands.CreateUserCommand{Email: "Jim@Example.com", Password: "granite"})

	cred := f.ask(t, queries.VerifyCredentialsQuery{Email: "jim@example.com", Password: "granite"}).(queries.CredentialView)
	assert.Equal(t, userID, cred.UserID.String())
	assert.Equal(t, "jim@example.com", cred.Email)

	for name, q := range map[string]queries.VerifyCredentialsQuery{
		"wrong password": {Email: "jim@example.com", Password: "marble"},
		"unknown email":  {Email: "nobody@example.com", Password: "granite"},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.queries.Ask(context.Background(), q)
			require.Error(t, err)
			assert.True(t, pkgerrors.IsType(err, pkgerrors.ErrorTypeUnauthorized))
		})
	}
}

func TestUploadReads(t *testing.T) {
	f := newReadFixture(t)
	userID := f.send(t, commands.CreateUserCommand{Email: "jo@example.com", Password: "upload"})
	videoID := f.send(t, commands.RegisterUploadCommand{UserID: userID, Name: "raw.mov", JobID: "job-7"})
	f.send(t, commands.AdvanceUploadJobStateCommand{JobID: "job-7", NewState: "submitted"})

	byJob := f.ask(t, queries.GetUploadQuery{JobID: "job-7"}).(queries.UploadView)
	assert.Equal(t, videoID, byJob.VideoID.String())
	byVideo := f.ask(t, queries.GetUploadQuery{VideoID: videoID}).(queries.UploadView)
	assert.Equal(t, "job-7", byVideo.JobID)

	status := f.ask(t, queries.JobStatusQuery{JobID: "job-7"}).(queries.JobStatusView)
	assert.Equal(t, "submitted", status.State)
	assert.Len(t, status.History, 1)

	_, err := f.queries.Ask(context.Background(), queries.JobStatusQuery{JobID: "job-8"})
	assert.True(t, pkgerrors.IsNotFound(err))
}

func TestReadErrors(t *testing.T) {
	f := newReadFixture(t)
	ctx := context.Background()

	_, err := f.queries.Ask(ctx, queries.GetVideoQuery{VideoID: uuid.NewString()})
	assert.True(t, pkgerrors.IsNotFound(err))

	_, err = f.queries.Ask(ctx, queries.GetUserQuery{UserID: "not-a-uuid"})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.queries.Ask(ctx, queries.ListCommentsQuery{VideoID: uuid.NewString(), UserID: uuid.NewString()})
	assert.True(t, pkgerrors.IsValidation(err))

	_, err = f.queries.Ask(ctx, queries.GetUploadQuery{})
	assert.True(t, pkgerrors.IsValidation(err))
}
