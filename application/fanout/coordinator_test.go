package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"killrvideo/application/counters"
	"killrvideo/domain/config"
	"killrvideo/domain/core/entities"
	"killrvideo/domain/events"
	"killrvideo/infrastructure/dedup"
	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/memory"
	"killrvideo/infrastructure/persistence/schema"
	pkgerrors "killrvideo/pkg/errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPublisher is a mock implementation of ports.EventPublisher
type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockPublisher) PublishBatch(ctx context.Context, evts []events.DomainEvent) error {
	args := m.Called(ctx, evts)
	return args.Error(0)
}

type fixture struct {
	ctx       context.Context
	cfg       *config.DomainConfig
	store     *memory.Session
	coord     *Coordinator
	agg       *counters.Aggregator
	publisher *MockPublisher

	mu     sync.Mutex
	failOn map[string]bool
	writes []string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	reg := schema.MustLoad()
	store := memory.NewBootstrappedSession(reg, nil)
	ledger := dedup.NewMemoryLedger()
	t.Cleanup(func() { ledger.Close() })

	f := &fixture{
		ctx:       context.Background(),
		cfg:       config.DefaultDomainConfig(),
		store:     store,
		publisher: &MockPublisher{},
		failOn:    make(map[string]bool),
	}
	f.publisher.On("PublishBatch", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.agg = counters.NewAggregator(store, nil)
	f.coord = NewCoordinator(reg, store, f.agg, ledger, f.publisher, nil, nil, DefaultConfig(), nil)

	store.SetFault(func(kind abstractions.StatementKind, table string) error {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.writes = append(f.writes, table)
		if f.failOn[table] {
			return errors.New("write timed out")
		}
		return nil
	})
	return f
}

func (f *fixture) fail(tables ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOn = make(map[string]bool)
	for _, t := range tables {
		f.failOn[t] = true
	}
	f.writes = nil
}

func (f *fixture) written() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.writes...)
}

func (f *fixture) rows(t *testing.T, table string, equal abstractions.Row) []abstractions.Row {
	t.Helper()
	it, err := f.store.Query(f.ctx, abstractions.Query{Table: table, Equal: equal})
	require.NoError(t, err)
	rows, err := abstractions.Collect(it, 0)
	require.NoError(t, err)
	return rows
}

func (f *fixture) createUser(t *testing.T, email string) *entities.User {
	t.Helper()
	u, err := entities.NewUser(entities.UserParams{FirstName: "Ted", LastName: "Codd", Email: email, Password: "secret"})
	require.NoError(t, err)
	_, err = f.coord.Apply(f.ctx, CreateUser{User: u})
	require.NoError(t, err)
	return u
}

func (f *fixture) newVideo(t *testing.T, owner uuid.UUID, tags ...string) *entities.Video {
	t.Helper()
	v, err := entities.NewVideo(f.cfg, entities.VideoParams{
		OwnerID:           owner,
		Name:              "Cat video",
		Location:          "https://www.youtube.com/watch?v=dQw4w9WgXcQ",
		LocationType:      entities.LocationYouTube,
		PreviewThumbnails: map[string]string{"480": "https://img/480.jpg"},
		Tags:              tags,
	})
	require.NoError(t, err)
	return v
}

func (f *fixture) rate(t *testing.T, video, user uuid.UUID, value int, submission string) (*Outcome, error) {
	t.Helper()
	r, err := entities.NewUserRating(f.cfg, video, user, value)
	require.NoError(t, err)
	return f.coord.Apply(f.ctx, RateVideo{Rating: r, SubmissionID: submission})
}

func TestEndToEndScenario(t *testing.T) {
	f := newFixture(t)
	u1 := f.createUser(t, "u1@example.com")

	v1 := f.newVideo(t, u1.ID(), "cats", "lol")
	outcome, err := f.coord.Apply(f.ctx, AddVideo{Video: v1})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"videos", "user_videos", "latest_videos",
		"videos_by_tag:cats", "videos_by_tag:lol",
		"tags_by_letter:cats", "tags_by_letter:lol",
	}, outcome.Applied())

	byID := f.rows(t, schema.TableVideos, abstractions.Row{"videoid": v1.ID()})
	byOwner := f.rows(t, schema.TableUserVideos, abstractions.Row{"userid": u1.ID()})
	byCats := f.rows(t, schema.TableVideosByTag, abstractions.Row{"tag": "cats"})
	byLol := f.rows(t, schema.TableVideosByTag, abstractions.Row{"tag": "lol"})
	for name, rows := range map[string][]abstractions.Row{"by id": byID, "by owner": byOwner, "by cats": byCats, "by lol": byLol} {
		require.Len(t, rows, 1, name)
		assert.Equal(t, v1.ID(), rows[0]["videoid"], name)
		assert.Equal(t, v1.AddedAt(), rows[0]["added_date"], name)
		assert.Equal(t, u1.ID(), rows[0]["userid"], name)
	}

	agg, err := f.agg.Read(f.ctx, v1.ID())
	require.NoError(t, err)
	_, ok := agg.Average()
	assert.False(t, ok)

	for _, r := range []int{3, 5, 4} {
		_, err := f.rate(t, v1.ID(), uuid.New(), r, "")
		require.NoError(t, err)
	}
	agg, err = f.agg.Read(f.ctx, v1.ID())
	require.NoError(t, err)
	assert.Equal(t, int64(3), agg.Count.Value())
	assert.Equal(t, int64(12), agg.Total.Value())
	avg, ok := agg.Average()
	require.True(t, ok)
	assert.Equal(t, 4.0, avg)

	c, err := entities.NewComment(f.cfg, v1.ID(), u1.ID(), "Great cats", time.Time{})
	require.NoError(t, err)
	_, err = f.coord.Apply(f.ctx, AddComment{Comment: c})
	require.NoError(t, err)

	byVideo := f.rows(t, schema.TableCommentsByVideo, abstractions.Row{"videoid": v1.ID()})
	byAuthor := f.rows(t, schema.TableCommentsByUser, abstractions.Row{"userid": u1.ID()})
	require.Len(t, byVideo, 1)
	require.Len(t, byAuthor, 1)
	assert.Equal(t, c.CommentID, byVideo[0]["commentid"])
	assert.Equal(t, byVideo[0]["commentid"], byAuthor[0]["commentid"])
}

func TestCreateUser(t *testing.T) {
	t.Run("email claimed by another user", func(t *testing.T) {
		f := newFixture(t)
		f.createUser(t, "dup@example.com")

		other, err := entities.NewUser(entities.UserParams{FirstName: "Chris", Email: "dup@example.com", Password: "x"})
		require.NoError(t, err)
		outcome, err := f.coord.Apply(f.ctx, CreateUser{User: other})
		assert.Nil(t, outcome)
		assert.True(t, pkgerrors.IsConflict(err))
		assert.Empty(t, f.rows(t, schema.TableUsers, abstractions.Row{"userid": other.ID()}))
	})

	t.Run("same user again is accepted", func(t *testing.T) {
		f := newFixture(t)
		u := f.createUser(t, "again@example.com")
		_, err := f.coord.Apply(f.ctx, CreateUser{User: u})
		assert.NoError(t, err)
	})

	t.Run("profile waits for the email claim", func(t *testing.T) {
		f := newFixture(t)
		u, err := entities.NewUser(entities.UserParams{Email: "claim@example.com", Password: "x"})
		require.NoError(t, err)

		f.fail(schema.TableUserCredentials)
		outcome, err := f.coord.Apply(f.ctx, CreateUser{User: u})
		require.True(t, pkgerrors.IsPartialFanout(err))
		assert.Equal(t, []string{schema.TableUserCredentials, schema.TableUsers}, outcome.Failed())
		assert.Equal(t, []string{schema.TableUserCredentials}, f.written())
		assert.Empty(t, f.rows(t, schema.TableUsers, abstractions.Row{"userid": u.ID()}))

		f.fail()
		_, err = f.coord.Apply(f.ctx, CreateUser{User: u})
		require.NoError(t, err)
		assert.Len(t, f.rows(t, schema.TableUsers, abstractions.Row{"userid": u.ID()}), 1)
	})
}

func TestConcurrentSignupsShareOneEmail(t *testing.T) {
	f := newFixture(t)
	const signups = 20

	users := make([]*entities.User, signups)
	errs := make([]error, signups)
	var wg sync.WaitGroup
	for i := range users {
		u, err := entities.NewUser(entities.UserParams{FirstName: "Racer", Email: "race@example.com", Password: "x"})
		require.NoError(t, err)
		users[i] = u
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.coord.Apply(f.ctx, CreateUser{User: users[i]})
		}(i)
	}
	wg.Wait()

	var winner *entities.User
	for i, err := range errs {
		if err == nil {
			require.Nil(t, winner, "only one signup may own the email")
			winner = users[i]
			continue
		}
		assert.True(t, pkgerrors.IsConflict(err), "signup %d: %v", i, err)
	}
	require.NotNil(t, winner)

	creds := f.rows(t, schema.TableUserCredentials, abstractions.Row{"email": "race@example.com"})
	require.Len(t, creds, 1)
	assert.Equal(t, winner.ID(), creds[0]["userid"])

	profiles := 0
	for _, u := range users {
		profiles += len(f.rows(t, schema.TableUsers, abstractions.Row{"userid": u.ID()}))
	}
	assert.Equal(t, 1, profiles)
}

func TestAddVideo(t *testing.T) {
	t.Run("owner must exist", func(t *testing.T) {
		f := newFixture(t)
		v := f.newVideo(t, uuid.New(), "cats")
		f.fail()

		outcome, err := f.coord.Apply(f.ctx, AddVideo{Video: v})
		assert.Nil(t, outcome)
		assert.True(t, pkgerrors.IsNotFound(err))
		assert.Empty(t, f.written())
	})

	t.Run("re-adding replaces every view", func(t *testing.T) {
		f := newFixture(t)
		owner := f.createUser(t, "owner@example.com")
		v := f.newVideo(t, owner.ID(), "cats", "lol")
		_, err := f.coord.Apply(f.ctx, AddVideo{Video: v})
		require.NoError(t, err)

		again, err := entities.NewVideo(f.cfg, entities.VideoParams{
			ID:           v.ID(),
			OwnerID:      owner.ID(),
			Name:         "Renamed",
			Location:     v.Location(),
			LocationType: v.LocationType(),
			Tags:         []string{"cats", "dogs"},
			AddedAt:      v.AddedAt().Add(time.Hour),
		})
		require.NoError(t, err)
		_, err = f.coord.Apply(f.ctx, AddVideo{Video: again})
		require.NoError(t, err)

		byOwner := f.rows(t, schema.TableUserVideos, abstractions.Row{"userid": owner.ID()})
		require.Len(t, byOwner, 1)
		assert.Equal(t, "Renamed", byOwner[0]["name"])
		assert.Equal(t, v.AddedAt(), byOwner[0]["added_date"])

		latest := f.rows(t, schema.TableLatestVideos, abstractions.Row{"yyyymmdd": v.DayBucket().String()})
		require.Len(t, latest, 1)

		assert.Len(t, f.rows(t, schema.TableVideosByTag, abstractions.Row{"tag": "cats"}), 1)
		assert.Len(t, f.rows(t, schema.TableVideosByTag, abstractions.Row{"tag": "dogs"}), 1)
		assert.Empty(t, f.rows(t, schema.TableVideosByTag, abstractions.Row{"tag": "lol"}))
	})

	t.Run("video of another owner is a conflict", func(t *testing.T) {
		f := newFixture(t)
		a := f.createUser(t, "a@example.com")
		b := f.createUser(t, "b@example.com")
		v := f.newVideo(t, a.ID())
		_, err := f.coord.Apply(f.ctx, AddVideo{Video: v})
		require.NoError(t, err)

		stolen := entities.ReconstructVideo(entities.VideoParams{
			ID: v.ID(), OwnerID: b.ID(), Name: v.Name(), Location: v.Location(), AddedAt: v.AddedAt(),
		})
		_, err = f.coord.Apply(f.ctx, AddVideo{Video: stolen})
		assert.True(t, pkgerrors.IsConflict(err))
	})
}

func TestAddVideoResend(t *testing.T) {
	t.Run("time-based id keeps its added date", func(t *testing.T) {
		f := newFixture(t)
		owner := f.createUser(t, "owner@example.com")
		v := f.newVideo(t, owner.ID(), "cats")

		f.fail(schema.TableVideos)
		_, err := f.coord.Apply(f.ctx, AddVideo{Video: v})
		require.True(t, pkgerrors.IsPartialFanout(err))

		// the client only knows the id it was given back
		f.fail()
		again, err := entities.NewVideo(f.cfg, entities.VideoParams{
			ID:           v.ID(),
			OwnerID:      owner.ID(),
			Name:         v.Name(),
			Location:     v.Location(),
			LocationType: v.LocationType(),
			Tags:         v.Tags(),
		})
		require.NoError(t, err)
		assert.Equal(t, v.AddedAt(), again.AddedAt())
		_, err = f.coord.Apply(f.ctx, AddVideo{Video: again})
		require.NoError(t, err)

		assert.Len(t, f.rows(t, schema.TableUserVideos, abstractions.Row{"userid": owner.ID()}), 1)
		assert.Len(t, f.rows(t, schema.TableLatestVideos, abstractions.Row{"yyyymmdd": v.DayBucket().String()}), 1)
		assert.Len(t, f.rows(t, schema.TableVideosByTag, abstractions.Row{"tag": "cats"}), 1)
	})

	t.Run("random id recovers the owner listing", func(t *testing.T) {
		f := newFixture(t)
		owner := f.createUser(t, "owner@example.com")
		first := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
		params := entities.VideoParams{
			ID:           uuid.New(),
			OwnerID:      owner.ID(),
			Name:         "Dog video",
			Location:     "https://example.com/dog.mp4",
			LocationType: entities.LocationUpload,
			AddedAt:      first,
		}
		v, err := entities.NewVideo(f.cfg, params)
		require.NoError(t, err)

		f.fail(schema.TableVideos)
		_, err = f.coord.Apply(f.ctx, AddVideo{Video: v})
		require.True(t, pkgerrors.IsPartialFanout(err))

		f.fail()
		params.AddedAt = first.Add(time.Hour)
		again, err := entities.NewVideo(f.cfg, params)
		require.NoError(t, err)
		_, err = f.coord.Apply(f.ctx, AddVideo{Video: again})
		require.NoError(t, err)

		byOwner := f.rows(t, schema.TableUserVideos, abstractions.Row{"userid": owner.ID()})
		require.Len(t, byOwner, 1)
		assert.Equal(t, first, byOwner[0]["added_date"])
		byID := f.rows(t, schema.TableVideos, abstractions.Row{"videoid": v.ID()})
		require.Len(t, byID, 1)
		assert.Equal(t, first, byID[0]["added_date"])
	})
}

func TestFanoutBoundedConcurrency(t *testing.T) {
	f := newFixture(t)
	cfg := DefaultConfig()
	cfg.MaxConcurrentWrites = 1
	f.coord = NewCoordinator(schema.MustLoad(), f.store, f.agg, nil, f.publisher, nil, nil, cfg, nil)

	owner := f.createUser(t, "owner@example.com")
	outcome, err := f.coord.Apply(f.ctx, AddVideo{Video: f.newVideo(t, owner.ID(), "a", "b", "c")})
	require.NoError(t, err)
	assert.Len(t, outcome.Applied(), 9)
}

func TestPartialFailureAndRetry(t *testing.T) {
	f := newFixture(t)
	owner := f.createUser(t, "owner@example.com")
	v := f.newVideo(t, owner.ID(), "cats", "lol")

	f.fail(schema.TableVideosByTag)
	outcome, err := f.coord.Apply(f.ctx, AddVideo{Video: v})
	require.Error(t, err)
	require.NotNil(t, outcome)
	assert.True(t, pkgerrors.IsPartialFanout(err))
	assert.True(t, pkgerrors.IsRetryable(err))
	assert.Equal(t, []string{"videos_by_tag:cats", "videos_by_tag:lol"}, pkgerrors.FailedTargets(err))
	assert.Equal(t, []string{"videos_by_tag:cats", "videos_by_tag:lol"}, outcome.Failed())
	assert.Equal(t, StatusApplied, outcome.Results["videos"].Status)

	// the applied views stay applied
	assert.Len(t, f.rows(t, schema.TableVideos, abstractions.Row{"videoid": v.ID()}), 1)
	assert.Empty(t, f.rows(t, schema.TableVideosByTag, abstractions.Row{"tag": "cats"}))
	f.publisher.AssertNotCalled(t, "PublishBatch", mock.Anything, mock.Anything)

	f.fail()
	retried, err := f.coord.Retry(f.ctx, outcome)
	require.NoError(t, err)
	assert.True(t, retried.Complete())
	assert.ElementsMatch(t, []string{schema.TableVideosByTag, schema.TableVideosByTag}, f.written())
	assert.Len(t, f.rows(t, schema.TableVideosByTag, abstractions.Row{"tag": "lol"}), 1)
	f.publisher.AssertCalled(t, "PublishBatch", mock.Anything, mock.Anything)
}

func TestAddCommentIsAtomic(t *testing.T) {
	f := newFixture(t)
	video, author := uuid.New(), uuid.New()
	c, err := entities.NewComment(f.cfg, video, author, "first!", time.Time{})
	require.NoError(t, err)

	f.fail(schema.TableCommentsByUser)
	outcome, err := f.coord.Apply(f.ctx, AddComment{Comment: c})
	require.Error(t, err)
	assert.True(t, pkgerrors.IsAtomicGroup(err))
	assert.ElementsMatch(t, []string{schema.TableCommentsByVideo, schema.TableCommentsByUser}, outcome.Failed())
	assert.Empty(t, f.rows(t, schema.TableCommentsByVideo, abstractions.Row{"videoid": video}))
	assert.Empty(t, f.rows(t, schema.TableCommentsByUser, abstractions.Row{"userid": author}))

	f.fail()
	retried, err := f.coord.Retry(f.ctx, outcome)
	require.NoError(t, err)
	assert.True(t, retried.Complete())
	assert.Len(t, f.rows(t, schema.TableCommentsByVideo, abstractions.Row{"videoid": video}), 1)
	assert.Len(t, f.rows(t, schema.TableCommentsByUser, abstractions.Row{"userid": author}), 1)

	// a retry after the group landed is still applied, with no duplicates
	again, err := f.coord.Retry(f.ctx, outcome)
	require.NoError(t, err)
	assert.True(t, again.Complete())
	assert.Len(t, f.rows(t, schema.TableCommentsByVideo, abstractions.Row{"videoid": video}), 1)
}

func TestRateVideo(t *testing.T) {
	t.Run("edit posts the difference", func(t *testing.T) {
		f := newFixture(t)
		video, user := uuid.New(), uuid.New()

		_, err := f.rate(t, video, user, 2, "")
		require.NoError(t, err)
		_, err = f.rate(t, video, user, 5, "")
		require.NoError(t, err)

		agg, err := f.agg.Read(f.ctx, video)
		require.NoError(t, err)
		assert.Equal(t, int64(1), agg.Count.Value())
		assert.Equal(t, int64(5), agg.Total.Value())

		outcome, err := f.rate(t, video, user, 5, "")
		require.NoError(t, err)
		assert.Equal(t, []string{schema.TableVideoRating}, outcome.Skipped())

		byUser := f.rows(t, schema.TableVideoRatingsByUser, abstractions.Row{"videoid": video})
		require.Len(t, byUser, 1)
		assert.Equal(t, 5, byUser[0]["rating"])
	})

	t.Run("redelivered submission is counted once", func(t *testing.T) {
		f := newFixture(t)
		video, user := uuid.New(), uuid.New()

		f.fail(schema.TableVideoRatingsByUser)
		_, err := f.rate(t, video, user, 4, "sub-1")
		require.True(t, pkgerrors.IsPartialFanout(err))

		f.fail()
		outcome, err := f.rate(t, video, user, 4, "sub-1")
		require.NoError(t, err)
		result := outcome.Results[schema.TableVideoRating]
		assert.Equal(t, StatusSkipped, result.Status)
		assert.True(t, pkgerrors.IsDuplicateDelivery(result.Err()))

		agg, err := f.agg.Read(f.ctx, video)
		require.NoError(t, err)
		assert.Equal(t, int64(1), agg.Count.Value())
		assert.Equal(t, int64(4), agg.Total.Value())
	})

	t.Run("resend after a failed increment posts the delta", func(t *testing.T) {
		for _, submission := range []string{"sub-1", ""} {
			f := newFixture(t)
			video, user := uuid.New(), uuid.New()

			f.fail(schema.TableVideoRating)
			_, err := f.rate(t, video, user, 4, submission)
			require.True(t, pkgerrors.IsPartialFanout(err))

			f.fail()
			outcome, err := f.rate(t, video, user, 4, submission)
			require.NoError(t, err)
			assert.Equal(t, StatusApplied, outcome.Results[schema.TableVideoRating].Status)
			assert.Equal(t, []string{schema.TableVideoRating, schema.TableVideoRatingsByUser}, f.written())

			agg, err := f.agg.Read(f.ctx, video)
			require.NoError(t, err)
			assert.Equal(t, int64(1), agg.Count.Value(), "submission %q", submission)
			assert.Equal(t, int64(4), agg.Total.Value(), "submission %q", submission)
		}
	})

	t.Run("failed increment releases the submission", func(t *testing.T) {
		f := newFixture(t)
		video, user := uuid.New(), uuid.New()

		f.fail(schema.TableVideoRating)
		outcome, err := f.rate(t, video, user, 3, "sub-2")
		require.True(t, pkgerrors.IsPartialFanout(err))
		assert.Equal(t, []string{schema.TableVideoRating, schema.TableVideoRatingsByUser}, outcome.Failed())
		assert.Empty(t, f.rows(t, schema.TableVideoRatingsByUser, abstractions.Row{"videoid": video}))

		f.fail()
		_, err = f.coord.Retry(f.ctx, outcome)
		require.NoError(t, err)

		agg, err := f.agg.Read(f.ctx, video)
		require.NoError(t, err)
		assert.Equal(t, int64(1), agg.Count.Value())
		assert.Equal(t, int64(3), agg.Total.Value())
	})
}

func TestAppendsAreSafeToRepeat(t *testing.T) {
	f := newFixture(t)
	e, err := entities.NewPlaybackEvent(uuid.New(), uuid.New(), "start", 0, time.Time{})
	require.NoError(t, err)

	_, err = f.coord.Apply(f.ctx, RecordPlaybackEvent{Event: e})
	require.NoError(t, err)
	outcome, err := f.coord.Apply(f.ctx, RecordPlaybackEvent{Event: e})
	require.NoError(t, err)
	assert.Equal(t, []string{schema.TableVideoEvent}, outcome.Applied())
	assert.Len(t, f.rows(t, schema.TableVideoEvent, abstractions.Row{"videoid": e.VideoID, "userid": e.UserID}), 1)
}

func TestSchemaViolationWritesNothing(t *testing.T) {
	f := newFixture(t)
	f.fail()

	// comment ids must be time-based
	bad := &entities.Comment{VideoID: uuid.New(), CommentID: uuid.New(), UserID: uuid.New(), Body: "x"}
	outcome, err := f.coord.Apply(f.ctx, AddComment{Comment: bad})
	assert.Nil(t, outcome)
	assert.True(t, pkgerrors.IsSchemaViolation(err))
	assert.Empty(t, f.written())
}

func TestUploadMutations(t *testing.T) {
	f := newFixture(t)
	upload, err := entities.NewUploadedVideo(f.cfg, entities.UploadedVideo{
		OwnerID: uuid.New(), Name: "raw.mp4", JobID: "job-1", Tags: []string{"Raw"},
	})
	require.NoError(t, err)
	outcome, err := f.coord.Apply(f.ctx, RegisterUpload{Upload: upload})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{schema.TableUploadedVideos, schema.TableUploadedVideosByJobID}, outcome.Applied())

	byJob := f.rows(t, schema.TableUploadedVideosByJobID, abstractions.Row{"jobid": "job-1"})
	require.Len(t, byJob, 1)
	assert.Equal(t, upload.VideoID, byJob[0]["videoid"])

	tr, err := entities.NewJobTransition("job-1", "", "", entities.JobStateSubmitted, time.Time{})
	require.NoError(t, err)
	_, err = f.coord.Apply(f.ctx, AdvanceUploadJobState{Transition: tr})
	require.NoError(t, err)
	assert.Len(t, f.rows(t, schema.TableEncodingJobs, abstractions.Row{"jobid": "job-1"}), 1)
}

func TestPublishFailureDoesNotFailMutation(t *testing.T) {
	f := newFixture(t)
	publisher := &MockPublisher{}
	publisher.On("PublishBatch", mock.Anything, mock.Anything).Return(errors.New("bus unavailable")).Once()
	f.coord.publisher = publisher

	e, err := entities.NewPlaybackEvent(uuid.New(), uuid.New(), entities.EventStart, 0, time.Time{})
	require.NoError(t, err)
	outcome, err := f.coord.Apply(f.ctx, RecordPlaybackEvent{Event: e})
	require.NoError(t, err)
	assert.True(t, outcome.Complete())
	publisher.AssertExpectations(t)
}
