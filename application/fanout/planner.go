package fanout

import (
	"context"
	"fmt"
	"time"

	"killrvideo/application/counters"
	"killrvideo/domain/core/valueobjects"
	"killrvideo/domain/events"
	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/schema"
	"killrvideo/pkg/errors"

	"github.com/google/uuid"
)

// Plan checks the mutation's preconditions and builds its fan-out plan.
// Every statement is validated against the registry, so a returned plan can
// only fail at the store.
func (c *Coordinator) Plan(ctx context.Context, m Mutation) (*Plan, error) {
	var (
		plan *Plan
		err  error
	)
	switch m := m.(type) {
	case CreateUser:
		plan, err = c.planCreateUser(ctx, m)
	case AddVideo:
		plan, err = c.planAddVideo(ctx, m)
	case AddComment:
		plan, err = c.planAddComment(m)
	case RateVideo:
		plan, err = c.planRateVideo(ctx, m)
	case RecordPlaybackEvent:
		plan, err = c.planPlayback(m)
	case AdvanceUploadJobState:
		plan, err = c.planJobTransition(m)
	case RegisterUpload:
		plan, err = c.planUpload(m)
	default:
		return nil, errors.NewValidationError(fmt.Sprintf("unknown mutation %T", m))
	}
	if err != nil {
		return nil, err
	}
	if err := c.check(plan); err != nil {
		return nil, err
	}
	return plan, nil
}

func (c *Coordinator) planCreateUser(ctx context.Context, m CreateUser) (*Plan, error) {
	u := m.User
	if u == nil {
		return nil, errors.NewValidationError("user is required")
	}

	// an email resolves to exactly one user id
	existing, err := c.lookup(ctx, schema.TableUserCredentials, abstractions.Row{"email": u.Email()})
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if owner, _ := existing["userid"].(uuid.UUID); owner != u.ID() {
			return nil, errors.NewConflictError(fmt.Sprintf("email %s is already registered", u.Email()))
		}
	}

	// the credential row is the email's owner; the profile is only written
	// once the claim holds
	credentials := target(schema.TableUserCredentials)
	return newPlan(m.Name()).
		gate(Unit{
			Name:   credentials,
			Writes: []Write{{Target: credentials, Stmt: abstractions.AppendStmt(schema.TableUserCredentials, credentialRow(u))}},
			Claim:  &Claim{Column: "userid", Owner: u.ID()},
		}).
		single(target(schema.TableUsers), abstractions.UpsertStmt(schema.TableUsers, userRow(u))).
		emit(events.NewUserCreated(u.ID(), u.Email(), u.CreatedAt())), nil
}

func (c *Coordinator) planAddVideo(ctx context.Context, m AddVideo) (*Plan, error) {
	v := m.Video
	if v == nil {
		return nil, errors.NewValidationError("video is required")
	}

	owner, err := c.lookup(ctx, schema.TableUsers, abstractions.Row{"userid": v.OwnerID()})
	if err != nil {
		return nil, err
	}
	if owner == nil {
		return nil, errors.NewNotFoundError(fmt.Sprintf("owner user %s", v.OwnerID()))
	}

	// Re-adding a video keeps its owner and creation time so every keyed
	// view is overwritten in place instead of gaining a second row.
	prior, err := c.lookup(ctx, schema.TableVideos, abstractions.Row{"videoid": v.ID()})
	if err != nil {
		return nil, err
	}
	var staleTags []string
	if prior != nil {
		if priorOwner, _ := prior["userid"].(uuid.UUID); priorOwner != v.OwnerID() {
			return nil, errors.NewConflictError(fmt.Sprintf("video %s belongs to another user", v.ID()))
		}
		if addedAt, ok := prior["added_date"].(time.Time); ok {
			v.RestoreAddedAt(addedAt)
		}
		priorTags, _ := prior["tags"].([]string)
		staleTags = missingFrom(priorTags, v.Tags())
	} else if !valueobjects.IsTimeUUID(v.ID()) {
		// Only a time-based id fixes the creation time by itself. Otherwise an
		// earlier attempt that missed the videos row may still have listed the
		// video under its owner.
		addedAt, err := c.listedAt(ctx, v.OwnerID(), v.ID())
		if err != nil {
			return nil, err
		}
		v.RestoreAddedAt(addedAt)
	}

	plan := newPlan(m.Name()).
		single(target(schema.TableVideos), abstractions.UpsertStmt(schema.TableVideos, videoRow(v))).
		single(target(schema.TableUserVideos), abstractions.UpsertStmt(schema.TableUserVideos, userVideoRow(v))).
		single(target(schema.TableLatestVideos), abstractions.UpsertStmt(schema.TableLatestVideos, latestVideoRow(v)))
	for _, tag := range v.Tags() {
		plan.single(target(schema.TableVideosByTag, tag), abstractions.UpsertStmt(schema.TableVideosByTag, videoTagRow(v, tag)))
		plan.single(target(schema.TableTagsByLetter, tag), abstractions.UpsertStmt(schema.TableTagsByLetter, tagLetterRow(tag)))
	}
	for _, tag := range staleTags {
		plan.single(target(schema.TableVideosByTag, tag), abstractions.DeleteStmt(schema.TableVideosByTag,
			abstractions.Row{"tag": tag, "videoid": v.ID()}))
	}
	return plan.emit(events.NewVideoAdded(v.ID(), v.OwnerID(), v.Tags(), v.AddedAt())), nil
}

func (c *Coordinator) planAddComment(m AddComment) (*Plan, error) {
	cm := m.Comment
	if cm == nil {
		return nil, errors.NewValidationError("comment is required")
	}
	return newPlan(m.Name()).
		atomic("comment",
			Write{Target: target(schema.TableCommentsByVideo), Stmt: abstractions.AppendStmt(schema.TableCommentsByVideo, commentByVideoRow(cm))},
			Write{Target: target(schema.TableCommentsByUser), Stmt: abstractions.AppendStmt(schema.TableCommentsByUser, commentByUserRow(cm))},
		).
		emit(events.NewCommentPosted(cm.VideoID, cm.CommentID, cm.UserID, cm.PostedAt())), nil
}

func (c *Coordinator) planRateVideo(ctx context.Context, m RateVideo) (*Plan, error) {
	r := m.Rating
	if r == nil {
		return nil, errors.NewValidationError("rating is required")
	}

	row, err := c.lookup(ctx, schema.TableVideoRatingsByUser, abstractions.Row{"videoid": r.VideoID, "userid": r.UserID})
	if err != nil {
		return nil, err
	}
	var prior valueobjects.Rating
	if row != nil {
		if v, ok := row["rating"].(int); ok {
			prior = valueobjects.RatingOf(v)
		}
	}
	countDelta, sumDelta := counters.DeltaFor(prior, r.Rating)

	// The per-user row is the prior rating of the next delivery, so it is
	// only written after the counter took this delivery's delta.
	plan := newPlan(m.Name())
	counterTarget := target(schema.TableVideoRating)
	if counters.IsNoop(countDelta, sumDelta) {
		plan.skip(counterTarget, "rating unchanged")
	} else {
		plan.gate(Unit{
			Name:         counterTarget,
			Writes:       []Write{{Target: counterTarget, Stmt: counters.Statement(r.VideoID, countDelta, sumDelta)}},
			SubmissionID: m.SubmissionID,
		})
	}
	plan.single(target(schema.TableVideoRatingsByUser), abstractions.UpsertStmt(schema.TableVideoRatingsByUser, userRatingRow(r)))
	return plan.emit(events.NewVideoRated(r.VideoID, r.UserID, r.Rating.Value(), countDelta, sumDelta, c.now())), nil
}

func (c *Coordinator) planPlayback(m RecordPlaybackEvent) (*Plan, error) {
	e := m.Event
	if e == nil {
		return nil, errors.NewValidationError("playback event is required")
	}
	return newPlan(m.Name()).
		single(target(schema.TableVideoEvent), abstractions.AppendStmt(schema.TableVideoEvent, playbackRow(e))).
		emit(events.NewPlaybackRecorded(e.VideoID, e.UserID, e.Kind, e.OccurredAt())), nil
}

func (c *Coordinator) planJobTransition(m AdvanceUploadJobState) (*Plan, error) {
	j := m.Transition
	if j == nil {
		return nil, errors.NewValidationError("job transition is required")
	}
	return newPlan(m.Name()).
		single(target(schema.TableEncodingJobs), abstractions.AppendStmt(schema.TableEncodingJobs, jobTransitionRow(j))).
		emit(events.NewUploadJobAdvanced(j.JobID, j.OldState, j.NewState, j.StatusDate)), nil
}

func (c *Coordinator) planUpload(m RegisterUpload) (*Plan, error) {
	u := m.Upload
	if u == nil {
		return nil, errors.NewValidationError("upload is required")
	}
	return newPlan(m.Name()).
		single(target(schema.TableUploadedVideos), abstractions.UpsertStmt(schema.TableUploadedVideos, uploadRow(u))).
		single(target(schema.TableUploadedVideosByJobID), abstractions.UpsertStmt(schema.TableUploadedVideosByJobID, uploadRow(u))).
		emit(events.NewUploadRegistered(u.VideoID, u.JobID, u.AddedAt)), nil
}

// check validates every statement of the plan before anything is written
func (c *Coordinator) check(plan *Plan) error {
	for i, u := range plan.Units {
		if u.Atomic {
			stmts := make([]abstractions.Statement, 0, len(u.Writes))
			for _, w := range u.Writes {
				stmts = append(stmts, w.Stmt)
			}
			checked, err := c.validator.CheckBatch(stmts, 0)
			if err != nil {
				return err
			}
			for j := range checked {
				plan.Units[i].Writes[j].Stmt = checked[j]
			}
			continue
		}
		for j, w := range u.Writes {
			checked, _, err := c.validator.CheckStatement(w.Stmt)
			if err != nil {
				return err
			}
			plan.Units[i].Writes[j].Stmt = checked
		}
	}
	return nil
}

// lookup reads one row by its full primary key, or nil when absent
func (c *Coordinator) lookup(ctx context.Context, table string, key abstractions.Row) (abstractions.Row, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.WriteTimeout)
	defer cancel()

	it, err := c.session.Query(ctx, abstractions.Query{Table: table, Equal: key, Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	rows, err := abstractions.Collect(it, 1)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// listedAt returns the added date under which the owner's listing holds the
// video, or the zero time when it is not listed
func (c *Coordinator) listedAt(ctx context.Context, owner, videoID uuid.UUID) (time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, c.config.WriteTimeout)
	defer cancel()

	it, err := c.session.Query(ctx, abstractions.Query{Table: schema.TableUserVideos, Equal: abstractions.Row{"userid": owner}})
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read %s: %w", schema.TableUserVideos, err)
	}
	defer it.Close()
	for it.Next() {
		row := it.Row()
		if id, _ := row["videoid"].(uuid.UUID); id == videoID {
			addedAt, _ := row["added_date"].(time.Time)
			return addedAt, nil
		}
	}
	if err := it.Err(); err != nil {
		return time.Time{}, fmt.Errorf("failed to read %s: %w", schema.TableUserVideos, err)
	}
	return time.Time{}, nil
}

// missingFrom returns the elements of prior absent from next
func missingFrom(prior, next []string) []string {
	keep := make(map[string]struct{}, len(next))
	for _, t := range next {
		keep[t] = struct{}{}
	}
	var out []string
	for _, t := range prior {
		if _, ok := keep[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}
