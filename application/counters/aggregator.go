package counters

import (
	"context"
	"fmt"

	"killrvideo/domain/core/entities"
	"killrvideo/domain/core/valueobjects"
	"killrvideo/infrastructure/persistence/abstractions"
	"killrvideo/infrastructure/persistence/schema"
	"killrvideo/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Counter columns of the per-video rating aggregate
const (
	ColumnCount = "rating_counter"
	ColumnTotal = "rating_total"
)

// Aggregator applies signed deltas to the per-video rating counter pair.
// It never overwrites a counter; edits post the difference.
type Aggregator struct {
	session abstractions.Session
	logger  *zap.Logger
}

// NewAggregator creates an aggregator over session
func NewAggregator(session abstractions.Session, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{session: session, logger: logger}
}

// DeltaFor returns the counter deltas that move the aggregate from a user's
// prior rating to next. A prior of zero means the user had not rated yet.
func DeltaFor(prior, next valueobjects.Rating) (countDelta, sumDelta int64) {
	switch {
	case next.IsZero():
		return 0, 0
	case prior.IsZero():
		return 1, int64(next.Value())
	default:
		return 0, int64(next.Value() - prior.Value())
	}
}

// IsNoop reports whether a delta pair changes nothing
func IsNoop(countDelta, sumDelta int64) bool {
	return countDelta == 0 && sumDelta == 0
}

// Statement renders the increment for videoID. Zero deltas are left out.
func Statement(videoID uuid.UUID, countDelta, sumDelta int64) abstractions.Statement {
	deltas := make(map[string]int64, 2)
	if countDelta != 0 {
		deltas[ColumnCount] = countDelta
	}
	if sumDelta != 0 {
		deltas[ColumnTotal] = sumDelta
	}
	return abstractions.IncrementStmt(schema.TableVideoRating, abstractions.Row{"videoid": videoID}, deltas)
}

// Increment applies the delta pair to videoID's aggregate
func (a *Aggregator) Increment(ctx context.Context, videoID uuid.UUID, countDelta, sumDelta int64) error {
	if IsNoop(countDelta, sumDelta) {
		return nil
	}
	return a.Apply(ctx, Statement(videoID, countDelta, sumDelta))
}

// Apply runs a counter statement built by Statement
func (a *Aggregator) Apply(ctx context.Context, st abstractions.Statement) error {
	if st.Kind != abstractions.KindIncrement || st.Table != schema.TableVideoRating {
		return errors.NewSchemaViolationError(st.Table, fmt.Sprintf("%s is not a rating counter statement", st.Kind))
	}
	if err := a.session.Increment(ctx, st.Table, st.Row, st.Deltas); err != nil {
		a.logger.Warn("Rating counter increment failed",
			zap.Any("videoid", st.Row["videoid"]),
			zap.Any("deltas", st.Deltas),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// Read returns the current aggregate of videoID. A video nobody rated reads
// as a zero aggregate.
func (a *Aggregator) Read(ctx context.Context, videoID uuid.UUID) (entities.RatingAggregate, error) {
	it, err := a.session.Query(ctx, abstractions.Query{
		Table: schema.TableVideoRating,
		Equal: abstractions.Row{"videoid": videoID},
		Limit: 1,
	})
	if err != nil {
		return entities.RatingAggregate{}, err
	}
	rows, err := abstractions.Collect(it, 1)
	if err != nil {
		return entities.RatingAggregate{}, fmt.Errorf("failed to read rating of %s: %w", videoID, err)
	}
	if len(rows) == 0 {
		return entities.RatingAggregate{VideoID: videoID}, nil
	}
	return FromRow(rows[0]), nil
}

// FromRow decodes a video_rating row
func FromRow(row abstractions.Row) entities.RatingAggregate {
	id, _ := row["videoid"].(uuid.UUID)
	count, _ := row[ColumnCount].(int64)
	total, _ := row[ColumnTotal].(int64)
	return entities.RatingAggregate{
		VideoID: id,
		Count:   valueobjects.CounterOf(0).Add(count),
		Total:   valueobjects.CounterOf(0).Add(total),
	}
}
