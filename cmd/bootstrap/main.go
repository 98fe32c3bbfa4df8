// Command bootstrap creates the keyspace objects of the configured store and
// optionally loads a small sample catalog.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"killrvideo/application/commands"
	"killrvideo/application/commands/bus"
	mutations "killrvideo/application/commands/handlers"
	"killrvideo/infrastructure/config"
	"killrvideo/infrastructure/di"
	"killrvideo/infrastructure/persistence/schema"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	printOnly := flag.Bool("print", false, "print the CQL schema and exit")
	seed := flag.Bool("seed", false, "load sample users, videos, comments and ratings")
	timeout := flag.Duration("timeout", 2*time.Minute, "overall timeout")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if *printOnly {
		reg, err := di.ProvideRegistry(cfg)
		if err != nil {
			log.Fatalf("Failed to load schema: %v", err)
		}
		for _, stmt := range reg.CQL() {
			fmt.Println(stmt + ";")
			fmt.Println()
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	defer cleanup()
	logger := container.Logger

	evolution := schema.NewBootstrap(container.Registry, container.Session)
	if err := evolution.Migrate(ctx, evolution.Latest()); err != nil {
		logger.Fatal("Schema bootstrap failed", zap.Error(err))
	}
	logger.Info("Schema applied",
		zap.String("store", cfg.StoreBackend),
		zap.Int("version", evolution.CurrentVersion()),
	)

	if *seed {
		if err := seedCatalog(ctx, container.CommandBus, logger); err != nil {
			logger.Fatal("Seeding failed", zap.Error(err))
		}
	}
}

type sampleVideo struct {
	id          string
	owner       string
	name        string
	description string
	location    string
	tags        []string
}

const (
	tedCodd        = "d0f60aa8-54a9-4840-b70c-fe562b68842b"
	chrisDate      = "522b1fe2-2e36-4cef-a667-cd4237d08b89"
	patrickMcFadin = "9761d3d7-7fbd-4269-9988-6cfd4e188678"
	funnyCat       = "99051fe9-6a9c-46c2-b949-38ef78858dd0"
)

var (
	sampleUsers = []commands.CreateUserCommand{
		{UserID: tedCodd, FirstName: "Ted", LastName: "Codd", Email: "tcodd@relational.com", Password: "5f4dcc3b5aa765d61d8327deb882cf99"},
		{UserID: chrisDate, FirstName: "Chris", LastName: "Date", Email: "cdate@relational.com", Password: "6cb75f652a9b52798eb6cf2201057c73"},
		{UserID: patrickMcFadin, FirstName: "Patrick", LastName: "McFadin", Email: "patrick@datastax.com", Password: "ba27e03fd95e507daf2937c937d499ab"},
	}

	sampleVideos = []sampleVideo{
		{funnyCat, tedCodd, "My funny cat", "My cat likes to play the piano! So funny.",
			"/us/vid/b3/b3a76c6b-7c7f-4af6-964f-803a9283c401", []string{"cats", "piano", "lol"}},
		{"b3a76c6b-7c7f-4af6-964f-803a9283c401", tedCodd, "Now my dog plays piano!", "My dog learned to play the piano because of the cat.",
			"/us/vid/b3/b3a76c6b-7c7f-4af6-964f-803a9283c401", []string{"dogs", "piano", "lol"}},
		{"0c3f7e87-f6b6-41d2-9668-2b64d117102c", chrisDate, "An Introduction to Database Systems", "An overview of my book",
			"/us/vid/0c/0c3f7e87-f6b6-41d2-9668-2b64d117102c", []string{"database", "relational", "book"}},
		{"416a5ddc-00a5-49ed-adde-d99da9a27c0c", chrisDate, "Intro to CAP theorem", "I think there might be something to this.",
			"/us/vid/41/416a5ddc-00a5-49ed-adde-d99da9a27c0c", []string{"database", "cap", "brewer"}},
		{"06049cbb-dfed-421f-b889-5f649a0de1ed", patrickMcFadin, "The data model is dead. Long live the data model.", "First in a three part series for Cassandra Data Modeling",
			"http://www.youtube.com/watch?v=px6U2n74q3g", []string{"cassandra", "data model", "relational", "instruction"}},
		{"873ff430-9c23-4e60-be5f-278ea2bb21bd", patrickMcFadin, "Become a Super Modeler", "Second in a three part series for Cassandra Data Modeling",
			"http://www.youtube.com/watch?v=qphhxujn5Es", []string{"cassandra", "data model", "cql", "instruction"}},
		{"49f64d40-7d89-4890-b910-dbf923563a33", patrickMcFadin, "The World's Next Top Data Model", "Third in a three part series for Cassandra Data Modeling",
			"http://www.youtube.com/watch?v=HdJlsOZVGwM", []string{"cassandra", "data model", "examples", "instruction"}},
	}

	sampleRatings = []commands.RateVideoCommand{
		{VideoID: funnyCat, UserID: patrickMcFadin, Rating: 3},
		{VideoID: funnyCat, UserID: chrisDate, Rating: 5},
		{VideoID: funnyCat, UserID: tedCodd, Rating: 4},
	}

	sampleComments = []commands.AddCommentCommand{
		{VideoID: funnyCat, UserID: tedCodd, Comment: "Worst. Video. Ever."},
		{VideoID: funnyCat, UserID: chrisDate, Comment: "It is amazing"},
	}

	samplePlayback = []commands.RecordPlaybackEventCommand{
		{VideoID: funnyCat, UserID: tedCodd, Event: "start", VideoOffset: 0},
		{VideoID: funnyCat, UserID: tedCodd, Event: "stop", VideoOffset: 30000},
		{VideoID: funnyCat, UserID: tedCodd, Event: "start", VideoOffset: 3000},
		{VideoID: funnyCat, UserID: tedCodd, Event: "stop", VideoOffset: 230000},
	}
)

// seedCatalog sends the sample data through the command bus so every
// denormalized table is populated the same way the API populates it. Users
// and videos carry fixed ids, so a second run overwrites them in place.
func seedCatalog(ctx context.Context, commandBus *bus.CommandBus, logger *zap.Logger) error {
	var cmds []bus.Command
	for _, u := range sampleUsers {
		cmds = append(cmds, u)
	}
	for _, v := range sampleVideos {
		cmds = append(cmds, commands.AddVideoCommand{
			VideoID:           v.id,
			UserID:            v.owner,
			Name:              v.name,
			Description:       v.description,
			Location:          v.location,
			LocationType:      1,
			PreviewThumbnails: map[string]string{"10": v.location},
			Tags:              v.tags,
			Metadata: []commands.VideoMetadataInput{
				{Height: 480, Width: 640, Encoding: "MP4", VideoBitRates: []string{"1000kbs", "400kbs"}},
			},
		})
	}
	for _, r := range sampleRatings {
		r.SubmissionID = "seed:" + r.VideoID + ":" + r.UserID
		cmds = append(cmds, r)
	}
	for _, c := range sampleComments {
		cmds = append(cmds, c)
	}
	for _, e := range samplePlayback {
		cmds = append(cmds, e)
	}

	for _, cmd := range cmds {
		id, err := send(ctx, commandBus, cmd)
		if err != nil {
			return fmt.Errorf("seed %T: %w", cmd, err)
		}
		logger.Debug("Seeded", zap.String("command", fmt.Sprintf("%T", cmd)), zap.String("id", id))
	}
	logger.Info("Sample catalog loaded",
		zap.Int("users", len(sampleUsers)),
		zap.Int("videos", len(sampleVideos)),
	)
	return nil
}

func send(ctx context.Context, commandBus *bus.CommandBus, cmd bus.Command) (string, error) {
	res, err := commandBus.Send(ctx, cmd)
	if err != nil {
		return "", err
	}
	result, ok := res.(*mutations.Result)
	if !ok {
		return "", fmt.Errorf("unexpected result %T", res)
	}
	return result.ID, nil
}
